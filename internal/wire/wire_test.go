package wire

import (
	"bytes"
	"math"
	"strings"
	"testing"
)

func mustEncode(t *testing.T, e Entry) []byte {
	t.Helper()
	b, err := Encode(e)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	return b
}

func mustDecode(t *testing.T, b []byte) Entry {
	t.Helper()
	e, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	return e
}

func TestEntryRoundTrip(t *testing.T) {
	cases := []Entry{
		{},
		{KeyGen: 42, Payload: []byte("hello")},
		{
			Flags:  FlagStale,
			KeyGen: math.MaxUint64,
			Observed: []Observed{
				{Key: "t:blog:any:Post", Gen: 3},
				{Key: "t:blog:inst:Post:1", Gen: math.MaxUint64},
			},
			Payload: []byte{0, 1, 2, 3, 4},
		},
	}
	for _, tc := range cases {
		got := mustDecode(t, mustEncode(t, tc))
		if got.Flags != tc.Flags || got.KeyGen != tc.KeyGen {
			t.Fatalf("header mismatch: got %+v want %+v", got, tc)
		}
		if len(got.Observed) != len(tc.Observed) {
			t.Fatalf("observed len: got %d want %d", len(got.Observed), len(tc.Observed))
		}
		for i := range tc.Observed {
			if got.Observed[i] != tc.Observed[i] {
				t.Fatalf("observed[%d]: got %+v want %+v", i, got.Observed[i], tc.Observed[i])
			}
		}
		if !bytes.Equal(got.Payload, tc.Payload) {
			t.Fatalf("payload mismatch: got %x want %x", got.Payload, tc.Payload)
		}
		if got.Stale() != (tc.Flags&FlagStale != 0) {
			t.Fatalf("stale flag mismatch")
		}
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	enc := mustEncode(t, Entry{KeyGen: 7, Payload: []byte("x")})
	enc = append(enc, 0xDE, 0xAD)
	if _, err := Decode(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestDecodeCorruptHeaders(t *testing.T) {
	enc := mustEncode(t, Entry{KeyGen: 1, Observed: []Observed{{Key: "g", Gen: 1}}, Payload: []byte("abc")})

	for name, mutate := range map[string]func(b []byte){
		"magic":   func(b []byte) { b[0] = 'X' },
		"version": func(b []byte) { b[4] = version + 1 },
		"kind":    func(b []byte) { b[5] = kindEntry + 1 },
	} {
		bad := append([]byte(nil), enc...)
		mutate(bad)
		if _, err := Decode(bad); err != ErrCorrupt {
			t.Fatalf("%s: expected ErrCorrupt, got %v", name, err)
		}
	}
}

func TestDecodeTruncated(t *testing.T) {
	enc := mustEncode(t, Entry{Observed: []Observed{{Key: "t:ns:any:User", Gen: 9}}, Payload: []byte("payload")})
	for i := 0; i < len(enc); i++ {
		if _, err := Decode(enc[:i]); err == nil {
			t.Fatalf("expected error decoding %d/%d bytes", i, len(enc))
		}
	}
}

func TestEncodeRejectsBadKeys(t *testing.T) {
	if _, err := Encode(Entry{Observed: []Observed{{Key: ""}}}); err == nil {
		t.Fatalf("expected error on empty generation key")
	}
	if _, err := Encode(Entry{Observed: []Observed{{Key: strings.Repeat("k", 0x10000)}}}); err == nil {
		t.Fatalf("expected error on oversized generation key")
	}
}

func TestDecodePayloadAliasesInput(t *testing.T) {
	enc := mustEncode(t, Entry{Payload: []byte("abc")})
	e := mustDecode(t, enc)
	enc[len(enc)-1] = 'z'
	if string(e.Payload) != "abz" {
		t.Fatalf("payload should alias input, got %q", e.Payload)
	}
}
