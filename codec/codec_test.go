package codec

import (
	"errors"
	"testing"

	"google.golang.org/protobuf/types/known/wrapperspb"
)

type post struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Reactions map[string]int `json:"reactions"`
}

func roundTrip[V any](t *testing.T, name string, c Codec[V], v V, eq func(a, b V) bool) {
	t.Helper()
	b, err := c.Encode(v)
	if err != nil {
		t.Fatalf("%s encode: %v", name, err)
	}
	got, err := c.Decode(b)
	if err != nil {
		t.Fatalf("%s decode: %v", name, err)
	}
	if !eq(got, v) {
		t.Fatalf("%s: got %+v want %+v", name, got, v)
	}
}

func postEq(a, b post) bool {
	if a.ID != b.ID || a.Title != b.Title || len(a.Reactions) != len(b.Reactions) {
		return false
	}
	for k, v := range a.Reactions {
		if b.Reactions[k] != v {
			return false
		}
	}
	return true
}

func TestStructCodecs(t *testing.T) {
	p := post{ID: "1", Title: "hello", Reactions: map[string]int{"heart": 2}}
	roundTrip[post](t, "json", JSON[post]{}, p, postEq)
	roundTrip[post](t, "msgpack", Msgpack[post]{}, p, postEq)
	roundTrip[post](t, "cbor", MustCBOR[post](true), p, postEq)
	roundTrip[post](t, "cbor-unsorted", MustCBOR[post](false), p, postEq)
}

func TestMsgpackUsesJSONTags(t *testing.T) {
	b, err := Msgpack[post]{}.Encode(post{ID: "x"})
	if err != nil {
		t.Fatal(err)
	}
	m, err := Msgpack[map[string]any]{}.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m["id"]; !ok {
		t.Fatalf("expected json tag name 'id' in %v", m)
	}
}

func TestCBORDeterministic(t *testing.T) {
	c := MustCBOR[map[string]int](true)
	m := map[string]int{"b": 1, "a": 2, "c": 3}
	first, _ := c.Encode(m)
	for i := 0; i < 10; i++ {
		again, _ := c.Encode(m)
		if string(again) != string(first) {
			t.Fatalf("deterministic CBOR output changed")
		}
	}
}

func TestLimit(t *testing.T) {
	c := Limit[string]{Inner: String{}, MaxDecode: 3}
	if _, err := c.Decode([]byte("abcd")); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	got, err := c.Decode([]byte("abc"))
	if err != nil || got != "abc" {
		t.Fatalf("got %q err=%v", got, err)
	}
	off := Limit[string]{Inner: String{}}
	if _, err := off.Decode(make([]byte, 1<<16)); err != nil {
		t.Fatalf("disabled limit should pass: %v", err)
	}
}

func TestBytesDecodeCopies(t *testing.T) {
	src := []byte("abc")
	out, _ := Bytes{}.Decode(src)
	src[0] = 'X'
	if string(out) != "abc" {
		t.Fatalf("decode aliased input: %q", out)
	}
}

func TestProtobuf(t *testing.T) {
	c := NewProtobuf(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} })
	b, err := c.Encode(wrapperspb.String("post-1"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if got.GetValue() != "post-1" {
		t.Fatalf("got %q", got.GetValue())
	}
}
