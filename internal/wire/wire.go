package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	version   byte = 1
	kindEntry byte = 1

	// FlagStale marks a result stored after one of its tags was invalidated
	// while the request was in flight.
	FlagStale byte = 1 << 0
)

var (
	ErrCorrupt = errors.New("tagcache: corrupt entry")
	magic4     = [...]byte{'T', 'A', 'G', 'C'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Observed is one generation counter an entry was validated against.
type Observed struct {
	Key string
	Gen uint64
}

// Entry is a cached query result plus the generations it depends on.
type Entry struct {
	Flags    byte
	KeyGen   uint64
	Observed []Observed
	Payload  []byte
}

func (e Entry) Stale() bool { return e.Flags&FlagStale != 0 }

// Encode lays out:
//
//	magic(4) | ver(1) | kind(1) | flags(1) | keyGen(u64 be) | n(u16 be)
//	(glen(u16 be) | gkey(glen) | gen(u64 be)) * n
//	vlen(u32 be) | payload(vlen)
func Encode(e Entry) ([]byte, error) {
	if len(e.Observed) > 0xFFFF {
		return nil, fmt.Errorf("tagcache: too many observed generations (%d)", len(e.Observed))
	}
	total := 4 + 1 + 1 + 1 + 8 + 2 + 4 + len(e.Payload)
	for _, o := range e.Observed {
		if l := len(o.Key); l == 0 || l > 0xFFFF {
			return nil, fmt.Errorf("tagcache: invalid generation key length %d", l)
		}
		total += 2 + len(o.Key) + 8
	}

	var buf bytes.Buffer
	buf.Grow(total)

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntry)
	buf.WriteByte(e.Flags)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], e.KeyGen)
	buf.Write(u8[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(e.Observed)))
	buf.Write(u2[:])
	for _, o := range e.Observed {
		binary.BigEndian.PutUint16(u2[:], uint16(len(o.Key)))
		buf.Write(u2[:])
		buf.WriteString(o.Key)
		binary.BigEndian.PutUint64(u8[:], o.Gen)
		buf.Write(u8[:])
	}

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])
	buf.Write(e.Payload)
	return buf.Bytes(), nil
}

// Decode parses a record produced by Encode. The returned Payload aliases b.
func Decode(b []byte) (Entry, error) {
	const hdr = 4 + 1 + 1 + 1 + 8 + 2
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindEntry {
		return Entry{}, ErrCorrupt
	}

	e := Entry{Flags: b[6]}
	off := 7

	e.KeyGen = binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	n := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2

	if n > 0 {
		e.Observed = make([]Observed, 0, n)
	}
	for i := 0; i < n; i++ {
		// glen
		if off+2 > len(b) {
			return Entry{}, ErrCorrupt
		}
		glen := int(binary.BigEndian.Uint16(b[off : off+2]))
		off += 2
		if glen <= 0 || glen > len(b)-off {
			return Entry{}, ErrCorrupt
		}
		key := string(b[off : off+glen])
		off += glen

		// gen
		if off+8 > len(b) {
			return Entry{}, ErrCorrupt
		}
		e.Observed = append(e.Observed, Observed{Key: key, Gen: binary.BigEndian.Uint64(b[off : off+8])})
		off += 8
	}

	// vlen
	if off+4 > len(b) {
		return Entry{}, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // exact: trailing bytes are corruption
		return Entry{}, ErrCorrupt
	}
	e.Payload = b[off : off+vlen]
	return e, nil
}
