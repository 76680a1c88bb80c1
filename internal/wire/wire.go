package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version byte = 1

	KindProfile    byte = 1
	KindAttachment byte = 2
)

const (
	flagNegative byte = 1 << 0 // attachment confirmed absent
)

var (
	ErrCorrupt = errors.New("profilecache: corrupt entry")
	magic4     = [...]byte{'P', 'R', 'F', 'C'}
)

// Entry is the stored envelope around a cached payload. Epoch ties the
// entry to the session epoch it was written under; a mismatch on read
// means the entry predates an invalidate-all and must be discarded.
// StoredAt (unix milliseconds) drives the TTL freshness decision above
// this package.
type Entry struct {
	Kind     byte
	Epoch    uint64
	StoredAt int64
	Negative bool // attachment entries only: confirmed absent
	Payload  []byte
}

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Layout: magic(4) | ver(1) | kind(1) | flags(1) | epoch(u64 be) |
// storedAt(i64 be, unix ms) | vlen(u32 be) | payload(vlen)
func Encode(e Entry) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 1 + 8 + 8 + 4 + len(e.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(e.Kind)

	var flags byte
	if e.Negative {
		flags |= flagNegative
	}
	buf.WriteByte(flags)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], e.Epoch)
	buf.Write(u8[:])

	binary.BigEndian.PutUint64(u8[:], uint64(e.StoredAt))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])

	buf.Write(e.Payload)
	return buf.Bytes()
}

func Decode(b []byte, wantKind byte) (Entry, error) {
	const hdr = 4 + 1 + 1 + 1 + 8 + 8 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != wantKind {
		return Entry{}, ErrCorrupt
	}

	e := Entry{Kind: b[5]}
	flags := b[6]
	e.Negative = flags&flagNegative != 0

	off := 7

	e.Epoch = binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	e.StoredAt = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen > len(b)-off { // overflow-safe bound check
		return Entry{}, ErrCorrupt
	}

	e.Payload = b[off : off+vlen]
	return e, nil
}
