package zim

import (
	"encoding/binary"
	"fmt"
	"io"
)

// readU16 reads a little-endian uint16 at the given offset of an io.ReaderAt.
func readU16(r io.ReaderAt, offset int64) (uint16, error) {
	var buf [2]byte
	if _, err := r.ReadAt(buf[:], offset); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

// readU32 reads a little-endian uint32 at the given offset of an io.ReaderAt.
func readU32(r io.ReaderAt, offset int64) (uint32, error) {
	var buf [4]byte
	if _, err := r.ReadAt(buf[:], offset); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// readU64 reads a little-endian uint64 at the given offset of an io.ReaderAt.
func readU64(r io.ReaderAt, offset int64) (uint64, error) {
	var buf [8]byte
	if _, err := r.ReadAt(buf[:], offset); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// readByte reads a single byte at the given offset of an io.ReaderAt.
func readByte(r io.ReaderAt, offset int64) (byte, error) {
	var buf [1]byte
	if _, err := r.ReadAt(buf[:], offset); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	return buf[0], nil
}

// cursor is a tiny io.ReaderAt-backed stream position, used to decode a run
// of fields (fixed-width, then zero-terminated strings) without re-deriving
// offsets by hand at every call site. It has no I/O policy of its own beyond
// "read forward from here" — callers own seeking and caching.
type cursor struct {
	r   io.ReaderAt
	pos int64
}

func newCursor(r io.ReaderAt, offset int64) *cursor {
	return &cursor{r: r, pos: offset}
}

func (c *cursor) u16() (uint16, error) {
	v, err := readU16(c.r, c.pos)
	if err != nil {
		return 0, err
	}
	c.pos += 2
	return v, nil
}

func (c *cursor) u32() (uint32, error) {
	v, err := readU32(c.r, c.pos)
	if err != nil {
		return 0, err
	}
	c.pos += 4
	return v, nil
}

func (c *cursor) byte() (byte, error) {
	v, err := readByte(c.r, c.pos)
	if err != nil {
		return 0, err
	}
	c.pos++
	return v, nil
}

// cstring reads a zero-terminated string starting at the cursor's current
// position, decoding it with enc (malformed bytes are replaced, never
// raised, per spec). The cursor advances past the terminating zero byte.
func (c *cursor) cstring(enc Encoding) (string, error) {
	var raw []byte
	for {
		b, err := c.byte()
		if err != nil {
			return "", err
		}
		if b == 0 {
			break
		}
		raw = append(raw, b)
	}
	return enc.Decode(raw), nil
}
