package zim

import (
	"fmt"
	"io"
)

// MagicNumber is the fixed little-endian identifier at the start of every
// ZIM archive.
const MagicNumber uint32 = 0x44D495A

// RedirectMimeType is the sentinel mimetype value marking a directory
// entry as a redirect rather than an article.
const RedirectMimeType uint16 = 0xFFFF

// headerSize is the fixed byte length of the ZIM header record.
const headerSize = 80

// Header is the fixed 80-byte record at offset 0 of a ZIM archive.
type Header struct {
	MagicNumber   uint32
	Version       uint32
	UUIDLow       uint64
	UUIDHigh      uint64
	ArticleCount  uint32
	ClusterCount  uint32
	URLPtrPos     uint64
	TitlePtrPos   uint64
	ClusterPtrPos uint64
	MimeListPos   uint64
	MainPage      uint32
	LayoutPage    uint32
	ChecksumPos   uint64
}

// readHeader decodes the fixed-layout header record at offset 0. It fails
// with ErrMalformedHeader if the source is shorter than the header size or
// the magic number doesn't match.
func readHeader(r io.ReaderAt) (Header, error) {
	c := newCursor(r, 0)

	var h Header
	var err error

	if h.MagicNumber, err = c.u32(); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	if h.MagicNumber != MagicNumber {
		return Header{}, fmt.Errorf("%w: bad magic number %#x", ErrMalformedHeader, h.MagicNumber)
	}
	if h.Version, err = c.u32(); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	if h.UUIDLow, err = readU64(r, c.pos); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	c.pos += 8
	if h.UUIDHigh, err = readU64(r, c.pos); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	c.pos += 8
	if h.ArticleCount, err = c.u32(); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	if h.ClusterCount, err = c.u32(); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	if h.URLPtrPos, err = readU64(r, c.pos); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	c.pos += 8
	if h.TitlePtrPos, err = readU64(r, c.pos); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	c.pos += 8
	if h.ClusterPtrPos, err = readU64(r, c.pos); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	c.pos += 8
	if h.MimeListPos, err = readU64(r, c.pos); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	c.pos += 8
	if h.MainPage, err = c.u32(); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	if h.LayoutPage, err = c.u32(); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	if h.ChecksumPos, err = readU64(r, c.pos); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}

	return h, nil
}

// readMimetypes reads the zero-terminated mimetype strings starting at
// offset, stopping at (and excluding) the empty-string sentinel.
func readMimetypes(r io.ReaderAt, offset int64, enc Encoding) ([]string, error) {
	c := newCursor(r, offset)
	var mimetypes []string
	for {
		s, err := c.cstring(enc)
		if err != nil {
			return nil, fmt.Errorf("%w: reading mimetype list: %v", ErrTruncated, err)
		}
		if s == "" {
			return mimetypes, nil
		}
		mimetypes = append(mimetypes, s)
	}
}
