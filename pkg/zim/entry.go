package zim

import (
	"fmt"
	"io"
)

// Entry is a tagged directory entry: either an article (IsRedirect==false)
// carrying a (clusterNumber, blobNumber) pair, or a redirect carrying the
// index of its target. Both variants share the mimetype/parameterLen/
// namespace/revision prefix and the trailing url/title strings.
type Entry struct {
	Index       uint32
	MimeType    uint16 // raw mimetype index; RedirectMimeType if IsRedirect
	ParamLen    uint8
	Namespace   byte
	Revision    uint32
	IsRedirect  bool
	ClusterNum  uint32 // valid when !IsRedirect
	BlobNum     uint32 // valid when !IsRedirect
	RedirectIdx uint32 // valid when IsRedirect
	URL         string
	Title       string
}

// DisplayTitle returns Title, falling back to URL when the title is empty
// (consumers treat an empty title as equal to the URL, per spec).
func (e Entry) DisplayTitle() string {
	if e.Title == "" {
		return e.URL
	}
	return e.Title
}

// FullURL returns the canonical "{namespace}/{url}" lookup/sort key.
func FullURL(namespace byte, url string) string {
	return string(namespace) + "/" + url
}

// readDirectoryEntry decodes the directory entry at offset: peeks the
// mimetype field to discriminate article vs. redirect, decodes the
// matching fixed-width prefix, then the trailing url and title strings.
func readDirectoryEntry(r io.ReaderAt, offset int64, enc Encoding) (Entry, error) {
	c := newCursor(r, offset)

	mimetype, err := c.u16()
	if err != nil {
		return Entry{}, fmt.Errorf("%w: reading entry mimetype: %v", ErrTruncated, err)
	}

	paramLen, err := c.byte()
	if err != nil {
		return Entry{}, fmt.Errorf("%w: reading entry paramLen: %v", ErrTruncated, err)
	}

	namespace, err := c.byte()
	if err != nil {
		return Entry{}, fmt.Errorf("%w: reading entry namespace: %v", ErrTruncated, err)
	}

	revision, err := c.u32()
	if err != nil {
		return Entry{}, fmt.Errorf("%w: reading entry revision: %v", ErrTruncated, err)
	}

	e := Entry{
		MimeType:  mimetype,
		ParamLen:  paramLen,
		Namespace: namespace,
		Revision:  revision,
	}

	if mimetype == RedirectMimeType {
		e.IsRedirect = true
		if e.RedirectIdx, err = c.u32(); err != nil {
			return Entry{}, fmt.Errorf("%w: reading redirectIndex: %v", ErrTruncated, err)
		}
	} else {
		if e.ClusterNum, err = c.u32(); err != nil {
			return Entry{}, fmt.Errorf("%w: reading clusterNumber: %v", ErrTruncated, err)
		}
		if e.BlobNum, err = c.u32(); err != nil {
			return Entry{}, fmt.Errorf("%w: reading blobNumber: %v", ErrTruncated, err)
		}
	}

	if e.URL, err = c.cstring(enc); err != nil {
		return Entry{}, fmt.Errorf("%w: reading url: %v", ErrTruncated, err)
	}
	if e.Title, err = c.cstring(enc); err != nil {
		return Entry{}, fmt.Errorf("%w: reading title: %v", ErrTruncated, err)
	}

	return e, nil
}
