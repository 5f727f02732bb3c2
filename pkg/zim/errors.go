package zim

import "errors"

// Error kinds from the spec's error taxonomy. NotFound is deliberately
// absent here: a lookup miss is represented as a null return, not an error,
// so that corruption (these) can be told apart from an absent-but-valid key.
var (
	ErrMalformedHeader      = errors.New("zim: malformed header")
	ErrTruncated            = errors.New("zim: truncated read")
	ErrUnsupportedCompression = errors.New("zim: unsupported cluster compression")
	ErrIndexOutOfRange      = errors.New("zim: directory index out of range")
	ErrBlobOutOfRange       = errors.New("zim: blob index out of range")
	ErrRedirectCycle        = errors.New("zim: redirect chain exceeds bounded depth")
)
