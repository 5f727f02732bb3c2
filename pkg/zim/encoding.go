package zim

import (
	"strings"
	"unicode/utf8"
)

// Encoding decodes the raw bytes of a zero-terminated string field into a Go
// string. Decode must never fail: malformed input is replaced, not raised,
// per spec (archive strings are trusted-but-not-verified).
type Encoding struct {
	Decode func([]byte) string
}

// UTF8 is the default archive encoding. Invalid byte sequences are dropped
// from the result rather than rejected, matching the
// "errors=ignore"-style leniency of the original decoder this core traces
// to (zimply.py's read_zero_terminated uses errors="ignore"); Go's
// stdlib equivalent is strings.ToValidUTF8 over the raw bytes.
var UTF8 = Encoding{
	Decode: func(b []byte) string {
		s := string(b)
		if utf8.ValidString(s) {
			return s
		}
		return strings.ToValidUTF8(s, "")
	},
}
