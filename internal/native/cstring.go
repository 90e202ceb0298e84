package native

import (
	"errors"
	"unicode/utf8"
	"unsafe"

	"github.com/mattjoyce/tokenforge/internal/fault"
)

// DefaultMaxTextBytes bounds how far a read scans for the terminator.
const DefaultMaxTextBytes = 1 << 20

const opRead = "read native text"

var (
	// ErrNullPointer is returned when the routine signals absence of data.
	ErrNullPointer = errors.New("native routine returned a null pointer")
	// ErrUnterminated is returned when no terminator is found within the scan bound.
	ErrUnterminated = errors.New("no NUL terminator within scan bound")
	// ErrInvalidUTF8 is returned when the bytes are not valid UTF-8.
	ErrInvalidUTF8 = errors.New("invalid UTF-8")
)

// ReadCString copies the NUL-terminated sequence at p into a Go string.
//
// p is a borrowed view: it is read only inside this function and is not
// retained. A nil p is never dereferenced. At most limit bytes are scanned;
// limit <= 0 selects DefaultMaxTextBytes.
func ReadCString(p unsafe.Pointer, limit int) (string, error) {
	if p == nil {
		return "", fault.New(fault.NativeCallFailed, opRead, ErrNullPointer)
	}
	if limit <= 0 {
		limit = DefaultMaxTextBytes
	}

	n := 0
	for n < limit && *(*byte)(unsafe.Add(p, n)) != 0 {
		n++
	}
	if n == limit {
		return "", fault.Newf(fault.NativeCallFailed, opRead, "%w (%d bytes)", ErrUnterminated, limit)
	}

	return decodeText(unsafe.Slice((*byte)(p), n))
}

// decodeText validates b as UTF-8 and returns an owned copy.
// Nothing is returned for invalid input, so a half-decoded value cannot leak.
func decodeText(b []byte) (string, error) {
	if off := invalidUTF8Offset(b); off >= 0 {
		return "", fault.At(fault.EncodingError, opRead, off, ErrInvalidUTF8)
	}
	return string(b), nil
}

// invalidUTF8Offset returns the offset of the first byte that does not start
// a valid UTF-8 sequence, or -1.
func invalidUTF8Offset(b []byte) int {
	if utf8.Valid(b) {
		return -1
	}
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return -1
}
