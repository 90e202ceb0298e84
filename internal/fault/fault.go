// Package fault defines the failure kinds reported back to the web view.
//
// Every failure a command can produce is recoverable at the call site and is
// delivered to the caller as a kind plus a message. Packages wrap their own
// errors in *Error so the kind survives fmt.Errorf("...: %w") chains.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a command failure.
type Kind string

const (
	// UnknownCommand means the caller requested an unregistered name.
	UnknownCommand Kind = "unknown_command"
	// NativeCallFailed means the native routine returned null or broke its contract.
	NativeCallFailed Kind = "native_call_failed"
	// EncodingError means the native routine returned bytes that are not UTF-8.
	EncodingError Kind = "encoding_error"
	// EmitFailed means an event could not be delivered to the target window.
	EmitFailed Kind = "emit_failed"
	// InvalidArgs means the invocation itself was malformed.
	InvalidArgs Kind = "invalid_args"
	// Internal covers recovered handler panics and unclassified errors.
	Internal Kind = "internal"
)

// NoOffset marks an Error that does not point into a byte sequence.
const NoOffset = -1

// Error is a classified failure.
type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "hello_world" or "emit navigate".
	Op string
	// Offset is the byte offset of the offending input, or NoOffset.
	Offset int
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Offset != NoOffset {
		msg += fmt.Sprintf(" at byte %d", e.Offset)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an *Error of the given kind without an offset.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Offset: NoOffset, Err: err}
}

// Newf is New with a formatted cause.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return New(kind, op, fmt.Errorf(format, args...))
}

// At returns an *Error pointing at a byte offset.
func At(kind Kind, op string, offset int, err error) *Error {
	return &Error{Kind: kind, Op: op, Offset: offset, Err: err}
}

// KindOf reports the kind of err. Unclassified non-nil errors are Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Internal
}

// OffsetOf returns the byte offset carried by err, if any.
func OffsetOf(err error) (int, bool) {
	var fe *Error
	if errors.As(err, &fe) && fe.Offset != NoOffset {
		return fe.Offset, true
	}
	return 0, false
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
