package store

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error
type Kind int

const (
	// KindIO covers open, create, read, write and sync failures
	KindIO Kind = iota + 1
	// KindCorruption is a malformed frame under the error strategy
	KindCorruption
	// KindClosed is an operation on a closed component
	KindClosed
	// KindArgument is an invalid configuration
	KindArgument
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io failure"
	case KindCorruption:
		return "data corruption detected"
	case KindClosed:
		return "resource is closed"
	case KindArgument:
		return "invalid argument"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the error type returned by engine components
type Error struct {
	Kind Kind
	Op   string // Operation that failed, e.g. "write", "open"
	Path string // File involved, if any
	Err  error  // Underlying cause
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by kind. A closed-resource error is also an
// I/O-kind error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Path != "" || t.Err != nil {
		return false
	}
	return e.Kind == t.Kind || (t.Kind == KindIO && e.Kind == KindClosed)
}

// Errors
var (
	ErrIO              = &Error{Kind: KindIO}
	ErrCorruption      = &Error{Kind: KindCorruption}
	ErrClosed          = &Error{Kind: KindClosed}
	ErrInvalidArgument = &Error{Kind: KindArgument}
)

// NewError wraps err with a kind, operation and path
func NewError(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// IOError wraps err as an I/O failure unless it already carries a kind
func IOError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return NewError(KindIO, op, path, err)
}

// ArgumentError reports an invalid configuration value
func ArgumentError(format string, args ...interface{}) error {
	return NewError(KindArgument, "", "", fmt.Errorf(format, args...))
}

// ErrorKind returns the kind of err, or 0 when err is not an engine error
func ErrorKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
