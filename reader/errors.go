package reader

import (
	"errors"
	"fmt"
)

// Sentinel errors for documents the reader cannot interpret.
var (
	ErrCorrupted   = errors.New("corrupted document")
	ErrEncrypted   = errors.New("encrypted document")
	ErrUnsupported = errors.New("unsupported feature")
)

// Error records a failed reader operation and the cause.
type Error struct {
	Op  string // operation name, e.g. "Parse", "Text"
	Err error  // underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reader.%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("reader.%s: unknown error", e.Op)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, err error) *Error {
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	return &Error{Op: op, Err: err}
}

// corrupt formats a structural error that wraps ErrCorrupted.
func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorrupted, fmt.Sprintf(format, args...))
}
