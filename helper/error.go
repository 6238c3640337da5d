package helper

import (
	"fmt"
)

// Error wraps an underlying error with the operation that failed.
type Error struct {
	Operation string
	Original  error
}

// NewError returns an error of the form "<operation>: <err>".
// A nil err yields nil so callers can wrap unconditionally.
func NewError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{
		Operation: operation,
		Original:  err,
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Original)
}

// Unwrap exposes the original error to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Original
}
