package dml

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed builder input detected before any
// executor dispatch: a bad sort direction, a missing comparison value, a
// malformed mutation payload, or an update/delete with no WHERE conditions.
// Always recoverable by the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s", e.Message)
}

// NewValidationError creates a ValidationError with a formatted message.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
