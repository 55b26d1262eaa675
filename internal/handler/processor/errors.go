package processor

import (
	"fmt"

	"github.com/pkg/errors"
)

// InternalError reports a fault of the chain itself rather than of the notification.
type InternalError struct {
	Cause error
}

func (m *InternalError) Error() string {
	return fmt.Sprintf("internal error: %v", m.Cause)
}

func (m *InternalError) Unwrap() error {
	return m.Cause
}

// NewInternalError creates an InternalError from a format string.
func NewInternalError(format string, args ...any) error {
	return &InternalError{Cause: errors.Errorf(format, args...)}
}

// WrapInternalError wraps err in an InternalError.
func WrapInternalError(err error, message string) error {
	return &InternalError{Cause: errors.Wrap(err, message)}
}
