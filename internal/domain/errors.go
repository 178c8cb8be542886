package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying every failure the service surfaces. Handlers
// map these to HTTP statuses at the transport edge; nothing below the edge
// knows about status codes.
var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("resource not found")
	ErrIllegalState   = errors.New("operation not permitted in current state")
	ErrRepository     = errors.New("repository unavailable")
	ErrUnableToNotify = errors.New("unable to notify downstream system")
	ErrServer         = errors.New("unexpected server error")
)

// ErrDuplicateResource signals that a concurrent writer already created the
// resource. Services catch it and fall back to the already-stored copy.
var ErrDuplicateResource = errors.New("resource already exists")

// NewValidationError wraps ErrValidation with a formatted reason.
func NewValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NewNotFoundError wraps ErrNotFound with a formatted reason.
func NewNotFoundError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// NewIllegalStateError wraps ErrIllegalState with a formatted reason.
func NewIllegalStateError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIllegalState, fmt.Sprintf(format, args...))
}

// StorageSystemError is a rejection from the physical storage system,
// carrying the system's own error code and text for diagnostics.
type StorageSystemError struct {
	Code int
	Text string
}

func (e *StorageSystemError) Error() string {
	return fmt.Sprintf("storage system rejected call: code=%d text=%q", e.Code, e.Text)
}

// NewStorageSystemError builds a StorageSystemError from the wire pair.
func NewStorageSystemError(code int, text string) *StorageSystemError {
	return &StorageSystemError{Code: code, Text: text}
}

// AsStorageSystemError unwraps a StorageSystemError if err carries one.
func AsStorageSystemError(err error) (*StorageSystemError, bool) {
	var storageErr *StorageSystemError
	if errors.As(err, &storageErr) {
		return storageErr, true
	}

	return nil, false
}
