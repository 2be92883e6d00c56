package booking

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnauthenticated   = errors.New("authentication required")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrConflict          = errors.New("stall is not available")
	ErrPaymentUnverified = errors.New("payment slip could not be verified")
	ErrNotFound          = errors.New("booking not found")
)

// ConflictError names the stalls that could not be claimed. Storage is set
// when the loss was detected by the unique index rather than by the pre-read.
type ConflictError struct {
	LockIDs []string
	Storage bool
}

func (e *ConflictError) Error() string {
	if e.Storage {
		return fmt.Sprintf("stalls taken concurrently: %s", strings.Join(e.LockIDs, ", "))
	}
	return fmt.Sprintf("stalls already booked: %s", strings.Join(e.LockIDs, ", "))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
