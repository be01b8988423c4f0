package state

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is the only rejection callers see for Consume.
	ErrInvalidState = errors.New("state: invalid state")

	// ErrRedirectNotAllowed is returned when a redirect hint fails the allowlist.
	ErrRedirectNotAllowed = errors.New("state: redirect target not allowed")

	// ErrGenerate is returned when the random source fails.
	ErrGenerate = errors.New("state: failed to generate token")
)

// Rejection details. These never leave the process; they exist for logs.
var (
	ErrNotFound        = errors.New("not found")
	ErrExpired         = errors.New("expired")
	ErrAlreadyConsumed = errors.New("already consumed")
)

// RejectError carries the internal reason a state was rejected.
// errors.Is matches both ErrInvalidState and the reason.
type RejectError struct {
	Reason error
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidState, e.Reason)
}

func (e *RejectError) Unwrap() []error {
	return []error{ErrInvalidState, e.Reason}
}

func reject(reason error) error {
	return &RejectError{Reason: reason}
}
