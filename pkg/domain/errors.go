package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced record does not exist.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ErrorKind classifies storage failures so callers can choose between
// retrying and re-authenticating.
type ErrorKind string

// Storage failure kinds.
const (
	// KindUnavailable marks transient failures; the call may be retried.
	KindUnavailable ErrorKind = "unavailable"
	// KindUnauthenticated marks session or credential failures; retrying will not help.
	KindUnauthenticated ErrorKind = "unauthenticated"
	// KindInternal marks everything else.
	KindInternal ErrorKind = "internal"
)

// StoreError wraps a failure reported by the storage collaborator.
type StoreError struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is transient.
func (e *StoreError) Retryable() bool { return e.Kind == KindUnavailable }

// NewStoreError builds a StoreError; a nil err yields nil.
func NewStoreError(op string, kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Kind: kind, Err: err}
}

// IsRetryable reports whether err carries a transient storage failure.
func IsRetryable(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Retryable()
}

// IsUnauthenticated reports whether err carries an authentication failure.
func IsUnauthenticated(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == KindUnauthenticated
}
