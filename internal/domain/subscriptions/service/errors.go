package service

import (
	"errors"
	"fmt"
)

// Sentinels matched by the typed errors below via errors.Is.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("subscription not found")
	ErrPersistence = errors.New("persistence failed")

	// ErrUnreadableStorage is the cause of writes refused while the stored
	// collection cannot be read.
	ErrUnreadableStorage = errors.New("stored subscriptions could not be read")
)

// ValidationError reports bad input to a store operation.
type ValidationError struct {
	Op     string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("subscriptions.%s: invalid %s: %s", e.Op, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports an operation on an unknown id.
type NotFoundError struct {
	Op string
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("subscriptions.%s: subscription %q not found", e.Op, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// PersistenceError reports a failed blob write. The in-memory change it
// accompanies has already been applied.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("subscriptions.%s: persist %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }
