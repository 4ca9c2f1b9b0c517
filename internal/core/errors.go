package core

import (
	"errors"
	"fmt"
)

// Error kinds. Every typed error below unwraps to exactly one of these so
// callers can branch with errors.Is without knowing the concrete type.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrPersistence  = errors.New("persistence failed")
	ErrPrecondition = errors.New("precondition failed")

	ErrNoIdentity   = errors.New("no active identity")
	ErrNotConfirmed = errors.New("deletion not confirmed")
)

// ValidationError reports bad input. State is left unchanged.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}

// NotFoundError reports an id absent from the current collection.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// PersistenceError reports a failed store operation. The mutation that
// triggered it was not committed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// PreconditionError reports an operation refused before it started.
type PreconditionError struct {
	Err error
}

func (e *PreconditionError) Error() string {
	return "precondition failed: " + e.Err.Error()
}

func (e *PreconditionError) Unwrap() []error {
	return []error{ErrPrecondition, e.Err}
}
