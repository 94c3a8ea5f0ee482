package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the engine matches exactly one of these
// through errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrPrecondition      = errors.New("precondition failed")
)

// ValidationError reports a rejected input. Field names the offending input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFoundError reports a missing game, round or word.
type NotFoundError struct {
	Kind string // "game", "round", "word", "current game"
	ID   string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Kind + " not found"
	}
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ResourceExhaustedError reports that a resource could not satisfy a request,
// e.g. the catalog has no words for a difficulty.
type ResourceExhaustedError struct {
	Resource string
	Detail   string
}

func (e *ResourceExhaustedError) Error() string {
	return fmt.Sprintf("no %s available: %s", e.Resource, e.Detail)
}

func (e *ResourceExhaustedError) Is(target error) bool {
	return target == ErrResourceExhausted
}

// PreconditionError reports an operation invoked in the wrong game status.
type PreconditionError struct {
	Op     string
	Status GameStatus
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("cannot %s while game is in %q status", e.Op, e.Status)
}

func (e *PreconditionError) Is(target error) bool {
	return target == ErrPrecondition
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
