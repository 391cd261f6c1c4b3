package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// It is usually wrapped by a *ValidationError carrying the field and message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidPriority is returned when a priority is not one of low, medium, high.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrEmptyTitle is returned when a task title is empty after trimming.
	ErrEmptyTitle = errors.New("title cannot be empty")

	// ErrEmptyUserID is returned when a task has no owning identity.
	ErrEmptyUserID = errors.New("task user ID cannot be empty")

	// ErrUnauthorized is returned when an operation requires an authenticated identity.
	ErrUnauthorized = errors.New("unauthorized operation")
)

// ValidationError describes a single invalid field. Message is safe to show
// to API clients.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Field, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap returns the specific cause so errors.Is works against it.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a ValidationError for field with a client-facing message.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
