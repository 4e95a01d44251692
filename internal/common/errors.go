// Package common holds the sentinel errors shared by the storage, service and
// transport layers. Callers match them with errors.Is / errors.As.
package common

import (
	"errors"
	"fmt"
)

var (
	// storage errors
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")

	// auth errors
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrWrongPassword      = errors.New("wrong old password")
	ErrResetTokenInvalid  = errors.New("reset token is invalid or has expired")

	ErrValidation = errors.New("validation error")
)

// DuplicateError reports which unique field collided with another account.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s already exists", e.Field)
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError is a shorthand used by input checks.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
