// Package apperr defines the error kinds returned by repositories and pure
// components. Handlers translate them to HTTP responses via pkg/response.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a class, recording or account is absent.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique scope or a class invariant would be violated.
	ErrConflict = errors.New("conflict")
	// ErrStaleWrite is returned when a ban operation presents an obsolete op id.
	ErrStaleWrite = errors.New("operation id obsolete")
	// ErrValidation is returned for structurally invalid input.
	ErrValidation = errors.New("validation failed")
	// ErrUnsupported is returned when an operation is not allowed for the entity.
	ErrUnsupported = errors.New("unsupported")
)

// NotFound wraps ErrNotFound with a message.
func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

// Conflict wraps ErrConflict with a message.
func Conflict(format string, args ...any) error {
	return wrap(ErrConflict, format, args...)
}

// StaleWrite wraps ErrStaleWrite with a message.
func StaleWrite(format string, args ...any) error {
	return wrap(ErrStaleWrite, format, args...)
}

// Validation wraps ErrValidation with a message.
func Validation(format string, args ...any) error {
	return wrap(ErrValidation, format, args...)
}

// Unsupported wraps ErrUnsupported with a message.
func Unsupported(format string, args ...any) error {
	return wrap(ErrUnsupported, format, args...)
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
