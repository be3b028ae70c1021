package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation failures.
var (
	ErrMissingCode     = errors.New("missing code")
	ErrMissingMakeID   = errors.New("missing make_id")
	ErrMissingDesc     = errors.New("missing description")
	ErrBadCodeFormat   = errors.New("code does not match DTC format")
	ErrBadSeverity     = errors.New("unknown severity")
	ErrBadPowertrain   = errors.New("unknown powertrain type")
	ErrUnknownMake     = errors.New("unknown manufacturer")
	ErrUnknownCountry  = errors.New("unknown country")
	ErrUnknownCategory = errors.New("unknown code category")
)

// ValidationError wraps a sentinel with field context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
