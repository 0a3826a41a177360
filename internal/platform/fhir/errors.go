package fhir

import (
	"errors"
	"fmt"
)

// ErrMissingRequiredField is returned (wrapped in a *FieldError) when a
// canonical record lacks a field needed to build its resource.
var ErrMissingRequiredField = errors.New("missing required field")

// FieldError names the record type and field that blocked a projection.
type FieldError struct {
	Resource string
	Field    string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s %s", e.Resource, ErrMissingRequiredField, e.Field)
}

func (e *FieldError) Unwrap() error { return ErrMissingRequiredField }

// MissingField returns a *FieldError for resource.field.
func MissingField(resource, field string) error {
	return &FieldError{Resource: resource, Field: field}
}

// AsFieldError extracts a *FieldError from err, if any.
func AsFieldError(err error) (*FieldError, bool) {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
