package crdt

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError
	ErrValidation = errors.New("validation error")

	// ErrIDMismatch indicates a merge of two different entities
	ErrIDMismatch = errors.New("entity ids differ")

	// ErrSchemaMismatch indicates a merge of entities with different layouts.
	// Callers must upgrade the older side first.
	ErrSchemaMismatch = errors.New("entity schema versions differ")
)

// ValidationError describes a malformed entity, register or value.
type ValidationError struct {
	Err      error
	EntityID string
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	msg := "invalid entity"
	if e.EntityID != "" {
		msg += " " + e.EntityID
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" field %q", e.Field)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is makes errors.Is(err, ErrValidation) true for every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(entityID, field, reason string, err error) *ValidationError {
	return &ValidationError{EntityID: entityID, Field: field, Reason: reason, Err: err}
}
