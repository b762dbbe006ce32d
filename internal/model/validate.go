package model

import (
	"fmt"
	"strings"
)

// MaxPayloadBytes bounds the serialized payload size accepted at enqueue.
// Payloads are expected to arrive pre-compressed by the producer.
const MaxPayloadBytes = 256 * 1024

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ValidateEnqueue checks enqueue inputs for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the inputs are valid.
func ValidateEnqueue(typ EventType, payload []byte, priority Priority) error {
	var ve ValidationError

	if !typ.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "type",
			Message: fmt.Sprintf("invalid value %q", typ),
		})
	}

	if !priority.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "priority",
			Message: fmt.Sprintf("invalid value %q", priority),
		})
	}

	if len(payload) > MaxPayloadBytes {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "payload",
			Message: fmt.Sprintf("exceeds %d bytes (got %d)", MaxPayloadBytes, len(payload)),
		})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
