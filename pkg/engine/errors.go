package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an error for reporting and
// caller-side retry decisions.
type ErrorClass string

const (
	// ErrorClassTransient indicates a temporary failure that may succeed if the
	// caller re-submits the operation in a new batch.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassRejected indicates the record store refused the operation
	// (non-2xx response).
	ErrorClassRejected ErrorClass = "rejected"

	// ErrorClassPermanent indicates a non-recoverable error such as invalid
	// input or a broken operation definition.
	ErrorClassPermanent ErrorClass = "permanent"
)

// EngineError represents a classified error with operation context.
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Operation is the operation ID that caused the error, if applicable.
	Operation string `json:"operation,omitempty"`

	// Collection is the record-store collection involved, if applicable.
	Collection string `json:"collection,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s (operation=%s): %s", e.Class, e.Message, e.Operation, e.unwrapMessage())
	}
	return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.unwrapMessage())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

func (e *EngineError) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassTransient, Message: message, Err: err}
}

// NewRejectedError creates a new rejected error.
func NewRejectedError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassRejected, Message: message, Err: err}
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassPermanent, Message: message, Err: err}
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operationID string) *EngineError {
	e.Operation = operationID
	return e
}

// WithCollection adds collection context to an error.
func (e *EngineError) WithCollection(collection string) *EngineError {
	e.Collection = collection
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassTransient
	}
	return false
}

// IsRejected returns true if the error is classified as rejected.
func IsRejected(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassRejected
	}
	return false
}

// IsPermanent returns true if the error is classified as permanent.
func IsPermanent(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassPermanent
	}
	return false
}

// Common error codes.
const (
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeStoreRejected  = "STORE_REJECTED"
	ErrCodeTransport      = "TRANSPORT_ERROR"
	ErrCodeInternal       = "INTERNAL_ERROR"
	ErrCodeMalformedBatch = "MALFORMED_BATCH"
)
