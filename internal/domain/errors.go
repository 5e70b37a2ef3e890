package domain

import (
	"errors"
	"fmt"
)

// -----------------------------
// NotFoundError
// -----------------------------

type NotFoundError struct {
	Resource string
	Key      string
}

func NewNotFoundError(resource, key string) *NotFoundError {
	return &NotFoundError{Resource: resource, Key: key}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// -----------------------------
// AlreadyExistsError
// -----------------------------

type AlreadyExistsError struct {
	Resource string
	Key      string
}

func NewAlreadyExistsError(resource, key string) *AlreadyExistsError {
	return &AlreadyExistsError{Resource: resource, Key: key}
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Resource, e.Key)
}

func IsAlreadyExists(err error) bool {
	var target *AlreadyExistsError
	return errors.As(err, &target)
}

// -----------------------------
// ValidationError
// -----------------------------

type ValidationError struct {
	Message string
	Fields  map[string]string
	Cause   error
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		Message: message,
	}
}

func NewValidationErrorWithFields(message string, fields map[string]string) *ValidationError {
	return &ValidationError{
		Message: message,
		Fields:  fields,
	}
}

func NewValidationErrorWithCause(message string, cause error) *ValidationError {
	return &ValidationError{
		Message: message,
		Cause:   cause,
	}
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("validation error: %s: %v", e.Message, e.Cause)
	}
	if len(e.Fields) > 0 {
		return fmt.Sprintf("validation error: %s: %v", e.Message, e.Fields)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// -----------------------------
// StoreUnavailableError
// -----------------------------

// StoreUnavailableError wraps a failure of the authoritative store.
// Callers may retry the whole operation.
type StoreUnavailableError struct {
	Op  string
	Key string
	Err error
}

func NewStoreUnavailableError(op, key string, err error) *StoreUnavailableError {
	return &StoreUnavailableError{Op: op, Key: key, Err: err}
}

func (e *StoreUnavailableError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store unavailable: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store unavailable: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// Retryable is always true: the store, not the request, failed.
func (e *StoreUnavailableError) Retryable() bool {
	return true
}

func IsStoreUnavailable(err error) bool {
	var target *StoreUnavailableError
	return errors.As(err, &target)
}
