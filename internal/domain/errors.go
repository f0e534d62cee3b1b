// Package domain defines the error taxonomy shared by services and handlers.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports malformed or constraint-violating input. It is
// always surfaced to the caller and never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a validation error with a formatted message.
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports ids that did not resolve to any entity. It always
// carries the complete list of missing ids, not just the first.
type NotFoundError struct {
	Resource   string
	MissingIDs []string
}

func (e *NotFoundError) Error() string {
	if len(e.MissingIDs) == 1 {
		return fmt.Sprintf("%s %s not found", e.Resource, e.MissingIDs[0])
	}
	return fmt.Sprintf("%ss not found: %s", e.Resource, strings.Join(e.MissingIDs, ", "))
}

// NewNotFoundError creates a not-found error for the given resource and ids.
func NewNotFoundError(resource string, ids ...string) *NotFoundError {
	return &NotFoundError{Resource: resource, MissingIDs: ids}
}

// ProviderError reports an embedding or text-generation failure after all
// retries were exhausted. Callers decide whether it is fatal: bug creation
// degrades to null embedding/suggestions, explicit similarity requests fail.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps an upstream LLM failure.
func NewProviderError(op string, err error) *ProviderError {
	return &ProviderError{Op: op, Err: err}
}

// MergeFailedError reports a rolled-back merge transaction. The operation
// must be considered to have not happened.
type MergeFailedError struct {
	Err error
}

func (e *MergeFailedError) Error() string {
	return fmt.Sprintf("merge failed: %v", e.Err)
}

func (e *MergeFailedError) Unwrap() error {
	return e.Err
}

// Sanitize returns the message safe to show API clients. In production the
// internal detail is replaced with a generic category message; in development
// the full error text is returned for debugging.
func Sanitize(err error, production bool) string {
	if err == nil {
		return ""
	}
	if !production {
		return err.Error()
	}

	var ve *ValidationError
	var nf *NotFoundError
	var pe *ProviderError
	var mf *MergeFailedError
	switch {
	case errors.As(err, &ve):
		return "Validation failed"
	case errors.As(err, &nf):
		// Missing ids are caller-supplied input, safe to echo back.
		return err.Error()
	case errors.As(err, &pe):
		return "AI service temporarily unavailable"
	case errors.As(err, &mf):
		return "Merge failed, no changes were made"
	default:
		return "An error occurred"
	}
}
