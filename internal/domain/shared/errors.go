// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a workflow operation matches exactly one
// of these through errors.Is().
var (
	ErrNotFound            = errors.New("not found")
	ErrWrongState          = errors.New("wrong state")
	ErrForbidden           = errors.New("forbidden")
	ErrValidation          = errors.New("validation failed")
	ErrLocked              = errors.New("locked")
	ErrIncompleteDocuments = errors.New("incomplete documents")
	ErrConflict            = errors.New("conflict")
)

// Non-workflow errors used by the boundary layers.
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "application", "document"
	Op      string // Operation that failed, e.g., "InitialReview", "Upload"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Application workflow errors
var (
	ErrApplicationNotFound = NewDomainError("application", "Find", ErrNotFound, "application not found")
	ErrApplicationLocked   = NewDomainError("application", "Submit", ErrLocked, "application is locked after acceptance")
	ErrApplicationExists   = NewDomainError("application", "Create", ErrConflict, "application already exists for this student")
	ErrStaleApplication    = NewDomainError("application", "Save", ErrConflict, "application was modified concurrently")
	ErrFeedbackRequired    = NewDomainError("application", "Review", ErrValidation, "rejection feedback is required")
	ErrNoFilesProvided     = NewDomainError("document", "Upload", ErrValidation, "no files were provided")
	ErrInvalidDocKey       = NewDomainError("document", "Validate", ErrValidation, "invalid document key")
	ErrInvalidDecision     = NewDomainError("application", "Validate", ErrValidation, "invalid review decision")
	ErrNotEntitled         = NewDomainError("application", "Authorize", ErrForbidden, "caller is not entitled to act on this application")
	ErrNoteRequired        = NewDomainError("application", "AddNote", ErrValidation, "note text is required")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflict checks if the error reports a lost optimistic-concurrency race.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
