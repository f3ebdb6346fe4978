// Package shared contains common domain errors used across the roster and
// grouping packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation           = errors.New("validation error")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMalformedRecord      = errors.New("malformed record")
	ErrInvalidFormat        = errors.New("invalid format")

	// State errors
	ErrInvalidState = errors.New("invalid state")
	ErrIncomplete   = errors.New("incomplete")

	// Internal invariant violations
	ErrInternal = errors.New("internal error")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "roster", "grouping"
	Op      string // Operation that failed, e.g., "Plan", "Encode"
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

// Roster domain errors
var (
	ErrRosterNotFound   = NewDomainError("roster", "Find", ErrNotFound, "class roster not found")
	ErrRosterIncomplete = NewDomainError("roster", "CheckComplete", ErrIncomplete, "not all students have submitted their forms")
	ErrEmptyStudentID   = NewDomainError("roster", "Validate", ErrMalformedRecord, "student id is required")
	ErrEmptyClassCode   = NewDomainError("roster", "Validate", ErrInvalidInput, "class code is required")
	ErrGenerationLocked = NewDomainError("roster", "Generate", ErrInvalidState, "groups for this class are already being generated")
)

// Grouping domain errors
var (
	ErrEmptyRoster     = NewDomainError("grouping", "Validate", ErrInvalidConfiguration, "at least one student is required")
	ErrUnknownStrategy = NewDomainError("grouping", "ParseStrategy", ErrInvalidConfiguration, "unknown assignment strategy")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidConfiguration checks if the request was rejected before anything
// was computed.
func IsInvalidConfiguration(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration)
}

// IsMalformedRecord checks if an input record violated the structural contract.
func IsMalformedRecord(err error) bool {
	return errors.Is(err, ErrMalformedRecord)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrMalformedRecord) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsInvalidState checks if the operation conflicts with the current state.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsIncomplete checks if the operation was refused because input is still being collected.
func IsIncomplete(err error) bool {
	return errors.Is(err, ErrIncomplete)
}
