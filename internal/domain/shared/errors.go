// Package shared contains common domain types, errors and events
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"context"
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation    = errors.New("validation error")
	ErrInvalidID     = errors.New("invalid ID")
	ErrInvalidInput  = errors.New("invalid input")
	ErrNegativeValue = errors.New("value cannot be negative")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrAlreadyProcessed = errors.New("already processed")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")

	// Invariant errors. Never repaired silently.
	ErrConsistencyViolation = errors.New("consistency violation")

	// Infrastructure errors
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "task", "quest", "ledger"
	Op      string // Operation that failed, e.g., "Verify", "ApplyContribution"
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

// Task domain errors
var (
	ErrTaskNotFound         = NewDomainError("task", "Find", ErrNotFound, "task not found")
	ErrTaskProgressNotFound = NewDomainError("task", "FindProgress", ErrNotFound, "task progress not found")
	ErrTaskTeacherMismatch  = NewDomainError("task", "CheckOwner", ErrUnauthorized, "task is assigned to another teacher")
	ErrTaskAlreadyVerified  = NewDomainError("task", "Verify", ErrAlreadyProcessed, "task already verified")
	ErrTaskAlreadyRejected  = NewDomainError("task", "Reject", ErrAlreadyProcessed, "task already rejected")
	ErrTaskNotPending       = NewDomainError("task", "Transition", ErrAlreadyProcessed, "task is not pending verification")
	ErrInvalidContribution  = NewDomainError("task", "Validate", ErrNegativeValue, "contribution amount cannot be negative")
	ErrNoEvidenceFiles      = NewDomainError("task", "AttachEvidence", ErrInvalidInput, "no evidence files given")
)

// Quest domain errors
var (
	ErrQuestNotFound         = NewDomainError("quest", "Find", ErrNotFound, "quest not found")
	ErrQuestProgressNotFound = NewDomainError("quest", "FindProgress", ErrConsistencyViolation, "no quest progress for class")
	ErrNothingToRegenerate   = NewDomainError("quest", "Regenerate", ErrInvalidState, "all class quests are completed")
	ErrClassQuestsExist      = NewDomainError("quest", "Seed", ErrAlreadyExists, "class already has active quests")
	ErrInvalidQuestTarget    = NewDomainError("quest", "Validate", ErrInvalidInput, "quest target must be positive")
	ErrRegenerationLocked    = NewDomainError("quest", "Regenerate", ErrServiceUnavailable, "class quests are being regenerated")
)

// Ledger domain errors
var (
	ErrAlreadyAwarded  = NewDomainError("ledger", "Award", ErrAlreadyExists, "points already awarded")
	ErrStudentNotFound = NewDomainError("ledger", "FindStudent", ErrNotFound, "student not found")
	ErrNegativePoints  = NewDomainError("ledger", "Validate", ErrNegativeValue, "points cannot be negative")
)

// Asset errors
var (
	ErrAssetStoreUnavailable = NewDomainError("assets", "GetFileURL", ErrServiceUnavailable, "asset store is unavailable")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNegativeValue)
}

// IsStorageUnavailable reports a transient datastore failure.
func IsStorageUnavailable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

// IsRetryable checks if the operation can be retried by the caller.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}

// StorageError wraps a datastore failure. Deadlines and cancellations are
// reported as ErrStorageUnavailable, everything else is returned as is.
func StorageError(domain, op string, err error) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return WrapError(domain, op, ErrStorageUnavailable, "datastore call timed out", err)
	}
	return err
}
