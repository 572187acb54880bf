/*
errors.go - Centralized error types for the record layer and the engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Validation errors - rejected before anything is written
  2. Lookup errors     - referenced record does not exist
  3. Write errors      - a multi-record operation failed part way
  4. Contention errors - per-customer lock not obtained

USAGE:
    if errors.Is(err, generic.ErrValidation) {
        // 400
    }
    var pf *generic.PartialFailureError
    if errors.As(err, &pf) && !pf.Compensated {
        // manual reconciliation needed, see pf.Applied
    }

SEE ALSO:
  - unitofwork.go: produces PartialFailureError
  - trading/settlement.go: produces ValidationError
  - api/handlers.go: maps errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("record not found")

	// ErrValidation is returned when input is rejected before any write.
	ErrValidation = errors.New("validation failed")

	// ErrPartialFailure is returned when a multi-record write failed after
	// some of its writes had already been applied.
	ErrPartialFailure = errors.New("operation partially applied")

	// ErrLockNotObtained is returned when another settlement for the same
	// customer holds the lock.
	ErrLockNotObtained = errors.New("could not obtain lock")

	// ErrConcurrentModification is returned when a stored record changed
	// between read and write.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrUnsupportedValue is returned when a field value has no canonical type.
	ErrUnsupportedValue = errors.New("unsupported field value")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing record.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ValidationError describes rejected input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError is a shorthand constructor.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// PartialFailureError reports a multi-record write that failed part way.
//
// Applied lists the writes that had succeeded before Cause. Compensated is
// true when every applied write was undone; when false, CompensationErr holds
// the first undo failure and the records named in Applied need manual review.
type PartialFailureError struct {
	Operation       string
	Cause           error
	Applied         []Step
	Compensated     bool
	CompensationErr error
}

func (e *PartialFailureError) Error() string {
	steps := make([]string, len(e.Applied))
	for i, s := range e.Applied {
		steps[i] = s.String()
	}
	state := "compensated"
	if !e.Compensated {
		state = "NOT compensated"
	}
	return fmt.Sprintf("%s failed after %d write(s) [%s], %s: %v",
		e.Operation, len(e.Applied), strings.Join(steps, ", "), state, e.Cause)
}

func (e *PartialFailureError) Unwrap() []error {
	return []error{ErrPartialFailure, e.Cause}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrLockNotObtained)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrUnsupportedValue)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
