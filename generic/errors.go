/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context; callers
  classify them with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Input errors      - malformed ranges, missing fields, unknown codes
  2. Validation errors - blocking business-rule violations (full list)
  3. Workflow errors   - state mismatches and wrong actors
  4. Ledger errors     - usage transaction persistence failures
  5. Lookup errors     - missing employees / requests

USAGE:
  if errors.Is(err, generic.ErrInvalidStateTransition) {
      // another approver got there first
  }

  var vf *generic.ValidationFailedError
  if errors.As(err, &vf) {
      render(vf.Errors, vf.Warnings)
  }

SEE ALSO:
  - api/errors.go: Maps these errors to HTTP status codes
  - timeoff/workflow.go: Raises the workflow errors
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
	// ErrInvalidRange is returned when a date interval is malformed.
	ErrInvalidRange = errors.New("invalid range")

	// ErrEndBeforeStart is returned when end <= start. It also matches
	// ErrInvalidRange.
	ErrEndBeforeStart = fmt.Errorf("%w: end must be after start", ErrInvalidRange)

	// ErrScheduleNotDated is returned when a work schedule carries no date.
	ErrScheduleNotDated = errors.New("work schedule has no date")

	// ErrValidationFailed is returned when one or more blocking rules fail.
	ErrValidationFailed = errors.New("validation failed")

	// ErrInvalidStateTransition is returned when an action targets a request
	// that is not in the expected state or level.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrNotCurrentApprover is returned when the actor is not the approver
	// the request is waiting on.
	ErrNotCurrentApprover = errors.New("actor is not the current approver")

	// ErrNotRequester is returned when someone other than the requester
	// tries to cancel.
	ErrNotRequester = errors.New("actor is not the requester")

	// ErrMissingRequiredField is returned when a required value is absent.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrUnknownLeaveType is returned for a leave-type code with no
	// catalog entry.
	ErrUnknownLeaveType = errors.New("unknown leave type")

	// ErrDuplicateIdempotencyKey is returned when a transaction with the same
	// idempotency key already exists.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrEntityNotFound is returned when a referenced employee doesn't exist.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrRequestNotFound is returned when a referenced leave request doesn't exist.
	ErrRequestNotFound = errors.New("request not found")

	// ErrDuplicateRecord is returned when a level already has an approval record.
	ErrDuplicateRecord = errors.New("approval record already exists for level")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RangeError describes a malformed interval.
type RangeError struct {
	Start string
	End   string
	Err   error // ErrInvalidRange or ErrEndBeforeStart
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%v (start=%q end=%q)", e.Err, e.Start, e.End)
}

func (e *RangeError) Unwrap() error {
	return e.Err
}

// MissingFieldError names the absent field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

func (e *MissingFieldError) Unwrap() error {
	return ErrMissingRequiredField
}

// ValidationFailedError carries every blocking violation, never a subset.
type ValidationFailedError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
}

func (e *ValidationFailedError) Unwrap() error {
	return ErrValidationFailed
}

// InvalidStateError provides details about a rejected transition.
type InvalidStateError struct {
	RequestID     string
	Status        string
	Level         int
	ExpectedLevel int
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state transition: request %s is %s at level %d (expected pending at level %d)",
		e.RequestID, e.Status, e.Level, e.ExpectedLevel)
}

func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidStateTransition
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrScheduleNotDated) ||
		errors.Is(err, ErrMissingRequiredField) ||
		errors.Is(err, ErrUnknownLeaveType) ||
		errors.Is(err, ErrValidationFailed)
}

// IsConflict returns true if the error is a lost race or duplicate write.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvalidStateTransition) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrDuplicateRecord)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound) ||
		errors.Is(err, ErrRequestNotFound)
}
