/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All error kinds in one place. Every validation failure a caller can
  trigger maps to exactly one sentinel, so controllers can translate
  errors to HTTP statuses with errors.Is and nothing else.

ERROR CATEGORIES:
  1. Submission validation - duration, notice, blocked period, overlap,
     eligibility, balance
  2. Transition errors - action not allowed in the current state or by
     the acting role
  3. Ledger errors - replayed mutation keys, missing rows

USAGE:
  if errors.Is(err, leave.ErrInsufficientBalance) { ... }

  Structured variants carry details and unwrap to their sentinel:

    var ib *leave.InsufficientBalanceError
    if errors.As(err, &ib) { ... ib.Available ... }
*/
package leave

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed input (bad dates, empty
	// fields) before any policy check runs.
	ErrValidation = errors.New("invalid request")

	// ErrInsufficientBalance is returned when a reservation exceeds the
	// available entitlement and the policy does not allow unpaid overflow.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrExceedsMaxDuration is returned when the request spans more
	// calendar days than the leave type allows.
	ErrExceedsMaxDuration = errors.New("exceeds maximum duration")

	// ErrBelowMinNotice is returned when the start date is closer than
	// the leave type's minimum notice period.
	ErrBelowMinNotice = errors.New("below minimum notice period")

	// ErrBlockedPeriod is returned when the range intersects an active
	// blocked period that applies to the leave type.
	ErrBlockedPeriod = errors.New("range falls in blocked period")

	// ErrOverlappingRequest is returned when the range intersects an
	// existing pending or approved request of the employee.
	ErrOverlappingRequest = errors.New("overlapping leave request")

	// ErrIneligible is returned when gender, tenure or the lifetime
	// occurrence cap excludes the employee from the leave type.
	ErrIneligible = errors.New("employee not eligible for leave type")

	// ErrAttachmentRequired is returned when the leave type or policy
	// document rules demand an attachment that was not supplied.
	ErrAttachmentRequired = errors.New("attachment required")

	// ErrInvalidTransition is returned when an action is not allowed in
	// the request's current state, or the acting role may not take it.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrNotFound is returned for unknown requests, entitlements,
	// employees, types or policies.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateMutation is returned when a ledger mutation key has
	// already been applied. Replays are expected; callers treat this as
	// a no-op or skip.
	ErrDuplicateMutation = errors.New("duplicate ledger mutation")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError reports the shortfall of a failed reservation.
type InsufficientBalanceError struct {
	EmployeeID  EmployeeID
	LeaveTypeID LeaveTypeID
	Year        int
	Available   Days
	Requested   Days
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %s, requested %s (%s/%s/%d)",
		e.Available, e.Requested, e.EmployeeID, e.LeaveTypeID, e.Year)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// OverlapError identifies the conflicting request.
type OverlapError struct {
	RequestID RequestID
	Status    RequestStatus
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("overlapping leave request %s (%s)", e.RequestID, e.Status)
}

func (e *OverlapError) Unwrap() error { return ErrOverlappingRequest }

// BlockedPeriodError identifies the blocking period.
type BlockedPeriodError struct {
	Name      string
	BlockType BlockType
}

func (e *BlockedPeriodError) Error() string {
	return fmt.Sprintf("range falls in blocked period %q (%s)", e.Name, e.BlockType)
}

func (e *BlockedPeriodError) Unwrap() error { return ErrBlockedPeriod }

// TransitionError reports why an action was rejected.
type TransitionError struct {
	RequestID RequestID
	Status    RequestStatus
	Action    string
	Role      Role
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s request %s in status %s as %s",
		e.Action, e.RequestID, e.Status, e.Role)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is a deterministic outcome of
// the caller's input or the request's state, not an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrExceedsMaxDuration) ||
		errors.Is(err, ErrBelowMinNotice) ||
		errors.Is(err, ErrBlockedPeriod) ||
		errors.Is(err, ErrOverlappingRequest) ||
		errors.Is(err, ErrIneligible) ||
		errors.Is(err, ErrAttachmentRequired) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrDuplicateMutation)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsDuplicateMutation returns true if the error is a replayed ledger
// mutation key.
func IsDuplicateMutation(err error) bool { return errors.Is(err, ErrDuplicateMutation) }
