/*
entitlement.go - The entitlement ledger row and its audit trail

PURPOSE:
  One Entitlement row per (employee, leaveType, year) holds the balance
  components. Every mutation of a row is guarded, keyed and audited:

  - Guarded:  the store applies deltas with a conditional update whose
              WHERE clause re-checks the invariant, so two concurrent
              writers cannot both succeed past the available balance.
  - Keyed:    each mutation carries a unique idempotency key; replays
              are detected by the key table, not by the caller.
  - Audited:  every applied mutation writes an Adjustment row in the
              same transaction.

BALANCE INVARIANT:
  available = accruedRounded + carryForward + manual - taken - pending
  available >= 0 and pending >= 0 at all times.

SEE ALSO:
  - ledger.go:       The service that builds mutations
  - store/sqlite:    The guarded-update implementation
*/
package leave

import (
	"context"
	"time"
)

// =============================================================================
// ENTITLEMENT ROW
// =============================================================================

// Entitlement is the balance row for one employee, leave type and year.
// All components are non-negative except Manual, which may be negative
// (corrections).
type Entitlement struct {
	EmployeeID  EmployeeID
	LeaveTypeID LeaveTypeID
	Year        int

	// AccruedActual is the un-rounded sum of monthly accruals.
	AccruedActual Days
	// AccruedRounded is AccruedActual after the policy rounding rule;
	// this is the bookable figure.
	AccruedRounded Days
	// CarryForward is the capped balance carried from the prior year.
	CarryForward Days
	// CarryForwardExpiry is when carried days stop being usable.
	// Zero time means no expiry.
	CarryForwardExpiry time.Time
	// Manual is the net of manual HR adjustments. May be negative.
	Manual Days
	// Taken is the total committed (consumed) days.
	Taken Days
	// Pending is the total reserved by not-yet-finalized requests.
	Pending Days

	UpdatedAt time.Time
}

// Available is the balance a new reservation may draw on.
func (e Entitlement) Available() Days {
	return e.AccruedRounded.Add(e.CarryForward).Add(e.Manual).Sub(e.Taken).Sub(e.Pending)
}

// EntitlementKey identifies one ledger row.
type EntitlementKey struct {
	EmployeeID  EmployeeID
	LeaveTypeID LeaveTypeID
	Year        int
}

func (e Entitlement) Key() EntitlementKey {
	return EntitlementKey{EmployeeID: e.EmployeeID, LeaveTypeID: e.LeaveTypeID, Year: e.Year}
}

// =============================================================================
// MUTATIONS
// =============================================================================

// MutationOp classifies a ledger mutation for the audit trail.
type MutationOp string

const (
	OpReserve      MutationOp = "reserve"
	OpCommit       MutationOp = "commit"
	OpRelease      MutationOp = "release"
	OpDebit        MutationOp = "debit"
	OpCredit       MutationOp = "credit"
	OpAccrue       MutationOp = "accrue"
	OpCarryForward MutationOp = "carry_forward"
	OpExpire       MutationOp = "carry_expire"
	OpManual       MutationOp = "manual"
)

// EntitlementDelta is the signed change a mutation applies to the row's
// components. Unmentioned components stay zero.
type EntitlementDelta struct {
	AccruedActual  Days
	AccruedRounded Days
	CarryForward   Days
	Manual         Days
	Taken          Days
	Pending        Days

	// CarryForwardExpiry, when non-zero, sets the row's expiry date.
	// Only the carry-forward job uses it.
	CarryForwardExpiry time.Time
}

// Mutation is one keyed, audited change to an entitlement row.
type Mutation struct {
	// Key is the idempotency key. Applying the same key twice returns
	// ErrDuplicateMutation and leaves the row untouched.
	Key string
	Op  MutationOp
	// RequestID links request-driven mutations to their request.
	RequestID RequestID
	// ActorID is who caused the mutation; batch jobs use "system".
	ActorID EmployeeID
	Reason  string
}

// Adjustment is the audit record written for every applied mutation.
type Adjustment struct {
	ID          string
	EmployeeID  EmployeeID
	LeaveTypeID LeaveTypeID
	Year        int
	Op          MutationOp
	MutationKey string
	RequestID   RequestID
	ActorID     EmployeeID
	Reason      string
	Delta       EntitlementDelta
	// AvailableAfter is the row's available balance after the mutation.
	AvailableAfter Days
	CreatedAt      time.Time
}

// =============================================================================
// STORE CONTRACT
// =============================================================================

// EntitlementStore is the repository contract for ledger rows. Apply is
// the only write path; it must perform the guard check, the delta, the
// mutation-key insert and the Adjustment append atomically.
type EntitlementStore interface {
	// Get returns the row, or ErrNotFound.
	Get(ctx context.Context, key EntitlementKey) (*Entitlement, error)

	// EnsureRow creates a zero row if none exists. Concurrent creation
	// of the same key must collapse to one row.
	EnsureRow(ctx context.Context, key EntitlementKey) error

	// Apply atomically applies a delta to the row. Guards:
	//   - the post-delta available balance must be >= 0 when the delta
	//     reduces it (returns InsufficientBalanceError otherwise)
	//   - the post-delta pending must be >= 0
	//   - mut.Key must be unused (returns ErrDuplicateMutation)
	// On success the matching Adjustment row exists.
	Apply(ctx context.Context, key EntitlementKey, delta EntitlementDelta, mut Mutation) (*Entitlement, error)

	// ListByEmployee returns all rows of an employee for a year.
	ListByEmployee(ctx context.Context, employeeID EmployeeID, year int) ([]Entitlement, error)

	// ListForYear returns every row of a year. Batch jobs iterate this.
	ListForYear(ctx context.Context, year int) ([]Entitlement, error)

	// Adjustments returns the audit trail for a row, newest first.
	Adjustments(ctx context.Context, key EntitlementKey) ([]Adjustment, error)
}
