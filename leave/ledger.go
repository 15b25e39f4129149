/*
ledger.go - The entitlement ledger service

PURPOSE:
  Translates lifecycle events into keyed ledger mutations:

    Reserve  pending += n            (submission holds the days)
    Commit   pending -= n, taken += n (final approval consumes them)
    Release  pending -= n            (rejection / cancellation / return)
    Debit    taken += n              (cancel-reversal undo, overrides)
    Credit   taken -= n              (approved-then-cancelled restore)
    ManualAdjust manual += n         (HR correction, n may be negative)

  Every mutation goes through EntitlementStore.Apply, which enforces
  the non-negative guards and the idempotency key atomically. The
  service itself holds no state and no locks.

IDEMPOTENCY KEYS:
  Request-driven ops:  "<requestID>:<attempt>:<op>"
  Batch ops build their own keys (see accrual.go).
  A replayed key returns ErrDuplicateMutation; callers that retry
  treat it as success.

SEE ALSO:
  - entitlement.go: Row, delta and store contract
  - request.go:     The state machine driving these calls
*/
package leave

import (
	"context"
	"fmt"
)

// =============================================================================
// LEDGER SERVICE
// =============================================================================

// Ledger applies balance mutations for the request lifecycle and for
// manual HR corrections.
type Ledger struct {
	Store EntitlementStore
}

func NewLedger(store EntitlementStore) *Ledger {
	return &Ledger{Store: store}
}

// RequestMutationKey builds the idempotency key for a request-driven
// mutation. The attempt counter makes resubmissions re-reservable
// while replays of the same transition stay rejected.
func RequestMutationKey(requestID RequestID, attempt int, op MutationOp) string {
	return fmt.Sprintf("%s:%d:%s", requestID, attempt, op)
}

// Balance returns the row for a key, materializing a zero row if none
// exists yet.
func (l *Ledger) Balance(ctx context.Context, key EntitlementKey) (*Entitlement, error) {
	ent, err := l.Store.Get(ctx, key)
	if err == nil {
		return ent, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}
	if err := l.Store.EnsureRow(ctx, key); err != nil {
		return nil, err
	}
	return l.Store.Get(ctx, key)
}

// Reserve holds days against the available balance. Fails with
// InsufficientBalanceError when the guarded update finds less available
// than requested.
func (l *Ledger) Reserve(ctx context.Context, key EntitlementKey, days Days, mut Mutation) (*Entitlement, error) {
	if !days.IsPositive() {
		return nil, fmt.Errorf("%w: reserve amount must be positive", ErrValidation)
	}
	if err := l.Store.EnsureRow(ctx, key); err != nil {
		return nil, err
	}
	mut.Op = OpReserve
	return l.Store.Apply(ctx, key, EntitlementDelta{Pending: days}, mut)
}

// Commit converts a reservation into consumption.
func (l *Ledger) Commit(ctx context.Context, key EntitlementKey, days Days, mut Mutation) (*Entitlement, error) {
	if !days.IsPositive() {
		return nil, fmt.Errorf("%w: commit amount must be positive", ErrValidation)
	}
	mut.Op = OpCommit
	return l.Store.Apply(ctx, key, EntitlementDelta{Pending: days.Neg(), Taken: days}, mut)
}

// Release returns reserved days to the available balance.
func (l *Ledger) Release(ctx context.Context, key EntitlementKey, days Days, mut Mutation) (*Entitlement, error) {
	if !days.IsPositive() {
		return nil, fmt.Errorf("%w: release amount must be positive", ErrValidation)
	}
	mut.Op = OpRelease
	return l.Store.Apply(ctx, key, EntitlementDelta{Pending: days.Neg()}, mut)
}

// Debit consumes days directly, bypassing the reservation stage. Used
// by HR overrides that turn a rejection into an approval after the
// reservation was already released.
func (l *Ledger) Debit(ctx context.Context, key EntitlementKey, days Days, mut Mutation) (*Entitlement, error) {
	if !days.IsPositive() {
		return nil, fmt.Errorf("%w: debit amount must be positive", ErrValidation)
	}
	mut.Op = OpDebit
	return l.Store.Apply(ctx, key, EntitlementDelta{Taken: days}, mut)
}

// Credit restores consumed days. Used when an approved request is
// cancelled or overridden to rejected.
func (l *Ledger) Credit(ctx context.Context, key EntitlementKey, days Days, mut Mutation) (*Entitlement, error) {
	if !days.IsPositive() {
		return nil, fmt.Errorf("%w: credit amount must be positive", ErrValidation)
	}
	mut.Op = OpCredit
	return l.Store.Apply(ctx, key, EntitlementDelta{Taken: days.Neg()}, mut)
}

// ManualAdjust applies a signed HR correction to the manual component.
// Negative adjustments still may not push available below zero; the
// guard in Apply enforces that.
func (l *Ledger) ManualAdjust(ctx context.Context, key EntitlementKey, days Days, mut Mutation) (*Entitlement, error) {
	if days.IsZero() {
		return nil, fmt.Errorf("%w: adjustment must be non-zero", ErrValidation)
	}
	if mut.Reason == "" {
		return nil, fmt.Errorf("%w: manual adjustment requires a reason", ErrValidation)
	}
	if err := l.Store.EnsureRow(ctx, key); err != nil {
		return nil, err
	}
	mut.Op = OpManual
	return l.Store.Apply(ctx, key, EntitlementDelta{Manual: days}, mut)
}

// History returns the audit trail for a row.
func (l *Ledger) History(ctx context.Context, key EntitlementKey) ([]Adjustment, error) {
	return l.Store.Adjustments(ctx, key)
}
