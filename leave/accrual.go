/*
accrual.go - Monthly accrual and year-end carry-forward batch jobs

PURPOSE:
  Two idempotent batch jobs over the entitlement ledger:

  1. Accrue(year, month): grants entitlement to every eligible
     (employee, deductible leave type) pair. Policies with
     AccruedMonthly get AnnualDays/12 per month; the un-rounded total
     is tracked in AccruedActual and AccruedRounded moves by the
     difference between the newly rounded total and the previously
     rounded total, so rounding never compounds across months. Other
     policies get the whole allowance upfront, once per year, on the
     first run that reaches them. The same pass expires carried days
     whose expiry date has passed.

  2. CarryForward(fromYear): moves each row's year-end remainder into
     the next year's row, capped by the policy's carryover rule, with
     an expiry date when the rule sets one.

IDEMPOTENCY:
  Every row-level grant carries a deterministic key:
    monthly accrual: "accrual:<emp>:<type>:<year>-<month>"
    upfront grant:   "grant:<emp>:<type>:<year>"
    carry-forward:   "carryforward:<emp>:<type>:<fromYear>"
    carry expiry:    "carryexpire:<emp>:<type>:<year>"
  Re-running a job replays the keys; already-applied rows come back as
  ErrDuplicateMutation and are counted as skipped, not failed. A crash
  mid-run is recovered by simply running the job again.

FAILURE ISOLATION:
  One row failing (e.g. a concurrent manual adjustment) never aborts
  the batch; failures are collected per row in the run summary.

SEE ALSO:
  - ledger.go:    Mutation key format for request-driven ops
  - api/scheduler.go: Invokes these jobs on a timer
*/
package leave

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// RUN SUMMARY
// =============================================================================

// Batch job names, as recorded in run records.
const (
	JobAccrual      = "accrual"
	JobCarryForward = "carry_forward"
)

// BatchFailure records one row the batch could not process.
type BatchFailure struct {
	EmployeeID  EmployeeID
	LeaveTypeID LeaveTypeID
	Err         string
}

// BatchRun summarizes one execution of a batch job.
type BatchRun struct {
	Job        string
	Year       int
	Month      int // zero for carry-forward
	Processed  int // rows examined
	Applied    int // mutations applied
	Skipped    int // replays and ineligible rows
	Failures   []BatchFailure
	StartedAt  time.Time
	FinishedAt time.Time
}

// =============================================================================
// ACCRUAL SERVICE
// =============================================================================

// AccrualService runs the monthly accrual and year-end carry-forward
// jobs.
type AccrualService struct {
	Entitlements EntitlementStore
	Employees    EmployeeStore
	Catalog      CatalogStore
}

func NewAccrualService(ents EntitlementStore, emps EmployeeStore, catalog CatalogStore) *AccrualService {
	return &AccrualService{Entitlements: ents, Employees: emps, Catalog: catalog}
}

// AccrualKey is the idempotency key for one employee/type/month grant.
func AccrualKey(emp EmployeeID, lt LeaveTypeID, year int, month time.Month) string {
	return fmt.Sprintf("accrual:%s:%s:%d-%02d", emp, lt, year, int(month))
}

// UpfrontGrantKey is the idempotency key for one employee/type yearly
// upfront grant (non-monthly policies).
func UpfrontGrantKey(emp EmployeeID, lt LeaveTypeID, year int) string {
	return fmt.Sprintf("grant:%s:%s:%d", emp, lt, year)
}

// CarryForwardKey is the idempotency key for one employee/type
// carry-forward out of a year.
func CarryForwardKey(emp EmployeeID, lt LeaveTypeID, fromYear int) string {
	return fmt.Sprintf("carryforward:%s:%s:%d", emp, lt, fromYear)
}

// CarryExpiryKey is the idempotency key for expiring one row's carried
// days.
func CarryExpiryKey(emp EmployeeID, lt LeaveTypeID, year int) string {
	return fmt.Sprintf("carryexpire:%s:%s:%d", emp, lt, year)
}

// Accrue grants one month of accrual to every eligible employee for
// every deductible, policy-managed leave type.
func (s *AccrualService) Accrue(ctx context.Context, year int, month time.Month) (*BatchRun, error) {
	run := &BatchRun{Job: JobAccrual, Year: year, Month: int(month), StartedAt: time.Now().UTC()}
	defer func() { run.FinishedAt = time.Now().UTC() }()

	employees, err := s.Employees.ActiveEmployees(ctx)
	if err != nil {
		return run, err
	}
	types, err := s.Catalog.ActiveLeaveTypes(ctx)
	if err != nil {
		return run, err
	}

	asOf := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	for _, lt := range types {
		if !lt.Deductible {
			continue
		}
		policy, err := s.Catalog.ActivePolicy(ctx, lt.ID)
		if err != nil {
			if IsNotFound(err) {
				continue // unmanaged type, nothing accrues
			}
			return run, err
		}
		for _, emp := range employees {
			run.Processed++
			if !eligibleForType(emp, lt, policy, asOf) {
				run.Skipped++
				continue
			}
			if err := s.accrueOne(ctx, emp.ID, lt.ID, policy, year, month, run); err != nil {
				run.Failures = append(run.Failures, BatchFailure{
					EmployeeID: emp.ID, LeaveTypeID: lt.ID, Err: err.Error(),
				})
			}
		}
	}
	return run, nil
}

func (s *AccrualService) accrueOne(ctx context.Context, emp EmployeeID, lt LeaveTypeID, policy *LeavePolicy, year int, month time.Month, run *BatchRun) error {
	key := EntitlementKey{EmployeeID: emp, LeaveTypeID: lt, Year: year}
	if err := s.Entitlements.EnsureRow(ctx, key); err != nil {
		return err
	}
	row, err := s.Entitlements.Get(ctx, key)
	if err != nil {
		return err
	}

	asOf := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	if err := s.expireCarry(ctx, *row, asOf, run); err != nil {
		return err
	}

	var grant, roundedDelta Days
	var mutKey, reason string
	if policy.AccruedMonthly {
		grant = policy.MonthlyAccrual()
		mutKey = AccrualKey(emp, lt, year, month)
		reason = fmt.Sprintf("monthly accrual %d-%02d", year, int(month))
	} else {
		grant = policy.AnnualDays
		mutKey = UpfrontGrantKey(emp, lt, year)
		reason = fmt.Sprintf("annual grant %d", year)
	}
	if !grant.IsPositive() {
		run.Skipped++
		return nil
	}
	newRounded := policy.Rounding.Apply(row.AccruedActual.Add(grant))
	roundedDelta = newRounded.Sub(row.AccruedRounded)

	_, err = s.Entitlements.Apply(ctx, key,
		EntitlementDelta{AccruedActual: grant, AccruedRounded: roundedDelta},
		Mutation{
			Key:     mutKey,
			Op:      OpAccrue,
			ActorID: "system",
			Reason:  reason,
		})
	if err != nil {
		if IsDuplicateMutation(err) {
			run.Skipped++
			return nil
		}
		return err
	}
	run.Applied++
	return nil
}

// expireCarry removes a row's carried days once their expiry date has
// passed. Only the still-free portion is removed; days already taken or
// reserved stay where they are so the balance never goes negative.
func (s *AccrualService) expireCarry(ctx context.Context, row Entitlement, asOf time.Time, run *BatchRun) error {
	if row.CarryForwardExpiry.IsZero() || row.CarryForwardExpiry.After(asOf) {
		return nil
	}
	expired := row.CarryForward.Min(row.Available())
	if !expired.IsPositive() {
		return nil
	}
	_, err := s.Entitlements.Apply(ctx, row.Key(),
		EntitlementDelta{CarryForward: expired.Neg()},
		Mutation{
			Key:     CarryExpiryKey(row.EmployeeID, row.LeaveTypeID, row.Year),
			Op:      OpExpire,
			ActorID: "system",
			Reason:  fmt.Sprintf("carried days expired %s", row.CarryForwardExpiry.Format("2006-01-02")),
		})
	if err != nil {
		if IsDuplicateMutation(err) {
			return nil
		}
		return err
	}
	run.Applied++
	return nil
}

// CarryForward moves each row's year-end remainder into the next
// year's row, capped by the policy carryover rule.
func (s *AccrualService) CarryForward(ctx context.Context, fromYear int) (*BatchRun, error) {
	run := &BatchRun{Job: JobCarryForward, Year: fromYear, StartedAt: time.Now().UTC()}
	defer func() { run.FinishedAt = time.Now().UTC() }()

	rows, err := s.Entitlements.ListForYear(ctx, fromYear)
	if err != nil {
		return run, err
	}

	for _, row := range rows {
		run.Processed++
		policy, err := s.Catalog.ActivePolicy(ctx, row.LeaveTypeID)
		if err != nil {
			if IsNotFound(err) {
				run.Skipped++
				continue
			}
			run.Failures = append(run.Failures, BatchFailure{
				EmployeeID: row.EmployeeID, LeaveTypeID: row.LeaveTypeID, Err: err.Error(),
			})
			continue
		}

		// Pending days belong to unresolved requests and stay in the
		// old year; only the free remainder crosses over.
		carry := policy.Carryover.Cap(row.Available())
		if !carry.IsPositive() {
			run.Skipped++
			continue
		}

		if err := s.carryOne(ctx, row, policy, carry, fromYear, run); err != nil {
			run.Failures = append(run.Failures, BatchFailure{
				EmployeeID: row.EmployeeID, LeaveTypeID: row.LeaveTypeID, Err: err.Error(),
			})
		}
	}
	return run, nil
}

func (s *AccrualService) carryOne(ctx context.Context, row Entitlement, policy *LeavePolicy, carry Days, fromYear int, run *BatchRun) error {
	target := EntitlementKey{EmployeeID: row.EmployeeID, LeaveTypeID: row.LeaveTypeID, Year: fromYear + 1}
	if err := s.Entitlements.EnsureRow(ctx, target); err != nil {
		return err
	}

	var expiry time.Time
	if policy.Carryover.ExpiryMonths > 0 {
		expiry = time.Date(fromYear+1, time.January, 1, 0, 0, 0, 0, time.UTC).
			AddDate(0, policy.Carryover.ExpiryMonths, 0)
	}

	_, err := s.Entitlements.Apply(ctx, target,
		EntitlementDelta{CarryForward: carry, CarryForwardExpiry: expiry},
		Mutation{
			Key:     CarryForwardKey(row.EmployeeID, row.LeaveTypeID, fromYear),
			Op:      OpCarryForward,
			ActorID: "system",
			Reason:  fmt.Sprintf("carry-forward from %d", fromYear),
		})
	if err != nil {
		if IsDuplicateMutation(err) {
			run.Skipped++
			return nil
		}
		return err
	}
	run.Applied++
	return nil
}

// eligibleForType combines the leave type's own gates with the policy's
// eligibility rule.
func eligibleForType(p EmployeeProfile, lt LeaveType, policy *LeavePolicy, asOf time.Time) bool {
	if lt.EligibilityGender != "" && p.Gender != lt.EligibilityGender {
		return false
	}
	if lt.MinTenureMonths > 0 && p.TenureMonths(asOf) < lt.MinTenureMonths {
		return false
	}
	return policy.Eligible.Admits(p, asOf)
}
