/*
policy.go - Leave policies and their rule blocks

PURPOSE:
  A LeavePolicy binds a leave type to the rules that govern it:
  how many days accrue per year, how fractions round, who is eligible,
  when documents are required, how approval flows, and what survives
  year end. Policies are versioned reference data owned by HR.

RULE BLOCKS:
  - CarryoverRule:   what crosses into the next year and for how long
  - RoundingRule:    how accrued fractions become bookable days
  - EligibilityRule: tenure / employment-type / gender gates
  - DocumentRules:   attachment thresholds beyond the type's own flag
  - ApprovalWorkflow: which approvals are required, in what order

ROUNDING SEMANTICS:
  ALWAYS_ROUND_UP  ceil to the nearest MinUnit
  HALF_DAY         floor to the nearest 0.5
  FULL_DAY         floor to the nearest 1.0
  The un-rounded accrued value is kept alongside the rounded one so a
  later policy change never loses precision.

SEE ALSO:
  - accrual.go: Grants AnnualDays monthly or upfront per AccruedMonthly
  - request.go: Evaluates eligibility, documents and overlap flags
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ROUNDING
// =============================================================================

// RoundingMethod is the closed set of accrual rounding strategies.
type RoundingMethod string

const (
	RoundAlwaysUp RoundingMethod = "ALWAYS_ROUND_UP"
	RoundHalfDay  RoundingMethod = "HALF_DAY"
	RoundFullDay  RoundingMethod = "FULL_DAY"
)

// RoundingRule controls how fractional accruals become bookable days.
type RoundingRule struct {
	Method RoundingMethod
	// MinUnit is the rounding granularity for ALWAYS_ROUND_UP
	// (e.g. 0.5). Ignored by HALF_DAY and FULL_DAY, which fix their own
	// unit. Zero means 1.0.
	MinUnit Days
}

// Apply rounds an accrued quantity per the rule. The zero rule is an
// identity.
func (r RoundingRule) Apply(d Days) Days {
	switch r.Method {
	case RoundAlwaysUp:
		unit := r.MinUnit
		if !unit.IsPositive() {
			unit = DaysOfInt(1)
		}
		return ceilToUnit(d, unit)
	case RoundHalfDay:
		return floorToUnit(d, HalfDay())
	case RoundFullDay:
		return floorToUnit(d, DaysOfInt(1))
	default:
		return d
	}
}

func ceilToUnit(d, unit Days) Days {
	q := d.Value.Div(unit.Value).Ceil()
	return Days{Value: q.Mul(unit.Value)}
}

func floorToUnit(d, unit Days) Days {
	q := d.Value.Div(unit.Value).Floor()
	return Days{Value: q.Mul(unit.Value)}
}

// =============================================================================
// CARRYOVER
// =============================================================================

// CarryoverRule controls what unused balance survives year end.
type CarryoverRule struct {
	AllowCarryover   bool
	MaxCarryoverDays Days
	// ExpiryMonths is how long carried days remain usable in the new
	// year. Zero means no expiry.
	ExpiryMonths int
	CanEncash    bool
}

// Cap limits a carryover amount to the rule's maximum. A zero maximum
// with AllowCarryover set means unlimited.
func (c CarryoverRule) Cap(d Days) Days {
	if !c.AllowCarryover || !d.IsPositive() {
		return ZeroDays()
	}
	if c.MaxCarryoverDays.IsPositive() && d.GreaterThan(c.MaxCarryoverDays) {
		return c.MaxCarryoverDays
	}
	return d
}

// =============================================================================
// ELIGIBILITY AND DOCUMENTS
// =============================================================================

// EligibilityRule gates who may use the policy. Zero values mean
// unconstrained; these narrow (never widen) the leave type's own
// gender/tenure constraints.
type EligibilityRule struct {
	MinTenureMonths int
	EmployeeTypes   []EmploymentType
	Gender          Gender
}

// Admits reports whether a profile passes the eligibility gates as of
// a date.
func (e EligibilityRule) Admits(p EmployeeProfile, asOf time.Time) bool {
	if e.MinTenureMonths > 0 && p.TenureMonths(asOf) < e.MinTenureMonths {
		return false
	}
	if e.Gender != "" && p.Gender != e.Gender {
		return false
	}
	if len(e.EmployeeTypes) > 0 {
		found := false
		for _, t := range e.EmployeeTypes {
			if p.EmploymentType == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// DocumentRules adds a duration-triggered attachment requirement on top
// of the leave type's RequiresAttachment flag.
type DocumentRules struct {
	// RequiresDocumentAboveDays demands an attachment once the request's
	// working days exceed the threshold. Zero disables the rule.
	RequiresDocumentAboveDays Days
}

// Requires reports whether a request of the given length needs an
// attachment under these rules.
func (d DocumentRules) Requires(workingDays Days) bool {
	return d.RequiresDocumentAboveDays.IsPositive() &&
		workingDays.GreaterThan(d.RequiresDocumentAboveDays)
}

// =============================================================================
// APPROVAL WORKFLOW
// =============================================================================

// ApprovalWorkflow declares which approvals a request needs. The
// approval router (approval.go) interprets it; the flags here are pure
// configuration.
type ApprovalWorkflow struct {
	RequiresManagerApproval bool
	RequiresHRApproval      bool
	// MultiLevel forces manager-then-HR ordering when both are required.
	// When false and both are required, HR alone may finalize.
	MultiLevel bool
	// AllowOverlap skips the overlapping-request check at submission
	// (emergency leave).
	AllowOverlap bool
}

// =============================================================================
// LEAVE POLICY
// =============================================================================

// LeavePolicy binds a leave type to its governing rules. One active
// policy per leave type; superseded policies stay for audit.
type LeavePolicy struct {
	ID          PolicyID
	Name        string
	LeaveTypeID LeaveTypeID

	// AnnualDays is the yearly entitlement.
	AnnualDays Days
	// AccruedMonthly grants AnnualDays in twelfths, one per completed
	// month. When false the whole allowance is granted upfront at the
	// first accrual run of the year.
	AccruedMonthly bool

	Carryover CarryoverRule
	Rounding  RoundingRule
	Eligible  EligibilityRule
	Documents DocumentRules
	Approval  ApprovalWorkflow

	// AllowUnpaidOverflow lets a request exceed the available balance:
	// the paid portion is reserved and the remainder recorded as unpaid
	// days on the request. The ledger never goes negative either way.
	AllowUnpaidOverflow bool

	Active bool
}

// MonthlyAccrual is the un-rounded accrual for one month.
func (p LeavePolicy) MonthlyAccrual() Days {
	return Days{Value: p.AnnualDays.Value.Div(decimal.NewFromInt(12))}
}
