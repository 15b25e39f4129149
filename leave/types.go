/*
Package leave implements the leave-request lifecycle and balance-ledger
engine.

PURPOSE:
  This package contains the domain types and services for managing
  employee leave: entitlement ledgers, request state transitions,
  approval routing, and calendar arithmetic. Controllers (the api
  package) and batch schedulers call into this package; everything
  else (auth, payroll, employee CRUD) lives outside it.

KEY CONCEPTS IN THIS FILE (types.go):
  - Days: A day quantity backed by decimal.Decimal (half-days are legal)
  - LeaveType: Immutable reference data describing a kind of leave
  - EmployeeProfile: The slice of employee data the engine needs
  - Typed identifiers for employees, leave types, policies, requests

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere, never float arithmetic
  2. Type safety: IDs are distinct types, not bare strings
  3. Closed enums: roles, statuses, rounding methods are enumerated

SEE ALSO:
  - policy.go: LeavePolicy and its rule blocks
  - entitlement.go: The ledger row and balance projection
  - request.go: LeaveRequest and the state machine
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DAYS - Day quantity with decimal precision
// =============================================================================

// Days is a quantity of leave days. Half-day requests and monthly
// accrual fractions (e.g. 20/12) make float arithmetic unacceptable.
type Days struct {
	Value decimal.Decimal
}

func DaysOf(v float64) Days      { return Days{Value: decimal.NewFromFloat(v)} }
func DaysOfInt(v int) Days       { return Days{Value: decimal.NewFromInt(int64(v))} }
func ZeroDays() Days             { return Days{Value: decimal.Zero} }
func HalfDay() Days              { return Days{Value: decimal.NewFromFloat(0.5)} }

func MustParseDays(s string) Days {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroDays()
	}
	return Days{Value: d}
}

func (d Days) Add(o Days) Days          { return Days{Value: d.Value.Add(o.Value)} }
func (d Days) Sub(o Days) Days          { return Days{Value: d.Value.Sub(o.Value)} }
func (d Days) Neg() Days                { return Days{Value: d.Value.Neg()} }
func (d Days) IsZero() bool             { return d.Value.IsZero() }
func (d Days) IsNegative() bool         { return d.Value.IsNegative() }
func (d Days) IsPositive() bool         { return d.Value.IsPositive() }
func (d Days) GreaterThan(o Days) bool  { return d.Value.GreaterThan(o.Value) }
func (d Days) LessThan(o Days) bool     { return d.Value.LessThan(o.Value) }
func (d Days) Equal(o Days) bool        { return d.Value.Equal(o.Value) }
func (d Days) Min(o Days) Days          { if d.LessThan(o) { return d }; return o }
func (d Days) Max(o Days) Days          { if d.GreaterThan(o) { return d }; return o }
func (d Days) Float64() float64         { f, _ := d.Value.Float64(); return f }
func (d Days) String() string           { return d.Value.String() }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type LeaveTypeID string
type PolicyID string
type RequestID string
type CalendarID string

// =============================================================================
// LEAVE TYPE - Immutable reference data
// =============================================================================

// AttachmentKind identifies the document class a leave type requires.
type AttachmentKind string

const (
	AttachmentMedicalCertificate  AttachmentKind = "MEDICAL_CERTIFICATE"
	AttachmentBirthCertificate    AttachmentKind = "BIRTH_CERTIFICATE"
	AttachmentMarriageCertificate AttachmentKind = "MARRIAGE_CERTIFICATE"
	AttachmentDeathCertificate    AttachmentKind = "DEATH_CERTIFICATE"
	AttachmentOther               AttachmentKind = "OTHER"
)

// Gender is used only for leave-type eligibility (maternity/paternity).
type Gender string

const (
	GenderFemale Gender = "Female"
	GenderMale   Gender = "Male"
)

// LeaveType describes a kind of leave (annual, sick, maternity, ...).
// Created and edited by HR; referenced by ID from policies, entitlements
// and requests. Never deleted, only deactivated.
type LeaveType struct {
	ID       LeaveTypeID
	Name     string
	Code     string
	Category string

	Paid       bool
	Deductible bool // draws down the entitlement ledger when true

	RequiresAttachment bool
	AttachmentKind     AttachmentKind

	MaxDurationDays int
	MinNoticeDays   int

	// Eligibility constraints. Zero values mean unconstrained.
	EligibilityGender Gender
	MinTenureMonths   int
	MaxOccurrences    int // lifetime cap, 0 = unlimited

	Active bool
}

// =============================================================================
// EMPLOYEE PROFILE - What the engine needs from the employee store
// =============================================================================

// EmploymentType mirrors the values the policy eligibility blocks use.
type EmploymentType string

const (
	EmploymentFullTime EmploymentType = "Full-Time"
	EmploymentPartTime EmploymentType = "Part-Time"
	EmploymentContract EmploymentType = "Contract"
)

// EmployeeProfile is the projection of employee data this engine
// consumes. Identity, tenure, gender and employment type come from the
// employee-profile store; the engine never writes employee data.
type EmployeeProfile struct {
	ID             EmployeeID
	Name           string
	Email          string
	Gender         Gender
	EmploymentType EmploymentType
	HireDate       time.Time
	ManagerID      EmployeeID
}

// TenureMonths returns completed months of service as of a date.
func (p EmployeeProfile) TenureMonths(asOf time.Time) int {
	if asOf.Before(p.HireDate) {
		return 0
	}
	months := (asOf.Year()-p.HireDate.Year())*12 + int(asOf.Month()) - int(p.HireDate.Month())
	if asOf.Day() < p.HireDate.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// =============================================================================
// ACTOR ROLES - Closed set evaluated by the approval router
// =============================================================================

// Role is the closed enum of actor roles the engine distinguishes.
// Mapping users to roles is the caller's concern (auth is out of scope);
// transition authorization against a role is ours.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleHR       Role = "hr"
)
