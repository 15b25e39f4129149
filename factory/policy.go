/*
Package factory provides JSON to Go conversion for leave reference
data, plus the default catalog.

PURPOSE:
  Converts JSON leave-type and policy definitions into leave.LeaveType
  and leave.LeavePolicy objects. This enables catalog configuration
  without code changes - HR can define types and policies in JSON, and
  the factory creates the proper Go structs.

JSON SCHEMA:
  {
    "id": "annual",
    "name": "Annual Leave",
    "code": "ANNUAL",
    "paid": true,
    "deductible": true,
    "max_duration_days": 21,
    "min_notice_days": 7,
    "policy": {
      "annual_days": 21,
      "accrued_monthly": true,
      "carryover": {"allow": true, "max_days": 45, "expiry_months": 3},
      "rounding": {"method": "HALF_DAY"},
      "approval": {"manager": true, "hr": true, "multi_level": true}
    }
  }

USAGE:
  def, err := factory.ParseLeaveTypeDef(jsonString)
  // def.Type   -> leave.LeaveType
  // def.Policy -> *leave.LeavePolicy (nil when the type is unmanaged)

SEE ALSO:
  - leave/policy.go: Rule-block definitions
  - factory/seed.go: The built-in default catalog
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/luminahr/leave-engine/leave"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// LeaveTypeJSON is the JSON representation of a leave type and its
// optional policy.
type LeaveTypeJSON struct {
	ID                 string      `json:"id,omitempty"`
	Name               string      `json:"name"`
	Code               string      `json:"code"`
	Category           string      `json:"category,omitempty"`
	Paid               *bool       `json:"paid,omitempty"`       // default true
	Deductible         *bool       `json:"deductible,omitempty"` // default true
	RequiresAttachment bool        `json:"requires_attachment,omitempty"`
	AttachmentKind     string      `json:"attachment_kind,omitempty"`
	MaxDurationDays    int         `json:"max_duration_days,omitempty"`
	MinNoticeDays      int         `json:"min_notice_days,omitempty"`
	EligibilityGender  string      `json:"eligibility_gender,omitempty"`
	MinTenureMonths    int         `json:"min_tenure_months,omitempty"`
	MaxOccurrences     int         `json:"max_occurrences,omitempty"`
	Policy             *PolicyJSON `json:"policy,omitempty"`
}

// PolicyJSON is the JSON representation of a leave policy.
type PolicyJSON struct {
	ID                  string           `json:"id,omitempty"`
	Name                string           `json:"name,omitempty"`
	AnnualDays          float64          `json:"annual_days"`
	AccruedMonthly      bool             `json:"accrued_monthly,omitempty"`
	Carryover           *CarryoverJSON   `json:"carryover,omitempty"`
	Rounding            *RoundingJSON    `json:"rounding,omitempty"`
	Eligibility         *EligibilityJSON `json:"eligibility,omitempty"`
	DocumentRules       *DocumentJSON    `json:"document_rules,omitempty"`
	Approval            *ApprovalJSON    `json:"approval,omitempty"`
	AllowUnpaidOverflow bool             `json:"allow_unpaid_overflow,omitempty"`
}

// CarryoverJSON represents carryover configuration.
type CarryoverJSON struct {
	Allow        bool    `json:"allow"`
	MaxDays      float64 `json:"max_days,omitempty"`
	ExpiryMonths int     `json:"expiry_months,omitempty"`
	CanEncash    bool    `json:"can_encash,omitempty"`
}

// RoundingJSON represents rounding configuration.
type RoundingJSON struct {
	Method  string  `json:"method"` // ALWAYS_ROUND_UP, HALF_DAY, FULL_DAY
	MinUnit float64 `json:"min_unit,omitempty"`
}

// EligibilityJSON represents eligibility gates.
type EligibilityJSON struct {
	MinTenureMonths int      `json:"min_tenure_months,omitempty"`
	EmployeeTypes   []string `json:"employee_types,omitempty"`
	Gender          string   `json:"gender,omitempty"`
}

// DocumentJSON represents duration-triggered document rules.
type DocumentJSON struct {
	RequiresDocumentAboveDays float64 `json:"requires_document_above_days,omitempty"`
}

// ApprovalJSON represents the approval workflow flags.
type ApprovalJSON struct {
	Manager      bool `json:"manager"`
	HR           bool `json:"hr"`
	MultiLevel   bool `json:"multi_level,omitempty"`
	AllowOverlap bool `json:"allow_overlap,omitempty"`
}

// =============================================================================
// PARSING
// =============================================================================

// LeaveTypeDef pairs a parsed leave type with its policy, if any.
type LeaveTypeDef struct {
	Type   leave.LeaveType
	Policy *leave.LeavePolicy
}

// ParseLeaveTypeDef parses one JSON leave-type definition.
func ParseLeaveTypeDef(jsonStr string) (*LeaveTypeDef, error) {
	var doc LeaveTypeJSON
	if err := json.Unmarshal([]byte(jsonStr), &doc); err != nil {
		return nil, fmt.Errorf("invalid leave type JSON: %w", err)
	}
	return buildDef(doc)
}

// ParseCatalog parses a JSON array of leave-type definitions.
func ParseCatalog(jsonStr string) ([]LeaveTypeDef, error) {
	var docs []LeaveTypeJSON
	if err := json.Unmarshal([]byte(jsonStr), &docs); err != nil {
		return nil, fmt.Errorf("invalid catalog JSON: %w", err)
	}
	defs := make([]LeaveTypeDef, 0, len(docs))
	for i, doc := range docs {
		def, err := buildDef(doc)
		if err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i, err)
		}
		defs = append(defs, *def)
	}
	return defs, nil
}

func buildDef(doc LeaveTypeJSON) (*LeaveTypeDef, error) {
	if doc.Name == "" || doc.Code == "" {
		return nil, fmt.Errorf("leave type needs name and code")
	}

	lt := leave.LeaveType{
		ID:                 leave.LeaveTypeID(doc.ID),
		Name:               doc.Name,
		Code:               doc.Code,
		Category:           doc.Category,
		Paid:               boolOr(doc.Paid, true),
		Deductible:         boolOr(doc.Deductible, true),
		RequiresAttachment: doc.RequiresAttachment,
		AttachmentKind:     leave.AttachmentKind(doc.AttachmentKind),
		MaxDurationDays:    doc.MaxDurationDays,
		MinNoticeDays:      doc.MinNoticeDays,
		EligibilityGender:  leave.Gender(doc.EligibilityGender),
		MinTenureMonths:    doc.MinTenureMonths,
		MaxOccurrences:     doc.MaxOccurrences,
		Active:             true,
	}
	if lt.ID == "" {
		lt.ID = leave.LeaveTypeID(uuid.NewString())
	}

	def := &LeaveTypeDef{Type: lt}
	if doc.Policy != nil {
		policy, err := buildPolicy(*doc.Policy, lt)
		if err != nil {
			return nil, err
		}
		def.Policy = policy
	}
	return def, nil
}

func buildPolicy(doc PolicyJSON, lt leave.LeaveType) (*leave.LeavePolicy, error) {
	if doc.AnnualDays < 0 {
		return nil, fmt.Errorf("policy annual_days must be >= 0")
	}

	p := &leave.LeavePolicy{
		ID:                  leave.PolicyID(doc.ID),
		Name:                doc.Name,
		LeaveTypeID:         lt.ID,
		AnnualDays:          leave.DaysOf(doc.AnnualDays),
		AccruedMonthly:      doc.AccruedMonthly,
		AllowUnpaidOverflow: doc.AllowUnpaidOverflow,
		Active:              true,
	}
	if p.ID == "" {
		p.ID = leave.PolicyID(uuid.NewString())
	}
	if p.Name == "" {
		p.Name = lt.Name + " Policy"
	}

	if doc.Carryover != nil {
		p.Carryover = leave.CarryoverRule{
			AllowCarryover:   doc.Carryover.Allow,
			MaxCarryoverDays: leave.DaysOf(doc.Carryover.MaxDays),
			ExpiryMonths:     doc.Carryover.ExpiryMonths,
			CanEncash:        doc.Carryover.CanEncash,
		}
	}
	if doc.Rounding != nil {
		method := leave.RoundingMethod(doc.Rounding.Method)
		switch method {
		case leave.RoundAlwaysUp, leave.RoundHalfDay, leave.RoundFullDay, "":
		default:
			return nil, fmt.Errorf("unknown rounding method %q", doc.Rounding.Method)
		}
		p.Rounding = leave.RoundingRule{
			Method:  method,
			MinUnit: leave.DaysOf(doc.Rounding.MinUnit),
		}
	}
	if doc.Eligibility != nil {
		types := make([]leave.EmploymentType, 0, len(doc.Eligibility.EmployeeTypes))
		for _, t := range doc.Eligibility.EmployeeTypes {
			types = append(types, leave.EmploymentType(t))
		}
		p.Eligible = leave.EligibilityRule{
			MinTenureMonths: doc.Eligibility.MinTenureMonths,
			EmployeeTypes:   types,
			Gender:          leave.Gender(doc.Eligibility.Gender),
		}
	}
	if doc.DocumentRules != nil {
		p.Documents = leave.DocumentRules{
			RequiresDocumentAboveDays: leave.DaysOf(doc.DocumentRules.RequiresDocumentAboveDays),
		}
	}
	if doc.Approval != nil {
		p.Approval = leave.ApprovalWorkflow{
			RequiresManagerApproval: doc.Approval.Manager,
			RequiresHRApproval:      doc.Approval.HR,
			MultiLevel:              doc.Approval.MultiLevel,
			AllowOverlap:            doc.Approval.AllowOverlap,
		}
	}
	return p, nil
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
