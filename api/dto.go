/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types
  decouple the internal domain model from the external API contract,
  allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and the domain layer, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/policy.go: LeaveTypeJSON / PolicyJSON catalog types
*/
package api

import (
	"time"

	"github.com/luminahr/leave-engine/leave"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	Gender         string `json:"gender,omitempty"`
	EmploymentType string `json:"employment_type,omitempty"`
	HireDate       string `json:"hire_date"`
	ManagerID      string `json:"manager_id,omitempty"`
}

// CreateEmployeeRequest is the request to create or update an employee
// profile projection.
type CreateEmployeeRequest struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	Gender         string `json:"gender,omitempty"`
	EmploymentType string `json:"employment_type,omitempty"`
	HireDate       string `json:"hire_date"`
	ManagerID      string `json:"manager_id,omitempty"`
}

func toEmployeeDTO(p leave.EmployeeProfile) EmployeeDTO {
	return EmployeeDTO{
		ID:             string(p.ID),
		Name:           p.Name,
		Email:          p.Email,
		Gender:         string(p.Gender),
		EmploymentType: string(p.EmploymentType),
		HireDate:       p.HireDate.Format("2006-01-02"),
		ManagerID:      string(p.ManagerID),
	}
}

// =============================================================================
// BALANCES
// =============================================================================

// BalanceDTO is one entitlement row with its projection.
type BalanceDTO struct {
	EmployeeID  string `json:"employee_id"`
	LeaveTypeID string `json:"leave_type_id"`
	Year        int    `json:"year"`
	// YearlyEntitlement is the active policy's annual allowance.
	YearlyEntitlement float64 `json:"yearly_entitlement"`
	AccruedActual     float64 `json:"accrued_actual"`
	AccruedRounded    float64 `json:"accrued_rounded"`
	CarryForward      float64 `json:"carry_forward"`
	CarryExpiry       string  `json:"carry_forward_expiry,omitempty"`
	Manual            float64 `json:"manual"`
	Taken             float64 `json:"taken"`
	Pending           float64 `json:"pending"`
	Available         float64 `json:"available"`
}

func toBalanceDTO(e leave.Entitlement, yearly leave.Days) BalanceDTO {
	dto := BalanceDTO{
		EmployeeID:        string(e.EmployeeID),
		LeaveTypeID:       string(e.LeaveTypeID),
		Year:              e.Year,
		YearlyEntitlement: yearly.Float64(),
		AccruedActual:     e.AccruedActual.Float64(),
		AccruedRounded:    e.AccruedRounded.Float64(),
		CarryForward:      e.CarryForward.Float64(),
		Manual:            e.Manual.Float64(),
		Taken:             e.Taken.Float64(),
		Pending:           e.Pending.Float64(),
		Available:         e.Available().Float64(),
	}
	if !e.CarryForwardExpiry.IsZero() {
		dto.CarryExpiry = e.CarryForwardExpiry.Format("2006-01-02")
	}
	return dto
}

// AdjustmentDTO is one audit row of the entitlement ledger.
type AdjustmentDTO struct {
	ID             string  `json:"id"`
	EmployeeID     string  `json:"employee_id"`
	LeaveTypeID    string  `json:"leave_type_id"`
	Year           int     `json:"year"`
	Op             string  `json:"op"`
	MutationKey    string  `json:"mutation_key"`
	RequestID      string  `json:"request_id,omitempty"`
	ActorID        string  `json:"actor_id,omitempty"`
	Reason         string  `json:"reason,omitempty"`
	AvailableAfter float64 `json:"available_after"`
	CreatedAt      string  `json:"created_at"`
}

func toAdjustmentDTO(a leave.Adjustment) AdjustmentDTO {
	return AdjustmentDTO{
		ID:             a.ID,
		EmployeeID:     string(a.EmployeeID),
		LeaveTypeID:    string(a.LeaveTypeID),
		Year:           a.Year,
		Op:             string(a.Op),
		MutationKey:    a.MutationKey,
		RequestID:      string(a.RequestID),
		ActorID:        string(a.ActorID),
		Reason:         a.Reason,
		AvailableAfter: a.AvailableAfter.Float64(),
		CreatedAt:      a.CreatedAt.Format(time.RFC3339),
	}
}

// ManualAdjustmentRequest is the admin request to correct a balance.
type ManualAdjustmentRequest struct {
	EmployeeID  string  `json:"employee_id"`
	LeaveTypeID string  `json:"leave_type_id"`
	Year        int     `json:"year"`
	Days        float64 `json:"days"` // signed
	ActorID     string  `json:"actor_id"`
	Reason      string  `json:"reason"`
}

// =============================================================================
// REQUESTS
// =============================================================================

// SubmitRequestDTO is the body of a leave request submission.
type SubmitRequestDTO struct {
	LeaveTypeID   string `json:"leave_type_id"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	HalfDay       bool   `json:"half_day,omitempty"`
	HalfDaySlot   string `json:"half_day_slot,omitempty"`
	Reason        string `json:"reason,omitempty"`
	AttachmentRef string `json:"attachment_ref,omitempty"`
	Draft         bool   `json:"draft,omitempty"`
}

// ModifyRequestDTO carries corrected fields for modify/resubmit.
// Empty fields keep the stored values.
type ModifyRequestDTO struct {
	StartDate     string `json:"start_date,omitempty"`
	EndDate       string `json:"end_date,omitempty"`
	HalfDay       *bool  `json:"half_day,omitempty"`
	HalfDaySlot   string `json:"half_day_slot,omitempty"`
	Reason        string `json:"reason,omitempty"`
	AttachmentRef string `json:"attachment_ref,omitempty"`
}

// DecisionRequest is the body of an approve/reject/return call.
type DecisionRequest struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role"` // manager or hr
	Comment string `json:"comment,omitempty"`
}

// BulkDecisionRequest applies one decision to many requests.
type BulkDecisionRequest struct {
	RequestIDs []string `json:"request_ids"`
	ActorID    string   `json:"actor_id"`
	Role       string   `json:"role"`
	Decision   string   `json:"decision"` // approve, reject, return
	Comment    string   `json:"comment,omitempty"`
}

// ApprovalStepDTO is one recorded decision.
type ApprovalStepDTO struct {
	Role     string `json:"role"`
	ActorID  string `json:"actor_id"`
	Decision string `json:"decision"`
	Comment  string `json:"comment,omitempty"`
	At       string `json:"at"`
}

// RequestDTO represents a leave request in API responses.
type RequestDTO struct {
	ID            string            `json:"id"`
	EmployeeID    string            `json:"employee_id"`
	LeaveTypeID   string            `json:"leave_type_id"`
	PolicyID      string            `json:"policy_id,omitempty"`
	StartDate     string            `json:"start_date"`
	EndDate       string            `json:"end_date"`
	HalfDay       bool              `json:"half_day,omitempty"`
	HalfDaySlot   string            `json:"half_day_slot,omitempty"`
	WorkingDays   float64           `json:"working_days"`
	PaidDays      float64           `json:"paid_days"`
	UnpaidDays    float64           `json:"unpaid_days"`
	Reason        string            `json:"reason,omitempty"`
	AttachmentRef string            `json:"attachment_ref,omitempty"`
	Status        string            `json:"status"`
	Attempt       int               `json:"attempt"`
	Steps         []ApprovalStepDTO `json:"steps,omitempty"`
	Year          int               `json:"year"`
	CreatedAt     string            `json:"created_at"`
	UpdatedAt     string            `json:"updated_at"`
}

func toRequestDTO(r leave.LeaveRequest) RequestDTO {
	steps := make([]ApprovalStepDTO, 0, len(r.Steps))
	for _, s := range r.Steps {
		steps = append(steps, ApprovalStepDTO{
			Role:     string(s.Role),
			ActorID:  string(s.ActorID),
			Decision: string(s.Decision),
			Comment:  s.Comment,
			At:       s.At.Format(time.RFC3339),
		})
	}
	return RequestDTO{
		ID:            string(r.ID),
		EmployeeID:    string(r.EmployeeID),
		LeaveTypeID:   string(r.LeaveTypeID),
		PolicyID:      string(r.PolicyID),
		StartDate:     r.StartDate.Format("2006-01-02"),
		EndDate:       r.EndDate.Format("2006-01-02"),
		HalfDay:       r.HalfDay,
		HalfDaySlot:   string(r.HalfDaySlot),
		WorkingDays:   r.WorkingDays.Float64(),
		PaidDays:      r.PaidDays.Float64(),
		UnpaidDays:    r.UnpaidDays.Float64(),
		Reason:        r.Reason,
		AttachmentRef: r.AttachmentRef,
		Status:        string(r.Status),
		Attempt:       r.Attempt,
		Steps:         steps,
		Year:          r.Year,
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     r.UpdatedAt.Format(time.RFC3339),
	}
}

// BulkOutcomeDTO is one request's result in a bulk decision.
type BulkOutcomeDTO struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
}

// =============================================================================
// CATALOG AND CALENDAR
// =============================================================================

// LeaveTypeDTO represents a leave type in API responses.
type LeaveTypeDTO struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Code               string `json:"code"`
	Category           string `json:"category,omitempty"`
	Paid               bool   `json:"paid"`
	Deductible         bool   `json:"deductible"`
	RequiresAttachment bool   `json:"requires_attachment"`
	AttachmentKind     string `json:"attachment_kind,omitempty"`
	MaxDurationDays    int    `json:"max_duration_days,omitempty"`
	MinNoticeDays      int    `json:"min_notice_days,omitempty"`
	EligibilityGender  string `json:"eligibility_gender,omitempty"`
	MinTenureMonths    int    `json:"min_tenure_months,omitempty"`
	MaxOccurrences     int    `json:"max_occurrences,omitempty"`
	Active             bool   `json:"active"`
}

func toLeaveTypeDTO(lt leave.LeaveType) LeaveTypeDTO {
	return LeaveTypeDTO{
		ID:                 string(lt.ID),
		Name:               lt.Name,
		Code:               lt.Code,
		Category:           lt.Category,
		Paid:               lt.Paid,
		Deductible:         lt.Deductible,
		RequiresAttachment: lt.RequiresAttachment,
		AttachmentKind:     string(lt.AttachmentKind),
		MaxDurationDays:    lt.MaxDurationDays,
		MinNoticeDays:      lt.MinNoticeDays,
		EligibilityGender:  string(lt.EligibilityGender),
		MinTenureMonths:    lt.MinTenureMonths,
		MaxOccurrences:     lt.MaxOccurrences,
		Active:             lt.Active,
	}
}

// HolidayRequest creates one public holiday.
type HolidayRequest struct {
	CalendarID string `json:"calendar_id"`
	Date       string `json:"date"`
	Name       string `json:"name"`
}

// BlockedPeriodRequest creates or updates a blocked period.
type BlockedPeriodRequest struct {
	ID           string   `json:"id,omitempty"`
	Name         string   `json:"name"`
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date"`
	Reason       string   `json:"reason,omitempty"`
	BlockType    string   `json:"block_type"` // FULL or PARTIAL
	LeaveTypeIDs []string `json:"leave_type_ids,omitempty"`
	Active       *bool    `json:"active,omitempty"` // default true
}

// =============================================================================
// BATCH JOBS
// =============================================================================

// BatchJobRequest triggers accrual or carry-forward for a period.
type BatchJobRequest struct {
	Year  int `json:"year"`
	Month int `json:"month,omitempty"` // accrual only
}

// BatchRunDTO summarizes one batch execution.
type BatchRunDTO struct {
	Job        string            `json:"job"`
	Year       int               `json:"year"`
	Month      int               `json:"month,omitempty"`
	Processed  int               `json:"processed"`
	Applied    int               `json:"applied"`
	Skipped    int               `json:"skipped"`
	Failures   []BatchFailureDTO `json:"failures,omitempty"`
	StartedAt  string            `json:"started_at"`
	FinishedAt string            `json:"finished_at"`
}

// BatchFailureDTO is one row a batch could not process.
type BatchFailureDTO struct {
	EmployeeID  string `json:"employee_id"`
	LeaveTypeID string `json:"leave_type_id"`
	Error       string `json:"error"`
}

func toBatchRunDTO(run leave.BatchRun) BatchRunDTO {
	failures := make([]BatchFailureDTO, 0, len(run.Failures))
	for _, f := range run.Failures {
		failures = append(failures, BatchFailureDTO{
			EmployeeID:  string(f.EmployeeID),
			LeaveTypeID: string(f.LeaveTypeID),
			Error:       f.Err,
		})
	}
	return BatchRunDTO{
		Job:        run.Job,
		Year:       run.Year,
		Month:      run.Month,
		Processed:  run.Processed,
		Applied:    run.Applied,
		Skipped:    run.Skipped,
		Failures:   failures,
		StartedAt:  run.StartedAt.Format(time.RFC3339),
		FinishedAt: run.FinishedAt.Format(time.RFC3339),
	}
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
