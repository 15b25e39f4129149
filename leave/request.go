/*
request.go - Leave requests and their state machine

PURPOSE:
  LeaveRequest carries the lifecycle of one leave application. The
  Service validates submissions, reserves balance, routes approvals and
  keeps the ledger consistent through every transition:

    draft ----submit---> pending --approve--> approved
      |                   |  \--reject-----> rejected
      +--submit at create |  \--return-----> returned --resubmit--> pending
                          |  \--cancel-----> cancelled
                          +--(multi-level)-> pending_hr --HR--> approved/rejected

  HR may additionally override a finalized request (approved <->
  rejected) within the engine's rules.

LEDGER COUPLING:
  submit    reserve paid working days     (pending += n)
  approve   commit the reservation        (pending -= n, taken += n)
  reject    release the reservation       (pending -= n)
  return    release the reservation       (pending -= n)
  cancel    release, or credit if already approved
  override  credit or debit taken directly

  Only deductible leave types touch the ledger, and only for the paid
  portion of the request. All validations run BEFORE the first ledger
  mutation, so a failed submission leaves no residue.

RESUBMISSION:
  Returned requests are corrected and resubmitted in place. Each
  submission increments Attempt, which namespaces the ledger keys:
  a resubmit reserves under a fresh key while a replayed transition of
  the same attempt is rejected by the key table.

SEE ALSO:
  - approval.go: Routing and authorization rules
  - ledger.go:   The mutation primitives used here
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// REQUEST STATUSES
// =============================================================================

// RequestStatus is the closed set of lifecycle states.
type RequestStatus string

const (
	StatusDraft     RequestStatus = "draft"
	StatusPending   RequestStatus = "pending"
	StatusPendingHR RequestStatus = "pending_hr"
	StatusApproved  RequestStatus = "approved"
	StatusRejected  RequestStatus = "rejected"
	StatusReturned  RequestStatus = "returned"
	StatusCancelled RequestStatus = "cancelled"
)

// holdingStatuses are the states in which a request holds a ledger
// reservation and blocks overlapping requests.
var holdingStatuses = []RequestStatus{StatusPending, StatusPendingHR, StatusApproved}

// HalfDaySlot distinguishes morning from afternoon half-days.
type HalfDaySlot string

const (
	HalfDayAM HalfDaySlot = "AM"
	HalfDayPM HalfDaySlot = "PM"
)

// =============================================================================
// LEAVE REQUEST
// =============================================================================

type LeaveRequest struct {
	ID          RequestID
	EmployeeID  EmployeeID
	LeaveTypeID LeaveTypeID
	PolicyID    PolicyID

	StartDate   time.Time
	EndDate     time.Time
	HalfDay     bool
	HalfDaySlot HalfDaySlot

	// WorkingDays is the calendar-computed length of the request.
	WorkingDays Days
	// PaidDays is the portion reserved against the entitlement ledger.
	PaidDays Days
	// UnpaidDays is the overflow beyond the available balance, when the
	// policy allows it. WorkingDays = PaidDays + UnpaidDays.
	UnpaidDays Days

	Reason        string
	AttachmentRef string

	Status RequestStatus
	// Attempt counts submissions; it namespaces ledger mutation keys.
	Attempt int
	Steps   []ApprovalStep

	// Year is the entitlement year the request draws on (start date's
	// year).
	Year int

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *LeaveRequest) entitlementKey() EntitlementKey {
	return EntitlementKey{EmployeeID: r.EmployeeID, LeaveTypeID: r.LeaveTypeID, Year: r.Year}
}

// =============================================================================
// REQUEST STORE
// =============================================================================

type RequestStore interface {
	Create(ctx context.Context, req *LeaveRequest) error
	Get(ctx context.Context, id RequestID) (*LeaveRequest, error)
	Update(ctx context.Context, req *LeaveRequest) error
	ListByEmployee(ctx context.Context, employeeID EmployeeID) ([]LeaveRequest, error)
	ListByStatus(ctx context.Context, status RequestStatus) ([]LeaveRequest, error)

	// Overlapping returns the employee's requests in the given statuses
	// whose date range intersects [from, to].
	Overlapping(ctx context.Context, employeeID EmployeeID, from, to time.Time, statuses []RequestStatus) ([]LeaveRequest, error)

	// CountByStatus counts an employee's requests of a type in a status.
	// The occurrence cap check uses it.
	CountByStatus(ctx context.Context, employeeID EmployeeID, leaveTypeID LeaveTypeID, status RequestStatus) (int, error)
}

// =============================================================================
// SERVICE
// =============================================================================

// Service is the request state machine.
type Service struct {
	Requests  RequestStore
	Ledger    *Ledger
	Calendar  *CalendarService
	Employees EmployeeStore
	Catalog   CatalogStore
	Router    ApprovalRouter

	// Now is injectable for tests.
	Now func() time.Time
}

func NewService(reqs RequestStore, ledger *Ledger, cal *CalendarService, emps EmployeeStore, catalog CatalogStore) *Service {
	return &Service{
		Requests:  reqs,
		Ledger:    ledger,
		Calendar:  cal,
		Employees: emps,
		Catalog:   catalog,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// SubmitInput is the caller-supplied content of a request.
type SubmitInput struct {
	EmployeeID    EmployeeID
	LeaveTypeID   LeaveTypeID
	StartDate     time.Time
	EndDate       time.Time
	HalfDay       bool
	HalfDaySlot   HalfDaySlot
	Reason        string
	AttachmentRef string
}

// SaveDraft stores a request without validation beyond well-formedness
// and without touching the ledger.
func (s *Service) SaveDraft(ctx context.Context, in SubmitInput) (*LeaveRequest, error) {
	if err := s.checkWellFormed(in); err != nil {
		return nil, err
	}
	now := s.Now()
	req := &LeaveRequest{
		ID:            RequestID(uuid.NewString()),
		EmployeeID:    in.EmployeeID,
		LeaveTypeID:   in.LeaveTypeID,
		StartDate:     truncateDay(in.StartDate),
		EndDate:       truncateDay(in.EndDate),
		HalfDay:       in.HalfDay,
		HalfDaySlot:   in.HalfDaySlot,
		Reason:        in.Reason,
		AttachmentRef: in.AttachmentRef,
		Status:        StatusDraft,
		Year:          in.StartDate.Year(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Requests.Create(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Submit validates and submits a new request. All checks pass before
// the reservation is attempted; a failed reservation leaves the request
// uncreated.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*LeaveRequest, error) {
	req, err := s.SaveDraft(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.SubmitDraft(ctx, req.ID, in.EmployeeID)
}

// SubmitDraft moves a draft (or a request being resubmitted via
// Resubmit) through the validation pipeline into pending, reserving
// balance on the way.
func (s *Service) SubmitDraft(ctx context.Context, id RequestID, actorID EmployeeID) (*LeaveRequest, error) {
	req, err := s.Requests.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusDraft {
		return nil, &TransitionError{RequestID: id, Status: req.Status, Action: "submit", Role: RoleEmployee}
	}
	if req.EmployeeID != actorID {
		return nil, &TransitionError{RequestID: id, Status: req.Status, Action: "submit", Role: RoleEmployee}
	}
	return s.submit(ctx, req)
}

func (s *Service) submit(ctx context.Context, req *LeaveRequest) (*LeaveRequest, error) {
	emp, lt, policy, err := s.loadContext(ctx, req.EmployeeID, req.LeaveTypeID)
	if err != nil {
		return nil, err
	}

	if err := s.validate(ctx, req, emp, lt, policy); err != nil {
		return nil, err
	}

	req.Attempt++
	req.PolicyID = policy.ID

	// Reservation. Non-deductible types never touch the ledger; their
	// whole length is paid by definition of the type.
	if lt.Deductible {
		if err := s.reserve(ctx, req, policy); err != nil {
			return nil, err
		}
	} else {
		req.PaidDays = ZeroDays()
		req.UnpaidDays = ZeroDays()
	}

	now := s.Now()
	req.UpdatedAt = now
	if s.Router.AutoApproves(policy.Approval) {
		if err := s.commitReservation(ctx, req); err != nil {
			return nil, err
		}
		req.Status = StatusApproved
		req.Steps = append(req.Steps, ApprovalStep{
			Role: RoleHR, ActorID: "system", Decision: DecisionApprove,
			Comment: "auto-approved", At: now,
		})
	} else {
		req.Status = StatusPending
	}

	if err := s.Requests.Update(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// =============================================================================
// VALIDATION PIPELINE
// =============================================================================

func (s *Service) checkWellFormed(in SubmitInput) error {
	if in.EmployeeID == "" || in.LeaveTypeID == "" {
		return fmt.Errorf("%w: employee and leave type are required", ErrValidation)
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrValidation)
	}
	if in.EndDate.Before(in.StartDate) {
		return fmt.Errorf("%w: end date before start date", ErrValidation)
	}
	if in.HalfDay && !truncateDay(in.StartDate).Equal(truncateDay(in.EndDate)) {
		return fmt.Errorf("%w: half-day requests cover a single date", ErrValidation)
	}
	if in.HalfDay && in.HalfDaySlot != HalfDayAM && in.HalfDaySlot != HalfDayPM {
		return fmt.Errorf("%w: half-day requests need an AM or PM slot", ErrValidation)
	}
	return nil
}

func (s *Service) loadContext(ctx context.Context, empID EmployeeID, ltID LeaveTypeID) (*EmployeeProfile, *LeaveType, *LeavePolicy, error) {
	emp, err := s.Employees.Employee(ctx, empID)
	if err != nil {
		return nil, nil, nil, err
	}
	lt, err := s.Catalog.LeaveType(ctx, ltID)
	if err != nil {
		return nil, nil, nil, err
	}
	if !lt.Active {
		return nil, nil, nil, fmt.Errorf("%w: leave type %s is inactive", ErrValidation, ltID)
	}
	policy, err := s.Catalog.ActivePolicy(ctx, ltID)
	if err != nil {
		return nil, nil, nil, err
	}
	return emp, lt, policy, nil
}

func (s *Service) validate(ctx context.Context, req *LeaveRequest, emp *EmployeeProfile, lt *LeaveType, policy *LeavePolicy) error {
	now := s.Now()

	// Eligibility: type gates, policy gates, lifetime occurrence cap.
	if !eligibleForType(*emp, *lt, policy, req.StartDate) {
		return fmt.Errorf("%w: %s/%s", ErrIneligible, emp.ID, lt.ID)
	}
	if lt.MaxOccurrences > 0 {
		n, err := s.Requests.CountByStatus(ctx, emp.ID, lt.ID, StatusApproved)
		if err != nil {
			return err
		}
		if n >= lt.MaxOccurrences {
			return fmt.Errorf("%w: occurrence limit %d reached for %s", ErrIneligible, lt.MaxOccurrences, lt.ID)
		}
	}

	// Length.
	wd, err := s.Calendar.WorkingDays(ctx, req.StartDate, req.EndDate, req.HalfDay)
	if err != nil {
		return err
	}
	if !wd.IsPositive() {
		return fmt.Errorf("%w: range contains no working days", ErrValidation)
	}
	req.WorkingDays = wd
	if lt.MaxDurationDays > 0 && wd.GreaterThan(DaysOfInt(lt.MaxDurationDays)) {
		return fmt.Errorf("%w: %s days exceeds limit of %d", ErrExceedsMaxDuration, wd, lt.MaxDurationDays)
	}

	// Notice.
	if lt.MinNoticeDays > 0 {
		earliest := truncateDay(now).AddDate(0, 0, lt.MinNoticeDays)
		if req.StartDate.Before(earliest) {
			return fmt.Errorf("%w: requires %d days notice", ErrBelowMinNotice, lt.MinNoticeDays)
		}
	}

	// Blocked periods.
	if bp, err := s.Calendar.CheckBlocked(ctx, req.StartDate, req.EndDate, lt.ID); err != nil {
		return err
	} else if bp != nil {
		return &BlockedPeriodError{Name: bp.Name, BlockType: bp.BlockType}
	}

	// Overlap against the employee's own holding requests.
	if !policy.Approval.AllowOverlap {
		overlaps, err := s.Requests.Overlapping(ctx, emp.ID, req.StartDate, req.EndDate, holdingStatuses)
		if err != nil {
			return err
		}
		for _, o := range overlaps {
			if o.ID == req.ID {
				continue
			}
			// Two half-days on the same date coexist when they take
			// opposite slots.
			if req.HalfDay && o.HalfDay && req.HalfDaySlot != o.HalfDaySlot &&
				o.StartDate.Equal(req.StartDate) && o.EndDate.Equal(req.EndDate) {
				continue
			}
			return &OverlapError{RequestID: o.ID, Status: o.Status}
		}
	}

	// Attachments.
	needsDoc := lt.RequiresAttachment || policy.Documents.Requires(wd)
	if needsDoc && req.AttachmentRef == "" {
		return fmt.Errorf("%w: %s", ErrAttachmentRequired, lt.Name)
	}
	return nil
}

// =============================================================================
// LEDGER COUPLING
// =============================================================================

func (s *Service) reserve(ctx context.Context, req *LeaveRequest, policy *LeavePolicy) error {
	key := req.entitlementKey()
	mut := Mutation{
		Key:       RequestMutationKey(req.ID, req.Attempt, OpReserve),
		RequestID: req.ID,
		ActorID:   req.EmployeeID,
	}

	if policy.AllowUnpaidOverflow {
		bal, err := s.Ledger.Balance(ctx, key)
		if err != nil {
			return err
		}
		paid := bal.Available().Max(ZeroDays()).Min(req.WorkingDays)
		req.PaidDays = paid
		req.UnpaidDays = req.WorkingDays.Sub(paid)
		if paid.IsPositive() {
			// The guard can still fail if balance dropped since the
			// read; the request then surfaces the shortfall.
			if _, err := s.Ledger.Reserve(ctx, key, paid, mut); err != nil && !IsDuplicateMutation(err) {
				return err
			}
		}
		return nil
	}

	req.PaidDays = req.WorkingDays
	req.UnpaidDays = ZeroDays()
	if _, err := s.Ledger.Reserve(ctx, key, req.WorkingDays, mut); err != nil && !IsDuplicateMutation(err) {
		return err
	}
	return nil
}

func (s *Service) commitReservation(ctx context.Context, req *LeaveRequest) error {
	if !req.PaidDays.IsPositive() {
		return nil
	}
	mut := Mutation{
		Key:       RequestMutationKey(req.ID, req.Attempt, OpCommit),
		RequestID: req.ID,
		ActorID:   req.EmployeeID,
	}
	if _, err := s.Ledger.Commit(ctx, req.entitlementKey(), req.PaidDays, mut); err != nil && !IsDuplicateMutation(err) {
		return err
	}
	return nil
}

func (s *Service) releaseReservation(ctx context.Context, req *LeaveRequest, actorID EmployeeID) error {
	if !req.PaidDays.IsPositive() {
		return nil
	}
	mut := Mutation{
		Key:       RequestMutationKey(req.ID, req.Attempt, OpRelease),
		RequestID: req.ID,
		ActorID:   actorID,
	}
	if _, err := s.Ledger.Release(ctx, req.entitlementKey(), req.PaidDays, mut); err != nil && !IsDuplicateMutation(err) {
		return err
	}
	return nil
}

// =============================================================================
// DECISIONS
// =============================================================================

// Decide records an approver's verdict on a request awaiting approval.
func (s *Service) Decide(ctx context.Context, id RequestID, actorID EmployeeID, role Role, decision Decision, comment string) (*LeaveRequest, error) {
	req, err := s.Requests.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	policy, err := s.Catalog.ActivePolicy(ctx, req.LeaveTypeID)
	if err != nil {
		return nil, err
	}

	if !s.Router.Authorize(role, req.Status, policy.Approval) {
		return nil, &TransitionError{RequestID: id, Status: req.Status, Action: string(decision), Role: role}
	}

	now := s.Now()
	switch decision {
	case DecisionApprove:
		next := s.Router.AfterApproval(role, req.Status, policy.Approval)
		if next == StatusApproved {
			if err := s.commitReservation(ctx, req); err != nil {
				return nil, err
			}
		}
		req.Status = next
	case DecisionReject:
		if err := s.releaseReservation(ctx, req, actorID); err != nil {
			return nil, err
		}
		req.Status = StatusRejected
	case DecisionReturn:
		if err := s.releaseReservation(ctx, req, actorID); err != nil {
			return nil, err
		}
		req.Status = StatusReturned
	default:
		return nil, fmt.Errorf("%w: unknown decision %q", ErrValidation, decision)
	}

	req.Steps = append(req.Steps, ApprovalStep{
		Role: role, ActorID: actorID, Decision: decision, Comment: comment, At: now,
	})
	req.UpdatedAt = now
	if err := s.Requests.Update(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// BulkOutcome is one request's result in a bulk decision.
type BulkOutcome struct {
	RequestID RequestID
	Status    RequestStatus
	Err       string
}

// BulkDecide applies the same decision to many requests, isolating
// failures per request.
func (s *Service) BulkDecide(ctx context.Context, ids []RequestID, actorID EmployeeID, role Role, decision Decision, comment string) []BulkOutcome {
	outcomes := make([]BulkOutcome, 0, len(ids))
	for _, id := range ids {
		req, err := s.Decide(ctx, id, actorID, role, decision, comment)
		if err != nil {
			outcomes = append(outcomes, BulkOutcome{RequestID: id, Err: err.Error()})
			continue
		}
		outcomes = append(outcomes, BulkOutcome{RequestID: id, Status: req.Status})
	}
	return outcomes
}

// =============================================================================
// CANCEL, RESUBMIT, OVERRIDE
// =============================================================================

// Cancel withdraws a request. The owner may cancel a draft, pending,
// pending_hr or not-yet-started approved request; the ledger hold or
// consumption is reversed.
func (s *Service) Cancel(ctx context.Context, id RequestID, actorID EmployeeID) (*LeaveRequest, error) {
	req, err := s.Requests.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.EmployeeID != actorID {
		return nil, &TransitionError{RequestID: id, Status: req.Status, Action: "cancel", Role: RoleEmployee}
	}

	now := s.Now()
	switch req.Status {
	case StatusDraft, StatusReturned:
		// No reservation to reverse.
	case StatusPending, StatusPendingHR:
		if err := s.releaseReservation(ctx, req, actorID); err != nil {
			return nil, err
		}
	case StatusApproved:
		// Only strictly before the start date; the start date itself is
		// too late.
		if !truncateDay(req.StartDate).After(truncateDay(now)) {
			return nil, &TransitionError{RequestID: id, Status: req.Status, Action: "cancel", Role: RoleEmployee}
		}
		if req.PaidDays.IsPositive() {
			mut := Mutation{
				Key:       RequestMutationKey(req.ID, req.Attempt, OpCredit),
				RequestID: req.ID,
				ActorID:   actorID,
				Reason:    "approved request cancelled",
			}
			if _, err := s.Ledger.Credit(ctx, req.entitlementKey(), req.PaidDays, mut); err != nil && !IsDuplicateMutation(err) {
				return nil, err
			}
		}
	default:
		return nil, &TransitionError{RequestID: id, Status: req.Status, Action: "cancel", Role: RoleEmployee}
	}

	req.Status = StatusCancelled
	req.UpdatedAt = now
	if err := s.Requests.Update(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// ResubmitInput carries the corrected fields of a returned request.
// Nil time fields keep the stored values.
type ResubmitInput struct {
	StartDate     *time.Time
	EndDate       *time.Time
	HalfDay       *bool
	HalfDaySlot   HalfDaySlot
	Reason        string
	AttachmentRef string
}

// applyEdits merges the corrected fields into the request and re-checks
// its shape. Empty fields keep the stored values.
func applyEdits(req *LeaveRequest, in ResubmitInput) error {
	if in.StartDate != nil {
		req.StartDate = truncateDay(*in.StartDate)
		req.Year = in.StartDate.Year()
	}
	if in.EndDate != nil {
		req.EndDate = truncateDay(*in.EndDate)
	}
	if in.HalfDay != nil {
		req.HalfDay = *in.HalfDay
	}
	if in.HalfDaySlot != "" {
		req.HalfDaySlot = in.HalfDaySlot
	}
	if in.Reason != "" {
		req.Reason = in.Reason
	}
	if in.AttachmentRef != "" {
		req.AttachmentRef = in.AttachmentRef
	}
	if req.EndDate.Before(req.StartDate) {
		return fmt.Errorf("%w: end date before start date", ErrValidation)
	}
	if req.HalfDay && !req.StartDate.Equal(req.EndDate) {
		return fmt.Errorf("%w: half-day requests cover a single date", ErrValidation)
	}
	return nil
}

// Resubmit corrects a returned request and sends it through the full
// validation pipeline again under a new attempt.
func (s *Service) Resubmit(ctx context.Context, id RequestID, actorID EmployeeID, in ResubmitInput) (*LeaveRequest, error) {
	req, err := s.Requests.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusReturned {
		return nil, &TransitionError{RequestID: id, Status: req.Status, Action: "resubmit", Role: RoleEmployee}
	}
	if req.EmployeeID != actorID {
		return nil, &TransitionError{RequestID: id, Status: req.Status, Action: "resubmit", Role: RoleEmployee}
	}
	if err := applyEdits(req, in); err != nil {
		return nil, err
	}
	return s.submit(ctx, req)
}

// Modify edits a request in place. Drafts and returned requests hold no
// reservation, so their content is simply updated. A pending (or
// pending_hr) request is re-run through the full validation pipeline
// under a new attempt, discarding collected approvals; its reservation
// is only released once the edited content has validated, so a failed
// modification leaves the stored request and its hold untouched. If
// re-reserving the edited range fails, the request is parked as
// returned rather than left pending without a hold.
func (s *Service) Modify(ctx context.Context, id RequestID, actorID EmployeeID, in ResubmitInput) (*LeaveRequest, error) {
	req, err := s.Requests.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.EmployeeID != actorID {
		return nil, &TransitionError{RequestID: id, Status: req.Status, Action: "modify", Role: RoleEmployee}
	}

	switch req.Status {
	case StatusDraft, StatusReturned:
		if err := applyEdits(req, in); err != nil {
			return nil, err
		}
		req.UpdatedAt = s.Now()
		if err := s.Requests.Update(ctx, req); err != nil {
			return nil, err
		}
		return req, nil

	case StatusPending, StatusPendingHR:
		next := *req
		next.Steps = nil
		if err := applyEdits(&next, in); err != nil {
			return nil, err
		}
		emp, lt, policy, err := s.loadContext(ctx, next.EmployeeID, next.LeaveTypeID)
		if err != nil {
			return nil, err
		}
		if err := s.validate(ctx, &next, emp, lt, policy); err != nil {
			return nil, err
		}

		// The edit is known-good; swap the hold. The stored request is
		// parked as returned between release and re-reserve so a
		// reservation failure cannot leave a pending request without
		// its hold.
		if err := s.releaseReservation(ctx, req, actorID); err != nil {
			return nil, err
		}
		req.Status = StatusReturned
		req.PaidDays = ZeroDays()
		req.UnpaidDays = ZeroDays()
		req.UpdatedAt = s.Now()
		if err := s.Requests.Update(ctx, req); err != nil {
			return nil, err
		}
		return s.submit(ctx, &next)

	default:
		return nil, &TransitionError{RequestID: id, Status: req.Status, Action: "modify", Role: RoleEmployee}
	}
}

// Override lets HR reverse a finalized decision. approved -> rejected
// credits the consumed days back; rejected -> approved debits them
// directly (the original reservation was released at rejection).
func (s *Service) Override(ctx context.Context, id RequestID, actorID EmployeeID, decision Decision, comment string) (*LeaveRequest, error) {
	req, err := s.Requests.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	switch {
	case req.Status == StatusApproved && decision == DecisionReject:
		if req.PaidDays.IsPositive() {
			mut := Mutation{
				Key:       fmt.Sprintf("%s:%d:override-credit", req.ID, req.Attempt),
				Op:        OpCredit,
				RequestID: req.ID,
				ActorID:   actorID,
				Reason:    "hr override: approval reversed",
			}
			if _, err := s.Ledger.Credit(ctx, req.entitlementKey(), req.PaidDays, mut); err != nil && !IsDuplicateMutation(err) {
				return nil, err
			}
		}
		req.Status = StatusRejected
	case req.Status == StatusRejected && decision == DecisionApprove:
		if req.PaidDays.IsPositive() {
			mut := Mutation{
				Key:       fmt.Sprintf("%s:%d:override-debit", req.ID, req.Attempt),
				Op:        OpDebit,
				RequestID: req.ID,
				ActorID:   actorID,
				Reason:    "hr override: rejection reversed",
			}
			if _, err := s.Ledger.Debit(ctx, req.entitlementKey(), req.PaidDays, mut); err != nil && !IsDuplicateMutation(err) {
				return nil, err
			}
		}
		req.Status = StatusApproved
	default:
		return nil, &TransitionError{RequestID: id, Status: req.Status, Action: "override-" + string(decision), Role: RoleHR}
	}

	req.Steps = append(req.Steps, ApprovalStep{
		Role: RoleHR, ActorID: actorID, Decision: decision, Comment: comment, At: now,
	})
	req.UpdatedAt = now
	if err := s.Requests.Update(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// =============================================================================
// QUERIES
// =============================================================================

func (s *Service) Get(ctx context.Context, id RequestID) (*LeaveRequest, error) {
	return s.Requests.Get(ctx, id)
}

func (s *Service) ListByEmployee(ctx context.Context, employeeID EmployeeID) ([]LeaveRequest, error) {
	return s.Requests.ListByEmployee(ctx, employeeID)
}

func (s *Service) ListByStatus(ctx context.Context, status RequestStatus) ([]LeaveRequest, error) {
	return s.Requests.ListByStatus(ctx, status)
}
