/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the leave engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Employees:
    GET    /api/employees                 List all employees
    POST   /api/employees                 Create/update employee profile
    GET    /api/employees/{id}            Get employee details
    GET    /api/employees/{id}/balance    Entitlement rows for a year
    GET    /api/employees/{id}/requests   Request history
    POST   /api/employees/{id}/requests   Submit (or draft) a request

  Requests:
    GET    /api/requests/pending          Approval queue
    GET    /api/requests/{id}             Request detail
    POST   /api/requests/{id}/submit      Submit a saved draft
    POST   /api/requests/{id}/approve     Approve (manager or hr)
    POST   /api/requests/{id}/reject      Reject
    POST   /api/requests/{id}/return      Return for correction
    POST   /api/requests/{id}/resubmit    Resubmit a returned request
    POST   /api/requests/{id}/modify      Modify a pending request
    POST   /api/requests/{id}/cancel      Cancel
    POST   /api/requests/{id}/override    HR override of a final decision
    POST   /api/requests/bulk             Bulk approve/reject/return

  Catalog and calendar:
    GET    /api/leave-types               List active leave types
    POST   /api/leave-types               Create type (+policy) from JSON
    POST   /api/holidays                  Add a public holiday
    GET    /api/blocked-periods           List active blocked periods
    POST   /api/blocked-periods           Create/update a blocked period

  Ledger:
    GET    /api/adjustments               Audit trail for one row

  Admin:
    POST   /api/admin/accrual             Run monthly accrual
    POST   /api/admin/carryforward        Run year-end carry-forward
    POST   /api/admin/adjustments         Manual balance correction
    GET    /api/admin/runs                Batch run records
    POST   /api/admin/seed                Load the default catalog

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, policy violations, invalid transitions
  - 404: Resource not found
  - 409: Replayed ledger mutation
  - 500: Internal errors

SECURITY NOTE:
  No authentication middleware. Actor identity and role come from the
  request body; mapping authenticated users to roles is the deploying
  application's responsibility.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/luminahr/leave-engine/factory"
	"github.com/luminahr/leave-engine/leave"
	"github.com/luminahr/leave-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Ledger   *leave.Ledger
	Calendar *leave.CalendarService
	Requests *leave.Service
	Accrual  *leave.AccrualService
}

// NewHandler wires the domain services around a store.
func NewHandler(store *sqlite.Store) *Handler {
	ledger := leave.NewLedger(store)
	calendar := leave.NewCalendarService(store)
	return &Handler{
		Store:    store,
		Ledger:   ledger,
		Calendar: calendar,
		Requests: leave.NewService(store.Requests(), ledger, calendar, store, store),
		Accrual:  leave.NewAccrualService(store, store, store),
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all active employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ActiveEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}
	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEmployee creates or updates an employee profile projection.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" || req.HireDate == "" {
		writeError(w, http.StatusBadRequest, "id, name and hire_date are required", nil)
		return
	}
	hireDate, err := time.Parse("2006-01-02", req.HireDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid hire_date, want YYYY-MM-DD", err)
		return
	}

	profile := leave.EmployeeProfile{
		ID:             leave.EmployeeID(req.ID),
		Name:           req.Name,
		Email:          req.Email,
		Gender:         leave.Gender(req.Gender),
		EmploymentType: leave.EmploymentType(req.EmploymentType),
		HireDate:       hireDate,
		ManagerID:      leave.EmployeeID(req.ManagerID),
	}
	if err := h.Store.SaveEmployee(r.Context(), profile); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(profile))
}

// GetEmployee returns one employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	profile, err := h.Store.Employee(r.Context(), leave.EmployeeID(id))
	if err != nil {
		writeDomainError(w, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*profile))
}

// GetBalance returns the employee's entitlement rows for a year.
// GET /api/employees/{id}/balance?year=2026
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	year := queryYear(r, time.Now().UTC().Year())

	rows, err := h.Store.ListByEmployee(r.Context(), leave.EmployeeID(id), year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load balance", err)
		return
	}
	dtos := make([]BalanceDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toBalanceDTO(row, h.yearlyAllowance(r.Context(), row.LeaveTypeID))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// yearlyAllowance is the active policy's annual days for a type; zero
// for unmanaged types.
func (h *Handler) yearlyAllowance(ctx context.Context, leaveTypeID leave.LeaveTypeID) leave.Days {
	policy, err := h.Store.ActivePolicy(ctx, leaveTypeID)
	if err != nil {
		return leave.ZeroDays()
	}
	return policy.AnnualDays
}

// ListEmployeeRequests returns the employee's request history.
func (h *Handler) ListEmployeeRequests(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	reqs, err := h.Requests.ListByEmployee(r.Context(), leave.EmployeeID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(reqs))
}

// =============================================================================
// REQUEST LIFECYCLE HANDLERS
// =============================================================================

// SubmitRequest submits (or drafts) a leave request for an employee.
// POST /api/employees/{id}/requests
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")

	var dto SubmitRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, err := time.Parse("2006-01-02", dto.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date, want YYYY-MM-DD", err)
		return
	}
	end, err := time.Parse("2006-01-02", dto.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date, want YYYY-MM-DD", err)
		return
	}

	in := leave.SubmitInput{
		EmployeeID:    leave.EmployeeID(employeeID),
		LeaveTypeID:   leave.LeaveTypeID(dto.LeaveTypeID),
		StartDate:     start,
		EndDate:       end,
		HalfDay:       dto.HalfDay,
		HalfDaySlot:   leave.HalfDaySlot(dto.HalfDaySlot),
		Reason:        dto.Reason,
		AttachmentRef: dto.AttachmentRef,
	}

	var req *leave.LeaveRequest
	if dto.Draft {
		req, err = h.Requests.SaveDraft(r.Context(), in)
	} else {
		req, err = h.Requests.Submit(r.Context(), in)
	}
	if err != nil {
		writeDomainError(w, "Failed to submit request", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(*req))
}

// GetRequest returns one request.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, err := h.Requests.Get(r.Context(), leave.RequestID(id))
	if err != nil {
		writeDomainError(w, "Failed to get request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// ListPendingRequests returns the approval queue.
// GET /api/requests/pending?status=pending_hr
func (h *Handler) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	status := leave.RequestStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = leave.StatusPending
	}
	reqs, err := h.Requests.ListByStatus(r.Context(), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(reqs))
}

// SubmitDraft submits a previously saved draft.
// POST /api/requests/{id}/submit
func (h *Handler) SubmitDraft(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	actor, ok := readActor(w, r)
	if !ok {
		return
	}
	req, err := h.Requests.SubmitDraft(r.Context(), leave.RequestID(id), actor)
	if err != nil {
		writeDomainError(w, "Failed to submit draft", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// ApproveRequest records an approval.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, leave.DecisionApprove)
}

// RejectRequest records a rejection.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, leave.DecisionReject)
}

// ReturnRequest sends a request back for correction.
func (h *Handler) ReturnRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, leave.DecisionReturn)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, decision leave.Decision) {
	id := chi.URLParam(r, "id")

	var body DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	role, err := parseRole(body.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid role", err)
		return
	}

	req, err := h.Requests.Decide(r.Context(), leave.RequestID(id),
		leave.EmployeeID(body.ActorID), role, decision, body.Comment)
	if err != nil {
		writeDomainError(w, "Failed to record decision", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// ResubmitRequest corrects and resubmits a returned request.
func (h *Handler) ResubmitRequest(w http.ResponseWriter, r *http.Request) {
	h.rework(w, r, true)
}

// ModifyRequest edits a pending request in place.
func (h *Handler) ModifyRequest(w http.ResponseWriter, r *http.Request) {
	h.rework(w, r, false)
}

func (h *Handler) rework(w http.ResponseWriter, r *http.Request, resubmit bool) {
	id := chi.URLParam(r, "id")
	actorID := r.URL.Query().Get("actor_id")

	var dto ModifyRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := leave.ResubmitInput{
		HalfDay:       dto.HalfDay,
		HalfDaySlot:   leave.HalfDaySlot(dto.HalfDaySlot),
		Reason:        dto.Reason,
		AttachmentRef: dto.AttachmentRef,
	}
	if dto.StartDate != "" {
		t, err := time.Parse("2006-01-02", dto.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start_date", err)
			return
		}
		in.StartDate = &t
	}
	if dto.EndDate != "" {
		t, err := time.Parse("2006-01-02", dto.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end_date", err)
			return
		}
		in.EndDate = &t
	}

	var (
		req *leave.LeaveRequest
		err error
	)
	if resubmit {
		req, err = h.Requests.Resubmit(r.Context(), leave.RequestID(id), leave.EmployeeID(actorID), in)
	} else {
		req, err = h.Requests.Modify(r.Context(), leave.RequestID(id), leave.EmployeeID(actorID), in)
	}
	if err != nil {
		writeDomainError(w, "Failed to update request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// CancelRequest withdraws a request.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	actor, ok := readActor(w, r)
	if !ok {
		return
	}
	req, err := h.Requests.Cancel(r.Context(), leave.RequestID(id), actor)
	if err != nil {
		writeDomainError(w, "Failed to cancel request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// OverrideRequest lets HR reverse a finalized decision.
// POST /api/requests/{id}/override  body: {"actor_id": ..., "decision": "approve"|"reject"}
func (h *Handler) OverrideRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		ActorID  string `json:"actor_id"`
		Decision string `json:"decision"`
		Comment  string `json:"comment,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	req, err := h.Requests.Override(r.Context(), leave.RequestID(id),
		leave.EmployeeID(body.ActorID), leave.Decision(body.Decision), body.Comment)
	if err != nil {
		writeDomainError(w, "Failed to override request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// BulkDecide applies one decision to many requests.
// POST /api/requests/bulk
func (h *Handler) BulkDecide(w http.ResponseWriter, r *http.Request) {
	var body BulkDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	role, err := parseRole(body.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid role", err)
		return
	}
	decision := leave.Decision(body.Decision)
	switch decision {
	case leave.DecisionApprove, leave.DecisionReject, leave.DecisionReturn:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown decision %q", body.Decision), nil)
		return
	}

	ids := make([]leave.RequestID, len(body.RequestIDs))
	for i, id := range body.RequestIDs {
		ids[i] = leave.RequestID(id)
	}
	outcomes := h.Requests.BulkDecide(r.Context(), ids,
		leave.EmployeeID(body.ActorID), role, decision, body.Comment)

	dtos := make([]BulkOutcomeDTO, len(outcomes))
	for i, o := range outcomes {
		dtos[i] = BulkOutcomeDTO{RequestID: string(o.RequestID), Status: string(o.Status), Error: o.Err}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CATALOG AND CALENDAR HANDLERS
// =============================================================================

// ListLeaveTypes returns all active leave types.
func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Store.ActiveLeaveTypes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list leave types", err)
		return
	}
	dtos := make([]LeaveTypeDTO, len(types))
	for i, lt := range types {
		dtos[i] = toLeaveTypeDTO(lt)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLeaveType creates a leave type (and its policy) from the JSON
// catalog schema.
func (h *Handler) CreateLeaveType(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}
	def, err := factory.ParseLeaveTypeDef(string(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid leave type definition", err)
		return
	}
	if err := h.Store.SaveLeaveType(r.Context(), def.Type); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save leave type", err)
		return
	}
	if def.Policy != nil {
		if err := h.Store.SavePolicy(r.Context(), *def.Policy); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save policy", err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, toLeaveTypeDTO(def.Type))
}

// CreateHoliday adds one public holiday to a calendar.
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var body HolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := time.Parse("2006-01-02", body.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date, want YYYY-MM-DD", err)
		return
	}
	holiday := leave.PublicHoliday{
		CalendarID: leave.CalendarID(body.CalendarID),
		Date:       date,
		Name:       body.Name,
	}
	if err := h.Store.SaveHoliday(r.Context(), holiday); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, body)
}

// ListBlockedPeriods returns active blocked periods for a date range.
// GET /api/blocked-periods?from=...&to=...
func (h *Handler) ListBlockedPeriods(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from := queryDate(r, "from", now)
	to := queryDate(r, "to", now.AddDate(1, 0, 0))

	periods, err := h.Store.ActiveBlockedPeriods(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list blocked periods", err)
		return
	}
	writeJSON(w, http.StatusOK, periods)
}

// CreateBlockedPeriod creates or updates a blocked period.
func (h *Handler) CreateBlockedPeriod(w http.ResponseWriter, r *http.Request) {
	var body BlockedPeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, err := time.Parse("2006-01-02", body.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date", err)
		return
	}
	end, err := time.Parse("2006-01-02", body.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date", err)
		return
	}
	blockType := leave.BlockType(body.BlockType)
	if blockType != leave.BlockFull && blockType != leave.BlockPartial {
		writeError(w, http.StatusBadRequest, "block_type must be FULL or PARTIAL", nil)
		return
	}

	typeIDs := make([]leave.LeaveTypeID, len(body.LeaveTypeIDs))
	for i, id := range body.LeaveTypeIDs {
		typeIDs[i] = leave.LeaveTypeID(id)
	}
	active := true
	if body.Active != nil {
		active = *body.Active
	}
	bp := leave.BlockedPeriod{
		ID:           body.ID,
		Name:         body.Name,
		StartDate:    start,
		EndDate:      end,
		Reason:       body.Reason,
		BlockType:    blockType,
		LeaveTypeIDs: typeIDs,
		Active:       active,
	}
	if err := h.Store.SaveBlockedPeriod(r.Context(), bp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save blocked period", err)
		return
	}
	writeJSON(w, http.StatusCreated, bp)
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// ListAdjustments returns the audit trail for one entitlement row.
// GET /api/adjustments?employee_id=...&leave_type_id=...&year=...
func (h *Handler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	employeeID := r.URL.Query().Get("employee_id")
	leaveTypeID := r.URL.Query().Get("leave_type_id")
	if employeeID == "" || leaveTypeID == "" {
		writeError(w, http.StatusBadRequest, "employee_id and leave_type_id are required", nil)
		return
	}
	year := queryYear(r, time.Now().UTC().Year())

	adjs, err := h.Ledger.History(r.Context(), leave.EntitlementKey{
		EmployeeID:  leave.EmployeeID(employeeID),
		LeaveTypeID: leave.LeaveTypeID(leaveTypeID),
		Year:        year,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load adjustments", err)
		return
	}
	dtos := make([]AdjustmentDTO, len(adjs))
	for i, a := range adjs {
		dtos[i] = toAdjustmentDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerAccrual runs the monthly accrual job.
// POST /api/admin/accrual  body: {"year": 2026, "month": 8}
func (h *Handler) TriggerAccrual(w http.ResponseWriter, r *http.Request) {
	var body BatchJobRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if body.Year == 0 || body.Month < 1 || body.Month > 12 {
		writeError(w, http.StatusBadRequest, "year and month (1-12) are required", nil)
		return
	}

	run, err := h.Accrual.Accrue(r.Context(), body.Year, time.Month(body.Month))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Accrual run failed", err)
		return
	}
	if err := h.Store.SaveBatchRun(r.Context(), *run); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record batch run", err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchRunDTO(*run))
}

// TriggerCarryForward runs the year-end carry-forward job.
// POST /api/admin/carryforward  body: {"year": 2026}
func (h *Handler) TriggerCarryForward(w http.ResponseWriter, r *http.Request) {
	var body BatchJobRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if body.Year == 0 {
		writeError(w, http.StatusBadRequest, "year is required", nil)
		return
	}

	run, err := h.Accrual.CarryForward(r.Context(), body.Year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Carry-forward run failed", err)
		return
	}
	if err := h.Store.SaveBatchRun(r.Context(), *run); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record batch run", err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchRunDTO(*run))
}

// CreateAdjustment applies a manual HR balance correction.
// POST /api/admin/adjustments
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var body ManualAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	year := body.Year
	if year == 0 {
		year = time.Now().UTC().Year()
	}

	key := leave.EntitlementKey{
		EmployeeID:  leave.EmployeeID(body.EmployeeID),
		LeaveTypeID: leave.LeaveTypeID(body.LeaveTypeID),
		Year:        year,
	}
	mut := leave.Mutation{
		Key:     fmt.Sprintf("manual:%s:%s:%d:%d", body.EmployeeID, body.LeaveTypeID, year, time.Now().UnixNano()),
		ActorID: leave.EmployeeID(body.ActorID),
		Reason:  body.Reason,
	}
	row, err := h.Ledger.ManualAdjust(r.Context(), key, leave.DaysOf(body.Days), mut)
	if err != nil {
		writeDomainError(w, "Failed to apply adjustment", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(*row, h.yearlyAllowance(r.Context(), key.LeaveTypeID)))
}

// ListBatchRuns returns recorded batch runs.
func (h *Handler) ListBatchRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListBatchRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list batch runs", err)
		return
	}
	dtos := make([]BatchRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toBatchRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SeedDefaults loads the default catalog and calendar.
// POST /api/admin/seed?year=2026
func (h *Handler) SeedDefaults(w http.ResponseWriter, r *http.Request) {
	year := queryYear(r, time.Now().UTC().Year())
	if err := factory.SeedDefaults(r.Context(), h.Store, year); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to seed defaults", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"seeded": true, "year": year})
}

// =============================================================================
// HELPERS
// =============================================================================

func toRequestDTOs(reqs []leave.LeaveRequest) []RequestDTO {
	dtos := make([]RequestDTO, len(reqs))
	for i, req := range reqs {
		dtos[i] = toRequestDTO(req)
	}
	return dtos
}

func parseRole(s string) (leave.Role, error) {
	switch leave.Role(s) {
	case leave.RoleManager:
		return leave.RoleManager, nil
	case leave.RoleHR:
		return leave.RoleHR, nil
	case leave.RoleEmployee:
		return leave.RoleEmployee, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// readActor pulls the acting employee from the body, falling back to
// the actor_id query parameter.
func readActor(w http.ResponseWriter, r *http.Request) (leave.EmployeeID, bool) {
	var body struct {
		ActorID string `json:"actor_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return "", false
	}
	if body.ActorID == "" {
		body.ActorID = r.URL.Query().Get("actor_id")
	}
	if body.ActorID == "" {
		writeError(w, http.StatusBadRequest, "actor_id is required", nil)
		return "", false
	}
	return leave.EmployeeID(body.ActorID), true
}

func queryYear(r *http.Request, fallback int) int {
	if s := r.URL.Query().Get("year"); s != "" {
		var year int
		if _, err := fmt.Sscanf(s, "%d", &year); err == nil && year > 0 {
			return year
		}
	}
	return fallback
}

func queryDate(r *http.Request, param string, fallback time.Time) time.Time {
	if s := r.URL.Query().Get(param); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return t
		}
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case leave.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case leave.IsDuplicateMutation(err):
		writeError(w, http.StatusConflict, message, err)
	case leave.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
