/*
Package memory provides in-memory implementations of the storage
interfaces for testing.

PURPOSE:
  Mirrors the SQLite store's semantics without a database: the same
  guard checks, the same idempotency-key rejection, the same audit
  rows. Tests exercising the ledger's concurrency discipline run
  against this store.

CONCURRENCY:
  A single mutex serializes Apply, which makes the guard check and the
  delta atomic exactly like the SQL transaction does.

SEE ALSO:
  - leave/entitlement.go: The contracts implemented here
  - store/sqlite: The production implementation
*/
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luminahr/leave-engine/leave"
)

// Store implements every storage interface with maps and a mutex.
type Store struct {
	mu sync.Mutex

	entitlements map[leave.EntitlementKey]*leave.Entitlement
	mutationKeys map[string]bool
	adjustments  map[leave.EntitlementKey][]leave.Adjustment

	requests map[leave.RequestID]*leave.LeaveRequest

	employees map[leave.EmployeeID]leave.EmployeeProfile
	types     map[leave.LeaveTypeID]leave.LeaveType
	policies  map[leave.LeaveTypeID]leave.LeavePolicy

	calendars []leave.Calendar
	holidays  map[leave.CalendarID][]leave.PublicHoliday
	blocked   []leave.BlockedPeriod

	batchRuns map[string]leave.BatchRun
}

func New() *Store {
	return &Store{
		entitlements: make(map[leave.EntitlementKey]*leave.Entitlement),
		mutationKeys: make(map[string]bool),
		adjustments:  make(map[leave.EntitlementKey][]leave.Adjustment),
		requests:     make(map[leave.RequestID]*leave.LeaveRequest),
		employees:    make(map[leave.EmployeeID]leave.EmployeeProfile),
		types:        make(map[leave.LeaveTypeID]leave.LeaveType),
		policies:     make(map[leave.LeaveTypeID]leave.LeavePolicy),
		holidays:     make(map[leave.CalendarID][]leave.PublicHoliday),
		batchRuns:    make(map[string]leave.BatchRun),
	}
}

// =============================================================================
// ENTITLEMENT STORE
// =============================================================================

func (s *Store) Get(ctx context.Context, key leave.EntitlementKey) (*leave.Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entitlements[key]
	if !ok {
		return nil, fmt.Errorf("%w: entitlement %s/%s/%d", leave.ErrNotFound,
			key.EmployeeID, key.LeaveTypeID, key.Year)
	}
	cp := *ent
	return &cp, nil
}

func (s *Store) EnsureRow(ctx context.Context, key leave.EntitlementKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entitlements[key]; !ok {
		s.entitlements[key] = &leave.Entitlement{
			EmployeeID:  key.EmployeeID,
			LeaveTypeID: key.LeaveTypeID,
			Year:        key.Year,
			UpdatedAt:   time.Now().UTC(),
		}
	}
	return nil
}

func (s *Store) Apply(ctx context.Context, key leave.EntitlementKey, delta leave.EntitlementDelta, mut leave.Mutation) (*leave.Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mutationKeys[mut.Key] {
		return nil, fmt.Errorf("%w: key %q", leave.ErrDuplicateMutation, mut.Key)
	}
	ent, ok := s.entitlements[key]
	if !ok {
		return nil, fmt.Errorf("%w: entitlement %s/%s/%d", leave.ErrNotFound,
			key.EmployeeID, key.LeaveTypeID, key.Year)
	}

	next := *ent
	next.AccruedActual = next.AccruedActual.Add(delta.AccruedActual)
	next.AccruedRounded = next.AccruedRounded.Add(delta.AccruedRounded)
	next.CarryForward = next.CarryForward.Add(delta.CarryForward)
	next.Manual = next.Manual.Add(delta.Manual)
	next.Taken = next.Taken.Add(delta.Taken)
	next.Pending = next.Pending.Add(delta.Pending)
	if !delta.CarryForwardExpiry.IsZero() {
		next.CarryForwardExpiry = delta.CarryForwardExpiry
	}
	next.UpdatedAt = time.Now().UTC()

	// Same guards the SQL WHERE clause enforces.
	if next.Pending.IsNegative() || next.Taken.IsNegative() || next.Available().IsNegative() {
		return nil, &leave.InsufficientBalanceError{
			EmployeeID:  key.EmployeeID,
			LeaveTypeID: key.LeaveTypeID,
			Year:        key.Year,
			Available:   ent.Available(),
			Requested:   delta.Pending.Add(delta.Taken),
		}
	}

	s.mutationKeys[mut.Key] = true
	*ent = next
	s.adjustments[key] = append(s.adjustments[key], leave.Adjustment{
		ID:             uuid.NewString(),
		EmployeeID:     key.EmployeeID,
		LeaveTypeID:    key.LeaveTypeID,
		Year:           key.Year,
		Op:             mut.Op,
		MutationKey:    mut.Key,
		RequestID:      mut.RequestID,
		ActorID:        mut.ActorID,
		Reason:         mut.Reason,
		Delta:          delta,
		AvailableAfter: next.Available(),
		CreatedAt:      next.UpdatedAt,
	})

	cp := next
	return &cp, nil
}

func (s *Store) ListByEmployee(ctx context.Context, employeeID leave.EmployeeID, year int) ([]leave.Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []leave.Entitlement
	for key, ent := range s.entitlements {
		if key.EmployeeID == employeeID && key.Year == year {
			out = append(out, *ent)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LeaveTypeID < out[j].LeaveTypeID })
	return out, nil
}

func (s *Store) ListForYear(ctx context.Context, year int) ([]leave.Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []leave.Entitlement
	for key, ent := range s.entitlements {
		if key.Year == year {
			out = append(out, *ent)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeID != out[j].EmployeeID {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		return out[i].LeaveTypeID < out[j].LeaveTypeID
	})
	return out, nil
}

func (s *Store) Adjustments(ctx context.Context, key leave.EntitlementKey) ([]leave.Adjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	adjs := s.adjustments[key]
	out := make([]leave.Adjustment, len(adjs))
	// Newest first, matching the SQL store.
	for i, a := range adjs {
		out[len(adjs)-1-i] = a
	}
	return out, nil
}

// =============================================================================
// REQUEST STORE
// =============================================================================

func (s *Store) Create(ctx context.Context, req *leave.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *req
	s.requests[req.ID] = &cp
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: request %s", leave.ErrNotFound, id)
	}
	cp := *req
	return &cp, nil
}

func (s *Store) Update(ctx context.Context, req *leave.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[req.ID]; !ok {
		return fmt.Errorf("%w: request %s", leave.ErrNotFound, req.ID)
	}
	cp := *req
	s.requests[req.ID] = &cp
	return nil
}

func (s *Store) ListRequestsByEmployee(ctx context.Context, employeeID leave.EmployeeID) ([]leave.LeaveRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []leave.LeaveRequest
	for _, req := range s.requests {
		if req.EmployeeID == employeeID {
			out = append(out, *req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListRequestsByStatus(ctx context.Context, status leave.RequestStatus) ([]leave.LeaveRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []leave.LeaveRequest
	for _, req := range s.requests {
		if req.Status == status {
			out = append(out, *req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) Overlapping(ctx context.Context, employeeID leave.EmployeeID, from, to time.Time, statuses []leave.RequestStatus) ([]leave.LeaveRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inStatus := func(st leave.RequestStatus) bool {
		for _, want := range statuses {
			if st == want {
				return true
			}
		}
		return false
	}

	var out []leave.LeaveRequest
	for _, req := range s.requests {
		if req.EmployeeID != employeeID || !inStatus(req.Status) {
			continue
		}
		if !to.Before(req.StartDate) && !from.After(req.EndDate) {
			out = append(out, *req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (s *Store) CountByStatus(ctx context.Context, employeeID leave.EmployeeID, leaveTypeID leave.LeaveTypeID, status leave.RequestStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, req := range s.requests {
		if req.EmployeeID == employeeID && req.LeaveTypeID == leaveTypeID && req.Status == status {
			count++
		}
	}
	return count, nil
}

// Requests exposes the RequestStore view, mirroring the SQLite store's
// method-name disambiguation.
func (s *Store) Requests() leave.RequestStore {
	return requestView{s}
}

type requestView struct{ s *Store }

func (v requestView) Create(ctx context.Context, req *leave.LeaveRequest) error {
	return v.s.Create(ctx, req)
}
func (v requestView) Get(ctx context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	return v.s.GetRequest(ctx, id)
}
func (v requestView) Update(ctx context.Context, req *leave.LeaveRequest) error {
	return v.s.Update(ctx, req)
}
func (v requestView) ListByEmployee(ctx context.Context, employeeID leave.EmployeeID) ([]leave.LeaveRequest, error) {
	return v.s.ListRequestsByEmployee(ctx, employeeID)
}
func (v requestView) ListByStatus(ctx context.Context, status leave.RequestStatus) ([]leave.LeaveRequest, error) {
	return v.s.ListRequestsByStatus(ctx, status)
}
func (v requestView) Overlapping(ctx context.Context, employeeID leave.EmployeeID, from, to time.Time, statuses []leave.RequestStatus) ([]leave.LeaveRequest, error) {
	return v.s.Overlapping(ctx, employeeID, from, to, statuses)
}
func (v requestView) CountByStatus(ctx context.Context, employeeID leave.EmployeeID, leaveTypeID leave.LeaveTypeID, status leave.RequestStatus) (int, error) {
	return v.s.CountByStatus(ctx, employeeID, leaveTypeID, status)
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func (s *Store) SaveEmployee(ctx context.Context, p leave.EmployeeProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[p.ID] = p
	return nil
}

func (s *Store) Employee(ctx context.Context, id leave.EmployeeID) (*leave.EmployeeProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.employees[id]
	if !ok {
		return nil, fmt.Errorf("%w: employee %s", leave.ErrNotFound, id)
	}
	return &p, nil
}

func (s *Store) ActiveEmployees(ctx context.Context) ([]leave.EmployeeProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]leave.EmployeeProfile, 0, len(s.employees))
	for _, p := range s.employees {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveLeaveType(ctx context.Context, lt leave.LeaveType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types[lt.ID] = lt
	return nil
}

func (s *Store) LeaveType(ctx context.Context, id leave.LeaveTypeID) (*leave.LeaveType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lt, ok := s.types[id]
	if !ok {
		return nil, fmt.Errorf("%w: leave type %s", leave.ErrNotFound, id)
	}
	return &lt, nil
}

func (s *Store) ActiveLeaveTypes(ctx context.Context) ([]leave.LeaveType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []leave.LeaveType
	for _, lt := range s.types {
		if lt.Active {
			out = append(out, lt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) SavePolicy(ctx context.Context, p leave.LeavePolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[p.LeaveTypeID] = p
	return nil
}

func (s *Store) ActivePolicy(ctx context.Context, leaveTypeID leave.LeaveTypeID) (*leave.LeavePolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.policies[leaveTypeID]
	if !ok || !p.Active {
		return nil, fmt.Errorf("%w: policy for leave type %s", leave.ErrNotFound, leaveTypeID)
	}
	return &p, nil
}

// =============================================================================
// CALENDARS
// =============================================================================

func (s *Store) SaveCalendar(ctx context.Context, cal leave.Calendar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.calendars {
		if s.calendars[i].ID == cal.ID {
			s.calendars[i] = cal
			return nil
		}
	}
	s.calendars = append(s.calendars, cal)
	return nil
}

func (s *Store) CalendarForYear(ctx context.Context, year int) (*leave.Calendar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found *leave.Calendar
	for i := range s.calendars {
		cal := &s.calendars[i]
		if cal.Year != year {
			continue
		}
		if cal.IsDefault {
			cp := *cal
			return &cp, nil
		}
		if found == nil {
			found = cal
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: calendar for year %d", leave.ErrNotFound, year)
	}
	cp := *found
	return &cp, nil
}

func (s *Store) SaveHoliday(ctx context.Context, h leave.PublicHoliday) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holidays[h.CalendarID] = append(s.holidays[h.CalendarID], h)
	return nil
}

func (s *Store) HolidaysInRange(ctx context.Context, calendarID leave.CalendarID, from, to time.Time) ([]leave.PublicHoliday, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []leave.PublicHoliday
	for _, h := range s.holidays[calendarID] {
		if !h.Date.Before(from) && !h.Date.After(to) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *Store) SaveBlockedPeriod(ctx context.Context, bp leave.BlockedPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bp.ID == "" {
		bp.ID = uuid.NewString()
	}
	for i := range s.blocked {
		if s.blocked[i].ID == bp.ID {
			s.blocked[i] = bp
			return nil
		}
	}
	s.blocked = append(s.blocked, bp)
	return nil
}

func (s *Store) ActiveBlockedPeriods(ctx context.Context, from, to time.Time) ([]leave.BlockedPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []leave.BlockedPeriod
	for _, bp := range s.blocked {
		if bp.Active && !to.Before(bp.StartDate) && !from.After(bp.EndDate) {
			out = append(out, bp)
		}
	}
	return out, nil
}

// =============================================================================
// BATCH RUNS
// =============================================================================

func batchRunKey(job string, year, month int) string {
	return fmt.Sprintf("%s:%d:%d", job, year, month)
}

func (s *Store) SaveBatchRun(ctx context.Context, run leave.BatchRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchRuns[batchRunKey(run.Job, run.Year, run.Month)] = run
	return nil
}

func (s *Store) BatchRunExists(ctx context.Context, job string, year, month int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.batchRuns[batchRunKey(job, year, month)]
	return ok, nil
}

func (s *Store) ListBatchRuns(ctx context.Context) ([]leave.BatchRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]leave.BatchRun, 0, len(s.batchRuns))
	for _, run := range s.batchRuns {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}
