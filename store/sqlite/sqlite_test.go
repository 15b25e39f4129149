package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminahr/leave-engine/leave"
	"github.com/luminahr/leave-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func entKey() leave.EntitlementKey {
	return leave.EntitlementKey{EmployeeID: "emp-1", LeaveTypeID: "annual", Year: 2026}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// ENTITLEMENT LEDGER
// =============================================================================

func TestStore_EnsureRow_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := entKey()

	require.NoError(t, store.EnsureRow(ctx, key))
	require.NoError(t, store.EnsureRow(ctx, key))

	row, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, row.Available().IsZero())
}

func TestStore_Get_Missing_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), entKey())
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

func TestStore_Apply_DeltaAndAudit(t *testing.T) {
	// GIVEN: A zero row
	// WHEN: An accrual delta is applied
	// THEN: The row moves and the adjustment row records AvailableAfter

	store := newTestStore(t)
	ctx := context.Background()
	key := entKey()
	require.NoError(t, store.EnsureRow(ctx, key))

	row, err := store.Apply(ctx, key,
		leave.EntitlementDelta{AccruedActual: leave.DaysOf(1.75), AccruedRounded: leave.DaysOf(1.5)},
		leave.Mutation{Key: "acc-1", Op: leave.OpAccrue, ActorID: "system", Reason: "monthly accrual"})
	require.NoError(t, err)

	assert.True(t, row.AccruedActual.Equal(leave.DaysOf(1.75)))
	assert.True(t, row.AccruedRounded.Equal(leave.DaysOf(1.5)))
	assert.True(t, row.Available().Equal(leave.DaysOf(1.5)))

	adjs, err := store.Adjustments(ctx, key)
	require.NoError(t, err)
	require.Len(t, adjs, 1)
	assert.Equal(t, leave.OpAccrue, adjs[0].Op)
	assert.Equal(t, "acc-1", adjs[0].MutationKey)
	assert.True(t, adjs[0].AvailableAfter.Equal(leave.DaysOf(1.5)))
}

func TestStore_Apply_DuplicateKey_Rejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := entKey()
	require.NoError(t, store.EnsureRow(ctx, key))

	delta := leave.EntitlementDelta{AccruedRounded: leave.DaysOf(5)}
	_, err := store.Apply(ctx, key, delta, leave.Mutation{Key: "k1", Op: leave.OpAccrue})
	require.NoError(t, err)

	_, err = store.Apply(ctx, key, delta, leave.Mutation{Key: "k1", Op: leave.OpAccrue})
	assert.ErrorIs(t, err, leave.ErrDuplicateMutation)

	row, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, row.AccruedRounded.Equal(leave.DaysOf(5)), "replay must not change the row")
}

func TestStore_Apply_GuardRejectsOverdraw(t *testing.T) {
	// GIVEN: 2 available days
	// WHEN: 5 days are reserved
	// THEN: The guarded update misses and InsufficientBalanceError is returned

	store := newTestStore(t)
	ctx := context.Background()
	key := entKey()
	require.NoError(t, store.EnsureRow(ctx, key))

	_, err := store.Apply(ctx, key,
		leave.EntitlementDelta{AccruedRounded: leave.DaysOf(2)},
		leave.Mutation{Key: "k1", Op: leave.OpAccrue})
	require.NoError(t, err)

	_, err = store.Apply(ctx, key,
		leave.EntitlementDelta{Pending: leave.DaysOf(5)},
		leave.Mutation{Key: "k2", Op: leave.OpReserve})
	require.Error(t, err)

	var ib *leave.InsufficientBalanceError
	require.ErrorAs(t, err, &ib)
	assert.True(t, ib.Available.Equal(leave.DaysOf(2)))

	// The failed attempt must leave no residue, including its key: a
	// retry under the same key after a top-up must succeed.
	_, err = store.Apply(ctx, key,
		leave.EntitlementDelta{AccruedRounded: leave.DaysOf(5)},
		leave.Mutation{Key: "k3", Op: leave.OpAccrue})
	require.NoError(t, err)
	_, err = store.Apply(ctx, key,
		leave.EntitlementDelta{Pending: leave.DaysOf(5)},
		leave.Mutation{Key: "k2", Op: leave.OpReserve})
	assert.NoError(t, err)
}

func TestStore_Apply_CarryForwardExpiry_Persisted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := entKey()
	require.NoError(t, store.EnsureRow(ctx, key))

	expiry := date(2027, time.April, 1)
	_, err := store.Apply(ctx, key,
		leave.EntitlementDelta{CarryForward: leave.DaysOf(4.5), CarryForwardExpiry: expiry},
		leave.Mutation{Key: "cf-1", Op: leave.OpCarryForward, ActorID: "system"})
	require.NoError(t, err)

	row, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, row.CarryForward.Equal(leave.DaysOf(4.5)))
	assert.Equal(t, expiry, row.CarryForwardExpiry)
}

func TestStore_ListByEmployee_FiltersYear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, key := range []leave.EntitlementKey{
		{EmployeeID: "emp-1", LeaveTypeID: "annual", Year: 2026},
		{EmployeeID: "emp-1", LeaveTypeID: "sick", Year: 2026},
		{EmployeeID: "emp-1", LeaveTypeID: "annual", Year: 2025},
		{EmployeeID: "emp-2", LeaveTypeID: "annual", Year: 2026},
	} {
		require.NoError(t, store.EnsureRow(ctx, key))
	}

	rows, err := store.ListByEmployee(ctx, "emp-1", 2026)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	all, err := store.ListForYear(ctx, 2026)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// =============================================================================
// REQUESTS
// =============================================================================

func sampleRequest(id string) *leave.LeaveRequest {
	now := date(2026, time.June, 1)
	return &leave.LeaveRequest{
		ID:          leave.RequestID(id),
		EmployeeID:  "emp-1",
		LeaveTypeID: "annual",
		PolicyID:    "annual-policy",
		StartDate:   date(2026, time.June, 15),
		EndDate:     date(2026, time.June, 19),
		WorkingDays: leave.DaysOf(5),
		PaidDays:    leave.DaysOf(5),
		UnpaidDays:  leave.ZeroDays(),
		Reason:      "vacation",
		Status:      leave.StatusPending,
		Attempt:     1,
		Year:        2026,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestStore_Request_RoundTrip(t *testing.T) {
	// GIVEN: A pending request with one approval step
	// WHEN: Stored and reloaded
	// THEN: All fields survive, including steps and day quantities

	store := newTestStore(t)
	ctx := context.Background()
	reqs := store.Requests()

	req := sampleRequest("req-1")
	req.Steps = []leave.ApprovalStep{{
		Role: leave.RoleManager, ActorID: "mgr-1",
		Decision: leave.DecisionApprove, Comment: "ok", At: date(2026, time.June, 2),
	}}
	require.NoError(t, reqs.Create(ctx, req))

	got, err := reqs.Get(ctx, "req-1")
	require.NoError(t, err)

	assert.Equal(t, req.EmployeeID, got.EmployeeID)
	assert.Equal(t, req.Status, got.Status)
	assert.Equal(t, req.Attempt, got.Attempt)
	assert.True(t, got.WorkingDays.Equal(leave.DaysOf(5)))
	assert.True(t, got.StartDate.Equal(req.StartDate))
	require.Len(t, got.Steps, 1)
	assert.Equal(t, leave.RoleManager, got.Steps[0].Role)
	assert.Equal(t, "ok", got.Steps[0].Comment)
}

func TestStore_Request_Update(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	reqs := store.Requests()

	req := sampleRequest("req-1")
	require.NoError(t, reqs.Create(ctx, req))

	req.Status = leave.StatusApproved
	req.Attempt = 2
	require.NoError(t, reqs.Update(ctx, req))

	got, err := reqs.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, got.Status)
	assert.Equal(t, 2, got.Attempt)
}

func TestStore_Request_Overlapping(t *testing.T) {
	// GIVEN: A pending request Jun 15-19 and a cancelled one Jun 22-26
	// WHEN: Querying overlaps for Jun 18-23 in holding statuses
	// THEN: Only the pending request matches

	store := newTestStore(t)
	ctx := context.Background()
	reqs := store.Requests()

	require.NoError(t, reqs.Create(ctx, sampleRequest("req-1")))

	cancelled := sampleRequest("req-2")
	cancelled.StartDate = date(2026, time.June, 22)
	cancelled.EndDate = date(2026, time.June, 26)
	cancelled.Status = leave.StatusCancelled
	require.NoError(t, reqs.Create(ctx, cancelled))

	overlaps, err := reqs.Overlapping(ctx, "emp-1",
		date(2026, time.June, 18), date(2026, time.June, 23),
		[]leave.RequestStatus{leave.StatusPending, leave.StatusPendingHR, leave.StatusApproved})
	require.NoError(t, err)
	require.Len(t, overlaps, 1)
	assert.Equal(t, leave.RequestID("req-1"), overlaps[0].ID)
}

func TestStore_Request_CountByStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	reqs := store.Requests()

	approved := sampleRequest("req-1")
	approved.Status = leave.StatusApproved
	require.NoError(t, reqs.Create(ctx, approved))
	require.NoError(t, reqs.Create(ctx, sampleRequest("req-2")))

	n, err := reqs.CountByStatus(ctx, "emp-1", "annual", leave.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func TestStore_Calendar_DefaultPreferred(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCalendar(ctx, leave.Calendar{
		ID: "cal-a", Name: "Site A", Year: 2026,
		WeekendDays: []time.Weekday{time.Saturday, time.Sunday},
	}))
	require.NoError(t, store.SaveCalendar(ctx, leave.Calendar{
		ID: "cal-b", Name: "HQ", Country: "EG", Year: 2026,
		WeekendDays: []time.Weekday{time.Friday, time.Saturday}, IsDefault: true,
	}))

	cal, err := store.CalendarForYear(ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, leave.CalendarID("cal-b"), cal.ID)
	assert.Equal(t, []time.Weekday{time.Friday, time.Saturday}, cal.WeekendDays)

	_, err = store.CalendarForYear(ctx, 2030)
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

func TestStore_Holidays_RangeQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCalendar(ctx, leave.Calendar{
		ID: "cal-1", Name: "HQ", Year: 2026,
		WeekendDays: []time.Weekday{time.Friday, time.Saturday}, IsDefault: true,
	}))
	for _, d := range []time.Time{
		date(2026, time.May, 1),
		date(2026, time.June, 30),
		date(2026, time.October, 6),
	} {
		require.NoError(t, store.SaveHoliday(ctx, leave.PublicHoliday{
			CalendarID: "cal-1", Date: d, Name: "holiday",
		}))
	}

	hs, err := store.HolidaysInRange(ctx, "cal-1", date(2026, time.June, 1), date(2026, time.July, 31))
	require.NoError(t, err)
	require.Len(t, hs, 1)
	assert.True(t, hs[0].Date.Equal(date(2026, time.June, 30)))
}

func TestStore_BlockedPeriods_ActiveIntersecting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveBlockedPeriod(ctx, leave.BlockedPeriod{
		ID: "bp-1", Name: "Freeze", BlockType: leave.BlockFull, Active: true,
		StartDate: date(2026, time.December, 25), EndDate: date(2026, time.December, 31),
	}))
	require.NoError(t, store.SaveBlockedPeriod(ctx, leave.BlockedPeriod{
		ID: "bp-2", Name: "Audit", BlockType: leave.BlockPartial, Active: true,
		LeaveTypeIDs: []leave.LeaveTypeID{"annual", "study"},
		StartDate:    date(2026, time.March, 1), EndDate: date(2026, time.March, 15),
	}))
	require.NoError(t, store.SaveBlockedPeriod(ctx, leave.BlockedPeriod{
		ID: "bp-3", Name: "Old", BlockType: leave.BlockFull, Active: false,
		StartDate: date(2026, time.March, 1), EndDate: date(2026, time.March, 15),
	}))

	periods, err := store.ActiveBlockedPeriods(ctx, date(2026, time.March, 5), date(2026, time.March, 6))
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, "bp-2", periods[0].ID)
	assert.Equal(t, []leave.LeaveTypeID{"annual", "study"}, periods[0].LeaveTypeIDs)
}

func TestStore_Employee_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	emp := leave.EmployeeProfile{
		ID: "emp-1", Name: "Sara", Email: "sara@example.com",
		Gender: leave.GenderFemale, EmploymentType: leave.EmploymentFullTime,
		HireDate: date(2021, time.February, 15), ManagerID: "mgr-1",
	}
	require.NoError(t, store.SaveEmployee(ctx, emp))

	got, err := store.Employee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, emp.Name, got.Name)
	assert.Equal(t, emp.Gender, got.Gender)
	assert.True(t, got.HireDate.Equal(emp.HireDate))
	assert.Equal(t, emp.ManagerID, got.ManagerID)

	all, err := store.ActiveEmployees(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_LeaveType_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	lt := leave.LeaveType{
		ID: "maternity", Name: "Maternity Leave", Code: "MATERNITY", Category: "parental",
		Paid: true, Deductible: false,
		RequiresAttachment: true, AttachmentKind: leave.AttachmentMedicalCertificate,
		MaxDurationDays: 120, EligibilityGender: leave.GenderFemale,
		MinTenureMonths: 10, Active: true,
	}
	require.NoError(t, store.SaveLeaveType(ctx, lt))

	got, err := store.LeaveType(ctx, "maternity")
	require.NoError(t, err)
	assert.Equal(t, lt.Code, got.Code)
	assert.False(t, got.Deductible)
	assert.Equal(t, leave.AttachmentMedicalCertificate, got.AttachmentKind)
	assert.Equal(t, leave.GenderFemale, got.EligibilityGender)
}

func TestStore_Policy_SaveDeactivatesPredecessor(t *testing.T) {
	// GIVEN: An active policy for the annual type
	// WHEN: A successor policy for the same type is saved
	// THEN: Only the successor remains active

	store := newTestStore(t)
	ctx := context.Background()

	v1 := leave.LeavePolicy{
		ID: "annual-v1", Name: "Annual v1", LeaveTypeID: "annual",
		AnnualDays: leave.DaysOfInt(21),
		Rounding:   leave.RoundingRule{Method: leave.RoundHalfDay},
		Carryover:  leave.CarryoverRule{AllowCarryover: true, MaxCarryoverDays: leave.DaysOfInt(45), ExpiryMonths: 3},
		Approval:   leave.ApprovalWorkflow{RequiresManagerApproval: true, RequiresHRApproval: true, MultiLevel: true},
		Active:     true,
	}
	require.NoError(t, store.SavePolicy(ctx, v1))

	v2 := v1
	v2.ID = "annual-v2"
	v2.Name = "Annual v2"
	v2.AnnualDays = leave.DaysOfInt(25)
	require.NoError(t, store.SavePolicy(ctx, v2))

	active, err := store.ActivePolicy(ctx, "annual")
	require.NoError(t, err)
	assert.Equal(t, leave.PolicyID("annual-v2"), active.ID)
	assert.True(t, active.AnnualDays.Equal(leave.DaysOfInt(25)))
	assert.True(t, active.Approval.MultiLevel)
	assert.Equal(t, 3, active.Carryover.ExpiryMonths)
}

// =============================================================================
// BATCH RUNS
// =============================================================================

func TestStore_BatchRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	exists, err := store.BatchRunExists(ctx, leave.JobAccrual, 2026, 1)
	require.NoError(t, err)
	assert.False(t, exists)

	run := leave.BatchRun{
		Job: leave.JobAccrual, Year: 2026, Month: 1,
		Processed: 12, Applied: 10, Skipped: 2,
		Failures:  []leave.BatchFailure{{EmployeeID: "emp-9", LeaveTypeID: "annual", Err: "boom"}},
		StartedAt: date(2026, time.February, 1), FinishedAt: date(2026, time.February, 1),
	}
	require.NoError(t, store.SaveBatchRun(ctx, run))

	exists, err = store.BatchRunExists(ctx, leave.JobAccrual, 2026, 1)
	require.NoError(t, err)
	assert.True(t, exists)

	runs, err := store.ListBatchRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 10, runs[0].Applied)
	require.Len(t, runs[0].Failures, 1)
	assert.Equal(t, "boom", runs[0].Failures[0].Err)

	// Re-running the same month upserts instead of duplicating.
	run.Applied = 11
	require.NoError(t, store.SaveBatchRun(ctx, run))
	runs, err = store.ListBatchRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
