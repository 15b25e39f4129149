package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminahr/leave-engine/leave"
	"github.com/luminahr/leave-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// fixture wires the full request state machine over the memory store
// with a frozen clock (Mon Jun 1, 2026).
type fixture struct {
	svc    *leave.Service
	ledger *leave.Ledger
	store  *memory.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	ledger := leave.NewLedger(store)
	cal := leave.NewCalendarService(store)
	svc := leave.NewService(store.Requests(), ledger, cal, store, store)
	svc.Now = func() time.Time { return date(2026, time.June, 1) }

	seedEmployee(t, store, "emp-1", date(2020, time.March, 1))
	return &fixture{svc: svc, ledger: ledger, store: store}
}

// withAnnual installs the annual type and a policy, granting the
// employee a starting balance.
func (f *fixture) withAnnual(t *testing.T, policy leave.LeavePolicy, balance float64) {
	t.Helper()
	seedAnnualCatalog(t, f.store, policy)
	if balance > 0 {
		grantDays(t, f.store, testKey("emp-1"), balance)
	}
}

// weekInJune is Mon Jun 15 - Fri Jun 19, 2026: five working days under
// the default Saturday/Sunday calendar.
func weekInJune() leave.SubmitInput {
	return leave.SubmitInput{
		EmployeeID:  "emp-1",
		LeaveTypeID: "annual",
		StartDate:   date(2026, time.June, 15),
		EndDate:     date(2026, time.June, 19),
		Reason:      "vacation",
	}
}

func (f *fixture) available(t *testing.T) leave.Days {
	t.Helper()
	row, err := f.ledger.Balance(context.Background(), testKey("emp-1"))
	require.NoError(t, err)
	return row.Available()
}

// =============================================================================
// SUBMISSION
// =============================================================================

func TestRequest_Submit_ReservesBalance(t *testing.T) {
	// GIVEN: 10 available days, manager-only approval
	// WHEN: A 5-day request is submitted
	// THEN: Status pending, 5 days reserved, 5 available

	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly}, 10)

	req, err := f.svc.Submit(context.Background(), weekInJune())
	require.NoError(t, err)

	assert.Equal(t, leave.StatusPending, req.Status)
	assert.Equal(t, 1, req.Attempt)
	assert.True(t, req.WorkingDays.Equal(leave.DaysOf(5)))
	assert.True(t, req.PaidDays.Equal(leave.DaysOf(5)))
	assert.True(t, req.UnpaidDays.IsZero())
	assert.True(t, f.available(t).Equal(leave.DaysOf(5)))
}

func TestRequest_Submit_InsufficientBalance_Rejected(t *testing.T) {
	// GIVEN: 2 available days
	// WHEN: A 5-day request is submitted
	// THEN: The submission fails and nothing stays reserved

	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly}, 2)

	_, err := f.svc.Submit(context.Background(), weekInJune())
	assert.ErrorIs(t, err, leave.ErrInsufficientBalance)
	assert.True(t, f.available(t).Equal(leave.DaysOf(2)))
}

func TestRequest_Submit_UnpaidOverflow_SplitsDays(t *testing.T) {
	// GIVEN: 2 available days and a policy allowing unpaid overflow
	// WHEN: A 5-day request is submitted
	// THEN: 2 paid days reserved, 3 recorded unpaid

	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{
		AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly, AllowUnpaidOverflow: true,
	}, 2)

	req, err := f.svc.Submit(context.Background(), weekInJune())
	require.NoError(t, err)

	assert.True(t, req.PaidDays.Equal(leave.DaysOf(2)))
	assert.True(t, req.UnpaidDays.Equal(leave.DaysOf(3)))
	assert.True(t, f.available(t).IsZero())
}

func TestRequest_Submit_AutoApprove_NoWorkflow(t *testing.T) {
	// GIVEN: A policy with no approval requirements
	// WHEN: A request is submitted
	// THEN: It is approved immediately and the days are consumed

	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{AnnualDays: leave.DaysOfInt(21)}, 10)

	req, err := f.svc.Submit(context.Background(), weekInJune())
	require.NoError(t, err)

	assert.Equal(t, leave.StatusApproved, req.Status)
	require.Len(t, req.Steps, 1)
	assert.Equal(t, "auto-approved", req.Steps[0].Comment)

	row, err := f.ledger.Balance(context.Background(), testKey("emp-1"))
	require.NoError(t, err)
	assert.True(t, row.Taken.Equal(leave.DaysOf(5)))
	assert.True(t, row.Pending.IsZero())
}

func TestRequest_Submit_Overlap_Rejected(t *testing.T) {
	// GIVEN: A pending request Jun 15-19
	// WHEN: A second request Jun 18-22 is submitted
	// THEN: OverlapError

	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly}, 20)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, weekInJune())
	require.NoError(t, err)

	second := weekInJune()
	second.StartDate = date(2026, time.June, 18)
	second.EndDate = date(2026, time.June, 22)
	_, err = f.svc.Submit(ctx, second)

	var oe *leave.OverlapError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, leave.StatusPending, oe.Status)
}

func TestRequest_Submit_AllowOverlapPolicy_SkipsCheck(t *testing.T) {
	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{
		AnnualDays: leave.DaysOfInt(21),
		Approval:   leave.ApprovalWorkflow{RequiresManagerApproval: true, AllowOverlap: true},
	}, 20)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, weekInJune())
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, weekInJune())
	assert.NoError(t, err)
}

func TestRequest_Submit_MinNotice_Enforced(t *testing.T) {
	// GIVEN: The annual type demands 30 days notice (today is Jun 1)
	// WHEN: A request starting Jun 15 is submitted
	// THEN: ErrBelowMinNotice

	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveLeaveType(ctx, leave.LeaveType{
		ID: "annual", Name: "Annual Leave", Code: "ANNUAL",
		Paid: true, Deductible: true, MinNoticeDays: 30, Active: true,
	}))
	require.NoError(t, f.store.SavePolicy(ctx, leave.LeavePolicy{
		ID: "annual-policy", LeaveTypeID: "annual",
		AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly, Active: true,
	}))
	grantDays(t, f.store, testKey("emp-1"), 10)

	_, err := f.svc.Submit(ctx, weekInJune())
	assert.ErrorIs(t, err, leave.ErrBelowMinNotice)
}

func TestRequest_Submit_MaxDuration_Enforced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveLeaveType(ctx, leave.LeaveType{
		ID: "annual", Name: "Annual Leave", Code: "ANNUAL",
		Paid: true, Deductible: true, MaxDurationDays: 3, Active: true,
	}))
	require.NoError(t, f.store.SavePolicy(ctx, leave.LeavePolicy{
		ID: "annual-policy", LeaveTypeID: "annual",
		AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly, Active: true,
	}))
	grantDays(t, f.store, testKey("emp-1"), 10)

	_, err := f.svc.Submit(ctx, weekInJune())
	assert.ErrorIs(t, err, leave.ErrExceedsMaxDuration)
}

func TestRequest_Submit_BlockedPeriod_Rejected(t *testing.T) {
	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly}, 10)
	ctx := context.Background()
	require.NoError(t, f.store.SaveBlockedPeriod(ctx, leave.BlockedPeriod{
		ID: "bp-1", Name: "Inventory Freeze",
		StartDate: date(2026, time.June, 17), EndDate: date(2026, time.June, 18),
		BlockType: leave.BlockFull, Active: true,
	}))

	_, err := f.svc.Submit(ctx, weekInJune())
	assert.ErrorIs(t, err, leave.ErrBlockedPeriod)
}

func TestRequest_Submit_AttachmentRequired(t *testing.T) {
	// GIVEN: A type flagged RequiresAttachment
	// WHEN: Submitted without an attachment, then with one
	// THEN: Rejected, then accepted

	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveLeaveType(ctx, leave.LeaveType{
		ID: "annual", Name: "Annual Leave", Code: "ANNUAL",
		Paid: true, Deductible: true, RequiresAttachment: true,
		AttachmentKind: leave.AttachmentOther, Active: true,
	}))
	require.NoError(t, f.store.SavePolicy(ctx, leave.LeavePolicy{
		ID: "annual-policy", LeaveTypeID: "annual",
		AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly, Active: true,
	}))
	grantDays(t, f.store, testKey("emp-1"), 10)

	_, err := f.svc.Submit(ctx, weekInJune())
	assert.ErrorIs(t, err, leave.ErrAttachmentRequired)

	in := weekInJune()
	in.AttachmentRef = "doc-123"
	_, err = f.svc.Submit(ctx, in)
	assert.NoError(t, err)
}

func TestRequest_Submit_DocumentThreshold_Enforced(t *testing.T) {
	// GIVEN: A policy demanding documents above 2 working days
	// WHEN: A 5-day request without an attachment is submitted
	// THEN: ErrAttachmentRequired

	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{
		AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly,
		Documents: leave.DocumentRules{RequiresDocumentAboveDays: leave.DaysOfInt(2)},
	}, 10)

	_, err := f.svc.Submit(context.Background(), weekInJune())
	assert.ErrorIs(t, err, leave.ErrAttachmentRequired)
}

func TestRequest_Submit_OccurrenceCap_Enforced(t *testing.T) {
	// GIVEN: A once-in-a-lifetime type with one approved request
	// WHEN: A second request is submitted
	// THEN: ErrIneligible

	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveLeaveType(ctx, leave.LeaveType{
		ID: "annual", Name: "Annual Leave", Code: "ANNUAL",
		Paid: true, Deductible: true, MaxOccurrences: 1, Active: true,
	}))
	require.NoError(t, f.store.SavePolicy(ctx, leave.LeavePolicy{
		ID: "annual-policy", LeaveTypeID: "annual",
		AnnualDays: leave.DaysOfInt(21), Active: true, // auto-approve
	}))
	grantDays(t, f.store, testKey("emp-1"), 20)

	_, err := f.svc.Submit(ctx, weekInJune())
	require.NoError(t, err)

	second := weekInJune()
	second.StartDate = date(2026, time.July, 6)
	second.EndDate = date(2026, time.July, 10)
	_, err = f.svc.Submit(ctx, second)
	assert.ErrorIs(t, err, leave.ErrIneligible)
}

func TestRequest_Submit_HalfDay(t *testing.T) {
	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly}, 10)

	in := weekInJune()
	in.EndDate = in.StartDate
	in.HalfDay = true
	in.HalfDaySlot = leave.HalfDayAM

	req, err := f.svc.Submit(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, req.WorkingDays.Equal(leave.HalfDay()))
	assert.True(t, f.available(t).Equal(leave.DaysOf(9.5)))
}

func TestRequest_Submit_HalfDay_MultiDate_Malformed(t *testing.T) {
	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly}, 10)

	in := weekInJune()
	in.HalfDay = true
	in.HalfDaySlot = leave.HalfDayPM

	_, err := f.svc.Submit(context.Background(), in)
	assert.ErrorIs(t, err, leave.ErrValidation)
}

func TestRequest_Submit_NonDeductibleType_SkipsLedger(t *testing.T) {
	// GIVEN: A non-deductible mission type
	// WHEN: A request is submitted and approved
	// THEN: The ledger never moves

	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveLeaveType(ctx, leave.LeaveType{
		ID: "mission", Name: "Official Mission", Code: "MISSION",
		Paid: true, Deductible: false, Active: true,
	}))
	require.NoError(t, f.store.SavePolicy(ctx, leave.LeavePolicy{
		ID: "mission-policy", LeaveTypeID: "mission", Approval: wfManagerOnly, Active: true,
	}))

	in := weekInJune()
	in.LeaveTypeID = "mission"
	req, err := f.svc.Submit(ctx, in)
	require.NoError(t, err)
	assert.True(t, req.PaidDays.IsZero())

	_, err = f.svc.Decide(ctx, req.ID, "mgr-1", leave.RoleManager, leave.DecisionApprove, "")
	require.NoError(t, err)

	key := leave.EntitlementKey{EmployeeID: "emp-1", LeaveTypeID: "mission", Year: 2026}
	row, err := f.ledger.Balance(ctx, key)
	require.NoError(t, err)
	assert.True(t, row.Pending.IsZero())
	assert.True(t, row.Taken.IsZero())
}

// =============================================================================
// DECISIONS
// =============================================================================

func TestRequest_ManagerApprove_CommitsReservation(t *testing.T) {
	// GIVEN: A pending 5-day request under manager-only approval
	// WHEN: The manager approves
	// THEN: Status approved, pending moved to taken

	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly}, 10)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, weekInJune())
	require.NoError(t, err)

	req, err = f.svc.Decide(ctx, req.ID, "mgr-1", leave.RoleManager, leave.DecisionApprove, "enjoy")
	require.NoError(t, err)

	assert.Equal(t, leave.StatusApproved, req.Status)
	require.Len(t, req.Steps, 1)
	assert.Equal(t, leave.RoleManager, req.Steps[0].Role)

	row, err := f.ledger.Balance(ctx, testKey("emp-1"))
	require.NoError(t, err)
	assert.True(t, row.Taken.Equal(leave.DaysOf(5)))
	assert.True(t, row.Pending.IsZero())
}

func TestRequest_MultiLevel_ManagerThenHR(t *testing.T) {
	// GIVEN: Strict multi-level approval
	// WHEN: The manager approves, then HR approves
	// THEN: pending -> pending_hr -> approved; commit happens only at the end

	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{AnnualDays: leave.DaysOfInt(21), Approval: wfMultiLevel}, 10)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, weekInJune())
	require.NoError(t, err)

	// HR may not jump the queue under strict ordering.
	_, err = f.svc.Decide(ctx, req.ID, "hr-1", leave.RoleHR, leave.DecisionApprove, "")
	assert.ErrorIs(t, err, leave.ErrInvalidTransition)

	req, err = f.svc.Decide(ctx, req.ID, "mgr-1", leave.RoleManager, leave.DecisionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPendingHR, req.Status)

	row, err := f.ledger.Balance(ctx, testKey("emp-1"))
	require.NoError(t, err)
	assert.True(t, row.Taken.IsZero(), "no commit before the final approval")
	assert.True(t, row.Pending.Equal(leave.DaysOf(5)))

	req, err = f.svc.Decide(ctx, req.ID, "hr-1", leave.RoleHR, leave.DecisionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, req.Status)
	require.Len(t, req.Steps, 2)

	row, err = f.ledger.Balance(ctx, testKey("emp-1"))
	require.NoError(t, err)
	assert.True(t, row.Taken.Equal(leave.DaysOf(5)))
	assert.True(t, row.Pending.IsZero())
}

func TestRequest_Reject_ReleasesReservation(t *testing.T) {
	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly}, 10)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, weekInJune())
	require.NoError(t, err)

	req, err = f.svc.Decide(ctx, req.ID, "mgr-1", leave.RoleManager, leave.DecisionReject, "short-staffed")
	require.NoError(t, err)

	assert.Equal(t, leave.StatusRejected, req.Status)
	assert.True(t, f.available(t).Equal(leave.DaysOf(10)))
}

func TestRequest_Return_Resubmit_NewAttempt(t *testing.T) {
	// GIVEN: A request returned for correction
	// WHEN: The employee fixes the dates and resubmits
	// THEN: Pending again under attempt 2 with a fresh reservation

	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly}, 10)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, weekInJune())
	require.NoError(t, err)

	req, err = f.svc.Decide(ctx, req.ID, "mgr-1", leave.RoleManager, leave.DecisionReturn, "wrong week")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusReturned, req.Status)
	assert.True(t, f.available(t).Equal(leave.DaysOf(10)), "return releases the hold")

	start := date(2026, time.July, 6)
	end := date(2026, time.July, 8)
	req, err = f.svc.Resubmit(ctx, req.ID, "emp-1", leave.ResubmitInput{StartDate: &start, EndDate: &end})
	require.NoError(t, err)

	assert.Equal(t, leave.StatusPending, req.Status)
	assert.Equal(t, 2, req.Attempt)
	assert.True(t, req.WorkingDays.Equal(leave.DaysOf(3)))
	assert.True(t, f.available(t).Equal(leave.DaysOf(7)))
}

func TestRequest_Resubmit_NotReturned_Rejected(t *testing.T) {
	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly}, 10)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, weekInJune())
	require.NoError(t, err)

	_, err = f.svc.Resubmit(ctx, req.ID, "emp-1", leave.ResubmitInput{})
	assert.ErrorIs(t, err, leave.ErrInvalidTransition)
}

func TestRequest_Modify_PendingRequest_Revalidates(t *testing.T) {
	// GIVEN: A pending 5-day request
	// WHEN: The employee shortens it to 2 days
	// THEN: The old hold is released, 2 days re-reserved, approvals reset

	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly}, 10)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, weekInJune())
	require.NoError(t, err)

	end := date(2026, time.June, 16)
	req, err = f.svc.Modify(ctx, req.ID, "emp-1", leave.ResubmitInput{EndDate: &end})
	require.NoError(t, err)

	assert.Equal(t, leave.StatusPending, req.Status)
	assert.Equal(t, 2, req.Attempt)
	assert.Empty(t, req.Steps)
	assert.True(t, req.WorkingDays.Equal(leave.DaysOf(2)))
	assert.True(t, f.available(t).Equal(leave.DaysOf(8)))
}

func TestRequest_Modify_ValidationFailure_KeepsReservation(t *testing.T) {
	// GIVEN: A pending 5-day request holding its reservation
	// WHEN: A modification with end date before start date is attempted
	// THEN: The request stays pending with the hold intact and can still
	//       be approved

	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly}, 10)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, weekInJune())
	require.NoError(t, err)

	bad := date(2026, time.June, 10)
	_, err = f.svc.Modify(ctx, req.ID, "emp-1", leave.ResubmitInput{EndDate: &bad})
	assert.ErrorIs(t, err, leave.ErrValidation)

	stored, err := f.svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPending, stored.Status)

	row, err := f.ledger.Balance(ctx, testKey("emp-1"))
	require.NoError(t, err)
	assert.True(t, row.Pending.Equal(leave.DaysOf(5)), "the hold must survive a failed edit")

	_, err = f.svc.Decide(ctx, req.ID, "mgr-1", leave.RoleManager, leave.DecisionApprove, "")
	assert.NoError(t, err)
}

func TestRequest_Modify_RereserveFailure_ParksReturned(t *testing.T) {
	// GIVEN: A pending 5-day request against 10 available days
	// WHEN: The employee stretches it to 14 working days
	// THEN: The re-reserve fails and the request is parked as returned
	//       with no orphan hold

	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly}, 10)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, weekInJune())
	require.NoError(t, err)

	end := date(2026, time.July, 2)
	_, err = f.svc.Modify(ctx, req.ID, "emp-1", leave.ResubmitInput{EndDate: &end})
	assert.ErrorIs(t, err, leave.ErrInsufficientBalance)

	stored, err := f.svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusReturned, stored.Status)

	row, err := f.ledger.Balance(ctx, testKey("emp-1"))
	require.NoError(t, err)
	assert.True(t, row.Pending.IsZero())
	assert.True(t, row.Available().Equal(leave.DaysOf(10)))
}

func TestRequest_Modify_Draft_EditsInPlace(t *testing.T) {
	// GIVEN: A saved draft
	// WHEN: The employee shortens its dates
	// THEN: The draft is updated without touching the ledger, and the
	//       edited content is what later submission uses

	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly}, 10)
	ctx := context.Background()

	draft, err := f.svc.SaveDraft(ctx, weekInJune())
	require.NoError(t, err)

	end := date(2026, time.June, 16)
	draft, err = f.svc.Modify(ctx, draft.ID, "emp-1", leave.ResubmitInput{EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, leave.StatusDraft, draft.Status)
	assert.True(t, f.available(t).Equal(leave.DaysOf(10)))

	req, err := f.svc.SubmitDraft(ctx, draft.ID, "emp-1")
	require.NoError(t, err)
	assert.True(t, req.WorkingDays.Equal(leave.DaysOf(2)))
	assert.True(t, f.available(t).Equal(leave.DaysOf(8)))
}

func TestRequest_Modify_Returned_EditsInPlace(t *testing.T) {
	// GIVEN: A request returned for correction
	// WHEN: The employee edits the dates via modify
	// THEN: The request stays returned, nothing is reserved, and a plain
	//       resubmit then uses the corrected dates

	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly}, 10)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, weekInJune())
	require.NoError(t, err)
	req, err = f.svc.Decide(ctx, req.ID, "mgr-1", leave.RoleManager, leave.DecisionReturn, "wrong week")
	require.NoError(t, err)

	start := date(2026, time.July, 6)
	end := date(2026, time.July, 8)
	req, err = f.svc.Modify(ctx, req.ID, "emp-1", leave.ResubmitInput{StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, leave.StatusReturned, req.Status)
	assert.True(t, f.available(t).Equal(leave.DaysOf(10)))

	req, err = f.svc.Resubmit(ctx, req.ID, "emp-1", leave.ResubmitInput{})
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPending, req.Status)
	assert.True(t, req.WorkingDays.Equal(leave.DaysOf(3)))
}

func TestRequest_HalfDay_OppositeSlots_Coexist(t *testing.T) {
	// GIVEN: A pending AM half-day
	// WHEN: A PM half-day on the same date is submitted, then another AM
	// THEN: The PM passes, the second AM collides

	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly}, 10)
	ctx := context.Background()

	am := weekInJune()
	am.EndDate = am.StartDate
	am.HalfDay = true
	am.HalfDaySlot = leave.HalfDayAM
	_, err := f.svc.Submit(ctx, am)
	require.NoError(t, err)

	pm := am
	pm.HalfDaySlot = leave.HalfDayPM
	_, err = f.svc.Submit(ctx, pm)
	require.NoError(t, err)
	assert.True(t, f.available(t).Equal(leave.DaysOf(9)), "two opposite half-days hold one day")

	_, err = f.svc.Submit(ctx, am)
	var oe *leave.OverlapError
	assert.ErrorAs(t, err, &oe)
}

func TestRequest_BulkDecide_IsolatesFailures(t *testing.T) {
	// GIVEN: One pending request and one unknown ID
	// WHEN: Bulk-approving both
	// THEN: One outcome succeeds, the other carries the error

	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly}, 10)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, weekInJune())
	require.NoError(t, err)

	outcomes := f.svc.BulkDecide(ctx, []leave.RequestID{req.ID, "missing"},
		"mgr-1", leave.RoleManager, leave.DecisionApprove, "")

	require.Len(t, outcomes, 2)
	assert.Equal(t, leave.StatusApproved, outcomes[0].Status)
	assert.Empty(t, outcomes[0].Err)
	assert.NotEmpty(t, outcomes[1].Err)
}

// =============================================================================
// CANCELLATION
// =============================================================================

func TestRequest_CancelPending_ReleasesHold(t *testing.T) {
	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly}, 10)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, weekInJune())
	require.NoError(t, err)

	req, err = f.svc.Cancel(ctx, req.ID, "emp-1")
	require.NoError(t, err)

	assert.Equal(t, leave.StatusCancelled, req.Status)
	assert.True(t, f.available(t).Equal(leave.DaysOf(10)))
}

func TestRequest_CancelApproved_BeforeStart_CreditsTaken(t *testing.T) {
	// GIVEN: An approved future request (5 days taken)
	// WHEN: The employee cancels before the start date
	// THEN: The days are credited back

	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly}, 10)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, weekInJune())
	require.NoError(t, err)
	req, err = f.svc.Decide(ctx, req.ID, "mgr-1", leave.RoleManager, leave.DecisionApprove, "")
	require.NoError(t, err)

	req, err = f.svc.Cancel(ctx, req.ID, "emp-1")
	require.NoError(t, err)

	assert.Equal(t, leave.StatusCancelled, req.Status)
	assert.True(t, f.available(t).Equal(leave.DaysOf(10)))
}

func TestRequest_CancelApproved_OnStartDate_Rejected(t *testing.T) {
	// GIVEN: An approved request starting today (Jun 1)
	// WHEN: The employee cancels on the start date
	// THEN: ErrInvalidTransition; only strictly-before cancels pass

	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly}, 10)
	ctx := context.Background()

	in := weekInJune()
	in.StartDate = date(2026, time.June, 1)
	in.EndDate = date(2026, time.June, 5)
	req, err := f.svc.Submit(ctx, in)
	require.NoError(t, err)
	req, err = f.svc.Decide(ctx, req.ID, "mgr-1", leave.RoleManager, leave.DecisionApprove, "")
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, req.ID, "emp-1")
	assert.ErrorIs(t, err, leave.ErrInvalidTransition)

	row, err := f.ledger.Balance(ctx, testKey("emp-1"))
	require.NoError(t, err)
	assert.True(t, row.Taken.Equal(leave.DaysOf(5)))
}

func TestRequest_CancelApproved_AfterStart_Rejected(t *testing.T) {
	// GIVEN: An approved request that already started (May, today is Jun 1)
	// WHEN: The employee cancels
	// THEN: ErrInvalidTransition, balance untouched

	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly}, 10)
	ctx := context.Background()

	in := weekInJune()
	in.StartDate = date(2026, time.May, 11)
	in.EndDate = date(2026, time.May, 15)
	req, err := f.svc.Submit(ctx, in)
	require.NoError(t, err)
	req, err = f.svc.Decide(ctx, req.ID, "mgr-1", leave.RoleManager, leave.DecisionApprove, "")
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, req.ID, "emp-1")
	assert.ErrorIs(t, err, leave.ErrInvalidTransition)

	row, err := f.ledger.Balance(ctx, testKey("emp-1"))
	require.NoError(t, err)
	assert.True(t, row.Taken.Equal(leave.DaysOf(5)))
}

func TestRequest_Cancel_NotOwner_Rejected(t *testing.T) {
	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly}, 10)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, weekInJune())
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, req.ID, "emp-2")
	assert.ErrorIs(t, err, leave.ErrInvalidTransition)
}

// =============================================================================
// HR OVERRIDE
// =============================================================================

func TestRequest_Override_ApprovedToRejected_Credits(t *testing.T) {
	// GIVEN: An approved 5-day request
	// WHEN: HR overrides it to rejected
	// THEN: The taken days are credited back

	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly}, 10)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, weekInJune())
	require.NoError(t, err)
	req, err = f.svc.Decide(ctx, req.ID, "mgr-1", leave.RoleManager, leave.DecisionApprove, "")
	require.NoError(t, err)

	req, err = f.svc.Override(ctx, req.ID, "hr-1", leave.DecisionReject, "policy violation")
	require.NoError(t, err)

	assert.Equal(t, leave.StatusRejected, req.Status)
	assert.True(t, f.available(t).Equal(leave.DaysOf(10)))
}

func TestRequest_Override_RejectedToApproved_Debits(t *testing.T) {
	// GIVEN: A rejected request whose reservation was released
	// WHEN: HR overrides it to approved
	// THEN: The days are debited directly

	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly}, 10)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, weekInJune())
	require.NoError(t, err)
	req, err = f.svc.Decide(ctx, req.ID, "mgr-1", leave.RoleManager, leave.DecisionReject, "")
	require.NoError(t, err)

	req, err = f.svc.Override(ctx, req.ID, "hr-1", leave.DecisionApprove, "appeal accepted")
	require.NoError(t, err)

	assert.Equal(t, leave.StatusApproved, req.Status)
	row, err := f.ledger.Balance(ctx, testKey("emp-1"))
	require.NoError(t, err)
	assert.True(t, row.Taken.Equal(leave.DaysOf(5)))
	assert.True(t, row.Pending.IsZero())
}

func TestRequest_Override_PendingRequest_Rejected(t *testing.T) {
	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly}, 10)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, weekInJune())
	require.NoError(t, err)

	_, err = f.svc.Override(ctx, req.ID, "hr-1", leave.DecisionReject, "")
	assert.ErrorIs(t, err, leave.ErrInvalidTransition)
}

// =============================================================================
// DRAFTS
// =============================================================================

func TestRequest_Draft_SubmitLater(t *testing.T) {
	// GIVEN: A saved draft (no validation, no reservation)
	// WHEN: The draft is submitted
	// THEN: The full pipeline runs and the balance is reserved

	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly}, 10)
	ctx := context.Background()

	draft, err := f.svc.SaveDraft(ctx, weekInJune())
	require.NoError(t, err)
	assert.Equal(t, leave.StatusDraft, draft.Status)
	assert.Equal(t, 0, draft.Attempt)
	assert.True(t, f.available(t).Equal(leave.DaysOf(10)), "drafts hold nothing")

	req, err := f.svc.SubmitDraft(ctx, draft.ID, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPending, req.Status)
	assert.True(t, f.available(t).Equal(leave.DaysOf(5)))
}

func TestRequest_SubmitDraft_NotOwner_Rejected(t *testing.T) {
	f := newFixture(t)
	f.withAnnual(t, leave.LeavePolicy{AnnualDays: leave.DaysOfInt(21), Approval: wfManagerOnly}, 10)
	ctx := context.Background()

	draft, err := f.svc.SaveDraft(ctx, weekInJune())
	require.NoError(t, err)

	_, err = f.svc.SubmitDraft(ctx, draft.ID, "emp-2")
	assert.ErrorIs(t, err, leave.ErrInvalidTransition)
}
