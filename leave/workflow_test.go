package leave_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schoolcore/leave-engine/core"
	"github.com/schoolcore/leave-engine/leave"
	"github.com/schoolcore/leave-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// The fixed test day is Saturday 2024-06-01, academic year 2024-25.
// Monday 2024-06-03 through Wednesday 2024-06-05 is a three-weekday span.
const testYear = "2024-25"

type testEngine struct {
	store    *sqlite.Store
	quota    *leave.QuotaService
	balances *leave.BalanceLedger
	workflow *leave.Workflow
	clock    core.FixedClock
}

func newTestEngine(t *testing.T) *testEngine {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := core.Fixed(core.NewDate(2024, time.June, 1))
	log := zap.NewNop()
	ls := store.Leave()
	return &testEngine{
		store:    store,
		quota:    leave.NewQuotaService(ls, clock, log),
		balances: leave.NewBalanceLedger(ls, store, clock, log),
		workflow: leave.NewWorkflow(ls, clock, log),
		clock:    clock,
	}
}

// seedBalance creates default quota settings and a fresh balance row.
func (e *testEngine) seedBalance(t *testing.T, teacherID, tenantID int64) *leave.Balance {
	t.Helper()
	ctx := context.Background()
	quota, err := e.quota.GetOrCreate(ctx, tenantID, testYear)
	require.NoError(t, err)
	b, err := e.balances.InitializeOne(ctx, teacherID, tenantID, quota, testYear)
	require.NoError(t, err)
	return b
}

func (e *testEngine) balance(t *testing.T, teacherID int64) *leave.Balance {
	t.Helper()
	b, err := e.balances.Get(context.Background(), teacherID, testYear)
	require.NoError(t, err)
	return b
}

func clRequest(start, end core.Date) leave.SubmitRequest {
	return leave.SubmitRequest{
		Category:  leave.CategoryCL,
		StartDate: start,
		EndDate:   end,
		Reason:    "family function",
	}
}

func monToWed() (core.Date, core.Date) {
	return core.NewDate(2024, time.June, 3), core.NewDate(2024, time.June, 5)
}

// =============================================================================
// SUBMIT TESTS
// =============================================================================

func TestSubmit_ReservesPendingDays(t *testing.T) {
	// GIVEN: A teacher with a fresh CL balance of 12
	// WHEN: Submitting a Monday-Wednesday CL application
	// THEN: 3 days move to pending and the derived balance drops to 9

	e := newTestEngine(t)
	e.seedBalance(t, 1, 10)
	start, end := monToWed()

	app, err := e.workflow.Submit(context.Background(), 1, 10, clRequest(start, end), testYear)
	require.NoError(t, err)

	assert.Equal(t, leave.StatusPending, app.Status)
	assert.Equal(t, "3", app.TotalDays.String())
	assert.Equal(t, testYear, app.AcademicYear)
	assert.NotEmpty(t, app.ID)

	b := e.balance(t, 1)
	assert.Equal(t, "3", b.CL.Pending.String())
	assert.Equal(t, "0", b.CL.Taken.String())
	assert.Equal(t, "9", b.CL.Balance().String())
}

func TestSubmit_InsufficientBalance_LedgerUntouched(t *testing.T) {
	// GIVEN: A teacher with a CL quota of 12
	// WHEN: Requesting 15 working days of CL
	// THEN: The request fails and no application or reservation persists

	e := newTestEngine(t)
	e.seedBalance(t, 1, 10)
	start := core.NewDate(2024, time.June, 3)  // Monday
	end := core.NewDate(2024, time.June, 21)   // Friday, 15 weekdays

	_, err := e.workflow.Submit(context.Background(), 1, 10, clRequest(start, end), testYear)

	require.Error(t, err)
	var insufficient *core.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "CL", insufficient.Category)
	assert.Equal(t, "12", insufficient.Available.String())
	assert.Equal(t, "15", insufficient.Requested.String())

	b := e.balance(t, 1)
	assert.True(t, b.CL.Pending.IsZero(), "failed submit must not reserve days")

	apps, err := e.workflow.ListByTeacher(context.Background(), 1, testYear, "")
	require.NoError(t, err)
	assert.Empty(t, apps, "failed submit must not persist an application")
}

func TestSubmit_PastDateRejected(t *testing.T) {
	e := newTestEngine(t)
	e.seedBalance(t, 1, 10)
	past := core.NewDate(2024, time.May, 27)

	_, err := e.workflow.Submit(context.Background(), 1, 10, clRequest(past, past), testYear)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestSubmit_AdvanceNoticeEnforced(t *testing.T) {
	// GIVEN: The default policy requires 1 day advance notice
	// WHEN: Applying for leave starting today
	// THEN: The request is rejected

	e := newTestEngine(t)
	e.seedBalance(t, 1, 10)
	today := e.clock.Today()

	_, err := e.workflow.Submit(context.Background(), 1, 10, clRequest(today, today.AddDays(2)), testYear)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestSubmit_WeekendOnlySpanRejected(t *testing.T) {
	e := newTestEngine(t)
	e.seedBalance(t, 1, 10)
	sat := core.NewDate(2024, time.June, 8)
	sun := core.NewDate(2024, time.June, 9)

	_, err := e.workflow.Submit(context.Background(), 1, 10, clRequest(sat, sun), testYear)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestSubmit_MaxContinuousDaysEnforced(t *testing.T) {
	// GIVEN: Maternity quota is 180 but max continuous days is 30
	// WHEN: Requesting 31 working days
	// THEN: The request is rejected before any balance check

	e := newTestEngine(t)
	e.seedBalance(t, 1, 10)

	req := leave.SubmitRequest{
		Category:  leave.CategoryMaternity,
		StartDate: core.NewDate(2024, time.June, 3),  // Monday
		EndDate:   core.NewDate(2024, time.July, 15), // 31 weekdays later
		Reason:    "maternity leave",
	}
	_, err := e.workflow.Submit(context.Background(), 1, 10, req, testYear)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestSubmit_MissingReasonRejected(t *testing.T) {
	e := newTestEngine(t)
	e.seedBalance(t, 1, 10)
	start, end := monToWed()

	req := clRequest(start, end)
	req.Reason = "  "
	_, err := e.workflow.Submit(context.Background(), 1, 10, req, testYear)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestSubmit_UnknownCategoryRejected(t *testing.T) {
	e := newTestEngine(t)
	start, end := monToWed()

	req := clRequest(start, end)
	req.Category = "Casual"
	_, err := e.workflow.Submit(context.Background(), 1, 10, req, testYear)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestSubmit_UninitializedBalanceRejected(t *testing.T) {
	// GIVEN: No balance row exists for the teacher
	// WHEN: Submitting a quota-backed application
	// THEN: The teacher is told to contact the admin

	e := newTestEngine(t)
	start, end := monToWed()

	_, err := e.workflow.Submit(context.Background(), 99, 10, clRequest(start, end), testYear)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.Contains(t, err.Error(), "not initialized")
}

// balanceReadFailStore simulates a storage backend whose balance reads
// fail outright rather than reporting a missing row.
type balanceReadFailStore struct {
	leave.Store
}

func (s balanceReadFailStore) Balance(context.Context, int64, string) (*leave.Balance, error) {
	return nil, core.Storagef("balance", errors.New("disk I/O error"))
}

func (s balanceReadFailStore) WithTx(_ context.Context, fn func(leave.Store) error) error {
	return fn(s)
}

func TestSubmit_StorageFailureIsNotValidation(t *testing.T) {
	// GIVEN: A store whose balance reads fail for reasons other than a missing row
	// WHEN: Submitting a quota-backed application
	// THEN: The storage error surfaces as-is, not as the contact-admin message

	e := newTestEngine(t)
	workflow := leave.NewWorkflow(balanceReadFailStore{Store: e.store.Leave()}, e.clock, zap.NewNop())

	start, end := monToWed()
	_, err := workflow.Submit(context.Background(), 1, 10, clRequest(start, end), testYear)
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.NotErrorIs(t, err, core.ErrValidation)
}

// =============================================================================
// HALF-DAY TESTS
// =============================================================================

func TestSubmit_HalfDay_DrawsHalfFromCL(t *testing.T) {
	// GIVEN: A half-day application for a single Monday
	// WHEN: Submitted with a valid period
	// THEN: 0.5 days are reserved against the CL bucket

	e := newTestEngine(t)
	e.seedBalance(t, 1, 10)
	day := core.NewDate(2024, time.June, 3)

	app, err := e.workflow.Submit(context.Background(), 1, 10, leave.SubmitRequest{
		Category:      leave.CategoryHalfDay,
		StartDate:     day,
		EndDate:       day,
		IsHalfDay:     true,
		HalfDayPeriod: leave.FirstHalf,
		Reason:        "doctor appointment",
	}, testYear)
	require.NoError(t, err)
	assert.Equal(t, "0.5", app.TotalDays.String())
	assert.Equal(t, leave.FirstHalf, app.HalfDayPeriod)

	b := e.balance(t, 1)
	assert.Equal(t, "0.5", b.CL.Pending.String())
	assert.Equal(t, "11.5", b.CL.Balance().String())
}

func TestSubmit_HalfDay_MultiDaySpanRejected(t *testing.T) {
	e := newTestEngine(t)
	e.seedBalance(t, 1, 10)
	start, end := monToWed()

	_, err := e.workflow.Submit(context.Background(), 1, 10, leave.SubmitRequest{
		Category:      leave.CategoryHalfDay,
		StartDate:     start,
		EndDate:       end,
		IsHalfDay:     true,
		HalfDayPeriod: leave.FirstHalf,
		Reason:        "errand",
	}, testYear)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestSubmit_HalfDay_MissingPeriodRejected(t *testing.T) {
	e := newTestEngine(t)
	e.seedBalance(t, 1, 10)
	day := core.NewDate(2024, time.June, 3)

	_, err := e.workflow.Submit(context.Background(), 1, 10, leave.SubmitRequest{
		Category:  leave.CategoryHalfDay,
		StartDate: day,
		EndDate:   day,
		IsHalfDay: true,
		Reason:    "errand",
	}, testYear)
	assert.ErrorIs(t, err, core.ErrValidation)
}

// =============================================================================
// APPROVE TESTS
// =============================================================================

func TestApprove_MovesPendingToTaken(t *testing.T) {
	// GIVEN: A pending 3-day CL application
	// WHEN: An admin approves it
	// THEN: pending drops to 0, taken rises to 3, and the derived
	//       balance stays 9

	e := newTestEngine(t)
	e.seedBalance(t, 1, 10)
	start, end := monToWed()
	app, err := e.workflow.Submit(context.Background(), 1, 10, clRequest(start, end), testYear)
	require.NoError(t, err)

	approved, err := e.workflow.Approve(context.Background(), app.ID, 500, "enjoy")
	require.NoError(t, err)

	assert.Equal(t, leave.StatusApproved, approved.Status)
	assert.Equal(t, int64(500), approved.ApprovedBy)
	assert.Equal(t, "enjoy", approved.AdminNotes)
	assert.False(t, approved.ApprovedAt.IsZero())

	b := e.balance(t, 1)
	assert.Equal(t, "0", b.CL.Pending.String())
	assert.Equal(t, "3", b.CL.Taken.String())
	assert.Equal(t, "9", b.CL.Balance().String())
}

func TestApprove_AlreadySettledRejected(t *testing.T) {
	// GIVEN: An application already approved
	// WHEN: Approving it a second time
	// THEN: The transition fails and the ledger is not double-charged

	e := newTestEngine(t)
	e.seedBalance(t, 1, 10)
	start, end := monToWed()
	app, err := e.workflow.Submit(context.Background(), 1, 10, clRequest(start, end), testYear)
	require.NoError(t, err)

	_, err = e.workflow.Approve(context.Background(), app.ID, 500, "")
	require.NoError(t, err)

	_, err = e.workflow.Approve(context.Background(), app.ID, 500, "")
	require.Error(t, err)
	var stateErr *core.InvalidStateError
	assert.ErrorAs(t, err, &stateErr)

	b := e.balance(t, 1)
	assert.Equal(t, "3", b.CL.Taken.String())
}

func TestApprove_MissingApplication(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.workflow.Approve(context.Background(), "no-such-id", 500, "")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

// =============================================================================
// CANCEL TESTS
// =============================================================================

func TestCancel_ReleasesPendingDays(t *testing.T) {
	// GIVEN: A pending 3-day CL application
	// WHEN: The owner cancels it
	// THEN: The reservation is released and the balance is back to 12

	e := newTestEngine(t)
	e.seedBalance(t, 1, 10)
	start, end := monToWed()
	app, err := e.workflow.Submit(context.Background(), 1, 10, clRequest(start, end), testYear)
	require.NoError(t, err)

	cancelled, err := e.workflow.Cancel(context.Background(), app.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusCancelled, cancelled.Status)

	b := e.balance(t, 1)
	assert.Equal(t, "0", b.CL.Pending.String())
	assert.Equal(t, "12", b.CL.Balance().String())
}

func TestCancel_OnlyOwnerMayCancel(t *testing.T) {
	// Someone else's application looks like a missing row.
	e := newTestEngine(t)
	e.seedBalance(t, 1, 10)
	start, end := monToWed()
	app, err := e.workflow.Submit(context.Background(), 1, 10, clRequest(start, end), testYear)
	require.NoError(t, err)

	_, err = e.workflow.Cancel(context.Background(), app.ID, 2)
	assert.ErrorIs(t, err, core.ErrNotFound)

	b := e.balance(t, 1)
	assert.Equal(t, "3", b.CL.Pending.String(), "reservation must survive a foreign cancel attempt")
}

func TestCancel_ApprovedApplicationRejected(t *testing.T) {
	e := newTestEngine(t)
	e.seedBalance(t, 1, 10)
	start, end := monToWed()
	app, err := e.workflow.Submit(context.Background(), 1, 10, clRequest(start, end), testYear)
	require.NoError(t, err)
	_, err = e.workflow.Approve(context.Background(), app.ID, 500, "")
	require.NoError(t, err)

	_, err = e.workflow.Cancel(context.Background(), app.ID, 1)
	assert.ErrorIs(t, err, core.ErrInvalidState)
}

// =============================================================================
// REJECT TESTS
// =============================================================================

func TestReject_ReleasesPendingAndRecordsReason(t *testing.T) {
	// GIVEN: A pending 3-day CL application
	// WHEN: An admin rejects it with a reason
	// THEN: The reservation is released and the reason is stored

	e := newTestEngine(t)
	e.seedBalance(t, 1, 10)
	start, end := monToWed()
	app, err := e.workflow.Submit(context.Background(), 1, 10, clRequest(start, end), testYear)
	require.NoError(t, err)

	rejected, err := e.workflow.Reject(context.Background(), app.ID, 500, "exam week")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusRejected, rejected.Status)
	assert.Equal(t, "exam week", rejected.RejectionReason)

	b := e.balance(t, 1)
	assert.Equal(t, "0", b.CL.Pending.String())
	assert.Equal(t, "0", b.CL.Taken.String())
	assert.Equal(t, "12", b.CL.Balance().String())
}

func TestReject_ReasonIsMandatory(t *testing.T) {
	e := newTestEngine(t)
	e.seedBalance(t, 1, 10)
	start, end := monToWed()
	app, err := e.workflow.Submit(context.Background(), 1, 10, clRequest(start, end), testYear)
	require.NoError(t, err)

	_, err = e.workflow.Reject(context.Background(), app.ID, 500, "   ")
	assert.ErrorIs(t, err, core.ErrValidation)

	got, err := e.workflow.Get(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPending, got.Status)
}

// =============================================================================
// NO-QUOTA CATEGORY TESTS (LOP, DUTY LEAVE)
// =============================================================================

func TestSubmit_LOP_SkipsQuotaChecks(t *testing.T) {
	// GIVEN: A teacher whose quota balances are untouched
	// WHEN: Submitting LOP for more days than any quota holds
	// THEN: Submission succeeds and no bucket is reserved

	e := newTestEngine(t)
	e.seedBalance(t, 1, 10)

	app, err := e.workflow.Submit(context.Background(), 1, 10, leave.SubmitRequest{
		Category:  leave.CategoryLOP,
		StartDate: core.NewDate(2024, time.June, 3),
		EndDate:   core.NewDate(2024, time.June, 21),
		Reason:    "personal emergency",
	}, testYear)
	require.NoError(t, err)
	assert.Equal(t, "15", app.TotalDays.String())

	b := e.balance(t, 1)
	assert.True(t, b.CL.Pending.IsZero())
	assert.True(t, b.LOPTaken.IsZero(), "LOP accrues on approval only")
}

func TestApprove_LOP_AccruesLOPTaken(t *testing.T) {
	e := newTestEngine(t)
	e.seedBalance(t, 1, 10)

	app, err := e.workflow.Submit(context.Background(), 1, 10, leave.SubmitRequest{
		Category:  leave.CategoryLOP,
		StartDate: core.NewDate(2024, time.June, 3),
		EndDate:   core.NewDate(2024, time.June, 5),
		Reason:    "personal emergency",
	}, testYear)
	require.NoError(t, err)

	_, err = e.workflow.Approve(context.Background(), app.ID, 500, "")
	require.NoError(t, err)

	b := e.balance(t, 1)
	assert.Equal(t, "3", b.LOPTaken.String())
	assert.True(t, b.CL.Taken.IsZero())
}

func TestApprove_DutyLeave_AccruesDutyLeaveTaken(t *testing.T) {
	e := newTestEngine(t)
	e.seedBalance(t, 1, 10)

	app, err := e.workflow.Submit(context.Background(), 1, 10, leave.SubmitRequest{
		Category:  leave.CategoryDutyLeave,
		StartDate: core.NewDate(2024, time.June, 3),
		EndDate:   core.NewDate(2024, time.June, 4),
		Reason:    "board exam duty",
	}, testYear)
	require.NoError(t, err)

	_, err = e.workflow.Approve(context.Background(), app.ID, 500, "")
	require.NoError(t, err)

	b := e.balance(t, 1)
	assert.Equal(t, "2", b.DutyLeaveTaken.String())
}

func TestCancel_LOP_LeavesLedgerAlone(t *testing.T) {
	e := newTestEngine(t)
	e.seedBalance(t, 1, 10)

	app, err := e.workflow.Submit(context.Background(), 1, 10, leave.SubmitRequest{
		Category:  leave.CategoryLOP,
		StartDate: core.NewDate(2024, time.June, 3),
		EndDate:   core.NewDate(2024, time.June, 5),
		Reason:    "personal emergency",
	}, testYear)
	require.NoError(t, err)

	_, err = e.workflow.Cancel(context.Background(), app.ID, 1)
	require.NoError(t, err)

	b := e.balance(t, 1)
	assert.True(t, b.LOPTaken.IsZero())
	assert.True(t, b.CL.Pending.IsZero())
}

func TestApprove_LOP_WithoutBalanceRow(t *testing.T) {
	// GIVEN: An LOP application from a teacher whose ledger was never initialized
	// WHEN: Approving it
	// THEN: The application settles as Approved with no balance row to accrue on

	e := newTestEngine(t)

	app, err := e.workflow.Submit(context.Background(), 77, 10, leave.SubmitRequest{
		Category:  leave.CategoryLOP,
		StartDate: core.NewDate(2024, time.June, 3),
		EndDate:   core.NewDate(2024, time.June, 5),
		Reason:    "personal emergency",
	}, testYear)
	require.NoError(t, err)

	got, err := e.workflow.Approve(context.Background(), app.ID, 500, "")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, got.Status)

	reread, err := e.workflow.Get(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, reread.Status)

	_, err = e.balances.Get(context.Background(), 77, testYear)
	assert.ErrorIs(t, err, core.ErrNotFound, "approval must not conjure a ledger row")
}

// =============================================================================
// LISTING TESTS
// =============================================================================

func TestListByTenant_PendingQueue(t *testing.T) {
	// GIVEN: One pending and one cancelled application
	// WHEN: Listing the tenant's pending applications
	// THEN: Only the pending one appears

	e := newTestEngine(t)
	e.seedBalance(t, 1, 10)
	e.seedBalance(t, 2, 10)
	start, end := monToWed()

	kept, err := e.workflow.Submit(context.Background(), 1, 10, clRequest(start, end), testYear)
	require.NoError(t, err)
	gone, err := e.workflow.Submit(context.Background(), 2, 10, clRequest(start, end), testYear)
	require.NoError(t, err)
	_, err = e.workflow.Cancel(context.Background(), gone.ID, 2)
	require.NoError(t, err)

	pending, err := e.workflow.ListByTenant(context.Background(), 10, leave.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, kept.ID, pending[0].ID)
}

func TestListByTeacher_FiltersByYearAndStatus(t *testing.T) {
	e := newTestEngine(t)
	e.seedBalance(t, 1, 10)
	start, end := monToWed()

	app, err := e.workflow.Submit(context.Background(), 1, 10, clRequest(start, end), testYear)
	require.NoError(t, err)

	all, err := e.workflow.ListByTeacher(context.Background(), 1, testYear, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, app.ID, all[0].ID)

	none, err := e.workflow.ListByTeacher(context.Background(), 1, "2023-24", "")
	require.NoError(t, err)
	assert.Empty(t, none)
}
