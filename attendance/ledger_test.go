package attendance_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schoolcore/leave-engine/attendance"
	"github.com/schoolcore/leave-engine/core"
	"github.com/schoolcore/leave-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// The fixed test day is Friday 2024-06-28 so that all of June is markable.
func newTestLedger(t *testing.T) (*attendance.Ledger, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := core.Fixed(core.NewDate(2024, time.June, 28))
	ledger := attendance.NewLedger(store.Attendance(), clock, zap.NewNop())
	return ledger, store
}

func tod(hour, minute int) *attendance.TimeOfDay {
	return &attendance.TimeOfDay{Hour: hour, Minute: minute}
}

func presentOn(teacherID int64, day core.Date) attendance.MarkRequest {
	return attendance.MarkRequest{
		TeacherID: teacherID,
		Date:      day,
		Status:    attendance.StatusPresent,
	}
}

// =============================================================================
// MARK TESTS
// =============================================================================

func TestMark_CreatesRecordWithWorkingHours(t *testing.T) {
	// GIVEN: A 09:00 check-in and 17:30 check-out
	// WHEN: Marking a teacher present
	// THEN: Working hours are derived as 8.5

	ledger, _ := newTestLedger(t)

	req := presentOn(1, core.NewDate(2024, time.June, 3))
	req.CheckIn = tod(9, 0)
	req.CheckOut = tod(17, 30)

	rec, err := ledger.Mark(context.Background(), 10, req, 500)
	require.NoError(t, err)

	assert.Equal(t, attendance.StatusPresent, rec.Status)
	require.NotNil(t, rec.WorkingHours)
	assert.Equal(t, "8.5", rec.WorkingHours.String())
	assert.Equal(t, int64(500), rec.MarkedBy)
	assert.NotEmpty(t, rec.ID)
}

func TestMark_OvernightShiftGainsTwentyFourHours(t *testing.T) {
	// GIVEN: A 22:00 check-in and 06:00 check-out the next morning
	// WHEN: Marking attendance
	// THEN: The derived hours are 8, not negative

	ledger, _ := newTestLedger(t)

	req := presentOn(1, core.NewDate(2024, time.June, 3))
	req.CheckIn = tod(22, 0)
	req.CheckOut = tod(6, 0)

	rec, err := ledger.Mark(context.Background(), 10, req, 500)
	require.NoError(t, err)
	require.NotNil(t, rec.WorkingHours)
	assert.Equal(t, "8", rec.WorkingHours.String())
}

func TestMark_FutureDateRejected(t *testing.T) {
	ledger, _ := newTestLedger(t)

	req := presentOn(1, core.NewDate(2024, time.June, 29))
	_, err := ledger.Mark(context.Background(), 10, req, 500)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestMark_UnknownStatusRejected(t *testing.T) {
	ledger, _ := newTestLedger(t)

	req := presentOn(1, core.NewDate(2024, time.June, 3))
	req.Status = "Working"
	_, err := ledger.Mark(context.Background(), 10, req, 500)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestMark_RemarkSameDayUpdatesInPlace(t *testing.T) {
	// GIVEN: A teacher already marked present with check times
	// WHEN: Re-marking the same day as absent without times
	// THEN: The single record is updated and the stale hours are cleared

	ledger, store := newTestLedger(t)
	ctx := context.Background()
	day := core.NewDate(2024, time.June, 3)

	first := presentOn(1, day)
	first.CheckIn = tod(9, 0)
	first.CheckOut = tod(17, 0)
	created, err := ledger.Mark(ctx, 10, first, 500)
	require.NoError(t, err)

	second := attendance.MarkRequest{
		TeacherID: 1,
		Date:      day,
		Status:    attendance.StatusAbsent,
		Remarks:   "no show",
	}
	updated, err := ledger.Mark(ctx, 10, second, 500)
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID, "re-mark must not create a second record")
	assert.Equal(t, attendance.StatusAbsent, updated.Status)
	assert.Nil(t, updated.WorkingHours, "hours from the previous mark must not survive")
	assert.Equal(t, "no show", updated.Remarks)

	records, err := store.Attendance().RecordsForDate(ctx, 10, day)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

// recordReadFailStore simulates a storage backend whose single-row reads
// fail outright rather than reporting a missing row.
type recordReadFailStore struct {
	attendance.Store
}

func (s recordReadFailStore) Record(context.Context, int64, core.Date) (*attendance.Record, error) {
	return nil, core.Storagef("record", errors.New("disk I/O error"))
}

func (s recordReadFailStore) WithTx(_ context.Context, fn func(attendance.Store) error) error {
	return fn(s)
}

func TestMark_StorageFailurePropagates(t *testing.T) {
	// GIVEN: A store whose reads fail for reasons other than a missing row
	// WHEN: Marking attendance
	// THEN: The storage error surfaces instead of inserting a fresh record

	clock := core.Fixed(core.NewDate(2024, time.June, 28))
	ledger := attendance.NewLedger(recordReadFailStore{}, clock, zap.NewNop())

	_, err := ledger.Mark(context.Background(), 10, presentOn(1, core.NewDate(2024, time.June, 3)), 500)
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.NotErrorIs(t, err, core.ErrNotFound)
}

// =============================================================================
// BULK MARK TESTS
// =============================================================================

func TestBulkMark_PartialFailure(t *testing.T) {
	// GIVEN: A batch with one valid entry, one future date and one bad
	//        status
	// WHEN: Bulk marking
	// THEN: The valid entry lands, the others come back as per-item errors

	ledger, _ := newTestLedger(t)

	reqs := []attendance.MarkRequest{
		presentOn(1, core.NewDate(2024, time.June, 3)),
		presentOn(2, core.NewDate(2024, time.July, 15)),
		{TeacherID: 3, Date: core.NewDate(2024, time.June, 3), Status: "Working"},
	}
	count, errs := ledger.BulkMark(context.Background(), 10, reqs, 500)

	assert.Equal(t, 1, count)
	require.Len(t, errs, 2)
	assert.Equal(t, int64(2), errs[0].TeacherID)
	assert.Equal(t, int64(3), errs[1].TeacherID)
}

func TestBulkMark_AllSucceed(t *testing.T) {
	ledger, _ := newTestLedger(t)

	day := core.NewDate(2024, time.June, 3)
	reqs := []attendance.MarkRequest{
		presentOn(1, day), presentOn(2, day), presentOn(3, day),
	}
	count, errs := ledger.BulkMark(context.Background(), 10, reqs, 500)

	assert.Equal(t, 3, count)
	assert.Empty(t, errs)
}

// =============================================================================
// MONTHLY STATS TESTS
// =============================================================================

func TestMonthlyStats_Percentage(t *testing.T) {
	// GIVEN: 18 present and 2 absent days in June
	// WHEN: Aggregating the month
	// THEN: The percentage is 90 of 20 working days

	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	day := core.NewDate(2024, time.June, 1)
	for i := 0; i < 18; i++ {
		_, err := ledger.Mark(ctx, 10, presentOn(1, day.AddDays(i)), 500)
		require.NoError(t, err)
	}
	for i := 18; i < 20; i++ {
		req := presentOn(1, day.AddDays(i))
		req.Status = attendance.StatusAbsent
		_, err := ledger.Mark(ctx, 10, req, 500)
		require.NoError(t, err)
	}

	stats, err := ledger.MonthlyStats(ctx, 1, time.June, 2024)
	require.NoError(t, err)
	assert.Equal(t, 18, stats.PresentCount)
	assert.Equal(t, 2, stats.AbsentCount)
	assert.Equal(t, 20, stats.TotalWorkingDays)
	assert.Equal(t, 90.0, stats.Percentage)
}

func TestMonthlyStats_HalfDaysCountAsHalf(t *testing.T) {
	// One present day and one half-day over two working days: 75%.
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Mark(ctx, 10, presentOn(1, core.NewDate(2024, time.June, 3)), 500)
	require.NoError(t, err)

	half := presentOn(1, core.NewDate(2024, time.June, 4))
	half.Status = attendance.StatusHalfDay
	_, err = ledger.Mark(ctx, 10, half, 500)
	require.NoError(t, err)

	stats, err := ledger.MonthlyStats(ctx, 1, time.June, 2024)
	require.NoError(t, err)
	assert.Equal(t, 75.0, stats.Percentage)
}

func TestMonthlyStats_HolidaysExcludedFromWorkingDays(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Mark(ctx, 10, presentOn(1, core.NewDate(2024, time.June, 3)), 500)
	require.NoError(t, err)

	holiday := presentOn(1, core.NewDate(2024, time.June, 4))
	holiday.Status = attendance.StatusHoliday
	_, err = ledger.Mark(ctx, 10, holiday, 500)
	require.NoError(t, err)

	weekOff := presentOn(1, core.NewDate(2024, time.June, 8))
	weekOff.Status = attendance.StatusWeekOff
	_, err = ledger.Mark(ctx, 10, weekOff, 500)
	require.NoError(t, err)

	stats, err := ledger.MonthlyStats(ctx, 1, time.June, 2024)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalWorkingDays)
	assert.Equal(t, 1, stats.HolidayCount)
	assert.Equal(t, 1, stats.WeekOffCount)
	assert.Equal(t, 100.0, stats.Percentage)
}

func TestMonthlyStats_EmptyMonthIsZero(t *testing.T) {
	ledger, _ := newTestLedger(t)

	stats, err := ledger.MonthlyStats(context.Background(), 1, time.May, 2024)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalWorkingDays)
	assert.Equal(t, 0.0, stats.Percentage)
}

// =============================================================================
// DAY MAP AND RANGE SUMMARY TESTS
// =============================================================================

func TestDayMap_KeyedByTeacher(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	day := core.NewDate(2024, time.June, 3)

	_, err := ledger.Mark(ctx, 10, presentOn(1, day), 500)
	require.NoError(t, err)
	absent := presentOn(2, day)
	absent.Status = attendance.StatusAbsent
	_, err = ledger.Mark(ctx, 10, absent, 500)
	require.NoError(t, err)

	byTeacher, err := ledger.DayMap(ctx, 10, day)
	require.NoError(t, err)
	require.Len(t, byTeacher, 2)
	assert.Equal(t, attendance.StatusPresent, byTeacher[1].Status)
	assert.Equal(t, attendance.StatusAbsent, byTeacher[2].Status)
}

func TestRangeSummary_FiltersByTeacher(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	day := core.NewDate(2024, time.June, 3)

	_, err := ledger.Mark(ctx, 10, presentOn(1, day), 500)
	require.NoError(t, err)
	_, err = ledger.Mark(ctx, 10, presentOn(2, day), 500)
	require.NoError(t, err)

	all, err := ledger.RangeSummary(ctx, 10, day, day.AddDays(4), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, all.TotalRecords)

	one, err := ledger.RangeSummary(ctx, 10, day, day.AddDays(4), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, one.TotalRecords)
	assert.Equal(t, 100.0, one.Percentage)
}

func TestRangeSummary_InvertedRangeRejected(t *testing.T) {
	ledger, _ := newTestLedger(t)
	day := core.NewDate(2024, time.June, 3)

	_, err := ledger.RangeSummary(context.Background(), 10, day, day.AddDays(-1), 0)
	assert.ErrorIs(t, err, core.ErrValidation)
}

// =============================================================================
// WORKING HOURS TESTS
// =============================================================================

func TestWorkingHours_RoundsToTwoDecimals(t *testing.T) {
	// 09:00 to 17:20 is 8 hours 20 minutes = 8.33 after rounding.
	hours := attendance.WorkingHours(
		attendance.TimeOfDay{Hour: 9},
		attendance.TimeOfDay{Hour: 17, Minute: 20})
	assert.Equal(t, "8.33", hours.String())
}

func TestParseTimeOfDay(t *testing.T) {
	parsed, err := attendance.ParseTimeOfDay("09:05")
	require.NoError(t, err)
	assert.Equal(t, 9, parsed.Hour)
	assert.Equal(t, 5, parsed.Minute)
	assert.Equal(t, "09:05", parsed.String())

	_, err = attendance.ParseTimeOfDay("25:00")
	assert.ErrorIs(t, err, core.ErrValidation)
}
