package leave_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolcore/leave-engine/core"
	"github.com/schoolcore/leave-engine/leave"
)

// =============================================================================
// ACADEMIC YEAR LABEL TESTS
// =============================================================================

func TestAcademicYearFor_AprilStartsNewYear(t *testing.T) {
	// GIVEN: The academic year starts in April
	// WHEN: Deriving the label for April 1st
	// THEN: The date belongs to the year it opens

	assert.Equal(t, "2025-26", leave.AcademicYearFor(core.NewDate(2025, time.April, 1)))
}

func TestAcademicYearFor_MarchBelongsToPreviousYear(t *testing.T) {
	// GIVEN: A date in January-March
	// WHEN: Deriving the label
	// THEN: It belongs to the year that started the previous April

	assert.Equal(t, "2024-25", leave.AcademicYearFor(core.NewDate(2025, time.March, 31)))
	assert.Equal(t, "2024-25", leave.AcademicYearFor(core.NewDate(2025, time.January, 1)))
}

func TestAcademicYearFor_MidYear(t *testing.T) {
	assert.Equal(t, "2024-25", leave.AcademicYearFor(core.NewDate(2024, time.June, 15)))
	assert.Equal(t, "2024-25", leave.AcademicYearFor(core.NewDate(2024, time.December, 31)))
}

func TestAcademicYearFor_CenturyRollover(t *testing.T) {
	// The short suffix is the start year plus one, modulo 100.
	assert.Equal(t, "2099-00", leave.AcademicYearFor(core.NewDate(2099, time.May, 1)))
}

// =============================================================================
// LEAVE DAY COUNTING TESTS
// =============================================================================

func TestCountLeaveDays_WeekdaysOnly(t *testing.T) {
	// GIVEN: A Monday-to-Friday span with weekends not counted
	// WHEN: Counting leave days
	// THEN: All five weekdays count

	start := core.NewDate(2024, time.June, 3) // Monday
	end := core.NewDate(2024, time.June, 7)   // Friday

	days, err := leave.CountLeaveDays(start, end, false, false)
	require.NoError(t, err)
	assert.Equal(t, "5", days.String())
}

func TestCountLeaveDays_SpanningWeekend(t *testing.T) {
	// GIVEN: Monday through the following Monday (8 calendar days)
	// WHEN: Weekends are not counted
	// THEN: The Saturday and Sunday in between are skipped

	start := core.NewDate(2024, time.June, 3)  // Monday
	end := core.NewDate(2024, time.June, 10)   // next Monday

	days, err := leave.CountLeaveDays(start, end, false, false)
	require.NoError(t, err)
	assert.Equal(t, "6", days.String())
}

func TestCountLeaveDays_WeekendCounted(t *testing.T) {
	// GIVEN: The tenant counts weekends as leave
	// WHEN: Counting the same 8-day span
	// THEN: Every calendar day counts

	start := core.NewDate(2024, time.June, 3)
	end := core.NewDate(2024, time.June, 10)

	days, err := leave.CountLeaveDays(start, end, false, true)
	require.NoError(t, err)
	assert.Equal(t, "8", days.String())
}

func TestCountLeaveDays_HalfDayIsAlwaysHalf(t *testing.T) {
	day := core.NewDate(2024, time.June, 3)

	days, err := leave.CountLeaveDays(day, day, true, false)
	require.NoError(t, err)
	assert.Equal(t, "0.5", days.String())
}

func TestCountLeaveDays_WeekendOnlySpanIsZero(t *testing.T) {
	// A Saturday-Sunday span with weekends excluded contains no leave days.
	start := core.NewDate(2024, time.June, 1) // Saturday
	end := core.NewDate(2024, time.June, 2)   // Sunday

	days, err := leave.CountLeaveDays(start, end, false, false)
	require.NoError(t, err)
	assert.True(t, days.IsZero())
}

func TestCountLeaveDays_EndBeforeStartRejected(t *testing.T) {
	start := core.NewDate(2024, time.June, 7)
	end := core.NewDate(2024, time.June, 3)

	_, err := leave.CountLeaveDays(start, end, false, false)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestCountLeaveDays_SingleDay(t *testing.T) {
	day := core.NewDate(2024, time.June, 3) // Monday

	days, err := leave.CountLeaveDays(day, day, false, false)
	require.NoError(t, err)
	assert.Equal(t, "1", days.String())
}
