package leave

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/schoolcore/leave-engine/core"
)

// The academic year runs April through March.
const academicYearStartMonth = time.April

// AcademicYearFor derives the academic-year label for a date.
// January-March belong to the year that started the previous April:
// 2025-02-10 -> "2024-25", 2025-04-01 -> "2025-26".
func AcademicYearFor(d core.Date) string {
	startYear := d.Year()
	if d.Month() < academicYearStartMonth {
		startYear--
	}
	return fmt.Sprintf("%d-%02d", startYear, (startYear+1)%100)
}

// CountLeaveDays computes the day total for a leave span.
// Half-day is always 0.5 regardless of weekend policy. Otherwise the span
// is counted inclusively; unless weekendCounted, Saturdays and Sundays are
// skipped.
func CountLeaveDays(start, end core.Date, isHalfDay, weekendCounted bool) (decimal.Decimal, error) {
	if isHalfDay {
		return decimal.NewFromFloat(0.5), nil
	}
	if start.After(end) {
		return decimal.Zero, core.Validationf("end date cannot be before start date")
	}

	if weekendCounted {
		return decimal.NewFromInt(int64(start.DaysUntil(end)) + 1), nil
	}

	var n int64
	for d := start; !d.After(end); d = d.AddDays(1) {
		if !d.IsWeekend() {
			n++
		}
	}
	return decimal.NewFromInt(n), nil
}
