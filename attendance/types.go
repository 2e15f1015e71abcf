/*
Package attendance implements day-level attendance accounting for staff:
one record per (teacher, date), upserted rather than duplicated, with
check-in/out derived working hours, monthly aggregation, and the
reconciler that echoes approved leave into "On Leave" records.
*/
package attendance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/schoolcore/leave-engine/core"
)

// Status is the day's attendance state.
type Status string

const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
	StatusHalfDay Status = "Half-Day"
	StatusOnLeave Status = "On Leave"
	StatusHoliday Status = "Holiday"
	StatusWeekOff Status = "Week Off"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusHalfDay, StatusOnLeave, StatusHoliday, StatusWeekOff:
		return true
	}
	return false
}

// CountsAsWorkingDay reports whether the status contributes to the working
// day denominator. Holidays and week-offs do not.
func (s Status) CountsAsWorkingDay() bool {
	return s != StatusHoliday && s != StatusWeekOff
}

// TimeOfDay is a wall-clock time without a date, minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "15:04".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, core.Validationf("invalid time %q (want HH:MM)", s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) Minutes() int   { return t.Hour*60 + t.Minute }
func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// WorkingHours derives the hours between a check-in and a check-out,
// rounded to 2 decimals. A check-out earlier than the check-in is treated
// as an overnight shift and gains 24 hours.
func WorkingHours(checkIn, checkOut TimeOfDay) decimal.Decimal {
	minutes := checkOut.Minutes() - checkIn.Minutes()
	if minutes < 0 {
		minutes += 24 * 60
	}
	return decimal.NewFromInt(int64(minutes)).Div(decimal.NewFromInt(60)).Round(2)
}

// Record is one teacher's attendance for one day.
type Record struct {
	ID        string
	TenantID  int64
	TeacherID int64
	Date      core.Date

	Status   Status
	CheckIn  *TimeOfDay
	CheckOut *TimeOfDay
	// WorkingHours is derived from the check times; nil unless both are set.
	WorkingHours *decimal.Decimal

	Remarks  string
	MarkedBy int64 // 0 when system-marked

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MonthlyStats aggregates one teacher's month.
type MonthlyStats struct {
	PresentCount  int `json:"present_count"`
	HalfDayCount  int `json:"half_day_count"`
	AbsentCount   int `json:"absent_count"`
	OnLeaveCount  int `json:"on_leave_count"`
	HolidayCount  int `json:"holiday_count"`
	WeekOffCount  int `json:"week_off_count"`
	// TotalWorkingDays excludes holidays and week-offs.
	TotalWorkingDays int `json:"total_working_days"`
	// Percentage = (present + 0.5*half_day) / working days * 100, two
	// decimals, 0 when there are no working-day records.
	Percentage float64 `json:"percentage"`
}

// RangeSummary aggregates a tenant-wide date span.
type RangeSummary struct {
	TotalRecords     int     `json:"total_records"`
	TotalWorkingDays int     `json:"total_working_days"`
	Present          int     `json:"present"`
	Absent           int     `json:"absent"`
	HalfDay          int     `json:"half_day"`
	OnLeave          int     `json:"on_leave"`
	Percentage       float64 `json:"percentage"`
}
