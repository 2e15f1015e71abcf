/*
ledger.go - attendance record keeping

Mark is an upsert keyed by (teacher, date): a second mark for the same day
replaces the first, it never duplicates. Future dates are refused. Working
hours are derived from the check times at write, so stored records never
carry stale hours after a re-mark.
*/
package attendance

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/schoolcore/leave-engine/core"
)

// Ledger manages attendance records for a tenant's staff.
type Ledger struct {
	store TxStore
	clock core.Clock
	log   *zap.Logger
}

func NewLedger(store TxStore, clock core.Clock, log *zap.Logger) *Ledger {
	return &Ledger{store: store, clock: clock, log: log}
}

// MarkRequest is one attendance mark.
type MarkRequest struct {
	TeacherID int64
	Date      core.Date
	Status    Status
	CheckIn   *TimeOfDay
	CheckOut  *TimeOfDay
	Remarks   string
}

// Mark records or updates a teacher's attendance for a day. With both
// check times present the working hours are derived (overnight shifts gain
// 24h); with either missing the stored hours are cleared.
func (l *Ledger) Mark(ctx context.Context, tenantID int64, req MarkRequest, markedBy int64) (*Record, error) {
	if !req.Status.Valid() {
		return nil, core.Validationf("unknown attendance status %q", req.Status)
	}
	if req.Date.IsZero() {
		return nil, core.Validationf("attendance date is required")
	}
	if req.Date.After(l.clock.Today()) {
		return nil, core.Validationf("cannot mark attendance for future dates")
	}

	var hours *decimal.Decimal
	if req.CheckIn != nil && req.CheckOut != nil {
		h := WorkingHours(*req.CheckIn, *req.CheckOut)
		hours = &h
	}

	var out *Record
	err := l.store.WithTx(ctx, func(tx Store) error {
		rec, err := tx.Record(ctx, req.TeacherID, req.Date)
		switch {
		case errors.Is(err, core.ErrNotFound):
			rec = &Record{
				ID:        uuid.NewString(),
				TenantID:  tenantID,
				TeacherID: req.TeacherID,
				Date:      req.Date,
			}
		case err != nil:
			return err
		}
		rec.Status = req.Status
		rec.CheckIn = req.CheckIn
		rec.CheckOut = req.CheckOut
		rec.WorkingHours = hours
		rec.Remarks = req.Remarks
		rec.MarkedBy = markedBy

		if err := tx.SaveRecord(ctx, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BulkError reports one failed item of a bulk mark.
type BulkError struct {
	TeacherID int64     `json:"teacher_id"`
	Date      core.Date `json:"date"`
	Message   string    `json:"error"`
}

// BulkMark applies Mark per record independently. A failed item is
// collected, not fatal to the batch.
func (l *Ledger) BulkMark(ctx context.Context, tenantID int64, reqs []MarkRequest, markedBy int64) (int, []BulkError) {
	var (
		successCount int
		bulkErrs     []BulkError
	)
	for _, req := range reqs {
		if _, err := l.Mark(ctx, tenantID, req, markedBy); err != nil {
			bulkErrs = append(bulkErrs, BulkError{
				TeacherID: req.TeacherID,
				Date:      req.Date,
				Message:   err.Error(),
			})
			continue
		}
		successCount++
	}
	if len(bulkErrs) > 0 {
		l.log.Warn("bulk attendance mark had failures",
			zap.Int64("tenant_id", tenantID),
			zap.Int("succeeded", successCount),
			zap.Int("failed", len(bulkErrs)))
	}
	return successCount, bulkErrs
}

// MonthlyStats aggregates a teacher's month. Working days exclude Holiday
// and Week Off; the percentage counts half-days at 0.5.
func (l *Ledger) MonthlyStats(ctx context.Context, teacherID int64, month time.Month, year int) (*MonthlyStats, error) {
	records, err := l.store.MonthRecords(ctx, teacherID, month, year)
	if err != nil {
		return nil, err
	}

	stats := &MonthlyStats{}
	for _, r := range records {
		switch r.Status {
		case StatusPresent:
			stats.PresentCount++
		case StatusHalfDay:
			stats.HalfDayCount++
		case StatusAbsent:
			stats.AbsentCount++
		case StatusOnLeave:
			stats.OnLeaveCount++
		case StatusHoliday:
			stats.HolidayCount++
		case StatusWeekOff:
			stats.WeekOffCount++
		}
		if r.Status.CountsAsWorkingDay() {
			stats.TotalWorkingDays++
		}
	}
	stats.Percentage = attendancePercentage(stats.PresentCount, stats.HalfDayCount, stats.TotalWorkingDays)
	return stats, nil
}

// MonthRecords lists a teacher's records for a month, chronologically.
func (l *Ledger) MonthRecords(ctx context.Context, teacherID int64, month time.Month, year int) ([]*Record, error) {
	return l.store.MonthRecords(ctx, teacherID, month, year)
}

// DayMap returns every record of a tenant for one day, keyed by teacher.
func (l *Ledger) DayMap(ctx context.Context, tenantID int64, day core.Date) (map[int64]*Record, error) {
	records, err := l.store.RecordsForDate(ctx, tenantID, day)
	if err != nil {
		return nil, err
	}
	byTeacher := make(map[int64]*Record, len(records))
	for _, r := range records {
		byTeacher[r.TeacherID] = r
	}
	return byTeacher, nil
}

// RangeSummary aggregates a tenant's records over [from, to], optionally
// restricted to one teacher (teacherID 0 means all).
func (l *Ledger) RangeSummary(ctx context.Context, tenantID int64, from, to core.Date, teacherID int64) (*RangeSummary, error) {
	if to.Before(from) {
		return nil, core.Validationf("end date cannot be before start date")
	}
	records, err := l.store.RecordsInRange(ctx, tenantID, from, to, teacherID)
	if err != nil {
		return nil, err
	}

	summary := &RangeSummary{TotalRecords: len(records)}
	for _, r := range records {
		switch r.Status {
		case StatusPresent:
			summary.Present++
		case StatusAbsent:
			summary.Absent++
		case StatusHalfDay:
			summary.HalfDay++
		case StatusOnLeave:
			summary.OnLeave++
		}
		if r.Status.CountsAsWorkingDay() {
			summary.TotalWorkingDays++
		}
	}
	summary.Percentage = attendancePercentage(summary.Present, summary.HalfDay, summary.TotalWorkingDays)
	return summary, nil
}

func attendancePercentage(present, halfDay, workingDays int) float64 {
	if workingDays == 0 {
		return 0
	}
	presentDays := float64(present) + 0.5*float64(halfDay)
	return math.Round(presentDays/float64(workingDays)*100*100) / 100
}
