package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/schoolcore/leave-engine/attendance"
	"github.com/schoolcore/leave-engine/core"
)

// AttendanceStore implements attendance.TxStore over the shared database
// handle.
type AttendanceStore struct {
	s *Store
	q querier
}

func (as *AttendanceStore) WithTx(ctx context.Context, fn func(attendance.Store) error) error {
	return as.s.withTx(ctx, as.q, func(tx *sql.Tx) error {
		return fn(&AttendanceStore{s: as.s, q: tx})
	})
}

const recordColumns = `
	id, tenant_id, teacher_id, attendance_date, status,
	check_in, check_out, working_hours, remarks, marked_by,
	created_at, updated_at`

func scanRecord(scan func(dest ...any) error) (*attendance.Record, error) {
	var (
		r                    attendance.Record
		day                  string
		checkIn, checkOut    sql.NullString
		workingHours         decimal.NullDecimal
		markedBy             sql.NullInt64
		createdAt, updatedAt string
	)
	err := scan(
		&r.ID, &r.TenantID, &r.TeacherID, &day, &r.Status,
		&checkIn, &checkOut, &workingHours, &r.Remarks, &markedBy,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if r.Date, err = core.ParseDate(day); err != nil {
		return nil, err
	}
	if checkIn.Valid {
		t, err := attendance.ParseTimeOfDay(checkIn.String)
		if err != nil {
			return nil, err
		}
		r.CheckIn = &t
	}
	if checkOut.Valid {
		t, err := attendance.ParseTimeOfDay(checkOut.String)
		if err != nil {
			return nil, err
		}
		r.CheckOut = &t
	}
	if workingHours.Valid {
		r.WorkingHours = &workingHours.Decimal
	}
	if markedBy.Valid {
		r.MarkedBy = markedBy.Int64
	}
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}

func (as *AttendanceStore) Record(ctx context.Context, teacherID int64, day core.Date) (*attendance.Record, error) {
	row := as.q.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE teacher_id = ? AND attendance_date = ?`, teacherID, day.String())

	r, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("attendance for teacher %d on %s: %w", teacherID, day, core.ErrNotFound)
	}
	if err != nil {
		return nil, core.Storagef("load attendance record", err)
	}
	return r, nil
}

func (as *AttendanceStore) SaveRecord(ctx context.Context, r *attendance.Record) error {
	var (
		checkIn, checkOut, workingHours, markedBy any
	)
	if r.CheckIn != nil {
		checkIn = r.CheckIn.String()
	}
	if r.CheckOut != nil {
		checkOut = r.CheckOut.String()
	}
	if r.WorkingHours != nil {
		workingHours = *r.WorkingHours
	}
	if r.MarkedBy != 0 {
		markedBy = r.MarkedBy
	}
	now := fmtTime(time.Now())
	_, err := as.q.ExecContext(ctx, `
		INSERT INTO attendance_records (
			id, tenant_id, teacher_id, attendance_date, status,
			check_in, check_out, working_hours, remarks, marked_by,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(teacher_id, attendance_date) DO UPDATE SET
			status = excluded.status,
			check_in = excluded.check_in,
			check_out = excluded.check_out,
			working_hours = excluded.working_hours,
			remarks = excluded.remarks,
			marked_by = excluded.marked_by,
			updated_at = excluded.updated_at`,
		r.ID, r.TenantID, r.TeacherID, r.Date.String(), string(r.Status),
		checkIn, checkOut, workingHours, r.Remarks, markedBy,
		now, now)
	if err != nil {
		return core.Storagef("save attendance record", err)
	}
	return nil
}

func (as *AttendanceStore) MonthRecords(ctx context.Context, teacherID int64, month time.Month, year int) ([]*attendance.Record, error) {
	first := core.NewDate(year, month, 1)
	last := first.AddDays(32)
	last = core.NewDate(last.Year(), last.Month(), 1).AddDays(-1)
	return as.queryRecords(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE teacher_id = ? AND attendance_date BETWEEN ? AND ?
		ORDER BY attendance_date`,
		teacherID, first.String(), last.String())
}

func (as *AttendanceStore) RecordsForDate(ctx context.Context, tenantID int64, day core.Date) ([]*attendance.Record, error) {
	return as.queryRecords(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE tenant_id = ? AND attendance_date = ?
		ORDER BY teacher_id`,
		tenantID, day.String())
}

func (as *AttendanceStore) RecordsInRange(ctx context.Context, tenantID int64, from, to core.Date, teacherID int64) ([]*attendance.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM attendance_records
		WHERE tenant_id = ? AND attendance_date BETWEEN ? AND ?`
	args := []any{tenantID, from.String(), to.String()}
	if teacherID != 0 {
		query += ` AND teacher_id = ?`
		args = append(args, teacherID)
	}
	query += ` ORDER BY attendance_date, teacher_id`
	return as.queryRecords(ctx, query, args...)
}

func (as *AttendanceStore) queryRecords(ctx context.Context, query string, args ...any) ([]*attendance.Record, error) {
	rows, err := as.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.Storagef("list attendance records", err)
	}
	defer rows.Close()

	var out []*attendance.Record
	for rows.Next() {
		r, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, core.Storagef("scan attendance record", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
