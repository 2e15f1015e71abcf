package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/schoolcore/leave-engine/core"
	"github.com/schoolcore/leave-engine/leave"
)

// LeaveStore implements leave.TxStore over the shared database handle.
type LeaveStore struct {
	s *Store
	q querier
}

// WithTx runs fn with a transactional view of the store. Calls nested
// inside an open transaction reuse it.
func (ls *LeaveStore) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	return ls.s.withTx(ctx, ls.q, func(tx *sql.Tx) error {
		return fn(&LeaveStore{s: ls.s, q: tx})
	})
}

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// =============================================================================
// QUOTA SETTINGS
// =============================================================================

func (ls *LeaveStore) QuotaSettings(ctx context.Context, tenantID int64, academicYear string) (*leave.QuotaSettings, error) {
	row := ls.q.QueryRowContext(ctx, `
		SELECT tenant_id, academic_year,
		       cl_quota, sl_quota, el_quota, maternity_quota, paternity_quota,
		       allow_half_day, allow_lop, duty_leave_unlimited,
		       max_continuous_days, min_advance_days, weekend_counted,
		       is_active, created_at, updated_at
		FROM quota_settings
		WHERE tenant_id = ? AND academic_year = ?`, tenantID, academicYear)

	var (
		qs                   leave.QuotaSettings
		createdAt, updatedAt string
	)
	err := row.Scan(
		&qs.TenantID, &qs.AcademicYear,
		&qs.CLQuota, &qs.SLQuota, &qs.ELQuota, &qs.MaternityQuota, &qs.PaternityQuota,
		&qs.AllowHalfDay, &qs.AllowLOP, &qs.DutyLeaveUnlimited,
		&qs.MaxContinuousDays, &qs.MinAdvanceDays, &qs.WeekendCounted,
		&qs.IsActive, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("quota settings for tenant %d year %s: %w", tenantID, academicYear, core.ErrNotFound)
	}
	if err != nil {
		return nil, core.Storagef("load quota settings", err)
	}
	qs.CreatedAt = parseTime(createdAt)
	qs.UpdatedAt = parseTime(updatedAt)
	return &qs, nil
}

func (ls *LeaveStore) SaveQuotaSettings(ctx context.Context, s *leave.QuotaSettings) error {
	now := fmtTime(time.Now())
	_, err := ls.q.ExecContext(ctx, `
		INSERT INTO quota_settings (
			tenant_id, academic_year,
			cl_quota, sl_quota, el_quota, maternity_quota, paternity_quota,
			allow_half_day, allow_lop, duty_leave_unlimited,
			max_continuous_days, min_advance_days, weekend_counted,
			is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, academic_year) DO UPDATE SET
			cl_quota = excluded.cl_quota,
			sl_quota = excluded.sl_quota,
			el_quota = excluded.el_quota,
			maternity_quota = excluded.maternity_quota,
			paternity_quota = excluded.paternity_quota,
			allow_half_day = excluded.allow_half_day,
			allow_lop = excluded.allow_lop,
			duty_leave_unlimited = excluded.duty_leave_unlimited,
			max_continuous_days = excluded.max_continuous_days,
			min_advance_days = excluded.min_advance_days,
			weekend_counted = excluded.weekend_counted,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		s.TenantID, s.AcademicYear,
		s.CLQuota, s.SLQuota, s.ELQuota, s.MaternityQuota, s.PaternityQuota,
		s.AllowHalfDay, s.AllowLOP, s.DutyLeaveUnlimited,
		s.MaxContinuousDays, s.MinAdvanceDays, s.WeekendCounted,
		s.IsActive, now, now)
	if err != nil {
		return core.Storagef("save quota settings", err)
	}
	return nil
}

// =============================================================================
// BALANCES
// =============================================================================

const balanceColumns = `
	teacher_id, academic_year, tenant_id,
	cl_total, cl_taken, cl_pending,
	sl_total, sl_taken, sl_pending,
	el_total, el_taken, el_pending,
	maternity_total, maternity_taken, maternity_pending,
	paternity_total, paternity_taken, paternity_pending,
	lop_taken, duty_leave_taken, el_carried_forward,
	notes, last_reset_date, created_at, updated_at`

func scanBalance(scan func(dest ...any) error) (*leave.Balance, error) {
	var (
		b                    leave.Balance
		lastReset            sql.NullString
		createdAt, updatedAt string
	)
	err := scan(
		&b.TeacherID, &b.AcademicYear, &b.TenantID,
		&b.CL.Total, &b.CL.Taken, &b.CL.Pending,
		&b.SL.Total, &b.SL.Taken, &b.SL.Pending,
		&b.EL.Total, &b.EL.Taken, &b.EL.Pending,
		&b.Maternity.Total, &b.Maternity.Taken, &b.Maternity.Pending,
		&b.Paternity.Total, &b.Paternity.Taken, &b.Paternity.Pending,
		&b.LOPTaken, &b.DutyLeaveTaken, &b.ELCarriedForward,
		&b.Notes, &lastReset, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if lastReset.Valid {
		if d, err := core.ParseDate(lastReset.String); err == nil {
			b.LastResetDate = d
		}
	}
	b.CreatedAt = parseTime(createdAt)
	b.UpdatedAt = parseTime(updatedAt)
	return &b, nil
}

func (ls *LeaveStore) Balance(ctx context.Context, teacherID int64, academicYear string) (*leave.Balance, error) {
	row := ls.q.QueryRowContext(ctx, `
		SELECT `+balanceColumns+`
		FROM leave_balances
		WHERE teacher_id = ? AND academic_year = ?`, teacherID, academicYear)

	b, err := scanBalance(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("balance for teacher %d year %s: %w", teacherID, academicYear, core.ErrNotFound)
	}
	if err != nil {
		return nil, core.Storagef("load balance", err)
	}
	return b, nil
}

func (ls *LeaveStore) SaveBalance(ctx context.Context, b *leave.Balance) error {
	var lastReset any
	if !b.LastResetDate.IsZero() {
		lastReset = b.LastResetDate.String()
	}
	now := fmtTime(time.Now())
	_, err := ls.q.ExecContext(ctx, `
		INSERT INTO leave_balances (
			teacher_id, academic_year, tenant_id,
			cl_total, cl_taken, cl_pending,
			sl_total, sl_taken, sl_pending,
			el_total, el_taken, el_pending,
			maternity_total, maternity_taken, maternity_pending,
			paternity_total, paternity_taken, paternity_pending,
			lop_taken, duty_leave_taken, el_carried_forward,
			notes, last_reset_date, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(teacher_id, academic_year) DO UPDATE SET
			tenant_id = excluded.tenant_id,
			cl_total = excluded.cl_total, cl_taken = excluded.cl_taken, cl_pending = excluded.cl_pending,
			sl_total = excluded.sl_total, sl_taken = excluded.sl_taken, sl_pending = excluded.sl_pending,
			el_total = excluded.el_total, el_taken = excluded.el_taken, el_pending = excluded.el_pending,
			maternity_total = excluded.maternity_total, maternity_taken = excluded.maternity_taken, maternity_pending = excluded.maternity_pending,
			paternity_total = excluded.paternity_total, paternity_taken = excluded.paternity_taken, paternity_pending = excluded.paternity_pending,
			lop_taken = excluded.lop_taken, duty_leave_taken = excluded.duty_leave_taken,
			el_carried_forward = excluded.el_carried_forward,
			notes = excluded.notes, last_reset_date = excluded.last_reset_date,
			updated_at = excluded.updated_at`,
		b.TeacherID, b.AcademicYear, b.TenantID,
		b.CL.Total, b.CL.Taken, b.CL.Pending,
		b.SL.Total, b.SL.Taken, b.SL.Pending,
		b.EL.Total, b.EL.Taken, b.EL.Pending,
		b.Maternity.Total, b.Maternity.Taken, b.Maternity.Pending,
		b.Paternity.Total, b.Paternity.Taken, b.Paternity.Pending,
		b.LOPTaken, b.DutyLeaveTaken, b.ELCarriedForward,
		b.Notes, lastReset, now, now)
	if err != nil {
		return core.Storagef("save balance", err)
	}
	return nil
}

func (ls *LeaveStore) BalancesByTenant(ctx context.Context, tenantID int64, academicYear string) ([]*leave.Balance, error) {
	rows, err := ls.q.QueryContext(ctx, `
		SELECT `+balanceColumns+`
		FROM leave_balances
		WHERE tenant_id = ? AND academic_year = ?
		ORDER BY teacher_id`, tenantID, academicYear)
	if err != nil {
		return nil, core.Storagef("list balances", err)
	}
	defer rows.Close()

	var out []*leave.Balance
	for rows.Next() {
		b, err := scanBalance(rows.Scan)
		if err != nil {
			return nil, core.Storagef("scan balance", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// =============================================================================
// APPLICATIONS
// =============================================================================

const applicationColumns = `
	id, tenant_id, teacher_id, category,
	start_date, end_date, is_half_day, half_day_period, total_days,
	reason, contact_during_leave, address_during_leave,
	status, applied_at, approved_by, approved_at,
	rejection_reason, admin_notes, academic_year, created_at, updated_at`

func scanApplication(scan func(dest ...any) error) (*leave.Application, error) {
	var (
		a                             leave.Application
		startDate, endDate, appliedAt string
		halfDayPeriod, approvedAt     sql.NullString
		approvedBy                    sql.NullInt64
		createdAt, updatedAt          string
	)
	err := scan(
		&a.ID, &a.TenantID, &a.TeacherID, &a.Category,
		&startDate, &endDate, &a.IsHalfDay, &halfDayPeriod, &a.TotalDays,
		&a.Reason, &a.ContactDuringLeave, &a.AddressDuringLeave,
		&a.Status, &appliedAt, &approvedBy, &approvedAt,
		&a.RejectionReason, &a.AdminNotes, &a.AcademicYear, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if a.StartDate, err = core.ParseDate(startDate); err != nil {
		return nil, err
	}
	if a.EndDate, err = core.ParseDate(endDate); err != nil {
		return nil, err
	}
	if halfDayPeriod.Valid {
		a.HalfDayPeriod = leave.HalfDayPeriod(halfDayPeriod.String)
	}
	if approvedBy.Valid {
		a.ApprovedBy = approvedBy.Int64
	}
	if approvedAt.Valid {
		a.ApprovedAt = parseTime(approvedAt.String)
	}
	a.AppliedAt = parseTime(appliedAt)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

func (ls *LeaveStore) Application(ctx context.Context, id string) (*leave.Application, error) {
	row := ls.q.QueryRowContext(ctx, `
		SELECT `+applicationColumns+`
		FROM leave_applications WHERE id = ?`, id)

	a, err := scanApplication(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("application %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, core.Storagef("load application", err)
	}
	return a, nil
}

func (ls *LeaveStore) SaveApplication(ctx context.Context, a *leave.Application) error {
	var (
		halfDayPeriod any
		approvedBy    any
		approvedAt    any
	)
	if a.HalfDayPeriod != "" {
		halfDayPeriod = string(a.HalfDayPeriod)
	}
	if a.ApprovedBy != 0 {
		approvedBy = a.ApprovedBy
	}
	if !a.ApprovedAt.IsZero() {
		approvedAt = fmtTime(a.ApprovedAt)
	}
	now := fmtTime(time.Now())
	_, err := ls.q.ExecContext(ctx, `
		INSERT INTO leave_applications (
			id, tenant_id, teacher_id, category,
			start_date, end_date, is_half_day, half_day_period, total_days,
			reason, contact_during_leave, address_during_leave,
			status, applied_at, approved_by, approved_at,
			rejection_reason, admin_notes, academic_year, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			approved_by = excluded.approved_by,
			approved_at = excluded.approved_at,
			rejection_reason = excluded.rejection_reason,
			admin_notes = excluded.admin_notes,
			updated_at = excluded.updated_at`,
		a.ID, a.TenantID, a.TeacherID, string(a.Category),
		a.StartDate.String(), a.EndDate.String(), a.IsHalfDay, halfDayPeriod, a.TotalDays,
		a.Reason, a.ContactDuringLeave, a.AddressDuringLeave,
		string(a.Status), fmtTime(a.AppliedAt), approvedBy, approvedAt,
		a.RejectionReason, a.AdminNotes, a.AcademicYear, now, now)
	if err != nil {
		return core.Storagef("save application", err)
	}
	return nil
}

func (ls *LeaveStore) ApplicationsByTeacher(ctx context.Context, teacherID int64, academicYear string, status leave.Status) ([]*leave.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM leave_applications WHERE teacher_id = ?`
	args := []any{teacherID}
	if academicYear != "" {
		query += ` AND academic_year = ?`
		args = append(args, academicYear)
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY applied_at DESC`
	return ls.queryApplications(ctx, query, args...)
}

func (ls *LeaveStore) ApplicationsByTenant(ctx context.Context, tenantID int64, status leave.Status) ([]*leave.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM leave_applications WHERE tenant_id = ?`
	args := []any{tenantID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY applied_at DESC`
	return ls.queryApplications(ctx, query, args...)
}

func (ls *LeaveStore) ApprovedApplicationsOn(ctx context.Context, tenantID int64, day core.Date) ([]*leave.Application, error) {
	return ls.queryApplications(ctx, `
		SELECT `+applicationColumns+`
		FROM leave_applications
		WHERE tenant_id = ? AND status = ? AND start_date <= ? AND end_date >= ?
		ORDER BY teacher_id`,
		tenantID, string(leave.StatusApproved), day.String(), day.String())
}

func (ls *LeaveStore) queryApplications(ctx context.Context, query string, args ...any) ([]*leave.Application, error) {
	rows, err := ls.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.Storagef("list applications", err)
	}
	defer rows.Close()

	var out []*leave.Application
	for rows.Next() {
		a, err := scanApplication(rows.Scan)
		if err != nil {
			return nil, core.Storagef("scan application", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
