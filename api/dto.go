/*
dto.go - Data transfer objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  internal domain model from the external contract. Decimal counters are
  rendered as strings so clients never see float drift.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry validator tags; handlers run them through the shared
  validator instance before touching domain logic. Domain rules (balance
  sufficiency, state transitions, date policy) stay in the domain packages.

SEE ALSO:
  - handlers.go: Uses these types
  - server.go: Route wiring
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/schoolcore/leave-engine/attendance"
	"github.com/schoolcore/leave-engine/leave"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// QUOTA SETTINGS
// =============================================================================

// QuotaSettingsDTO represents a tenant's leave policy for one academic year.
type QuotaSettingsDTO struct {
	TenantID     int64  `json:"tenant_id"`
	AcademicYear string `json:"academic_year"`

	CLQuota        string `json:"cl_quota"`
	SLQuota        string `json:"sl_quota"`
	ELQuota        string `json:"el_quota"`
	MaternityQuota string `json:"maternity_quota"`
	PaternityQuota string `json:"paternity_quota"`

	AllowHalfDay       bool `json:"allow_half_day"`
	AllowLOP           bool `json:"allow_lop"`
	DutyLeaveUnlimited bool `json:"duty_leave_unlimited"`
	MaxContinuousDays  int  `json:"max_continuous_days"`
	MinAdvanceDays     int  `json:"min_advance_days"`
	WeekendCounted     bool `json:"weekend_counted"`
	IsActive           bool `json:"is_active"`

	UpdatedAt string `json:"updated_at,omitempty"`
}

func toQuotaSettingsDTO(s *leave.QuotaSettings) QuotaSettingsDTO {
	return QuotaSettingsDTO{
		TenantID:           s.TenantID,
		AcademicYear:       s.AcademicYear,
		CLQuota:            s.CLQuota.String(),
		SLQuota:            s.SLQuota.String(),
		ELQuota:            s.ELQuota.String(),
		MaternityQuota:     s.MaternityQuota.String(),
		PaternityQuota:     s.PaternityQuota.String(),
		AllowHalfDay:       s.AllowHalfDay,
		AllowLOP:           s.AllowLOP,
		DutyLeaveUnlimited: s.DutyLeaveUnlimited,
		MaxContinuousDays:  s.MaxContinuousDays,
		MinAdvanceDays:     s.MinAdvanceDays,
		WeekendCounted:     s.WeekendCounted,
		IsActive:           s.IsActive,
		UpdatedAt:          formatTime(s.UpdatedAt),
	}
}

// UpdateQuotaSettingsRequest patches a tenant's policy. Omitted fields are
// left untouched.
type UpdateQuotaSettingsRequest struct {
	CLQuota        *string `json:"cl_quota,omitempty"`
	SLQuota        *string `json:"sl_quota,omitempty"`
	ELQuota        *string `json:"el_quota,omitempty"`
	MaternityQuota *string `json:"maternity_quota,omitempty"`
	PaternityQuota *string `json:"paternity_quota,omitempty"`

	AllowHalfDay       *bool `json:"allow_half_day,omitempty"`
	AllowLOP           *bool `json:"allow_lop,omitempty"`
	DutyLeaveUnlimited *bool `json:"duty_leave_unlimited,omitempty"`
	MaxContinuousDays  *int  `json:"max_continuous_days,omitempty" validate:"omitempty,min=1"`
	MinAdvanceDays     *int  `json:"min_advance_days,omitempty" validate:"omitempty,min=0"`
	WeekendCounted     *bool `json:"weekend_counted,omitempty"`
	IsActive           *bool `json:"is_active,omitempty"`
}

// =============================================================================
// BALANCES
// =============================================================================

// CategoryBucketDTO is one category's counters plus the derived balance.
type CategoryBucketDTO struct {
	Total   string `json:"total"`
	Taken   string `json:"taken"`
	Pending string `json:"pending"`
	Balance string `json:"balance"`
}

func toBucketDTO(b leave.CategoryBucket) CategoryBucketDTO {
	return CategoryBucketDTO{
		Total:   b.Total.String(),
		Taken:   b.Taken.String(),
		Pending: b.Pending.String(),
		Balance: b.Balance().String(),
	}
}

// BalanceDTO is a teacher's full leave ledger row, balances derived.
type BalanceDTO struct {
	TeacherID    int64  `json:"teacher_id"`
	TenantID     int64  `json:"tenant_id"`
	AcademicYear string `json:"academic_year"`

	CL        CategoryBucketDTO `json:"cl"`
	SL        CategoryBucketDTO `json:"sl"`
	EL        CategoryBucketDTO `json:"el"`
	Maternity CategoryBucketDTO `json:"maternity"`
	Paternity CategoryBucketDTO `json:"paternity"`

	LOPTaken         string `json:"lop_taken"`
	DutyLeaveTaken   string `json:"duty_leave_taken"`
	ELCarriedForward string `json:"el_carried_forward"`

	Notes         string `json:"notes,omitempty"`
	LastResetDate string `json:"last_reset_date,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

func toBalanceDTO(b *leave.Balance) BalanceDTO {
	dto := BalanceDTO{
		TeacherID:        b.TeacherID,
		TenantID:         b.TenantID,
		AcademicYear:     b.AcademicYear,
		CL:               toBucketDTO(b.CL),
		SL:               toBucketDTO(b.SL),
		EL:               toBucketDTO(b.EL),
		Maternity:        toBucketDTO(b.Maternity),
		Paternity:        toBucketDTO(b.Paternity),
		LOPTaken:         b.LOPTaken.String(),
		DutyLeaveTaken:   b.DutyLeaveTaken.String(),
		ELCarriedForward: b.ELCarriedForward.String(),
		Notes:            b.Notes,
		UpdatedAt:        formatTime(b.UpdatedAt),
	}
	if !b.LastResetDate.IsZero() {
		dto.LastResetDate = b.LastResetDate.String()
	}
	return dto
}

// InitializeBalancesRequest triggers bulk initialization for a tenant.
type InitializeBalancesRequest struct {
	AcademicYear string `json:"academic_year,omitempty"`
	ForceReset   bool   `json:"force_reset,omitempty"`
}

// UpdateBalanceRequest is the admin patch for a teacher's totals. Taken and
// pending counters are workflow-owned and not patchable.
type UpdateBalanceRequest struct {
	CLTotal          *string `json:"cl_total,omitempty"`
	SLTotal          *string `json:"sl_total,omitempty"`
	ELTotal          *string `json:"el_total,omitempty"`
	MaternityTotal   *string `json:"maternity_total,omitempty"`
	PaternityTotal   *string `json:"paternity_total,omitempty"`
	ELCarriedForward *string `json:"el_carried_forward,omitempty"`
	Notes            *string `json:"notes,omitempty"`
}

// =============================================================================
// LEAVE APPLICATIONS
// =============================================================================

// SubmitLeaveRequest is a teacher's new leave application.
type SubmitLeaveRequest struct {
	TeacherID     int64  `json:"teacher_id" validate:"required"`
	Category      string `json:"category" validate:"required"`
	StartDate     string `json:"start_date" validate:"required"`
	EndDate       string `json:"end_date" validate:"required"`
	IsHalfDay     bool   `json:"is_half_day"`
	HalfDayPeriod string `json:"half_day_period,omitempty"`
	Reason        string `json:"reason" validate:"required"`

	ContactDuringLeave string `json:"contact_during_leave,omitempty"`
	AddressDuringLeave string `json:"address_during_leave,omitempty"`
	AcademicYear       string `json:"academic_year,omitempty"`
}

// CancelLeaveRequest identifies the owner cancelling their application.
type CancelLeaveRequest struct {
	TeacherID int64 `json:"teacher_id" validate:"required"`
}

// ApproveLeaveRequest settles a pending application as approved.
type ApproveLeaveRequest struct {
	ApproverID int64  `json:"approver_id" validate:"required"`
	AdminNotes string `json:"admin_notes,omitempty"`
}

// RejectLeaveRequest settles a pending application as rejected.
type RejectLeaveRequest struct {
	ApproverID int64  `json:"approver_id" validate:"required"`
	Reason     string `json:"reason" validate:"required"`
}

// ApplicationDTO represents a leave application in API responses.
type ApplicationDTO struct {
	ID        string `json:"id"`
	TenantID  int64  `json:"tenant_id"`
	TeacherID int64  `json:"teacher_id"`

	Category      string `json:"category"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	IsHalfDay     bool   `json:"is_half_day"`
	HalfDayPeriod string `json:"half_day_period,omitempty"`
	TotalDays     string `json:"total_days"`

	Reason             string `json:"reason"`
	ContactDuringLeave string `json:"contact_during_leave,omitempty"`
	AddressDuringLeave string `json:"address_during_leave,omitempty"`

	Status          string `json:"status"`
	AppliedAt       string `json:"applied_at"`
	ApprovedBy      int64  `json:"approved_by,omitempty"`
	ApprovedAt      string `json:"approved_at,omitempty"`
	RejectionReason string `json:"rejection_reason,omitempty"`
	AdminNotes      string `json:"admin_notes,omitempty"`

	AcademicYear string `json:"academic_year"`
}

func toApplicationDTO(a *leave.Application) ApplicationDTO {
	return ApplicationDTO{
		ID:                 a.ID,
		TenantID:           a.TenantID,
		TeacherID:          a.TeacherID,
		Category:           string(a.Category),
		StartDate:          a.StartDate.String(),
		EndDate:            a.EndDate.String(),
		IsHalfDay:          a.IsHalfDay,
		HalfDayPeriod:      string(a.HalfDayPeriod),
		TotalDays:          a.TotalDays.String(),
		Reason:             a.Reason,
		ContactDuringLeave: a.ContactDuringLeave,
		AddressDuringLeave: a.AddressDuringLeave,
		Status:             string(a.Status),
		AppliedAt:          formatTime(a.AppliedAt),
		ApprovedBy:         a.ApprovedBy,
		ApprovedAt:         formatTime(a.ApprovedAt),
		RejectionReason:    a.RejectionReason,
		AdminNotes:         a.AdminNotes,
		AcademicYear:       a.AcademicYear,
	}
}

func toApplicationDTOs(apps []*leave.Application) []ApplicationDTO {
	dtos := make([]ApplicationDTO, len(apps))
	for i, a := range apps {
		dtos[i] = toApplicationDTO(a)
	}
	return dtos
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// MarkAttendanceRequest records one teacher's attendance for a day.
type MarkAttendanceRequest struct {
	TeacherID int64  `json:"teacher_id" validate:"required"`
	Date      string `json:"date" validate:"required"`
	Status    string `json:"status" validate:"required"`
	CheckIn   string `json:"check_in,omitempty"`
	CheckOut  string `json:"check_out,omitempty"`
	Remarks   string `json:"remarks,omitempty"`
	MarkedBy  int64  `json:"marked_by,omitempty"`
}

// BulkMarkAttendanceRequest marks many teachers in one call. Entries fail
// independently; the response reports per-entry errors.
type BulkMarkAttendanceRequest struct {
	MarkedBy int64                   `json:"marked_by"`
	Records  []MarkAttendanceRequest `json:"records" validate:"required,min=1,dive"`
}

// BulkMarkResponse reports the outcome of a bulk mark.
type BulkMarkResponse struct {
	SuccessCount int                    `json:"success_count"`
	ErrorCount   int                    `json:"error_count"`
	Errors       []attendance.BulkError `json:"errors,omitempty"`
}

// RecordDTO represents an attendance record in API responses.
type RecordDTO struct {
	ID        string `json:"id"`
	TenantID  int64  `json:"tenant_id"`
	TeacherID int64  `json:"teacher_id"`
	Date      string `json:"date"`

	Status       string `json:"status"`
	CheckIn      string `json:"check_in,omitempty"`
	CheckOut     string `json:"check_out,omitempty"`
	WorkingHours string `json:"working_hours,omitempty"`

	Remarks  string `json:"remarks,omitempty"`
	MarkedBy int64  `json:"marked_by,omitempty"`
}

func toRecordDTO(rec *attendance.Record) RecordDTO {
	dto := RecordDTO{
		ID:        rec.ID,
		TenantID:  rec.TenantID,
		TeacherID: rec.TeacherID,
		Date:      rec.Date.String(),
		Status:    string(rec.Status),
		Remarks:   rec.Remarks,
		MarkedBy:  rec.MarkedBy,
	}
	if rec.CheckIn != nil {
		dto.CheckIn = rec.CheckIn.String()
	}
	if rec.CheckOut != nil {
		dto.CheckOut = rec.CheckOut.String()
	}
	if rec.WorkingHours != nil {
		dto.WorkingHours = rec.WorkingHours.String()
	}
	return dto
}

func toRecordDTOs(recs []*attendance.Record) []RecordDTO {
	dtos := make([]RecordDTO, len(recs))
	for i, r := range recs {
		dtos[i] = toRecordDTO(r)
	}
	return dtos
}

// ReconcileRequest auto-marks approved leave for one day.
type ReconcileRequest struct {
	Date string `json:"date" validate:"required"`
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// decimalParser converts optional decimal strings from patch requests,
// remembering the first parse failure.
type decimalParser struct {
	err error
}

func (p *decimalParser) parse(s *string) *decimal.Decimal {
	if p.err != nil || s == nil {
		return nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		p.err = err
		return nil
	}
	return &d
}
