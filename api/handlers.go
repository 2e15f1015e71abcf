/*
handlers.go - HTTP API handlers for the leave and attendance engine

PURPOSE:
  Exposes the leave accounting engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Quota settings:
    GET    /api/tenants/{tenantID}/quota-settings
    PUT    /api/tenants/{tenantID}/quota-settings

  Balances:
    GET    /api/tenants/{tenantID}/balances
    POST   /api/tenants/{tenantID}/balances/initialize
    GET    /api/tenants/{tenantID}/balances/{teacherID}
    PATCH  /api/tenants/{tenantID}/balances/{teacherID}

  Leave applications:
    POST   /api/tenants/{tenantID}/leave/applications
    GET    /api/tenants/{tenantID}/leave/applications
    GET    /api/teachers/{teacherID}/leave/applications
    GET    /api/leave/applications/{id}
    POST   /api/leave/applications/{id}/cancel
    POST   /api/leave/applications/{id}/approve
    POST   /api/leave/applications/{id}/reject

  Attendance:
    POST   /api/tenants/{tenantID}/attendance
    POST   /api/tenants/{tenantID}/attendance/bulk
    GET    /api/tenants/{tenantID}/attendance/day
    GET    /api/tenants/{tenantID}/attendance/summary
    POST   /api/tenants/{tenantID}/attendance/reconcile
    GET    /api/teachers/{teacherID}/attendance/records
    GET    /api/teachers/{teacherID}/attendance/monthly

ERROR HANDLING:
  Errors are returned as JSON with the status derived from the domain
  error taxonomy:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Application already settled
  - 422: Insufficient leave balance
  - 500: Storage and other internal errors

SECURITY NOTE:
  Authentication and tenant scoping are expected to run in front of this
  service; all endpoints here are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/schoolcore/leave-engine/attendance"
	"github.com/schoolcore/leave-engine/core"
	"github.com/schoolcore/leave-engine/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Quota      *leave.QuotaService
	Balances   *leave.BalanceLedger
	Workflow   *leave.Workflow
	Attendance *attendance.Ledger
	Reconciler *attendance.Reconciler
	Log        *zap.Logger

	validate *validator.Validate
}

// NewHandler creates a handler wired to the given services.
func NewHandler(quota *leave.QuotaService, balances *leave.BalanceLedger, workflow *leave.Workflow, att *attendance.Ledger, rec *attendance.Reconciler, log *zap.Logger) *Handler {
	return &Handler{
		Quota:      quota,
		Balances:   balances,
		Workflow:   workflow,
		Attendance: att,
		Reconciler: rec,
		Log:        log,
		validate:   validator.New(),
	}
}

// =============================================================================
// QUOTA SETTINGS HANDLERS
// =============================================================================

// GetQuotaSettings returns the tenant's policy, creating defaults when
// none exist yet for the academic year.
func (h *Handler) GetQuotaSettings(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := urlInt64(w, r, "tenantID")
	if !ok {
		return
	}

	settings, err := h.Quota.GetOrCreate(r.Context(), tenantID, r.URL.Query().Get("academic_year"))
	if err != nil {
		h.writeDomainError(w, "Failed to load quota settings", err)
		return
	}
	writeJSON(w, http.StatusOK, toQuotaSettingsDTO(settings))
}

// UpdateQuotaSettings patches the tenant's policy for the year.
func (h *Handler) UpdateQuotaSettings(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := urlInt64(w, r, "tenantID")
	if !ok {
		return
	}

	var req UpdateQuotaSettingsRequest
	if !h.decode(w, r, &req) {
		return
	}

	var p decimalParser
	patch := leave.QuotaPatch{
		CLQuota:            p.parse(req.CLQuota),
		SLQuota:            p.parse(req.SLQuota),
		ELQuota:            p.parse(req.ELQuota),
		MaternityQuota:     p.parse(req.MaternityQuota),
		PaternityQuota:     p.parse(req.PaternityQuota),
		AllowHalfDay:       req.AllowHalfDay,
		AllowLOP:           req.AllowLOP,
		DutyLeaveUnlimited: req.DutyLeaveUnlimited,
		MaxContinuousDays:  req.MaxContinuousDays,
		MinAdvanceDays:     req.MinAdvanceDays,
		WeekendCounted:     req.WeekendCounted,
		IsActive:           req.IsActive,
	}
	if p.err != nil {
		writeError(w, http.StatusBadRequest, "Invalid quota amount", p.err)
		return
	}

	settings, err := h.Quota.Update(r.Context(), tenantID, r.URL.Query().Get("academic_year"), patch)
	if err != nil {
		h.writeDomainError(w, "Failed to update quota settings", err)
		return
	}
	writeJSON(w, http.StatusOK, toQuotaSettingsDTO(settings))
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// ListBalances returns every teacher's ledger row for the tenant.
func (h *Handler) ListBalances(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := urlInt64(w, r, "tenantID")
	if !ok {
		return
	}

	balances, err := h.Balances.GetAll(r.Context(), tenantID, r.URL.Query().Get("academic_year"))
	if err != nil {
		h.writeDomainError(w, "Failed to list balances", err)
		return
	}

	dtos := make([]BalanceDTO, len(balances))
	for i, b := range balances {
		dtos[i] = toBalanceDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// InitializeBalances creates (or with force_reset, re-seeds) ledger rows
// for every active teacher of the tenant.
func (h *Handler) InitializeBalances(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := urlInt64(w, r, "tenantID")
	if !ok {
		return
	}

	var req InitializeBalancesRequest
	if !h.decode(w, r, &req) {
		return
	}

	stats, err := h.Balances.InitializeAll(r.Context(), tenantID, req.AcademicYear, req.ForceReset)
	if err != nil {
		h.writeDomainError(w, "Failed to initialize balances", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetBalance returns one teacher's ledger row.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := urlInt64(w, r, "teacherID")
	if !ok {
		return
	}

	balance, err := h.Balances.Get(r.Context(), teacherID, r.URL.Query().Get("academic_year"))
	if err != nil {
		h.writeDomainError(w, "Failed to load balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(balance))
}

// UpdateBalance applies an admin patch to a teacher's totals.
func (h *Handler) UpdateBalance(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := urlInt64(w, r, "teacherID")
	if !ok {
		return
	}

	var req UpdateBalanceRequest
	if !h.decode(w, r, &req) {
		return
	}

	var p decimalParser
	patch := leave.BalancePatch{
		CLTotal:          p.parse(req.CLTotal),
		SLTotal:          p.parse(req.SLTotal),
		ELTotal:          p.parse(req.ELTotal),
		MaternityTotal:   p.parse(req.MaternityTotal),
		PaternityTotal:   p.parse(req.PaternityTotal),
		ELCarriedForward: p.parse(req.ELCarriedForward),
		Notes:            req.Notes,
	}
	if p.err != nil {
		writeError(w, http.StatusBadRequest, "Invalid balance amount", p.err)
		return
	}

	balance, err := h.Balances.Update(r.Context(), teacherID, r.URL.Query().Get("academic_year"), patch)
	if err != nil {
		h.writeDomainError(w, "Failed to update balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(balance))
}

// =============================================================================
// LEAVE APPLICATION HANDLERS
// =============================================================================

// SubmitApplication creates a pending leave application and reserves the
// days against the teacher's balance.
func (h *Handler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := urlInt64(w, r, "tenantID")
	if !ok {
		return
	}

	var req SubmitLeaveRequest
	if !h.decode(w, r, &req) {
		return
	}

	startDate, err := core.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date", err)
		return
	}
	endDate, err := core.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date", err)
		return
	}

	app, err := h.Workflow.Submit(r.Context(), req.TeacherID, tenantID, leave.SubmitRequest{
		Category:           leave.Category(req.Category),
		StartDate:          startDate,
		EndDate:            endDate,
		IsHalfDay:          req.IsHalfDay,
		HalfDayPeriod:      leave.HalfDayPeriod(req.HalfDayPeriod),
		Reason:             req.Reason,
		ContactDuringLeave: req.ContactDuringLeave,
		AddressDuringLeave: req.AddressDuringLeave,
	}, req.AcademicYear)
	if err != nil {
		h.writeDomainError(w, "Failed to submit application", err)
		return
	}
	writeJSON(w, http.StatusCreated, toApplicationDTO(app))
}

// GetApplication returns a single application.
func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.Workflow.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to load application", err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationDTO(app))
}

// ListTenantApplications lists a tenant's applications, optionally by
// status, newest first.
func (h *Handler) ListTenantApplications(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := urlInt64(w, r, "tenantID")
	if !ok {
		return
	}

	apps, err := h.Workflow.ListByTenant(r.Context(), tenantID, leave.Status(r.URL.Query().Get("status")))
	if err != nil {
		h.writeDomainError(w, "Failed to list applications", err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationDTOs(apps))
}

// ListTeacherApplications lists one teacher's applications, newest first.
func (h *Handler) ListTeacherApplications(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := urlInt64(w, r, "teacherID")
	if !ok {
		return
	}

	q := r.URL.Query()
	apps, err := h.Workflow.ListByTeacher(r.Context(), teacherID, q.Get("academic_year"), leave.Status(q.Get("status")))
	if err != nil {
		h.writeDomainError(w, "Failed to list applications", err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationDTOs(apps))
}

// CancelApplication lets the owner withdraw a pending application.
func (h *Handler) CancelApplication(w http.ResponseWriter, r *http.Request) {
	var req CancelLeaveRequest
	if !h.decode(w, r, &req) {
		return
	}

	app, err := h.Workflow.Cancel(r.Context(), chi.URLParam(r, "id"), req.TeacherID)
	if err != nil {
		h.writeDomainError(w, "Failed to cancel application", err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationDTO(app))
}

// ApproveApplication settles a pending application as approved and moves
// the reserved days from pending to taken.
func (h *Handler) ApproveApplication(w http.ResponseWriter, r *http.Request) {
	var req ApproveLeaveRequest
	if !h.decode(w, r, &req) {
		return
	}

	app, err := h.Workflow.Approve(r.Context(), chi.URLParam(r, "id"), req.ApproverID, req.AdminNotes)
	if err != nil {
		h.writeDomainError(w, "Failed to approve application", err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationDTO(app))
}

// RejectApplication settles a pending application as rejected and releases
// the reserved days.
func (h *Handler) RejectApplication(w http.ResponseWriter, r *http.Request) {
	var req RejectLeaveRequest
	if !h.decode(w, r, &req) {
		return
	}

	app, err := h.Workflow.Reject(r.Context(), chi.URLParam(r, "id"), req.ApproverID, req.Reason)
	if err != nil {
		h.writeDomainError(w, "Failed to reject application", err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationDTO(app))
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// MarkAttendance records one teacher's attendance for a day. Marking the
// same day again updates the existing record in place.
func (h *Handler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := urlInt64(w, r, "tenantID")
	if !ok {
		return
	}

	var req MarkAttendanceRequest
	if !h.decode(w, r, &req) {
		return
	}

	markReq, err := toMarkRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid attendance entry", err)
		return
	}

	rec, err := h.Attendance.Mark(r.Context(), tenantID, markReq, req.MarkedBy)
	if err != nil {
		h.writeDomainError(w, "Failed to mark attendance", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(rec))
}

// BulkMarkAttendance marks many teachers in one request; entries fail
// independently.
func (h *Handler) BulkMarkAttendance(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := urlInt64(w, r, "tenantID")
	if !ok {
		return
	}

	var req BulkMarkAttendanceRequest
	if !h.decode(w, r, &req) {
		return
	}

	reqs := make([]attendance.MarkRequest, 0, len(req.Records))
	var bulkErrs []attendance.BulkError
	for _, entry := range req.Records {
		markReq, err := toMarkRequest(entry)
		if err != nil {
			day, _ := core.ParseDate(entry.Date)
			bulkErrs = append(bulkErrs, attendance.BulkError{
				TeacherID: entry.TeacherID,
				Date:      day,
				Message:   err.Error(),
			})
			continue
		}
		reqs = append(reqs, markReq)
	}

	count, markErrs := h.Attendance.BulkMark(r.Context(), tenantID, reqs, req.MarkedBy)
	bulkErrs = append(bulkErrs, markErrs...)

	writeJSON(w, http.StatusOK, BulkMarkResponse{
		SuccessCount: count,
		ErrorCount:   len(bulkErrs),
		Errors:       bulkErrs,
	})
}

// GetDayAttendance returns the tenant's records for one day keyed by
// teacher id.
func (h *Handler) GetDayAttendance(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := urlInt64(w, r, "tenantID")
	if !ok {
		return
	}

	day, err := core.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	records, err := h.Attendance.DayMap(r.Context(), tenantID, day)
	if err != nil {
		h.writeDomainError(w, "Failed to load attendance", err)
		return
	}

	dtos := make(map[string]RecordDTO, len(records))
	for teacherID, rec := range records {
		dtos[strconv.FormatInt(teacherID, 10)] = toRecordDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetMonthRecords returns one teacher's records for a month.
func (h *Handler) GetMonthRecords(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := urlInt64(w, r, "teacherID")
	if !ok {
		return
	}

	month, year, err := monthYearParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month/year", err)
		return
	}

	records, err := h.Attendance.MonthRecords(r.Context(), teacherID, month, year)
	if err != nil {
		h.writeDomainError(w, "Failed to load attendance records", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTOs(records))
}

// GetMonthlyStats aggregates one teacher's month.
func (h *Handler) GetMonthlyStats(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := urlInt64(w, r, "teacherID")
	if !ok {
		return
	}

	month, year, err := monthYearParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month/year", err)
		return
	}

	stats, err := h.Attendance.MonthlyStats(r.Context(), teacherID, month, year)
	if err != nil {
		h.writeDomainError(w, "Failed to compute monthly stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetRangeSummary aggregates a tenant-wide date span, optionally for one
// teacher.
func (h *Handler) GetRangeSummary(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := urlInt64(w, r, "tenantID")
	if !ok {
		return
	}

	q := r.URL.Query()
	from, err := core.ParseDate(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date", err)
		return
	}
	to, err := core.ParseDate(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date", err)
		return
	}
	var teacherID int64
	if s := q.Get("teacher_id"); s != "" {
		if teacherID, err = strconv.ParseInt(s, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid teacher_id", err)
			return
		}
	}

	summary, err := h.Attendance.RangeSummary(r.Context(), tenantID, from, to, teacherID)
	if err != nil {
		h.writeDomainError(w, "Failed to compute summary", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ReconcileAttendance auto-marks "On Leave" for teachers with approved
// leave covering the day. Existing records are never overwritten, so the
// call is idempotent.
func (h *Handler) ReconcileAttendance(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := urlInt64(w, r, "tenantID")
	if !ok {
		return
	}

	var req ReconcileRequest
	if !h.decode(w, r, &req) {
		return
	}

	day, err := core.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	marked, err := h.Reconciler.AutoMarkFromApprovedLeave(r.Context(), tenantID, day)
	if err != nil {
		h.writeDomainError(w, "Failed to reconcile attendance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":         day.String(),
		"marked_count": marked,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func toMarkRequest(req MarkAttendanceRequest) (attendance.MarkRequest, error) {
	day, err := core.ParseDate(req.Date)
	if err != nil {
		return attendance.MarkRequest{}, err
	}
	out := attendance.MarkRequest{
		TeacherID: req.TeacherID,
		Date:      day,
		Status:    attendance.Status(req.Status),
		Remarks:   req.Remarks,
	}
	if req.CheckIn != "" {
		t, err := attendance.ParseTimeOfDay(req.CheckIn)
		if err != nil {
			return attendance.MarkRequest{}, err
		}
		out.CheckIn = &t
	}
	if req.CheckOut != "" {
		t, err := attendance.ParseTimeOfDay(req.CheckOut)
		if err != nil {
			return attendance.MarkRequest{}, err
		}
		out.CheckOut = &t
	}
	return out, nil
}

// decode parses and validates a JSON request body. Writes the error
// response itself and returns false when the body is unusable.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func urlInt64(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+param, err)
		return 0, false
	}
	return v, true
}

func monthYearParams(r *http.Request) (time.Month, int, error) {
	q := r.URL.Query()
	m, err := strconv.Atoi(q.Get("month"))
	if err != nil || m < 1 || m > 12 {
		return 0, 0, errors.New("month must be 1-12")
	}
	y, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		return 0, 0, errors.New("year must be a number")
	}
	return time.Month(m), y, nil
}

// writeDomainError maps the domain error taxonomy onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrInsufficientBalance):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrValidation):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.Log.Error(message, zap.Error(err))
	}
	writeError(w, status, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
