/*
workflow.go - the leave application state machine

States: Pending -> {Approved, Rejected, Cancelled}; everything but Pending
is terminal. Each transition mutates the application status and the balance
counters as one transaction:

  submit   quota categories: pending += total_days
  cancel   quota categories: pending -= total_days
  approve  quota categories: pending -= total_days, taken += total_days
           LOP -> lop_taken += total_days, Duty Leave -> duty_leave_taken
  reject   same ledger effect as cancel, plus mandatory reason

LOP and Duty Leave have no quota: submit and cancel never touch the ledger
for them, and their consumption is recorded only on approval.

Everything runs inside TxStore.WithTx. The balance row is re-read within
the transaction, so two concurrent submits for the same teacher cannot both
pass the balance check and commit: the storage layer serializes them and
the second sees the first's pending reservation.
*/
package leave

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schoolcore/leave-engine/core"
)

// Workflow drives leave applications through their lifecycle.
type Workflow struct {
	store TxStore
	clock core.Clock
	log   *zap.Logger
}

func NewWorkflow(store TxStore, clock core.Clock, log *zap.Logger) *Workflow {
	return &Workflow{store: store, clock: clock, log: log}
}

// SubmitRequest is the teacher-facing input for a new application.
type SubmitRequest struct {
	Category      Category
	StartDate     core.Date
	EndDate       core.Date
	IsHalfDay     bool
	HalfDayPeriod HalfDayPeriod
	Reason        string

	ContactDuringLeave string
	AddressDuringLeave string
}

// Submit validates a request against tenant policy and the teacher's
// balance, persists it as Pending, and reserves the days in the matching
// pending counter. The application row and the ledger mutation commit as
// one unit; any failure rolls back both.
func (w *Workflow) Submit(ctx context.Context, teacherID, tenantID int64, req SubmitRequest, academicYear string) (*Application, error) {
	if academicYear == "" {
		academicYear = AcademicYearFor(w.clock.Today())
	}
	if !req.Category.Valid() {
		return nil, core.Validationf("unknown leave category %q", req.Category)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, core.Validationf("reason is required")
	}
	if req.IsHalfDay && !req.HalfDayPeriod.Valid() {
		return nil, core.Validationf("half-day leave requires a valid half_day_period")
	}

	today := w.clock.Today()
	now := w.clock.Now()

	var out *Application
	err := w.store.WithTx(ctx, func(tx Store) error {
		quota, err := getOrCreateQuota(ctx, tx, tenantID, academicYear)
		if err != nil {
			return err
		}

		if err := validateDates(req, today, quota.MinAdvanceDays); err != nil {
			return err
		}
		if req.IsHalfDay && !quota.AllowHalfDay {
			return core.Validationf("half-day leave is not allowed")
		}
		if req.Category == CategoryLOP && !quota.AllowLOP {
			return core.Validationf("loss-of-pay leave is not allowed")
		}

		totalDays, err := CountLeaveDays(req.StartDate, req.EndDate, req.IsHalfDay, quota.WeekendCounted)
		if err != nil {
			return err
		}
		if totalDays.IsZero() {
			return core.Validationf("the requested span contains no working days")
		}
		if totalDays.GreaterThan(decimalFromInt(quota.MaxContinuousDays)) {
			return core.Validationf("maximum %d continuous days allowed", quota.MaxContinuousDays)
		}

		app := &Application{
			ID:                 uuid.NewString(),
			TenantID:           tenantID,
			TeacherID:          teacherID,
			Category:           req.Category,
			StartDate:          req.StartDate,
			EndDate:            req.EndDate,
			IsHalfDay:          req.IsHalfDay,
			TotalDays:          totalDays,
			Reason:             req.Reason,
			ContactDuringLeave: req.ContactDuringLeave,
			AddressDuringLeave: req.AddressDuringLeave,
			Status:             StatusPending,
			AppliedAt:          now,
			AcademicYear:       academicYear,
		}
		if req.IsHalfDay {
			app.HalfDayPeriod = req.HalfDayPeriod
		}

		if req.Category.HasQuota() {
			balance, err := tx.Balance(ctx, teacherID, academicYear)
			if errors.Is(err, core.ErrNotFound) {
				return core.Validationf("leave balance not initialized, contact admin")
			}
			if err != nil {
				return err
			}
			available, _ := balance.Available(req.Category)
			if available.LessThan(totalDays) {
				return &core.InsufficientBalanceError{
					Category:  string(req.Category),
					Available: available,
					Requested: totalDays,
				}
			}

			bucket, _ := balance.Bucket(req.Category)
			bucket.Pending = bucket.Pending.Add(totalDays)

			if err := tx.SaveApplication(ctx, app); err != nil {
				return err
			}
			if err := tx.SaveBalance(ctx, balance); err != nil {
				return err
			}
		} else if err := tx.SaveApplication(ctx, app); err != nil {
			return err
		}

		out = app
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.log.Info("leave application submitted",
		zap.String("application_id", out.ID),
		zap.Int64("teacher_id", teacherID),
		zap.String("category", string(out.Category)),
		zap.String("total_days", out.TotalDays.String()))
	return out, nil
}

func validateDates(req SubmitRequest, today core.Date, minAdvanceDays int) error {
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return core.Validationf("start and end dates are required")
	}
	if req.StartDate.Before(today) {
		return core.Validationf("leave cannot be applied for past dates")
	}
	if today.DaysUntil(req.StartDate) < minAdvanceDays {
		return core.Validationf("minimum %d day(s) advance notice required", minAdvanceDays)
	}
	if req.EndDate.Before(req.StartDate) {
		return core.Validationf("end date cannot be before start date")
	}
	if req.IsHalfDay && !req.StartDate.Equal(req.EndDate) {
		return core.Validationf("half-day leave must have same start and end date")
	}
	return nil
}

// Cancel withdraws a Pending application. Only the owning teacher may
// cancel, and the reserved days return to the pending counter.
func (w *Workflow) Cancel(ctx context.Context, applicationID string, teacherID int64) (*Application, error) {
	var out *Application
	err := w.store.WithTx(ctx, func(tx Store) error {
		app, err := tx.Application(ctx, applicationID)
		if err != nil {
			return err
		}
		if app.TeacherID != teacherID {
			// Ownership failures look identical to missing rows.
			return core.ErrNotFound
		}
		if app.Status != StatusPending {
			return &core.InvalidStateError{ApplicationID: app.ID, Status: string(app.Status)}
		}

		app.Status = StatusCancelled
		if err := tx.SaveApplication(ctx, app); err != nil {
			return err
		}
		if err := releasePending(ctx, tx, app); err != nil {
			return err
		}
		out = app
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.log.Info("leave application cancelled",
		zap.String("application_id", applicationID),
		zap.Int64("teacher_id", teacherID))
	return out, nil
}

// Approve settles a Pending application. Quota categories move total_days
// from pending to taken; LOP and Duty Leave accrue on their own counters.
func (w *Workflow) Approve(ctx context.Context, applicationID string, approverID int64, notes string) (*Application, error) {
	var out *Application
	err := w.store.WithTx(ctx, func(tx Store) error {
		app, err := tx.Application(ctx, applicationID)
		if err != nil {
			return err
		}
		if app.Status != StatusPending {
			return &core.InvalidStateError{ApplicationID: app.ID, Status: string(app.Status)}
		}

		app.Status = StatusApproved
		app.ApprovedBy = approverID
		app.ApprovedAt = w.clock.Now()
		app.AdminNotes = notes
		if err := tx.SaveApplication(ctx, app); err != nil {
			return err
		}

		balance, err := tx.Balance(ctx, app.TeacherID, app.AcademicYear)
		if errors.Is(err, core.ErrNotFound) && !app.Category.HasQuota() {
			// LOP and Duty Leave never reserved anything at submit, so an
			// uninitialized ledger has nothing to settle.
			out = app
			return nil
		}
		if err != nil {
			return err
		}
		switch app.Category {
		case CategoryLOP:
			balance.LOPTaken = balance.LOPTaken.Add(app.TotalDays)
		case CategoryDutyLeave:
			balance.DutyLeaveTaken = balance.DutyLeaveTaken.Add(app.TotalDays)
		default:
			bucket, _ := balance.Bucket(app.Category)
			bucket.Pending = bucket.Pending.Sub(app.TotalDays)
			bucket.Taken = bucket.Taken.Add(app.TotalDays)
		}
		if err := tx.SaveBalance(ctx, balance); err != nil {
			return err
		}

		out = app
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.log.Info("leave application approved",
		zap.String("application_id", applicationID),
		zap.Int64("approver_id", approverID))
	return out, nil
}

// Reject settles a Pending application with a mandatory reason and returns
// the reserved days to the pending counter.
func (w *Workflow) Reject(ctx context.Context, applicationID string, approverID int64, reason string) (*Application, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, core.Validationf("rejection reason is required")
	}

	var out *Application
	err := w.store.WithTx(ctx, func(tx Store) error {
		app, err := tx.Application(ctx, applicationID)
		if err != nil {
			return err
		}
		if app.Status != StatusPending {
			return &core.InvalidStateError{ApplicationID: app.ID, Status: string(app.Status)}
		}

		app.Status = StatusRejected
		app.ApprovedBy = approverID
		app.ApprovedAt = w.clock.Now()
		app.RejectionReason = reason
		if err := tx.SaveApplication(ctx, app); err != nil {
			return err
		}
		if err := releasePending(ctx, tx, app); err != nil {
			return err
		}
		out = app
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.log.Info("leave application rejected",
		zap.String("application_id", applicationID),
		zap.Int64("approver_id", approverID))
	return out, nil
}

// releasePending gives an application's reserved days back to its pending
// counter. LOP and Duty Leave never reserved anything.
func releasePending(ctx context.Context, tx Store, app *Application) error {
	if !app.Category.HasQuota() {
		return nil
	}
	balance, err := tx.Balance(ctx, app.TeacherID, app.AcademicYear)
	if err != nil {
		return err
	}
	bucket, _ := balance.Bucket(app.Category)
	bucket.Pending = bucket.Pending.Sub(app.TotalDays)
	return tx.SaveBalance(ctx, balance)
}

// Get returns one application by id.
func (w *Workflow) Get(ctx context.Context, applicationID string) (*Application, error) {
	return w.store.Application(ctx, applicationID)
}

// ListByTeacher returns a teacher's applications, optionally filtered.
func (w *Workflow) ListByTeacher(ctx context.Context, teacherID int64, academicYear string, status Status) ([]*Application, error) {
	return w.store.ApplicationsByTeacher(ctx, teacherID, academicYear, status)
}

// ListByTenant returns a tenant's applications, optionally filtered by
// status. With StatusPending this is the approver queue.
func (w *Workflow) ListByTenant(ctx context.Context, tenantID int64, status Status) ([]*Application, error) {
	return w.store.ApplicationsByTenant(ctx, tenantID, status)
}
