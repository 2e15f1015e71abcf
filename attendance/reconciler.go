package attendance

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/schoolcore/leave-engine/core"
)

// ApprovedLeave is the slice of an approved leave application the
// reconciler needs: who is away and under which category.
type ApprovedLeave struct {
	TeacherID int64
	Category  string
}

// ApprovedLeaveSource reports which teachers have approved leave covering
// a day. The leave workflow's committed state backs this in production.
type ApprovedLeaveSource interface {
	ApprovedLeaveOn(ctx context.Context, tenantID int64, day core.Date) ([]ApprovedLeave, error)
}

// Reconciler turns approved leave into "On Leave" attendance records for
// staff who have no entry that day. Manual entries are never overwritten,
// which also makes a repeat run for the same day create nothing new.
type Reconciler struct {
	store  Store
	ledger *Ledger
	source ApprovedLeaveSource
	log    *zap.Logger
}

func NewReconciler(store Store, ledger *Ledger, source ApprovedLeaveSource, log *zap.Logger) *Reconciler {
	return &Reconciler{store: store, ledger: ledger, source: source, log: log}
}

// AutoMarkFromApprovedLeave scans approved applications covering the day
// and creates an "On Leave" record for each teacher with no existing
// attendance entry. Returns the number of records created.
func (r *Reconciler) AutoMarkFromApprovedLeave(ctx context.Context, tenantID int64, day core.Date) (int, error) {
	leaves, err := r.source.ApprovedLeaveOn(ctx, tenantID, day)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, lv := range leaves {
		_, err := r.store.Record(ctx, lv.TeacherID, day)
		if err == nil {
			continue // existing entries win, manual or not
		}
		if !errors.Is(err, core.ErrNotFound) {
			return marked, err
		}

		_, err = r.ledger.Mark(ctx, tenantID, MarkRequest{
			TeacherID: lv.TeacherID,
			Date:      day,
			Status:    StatusOnLeave,
			Remarks:   fmt.Sprintf("Auto-marked: %s leave", lv.Category),
		}, 0)
		if err != nil {
			r.log.Error("auto-mark failed",
				zap.Int64("teacher_id", lv.TeacherID),
				zap.String("date", day.String()),
				zap.Error(err))
			continue
		}
		marked++
	}

	if marked > 0 {
		r.log.Info("auto-marked attendance from approved leave",
			zap.Int64("tenant_id", tenantID),
			zap.String("date", day.String()),
			zap.Int("marked", marked))
	}
	return marked, nil
}
