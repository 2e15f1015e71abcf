/*
ledger.go - the teacher balance ledger

A Balance row carries total/taken/pending counters per quota category; the
usable balance is derived on read and never stored. The ledger owns row
creation (single and bulk) and the admin patch path; the workflow in
workflow.go is the only other writer, and it always mutates rows inside one
transaction together with the application status change.
*/
package leave

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/schoolcore/leave-engine/core"
)

// BalanceLedger manages teacher leave balance rows.
type BalanceLedger struct {
	store TxStore
	staff StaffDirectory
	clock core.Clock
	log   *zap.Logger
}

func NewBalanceLedger(store TxStore, staff StaffDirectory, clock core.Clock, log *zap.Logger) *BalanceLedger {
	return &BalanceLedger{store: store, staff: staff, clock: clock, log: log}
}

// InitializeOne creates a zero-taken/zero-pending balance seeded from the
// quota totals. If a row already exists it is returned unchanged; an
// existing row is a no-op, not an error.
func (l *BalanceLedger) InitializeOne(ctx context.Context, teacherID, tenantID int64, quota *QuotaSettings, academicYear string) (*Balance, error) {
	if academicYear == "" {
		academicYear = AcademicYearFor(l.clock.Today())
	}

	var out *Balance
	err := l.store.WithTx(ctx, func(tx Store) error {
		existing, err := tx.Balance(ctx, teacherID, academicYear)
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return err
		}

		b := newBalanceFromQuota(teacherID, tenantID, academicYear, quota, l.clock.Today())
		if err := tx.SaveBalance(ctx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func newBalanceFromQuota(teacherID, tenantID int64, academicYear string, quota *QuotaSettings, today core.Date) *Balance {
	return &Balance{
		TeacherID:     teacherID,
		TenantID:      tenantID,
		AcademicYear:  academicYear,
		CL:            CategoryBucket{Total: quota.CLQuota},
		SL:            CategoryBucket{Total: quota.SLQuota},
		EL:            CategoryBucket{Total: quota.ELQuota},
		Maternity:     CategoryBucket{Total: quota.MaternityQuota},
		Paternity:     CategoryBucket{Total: quota.PaternityQuota},
		LastResetDate: today,
	}
}

// InitStats reports the outcome of a bulk initialization run.
type InitStats struct {
	TotalTeachers int `json:"total_teachers"`
	Initialized   int `json:"initialized"`
	AlreadyExists int `json:"already_exists"`
	Reset         int `json:"reset"`
	Errors        int `json:"errors"`
}

// InitializeAll creates balances for every active teacher of the tenant.
// With forceReset, existing rows get their five totals overwritten from the
// current quota while taken/pending are preserved, and the reset date is
// stamped. Per-teacher failures are counted and skipped; the batch commits
// once at the end.
func (l *BalanceLedger) InitializeAll(ctx context.Context, tenantID int64, academicYear string, forceReset bool) (*InitStats, error) {
	if academicYear == "" {
		academicYear = AcademicYearFor(l.clock.Today())
	}

	teacherIDs, err := l.staff.ActiveTeacherIDs(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	stats := &InitStats{TotalTeachers: len(teacherIDs)}
	today := l.clock.Today()

	err = l.store.WithTx(ctx, func(tx Store) error {
		quota, err := getOrCreateQuota(ctx, tx, tenantID, academicYear)
		if err != nil {
			return err
		}

		for _, teacherID := range teacherIDs {
			existing, err := tx.Balance(ctx, teacherID, academicYear)
			switch {
			case err == nil:
				if !forceReset {
					stats.AlreadyExists++
					continue
				}
				existing.CL.Total = quota.CLQuota
				existing.SL.Total = quota.SLQuota
				existing.EL.Total = quota.ELQuota
				existing.Maternity.Total = quota.MaternityQuota
				existing.Paternity.Total = quota.PaternityQuota
				existing.LastResetDate = today
				if err := tx.SaveBalance(ctx, existing); err != nil {
					l.log.Error("balance reset failed",
						zap.Int64("teacher_id", teacherID), zap.Error(err))
					stats.Errors++
					continue
				}
				stats.Reset++

			case errors.Is(err, core.ErrNotFound):
				b := newBalanceFromQuota(teacherID, tenantID, academicYear, quota, today)
				if err := tx.SaveBalance(ctx, b); err != nil {
					l.log.Error("balance initialization failed",
						zap.Int64("teacher_id", teacherID), zap.Error(err))
					stats.Errors++
					continue
				}
				stats.Initialized++

			default:
				l.log.Error("balance lookup failed",
					zap.Int64("teacher_id", teacherID), zap.Error(err))
				stats.Errors++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("balance initialization complete",
		zap.Int64("tenant_id", tenantID),
		zap.String("academic_year", academicYear),
		zap.Int("initialized", stats.Initialized),
		zap.Int("reset", stats.Reset),
		zap.Int("already_exists", stats.AlreadyExists),
		zap.Int("errors", stats.Errors))
	return stats, nil
}

// BalancePatch is an admin adjustment to a balance row. Only totals, the
// EL carry-forward and notes may be patched; taken/pending belong to the
// workflow alone.
type BalancePatch struct {
	CLTotal          *decimal.Decimal
	SLTotal          *decimal.Decimal
	ELTotal          *decimal.Decimal
	MaternityTotal   *decimal.Decimal
	PaternityTotal   *decimal.Decimal
	ELCarriedForward *decimal.Decimal
	Notes            *string
}

// Update applies an admin patch. Fails with core.ErrNotFound when no
// balance row exists for (teacher, academic year).
func (l *BalanceLedger) Update(ctx context.Context, teacherID int64, academicYear string, patch BalancePatch) (*Balance, error) {
	if academicYear == "" {
		academicYear = AcademicYearFor(l.clock.Today())
	}
	for name, v := range map[string]*decimal.Decimal{
		"cl_total":           patch.CLTotal,
		"sl_total":           patch.SLTotal,
		"el_total":           patch.ELTotal,
		"maternity_total":    patch.MaternityTotal,
		"paternity_total":    patch.PaternityTotal,
		"el_carried_forward": patch.ELCarriedForward,
	} {
		if v != nil && v.IsNegative() {
			return nil, core.Validationf("%s cannot be negative", name)
		}
	}

	var out *Balance
	err := l.store.WithTx(ctx, func(tx Store) error {
		b, err := tx.Balance(ctx, teacherID, academicYear)
		if err != nil {
			return err
		}
		if patch.CLTotal != nil {
			b.CL.Total = *patch.CLTotal
		}
		if patch.SLTotal != nil {
			b.SL.Total = *patch.SLTotal
		}
		if patch.ELTotal != nil {
			b.EL.Total = *patch.ELTotal
		}
		if patch.MaternityTotal != nil {
			b.Maternity.Total = *patch.MaternityTotal
		}
		if patch.PaternityTotal != nil {
			b.Paternity.Total = *patch.PaternityTotal
		}
		if patch.ELCarriedForward != nil {
			b.ELCarriedForward = *patch.ELCarriedForward
		}
		if patch.Notes != nil {
			b.Notes = *patch.Notes
		}
		if err := tx.SaveBalance(ctx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("balance updated by admin",
		zap.Int64("teacher_id", teacherID),
		zap.String("academic_year", academicYear))
	return out, nil
}

// Get returns a teacher's balance row. Empty academicYear resolves to the
// current one. Missing rows report core.ErrNotFound.
func (l *BalanceLedger) Get(ctx context.Context, teacherID int64, academicYear string) (*Balance, error) {
	if academicYear == "" {
		academicYear = AcademicYearFor(l.clock.Today())
	}
	return l.store.Balance(ctx, teacherID, academicYear)
}

// GetAll lists every balance row for a tenant and year.
func (l *BalanceLedger) GetAll(ctx context.Context, tenantID int64, academicYear string) ([]*Balance, error) {
	if academicYear == "" {
		academicYear = AcademicYearFor(l.clock.Today())
	}
	return l.store.BalancesByTenant(ctx, tenantID, academicYear)
}
