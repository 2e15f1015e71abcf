package leave

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/schoolcore/leave-engine/core"
)

// QuotaService manages per-tenant leave policy. Settings rows are created
// lazily with defaults on first access.
type QuotaService struct {
	store TxStore
	clock core.Clock
	log   *zap.Logger
}

func NewQuotaService(store TxStore, clock core.Clock, log *zap.Logger) *QuotaService {
	return &QuotaService{store: store, clock: clock, log: log}
}

// GetOrCreate returns the tenant's quota settings for the academic year,
// creating and persisting the defaults if none exist. An empty academicYear
// resolves to the current one.
func (s *QuotaService) GetOrCreate(ctx context.Context, tenantID int64, academicYear string) (*QuotaSettings, error) {
	if academicYear == "" {
		academicYear = AcademicYearFor(s.clock.Today())
	}

	var out *QuotaSettings
	err := s.store.WithTx(ctx, func(tx Store) error {
		settings, err := getOrCreateQuota(ctx, tx, tenantID, academicYear)
		if err != nil {
			return err
		}
		out = settings
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// getOrCreateQuota is the shared lazy-create path, usable inside a caller's
// transaction.
func getOrCreateQuota(ctx context.Context, tx Store, tenantID int64, academicYear string) (*QuotaSettings, error) {
	settings, err := tx.QuotaSettings(ctx, tenantID, academicYear)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	settings = DefaultQuotaSettings(tenantID, academicYear)
	if err := tx.SaveQuotaSettings(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// QuotaPatch is an admin update to quota settings. Nil fields are left
// untouched.
type QuotaPatch struct {
	CLQuota        *decimal.Decimal
	SLQuota        *decimal.Decimal
	ELQuota        *decimal.Decimal
	MaternityQuota *decimal.Decimal
	PaternityQuota *decimal.Decimal

	AllowHalfDay       *bool
	AllowLOP           *bool
	DutyLeaveUnlimited *bool
	MaxContinuousDays  *int
	MinAdvanceDays     *int
	WeekendCounted     *bool
	IsActive           *bool
}

// Update applies an admin patch to the tenant's settings for the year,
// creating the row with defaults first if it does not exist yet.
func (s *QuotaService) Update(ctx context.Context, tenantID int64, academicYear string, patch QuotaPatch) (*QuotaSettings, error) {
	if academicYear == "" {
		academicYear = AcademicYearFor(s.clock.Today())
	}
	if err := patch.validate(); err != nil {
		return nil, err
	}

	var out *QuotaSettings
	err := s.store.WithTx(ctx, func(tx Store) error {
		settings, err := getOrCreateQuota(ctx, tx, tenantID, academicYear)
		if err != nil {
			return err
		}
		patch.apply(settings)
		if err := tx.SaveQuotaSettings(ctx, settings); err != nil {
			return err
		}
		out = settings
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("quota settings updated",
		zap.Int64("tenant_id", tenantID),
		zap.String("academic_year", academicYear))
	return out, nil
}

func (p QuotaPatch) validate() error {
	for name, q := range map[string]*decimal.Decimal{
		"cl_quota":        p.CLQuota,
		"sl_quota":        p.SLQuota,
		"el_quota":        p.ELQuota,
		"maternity_quota": p.MaternityQuota,
		"paternity_quota": p.PaternityQuota,
	} {
		if q != nil && q.IsNegative() {
			return core.Validationf("%s cannot be negative", name)
		}
	}
	if p.MaxContinuousDays != nil && *p.MaxContinuousDays < 1 {
		return core.Validationf("max_continuous_days must be at least 1")
	}
	if p.MinAdvanceDays != nil && *p.MinAdvanceDays < 0 {
		return core.Validationf("min_advance_days cannot be negative")
	}
	return nil
}

func (p QuotaPatch) apply(s *QuotaSettings) {
	if p.CLQuota != nil {
		s.CLQuota = *p.CLQuota
	}
	if p.SLQuota != nil {
		s.SLQuota = *p.SLQuota
	}
	if p.ELQuota != nil {
		s.ELQuota = *p.ELQuota
	}
	if p.MaternityQuota != nil {
		s.MaternityQuota = *p.MaternityQuota
	}
	if p.PaternityQuota != nil {
		s.PaternityQuota = *p.PaternityQuota
	}
	if p.AllowHalfDay != nil {
		s.AllowHalfDay = *p.AllowHalfDay
	}
	if p.AllowLOP != nil {
		s.AllowLOP = *p.AllowLOP
	}
	if p.DutyLeaveUnlimited != nil {
		s.DutyLeaveUnlimited = *p.DutyLeaveUnlimited
	}
	if p.MaxContinuousDays != nil {
		s.MaxContinuousDays = *p.MaxContinuousDays
	}
	if p.MinAdvanceDays != nil {
		s.MinAdvanceDays = *p.MinAdvanceDays
	}
	if p.WeekendCounted != nil {
		s.WeekendCounted = *p.WeekendCounted
	}
	if p.IsActive != nil {
		s.IsActive = *p.IsActive
	}
}
