package leave

import (
	"context"

	"github.com/schoolcore/leave-engine/core"
)

// Store is the persistence surface for the leave domain. Single-row reads
// return an error wrapping core.ErrNotFound when the row does not exist.
type Store interface {
	// QuotaSettings returns the policy row for (tenant, academic year).
	QuotaSettings(ctx context.Context, tenantID int64, academicYear string) (*QuotaSettings, error)
	// SaveQuotaSettings inserts or updates the policy row.
	SaveQuotaSettings(ctx context.Context, s *QuotaSettings) error

	// Balance returns the ledger row for (teacher, academic year).
	Balance(ctx context.Context, teacherID int64, academicYear string) (*Balance, error)
	// SaveBalance inserts or updates a ledger row.
	SaveBalance(ctx context.Context, b *Balance) error
	// BalancesByTenant lists all ledger rows for a tenant and year.
	BalancesByTenant(ctx context.Context, tenantID int64, academicYear string) ([]*Balance, error)

	// Application returns one application by id.
	Application(ctx context.Context, id string) (*Application, error)
	// SaveApplication inserts or updates an application.
	SaveApplication(ctx context.Context, a *Application) error
	// ApplicationsByTeacher lists a teacher's applications, newest applied
	// first. Empty academicYear or status means "any".
	ApplicationsByTeacher(ctx context.Context, teacherID int64, academicYear string, status Status) ([]*Application, error)
	// ApplicationsByTenant lists a tenant's applications, newest applied
	// first. Empty status means "any".
	ApplicationsByTenant(ctx context.Context, tenantID int64, status Status) ([]*Application, error)
	// ApprovedApplicationsOn lists Approved applications whose span covers
	// the given day.
	ApprovedApplicationsOn(ctx context.Context, tenantID int64, day core.Date) ([]*Application, error)
}

// TxStore executes a read-validate-write sequence as one transaction.
// If fn returns an error, every write made through the transactional Store
// is rolled back. Concurrent mutations of the same balance or application
// rows are serialized by the storage layer.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}

// StaffDirectory supplies the active-teacher roster for bulk balance
// initialization. Staff management itself lives outside this engine.
type StaffDirectory interface {
	ActiveTeacherIDs(ctx context.Context, tenantID int64) ([]int64, error)
}
