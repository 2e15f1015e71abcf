package attendance

import (
	"context"
	"time"

	"github.com/schoolcore/leave-engine/core"
)

// Store is the persistence surface for attendance records. Single-row
// reads return an error wrapping core.ErrNotFound when no record exists.
type Store interface {
	// Record returns the record for (teacher, day).
	Record(ctx context.Context, teacherID int64, day core.Date) (*Record, error)
	// SaveRecord inserts or updates the record keyed by (teacher, day).
	SaveRecord(ctx context.Context, r *Record) error
	// MonthRecords lists a teacher's records for a month, chronologically.
	MonthRecords(ctx context.Context, teacherID int64, month time.Month, year int) ([]*Record, error)
	// RecordsForDate lists every record of a tenant for one day.
	RecordsForDate(ctx context.Context, tenantID int64, day core.Date) ([]*Record, error)
	// RecordsInRange lists a tenant's records in [from, to]; teacherID 0
	// means all teachers.
	RecordsInRange(ctx context.Context, tenantID int64, from, to core.Date, teacherID int64) ([]*Record, error)
}

// TxStore wraps Store with a transaction scope; see leave.TxStore for the
// rollback contract.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
