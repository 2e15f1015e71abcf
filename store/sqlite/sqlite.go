/*
Package sqlite persists the leave and attendance domains in SQLite.

The database is opened in WAL mode with a single pooled connection: SQLite
allows one writer at a time anyway, and a single connection also keeps
":memory:" databases coherent across the pool. Transactions additionally
serialize through an in-process mutex so that two concurrent workflow
operations touching the same balance row cannot interleave their
read-validate-write sequences.

Schema is managed with golang-migrate over embedded SQL migrations and runs
against the same connection handle, so in-memory test databases are
migrated too.
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/schoolcore/leave-engine/attendance"
	"github.com/schoolcore/leave-engine/core"
	"github.com/schoolcore/leave-engine/leave"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store owns the database handle and hands out domain-scoped views.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New opens (or creates) the database at path and applies pending
// migrations. Use ":memory:" for an in-memory database.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Single writer; also keeps :memory: databases on one connection.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// Leave returns the leave-domain view of the store.
func (s *Store) Leave() leave.TxStore { return &LeaveStore{s: s, q: s.db} }

// Attendance returns the attendance-domain view of the store.
func (s *Store) Attendance() attendance.TxStore { return &AttendanceStore{s: s, q: s.db} }

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn inside a transaction unless q already is one.
func (s *Store) withTx(ctx context.Context, q querier, fn func(tx *sql.Tx) error) error {
	if tx, ok := q.(*sql.Tx); ok {
		return fn(tx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Storagef("begin transaction", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return core.Storagef("commit transaction", err)
	}
	return nil
}

// =============================================================================
// STAFF ROSTER
// =============================================================================

// Teacher is the minimal roster row backing bulk balance initialization.
// Staff management proper lives outside the engine.
type Teacher struct {
	ID             int64
	TenantID       int64
	Name           string
	EmployeeStatus string
	CreatedAt      time.Time
}

// SaveTeacher inserts or updates a roster row.
func (s *Store) SaveTeacher(ctx context.Context, t Teacher) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO teachers (id, tenant_id, name, employee_status, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tenant_id = excluded.tenant_id,
			name = excluded.name,
			employee_status = excluded.employee_status`,
		t.ID, t.TenantID, t.Name, t.EmployeeStatus, now)
	if err != nil {
		return core.Storagef("save teacher", err)
	}
	return nil
}

// ActiveTeacherIDs implements leave.StaffDirectory.
func (s *Store) ActiveTeacherIDs(ctx context.Context, tenantID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM teachers
		WHERE tenant_id = ? AND employee_status = 'Active'
		ORDER BY id`, tenantID)
	if err != nil {
		return nil, core.Storagef("list active teachers", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, core.Storagef("scan teacher id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ApprovedLeaveOn implements attendance.ApprovedLeaveSource from the leave
// workflow's committed state.
func (s *Store) ApprovedLeaveOn(ctx context.Context, tenantID int64, day core.Date) ([]attendance.ApprovedLeave, error) {
	apps, err := s.Leave().ApprovedApplicationsOn(ctx, tenantID, day)
	if err != nil {
		return nil, err
	}
	out := make([]attendance.ApprovedLeave, 0, len(apps))
	for _, a := range apps {
		out = append(out, attendance.ApprovedLeave{
			TeacherID: a.TeacherID,
			Category:  string(a.Category),
		})
	}
	return out, nil
}
