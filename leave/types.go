/*
Package leave implements the leave accounting core: per-category quota
settings, the teacher balance ledger with its three-way accounting
(total / taken / pending, balance derived on read), and the application
workflow that moves days between those counters.

All counter arithmetic uses decimal.Decimal. Balances are never stored;
they are always computed as total - taken - pending so the ledger cannot
drift out of sync with itself.
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/schoolcore/leave-engine/core"
)

// Category is a leave category as it appears on an application.
type Category string

const (
	CategoryCL        Category = "CL"
	CategorySL        Category = "SL"
	CategoryEL        Category = "EL"
	CategoryHalfDay   Category = "Half-day"
	CategoryLOP       Category = "LOP"
	CategoryDutyLeave Category = "Duty Leave"
	CategoryMaternity Category = "Maternity"
	CategoryPaternity Category = "Paternity"
)

var allCategories = map[Category]bool{
	CategoryCL: true, CategorySL: true, CategoryEL: true,
	CategoryHalfDay: true, CategoryLOP: true, CategoryDutyLeave: true,
	CategoryMaternity: true, CategoryPaternity: true,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool { return allCategories[c] }

// HasQuota reports whether the category draws on a quota bucket.
// LOP and Duty Leave have no ceiling and never touch pending/total.
func (c Category) HasQuota() bool {
	return c != CategoryLOP && c != CategoryDutyLeave
}

// Status is the lifecycle state of a leave application.
// Pending moves to exactly one of the other three; all are terminal.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusApproved  Status = "Approved"
	StatusRejected  Status = "Rejected"
	StatusCancelled Status = "Cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// HalfDayPeriod says which half of the day a half-day leave covers.
type HalfDayPeriod string

const (
	FirstHalf  HalfDayPeriod = "First Half"
	SecondHalf HalfDayPeriod = "Second Half"
)

func (p HalfDayPeriod) Valid() bool { return p == FirstHalf || p == SecondHalf }

// QuotaSettings is the per-tenant, per-academic-year leave policy.
type QuotaSettings struct {
	TenantID     int64
	AcademicYear string

	CLQuota        decimal.Decimal
	SLQuota        decimal.Decimal
	ELQuota        decimal.Decimal
	MaternityQuota decimal.Decimal
	PaternityQuota decimal.Decimal

	AllowHalfDay       bool
	AllowLOP           bool
	DutyLeaveUnlimited bool
	MaxContinuousDays  int
	MinAdvanceDays     int
	WeekendCounted     bool

	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultQuotaSettings builds the fixed defaults used when a tenant has no
// explicit policy for the year: CL 12, SL 12, EL 15, Maternity 180,
// Paternity 15, max 30 continuous days, 1 day advance notice.
func DefaultQuotaSettings(tenantID int64, academicYear string) *QuotaSettings {
	return &QuotaSettings{
		TenantID:           tenantID,
		AcademicYear:       academicYear,
		CLQuota:            decimal.NewFromInt(12),
		SLQuota:            decimal.NewFromInt(12),
		ELQuota:            decimal.NewFromInt(15),
		MaternityQuota:     decimal.NewFromInt(180),
		PaternityQuota:     decimal.NewFromInt(15),
		AllowHalfDay:       true,
		AllowLOP:           true,
		DutyLeaveUnlimited: true,
		MaxContinuousDays:  30,
		MinAdvanceDays:     1,
		WeekendCounted:     false,
		IsActive:           true,
	}
}

// CategoryBucket is one quota category's counters on a balance row.
type CategoryBucket struct {
	Total   decimal.Decimal
	Taken   decimal.Decimal
	Pending decimal.Decimal
}

// Balance is the derived available amount: total - taken - pending.
// Never stored; always computed on read.
func (b CategoryBucket) Balance() decimal.Decimal {
	return b.Total.Sub(b.Taken).Sub(b.Pending)
}

// Balance is a teacher's leave ledger row for one academic year.
type Balance struct {
	TeacherID    int64
	TenantID     int64
	AcademicYear string

	CL        CategoryBucket
	SL        CategoryBucket
	EL        CategoryBucket
	Maternity CategoryBucket
	Paternity CategoryBucket

	// No quota; accumulated on approval only.
	LOPTaken       decimal.Decimal
	DutyLeaveTaken decimal.Decimal

	ELCarriedForward decimal.Decimal

	Notes         string
	LastResetDate core.Date
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// bucketFor maps a category to its counters. Half-day draws on CL.
// This single table is used identically by submit, cancel, approve and
// reject so the category dispatch cannot diverge between paths.
var bucketFor = map[Category]func(*Balance) *CategoryBucket{
	CategoryCL:        func(b *Balance) *CategoryBucket { return &b.CL },
	CategoryHalfDay:   func(b *Balance) *CategoryBucket { return &b.CL },
	CategorySL:        func(b *Balance) *CategoryBucket { return &b.SL },
	CategoryEL:        func(b *Balance) *CategoryBucket { return &b.EL },
	CategoryMaternity: func(b *Balance) *CategoryBucket { return &b.Maternity },
	CategoryPaternity: func(b *Balance) *CategoryBucket { return &b.Paternity },
}

// Bucket returns the counters backing a quota category, or false for
// LOP / Duty Leave.
func (b *Balance) Bucket(c Category) (*CategoryBucket, bool) {
	f, ok := bucketFor[c]
	if !ok {
		return nil, false
	}
	return f(b), true
}

// Available returns the derived balance for a quota category.
func (b *Balance) Available(c Category) (decimal.Decimal, bool) {
	bucket, ok := b.Bucket(c)
	if !ok {
		return decimal.Zero, false
	}
	return bucket.Balance(), true
}

// Application is a single leave request moving through the workflow.
type Application struct {
	ID        string
	TenantID  int64
	TeacherID int64

	Category      Category
	StartDate     core.Date
	EndDate       core.Date
	IsHalfDay     bool
	HalfDayPeriod HalfDayPeriod // set only when IsHalfDay
	TotalDays     decimal.Decimal

	Reason             string
	ContactDuringLeave string
	AddressDuringLeave string

	Status          Status
	AppliedAt       time.Time
	ApprovedBy      int64 // approver id; 0 until settled by an approver
	ApprovedAt      time.Time
	RejectionReason string
	AdminNotes      string

	AcademicYear string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Covers reports whether the application's span includes the given day.
func (a *Application) Covers(day core.Date) bool {
	return !a.StartDate.After(day) && !a.EndDate.Before(day)
}

func decimalFromInt(n int) decimal.Decimal { return decimal.NewFromInt(int64(n)) }
