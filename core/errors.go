/*
errors.go - error taxonomy shared by the leave and attendance domains

Every public operation reports failures through this taxonomy so callers
(and the HTTP layer) can branch with errors.Is / errors.As:

  ErrValidation          bad input: dates, missing reason, half-day mismatch
  ErrInsufficientBalance requested days exceed the derived balance
  ErrInvalidState        transition attempted on a non-Pending application
  ErrNotFound            unknown application / balance / teacher
  ErrStorage             commit failure; the whole operation rolled back

Structured variants carry the context a caller needs to recover or render
a useful message.
*/
package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrValidation is returned for human-correctable bad input.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientBalance is returned when a request exceeds the
	// available leave balance. Wrapped by InsufficientBalanceError.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidState is returned when a state transition is attempted on
	// an application that is no longer Pending. Terminal for that request.
	ErrInvalidState = errors.New("invalid application state")

	// ErrNotFound is returned for unknown applications, balances, quota
	// settings, teachers, or attendance records.
	ErrNotFound = errors.New("not found")

	// ErrStorage is returned when persistence fails. The enclosing
	// transaction has been rolled back in full.
	ErrStorage = errors.New("storage failure")
)

// Validationf builds a ValidationError-style wrapped error.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Storagef wraps a low-level persistence error into the taxonomy.
func Storagef(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}

// InsufficientBalanceError reports a balance shortage with the numbers a
// caller needs to explain it.
type InsufficientBalanceError struct {
	Category  string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s: available %s, requested %s days",
		e.Category, e.Available.String(), e.Requested.String())
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// Shortfall is the amount missing.
func (e *InsufficientBalanceError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

// InvalidStateError reports a transition attempted on a settled application.
type InvalidStateError struct {
	ApplicationID string
	Status        string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("application %s is already %s", e.ApplicationID, e.Status)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// IsClientError reports whether the failure is due to caller input rather
// than the system.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidState)
}
