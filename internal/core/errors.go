package core

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// Error kinds surfaced to callers. Match with errors.Is.
var (
	ErrValidation             = errors.New("validation error")
	ErrNotFound               = errors.New("not found")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrTokenExpired           = errors.New("acceptance token expired")
	ErrTokenAlreadyUsed       = errors.New("acceptance token already used")
	ErrNoPriceDefined         = errors.New("no price defined")
)

// InsufficientStockError names the product whose balance could not cover a debit.
type InsufficientStockError struct {
	ProductID   int
	ProductName string
	Available   decimal.Decimal
	Requested   decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (product %d): available %s, requested %s",
		e.ProductName, e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func invalidStatef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidStateTransition, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// wrapPgError maps constraint violations onto the error taxonomy and wraps
// everything else as a persistence failure of action.
func wrapPgError(err error, action string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return validationf("cannot %s: duplicate value violates %s", action, pgErr.ConstraintName)
		case "23503":
			return notFoundf("cannot %s: referenced record does not exist (%s)", action, pgErr.ConstraintName)
		case "23514":
			return validationf("cannot %s: value violates %s", action, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}
