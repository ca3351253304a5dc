package repository

import (
	"errors"
	"fmt"

	"github.com/davidleathers/transaction-monitor/internal/domain/alert"
	domainerrors "github.com/davidleathers/transaction-monitor/internal/domain/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// IsDuplicateKeyViolation checks if the error is a unique constraint violation
func IsDuplicateKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// IsForeignKeyViolation checks if the error is a foreign key constraint violation
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

// wrapError maps driver errors onto application errors.
func wrapError(err error, resource, operation string) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domainerrors.NewNotFoundError(resource)
	case IsDuplicateKeyViolation(err):
		return domainerrors.NewConflictError(fmt.Sprintf("%s already exists", resource)).WithCause(err)
	case IsForeignKeyViolation(err):
		return domainerrors.NewValidationError("INVALID_REFERENCE", fmt.Sprintf("%s references a missing record", resource)).WithCause(err)
	default:
		return domainerrors.NewInternalError(fmt.Sprintf("failed to %s %s", operation, resource)).WithCause(err)
	}
}

// errAlertChanged reports a lost compare-and-set on alert status.
func errAlertChanged(from alert.Status) error {
	return domainerrors.NewConflictError(fmt.Sprintf("alert is no longer %s", from))
}
