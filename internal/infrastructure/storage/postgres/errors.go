package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"columbarium/internal/core/apperror"
)

// SQLSTATE codes mapped to domain errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"

	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// UniqueFields maps unique constraint names to the entity field they guard.
// Constraints not listed report their own name as the field.
var UniqueFields = map[string]string{
	"niches_code_key":                   "code",
	"customers_rfc_key":                 "rfc",
	"sales_folio_key":                   "folio",
	"payments_receipt_number_key":       "receipt_number",
	"refunds_receipt_number_key":        "receipt_number",
	"payments_maintenance_year_key":     "year",
	"beneficiaries_active_priority_key": "priority",
	"users_username_key":                "username",
}

// MapError converts driver errors into application errors.
// Unique violations become DUPLICATE_ENTRY, missing rows become NOT_FOUND,
// anything else is wrapped with op.
func MapError(err error, entity string, key any, op string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.AsAppError(err); ok {
		return err
	}
	if pgxscan.NotFound(err) {
		return apperror.NewNotFound(entity, key)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			field, ok := UniqueFields[pgErr.ConstraintName]
			if !ok {
				field = strings.TrimSuffix(pgErr.ConstraintName, "_key")
			}
			return apperror.NewDuplicate(entity, field, fmt.Sprint(key)).WithCause(err)
		case pgForeignKeyViolation:
			return apperror.NewValidation("referenced record does not exist").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case pgCheckViolation:
			return apperror.NewValidation("value violates a constraint").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
