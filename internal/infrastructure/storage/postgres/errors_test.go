package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"columbarium/internal/core/apperror"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"no rows", pgx.ErrNoRows, apperror.CodeNotFound},
		{"unique", &pgconn.PgError{Code: "23505", ConstraintName: "sales_folio_key"}, apperror.CodeDuplicate},
		{"foreign key", &pgconn.PgError{Code: "23503"}, apperror.CodeValidation},
		{"check", &pgconn.PgError{Code: "23514"}, apperror.CodeValidation},
		{"other", errors.New("connection reset"), apperror.CodeInternal},
		{"already mapped", apperror.NewConflict("x"), apperror.CodeConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, apperror.CodeOf(MapError(tt.err, "sale", "VENTA-2026-00001", "insert sale")))
		})
	}

	assert.NoError(t, MapError(nil, "sale", "", "noop"))

	dup, _ := apperror.AsAppError(MapError(&pgconn.PgError{Code: "23505", ConstraintName: "sales_folio_key"}, "sale", "VENTA-1", "insert"))
	assert.Equal(t, "folio", dup.Details["field"])

	prio, _ := apperror.AsAppError(MapError(&pgconn.PgError{Code: "23505", ConstraintName: "beneficiaries_active_priority_key"}, "beneficiary", "n-1", "insert"))
	assert.Equal(t, "priority", prio.Details["field"])

	wrapped := MapError(errors.New("boom"), "sale", "", "insert sale")
	assert.EqualError(t, wrapped, "insert sale: boom")
}
