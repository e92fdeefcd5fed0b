// Package tx provides the unit-of-work abstraction used by domain services.
// Domain code depends on this interface only; the PostgreSQL implementation
// lives in infrastructure/storage/postgres.
package tx

import (
	"context"
)

// Manager runs a function as one atomic unit of work.
//
// Every repository call made with the ctx passed to fn joins the same
// transaction. If fn returns an error, all writes are rolled back and the
// error is returned unchanged. Nested calls reuse the outer transaction.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager extends Manager with read-only transaction support.
type ReadOnlyManager interface {
	Manager

	// ReadOnly executes fn in a read-only transaction.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
