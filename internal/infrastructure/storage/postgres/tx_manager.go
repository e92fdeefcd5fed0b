package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"columbarium/internal/core/tx"
	"columbarium/pkg/logger"
)

var tracer = otel.Tracer("columbarium/tx")

var _ tx.ReadOnlyManager = (*TxManager)(nil)

// TxManager runs units of work on the pool. A sale locks its buyer and then
// every niche it covers, so two bulk sales or a sale racing a succession can
// deadlock; such attempts are rolled back and replayed from the start.
type TxManager struct {
	pool             *pgxpool.Pool
	statementTimeout time.Duration
	attempts         int
	backoff          time.Duration
}

// TxOption customises a TxManager.
type TxOption func(*TxManager)

// WithStatementTimeout bounds every statement of a transaction. Zero disables it.
func WithStatementTimeout(d time.Duration) TxOption {
	return func(m *TxManager) { m.statementTimeout = d }
}

// WithRetries sets how many times a deadlocked or serialization-failed
// transaction is attempted in total, and the pause before each replay.
func WithRetries(attempts int, backoff time.Duration) TxOption {
	return func(m *TxManager) {
		if attempts > 0 {
			m.attempts = attempts
		}
		m.backoff = backoff
	}
}

// NewTxManager creates a transaction manager with a 30s statement timeout and
// three attempts per transaction.
func NewTxManager(pool *Pool, opts ...TxOption) *TxManager {
	m := &TxManager{
		pool:             pool.Pool,
		statementTimeout: 30 * time.Second,
		attempts:         3,
		backoff:          25 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type txKey struct{}

// Tx is the transaction carried in context.
type Tx struct {
	pgx.Tx
}

// RunInTransaction executes fn in a read-write transaction. A transaction
// already present in ctx is joined, and the outer call owns commit and replay.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, pgx.ReadWrite, fn)
}

// ReadOnly executes fn in a read-only transaction.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, pgx.ReadOnly, fn)
}

func (m *TxManager) run(ctx context.Context, mode pgx.TxAccessMode, fn func(ctx context.Context) error) error {
	if m.GetTx(ctx) != nil {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, "transaction")
	defer span.End()
	span.SetAttributes(attribute.String("tx.access_mode", string(mode)))

	attempt := 0
	err := retry(ctx, m.attempts, m.backoff, func() error {
		attempt++
		return m.once(ctx, mode, fn)
	})
	span.SetAttributes(attribute.Int("tx.attempts", attempt))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transaction failed")
	}
	return err
}

// once runs fn in a fresh transaction and commits it.
func (m *TxManager) once(ctx context.Context, mode pgx.TxAccessMode, fn func(ctx context.Context) error) error {
	pgTx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: mode})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if m.statementTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", m.statementTimeout.Milliseconds())
		if _, err := pgTx.Exec(ctx, stmt); err != nil {
			rollback(ctx, pgTx, err)
			return fmt.Errorf("set statement_timeout: %w", err)
		}
	}

	if err := fn(context.WithValue(ctx, txKey{}, &Tx{Tx: pgTx})); err != nil {
		rollback(ctx, pgTx, err)
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// rollback uses a fresh context so a cancelled request still releases its locks.
func rollback(ctx context.Context, pgTx pgx.Tx, cause error) {
	if err := pgTx.Rollback(context.Background()); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		logger.Error(ctx, "rollback failed", "error", err, "cause", cause)
	}
}

// retry calls fn up to attempts times while it fails with a retryable error.
func retry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	var err error
	for i := 1; ; i++ {
		err = fn()
		if err == nil || !retryable(err) || i >= attempts {
			return err
		}
		logger.Warn(ctx, "transaction conflict, retrying", "attempt", i, "error", err)

		wait := time.Duration(i) * backoff
		select {
		case <-ctx.Done():
			return err
		case <-time.After(wait):
		}
	}
}

// retryable reports whether err is a deadlock or a serialization failure.
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgDeadlockDetected || pgErr.Code == pgSerializationFailure
}

// GetTx returns the transaction in ctx, or nil.
func (m *TxManager) GetTx(ctx context.Context) *Tx {
	if t, ok := ctx.Value(txKey{}).(*Tx); ok {
		return t
	}
	return nil
}

// Querier is satisfied by both pgx.Tx and the pool, so repositories work
// inside and outside transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetQuerier returns the transaction in ctx, or the pool.
func (m *TxManager) GetQuerier(ctx context.Context) Querier {
	if t := m.GetTx(ctx); t != nil {
		return t.Tx
	}
	return m.pool
}
