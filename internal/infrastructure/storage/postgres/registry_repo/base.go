// Package registry_repo provides PostgreSQL implementations of the niche,
// customer and beneficiary repositories.
package registry_repo

import (
	"context"
	"fmt"
	"slices"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"columbarium/internal/core/apperror"
	"columbarium/internal/domain"
	"columbarium/internal/infrastructure/storage/postgres"
)

// baseRepo provides common CRUD operations for versioned registry records.
// T is a pointer to a struct with "db" tags.
type baseRepo[T any] struct {
	txm        *postgres.TxManager
	tableName  string
	entity     string
	selectCols []string
	newFn      func() T
}

func newBaseRepo[T any](txm *postgres.TxManager, tableName, entity string, selectCols []string, newFn func() T) baseRepo[T] {
	return baseRepo[T]{
		txm:        txm,
		tableName:  tableName,
		entity:     entity,
		selectCols: selectCols,
		newFn:      newFn,
	}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *baseRepo[T]) querier(ctx context.Context) postgres.Querier {
	return r.txm.GetQuerier(ctx)
}

// columns keeps only the values of known columns.
func (r *baseRepo[T]) columns(entity T, skip ...string) map[string]any {
	data := postgres.StructToMap(entity)
	out := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if slices.Contains(skip, col) {
			continue
		}
		if val, ok := data[col]; ok {
			out[col] = val
		}
	}
	return out
}

// insert writes entity using its "db" tags. key identifies the row in errors.
func (r *baseRepo[T]) insert(ctx context.Context, entity T, key any) error {
	sql, args, err := Builder().
		Insert(r.tableName).
		SetMap(r.columns(entity)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, r.entity, key, "insert "+r.tableName)
	}
	return nil
}

// update modifies entity with optimistic locking on version.
func (r *baseRepo[T]) update(ctx context.Context, entity T, entityID any, version int) error {
	sql, args, err := Builder().
		Update(r.tableName).
		SetMap(r.columns(entity, "id", "version", "created_at")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": entityID}).
		Where(squirrel.Eq{"version": version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, r.entity, entityID, "update "+r.tableName)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(r.tableName, entityID)
	}
	return nil
}

func (r *baseRepo[T]) baseSelect() squirrel.SelectBuilder {
	return Builder().Select(r.selectCols...).From(r.tableName)
}

// get loads one row matching where, optionally locking it.
func (r *baseRepo[T]) get(ctx context.Context, where squirrel.Sqlizer, forUpdate bool, key any) (T, error) {
	entity := r.newFn()

	q := r.baseSelect().Where(where).Limit(1)
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return entity, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Get(ctx, r.querier(ctx), entity, sql, args...); err != nil {
		var zero T
		return zero, postgres.MapError(err, r.entity, key, "get "+r.entity)
	}
	return entity, nil
}

// selectAll runs q and scans every row.
func (r *baseRepo[T]) selectAll(ctx context.Context, q squirrel.SelectBuilder) ([]T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []T
	if err := pgxscan.Select(ctx, r.querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select %s: %w", r.tableName, err)
	}
	return items, nil
}

// list counts q, then applies ordering and pagination.
func (r *baseRepo[T]) list(ctx context.Context, q squirrel.SelectBuilder, f domain.ListFilter, orderBy ...string) (domain.ListResult[T], error) {
	result := domain.ListResult[T]{Limit: f.Limit, Offset: f.Offset}

	countSQL, countArgs, err := Builder().
		Select("COUNT(*)").
		FromSelect(q, "sub").
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	if err := r.querier(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	q = q.OrderBy(orderBy...)
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}

	items, err := r.selectAll(ctx, q)
	if err != nil {
		return result, err
	}
	result.Items = items
	return result, nil
}
