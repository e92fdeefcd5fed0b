package registry_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"columbarium/internal/core/id"
	"columbarium/internal/domain"
	"columbarium/internal/domain/niche"
	"columbarium/internal/infrastructure/storage/postgres"
)

const (
	nicheTable     = "niches"
	ownershipTable = "niche_ownership_history"
	deceasedTable  = "deceased"
)

var (
	ownershipCols = postgres.ExtractDBColumns[niche.OwnershipEntry]()
	deceasedCols  = postgres.ExtractDBColumns[niche.Deceased]()
)

// NicheRepo implements niche.Repository.
type NicheRepo struct {
	baseRepo[*niche.Niche]
}

var _ niche.Repository = (*NicheRepo)(nil)

// NewNicheRepo creates a new niche repository.
func NewNicheRepo(txm *postgres.TxManager) *NicheRepo {
	return &NicheRepo{
		baseRepo: newBaseRepo(txm, nicheTable, "niche",
			postgres.ExtractDBColumns[niche.Niche](),
			func() *niche.Niche { return &niche.Niche{} }),
	}
}

func (r *NicheRepo) Create(ctx context.Context, n *niche.Niche) error {
	return r.insert(ctx, n, n.Code)
}

func (r *NicheRepo) GetByID(ctx context.Context, nicheID id.ID) (*niche.Niche, error) {
	return r.get(ctx, squirrel.Eq{"id": nicheID}, false, nicheID)
}

func (r *NicheRepo) GetByCode(ctx context.Context, code string) (*niche.Niche, error) {
	return r.get(ctx, squirrel.Eq{"code": strings.ToUpper(strings.TrimSpace(code))}, false, code)
}

// GetForUpdate locks the niche row and loads its ownership history.
func (r *NicheRepo) GetForUpdate(ctx context.Context, nicheID id.ID) (*niche.Niche, error) {
	n, err := r.get(ctx, squirrel.Eq{"id": nicheID}, true, nicheID)
	if err != nil {
		return nil, err
	}
	n.History, err = r.History(ctx, nicheID)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (r *NicheRepo) List(ctx context.Context, f niche.ListFilter) (domain.ListResult[*niche.Niche], error) {
	q := r.baseSelect()
	if f.Status != "" {
		q = q.Where(squirrel.Eq{"status": f.Status})
	}
	if f.Type != "" {
		q = q.Where(squirrel.Eq{"type": f.Type})
	}
	if f.Module != "" {
		q = q.Where(squirrel.Eq{"module": strings.ToUpper(f.Module)})
	}
	if f.Section != "" {
		q = q.Where(squirrel.Eq{"section": strings.ToUpper(f.Section)})
	}
	if f.Search != "" {
		q = q.Where(squirrel.ILike{"code": "%" + f.Search + "%"})
	}
	return r.list(ctx, q, f.ListFilter, "code")
}

// Stats groups the whole inventory by status and type in one query.
func (r *NicheRepo) Stats(ctx context.Context) (*niche.Stats, error) {
	sql, args, err := Builder().
		Select("status", "type", "COUNT(*) AS count").
		From(nicheTable).
		GroupBy("status", "type").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build stats query: %w", err)
	}

	var rows []struct {
		Status niche.Status `db:"status"`
		Type   niche.Type   `db:"type"`
		Count  int          `db:"count"`
	}
	if err := pgxscan.Select(ctx, r.querier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select niche stats: %w", err)
	}

	st := niche.NewStats()
	for _, row := range rows {
		st.Add(row.Status, row.Type, row.Count)
	}
	return st, nil
}

func (r *NicheRepo) Update(ctx context.Context, n *niche.Niche) error {
	if err := r.update(ctx, n, n.ID, n.Version); err != nil {
		return err
	}
	n.SetVersion(n.Version + 1)
	return nil
}

// SaveOwnership upserts entries by id. Only the closing fields change on conflict.
func (r *NicheRepo) SaveOwnership(ctx context.Context, entries []niche.OwnershipEntry) error {
	if len(entries) == 0 {
		return nil
	}

	q := Builder().Insert(ownershipTable).Columns(ownershipCols...)
	for _, e := range entries {
		q = q.Values(postgres.RowValues(e, ownershipCols)...)
	}
	q = q.Suffix("ON CONFLICT (id) DO UPDATE SET end_date = EXCLUDED.end_date, notes = EXCLUDED.notes")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build ownership upsert: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "ownership", entries[0].NicheID, "upsert ownership")
	}
	return nil
}

// History returns ownership periods ordered by start date.
func (r *NicheRepo) History(ctx context.Context, nicheID id.ID) ([]niche.OwnershipEntry, error) {
	sql, args, err := Builder().
		Select(ownershipCols...).
		From(ownershipTable).
		Where(squirrel.Eq{"niche_id": nicheID}).
		OrderBy("start_date", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []niche.OwnershipEntry
	if err := pgxscan.Select(ctx, r.querier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select ownership: %w", err)
	}
	return out, nil
}

func (r *NicheRepo) CreateDeceased(ctx context.Context, d *niche.Deceased) error {
	data := postgres.StructToMap(d)
	sql, args, err := Builder().Insert(deceasedTable).SetMap(data).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "deceased", d.ID, "insert deceased")
	}
	return nil
}

func (r *NicheRepo) ListDeceased(ctx context.Context, nicheID id.ID) ([]niche.Deceased, error) {
	sql, args, err := Builder().
		Select(deceasedCols...).
		From(deceasedTable).
		Where(squirrel.Eq{"niche_id": nicheID}).
		OrderBy("date_of_death", "created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []niche.Deceased
	if err := pgxscan.Select(ctx, r.querier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select deceased: %w", err)
	}
	return out, nil
}
