package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"columbarium/internal/core/id"
	"columbarium/internal/domain/succession"
	"columbarium/internal/infrastructure/storage/postgres"
)

const successionTable = "successions"

var successionCols = postgres.ExtractDBColumns[succession.Succession]()

// SuccessionRepo implements succession.Repository.
type SuccessionRepo struct {
	txm *postgres.TxManager
}

var _ succession.Repository = (*SuccessionRepo)(nil)

// NewSuccessionRepo creates a new succession repository.
func NewSuccessionRepo(txm *postgres.TxManager) *SuccessionRepo {
	return &SuccessionRepo{txm: txm}
}

func (r *SuccessionRepo) Create(ctx context.Context, s *succession.Succession) error {
	_, err := exec(ctx, r.txm.GetQuerier(ctx), Builder().
		Insert(successionTable).
		Columns(successionCols...).
		Values(postgres.RowValues(s, successionCols)...))
	if err != nil {
		return postgres.MapError(err, "succession", s.ID, "insert succession")
	}
	return nil
}

func (r *SuccessionRepo) ListByNiche(ctx context.Context, nicheID id.ID) ([]*succession.Succession, error) {
	var out []*succession.Succession
	if err := selectInto(ctx, r.txm.GetQuerier(ctx), &out, Builder().
		Select(successionCols...).
		From(successionTable).
		Where(squirrel.Eq{"niche_id": nicheID}).
		OrderBy("date DESC", "created_at DESC")); err != nil {
		return nil, fmt.Errorf("list successions: %w", err)
	}
	return out, nil
}
