package registry_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"columbarium/internal/core/apperror"
	"columbarium/internal/core/id"
	"columbarium/internal/domain/beneficiary"
	"columbarium/internal/infrastructure/storage/postgres"
)

// BeneficiaryRepo implements beneficiary.Repository.
// Ledger rows carry no version: they are always read FOR UPDATE before a change.
type BeneficiaryRepo struct {
	baseRepo[*beneficiary.Beneficiary]
}

var _ beneficiary.Repository = (*BeneficiaryRepo)(nil)

// NewBeneficiaryRepo creates a new beneficiary repository.
func NewBeneficiaryRepo(txm *postgres.TxManager) *BeneficiaryRepo {
	return &BeneficiaryRepo{
		baseRepo: newBaseRepo(txm, "beneficiaries", "beneficiary",
			postgres.ExtractDBColumns[beneficiary.Beneficiary](),
			func() *beneficiary.Beneficiary { return &beneficiary.Beneficiary{} }),
	}
}

func (r *BeneficiaryRepo) CreateMany(ctx context.Context, list []*beneficiary.Beneficiary) error {
	if len(list) == 0 {
		return nil
	}

	q := Builder().Insert(r.tableName).Columns(r.selectCols...)
	for _, b := range list {
		q = q.Values(postgres.RowValues(b, r.selectCols)...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, r.entity, list[0].NicheID, "insert beneficiaries")
	}
	return nil
}

func (r *BeneficiaryRepo) GetByID(ctx context.Context, beneficiaryID id.ID) (*beneficiary.Beneficiary, error) {
	return r.get(ctx, squirrel.Eq{"id": beneficiaryID}, true, beneficiaryID)
}

func (r *BeneficiaryRepo) Update(ctx context.Context, b *beneficiary.Beneficiary) error {
	b.UpdatedAt = time.Now().UTC()
	sql, args, err := Builder().
		Update(r.tableName).
		SetMap(r.columns(b, "id", "created_at")).
		Where(squirrel.Eq{"id": b.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, r.entity, b.ID, "update beneficiary")
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(r.entity, b.ID)
	}
	return nil
}

func (r *BeneficiaryRepo) ListByNiche(ctx context.Context, nicheID id.ID, activeOnly bool) ([]*beneficiary.Beneficiary, error) {
	q := r.baseSelect().Where(squirrel.Eq{"niche_id": nicheID})
	if activeOnly {
		q = q.Where(squirrel.Eq{"is_active": true})
	}
	return r.selectAll(ctx, q.OrderBy("priority", "created_at"))
}

func (r *BeneficiaryRepo) ListActiveByNicheForUpdate(ctx context.Context, nicheID id.ID) ([]*beneficiary.Beneficiary, error) {
	return r.selectAll(ctx, r.baseSelect().
		Where(squirrel.Eq{"niche_id": nicheID, "is_active": true}).
		OrderBy("priority", "created_at").
		Suffix("FOR UPDATE"))
}

func (r *BeneficiaryRepo) ListByDesignator(ctx context.Context, customerID id.ID) ([]*beneficiary.Beneficiary, error) {
	return r.selectAll(ctx, r.baseSelect().
		Where(squirrel.Eq{"designated_by": customerID}).
		OrderBy("priority", "created_at"))
}
