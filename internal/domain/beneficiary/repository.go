package beneficiary

import (
	"context"

	"columbarium/internal/core/id"
)

// Repository defines the interface for beneficiary ledger persistence.
type Repository interface {
	CreateMany(ctx context.Context, list []*Beneficiary) error
	GetByID(ctx context.Context, id id.ID) (*Beneficiary, error)
	Update(ctx context.Context, b *Beneficiary) error

	// ListByNiche returns entries ordered by priority.
	ListByNiche(ctx context.Context, nicheID id.ID, activeOnly bool) ([]*Beneficiary, error)

	// ListActiveByNicheForUpdate returns active entries with row locks.
	ListActiveByNicheForUpdate(ctx context.Context, nicheID id.ID) ([]*Beneficiary, error)

	ListByDesignator(ctx context.Context, customerID id.ID) ([]*Beneficiary, error)
}
