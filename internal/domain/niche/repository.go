package niche

import (
	"context"

	"columbarium/internal/core/id"
	"columbarium/internal/domain"
)

// ListFilter narrows niche listings.
type ListFilter struct {
	domain.ListFilter
	Status  Status
	Type    Type
	Module  string
	Section string
}

// Repository defines the interface for Niche persistence.
type Repository interface {
	Create(ctx context.Context, n *Niche) error
	GetByID(ctx context.Context, id id.ID) (*Niche, error)
	GetByCode(ctx context.Context, code string) (*Niche, error)

	// GetForUpdate retrieves the niche with a row lock and its ownership history.
	GetForUpdate(ctx context.Context, id id.ID) (*Niche, error)

	List(ctx context.Context, f ListFilter) (domain.ListResult[*Niche], error)

	// Stats aggregates the whole inventory by status and type.
	Stats(ctx context.Context) (*Stats, error)

	// Update persists the niche with an optimistic version check.
	Update(ctx context.Context, n *Niche) error

	// SaveOwnership upserts ownership entries by id.
	SaveOwnership(ctx context.Context, entries []OwnershipEntry) error
	History(ctx context.Context, nicheID id.ID) ([]OwnershipEntry, error)

	CreateDeceased(ctx context.Context, d *Deceased) error
	ListDeceased(ctx context.Context, nicheID id.ID) ([]Deceased, error)
}
