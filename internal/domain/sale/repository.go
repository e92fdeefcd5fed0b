package sale

import (
	"context"

	"columbarium/internal/core/id"
	"columbarium/internal/domain"
)

// ListFilter narrows sale listings.
type ListFilter struct {
	domain.ListFilter
	Status     Status
	CustomerID *id.ID
	NicheID    *id.ID
}

// Repository defines the interface for Sale persistence.
// Sales are stored with their niches, installments, applied payments,
// cancellation data and succession history.
type Repository interface {
	Create(ctx context.Context, s *Sale) error
	GetByID(ctx context.Context, id id.ID) (*Sale, error)

	// GetForUpdate retrieves the sale with a row lock.
	GetForUpdate(ctx context.Context, id id.ID) (*Sale, error)

	// FindOpenByPrimaryNicheForUpdate returns the active, overdue or paid sale
	// whose primary niche is nicheID, or nil when there is none. Secondary
	// niches of a bulk sale never resolve to the sale.
	FindOpenByPrimaryNicheForUpdate(ctx context.Context, nicheID id.ID) (*Sale, error)

	List(ctx context.Context, f ListFilter) (domain.ListResult[*Sale], error)

	// Update persists the sale with an optimistic version check, including
	// installment changes and new succession entries.
	Update(ctx context.Context, s *Sale) error

	CreateRefund(ctx context.Context, r *Refund) error
	ListRefunds(ctx context.Context, saleID id.ID) ([]*Refund, error)
}
