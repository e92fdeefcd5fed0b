package customer

import (
	"context"

	"columbarium/internal/core/id"
	"columbarium/internal/domain"
)

// ListFilter narrows customer listings. Search matches names, phone, email and RFC.
type ListFilter struct {
	domain.ListFilter
	Status Status
}

// Repository defines the interface for Customer persistence.
type Repository interface {
	Create(ctx context.Context, c *Customer) error
	GetByID(ctx context.Context, id id.ID) (*Customer, error)

	// GetForUpdate retrieves customer with row lock (for transactional updates).
	GetForUpdate(ctx context.Context, id id.ID) (*Customer, error)

	List(ctx context.Context, f ListFilter) (domain.ListResult[*Customer], error)

	// Update persists the customer with an optimistic version check.
	Update(ctx context.Context, c *Customer) error

	// FindActiveByPhone returns every active customer with the given phone.
	FindActiveByPhone(ctx context.Context, phone string) ([]*Customer, error)
}
