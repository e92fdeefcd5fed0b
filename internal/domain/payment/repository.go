package payment

import (
	"context"

	"columbarium/internal/core/id"
)

// Repository defines the interface for Payment persistence.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id id.ID) (*Payment, error)
	ListBySale(ctx context.Context, saleID id.ID) ([]*Payment, error)
	ListMaintenanceByNiche(ctx context.Context, nicheID id.ID) ([]*Payment, error)

	// MaintenanceExists reports whether a completed maintenance payment exists for the niche and year.
	MaintenanceExists(ctx context.Context, nicheID id.ID, year int) (bool, error)
}
