package succession

import (
	"context"

	"columbarium/internal/core/id"
)

// Repository defines the interface for Succession persistence.
type Repository interface {
	Create(ctx context.Context, s *Succession) error

	// ListByNiche returns the records of a niche, newest first.
	ListByNiche(ctx context.Context, nicheID id.ID) ([]*Succession, error)
}
