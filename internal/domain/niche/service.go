package niche

import (
	"context"
	"fmt"

	"columbarium/internal/core/apperror"
	"columbarium/internal/core/id"
	"columbarium/internal/core/tx"
	"columbarium/internal/core/types"
	"columbarium/internal/domain"
	"columbarium/internal/domain/audit"
	"columbarium/pkg/logger"
)

// Service provides inventory operations on niches.
// Ownership changes are driven by the sale and succession services.
type Service struct {
	repo      Repository
	txManager tx.Manager
	audit     audit.Sink
}

// NewService creates a new niche registry service.
func NewService(repo Repository, txManager tx.Manager, sink audit.Sink) *Service {
	return &Service{repo: repo, txManager: txManager, audit: sink}
}

// Create registers a new niche. The code must be unique.
func (s *Service) Create(ctx context.Context, n *Niche) error {
	if err := n.Validate(ctx); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, n); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.NewEvent(ctx, audit.ActionCreateNiche, audit.ModuleNiches,
			"niche", n.ID.String(), map[string]any{"code": n.Code, "price": n.Price.String()}))
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "niche created", "id", n.ID, "code", n.Code)
	return nil
}

// Get returns a niche by id.
func (s *Service) Get(ctx context.Context, nicheID id.ID) (*Niche, error) {
	return s.repo.GetByID(ctx, nicheID)
}

// GetByCode returns a niche by its code.
func (s *Service) GetByCode(ctx context.Context, code string) (*Niche, error) {
	return s.repo.GetByCode(ctx, code)
}

// List returns niches matching f.
func (s *Service) List(ctx context.Context, f ListFilter) (domain.ListResult[*Niche], error) {
	f.Normalize()
	return s.repo.List(ctx, f)
}

// Disable takes a niche out of inventory.
func (s *Service) Disable(ctx context.Context, nicheID id.ID, reason string) (*Niche, error) {
	var n *Niche
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.repo.GetForUpdate(ctx, nicheID)
		if err != nil {
			return err
		}
		if err := n.Disable(reason); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, n); err != nil {
			return fmt.Errorf("update niche: %w", err)
		}
		return s.audit.Record(ctx, audit.NewEvent(ctx, audit.ActionDisableNiche, audit.ModuleNiches,
			"niche", n.ID.String(), map[string]any{"code": n.Code, "reason": reason}))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "niche disabled", "code", n.Code)
	return n, nil
}

// Enable returns a disabled niche to inventory.
func (s *Service) Enable(ctx context.Context, nicheID id.ID) (*Niche, error) {
	var n *Niche
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.repo.GetForUpdate(ctx, nicheID)
		if err != nil {
			return err
		}
		if err := n.Enable(); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, n); err != nil {
			return fmt.Errorf("update niche: %w", err)
		}
		return s.audit.Record(ctx, audit.NewEvent(ctx, audit.ActionEnableNiche, audit.ModuleNiches,
			"niche", n.ID.String(), map[string]any{"code": n.Code}))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "niche enabled", "code", n.Code)
	return n, nil
}

// Stats counts the inventory by status and type.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}

// UpdatePrice changes the list price of an unsold niche.
func (s *Service) UpdatePrice(ctx context.Context, nicheID id.ID, price types.Money) (*Niche, error) {
	var n *Niche
	var previous types.Money
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.repo.GetForUpdate(ctx, nicheID)
		if err != nil {
			return err
		}
		previous = n.Price
		if err := n.ChangePrice(price); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, n); err != nil {
			return fmt.Errorf("update niche: %w", err)
		}
		return s.audit.Record(ctx, audit.NewEvent(ctx, audit.ActionUpdateNichePrice, audit.ModuleNiches,
			"niche", n.ID.String(), map[string]any{"code": n.Code, "from": previous.String(), "to": price.String()}))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "niche price updated", "code", n.Code, "price", n.Price.String())
	return n, nil
}

// UpdateType changes the material of an unsold niche.
func (s *Service) UpdateType(ctx context.Context, nicheID id.ID, t Type) (*Niche, error) {
	updated, err := s.BulkUpdateType(ctx, []id.ID{nicheID}, t)
	if err != nil {
		return nil, err
	}
	return updated[0], nil
}

// BulkUpdateType changes the material of several niches at once. A sold or
// missing niche aborts the whole batch.
func (s *Service) BulkUpdateType(ctx context.Context, nicheIDs []id.ID, t Type) ([]*Niche, error) {
	if len(nicheIDs) == 0 {
		return nil, apperror.NewValidation("at least one niche is required").WithDetail("field", "nicheIds")
	}
	if !isValidType(t) {
		return nil, apperror.NewValidation("invalid niche type").
			WithDetail("field", "type").
			WithDetail("value", string(t))
	}

	var updated []*Niche
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		updated = make([]*Niche, 0, len(nicheIDs))
		seen := make(map[id.ID]struct{}, len(nicheIDs))
		for _, nicheID := range nicheIDs {
			if _, dup := seen[nicheID]; dup {
				continue
			}
			seen[nicheID] = struct{}{}

			n, err := s.repo.GetForUpdate(ctx, nicheID)
			if err != nil {
				return err
			}
			previous := n.Type
			if err := n.ChangeType(t); err != nil {
				return err
			}
			if err := s.repo.Update(ctx, n); err != nil {
				return fmt.Errorf("update niche %s: %w", n.Code, err)
			}
			if err := s.audit.Record(ctx, audit.NewEvent(ctx, audit.ActionUpdateNicheType, audit.ModuleNiches,
				"niche", n.ID.String(), map[string]any{"code": n.Code, "from": string(previous), "to": string(t)})); err != nil {
				return err
			}
			updated = append(updated, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "niche type updated", "count", len(updated), "type", string(t))
	return updated, nil
}

// OwnershipHistory returns the ordered ownership periods of a niche.
func (s *Service) OwnershipHistory(ctx context.Context, nicheID id.ID) ([]OwnershipEntry, error) {
	if _, err := s.repo.GetByID(ctx, nicheID); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, nicheID)
}

// Occupants returns the deceased deposited in a niche.
func (s *Service) Occupants(ctx context.Context, nicheID id.ID) ([]Deceased, error) {
	if _, err := s.repo.GetByID(ctx, nicheID); err != nil {
		return nil, err
	}
	return s.repo.ListDeceased(ctx, nicheID)
}

