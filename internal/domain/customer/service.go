package customer

import (
	"context"
	"fmt"

	"columbarium/internal/core/id"
	"columbarium/internal/core/tx"
	"columbarium/internal/domain"
	"columbarium/internal/domain/audit"
	"columbarium/pkg/logger"
)

// Service provides registry operations on customers.
type Service struct {
	repo      Repository
	txManager tx.Manager
	audit     audit.Sink
}

// NewService creates a new customer registry service.
func NewService(repo Repository, txManager tx.Manager, sink audit.Sink) *Service {
	return &Service{repo: repo, txManager: txManager, audit: sink}
}

// Create validates and registers a customer.
func (s *Service) Create(ctx context.Context, c *Customer) error {
	if err := c.Validate(ctx); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, c); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.NewEvent(ctx, audit.ActionCreateCustomer, audit.ModuleCustomers,
			"customer", c.ID.String(), map[string]any{"name": c.FullName()}))
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "customer created", "id", c.ID)
	return nil
}

// Get returns a customer by id.
func (s *Service) Get(ctx context.Context, customerID id.ID) (*Customer, error) {
	return s.repo.GetByID(ctx, customerID)
}

// List returns customers matching f.
func (s *Service) List(ctx context.Context, f ListFilter) (domain.ListResult[*Customer], error) {
	f.Normalize()
	return s.repo.List(ctx, f)
}

// Update changes contact data. Deceased customers cannot be updated.
func (s *Service) Update(ctx context.Context, customerID id.ID, upd ContactUpdate) (*Customer, error) {
	var c *Customer
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.repo.GetForUpdate(ctx, customerID)
		if err != nil {
			return err
		}
		if err := upd.Apply(c); err != nil {
			return err
		}
		if err := c.Validate(ctx); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, c); err != nil {
			return fmt.Errorf("update customer: %w", err)
		}
		return s.audit.Record(ctx, audit.NewEvent(ctx, audit.ActionUpdateCustomer, audit.ModuleCustomers,
			"customer", c.ID.String(), nil))
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Deactivate marks a customer inactive.
func (s *Service) Deactivate(ctx context.Context, customerID id.ID) (*Customer, error) {
	var c *Customer
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.repo.GetForUpdate(ctx, customerID)
		if err != nil {
			return err
		}
		if err := c.Deactivate(); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, c); err != nil {
			return fmt.Errorf("update customer: %w", err)
		}
		return s.audit.Record(ctx, audit.NewEvent(ctx, audit.ActionDeactivateCustomer, audit.ModuleCustomers,
			"customer", c.ID.String(), nil))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "customer deactivated", "id", c.ID)
	return c, nil
}

// Activate returns an inactive customer to active.
func (s *Service) Activate(ctx context.Context, customerID id.ID) (*Customer, error) {
	var c *Customer
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.repo.GetForUpdate(ctx, customerID)
		if err != nil {
			return err
		}
		if err := c.Activate(); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, c); err != nil {
			return fmt.Errorf("update customer: %w", err)
		}
		return s.audit.Record(ctx, audit.NewEvent(ctx, audit.ActionActivateCustomer, audit.ModuleCustomers,
			"customer", c.ID.String(), nil))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "customer activated", "id", c.ID)
	return c, nil
}
