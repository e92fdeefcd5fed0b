package beneficiary

import (
	"context"
	"fmt"
	"time"

	"columbarium/internal/core/apperror"
	"columbarium/internal/core/id"
	"columbarium/internal/core/tx"
	"columbarium/internal/domain/audit"
	"columbarium/internal/domain/customer"
	"columbarium/internal/domain/niche"
	"columbarium/pkg/logger"
)

// Service manages the beneficiary ledger.
type Service struct {
	repo      Repository
	niches    niche.Repository
	customers customer.Repository
	txManager tx.Manager
	audit     audit.Sink
	now       func() time.Time
}

// NewService creates a new beneficiary ledger service.
func NewService(
	repo Repository,
	niches niche.Repository,
	customers customer.Repository,
	txManager tx.Manager,
	sink audit.Sink,
) *Service {
	return &Service{
		repo:      repo,
		niches:    niches,
		customers: customers,
		txManager: txManager,
		audit:     sink,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ListByNiche returns the ledger of a niche ordered by priority.
func (s *Service) ListByNiche(ctx context.Context, nicheID id.ID, activeOnly bool) ([]*Beneficiary, error) {
	if _, err := s.niches.GetByID(ctx, nicheID); err != nil {
		return nil, err
	}
	return s.repo.ListByNiche(ctx, nicheID, activeOnly)
}

// ListByDesignator returns every entry designated by a customer.
func (s *Service) ListByDesignator(ctx context.Context, customerID id.ID) ([]*Beneficiary, error) {
	if _, err := s.customers.GetByID(ctx, customerID); err != nil {
		return nil, err
	}
	return s.repo.ListByDesignator(ctx, customerID)
}

// NextForNiche returns the entry that would inherit the niche next.
func (s *Service) NextForNiche(ctx context.Context, nicheID id.ID) (*Beneficiary, error) {
	list, err := s.ListByNiche(ctx, nicheID, true)
	if err != nil {
		return nil, err
	}
	next := Next(list)
	if next == nil {
		return nil, errNoActive(nicheID)
	}
	return next, nil
}

// ReplaceForNiche swaps the active set of a niche for a new designation.
//
// A sold niche can only be designated by its owner. An unsold niche can be
// pre-designated by the customer who is about to buy it. The previous active
// set is inactivated with reason "removed".
func (s *Service) ReplaceForNiche(ctx context.Context, nicheID, designatorID id.ID, inputs []Input) ([]*Beneficiary, error) {
	now := s.now()
	set := make([]*Beneficiary, 0, len(inputs))
	for _, in := range inputs {
		set = append(set, New(nicheID, designatorID, in, now))
	}
	if err := ValidateSet(set); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		n, err := s.niches.GetForUpdate(ctx, nicheID)
		if err != nil {
			return err
		}
		if n.Status == niche.StatusSold && !n.IsOwnedBy(designatorID) {
			return apperror.NewBadRequest(apperror.CodeNotCurrentOwner,
				"Only the current owner can designate beneficiaries of a sold niche").
				WithDetail("nicheId", nicheID.String())
		}
		if n.Status == niche.StatusDisabled {
			return n.RequireAvailable()
		}

		c, err := s.customers.GetByID(ctx, designatorID)
		if err != nil {
			return err
		}
		if err := c.RequireActive(); err != nil {
			return err
		}

		current, err := s.repo.ListActiveByNicheForUpdate(ctx, nicheID)
		if err != nil {
			return fmt.Errorf("list active beneficiaries: %w", err)
		}
		for _, b := range current {
			b.Deactivate(ReasonRemoved, now)
			if err := s.repo.Update(ctx, b); err != nil {
				return fmt.Errorf("deactivate beneficiary: %w", err)
			}
		}

		if err := s.repo.CreateMany(ctx, set); err != nil {
			return fmt.Errorf("create beneficiaries: %w", err)
		}

		return s.audit.Record(ctx, audit.NewEvent(ctx, audit.ActionUpdateBeneficiaries, audit.ModuleBeneficiary,
			"niche", nicheID.String(), map[string]any{
				"niche":    n.Code,
				"removed":  len(current),
				"assigned": len(set),
			}))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "beneficiaries replaced", "nicheId", nicheID, "count", len(set))
	return set, nil
}

// MarkDeceased flags a beneficiary as deceased.
func (s *Service) MarkDeceased(ctx context.Context, beneficiaryID id.ID, date time.Time, notes string) (*Beneficiary, error) {
	var b *Beneficiary
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		b, err = s.repo.GetByID(ctx, beneficiaryID)
		if err != nil {
			return err
		}
		if err := b.MarkDeceased(date, notes, s.now()); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, b); err != nil {
			return fmt.Errorf("update beneficiary: %w", err)
		}
		return s.audit.Record(ctx, audit.NewEvent(ctx, audit.ActionMarkBeneficiaryDeceased, audit.ModuleBeneficiary,
			"beneficiary", b.ID.String(), map[string]any{"nicheId": b.NicheID.String()}))
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// SalePlan describes the ledger changes a sale of one niche requires.
type SalePlan struct {
	NicheID id.ID
	// Import holds entries created from the buyer's legacy list.
	Import []*Beneficiary
	// Stale holds active entries designated by someone other than the buyer.
	Stale []*Beneficiary
}

// PlanForSale checks that buyer has designated at least MinActive active
// beneficiaries for nicheID, either in the ledger or through the legacy list
// on the customer record. It does not write.
func (s *Service) PlanForSale(ctx context.Context, nicheID id.ID, buyer *customer.Customer) (*SalePlan, error) {
	active, err := s.repo.ListActiveByNicheForUpdate(ctx, nicheID)
	if err != nil {
		return nil, fmt.Errorf("list active beneficiaries: %w", err)
	}

	plan := &SalePlan{NicheID: nicheID}
	own := 0
	for _, b := range active {
		if b.DesignatedBy == buyer.ID {
			own++
		} else {
			plan.Stale = append(plan.Stale, b)
		}
	}

	if own >= MinActive {
		return plan, nil
	}

	if own == 0 && len(buyer.LegacyBeneficiaries) >= MinActive {
		imported := FromLegacy(nicheID, buyer.ID, buyer.LegacyBeneficiaries, s.now())
		if err := ValidateSet(imported); err != nil {
			return nil, err
		}
		plan.Import = imported
		return plan, nil
	}

	return nil, apperror.NewBadRequest(apperror.CodeInsufficientBenefs,
		"Niche requires at least 3 active beneficiaries before it can be sold").
		WithDetail("nicheId", nicheID.String()).
		WithDetail("designated", own).
		WithDetail("legacy", len(buyer.LegacyBeneficiaries))
}

// ApplySalePlan writes the ledger changes of a plan. Must run inside the sale transaction.
func (s *Service) ApplySalePlan(ctx context.Context, plan *SalePlan) error {
	now := s.now()
	for _, b := range plan.Stale {
		b.Deactivate(ReasonRemoved, now)
		if err := s.repo.Update(ctx, b); err != nil {
			return fmt.Errorf("deactivate stale beneficiary: %w", err)
		}
	}
	if len(plan.Import) > 0 {
		if err := s.repo.CreateMany(ctx, plan.Import); err != nil {
			return fmt.Errorf("import beneficiaries: %w", err)
		}
	}
	return nil
}

// SelectHeir locks the active set of a niche and returns the next heir.
// Fails with NO_ACTIVE_BENEFICIARY when nobody can inherit.
func (s *Service) SelectHeir(ctx context.Context, nicheID id.ID) (*Beneficiary, []*Beneficiary, error) {
	active, err := s.repo.ListActiveByNicheForUpdate(ctx, nicheID)
	if err != nil {
		return nil, nil, fmt.Errorf("list active beneficiaries: %w", err)
	}
	heir := Next(active)
	if heir == nil {
		return nil, nil, errNoActive(nicheID)
	}
	return heir, active, nil
}

// RepointActive makes newOwner the designator of every active entry of a niche.
// Returns the number of entries moved.
func (s *Service) RepointActive(ctx context.Context, nicheID, newOwner id.ID) (int, error) {
	active, err := s.repo.ListActiveByNicheForUpdate(ctx, nicheID)
	if err != nil {
		return 0, fmt.Errorf("list active beneficiaries: %w", err)
	}
	now := s.now()
	moved := 0
	for _, b := range active {
		if b.DesignatedBy == newOwner {
			continue
		}
		b.Reassign(newOwner, now)
		if err := s.repo.Update(ctx, b); err != nil {
			return moved, fmt.Errorf("reassign beneficiary: %w", err)
		}
		moved++
	}
	return moved, nil
}

// SaveInherited persists the entry that became owner.
func (s *Service) SaveInherited(ctx context.Context, b *Beneficiary) error {
	if err := s.repo.Update(ctx, b); err != nil {
		return fmt.Errorf("update inheriting beneficiary: %w", err)
	}
	return nil
}

func errNoActive(nicheID id.ID) error {
	return apperror.NewBadRequest(apperror.CodeNoActiveBeneficiary,
		"Niche has no active beneficiary to inherit it").
		WithDetail("nicheId", nicheID.String())
}

