package succession

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"columbarium/internal/core/apperror"
	appctx "columbarium/internal/core/context"
	"columbarium/internal/core/id"
	"columbarium/internal/core/tx"
	"columbarium/internal/domain/audit"
	"columbarium/internal/domain/beneficiary"
	"columbarium/internal/domain/customer"
	"columbarium/internal/domain/niche"
	"columbarium/internal/domain/sale"
	"columbarium/pkg/logger"
)

var tracer = otel.Tracer("columbarium/succession")

// Config wires the collaborators of the succession service.
type Config struct {
	Successions   Repository
	Niches        niche.Repository
	Customers     customer.Repository
	Sales         sale.Repository
	Beneficiaries *beneficiary.Service
	TxManager     tx.Manager
	Audit         audit.Sink
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Service registers successions and manual transfers.
type Service struct {
	repo      Repository
	niches    niche.Repository
	customers customer.Repository
	sales     sale.Repository
	ledger    *beneficiary.Service
	txManager tx.Manager
	audit     audit.Sink
	now       func() time.Time
}

// NewService creates a new succession service.
func NewService(cfg Config) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		repo:      cfg.Successions,
		niches:    cfg.Niches,
		customers: cfg.Customers,
		sales:     cfg.Sales,
		ledger:    cfg.Beneficiaries,
		txManager: cfg.TxManager,
		audit:     cfg.Audit,
		now:       clock,
	}
}

// RegisterInput is the request to register the death of a niche owner.
type RegisterInput struct {
	CustomerID   id.ID
	NicheID      id.ID
	DeceasedDate time.Time
	Notes        string
}

// Result summarises an ownership change.
type Result struct {
	Succession       *Succession
	Niche            *niche.Niche
	PreviousOwner    *customer.Customer
	NewOwner         *customer.Customer
	Heir             *beneficiary.Beneficiary
	Deceased         *niche.Deceased
	Sale             *sale.Sale
	Reassigned       int
	CustomerCreated  bool
	NeedsReconciling bool
}

// RegisterSuccession transfers a niche from its deceased owner to the next
// beneficiary in priority order. Without an eligible beneficiary nothing is
// written and NO_ACTIVE_BENEFICIARY is returned.
func (s *Service) RegisterSuccession(ctx context.Context, in RegisterInput) (*Result, error) {
	ctx, span := tracer.Start(ctx, "succession.RegisterSuccession")
	defer span.End()
	span.SetAttributes(
		attribute.String("niche.id", in.NicheID.String()),
		attribute.String("customer.id", in.CustomerID.String()),
	)

	now := s.now()
	if in.DeceasedDate.IsZero() {
		return nil, apperror.NewValidation("deceased date is required").WithDetail("field", "deceasedDate")
	}
	if in.DeceasedDate.After(now) {
		return nil, apperror.NewValidation("deceased date cannot be in the future").WithDetail("field", "deceasedDate")
	}
	notes := strings.TrimSpace(in.Notes)
	actor := appctx.GetUserID(ctx)
	res := &Result{}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		prev, err := s.customers.GetForUpdate(ctx, in.CustomerID)
		if err != nil {
			return err
		}
		n, err := s.niches.GetForUpdate(ctx, in.NicheID)
		if err != nil {
			return err
		}
		if !n.IsOwnedBy(prev.ID) {
			return apperror.NewBadRequest(apperror.CodeNotCurrentOwner, "Customer is not the current owner of the niche").
				WithDetail("customerId", prev.ID.String()).
				WithDetail("niche", n.Code)
		}

		heir, _, err := s.ledger.SelectHeir(ctx, n.ID)
		if err != nil {
			return err
		}

		newOwner, created, reconcile, err := s.resolveHeir(ctx, heir, n)
		if err != nil {
			return err
		}
		if newOwner.ID == prev.ID {
			return apperror.NewBadRequest(apperror.CodeInvalidStateTransition,
				"Beneficiary resolves to the deceased owner").
				WithDetail("beneficiaryId", heir.ID.String())
		}

		deceased := &niche.Deceased{
			ID:           id.New(),
			NicheID:      n.ID,
			CustomerID:   &prev.ID,
			FirstName:    prev.FirstName,
			LastName:     prev.LastName,
			DateOfDeath:  in.DeceasedDate,
			Notes:        notes,
			RegisteredBy: actor,
			CreatedAt:    now,
		}
		if err := s.niches.CreateDeceased(ctx, deceased); err != nil {
			return fmt.Errorf("create deceased record: %w", err)
		}

		transferNote := fmt.Sprintf("Succession after death of %s", prev.FullName())
		if notes != "" {
			transferNote += ". " + notes
		}
		if err := s.transferNiche(ctx, n, newOwner.ID, niche.ReasonSuccession, transferNote, actor, now); err != nil {
			return err
		}

		sl, err := s.transferSale(ctx, n.ID, newOwner.ID, TypeSuccession, transferNote, actor, now)
		if err != nil {
			return err
		}

		heir.Inherit(newOwner.ID, now)
		if err := s.ledger.SaveInherited(ctx, heir); err != nil {
			return err
		}

		moved, err := s.ledger.RepointActive(ctx, n.ID, newOwner.ID)
		if err != nil {
			return err
		}

		rec := &Succession{
			ID:                 id.New(),
			Type:               TypeSuccession,
			NicheID:            n.ID,
			SaleID:             saleID(sl),
			PreviousCustomerID: prev.ID,
			NewCustomerID:      newOwner.ID,
			BeneficiaryID:      &heir.ID,
			DeceasedID:         &deceased.ID,
			Date:               in.DeceasedDate,
			Notes:              notes,
			RegisteredBy:       actor,
			CreatedAt:          now,
		}
		if err := s.repo.Create(ctx, rec); err != nil {
			return fmt.Errorf("create succession: %w", err)
		}

		if prev.Status != customer.StatusDeceased {
			prev.MarkDeceased(in.DeceasedDate, deceased.ID)
			if err := s.customers.Update(ctx, prev); err != nil {
				return fmt.Errorf("mark owner deceased: %w", err)
			}
		}

		if err := s.audit.Record(ctx, audit.NewEvent(ctx, audit.ActionRegisterSuccession, audit.ModuleSuccession,
			"niche", n.ID.String(), map[string]any{
				"niche":                  n.Code,
				"previousOwner":          prev.ID.String(),
				"newOwner":               newOwner.ID.String(),
				"beneficiary":            heir.Name,
				"customerCreated":        created,
				"reconciliationRequired": reconcile,
				"reassigned":             moved,
			})); err != nil {
			return fmt.Errorf("audit: %w", err)
		}

		*res = Result{
			Succession:       rec,
			Niche:            n,
			PreviousOwner:    prev,
			NewOwner:         newOwner,
			Heir:             heir,
			Deceased:         deceased,
			Sale:             sl,
			Reassigned:       moved,
			CustomerCreated:  created,
			NeedsReconciling: reconcile,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "succession registered",
		"niche", res.Niche.Code,
		"previous_owner", res.PreviousOwner.ID,
		"new_owner", res.NewOwner.ID,
		"customer_created", res.CustomerCreated)
	return res, nil
}

// resolveHeir finds or creates the customer who inherits through b.
//
// A linked customer is reused (and reactivated if inactive). Otherwise a single
// active customer with the same phone and the same normalised name is reused.
// A phone match with a different name is never reused: a new customer is
// created and flagged for reconciliation.
func (s *Service) resolveHeir(ctx context.Context, b *beneficiary.Beneficiary, n *niche.Niche) (*customer.Customer, bool, bool, error) {
	if b.LinkedCustomerID != nil {
		c, err := s.customers.GetForUpdate(ctx, *b.LinkedCustomerID)
		if err != nil {
			return nil, false, false, err
		}
		if c.Status == customer.StatusInactive {
			c.Reactivate()
			if err := s.customers.Update(ctx, c); err != nil {
				return nil, false, false, fmt.Errorf("reactivate heir: %w", err)
			}
		}
		if err := c.RequireActive(); err != nil {
			return nil, false, false, err
		}
		return c, false, false, nil
	}

	reconcile := false
	if b.Phone != "" && b.Phone != customer.PlaceholderPhone {
		matches, err := s.customers.FindActiveByPhone(ctx, b.Phone)
		if err != nil {
			return nil, false, false, fmt.Errorf("find customer by phone: %w", err)
		}
		want := customer.NormalizeName(b.Name)
		var same []*customer.Customer
		for _, c := range matches {
			if customer.NormalizeName(c.FullName()) == want {
				same = append(same, c)
			}
		}
		if len(same) == 1 {
			return same[0], false, false, nil
		}
		reconcile = len(matches) > 0
	}

	c := customer.NewFromBeneficiary(b.Name, b.Phone, b.Email)
	c.ReconciliationRequired = reconcile
	c.Notes = fmt.Sprintf("Created by succession of niche %s", n.Code)
	if err := s.customers.Create(ctx, c); err != nil {
		return nil, false, false, fmt.Errorf("create heir customer: %w", err)
	}
	return c, true, reconcile, nil
}

// TransferInput is the request to move a niche to another existing customer.
type TransferInput struct {
	NicheID    id.ID
	NewOwnerID id.ID
	Reason     string
	Notes      string
}

// ManualTransfer moves a sold niche to an existing active customer without
// consulting the beneficiary chain. Remaining beneficiaries follow the new owner.
func (s *Service) ManualTransfer(ctx context.Context, in TransferInput) (*Result, error) {
	ctx, span := tracer.Start(ctx, "succession.ManualTransfer")
	defer span.End()
	span.SetAttributes(
		attribute.String("niche.id", in.NicheID.String()),
		attribute.String("new_owner.id", in.NewOwnerID.String()),
	)

	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, apperror.NewValidation("transfer reason is required").WithDetail("field", "reason")
	}
	notes := strings.TrimSpace(in.Notes)
	now := s.now()
	actor := appctx.GetUserID(ctx)
	res := &Result{}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		n, err := s.niches.GetForUpdate(ctx, in.NicheID)
		if err != nil {
			return err
		}
		if n.Status != niche.StatusSold || n.CurrentOwnerID == nil {
			return apperror.NewBadRequest(apperror.CodeInvalidStateTransition, "Only a sold niche can be transferred").
				WithDetail("niche", n.Code).
				WithDetail("status", string(n.Status))
		}
		newOwner, err := s.customers.GetForUpdate(ctx, in.NewOwnerID)
		if err != nil {
			return err
		}
		if err := newOwner.RequireActive(); err != nil {
			return err
		}
		if n.IsOwnedBy(newOwner.ID) {
			return apperror.NewValidation("customer already owns the niche").WithDetail("field", "newOwnerId")
		}
		prev, err := s.customers.GetByID(ctx, *n.CurrentOwnerID)
		if err != nil {
			return err
		}

		transferNote := "Manual transfer: " + reason
		if notes != "" {
			transferNote += ". " + notes
		}
		if err := s.transferNiche(ctx, n, newOwner.ID, niche.ReasonTransfer, transferNote, actor, now); err != nil {
			return err
		}

		sl, err := s.transferSale(ctx, n.ID, newOwner.ID, TypeTransfer, transferNote, actor, now)
		if err != nil {
			return err
		}

		moved, err := s.ledger.RepointActive(ctx, n.ID, newOwner.ID)
		if err != nil {
			return err
		}

		rec := &Succession{
			ID:                 id.New(),
			Type:               TypeTransfer,
			NicheID:            n.ID,
			SaleID:             saleID(sl),
			PreviousCustomerID: prev.ID,
			NewCustomerID:      newOwner.ID,
			Date:               now,
			Reason:             reason,
			Notes:              notes,
			RegisteredBy:       actor,
			CreatedAt:          now,
		}
		if err := s.repo.Create(ctx, rec); err != nil {
			return fmt.Errorf("create transfer: %w", err)
		}

		if err := s.audit.Record(ctx, audit.NewEvent(ctx, audit.ActionManualTransfer, audit.ModuleSuccession,
			"niche", n.ID.String(), map[string]any{
				"niche":         n.Code,
				"previousOwner": prev.ID.String(),
				"newOwner":      newOwner.ID.String(),
				"reason":        reason,
				"reassigned":    moved,
			})); err != nil {
			return fmt.Errorf("audit: %w", err)
		}

		*res = Result{
			Succession:    rec,
			Niche:         n,
			PreviousOwner: prev,
			NewOwner:      newOwner,
			Sale:          sl,
			Reassigned:    moved,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "niche transferred",
		"niche", res.Niche.Code,
		"previous_owner", res.PreviousOwner.ID,
		"new_owner", res.NewOwner.ID)
	return res, nil
}

// History returns the ownership changes of a niche, newest first.
func (s *Service) History(ctx context.Context, nicheID id.ID) ([]*Succession, error) {
	if _, err := s.niches.GetByID(ctx, nicheID); err != nil {
		return nil, err
	}
	return s.repo.ListByNiche(ctx, nicheID)
}

func (s *Service) transferNiche(ctx context.Context, n *niche.Niche, newOwner id.ID, reason niche.OwnershipReason, notes, actor string, at time.Time) error {
	entries := n.TransferOwnership(newOwner, reason, notes, actor, at)
	if err := s.niches.Update(ctx, n); err != nil {
		return fmt.Errorf("update niche: %w", err)
	}
	if err := s.niches.SaveOwnership(ctx, entries); err != nil {
		return fmt.Errorf("save ownership: %w", err)
	}
	return nil
}

// transferSale moves the open sale whose primary niche is nicheID to newOwner.
// Returns nil when there is none, which includes secondary niches of a bulk sale.
func (s *Service) transferSale(ctx context.Context, nicheID, newOwner id.ID, kind Type, notes, actor string, at time.Time) (*sale.Sale, error) {
	sl, err := s.sales.FindOpenByPrimaryNicheForUpdate(ctx, nicheID)
	if err != nil {
		return nil, fmt.Errorf("find open sale: %w", err)
	}
	if sl == nil {
		return nil, nil
	}
	sl.TransferTo(newOwner, string(kind), notes, actor, at)
	if err := s.sales.Update(ctx, sl); err != nil {
		return nil, fmt.Errorf("update sale: %w", err)
	}
	return sl, nil
}

func saleID(sl *sale.Sale) *id.ID {
	if sl == nil {
		return nil
	}
	v := sl.ID
	return &v
}
