package payment

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"columbarium/internal/core/apperror"
	appctx "columbarium/internal/core/context"
	"columbarium/internal/core/id"
	"columbarium/internal/core/numerator"
	"columbarium/internal/core/tx"
	"columbarium/internal/core/types"
	"columbarium/internal/domain/audit"
	"columbarium/internal/domain/niche"
	"columbarium/pkg/logger"
)

var tracer = otel.Tracer("columbarium/payment")

// MaintenanceInput is the request to register an annual maintenance fee.
type MaintenanceInput struct {
	NicheID id.ID
	Year    int
	Amount  types.Money
	Method  Method
	Notes   string
}

// MaintenanceService registers annual maintenance payments of sold niches.
type MaintenanceService struct {
	repo      Repository
	niches    niche.Repository
	numerator numerator.Generator
	txManager tx.Manager
	audit     audit.Sink
	now       func() time.Time
}

// NewMaintenanceService creates a new maintenance payment service.
func NewMaintenanceService(
	repo Repository,
	niches niche.Repository,
	numerator numerator.Generator,
	txManager tx.Manager,
	sink audit.Sink,
) *MaintenanceService {
	return &MaintenanceService{
		repo:      repo,
		niches:    niches,
		numerator: numerator,
		txManager: txManager,
		audit:     sink,
		now:       time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *MaintenanceService) WithClock(now func() time.Time) *MaintenanceService {
	s.now = now
	return s
}

// Register records the maintenance fee of a niche for a year.
// One payment per niche and year; the niche must be sold.
func (s *MaintenanceService) Register(ctx context.Context, in MaintenanceInput) (*Payment, *niche.Niche, error) {
	ctx, span := tracer.Start(ctx, "payment.RegisterMaintenance")
	defer span.End()
	span.SetAttributes(attribute.String("niche.id", in.NicheID.String()), attribute.Int("year", in.Year))

	now := s.now()
	if in.Year > now.Year()+1 {
		return nil, nil, apperror.NewValidation("maintenance year cannot be later than next year").
			WithDetail("year", in.Year)
	}
	if !in.Amount.IsPositive() {
		return nil, nil, apperror.NewValidation("amount must be greater than zero").WithDetail("field", "amount")
	}

	var (
		p *Payment
		n *niche.Niche
	)
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.niches.GetForUpdate(ctx, in.NicheID)
		if err != nil {
			return err
		}
		if n.Status != niche.StatusSold || n.CurrentOwnerID == nil {
			return apperror.NewBadRequest(apperror.CodeInvalidStateTransition,
				"Maintenance can only be paid for a sold niche with an owner").
				WithDetail("code", n.Code).
				WithDetail("status", string(n.Status))
		}

		exists, err := s.repo.MaintenanceExists(ctx, n.ID, in.Year)
		if err != nil {
			return fmt.Errorf("check maintenance: %w", err)
		}
		if exists {
			return apperror.NewConflictCode(apperror.CodeMaintenancePaid, "Maintenance already paid for this year").
				WithDetail("code", n.Code).
				WithDetail("year", in.Year)
		}

		receipt, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(numerator.PrefixMaintenance), now)
		if err != nil {
			return fmt.Errorf("generate receipt number: %w", err)
		}

		p, err = New(Common{
			ReceiptNumber: receipt,
			CustomerID:    *n.CurrentOwnerID,
			Amount:        in.Amount,
			Method:        in.Method,
			PaidAt:        now,
			RegisteredBy:  appctx.GetUserID(ctx),
			Notes:         in.Notes,
		}, MaintenancePayment{NicheID: n.ID, Year: in.Year})
		if err != nil {
			return err
		}
		if err := s.repo.Create(ctx, p); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		return s.audit.Record(ctx, audit.NewEvent(ctx, audit.ActionRegisterMaintenance, audit.ModulePayments,
			"payment", p.ID.String(), map[string]any{
				"niche":         n.Code,
				"year":          in.Year,
				"amount":        in.Amount.String(),
				"receiptNumber": receipt,
			}))
	})
	if err != nil {
		return nil, nil, err
	}

	logger.Info(ctx, "maintenance registered", "niche", n.Code, "year", in.Year, "receipt", p.ReceiptNumber)
	return p, n, nil
}

// ListByNiche returns maintenance payments of a niche, newest first.
func (s *MaintenanceService) ListByNiche(ctx context.Context, nicheID id.ID) ([]*Payment, error) {
	if _, err := s.niches.GetByID(ctx, nicheID); err != nil {
		return nil, err
	}
	return s.repo.ListMaintenanceByNiche(ctx, nicheID)
}
