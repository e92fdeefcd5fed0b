package sale

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"columbarium/internal/core/apperror"
	appctx "columbarium/internal/core/context"
	"columbarium/internal/core/id"
	"columbarium/internal/core/numerator"
	"columbarium/internal/core/rules"
	"columbarium/internal/core/tx"
	"columbarium/internal/core/types"
	"columbarium/internal/domain"
	"columbarium/internal/domain/amortization"
	"columbarium/internal/domain/audit"
	"columbarium/internal/domain/beneficiary"
	"columbarium/internal/domain/customer"
	"columbarium/internal/domain/niche"
	"columbarium/internal/domain/payment"
	"columbarium/pkg/logger"
)

var tracer = otel.Tracer("columbarium/sale")

// MaxBulkNiches is the largest number of niches a bulk sale may cover.
const MaxBulkNiches = 100

// Config wires the collaborators of the sale services.
type Config struct {
	Sales         Repository
	Niches        niche.Repository
	Customers     customer.Repository
	Payments      payment.Repository
	Beneficiaries *beneficiary.Service
	Numerator     numerator.Generator
	TxManager     tx.Manager
	Audit         audit.Sink

	// Policy is the optional admission rule evaluated on every new sale.
	Policy *rules.SalePolicy
	// Months is the credit term; zero means amortization.DefaultMonths.
	Months int
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Service creates, cancels and queries sales.
type Service struct {
	sales     Repository
	niches    niche.Repository
	customers customer.Repository
	payments  payment.Repository
	ledger    *beneficiary.Service
	numerator numerator.Generator
	txManager tx.Manager
	audit     audit.Sink
	policy    *rules.SalePolicy
	months    int
	now       func() time.Time
}

// NewService creates a new sale service.
func NewService(cfg Config) *Service {
	months := cfg.Months
	if months <= 0 {
		months = amortization.DefaultMonths
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		sales:     cfg.Sales,
		niches:    cfg.Niches,
		customers: cfg.Customers,
		payments:  cfg.Payments,
		ledger:    cfg.Beneficiaries,
		numerator: cfg.Numerator,
		txManager: cfg.TxManager,
		audit:     cfg.Audit,
		policy:    cfg.Policy,
		months:    months,
		now:       clock,
	}
}

// CreateInput is the request to sell niches on credit.
type CreateInput struct {
	NicheIDs    []id.ID
	CustomerID  id.ID
	TotalAmount types.Money
	DownPayment types.Money
	// Method of the down payment; defaults to cash.
	Method payment.Method
}

// CreateResult is the outcome of a sale creation.
type CreateResult struct {
	Sale    *Sale
	Payment *payment.Payment
	Niches  []*niche.Niche
}

// CreateSale sells one niche on credit.
func (s *Service) CreateSale(ctx context.Context, nicheID, customerID id.ID, total, down types.Money) (*CreateResult, error) {
	return s.create(ctx, CreateInput{
		NicheIDs:    []id.ID{nicheID},
		CustomerID:  customerID,
		TotalAmount: total,
		DownPayment: down,
	}, false)
}

// CreateBulkSale sells 1 to 100 niches under a single sale. One unavailable
// niche aborts the whole batch before anything is written.
func (s *Service) CreateBulkSale(ctx context.Context, in CreateInput) (*CreateResult, error) {
	if len(in.NicheIDs) == 0 {
		return nil, apperror.NewValidation("select at least one niche").WithDetail("field", "nicheIds")
	}
	if len(in.NicheIDs) > MaxBulkNiches {
		return nil, apperror.NewValidation("a bulk sale cannot exceed 100 niches").
			WithDetail("field", "nicheIds").
			WithDetail("count", len(in.NicheIDs))
	}
	seen := make(map[id.ID]struct{}, len(in.NicheIDs))
	for _, nid := range in.NicheIDs {
		if _, dup := seen[nid]; dup {
			return nil, apperror.NewValidation("duplicate niche in bulk sale").WithDetail("nicheId", nid.String())
		}
		seen[nid] = struct{}{}
	}
	return s.create(ctx, in, true)
}

func validateAmounts(total, down types.Money) error {
	if !total.IsPositive() {
		return apperror.NewValidation("total amount must be greater than zero").WithDetail("field", "totalAmount")
	}
	if !down.IsPositive() {
		return apperror.NewValidation("down payment must be greater than zero").WithDetail("field", "downPayment")
	}
	if !down.LessThan(total) {
		return apperror.NewValidation("down payment must be less than total amount").
			WithDetail("field", "downPayment").
			WithDetail("totalAmount", total.String()).
			WithDetail("downPayment", down.String())
	}
	return nil
}

func (s *Service) create(ctx context.Context, in CreateInput, bulk bool) (*CreateResult, error) {
	op := "sale.CreateSale"
	if bulk {
		op = "sale.CreateBulkSale"
	}
	ctx, span := tracer.Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.Int("niche.count", len(in.NicheIDs)))

	if err := validateAmounts(in.TotalAmount, in.DownPayment); err != nil {
		return nil, err
	}

	now := s.now()
	actor := appctx.GetUserID(ctx)
	res := &CreateResult{}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		buyer, err := s.customers.GetForUpdate(ctx, in.CustomerID)
		if err != nil {
			return err
		}
		if err := buyer.RequireActive(); err != nil {
			return err
		}

		niches, err := s.lockNiches(ctx, in.NicheIDs)
		if err != nil {
			return err
		}
		if err := requireAllAvailable(niches); err != nil {
			return err
		}

		nichePrice := types.Zero()
		for _, n := range niches {
			nichePrice = nichePrice.Add(n.Price)
		}
		if err := s.policy.Check(rules.SaleFacts{
			TotalAmount: in.TotalAmount,
			DownPayment: in.DownPayment,
			NichePrice:  nichePrice,
			NicheCount:  len(niches),
		}); err != nil {
			return err
		}

		plans := make([]*beneficiary.SalePlan, 0, len(niches))
		for _, n := range niches {
			plan, err := s.ledger.PlanForSale(ctx, n.ID, buyer)
			if err != nil {
				return err
			}
			plans = append(plans, plan)
		}

		balance := in.TotalAmount.Sub(in.DownPayment)
		table, err := amortization.GenerateTable(balance, s.months, now)
		if err != nil {
			return err
		}

		prefix := numerator.PrefixSale
		if bulk {
			prefix = numerator.PrefixBulkSale
		}
		folio, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(prefix), now)
		if err != nil {
			return fmt.Errorf("generate folio: %w", err)
		}

		sale := &Sale{
			BaseEntity:         newBase(now),
			Folio:              folio,
			NicheID:            in.NicheIDs[0],
			NicheIDs:           append([]id.ID(nil), in.NicheIDs...),
			OriginalCustomerID: buyer.ID,
			CurrentCustomerID:  buyer.ID,
			CustomerID:         buyer.ID,
			TotalAmount:        in.TotalAmount,
			DownPayment:        in.DownPayment,
			Balance:            balance,
			TotalPaid:          in.DownPayment,
			Months:             s.months,
			Status:             StatusActive,
			CreatedBy:          actor,
			Installments:       table,
		}
		if bulk {
			sale.Notes = fmt.Sprintf("Bulk sale: %d niches (%s)", len(niches), strings.Join(codes(niches), ", "))
		}
		if err := s.sales.Create(ctx, sale); err != nil {
			return fmt.Errorf("create sale: %w", err)
		}

		for _, plan := range plans {
			if err := s.ledger.ApplySalePlan(ctx, plan); err != nil {
				return err
			}
		}

		receipt, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(numerator.PrefixReceipt), now)
		if err != nil {
			return fmt.Errorf("generate receipt number: %w", err)
		}
		down, err := payment.New(payment.Common{
			ReceiptNumber: receipt,
			CustomerID:    buyer.ID,
			Amount:        in.DownPayment,
			Method:        in.Method,
			PaidAt:        now,
			RegisteredBy:  actor,
		}, payment.DownPayment{
			SaleID:  sale.ID,
			Balance: payment.BalanceSnapshot{Before: in.TotalAmount, After: balance},
		})
		if err != nil {
			return err
		}
		if err := s.payments.Create(ctx, down); err != nil {
			return fmt.Errorf("create down payment: %w", err)
		}

		for _, n := range niches {
			entries := n.Sell(buyer.ID, "Sale "+folio, actor, now)
			if err := s.niches.Update(ctx, n); err != nil {
				return fmt.Errorf("update niche %s: %w", n.Code, err)
			}
			if err := s.niches.SaveOwnership(ctx, entries); err != nil {
				return fmt.Errorf("save ownership %s: %w", n.Code, err)
			}
		}

		action := audit.ActionCreateSale
		if bulk {
			action = audit.ActionCreateBulkSale
		}
		if err := s.audit.Record(ctx, audit.NewEvent(ctx, action, audit.ModuleSales, "sale", sale.ID.String(),
			map[string]any{
				"folio":       folio,
				"customerId":  buyer.ID.String(),
				"niches":      codes(niches),
				"totalAmount": in.TotalAmount.String(),
				"downPayment": in.DownPayment.String(),
			})); err != nil {
			return fmt.Errorf("audit: %w", err)
		}

		res.Sale = sale
		res.Payment = down
		res.Niches = niches
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "sale created",
		"folio", res.Sale.Folio,
		"niches", codes(res.Niches),
		"receipt", res.Payment.ReceiptNumber)
	return res, nil
}

// lockNiches loads every niche with a row lock, in id order to keep lock
// acquisition consistent across concurrent sales. The result follows ids order.
func (s *Service) lockNiches(ctx context.Context, ids []id.ID) ([]*niche.Niche, error) {
	sorted := append([]id.ID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })

	byID := make(map[id.ID]*niche.Niche, len(ids))
	for _, nid := range sorted {
		n, err := s.niches.GetForUpdate(ctx, nid)
		if err != nil {
			return nil, err
		}
		byID[nid] = n
	}

	out := make([]*niche.Niche, len(ids))
	for i, nid := range ids {
		out[i] = byID[nid]
	}
	return out, nil
}

func requireAllAvailable(niches []*niche.Niche) error {
	var unavailable []string
	for _, n := range niches {
		if !n.IsAvailable() {
			unavailable = append(unavailable, n.Code)
		}
	}
	if len(unavailable) == 0 {
		return nil
	}
	if len(niches) == 1 {
		return niches[0].RequireAvailable()
	}
	return apperror.NewBadRequest(apperror.CodeNicheUnavailable, "Some niches are not available").
		WithDetail("unavailable", unavailable)
}

// CancelInput is the request to cancel a sale.
type CancelInput struct {
	SaleID       id.ID
	Reason       string
	RefundAmount types.Money
	RefundMethod payment.Method
	RefundNotes  string
}

// CancelResult is the outcome of a cancellation.
type CancelResult struct {
	Sale   *Sale
	Niches []*niche.Niche
	Refund *Refund
}

// CancelSale terminates a sale, releases its niches and records the refund.
func (s *Service) CancelSale(ctx context.Context, in CancelInput) (*CancelResult, error) {
	ctx, span := tracer.Start(ctx, "sale.CancelSale")
	defer span.End()
	span.SetAttributes(attribute.String("sale.id", in.SaleID.String()))

	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, apperror.NewValidation("cancellation reason is required").WithDetail("field", "reason")
	}
	if in.RefundAmount.IsNegative() {
		return nil, apperror.NewValidation("refund amount cannot be negative").WithDetail("field", "refundAmount")
	}
	method := in.RefundMethod
	if method == "" {
		method = payment.MethodCash
	}

	now := s.now()
	actor := appctx.GetUserID(ctx)
	res := &CancelResult{}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sale, err := s.sales.GetForUpdate(ctx, in.SaleID)
		if err != nil {
			return err
		}
		if err := sale.Cancel(actor, reason, in.RefundAmount, method, in.RefundNotes, now); err != nil {
			return err
		}
		if err := s.sales.Update(ctx, sale); err != nil {
			return fmt.Errorf("update sale: %w", err)
		}

		note := fmt.Sprintf("Sale cancelled: %s. Reason: %s", sale.Folio, reason)
		niches, err := s.lockNiches(ctx, sale.NicheIDs)
		if err != nil {
			return err
		}
		for _, n := range niches {
			entries := n.ReleaseWithNote(note, now)
			if err := s.niches.Update(ctx, n); err != nil {
				return fmt.Errorf("release niche %s: %w", n.Code, err)
			}
			if err := s.niches.SaveOwnership(ctx, entries); err != nil {
				return fmt.Errorf("close ownership %s: %w", n.Code, err)
			}
		}

		var refund *Refund
		if in.RefundAmount.IsPositive() {
			receipt, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(numerator.PrefixRefund), now)
			if err != nil {
				return fmt.Errorf("generate refund number: %w", err)
			}
			refund = &Refund{
				ID:            id.New(),
				SaleID:        sale.ID,
				CustomerID:    sale.CurrentCustomerID,
				ReceiptNumber: receipt,
				Amount:        in.RefundAmount,
				Method:        method,
				Reason:        reason,
				Notes:         strings.TrimSpace(in.RefundNotes),
				RefundedBy:    actor,
				RefundDate:    now,
				Status:        RefundCompleted,
			}
			if err := s.sales.CreateRefund(ctx, refund); err != nil {
				return fmt.Errorf("create refund: %w", err)
			}
		}

		if err := s.audit.Record(ctx, audit.NewEvent(ctx, audit.ActionCancelSale, audit.ModuleSales, "sale", sale.ID.String(),
			map[string]any{
				"folio":        sale.Folio,
				"niches":       codes(niches),
				"reason":       reason,
				"refundAmount": in.RefundAmount.String(),
				"refundMethod": string(method),
			})); err != nil {
			return fmt.Errorf("audit: %w", err)
		}

		res.Sale = sale
		res.Niches = niches
		res.Refund = refund
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "sale cancelled", "folio", res.Sale.Folio, "refund", in.RefundAmount.String())
	return res, nil
}

// Get returns a sale after refreshing overdue installments. The refresh is persisted.
func (s *Service) Get(ctx context.Context, saleID id.ID) (*Sale, error) {
	var sale *Sale
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		sale, err = s.sales.GetForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.RefreshOverdue(s.now()) {
			if err := s.sales.Update(ctx, sale); err != nil {
				return fmt.Errorf("refresh overdue: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// List returns sales matching f.
func (s *Service) List(ctx context.Context, f ListFilter) (domain.ListResult[*Sale], error) {
	f.Normalize()
	return s.sales.List(ctx, f)
}

// Payments returns every payment of a sale, oldest first.
func (s *Service) Payments(ctx context.Context, saleID id.ID) ([]*payment.Payment, error) {
	if _, err := s.sales.GetByID(ctx, saleID); err != nil {
		return nil, err
	}
	return s.payments.ListBySale(ctx, saleID)
}

// Refunds returns every refund of a sale.
func (s *Service) Refunds(ctx context.Context, saleID id.ID) ([]*Refund, error) {
	if _, err := s.sales.GetByID(ctx, saleID); err != nil {
		return nil, err
	}
	return s.sales.ListRefunds(ctx, saleID)
}

func codes(niches []*niche.Niche) []string {
	out := make([]string, len(niches))
	for i, n := range niches {
		out[i] = n.Code
	}
	return out
}
