package sale

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"columbarium/internal/core/apperror"
	appctx "columbarium/internal/core/context"
	"columbarium/internal/core/id"
	"columbarium/internal/core/numerator"
	"columbarium/internal/core/tx"
	"columbarium/internal/core/types"
	"columbarium/internal/domain/amortization"
	"columbarium/internal/domain/audit"
	"columbarium/internal/domain/payment"
	"columbarium/pkg/logger"
)

// PaymentInput is the request to register a payment against a sale.
type PaymentInput struct {
	SaleID              id.ID
	Amount              types.Money
	Method              payment.Method
	Notes               string
	Mode                amortization.Mode
	SpecificInstallment int
	// Concept is monthly_payment (default) or extra.
	Concept payment.Concept
}

// PaymentResult is the outcome of a registered payment.
type PaymentResult struct {
	Payment      *payment.Payment
	Sale         *Sale
	Distribution amortization.Distribution
}

// PaymentService applies payments to sale amortization tables.
type PaymentService struct {
	sales     Repository
	payments  payment.Repository
	numerator numerator.Generator
	txManager tx.Manager
	audit     audit.Sink
	now       func() time.Time
}

// NewPaymentService creates a new payment service from the shared sale config.
func NewPaymentService(cfg Config) *PaymentService {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &PaymentService{
		sales:     cfg.Sales,
		payments:  cfg.Payments,
		numerator: cfg.Numerator,
		txManager: cfg.TxManager,
		audit:     cfg.Audit,
		now:       clock,
	}
}

// RegisterPayment applies a payment to the sale's table in free or specific mode.
//
// The whole amount must be applicable: an amount that exceeds what is still
// owed (overall, or on the named installment) is rejected with OVERPAYMENT.
func (s *PaymentService) RegisterPayment(ctx context.Context, in PaymentInput) (*PaymentResult, error) {
	ctx, span := tracer.Start(ctx, "sale.RegisterPayment")
	defer span.End()
	span.SetAttributes(
		attribute.String("sale.id", in.SaleID.String()),
		attribute.String("payment.mode", string(in.Mode)),
	)

	if !in.Amount.IsPositive() {
		return nil, apperror.NewValidation("amount must be greater than zero").WithDetail("field", "amount")
	}
	mode := in.Mode
	if mode == "" {
		mode = amortization.ModeFree
	}
	if mode == amortization.ModeSpecific && in.SpecificInstallment <= 0 {
		return nil, apperror.NewValidation("specific mode requires an installment number").
			WithDetail("field", "specificInstallment")
	}
	amount := types.Round2(in.Amount)

	now := s.now()
	res := &PaymentResult{}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sale, err := s.sales.GetForUpdate(ctx, in.SaleID)
		if err != nil {
			return err
		}
		if err := sale.RequirePayable(); err != nil {
			return err
		}
		if mode == amortization.ModeSpecific && (in.SpecificInstallment > len(sale.Installments)) {
			return apperror.NewValidation("installment does not exist").
				WithDetail("field", "specificInstallment").
				WithDetail("value", in.SpecificInstallment)
		}

		dist := amortization.CalculateDistribution(sale.Installments, amount, mode, in.SpecificInstallment)
		if dist.IsEmpty() {
			return apperror.NewBadRequest(apperror.CodeNothingToApply, "Payment does not apply to any installment").
				WithDetail("folio", sale.Folio).
				WithDetail("mode", string(mode))
		}
		if dist.Unapplied.IsPositive() {
			return apperror.NewBadRequest(apperror.CodeOverpayment, "Payment exceeds the amount owed").
				WithDetail("amount", amount.String()).
				WithDetail("applicable", dist.Applied.String()).
				WithDetail("excess", dist.Unapplied.String())
		}

		receipt, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(numerator.PrefixReceipt), now)
		if err != nil {
			return fmt.Errorf("generate receipt number: %w", err)
		}

		balanceBefore := sale.Balance
		variant, err := payment.InstallmentVariant(in.Concept, payment.InstallmentPayment{
			SaleID:              sale.ID,
			Mode:                mode,
			SpecificInstallment: in.SpecificInstallment,
			Balance: payment.BalanceSnapshot{
				Before: balanceBefore,
				After:  types.ClampZero(balanceBefore.Sub(amount)),
			},
			AppliedTo: dist.Lines,
		})
		if err != nil {
			return err
		}
		p, err := payment.New(payment.Common{
			ReceiptNumber: receipt,
			CustomerID:    sale.CurrentCustomerID,
			Amount:        amount,
			Method:        in.Method,
			PaidAt:        now,
			RegisteredBy:  appctx.GetUserID(ctx),
			Notes:         in.Notes,
		}, variant)
		if err != nil {
			return err
		}

		sale.ApplyPayment(p.ID, amount, dist, now)
		if err := sale.CheckBalance(); err != nil {
			return err
		}
		if err := s.payments.Create(ctx, p); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		if err := s.sales.Update(ctx, sale); err != nil {
			return fmt.Errorf("update sale: %w", err)
		}

		if err := s.audit.Record(ctx, audit.NewEvent(ctx, audit.ActionRegisterPayment, audit.ModulePayments,
			"payment", p.ID.String(), map[string]any{
				"folio":         sale.Folio,
				"receiptNumber": receipt,
				"amount":        amount.String(),
				"mode":          string(mode),
				"appliedTo":     dist.AppliedTo(),
				"balanceBefore": balanceBefore.String(),
				"balanceAfter":  sale.Balance.String(),
			})); err != nil {
			return fmt.Errorf("audit: %w", err)
		}

		res.Payment = p
		res.Sale = sale
		res.Distribution = dist
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "payment registered",
		"folio", res.Sale.Folio,
		"receipt", res.Payment.ReceiptNumber,
		"amount", amount.String(),
		"status", string(res.Sale.Status))
	return res, nil
}
