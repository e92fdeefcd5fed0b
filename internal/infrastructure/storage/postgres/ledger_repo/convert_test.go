package ledger_repo

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"columbarium/internal/core/id"
	"columbarium/internal/domain/amortization"
	"columbarium/internal/domain/payment"
	"columbarium/internal/domain/sale"
)

func TestPaymentRow_InstallmentVariantKeepsAppliedLines(t *testing.T) {
	saleID := id.New()
	p := &payment.Payment{
		ID:            id.New(),
		ReceiptNumber: "REC-000001",
		CustomerID:    id.New(),
		Amount:        decimal.NewFromInt(1500),
		Method:        payment.MethodCard,
		PaidAt:        time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:        payment.StatusCompleted,
		Variant: payment.ExtraPayment{InstallmentPayment: payment.InstallmentPayment{
			SaleID:              saleID,
			Mode:                amortization.ModeSpecific,
			SpecificInstallment: 3,
			Balance:             payment.BalanceSnapshot{Before: decimal.NewFromInt(6000), After: decimal.NewFromInt(4500)},
			AppliedTo: []amortization.Line{{
				InstallmentNumber: 3,
				AppliedAmount:     decimal.NewFromInt(1500),
				RemainingBefore:   decimal.NewFromInt(2000),
				RemainingAfter:    decimal.NewFromInt(500),
			}},
		}},
	}

	row, err := toPaymentRow(p)
	require.NoError(t, err)
	assert.Equal(t, payment.ConceptExtra, row.Concept)
	require.NotNil(t, row.SaleID)
	assert.Equal(t, saleID, *row.SaleID)
	assert.Nil(t, row.NicheID)
	assert.Nil(t, row.Year)
	require.NotNil(t, row.SpecificInstallment)
	assert.Equal(t, 3, *row.SpecificInstallment)

	got, err := row.toPayment()
	require.NoError(t, err)
	v, ok := got.Variant.(payment.ExtraPayment)
	require.True(t, ok)
	assert.Equal(t, amortization.ModeSpecific, v.Mode)
	require.Len(t, v.AppliedTo, 1)
	assert.True(t, v.AppliedTo[0].RemainingAfter.Equal(decimal.NewFromInt(500)))
	assert.True(t, v.Balance.After.Equal(decimal.NewFromInt(4500)))
}

func TestPaymentRow_MaintenanceHasNoSale(t *testing.T) {
	nicheID := id.New()
	p := &payment.Payment{
		ID:         id.New(),
		CustomerID: id.New(),
		Amount:     decimal.NewFromInt(800),
		Variant:    payment.MaintenancePayment{NicheID: nicheID, Year: 2026},
	}

	row, err := toPaymentRow(p)
	require.NoError(t, err)
	assert.Nil(t, row.SaleID)
	assert.Nil(t, row.AppliedTo)
	assert.False(t, row.BalanceBefore.Valid)

	got, err := row.toPayment()
	require.NoError(t, err)
	assert.Equal(t, payment.MaintenancePayment{NicheID: nicheID, Year: 2026}, got.Variant)
}

func TestPaymentRow_UnknownConcept(t *testing.T) {
	row := paymentRow{Concept: "gift"}
	_, err := row.toPayment()
	assert.Error(t, err)
}

func TestSaleRow_Cancellation(t *testing.T) {
	at := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	s := &sale.Sale{Folio: "VTA-000001", Status: sale.StatusCancelled}
	s.Cancellation = &sale.Cancellation{
		CancelledBy:  "admin",
		CancelledAt:  at,
		Reason:       "customer request",
		RefundAmount: decimal.NewFromInt(2000),
		RefundMethod: payment.MethodTransfer,
	}

	row := toSaleRow(s)
	require.NotNil(t, row.CancelledAt)
	assert.True(t, row.RefundAmount.Valid)

	got := row.toSale()
	require.NotNil(t, got.Cancellation)
	assert.Equal(t, "customer request", got.Cancellation.Reason)
	assert.Equal(t, payment.MethodTransfer, got.Cancellation.RefundMethod)
	assert.True(t, got.Cancellation.RefundAmount.Equal(decimal.NewFromInt(2000)))

	open := toSaleRow(&sale.Sale{Folio: "VTA-000002"})
	assert.Nil(t, open.CancelledAt)
	assert.Nil(t, open.toSale().Cancellation)
}

func TestSaleColumns(t *testing.T) {
	assert.Contains(t, saleCols, "folio")
	assert.Contains(t, saleCols, "cancel_reason")
	assert.NotContains(t, saleCols, "installments")
	assert.Equal(t, []string{"sale_id", "number", "due_date", "amount", "amount_paid", "amount_remaining", "status"}, installmentCols)
	assert.Equal(t, []string{"sale_id", "installment_number", "payment_id", "applied_amount", "paid_on"}, appliedCols)
}
