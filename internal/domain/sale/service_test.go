package sale_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"columbarium/internal/core/apperror"
	"columbarium/internal/core/id"
	"columbarium/internal/core/rules"
	"columbarium/internal/core/types"
	"columbarium/internal/domain/amortization"
	"columbarium/internal/domain/audit"
	"columbarium/internal/domain/beneficiary"
	"columbarium/internal/domain/customer"
	"columbarium/internal/domain/niche"
	"columbarium/internal/domain/payment"
	"columbarium/internal/domain/sale"
	"columbarium/internal/testkit"
)

func money(s string) types.Money { return types.MustMoney(s) }

func TestCreateSale(t *testing.T) {
	env := testkit.New()
	ctx := env.Ctx()
	n := env.Niche(t, "35000")
	c := env.Customer(t, "Carlos", "Ramirez")
	env.Designate(t, n.ID, c.ID)

	res, err := env.Sales.CreateSale(ctx, n.ID, c.ID, money("35000"), money("5000"))
	require.NoError(t, err)

	s := res.Sale
	assert.Equal(t, "VENTA-2026-00001", s.Folio)
	assert.True(t, s.Balance.Equal(money("30000")))
	assert.True(t, s.TotalPaid.Equal(money("5000")))
	assert.Equal(t, sale.StatusActive, s.Status)
	assert.Equal(t, c.ID, s.OriginalCustomerID)
	assert.Equal(t, c.ID, s.CurrentCustomerID)
	require.Len(t, s.Installments, amortization.DefaultMonths)
	assert.True(t, s.Installments[0].Amount.Equal(money("1666.67")))
	assert.True(t, s.Installments[17].Amount.Equal(money("1666.61")))
	assert.True(t, amortization.Total(s.Installments).Equal(money("30000")))
	require.NoError(t, s.CheckBalance())

	assert.Equal(t, "REC-2026-00001", res.Payment.ReceiptNumber)
	assert.Equal(t, payment.ConceptDownPayment, res.Payment.Concept())
	snap, ok := res.Payment.Balance()
	require.True(t, ok)
	assert.True(t, snap.Before.Equal(money("35000")))
	assert.True(t, snap.After.Equal(money("30000")))

	stored, err := env.Niches.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, niche.StatusSold, stored.Status)
	require.NotNil(t, stored.CurrentOwnerID)
	assert.Equal(t, c.ID, *stored.CurrentOwnerID)
	require.Len(t, stored.History, 1)
	assert.Equal(t, niche.ReasonPurchase, stored.History[0].Reason)
	assert.Nil(t, stored.History[0].EndDate)

	assert.Contains(t, env.Audit.Actions(), audit.ActionCreateSale)
}

func TestCreateSale_InsufficientBeneficiaries(t *testing.T) {
	env := testkit.New()
	ctx := env.Ctx()
	n := env.Niche(t, "20000")
	c := env.Customer(t, "Carlos", "Ramirez")

	_, err := env.Sales.CreateSale(ctx, n.ID, c.ID, money("20000"), money("2000"))
	require.Error(t, err)
	assert.Equal(t, apperror.CodeInsufficientBenefs, apperror.CodeOf(err))
	assert.True(t, apperror.IsBadRequest(err))

	stored, err := env.Niches.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, niche.StatusAvailable, stored.Status)
	assert.Nil(t, stored.CurrentOwnerID)

	list, err := env.Sales.List(ctx, sale.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list.Items)
	assert.NotContains(t, env.Audit.Actions(), audit.ActionCreateSale)
}

func TestCreateSale_ImportsLegacyBeneficiaries(t *testing.T) {
	env := testkit.New()
	ctx := env.Ctx()
	n := env.Niche(t, "20000")

	c := customer.NewCustomer("Rosa", "Martinez", "5511112222")
	c.LegacyBeneficiaries = []customer.LegacyBeneficiary{
		{Name: "Luis Martinez", Relationship: "hijo", Order: 1},
		{Name: "Elena Martinez", Relationship: "hija", Order: 2},
		{Name: "Jorge Martinez", Relationship: "esposo", Order: 3},
	}
	require.NoError(t, env.Customers.Create(ctx, c))

	_, err := env.Sales.CreateSale(ctx, n.ID, c.ID, money("20000"), money("2000"))
	require.NoError(t, err)

	list, err := env.Beneficiaries.ListByNiche(ctx, n.ID, true)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, b := range list {
		assert.Equal(t, c.ID, b.DesignatedBy)
		assert.Equal(t, i+1, b.Order)
	}
	assert.Equal(t, "Luis Martinez", list[0].Name)
}

func TestCreateSale_InvalidAmounts(t *testing.T) {
	env := testkit.New()
	n := env.Niche(t, "20000")
	c := env.Customer(t, "Carlos", "Ramirez")
	env.Designate(t, n.ID, c.ID)

	tests := []struct {
		name  string
		total string
		down  string
	}{
		{"down equals total", "20000", "20000"},
		{"down exceeds total", "20000", "25000"},
		{"zero down", "20000", "0"},
		{"zero total", "0", "0"},
		{"negative down", "20000", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Sales.CreateSale(env.Ctx(), n.ID, c.ID, money(tt.total), money(tt.down))
			require.Error(t, err)
			assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))
		})
	}
}

func TestCreateSale_NicheUnavailable(t *testing.T) {
	env := testkit.New()
	n, _, _ := env.Sold(t)
	other := env.Customer(t, "Beatriz", "Soto")

	_, err := env.Sales.CreateSale(env.Ctx(), n.ID, other.ID, money("35000"), money("5000"))
	require.Error(t, err)
	assert.Equal(t, apperror.CodeNicheUnavailable, apperror.CodeOf(err))
}

func TestCreateSale_InactiveCustomer(t *testing.T) {
	env := testkit.New()
	n := env.Niche(t, "20000")
	c := env.Customer(t, "Carlos", "Ramirez")
	env.Designate(t, n.ID, c.ID)
	_, err := env.Customers.Deactivate(env.Ctx(), c.ID)
	require.NoError(t, err)

	_, err = env.Sales.CreateSale(env.Ctx(), n.ID, c.ID, money("20000"), money("2000"))
	require.Error(t, err)
	assert.Equal(t, apperror.CodeCustomerInactive, apperror.CodeOf(err))
}

func TestCreateSale_UnknownCustomer(t *testing.T) {
	env := testkit.New()
	n := env.Niche(t, "20000")

	_, err := env.Sales.CreateSale(env.Ctx(), n.ID, id.New(), money("20000"), money("2000"))
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestCreateSale_PolicyViolation(t *testing.T) {
	policy, err := rules.NewSalePolicy("downPayment >= totalAmount * 0.2")
	require.NoError(t, err)
	env := testkit.New(testkit.WithPolicy(policy))
	n := env.Niche(t, "35000")
	c := env.Customer(t, "Carlos", "Ramirez")
	env.Designate(t, n.ID, c.ID)

	_, err = env.Sales.CreateSale(env.Ctx(), n.ID, c.ID, money("35000"), money("5000"))
	require.Error(t, err)
	assert.Equal(t, apperror.CodeSalePolicyViolation, apperror.CodeOf(err))

	_, err = env.Sales.CreateSale(env.Ctx(), n.ID, c.ID, money("35000"), money("7500"))
	require.NoError(t, err)
}

func TestCreateBulkSale(t *testing.T) {
	env := testkit.New()
	ctx := env.Ctx()
	c := env.Customer(t, "Carlos", "Ramirez")
	var ids []id.ID
	var codes []string
	for i := 0; i < 3; i++ {
		n := env.Niche(t, "10000")
		env.Designate(t, n.ID, c.ID)
		ids = append(ids, n.ID)
		codes = append(codes, n.Code)
	}

	res, err := env.Sales.CreateBulkSale(ctx, sale.CreateInput{
		NicheIDs:    ids,
		CustomerID:  c.ID,
		TotalAmount: money("30000"),
		DownPayment: money("3000"),
	})
	require.NoError(t, err)

	assert.Equal(t, "BULK-2026-00001", res.Sale.Folio)
	assert.Equal(t, ids[0], res.Sale.NicheID)
	assert.Equal(t, ids, res.Sale.NicheIDs)
	assert.True(t, res.Sale.IsBulk())
	for _, code := range codes {
		assert.Contains(t, res.Sale.Notes, code)
	}
	for _, nid := range ids {
		n, err := env.Niches.Get(ctx, nid)
		require.NoError(t, err)
		assert.Equal(t, niche.StatusSold, n.Status)
		assert.True(t, n.IsOwnedBy(c.ID))
	}
	assert.Contains(t, env.Audit.Actions(), audit.ActionCreateBulkSale)
}

func TestCreateBulkSale_OneUnavailableAbortsAll(t *testing.T) {
	env := testkit.New()
	ctx := env.Ctx()
	sold, _, _ := env.Sold(t)

	c := env.Customer(t, "Beatriz", "Soto")
	ids := []id.ID{}
	for i := 0; i < 4; i++ {
		n := env.Niche(t, "10000")
		env.Designate(t, n.ID, c.ID)
		ids = append(ids, n.ID)
	}
	ids = append(ids[:2], append([]id.ID{sold.ID}, ids[2:]...)...)

	_, err := env.Sales.CreateBulkSale(ctx, sale.CreateInput{
		NicheIDs:    ids,
		CustomerID:  c.ID,
		TotalAmount: money("50000"),
		DownPayment: money("5000"),
	})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeNicheUnavailable, apperror.CodeOf(err))
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, []string{sold.Code}, appErr.Details["unavailable"])

	for _, nid := range ids {
		n, err := env.Niches.Get(ctx, nid)
		require.NoError(t, err)
		if nid == sold.ID {
			assert.Equal(t, niche.StatusSold, n.Status)
			continue
		}
		assert.Equal(t, niche.StatusAvailable, n.Status)
		assert.Nil(t, n.CurrentOwnerID)
	}
}

func TestCreateBulkSale_Validation(t *testing.T) {
	env := testkit.New()
	c := env.Customer(t, "Carlos", "Ramirez")
	n := env.Niche(t, "10000")

	tooMany := make([]id.ID, sale.MaxBulkNiches+1)
	for i := range tooMany {
		tooMany[i] = id.New()
	}

	tests := []struct {
		name string
		ids  []id.ID
	}{
		{"empty", nil},
		{"too many", tooMany},
		{"duplicate", []id.ID{n.ID, n.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Sales.CreateBulkSale(env.Ctx(), sale.CreateInput{
				NicheIDs:    tt.ids,
				CustomerID:  c.ID,
				TotalAmount: money("10000"),
				DownPayment: money("1000"),
			})
			require.Error(t, err)
			assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))
		})
	}
}

func TestCancelSale_ReleasesNicheAndAllowsResale(t *testing.T) {
	env := testkit.New()
	ctx := env.Ctx()
	n, _, s := env.Sold(t)

	res, err := env.Sales.CancelSale(ctx, sale.CancelInput{
		SaleID:       s.ID,
		Reason:       "Customer withdrew from the contract",
		RefundAmount: money("2500"),
		RefundMethod: payment.MethodTransfer,
	})
	require.NoError(t, err)

	assert.Equal(t, sale.StatusCancelled, res.Sale.Status)
	require.NotNil(t, res.Sale.Cancellation)
	assert.Equal(t, "user-seller", res.Sale.Cancellation.CancelledBy)
	require.NotNil(t, res.Refund)
	assert.Equal(t, "REFUND-2026-00001", res.Refund.ReceiptNumber)
	assert.True(t, res.Refund.Amount.Equal(money("2500")))

	released, err := env.Niches.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, niche.StatusAvailable, released.Status)
	assert.Nil(t, released.CurrentOwnerID)
	assert.Contains(t, released.Notes, s.Folio)
	require.Len(t, released.History, 1)
	assert.NotNil(t, released.History[0].EndDate)

	refunds, err := env.Sales.Refunds(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, refunds, 1)

	buyer := env.Customer(t, "Beatriz", "Soto")
	env.Designate(t, n.ID, buyer.ID)
	again, err := env.Sales.CreateSale(ctx, n.ID, buyer.ID, money("36000"), money("6000"))
	require.NoError(t, err)
	assert.Equal(t, buyer.ID, again.Sale.CurrentCustomerID)
}

func TestCancelSale_AlreadyCancelled(t *testing.T) {
	env := testkit.New()
	ctx := env.Ctx()
	_, _, s := env.Sold(t)

	in := sale.CancelInput{SaleID: s.ID, Reason: "Duplicate contract entered", RefundAmount: money("1000")}
	_, err := env.Sales.CancelSale(ctx, in)
	require.NoError(t, err)

	_, err = env.Sales.CancelSale(ctx, in)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeSaleAlreadyCancelled, apperror.CodeOf(err))
	assert.True(t, apperror.IsBadRequest(err))

	refunds, err := env.Sales.Refunds(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, refunds, 1)
}

func TestCancelSale_Preconditions(t *testing.T) {
	env := testkit.New()
	n, _, s := env.Sold(t)

	tests := []struct {
		name string
		in   sale.CancelInput
		code string
	}{
		{"empty reason", sale.CancelInput{SaleID: s.ID, Reason: "   "}, apperror.CodeValidation},
		{"negative refund", sale.CancelInput{SaleID: s.ID, Reason: "Customer request", RefundAmount: money("-1")}, apperror.CodeValidation},
		{"refund exceeds paid", sale.CancelInput{SaleID: s.ID, Reason: "Customer request", RefundAmount: money("5000.01")}, apperror.CodeRefundExceedsPaid},
		{"unknown sale", sale.CancelInput{SaleID: id.New(), Reason: "Customer request"}, apperror.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Sales.CancelSale(env.Ctx(), tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperror.CodeOf(err))
		})
	}

	stored, err := env.Niches.Get(env.Ctx(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, niche.StatusSold, stored.Status)
}

func TestCancelBulkSale_ReleasesEveryNiche(t *testing.T) {
	env := testkit.New()
	ctx := env.Ctx()
	c := env.Customer(t, "Carlos", "Ramirez")
	var ids []id.ID
	for i := 0; i < 2; i++ {
		n := env.Niche(t, "10000")
		env.Designate(t, n.ID, c.ID)
		ids = append(ids, n.ID)
	}
	res, err := env.Sales.CreateBulkSale(ctx, sale.CreateInput{
		NicheIDs: ids, CustomerID: c.ID, TotalAmount: money("20000"), DownPayment: money("2000"),
	})
	require.NoError(t, err)

	cancelled, err := env.Sales.CancelSale(ctx, sale.CancelInput{SaleID: res.Sale.ID, Reason: "Customer request"})
	require.NoError(t, err)
	assert.Nil(t, cancelled.Refund)
	require.Len(t, cancelled.Niches, 2)
	for _, n := range cancelled.Niches {
		assert.Equal(t, niche.StatusAvailable, n.Status)
	}
}

func TestGet_RefreshesOverdue(t *testing.T) {
	env := testkit.New()
	ctx := env.Ctx()
	_, _, s := env.Sold(t)

	env.SetNow(time.Date(2026, time.March, 20, 9, 0, 0, 0, time.UTC))
	got, err := env.Sales.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.StatusOverdue, got.Status)
	assert.Equal(t, amortization.StatusOverdue, got.Installments[0].Status)
	assert.Equal(t, amortization.StatusOverdue, got.Installments[1].Status)
	assert.Equal(t, amortization.StatusPending, got.Installments[2].Status)

	_, err = env.Payments.RegisterPayment(ctx, sale.PaymentInput{SaleID: s.ID, Amount: money("3333.34")})
	require.NoError(t, err)

	got, err = env.Sales.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.StatusActive, got.Status)
}

func TestPayments_ListsDownPaymentFirst(t *testing.T) {
	env := testkit.New()
	ctx := env.Ctx()
	_, _, s := env.Sold(t)
	_, err := env.Payments.RegisterPayment(ctx, sale.PaymentInput{SaleID: s.ID, Amount: money("100")})
	require.NoError(t, err)

	list, err := env.Sales.Payments(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, payment.ConceptDownPayment, list[0].Concept())
	assert.Equal(t, payment.ConceptMonthly, list[1].Concept())
}

func TestList_FiltersByCustomer(t *testing.T) {
	env := testkit.New()
	ctx := env.Ctx()
	_, c1, s1 := env.Sold(t)
	env.Sold(t)

	res, err := env.Sales.List(ctx, sale.ListFilter{CustomerID: &c1.ID})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, s1.ID, res.Items[0].ID)
	assert.EqualValues(t, 1, res.TotalCount)
}

func TestCreateSale_StaleBeneficiariesAreRemoved(t *testing.T) {
	env := testkit.New()
	ctx := env.Ctx()
	n := env.Niche(t, "20000")
	prospect := env.Customer(t, "Ana", "Perez")
	env.Designate(t, n.ID, prospect.ID)

	buyer := customer.NewCustomer("Rosa", "Martinez", "5511113333")
	for i, name := range []string{"Luis Martinez", "Elena Martinez", "Jorge Martinez"} {
		buyer.LegacyBeneficiaries = append(buyer.LegacyBeneficiaries, customer.LegacyBeneficiary{
			Name: name, Relationship: "hijo", Order: i + 1,
		})
	}
	require.NoError(t, env.Customers.Create(ctx, buyer))

	_, err := env.Sales.CreateSale(ctx, n.ID, buyer.ID, money("20000"), money("2000"))
	require.NoError(t, err)

	all, err := env.Beneficiaries.ListByNiche(ctx, n.ID, false)
	require.NoError(t, err)
	require.Len(t, all, 6)
	for _, b := range all {
		if b.DesignatedBy == prospect.ID {
			assert.False(t, b.IsActive, fmt.Sprintf("%s should be inactive", b.Name))
			require.NotNil(t, b.InactivationReason)
			assert.Equal(t, beneficiary.ReasonRemoved, *b.InactivationReason)
		} else {
			assert.True(t, b.IsActive)
		}
	}
}

func TestCreateSale_AuditFailureRollsBack(t *testing.T) {
	env := testkit.New(testkit.FailAuditOn(audit.ActionCreateSale))
	ctx := env.Ctx()
	n := env.Niche(t, "35000")
	c := env.Customer(t, "Carlos", "Ramirez")
	env.Designate(t, n.ID, c.ID)

	_, err := env.Sales.CreateSale(ctx, n.ID, c.ID, money("35000"), money("5000"))
	require.ErrorIs(t, err, testkit.ErrAuditRejected)

	rejected := env.Rejected.Events()
	require.Len(t, rejected, 1)
	saleID, err := id.Parse(rejected[0].ResourceID)
	require.NoError(t, err)

	_, err = env.Sales.Get(ctx, saleID)
	assert.True(t, apperror.IsNotFound(err))
	payments, err := env.Store.Payments().ListBySale(ctx, saleID)
	require.NoError(t, err)
	assert.Empty(t, payments)

	list, err := env.Sales.List(ctx, sale.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, list.TotalCount)

	stored, err := env.Niches.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, niche.StatusAvailable, stored.Status)
	assert.Nil(t, stored.CurrentOwnerID)
	assert.Empty(t, stored.History)
	assert.NotContains(t, env.Audit.Actions(), audit.ActionCreateSale)
}
