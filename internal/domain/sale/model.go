// Package sale provides credit sales of niches: creation, cancellation and
// payment application against the sale's amortization table.
package sale

import (
	"fmt"
	"strings"
	"time"

	"columbarium/internal/core/apperror"
	"columbarium/internal/core/entity"
	"columbarium/internal/core/id"
	"columbarium/internal/core/types"
	"columbarium/internal/domain/amortization"
	"columbarium/internal/domain/payment"
)

// Status of a sale.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
	StatusOverdue   Status = "overdue"
)

// Cancellation records who cancelled a sale and the refund terms.
type Cancellation struct {
	CancelledBy  string         `json:"cancelledBy"`
	CancelledAt  time.Time      `json:"cancelledAt"`
	Reason       string         `json:"reason"`
	RefundAmount types.Money    `json:"refundAmount"`
	RefundMethod payment.Method `json:"refundMethod,omitempty"`
	RefundNotes  string         `json:"refundNotes,omitempty"`
}

// SuccessionEntry records a change of the sale's current customer.
type SuccessionEntry struct {
	ID                 id.ID     `db:"id" json:"id"`
	SaleID             id.ID     `db:"sale_id" json:"saleId"`
	PreviousCustomerID id.ID     `db:"previous_customer_id" json:"previousCustomerId"`
	NewCustomerID      id.ID     `db:"new_customer_id" json:"newCustomerId"`
	Type               string    `db:"type" json:"type"`
	Date               time.Time `db:"date" json:"date"`
	Notes              string    `db:"notes" json:"notes,omitempty"`
	RegisteredBy       string    `db:"registered_by" json:"registeredBy"`
}

// Sale is the credit contract of one or more niches.
//
// Invariants: Balance == TotalAmount - TotalPaid; DownPayment < TotalAmount;
// Status == StatusPaid exactly when Balance is zero; cancelled is terminal.
type Sale struct {
	entity.BaseEntity

	Folio string `db:"folio" json:"folio"`

	// NicheID is the primary niche. NicheIDs lists every niche of the sale.
	NicheID  id.ID   `db:"niche_id" json:"nicheId"`
	NicheIDs []id.ID `db:"-" json:"nicheIds"`

	OriginalCustomerID id.ID `db:"original_customer_id" json:"originalCustomerId"`
	CurrentCustomerID  id.ID `db:"current_customer_id" json:"currentCustomerId"`
	// CustomerID mirrors CurrentCustomerID for consumers of the legacy field.
	CustomerID id.ID `db:"customer_id" json:"customerId"`

	TotalAmount types.Money `db:"total_amount" json:"totalAmount"`
	DownPayment types.Money `db:"down_payment" json:"downPayment"`
	Balance     types.Money `db:"balance" json:"balance"`
	TotalPaid   types.Money `db:"total_paid" json:"totalPaid"`
	Months      int         `db:"months" json:"months"`
	Status      Status      `db:"status" json:"status"`
	Notes       string      `db:"notes" json:"notes,omitempty"`
	CreatedBy   string      `db:"created_by" json:"createdBy"`

	Installments      []amortization.Installment `db:"-" json:"amortizationTable"`
	Cancellation      *Cancellation              `db:"-" json:"cancellation,omitempty"`
	SuccessionHistory []SuccessionEntry          `db:"-" json:"successionHistory,omitempty"`
}

func newBase(at time.Time) entity.BaseEntity {
	b := entity.NewBaseEntity()
	b.CreatedAt = at
	b.UpdatedAt = at
	return b
}

// IsBulk reports whether the sale covers more than one niche.
func (s *Sale) IsBulk() bool { return len(s.NicheIDs) > 1 }

// CheckBalance verifies Balance == TotalAmount - TotalPaid.
func (s *Sale) CheckBalance() error {
	if !s.Balance.Equal(s.TotalAmount.Sub(s.TotalPaid)) {
		return apperror.NewInternal(fmt.Errorf("sale %s: balance %s != total %s - paid %s",
			s.Folio, s.Balance, s.TotalAmount, s.TotalPaid))
	}
	return nil
}

// RequirePayable fails unless the sale accepts payments.
func (s *Sale) RequirePayable() error {
	if s.Status == StatusActive || s.Status == StatusOverdue {
		return nil
	}
	return apperror.NewBadRequest(apperror.CodeSaleNotPayable, "Sale does not accept payments").
		WithDetail("folio", s.Folio).
		WithDetail("status", string(s.Status))
}

// ApplyPayment records dist on the table and moves the running totals by amount.
func (s *Sale) ApplyPayment(paymentID id.ID, amount types.Money, dist amortization.Distribution, at time.Time) {
	amortization.ApplyDistribution(s.Installments, dist, paymentID, at)
	s.TotalPaid = s.TotalPaid.Add(amount)
	s.Balance = s.TotalAmount.Sub(s.TotalPaid)
	if !s.Balance.IsPositive() {
		s.Balance = types.ClampZero(s.Balance)
		s.Status = StatusPaid
	} else if s.Status == StatusOverdue && !amortization.HasOverdue(s.Installments) {
		s.Status = StatusActive
	}
	s.Touch()
}

// RefreshOverdue updates installment and sale status against now.
// Returns true when anything changed.
func (s *Sale) RefreshOverdue(now time.Time) bool {
	if s.Status != StatusActive && s.Status != StatusOverdue {
		return false
	}
	changed := amortization.RefreshOverdue(s.Installments, now)
	overdue := amortization.HasOverdue(s.Installments)
	switch {
	case s.Status == StatusActive && overdue:
		s.Status = StatusOverdue
		changed = true
	case s.Status == StatusOverdue && !overdue:
		s.Status = StatusActive
		changed = true
	}
	if changed {
		s.Touch()
	}
	return changed
}

// Cancel terminates the sale. Refund must be within [0, TotalPaid].
func (s *Sale) Cancel(actor, reason string, refund types.Money, method payment.Method, notes string, at time.Time) error {
	if s.Status == StatusCancelled {
		return apperror.NewBadRequest(apperror.CodeSaleAlreadyCancelled, "Sale is already cancelled").
			WithDetail("folio", s.Folio)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return apperror.NewValidation("cancellation reason is required").WithDetail("field", "reason")
	}
	if refund.IsNegative() {
		return apperror.NewValidation("refund amount cannot be negative").WithDetail("field", "refundAmount")
	}
	if refund.GreaterThan(s.TotalPaid) {
		return apperror.NewBadRequest(apperror.CodeRefundExceedsPaid, "Refund cannot exceed the total paid").
			WithDetail("refundAmount", refund.String()).
			WithDetail("totalPaid", s.TotalPaid.String())
	}

	s.Status = StatusCancelled
	s.Cancellation = &Cancellation{
		CancelledBy:  actor,
		CancelledAt:  at,
		Reason:       reason,
		RefundAmount: refund,
		RefundMethod: method,
		RefundNotes:  strings.TrimSpace(notes),
	}
	s.Touch()
	return nil
}

// TransferTo makes newCustomer the current customer and logs the change.
// OriginalCustomerID is never modified.
func (s *Sale) TransferTo(newCustomer id.ID, kind, notes, actor string, at time.Time) SuccessionEntry {
	entry := SuccessionEntry{
		ID:                 id.New(),
		SaleID:             s.ID,
		PreviousCustomerID: s.CurrentCustomerID,
		NewCustomerID:      newCustomer,
		Type:               kind,
		Date:               at,
		Notes:              notes,
		RegisteredBy:       actor,
	}
	s.CurrentCustomerID = newCustomer
	s.CustomerID = newCustomer
	s.SuccessionHistory = append(s.SuccessionHistory, entry)
	s.Touch()
	return entry
}

// RefundStatus of a refund record.
type RefundStatus string

const (
	RefundCompleted RefundStatus = "completed"
)

// Refund records money returned on cancellation.
type Refund struct {
	ID            id.ID          `db:"id" json:"id"`
	SaleID        id.ID          `db:"sale_id" json:"saleId"`
	CustomerID    id.ID          `db:"customer_id" json:"customerId"`
	ReceiptNumber string         `db:"receipt_number" json:"receiptNumber"`
	Amount        types.Money    `db:"amount" json:"amount"`
	Method        payment.Method `db:"method" json:"method"`
	Reason        string         `db:"reason" json:"reason"`
	Notes         string         `db:"notes" json:"notes,omitempty"`
	RefundedBy    string         `db:"refunded_by" json:"refundedBy"`
	RefundDate    time.Time      `db:"refund_date" json:"refundDate"`
	Status        RefundStatus   `db:"status" json:"status"`
}
