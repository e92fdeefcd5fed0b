// Package payment models money received as a tagged union: every payment
// carries common fields plus exactly one concept-specific variant.
package payment

import (
	"fmt"
	"strings"
	"time"

	"columbarium/internal/core/apperror"
	"columbarium/internal/core/id"
	"columbarium/internal/core/types"
	"columbarium/internal/domain/amortization"
)

// Concept identifies the payment variant.
type Concept string

const (
	ConceptDownPayment Concept = "down_payment"
	ConceptMonthly     Concept = "monthly_payment"
	ConceptMaintenance Concept = "maintenance"
	ConceptExtra       Concept = "extra"
)

// Method is how the money was received.
type Method string

const (
	MethodCash     Method = "cash"
	MethodCard     Method = "card"
	MethodTransfer Method = "transfer"
)

// ParseMethod defaults an empty value to cash and rejects unknown methods.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return MethodCash, nil
	case MethodCash, MethodCard, MethodTransfer:
		return m, nil
	default:
		return "", apperror.NewValidation("invalid payment method").
			WithDetail("field", "method").
			WithDetail("value", s)
	}
}

// Status of a payment record.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

// Variant is the concept-specific part of a payment.
type Variant interface {
	Concept() Concept
	validate() error
}

// BalanceSnapshot is the sale balance around a payment.
type BalanceSnapshot struct {
	Before types.Money `json:"balanceBefore"`
	After  types.Money `json:"balanceAfter"`
}

// DownPayment is the first payment of a sale, taken at creation.
type DownPayment struct {
	SaleID  id.ID           `json:"saleId"`
	Balance BalanceSnapshot `json:"balance"`
}

// Concept implements Variant.
func (DownPayment) Concept() Concept { return ConceptDownPayment }

func (v DownPayment) validate() error {
	if id.IsNil(v.SaleID) {
		return apperror.NewValidation("down payment requires a sale")
	}
	return nil
}

// InstallmentPayment is a payment applied to a sale's amortization table.
type InstallmentPayment struct {
	SaleID              id.ID               `json:"saleId"`
	Mode                amortization.Mode   `json:"paymentMode"`
	SpecificInstallment int                 `json:"specificPaymentNumber,omitempty"`
	Balance             BalanceSnapshot     `json:"balance"`
	AppliedTo           []amortization.Line `json:"appliedTo"`
}

func (v InstallmentPayment) validate() error {
	if id.IsNil(v.SaleID) {
		return apperror.NewValidation("installment payment requires a sale")
	}
	if len(v.AppliedTo) == 0 {
		return apperror.NewBadRequest(apperror.CodeNothingToApply, "Payment does not apply to any installment")
	}
	return nil
}

// MonthlyPayment is a regular installment payment.
type MonthlyPayment struct {
	InstallmentPayment
}

// Concept implements Variant.
func (MonthlyPayment) Concept() Concept { return ConceptMonthly }

// ExtraPayment is an additional payment toward the balance, applied like a monthly one.
type ExtraPayment struct {
	InstallmentPayment
}

// Concept implements Variant.
func (ExtraPayment) Concept() Concept { return ConceptExtra }

// MaintenancePayment is the annual maintenance fee of a niche. It has no sale.
type MaintenancePayment struct {
	NicheID id.ID `json:"nicheId"`
	Year    int   `json:"year"`
}

// Concept implements Variant.
func (MaintenancePayment) Concept() Concept { return ConceptMaintenance }

func (v MaintenancePayment) validate() error {
	if id.IsNil(v.NicheID) {
		return apperror.NewValidation("maintenance payment requires a niche")
	}
	if v.Year < 2000 {
		return apperror.NewValidation("invalid maintenance year").WithDetail("year", v.Year)
	}
	return nil
}

// Payment is an immutable record of money received.
type Payment struct {
	ID            id.ID       `json:"id"`
	ReceiptNumber string      `json:"receiptNumber"`
	CustomerID    id.ID       `json:"customerId"`
	Amount        types.Money `json:"amount"`
	Method        Method      `json:"method"`
	PaidAt        time.Time   `json:"paidAt"`
	RegisteredBy  string      `json:"registeredBy"`
	Status        Status      `json:"status"`
	Notes         string      `json:"notes,omitempty"`
	Variant       Variant     `json:"details"`
}

// Common holds the fields shared by every variant.
type Common struct {
	ReceiptNumber string
	CustomerID    id.ID
	Amount        types.Money
	Method        Method
	PaidAt        time.Time
	RegisteredBy  string
	Notes         string
}

// New validates common fields and the variant and returns a completed payment.
func New(c Common, v Variant) (*Payment, error) {
	if v == nil {
		return nil, apperror.NewValidation("payment variant is required")
	}
	if !c.Amount.IsPositive() {
		return nil, apperror.NewValidation("amount must be greater than zero").
			WithDetail("field", "amount").
			WithDetail("value", c.Amount.String())
	}
	if c.ReceiptNumber == "" {
		return nil, apperror.NewValidation("receipt number is required")
	}
	if id.IsNil(c.CustomerID) {
		return nil, apperror.NewValidation("customer is required")
	}
	method := c.Method
	if method == "" {
		method = MethodCash
	}
	if err := v.validate(); err != nil {
		return nil, err
	}
	paidAt := c.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}
	return &Payment{
		ID:            id.New(),
		ReceiptNumber: c.ReceiptNumber,
		CustomerID:    c.CustomerID,
		Amount:        c.Amount,
		Method:        method,
		PaidAt:        paidAt,
		RegisteredBy:  c.RegisteredBy,
		Status:        StatusCompleted,
		Notes:         c.Notes,
		Variant:       v,
	}, nil
}

// Concept returns the variant concept.
func (p *Payment) Concept() Concept {
	return p.Variant.Concept()
}

// SaleID returns the sale the payment belongs to, or nil for maintenance.
func (p *Payment) SaleID() *id.ID {
	switch v := p.Variant.(type) {
	case DownPayment:
		return &v.SaleID
	case MonthlyPayment:
		return &v.SaleID
	case ExtraPayment:
		return &v.SaleID
	default:
		return nil
	}
}

// Balance returns the balance snapshot of sale payments.
func (p *Payment) Balance() (BalanceSnapshot, bool) {
	switch v := p.Variant.(type) {
	case DownPayment:
		return v.Balance, true
	case MonthlyPayment:
		return v.Balance, true
	case ExtraPayment:
		return v.Balance, true
	default:
		return BalanceSnapshot{}, false
	}
}

// AppliedTo returns the installment distribution, if any.
func (p *Payment) AppliedTo() []amortization.Line {
	switch v := p.Variant.(type) {
	case MonthlyPayment:
		return v.AppliedTo
	case ExtraPayment:
		return v.AppliedTo
	default:
		return nil
	}
}

// InstallmentVariant builds the variant for concept from a distribution.
func InstallmentVariant(concept Concept, ip InstallmentPayment) (Variant, error) {
	switch concept {
	case "", ConceptMonthly:
		return MonthlyPayment{ip}, nil
	case ConceptExtra:
		return ExtraPayment{ip}, nil
	default:
		return nil, apperror.NewValidation(fmt.Sprintf("concept %q cannot be applied to installments", concept)).
			WithDetail("field", "concept")
	}
}
