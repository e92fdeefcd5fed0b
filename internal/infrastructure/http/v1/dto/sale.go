package dto

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"columbarium/internal/core/apperror"
	"columbarium/internal/core/id"
	"columbarium/internal/domain"
	"columbarium/internal/domain/amortization"
	"columbarium/internal/domain/niche"
	"columbarium/internal/domain/payment"
	"columbarium/internal/domain/sale"
)

// CreateSaleRequest sells one niche on credit.
type CreateSaleRequest struct {
	NicheID     string          `json:"nicheId" binding:"required,uuid"`
	CustomerID  string          `json:"customerId" binding:"required,uuid"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	DownPayment decimal.Decimal `json:"downPayment"`
}

// CreateBulkSaleRequest sells up to 100 niches under one sale.
type CreateBulkSaleRequest struct {
	NicheIDs      []string        `json:"nicheIds" binding:"required,min=1,max=100,dive,uuid"`
	CustomerID    string          `json:"customerId" binding:"required,uuid"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	DownPayment   decimal.Decimal `json:"downPayment"`
	Method        string          `json:"method" binding:"omitempty,oneof=cash card transfer"`
}

// ToInput converts to the domain input.
func (r *CreateBulkSaleRequest) ToInput() (sale.CreateInput, error) {
	nicheIDs, err := ParseIDs("nicheIds", r.NicheIDs)
	if err != nil {
		return sale.CreateInput{}, err
	}
	customerID, err := ParseID("customerId", r.CustomerID)
	if err != nil {
		return sale.CreateInput{}, err
	}
	method, err := payment.ParseMethod(r.Method)
	if err != nil {
		return sale.CreateInput{}, err
	}
	return sale.CreateInput{
		NicheIDs:    nicheIDs,
		CustomerID:  customerID,
		TotalAmount: r.TotalAmount,
		DownPayment: r.DownPayment,
		Method:      method,
	}, nil
}

// RegisterPaymentRequest applies a payment to a sale.
type RegisterPaymentRequest struct {
	Amount                decimal.Decimal `json:"amount"`
	Method                string          `json:"method" binding:"omitempty,oneof=cash card transfer"`
	Notes                 string          `json:"notes"`
	PaymentMode           string          `json:"paymentMode" binding:"omitempty,oneof=free specific"`
	SpecificPaymentNumber int             `json:"specificPaymentNumber" binding:"omitempty,min=1"`
	Concept               string          `json:"concept" binding:"omitempty,oneof=monthly_payment extra"`
}

// ToInput converts to the domain input for saleID.
func (r *RegisterPaymentRequest) ToInput(saleID id.ID) (sale.PaymentInput, error) {
	method, err := payment.ParseMethod(r.Method)
	if err != nil {
		return sale.PaymentInput{}, err
	}
	return sale.PaymentInput{
		SaleID:              saleID,
		Amount:              r.Amount,
		Method:              method,
		Notes:               r.Notes,
		Mode:                amortization.ParseMode(r.PaymentMode),
		SpecificInstallment: r.SpecificPaymentNumber,
		Concept:             payment.Concept(r.Concept),
	}, nil
}

// minCancelReason is the shortest accepted cancellation reason, in runes, after trimming.
const minCancelReason = 10

// CancelSaleRequest cancels a sale with an optional refund.
type CancelSaleRequest struct {
	Reason       string          `json:"reason" binding:"required,min=10"`
	RefundAmount decimal.Decimal `json:"refundAmount"`
	RefundMethod string          `json:"refundMethod" binding:"omitempty,oneof=cash card transfer"`
	RefundNotes  string          `json:"refundNotes"`
}

// ToInput converts to the domain input for saleID.
func (r *CancelSaleRequest) ToInput(saleID id.ID) (sale.CancelInput, error) {
	reason := strings.TrimSpace(r.Reason)
	if utf8.RuneCountInString(reason) < minCancelReason {
		return sale.CancelInput{}, apperror.NewValidation("validation failed").
			WithDetail("fields", map[string]string{"reason": "min"})
	}
	method, err := payment.ParseMethod(r.RefundMethod)
	if err != nil {
		return sale.CancelInput{}, err
	}
	return sale.CancelInput{
		SaleID:       saleID,
		Reason:       reason,
		RefundAmount: r.RefundAmount,
		RefundMethod: method,
		RefundNotes:  r.RefundNotes,
	}, nil
}

// SaleListQuery is the query string of GET /sales.
type SaleListQuery struct {
	PaginationRequest
	Status     string `form:"status" binding:"omitempty,oneof=active paid cancelled overdue"`
	CustomerID string `form:"customerId" binding:"omitempty,uuid"`
	NicheID    string `form:"nicheId" binding:"omitempty,uuid"`
}

// ToFilter converts to the domain filter.
func (q *SaleListQuery) ToFilter() (sale.ListFilter, error) {
	customerID, err := ParseOptionalID("customerId", q.CustomerID)
	if err != nil {
		return sale.ListFilter{}, err
	}
	nicheID, err := ParseOptionalID("nicheId", q.NicheID)
	if err != nil {
		return sale.ListFilter{}, err
	}
	return sale.ListFilter{
		ListFilter: q.ToListFilter(),
		Status:     sale.Status(q.Status),
		CustomerID: customerID,
		NicheID:    nicheID,
	}, nil
}

// SaleResponse is a sale with its amortization table.
type SaleResponse struct {
	*sale.Sale
	PaidInstallments int              `json:"paidInstallments"`
	NextDueDate      *time.Time       `json:"nextDueDate,omitempty"`
	NextDueAmount    *decimal.Decimal `json:"nextDueAmount,omitempty"`
}

// FromSale creates response from domain sale.
func FromSale(s *sale.Sale) SaleResponse {
	resp := SaleResponse{Sale: s}
	for i := range s.Installments {
		inst := &s.Installments[i]
		if inst.Status == amortization.StatusPaid {
			resp.PaidInstallments++
			continue
		}
		if resp.NextDueDate == nil {
			due := inst.DueDate
			remaining := inst.AmountRemaining
			resp.NextDueDate = &due
			resp.NextDueAmount = &remaining
		}
	}
	return resp
}

// FromSaleList maps a sale list result.
func FromSaleList(r domain.ListResult[*sale.Sale]) ListResponse[SaleResponse] {
	return NewListResponse(r, FromSale)
}

// CreateSaleResponse is the outcome of a sale creation.
type CreateSaleResponse struct {
	Sale        SaleResponse    `json:"sale"`
	DownPayment PaymentResponse `json:"downPayment"`
	Niches      []NicheResponse `json:"niches"`
}

// FromCreateResult creates response from the domain result.
func FromCreateResult(r *sale.CreateResult) CreateSaleResponse {
	return CreateSaleResponse{
		Sale:        FromSale(r.Sale),
		DownPayment: FromPayment(r.Payment),
		Niches:      MapSlice(r.Niches, FromNiche),
	}
}

// RegisterPaymentResponse is the outcome of a registered payment.
type RegisterPaymentResponse struct {
	Payment      PaymentResponse           `json:"payment"`
	Sale         SaleResponse              `json:"sale"`
	Distribution amortization.Distribution `json:"distribution"`
}

// FromPaymentResult creates response from the domain result.
func FromPaymentResult(r *sale.PaymentResult) RegisterPaymentResponse {
	return RegisterPaymentResponse{
		Payment:      FromPayment(r.Payment),
		Sale:         FromSale(r.Sale),
		Distribution: r.Distribution,
	}
}

// CancelSaleResponse is the outcome of a cancellation.
type CancelSaleResponse struct {
	Sale   SaleResponse    `json:"sale"`
	Niches []NicheResponse `json:"releasedNiches"`
	Refund *sale.Refund    `json:"refund,omitempty"`
}

// FromCancelResult creates response from the domain result.
func FromCancelResult(r *sale.CancelResult) CancelSaleResponse {
	return CancelSaleResponse{
		Sale:   FromSale(r.Sale),
		Niches: MapSlice(r.Niches, FromNiche),
		Refund: r.Refund,
	}
}

// PaymentResponse is a payment with its concept-specific details.
type PaymentResponse struct {
	ID            string          `json:"id"`
	ReceiptNumber string          `json:"receiptNumber"`
	Concept       payment.Concept `json:"concept"`
	CustomerID    string          `json:"customerId"`
	Amount        decimal.Decimal `json:"amount"`
	Method        payment.Method  `json:"method"`
	PaidAt        time.Time       `json:"paidAt"`
	RegisteredBy  string          `json:"registeredBy"`
	Status        payment.Status  `json:"status"`
	Notes         string          `json:"notes,omitempty"`
	Details       payment.Variant `json:"details"`
}

// FromPayment creates response from domain payment.
func FromPayment(p *payment.Payment) PaymentResponse {
	if p == nil {
		return PaymentResponse{}
	}
	return PaymentResponse{
		ID:            p.ID.String(),
		ReceiptNumber: p.ReceiptNumber,
		Concept:       p.Variant.Concept(),
		CustomerID:    p.CustomerID.String(),
		Amount:        p.Amount,
		Method:        p.Method,
		PaidAt:        p.PaidAt,
		RegisteredBy:  p.RegisteredBy,
		Status:        p.Status,
		Notes:         p.Notes,
		Details:       p.Variant,
	}
}

// RegisterMaintenanceRequest pays the annual maintenance fee of a niche.
type RegisterMaintenanceRequest struct {
	Year          int             `json:"year" binding:"required,min=2000"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method" binding:"omitempty,oneof=cash card transfer"`
	Notes         string          `json:"notes"`
}

// ToInput converts to the domain input for nicheID.
func (r *RegisterMaintenanceRequest) ToInput(nicheID id.ID) (payment.MaintenanceInput, error) {
	method, err := payment.ParseMethod(r.Method)
	if err != nil {
		return payment.MaintenanceInput{}, err
	}
	return payment.MaintenanceInput{
		NicheID: nicheID,
		Year:    r.Year,
		Amount:  r.Amount,
		Method:  method,
		Notes:   r.Notes,
	}, nil
}

// MaintenanceResponse is a registered maintenance payment.
type MaintenanceResponse struct {
	Payment PaymentResponse `json:"payment"`
	Niche   NicheResponse   `json:"niche"`
}

// NewMaintenanceResponse builds the response.
func NewMaintenanceResponse(p *payment.Payment, n *niche.Niche) MaintenanceResponse {
	return MaintenanceResponse{Payment: FromPayment(p), Niche: FromNiche(n)}
}
