package handlers

import (
	"github.com/gin-gonic/gin"

	"columbarium/internal/domain/sale"
	"columbarium/internal/infrastructure/http/v1/dto"
)

// SaleHandler handles sale, payment and cancellation endpoints.
type SaleHandler struct {
	*BaseHandler
	service  *sale.Service
	payments *sale.PaymentService
}

// NewSaleHandler creates a new sale handler.
func NewSaleHandler(base *BaseHandler, service *sale.Service, payments *sale.PaymentService) *SaleHandler {
	return &SaleHandler{BaseHandler: base, service: service, payments: payments}
}

// Create handles POST /sales
func (h *SaleHandler) Create(c *gin.Context) {
	var req dto.CreateSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	nicheID, err := dto.ParseID("nicheId", req.NicheID)
	if err != nil {
		h.Error(c, err)
		return
	}
	customerID, err := dto.ParseID("customerId", req.CustomerID)
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.CreateSale(c.Request.Context(), nicheID, customerID, req.TotalAmount, req.DownPayment)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromCreateResult(result))
}

// CreateBulk handles POST /sales/bulk
func (h *SaleHandler) CreateBulk(c *gin.Context) {
	var req dto.CreateBulkSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.CreateBulkSale(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromCreateResult(result))
}

// List handles GET /sales
func (h *SaleHandler) List(c *gin.Context) {
	var q dto.SaleListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromSaleList(result))
}

// Get handles GET /sales/:id
func (h *SaleHandler) Get(c *gin.Context) {
	saleID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	s, err := h.service.Get(c.Request.Context(), saleID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromSale(s))
}

// RegisterPayment handles POST /sales/:id/payment
func (h *SaleHandler) RegisterPayment(c *gin.Context) {
	saleID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.RegisterPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput(saleID)
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.payments.RegisterPayment(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromPaymentResult(result))
}

// Cancel handles POST /sales/:id/cancel
func (h *SaleHandler) Cancel(c *gin.Context) {
	saleID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.CancelSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput(saleID)
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.CancelSale(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromCancelResult(result))
}

// Payments handles GET /sales/:id/payments
func (h *SaleHandler) Payments(c *gin.Context) {
	saleID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	payments, err := h.service.Payments(c.Request.Context(), saleID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": dto.MapSlice(payments, dto.FromPayment), "count": len(payments)})
}

// Refunds handles GET /sales/:id/refunds
func (h *SaleHandler) Refunds(c *gin.Context) {
	saleID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	refunds, err := h.service.Refunds(c.Request.Context(), saleID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": refunds, "count": len(refunds)})
}
