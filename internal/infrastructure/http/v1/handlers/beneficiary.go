package handlers

import (
	"github.com/gin-gonic/gin"

	"columbarium/internal/domain/beneficiary"
	"columbarium/internal/infrastructure/http/v1/dto"
)

// BeneficiaryHandler handles the beneficiary ledger endpoints.
type BeneficiaryHandler struct {
	*BaseHandler
	service *beneficiary.Service
}

// NewBeneficiaryHandler creates a new beneficiary handler.
func NewBeneficiaryHandler(base *BaseHandler, service *beneficiary.Service) *BeneficiaryHandler {
	return &BeneficiaryHandler{BaseHandler: base, service: service}
}

// ListByNiche handles GET /niches/:id/beneficiaries?active=true
func (h *BeneficiaryHandler) ListByNiche(c *gin.Context) {
	nicheID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	activeOnly := c.DefaultQuery("active", "true") != "false"

	list, err := h.service.ListByNiche(c.Request.Context(), nicheID, activeOnly)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewBeneficiaryList(list))
}

// Replace handles PUT /niches/:id/beneficiaries
func (h *BeneficiaryHandler) Replace(c *gin.Context) {
	nicheID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ReplaceBeneficiariesRequest
	if !h.BindJSON(c, &req) {
		return
	}
	designatorID, err := dto.ParseID("customerId", req.CustomerID)
	if err != nil {
		h.Error(c, err)
		return
	}
	inputs, err := req.ToInputs()
	if err != nil {
		h.Error(c, err)
		return
	}

	list, err := h.service.ReplaceForNiche(c.Request.Context(), nicheID, designatorID, inputs)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewBeneficiaryList(list))
}

// Next handles GET /niches/:id/beneficiaries/next
func (h *BeneficiaryHandler) Next(c *gin.Context) {
	nicheID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	next, err := h.service.NextForNiche(c.Request.Context(), nicheID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, next)
}

// ListByCustomer handles GET /customers/:id/beneficiaries
func (h *BeneficiaryHandler) ListByCustomer(c *gin.Context) {
	customerID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	list, err := h.service.ListByDesignator(c.Request.Context(), customerID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewBeneficiaryList(list))
}

// MarkDeceased handles POST /beneficiaries/:id/deceased
func (h *BeneficiaryHandler) MarkDeceased(c *gin.Context) {
	beneficiaryID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.MarkDeceasedRequest
	if !h.BindJSON(c, &req) {
		return
	}
	date, err := dto.ParseDate("deceasedDate", req.DeceasedDate)
	if err != nil {
		h.Error(c, err)
		return
	}

	b, err := h.service.MarkDeceased(c.Request.Context(), beneficiaryID, date, req.Notes)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, b)
}
