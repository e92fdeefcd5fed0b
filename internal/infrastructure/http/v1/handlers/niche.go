package handlers

import (
	"github.com/gin-gonic/gin"

	"columbarium/internal/domain/niche"
	"columbarium/internal/domain/payment"
	"columbarium/internal/infrastructure/http/v1/dto"
)

// NicheHandler handles niche registry and maintenance endpoints.
type NicheHandler struct {
	*BaseHandler
	service     *niche.Service
	maintenance *payment.MaintenanceService
}

// NewNicheHandler creates a new niche handler.
func NewNicheHandler(base *BaseHandler, service *niche.Service, maintenance *payment.MaintenanceService) *NicheHandler {
	return &NicheHandler{BaseHandler: base, service: service, maintenance: maintenance}
}

// List handles GET /niches
func (h *NicheHandler) List(c *gin.Context) {
	var q dto.NicheListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	result, err := h.service.List(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromNicheList(result))
}

// Get handles GET /niches/:id
func (h *NicheHandler) Get(c *gin.Context) {
	nicheID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	n, err := h.service.Get(c.Request.Context(), nicheID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromNiche(n))
}

// GetByCode handles GET /niches/code/:code
func (h *NicheHandler) GetByCode(c *gin.Context) {
	n, err := h.service.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromNiche(n))
}

// Create handles POST /niches
func (h *NicheHandler) Create(c *gin.Context) {
	var req dto.CreateNicheRequest
	if !h.BindJSON(c, &req) {
		return
	}

	n := req.ToEntity()
	if err := h.service.Create(c.Request.Context(), n); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromNiche(n))
}

// Disable handles POST /niches/:id/disable
func (h *NicheHandler) Disable(c *gin.Context) {
	nicheID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.DisableNicheRequest
	if !h.BindJSON(c, &req) {
		return
	}

	n, err := h.service.Disable(c.Request.Context(), nicheID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromNiche(n))
}

// Enable handles POST /niches/:id/enable
func (h *NicheHandler) Enable(c *gin.Context) {
	nicheID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	n, err := h.service.Enable(c.Request.Context(), nicheID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromNiche(n))
}

// Stats handles GET /niches/stats
func (h *NicheHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, stats)
}

// UpdatePrice handles PATCH /niches/:id/price
func (h *NicheHandler) UpdatePrice(c *gin.Context) {
	nicheID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateNichePriceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	n, err := h.service.UpdatePrice(c.Request.Context(), nicheID, *req.Price)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromNiche(n))
}

// UpdateMaterial handles PATCH /niches/:id/material
func (h *NicheHandler) UpdateMaterial(c *gin.Context) {
	nicheID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateNicheMaterialRequest
	if !h.BindJSON(c, &req) {
		return
	}

	n, err := h.service.UpdateType(c.Request.Context(), nicheID, niche.Type(req.Type))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromNiche(n))
}

// BulkMaterial handles POST /niches/bulk-material
func (h *NicheHandler) BulkMaterial(c *gin.Context) {
	var req dto.BulkNicheMaterialRequest
	if !h.BindJSON(c, &req) {
		return
	}
	nicheIDs, err := dto.ParseIDs("nicheIds", req.NicheIDs)
	if err != nil {
		h.Error(c, err)
		return
	}

	updated, err := h.service.BulkUpdateType(c.Request.Context(), nicheIDs, niche.Type(req.Type))
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.NicheResponse, len(updated))
	for i, n := range updated {
		items[i] = dto.FromNiche(n)
	}
	h.OK(c, gin.H{"items": items, "count": len(items)})
}

// History handles GET /niches/:id/history
func (h *NicheHandler) History(c *gin.Context) {
	nicheID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	history, err := h.service.OwnershipHistory(c.Request.Context(), nicheID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": history, "count": len(history)})
}

// Occupants handles GET /niches/:id/occupants
func (h *NicheHandler) Occupants(c *gin.Context) {
	nicheID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	occupants, err := h.service.Occupants(c.Request.Context(), nicheID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": occupants, "count": len(occupants)})
}

// RegisterMaintenance handles POST /niches/:id/maintenance
func (h *NicheHandler) RegisterMaintenance(c *gin.Context) {
	nicheID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.RegisterMaintenanceRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput(nicheID)
	if err != nil {
		h.Error(c, err)
		return
	}

	p, n, err := h.maintenance.Register(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.NewMaintenanceResponse(p, n))
}

// ListMaintenance handles GET /niches/:id/maintenance
func (h *NicheHandler) ListMaintenance(c *gin.Context) {
	nicheID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	payments, err := h.maintenance.ListByNiche(c.Request.Context(), nicheID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": dto.MapSlice(payments, dto.FromPayment), "count": len(payments)})
}
