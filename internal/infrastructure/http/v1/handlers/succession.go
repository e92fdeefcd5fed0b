package handlers

import (
	"github.com/gin-gonic/gin"

	"columbarium/internal/domain/succession"
	"columbarium/internal/infrastructure/http/v1/dto"
)

// SuccessionHandler handles succession and transfer endpoints.
type SuccessionHandler struct {
	*BaseHandler
	service *succession.Service
}

// NewSuccessionHandler creates a new succession handler.
func NewSuccessionHandler(base *BaseHandler, service *succession.Service) *SuccessionHandler {
	return &SuccessionHandler{BaseHandler: base, service: service}
}

// Register handles POST /succession/register
func (h *SuccessionHandler) Register(c *gin.Context) {
	var req dto.RegisterSuccessionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.RegisterSuccession(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromSuccessionResult(result))
}

// Transfer handles POST /succession/transfer
func (h *SuccessionHandler) Transfer(c *gin.Context) {
	var req dto.ManualTransferRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.ManualTransfer(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromSuccessionResult(result))
}

// History handles GET /niches/:id/successions
func (h *SuccessionHandler) History(c *gin.Context) {
	nicheID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	records, err := h.service.History(c.Request.Context(), nicheID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": records, "count": len(records)})
}
