package dto

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"columbarium/internal/domain"
	"columbarium/internal/domain/niche"
)

// CreateNicheRequest for registering a niche.
type CreateNicheRequest struct {
	Module  string          `json:"module" binding:"required,max=10"`
	Section string          `json:"section" binding:"required,max=10"`
	Row     int             `json:"row" binding:"required,min=1"`
	Number  int             `json:"number" binding:"required,min=1"`
	Type    string          `json:"type" binding:"required,oneof=wood marble special"`
	Price   decimal.Decimal `json:"price"`
	Notes   string          `json:"notes" binding:"max=500"`
}

// ToEntity converts to a new niche.
func (r *CreateNicheRequest) ToEntity() *niche.Niche {
	n := niche.NewNiche(r.Module, r.Section, r.Row, r.Number, niche.Type(r.Type), r.Price)
	n.Notes = strings.TrimSpace(r.Notes)
	return n
}

// DisableNicheRequest carries the reason a niche is taken out of inventory.
type DisableNicheRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// UpdateNichePriceRequest sets the list price of an unsold niche.
type UpdateNichePriceRequest struct {
	Price *decimal.Decimal `json:"price" binding:"required"`
}

// UpdateNicheMaterialRequest sets the material of an unsold niche.
type UpdateNicheMaterialRequest struct {
	Type string `json:"type" binding:"required,oneof=wood marble special"`
}

// BulkNicheMaterialRequest sets the material of up to 500 unsold niches.
type BulkNicheMaterialRequest struct {
	NicheIDs []string `json:"nicheIds" binding:"required,min=1,max=500,dive,uuid"`
	Type     string   `json:"type" binding:"required,oneof=wood marble special"`
}

// NicheListQuery is the query string of GET /niches.
type NicheListQuery struct {
	PaginationRequest
	Status  string `form:"status" binding:"omitempty,oneof=available reserved sold disabled"`
	Type    string `form:"type" binding:"omitempty,oneof=wood marble special"`
	Module  string `form:"module"`
	Section string `form:"section"`
}

// ToFilter converts to the domain filter.
func (q *NicheListQuery) ToFilter() niche.ListFilter {
	return niche.ListFilter{
		ListFilter: q.ToListFilter(),
		Status:     niche.Status(q.Status),
		Type:       niche.Type(q.Type),
		Module:     q.Module,
		Section:    q.Section,
	}
}

// NicheResponse represents a niche in API responses.
type NicheResponse struct {
	ID             string          `json:"id"`
	Code           string          `json:"code"`
	Module         string          `json:"module"`
	Section        string          `json:"section"`
	Row            int             `json:"row"`
	Number         int             `json:"number"`
	Type           niche.Type      `json:"type"`
	Price          decimal.Decimal `json:"price"`
	Status         niche.Status    `json:"status"`
	CurrentOwnerID *string         `json:"currentOwnerId,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	Version        int             `json:"version"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`

	OwnershipHistory []niche.OwnershipEntry `json:"ownershipHistory,omitempty"`
}

// FromNiche creates response from domain niche.
func FromNiche(n *niche.Niche) NicheResponse {
	resp := NicheResponse{
		ID:               n.ID.String(),
		Code:             n.Code,
		Module:           n.Module,
		Section:          n.Section,
		Row:              n.Row,
		Number:           n.Number,
		Type:             n.Type,
		Price:            n.Price,
		Status:           n.Status,
		Notes:            n.Notes,
		Version:          n.Version,
		CreatedAt:        n.CreatedAt,
		UpdatedAt:        n.UpdatedAt,
		OwnershipHistory: n.History,
	}
	if n.CurrentOwnerID != nil {
		owner := n.CurrentOwnerID.String()
		resp.CurrentOwnerID = &owner
	}
	return resp
}

// FromNicheList maps a niche list result.
func FromNicheList(r domain.ListResult[*niche.Niche]) ListResponse[NicheResponse] {
	return NewListResponse(r, FromNiche)
}
