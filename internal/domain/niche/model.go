// Package niche provides the niche registry: physical units, their ownership
// history and the deceased deposited in them.
package niche

import (
	"context"
	"fmt"
	"strings"
	"time"

	"columbarium/internal/core/apperror"
	"columbarium/internal/core/entity"
	"columbarium/internal/core/id"
	"columbarium/internal/core/types"
)

// Type is the niche material.
type Type string

const (
	TypeWood    Type = "wood"
	TypeMarble  Type = "marble"
	TypeSpecial Type = "special"
)

// Status of a niche.
type Status string

const (
	StatusAvailable Status = "available"
	StatusReserved  Status = "reserved"
	StatusSold      Status = "sold"
	StatusDisabled  Status = "disabled"
)

// OwnershipReason explains why an ownership period started.
type OwnershipReason string

const (
	ReasonPurchase    OwnershipReason = "purchase"
	ReasonSuccession  OwnershipReason = "succession"
	ReasonTransfer    OwnershipReason = "transfer"
	ReasonInheritance OwnershipReason = "inheritance"
)

// OwnershipEntry is one period of ownership. EndDate is nil while open.
type OwnershipEntry struct {
	ID           id.ID           `db:"id" json:"id"`
	NicheID      id.ID           `db:"niche_id" json:"nicheId"`
	OwnerID      id.ID           `db:"owner_id" json:"ownerId"`
	StartDate    time.Time       `db:"start_date" json:"startDate"`
	EndDate      *time.Time      `db:"end_date" json:"endDate,omitempty"`
	Reason       OwnershipReason `db:"reason" json:"reason"`
	Notes        string          `db:"notes" json:"notes,omitempty"`
	RegisteredBy string          `db:"registered_by" json:"registeredBy"`
}

// IsOpen reports whether the period has not ended.
func (e *OwnershipEntry) IsOpen() bool { return e.EndDate == nil }

// Niche is a physical storage unit.
// Invariant: Status == StatusSold exactly when CurrentOwnerID is set.
type Niche struct {
	entity.BaseEntity

	Code           string      `db:"code" json:"code"`
	Module         string      `db:"module" json:"module"`
	Section        string      `db:"section" json:"section"`
	Row            int         `db:"row_number" json:"row"`
	Number         int         `db:"display_number" json:"number"`
	Type           Type        `db:"type" json:"type"`
	Price          types.Money `db:"price" json:"price"`
	Status         Status      `db:"status" json:"status"`
	CurrentOwnerID *id.ID      `db:"current_owner_id" json:"currentOwnerId,omitempty"`
	Notes          string      `db:"notes" json:"notes,omitempty"`

	// History is loaded on demand; mutated by ownership transitions.
	History []OwnershipEntry `db:"-" json:"ownershipHistory,omitempty"`
}

// BuildCode derives the unique niche code MODULE-SECTION-ROW-NUMBER.
func BuildCode(module, section string, row, number int) string {
	return strings.ToUpper(fmt.Sprintf("%s-%s-%d-%d",
		strings.TrimSpace(module), strings.TrimSpace(section), row, number))
}

// NewNiche creates an available niche with a derived code.
func NewNiche(module, section string, row, number int, t Type, price types.Money) *Niche {
	return &Niche{
		BaseEntity: entity.NewBaseEntity(),
		Code:       BuildCode(module, section, row, number),
		Module:     strings.ToUpper(strings.TrimSpace(module)),
		Section:    strings.ToUpper(strings.TrimSpace(section)),
		Row:        row,
		Number:     number,
		Type:       t,
		Price:      price,
		Status:     StatusAvailable,
	}
}

// Validate implements entity.Validatable.
func (n *Niche) Validate(_ context.Context) error {
	if n.Module == "" || n.Section == "" {
		return apperror.NewValidation("module and section are required").WithDetail("field", "module")
	}
	if n.Row <= 0 || n.Number <= 0 {
		return apperror.NewValidation("row and number must be positive").WithDetail("field", "row")
	}
	if !isValidType(n.Type) {
		return apperror.NewValidation("invalid niche type").
			WithDetail("field", "type").
			WithDetail("value", string(n.Type))
	}
	if n.Price.IsNegative() {
		return apperror.NewValidation("price cannot be negative").WithDetail("field", "price")
	}
	return n.CheckOwnership()
}

// CheckOwnership verifies the sold/owner invariant.
func (n *Niche) CheckOwnership() error {
	sold := n.Status == StatusSold
	owned := n.CurrentOwnerID != nil && !id.IsNil(*n.CurrentOwnerID)
	if sold != owned {
		return apperror.NewInternal(fmt.Errorf("niche %s: status %s inconsistent with owner", n.Code, n.Status))
	}
	return nil
}

// IsAvailable reports whether the niche can be sold.
func (n *Niche) IsAvailable() bool { return n.Status == StatusAvailable }

// IsOwnedBy reports whether customerID is the current owner.
func (n *Niche) IsOwnedBy(customerID id.ID) bool {
	return n.CurrentOwnerID != nil && *n.CurrentOwnerID == customerID
}

// RequireAvailable returns NICHE_UNAVAILABLE unless the niche can be sold.
func (n *Niche) RequireAvailable() error {
	if n.IsAvailable() {
		return nil
	}
	return apperror.NewBadRequest(apperror.CodeNicheUnavailable, "Niche is not available").
		WithDetail("code", n.Code).
		WithDetail("status", string(n.Status))
}

// MarkSold sets the owner and flips the niche to sold. Callers check status first.
func (n *Niche) MarkSold(customerID id.ID) {
	owner := customerID
	n.Status = StatusSold
	n.CurrentOwnerID = &owner
	n.Touch()
}

// MarkReserved flips the niche to reserved. Callers check status first.
func (n *Niche) MarkReserved() {
	n.Status = StatusReserved
	n.Touch()
}

// Release returns the niche to available and clears the owner.
func (n *Niche) Release() {
	n.Status = StatusAvailable
	n.CurrentOwnerID = nil
	n.Touch()
}

// Sell marks the niche sold to customerID and opens a purchase period.
// Returns the ownership entries that must be persisted.
func (n *Niche) Sell(customerID id.ID, notes, actor string, at time.Time) []OwnershipEntry {
	n.MarkSold(customerID)
	entry := OwnershipEntry{
		ID:           id.New(),
		NicheID:      n.ID,
		OwnerID:      customerID,
		StartDate:    at,
		Reason:       ReasonPurchase,
		Notes:        notes,
		RegisteredBy: actor,
	}
	n.History = append(n.History, entry)
	return []OwnershipEntry{entry}
}

// ReleaseWithNote releases the niche, closes the open period and annotates notes.
// Returns the ownership entries that must be persisted.
func (n *Niche) ReleaseWithNote(note string, at time.Time) []OwnershipEntry {
	changed := n.closeOpen(at)
	n.Release()
	if note != "" {
		if n.Notes != "" {
			n.Notes += "\n"
		}
		n.Notes += note
	}
	return changed
}

// TransferOwnership closes the open period and opens a new one for newOwnerID.
// Returns the ownership entries that must be persisted.
func (n *Niche) TransferOwnership(newOwnerID id.ID, reason OwnershipReason, notes, actor string, at time.Time) []OwnershipEntry {
	changed := n.closeOpen(at)
	entry := OwnershipEntry{
		ID:           id.New(),
		NicheID:      n.ID,
		OwnerID:      newOwnerID,
		StartDate:    at,
		Reason:       reason,
		Notes:        notes,
		RegisteredBy: actor,
	}
	n.History = append(n.History, entry)
	owner := newOwnerID
	n.CurrentOwnerID = &owner
	n.Touch()
	return append(changed, entry)
}

func (n *Niche) closeOpen(at time.Time) []OwnershipEntry {
	var changed []OwnershipEntry
	for i := range n.History {
		if n.History[i].IsOpen() {
			end := at
			n.History[i].EndDate = &end
			changed = append(changed, n.History[i])
		}
	}
	return changed
}

// Disable takes the niche out of inventory. Sold niches cannot be disabled.
func (n *Niche) Disable(reason string) error {
	if n.Status == StatusSold {
		return apperror.NewBadRequest(apperror.CodeInvalidStateTransition, "Sold niche cannot be disabled").
			WithDetail("code", n.Code)
	}
	n.Status = StatusDisabled
	if reason != "" {
		n.Notes = reason
	}
	n.Touch()
	return nil
}

// Enable returns a disabled niche to inventory.
func (n *Niche) Enable() error {
	if n.Status != StatusDisabled {
		return apperror.NewBadRequest(apperror.CodeInvalidStateTransition, "Only disabled niches can be enabled").
			WithDetail("code", n.Code).
			WithDetail("status", string(n.Status))
	}
	n.Status = StatusAvailable
	n.Touch()
	return nil
}

// ChangePrice sets the list price. Sold niches keep the price they were sold at.
func (n *Niche) ChangePrice(price types.Money) error {
	if err := n.requireUnsold("price"); err != nil {
		return err
	}
	if price.IsNegative() {
		return apperror.NewValidation("price cannot be negative").WithDetail("field", "price")
	}
	n.Price = price
	n.Touch()
	return nil
}

// ChangeType sets the niche material.
func (n *Niche) ChangeType(t Type) error {
	if err := n.requireUnsold("type"); err != nil {
		return err
	}
	if !isValidType(t) {
		return apperror.NewValidation("invalid niche type").
			WithDetail("field", "type").
			WithDetail("value", string(t))
	}
	n.Type = t
	n.Touch()
	return nil
}

func (n *Niche) requireUnsold(field string) error {
	if n.Status == StatusSold {
		return apperror.NewBadRequest(apperror.CodeInvalidStateTransition, "Sold niche cannot be modified").
			WithDetail("code", n.Code).
			WithDetail("field", field)
	}
	return nil
}

// Stats counts the inventory by status and by type.
type Stats struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"byStatus"`
	ByType   map[Type]int   `json:"byType"`
}

// NewStats returns Stats with every known status and type at zero.
func NewStats() *Stats {
	return &Stats{
		ByStatus: map[Status]int{StatusAvailable: 0, StatusReserved: 0, StatusSold: 0, StatusDisabled: 0},
		ByType:   map[Type]int{TypeWood: 0, TypeMarble: 0, TypeSpecial: 0},
	}
}

// Add counts count niches with the given status and type.
func (st *Stats) Add(status Status, t Type, count int) {
	st.Total += count
	st.ByStatus[status] += count
	st.ByType[t] += count
}

// Deceased is a person whose remains are deposited in a niche.
type Deceased struct {
	ID           id.ID     `db:"id" json:"id"`
	NicheID      id.ID     `db:"niche_id" json:"nicheId"`
	CustomerID   *id.ID    `db:"customer_id" json:"customerId,omitempty"`
	FirstName    string    `db:"first_name" json:"firstName"`
	LastName     string    `db:"last_name" json:"lastName"`
	DateOfDeath  time.Time `db:"date_of_death" json:"dateOfDeath"`
	Notes        string    `db:"notes" json:"notes,omitempty"`
	RegisteredBy string    `db:"registered_by" json:"registeredBy"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// --- Validation Helpers ---

func isValidType(t Type) bool {
	switch t {
	case TypeWood, TypeMarble, TypeSpecial:
		return true
	}
	return false
}
