// Package beneficiary provides the beneficiary ledger: succession-priority
// entries scoped to a niche and the customer who designated them. Entries
// outlive ownership changes and are re-pointed to each new owner.
package beneficiary

import (
	"sort"
	"strings"
	"time"

	"columbarium/internal/core/apperror"
	"columbarium/internal/core/id"
	"columbarium/internal/domain/customer"
)

// MinActive is the number of active entries a niche needs before it can be sold.
const MinActive = 3

// Relationship of the beneficiary to the designating customer.
type Relationship string

var relationships = map[Relationship]struct{}{
	"esposo": {}, "esposa": {}, "hijo": {}, "hija": {}, "padre": {}, "madre": {},
	"hermano": {}, "hermana": {}, "abuelo": {}, "abuela": {}, "nieto": {}, "nieta": {},
	"tio": {}, "tia": {}, "sobrino": {}, "sobrina": {}, "primo": {}, "prima": {},
	"yerno": {}, "nuera": {}, "cuñado": {}, "cuñada": {}, "otro": {},
}

// IsValid reports whether r is a known relationship.
func (r Relationship) IsValid() bool {
	_, ok := relationships[r]
	return ok
}

// InactivationReason explains why an entry left the active set.
type InactivationReason string

const (
	ReasonInherited  InactivationReason = "inherited"
	ReasonDeceased   InactivationReason = "deceased"
	ReasonRemoved    InactivationReason = "removed"
	ReasonReassigned InactivationReason = "reassigned"
)

// Beneficiary is one succession-priority entry of a niche.
type Beneficiary struct {
	ID           id.ID        `db:"id" json:"id"`
	NicheID      id.ID        `db:"niche_id" json:"nicheId"`
	DesignatedBy id.ID        `db:"designated_by" json:"designatedBy"`
	Name         string       `db:"name" json:"name"`
	Relationship Relationship `db:"relationship" json:"relationship"`
	Phone        string       `db:"phone" json:"phone,omitempty"`
	Email        string       `db:"email" json:"email,omitempty"`
	DateOfBirth  *time.Time   `db:"date_of_birth" json:"dateOfBirth,omitempty"`
	Order        int          `db:"priority" json:"order"`

	IsActive           bool                `db:"is_active" json:"isActive"`
	IsDeceased         bool                `db:"is_deceased" json:"isDeceased"`
	DeceasedDate       *time.Time          `db:"deceased_date" json:"deceasedDate,omitempty"`
	BecameOwnerAt      *time.Time          `db:"became_owner_at" json:"becameOwnerAt,omitempty"`
	LinkedCustomerID   *id.ID              `db:"linked_customer_id" json:"linkedCustomerId,omitempty"`
	InactivationReason *InactivationReason `db:"inactivation_reason" json:"inactivationReason,omitempty"`
	Notes              string              `db:"notes" json:"notes,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Input carries the data of a new entry.
type Input struct {
	Name         string
	Relationship Relationship
	Phone        string
	Email        string
	DateOfBirth  *time.Time
	Order        int
	Notes        string
}

// New builds an active entry for nicheID designated by designatorID at time at.
func New(nicheID, designatorID id.ID, in Input, at time.Time) *Beneficiary {
	now := at.UTC()
	return &Beneficiary{
		ID:           id.New(),
		NicheID:      nicheID,
		DesignatedBy: designatorID,
		Name:         strings.TrimSpace(in.Name),
		Relationship: Relationship(strings.ToLower(strings.TrimSpace(string(in.Relationship)))),
		Phone:        strings.TrimSpace(in.Phone),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		DateOfBirth:  in.DateOfBirth,
		Order:        in.Order,
		IsActive:     true,
		Notes:        in.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Validate checks a single entry.
func (b *Beneficiary) Validate() error {
	n := len([]rune(b.Name))
	if n < 3 || n > 100 {
		return apperror.NewValidation("beneficiary name must have 3 to 100 characters").WithDetail("field", "name")
	}
	if !b.Relationship.IsValid() {
		return apperror.NewValidation("invalid relationship").
			WithDetail("field", "relationship").
			WithDetail("value", string(b.Relationship))
	}
	if b.Phone != "" && !customer.IsValidPhone(b.Phone) {
		return apperror.NewValidation("beneficiary phone must have 10 digits").WithDetail("field", "phone")
	}
	if b.Order < 1 {
		return apperror.NewValidation("order must be at least 1").WithDetail("field", "order")
	}
	return nil
}

// ValidateSet checks a designation batch: at least MinActive valid entries with unique orders.
func ValidateSet(set []*Beneficiary) error {
	if len(set) < MinActive {
		return apperror.NewBadRequest(apperror.CodeInsufficientBenefs, "At least 3 beneficiaries are required").
			WithDetail("count", len(set))
	}
	seen := make(map[int]struct{}, len(set))
	for _, b := range set {
		if err := b.Validate(); err != nil {
			return err
		}
		if _, dup := seen[b.Order]; dup {
			return apperror.NewValidation("beneficiary orders must be unique").WithDetail("order", b.Order)
		}
		seen[b.Order] = struct{}{}
	}
	return nil
}

// FromLegacy converts a customer's embedded list into ledger entries for nicheID.
// Missing or duplicated orders are renumbered by position.
func FromLegacy(nicheID, designatorID id.ID, legacy []customer.LegacyBeneficiary, at time.Time) []*Beneficiary {
	out := make([]*Beneficiary, 0, len(legacy))
	seen := make(map[int]struct{}, len(legacy))
	for i, l := range legacy {
		order := l.Order
		if _, dup := seen[order]; dup || order < 1 {
			order = i + 1
		}
		seen[order] = struct{}{}
		out = append(out, New(nicheID, designatorID, Input{
			Name:         l.Name,
			Relationship: Relationship(l.Relationship),
			Phone:        l.Phone,
			Email:        l.Email,
			Order:        order,
		}, at))
	}
	return out
}

// Eligible reports whether the entry can inherit.
func (b *Beneficiary) Eligible() bool {
	return b.IsActive && !b.IsDeceased
}

// Next returns the eligible entry with the lowest order, or nil.
func Next(list []*Beneficiary) *Beneficiary {
	eligible := make([]*Beneficiary, 0, len(list))
	for _, b := range list {
		if b.Eligible() {
			eligible = append(eligible, b)
		}
	}
	if len(eligible) == 0 {
		return nil
	}
	sort.SliceStable(eligible, func(i, j int) bool { return eligible[i].Order < eligible[j].Order })
	return eligible[0]
}

// Inherit records that the entry became owner as customerID and leaves the active set.
func (b *Beneficiary) Inherit(customerID id.ID, at time.Time) {
	t := at
	c := customerID
	b.BecameOwnerAt = &t
	b.LinkedCustomerID = &c
	b.Deactivate(ReasonInherited, at)
}

// Deactivate removes the entry from the active set.
func (b *Beneficiary) Deactivate(reason InactivationReason, at time.Time) {
	r := reason
	b.IsActive = false
	b.InactivationReason = &r
	b.UpdatedAt = at.UTC()
}

// Reassign points the entry to a new designating owner.
func (b *Beneficiary) Reassign(newDesignator id.ID, at time.Time) {
	b.DesignatedBy = newDesignator
	b.UpdatedAt = at.UTC()
}

// MarkDeceased flags the entry deceased as of date and removes it from the
// active set. at stamps the change.
func (b *Beneficiary) MarkDeceased(date time.Time, notes string, at time.Time) error {
	if b.IsDeceased {
		return apperror.NewBadRequest(apperror.CodeInvalidStateTransition, "Beneficiary is already marked deceased").
			WithDetail("beneficiaryId", b.ID.String())
	}
	d := date
	b.IsDeceased = true
	b.DeceasedDate = &d
	if notes != "" {
		b.Notes = notes
	}
	b.Deactivate(ReasonDeceased, at)
	return nil
}
