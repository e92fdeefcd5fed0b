// Package succession transfers niche ownership on the death of the owner,
// following the beneficiary priority chain, or manually by an administrator.
package succession

import (
	"time"

	"columbarium/internal/core/id"
)

// Type of an ownership change.
type Type string

const (
	TypeSuccession  Type = "succession"
	TypeTransfer    Type = "transfer"
	TypeInheritance Type = "inheritance"
)

// Succession is the audit-grade record of one ownership change. It is kept
// apart from the niche ownership history.
type Succession struct {
	ID                 id.ID     `db:"id" json:"id"`
	Type               Type      `db:"type" json:"type"`
	NicheID            id.ID     `db:"niche_id" json:"nicheId"`
	SaleID             *id.ID    `db:"sale_id" json:"saleId,omitempty"`
	PreviousCustomerID id.ID     `db:"previous_customer_id" json:"previousCustomerId"`
	NewCustomerID      id.ID     `db:"new_customer_id" json:"newCustomerId"`
	BeneficiaryID      *id.ID    `db:"beneficiary_id" json:"beneficiaryId,omitempty"`
	DeceasedID         *id.ID    `db:"deceased_id" json:"deceasedId,omitempty"`
	Date               time.Time `db:"date" json:"date"`
	Reason             string    `db:"reason" json:"reason,omitempty"`
	Notes              string    `db:"notes" json:"notes,omitempty"`
	RegisteredBy       string    `db:"registered_by" json:"registeredBy"`
	CreatedAt          time.Time `db:"created_at" json:"createdAt"`
}
