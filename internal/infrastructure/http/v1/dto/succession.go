package dto

import (
	"columbarium/internal/domain/beneficiary"
	"columbarium/internal/domain/niche"
	"columbarium/internal/domain/succession"
)

// RegisterSuccessionRequest registers the death of a niche owner.
type RegisterSuccessionRequest struct {
	CustomerID   string `json:"customerId" binding:"required,uuid"`
	NicheID      string `json:"nicheId" binding:"required,uuid"`
	DeceasedDate string `json:"deceasedDate" binding:"required"`
	Notes        string `json:"notes"`
}

// ToInput converts to the domain input.
func (r *RegisterSuccessionRequest) ToInput() (succession.RegisterInput, error) {
	customerID, err := ParseID("customerId", r.CustomerID)
	if err != nil {
		return succession.RegisterInput{}, err
	}
	nicheID, err := ParseID("nicheId", r.NicheID)
	if err != nil {
		return succession.RegisterInput{}, err
	}
	date, err := ParseDate("deceasedDate", r.DeceasedDate)
	if err != nil {
		return succession.RegisterInput{}, err
	}
	return succession.RegisterInput{
		CustomerID:   customerID,
		NicheID:      nicheID,
		DeceasedDate: date,
		Notes:        r.Notes,
	}, nil
}

// ManualTransferRequest moves a niche to another existing customer.
type ManualTransferRequest struct {
	NicheID    string `json:"nicheId" binding:"required,uuid"`
	NewOwnerID string `json:"newOwnerId" binding:"required,uuid"`
	Reason     string `json:"reason" binding:"required"`
	Notes      string `json:"notes"`
}

// ToInput converts to the domain input.
func (r *ManualTransferRequest) ToInput() (succession.TransferInput, error) {
	nicheID, err := ParseID("nicheId", r.NicheID)
	if err != nil {
		return succession.TransferInput{}, err
	}
	newOwnerID, err := ParseID("newOwnerId", r.NewOwnerID)
	if err != nil {
		return succession.TransferInput{}, err
	}
	return succession.TransferInput{
		NicheID:    nicheID,
		NewOwnerID: newOwnerID,
		Reason:     r.Reason,
		Notes:      r.Notes,
	}, nil
}

// SuccessionResponse summarises an ownership change.
type SuccessionResponse struct {
	Succession              *succession.Succession   `json:"succession"`
	Niche                   NicheResponse            `json:"niche"`
	PreviousOwner           *CustomerResponse        `json:"previousOwner,omitempty"`
	NewOwner                *CustomerResponse        `json:"newOwner"`
	Heir                    *beneficiary.Beneficiary `json:"beneficiary,omitempty"`
	Deceased                *niche.Deceased          `json:"deceased,omitempty"`
	Sale                    *SaleResponse            `json:"sale,omitempty"`
	ReassignedBeneficiaries int                      `json:"reassignedBeneficiaries"`
	CustomerCreated         bool                     `json:"customerCreated"`
	ReconciliationRequired  bool                     `json:"reconciliationRequired"`
}

// FromSuccessionResult creates response from the domain result.
func FromSuccessionResult(r *succession.Result) SuccessionResponse {
	resp := SuccessionResponse{
		Succession:              r.Succession,
		Heir:                    r.Heir,
		Deceased:                r.Deceased,
		ReassignedBeneficiaries: r.Reassigned,
		CustomerCreated:         r.CustomerCreated,
		ReconciliationRequired:  r.NeedsReconciling,
	}
	if r.Niche != nil {
		resp.Niche = FromNiche(r.Niche)
	}
	if r.PreviousOwner != nil {
		prev := FromCustomer(r.PreviousOwner)
		resp.PreviousOwner = &prev
	}
	if r.NewOwner != nil {
		next := FromCustomer(r.NewOwner)
		resp.NewOwner = &next
	}
	if r.Sale != nil {
		s := FromSale(r.Sale)
		resp.Sale = &s
	}
	return resp
}
