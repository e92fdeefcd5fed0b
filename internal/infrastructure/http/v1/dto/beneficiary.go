package dto

import (
	"columbarium/internal/domain/beneficiary"
)

// BeneficiaryEntry is one entry of a niche designation.
type BeneficiaryEntry struct {
	Name         string `json:"name" binding:"required,min=3,max=100"`
	Relationship string `json:"relationship" binding:"required"`
	Phone        string `json:"phone"`
	Email        string `json:"email" binding:"omitempty,email"`
	DateOfBirth  string `json:"dateOfBirth"`
	Order        int    `json:"order" binding:"required,min=1"`
	Notes        string `json:"notes"`
}

// ReplaceBeneficiariesRequest swaps the active designation of a niche.
type ReplaceBeneficiariesRequest struct {
	CustomerID    string             `json:"customerId" binding:"required,uuid"`
	Beneficiaries []BeneficiaryEntry `json:"beneficiaries" binding:"required,min=3,dive"`
}

// ToInputs converts the entries to domain inputs.
func (r *ReplaceBeneficiariesRequest) ToInputs() ([]beneficiary.Input, error) {
	out := make([]beneficiary.Input, 0, len(r.Beneficiaries))
	for _, b := range r.Beneficiaries {
		dob, err := ParseOptionalDate("dateOfBirth", b.DateOfBirth)
		if err != nil {
			return nil, err
		}
		out = append(out, beneficiary.Input{
			Name:         b.Name,
			Relationship: beneficiary.Relationship(b.Relationship),
			Phone:        b.Phone,
			Email:        b.Email,
			DateOfBirth:  dob,
			Order:        b.Order,
			Notes:        b.Notes,
		})
	}
	return out, nil
}

// MarkDeceasedRequest flags a beneficiary as deceased.
type MarkDeceasedRequest struct {
	DeceasedDate string `json:"deceasedDate" binding:"required"`
	Notes        string `json:"notes"`
}

// BeneficiaryListResponse wraps the entries of a niche or designator.
type BeneficiaryListResponse struct {
	Items []*beneficiary.Beneficiary `json:"items"`
	Count int                        `json:"count"`
}

// NewBeneficiaryList builds the list response.
func NewBeneficiaryList(items []*beneficiary.Beneficiary) BeneficiaryListResponse {
	if items == nil {
		items = []*beneficiary.Beneficiary{}
	}
	return BeneficiaryListResponse{Items: items, Count: len(items)}
}
