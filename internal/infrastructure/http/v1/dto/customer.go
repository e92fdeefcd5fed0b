package dto

import (
	"time"

	"columbarium/internal/domain"
	"columbarium/internal/domain/customer"
)

// LegacyBeneficiaryRequest is one entry of the beneficiary list captured at registration.
type LegacyBeneficiaryRequest struct {
	Name         string `json:"name" binding:"required"`
	Relationship string `json:"relationship" binding:"required"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Order        int    `json:"order" binding:"required,min=1"`
}

// CreateCustomerRequest for registering a customer.
type CreateCustomerRequest struct {
	FirstName     string                     `json:"firstName" binding:"required"`
	LastName      string                     `json:"lastName" binding:"required"`
	Phone         string                     `json:"phone" binding:"required"`
	Email         string                     `json:"email"`
	Address       string                     `json:"address"`
	RFC           *string                    `json:"rfc"`
	Notes         string                     `json:"notes"`
	Beneficiaries []LegacyBeneficiaryRequest `json:"beneficiaries" binding:"dive"`
}

// ToEntity converts to a new customer. Field rules are checked by the domain.
func (r *CreateCustomerRequest) ToEntity() *customer.Customer {
	c := customer.NewCustomer(r.FirstName, r.LastName, r.Phone)
	c.Email = r.Email
	c.Address = r.Address
	c.RFC = r.RFC
	c.Notes = r.Notes
	for _, b := range r.Beneficiaries {
		c.LegacyBeneficiaries = append(c.LegacyBeneficiaries, customer.LegacyBeneficiary{
			Name:         b.Name,
			Relationship: b.Relationship,
			Phone:        b.Phone,
			Email:        b.Email,
			Order:        b.Order,
		})
	}
	return c
}

// UpdateCustomerRequest carries contact changes. Absent fields are left unchanged.
type UpdateCustomerRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Phone     *string `json:"phone"`
	Email     *string `json:"email"`
	Address   *string `json:"address"`
	RFC       *string `json:"rfc"`
	Notes     *string `json:"notes"`
}

// ToUpdate converts to the domain update.
func (r *UpdateCustomerRequest) ToUpdate() customer.ContactUpdate {
	return customer.ContactUpdate{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Phone:     r.Phone,
		Email:     r.Email,
		Address:   r.Address,
		RFC:       r.RFC,
		Notes:     r.Notes,
	}
}

// CustomerListQuery is the query string of GET /customers.
type CustomerListQuery struct {
	PaginationRequest
	Status string `form:"status" binding:"omitempty,oneof=active inactive deceased"`
}

// ToFilter converts to the domain filter.
func (q *CustomerListQuery) ToFilter() customer.ListFilter {
	return customer.ListFilter{
		ListFilter: q.ToListFilter(),
		Status:     customer.Status(q.Status),
	}
}

// CustomerResponse represents a customer in API responses.
type CustomerResponse struct {
	ID                     string                       `json:"id"`
	FirstName              string                       `json:"firstName"`
	LastName               string                       `json:"lastName"`
	FullName               string                       `json:"fullName"`
	Phone                  string                       `json:"phone"`
	Email                  string                       `json:"email,omitempty"`
	Address                string                       `json:"address,omitempty"`
	RFC                    *string                      `json:"rfc,omitempty"`
	Notes                  string                       `json:"notes,omitempty"`
	Status                 customer.Status              `json:"status"`
	DeceasedDate           *time.Time                   `json:"deceasedDate,omitempty"`
	ReconciliationRequired bool                         `json:"reconciliationRequired"`
	Beneficiaries          []customer.LegacyBeneficiary `json:"beneficiaries,omitempty"`
	Version                int                          `json:"version"`
	CreatedAt              time.Time                    `json:"createdAt"`
	UpdatedAt              time.Time                    `json:"updatedAt"`
}

// FromCustomer creates response from domain customer.
func FromCustomer(c *customer.Customer) CustomerResponse {
	return CustomerResponse{
		ID:                     c.ID.String(),
		FirstName:              c.FirstName,
		LastName:               c.LastName,
		FullName:               c.FullName(),
		Phone:                  c.Phone,
		Email:                  c.Email,
		Address:                c.Address,
		RFC:                    c.RFC,
		Notes:                  c.Notes,
		Status:                 c.Status,
		DeceasedDate:           c.DeceasedDate,
		ReconciliationRequired: c.ReconciliationRequired,
		Beneficiaries:          c.LegacyBeneficiaries,
		Version:                c.Version,
		CreatedAt:              c.CreatedAt,
		UpdatedAt:              c.UpdatedAt,
	}
}

// FromCustomerList maps a customer list result.
func FromCustomerList(r domain.ListResult[*customer.Customer]) ListResponse[CustomerResponse] {
	return NewListResponse(r, FromCustomer)
}
