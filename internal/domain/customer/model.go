// Package customer provides the customer registry.
package customer

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"columbarium/internal/core/apperror"
	"columbarium/internal/core/entity"
	"columbarium/internal/core/id"
)

// Status of a customer.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusDeceased Status = "deceased"
)

// PlaceholderPhone is stored when a customer is created without a phone.
const PlaceholderPhone = "0000000000"

// LegacyBeneficiary is an entry of the beneficiary list captured at customer
// registration. It is an import format only: the sale service copies it into
// the beneficiary ledger of each niche the customer buys.
type LegacyBeneficiary struct {
	Name         string `json:"name" validate:"required,min=3,max=100"`
	Relationship string `json:"relationship" validate:"required"`
	Phone        string `json:"phone,omitempty" validate:"omitempty,phone10"`
	Email        string `json:"email,omitempty" validate:"omitempty,email"`
	Order        int    `json:"order" validate:"gte=1"`
}

// Customer is a buyer or inheritor of niches.
// Invariant: Status == StatusDeceased requires DeceasedDate and DeceasedRecordID.
type Customer struct {
	entity.BaseEntity

	FirstName string  `db:"first_name" json:"firstName" validate:"required,min=2,max=50"`
	LastName  string  `db:"last_name" json:"lastName" validate:"required,min=2,max=50"`
	Phone     string  `db:"phone" json:"phone" validate:"required,phone10"`
	Email     string  `db:"email" json:"email,omitempty" validate:"omitempty,email"`
	Address   string  `db:"address" json:"address,omitempty" validate:"max=200"`
	RFC       *string `db:"rfc" json:"rfc,omitempty" validate:"omitempty,rfc"`
	Notes     string  `db:"notes" json:"notes,omitempty"`
	Status    Status  `db:"status" json:"status"`

	DeceasedDate     *time.Time `db:"deceased_date" json:"deceasedDate,omitempty"`
	DeceasedRecordID *id.ID     `db:"deceased_record_id" json:"deceasedRecordId,omitempty"`

	// ReconciliationRequired flags records created during succession that may
	// duplicate an existing customer sharing the same phone number.
	ReconciliationRequired bool `db:"reconciliation_required" json:"reconciliationRequired"`

	LegacyBeneficiaries []LegacyBeneficiary `db:"legacy_beneficiaries" json:"beneficiaries,omitempty" validate:"dive"`
}

// NewCustomer creates an active customer.
func NewCustomer(firstName, lastName, phone string) *Customer {
	return &Customer{
		BaseEntity: entity.NewBaseEntity(),
		FirstName:  strings.TrimSpace(firstName),
		LastName:   strings.TrimSpace(lastName),
		Phone:      strings.TrimSpace(phone),
		Status:     StatusActive,
	}
}

// NewFromBeneficiary creates the customer record of an inheriting beneficiary.
// The full name is split on the first space; a missing phone gets PlaceholderPhone.
// The record is not validated: inheritors often have an incomplete profile.
func NewFromBeneficiary(fullName, phone, email string) *Customer {
	first, last := SplitName(fullName)
	if strings.TrimSpace(phone) == "" {
		phone = PlaceholderPhone
	}
	c := NewCustomer(first, last, phone)
	c.Email = strings.ToLower(strings.TrimSpace(email))
	return c
}

// SplitName splits a full name into first name and the remainder.
func SplitName(fullName string) (first, last string) {
	parts := strings.Fields(fullName)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// NormalizeName folds case and whitespace for name comparison.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// FullName returns first and last name.
func (c *Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// IsActive reports whether the customer can buy or inherit.
func (c *Customer) IsActive() bool { return c.Status == StatusActive }

// RequireActive returns CUSTOMER_INACTIVE unless the customer is active.
func (c *Customer) RequireActive() error {
	if c.IsActive() {
		return nil
	}
	return apperror.NewBadRequest(apperror.CodeCustomerInactive, "Customer is not active").
		WithDetail("customerId", c.ID.String()).
		WithDetail("status", string(c.Status))
}

// Validate implements entity.Validatable.
func (c *Customer) Validate(_ context.Context) error {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	if c.RFC != nil {
		rfc := strings.ToUpper(strings.TrimSpace(*c.RFC))
		if rfc == "" {
			c.RFC = nil
		} else {
			c.RFC = &rfc
		}
	}
	if err := validate.Struct(c); err != nil {
		return toValidationError(err)
	}
	if c.Status == StatusDeceased && (c.DeceasedDate == nil || c.DeceasedRecordID == nil) {
		return apperror.NewValidation("deceased customer requires deceased date and record").
			WithDetail("field", "deceasedDate")
	}
	return nil
}

// MarkDeceased flips the customer to deceased.
func (c *Customer) MarkDeceased(date time.Time, recordID id.ID) {
	d := date
	r := recordID
	c.Status = StatusDeceased
	c.DeceasedDate = &d
	c.DeceasedRecordID = &r
	c.Touch()
}

// Deactivate marks the customer inactive. Deceased customers stay deceased.
func (c *Customer) Deactivate() error {
	if c.Status == StatusDeceased {
		return apperror.NewBadRequest(apperror.CodeInvalidStateTransition, "Deceased customer cannot be deactivated")
	}
	c.Status = StatusInactive
	c.Touch()
	return nil
}

// Activate returns an inactive customer to active. Deceased and already
// active customers are rejected.
func (c *Customer) Activate() error {
	if c.Status != StatusInactive {
		return apperror.NewBadRequest(apperror.CodeInvalidStateTransition, "Only inactive customers can be activated").
			WithDetail("status", string(c.Status))
	}
	c.Reactivate()
	return nil
}

// Reactivate returns an inactive customer to active.
func (c *Customer) Reactivate() {
	if c.Status == StatusInactive {
		c.Status = StatusActive
		c.Touch()
	}
}

// ContactUpdate carries editable contact data. Nil fields are left unchanged.
type ContactUpdate struct {
	FirstName *string
	LastName  *string
	Phone     *string
	Email     *string
	Address   *string
	RFC       *string
	Notes     *string
}

// Apply copies non-nil fields onto c.
func (u ContactUpdate) Apply(c *Customer) error {
	if c.Status == StatusDeceased {
		return apperror.NewBadRequest(apperror.CodeInvalidStateTransition, "Deceased customer cannot be updated").
			WithDetail("customerId", c.ID.String())
	}
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&c.FirstName, u.FirstName)
	set(&c.LastName, u.LastName)
	set(&c.Phone, u.Phone)
	set(&c.Email, u.Email)
	set(&c.Address, u.Address)
	set(&c.Notes, u.Notes)
	if u.RFC != nil {
		rfc := *u.RFC
		c.RFC = &rfc
	}
	c.Touch()
	return nil
}

// --- Validation Helpers ---

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("phone10", func(fl validator.FieldLevel) bool {
		return IsValidPhone(fl.Field().String())
	})
	_ = v.RegisterValidation("rfc", func(fl validator.FieldLevel) bool {
		return IsValidRFC(fl.Field().String())
	})
	return v
}

// IsValidPhone reports whether s is exactly ten digits.
func IsValidPhone(s string) bool {
	if len(s) != 10 {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperror.NewValidation(err.Error())
	}
	first := verrs[0]
	appErr := apperror.NewValidation("invalid " + first.Field()).
		WithDetail("field", first.Field()).
		WithDetail("rule", first.Tag())
	if len(verrs) > 1 {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Namespace())
		}
		appErr = appErr.WithDetail("fields", fields)
	}
	return appErr
}
