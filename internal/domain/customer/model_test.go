package customer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"columbarium/internal/core/apperror"
	"columbarium/internal/core/id"
)

func validCustomer() *Customer {
	c := NewCustomer("Juan", "Pérez López", "5512345678")
	c.Email = "Juan@Example.com"
	return c
}

func TestCustomer_Validate(t *testing.T) {
	strp := func(s string) *string { return &s }

	tests := []struct {
		name   string
		mutate func(c *Customer)
		field  string
	}{
		{"valid", func(c *Customer) {}, ""},
		{"short first name", func(c *Customer) { c.FirstName = "J" }, "FirstName"},
		{"phone with letters", func(c *Customer) { c.Phone = "55123A5678" }, "Phone"},
		{"phone too short", func(c *Customer) { c.Phone = "551234" }, "Phone"},
		{"bad email", func(c *Customer) { c.Email = "nope" }, "Email"},
		{"valid person rfc", func(c *Customer) { c.RFC = strp("pelj800101ab1") }, ""},
		{"valid company rfc", func(c *Customer) { c.RFC = strp("ABC800101AB1") }, ""},
		{"bad rfc", func(c *Customer) { c.RFC = strp("XX1") }, "RFC"},
		{"blank rfc cleared", func(c *Customer) { c.RFC = strp("  ") }, ""},
		{"bad legacy beneficiary", func(c *Customer) {
			c.LegacyBeneficiaries = []LegacyBeneficiary{{Name: "Al", Relationship: "hijo", Order: 1}}
		}, "Name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCustomer()
			tt.mutate(c)
			err := c.Validate(context.Background())
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
			assert.Equal(t, tt.field, appErr.Details["field"])
		})
	}
}

func TestCustomer_ValidateNormalizes(t *testing.T) {
	c := validCustomer()
	rfc := " pelj800101ab1 "
	c.RFC = &rfc
	require.NoError(t, c.Validate(context.Background()))
	assert.Equal(t, "juan@example.com", c.Email)
	assert.Equal(t, "PELJ800101AB1", *c.RFC)
}

func TestCustomer_DeceasedInvariant(t *testing.T) {
	c := validCustomer()
	c.Status = StatusDeceased
	assert.Error(t, c.Validate(context.Background()))

	c.MarkDeceased(time.Now(), id.New())
	assert.NoError(t, c.Validate(context.Background()))
	assert.False(t, c.IsActive())
}

func TestNewFromBeneficiary(t *testing.T) {
	c := NewFromBeneficiary("  María  de la Luz  Hernández ", "", "MARIA@MAIL.COM")
	assert.Equal(t, "María", c.FirstName)
	assert.Equal(t, "de la Luz Hernández", c.LastName)
	assert.Equal(t, PlaceholderPhone, c.Phone)
	assert.Equal(t, "maria@mail.com", c.Email)
	assert.Equal(t, StatusActive, c.Status)

	single := NewFromBeneficiary("Pedro", "5511112222", "")
	assert.Equal(t, "Pedro", single.FirstName)
	assert.Empty(t, single.LastName)
}

func TestContactUpdate_Apply(t *testing.T) {
	c := validCustomer()
	phone := "5599998888"
	require.NoError(t, ContactUpdate{Phone: &phone}.Apply(c))
	assert.Equal(t, phone, c.Phone)
	assert.Equal(t, "Juan", c.FirstName)

	c.MarkDeceased(time.Now(), id.New())
	err := ContactUpdate{Phone: &phone}.Apply(c)
	assert.True(t, apperror.IsBadRequest(err))
}

func TestDeactivate(t *testing.T) {
	c := validCustomer()
	require.NoError(t, c.Deactivate())
	assert.Equal(t, StatusInactive, c.Status)
	assert.True(t, apperror.IsBadRequest(c.RequireActive()))

	c.Reactivate()
	assert.True(t, c.IsActive())

	c.MarkDeceased(time.Now(), id.New())
	assert.Error(t, c.Deactivate())
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "ana maría ruiz", NormalizeName("  Ana   MARÍA Ruiz "))
}
