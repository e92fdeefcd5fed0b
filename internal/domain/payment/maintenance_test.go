package payment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"columbarium/internal/core/apperror"
	"columbarium/internal/core/types"
	"columbarium/internal/domain/audit"
	"columbarium/internal/domain/payment"
	"columbarium/internal/testkit"
)

func TestRegisterMaintenance(t *testing.T) {
	env := testkit.New()
	ctx := env.Ctx()
	n, owner, _ := env.Sold(t)

	p, got, err := env.Maintenance.Register(ctx, payment.MaintenanceInput{
		NicheID: n.ID,
		Year:    2026,
		Amount:  types.MustMoney("850"),
		Method:  payment.MethodCash,
	})
	require.NoError(t, err)
	assert.Equal(t, n.Code, got.Code)
	assert.Equal(t, "MANT-2026-00001", p.ReceiptNumber)
	assert.Equal(t, payment.ConceptMaintenance, p.Concept())
	assert.Equal(t, owner.ID, p.CustomerID)
	assert.Nil(t, p.SaleID())
	_, hasBalance := p.Balance()
	assert.False(t, hasBalance)

	list, err := env.Maintenance.ListByNiche(ctx, n.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Contains(t, env.Audit.Actions(), audit.ActionRegisterMaintenance)

	_, _, err = env.Maintenance.Register(ctx, payment.MaintenanceInput{
		NicheID: n.ID, Year: 2026, Amount: types.MustMoney("850"),
	})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeMaintenancePaid, apperror.CodeOf(err))
	assert.True(t, apperror.IsConflict(err))

	_, _, err = env.Maintenance.Register(ctx, payment.MaintenanceInput{
		NicheID: n.ID, Year: 2027, Amount: types.MustMoney("900"),
	})
	require.NoError(t, err)

	list, err = env.Maintenance.ListByNiche(ctx, n.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2027, list[0].Variant.(payment.MaintenancePayment).Year)
}

func TestRegisterMaintenance_Rejections(t *testing.T) {
	env := testkit.New()
	ctx := env.Ctx()
	sold, _, _ := env.Sold(t)
	free := env.Niche(t, "1000")

	tests := []struct {
		name string
		in   payment.MaintenanceInput
		code string
	}{
		{"year too far", payment.MaintenanceInput{NicheID: sold.ID, Year: 2028, Amount: types.MustMoney("100")}, apperror.CodeValidation},
		{"zero amount", payment.MaintenanceInput{NicheID: sold.ID, Year: 2026, Amount: types.Zero()}, apperror.CodeValidation},
		{"unsold niche", payment.MaintenanceInput{NicheID: free.ID, Year: 2026, Amount: types.MustMoney("100")}, apperror.CodeInvalidStateTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := env.Maintenance.Register(ctx, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperror.CodeOf(err))
		})
	}
}
