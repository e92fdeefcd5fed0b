package niche_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"columbarium/internal/core/apperror"
	"columbarium/internal/core/id"
	"columbarium/internal/core/types"
	"columbarium/internal/domain"
	"columbarium/internal/domain/audit"
	"columbarium/internal/domain/niche"
	"columbarium/internal/testkit"
)

func TestService_CreateAndList(t *testing.T) {
	env := testkit.New()
	ctx := env.Ctx()

	for i := 1; i <= 3; i++ {
		require.NoError(t, env.Niches.Create(ctx, niche.NewNiche("B", "2", 1, i, niche.TypeWood, types.MustMoney("9000"))))
	}
	dup := niche.NewNiche("b", "2", 1, 1, niche.TypeWood, types.MustMoney("9000"))
	err := env.Niches.Create(ctx, dup)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeDuplicate, apperror.CodeOf(err))

	res, err := env.Niches.List(ctx, niche.ListFilter{Module: "B", ListFilter: domain.ListFilter{Limit: 2}})
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.TotalCount)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "B-2-1-1", res.Items[0].Code)

	got, err := env.Niches.GetByCode(ctx, "B-2-1-3")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Number)

	_, err = env.Niches.GetByCode(ctx, "Z-9-9-9")
	assert.True(t, apperror.IsNotFound(err))
}

func TestService_DisableSoldNiche(t *testing.T) {
	env := testkit.New()
	n, _, _ := env.Sold(t)

	_, err := env.Niches.Disable(env.Ctx(), n.ID, "repairs")
	assert.Equal(t, apperror.CodeInvalidStateTransition, apperror.CodeOf(err))

	history, err := env.Niches.OwnershipHistory(env.Ctx(), n.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestService_Stats(t *testing.T) {
	env := testkit.New()
	ctx := env.Ctx()
	env.Sold(t)
	free := env.Niche(t, "12000")
	disabled := env.Niche(t, "12000")
	_, err := env.Niches.Disable(ctx, disabled.ID, "water damage")
	require.NoError(t, err)
	_, err = env.Niches.UpdateType(ctx, free.ID, niche.TypeWood)
	require.NoError(t, err)

	stats, err := env.Niches.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[niche.StatusSold])
	assert.Equal(t, 1, stats.ByStatus[niche.StatusAvailable])
	assert.Equal(t, 1, stats.ByStatus[niche.StatusDisabled])
	assert.Equal(t, 0, stats.ByStatus[niche.StatusReserved])
	assert.Equal(t, 2, stats.ByType[niche.TypeMarble])
	assert.Equal(t, 1, stats.ByType[niche.TypeWood])
	assert.Equal(t, 0, stats.ByType[niche.TypeSpecial])
}

func TestService_UpdatePrice(t *testing.T) {
	env := testkit.New()
	ctx := env.Ctx()
	free := env.Niche(t, "12000")
	sold, _, _ := env.Sold(t)

	updated, err := env.Niches.UpdatePrice(ctx, free.ID, types.MustMoney("15500"))
	require.NoError(t, err)
	assert.True(t, updated.Price.Equal(types.MustMoney("15500")))
	assert.Equal(t, 2, updated.Version)

	_, err = env.Niches.UpdatePrice(ctx, free.ID, types.MustMoney("-1"))
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))

	_, err = env.Niches.UpdatePrice(ctx, sold.ID, types.MustMoney("50000"))
	assert.Equal(t, apperror.CodeInvalidStateTransition, apperror.CodeOf(err))
	stored, err := env.Niches.Get(ctx, sold.ID)
	require.NoError(t, err)
	assert.True(t, stored.Price.Equal(types.MustMoney("35000")))

	assert.Contains(t, env.Audit.Actions(), audit.ActionUpdateNichePrice)
}

func TestService_BulkUpdateType(t *testing.T) {
	env := testkit.New()
	ctx := env.Ctx()
	a := env.Niche(t, "12000")
	b := env.Niche(t, "12000")
	sold, _, _ := env.Sold(t)

	updated, err := env.Niches.BulkUpdateType(ctx, []id.ID{a.ID, b.ID, a.ID}, niche.TypeSpecial)
	require.NoError(t, err)
	require.Len(t, updated, 2)
	for _, n := range updated {
		assert.Equal(t, niche.TypeSpecial, n.Type)
	}

	_, err = env.Niches.BulkUpdateType(ctx, []id.ID{a.ID, sold.ID}, niche.TypeWood)
	assert.Equal(t, apperror.CodeInvalidStateTransition, apperror.CodeOf(err))
	stored, err := env.Niches.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, niche.TypeSpecial, stored.Type)

	_, err = env.Niches.BulkUpdateType(ctx, []id.ID{a.ID}, niche.Type("granite"))
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))

	_, err = env.Niches.BulkUpdateType(ctx, nil, niche.TypeWood)
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))
}
