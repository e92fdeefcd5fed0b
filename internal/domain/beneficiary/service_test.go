package beneficiary_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"columbarium/internal/core/apperror"
	"columbarium/internal/domain/beneficiary"
	"columbarium/internal/testkit"
)

func TestReplaceForNiche(t *testing.T) {
	env := testkit.New()
	ctx := env.Ctx()
	n, owner, _ := env.Sold(t)

	replaced, err := env.Beneficiaries.ReplaceForNiche(ctx, n.ID, owner.ID, testkit.Heirs(4))
	require.NoError(t, err)
	assert.Len(t, replaced, 4)

	active, err := env.Beneficiaries.ListByNiche(ctx, n.ID, true)
	require.NoError(t, err)
	assert.Len(t, active, 4)

	all, err := env.Beneficiaries.ListByNiche(ctx, n.ID, false)
	require.NoError(t, err)
	assert.Len(t, all, 7)
	removed := 0
	for _, b := range all {
		if !b.IsActive {
			require.NotNil(t, b.InactivationReason)
			assert.Equal(t, beneficiary.ReasonRemoved, *b.InactivationReason)
			removed++
		}
	}
	assert.Equal(t, 3, removed)

	mine, err := env.Beneficiaries.ListByDesignator(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 7)
}

func TestReplaceForNiche_Rejections(t *testing.T) {
	env := testkit.New()
	ctx := env.Ctx()
	n, _, _ := env.Sold(t)
	stranger := env.Customer(t, "Pedro", "Gomez")
	disabled := env.Niche(t, "1000")
	_, err := env.Niches.Disable(ctx, disabled.ID, "water damage")
	require.NoError(t, err)

	dup := testkit.Heirs(3)
	dup[2].Order = 1
	badRel := testkit.Heirs(3)
	badRel[0].Relationship = "vecino"

	tests := []struct {
		name string
		run  func() error
		code string
	}{
		{"too few", func() error {
			_, err := env.Beneficiaries.ReplaceForNiche(ctx, n.ID, stranger.ID, testkit.Heirs(2))
			return err
		}, apperror.CodeInsufficientBenefs},
		{"duplicate order", func() error {
			_, err := env.Beneficiaries.ReplaceForNiche(ctx, n.ID, stranger.ID, dup)
			return err
		}, apperror.CodeValidation},
		{"invalid relationship", func() error {
			_, err := env.Beneficiaries.ReplaceForNiche(ctx, n.ID, stranger.ID, badRel)
			return err
		}, apperror.CodeValidation},
		{"not the owner", func() error {
			_, err := env.Beneficiaries.ReplaceForNiche(ctx, n.ID, stranger.ID, testkit.Heirs(3))
			return err
		}, apperror.CodeNotCurrentOwner},
		{"disabled niche", func() error {
			_, err := env.Beneficiaries.ReplaceForNiche(ctx, disabled.ID, stranger.ID, testkit.Heirs(3))
			return err
		}, apperror.CodeNicheUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.Equal(t, tt.code, apperror.CodeOf(err))
		})
	}
}

func TestNextForNiche(t *testing.T) {
	env := testkit.New()
	ctx := env.Ctx()
	n, _, _ := env.Sold(t)

	next, err := env.Beneficiaries.NextForNiche(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, next.Order)

	_, err = env.Beneficiaries.MarkDeceased(ctx, next.ID, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "")
	require.NoError(t, err)

	next, err = env.Beneficiaries.NextForNiche(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, next.Order)
}

func TestMarkDeceased_Twice(t *testing.T) {
	env := testkit.New()
	ctx := env.Ctx()
	n, _, _ := env.Sold(t)
	next, err := env.Beneficiaries.NextForNiche(ctx, n.ID)
	require.NoError(t, err)

	date := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	marked, err := env.Beneficiaries.MarkDeceased(ctx, next.ID, date, "certificate")
	require.NoError(t, err)
	assert.True(t, marked.IsDeceased)
	assert.False(t, marked.IsActive)

	_, err = env.Beneficiaries.MarkDeceased(ctx, next.ID, date, "")
	assert.Equal(t, apperror.CodeInvalidStateTransition, apperror.CodeOf(err))
}

func TestNext(t *testing.T) {
	mk := func(order int, active, deceased bool) *beneficiary.Beneficiary {
		return &beneficiary.Beneficiary{Order: order, IsActive: active, IsDeceased: deceased}
	}
	tests := []struct {
		name string
		list []*beneficiary.Beneficiary
		want int
	}{
		{"lowest order wins", []*beneficiary.Beneficiary{mk(3, true, false), mk(1, true, false), mk(2, true, false)}, 1},
		{"skips inactive", []*beneficiary.Beneficiary{mk(1, false, false), mk(2, true, false)}, 2},
		{"skips deceased", []*beneficiary.Beneficiary{mk(1, true, true), mk(4, true, false)}, 4},
		{"none eligible", []*beneficiary.Beneficiary{mk(1, false, false)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := beneficiary.Next(tt.list)
			if tt.want == 0 {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Order)
		})
	}
}

func TestLedgerTimestampsFollowClock(t *testing.T) {
	env := testkit.New()
	ctx := env.Ctx()
	n := env.Niche(t, "20000")
	owner := env.Customer(t, "Carlos", "Ramirez")

	designated := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	env.SetNow(designated)
	first := env.Designate(t, n.ID, owner.ID)
	for _, b := range first {
		assert.True(t, designated.Equal(b.CreatedAt))
		assert.True(t, designated.Equal(b.UpdatedAt))
	}

	replaced := time.Date(2026, time.April, 7, 16, 30, 0, 0, time.UTC)
	env.SetNow(replaced)
	env.Designate(t, n.ID, owner.ID)

	all, err := env.Beneficiaries.ListByNiche(ctx, n.ID, false)
	require.NoError(t, err)
	require.Len(t, all, 6)
	for _, b := range all {
		if b.IsActive {
			assert.True(t, replaced.Equal(b.CreatedAt))
			continue
		}
		assert.True(t, designated.Equal(b.CreatedAt))
		assert.True(t, replaced.Equal(b.UpdatedAt))
	}

	deceased := time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC)
	env.SetNow(deceased)
	next, err := env.Beneficiaries.NextForNiche(ctx, n.ID)
	require.NoError(t, err)
	marked, err := env.Beneficiaries.MarkDeceased(ctx, next.ID, time.Date(2026, time.April, 28, 0, 0, 0, 0, time.UTC), "")
	require.NoError(t, err)
	assert.True(t, deceased.Equal(marked.UpdatedAt))
}
