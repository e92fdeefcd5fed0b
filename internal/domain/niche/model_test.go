package niche

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"columbarium/internal/core/apperror"
	"columbarium/internal/core/id"
	"columbarium/internal/core/types"
)

func TestBuildCode(t *testing.T) {
	assert.Equal(t, "A-B2-3-14", BuildCode(" a ", "b2", 3, 14))
}

func TestNiche_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(n *Niche)
		ok     bool
	}{
		{"valid", func(*Niche) {}, true},
		{"bad type", func(n *Niche) { n.Type = "glass" }, false},
		{"negative price", func(n *Niche) { n.Price = types.MustMoney("-1") }, false},
		{"zero row", func(n *Niche) { n.Row = 0 }, false},
		{"sold without owner", func(n *Niche) { n.Status = StatusSold }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNiche("A", "1", 1, 1, TypeWood, types.MustMoney("1000"))
			tt.mutate(n)
			err := n.Validate(context.Background())
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestNiche_OwnershipLifecycle(t *testing.T) {
	n := NewNiche("A", "1", 1, 1, TypeMarble, types.MustMoney("1000"))
	first, second := id.New(), id.New()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	entries := n.Sell(first, "Sale VENTA-1", "u1", t0)
	require.Len(t, entries, 1)
	assert.True(t, n.IsOwnedBy(first))
	assert.Equal(t, StatusSold, n.Status)
	require.NoError(t, n.CheckOwnership())

	entries = n.TransferOwnership(second, ReasonSuccession, "", "u1", t0.AddDate(0, 1, 0))
	require.Len(t, entries, 2)
	assert.NotNil(t, entries[0].EndDate)
	assert.Nil(t, entries[1].EndDate)
	assert.True(t, n.IsOwnedBy(second))
	require.Len(t, n.History, 2)

	entries = n.ReleaseWithNote("cancelled", t0.AddDate(0, 2, 0))
	require.Len(t, entries, 1)
	assert.Equal(t, StatusAvailable, n.Status)
	assert.Nil(t, n.CurrentOwnerID)
	assert.Equal(t, "cancelled", n.Notes)
	require.NoError(t, n.CheckOwnership())
}

func TestNiche_DisableEnable(t *testing.T) {
	n := NewNiche("A", "1", 1, 1, TypeWood, types.MustMoney("1000"))
	require.NoError(t, n.Disable("repairs"))
	assert.Equal(t, StatusDisabled, n.Status)
	assert.Equal(t, apperror.CodeNicheUnavailable, apperror.CodeOf(n.RequireAvailable()))
	require.NoError(t, n.Enable())
	assert.True(t, n.IsAvailable())
	assert.Equal(t, apperror.CodeInvalidStateTransition, apperror.CodeOf(n.Enable()))

	n.MarkSold(id.New())
	assert.Equal(t, apperror.CodeInvalidStateTransition, apperror.CodeOf(n.Disable("")))
}
