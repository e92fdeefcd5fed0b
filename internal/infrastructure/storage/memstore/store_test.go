package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"columbarium/internal/core/apperror"
	"columbarium/internal/core/id"
	"columbarium/internal/core/types"
	"columbarium/internal/domain/audit"
	"columbarium/internal/domain/beneficiary"
	"columbarium/internal/domain/niche"
)

func testNiche(number int) *niche.Niche {
	return niche.NewNiche("A", "1", 1, number, niche.TypeWood, types.MustMoney("1000"))
}

func TestRunInTransaction_RollbackRestoresState(t *testing.T) {
	s := New()
	ctx := context.Background()
	kept := testNiche(1)
	require.NoError(t, s.Niches().Create(ctx, kept))

	boom := errors.New("boom")
	dropped := testNiche(2)
	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Niches().Create(ctx, dropped))
		require.NoError(t, s.Audit().Record(ctx, audit.Event{Action: audit.ActionCreateNiche}))

		n, err := s.Niches().GetForUpdate(ctx, kept.ID)
		require.NoError(t, err)
		require.NoError(t, n.Disable("x"))
		require.NoError(t, s.Niches().Update(ctx, n))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Niches().GetByID(ctx, dropped.ID)
	assert.True(t, apperror.IsNotFound(err))
	got, err := s.Niches().GetByID(ctx, kept.ID)
	require.NoError(t, err)
	assert.Equal(t, niche.StatusAvailable, got.Status)
	assert.Equal(t, 1, got.Version)
	assert.Empty(t, s.Audit().Events())
}

func TestRunInTransaction_NestedJoinsOuter(t *testing.T) {
	s := New()
	ctx := context.Background()
	n := testNiche(1)

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.RunInTransaction(ctx, func(ctx context.Context) error {
			return s.Niches().Create(ctx, n)
		}); err != nil {
			return err
		}
		return errors.New("outer failed")
	})
	require.Error(t, err)

	_, err = s.Niches().GetByID(ctx, n.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestNicheRepo_VersionConflict(t *testing.T) {
	s := New()
	ctx := context.Background()
	n := testNiche(1)
	require.NoError(t, s.Niches().Create(ctx, n))

	first, err := s.Niches().GetByID(ctx, n.ID)
	require.NoError(t, err)
	second, err := s.Niches().GetByID(ctx, n.ID)
	require.NoError(t, err)

	first.Notes = "first"
	require.NoError(t, s.Niches().Update(ctx, first))
	assert.Equal(t, 2, first.Version)

	second.Notes = "second"
	err = s.Niches().Update(ctx, second)
	assert.True(t, apperror.IsConcurrentModification(err))
}

func TestNicheRepo_DuplicateCodeAndIsolation(t *testing.T) {
	s := New()
	ctx := context.Background()
	n := testNiche(1)
	require.NoError(t, s.Niches().Create(ctx, n))

	err := s.Niches().Create(ctx, testNiche(1))
	assert.Equal(t, apperror.CodeDuplicate, apperror.CodeOf(err))

	n.Notes = "mutated after create"
	got, err := s.Niches().GetByCode(ctx, n.Code)
	require.NoError(t, err)
	assert.Empty(t, got.Notes)
}

func TestBeneficiaryRepo_ActivePriorityIsUnique(t *testing.T) {
	s := New()
	ctx := context.Background()
	nicheID := id.New()
	designator := id.New()
	at := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	entry := func(order int) *beneficiary.Beneficiary {
		return beneficiary.New(nicheID, designator, beneficiary.Input{Name: "Maria Lopez", Relationship: "esposa", Order: order}, at)
	}

	first := entry(1)
	require.NoError(t, s.Beneficiaries().CreateMany(ctx, []*beneficiary.Beneficiary{first}))

	err := s.Beneficiaries().CreateMany(ctx, []*beneficiary.Beneficiary{entry(1)})
	assert.Equal(t, apperror.CodeDuplicate, apperror.CodeOf(err))

	err = s.Beneficiaries().CreateMany(ctx, []*beneficiary.Beneficiary{entry(2), entry(2)})
	assert.Equal(t, apperror.CodeDuplicate, apperror.CodeOf(err))

	first.Deactivate(beneficiary.ReasonRemoved, at)
	require.NoError(t, s.Beneficiaries().Update(ctx, first))
	require.NoError(t, s.Beneficiaries().CreateMany(ctx, []*beneficiary.Beneficiary{entry(1)}))

	active, err := s.Beneficiaries().ListByNiche(ctx, nicheID, true)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}
