package amortization

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"columbarium/internal/core/apperror"
	"columbarium/internal/core/id"
	"columbarium/internal/core/types"
)

var start = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

func TestGenerateTable_StandardSale(t *testing.T) {
	table, err := GenerateTable(types.MustMoney("30000"), DefaultMonths, start)
	require.NoError(t, err)
	require.Len(t, table, 18)

	for i := 0; i < 17; i++ {
		assert.Equal(t, "1666.67", table[i].Amount.StringFixed(2), "installment %d", i+1)
	}
	assert.Equal(t, "1666.61", table[17].Amount.StringFixed(2))
	assert.True(t, Total(table).Equal(types.MustMoney("30000")))

	for i, inst := range table {
		assert.Equal(t, i+1, inst.Number)
		assert.True(t, inst.AmountPaid.IsZero())
		assert.True(t, inst.AmountRemaining.Equal(inst.Amount))
		assert.Equal(t, StatusPending, inst.Status)
	}
	assert.Equal(t, time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC), table[0].DueDate)
	assert.Equal(t, time.Date(2027, 7, 15, 0, 0, 0, 0, time.UTC), table[17].DueDate)
}

func TestGenerateTable_SumWithinTolerance(t *testing.T) {
	cases := []struct {
		balance string
		months  int
	}{
		{"1000", 3},
		{"999.99", 7},
		{"12345.67", 18},
		{"100", 1},
		{"50000.01", 24},
	}
	for _, c := range cases {
		table, err := GenerateTable(types.MustMoney(c.balance), c.months, start)
		require.NoError(t, err)
		assert.True(t, Total(table).Equal(types.MustMoney(c.balance)), "balance %s", c.balance)
		assert.Len(t, table, c.months)
	}
}

func TestGenerateTable_Invalid(t *testing.T) {
	_, err := GenerateTable(types.MustMoney("1000"), 0, start)
	assert.True(t, apperror.IsBadRequest(err))

	_, err = GenerateTable(decimal.Zero, 18, start)
	assert.True(t, apperror.IsBadRequest(err))

	_, err = GenerateTable(types.MustMoney("0.05"), 18, start)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeBalanceTooSmall, apperror.CodeOf(err))

	_, err = GenerateTable(types.MustMoney("1.00"), 18, start)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeBalanceTooSmall, apperror.CodeOf(err))
}

func TestAddMonthsClamped(t *testing.T) {
	jan31 := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 2, 28, 10, 0, 0, 0, time.UTC), AddMonthsClamped(jan31, 1))
	assert.Equal(t, time.Date(2026, 3, 31, 10, 0, 0, 0, time.UTC), AddMonthsClamped(jan31, 2))
	assert.Equal(t, time.Date(2026, 4, 30, 10, 0, 0, 0, time.UTC), AddMonthsClamped(jan31, 3))
	assert.Equal(t, time.Date(2028, 2, 29, 10, 0, 0, 0, time.UTC), AddMonthsClamped(jan31, 25))
	assert.Equal(t, time.Date(2027, 1, 31, 10, 0, 0, 0, time.UTC), AddMonthsClamped(jan31, 12))
}

func TestRefreshOverdue(t *testing.T) {
	table, err := GenerateTable(types.MustMoney("300"), 3, start)
	require.NoError(t, err)
	table[0].Status = StatusPaid

	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	assert.True(t, RefreshOverdue(table, now))
	assert.Equal(t, StatusPaid, table[0].Status)
	assert.Equal(t, StatusOverdue, table[1].Status)
	assert.Equal(t, StatusPending, table[2].Status)
	assert.True(t, HasOverdue(table))

	assert.False(t, RefreshOverdue(table, now))
}

func TestApplyDistribution_KeepsInstallmentInvariant(t *testing.T) {
	table, err := GenerateTable(types.MustMoney("30000"), 18, start)
	require.NoError(t, err)

	payments := []string{"2000", "1500.50", "0.01", "10000"}
	for _, p := range payments {
		dist := CalculateDistribution(table, types.MustMoney(p), ModeFree, 0)
		ApplyDistribution(table, dist, id.New(), start)
	}

	for _, inst := range table {
		assert.True(t, inst.AmountPaid.Add(inst.AmountRemaining).Equal(inst.Amount), "installment %d", inst.Number)
	}
	assert.True(t, Outstanding(table).Equal(types.MustMoney("30000").Sub(types.MustMoney("13500.51"))))
}
