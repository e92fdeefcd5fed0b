package amortization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"columbarium/internal/core/id"
	"columbarium/internal/core/types"
)

func standardTable(t *testing.T) []Installment {
	t.Helper()
	table, err := GenerateTable(types.MustMoney("30000"), 18, start)
	require.NoError(t, err)
	return table
}

func TestCalculateDistribution_FreeSpillsIntoNext(t *testing.T) {
	table := standardTable(t)

	dist := CalculateDistribution(table, types.MustMoney("2000"), ModeFree, 0)
	require.Len(t, dist.Lines, 2)
	assert.Equal(t, 1, dist.Lines[0].InstallmentNumber)
	assert.Equal(t, "1666.67", dist.Lines[0].AppliedAmount.StringFixed(2))
	assert.True(t, dist.Lines[0].RemainingAfter.IsZero())
	assert.Equal(t, 2, dist.Lines[1].InstallmentNumber)
	assert.Equal(t, "333.33", dist.Lines[1].AppliedAmount.StringFixed(2))
	assert.Equal(t, "1333.34", dist.Lines[1].RemainingAfter.StringFixed(2))
	assert.True(t, dist.Unapplied.IsZero())

	ApplyDistribution(table, dist, id.New(), start)
	assert.Equal(t, StatusPaid, table[0].Status)
	assert.Equal(t, StatusPartial, table[1].Status)
	assert.Equal(t, StatusPending, table[2].Status)
	assert.Len(t, table[1].Payments, 1)

	// no mutation by calculation
	again := CalculateDistribution(table, types.MustMoney("1"), ModeFree, 0)
	assert.Equal(t, 2, again.Lines[0].InstallmentNumber)
}

func TestCalculateDistribution_SplitEqualsSingle(t *testing.T) {
	split := standardTable(t)
	single := standardTable(t)

	for _, amt := range []string{"1234.56", "2765.44"} {
		d := CalculateDistribution(split, types.MustMoney(amt), ModeFree, 0)
		ApplyDistribution(split, d, id.New(), start)
	}
	d := CalculateDistribution(single, types.MustMoney("4000"), ModeFree, 0)
	ApplyDistribution(single, d, id.New(), start)

	for i := range split {
		assert.True(t, split[i].AmountRemaining.Equal(single[i].AmountRemaining), "installment %d", i+1)
		assert.Equal(t, split[i].Status, single[i].Status)
	}
}

func TestCalculateDistribution_Specific(t *testing.T) {
	table := standardTable(t)

	dist := CalculateDistribution(table, types.MustMoney("500"), ModeSpecific, 5)
	require.Len(t, dist.Lines, 1)
	assert.Equal(t, 5, dist.Lines[0].InstallmentNumber)
	assert.Equal(t, "500.00", dist.Lines[0].AppliedAmount.StringFixed(2))

	over := CalculateDistribution(table, types.MustMoney("2000"), ModeSpecific, 5)
	require.Len(t, over.Lines, 1)
	assert.Equal(t, "1666.67", over.Applied.StringFixed(2))
	assert.Equal(t, "333.33", over.Unapplied.StringFixed(2))

	missing := CalculateDistribution(table, types.MustMoney("10"), ModeSpecific, 99)
	assert.True(t, missing.IsEmpty())

	ApplyDistribution(table, over, id.New(), start)
	paid := CalculateDistribution(table, types.MustMoney("10"), ModeSpecific, 5)
	assert.True(t, paid.IsEmpty())
}

func TestCalculateDistribution_Overpayment(t *testing.T) {
	table, err := GenerateTable(types.MustMoney("300"), 3, start)
	require.NoError(t, err)

	dist := CalculateDistribution(table, types.MustMoney("350"), ModeFree, 0)
	assert.Len(t, dist.Lines, 3)
	assert.Equal(t, "300.00", dist.Applied.StringFixed(2))
	assert.Equal(t, "50.00", dist.Unapplied.StringFixed(2))
}

func TestCalculateDistribution_NothingOutstanding(t *testing.T) {
	table, err := GenerateTable(types.MustMoney("300"), 3, start)
	require.NoError(t, err)
	ApplyDistribution(table, CalculateDistribution(table, types.MustMoney("300"), ModeFree, 0), id.New(), start)

	dist := CalculateDistribution(table, types.MustMoney("1"), ModeFree, 0)
	assert.True(t, dist.IsEmpty())
	assert.Equal(t, "1", dist.Unapplied.String())
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeSpecific, ParseMode("specific"))
	assert.Equal(t, ModeFree, ParseMode(""))
	assert.Equal(t, ModeFree, ParseMode("whatever"))
}
