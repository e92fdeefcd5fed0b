package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"columbarium/internal/domain/niche"
)

func TestInventoryLayout_Generate(t *testing.T) {
	layout := inventoryLayout{Modules: []string{"a"}, Sections: []string{"1", "2"}, Rows: 3, Numbers: 2}

	niches := layout.generate()
	require.Len(t, niches, 12)
	assert.Equal(t, 12, layout.size())

	first := niches[0]
	assert.Equal(t, "A-1-1-1", first.Code)
	assert.Equal(t, niche.TypeSpecial, first.Type)
	assert.True(t, first.Price.Equal(typePrices[niche.TypeSpecial]))
	assert.Equal(t, niche.StatusAvailable, first.Status)

	codes := make(map[string]struct{}, len(niches))
	for _, n := range niches {
		codes[n.Code] = struct{}{}
	}
	assert.Len(t, codes, len(niches))
}

func TestTypeForRow(t *testing.T) {
	assert.Equal(t, niche.TypeSpecial, typeForRow(1))
	assert.Equal(t, niche.TypeMarble, typeForRow(2))
	assert.Equal(t, niche.TypeWood, typeForRow(3))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, splitList(" A, ,B "))
	assert.Nil(t, splitList(""))
}
