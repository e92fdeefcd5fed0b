package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"columbarium/internal/domain/audit"
)

func newTestSink(t *testing.T) *AuditSink {
	t.Helper()
	sink, err := NewAuditSink(nil)
	require.NoError(t, err)
	return sink
}

func TestAuditSink_SmallPayloadStaysPlain(t *testing.T) {
	sink := newTestSink(t)
	e := audit.Event{Action: audit.ActionCreateSale, Module: audit.ModuleSales, Details: map[string]any{"folio": "VENTA-2026-00001"}}

	entry, err := sink.toEntry(e)
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, entry.CompressionAlgo)
	assert.JSONEq(t, `{"folio":"VENTA-2026-00001"}`, string(entry.Details))
	assert.Nil(t, entry.DetailsCompressed)
	assert.False(t, entry.CreatedAt.IsZero())
}

func TestAuditSink_LargePayloadRoundTrip(t *testing.T) {
	sink := newTestSink(t)
	notes := strings.Repeat("nicho ", 2000)
	e := audit.Event{Action: audit.ActionCreateBulkSale, Details: map[string]any{"notes": notes}}

	entry, err := sink.toEntry(e)
	require.NoError(t, err)
	require.Equal(t, CompressionZstd, entry.CompressionAlgo)
	assert.Nil(t, entry.Details)
	assert.Less(t, len(entry.DetailsCompressed), len(notes))

	require.NoError(t, sink.decompress(&entry))
	assert.Contains(t, string(entry.Details), notes)
}
