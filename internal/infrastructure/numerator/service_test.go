package numerator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corenumerator "columbarium/internal/core/numerator"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier simulates one sys_sequences row per (prefix, year).
type mockQuerier struct {
	mu     sync.Mutex
	values map[string]int64
	err    error
}

func (m *mockQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return &mockRow{err: m.err}
	}
	if m.values == nil {
		m.values = make(map[string]int64)
	}
	key := args[0].(string) + "/" + time.Date(args[1].(int), 1, 1, 0, 0, 0, 0, time.UTC).Format("2006")
	m.values[key]++
	return &mockRow{val: m.values[key]}
}

func TestGetNextNumber_Sequential(t *testing.T) {
	svc := New(&mockQuerier{})
	ctx := context.Background()
	period := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cfg := corenumerator.DefaultConfig(corenumerator.PrefixSale)

	num, err := svc.GetNextNumber(ctx, cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "VENTA-2026-00001", num)

	num, err = svc.GetNextNumber(ctx, cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "VENTA-2026-00002", num)
}

func TestGetNextNumber_SeriesAreIndependent(t *testing.T) {
	svc := New(&mockQuerier{})
	ctx := context.Background()
	period := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.GetNextNumber(ctx, corenumerator.DefaultConfig(corenumerator.PrefixSale), period)
	require.NoError(t, err)

	num, err := svc.GetNextNumber(ctx, corenumerator.DefaultConfig(corenumerator.PrefixReceipt), period)
	require.NoError(t, err)
	assert.Equal(t, "REC-2026-00001", num)
}

func TestGetNextNumber_QueryError(t *testing.T) {
	svc := New(&mockQuerier{err: errors.New("connection reset")})
	_, err := svc.GetNextNumber(context.Background(), corenumerator.DefaultConfig("REC"), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "next number REC")
}

func TestParseNumber(t *testing.T) {
	assert.Equal(t, int64(42), ParseNumber("VENTA-2026-00042"))
	assert.Equal(t, int64(7), ParseNumber("REC-00007"))
	assert.Equal(t, int64(-1), ParseNumber("garbage"))
}
