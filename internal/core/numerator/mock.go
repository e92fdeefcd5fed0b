package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockGenerator is an in-memory Generator for unit tests.
// Numbers are sequential per prefix and year.
type MockGenerator struct {
	mu       sync.Mutex
	counters map[string]int64

	// Err, when set, is returned by every call.
	Err error
}

// GetNextNumber implements Generator.
func (m *MockGenerator) GetNextNumber(_ context.Context, cfg Config, period time.Time) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = make(map[string]int64)
	}
	key := fmt.Sprintf("%s-%d", cfg.Prefix, period.Year())
	m.counters[key]++
	return Format(cfg, period, m.counters[key]), nil
}

// Format renders a sequence value according to cfg.
func Format(cfg Config, period time.Time, value int64) string {
	width := cfg.PadWidth
	if width <= 0 {
		width = 5
	}
	if cfg.IncludeYear {
		return fmt.Sprintf("%s-%d-%0*d", cfg.Prefix, period.Year(), width, value)
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, width, value)
}

// Ensure compile-time interface compliance.
var _ Generator = (*MockGenerator)(nil)
