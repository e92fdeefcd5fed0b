package numerator

import (
	"context"
	"time"
)

// Generator issues globally unique numbers for a series.
//
// Pattern: PREFIX-YEAR-XXXXX (e.g., VENTA-2026-00001).
// Implementations must join the transaction carried by ctx so a rolled back
// operation does not consume a number.
type Generator interface {
	GetNextNumber(ctx context.Context, cfg Config, period time.Time) (string, error)
}
