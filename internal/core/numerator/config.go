// Package numerator provides the contract for folio and receipt numbering.
// Implementations live in infrastructure layer.
package numerator

// Prefixes of the number series issued by the platform.
const (
	PrefixSale        = "VENTA"
	PrefixBulkSale    = "BULK"
	PrefixReceipt     = "REC"
	PrefixMaintenance = "MANT"
	PrefixRefund      = "REFUND"
)

// Config holds numbering configuration.
type Config struct {
	// Prefix added to all numbers (e.g., "VENTA", "REC")
	Prefix string

	// IncludeYear adds year to the number and restarts the series every year
	IncludeYear bool

	// PadWidth is the minimum number width (default 5)
	PadWidth int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    5,
	}
}
