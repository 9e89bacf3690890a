package money

import "math"

// Tolerance absorbs float drift when comparing ledger amounts. Amounts
// are stored rounded to 2 decimals; anything inside the tolerance is
// treated as equal.
const Tolerance = 0.001

type Currency string

const (
	VES Currency = "VES"
	USD Currency = "USD"
	EUR Currency = "EUR"
)

func (c Currency) Valid() bool {
	switch c {
	case VES, USD, EUR:
		return true
	}
	return false
}

// Round2 rounds half away from zero to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// GTE reports a >= b within tolerance.
func GTE(a, b float64) bool {
	return a >= b-Tolerance
}

// Positive reports v > 0 beyond tolerance.
func Positive(v float64) bool {
	return v > Tolerance
}

// Equal reports |a-b| within tolerance.
func Equal(a, b float64) bool {
	return math.Abs(a-b) <= Tolerance
}
