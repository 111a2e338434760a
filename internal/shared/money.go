package shared

import "github.com/shopspring/decimal"

var (
	// Tolerance absorbs rounding when comparing ledger totals.
	Tolerance = decimal.NewFromFloat(0.01)
	hundred   = decimal.NewFromInt(100)
)

// Round2 rounds a currency amount to cents.
func Round2(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// WithinTolerance reports whether a and b differ by at most one cent.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}

// Percent returns v·pct/100 without rounding.
func Percent(v, pct decimal.Decimal) decimal.Decimal {
	return v.Mul(pct).Div(hundred)
}

// MinDecimal returns the smaller amount.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
