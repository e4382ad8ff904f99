// Package money provides fixed-precision amount helpers shared by the entry forms.
package money

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places amounts are kept at.
const Scale = 2

// Tolerance is the smallest difference that still counts as an imbalance.
var Tolerance = decimal.New(1, -Scale)

// Round2 rounds half away from zero to two decimal places.
func Round2(x decimal.Decimal) decimal.Decimal {
	return x.Round(Scale)
}

// Sum totals the values. Zero values contribute nothing.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Proportion returns part/whole, or zero when whole is zero.
func Proportion(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole)
}

// Parse reads a decimal string. Anything unparsable becomes zero.
func Parse(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FromFloat converts a float, mapping NaN and infinities to zero.
func FromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

// NonNegative clamps negative amounts to zero.
func NonNegative(x decimal.Decimal) decimal.Decimal {
	if x.IsNegative() {
		return decimal.Zero
	}
	return x
}

// Fixed renders the amount with exactly two decimals, the wire format the ERP backend expects.
func Fixed(x decimal.Decimal) string {
	return x.StringFixed(Scale)
}
