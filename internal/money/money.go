// Package money holds currency amounts for borrower records and renders them
// the way operators read them in messages (grouped thousands, no symbol).
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNegative is returned when an amount that must be non-negative is below zero.
var ErrNegative = errors.New("amount must not be negative")

// FromInt builds an amount from a whole-rupee value.
func FromInt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// NonNegative reports ErrNegative for amounts below zero.
func NonNegative(d decimal.Decimal) error {
	if d.IsNegative() {
		return ErrNegative
	}
	return nil
}

// Format renders d with comma-grouped thousands. Whole amounts have no
// fractional part ("12,000"); anything else is shown to two places
// ("12,000.50").
func Format(d decimal.Decimal) string {
	neg := d.IsNegative()
	d = d.Abs().Round(2)

	digits, frac := d.String(), ""
	if !d.Equal(d.Truncate(0)) {
		fixed := d.StringFixed(2)
		dot := strings.IndexByte(fixed, '.')
		digits, frac = fixed[:dot], fixed[dot:]
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(digits) % 3
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	b.WriteString(frac)
	return b.String()
}
