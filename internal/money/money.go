// Package money holds the fixed-point types used for every amount in settleup.
//
// Amounts are stored and computed as integer minor units (cents); percentages as
// basis points. Decimal text only appears at the edges: request parsing, JSON, and
// presentation.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidPercent = errors.New("invalid percentage")
)

// Cents is an amount of money in minor units.
type Cents int64

// Percent is a percentage in basis points: 100% is 10000.
type Percent int64

// Hundred is 100%.
const Hundred Percent = 10000

var (
	hundred  = decimal.NewFromInt(100)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
	minInt64 = decimal.NewFromInt(math.MinInt64)
)

// ParseCents parses a decimal string such as "12.34" or "12,34" into cents,
// rounding half away from zero on the third decimal place.
func ParseCents(s string) (Cents, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d)
}

// FromDecimal converts a decimal amount into cents. Amounts that do not fit
// in Cents fail with ErrInvalidAmount.
func FromDecimal(d decimal.Decimal) (Cents, error) {
	v, ok := scaled(d)
	if !ok {
		return 0, fmt.Errorf("%w: %s is out of range", ErrInvalidAmount, d)
	}
	return Cents(v), nil
}

// Decimal returns c as a decimal number of major units.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// String formats c with two decimals, e.g. "-12.30".
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// Abs returns the absolute value of c.
func (c Cents) Abs() Cents {
	if c < 0 {
		return -c
	}
	return c
}

// Sum adds up amounts.
func Sum(amounts ...Cents) Cents {
	var total Cents
	for _, a := range amounts {
		total += a
	}
	return total
}

// ParsePercent parses a percentage such as "33.33" into basis points.
func ParsePercent(s string) (Percent, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPercent, s)
	}
	return PercentFromDecimal(d)
}

// PercentFromDecimal converts a percentage value (0-100 scale) into basis
// points. Values that do not fit in Percent fail with ErrInvalidPercent.
func PercentFromDecimal(d decimal.Decimal) (Percent, error) {
	v, ok := scaled(d)
	if !ok {
		return 0, fmt.Errorf("%w: %s is out of range", ErrInvalidPercent, d)
	}
	return Percent(v), nil
}

// Decimal returns p on the 0-100 scale.
func (p Percent) Decimal() decimal.Decimal {
	return decimal.New(int64(p), -2)
}

// String formats p on the 0-100 scale without trailing zeros, e.g. "33.33" or "100".
func (p Percent) String() string {
	return p.Decimal().String()
}

// scaled returns d in hundredths, rounded half away from zero. It reports
// false when the result does not fit in an int64; IntPart alone would wrap.
func scaled(d decimal.Decimal) (int64, bool) {
	v := d.Mul(hundred).Round(0)
	if v.GreaterThan(maxInt64) || v.LessThan(minInt64) {
		return 0, false
	}
	return v.IntPart(), true
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	return decimal.NewFromString(s)
}
