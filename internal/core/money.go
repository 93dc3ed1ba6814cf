// Package core provides money parsing and handling utilities.
//
// Amounts are carried as int64 minor units (cents) everywhere; decimals only appear
// at the edges, when parsing user input or formatting for display.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var maxCents = decimal.NewFromInt(1<<63 - 1)

// Money is an amount in minor units of a single currency.
type Money struct {
	Cents    int64
	Currency string
}

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. The result is always positive cents.
// Returns an error for invalid formats, negative values, or zero amounts.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,34") -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") || strings.ContainsAny(s, "eE") {
		return 0, ErrInvalidAmount
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0)
	if !cents.IsPositive() || cents.GreaterThan(maxCents) {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// ParseCentsLenient is ParseDecimalToCents for dashboards: anything unparseable,
// zero or negative becomes 0 instead of an error.
func ParseCentsLenient(s string) int64 {
	cents, err := ParseDecimalToCents(s)
	if err != nil {
		return 0
	}
	return cents
}

// CentsToUnits converts minor units to whole currency units, rounding half away from zero.
func CentsToUnits(cents int64) int64 {
	return decimal.New(cents, -2).Round(0).IntPart()
}

// FormatCents renders cents as a fixed two-decimal amount followed by the currency code.
func FormatCents(cents int64, currency string) string {
	s := decimal.New(cents, -2).StringFixed(2)
	if currency == "" {
		return s
	}
	return s + " " + currency
}

// Units returns the amount in whole currency units as a float64 for display purposes.
// Use cents for calculations.
func (m Money) Units() float64 {
	return decimal.New(m.Cents, -2).InexactFloat64()
}

// String implements fmt.Stringer
func (m Money) String() string {
	return FormatCents(m.Cents, m.Currency)
}

// Validate checks that the amount is strictly positive.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
