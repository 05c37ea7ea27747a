// Package core provides money parsing and handling utilities.
//
// Amounts are shopspring decimals with at most two fractional digits.
// Floats only appear at the outer boundaries (model output, JSON numbers)
// and are converted once, here.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits an amount may carry.
const MoneyScale = 2

// MaxAmount is the largest magnitude an amount or a balance may reach. It is
// the range of a NUMERIC(15,2) column.
var MaxAmount = decimal.RequireFromString("9999999999999.99")

// ValidateAmount checks a transaction amount: non-negative, at most two
// fractional digits, no larger than MaxAmount.
func ValidateAmount(d decimal.Decimal) error {
	if d.IsNegative() || d.GreaterThan(MaxAmount) {
		return ErrInvalidAmount
	}
	if !d.Equal(d.Round(MoneyScale)) {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateBalance checks that a running balance stays within ±MaxAmount.
func ValidateBalance(d decimal.Decimal) error {
	if d.Abs().GreaterThan(MaxAmount) {
		return ErrBalanceOutOfRange
	}
	return nil
}

// MaxBalanceCents is MaxAmount in minor units.
const MaxBalanceCents int64 = 999999999999999

// ParseAmount converts a decimal string to an amount with half-up rounding
// to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Negative values, signs and anything that is not a plain decimal are
// rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,345") -> 12.35
//	ParseAmount("-1")     -> ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d.Round(MoneyScale), nil
}

// AmountFromFloat converts a float from an outer boundary, rejecting
// non-finite and negative values.
func AmountFromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	return decimal.NewFromFloat(f).Round(MoneyScale), nil
}

// ToCents converts an amount to integer minor units. The amount must
// already satisfy the two-digit scale.
func ToCents(d decimal.Decimal) (int64, error) {
	if !d.Equal(d.Round(MoneyScale)) {
		return 0, ErrInvalidAmount
	}
	shifted := d.Shift(MoneyScale)
	if !shifted.IsInteger() || shifted.Abs().GreaterThan(decimal.NewFromInt(math.MaxInt64/2)) {
		return 0, ErrInvalidAmount
	}
	return shifted.IntPart(), nil
}

// FromCents converts integer minor units back to an amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -MoneyScale)
}
