// Package core provides the ledger domain types and amount handling.
//
// This file contains helpers for parsing and rounding monetary amounts.
// Amounts are exact decimals; rounding only happens on derived values.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount parses a decimal string. Both dot (12.34) and comma (12,34)
// separators are accepted, and a leading sign is kept.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,34")  -> 12.34
//	ParseAmount("-3")     -> -3
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// RoundCents rounds d to two decimal places, half away from zero.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Amount bounds. MaxAmountScale is the number of fractional digits kept and
// MaxAmount is an exclusive limit on the absolute value.
const (
	MaxAmountScale = 4

	maxAmountExponent = 12
	maxTrailingZeros  = 16
)

var MaxAmount = decimal.New(1, maxAmountExponent)

// ValidAmount reports whether d fits the stored amount range. Trailing zeros
// past MaxAmountScale are accepted. The exponent is checked first so that
// literals such as 1e-3000000 are rejected without rescaling.
func ValidAmount(d decimal.Decimal) bool {
	exp := d.Exponent()
	if exp < -(MaxAmountScale+maxTrailingZeros) || exp > maxAmountExponent {
		return false
	}
	if exp < -MaxAmountScale && !d.Equal(d.Truncate(MaxAmountScale)) {
		return false
	}
	return d.Abs().LessThan(MaxAmount)
}
