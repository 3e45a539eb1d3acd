// Package core provides money parsing and handling utilities.
//
// This file contains the decimal-backed Money type and the parser used for
// user-entered amounts.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Money is a decimal amount of euros. It is encoded in JSON as a bare number
// so persisted collections keep the shape `"amount": 12.5`.
type Money struct {
	decimal.Decimal
}

var decimalHundred = decimal.NewFromInt(100)

// NewMoney returns a Money from a decimal value.
func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

// MustMoney parses s and panics on error. Intended for tests and constants.
func MustMoney(s string) Money {
	return Money{Decimal: decimal.RequireFromString(s)}
}

// Validate reports whether m is a usable transaction amount.
func (m Money) Validate() error {
	if !m.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{Decimal: m.Decimal.Add(other.Decimal)}
}

// Sub returns m - other.
func (m Money) Sub(other Money) Money {
	return Money{Decimal: m.Decimal.Sub(other.Decimal)}
}

// Equal compares by value, so 20 and 20.00 are equal.
func (m Money) Equal(other Money) bool {
	return m.Decimal.Equal(other.Decimal)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.String()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*m = Money{}
		return nil
	}
	return m.Decimal.UnmarshalJSON(b)
}

// ParseAmount converts a user-entered decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Amounts are
// rounded half-up to cents. Negative, zero and malformed values are rejected.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("12.345") -> 12.35, nil
func ParseAmount(s string) (Money, error) {
	m, err := parseDecimal(s, false)
	if err != nil {
		return Money{}, err
	}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// ParseBalance is like ParseAmount but also accepts zero and a leading minus
// sign. Used for opening balances and budgets.
func ParseBalance(s string) (Money, error) {
	return parseDecimal(s, true)
}

func parseDecimal(s string, signed bool) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", ".")
	neg := false
	if signed && strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return Money{}, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if neg {
		d = d.Neg()
	}
	return Money{Decimal: d.Round(2)}, nil
}
