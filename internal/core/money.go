// Package core provides money parsing and handling utilities.
//
// This file contains the decimal Money type used on the wire and the
// helpers that turn user input into amounts and amounts into display text.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Money is a decimal amount that travels as a bare JSON number.
type Money struct {
	decimal.Decimal
}

// NewMoney builds Money from a float, for tests and fixtures.
func NewMoney(v float64) Money {
	return Money{Decimal: decimal.NewFromFloat(v)}
}

// MustMoney parses a decimal string and panics on malformed input.
func MustMoney(s string) Money {
	return Money{Decimal: decimal.RequireFromString(s)}
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.String()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	return m.Decimal.UnmarshalJSON(b)
}

// ParseAmount converts user input to a positive Money value.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// rounds half-up to two decimals. Signs, empty input, garbage and zero
// are rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,345") -> 12.35
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Money{}, ErrInvalidAmount
	}
	for _, p := range parts {
		for _, r := range p {
			if !unicode.IsDigit(r) {
				return Money{}, ErrInvalidAmount
			}
		}
	}
	if parts[0] == "" {
		parts[0] = "0"
	}
	s = parts[0]
	if len(parts) == 2 && parts[1] != "" {
		s += "." + parts[1]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return Money{}, ErrInvalidAmount
	}
	return Money{Decimal: d}, nil
}

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"INR": "₹",
	"GBP": "£",
}

// FormatCurrency renders an amount with thousands separators, e.g. "$1,234.50".
// INR amounts are shown without decimals, matching the leaderboard display.
func FormatCurrency(amount decimal.Decimal, currency string) string {
	currency = strings.ToUpper(currency)
	symbol, ok := currencySymbols[currency]
	if !ok {
		symbol = currency + " "
	}
	places := int32(2)
	if currency == "INR" {
		places = 0
	}

	neg := amount.IsNegative()
	s := amount.Abs().StringFixed(places)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := symbol + b.String()
	if frac != "" {
		out += "." + frac
	}
	if neg {
		return "-" + out
	}
	return out
}
