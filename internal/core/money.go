// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and rendering them for display with the ledger's currency symbol.
package core

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// CurrencySymbol prefixes every formatted amount.
const CurrencySymbol = "₱"

// Money is a positive decimal amount. It serializes as a bare JSON number.
type Money struct {
	decimal.Decimal
}

// NewMoney wraps a decimal value without validating it.
func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

// MustMoney parses s and panics on error. Intended for tests and fixtures.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(fmt.Sprintf("core.MustMoney(%q): %v", s, err))
	}
	return m
}

// ParseMoney converts a decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and keeps
// the full input precision. Returns ErrInvalidAmount for invalid formats,
// signed values, or zero amounts.
//
// Examples:
//
//	ParseMoney("12.34") -> 12.34, nil
//	ParseMoney("12,5")  -> 12.5, nil
//	ParseMoney("0")     -> error
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Money{}, ErrInvalidAmount
	}
	for _, part := range parts {
		for _, r := range part {
			if !unicode.IsDigit(r) {
				return Money{}, ErrInvalidAmount
			}
		}
	}
	if parts[0] == "" {
		s = "0" + s
	}
	d, err := decimal.NewFromString(strings.TrimSuffix(s, "."))
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	m := Money{Decimal: d}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

func (m Money) Validate() error {
	if !m.Decimal.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// MarshalJSON writes the raw decimal without quotes, symbol or grouping.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.String()), nil
}

// UnmarshalJSON accepts both quoted and bare numbers.
func (m *Money) UnmarshalJSON(data []byte) error {
	return m.Decimal.UnmarshalJSON(data)
}

// FormatCurrency renders d as ₱1,234.56: two decimals, half-up rounding,
// thousands grouped. Negative values get a leading minus sign.
func FormatCurrency(d decimal.Decimal) string {
	fixed := d.Round(2)
	sign := ""
	if fixed.IsNegative() {
		sign = "-"
		fixed = fixed.Neg()
	}
	whole := fixed.Truncate(0)
	cents := fixed.Sub(whole).Shift(2).IntPart()
	return fmt.Sprintf("%s%s%s.%02d", sign, CurrencySymbol, humanize.BigComma(whole.BigInt()), cents)
}
