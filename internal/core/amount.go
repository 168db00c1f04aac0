// Package core holds the domain types shared by the pairing, replay and
// unifier services: postings, accounts, transfer groups and the unified
// transfer view.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-supplied decimal string into an amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// rejects empty, signed, non-numeric and non-positive values: every amount
// this module handles is a positive magnitude, the posting type carries
// the direction.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
