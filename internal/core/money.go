package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-supplied monetary string into a decimal amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up to two decimal places. Ledger amounts are always positive; empty,
// negative, zero and signed values are rejected.
//
// Examples:
//
//	ParseAmount("1250.50") -> 1250.50, nil
//	ParseAmount("1250,50") -> 1250.50, nil
//	ParseAmount("-10")     -> 0, ErrInvalidAmount
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
	return d.Round(2), nil
}

// SplitAmount partitions total into n shares of two decimal places. The first
// n-1 shares are equal and the last share absorbs the rounding remainder, so
// the shares always sum back to total exactly.
func SplitAmount(total decimal.Decimal, n int) []decimal.Decimal {
	if n <= 1 {
		return []decimal.Decimal{total}
	}
	per := total.DivRound(decimal.NewFromInt(int64(n)), 2)
	shares := make([]decimal.Decimal, n)
	sum := decimal.Zero
	for i := 0; i < n-1; i++ {
		shares[i] = per
		sum = sum.Add(per)
	}
	shares[n-1] = total.Sub(sum)
	return shares
}
