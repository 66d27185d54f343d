package swap

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/x402-foundation/swapgate/internal/types"
)

// maxUint64 as a decimal, for overflow checks on raw amounts.
var maxUint64 = decimal.RequireFromString("18446744073709551615")

// ToRawAmount converts a human-readable decimal amount to raw integer units
// for a mint with the given precision: floor(amount * 10^decimals).
func ToRawAmount(amount string, decimals uint8) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, types.Validationf("invalid amount %q: %v", amount, err)
	}
	if d.Sign() <= 0 {
		return 0, types.Validationf("amount must be positive, got %q", amount)
	}

	raw := d.Shift(int32(decimals)).Floor()
	if raw.Cmp(maxUint64) > 0 {
		return 0, types.Validationf("amount %q overflows raw units", amount)
	}
	return raw.BigInt().Uint64(), nil
}

// FromRawAmount converts raw integer units back to a human-readable decimal
// string, formatted to the mint's full precision.
func FromRawAmount(raw string, decimals uint8) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return "", types.Upstreamf("invalid raw amount %q: %v", raw, err)
	}
	if !d.Equal(d.Floor()) || d.Sign() < 0 {
		return "", types.Upstreamf("raw amount %q is not a non-negative integer", raw)
	}
	return d.Shift(-int32(decimals)).StringFixed(int32(decimals)), nil
}

// DescribeRoute collapses the ordered venue labels of a route plan into a
// human-readable description, dropping repeated labels while preserving
// first-seen order: [A, A, B, A] becomes "A → B".
func DescribeRoute(venues []string) string {
	seen := make(map[string]struct{}, len(venues))
	ordered := make([]string, 0, len(venues))
	for _, v := range venues {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		ordered = append(ordered, v)
	}
	return strings.Join(ordered, " → ")
}
