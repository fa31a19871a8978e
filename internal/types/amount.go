// internal/types/amount.go
package types

import (
	"fmt"
	"math/big"
	"strings"
)

// Decimals is the precision of every token handled by the platform.
const Decimals = 18

// BasisPoints is the denominator of all bps-denominated rates.
const BasisPoints = 10_000

var unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// Unit returns 10^Decimals.
func Unit() *big.Int {
	return new(big.Int).Set(unit)
}

// Zero returns a fresh zero amount.
func Zero() *big.Int {
	return new(big.Int)
}

// Copy returns an independent copy of x, or zero for nil.
func Copy(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(x)
}

// Tokens converts a whole-token count to raw units.
func Tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), unit)
}

// ParseUnits parses a decimal string like "1000.5" into raw units.
func ParseUnits(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	intPart, fracPart, _ := strings.Cut(s, ".")
	if len(fracPart) > Decimals {
		return nil, fmt.Errorf("amount %q has more than %d decimals", s, Decimals)
	}
	fracPart += strings.Repeat("0", Decimals-len(fracPart))
	v, ok := new(big.Int).SetString(intPart+fracPart, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	return v, nil
}

// MustParseUnits is ParseUnits for constants.
func MustParseUnits(s string) *big.Int {
	v, err := ParseUnits(s)
	if err != nil {
		panic(err)
	}
	return v
}

// FormatUnits renders raw units as a decimal string without trailing zeros.
func FormatUnits(x *big.Int) string {
	if x == nil {
		return "0"
	}
	q, r := new(big.Int).QuoRem(x, unit, new(big.Int))
	if r.Sign() == 0 {
		return q.String()
	}
	frac := fmt.Sprintf("%0*s", Decimals, new(big.Int).Abs(r).String())
	return q.String() + "." + strings.TrimRight(frac, "0")
}

// ApplyBps returns floor(x * bps / 10000).
func ApplyBps(x *big.Int, bps uint32) *big.Int {
	out := new(big.Int).Mul(x, big.NewInt(int64(bps)))
	return out.Quo(out, big.NewInt(BasisPoints))
}

// ToFloat converts raw units to a float for display and metrics only.
func ToFloat(x *big.Int) float64 {
	if x == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(x), new(big.Float).SetInt(unit)).Float64()
	return f
}

// MaxAmount is 2^256-1. An allowance of MaxAmount is never decreased.
var MaxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// IsMax reports whether x equals MaxAmount.
func IsMax(x *big.Int) bool {
	return x != nil && x.Cmp(MaxAmount) == 0
}
