// =============================
// File: internal/dex/amm/amm.go
// =============================

// Package amm holds the constant-product math shared by liquidity pairs, the
// router quotes and the bonding curve.
package amm

import (
	"math/big"

	"github.com/rovshanmuradov/launchpad/internal/apperr"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

// AmountOut returns the output of swapping amountIn against the reserves.
//
// Формула constant product: out = y * a' / (x + a'), где a' = a * (1 - fee).
// Result is floored, so (x+a)*(y-out) >= x*y always holds.
func AmountOut(amountIn, reserveIn, reserveOut *big.Int, feeBps uint32) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, apperr.InvalidAmount("amm.amountOut", "amount in must be positive")
	}
	if feeBps >= types.BasisPoints {
		return nil, apperr.InvalidAmount("amm.amountOut", "fee %d bps leaves nothing to swap", feeBps)
	}
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, apperr.New(apperr.KindInsufficientReserve, "amm.amountOut", "pool has no liquidity")
	}

	effective := AfterFee(amountIn, feeBps)
	numerator := new(big.Int).Mul(reserveOut, effective)
	denominator := new(big.Int).Add(reserveIn, effective)
	return numerator.Quo(numerator, denominator), nil
}

// AmountIn returns the smallest input that yields at least amountOut. Rounds up.
func AmountIn(amountOut, reserveIn, reserveOut *big.Int, feeBps uint32) (*big.Int, error) {
	if amountOut == nil || amountOut.Sign() <= 0 {
		return nil, apperr.InvalidAmount("amm.amountIn", "amount out must be positive")
	}
	if feeBps >= types.BasisPoints {
		return nil, apperr.InvalidAmount("amm.amountIn", "fee %d bps leaves nothing to swap", feeBps)
	}
	if reserveIn.Sign() <= 0 || reserveOut.Cmp(amountOut) <= 0 {
		return nil, apperr.New(apperr.KindInsufficientReserve, "amm.amountIn",
			"reserve %s cannot cover %s", reserveOut, amountOut)
	}

	// effective = ceil(x * out / (y - out))
	numerator := new(big.Int).Mul(reserveIn, amountOut)
	effective := ceilDiv(numerator, new(big.Int).Sub(reserveOut, amountOut))
	if feeBps == 0 {
		return effective, nil
	}
	gross := new(big.Int).Mul(effective, big.NewInt(types.BasisPoints))
	return ceilDiv(gross, big.NewInt(int64(types.BasisPoints-feeBps))), nil
}

// AfterFee strips the LP fee from amount.
func AfterFee(amount *big.Int, feeBps uint32) *big.Int {
	return types.ApplyBps(amount, types.BasisPoints-feeBps)
}

// K returns the invariant product of two reserves.
func K(reserveA, reserveB *big.Int) *big.Int {
	return new(big.Int).Mul(reserveA, reserveB)
}

// SpotPrice returns units of quote per unit of base, for display only.
func SpotPrice(reserveBase, reserveQuote *big.Int) float64 {
	if reserveBase == nil || reserveBase.Sign() == 0 {
		return 0
	}
	price, _ := new(big.Rat).SetFrac(reserveQuote, reserveBase).Float64()
	return price
}

func ceilDiv(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
