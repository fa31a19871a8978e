package amm

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/launchpad/internal/apperr"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

func TestAmountOut(t *testing.T) {
	tests := []struct {
		name     string
		in, x, y int64
		fee      uint32
		want     int64
		wantKind apperr.Kind
	}{
		{name: "no fee", in: 100, x: 1000, y: 1000, fee: 0, want: 90},
		{name: "with fee", in: 1000, x: 10000, y: 10000, fee: 30, want: 906},
		{name: "tiny input floors to zero", in: 1, x: 1000, y: 10, fee: 0, want: 0},
		{name: "zero input", in: 0, x: 1000, y: 1000, wantKind: apperr.KindInvalidAmount},
		{name: "empty pool", in: 10, x: 0, y: 0, wantKind: apperr.KindInsufficientReserve},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := AmountOut(big.NewInt(tt.in), big.NewInt(tt.x), big.NewInt(tt.y), tt.fee)
			if tt.wantKind != apperr.KindUnknown {
				assert.Equal(t, tt.wantKind, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Int64())
		})
	}
}

func TestAmountInInvertsAmountOut(t *testing.T) {
	x, y := types.Tokens(5000), types.Tokens(2_000_000)
	want := types.Tokens(1234)

	in, err := AmountIn(want, x, y, 100)
	require.NoError(t, err)

	out, err := AmountOut(in, x, y, 100)
	require.NoError(t, err)
	assert.True(t, out.Cmp(want) >= 0, "out %s < want %s", out, want)

	less, err := AmountOut(new(big.Int).Sub(in, big.NewInt(2)), x, y, 100)
	require.NoError(t, err)
	assert.True(t, less.Cmp(want) < 0)

	_, err = AmountIn(y, x, y, 0)
	assert.ErrorIs(t, err, apperr.ErrInsufficientReserve)
}

func TestInvariantNeverDecreases(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	x, y := types.Tokens(1000), types.Tokens(1000)

	for i := 0; i < 500; i++ {
		in := new(big.Int).Rand(rng, types.Tokens(300))
		in.Add(in, big.NewInt(1))
		fee := uint32(rng.Intn(100))

		before := K(x, y)
		out, err := AmountOut(in, x, y, fee)
		require.NoError(t, err)
		require.True(t, out.Cmp(y) < 0, "out %s drains reserve %s", out, y)

		x = new(big.Int).Add(x, in)
		y = new(big.Int).Sub(y, out)
		require.True(t, K(x, y).Cmp(before) >= 0, "k decreased at step %d", i)

		if rng.Intn(2) == 0 {
			x, y = y, x
		}
	}
}

func TestSpotPrice(t *testing.T) {
	assert.InDelta(t, 0.5, SpotPrice(big.NewInt(2000), big.NewInt(1000)), 1e-12)
	assert.Zero(t, SpotPrice(big.NewInt(0), big.NewInt(1000)))
}
