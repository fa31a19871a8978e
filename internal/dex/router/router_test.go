package router

import (
	"context"
	"math/big"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/launchpad/internal/apperr"
	"github.com/rovshanmuradov/launchpad/internal/dex/factory"
	"github.com/rovshanmuradov/launchpad/internal/dex/pair"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/token"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

type env struct {
	l        *ledger.Ledger
	tokens   *token.Registry
	f        *factory.Factory
	r        *Router
	asset    *token.Token
	fun      *token.Token
	other    *token.Token
	admin    types.Address
	trader   types.Address
	treasury types.Address
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := zaptest.NewLogger(t)
	e := &env{
		l:        ledger.New(logger),
		tokens:   token.NewRegistry(logger),
		admin:    solana.NewWallet().PublicKey(),
		trader:   solana.NewWallet().PublicKey(),
		treasury: solana.NewWallet().PublicKey(),
	}
	e.f = factory.New(factory.Config{Address: types.MustDeriveAddress([]byte("factory")), Admin: e.admin}, e.tokens, logger)

	e.exec(t, e.admin, func(tx *ledger.Tx) error {
		var err error
		if e.asset, err = e.tokens.Deploy(tx, e.admin, token.Config{Name: "Asset", Symbol: "AST"}); err != nil {
			return err
		}
		if e.fun, err = e.tokens.Deploy(tx, e.admin, token.Config{Name: "Fun", Symbol: "FUN"}); err != nil {
			return err
		}
		if e.other, err = e.tokens.Deploy(tx, e.admin, token.Config{Name: "Other", Symbol: "OTH"}); err != nil {
			return err
		}
		e.r = New(Config{Address: types.MustDeriveAddress([]byte("router")), Admin: e.admin, Asset: e.asset.Address()}, e.f, e.tokens, logger)

		steps := []func() error{
			func() error { return e.f.GrantRole(tx, e.admin, factory.CreatorRole, e.admin) },
			func() error { return e.f.GrantRole(tx, e.admin, factory.AdminRole, e.admin) },
			func() error { return e.f.SetRouter(tx, e.admin, e.r.Address()) },
			func() error { return e.f.SetTaxParams(tx, e.admin, e.treasury, 100, 200) },
			func() error { return e.r.GrantRole(tx, e.admin, ExecutorRole, e.admin) },
			func() error { return e.asset.SetExempt(tx, e.admin, e.r.Address(), true) },
		}
		for _, tok := range []*token.Token{e.asset, e.fun, e.other} {
			tok := tok
			steps = append(steps,
				func() error { return tok.Mint(tx, e.admin, e.admin, types.Tokens(1_000_000)) },
				func() error { return tok.Mint(tx, e.admin, e.trader, types.Tokens(10_000)) },
				func() error { return tok.Approve(tx, e.admin, e.r.Address(), types.MaxAmount) },
				func() error { return tok.Approve(tx, e.trader, e.r.Address(), types.MaxAmount) },
			)
		}
		for _, step := range steps {
			if err := step(); err != nil {
				return err
			}
		}
		return nil
	})
	return e
}

func (e *env) exec(t *testing.T, sender types.Address, fn func(tx *ledger.Tx) error) {
	t.Helper()
	_, err := e.l.Execute(context.Background(), "test", sender, fn)
	require.NoError(t, err)
}

func (e *env) try(sender types.Address, fn func(tx *ledger.Tx) error) error {
	_, err := e.l.Execute(context.Background(), "test", sender, fn)
	return err
}

// listFun creates the FUN/asset pair and seeds it 100k FUN : 1k asset.
func (e *env) listFun(t *testing.T) *pair.Pair {
	t.Helper()
	e.exec(t, e.admin, func(tx *ledger.Tx) error {
		if _, err := e.f.CreatePair(tx, e.admin, e.fun.Address(), e.asset.Address()); err != nil {
			return err
		}
		return e.r.AddInitialLiquidity(tx, e.admin, e.fun.Address(), types.Tokens(100_000), types.Tokens(1_000))
	})
	p, err := e.f.Pair(e.fun.Address(), e.asset.Address())
	require.NoError(t, err)
	return p
}

type balances map[string]string

func (e *env) snapshot(accounts ...types.Address) balances {
	out := balances{}
	for _, acc := range accounts {
		for _, tok := range []*token.Token{e.asset, e.fun, e.other} {
			out[tok.Symbol()+"/"+acc.String()] = tok.BalanceOf(acc).String()
		}
	}
	return out
}

func TestAddInitialLiquidity(t *testing.T) {
	e := newEnv(t)
	p := e.listFun(t)

	fr, _ := p.ReserveOf(e.fun.Address())
	ar, _ := p.ReserveOf(e.asset.Address())
	assert.Equal(t, types.Tokens(100_000).String(), fr.String())
	assert.Equal(t, types.Tokens(1_000).String(), ar.String())

	err := e.try(e.admin, func(tx *ledger.Tx) error {
		return e.r.AddInitialLiquidity(tx, e.admin, e.fun.Address(), types.Tokens(1), types.Tokens(1))
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	err = e.try(e.trader, func(tx *ledger.Tx) error {
		return e.r.AddInitialLiquidity(tx, e.trader, e.other.Address(), types.Tokens(1), types.Tokens(1))
	})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestBuyAndSellChargeTax(t *testing.T) {
	e := newEnv(t)
	p := e.listFun(t)

	quote, err := e.r.Quote(e.fun.Address(), types.Tokens(10), true)
	require.NoError(t, err)

	var bought *big.Int
	e.exec(t, e.trader, func(tx *ledger.Tx) error {
		var err error
		bought, err = e.r.Buy(tx, e.trader, types.Tokens(10), e.fun.Address(), e.trader, quote)
		return err
	})
	assert.Equal(t, quote.String(), bought.String())
	// 1% of 10 asset
	assert.Equal(t, types.MustParseUnits("0.1").String(), e.asset.BalanceOf(e.treasury).String())
	assert.Equal(t, types.Tokens(9_990).String(), e.asset.BalanceOf(e.trader).String())
	assert.Equal(t, new(big.Int).Add(types.Tokens(10_000), bought).String(), e.fun.BalanceOf(e.trader).String())

	sellQuote, err := e.r.Quote(e.fun.Address(), bought, false)
	require.NoError(t, err)
	treasuryBefore := e.asset.BalanceOf(e.treasury)

	var got *big.Int
	e.exec(t, e.trader, func(tx *ledger.Tx) error {
		var err error
		got, err = e.r.Sell(tx, e.trader, bought, e.fun.Address(), e.trader, sellQuote)
		return err
	})
	assert.Equal(t, sellQuote.String(), got.String())
	assert.True(t, e.asset.BalanceOf(e.treasury).Cmp(treasuryBefore) > 0)
	assert.Zero(t, e.asset.BalanceOf(e.r.Address()).Sign(), "router keeps no asset")

	fr, ar := p.Reserves()
	assert.Equal(t, p.KLast().String(), new(big.Int).Mul(fr, ar).String())
}

func TestBuySlippageRevertsEverything(t *testing.T) {
	e := newEnv(t)
	p := e.listFun(t)
	before := e.snapshot(e.trader, e.treasury, p.Address())

	err := e.try(e.trader, func(tx *ledger.Tx) error {
		_, err := e.r.Buy(tx, e.trader, types.Tokens(10), e.fun.Address(), e.trader, types.Tokens(1_000))
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidAmount)
	assert.Equal(t, before, e.snapshot(e.trader, e.treasury, p.Address()))
}

func TestPairResolution(t *testing.T) {
	e := newEnv(t)
	p := e.listFun(t)

	// OTH only trades against FUN, never against the asset
	e.exec(t, e.admin, func(tx *ledger.Tx) error {
		_, err := e.f.CreatePair(tx, e.admin, e.other.Address(), e.fun.Address())
		return err
	})
	stranger := solana.NewWallet().PublicKey()
	before := e.snapshot(e.trader, e.treasury, p.Address())

	tests := []struct {
		name  string
		token types.Address
		want  error
	}{
		{name: "asset against itself", token: e.asset.Address(), want: apperr.ErrPairMismatch},
		{name: "token without asset pair", token: e.other.Address(), want: apperr.ErrPairMismatch},
		{name: "unknown token", token: stranger, want: apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.try(e.trader, func(tx *ledger.Tx) error {
				_, err := e.r.Buy(tx, e.trader, types.Tokens(1), tt.token, e.trader, nil)
				return err
			})
			assert.ErrorIs(t, err, tt.want)

			err = e.try(e.trader, func(tx *ledger.Tx) error {
				_, err := e.r.Sell(tx, e.trader, types.Tokens(1), tt.token, e.trader, nil)
				return err
			})
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, before, e.snapshot(e.trader, e.treasury, p.Address()))
		})
	}
}

// swappedRegistry answers every lookup with the same, wrong pair.
type swappedRegistry struct {
	*factory.Factory
	wrong *pair.Pair
}

func (s swappedRegistry) Pair(x, y types.Address) (*pair.Pair, error) {
	return s.wrong, nil
}

func TestRouterValidatesLegsFromRegistry(t *testing.T) {
	e := newEnv(t)
	e.listFun(t)
	e.exec(t, e.admin, func(tx *ledger.Tx) error {
		_, err := e.f.CreatePair(tx, e.admin, e.other.Address(), e.fun.Address())
		return err
	})
	wrong, err := e.f.Pair(e.other.Address(), e.fun.Address())
	require.NoError(t, err)

	r := New(Config{Address: e.r.Address(), Admin: e.admin, Asset: e.asset.Address()},
		swappedRegistry{Factory: e.f, wrong: wrong}, e.tokens, zap.NewNop())
	before := e.snapshot(e.trader, wrong.Address())

	err = e.try(e.trader, func(tx *ledger.Tx) error {
		_, err := r.Buy(tx, e.trader, types.Tokens(1), e.fun.Address(), e.trader, nil)
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrPairMismatch)
	assert.Equal(t, before, e.snapshot(e.trader, wrong.Address()))
}

func TestBondingPairIsNotTradable(t *testing.T) {
	e := newEnv(t)
	e.exec(t, e.admin, func(tx *ledger.Tx) error {
		_, err := e.f.CreateBondingPair(tx, e.admin, e.fun.Address(), e.asset.Address())
		return err
	})

	err := e.try(e.trader, func(tx *ledger.Tx) error {
		_, err := e.r.Buy(tx, e.trader, types.Tokens(1), e.fun.Address(), e.trader, nil)
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	err = e.try(e.admin, func(tx *ledger.Tx) error {
		return e.r.AddInitialLiquidity(tx, e.admin, e.fun.Address(), types.Tokens(1), types.Tokens(1))
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestReentrantBuyIsRejected(t *testing.T) {
	e := newEnv(t)
	p := e.listFun(t)

	attacker := solana.NewWallet().PublicKey()
	attempted := false
	e.exec(t, attacker, func(tx *ledger.Tx) error {
		if err := e.asset.Transfer(tx, e.trader, attacker, types.Tokens(100)); err != nil {
			return err
		}
		if err := e.asset.Approve(tx, attacker, e.r.Address(), types.MaxAmount); err != nil {
			return err
		}
		e.fun.SetReceiver(tx, attacker, token.ReceiverFunc(func(tx *ledger.Tx, _, _ types.Address, _ *big.Int) error {
			attempted = true
			_, err := e.r.Buy(tx, attacker, types.Tokens(1), e.fun.Address(), attacker, nil)
			return err
		}))
		return nil
	})
	before := e.snapshot(attacker, p.Address())

	err := e.try(attacker, func(tx *ledger.Tx) error {
		_, err := e.r.Buy(tx, attacker, types.Tokens(10), e.fun.Address(), attacker, nil)
		return err
	})
	assert.True(t, attempted)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Equal(t, before, e.snapshot(attacker, p.Address()))
}
