package platform

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/launchpad/internal/apperr"
	"github.com/rovshanmuradov/launchpad/internal/bonding"
	"github.com/rovshanmuradov/launchpad/internal/dex/factory"
	"github.com/rovshanmuradov/launchpad/internal/dex/router"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/storage"
	"github.com/rovshanmuradov/launchpad/internal/storage/memory"
	"github.com/rovshanmuradov/launchpad/internal/storage/models"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

func testConfig(admin, treasury types.Address) Config {
	return Config{
		Admin:       admin,
		Treasury:    treasury,
		ChainID:     8453,
		AssetSupply: types.Tokens(10_000_000),
		PairFeeBps:  30,
		BuyTaxBps:   100,
		SellTaxBps:  100,
		Bonding: bonding.Params{
			LaunchFee:           types.Tokens(100),
			InitialSupply:       types.Tokens(1_000_000_000),
			AssetRate:           10_000,
			MaxTxPercent:        100,
			GraduationThreshold: types.Tokens(10_000),
		},
	}
}

type env struct {
	p     *Platform
	store storage.Storage
	alice types.Address
	bob   types.Address
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := memory.NewStorage()
	l := ledger.New(logger, ledger.WithCommitHook(storage.NewRecorder(store, storage.RecorderOptions{}, logger)))

	admin := solana.NewWallet().PublicKey()
	p, err := Deploy(context.Background(), l, testConfig(admin, solana.NewWallet().PublicKey()), logger)
	require.NoError(t, err)

	e := &env{p: p, store: store, alice: solana.NewWallet().PublicKey(), bob: solana.NewWallet().PublicKey()}
	require.NoError(t, p.Fund(context.Background(), e.alice, types.Tokens(100_000)))
	require.NoError(t, p.Fund(context.Background(), e.bob, types.Tokens(100_000)))
	return e
}

func (e *env) exec(t *testing.T, sender types.Address, fn func(tx *ledger.Tx) error) {
	t.Helper()
	_, err := e.p.Ledger.Execute(context.Background(), "test", sender, fn)
	require.NoError(t, err)
}

func TestDeployWiresRoles(t *testing.T) {
	e := newEnv(t)
	p := e.p

	assert.True(t, p.Factory.HasRole(factory.CreatorRole, p.Bonding.Address()))
	assert.True(t, p.Factory.HasRole(factory.AdminRole, p.Admin()))
	assert.True(t, p.Router.HasRole(router.ExecutorRole, p.Bonding.Address()))
	assert.False(t, p.Router.HasRole(router.ExecutorRole, e.alice))
	assert.Equal(t, p.Router.Address(), p.Factory.Router())

	tax := p.Factory.TaxConfig()
	assert.Equal(t, p.Treasury(), tax.Treasury)
	assert.Equal(t, uint32(100), tax.BuyTaxBps)

	assert.Equal(t, types.Tokens(100_000).String(), p.Asset.BalanceOf(e.alice).String())
	assert.True(t, types.IsMax(p.Asset.Allowance(e.alice, p.Router.Address())))
	assert.True(t, types.IsMax(p.Asset.Allowance(e.alice, p.Bonding.Address())))
}

func TestDeployRejectsBadConfig(t *testing.T) {
	logger := zaptest.NewLogger(t)
	admin := solana.NewWallet().PublicKey()

	_, err := Deploy(context.Background(), ledger.New(logger), testConfig(admin, types.ZeroAddress), logger)
	assert.Error(t, err)

	cfg := testConfig(admin, solana.NewWallet().PublicKey())
	cfg.Bonding.AssetRate = 0
	_, err = Deploy(context.Background(), ledger.New(logger), cfg, logger)
	assert.ErrorIs(t, err, apperr.ErrInvalidAmount)
}

func TestLaunchToGraduationEndToEnd(t *testing.T) {
	e := newEnv(t)
	p := e.p
	ctx := context.Background()

	var tokenAddr types.Address
	e.exec(t, e.alice, func(tx *ledger.Tx) (err error) {
		tokenAddr, err = p.Bonding.Launch(tx, e.alice, bonding.LaunchParams{
			Name: "Agent", Symbol: "AGT", Cores: []uint8{0, 1},
		}, types.Tokens(1_000))
		return err
	})
	e.exec(t, e.bob, func(tx *ledger.Tx) error {
		_, err := p.Bonding.Buy(tx, e.bob, tokenAddr, types.Tokens(12_000), nil)
		return err
	})

	pos, err := p.Bonding.Position(tokenAddr)
	require.NoError(t, err)
	require.Equal(t, bonding.StatusGraduated, pos.Status)

	tok, err := p.Tokens.Get(tokenAddr)
	require.NoError(t, err)
	e.exec(t, e.bob, func(tx *ledger.Tx) error {
		return p.ApproveAll(tx, e.bob, tok)
	})
	before := tok.BalanceOf(e.bob)
	e.exec(t, e.bob, func(tx *ledger.Tx) error {
		_, err := p.Router.Buy(tx, e.bob, types.Tokens(100), tokenAddr, e.bob, nil)
		return err
	})
	assert.Positive(t, tok.BalanceOf(e.bob).Cmp(before))

	snap := p.Snapshot(time.Now())
	require.Len(t, snap.Pairs, 1)
	assert.False(t, snap.Pairs[0].IsBonding)
	assert.Equal(t, pos.Pair.String(), snap.Pairs[0].Pair)
	require.Len(t, snap.Positions, 1)
	assert.Equal(t, "graduated", snap.Positions[0].Status)
	assert.Equal(t, uint32(types.BasisPoints), snap.Positions[0].ProgressBps)
	assert.Equal(t, p.Ledger.Height(), snap.Height)

	require.NoError(t, SaveSnapshot(ctx, e.store, snap))
	saved, err := e.store.LatestPositionSnapshot(ctx, tokenAddr.String())
	require.NoError(t, err)
	assert.Equal(t, "AGT", saved.Symbol)

	// the commit hook saw both venues
	trades, err := e.store.ListTrades(ctx, tokenAddr.String(), 0)
	require.NoError(t, err)
	venues := map[string]int{}
	for _, tr := range trades {
		venues[tr.Venue]++
	}
	assert.Equal(t, 2, venues[models.VenueCurve])
	assert.Equal(t, 1, venues[models.VenuePair])
}

func TestGovernanceFlow(t *testing.T) {
	e := newEnv(t)
	p := e.p
	ctx := context.Background()
	dao := solana.NewWallet().PublicKey()
	tba := solana.NewWallet().PublicKey()

	id, err := p.RegisterAgent(ctx, dao, e.alice, tba, []uint8{0, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
	assert.True(t, p.Agents.IsValidator(id, e.alice))

	_, err = p.Ledger.Execute(ctx, "addValidator", e.bob, func(tx *ledger.Tx) error {
		return p.Agents.AddValidator(tx, e.bob, id, e.bob)
	})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	var proposal types.Hash
	e.exec(t, e.alice, func(tx *ledger.Tx) (err error) {
		proposal, err = p.Services.Propose(tx, e.alice, id, "voice upgrade", 1)
		return err
	})
	e.exec(t, dao, func(tx *ledger.Tx) error {
		_, err := p.Services.Execute(tx, dao, proposal)
		return err
	})
	core, err := p.Services.GetCore(proposal)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), core)
	owner, err := p.Services.OwnerOf(proposal)
	require.NoError(t, err)
	assert.Equal(t, tba, owner)
}

func TestSwitchRouterKeepsGraduationWorking(t *testing.T) {
	e := newEnv(t)
	p := e.p
	ctx := context.Background()
	first := p.Router

	launch := func(symbol string) types.Address {
		var addr types.Address
		e.exec(t, e.alice, func(tx *ledger.Tx) (err error) {
			addr, err = p.Bonding.Launch(tx, e.alice, bonding.LaunchParams{
				Name: "Agent " + symbol, Symbol: symbol, Cores: []uint8{0},
			}, types.Tokens(100))
			return err
		})
		return addr
	}
	early := launch("OLD")

	next, err := p.SwitchRouter(ctx, types.MustDeriveAddress([]byte("router-v2")))
	require.NoError(t, err)
	assert.Equal(t, next.Address(), p.Factory.Router())
	assert.True(t, p.Bonding.HasRouter(next.Address()))
	_, err = p.SwitchRouter(ctx, next.Address())
	assert.Error(t, err)

	late := launch("NEW")
	for _, tc := range []struct {
		token  types.Address
		router types.Address
	}{
		{early, first.Address()},
		{late, next.Address()},
	} {
		e.exec(t, e.bob, func(tx *ledger.Tx) error {
			_, err := p.Bonding.Buy(tx, e.bob, tc.token, types.Tokens(12_000), nil)
			return err
		})
		pos, err := p.Bonding.Position(tc.token)
		require.NoError(t, err)
		require.Equal(t, bonding.StatusGraduated, pos.Status)

		rt, err := p.RouterFor(tc.token)
		require.NoError(t, err)
		assert.Equal(t, tc.router, rt.Address())

		tok, err := p.Tokens.Get(tc.token)
		require.NoError(t, err)
		e.exec(t, e.bob, func(tx *ledger.Tx) error {
			if err := p.ApproveAll(tx, e.bob, p.Asset); err != nil {
				return err
			}
			return p.ApproveAll(tx, e.bob, tok)
		})
		before := tok.BalanceOf(e.bob)
		e.exec(t, e.bob, func(tx *ledger.Tx) error {
			_, err := rt.Buy(tx, e.bob, types.Tokens(100), tc.token, e.bob, nil)
			return err
		})
		assert.Positive(t, tok.BalanceOf(e.bob).Cmp(before))
	}
}
