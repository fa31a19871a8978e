package validator

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/launchpad/internal/apperr"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

type env struct {
	l       *ledger.Ledger
	r       *Registry
	admin   types.Address
	minter  types.Address
	dao     types.Address
	founder types.Address
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := zaptest.NewLogger(t)
	e := &env{
		l:       ledger.New(logger),
		admin:   solana.NewWallet().PublicKey(),
		minter:  solana.NewWallet().PublicKey(),
		dao:     solana.NewWallet().PublicKey(),
		founder: solana.NewWallet().PublicKey(),
	}
	e.r = NewRegistry(e.admin, logger)
	e.exec(t, e.admin, func(tx *ledger.Tx) error {
		if err := e.r.GrantRole(tx, e.admin, MinterRole, e.minter); err != nil {
			return err
		}
		return e.r.Mint(tx, e.minter, e.r.NextVirtualID(), e.dao, e.founder, []uint8{1, 2, 3})
	})
	return e
}

func (e *env) exec(t *testing.T, sender types.Address, fn func(tx *ledger.Tx) error) {
	t.Helper()
	_, err := e.l.Execute(context.Background(), "test", sender, fn)
	require.NoError(t, err)
}

func (e *env) addValidator(caller types.Address, virtualID uint64, account types.Address) error {
	_, err := e.l.Execute(context.Background(), "addValidator", caller, func(tx *ledger.Tx) error {
		return e.r.AddValidator(tx, caller, virtualID, account)
	})
	return err
}

func TestMintRegistersFounder(t *testing.T) {
	e := newEnv(t)

	agent, err := e.r.Agent(1)
	require.NoError(t, err)
	assert.Equal(t, e.dao, agent.DAO)
	assert.Equal(t, []uint8{1, 2, 3}, agent.Cores)
	assert.True(t, e.r.IsValidator(1, e.founder))
	assert.Equal(t, 1, e.r.ValidatorCount(1))
	assert.Equal(t, uint64(2), e.r.NextVirtualID())

	_, err = e.l.Execute(context.Background(), "mint", e.minter, func(tx *ledger.Tx) error {
		return e.r.Mint(tx, e.minter, 5, e.dao, e.founder, nil)
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestAddValidatorByMinterAndDAO(t *testing.T) {
	e := newEnv(t)
	v1 := solana.NewWallet().PublicKey()
	v2 := solana.NewWallet().PublicKey()

	require.NoError(t, e.addValidator(e.minter, 1, v1))
	require.NoError(t, e.addValidator(e.dao, 1, v2))
	// duplicates do not grow the set
	require.NoError(t, e.addValidator(e.dao, 1, v2))

	assert.True(t, e.r.IsValidator(1, v1))
	assert.True(t, e.r.IsValidator(1, v2))
	assert.Equal(t, 3, e.r.ValidatorCount(1))

	err := e.addValidator(e.minter, 42, v1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUnauthorizedAddValidatorNeverSucceeds(t *testing.T) {
	e := newEnv(t)
	attacker := solana.NewWallet().PublicKey()

	for i := 0; i < 1000; i++ {
		candidate := solana.NewWallet().PublicKey()
		err := e.addValidator(attacker, 1, candidate)
		require.Error(t, err)
		require.True(t, errors.Is(err, apperr.ErrUnauthorized), "attempt %d: %v", i, err)
		require.False(t, e.r.IsValidator(1, candidate))
	}
	assert.Equal(t, 1, e.r.ValidatorCount(1))

	// the founder itself is not privileged either
	err := e.addValidator(e.founder, 1, attacker)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	// nor is a DAO of a different agent asking about an unknown one
	err = e.addValidator(e.dao, 99, attacker)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestSetTBA(t *testing.T) {
	e := newEnv(t)
	tba := solana.NewWallet().PublicKey()

	_, err := e.l.Execute(context.Background(), "setTBA", e.dao, func(tx *ledger.Tx) error {
		return e.r.SetTBA(tx, e.dao, 1, tba)
	})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	e.exec(t, e.minter, func(tx *ledger.Tx) error {
		return e.r.SetTBA(tx, e.minter, 1, tba)
	})
	agent, err := e.r.Agent(1)
	require.NoError(t, err)
	assert.Equal(t, tba, agent.TBA)

	_, err = e.l.Execute(context.Background(), "setTBA", e.minter, func(tx *ledger.Tx) error {
		return e.r.SetTBA(tx, e.minter, 1, tba)
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}
