package vetoken

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/launchpad/internal/apperr"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type env struct {
	l       *ledger.Ledger
	ve      *Token
	owner   types.Address
	holder  solana.PrivateKey
	spender types.Address
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		l:       ledger.New(zaptest.NewLogger(t), ledger.WithClock(func() time.Time { return now })),
		owner:   solana.NewWallet().PublicKey(),
		holder:  solana.NewWallet().PrivateKey,
		spender: solana.NewWallet().PublicKey(),
	}
	e.ve = New(types.MustDeriveAddress([]byte("veVirtual")), e.owner, 8453)
	_, err := e.l.Execute(context.Background(), "mint", e.owner, func(tx *ledger.Tx) error {
		return e.ve.Mint(tx, e.owner, e.holder.PublicKey(), types.Tokens(500))
	})
	require.NoError(t, err)
	return e
}

func (e *env) sign(t *testing.T, key solana.PrivateKey, value *big.Int, nonce, deadline uint64) solana.Signature {
	t.Helper()
	digest := PermitDigest(e.ve.DomainSeparator(), e.holder.PublicKey(), e.spender, value, nonce, deadline)
	sig, err := key.Sign(digest[:])
	require.NoError(t, err)
	return sig
}

func (e *env) permit(value *big.Int, deadline uint64, sig solana.Signature) error {
	_, err := e.l.Execute(context.Background(), "permit", e.spender, func(tx *ledger.Tx) error {
		return e.ve.Permit(tx, e.holder.PublicKey(), e.spender, value, deadline, sig)
	})
	return err
}

func TestPermitByOwner(t *testing.T) {
	e := newEnv(t)
	deadline := uint64(now.Add(time.Hour).Unix())
	value := types.Tokens(100)

	require.NoError(t, e.permit(value, deadline, e.sign(t, e.holder, value, 0, deadline)))
	assert.Equal(t, value.String(), e.ve.Allowance(e.holder.PublicKey(), e.spender).String())
	assert.Equal(t, uint64(1), e.ve.Nonce(e.holder.PublicKey()))
}

func TestPermitRejectsForeignSigner(t *testing.T) {
	e := newEnv(t)
	deadline := uint64(now.Add(time.Hour).Unix())
	value := types.Tokens(100)
	attacker := solana.NewWallet().PrivateKey

	err := e.permit(value, deadline, e.sign(t, attacker, value, 0, deadline))
	assert.ErrorIs(t, err, apperr.ErrSignatureInvalid)
	assert.Zero(t, e.ve.Allowance(e.holder.PublicKey(), e.spender).Sign())
	assert.Zero(t, e.ve.Nonce(e.holder.PublicKey()))

	// a signature over different terms does not carry over
	sig := e.sign(t, e.holder, value, 0, deadline)
	err = e.permit(types.Tokens(101), deadline, sig)
	assert.ErrorIs(t, err, apperr.ErrSignatureInvalid)
}

func TestPermitReplayAndExpiry(t *testing.T) {
	e := newEnv(t)
	deadline := uint64(now.Add(time.Minute).Unix())
	value := types.Tokens(10)
	sig := e.sign(t, e.holder, value, 0, deadline)

	require.NoError(t, e.permit(value, deadline, sig))
	err := e.permit(value, deadline, sig)
	assert.ErrorIs(t, err, apperr.ErrSignatureInvalid)

	past := uint64(now.Add(-time.Second).Unix())
	err = e.permit(value, past, e.sign(t, e.holder, value, 1, past))
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Equal(t, uint64(1), e.ve.Nonce(e.holder.PublicKey()))
}

func TestDomainSeparatorBindsContract(t *testing.T) {
	a := DomainSeparator(1, types.MustDeriveAddress([]byte("a")))
	b := DomainSeparator(1, types.MustDeriveAddress([]byte("b")))
	c := DomainSeparator(2, types.MustDeriveAddress([]byte("a")))
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestApproveAndMintRestricted(t *testing.T) {
	e := newEnv(t)
	_, err := e.l.Execute(context.Background(), "approve", e.holder.PublicKey(), func(tx *ledger.Tx) error {
		return e.ve.Approve(tx, e.holder.PublicKey(), e.spender, types.Tokens(1))
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = e.l.Execute(context.Background(), "mint", e.spender, func(tx *ledger.Tx) error {
		return e.ve.Mint(tx, e.spender, e.spender, types.Tokens(1))
	})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	assert.Equal(t, types.Tokens(500).String(), e.ve.TotalSupply().String())
}
