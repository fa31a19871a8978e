package token

import (
	"encoding/binary"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/apperr"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

// Registry tracks every token deployed on the ledger.
type Registry struct {
	tokens *ledger.Map[types.Address, *Token]
	nonce  *ledger.Value[uint64]
	logger *zap.Logger
}

// NewRegistry creates an empty token registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		tokens: ledger.NewMap[types.Address, *Token](),
		nonce:  ledger.NewValue[uint64](0),
		logger: logger.Named("tokens"),
	}
}

// Deploy creates a token owned by cfg.Owner (caller when unset) at a fresh derived address.
func (r *Registry) Deploy(tx *ledger.Tx, caller types.Address, cfg Config) (*Token, error) {
	if cfg.Owner.IsZero() {
		cfg.Owner = caller
	}
	nonce := r.nonce.Get() + 1
	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], nonce)
	addr, err := types.DeriveAddress([]byte("token"), caller[:], seed[:])
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidState, "tokens.deploy", err)
	}

	t, err := New(addr, cfg)
	if err != nil {
		return nil, err
	}
	r.nonce.Set(tx, nonce)
	r.tokens.Set(tx, addr, t)

	tx.Logger().Debug("Token deployed",
		zap.String("token", addr.String()),
		zap.String("symbol", cfg.Symbol),
		zap.String("owner", cfg.Owner.String()))
	return t, nil
}

// Get returns the token at addr.
func (r *Registry) Get(addr types.Address) (*Token, error) {
	t, ok := r.tokens.Get(addr)
	if !ok {
		return nil, apperr.NotFound("tokens.get", "token %s", addr)
	}
	return t, nil
}

// Has reports whether addr is a deployed token.
func (r *Registry) Has(addr types.Address) bool {
	return r.tokens.Has(addr)
}

// Len returns the number of deployed tokens.
func (r *Registry) Len() int {
	return r.tokens.Len()
}
