// Package factory implements the pair registry: one pool per unordered token
// pair, the router binding and the platform-wide trade tax configuration.
package factory

import (
	"bytes"

	"github.com/emirpasic/gods/trees/redblacktree"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/access"
	"github.com/rovshanmuradov/launchpad/internal/apperr"
	"github.com/rovshanmuradov/launchpad/internal/dex/pair"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/token"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

const (
	// CreatorRole may create pairs and graduate them.
	CreatorRole access.Role = "CREATOR_ROLE"
	// AdminRole may change the router and the tax parameters.
	AdminRole access.Role = "ADMIN_ROLE"
)

// TaxConfig is the trade tax applied by the router. Readers get a copy.
type TaxConfig struct {
	Treasury   types.Address
	BuyTaxBps  uint32
	SellTaxBps uint32
	Version    uint64
}

// Tokens resolves token addresses to deployed tokens.
type Tokens interface {
	Get(addr types.Address) (*token.Token, error)
}

// Config describes a registry at deployment.
type Config struct {
	Address types.Address
	Admin   types.Address
	FeeBps  uint32
}

type pairKey struct {
	a, b types.Address
}

func keyOf(x, y types.Address) pairKey {
	a, b := types.SortAddresses(x, y)
	return pairKey{a, b}
}

func compareKeys(l, r interface{}) int {
	kl, kr := l.(pairKey), r.(pairKey)
	if c := bytes.Compare(kl.a[:], kr.a[:]); c != 0 {
		return c
	}
	return bytes.Compare(kl.b[:], kr.b[:])
}

// Factory is the pair registry.
type Factory struct {
	address types.Address
	feeBps  uint32
	acl     *access.Control
	tokens  Tokens
	logger  *zap.Logger

	pairs     *ledger.Map[pairKey, *pair.Pair]
	byAddress *ledger.Map[types.Address, *pair.Pair]
	byToken   *ledger.Map[types.Address, []types.Address]
	index     *redblacktree.Tree
	router    *ledger.Value[types.Address]
	tax       *ledger.Value[TaxConfig]
}

// New creates an empty registry administered by cfg.Admin.
func New(cfg Config, tokens Tokens, logger *zap.Logger) *Factory {
	return &Factory{
		address:   cfg.Address,
		feeBps:    cfg.FeeBps,
		acl:       access.NewControl("factory", cfg.Admin),
		tokens:    tokens,
		logger:    logger.Named("factory"),
		pairs:     ledger.NewMap[pairKey, *pair.Pair](),
		byAddress: ledger.NewMap[types.Address, *pair.Pair](),
		byToken:   ledger.NewMap[types.Address, []types.Address](),
		index:     redblacktree.NewWith(compareKeys),
		router:    ledger.NewValue(types.ZeroAddress),
		tax:       ledger.NewValue(TaxConfig{}),
	}
}

// Address returns the registry's own account.
func (f *Factory) Address() types.Address { return f.address }

// Router returns the router new pairs are bound to.
func (f *Factory) Router() types.Address { return f.router.Get() }

// TaxConfig returns a snapshot of the tax parameters.
func (f *Factory) TaxConfig() TaxConfig { return f.tax.Get() }

// CreatePair registers a tradable pool for x and y.
func (f *Factory) CreatePair(tx *ledger.Tx, caller, x, y types.Address) (types.Address, error) {
	return f.createPair(tx, "factory.createPair", caller, x, y, false)
}

// CreateBondingPair registers a pool that stays closed until MarkGraduated.
func (f *Factory) CreateBondingPair(tx *ledger.Tx, caller, x, y types.Address) (types.Address, error) {
	return f.createPair(tx, "factory.createBondingPair", caller, x, y, true)
}

func (f *Factory) createPair(tx *ledger.Tx, op string, caller, x, y types.Address, bonding bool) (types.Address, error) {
	if err := f.acl.Require(op, CreatorRole, caller); err != nil {
		return types.ZeroAddress, err
	}
	if x.IsZero() || y.IsZero() {
		return types.ZeroAddress, apperr.InvalidAmount(op, "zero token address")
	}
	if x == y {
		return types.ZeroAddress, apperr.InvalidAmount(op, "identical tokens %s", x)
	}
	router := f.router.Get()
	if router.IsZero() {
		return types.ZeroAddress, apperr.InvalidState(op, "router is not set")
	}

	key := keyOf(x, y)
	if existing, ok := f.pairs.Get(key); ok {
		return types.ZeroAddress, apperr.New(apperr.KindAlreadyExists, op,
			"pair %s already registered for %s/%s", existing.Address(), key.a, key.b)
	}

	tokenX, err := f.tokens.Get(x)
	if err != nil {
		return types.ZeroAddress, err
	}
	tokenY, err := f.tokens.Get(y)
	if err != nil {
		return types.ZeroAddress, err
	}
	addr, err := types.DeriveAddress([]byte("pair"), key.a[:], key.b[:])
	if err != nil {
		return types.ZeroAddress, apperr.Wrap(apperr.KindInvalidState, op, err)
	}
	p, err := pair.New(pair.Params{
		Address:   addr,
		TokenX:    tokenX,
		TokenY:    tokenY,
		Registry:  f.address,
		Router:    router,
		Creator:   caller,
		FeeBps:    f.feeBps,
		Bonding:   bonding,
		CreatedAt: tx.Time(),
	})
	if err != nil {
		return types.ZeroAddress, err
	}

	f.pairs.Set(tx, key, p)
	f.byAddress.Set(tx, addr, p)
	f.appendToken(tx, key.a, addr)
	f.appendToken(tx, key.b, addr)
	f.index.Put(key, addr)
	tx.OnRevert(func() { f.index.Remove(key) })

	tx.Emit(&events.PairEvent{
		BaseEvent: events.Base(events.PairCreated, tx.Time()),
		Pair:      addr,
		TokenA:    key.a,
		TokenB:    key.b,
		Creator:   caller,
		IsBonding: bonding,
	})
	f.logger.Debug("Pair created",
		zap.Uint64("tx_id", tx.ID()),
		zap.String("pair", addr.String()),
		zap.String("token_a", types.ShortAddress(key.a)),
		zap.String("token_b", types.ShortAddress(key.b)),
		zap.Bool("bonding", bonding))
	return addr, nil
}

func (f *Factory) appendToken(tx *ledger.Tx, token, pairAddr types.Address) {
	prev, _ := f.byToken.Get(token)
	next := make([]types.Address, len(prev), len(prev)+1)
	copy(next, prev)
	f.byToken.Set(tx, token, append(next, pairAddr))
}

// GetPair returns the pair address for x and y in any order, or the zero address.
func (f *Factory) GetPair(x, y types.Address) types.Address {
	if p, ok := f.pairs.Get(keyOf(x, y)); ok {
		return p.Address()
	}
	return types.ZeroAddress
}

// Pair returns the pool for x and y in any order.
func (f *Factory) Pair(x, y types.Address) (*pair.Pair, error) {
	p, ok := f.pairs.Get(keyOf(x, y))
	if !ok {
		return nil, apperr.NotFound("factory.pair", "no pair for %s/%s", x, y)
	}
	return p, nil
}

// PairAt returns the pool registered at addr.
func (f *Factory) PairAt(addr types.Address) (*pair.Pair, error) {
	p, ok := f.byAddress.Get(addr)
	if !ok {
		return nil, apperr.NotFound("factory.pairAt", "no pair at %s", addr)
	}
	return p, nil
}

// PairsOf returns every pair with token as a leg, in creation order.
func (f *Factory) PairsOf(token types.Address) []types.Address {
	pairs, _ := f.byToken.Get(token)
	out := make([]types.Address, len(pairs))
	copy(out, pairs)
	return out
}

// AllPairs returns every pair address ordered by canonical token key.
func (f *Factory) AllPairs() []types.Address {
	out := make([]types.Address, 0, f.index.Size())
	it := f.index.Iterator()
	for it.Next() {
		out = append(out, it.Value().(types.Address))
	}
	return out
}

// AllPairsLength returns the number of registered pairs.
func (f *Factory) AllPairsLength() int {
	return f.pairs.Len()
}

// SetRouter changes the router bound to pairs created from now on.
func (f *Factory) SetRouter(tx *ledger.Tx, caller, router types.Address) error {
	const op = "factory.setRouter"
	if err := f.acl.Require(op, AdminRole, caller); err != nil {
		return err
	}
	if router.IsZero() {
		return apperr.InvalidAmount(op, "router is the zero address")
	}
	f.router.Set(tx, router)
	tx.Emit(&events.ConfigEvent{
		BaseEvent: events.Base(events.RouterUpdated, tx.Time()),
		Router:    router,
		Version:   f.tax.Get().Version,
	})
	return nil
}

// SetTaxParams replaces the trade tax configuration as one unit.
func (f *Factory) SetTaxParams(tx *ledger.Tx, caller, treasury types.Address, buyTaxBps, sellTaxBps uint32) error {
	const op = "factory.setTaxParams"
	if err := f.acl.Require(op, AdminRole, caller); err != nil {
		return err
	}
	if buyTaxBps > types.BasisPoints || sellTaxBps > types.BasisPoints {
		return apperr.InvalidAmount(op, "tax bps must not exceed %d", types.BasisPoints)
	}
	if treasury.IsZero() && (buyTaxBps > 0 || sellTaxBps > 0) {
		return apperr.InvalidAmount(op, "taxes need a treasury")
	}
	cfg := TaxConfig{
		Treasury:   treasury,
		BuyTaxBps:  buyTaxBps,
		SellTaxBps: sellTaxBps,
		Version:    f.tax.Get().Version + 1,
	}
	f.tax.Set(tx, cfg)
	tx.Emit(&events.ConfigEvent{
		BaseEvent:  events.Base(events.TaxUpdated, tx.Time()),
		Router:     f.router.Get(),
		Treasury:   cfg.Treasury,
		BuyTaxBps:  cfg.BuyTaxBps,
		SellTaxBps: cfg.SellTaxBps,
		Version:    cfg.Version,
	})
	return nil
}

// MarkGraduated opens a bonding pair for trading.
func (f *Factory) MarkGraduated(tx *ledger.Tx, caller, pairAddr types.Address) error {
	const op = "factory.markGraduated"
	if err := f.acl.Require(op, CreatorRole, caller); err != nil {
		return err
	}
	p, err := f.PairAt(pairAddr)
	if err != nil {
		return err
	}
	if err := p.SetBonding(tx, f.address, false); err != nil {
		return err
	}
	a, b := p.Legs()
	tx.Emit(&events.PairEvent{
		BaseEvent: events.Base(events.PairGraduated, tx.Time()),
		Pair:      pairAddr,
		TokenA:    a,
		TokenB:    b,
		Creator:   p.Creator(),
	})
	return nil
}

// HasRole reports whether account holds role on the registry.
func (f *Factory) HasRole(role access.Role, account types.Address) bool {
	return f.acl.HasRole(role, account)
}

// GrantRole gives role to account.
func (f *Factory) GrantRole(tx *ledger.Tx, caller types.Address, role access.Role, account types.Address) error {
	return f.acl.GrantRole(tx, caller, role, account)
}

// RevokeRole removes role from account.
func (f *Factory) RevokeRole(tx *ledger.Tx, caller types.Address, role access.Role, account types.Address) error {
	return f.acl.RevokeRole(tx, caller, role, account)
}

// RenounceRole drops a role the caller holds.
func (f *Factory) RenounceRole(tx *ledger.Tx, caller types.Address, role access.Role) error {
	return f.acl.RenounceRole(tx, caller, role)
}
