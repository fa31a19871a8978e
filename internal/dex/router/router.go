// Package router implements the swap router: asset/token trades against
// registered pairs with the platform trade tax, and the initial liquidity
// deposit used at graduation.
package router

import (
	"errors"
	"math/big"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/access"
	"github.com/rovshanmuradov/launchpad/internal/apperr"
	"github.com/rovshanmuradov/launchpad/internal/dex/amm"
	"github.com/rovshanmuradov/launchpad/internal/dex/factory"
	"github.com/rovshanmuradov/launchpad/internal/dex/pair"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/guard"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/token"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

// ExecutorRole may seed initial liquidity.
const ExecutorRole access.Role = "EXECUTOR_ROLE"

// Registry is the part of the pair registry the router trades through.
type Registry interface {
	Pair(x, y types.Address) (*pair.Pair, error)
	PairsOf(token types.Address) []types.Address
	TaxConfig() factory.TaxConfig
}

// Tokens resolves token addresses.
type Tokens interface {
	Get(addr types.Address) (*token.Token, error)
}

// Config describes a router at deployment.
type Config struct {
	Address types.Address
	Admin   types.Address
	Asset   types.Address
}

// Router trades launched tokens against the platform asset.
type Router struct {
	address  types.Address
	asset    types.Address
	acl      *access.Control
	registry Registry
	tokens   Tokens
	guard    *guard.Guard
	logger   *zap.Logger
}

// New creates a router bound to one registry and one asset.
func New(cfg Config, registry Registry, tokens Tokens, logger *zap.Logger) *Router {
	return &Router{
		address:  cfg.Address,
		asset:    cfg.Asset,
		acl:      access.NewControl("router", cfg.Admin),
		registry: registry,
		tokens:   tokens,
		guard:    guard.New("router"),
		logger:   logger.Named("router"),
	}
}

func (r *Router) Address() types.Address { return r.address }

func (r *Router) Asset() types.Address { return r.asset }

// AddInitialLiquidity moves amountToken and amountAsset from caller into the
// empty pair of token and books them as its first reserves. The caller must
// have approved the router for both amounts.
func (r *Router) AddInitialLiquidity(tx *ledger.Tx, caller, tokenAddr types.Address, amountToken, amountAsset *big.Int) error {
	const op = "router.addInitialLiquidity"
	if err := r.acl.Require(op, ExecutorRole, caller); err != nil {
		return err
	}
	release, err := r.guard.Enter("addInitialLiquidity")
	if err != nil {
		return err
	}
	defer release()

	p, tok, asset, err := r.resolve(op, tokenAddr)
	if err != nil {
		return err
	}
	if ra, rb := p.Reserves(); ra.Sign() != 0 || rb.Sign() != 0 {
		return apperr.InvalidState(op, "pair %s already has liquidity", p.Address())
	}
	if p.IsBonding() {
		return apperr.InvalidState(op, "pair %s is still bonding", p.Address())
	}

	gotToken, err := r.pull(tx, tok, caller, p.Address(), amountToken)
	if err != nil {
		return err
	}
	gotAsset, err := r.pull(tx, asset, caller, p.Address(), amountAsset)
	if err != nil {
		return err
	}

	amountA, amountB := gotToken, gotAsset
	if a, _ := p.Legs(); a != tokenAddr {
		amountA, amountB = gotAsset, gotToken
	}
	if err := p.AddLiquidity(tx, r.address, amountA, amountB); err != nil {
		return err
	}

	r.logger.Info("Initial liquidity added",
		zap.Uint64("tx_id", tx.ID()),
		zap.String("token", tokenAddr.String()),
		zap.String("pair", p.Address().String()),
		zap.String("amount_token", types.FormatUnits(gotToken)),
		zap.String("amount_asset", types.FormatUnits(gotAsset)))
	return nil
}

// Buy spends assetIn of the caller's asset on token. The buy tax is taken
// from the input before the swap.
func (r *Router) Buy(tx *ledger.Tx, caller types.Address, assetIn *big.Int, tokenAddr, recipient types.Address, minOut *big.Int) (*big.Int, error) {
	const op = "router.buy"
	release, err := r.guard.Enter("buy")
	if err != nil {
		return nil, err
	}
	defer release()

	if err := checkTrade(op, assetIn, recipient); err != nil {
		return nil, err
	}
	p, _, asset, err := r.resolve(op, tokenAddr)
	if err != nil {
		return nil, err
	}
	if p.IsBonding() {
		return nil, apperr.InvalidState(op, "token %s is still on its bonding curve", tokenAddr)
	}

	cfg := r.registry.TaxConfig()
	tax := types.ApplyBps(assetIn, cfg.BuyTaxBps)
	if tax.Sign() > 0 {
		if err := asset.TransferFrom(tx, r.address, caller, cfg.Treasury, tax); err != nil {
			return nil, err
		}
	}
	received, err := r.pull(tx, asset, caller, p.Address(), new(big.Int).Sub(assetIn, tax))
	if err != nil {
		return nil, err
	}
	out, err := p.Swap(tx, r.address, r.asset, received, recipient, minOut)
	if err != nil {
		return nil, err
	}

	r.emitTrade(tx, p, tokenAddr, caller, recipient, true, assetIn, out, tax)
	return out, nil
}

// Sell swaps tokenIn of the caller's token for asset. The sell tax is taken
// from the asset output.
func (r *Router) Sell(tx *ledger.Tx, caller types.Address, tokenIn *big.Int, tokenAddr, recipient types.Address, minOut *big.Int) (*big.Int, error) {
	const op = "router.sell"
	release, err := r.guard.Enter("sell")
	if err != nil {
		return nil, err
	}
	defer release()

	if err := checkTrade(op, tokenIn, recipient); err != nil {
		return nil, err
	}
	p, tok, asset, err := r.resolve(op, tokenAddr)
	if err != nil {
		return nil, err
	}
	if p.IsBonding() {
		return nil, apperr.InvalidState(op, "token %s is still on its bonding curve", tokenAddr)
	}

	cfg := r.registry.TaxConfig()
	received, err := r.pull(tx, tok, caller, p.Address(), tokenIn)
	if err != nil {
		return nil, err
	}
	gross, err := p.Swap(tx, r.address, tokenAddr, received, r.address, nil)
	if err != nil {
		return nil, err
	}
	tax := types.ApplyBps(gross, cfg.SellTaxBps)
	out := new(big.Int).Sub(gross, tax)
	if minOut != nil && out.Cmp(minOut) < 0 {
		return nil, apperr.InvalidAmount(op, "output %s below minimum %s", types.FormatUnits(out), types.FormatUnits(minOut))
	}
	if tax.Sign() > 0 {
		if err := asset.Transfer(tx, r.address, cfg.Treasury, tax); err != nil {
			return nil, err
		}
	}
	if err := asset.Transfer(tx, r.address, recipient, out); err != nil {
		return nil, err
	}

	r.emitTrade(tx, p, tokenAddr, caller, recipient, false, tokenIn, out, tax)
	return out, nil
}

// Quote returns the output of a trade of amountIn at current reserves, tax included.
func (r *Router) Quote(tokenAddr types.Address, amountIn *big.Int, isBuy bool) (*big.Int, error) {
	const op = "router.quote"
	p, _, _, err := r.resolve(op, tokenAddr)
	if err != nil {
		return nil, err
	}
	if p.IsBonding() {
		return nil, apperr.InvalidState(op, "token %s is still on its bonding curve", tokenAddr)
	}
	cfg := r.registry.TaxConfig()
	if isBuy {
		net := new(big.Int).Sub(amountIn, types.ApplyBps(amountIn, cfg.BuyTaxBps))
		return p.Quote(r.asset, net)
	}
	gross, err := p.Quote(tokenAddr, amountIn)
	if err != nil {
		return nil, err
	}
	return gross.Sub(gross, types.ApplyBps(gross, cfg.SellTaxBps)), nil
}

// resolve finds the token/asset pair and checks it really has those two legs.
// No state is touched before this succeeds.
func (r *Router) resolve(op string, tokenAddr types.Address) (*pair.Pair, *token.Token, *token.Token, error) {
	if tokenAddr == r.asset {
		return nil, nil, nil, apperr.New(apperr.KindPairMismatch, op, "cannot trade the asset against itself")
	}
	p, err := r.registry.Pair(tokenAddr, r.asset)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, nil, nil, err
		}
		if others := r.registry.PairsOf(tokenAddr); len(others) > 0 {
			return nil, nil, nil, apperr.New(apperr.KindPairMismatch, op,
				"token %s has %d pairs but none against asset %s", tokenAddr, len(others), r.asset)
		}
		return nil, nil, nil, apperr.NotFound(op, "no pair for token %s", tokenAddr)
	}

	wantA, wantB := types.SortAddresses(tokenAddr, r.asset)
	if a, b := p.Legs(); a != wantA || b != wantB {
		return nil, nil, nil, apperr.New(apperr.KindPairMismatch, op,
			"pair %s trades %s/%s, expected %s/%s", p.Address(), a, b, wantA, wantB)
	}

	tok, err := r.tokens.Get(tokenAddr)
	if err != nil {
		return nil, nil, nil, err
	}
	asset, err := r.tokens.Get(r.asset)
	if err != nil {
		return nil, nil, nil, err
	}
	return p, tok, asset, nil
}

// pull moves amount from owner to the pair and returns what actually arrived.
func (r *Router) pull(tx *ledger.Tx, tok *token.Token, owner, to types.Address, amount *big.Int) (*big.Int, error) {
	before := tok.BalanceOf(to)
	if err := tok.TransferFrom(tx, r.address, owner, to, amount); err != nil {
		return nil, err
	}
	return new(big.Int).Sub(tok.BalanceOf(to), before), nil
}

func (r *Router) emitTrade(tx *ledger.Tx, p *pair.Pair, tokenAddr, trader, recipient types.Address, isBuy bool, in, out, tax *big.Int) {
	tokenReserve, _ := p.ReserveOf(tokenAddr)
	assetReserve, _ := p.ReserveOf(r.asset)
	price := amm.SpotPrice(tokenReserve, assetReserve)

	tx.Emit(&events.TradeEvent{
		BaseEvent: events.Base(events.RouterTraded, tx.Time()),
		Token:     tokenAddr,
		Trader:    trader,
		Recipient: recipient,
		IsBuy:     isBuy,
		AmountIn:  types.Copy(in),
		AmountOut: types.Copy(out),
		Tax:       types.Copy(tax),
		Price:     price,
	})
	r.logger.Debug("Trade executed",
		zap.Uint64("tx_id", tx.ID()),
		zap.String("token", types.ShortAddress(tokenAddr)),
		zap.Bool("buy", isBuy),
		zap.String("in", types.FormatUnits(in)),
		zap.String("out", types.FormatUnits(out)),
		zap.Float64("price", price))
}

func checkTrade(op string, amount *big.Int, recipient types.Address) error {
	if amount == nil || amount.Sign() <= 0 {
		return apperr.InvalidAmount(op, "amount must be positive")
	}
	if recipient.IsZero() {
		return apperr.InvalidAmount(op, "recipient is the zero address")
	}
	return nil
}

// HasRole reports whether account holds role on the router.
func (r *Router) HasRole(role access.Role, account types.Address) bool {
	return r.acl.HasRole(role, account)
}

// GrantRole gives role to account.
func (r *Router) GrantRole(tx *ledger.Tx, caller types.Address, role access.Role, account types.Address) error {
	return r.acl.GrantRole(tx, caller, role, account)
}

// RevokeRole removes role from account.
func (r *Router) RevokeRole(tx *ledger.Tx, caller types.Address, role access.Role, account types.Address) error {
	return r.acl.RevokeRole(tx, caller, role, account)
}
