// Package bonding implements the launch controller: token creation, purchases
// and sales on a per-token constant-product curve, and graduation of the curve
// liquidity into a permanent pair once enough asset was raised.
//
// Every exported mutating method is an entry point guarded exactly once. The
// unexported *Core helpers are shared between entry points and never touch the
// guard.
package bonding

import (
	"bytes"
	"math/big"
	"sort"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/access"
	"github.com/rovshanmuradov/launchpad/internal/apperr"
	"github.com/rovshanmuradov/launchpad/internal/dex/factory"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/guard"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/token"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

// PairRegistry is the part of the registry the controller drives.
type PairRegistry interface {
	CreateBondingPair(tx *ledger.Tx, caller, x, y types.Address) (types.Address, error)
	MarkGraduated(tx *ledger.Tx, caller, pair types.Address) error
	TaxConfig() factory.TaxConfig
	// Router is the router new pairs are bound to.
	Router() types.Address
}

// Router seeds graduated pairs.
type Router interface {
	Address() types.Address
	AddInitialLiquidity(tx *ledger.Tx, caller, tokenAddr types.Address, amountToken, amountAsset *big.Int) error
}

// Tokens deploys and resolves tokens.
type Tokens interface {
	Deploy(tx *ledger.Tx, caller types.Address, cfg token.Config) (*token.Token, error)
	Get(addr types.Address) (*token.Token, error)
}

// Config describes a controller at deployment.
type Config struct {
	Address  types.Address
	Admin    types.Address
	Asset    types.Address
	Treasury types.Address
	Params   Params
}

// Controller is the bonding launch controller.
type Controller struct {
	address  types.Address
	asset    types.Address
	acl      *access.Control
	registry PairRegistry
	tokens   Tokens
	guard    *guard.Guard
	logger   *zap.Logger

	params    *ledger.Value[Params]
	treasury  *ledger.Value[types.Address]
	routers   *ledger.Map[types.Address, Router]
	positions *ledger.Map[types.Address, Position]
	byCreator *ledger.Map[types.Address, []types.Address]
}

// New creates a controller that knows router. Further routers are added with
// AddRouter before the registry is switched to them.
func New(cfg Config, registry PairRegistry, router Router, tokens Tokens, logger *zap.Logger) (*Controller, error) {
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	if cfg.Treasury.IsZero() {
		return nil, apperr.InvalidAmount("bonding.new", "treasury is the zero address")
	}
	if router == nil {
		return nil, apperr.InvalidState("bonding.new", "router is required")
	}
	routers := ledger.NewMap[types.Address, Router]()
	routers.Seed(router.Address(), router)
	return &Controller{
		address:   cfg.Address,
		asset:     cfg.Asset,
		acl:       access.NewControl("bonding", cfg.Admin),
		registry:  registry,
		routers:   routers,
		tokens:    tokens,
		guard:     guard.New("bonding"),
		logger:    logger.Named("bonding"),
		params:    ledger.NewValue(cfg.Params.clone()),
		treasury:  ledger.NewValue(cfg.Treasury),
		positions: ledger.NewMap[types.Address, Position](),
		byCreator: ledger.NewMap[types.Address, []types.Address](),
	}, nil
}

func (c *Controller) Address() types.Address { return c.address }

func (c *Controller) Treasury() types.Address { return c.treasury.Get() }

// Params returns a copy of the launch parameters.
func (c *Controller) Params() Params { return c.params.Get().clone() }

// SetParams replaces the launch parameters for future launches.
func (c *Controller) SetParams(tx *ledger.Tx, caller types.Address, p Params) error {
	const op = "bonding.setParams"
	if err := c.acl.Require(op, access.DefaultAdminRole, caller); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	c.params.Set(tx, p.clone())
	return nil
}

// SetTreasury changes where launch fees go.
func (c *Controller) SetTreasury(tx *ledger.Tx, caller, treasury types.Address) error {
	const op = "bonding.setTreasury"
	if err := c.acl.Require(op, access.DefaultAdminRole, caller); err != nil {
		return err
	}
	if treasury.IsZero() {
		return apperr.InvalidAmount(op, "treasury is the zero address")
	}
	c.treasury.Set(tx, treasury)
	return nil
}

// AddRouter lets graduation seed pairs bound to r.
func (c *Controller) AddRouter(tx *ledger.Tx, caller types.Address, r Router) error {
	const op = "bonding.addRouter"
	if err := c.acl.Require(op, access.DefaultAdminRole, caller); err != nil {
		return err
	}
	if r == nil || r.Address().IsZero() {
		return apperr.InvalidAmount(op, "router is the zero address")
	}
	c.routers.Set(tx, r.Address(), r)
	return nil
}

// HasRouter reports whether graduation can seed pairs bound to addr.
func (c *Controller) HasRouter(addr types.Address) bool {
	_, ok := c.routers.Get(addr)
	return ok
}

func (c *Controller) routerAt(op string, addr types.Address) (Router, error) {
	r, ok := c.routers.Get(addr)
	if !ok {
		return nil, apperr.InvalidState(op, "router %s is not known to the controller", addr)
	}
	return r, nil
}

// Launch creates a token and spends purchaseAmount minus the launch fee on
// it for the caller.
func (c *Controller) Launch(tx *ledger.Tx, caller types.Address, params LaunchParams, purchaseAmount *big.Int) (types.Address, error) {
	release, err := c.guard.Enter("launch")
	if err != nil {
		return types.ZeroAddress, err
	}
	defer release()
	return c.launchCore(tx, "bonding.launch", caller, params, purchaseAmount, caller)
}

// LaunchFor is Launch with the initial purchase credited to buyer.
func (c *Controller) LaunchFor(tx *ledger.Tx, caller types.Address, params LaunchParams, purchaseAmount *big.Int, buyer types.Address) (types.Address, error) {
	release, err := c.guard.Enter("launchFor")
	if err != nil {
		return types.ZeroAddress, err
	}
	defer release()
	return c.launchCore(tx, "bonding.launchFor", caller, params, purchaseAmount, buyer)
}

// Buy spends assetIn on token along its curve.
func (c *Controller) Buy(tx *ledger.Tx, caller, tokenAddr types.Address, assetIn, minOut *big.Int) (*big.Int, error) {
	release, err := c.guard.Enter("buy")
	if err != nil {
		return nil, err
	}
	defer release()
	return c.buyCore(tx, "bonding.buy", caller, caller, tokenAddr, assetIn, minOut)
}

// Sell returns tokenIn of token to its curve for asset.
func (c *Controller) Sell(tx *ledger.Tx, caller, tokenAddr types.Address, tokenIn, minOut *big.Int) (*big.Int, error) {
	release, err := c.guard.Enter("sell")
	if err != nil {
		return nil, err
	}
	defer release()
	return c.sellCore(tx, "bonding.sell", caller, tokenAddr, tokenIn, minOut)
}

func (c *Controller) launchCore(tx *ledger.Tx, op string, caller types.Address, info LaunchParams, purchaseAmount *big.Int, buyer types.Address) (types.Address, error) {
	params := c.params.Get()
	if err := validateLaunch(op, info, buyer); err != nil {
		return types.ZeroAddress, err
	}
	if purchaseAmount == nil || purchaseAmount.Cmp(params.LaunchFee) < 0 {
		return types.ZeroAddress, apperr.InvalidAmount(op, "purchase amount must cover the launch fee of %s", types.FormatUnits(params.LaunchFee))
	}
	asset, err := c.tokens.Get(c.asset)
	if err != nil {
		return types.ZeroAddress, err
	}
	if params.LaunchFee.Sign() > 0 {
		if err := asset.TransferFrom(tx, c.address, caller, c.treasury.Get(), params.LaunchFee); err != nil {
			return types.ZeroAddress, err
		}
	}

	// A pair bound to a router the controller cannot drive could never graduate.
	rt, err := c.routerAt(op, c.registry.Router())
	if err != nil {
		return types.ZeroAddress, err
	}

	tok, err := c.tokens.Deploy(tx, c.address, token.Config{
		Name:     info.Name,
		Symbol:   info.Symbol,
		Owner:    c.address,
		Treasury: c.treasury.Get(),
		TaxBps:   params.TokenTaxBps,
	})
	if err != nil {
		return types.ZeroAddress, err
	}
	if err := tok.Mint(tx, c.address, c.address, params.InitialSupply); err != nil {
		return types.ZeroAddress, err
	}
	pairAddr, err := c.registry.CreateBondingPair(tx, c.address, tok.Address(), c.asset)
	if err != nil {
		return types.ZeroAddress, err
	}
	for _, account := range []types.Address{pairAddr, rt.Address()} {
		if err := tok.SetExempt(tx, c.address, account, true); err != nil {
			return types.ZeroAddress, err
		}
	}

	pos := Position{
		Token:               tok.Address(),
		Pair:                pairAddr,
		Router:              rt.Address(),
		Creator:             caller,
		Info:                info,
		VirtualAsset:        params.VirtualAsset(),
		AssetRaised:         new(big.Int),
		TokenReserve:        types.Copy(params.InitialSupply),
		PurchaseCap:         params.PurchaseCap(),
		GraduationThreshold: types.Copy(params.GraduationThreshold),
		Status:              StatusCreated,
		LaunchedAt:          tx.Time(),
		Volume:              new(big.Int),
	}
	pos.LastPrice = pos.Price()
	pos.Status = StatusBonding
	c.positions.Set(tx, pos.Token, pos.clone())
	c.appendCreator(tx, caller, pos.Token)

	tx.Emit(&events.LaunchEvent{
		BaseEvent:    events.Base(events.CurveLaunched, tx.Time()),
		Token:        pos.Token,
		Pair:         pairAddr,
		Creator:      caller,
		Name:         info.Name,
		Symbol:       info.Symbol,
		AssetRaised:  new(big.Int),
		TokenReserve: types.Copy(pos.TokenReserve),
	})
	c.logger.Info("Token launched",
		zap.Uint64("tx_id", tx.ID()),
		zap.String("token", pos.Token.String()),
		zap.String("symbol", info.Symbol),
		zap.String("creator", caller.String()),
		zap.String("buyer", buyer.String()))

	initial := new(big.Int).Sub(purchaseAmount, params.LaunchFee)
	if initial.Sign() > 0 {
		if _, err := c.buyCore(tx, op, caller, buyer, pos.Token, initial, nil); err != nil {
			return types.ZeroAddress, err
		}
	}
	return pos.Token, nil
}

func (c *Controller) appendCreator(tx *ledger.Tx, creator, tokenAddr types.Address) {
	prev, _ := c.byCreator.Get(creator)
	next := make([]types.Address, len(prev), len(prev)+1)
	copy(next, prev)
	c.byCreator.Set(tx, creator, append(next, tokenAddr))
}

func validateLaunch(op string, info LaunchParams, buyer types.Address) error {
	switch {
	case info.Name == "" || info.Symbol == "":
		return apperr.InvalidAmount(op, "name and symbol are required")
	case len(info.Cores) == 0:
		return apperr.InvalidAmount(op, "at least one core is required")
	case buyer.IsZero():
		return apperr.InvalidAmount(op, "buyer is the zero address")
	}
	return nil
}

// Position returns the curve record of token.
func (c *Controller) Position(tokenAddr types.Address) (Position, error) {
	pos, ok := c.positions.Get(tokenAddr)
	if !ok {
		return Position{}, apperr.NotFound("bonding.position", "token %s was not launched here", tokenAddr)
	}
	return pos.clone(), nil
}

// TokensOf returns the tokens launched by creator, oldest first.
func (c *Controller) TokensOf(creator types.Address) []types.Address {
	list, _ := c.byCreator.Get(creator)
	return append([]types.Address(nil), list...)
}

// Positions returns every curve record, ordered by launch time.
func (c *Controller) Positions() []Position {
	out := make([]Position, 0, c.positions.Len())
	c.positions.Range(func(_ types.Address, pos Position) bool {
		out = append(out, pos.clone())
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LaunchedAt.Equal(out[j].LaunchedAt) {
			return out[i].LaunchedAt.Before(out[j].LaunchedAt)
		}
		return bytes.Compare(out[i].Token[:], out[j].Token[:]) < 0
	})
	return out
}

// Price returns asset per token on the curve, or at graduation for graduated tokens.
func (c *Controller) Price(tokenAddr types.Address) (float64, error) {
	pos, err := c.Position(tokenAddr)
	if err != nil {
		return 0, err
	}
	return pos.Price(), nil
}

// Progress returns how far token is towards graduation, in basis points.
func (c *Controller) Progress(tokenAddr types.Address) (uint32, error) {
	pos, err := c.Position(tokenAddr)
	if err != nil {
		return 0, err
	}
	return pos.ProgressBps(), nil
}

// HasRole reports whether account holds role on the controller.
func (c *Controller) HasRole(role access.Role, account types.Address) bool {
	return c.acl.HasRole(role, account)
}
