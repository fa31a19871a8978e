// Package pair implements the two-token constant-product liquidity pool.
package pair

import (
	"math/big"
	"time"

	"github.com/rovshanmuradov/launchpad/internal/apperr"
	"github.com/rovshanmuradov/launchpad/internal/dex/amm"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/guard"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

// Asset is the token surface a pair needs to hold custody of a leg.
type Asset interface {
	Address() types.Address
	Symbol() string
	BalanceOf(account types.Address) *big.Int
	Transfer(tx *ledger.Tx, caller, to types.Address, amount *big.Int) error
}

// Params describes a pair at creation.
type Params struct {
	Address   types.Address
	TokenX    Asset
	TokenY    Asset
	Registry  types.Address
	Router    types.Address
	Creator   types.Address
	FeeBps    uint32
	Bonding   bool
	CreatedAt time.Time
}

// Pair holds custody of two tokens and prices swaps by x*y=k.
// Legs are kept in canonical byte order.
type Pair struct {
	address   types.Address
	tokenA    Asset
	tokenB    Asset
	registry  types.Address
	router    types.Address
	creator   types.Address
	feeBps    uint32
	createdAt time.Time

	reserveA *ledger.Value[*big.Int]
	reserveB *ledger.Value[*big.Int]
	kLast    *ledger.Value[*big.Int]
	bonding  *ledger.Value[bool]
	guard    *guard.Guard
}

// New builds a pair with empty reserves.
func New(p Params) (*Pair, error) {
	if p.TokenX == nil || p.TokenY == nil {
		return nil, apperr.InvalidAmount("pair.new", "both legs are required")
	}
	if p.TokenX.Address() == p.TokenY.Address() {
		return nil, apperr.InvalidAmount("pair.new", "identical legs %s", p.TokenX.Address())
	}
	if p.FeeBps >= types.BasisPoints {
		return nil, apperr.InvalidAmount("pair.new", "fee %d bps too high", p.FeeBps)
	}
	a, b := p.TokenX, p.TokenY
	if first, _ := types.SortAddresses(a.Address(), b.Address()); first != a.Address() {
		a, b = b, a
	}
	return &Pair{
		address:   p.Address,
		tokenA:    a,
		tokenB:    b,
		registry:  p.Registry,
		router:    p.Router,
		creator:   p.Creator,
		feeBps:    p.FeeBps,
		createdAt: p.CreatedAt,
		reserveA:  ledger.NewValue(new(big.Int)),
		reserveB:  ledger.NewValue(new(big.Int)),
		kLast:     ledger.NewValue(new(big.Int)),
		bonding:   ledger.NewValue(p.Bonding),
		guard:     guard.New("pair"),
	}, nil
}

func (p *Pair) Address() types.Address { return p.address }

func (p *Pair) Router() types.Address { return p.router }

func (p *Pair) Creator() types.Address { return p.creator }

func (p *Pair) FeeBps() uint32 { return p.feeBps }

func (p *Pair) CreatedAt() time.Time { return p.createdAt }

// IsBonding reports whether the pair is still reserved for a bonding curve.
func (p *Pair) IsBonding() bool { return p.bonding.Get() }

// Legs returns the token addresses in canonical order.
func (p *Pair) Legs() (types.Address, types.Address) {
	return p.tokenA.Address(), p.tokenB.Address()
}

// HasLeg reports whether token is one of the pair's legs.
func (p *Pair) HasLeg(token types.Address) bool {
	return token == p.tokenA.Address() || token == p.tokenB.Address()
}

// Other returns the leg opposite to token.
func (p *Pair) Other(token types.Address) (types.Address, error) {
	switch token {
	case p.tokenA.Address():
		return p.tokenB.Address(), nil
	case p.tokenB.Address():
		return p.tokenA.Address(), nil
	}
	return types.ZeroAddress, apperr.New(apperr.KindPairMismatch, "pair.other", "token %s is not a leg of %s", token, p.address)
}

// Reserves returns the reserves in canonical leg order.
func (p *Pair) Reserves() (*big.Int, *big.Int) {
	return types.Copy(p.reserveA.Get()), types.Copy(p.reserveB.Get())
}

// ReserveOf returns the reserve held for token.
func (p *Pair) ReserveOf(token types.Address) (*big.Int, error) {
	in, _, err := p.sides(token)
	if err != nil {
		return nil, err
	}
	return types.Copy(in.reserve.Get()), nil
}

// KLast returns the product of reserves after the last reserve update.
func (p *Pair) KLast() *big.Int {
	return types.Copy(p.kLast.Get())
}

// Quote returns what a swap of amountIn of tokenIn would pay out right now.
func (p *Pair) Quote(tokenIn types.Address, amountIn *big.Int) (*big.Int, error) {
	in, out, err := p.sides(tokenIn)
	if err != nil {
		return nil, err
	}
	return amm.AmountOut(amountIn, in.reserve.Get(), out.reserve.Get(), p.feeBps)
}

// Swap pays recipient for amountIn of tokenIn already transferred into the pair.
// Only the bound router may call it.
func (p *Pair) Swap(tx *ledger.Tx, caller, tokenIn types.Address, amountIn *big.Int, recipient types.Address, minOut *big.Int) (*big.Int, error) {
	const op = "pair.swap"
	if caller != p.router {
		return nil, apperr.Unauthorized(op, caller.String(), "router")
	}
	release, err := p.guard.Enter("swap")
	if err != nil {
		return nil, err
	}
	defer release()

	if p.bonding.Get() {
		return nil, apperr.InvalidState(op, "pair %s is still bonding", p.address)
	}
	in, out, err := p.sides(tokenIn)
	if err != nil {
		return nil, err
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, apperr.InvalidAmount(op, "amount in must be positive")
	}
	if err := p.checkCustody(op, in, amountIn); err != nil {
		return nil, err
	}

	reserveIn, reserveOut := in.reserve.Get(), out.reserve.Get()
	amountOut, err := amm.AmountOut(amountIn, reserveIn, reserveOut, p.feeBps)
	if err != nil {
		return nil, err
	}
	if amountOut.Sign() == 0 || amountOut.Cmp(reserveOut) >= 0 {
		return nil, apperr.New(apperr.KindInsufficientReserve, op,
			"output %s against reserve %s", amountOut, reserveOut)
	}
	if minOut != nil && amountOut.Cmp(minOut) < 0 {
		return nil, apperr.InvalidAmount(op, "output %s below minimum %s", types.FormatUnits(amountOut), types.FormatUnits(minOut))
	}

	// резервы обновляются до перевода, получатель видит уже новое состояние
	in.reserve.Set(tx, new(big.Int).Add(reserveIn, amountIn))
	out.reserve.Set(tx, new(big.Int).Sub(reserveOut, amountOut))
	p.syncK(tx)

	if err := out.token.Transfer(tx, p.address, recipient, amountOut); err != nil {
		return nil, err
	}

	a, b := p.Reserves()
	tx.Emit(&events.ReservesEvent{
		BaseEvent: events.Base(events.Swapped, tx.Time()),
		Pair:      p.address,
		TokenIn:   tokenIn,
		AmountIn:  types.Copy(amountIn),
		AmountOut: types.Copy(amountOut),
		ReserveA:  a,
		ReserveB:  b,
	})
	return amountOut, nil
}

// AddLiquidity books amounts already transferred into the pair as reserves.
// Only the bound router may call it.
func (p *Pair) AddLiquidity(tx *ledger.Tx, caller types.Address, amountA, amountB *big.Int) error {
	const op = "pair.addLiquidity"
	if caller != p.router {
		return apperr.Unauthorized(op, caller.String(), "router")
	}
	release, err := p.guard.Enter("addLiquidity")
	if err != nil {
		return err
	}
	defer release()

	if p.bonding.Get() {
		return apperr.InvalidState(op, "pair %s is still bonding", p.address)
	}
	if amountA == nil || amountB == nil || amountA.Sign() <= 0 || amountB.Sign() <= 0 {
		return apperr.InvalidAmount(op, "both amounts must be positive")
	}
	a, b := p.leg(p.tokenA, p.reserveA), p.leg(p.tokenB, p.reserveB)
	if err := p.checkCustody(op, a, amountA); err != nil {
		return err
	}
	if err := p.checkCustody(op, b, amountB); err != nil {
		return err
	}

	a.reserve.Set(tx, new(big.Int).Add(a.reserve.Get(), amountA))
	b.reserve.Set(tx, new(big.Int).Add(b.reserve.Get(), amountB))
	p.syncK(tx)

	ra, rb := p.Reserves()
	tx.Emit(&events.ReservesEvent{
		BaseEvent: events.Base(events.LiquidityAdded, tx.Time()),
		Pair:      p.address,
		AmountIn:  types.Copy(amountA),
		AmountOut: types.Copy(amountB),
		ReserveA:  ra,
		ReserveB:  rb,
	})
	return nil
}

// SetBonding ends the bonding phase. Only the registry may call it and only once.
func (p *Pair) SetBonding(tx *ledger.Tx, caller types.Address, bonding bool) error {
	const op = "pair.setBonding"
	if caller != p.registry {
		return apperr.Unauthorized(op, caller.String(), "registry")
	}
	if bonding {
		return apperr.InvalidState(op, "pair %s cannot return to bonding", p.address)
	}
	if !p.bonding.Get() {
		return apperr.InvalidState(op, "pair %s already graduated", p.address)
	}
	p.bonding.Set(tx, false)
	return nil
}

type side struct {
	token   Asset
	reserve *ledger.Value[*big.Int]
}

func (p *Pair) leg(token Asset, reserve *ledger.Value[*big.Int]) side {
	return side{token: token, reserve: reserve}
}

func (p *Pair) sides(tokenIn types.Address) (in, out side, err error) {
	a, b := p.leg(p.tokenA, p.reserveA), p.leg(p.tokenB, p.reserveB)
	switch tokenIn {
	case p.tokenA.Address():
		return a, b, nil
	case p.tokenB.Address():
		return b, a, nil
	}
	return side{}, side{}, apperr.New(apperr.KindPairMismatch, "pair.sides",
		"token %s is not a leg of %s", tokenIn, p.address)
}

// checkCustody requires the unbooked balance of a leg to cover amount.
func (p *Pair) checkCustody(op string, s side, amount *big.Int) error {
	unbooked := new(big.Int).Sub(s.token.BalanceOf(p.address), s.reserve.Get())
	if unbooked.Cmp(amount) < 0 {
		return apperr.New(apperr.KindInsufficientBalance, op,
			"pair %s received %s %s, booking %s", p.address, unbooked, s.token.Symbol(), amount)
	}
	return nil
}

func (p *Pair) syncK(tx *ledger.Tx) {
	p.kLast.Set(tx, amm.K(p.reserveA.Get(), p.reserveB.Get()))
}
