// Package token implements the fee-bearing fungible token used for launched
// tokens and for the reserve asset.
package token

import (
	"math/big"

	"github.com/rovshanmuradov/launchpad/internal/apperr"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

// Receiver is notified after tokens are credited to the account it was registered for.
// Returning an error aborts the whole transaction.
type Receiver interface {
	OnTokenReceived(tx *ledger.Tx, token, from types.Address, amount *big.Int) error
}

// ReceiverFunc adapts a function to Receiver.
type ReceiverFunc func(tx *ledger.Tx, token, from types.Address, amount *big.Int) error

// OnTokenReceived calls f.
func (f ReceiverFunc) OnTokenReceived(tx *ledger.Tx, token, from types.Address, amount *big.Int) error {
	return f(tx, token, from, amount)
}

// Config describes a token at deployment.
type Config struct {
	Name     string
	Symbol   string
	Owner    types.Address
	Treasury types.Address
	TaxBps   uint32
}

type allowanceKey struct {
	owner   types.Address
	spender types.Address
}

// Token is a fungible token with an optional transfer tax.
type Token struct {
	address types.Address
	name    string
	symbol  string

	owner       *ledger.Value[types.Address]
	totalSupply *ledger.Value[*big.Int]
	taxBps      *ledger.Value[uint32]
	treasury    *ledger.Value[types.Address]
	balances    *ledger.Map[types.Address, *big.Int]
	allowances  *ledger.Map[allowanceKey, *big.Int]
	exempt      *ledger.Map[types.Address, bool]
	receivers   *ledger.Map[types.Address, Receiver]
}

// New creates a token at address. The owner and treasury are tax exempt.
func New(address types.Address, cfg Config) (*Token, error) {
	if cfg.TaxBps > types.BasisPoints {
		return nil, apperr.InvalidAmount("token.new", "tax %d bps exceeds %d", cfg.TaxBps, types.BasisPoints)
	}
	if cfg.Owner.IsZero() {
		return nil, apperr.InvalidAmount("token.new", "owner is the zero address")
	}
	t := &Token{
		address:     address,
		name:        cfg.Name,
		symbol:      cfg.Symbol,
		owner:       ledger.NewValue(cfg.Owner),
		totalSupply: ledger.NewValue(new(big.Int)),
		taxBps:      ledger.NewValue(cfg.TaxBps),
		treasury:    ledger.NewValue(cfg.Treasury),
		balances:    ledger.NewMap[types.Address, *big.Int](),
		allowances:  ledger.NewMap[allowanceKey, *big.Int](),
		exempt:      ledger.NewMap[types.Address, bool](),
		receivers:   ledger.NewMap[types.Address, Receiver](),
	}
	t.exempt.Seed(cfg.Owner, true)
	if !cfg.Treasury.IsZero() {
		t.exempt.Seed(cfg.Treasury, true)
	}
	return t, nil
}

func (t *Token) Address() types.Address { return t.address }
func (t *Token) Name() string { return t.name }
func (t *Token) Symbol() string { return t.symbol }
func (t *Token) Decimals() uint8 { return types.Decimals }
func (t *Token) Owner() types.Address { return t.owner.Get() }
func (t *Token) TaxBps() uint32 { return t.taxBps.Get() }
func (t *Token) Treasury() types.Address { return t.treasury.Get() }

// TotalSupply returns the amount in circulation.
func (t *Token) TotalSupply() *big.Int {
	return types.Copy(t.totalSupply.Get())
}

// BalanceOf returns the balance of account.
func (t *Token) BalanceOf(account types.Address) *big.Int {
	b, _ := t.balances.Get(account)
	return types.Copy(b)
}

// Allowance returns what spender may still move on behalf of owner.
func (t *Token) Allowance(owner, spender types.Address) *big.Int {
	a, _ := t.allowances.Get(allowanceKey{owner, spender})
	return types.Copy(a)
}

// IsExempt reports whether transfers touching account skip the tax.
func (t *Token) IsExempt(account types.Address) bool {
	ok, _ := t.exempt.Get(account)
	return ok
}

// Transfer moves amount from caller to to.
func (t *Token) Transfer(tx *ledger.Tx, caller, to types.Address, amount *big.Int) error {
	return t.transfer(tx, t.op("transfer"), caller, to, amount)
}

// TransferFrom moves amount from from to to using spender's allowance.
func (t *Token) TransferFrom(tx *ledger.Tx, spender, from, to types.Address, amount *big.Int) error {
	op := t.op("transferFrom")
	if err := checkAmount(op, amount); err != nil {
		return err
	}
	allowed := t.Allowance(from, spender)
	if allowed.Cmp(amount) < 0 {
		return apperr.New(apperr.KindInsufficientAllowance, op,
			"spender %s allowed %s, needs %s", spender, types.FormatUnits(allowed), types.FormatUnits(amount))
	}
	if !types.IsMax(allowed) {
		t.allowances.Set(tx, allowanceKey{from, spender}, allowed.Sub(allowed, amount))
	}
	return t.transfer(tx, op, from, to, amount)
}

// Approve sets the allowance of spender over owner's tokens.
func (t *Token) Approve(tx *ledger.Tx, owner, spender types.Address, amount *big.Int) error {
	op := t.op("approve")
	if err := checkAmount(op, amount); err != nil {
		return err
	}
	if spender.IsZero() {
		return apperr.InvalidAmount(op, "spender is the zero address")
	}
	t.allowances.Set(tx, allowanceKey{owner, spender}, types.Copy(amount))
	tx.Emit(&events.ApprovalEvent{
		BaseEvent: events.Base(events.TokenApproved, tx.Time()),
		Token:     t.address,
		Owner:     owner,
		Spender:   spender,
		Amount:    types.Copy(amount),
	})
	return nil
}

// Mint creates amount tokens for to. Only the owner may mint.
func (t *Token) Mint(tx *ledger.Tx, caller, to types.Address, amount *big.Int) error {
	op := t.op("mint")
	if err := t.requireOwner(op, caller); err != nil {
		return err
	}
	if err := checkAmount(op, amount); err != nil {
		return err
	}
	if to.IsZero() {
		return apperr.InvalidAmount(op, "mint to the zero address")
	}
	t.credit(tx, to, amount)
	t.totalSupply.Set(tx, new(big.Int).Add(t.totalSupply.Get(), amount))
	tx.Emit(&events.SupplyEvent{
		BaseEvent: events.Base(events.TokenMinted, tx.Time()),
		Token:     t.address,
		Account:   to,
		Amount:    types.Copy(amount),
	})
	return nil
}

// Burn destroys amount of the caller's tokens.
func (t *Token) Burn(tx *ledger.Tx, caller types.Address, amount *big.Int) error {
	op := t.op("burn")
	if err := checkAmount(op, amount); err != nil {
		return err
	}
	if err := t.debit(tx, op, caller, amount); err != nil {
		return err
	}
	t.totalSupply.Set(tx, new(big.Int).Sub(t.totalSupply.Get(), amount))
	tx.Emit(&events.SupplyEvent{
		BaseEvent: events.Base(events.TokenBurned, tx.Time()),
		Token:     t.address,
		Account:   caller,
		Amount:    types.Copy(amount),
	})
	return nil
}

// SetExempt adds or removes account from the tax exemption list.
func (t *Token) SetExempt(tx *ledger.Tx, caller, account types.Address, exempt bool) error {
	if err := t.requireOwner(t.op("setExempt"), caller); err != nil {
		return err
	}
	if exempt {
		t.exempt.Set(tx, account, true)
	} else {
		t.exempt.Delete(tx, account)
	}
	return nil
}

// SetTax changes the transfer tax and its treasury.
func (t *Token) SetTax(tx *ledger.Tx, caller, treasury types.Address, bps uint32) error {
	op := t.op("setTax")
	if err := t.requireOwner(op, caller); err != nil {
		return err
	}
	if bps > types.BasisPoints {
		return apperr.InvalidAmount(op, "tax %d bps exceeds %d", bps, types.BasisPoints)
	}
	if bps > 0 && treasury.IsZero() {
		return apperr.InvalidAmount(op, "taxed token needs a treasury")
	}
	t.taxBps.Set(tx, bps)
	t.treasury.Set(tx, treasury)
	return nil
}

// TransferOwnership hands the owner capabilities to next.
func (t *Token) TransferOwnership(tx *ledger.Tx, caller, next types.Address) error {
	op := t.op("transferOwnership")
	if err := t.requireOwner(op, caller); err != nil {
		return err
	}
	if next.IsZero() {
		return apperr.InvalidAmount(op, "new owner is the zero address")
	}
	t.owner.Set(tx, next)
	return nil
}

// SetReceiver registers r to be notified when account receives tokens. A nil r removes it.
func (t *Token) SetReceiver(tx *ledger.Tx, account types.Address, r Receiver) {
	if r == nil {
		t.receivers.Delete(tx, account)
		return
	}
	t.receivers.Set(tx, account, r)
}

func (t *Token) transfer(tx *ledger.Tx, op string, from, to types.Address, amount *big.Int) error {
	if err := checkAmount(op, amount); err != nil {
		return err
	}
	if to.IsZero() {
		return apperr.InvalidAmount(op, "transfer to the zero address")
	}
	if err := t.debit(tx, op, from, amount); err != nil {
		return err
	}

	tax := t.taxOn(from, to, amount)
	net := new(big.Int).Sub(amount, tax)
	if tax.Sign() > 0 {
		t.credit(tx, t.treasury.Get(), tax)
	}
	t.credit(tx, to, net)
	tx.Emit(&events.TransferEvent{
		BaseEvent: events.Base(events.TokenTransferred, tx.Time()),
		Token:     t.address,
		From:      from,
		To:        to,
		Amount:    net,
		Tax:       tax,
	})

	if r, ok := t.receivers.Get(to); ok {
		if err := r.OnTokenReceived(tx, t.address, from, types.Copy(net)); err != nil {
			return err
		}
	}
	return nil
}

func (t *Token) taxOn(from, to types.Address, amount *big.Int) *big.Int {
	bps := t.taxBps.Get()
	if bps == 0 || t.treasury.Get().IsZero() || t.IsExempt(from) || t.IsExempt(to) {
		return new(big.Int)
	}
	return types.ApplyBps(amount, bps)
}

func (t *Token) debit(tx *ledger.Tx, op string, account types.Address, amount *big.Int) error {
	balance := t.BalanceOf(account)
	if balance.Cmp(amount) < 0 {
		return apperr.New(apperr.KindInsufficientBalance, op,
			"account %s holds %s %s, needs %s", account, types.FormatUnits(balance), t.symbol, types.FormatUnits(amount))
	}
	t.balances.Set(tx, account, balance.Sub(balance, amount))
	return nil
}

func (t *Token) credit(tx *ledger.Tx, account types.Address, amount *big.Int) {
	balance := t.BalanceOf(account)
	t.balances.Set(tx, account, balance.Add(balance, amount))
}

func (t *Token) requireOwner(op string, caller types.Address) error {
	if caller != t.owner.Get() {
		return apperr.Unauthorized(op, caller.String(), "owner")
	}
	return nil
}

func (t *Token) op(name string) string {
	return t.symbol + "." + name
}

func checkAmount(op string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return apperr.InvalidAmount(op, "amount must be non-negative")
	}
	return nil
}
