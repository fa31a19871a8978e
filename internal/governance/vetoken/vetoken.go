// Package vetoken implements the vote-escrow balance ledger. Plain approvals
// are disabled; allowances only change through a signed permit.
package vetoken

import (
	"math/big"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/launchpad/internal/apperr"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

const (
	// DomainName and DomainVersion identify the permit signing domain.
	DomainName    = "Virtual Protocol Voting"
	DomainVersion = "1"
)

var (
	domainTypeHash = types.Keccak256([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
	permitTypeHash = types.Keccak256([]byte("Permit(address owner,address spender,uint256 value,uint256 nonce,uint256 deadline)"))
)

type allowanceKey struct {
	owner   types.Address
	spender types.Address
}

// Token is the vote-escrow token.
type Token struct {
	address   types.Address
	owner     types.Address
	chainID   uint64
	domainSep types.Hash

	totalSupply *ledger.Value[*big.Int]
	balances    *ledger.Map[types.Address, *big.Int]
	allowances  *ledger.Map[allowanceKey, *big.Int]
	nonces      *ledger.Map[types.Address, uint64]
}

// New creates the token at address, owned by owner, for chainID.
func New(address, owner types.Address, chainID uint64) *Token {
	return &Token{
		address:     address,
		owner:       owner,
		chainID:     chainID,
		domainSep:   DomainSeparator(chainID, address),
		totalSupply: ledger.NewValue(new(big.Int)),
		balances:    ledger.NewMap[types.Address, *big.Int](),
		allowances:  ledger.NewMap[allowanceKey, *big.Int](),
		nonces:      ledger.NewMap[types.Address, uint64](),
	}
}

// DomainSeparator returns the signing domain of a token deployed at verifyingContract.
func DomainSeparator(chainID uint64, verifyingContract types.Address) types.Hash {
	name := types.Keccak256([]byte(DomainName))
	version := types.Keccak256([]byte(DomainVersion))
	return types.Keccak256(
		domainTypeHash[:],
		name[:],
		version[:],
		types.Uint64Word(chainID),
		verifyingContract[:],
	)
}

// PermitDigest returns the message an owner signs to authorize spender.
func PermitDigest(domainSep types.Hash, owner, spender types.Address, value *big.Int, nonce, deadline uint64) types.Hash {
	structHash := types.Keccak256(
		permitTypeHash[:],
		owner[:],
		spender[:],
		types.Word(value),
		types.Uint64Word(nonce),
		types.Uint64Word(deadline),
	)
	return types.Keccak256([]byte{0x19, 0x01}, domainSep[:], structHash[:])
}

func (t *Token) Address() types.Address { return t.address }

// DomainSeparator returns the token's signing domain.
func (t *Token) DomainSeparator() types.Hash { return t.domainSep }

// Nonce returns the next permit nonce of owner.
func (t *Token) Nonce(owner types.Address) uint64 {
	n, _ := t.nonces.Get(owner)
	return n
}

func (t *Token) BalanceOf(account types.Address) *big.Int {
	b, _ := t.balances.Get(account)
	return types.Copy(b)
}

func (t *Token) TotalSupply() *big.Int { return types.Copy(t.totalSupply.Get()) }

// Allowance returns what spender may move on behalf of owner.
func (t *Token) Allowance(owner, spender types.Address) *big.Int {
	a, _ := t.allowances.Get(allowanceKey{owner, spender})
	return types.Copy(a)
}

// Mint credits amount of voting balance to account. Owner only.
func (t *Token) Mint(tx *ledger.Tx, caller, account types.Address, amount *big.Int) error {
	const op = "veToken.mint"
	if caller != t.owner {
		return apperr.Unauthorized(op, caller.String(), "owner")
	}
	if amount == nil || amount.Sign() <= 0 {
		return apperr.InvalidAmount(op, "amount must be positive")
	}
	b := t.BalanceOf(account)
	t.balances.Set(tx, account, b.Add(b, amount))
	t.totalSupply.Set(tx, new(big.Int).Add(t.totalSupply.Get(), amount))
	return nil
}

// Approve is disabled on vote-escrow balances.
func (t *Token) Approve(tx *ledger.Tx, owner, spender types.Address, amount *big.Int) error {
	return apperr.InvalidState("veToken.approve", "approvals are disabled, use a signed permit")
}

// Permit sets the allowance of spender over owner's balance to value, if sig
// is owner's signature over the permit digest and deadline has not passed.
func (t *Token) Permit(tx *ledger.Tx, owner, spender types.Address, value *big.Int, deadline uint64, sig solana.Signature) error {
	const op = "veToken.permit"
	if value == nil || value.Sign() < 0 || value.BitLen() > 256 {
		return apperr.InvalidAmount(op, "value must fit in 256 bits")
	}
	if owner.IsZero() || spender.IsZero() {
		return apperr.InvalidAmount(op, "owner and spender are required")
	}
	if now := tx.Time().Unix(); now < 0 || uint64(now) > deadline {
		return apperr.InvalidState(op, "permit expired at %d", deadline)
	}

	nonce := t.Nonce(owner)
	digest := PermitDigest(t.domainSep, owner, spender, value, nonce, deadline)
	if !sig.Verify(owner, digest[:]) {
		return apperr.New(apperr.KindSignatureInvalid, op, "signature does not belong to owner %s", owner)
	}

	t.nonces.Set(tx, owner, nonce+1)
	t.allowances.Set(tx, allowanceKey{owner, spender}, types.Copy(value))
	tx.Emit(&events.GovernanceEvent{
		BaseEvent: events.Base(events.PermitApplied, tx.Time()),
		Account:   owner,
		Subject:   spender,
		Hash:      digest,
		Amount:    types.Copy(value),
	})
	return nil
}
