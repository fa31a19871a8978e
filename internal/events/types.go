// internal/events/types.go
package events

import (
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
)

// EventType represents the type of event.
type EventType string

const (
	// Ledger events
	TxCommitted EventType = "tx.committed"
	TxReverted  EventType = "tx.reverted"

	// Token events
	TokenTransferred EventType = "token.transferred"
	TokenApproved    EventType = "token.approved"
	TokenMinted      EventType = "token.minted"
	TokenBurned      EventType = "token.burned"

	// Access control events
	RoleGranted EventType = "role.granted"
	RoleRevoked EventType = "role.revoked"

	// Registry and pair events
	PairCreated     EventType = "pair.created"
	PairGraduated   EventType = "pair.graduated"
	RouterUpdated   EventType = "registry.router_updated"
	TaxUpdated      EventType = "registry.tax_updated"
	LiquidityAdded  EventType = "pair.liquidity_added"
	Swapped         EventType = "pair.swapped"
	RouterTraded    EventType = "router.traded"
	CurveLaunched   EventType = "bonding.launched"
	CurveTraded     EventType = "bonding.traded"
	CurveGraduated  EventType = "bonding.graduated"
	ValidatorAdded  EventType = "governance.validator_added"
	AgentMinted     EventType = "governance.agent_minted"
	PermitApplied   EventType = "governance.permit_applied"
	ProposalCreated EventType = "governance.proposal_created"
	ServiceMinted   EventType = "governance.service_minted"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// Base is shorthand for building a BaseEvent.
func Base(t EventType, at time.Time) BaseEvent {
	return BaseEvent{EventType: t, EventTime: at}
}

// TxEvent is published on the bus once a ledger transaction finished.
type TxEvent struct {
	BaseEvent
	TxID     uint64
	Name     string
	Sender   solana.PublicKey
	Error    error
	Events   []Event
	Duration time.Duration
}

// TransferEvent is emitted for every token movement, tax included.
type TransferEvent struct {
	BaseEvent
	Token  solana.PublicKey
	From   solana.PublicKey
	To     solana.PublicKey
	Amount *big.Int
	Tax    *big.Int
}

// ApprovalEvent is emitted when an allowance changes.
type ApprovalEvent struct {
	BaseEvent
	Token   solana.PublicKey
	Owner   solana.PublicKey
	Spender solana.PublicKey
	Amount  *big.Int
}

// SupplyEvent is emitted on mint and burn.
type SupplyEvent struct {
	BaseEvent
	Token   solana.PublicKey
	Account solana.PublicKey
	Amount  *big.Int
}

// RoleEvent is emitted when a role is granted or revoked.
type RoleEvent struct {
	BaseEvent
	Contract string
	Role     string
	Account  solana.PublicKey
	Sender   solana.PublicKey
}

// PairEvent is emitted on pair creation and graduation.
type PairEvent struct {
	BaseEvent
	Pair      solana.PublicKey
	TokenA    solana.PublicKey
	TokenB    solana.PublicKey
	Creator   solana.PublicKey
	IsBonding bool
}

// ConfigEvent is emitted when registry configuration changes.
type ConfigEvent struct {
	BaseEvent
	Router     solana.PublicKey
	Treasury   solana.PublicKey
	BuyTaxBps  uint32
	SellTaxBps uint32
	Version    uint64
}

// ReservesEvent is emitted whenever a pair's reserves change.
type ReservesEvent struct {
	BaseEvent
	Pair      solana.PublicKey
	TokenIn   solana.PublicKey
	AmountIn  *big.Int
	AmountOut *big.Int
	ReserveA  *big.Int
	ReserveB  *big.Int
}

// TradeEvent is emitted by the router and the bonding curve.
type TradeEvent struct {
	BaseEvent
	Token     solana.PublicKey
	Trader    solana.PublicKey
	Recipient solana.PublicKey
	IsBuy     bool
	AmountIn  *big.Int
	AmountOut *big.Int
	Tax       *big.Int
	Price     float64
}

// LaunchEvent is emitted when a token is launched or graduates.
type LaunchEvent struct {
	BaseEvent
	Token        solana.PublicKey
	Pair         solana.PublicKey
	Creator      solana.PublicKey
	Name         string
	Symbol       string
	AssetRaised  *big.Int
	TokenReserve *big.Int
}

// GovernanceEvent covers validator, permit, agent, proposal and service events.
type GovernanceEvent struct {
	BaseEvent
	VirtualID uint64
	Account   solana.PublicKey
	Subject   solana.PublicKey
	Hash      [32]byte
	Amount    *big.Int
}
