// Package validator is the agent registry: minted agents, their DAO and the
// per-agent validator set.
package validator

import (
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/access"
	"github.com/rovshanmuradov/launchpad/internal/apperr"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

// MinterRole may mint agents and manage their validators.
const MinterRole access.Role = "MINTER_ROLE"

// Agent is a registered agent.
type Agent struct {
	VirtualID uint64
	Minter    types.Address
	DAO       types.Address
	Founder   types.Address
	TBA       types.Address
	Cores     []uint8
}

type validatorKey struct {
	virtualID uint64
	account   types.Address
}

// Registry stores agents and their validators.
type Registry struct {
	acl        *access.Control
	agents     *ledger.Map[uint64, Agent]
	validators *ledger.Map[validatorKey, bool]
	counts     *ledger.Map[uint64, int]
	nextID     *ledger.Value[uint64]
	logger     *zap.Logger
}

// NewRegistry creates an empty registry administered by admin.
func NewRegistry(admin types.Address, logger *zap.Logger) *Registry {
	return &Registry{
		acl:        access.NewControl("agents", admin),
		agents:     ledger.NewMap[uint64, Agent](),
		validators: ledger.NewMap[validatorKey, bool](),
		counts:     ledger.NewMap[uint64, int](),
		nextID:     ledger.NewValue[uint64](1),
		logger:     logger.Named("agents"),
	}
}

// NextVirtualID returns the id the next Mint must use.
func (r *Registry) NextVirtualID() uint64 { return r.nextID.Get() }

// Mint registers agent virtualID. The founder becomes its first validator.
func (r *Registry) Mint(tx *ledger.Tx, caller types.Address, virtualID uint64, dao, founder types.Address, cores []uint8) error {
	const op = "agents.mint"
	if err := r.acl.Require(op, MinterRole, caller); err != nil {
		return err
	}
	if virtualID != r.nextID.Get() {
		return apperr.InvalidState(op, "expected virtual id %d, got %d", r.nextID.Get(), virtualID)
	}
	if dao.IsZero() || founder.IsZero() {
		return apperr.InvalidAmount(op, "dao and founder are required")
	}
	r.agents.Set(tx, virtualID, Agent{
		VirtualID: virtualID,
		Minter:    caller,
		DAO:       dao,
		Founder:   founder,
		Cores:     append([]uint8(nil), cores...),
	})
	r.nextID.Set(tx, virtualID+1)
	r.addValidator(tx, virtualID, founder)

	tx.Emit(&events.GovernanceEvent{
		BaseEvent: events.Base(events.AgentMinted, tx.Time()),
		VirtualID: virtualID,
		Account:   founder,
		Subject:   dao,
	})
	r.logger.Info("Agent minted",
		zap.Uint64("tx_id", tx.ID()),
		zap.Uint64("virtual_id", virtualID),
		zap.String("dao", dao.String()),
		zap.String("founder", founder.String()))
	return nil
}

// SetTBA binds the token bound account of an agent.
func (r *Registry) SetTBA(tx *ledger.Tx, caller types.Address, virtualID uint64, tba types.Address) error {
	const op = "agents.setTBA"
	if err := r.acl.Require(op, MinterRole, caller); err != nil {
		return err
	}
	agent, err := r.Agent(virtualID)
	if err != nil {
		return err
	}
	if !agent.TBA.IsZero() {
		return apperr.InvalidState(op, "agent %d already has a TBA", virtualID)
	}
	agent.TBA = tba
	r.agents.Set(tx, virtualID, agent)
	return nil
}

// AddValidator adds account to the validator set of virtualID. Only minters
// and the agent's own DAO may do it.
func (r *Registry) AddValidator(tx *ledger.Tx, caller types.Address, virtualID uint64, account types.Address) error {
	const op = "agents.addValidator"
	agent, ok := r.agents.Get(virtualID)
	if !r.acl.HasRole(MinterRole, caller) && (!ok || caller != agent.DAO) {
		return apperr.Unauthorized(op, caller.String(), string(MinterRole))
	}
	if !ok {
		return apperr.NotFound(op, "agent %d", virtualID)
	}
	if account.IsZero() {
		return apperr.InvalidAmount(op, "validator is the zero address")
	}
	r.addValidator(tx, virtualID, account)
	return nil
}

func (r *Registry) addValidator(tx *ledger.Tx, virtualID uint64, account types.Address) {
	key := validatorKey{virtualID, account}
	if r.validators.Has(key) {
		return
	}
	r.validators.Set(tx, key, true)
	n, _ := r.counts.Get(virtualID)
	r.counts.Set(tx, virtualID, n+1)
	tx.Emit(&events.GovernanceEvent{
		BaseEvent: events.Base(events.ValidatorAdded, tx.Time()),
		VirtualID: virtualID,
		Account:   account,
	})
}

// IsValidator reports whether account validates agent virtualID.
func (r *Registry) IsValidator(virtualID uint64, account types.Address) bool {
	return r.validators.Has(validatorKey{virtualID, account})
}

// ValidatorCount returns the size of the validator set of virtualID.
func (r *Registry) ValidatorCount(virtualID uint64) int {
	n, _ := r.counts.Get(virtualID)
	return n
}

// Agent returns the agent virtualID.
func (r *Registry) Agent(virtualID uint64) (Agent, error) {
	agent, ok := r.agents.Get(virtualID)
	if !ok {
		return Agent{}, apperr.NotFound("agents.agent", "agent %d", virtualID)
	}
	agent.Cores = append([]uint8(nil), agent.Cores...)
	return agent, nil
}

// HasRole reports whether account holds role.
func (r *Registry) HasRole(role access.Role, account types.Address) bool {
	return r.acl.HasRole(role, account)
}

// GrantRole gives role to account.
func (r *Registry) GrantRole(tx *ledger.Tx, caller types.Address, role access.Role, account types.Address) error {
	return r.acl.GrantRole(tx, caller, role, account)
}
