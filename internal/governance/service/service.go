// Package service turns executed contribution proposals into service records.
//
// Proposals and services are addressed by the same key, ProposalKey. The
// writer (Propose) and the reader (Mint) both go through it, so a service
// always reports the core its proposal was filed with.
package service

import (
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/apperr"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/governance/validator"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

// Agents resolves agents by virtual id.
type Agents interface {
	Agent(virtualID uint64) (validator.Agent, error)
}

// Contribution is a filed proposal.
type Contribution struct {
	ID        types.Hash
	VirtualID uint64
	Proposer  types.Address
	DescHash  types.Hash
	Core      uint8
	Executed  bool
}

// Service is a minted contribution.
type Service struct {
	ID        types.Hash
	VirtualID uint64
	Owner     types.Address
	Core      uint8
	DescHash  types.Hash
}

// ProposalKey is the id of the proposal for virtualID with description hash descHash.
func ProposalKey(virtualID uint64, descHash types.Hash) types.Hash {
	return types.Keccak256(types.Uint64Word(virtualID), descHash[:])
}

// DescriptionHash hashes a proposal description.
func DescriptionHash(description string) types.Hash {
	return types.Keccak256([]byte(description))
}

// Registry holds contributions and services.
type Registry struct {
	agents        Agents
	contributions *ledger.Map[types.Hash, Contribution]
	services      *ledger.Map[types.Hash, Service]
	logger        *zap.Logger
}

func NewRegistry(agents Agents, logger *zap.Logger) *Registry {
	return &Registry{
		agents:        agents,
		contributions: ledger.NewMap[types.Hash, Contribution](),
		services:      ledger.NewMap[types.Hash, Service](),
		logger:        logger.Named("services"),
	}
}

// Propose files a contribution for agent virtualID and returns its id.
func (r *Registry) Propose(tx *ledger.Tx, proposer types.Address, virtualID uint64, description string, core uint8) (types.Hash, error) {
	const op = "services.propose"
	if _, err := r.agents.Agent(virtualID); err != nil {
		return types.Hash{}, err
	}
	if description == "" {
		return types.Hash{}, apperr.InvalidAmount(op, "description is required")
	}
	descHash := DescriptionHash(description)
	id := ProposalKey(virtualID, descHash)
	if r.contributions.Has(id) {
		return types.Hash{}, apperr.New(apperr.KindAlreadyExists, op, "proposal for agent %d already filed", virtualID)
	}
	r.contributions.Set(tx, id, Contribution{
		ID:        id,
		VirtualID: virtualID,
		Proposer:  proposer,
		DescHash:  descHash,
		Core:      core,
	})
	tx.Emit(&events.GovernanceEvent{
		BaseEvent: events.Base(events.ProposalCreated, tx.Time()),
		VirtualID: virtualID,
		Account:   proposer,
		Hash:      id,
	})
	return id, nil
}

// Execute marks an approved proposal executed and mints its service. Only
// the agent's DAO may execute.
func (r *Registry) Execute(tx *ledger.Tx, caller types.Address, proposalID types.Hash) (types.Hash, error) {
	const op = "services.execute"
	c, ok := r.contributions.Get(proposalID)
	if !ok {
		return types.Hash{}, apperr.NotFound(op, "proposal %x", proposalID[:8])
	}
	if c.Executed {
		return types.Hash{}, apperr.InvalidState(op, "proposal %x already executed", proposalID[:8])
	}
	agent, err := r.agents.Agent(c.VirtualID)
	if err != nil {
		return types.Hash{}, err
	}
	if caller != agent.DAO {
		return types.Hash{}, apperr.Unauthorized(op, caller.String(), "dao")
	}
	c.Executed = true
	r.contributions.Set(tx, proposalID, c)
	return r.Mint(tx, caller, c.VirtualID, c.DescHash)
}

// Mint records the service for the executed contribution keyed by
// (virtualID, descHash). The owner is the agent's TBA.
func (r *Registry) Mint(tx *ledger.Tx, caller types.Address, virtualID uint64, descHash types.Hash) (types.Hash, error) {
	const op = "services.mint"
	agent, err := r.agents.Agent(virtualID)
	if err != nil {
		return types.Hash{}, err
	}
	if caller != agent.DAO {
		return types.Hash{}, apperr.Unauthorized(op, caller.String(), "dao")
	}
	id := ProposalKey(virtualID, descHash)
	c, ok := r.contributions.Get(id)
	if !ok {
		return types.Hash{}, apperr.NotFound(op, "no contribution for agent %d", virtualID)
	}
	if !c.Executed {
		return types.Hash{}, apperr.InvalidState(op, "proposal %x is not executed", id[:8])
	}
	if r.services.Has(id) {
		return types.Hash{}, apperr.New(apperr.KindAlreadyExists, op, "service %x already minted", id[:8])
	}
	owner := agent.TBA
	if owner.IsZero() {
		owner = agent.DAO
	}
	r.services.Set(tx, id, Service{
		ID:        id,
		VirtualID: virtualID,
		Owner:     owner,
		Core:      c.Core,
		DescHash:  c.DescHash,
	})
	tx.Emit(&events.GovernanceEvent{
		BaseEvent: events.Base(events.ServiceMinted, tx.Time()),
		VirtualID: virtualID,
		Account:   owner,
		Hash:      id,
	})
	tx.Logger().Info("Service minted",
		zap.Uint64("virtual_id", virtualID),
		zap.Uint8("core", c.Core),
		zap.String("owner", types.ShortAddress(owner)))
	return id, nil
}

func (r *Registry) Contribution(id types.Hash) (Contribution, error) {
	c, ok := r.contributions.Get(id)
	if !ok {
		return Contribution{}, apperr.NotFound("services.contribution", "proposal %x", id[:8])
	}
	return c, nil
}

func (r *Registry) Service(id types.Hash) (Service, error) {
	s, ok := r.services.Get(id)
	if !ok {
		return Service{}, apperr.NotFound("services.service", "service %x", id[:8])
	}
	return s, nil
}

// GetCore returns the core of the service minted from proposalID.
func (r *Registry) GetCore(proposalID types.Hash) (uint8, error) {
	s, err := r.Service(proposalID)
	if err != nil {
		return 0, err
	}
	return s.Core, nil
}

// OwnerOf returns the owner of service id.
func (r *Registry) OwnerOf(id types.Hash) (types.Address, error) {
	s, err := r.Service(id)
	if err != nil {
		return types.Address{}, err
	}
	return s.Owner, nil
}
