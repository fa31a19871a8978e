// Package platform deploys and wires a complete launchpad: the reserve asset,
// the pair registry, the router, the bonding controller and the governance
// registries, with the role grants each of them needs.
package platform

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/bonding"
	"github.com/rovshanmuradov/launchpad/internal/dex/factory"
	"github.com/rovshanmuradov/launchpad/internal/dex/router"
	"github.com/rovshanmuradov/launchpad/internal/governance/service"
	"github.com/rovshanmuradov/launchpad/internal/governance/validator"
	"github.com/rovshanmuradov/launchpad/internal/governance/vetoken"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/token"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

// Well known contract addresses, derived from fixed seeds.
var (
	FactoryAddress = types.MustDeriveAddress([]byte("factory"))
	RouterAddress  = types.MustDeriveAddress([]byte("router"))
	BondingAddress = types.MustDeriveAddress([]byte("bonding"))
	VeTokenAddress = types.MustDeriveAddress([]byte("veVirtual"))
)

// Config describes a deployment.
type Config struct {
	Admin       types.Address
	Treasury    types.Address
	ChainID     uint64
	AssetName   string
	AssetSymbol string
	// AssetSupply is minted to Admin at genesis.
	AssetSupply *big.Int
	PairFeeBps  uint32
	BuyTaxBps   uint32
	SellTaxBps  uint32
	Bonding     bonding.Params
}

// Platform is a deployed launchpad.
type Platform struct {
	Ledger   *ledger.Ledger
	Tokens   *token.Registry
	Asset    *token.Token
	Factory  *factory.Factory
	// Router is the router new pairs are bound to. Use RouterFor to trade a
	// given token.
	Router   *router.Router
	Bonding  *bonding.Controller
	Agents   *validator.Registry
	VeToken  *vetoken.Token
	Services *service.Registry

	admin    types.Address
	treasury types.Address
	logger   *zap.Logger

	mu sync.RWMutex
	// routers holds every router pairs were ever bound to, oldest first.
	routers []*router.Router
}

// Deploy runs the genesis transaction on l.
func Deploy(ctx context.Context, l *ledger.Ledger, cfg Config, logger *zap.Logger) (*Platform, error) {
	if cfg.Admin.IsZero() || cfg.Treasury.IsZero() {
		return nil, fmt.Errorf("admin and treasury are required")
	}
	if cfg.AssetName == "" {
		cfg.AssetName = "Virtual Protocol"
	}
	if cfg.AssetSymbol == "" {
		cfg.AssetSymbol = "VIRTUAL"
	}

	p := &Platform{
		Ledger:   l,
		Tokens:   token.NewRegistry(logger),
		admin:    cfg.Admin,
		treasury: cfg.Treasury,
		logger:   logger.Named("platform"),
	}
	p.Factory = factory.New(factory.Config{Address: FactoryAddress, Admin: cfg.Admin, FeeBps: cfg.PairFeeBps}, p.Tokens, logger)
	p.Agents = validator.NewRegistry(cfg.Admin, logger)
	p.Services = service.NewRegistry(p.Agents, logger)
	p.VeToken = vetoken.New(VeTokenAddress, cfg.Admin, cfg.ChainID)

	_, err := l.Execute(ctx, "genesis", cfg.Admin, func(tx *ledger.Tx) error {
		var err error
		p.Asset, err = p.Tokens.Deploy(tx, cfg.Admin, token.Config{
			Name:   cfg.AssetName,
			Symbol: cfg.AssetSymbol,
		})
		if err != nil {
			return fmt.Errorf("failed to deploy asset: %w", err)
		}
		p.Router = router.New(router.Config{
			Address: RouterAddress,
			Admin:   cfg.Admin,
			Asset:   p.Asset.Address(),
		}, p.Factory, p.Tokens, logger)
		p.routers = []*router.Router{p.Router}
		p.Bonding, err = bonding.New(bonding.Config{
			Address:  BondingAddress,
			Admin:    cfg.Admin,
			Asset:    p.Asset.Address(),
			Treasury: cfg.Treasury,
			Params:   cfg.Bonding,
		}, p.Factory, p.Router, p.Tokens, logger)
		if err != nil {
			return fmt.Errorf("failed to create bonding controller: %w", err)
		}

		steps := []struct {
			name string
			fn   func() error
		}{
			{"grant factory admin", func() error { return p.Factory.GrantRole(tx, cfg.Admin, factory.AdminRole, cfg.Admin) }},
			{"grant factory creator", func() error {
				return p.Factory.GrantRole(tx, cfg.Admin, factory.CreatorRole, p.Bonding.Address())
			}},
			{"grant router executor", func() error {
				return p.Router.GrantRole(tx, cfg.Admin, router.ExecutorRole, p.Bonding.Address())
			}},
			{"set router", func() error { return p.Factory.SetRouter(tx, cfg.Admin, p.Router.Address()) }},
			{"set taxes", func() error {
				return p.Factory.SetTaxParams(tx, cfg.Admin, cfg.Treasury, cfg.BuyTaxBps, cfg.SellTaxBps)
			}},
			{"grant agent minter", func() error {
				return p.Agents.GrantRole(tx, cfg.Admin, validator.MinterRole, cfg.Admin)
			}},
		}
		if cfg.AssetSupply != nil && cfg.AssetSupply.Sign() > 0 {
			steps = append(steps, struct {
				name string
				fn   func() error
			}{"mint asset", func() error { return p.Asset.Mint(tx, cfg.Admin, cfg.Admin, cfg.AssetSupply) }})
		}
		for _, step := range steps {
			if err := step.fn(); err != nil {
				return fmt.Errorf("failed to %s: %w", step.name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("Platform deployed",
		zap.String("asset", p.Asset.Address().String()),
		zap.String("factory", p.Factory.Address().String()),
		zap.String("router", p.Router.Address().String()),
		zap.String("bonding", p.Bonding.Address().String()))
	return p, nil
}

func (p *Platform) Admin() types.Address    { return p.admin }
func (p *Platform) Treasury() types.Address { return p.treasury }

// Fund sends amount of asset from the admin to account and approves the
// router and the bonding controller to spend on its behalf.
func (p *Platform) Fund(ctx context.Context, account types.Address, amount *big.Int) error {
	_, err := p.Ledger.Execute(ctx, "fund", p.admin, func(tx *ledger.Tx) error {
		if amount != nil && amount.Sign() > 0 {
			if err := p.Asset.Transfer(tx, p.admin, account, amount); err != nil {
				return err
			}
		}
		return p.ApproveAll(tx, account, p.Asset)
	})
	return err
}

// ApproveAll gives the router and the bonding controller an unlimited
// allowance over account's balance of tok.
func (p *Platform) ApproveAll(tx *ledger.Tx, account types.Address, tok *token.Token) error {
	spenders := []types.Address{p.Bonding.Address()}
	p.mu.RLock()
	for _, r := range p.routers {
		spenders = append(spenders, r.Address())
	}
	p.mu.RUnlock()
	for _, spender := range spenders {
		if tok.Allowance(account, spender).Cmp(types.MaxAmount) == 0 {
			continue
		}
		if err := tok.Approve(tx, account, spender, types.MaxAmount); err != nil {
			return err
		}
	}
	return nil
}

// SwitchRouter deploys a router at addr and binds every pair created from now
// on to it. Pairs created earlier keep trading through the router they were
// bound to; RouterFor resolves it.
func (p *Platform) SwitchRouter(ctx context.Context, addr types.Address) (*router.Router, error) {
	p.mu.RLock()
	for _, r := range p.routers {
		if r.Address() == addr {
			p.mu.RUnlock()
			return nil, fmt.Errorf("router %s is already deployed", addr)
		}
	}
	p.mu.RUnlock()
	next := router.New(router.Config{
		Address: addr,
		Admin:   p.admin,
		Asset:   p.Asset.Address(),
	}, p.Factory, p.Tokens, p.logger)
	_, err := p.Ledger.Execute(ctx, "switchRouter", p.admin, func(tx *ledger.Tx) error {
		if err := next.GrantRole(tx, p.admin, router.ExecutorRole, p.Bonding.Address()); err != nil {
			return fmt.Errorf("failed to grant router executor: %w", err)
		}
		if err := p.Bonding.AddRouter(tx, p.admin, next); err != nil {
			return fmt.Errorf("failed to register router: %w", err)
		}
		return p.Factory.SetRouter(tx, p.admin, next.Address())
	})
	if err != nil {
		return nil, err
	}
	// p.mu is never held across Execute: views take it under the ledger lock.
	p.mu.Lock()
	p.routers = append(p.routers, next)
	p.Router = next
	p.mu.Unlock()
	p.logger.Info("Router switched", zap.String("router", addr.String()))
	return next, nil
}

// RouterFor returns the router the asset pair of tokenAddr is bound to.
func (p *Platform) RouterFor(tokenAddr types.Address) (*router.Router, error) {
	pr, err := p.Factory.Pair(tokenAddr, p.Asset.Address())
	if err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, r := range p.routers {
		if r.Address() == pr.Router() {
			return r, nil
		}
	}
	return nil, fmt.Errorf("pair %s is bound to unknown router %s", pr.Address(), pr.Router())
}

// RegisterAgent mints the next agent with the admin as minter and returns its id.
func (p *Platform) RegisterAgent(ctx context.Context, dao, founder, tba types.Address, cores []uint8) (uint64, error) {
	var id uint64
	_, err := p.Ledger.Execute(ctx, "registerAgent", p.admin, func(tx *ledger.Tx) error {
		id = p.Agents.NextVirtualID()
		if err := p.Agents.Mint(tx, p.admin, id, dao, founder, cores); err != nil {
			return err
		}
		if tba.IsZero() {
			return nil
		}
		return p.Agents.SetTBA(tx, p.admin, id, tba)
	})
	return id, err
}
