// internal/runner/runner.go
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/launchpad/internal/config"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/platform"
	"github.com/rovshanmuradov/launchpad/internal/storage"
	"github.com/rovshanmuradov/launchpad/internal/storage/memory"
	"github.com/rovshanmuradov/launchpad/internal/storage/postgres"
	"github.com/rovshanmuradov/launchpad/internal/task"
	"github.com/rovshanmuradov/launchpad/internal/types"
	"github.com/rovshanmuradov/launchpad/internal/utils/metrics"
	"github.com/rovshanmuradov/launchpad/internal/wallet"
)

// AdminWallet is the wallet name that deploys the platform. A fresh key is
// generated when the wallets file has none.
const AdminWallet = "admin"

// TreasuryAddress receives launch fees and trade taxes.
var TreasuryAddress = types.MustDeriveAddress([]byte("treasury"))

// Options overrides runner collaborators. Zero values mean defaults.
type Options struct {
	Store   storage.Storage
	Wallets map[string]*wallet.Wallet
	Clock   func() time.Time
}

// Runner deploys a platform and executes scripted tasks against it.
type Runner struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    storage.Storage
	recorder *storage.Recorder
	metrics  *metrics.Collector
	bus      *events.Bus
	platform *platform.Platform
	wallets  map[string]*wallet.Wallet
	admin    *wallet.Wallet

	mu       sync.RWMutex
	launched map[string]launch
}

type launch struct {
	token     types.Address
	virtualID uint64
}

// Summary reports the outcome of Run.
type Summary struct {
	Succeeded int
	Failed    int
	Tokens    map[string]types.Address
	Snapshot  *platform.Snapshot
}

// New builds the storage, hooks and ledger, deploys the platform and funds
// every wallet.
func New(ctx context.Context, cfg *config.Config, opts Options, logger *zap.Logger) (*Runner, error) {
	r := &Runner{
		cfg:      cfg,
		logger:   logger.Named("runner"),
		store:    opts.Store,
		metrics:  metrics.NewCollector(),
		bus:      events.NewBus(logger, 1024),
		wallets:  opts.Wallets,
		launched: make(map[string]launch),
	}

	r.bus.Subscribe(events.CurveGraduated, events.On(r.onGraduated))

	if err := r.openStorage(); err != nil {
		r.bus.Shutdown(context.Background())
		return nil, err
	}
	if err := r.loadWallets(); err != nil {
		r.Close()
		return nil, err
	}

	r.recorder = storage.NewRecorder(r.store, storage.RecorderOptions{MaxTries: uint(cfg.Retries) + 1}, logger)
	ledgerOpts := []ledger.Option{
		ledger.WithCommitHook(r.recorder),
		ledger.WithCommitHook(r.metrics),
		ledger.WithCommitHook(ledger.CommitHookFunc(r.publish)),
	}
	if opts.Clock != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithClock(opts.Clock))
	}
	l := ledger.New(logger, ledgerOpts...)

	pcfg, err := cfg.PlatformConfig(r.admin.Address(), TreasuryAddress)
	if err != nil {
		r.Close()
		return nil, err
	}
	r.platform, err = platform.Deploy(ctx, l, pcfg, logger)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to deploy platform: %w", err)
	}

	fund, err := types.ParseUnits(cfg.Platform.FundAmount)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("invalid fund amount: %w", err)
	}
	for name, w := range r.wallets {
		if name == AdminWallet {
			continue
		}
		if err := r.platform.Fund(ctx, w.Address(), fund); err != nil {
			r.Close()
			return nil, fmt.Errorf("failed to fund wallet %s: %w", name, err)
		}
	}

	r.logger.Info("Platform ready",
		zap.String("admin", r.admin.String()),
		zap.Int("wallets", len(r.wallets)),
		zap.String("fund_amount", cfg.Platform.FundAmount))
	return r, nil
}

func (r *Runner) openStorage() error {
	if r.store != nil {
		return nil
	}
	if r.cfg.PostgresURL == "" {
		r.store = memory.NewStorage()
		return nil
	}
	store, err := postgres.NewStorage(r.cfg.PostgresURL, postgres.Options{Debug: r.cfg.DebugLogging}, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	if err := store.RunMigrations(); err != nil {
		store.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.store = store
	return nil
}

func (r *Runner) loadWallets() error {
	if r.wallets == nil {
		wallets, err := wallet.LoadWallets(r.cfg.WalletsFile)
		if err != nil {
			return fmt.Errorf("failed to load wallets: %w", err)
		}
		r.wallets = wallets
	}
	if admin, ok := r.wallets[AdminWallet]; ok {
		r.admin = admin
		return nil
	}
	admin, err := wallet.Generate(AdminWallet)
	if err != nil {
		return err
	}
	r.wallets[AdminWallet] = admin
	r.admin = admin
	return nil
}

// publish forwards every receipt to the event bus.
func (r *Runner) publish(_ context.Context, rc *ledger.Receipt) {
	typ := events.TxCommitted
	if rc.Status == ledger.StatusReverted {
		typ = events.TxReverted
	}
	err := r.bus.PublishTx(&events.TxEvent{
		BaseEvent: events.Base(typ, rc.StartedAt),
		TxID:      rc.TxID,
		Name:      rc.Name,
		Sender:    rc.Sender,
		Error:     rc.Err,
		Events:    rc.Events,
		Duration:  rc.Duration,
	})
	if err != nil && !errors.Is(err, events.ErrBusClosed) {
		r.logger.Debug("Receipt not published", zap.Uint64("tx_id", rc.TxID), zap.Error(err))
	}
}

func (r *Runner) onGraduated(_ context.Context, ev *events.LaunchEvent) error {
	r.logger.Info("🎓 Token graduated",
		zap.String("symbol", ev.Symbol),
		zap.String("token", ev.Token.String()),
		zap.String("pair", ev.Pair.String()),
		zap.String("asset_raised", types.FormatUnits(ev.AssetRaised)))
	return nil
}

// Platform returns the deployed platform.
func (r *Runner) Platform() *platform.Platform { return r.platform }

// Bus returns the bus receiving every transaction and its events.
func (r *Runner) Bus() *events.Bus { return r.bus }

// Metrics returns the collector fed by the ledger.
func (r *Runner) Metrics() *metrics.Collector { return r.metrics }

// Store returns the commit log.
func (r *Runner) Store() storage.Storage { return r.store }

// Run executes tasks: launches first in file order, then buys and sells on a
// bounded worker pool, then proposals. A failed task is recorded and does not
// stop the others.
func (r *Runner) Run(ctx context.Context, tasks []*task.Task) (*Summary, error) {
	var launches, trades, proposals []*task.Task
	for _, t := range tasks {
		switch t.Operation {
		case task.OperationLaunch:
			launches = append(launches, t)
		case task.OperationBuy, task.OperationSell:
			trades = append(trades, t)
		case task.OperationPropose:
			proposals = append(proposals, t)
		}
	}

	summary := &Summary{Tokens: make(map[string]types.Address)}
	var mu sync.Mutex
	record := func(ok bool) {
		mu.Lock()
		defer mu.Unlock()
		if ok {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	for _, t := range launches {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		record(r.runTask(ctx, t) == nil)
	}

	workers := r.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	r.logger.Info(fmt.Sprintf("🚀 Starting %d trade tasks with %d workers", len(trades), workers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, t := range trades {
		t := t
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			record(r.runTask(gctx, t) == nil)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	for _, t := range proposals {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		record(r.runTask(ctx, t) == nil)
	}

	r.mu.RLock()
	for symbol, l := range r.launched {
		summary.Tokens[symbol] = l.token
	}
	r.mu.RUnlock()

	snap := r.platform.Snapshot(time.Now().UTC())
	if err := platform.SaveSnapshot(ctx, r.store, snap); err != nil {
		r.logger.Warn("Failed to save snapshot", zap.Error(err))
	}
	summary.Snapshot = snap

	r.logger.Info("✅ All tasks finished",
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Uint64("height", snap.Height))
	return summary, nil
}

// resolveToken maps a launched symbol or a base58 address to a token.
func (r *Runner) resolveToken(ref string) (launch, error) {
	r.mu.RLock()
	l, ok := r.launched[ref]
	r.mu.RUnlock()
	if ok {
		return l, nil
	}
	addr, err := solana.PublicKeyFromBase58(ref)
	if err != nil {
		return launch{}, fmt.Errorf("unknown token %q", ref)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.launched {
		if l.token.Equals(addr) {
			return l, nil
		}
	}
	return launch{token: addr}, nil
}

// Close stops the bus and closes the storage.
func (r *Runner) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var errs []error
	if err := r.bus.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("event bus: %w", err))
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	return errors.Join(errs...)
}
