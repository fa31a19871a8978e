package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/types"
	"go.uber.org/zap"
)

// Status is the outcome of a transaction.
type Status string

const (
	StatusCommitted Status = "committed"
	StatusReverted  Status = "reverted"
)

// Receipt describes a finished transaction.
type Receipt struct {
	TxID      uint64
	Name      string
	Sender    types.Address
	Status    Status
	Err       error
	Events    []events.Event
	StartedAt time.Time
	Duration  time.Duration
}

// CommitHook observes finished transactions. Hooks run after the ledger lock
// is released, in transaction order, and cannot undo the outcome. A hook must
// not call back into the ledger.
type CommitHook interface {
	OnReceipt(ctx context.Context, r *Receipt)
}

// CommitHookFunc adapts a function to CommitHook.
type CommitHookFunc func(ctx context.Context, r *Receipt)

// OnReceipt calls f(ctx, r).
func (f CommitHookFunc) OnReceipt(ctx context.Context, r *Receipt) { f(ctx, r) }

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used for transaction timestamps.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) { l.clock = clock }
}

// WithCommitHook appends a hook that sees every receipt.
func WithCommitHook(h CommitHook) Option {
	return func(l *Ledger) { l.hooks = append(l.hooks, h) }
}

// Ledger serializes transactions over the shared platform state.
type Ledger struct {
	mu     sync.RWMutex
	nextID uint64
	clock  func() time.Time
	hooks  []CommitHook
	logger *zap.Logger

	// hookNext is the id of the next receipt handed to the hooks.
	hookMu   sync.Mutex
	hookCond *sync.Cond
	hookNext uint64
}

// New creates a ledger.
func New(logger *zap.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		clock:    func() time.Time { return time.Now().UTC() },
		logger:   logger.Named("ledger"),
		hookNext: 1,
	}
	l.hookCond = sync.NewCond(&l.hookMu)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Execute runs fn as one atomic transaction submitted by sender.
// fn must not call Execute itself.
func (l *Ledger) Execute(ctx context.Context, name string, sender types.Address, fn func(tx *Tx) error) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("transaction %s not started: %w", name, err)
	}

	l.mu.Lock()
	l.nextID++
	tx := &Tx{
		ctx:    ctx,
		id:     l.nextID,
		name:   name,
		sender: sender,
		time:   l.clock(),
	}
	tx.logger = l.logger.With(zap.Uint64("tx_id", tx.id), zap.String("tx", name))

	err := run(tx, fn)
	receipt := &Receipt{
		TxID:      tx.id,
		Name:      name,
		Sender:    sender,
		StartedAt: tx.time,
		Duration:  time.Since(tx.time),
	}
	if err != nil {
		tx.revert()
		receipt.Status = StatusReverted
		receipt.Err = err
		tx.logger.Debug("Transaction reverted", zap.Error(err))
	} else {
		receipt.Status = StatusCommitted
		receipt.Events = tx.events
		tx.logger.Debug("Transaction committed", zap.Int("events", len(tx.events)))
	}
	l.mu.Unlock()

	l.dispatch(ctx, receipt)
	return receipt, err
}

// dispatch waits until every earlier receipt went through the hooks, then
// runs them for r. The state lock is not held, so slow hooks delay only the
// callers waiting for their own receipts.
func (l *Ledger) dispatch(ctx context.Context, r *Receipt) {
	l.hookMu.Lock()
	for l.hookNext != r.TxID {
		l.hookCond.Wait()
	}
	l.hookMu.Unlock()

	defer func() {
		l.hookMu.Lock()
		l.hookNext++
		l.hookCond.Broadcast()
		l.hookMu.Unlock()
	}()
	for _, h := range l.hooks {
		h.OnReceipt(ctx, r)
	}
}

// View runs fn with shared access to the state, excluding running transactions.
func (l *Ledger) View(fn func()) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fn()
}

// Height returns the id of the last transaction started.
func (l *Ledger) Height() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nextID
}

func run(tx *Tx, fn func(tx *Tx) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transaction %s panicked: %v", tx.name, r)
		}
	}()
	return fn(tx)
}
