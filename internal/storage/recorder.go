// internal/storage/recorder.go
package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/apperr"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/storage/models"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

// RecorderOptions tunes write retries.
type RecorderOptions struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxElapsedTime  time.Duration
}

type pairInfo struct {
	tokenA, tokenB types.Address
	bonding        bool
}

// Recorder is a ledger commit hook that writes receipts, trades and pair
// reserves to a Storage. Write failures are retried, then logged; they never
// affect the transaction that produced them.
type Recorder struct {
	store  Storage
	opts   RecorderOptions
	logger *zap.Logger

	mu       sync.Mutex
	pairs    map[types.Address]pairInfo
	failures atomic.Uint64
}

var _ ledger.CommitHook = (*Recorder)(nil)

func NewRecorder(store Storage, opts RecorderOptions, logger *zap.Logger) *Recorder {
	if opts.MaxTries == 0 {
		opts.MaxTries = 3
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 50 * time.Millisecond
	}
	if opts.MaxElapsedTime <= 0 {
		opts.MaxElapsedTime = 5 * time.Second
	}
	return &Recorder{
		store:  store,
		opts:   opts,
		logger: logger.Named("recorder"),
		pairs:  make(map[types.Address]pairInfo),
	}
}

// Failures returns how many writes were given up on.
func (r *Recorder) Failures() uint64 { return r.failures.Load() }

// OnReceipt implements ledger.CommitHook.
func (r *Recorder) OnReceipt(ctx context.Context, rc *ledger.Receipt) {
	// a cancelled caller must not lose the record of a committed transaction
	ctx = context.WithoutCancel(ctx)

	r.write(ctx, "receipt", rc.TxID, func(ctx context.Context) error {
		err := r.store.SaveReceipt(ctx, ReceiptModel(rc))
		if errors.Is(err, ErrDuplicate) {
			return backoff.Permanent(err)
		}
		return err
	})
	if rc.Status != ledger.StatusCommitted {
		return
	}

	if trades := TradeModels(rc); len(trades) > 0 {
		r.write(ctx, "trades", rc.TxID, func(ctx context.Context) error {
			return r.store.SaveTrades(ctx, trades)
		})
	}
	for _, snap := range r.pairSnapshots(rc) {
		snap := snap
		r.write(ctx, "pair_snapshot", rc.TxID, func(ctx context.Context) error {
			return r.store.SavePairSnapshot(ctx, snap)
		})
	}
}

func (r *Recorder) write(ctx context.Context, what string, txID uint64, fn func(context.Context) error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.opts.InitialInterval
	policy.MaxInterval = r.opts.InitialInterval * 10

	notify := func(err error, d time.Duration) {
		r.logger.Warn("Storage write failed, retrying",
			zap.String("record", what),
			zap.Uint64("tx_id", txID),
			zap.Duration("backoff", d),
			zap.Error(err))
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, fn(ctx)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(r.opts.MaxTries),
		backoff.WithMaxElapsedTime(r.opts.MaxElapsedTime),
		backoff.WithNotify(notify))
	if err != nil {
		r.failures.Add(1)
		r.logger.Error("Storage write abandoned",
			zap.String("record", what),
			zap.Uint64("tx_id", txID),
			zap.Error(err))
	}
}

// pairSnapshots tracks pair legs from creation events and turns reserve
// updates into snapshots.
func (r *Recorder) pairSnapshots(rc *ledger.Receipt) []*models.PairSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	latest := make(map[types.Address]*models.PairSnapshot)
	var order []types.Address
	for _, ev := range rc.Events {
		switch e := ev.(type) {
		case *events.PairEvent:
			r.pairs[e.Pair] = pairInfo{tokenA: e.TokenA, tokenB: e.TokenB, bonding: e.IsBonding}
		case *events.ReservesEvent:
			info := r.pairs[e.Pair]
			if _, seen := latest[e.Pair]; !seen {
				order = append(order, e.Pair)
			}
			latest[e.Pair] = &models.PairSnapshot{
				Pair:       e.Pair.String(),
				TokenA:     info.tokenA.String(),
				TokenB:     info.tokenB.String(),
				ReserveA:   amountString(e.ReserveA),
				ReserveB:   amountString(e.ReserveB),
				KLast:      product(e.ReserveA, e.ReserveB),
				IsBonding:  info.bonding,
				TxID:       rc.TxID,
				LastUpdate: e.Timestamp(),
			}
		}
	}
	out := make([]*models.PairSnapshot, 0, len(order))
	for _, p := range order {
		out = append(out, latest[p])
	}
	return out
}

// ReceiptModel converts a ledger receipt into its stored form.
func ReceiptModel(rc *ledger.Receipt) *models.Receipt {
	m := &models.Receipt{
		TxID:          rc.TxID,
		Name:          rc.Name,
		Sender:        rc.Sender.String(),
		Status:        string(rc.Status),
		EventCount:    len(rc.Events),
		StartedAt:     rc.StartedAt,
		ExecutionTime: float64(rc.Duration.Microseconds()) / 1000,
	}
	if rc.Err != nil {
		m.ErrorKind = apperr.KindOf(rc.Err).String()
		m.ErrorMessage = rc.Err.Error()
	}
	return m
}

// TradeModels extracts router and curve trades from a receipt.
func TradeModels(rc *ledger.Receipt) []*models.Trade {
	var out []*models.Trade
	for _, ev := range rc.Events {
		e, ok := ev.(*events.TradeEvent)
		if !ok {
			continue
		}
		venue := models.VenuePair
		if e.Type() == events.CurveTraded {
			venue = models.VenueCurve
		}
		out = append(out, &models.Trade{
			TxID:      rc.TxID,
			Venue:     venue,
			Token:     e.Token.String(),
			Trader:    e.Trader.String(),
			Recipient: e.Recipient.String(),
			IsBuy:     e.IsBuy,
			AmountIn:  amountString(e.AmountIn),
			AmountOut: amountString(e.AmountOut),
			Tax:       amountString(e.Tax),
			Price:     e.Price,
			BlockTime: e.Timestamp(),
		})
	}
	return out
}
