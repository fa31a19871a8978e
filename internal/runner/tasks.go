// internal/runner/tasks.go
package runner

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/bonding"
	"github.com/rovshanmuradov/launchpad/internal/dex/router"
	"github.com/rovshanmuradov/launchpad/internal/governance/service"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/storage/models"
	"github.com/rovshanmuradov/launchpad/internal/task"
	"github.com/rovshanmuradov/launchpad/internal/types"
	"github.com/rovshanmuradov/launchpad/internal/wallet"
)

// runTask executes t.Repeat times in order and stores its history. It
// returns the last error.
func (r *Runner) runTask(ctx context.Context, t *task.Task) error {
	logger := r.logger.With(
		zap.String("task", t.TaskName),
		zap.String("operation", string(t.Operation)),
		zap.String("wallet", t.WalletName))

	started := time.Now()
	history := &models.TaskHistory{
		TaskName:  t.TaskName,
		Operation: string(t.Operation),
		StartedAt: &started,
	}

	repeat := t.Repeat
	if repeat <= 0 || t.Operation == task.OperationLaunch {
		repeat = 1
	}

	var lastErr error
	volume := new(big.Int)
	for i := 0; i < repeat; i++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		spent, err := r.execute(ctx, t)
		r.metrics.RecordTask(ctx, string(t.Operation), err == nil)
		if err != nil {
			logger.Warn("Task failed", zap.Int("attempt", i+1), zap.Error(err))
			history.ErrorCount++
			lastErr = err
			continue
		}
		history.SuccessCount++
		if spent != nil {
			volume.Add(volume, spent)
		}
	}

	completed := time.Now()
	history.CompletedAt = &completed
	history.TotalVolume = types.ToFloat(volume)
	if runs := history.SuccessCount + history.ErrorCount; runs > 0 {
		history.AverageExecutionTime = completed.Sub(started).Seconds() / float64(runs)
	}
	history.Status = "success"
	if lastErr != nil {
		history.Status = "failed"
	}
	if err := r.store.SaveTaskHistory(context.WithoutCancel(ctx), history); err != nil {
		logger.Warn("Failed to save task history", zap.Error(err))
	}

	if lastErr == nil {
		logger.Info("Task completed", zap.Int("runs", history.SuccessCount))
	}
	return lastErr
}

// execute performs one run of t and returns the input amount it moved.
func (r *Runner) execute(ctx context.Context, t *task.Task) (*big.Int, error) {
	w, ok := r.wallets[t.WalletName]
	if !ok {
		return nil, fmt.Errorf("wallet %s not found", t.WalletName)
	}

	switch t.Operation {
	case task.OperationLaunch:
		return r.launch(ctx, w, t)
	case task.OperationBuy, task.OperationSell:
		return r.trade(ctx, w, t)
	case task.OperationPropose:
		return nil, r.propose(ctx, w, t)
	default:
		return nil, fmt.Errorf("unsupported operation: %s", t.Operation)
	}
}

func (r *Runner) launch(ctx context.Context, w *wallet.Wallet, t *task.Task) (*big.Int, error) {
	amount, err := t.AmountUnits()
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	_, taken := r.launched[t.Symbol]
	r.mu.RUnlock()
	if taken {
		return nil, fmt.Errorf("symbol %s already launched by this run", t.Symbol)
	}

	p := r.platform
	var tokenAddr types.Address
	_, err = p.Ledger.Execute(ctx, "launch", w.Address(), func(tx *ledger.Tx) error {
		tokenAddr, err = p.Bonding.Launch(tx, w.Address(), bonding.LaunchParams{
			Name:        t.Name,
			Symbol:      t.Symbol,
			Cores:       t.Cores,
			Description: t.Description,
		}, amount)
		return err
	})
	if err != nil {
		return nil, err
	}

	// every wallet may trade the new token through the router and the curve
	_, err = p.Ledger.Execute(ctx, "approveLaunched", r.admin.Address(), func(tx *ledger.Tx) error {
		tok, err := p.Tokens.Get(tokenAddr)
		if err != nil {
			return err
		}
		for _, other := range r.wallets {
			if err := p.ApproveAll(tx, other.Address(), tok); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to approve launched token: %w", err)
	}

	virtualID, err := p.RegisterAgent(ctx, r.admin.Address(), w.Address(), tokenAddr, t.Cores)
	if err != nil {
		return nil, fmt.Errorf("failed to register agent: %w", err)
	}

	r.mu.Lock()
	r.launched[t.Symbol] = launch{token: tokenAddr, virtualID: virtualID}
	r.mu.Unlock()

	r.logger.Info("🚀 Token launched",
		zap.String("symbol", t.Symbol),
		zap.String("token", tokenAddr.String()),
		zap.Uint64("virtual_id", virtualID))
	return amount, nil
}

// trade buys or sells on the curve while the token is bonding and through the
// router once it graduated.
func (r *Runner) trade(ctx context.Context, w *wallet.Wallet, t *task.Task) (*big.Int, error) {
	l, err := r.resolveToken(t.Token)
	if err != nil {
		return nil, err
	}
	amount, err := t.AmountUnits()
	if err != nil {
		return nil, err
	}
	isBuy := t.Operation == task.OperationBuy
	p := r.platform

	var onCurve bool
	var rt *router.Router
	var quote *big.Int
	var quoteErr error
	p.Ledger.View(func() {
		pos, err := p.Bonding.Position(l.token)
		onCurve = err == nil && pos.Status == bonding.StatusBonding
		if onCurve {
			quote, quoteErr = p.Bonding.Quote(l.token, amount, isBuy)
			return
		}
		if rt, quoteErr = p.RouterFor(l.token); quoteErr == nil {
			quote, quoteErr = rt.Quote(l.token, amount, isBuy)
		}
	})
	if quoteErr != nil {
		return nil, quoteErr
	}
	minOut := t.MinOut(quote)

	trader := w.Address()
	var out *big.Int
	_, err = p.Ledger.Execute(ctx, string(t.Operation), trader, func(tx *ledger.Tx) error {
		var err error
		switch {
		case onCurve && isBuy:
			out, err = p.Bonding.Buy(tx, trader, l.token, amount, minOut)
		case onCurve:
			out, err = p.Bonding.Sell(tx, trader, l.token, amount, minOut)
		case isBuy:
			out, err = rt.Buy(tx, trader, amount, l.token, trader, minOut)
		default:
			out, err = rt.Sell(tx, trader, amount, l.token, trader, minOut)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	venue := "router"
	if onCurve {
		venue = "curve"
	}
	r.logger.Debug("Trade executed",
		zap.String("venue", venue),
		zap.String("token", l.token.String()),
		zap.String("amount_in", types.FormatUnits(amount)),
		zap.String("amount_out", types.FormatUnits(out)))
	return amount, nil
}

// propose files a contribution for a launched agent and executes it as the
// agent DAO, which mints the matching service.
func (r *Runner) propose(ctx context.Context, w *wallet.Wallet, t *task.Task) error {
	l, err := r.resolveToken(t.Token)
	if err != nil {
		return err
	}
	if l.virtualID == 0 {
		return fmt.Errorf("token %s has no registered agent", t.Token)
	}
	p := r.platform

	var proposalID types.Hash
	_, err = p.Ledger.Execute(ctx, "propose", w.Address(), func(tx *ledger.Tx) error {
		proposalID, err = p.Services.Propose(tx, w.Address(), l.virtualID, t.Description, t.Cores[0])
		return err
	})
	if err != nil {
		return err
	}

	var serviceID types.Hash
	_, err = p.Ledger.Execute(ctx, "executeProposal", r.admin.Address(), func(tx *ledger.Tx) error {
		serviceID, err = p.Services.Execute(tx, r.admin.Address(), proposalID)
		return err
	})
	if err != nil {
		return err
	}

	var svc service.Service
	p.Ledger.View(func() {
		svc, err = p.Services.Service(serviceID)
	})
	if err != nil {
		return err
	}
	r.logger.Info("Service minted",
		zap.Uint64("virtual_id", l.virtualID),
		zap.Uint8("core", svc.Core),
		zap.String("owner", svc.Owner.String()))
	return nil
}
