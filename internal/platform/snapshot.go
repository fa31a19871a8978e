package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/rovshanmuradov/launchpad/internal/storage"
	"github.com/rovshanmuradov/launchpad/internal/storage/models"
)

// Snapshot is the state of every pair and curve position at one height.
type Snapshot struct {
	Height    uint64
	Pairs     []*models.PairSnapshot
	Positions []*models.PositionSnapshot
}

// Snapshot reads all pairs and positions between transactions.
func (p *Platform) Snapshot(at time.Time) *Snapshot {
	snap := &Snapshot{}
	p.Ledger.View(func() {
		for _, addr := range p.Factory.AllPairs() {
			pr, err := p.Factory.PairAt(addr)
			if err != nil {
				continue
			}
			a, b := pr.Legs()
			ra, rb := pr.Reserves()
			snap.Pairs = append(snap.Pairs, &models.PairSnapshot{
				Pair:       addr.String(),
				TokenA:     a.String(),
				TokenB:     b.String(),
				ReserveA:   ra.String(),
				ReserveB:   rb.String(),
				KLast:      pr.KLast().String(),
				IsBonding:  pr.IsBonding(),
				LastUpdate: at,
			})
		}
		for _, pos := range p.Bonding.Positions() {
			snap.Positions = append(snap.Positions, &models.PositionSnapshot{
				Token:        pos.Token.String(),
				Pair:         pos.Pair.String(),
				Creator:      pos.Creator.String(),
				Symbol:       pos.Info.Symbol,
				Status:       pos.Status.String(),
				AssetRaised:  pos.AssetRaised.String(),
				TokenReserve: pos.TokenReserve.String(),
				ProgressBps:  pos.ProgressBps(),
				Price:        pos.Price(),
				Trades:       pos.Trades,
				LastUpdate:   at,
			})
		}
	})
	snap.Height = p.Ledger.Height()
	for _, s := range snap.Pairs {
		s.TxID = snap.Height
	}
	return snap
}

// SaveSnapshot writes snap to store.
func SaveSnapshot(ctx context.Context, store storage.Storage, snap *Snapshot) error {
	for _, s := range snap.Pairs {
		if err := store.SavePairSnapshot(ctx, s); err != nil {
			return fmt.Errorf("failed to save pair %s: %w", s.Pair, err)
		}
	}
	for _, s := range snap.Positions {
		if err := store.SavePositionSnapshot(ctx, s); err != nil {
			return fmt.Errorf("failed to save position %s: %w", s.Token, err)
		}
	}
	return nil
}
