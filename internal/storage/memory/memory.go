// Package memory is an in-process Storage used when no database is configured.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/rovshanmuradov/launchpad/internal/storage"
	"github.com/rovshanmuradov/launchpad/internal/storage/models"
)

type memoryStorage struct {
	mu        sync.RWMutex
	nextID    uint
	receipts  []*models.Receipt
	byTx      map[uint64]*models.Receipt
	trades    []*models.Trade
	pairs     map[string]*models.PairSnapshot
	positions map[string]*models.PositionSnapshot
	tasks     map[string]*models.TaskHistory
}

var _ storage.Storage = (*memoryStorage)(nil)

// NewStorage returns an empty store.
func NewStorage() storage.Storage {
	return &memoryStorage{
		byTx:      make(map[uint64]*models.Receipt),
		pairs:     make(map[string]*models.PairSnapshot),
		positions: make(map[string]*models.PositionSnapshot),
		tasks:     make(map[string]*models.TaskHistory),
	}
}

func (m *memoryStorage) RunMigrations() error { return nil }
func (m *memoryStorage) Close() error         { return nil }

// stamp fills BaseModel the way the database defaults would. m.mu must be held.
func (m *memoryStorage) stamp(b *models.BaseModel) {
	m.nextID++
	b.ID = m.nextID
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
}

func (m *memoryStorage) SaveReceipt(_ context.Context, r *models.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byTx[r.TxID]; ok {
		return storage.ErrDuplicate
	}
	m.stamp(&r.BaseModel)
	cp := *r
	m.receipts = append(m.receipts, &cp)
	m.byTx[r.TxID] = &cp
	return nil
}

func (m *memoryStorage) GetReceipt(_ context.Context, txID uint64) (*models.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.byTx[txID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memoryStorage) ListReceipts(_ context.Context, sender string, limit, offset int) ([]*models.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Receipt
	for i := len(m.receipts) - 1; i >= 0; i-- {
		r := m.receipts[i]
		if sender != "" && r.Sender != sender {
			continue
		}
		if offset > 0 {
			offset--
			continue
		}
		cp := *r
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memoryStorage) SaveTrades(_ context.Context, trades []*models.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range trades {
		m.stamp(&t.BaseModel)
		cp := *t
		m.trades = append(m.trades, &cp)
	}
	return nil
}

func (m *memoryStorage) ListTrades(_ context.Context, token string, limit int) ([]*models.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Trade
	for i := len(m.trades) - 1; i >= 0; i-- {
		if m.trades[i].Token != token {
			continue
		}
		cp := *m.trades[i]
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memoryStorage) SavePairSnapshot(_ context.Context, s *models.PairSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stamp(&s.BaseModel)
	cp := *s
	m.pairs[s.Pair] = &cp
	return nil
}

func (m *memoryStorage) LatestPairSnapshot(_ context.Context, pair string) (*models.PairSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.pairs[pair]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memoryStorage) SavePositionSnapshot(_ context.Context, s *models.PositionSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stamp(&s.BaseModel)
	cp := *s
	m.positions[s.Token] = &cp
	return nil
}

func (m *memoryStorage) LatestPositionSnapshot(_ context.Context, token string) (*models.PositionSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.positions[token]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memoryStorage) SaveTaskHistory(_ context.Context, history *models.TaskHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stamp(&history.BaseModel)
	cp := *history
	m.tasks[history.TaskName] = &cp
	return nil
}

func (m *memoryStorage) GetTaskStats(_ context.Context, taskName string) (*models.TaskHistory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.tasks[taskName]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *h
	return &cp, nil
}
