// internal/storage/storage.go
package storage

import (
	"context"
	"errors"

	"github.com/rovshanmuradov/launchpad/internal/storage/models"
)

var (
	// ErrNotFound is returned by lookups that matched nothing.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a receipt for the same transaction was already saved.
	ErrDuplicate = errors.New("duplicate record")
)

// Storage is the commit log of the launchpad.
type Storage interface {
	// Квитанции транзакций
	SaveReceipt(ctx context.Context, r *models.Receipt) error
	GetReceipt(ctx context.Context, txID uint64) (*models.Receipt, error)
	ListReceipts(ctx context.Context, sender string, limit, offset int) ([]*models.Receipt, error)

	// Сделки
	SaveTrades(ctx context.Context, trades []*models.Trade) error
	ListTrades(ctx context.Context, token string, limit int) ([]*models.Trade, error)

	// Снимки пар и позиций
	SavePairSnapshot(ctx context.Context, s *models.PairSnapshot) error
	LatestPairSnapshot(ctx context.Context, pair string) (*models.PairSnapshot, error)
	SavePositionSnapshot(ctx context.Context, s *models.PositionSnapshot) error
	LatestPositionSnapshot(ctx context.Context, token string) (*models.PositionSnapshot, error)

	// Задачи
	SaveTaskHistory(ctx context.Context, history *models.TaskHistory) error
	GetTaskStats(ctx context.Context, taskName string) (*models.TaskHistory, error)

	RunMigrations() error
	Close() error
}
