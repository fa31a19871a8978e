package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/launchpad/internal/storage"
	"github.com/rovshanmuradov/launchpad/internal/storage/models"
)

func TestReceiptsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	for i := uint64(1); i <= 5; i++ {
		sender := "alice"
		if i%2 == 0 {
			sender = "bob"
		}
		require.NoError(t, s.SaveReceipt(ctx, &models.Receipt{TxID: i, Sender: sender}))
	}
	assert.ErrorIs(t, s.SaveReceipt(ctx, &models.Receipt{TxID: 3}), storage.ErrDuplicate)

	all, err := s.ListReceipts(ctx, "", 2, 1)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, uint64(4), all[0].TxID)
	assert.Equal(t, uint64(3), all[1].TxID)

	alice, err := s.ListReceipts(ctx, "alice", 0, 0)
	require.NoError(t, err)
	require.Len(t, alice, 3)
	assert.Equal(t, uint64(5), alice[0].TxID)

	_, err = s.GetReceipt(ctx, 42)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLatestSnapshotWins(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.SavePositionSnapshot(ctx, &models.PositionSnapshot{Token: "T", Status: "bonding"}))
	require.NoError(t, s.SavePositionSnapshot(ctx, &models.PositionSnapshot{Token: "T", Status: "graduated"}))

	got, err := s.LatestPositionSnapshot(ctx, "T")
	require.NoError(t, err)
	assert.Equal(t, "graduated", got.Status)
	assert.NotZero(t, got.ID)
}

func TestStampKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	preset := &models.Receipt{TxID: 1, Sender: "alice"}
	preset.CreatedAt = at
	require.NoError(t, s.SaveReceipt(ctx, preset))
	fresh := &models.Receipt{TxID: 2, Sender: "alice"}
	require.NoError(t, s.SaveReceipt(ctx, fresh))

	assert.Equal(t, at, preset.CreatedAt)
	assert.False(t, fresh.CreatedAt.IsZero())
	assert.Equal(t, preset.ID+1, fresh.ID)
}
