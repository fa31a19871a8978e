package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/launchpad/internal/events"
)

func TestExecuteCommitsState(t *testing.T) {
	l := New(zaptest.NewLogger(t))
	balances := NewMap[string, int]()
	total := NewValue(0)

	r, err := l.Execute(context.Background(), "credit", solana.PublicKey{}, func(tx *Tx) error {
		balances.Set(tx, "alice", 10)
		total.Set(tx, 10)
		tx.Emit(events.Base(events.TokenMinted, tx.Time()))
		return nil
	})
	require.NoError(t, err)

	v, ok := balances.Get("alice")
	assert.True(t, ok)
	assert.Equal(t, 10, v)
	assert.Equal(t, 10, total.Get())
	assert.Equal(t, StatusCommitted, r.Status)
	assert.Len(t, r.Events, 1)
	assert.Equal(t, uint64(1), r.TxID)
}

func TestExecuteRevertsEveryWrite(t *testing.T) {
	l := New(zaptest.NewLogger(t))
	balances := NewMap[string, int]()
	balances.Seed("alice", 5)
	total := NewValue(5)
	boom := errors.New("boom")

	r, err := l.Execute(context.Background(), "broken", solana.PublicKey{}, func(tx *Tx) error {
		balances.Set(tx, "alice", 1)
		balances.Set(tx, "alice", 2)
		balances.Set(tx, "bob", 3)
		balances.Delete(tx, "alice")
		total.Set(tx, 99)
		tx.Emit(events.Base(events.TokenMinted, tx.Time()))
		return boom
	})
	require.ErrorIs(t, err, boom)

	v, ok := balances.Get("alice")
	assert.True(t, ok)
	assert.Equal(t, 5, v)
	assert.False(t, balances.Has("bob"))
	assert.Equal(t, 5, total.Get())
	assert.Equal(t, StatusReverted, r.Status)
	assert.Empty(t, r.Events)
}

func TestExecuteRecoversPanics(t *testing.T) {
	l := New(zaptest.NewLogger(t))
	total := NewValue(1)

	_, err := l.Execute(context.Background(), "panics", solana.PublicKey{}, func(tx *Tx) error {
		total.Set(tx, 2)
		panic("unexpected")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.Equal(t, 1, total.Get())
}

func TestExecuteRejectsCancelledContext(t *testing.T) {
	l := New(zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := l.Execute(ctx, "late", solana.PublicKey{}, func(tx *Tx) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Equal(t, uint64(0), l.Height())
}

func TestHooksSeeReceiptsInOrder(t *testing.T) {
	var mu sync.Mutex
	var seen []uint64
	hook := CommitHookFunc(func(_ context.Context, r *Receipt) {
		mu.Lock()
		seen = append(seen, r.TxID)
		mu.Unlock()
	})

	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(zaptest.NewLogger(t), WithCommitHook(hook), WithClock(func() time.Time { return fixed }))
	counter := NewValue(0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Execute(context.Background(), "inc", solana.PublicKey{}, func(tx *Tx) error {
				assert.Equal(t, fixed, tx.Time())
				counter.Set(tx, counter.Get()+1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter.Get())
	require.Len(t, seen, 50)
	for i, id := range seen {
		assert.Equal(t, uint64(i+1), id)
	}
}

func TestSlowHookDoesNotBlockState(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	var seen []uint64
	hook := CommitHookFunc(func(_ context.Context, r *Receipt) {
		if r.TxID == 1 {
			<-release
		}
		mu.Lock()
		seen = append(seen, r.TxID)
		mu.Unlock()
	})
	l := New(zaptest.NewLogger(t), WithCommitHook(hook))
	value := NewValue(0)

	var wg sync.WaitGroup
	set := func(v int) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Execute(context.Background(), "set", solana.PublicKey{}, func(tx *Tx) error {
				value.Set(tx, v)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	read := func() (v int) {
		l.View(func() { v = value.Get() })
		return v
	}

	set(1)
	require.Eventually(t, func() bool { return read() == 1 }, time.Second, time.Millisecond)
	set(2)
	// the second transaction commits while the first is still in its hook
	require.Eventually(t, func() bool { return read() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, uint64(2), l.Height())

	mu.Lock()
	assert.Empty(t, seen)
	mu.Unlock()

	close(release)
	wg.Wait()
	assert.Equal(t, []uint64{1, 2}, seen)
}
