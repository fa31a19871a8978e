// Package ledger is the deterministic execution substrate every contract runs on.
//
// Transactions are applied one at a time. Each state write records an undo
// step on the running Tx; a failing transaction replays them in reverse so no
// partial mutation is ever visible.
package ledger

import (
	"context"
	"time"

	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/types"
	"go.uber.org/zap"
)

// Tx is a running transaction. It is only valid inside the function passed to Execute.
type Tx struct {
	ctx    context.Context
	id     uint64
	name   string
	sender types.Address
	time   time.Time
	logger *zap.Logger

	undo   []func()
	events []events.Event
}

// Context returns the context the transaction was submitted with.
func (tx *Tx) Context() context.Context { return tx.ctx }

// ID returns the sequence number of the transaction.
func (tx *Tx) ID() uint64 { return tx.id }

// Name returns the operation name the transaction was submitted under.
func (tx *Tx) Name() string { return tx.name }

// Sender returns the account that submitted the transaction.
func (tx *Tx) Sender() types.Address { return tx.sender }

// Time returns the ledger time of the transaction. It is constant for the whole tx.
func (tx *Tx) Time() time.Time { return tx.time }

// Logger returns a logger annotated with the transaction id.
func (tx *Tx) Logger() *zap.Logger { return tx.logger }

// OnRevert registers fn to run if the transaction fails.
func (tx *Tx) OnRevert(fn func()) {
	tx.undo = append(tx.undo, fn)
}

// Emit buffers an event. Events of reverted transactions are discarded.
func (tx *Tx) Emit(ev events.Event) {
	tx.events = append(tx.events, ev)
}

// Events returns the events emitted so far.
func (tx *Tx) Events() []events.Event {
	out := make([]events.Event, len(tx.events))
	copy(out, tx.events)
	return out
}

func (tx *Tx) revert() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
	tx.events = nil
}
