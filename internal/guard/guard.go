// Package guard provides the reentrancy guard used by asset-moving entry points.
//
// Each externally reachable entry point acquires its contract's guard exactly
// once. Internal helpers shared by several entry points never touch the guard
// and rely on the caller holding it.
package guard

import "github.com/rovshanmuradov/launchpad/internal/apperr"

// Guard is a non-reentrant critical section. Transactions are serialized by the
// ledger, so a plain flag is enough.
type Guard struct {
	contract string
	entered  bool
}

// New creates an open guard for contract.
func New(contract string) *Guard {
	return &Guard{contract: contract}
}

// Enter acquires the guard for op. A second Enter before release fails with InvalidState.
func (g *Guard) Enter(op string) (release func(), err error) {
	if g.entered {
		return nil, apperr.InvalidState(g.contract+"."+op, "reentrant call rejected")
	}
	g.entered = true
	return func() { g.entered = false }, nil
}

// Entered reports whether the guard is held.
func (g *Guard) Entered() bool {
	return g.entered
}
