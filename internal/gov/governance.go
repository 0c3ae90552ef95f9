package gov

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrNotGovernance rejects callers outside the governance role.
	ErrNotGovernance = errors.New("!governance")
	// ErrNotPendingGovernance rejects acceptance by anyone but the nominee.
	ErrNotPendingGovernance = errors.New("!pending governance")
	// ErrZeroAddress rejects the zero address as a governance nominee.
	ErrZeroAddress = errors.New("zero address governance")
)

// Governance implements the two-step pending/accept ownership transfer
// pattern shared by every governed component.
type Governance struct {
	mu      sync.RWMutex
	current common.Address
	pending common.Address
}

// New constructs a governance handle held by the given address.
func New(governor common.Address) *Governance {
	return &Governance{current: governor}
}

// Current returns the active governance address.
func (g *Governance) Current() common.Address {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.current
}

// Pending returns the nominated successor, if any.
func (g *Governance) Pending() common.Address {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.pending
}

// Require returns ErrNotGovernance unless the caller holds governance.
func (g *Governance) Require(caller common.Address) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if caller != g.current {
		return ErrNotGovernance
	}
	return nil
}

// SetPending nominates a successor. Only current governance may nominate.
func (g *Governance) SetPending(caller, nominee common.Address) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if caller != g.current {
		return ErrNotGovernance
	}
	if nominee == (common.Address{}) {
		return ErrZeroAddress
	}
	g.pending = nominee
	return nil
}

// Accept completes the transfer. Only the nominated address may accept.
func (g *Governance) Accept(caller common.Address) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == (common.Address{}) || caller != g.pending {
		return ErrNotPendingGovernance
	}
	g.current = g.pending
	g.pending = common.Address{}
	return nil
}
