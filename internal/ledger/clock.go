package ledger

import "sync"

// Clock supplies the ledger's own notion of time. All temporal gating
// (expiration, deadlines, cooldowns) is evaluated against this clock at
// call time, never against wall-clock at call construction.
type Clock interface {
	// BlockNumber returns the current block height.
	BlockNumber() uint64
	// Timestamp returns the current unix timestamp in seconds.
	Timestamp() int64
}

// ManualClock is a Clock whose block height and timestamp are set
// explicitly. The engine advances it from an external head source in
// service mode; tests advance it directly.
type ManualClock struct {
	mu    sync.RWMutex
	block uint64
	ts    int64
}

// NewManualClock constructs a clock at the given height and timestamp.
func NewManualClock(block uint64, ts int64) *ManualClock {
	return &ManualClock{block: block, ts: ts}
}

// BlockNumber returns the current block height.
func (c *ManualClock) BlockNumber() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.block
}

// Timestamp returns the current unix timestamp.
func (c *ManualClock) Timestamp() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ts
}

// Set moves the clock to an absolute height and timestamp. Heights never
// move backwards; stale updates are ignored.
func (c *ManualClock) Set(block uint64, ts int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if block > c.block {
		c.block = block
	}
	if ts > c.ts {
		c.ts = ts
	}
}

// AdvanceBlocks moves the clock forward by n blocks.
func (c *ManualClock) AdvanceBlocks(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.block += n
}

// AdvanceTime moves the clock forward by the given number of seconds.
func (c *ManualClock) AdvanceTime(seconds int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ts += seconds
}

var _ Clock = (*ManualClock)(nil)
