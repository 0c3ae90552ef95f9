package risk

import (
	"errors"
	"math/big"
	"sort"
	"sync"

	"coverline/internal/ledger"
)

var (
	// ErrEmptyName rejects unnamed underwriting pools.
	ErrEmptyName = errors.New("empty name")
	// ErrUnknownPool is returned when removing or reading a pool never reported.
	ErrUnknownPool = errors.New("unknown underwriting pool")
)

// DataProvider aggregates capital reported by named underwriting pools into
// the single maxCover figure consumed by the risk manager. Pool balances are
// reported in wei.
type DataProvider struct {
	mu    sync.RWMutex
	pools map[string]*big.Int
}

// NewDataProvider constructs an empty provider.
func NewDataProvider() *DataProvider {
	return &DataProvider{pools: make(map[string]*big.Int)}
}

// Set records or updates a pool's reported balance.
func (p *DataProvider) Set(name string, amount *big.Int) error {
	if name == "" {
		return ErrEmptyName
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pools[name] = ledger.Clone(amount)
	return nil
}

// Remove drops a pool from the aggregate.
func (p *DataProvider) Remove(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.pools[name]; !ok {
		return ErrUnknownPool
	}
	delete(p.pools, name)
	return nil
}

// Balance returns a single pool's reported balance.
func (p *DataProvider) Balance(name string) (*big.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	amount, ok := p.pools[name]
	if !ok {
		return nil, ErrUnknownPool
	}
	return ledger.Clone(amount), nil
}

// MaxCover returns the total coverable capital across all pools.
func (p *DataProvider) MaxCover() *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	total := big.NewInt(0)
	for _, amount := range p.pools {
		total.Add(total, amount)
	}
	return total
}

// PoolNames lists reported pools in lexical order.
func (p *DataProvider) PoolNames() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.pools))
	for name := range p.pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
