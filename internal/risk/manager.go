package risk

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInvalidStrategy is returned for strategies never registered.
	ErrInvalidStrategy = errors.New("invalid strategy")
	// ErrStrategyInactive rejects admission against a deactivated strategy.
	ErrStrategyInactive = errors.New("strategy inactive")
	// ErrInvalidProduct is returned when a product has no weight in a strategy.
	ErrInvalidProduct = errors.New("invalid product")
	// ErrZeroWeight rejects zero-weight allocations.
	ErrZeroWeight = errors.New("zero weight")
)

// Strategy is a capital-allocation bucket spanning one or more products.
// Product weights apportion the strategy's capital; the strategy's own
// weight apportions global capital between strategies.
type Strategy struct {
	Name      string
	Weight    uint32
	Active    bool
	products  map[common.Address]uint32
	weightSum uint32
}

// ProductWeight returns the product's weight within the strategy.
func (s *Strategy) ProductWeight(product common.Address) (uint32, bool) {
	w, ok := s.products[product]
	return w, ok
}

// Manager apportions global coverable capital (from the data provider)
// across strategies and products, and derives the per-product and
// per-policy cover ceilings used to admission-control new policies.
//
// Ceilings are computed live on every query; changes in reported capital or
// weight reallocation affect subsequent admissions immediately but never
// retroactively invalidate issued policies.
type Manager struct {
	mu           sync.RWMutex
	provider     *DataProvider
	strategies   map[string]*Strategy
	totalWeight  uint32
	coverDivisor uint32
}

// NewManager wires a data provider into a risk manager. coverDivisor caps a
// single policy at maxCoverPerProduct/coverDivisor; a divisor of 0 defaults
// to 1 (no per-policy concentration limit beyond the product ceiling).
func NewManager(provider *DataProvider, coverDivisor uint32) *Manager {
	if coverDivisor == 0 {
		coverDivisor = 1
	}
	return &Manager{
		provider:     provider,
		strategies:   make(map[string]*Strategy),
		coverDivisor: coverDivisor,
	}
}

// AddStrategy registers an active strategy with the given global weight.
func (m *Manager) AddStrategy(name string, weight uint32) error {
	if name == "" {
		return ErrEmptyName
	}
	if weight == 0 {
		return ErrZeroWeight
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.strategies[name]; ok {
		m.totalWeight -= old.Weight
	}
	m.strategies[name] = &Strategy{
		Name:     name,
		Weight:   weight,
		Active:   true,
		products: make(map[common.Address]uint32),
	}
	m.totalWeight += weight
	return nil
}

// SetStrategyActive flips a strategy's activation flag. Inactive strategies
// reject all new and updated policies referencing them.
func (m *Manager) SetStrategyActive(name string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.strategies[name]
	if !ok {
		return ErrInvalidStrategy
	}
	s.Active = active
	return nil
}

// SetProductWeight assigns a product's weight within a strategy. A weight of
// zero removes the product.
func (m *Manager) SetProductWeight(strategy string, product common.Address, weight uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.strategies[strategy]
	if !ok {
		return ErrInvalidStrategy
	}
	if old, ok := s.products[product]; ok {
		s.weightSum -= old
		delete(s.products, product)
	}
	if weight > 0 {
		s.products[product] = weight
		s.weightSum += weight
	}
	return nil
}

// StrategyIsActive reports whether the strategy admits new policies.
func (m *Manager) StrategyIsActive(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.strategies[name]
	return ok && s.Active
}

// ProductWeight returns a product's weight within a strategy.
func (m *Manager) ProductWeight(strategy string, product common.Address) (uint32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.strategies[strategy]
	if !ok {
		return 0, ErrInvalidStrategy
	}
	w, ok := s.products[product]
	if !ok {
		return 0, ErrInvalidProduct
	}
	return w, nil
}

// MaxCoverPerProduct returns the ceiling on total active cover the product
// may carry under the strategy:
//
//	maxCover * strategyWeight/totalWeight * productWeight/strategyWeightSum
//
// computed with floor division at each step.
func (m *Manager) MaxCoverPerProduct(strategy string, product common.Address) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxCoverPerProductLocked(strategy, product)
}

func (m *Manager) maxCoverPerProductLocked(strategy string, product common.Address) (*big.Int, error) {
	s, ok := m.strategies[strategy]
	if !ok {
		return nil, ErrInvalidStrategy
	}
	if !s.Active {
		return nil, ErrStrategyInactive
	}
	w, ok := s.products[product]
	if !ok {
		return nil, ErrInvalidProduct
	}
	if m.totalWeight == 0 || s.weightSum == 0 {
		return big.NewInt(0), nil
	}
	ceiling := m.provider.MaxCover()
	ceiling.Mul(ceiling, new(big.Int).SetUint64(uint64(s.Weight)))
	ceiling.Quo(ceiling, new(big.Int).SetUint64(uint64(m.totalWeight)))
	ceiling.Mul(ceiling, new(big.Int).SetUint64(uint64(w)))
	ceiling.Quo(ceiling, new(big.Int).SetUint64(uint64(s.weightSum)))
	return ceiling, nil
}

// MaxCoverPerPolicy returns the per-policy concentration limit for the
// product under the strategy.
func (m *Manager) MaxCoverPerPolicy(strategy string, product common.Address) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	perProduct, err := m.maxCoverPerProductLocked(strategy, product)
	if err != nil {
		return nil, err
	}
	return perProduct.Quo(perProduct, new(big.Int).SetUint64(uint64(m.coverDivisor))), nil
}

// StrategyNames lists registered strategies.
func (m *Manager) StrategyNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.strategies))
	for name := range m.strategies {
		names = append(names, name)
	}
	return names
}
