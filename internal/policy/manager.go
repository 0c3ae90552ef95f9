package policy

import (
	"errors"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"coverline/internal/ledger"
)

var (
	// ErrNonexistentPolicy is returned for lookups of unknown or burned IDs.
	ErrNonexistentPolicy = errors.New("query for nonexistent policy")
	// ErrNotOwner rejects transfers by anyone but the current holder.
	ErrNotOwner = errors.New("!policyholder")
	// ErrNotProduct rejects mint/burn/update calls from unregistered products.
	ErrNotProduct = errors.New("!product")
	// ErrZeroAddress rejects the zero address as a policyholder.
	ErrZeroAddress = errors.New("zero address")
)

// Manager is the ownership registry of live policies. IDs are a monotonic
// sequence and are never recycled after a burn. Only registered products may
// mint, mutate, or burn records; anyone may read.
type Manager struct {
	mu       sync.RWMutex
	policies map[uint64]*Policy
	balances map[common.Address]uint64
	products map[common.Address]bool
	nextID   uint64
	minted   uint64
}

// NewManager constructs an empty registry. The first minted policy gets ID 1.
func NewManager() *Manager {
	return &Manager{
		policies: make(map[uint64]*Policy),
		balances: make(map[common.Address]uint64),
		products: make(map[common.Address]bool),
		nextID:   1,
	}
}

// AddProduct authorizes a product to manage policies it issues.
func (m *Manager) AddProduct(product common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[product] = true
}

// RemoveProduct revokes a product's authorization.
func (m *Manager) RemoveProduct(product common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.products, product)
}

// ProductIsRegistered reports whether a product may manage policies.
func (m *Manager) ProductIsRegistered(product common.Address) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.products[product]
}

// Mint records a new policy and returns its ID. The caller product must be
// registered and the holder must be a real address.
func (m *Manager) Mint(product common.Address, p *Policy) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.products[product] {
		return 0, ErrNotProduct
	}
	if p.Owner == (common.Address{}) {
		return 0, ErrZeroAddress
	}
	id := m.nextID
	m.nextID++
	m.minted++

	stored := p.Clone()
	stored.ID = id
	stored.Product = product
	m.policies[id] = stored
	m.balances[stored.Owner]++
	return id, nil
}

// Burn removes a policy from the registry. Only the issuing product may burn.
func (m *Manager) Burn(product common.Address, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.policies[id]
	if !ok {
		return ErrNonexistentPolicy
	}
	if !m.products[product] || p.Product != product {
		return ErrNotProduct
	}
	m.removeLocked(p)
	return nil
}

func (m *Manager) removeLocked(p *Policy) {
	delete(m.policies, p.ID)
	if m.balances[p.Owner] <= 1 {
		delete(m.balances, p.Owner)
	} else {
		m.balances[p.Owner]--
	}
}

// Update overwrites a policy's mutable fields (cover amount, price,
// expiration). Only the issuing product may update.
func (m *Manager) Update(product common.Address, id uint64, coverAmount *big.Int, price uint64, expirationBlock uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.policies[id]
	if !ok {
		return ErrNonexistentPolicy
	}
	if !m.products[product] || p.Product != product {
		return ErrNotProduct
	}
	p.CoverAmount = ledger.Clone(coverAmount)
	p.Price = price
	p.ExpirationBlock = expirationBlock
	return nil
}

// Transfer re-parents a policy to a new holder. Cover amount and expiration
// are untouched; only the current owner may transfer.
func (m *Manager) Transfer(caller common.Address, id uint64, to common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.policies[id]
	if !ok {
		return ErrNonexistentPolicy
	}
	if p.Owner != caller {
		return ErrNotOwner
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if m.balances[p.Owner] <= 1 {
		delete(m.balances, p.Owner)
	} else {
		m.balances[p.Owner]--
	}
	p.Owner = to
	m.balances[to]++
	return nil
}

// Exists reports whether a policy is live.
func (m *Manager) Exists(id uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.policies[id]
	return ok
}

// OwnerOf returns the current holder of a policy.
func (m *Manager) OwnerOf(id uint64) (common.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.policies[id]
	if !ok {
		return common.Address{}, ErrNonexistentPolicy
	}
	return p.Owner, nil
}

// PolicyInfo returns the full policy record.
func (m *Manager) PolicyInfo(id uint64) (*Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.policies[id]
	if !ok {
		return nil, ErrNonexistentPolicy
	}
	return p.Clone(), nil
}

// CoverAmount returns the policy's insured value.
func (m *Manager) CoverAmount(id uint64) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.policies[id]
	if !ok {
		return nil, ErrNonexistentPolicy
	}
	return ledger.Clone(p.CoverAmount), nil
}

// Price returns the premium rate the policy was last charged at.
func (m *Manager) Price(id uint64) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.policies[id]
	if !ok {
		return 0, ErrNonexistentPolicy
	}
	return p.Price, nil
}

// ExpirationBlock returns the absolute block at which the policy lapses.
func (m *Manager) ExpirationBlock(id uint64) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.policies[id]
	if !ok {
		return 0, ErrNonexistentPolicy
	}
	return p.ExpirationBlock, nil
}

// TotalPolicyCount returns the number of policies ever minted, including
// burned ones; it equals the highest assigned ID.
func (m *Manager) TotalPolicyCount() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.minted
}

// TotalSupply returns the number of currently live policies.
func (m *Manager) TotalSupply() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.policies))
}

// BalanceOf returns the number of live policies held by an address.
func (m *Manager) BalanceOf(owner common.Address) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[owner]
}

// ListExpired returns IDs of policies lapsed at the given height, ascending.
// Expired records are inert but remain readable until swept.
func (m *Manager) ListExpired(block uint64) []uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []uint64
	for id, p := range m.policies {
		if p.Expired(block) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
