package vault

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"coverline/internal/ledger"
)

// MemoryBank is an in-process Bank crediting recipient balances in a plain
// account table. It backs local deployments, simulations, and tests.
type MemoryBank struct {
	mu       sync.Mutex
	accounts map[common.Address]*big.Int
}

// NewMemoryBank constructs an empty in-memory bank.
func NewMemoryBank() *MemoryBank {
	return &MemoryBank{accounts: make(map[common.Address]*big.Int)}
}

// Transfer credits the recipient's account.
func (b *MemoryBank) Transfer(_ context.Context, to common.Address, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.accounts[to]
	if !ok {
		b.accounts[to] = ledger.Clone(amount)
		return nil
	}
	cur.Add(cur, amount)
	return nil
}

// BalanceOf returns the credited balance of an account.
func (b *MemoryBank) BalanceOf(addr common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.accounts[addr]; ok {
		return ledger.Clone(cur)
	}
	return big.NewInt(0)
}

var _ Bank = (*MemoryBank)(nil)
