package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// OwedLedger records amounts owed to beneficiaries that could not be paid
// immediately, either because the paying pool lacked liquidity or because
// the recipient's transfer failed. Owed balances are settled opportunistically
// through idempotent pull calls.
//
// The ledger is not internally synchronized; the owning component holds the
// lock around mutations.
type OwedLedger struct {
	owed map[common.Address]*big.Int
}

// NewOwedLedger constructs an empty owed ledger.
func NewOwedLedger() *OwedLedger {
	return &OwedLedger{owed: make(map[common.Address]*big.Int)}
}

// Credit increases the amount owed to a beneficiary.
func (l *OwedLedger) Credit(to common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	cur, ok := l.owed[to]
	if !ok {
		l.owed[to] = Clone(amount)
		return
	}
	cur.Add(cur, amount)
}

// Owed returns the outstanding amount owed to a beneficiary.
func (l *OwedLedger) Owed(to common.Address) *big.Int {
	if cur, ok := l.owed[to]; ok {
		return Clone(cur)
	}
	return big.NewInt(0)
}

// TotalOwed sums all outstanding balances.
func (l *OwedLedger) TotalOwed() *big.Int {
	total := big.NewInt(0)
	for _, v := range l.owed {
		total.Add(total, v)
	}
	return total
}

// Beneficiaries lists every address with a nonzero outstanding balance.
func (l *OwedLedger) Beneficiaries() []common.Address {
	out := make([]common.Address, 0, len(l.owed))
	for addr, v := range l.owed {
		if v.Sign() > 0 {
			out = append(out, addr)
		}
	}
	return out
}

// Settle attempts to pay down the balance owed to a beneficiary. The pay
// function receives the amount to transfer and reports how much of it was
// actually delivered; the remainder stays on the ledger. Settle is a no-op
// when nothing is owed, so repeated calls are safe.
func (l *OwedLedger) Settle(to common.Address, pay func(amount *big.Int) (*big.Int, error)) (*big.Int, error) {
	cur, ok := l.owed[to]
	if !ok || cur.Sign() == 0 {
		return big.NewInt(0), nil
	}
	paid, err := pay(Clone(cur))
	if err != nil {
		return big.NewInt(0), err
	}
	if paid == nil {
		paid = big.NewInt(0)
	}
	if paid.Cmp(cur) >= 0 {
		delete(l.owed, to)
		return Clone(cur), nil
	}
	cur.Sub(cur, paid)
	return Clone(paid), nil
}
