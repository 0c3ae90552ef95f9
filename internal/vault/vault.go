package vault

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"coverline/internal/ledger"
)

var (
	// ErrNilBank indicates the vault was constructed without a bank.
	ErrNilBank = errors.New("vault: bank not configured")
)

// Bank moves funds out of the vault to an external recipient. A transfer
// error means the recipient did not receive the funds; the vault then parks
// them as an owed balance instead of failing the caller's operation.
type Bank interface {
	Transfer(ctx context.Context, to common.Address, amount *big.Int) error
}

// Vault is the capital pool. Premiums flow in; refunds and claim payouts
// flow out, always after internal bookkeeping is final. Payouts that cannot
// complete, whether from vault illiquidity or a failing recipient, accumulate
// on a shared owed ledger and are retried through Settle.
type Vault struct {
	mu      sync.Mutex
	balance *big.Int
	bank    Bank
	owed    *ledger.OwedLedger
	logger  zerolog.Logger
}

// New constructs an empty vault around the given bank.
func New(bank Bank, logger zerolog.Logger) *Vault {
	return &Vault{
		balance: big.NewInt(0),
		bank:    bank,
		owed:    ledger.NewOwedLedger(),
		logger:  logger.With().Str("component", "vault").Logger(),
	}
}

// Deposit credits incoming funds (premiums, capital contributions).
func (v *Vault) Deposit(amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.balance.Add(v.balance, amount)
}

// Balance returns the vault's liquid funds.
func (v *Vault) Balance() *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return ledger.Clone(v.balance)
}

// Owed returns the outstanding amount owed to a beneficiary.
func (v *Vault) Owed(to common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.owed.Owed(to)
}

// TotalOwed returns the sum of all parked balances.
func (v *Vault) TotalOwed() *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.owed.TotalOwed()
}

// Payout sends funds to a recipient, best effort. The liquid portion is
// transferred through the bank; any shortfall, or the full amount on a
// failed transfer, is parked as owed. Returns the amount actually delivered.
// Internal bookkeeping is final before the bank call, so a hostile recipient
// can only delay its own funds.
func (v *Vault) Payout(ctx context.Context, to common.Address, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.bank == nil {
		return nil, ErrNilBank
	}

	liquid := ledger.Min(v.balance, amount)
	shortfall := new(big.Int).Sub(amount, liquid)
	if shortfall.Sign() > 0 {
		v.owed.Credit(to, shortfall)
		v.logger.Warn().
			Str("recipient", to.Hex()).
			Str("shortfall_wei", shortfall.String()).
			Msg("payout exceeds liquid funds; remainder parked as owed")
	}
	if liquid.Sign() == 0 {
		return big.NewInt(0), nil
	}

	v.balance.Sub(v.balance, liquid)
	if err := v.bank.Transfer(ctx, to, liquid); err != nil {
		// Funds stay inside the vault, earmarked for the recipient.
		v.balance.Add(v.balance, liquid)
		v.owed.Credit(to, liquid)
		v.logger.Warn().Err(err).
			Str("recipient", to.Hex()).
			Str("amount_wei", liquid.String()).
			Msg("transfer failed; funds held for later retrieval")
		return big.NewInt(0), nil
	}
	return liquid, nil
}

// Settle retries delivery of a beneficiary's owed balance. Idempotent; a
// beneficiary with nothing owed gets a zero result.
func (v *Vault) Settle(ctx context.Context, to common.Address) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.bank == nil {
		return nil, ErrNilBank
	}
	return v.owed.Settle(to, func(amount *big.Int) (*big.Int, error) {
		liquid := ledger.Min(v.balance, amount)
		if liquid.Sign() == 0 {
			return big.NewInt(0), nil
		}
		v.balance.Sub(v.balance, liquid)
		if err := v.bank.Transfer(ctx, to, liquid); err != nil {
			v.balance.Add(v.balance, liquid)
			return big.NewInt(0), nil
		}
		return liquid, nil
	})
}

// SettleAll retries every parked balance once. Returns the total delivered.
func (v *Vault) SettleAll(ctx context.Context) (*big.Int, error) {
	v.mu.Lock()
	beneficiaries := v.owed.Beneficiaries()
	v.mu.Unlock()

	total := big.NewInt(0)
	for _, to := range beneficiaries {
		paid, err := v.Settle(ctx, to)
		if err != nil {
			return total, err
		}
		total.Add(total, paid)
	}
	return total, nil
}
