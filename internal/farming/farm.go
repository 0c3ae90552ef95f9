package farming

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"coverline/internal/ledger"
)

var (
	// ErrNotController rejects reward routing from outside the controller.
	ErrNotController = errors.New("!controller")
	// ErrInsufficientStake rejects withdrawals above the staked amount.
	ErrInsufficientStake = errors.New("insufficient stake")
	// ErrUnknownFarm is returned for farm names never registered.
	ErrUnknownFarm = errors.New("unknown farm")
)

// Farm accrues time-weighted rewards to stakers: a classic
// reward-per-share accumulator scaled by 1e12. Rewards are not paid by the
// farm itself; the controller converts accrued rewards into options.
type Farm struct {
	mu sync.Mutex

	rewardPerSecond *big.Int
	startTime       int64
	endTime         int64

	lastRewardTime    int64
	accRewardPerShare *big.Int
	totalStaked       *big.Int

	stakes      map[common.Address]*big.Int
	rewardDebts map[common.Address]*big.Int

	clock ledger.Clock
}

var accScale = big.NewInt(1_000_000_000_000)

// NewFarm constructs a farm emitting rewardPerSecond between start and end.
func NewFarm(rewardPerSecond *big.Int, startTime, endTime int64, clock ledger.Clock) *Farm {
	return &Farm{
		rewardPerSecond:   ledger.Clone(rewardPerSecond),
		startTime:         startTime,
		endTime:           endTime,
		lastRewardTime:    startTime,
		accRewardPerShare: big.NewInt(0),
		totalStaked:       big.NewInt(0),
		stakes:            make(map[common.Address]*big.Int),
		rewardDebts:       make(map[common.Address]*big.Int),
		clock:             clock,
	}
}

func (f *Farm) updateLocked() {
	now := f.clock.Timestamp()
	if now > f.endTime {
		now = f.endTime
	}
	if now <= f.lastRewardTime {
		return
	}
	if f.totalStaked.Sign() == 0 {
		f.lastRewardTime = now
		return
	}
	elapsed := big.NewInt(now - f.lastRewardTime)
	reward := new(big.Int).Mul(elapsed, f.rewardPerSecond)
	reward.Mul(reward, accScale)
	reward.Quo(reward, f.totalStaked)
	f.accRewardPerShare.Add(f.accRewardPerShare, reward)
	f.lastRewardTime = now
}

func (f *Farm) pendingLocked(user common.Address) *big.Int {
	stake, ok := f.stakes[user]
	if !ok {
		return big.NewInt(0)
	}
	accrued := new(big.Int).Mul(stake, f.accRewardPerShare)
	accrued.Quo(accrued, accScale)
	debt := f.rewardDebts[user]
	if debt != nil {
		accrued.Sub(accrued, debt)
	}
	if accrued.Sign() < 0 {
		return big.NewInt(0)
	}
	return accrued
}

func (f *Farm) settleDebtLocked(user common.Address) {
	stake := f.stakes[user]
	if stake == nil {
		delete(f.rewardDebts, user)
		return
	}
	debt := new(big.Int).Mul(stake, f.accRewardPerShare)
	debt.Quo(debt, accScale)
	f.rewardDebts[user] = debt
}

// Deposit stakes an amount for the user and harvests pending rewards.
// Returns the harvested reward.
func (f *Farm) Deposit(user common.Address, amount *big.Int) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateLocked()
	pending := f.pendingLocked(user)

	stake, ok := f.stakes[user]
	if !ok {
		stake = big.NewInt(0)
		f.stakes[user] = stake
	}
	stake.Add(stake, amount)
	f.totalStaked.Add(f.totalStaked, amount)
	f.settleDebtLocked(user)
	return pending
}

// Withdraw unstakes an amount and harvests pending rewards. Returns the
// harvested reward.
func (f *Farm) Withdraw(user common.Address, amount *big.Int) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stake, ok := f.stakes[user]
	if !ok || stake.Cmp(amount) < 0 {
		return nil, ErrInsufficientStake
	}
	f.updateLocked()
	pending := f.pendingLocked(user)

	stake.Sub(stake, amount)
	if stake.Sign() == 0 {
		delete(f.stakes, user)
	}
	f.totalStaked.Sub(f.totalStaked, amount)
	f.settleDebtLocked(user)
	return pending, nil
}

// PendingRewards returns the user's accrued, unharvested reward.
func (f *Farm) PendingRewards(user common.Address) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateLocked()
	return f.pendingLocked(user)
}

// StakeOf returns the user's staked amount.
func (f *Farm) StakeOf(user common.Address) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stake, ok := f.stakes[user]; ok {
		return ledger.Clone(stake)
	}
	return big.NewInt(0)
}
