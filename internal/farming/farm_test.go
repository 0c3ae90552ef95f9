package farming

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"coverline/internal/ledger"
)

var (
	alice = common.HexToAddress("0xa1")
	bob   = common.HexToAddress("0xb2")
)

func TestFarmAccruesProRata(t *testing.T) {
	clock := ledger.NewManualClock(1, 0)
	farm := NewFarm(big.NewInt(100), 0, 100_000, clock)

	require.Zero(t, farm.Deposit(alice, big.NewInt(1000)).Sign())
	clock.AdvanceTime(10)
	require.EqualValues(t, 1000, farm.PendingRewards(alice).Int64())

	// Bob joins: accrual so far stays with Alice, new emission splits evenly.
	require.Zero(t, farm.Deposit(bob, big.NewInt(1000)).Sign())
	clock.AdvanceTime(10)
	require.EqualValues(t, 1500, farm.PendingRewards(alice).Int64())
	require.EqualValues(t, 500, farm.PendingRewards(bob).Int64())
}

func TestFarmDepositHarvestsPending(t *testing.T) {
	clock := ledger.NewManualClock(1, 0)
	farm := NewFarm(big.NewInt(100), 0, 100_000, clock)

	farm.Deposit(alice, big.NewInt(1000))
	clock.AdvanceTime(10)

	harvested := farm.Deposit(alice, big.NewInt(1000))
	require.EqualValues(t, 1000, harvested.Int64())
	require.Zero(t, farm.PendingRewards(alice).Sign())
	require.EqualValues(t, 2000, farm.StakeOf(alice).Int64())
}

func TestFarmWithdraw(t *testing.T) {
	clock := ledger.NewManualClock(1, 0)
	farm := NewFarm(big.NewInt(100), 0, 100_000, clock)

	farm.Deposit(alice, big.NewInt(1000))
	clock.AdvanceTime(10)

	_, err := farm.Withdraw(alice, big.NewInt(1001))
	require.ErrorIs(t, err, ErrInsufficientStake)
	_, err = farm.Withdraw(bob, big.NewInt(1))
	require.ErrorIs(t, err, ErrInsufficientStake)

	harvested, err := farm.Withdraw(alice, big.NewInt(1000))
	require.NoError(t, err)
	require.EqualValues(t, 1000, harvested.Int64())
	require.Zero(t, farm.StakeOf(alice).Sign())
	require.Zero(t, farm.PendingRewards(alice).Sign())
}

func TestFarmStopsAtEndTime(t *testing.T) {
	clock := ledger.NewManualClock(1, 0)
	farm := NewFarm(big.NewInt(100), 0, 10, clock)

	farm.Deposit(alice, big.NewInt(1000))
	clock.AdvanceTime(10)
	require.EqualValues(t, 1000, farm.PendingRewards(alice).Int64())

	// Past the emission window nothing more accrues.
	clock.AdvanceTime(1000)
	require.EqualValues(t, 1000, farm.PendingRewards(alice).Int64())
}

func TestFarmBeforeStartEmitsNothing(t *testing.T) {
	clock := ledger.NewManualClock(1, 0)
	farm := NewFarm(big.NewInt(100), 50, 100_000, clock)

	farm.Deposit(alice, big.NewInt(1000))
	clock.AdvanceTime(40)
	require.Zero(t, farm.PendingRewards(alice).Sign())

	clock.AdvanceTime(20)
	require.EqualValues(t, 1000, farm.PendingRewards(alice).Int64())
}
