package claims

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"coverline/internal/ledger"
	"coverline/internal/vault"
)

var (
	productAddr = common.HexToAddress("0x0c")
	stranger = common.HexToAddress("0xff")
)

func newTestEscrow(t *testing.T, cooldown int64, funding int64) (*Escrow, *vault.Vault, *vault.MemoryBank, *ledger.ManualClock) {
	t.Helper()
	bank := vault.NewMemoryBank()
	v := vault.New(bank, zerolog.Nop())
	if funding > 0 {
		v.Deposit(big.NewInt(funding))
	}
	clock := ledger.NewManualClock(100, 10_000)
	e := NewEscrow(cooldown, v, clock, zerolog.Nop())
	e.AddProduct(productAddr)
	return e, v, bank, clock
}

func TestReceiveClaimRequiresRegisteredProduct(t *testing.T) {
	e, _, _, _ := newTestEscrow(t, 3600, 0)
	err := e.ReceiveClaim(common.HexToAddress("0x0d"), 1, common.HexToAddress("0x10"), big.NewInt(100))
	require.ErrorIs(t, err, ErrNotProduct)
}

func TestWithdrawGatedByCooldown(t *testing.T) {
	claimant := common.HexToAddress("0x10")
	e, _, bank, clock := newTestEscrow(t, 3600, 5_000_000_000)
	require.NoError(t, e.ReceiveClaim(productAddr, 1, claimant, big.NewInt(5_000_000_000)))

	// One second short of the cooldown still rejects.
	clock.AdvanceTime(3599)
	_, err := e.WithdrawClaimsPayout(context.Background(), claimant, 1)
	require.ErrorIs(t, err, ErrCooldownNotElapsed)

	clock.AdvanceTime(1)
	paid, err := e.WithdrawClaimsPayout(context.Background(), claimant, 1)
	require.NoError(t, err)
	require.EqualValues(t, 5_000_000_000, paid.Int64())
	require.EqualValues(t, 5_000_000_000, bank.BalanceOf(claimant).Int64())
}

func TestWithdrawOnlyByClaimant(t *testing.T) {
	claimant := common.HexToAddress("0x10")
	e, _, _, clock := newTestEscrow(t, 10, 1000)
	require.NoError(t, e.ReceiveClaim(productAddr, 1, claimant, big.NewInt(100)))
	clock.AdvanceTime(10)

	_, err := e.WithdrawClaimsPayout(context.Background(), stranger, 1)
	require.ErrorIs(t, err, ErrNotClaimant)
}

func TestWithdrawCannotReplay(t *testing.T) {
	claimant := common.HexToAddress("0x10")
	e, _, _, clock := newTestEscrow(t, 10, 1000)
	require.NoError(t, e.ReceiveClaim(productAddr, 1, claimant, big.NewInt(100)))
	clock.AdvanceTime(10)

	_, err := e.WithdrawClaimsPayout(context.Background(), claimant, 1)
	require.NoError(t, err)
	_, err = e.WithdrawClaimsPayout(context.Background(), claimant, 1)
	require.ErrorIs(t, err, ErrNonexistentClaim)
	require.False(t, e.Exists(1))
}

func TestWithdrawShortfallSurvivesOnOwedLedger(t *testing.T) {
	claimant := common.HexToAddress("0x10")
	e, v, bank, clock := newTestEscrow(t, 10, 300)
	require.NoError(t, e.ReceiveClaim(productAddr, 1, claimant, big.NewInt(1000)))
	clock.AdvanceTime(10)

	paid, err := e.WithdrawClaimsPayout(context.Background(), claimant, 1)
	require.NoError(t, err)
	require.EqualValues(t, 300, paid.Int64())
	require.EqualValues(t, 700, v.Owed(claimant).Int64())

	// The claim record is gone, but the remainder settles once funded.
	v.Deposit(big.NewInt(700))
	settled, err := v.Settle(context.Background(), claimant)
	require.NoError(t, err)
	require.EqualValues(t, 700, settled.Int64())
	require.EqualValues(t, 1000, bank.BalanceOf(claimant).Int64())
}

func TestTotalLiabilityAndPendingIDs(t *testing.T) {
	e, _, _, _ := newTestEscrow(t, 10, 0)
	require.NoError(t, e.ReceiveClaim(productAddr, 3, common.HexToAddress("0x10"), big.NewInt(100)))
	require.NoError(t, e.ReceiveClaim(productAddr, 1, common.HexToAddress("0x11"), big.NewInt(250)))

	require.EqualValues(t, 350, e.TotalLiability().Int64())
	require.Equal(t, []uint64{1, 3}, e.PendingPolicyIDs())

	info, err := e.ClaimInfo(3)
	require.NoError(t, err)
	require.EqualValues(t, 100, info.Amount.Int64())

	_, err = e.ClaimInfo(9)
	require.ErrorIs(t, err, ErrNonexistentClaim)
}
