package ledger

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestOwedLedgerCreditAccumulates(t *testing.T) {
	l := NewOwedLedger()
	to := common.HexToAddress("0x01")

	l.Credit(to, big.NewInt(100))
	l.Credit(to, big.NewInt(50))
	l.Credit(to, nil)
	l.Credit(to, big.NewInt(0))

	require.EqualValues(t, 150, l.Owed(to).Int64())
	require.EqualValues(t, 150, l.TotalOwed().Int64())
	require.Len(t, l.Beneficiaries(), 1)
}

func TestOwedLedgerSettleFull(t *testing.T) {
	l := NewOwedLedger()
	to := common.HexToAddress("0x02")
	l.Credit(to, big.NewInt(70))

	paid, err := l.Settle(to, func(amount *big.Int) (*big.Int, error) {
		return Clone(amount), nil
	})
	require.NoError(t, err)
	require.EqualValues(t, 70, paid.Int64())
	require.Zero(t, l.Owed(to).Sign())

	// Nothing left: a second settle is a zero-value no-op.
	paid, err = l.Settle(to, func(*big.Int) (*big.Int, error) {
		t.Fatal("pay func called with nothing owed")
		return nil, nil
	})
	require.NoError(t, err)
	require.Zero(t, paid.Sign())
}

func TestOwedLedgerSettlePartial(t *testing.T) {
	l := NewOwedLedger()
	to := common.HexToAddress("0x03")
	l.Credit(to, big.NewInt(100))

	paid, err := l.Settle(to, func(*big.Int) (*big.Int, error) {
		return big.NewInt(40), nil
	})
	require.NoError(t, err)
	require.EqualValues(t, 40, paid.Int64())
	require.EqualValues(t, 60, l.Owed(to).Int64())
}

func TestOwedLedgerSettleErrorKeepsBalance(t *testing.T) {
	l := NewOwedLedger()
	to := common.HexToAddress("0x04")
	l.Credit(to, big.NewInt(100))

	boom := errors.New("transfer refused")
	_, err := l.Settle(to, func(*big.Int) (*big.Int, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	require.EqualValues(t, 100, l.Owed(to).Int64())
}
