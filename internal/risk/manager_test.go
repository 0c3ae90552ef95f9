package risk

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	productA = common.HexToAddress("0x0a")
	productB = common.HexToAddress("0x0b")
)

func newTestManager(t *testing.T, maxCover int64, coverDivisor uint32) (*Manager, *DataProvider) {
	t.Helper()
	provider := NewDataProvider()
	require.NoError(t, provider.Set("pool", big.NewInt(maxCover)))
	return NewManager(provider, coverDivisor), provider
}

func TestProviderAggregatesPools(t *testing.T) {
	provider := NewDataProvider()
	require.NoError(t, provider.Set("aave", big.NewInt(600)))
	require.NoError(t, provider.Set("compound", big.NewInt(400)))
	require.EqualValues(t, 1000, provider.MaxCover().Int64())
	require.Equal(t, []string{"aave", "compound"}, provider.PoolNames())

	require.NoError(t, provider.Remove("aave"))
	require.EqualValues(t, 400, provider.MaxCover().Int64())
	require.ErrorIs(t, provider.Remove("aave"), ErrUnknownPool)
	require.ErrorIs(t, provider.Set("", big.NewInt(1)), ErrEmptyName)
}

func TestMaxCoverPerProductApportionsByWeight(t *testing.T) {
	m, _ := newTestManager(t, 10_000, 10)
	require.NoError(t, m.AddStrategy("conservative", 3))
	require.NoError(t, m.AddStrategy("aggressive", 1))
	require.NoError(t, m.SetProductWeight("conservative", productA, 2))
	require.NoError(t, m.SetProductWeight("conservative", productB, 1))

	// 10000 * 3/4 = 7500, then * 2/3 = 5000 for product A.
	got, err := m.MaxCoverPerProduct("conservative", productA)
	require.NoError(t, err)
	require.EqualValues(t, 5000, got.Int64())

	got, err = m.MaxCoverPerProduct("conservative", productB)
	require.NoError(t, err)
	require.EqualValues(t, 2500, got.Int64())

	perPolicy, err := m.MaxCoverPerPolicy("conservative", productA)
	require.NoError(t, err)
	require.EqualValues(t, 500, perPolicy.Int64())
}

func TestMaxCoverFloorsEachStep(t *testing.T) {
	m, _ := newTestManager(t, 1001, 1)
	require.NoError(t, m.AddStrategy("a", 1))
	require.NoError(t, m.AddStrategy("b", 2))
	require.NoError(t, m.SetProductWeight("a", productA, 1))
	require.NoError(t, m.SetProductWeight("a", productB, 2))

	// 1001 * 1/3 floors to 333, then * 1/3 floors to 111.
	got, err := m.MaxCoverPerProduct("a", productA)
	require.NoError(t, err)
	require.EqualValues(t, 111, got.Int64())
}

func TestQueriesAreLive(t *testing.T) {
	m, provider := newTestManager(t, 1000, 1)
	require.NoError(t, m.AddStrategy("only", 1))
	require.NoError(t, m.SetProductWeight("only", productA, 1))

	before, err := m.MaxCoverPerProduct("only", productA)
	require.NoError(t, err)
	require.EqualValues(t, 1000, before.Int64())

	// Capital changes are visible on the next query, uncached.
	require.NoError(t, provider.Set("pool", big.NewInt(250)))
	after, err := m.MaxCoverPerProduct("only", productA)
	require.NoError(t, err)
	require.EqualValues(t, 250, after.Int64())
}

func TestInactiveStrategyRejectsQueries(t *testing.T) {
	m, _ := newTestManager(t, 1000, 1)
	require.NoError(t, m.AddStrategy("only", 1))
	require.NoError(t, m.SetProductWeight("only", productA, 1))
	require.NoError(t, m.SetStrategyActive("only", false))

	_, err := m.MaxCoverPerProduct("only", productA)
	require.ErrorIs(t, err, ErrStrategyInactive)
	require.False(t, m.StrategyIsActive("only"))
}

func TestUnknownStrategyAndProduct(t *testing.T) {
	m, _ := newTestManager(t, 1000, 1)
	_, err := m.MaxCoverPerProduct("ghost", productA)
	require.ErrorIs(t, err, ErrInvalidStrategy)

	require.NoError(t, m.AddStrategy("only", 1))
	_, err = m.MaxCoverPerProduct("only", productA)
	require.ErrorIs(t, err, ErrInvalidProduct)
}

func TestZeroWeightRemovesProduct(t *testing.T) {
	m, _ := newTestManager(t, 1000, 1)
	require.NoError(t, m.AddStrategy("only", 1))
	require.NoError(t, m.SetProductWeight("only", productA, 1))
	require.NoError(t, m.SetProductWeight("only", productA, 0))

	_, err := m.MaxCoverPerProduct("only", productA)
	require.ErrorIs(t, err, ErrInvalidProduct)
}

func TestAddStrategyRejectsZeroWeight(t *testing.T) {
	m, _ := newTestManager(t, 1000, 1)
	require.ErrorIs(t, m.AddStrategy("only", 0), ErrZeroWeight)
	require.ErrorIs(t, m.AddStrategy("", 1), ErrEmptyName)
}
