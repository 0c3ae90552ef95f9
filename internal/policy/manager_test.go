package policy

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	productA = common.HexToAddress("0x0a")
	productB = common.HexToAddress("0x0b")
	holder   = common.HexToAddress("0x10")
	other    = common.HexToAddress("0x20")
)

func newTestManager() *Manager {
	m := NewManager()
	m.AddProduct(productA)
	return m
}

func mintOne(t *testing.T, m *Manager, owner common.Address, expiration uint64) uint64 {
	t.Helper()
	id, err := m.Mint(productA, &Policy{
		Owner:           owner,
		Strategy:        "base",
		CoverAmount:     big.NewInt(1000),
		Price:           10_000,
		ExpirationBlock: expiration,
	})
	require.NoError(t, err)
	return id
}

func TestMintAssignsSequentialIDs(t *testing.T) {
	m := newTestManager()
	first := mintOne(t, m, holder, 100)
	second := mintOne(t, m, holder, 200)
	require.EqualValues(t, 1, first)
	require.EqualValues(t, 2, second)
	require.EqualValues(t, 2, m.TotalPolicyCount())
	require.EqualValues(t, 2, m.TotalSupply())
	require.EqualValues(t, 2, m.BalanceOf(holder))
}

func TestIDsAreNeverRecycled(t *testing.T) {
	m := newTestManager()
	first := mintOne(t, m, holder, 100)
	require.NoError(t, m.Burn(productA, first))

	next := mintOne(t, m, holder, 100)
	require.EqualValues(t, first+1, next)

	// Minted count keeps burned policies; supply does not.
	require.EqualValues(t, 2, m.TotalPolicyCount())
	require.EqualValues(t, 1, m.TotalSupply())
}

func TestMintRequiresRegisteredProduct(t *testing.T) {
	m := newTestManager()
	_, err := m.Mint(productB, &Policy{Owner: holder, CoverAmount: big.NewInt(1)})
	require.ErrorIs(t, err, ErrNotProduct)
}

func TestMintRejectsZeroOwner(t *testing.T) {
	m := newTestManager()
	_, err := m.Mint(productA, &Policy{CoverAmount: big.NewInt(1)})
	require.ErrorIs(t, err, ErrZeroAddress)
}

func TestBurnOnlyByIssuingProduct(t *testing.T) {
	m := newTestManager()
	m.AddProduct(productB)
	id := mintOne(t, m, holder, 100)

	require.ErrorIs(t, m.Burn(productB, id), ErrNotProduct)
	require.NoError(t, m.Burn(productA, id))
	require.ErrorIs(t, m.Burn(productA, id), ErrNonexistentPolicy)
	require.False(t, m.Exists(id))
}

func TestLookupsAfterBurnFail(t *testing.T) {
	m := newTestManager()
	id := mintOne(t, m, holder, 100)
	require.NoError(t, m.Burn(productA, id))

	_, err := m.PolicyInfo(id)
	require.ErrorIs(t, err, ErrNonexistentPolicy)
	_, err = m.OwnerOf(id)
	require.ErrorIs(t, err, ErrNonexistentPolicy)
	_, err = m.CoverAmount(id)
	require.ErrorIs(t, err, ErrNonexistentPolicy)
}

func TestUpdateRewritesMutableFields(t *testing.T) {
	m := newTestManager()
	id := mintOne(t, m, holder, 100)

	require.NoError(t, m.Update(productA, id, big.NewInt(5000), 12_000, 400))
	pol, err := m.PolicyInfo(id)
	require.NoError(t, err)
	require.EqualValues(t, 5000, pol.CoverAmount.Int64())
	require.EqualValues(t, 12_000, pol.Price)
	require.EqualValues(t, 400, pol.ExpirationBlock)
}

func TestTransferOnlyByOwner(t *testing.T) {
	m := newTestManager()
	id := mintOne(t, m, holder, 100)

	require.ErrorIs(t, m.Transfer(other, id, other), ErrNotOwner)
	require.ErrorIs(t, m.Transfer(holder, id, common.Address{}), ErrZeroAddress)

	require.NoError(t, m.Transfer(holder, id, other))
	owner, err := m.OwnerOf(id)
	require.NoError(t, err)
	require.Equal(t, other, owner)
	require.Zero(t, m.BalanceOf(holder))
	require.EqualValues(t, 1, m.BalanceOf(other))
}

func TestPolicyInfoReturnsCopy(t *testing.T) {
	m := newTestManager()
	id := mintOne(t, m, holder, 100)

	pol, err := m.PolicyInfo(id)
	require.NoError(t, err)
	pol.CoverAmount.SetInt64(0)

	fresh, err := m.CoverAmount(id)
	require.NoError(t, err)
	require.EqualValues(t, 1000, fresh.Int64())
}

func TestListExpired(t *testing.T) {
	m := newTestManager()
	a := mintOne(t, m, holder, 50)
	b := mintOne(t, m, holder, 100)
	mintOne(t, m, holder, 150)

	// Expiration is inclusive at the boundary block.
	require.Equal(t, []uint64{a, b}, m.ListExpired(100))
	require.Empty(t, m.ListExpired(49))
}
