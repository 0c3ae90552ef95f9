package gov

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0xa1")
	bob   = common.HexToAddress("0xb0")
	carol = common.HexToAddress("0xc4")
)

func TestRequire(t *testing.T) {
	g := New(alice)
	require.NoError(t, g.Require(alice))
	require.ErrorIs(t, g.Require(bob), ErrNotGovernance)
}

func TestTwoStepTransfer(t *testing.T) {
	g := New(alice)

	require.ErrorIs(t, g.SetPending(bob, bob), ErrNotGovernance)
	require.NoError(t, g.SetPending(alice, bob))
	require.Equal(t, bob, g.Pending())

	// Only the nominee can accept; the incumbent stays until then.
	require.ErrorIs(t, g.Accept(carol), ErrNotPendingGovernance)
	require.Equal(t, alice, g.Current())

	require.NoError(t, g.Accept(bob))
	require.Equal(t, bob, g.Current())
	require.ErrorIs(t, g.Require(alice), ErrNotGovernance)
	require.NoError(t, g.Require(bob))
}

func TestSetPendingRejectsZeroNominee(t *testing.T) {
	g := New(alice)
	require.ErrorIs(t, g.SetPending(alice, common.Address{}), ErrZeroAddress)
}

func TestPendingCanBeReplaced(t *testing.T) {
	g := New(alice)
	require.NoError(t, g.SetPending(alice, bob))
	require.NoError(t, g.SetPending(alice, carol))
	require.ErrorIs(t, g.Accept(bob), ErrNotPendingGovernance)
	require.NoError(t, g.Accept(carol))
	require.Equal(t, carol, g.Current())
}
