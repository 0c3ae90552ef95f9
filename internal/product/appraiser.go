package product

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"coverline/internal/ledger"
)

// PositionAppraiser values a holder's covered position. Concrete platform
// integrations (lending markets, AMM pools, plain token balances) differ
// only in this capability; the lifecycle engine is shared.
//
// positionDescription is the opaque bytes stored on the policy; its format
// is a contract between the product deployment and its appraiser.
type PositionAppraiser interface {
	AppraisePosition(ctx context.Context, holder common.Address, positionDescription []byte) (*big.Int, error)
}

// StaticAppraiser values every position at a fixed amount. Used for generic
// coverage products that insure a declared notional, and in tests.
type StaticAppraiser struct {
	Value *big.Int
}

// AppraisePosition returns the fixed value regardless of holder or position.
func (a StaticAppraiser) AppraisePosition(context.Context, common.Address, []byte) (*big.Int, error) {
	return ledger.Clone(a.Value), nil
}

var _ PositionAppraiser = StaticAppraiser{}

// DeclaredAppraiser reads the position description as a big-endian wei
// amount: generic coverage products insure a declared notional rather than
// an appraisable on-chain position.
type DeclaredAppraiser struct{}

// AppraisePosition decodes the declared notional from the description.
func (DeclaredAppraiser) AppraisePosition(_ context.Context, _ common.Address, positionDescription []byte) (*big.Int, error) {
	return new(big.Int).SetBytes(positionDescription), nil
}

var _ PositionAppraiser = DeclaredAppraiser{}
