package policy

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"coverline/internal/ledger"
)

// Policy is a purchased coverage position. CoverAmount is wei-denominated;
// Price is the premium rate scaled by ledger.PriceScale per wei of cover per
// block. PositionDescription is opaque to the registry and is interpreted
// only by the issuing product's appraiser.
type Policy struct {
	ID                  uint64
	Owner               common.Address
	Product             common.Address
	Strategy            string
	CoverAmount         *big.Int
	Price               uint64
	ExpirationBlock     uint64
	PositionDescription []byte
}

// Clone deep-copies the policy so callers can read without aliasing the
// stored record.
func (p *Policy) Clone() *Policy {
	if p == nil {
		return nil
	}
	clone := *p
	clone.CoverAmount = ledger.Clone(p.CoverAmount)
	if p.PositionDescription != nil {
		clone.PositionDescription = make([]byte, len(p.PositionDescription))
		copy(clone.PositionDescription, p.PositionDescription)
	}
	return &clone
}

// Expired reports whether the policy has lapsed at the given block height.
func (p *Policy) Expired(block uint64) bool {
	return p.ExpirationBlock <= block
}
