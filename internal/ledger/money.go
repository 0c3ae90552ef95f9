package ledger

import "math/big"

// PriceScale is the fixed-point denominator for premium rates: a price of
// 1e12 charges one wei per wei of cover per block.
const PriceScale = 1_000_000_000_000

var priceScaleBig = big.NewInt(PriceScale)

// Premium computes coverAmount * blocks * price / 1e12 with floor division.
// Repeated calls with the same inputs are exact, so callers can compute the
// required payment ahead of submission.
func Premium(coverAmount *big.Int, blocks uint64, price uint64) *big.Int {
	if coverAmount == nil || coverAmount.Sign() <= 0 || blocks == 0 || price == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(coverAmount, new(big.Int).SetUint64(blocks))
	out.Mul(out, new(big.Int).SetUint64(price))
	return out.Quo(out, priceScaleBig)
}

// Clone returns an independent copy of v, treating nil as zero.
func Clone(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// Min returns the smaller of a and b as a fresh value.
func Min(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return Clone(a)
	}
	return Clone(b)
}
