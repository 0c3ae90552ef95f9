package attest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Typed-data construction for claim attestations. The layout is the
// EIP-712 wire format and must stay bit-exact for interop with external
// signer infrastructure: digest = keccak256(0x19 0x01 || domainSeparator ||
// structHash), with every dynamic field hashed and every scalar ABI-encoded
// to 32 bytes.

var (
	domainTypeHash = crypto.Keccak256Hash(
		[]byte("EIP712Domain(string name,uint256 chainId,address verifyingContract)"),
	)
	claimTypeHash = crypto.Keccak256Hash(
		[]byte("CoverlineClaim(uint256 policyID,address claimant,uint256 amountOut,uint256 deadline)"),
	)
	exchangeClaimTypeHash = crypto.Keccak256Hash(
		[]byte("CoverlineClaimExchange(uint256 policyID,address claimant,uint256 amountOut,address tokenIn,uint256 amountIn,address tokenOut,uint256 deadline)"),
	)
)

// Claim is the signed attestation payload for a direct payout.
type Claim struct {
	PolicyID  uint64
	Claimant  common.Address
	AmountOut *big.Int
	Deadline  int64
}

// ExchangeClaim extends Claim with the token legs used by exchange-based
// payout variants.
type ExchangeClaim struct {
	Claim
	TokenIn  common.Address
	AmountIn *big.Int
	TokenOut common.Address
}

// DomainSeparator binds signatures to one product deployment: its name, the
// chain it lives on, and its contract address.
func DomainSeparator(name string, chainID *big.Int, verifyingContract common.Address) common.Hash {
	return crypto.Keccak256Hash(
		domainTypeHash.Bytes(),
		crypto.Keccak256([]byte(name)),
		encodeUint(chainID),
		encodeAddress(verifyingContract),
	)
}

// StructHash hashes the claim payload under its typehash.
func (c Claim) StructHash() common.Hash {
	return crypto.Keccak256Hash(
		claimTypeHash.Bytes(),
		encodeUint(new(big.Int).SetUint64(c.PolicyID)),
		encodeAddress(c.Claimant),
		encodeUint(c.AmountOut),
		encodeUint(big.NewInt(c.Deadline)),
	)
}

// StructHash hashes the exchange-claim payload under its typehash.
func (c ExchangeClaim) StructHash() common.Hash {
	return crypto.Keccak256Hash(
		exchangeClaimTypeHash.Bytes(),
		encodeUint(new(big.Int).SetUint64(c.PolicyID)),
		encodeAddress(c.Claimant),
		encodeUint(c.AmountOut),
		encodeAddress(c.TokenIn),
		encodeUint(c.AmountIn),
		encodeAddress(c.TokenOut),
		encodeUint(big.NewInt(c.Deadline)),
	)
}

// Digest assembles the final signable hash from a domain separator and a
// struct hash.
func Digest(domain, structHash common.Hash) common.Hash {
	return crypto.Keccak256Hash(
		[]byte{0x19, 0x01},
		domain.Bytes(),
		structHash.Bytes(),
	)
}

func encodeUint(v *big.Int) []byte {
	if v == nil {
		v = big.NewInt(0)
	}
	return common.LeftPadBytes(v.Bytes(), 32)
}

func encodeAddress(a common.Address) []byte {
	return common.LeftPadBytes(a.Bytes(), 32)
}
