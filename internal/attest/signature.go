package attest

import (
	"crypto/ecdsa"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the canonical recoverable signature size: r || s || v.
const SignatureLength = 65

var (
	// ErrInvalidSignature covers malformed bytes, failed recovery, and
	// signers outside the authorized set. Callers must not distinguish the
	// cases to avoid oracle behavior.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrExpiredDeadline rejects attestations past their deadline.
	ErrExpiredDeadline = errors.New("expired deadline")
)

// RecoverSigner recovers the signing address from a 65-byte recoverable
// signature over the digest. Both v ∈ {0,1} and v ∈ {27,28} encodings are
// accepted. Malformed input is rejected before recovery is attempted.
func RecoverSigner(digest common.Hash, signature []byte) (common.Address, error) {
	if len(signature) != SignatureLength {
		return common.Address{}, ErrInvalidSignature
	}
	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return common.Address{}, ErrInvalidSignature
	}
	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return common.Address{}, ErrInvalidSignature
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Sign produces a recoverable signature over the digest. Used by signer
// tooling and tests; verification never needs a private key.
func Sign(digest common.Hash, key *ecdsa.PrivateKey) ([]byte, error) {
	return crypto.Sign(digest.Bytes(), key)
}
