package attest

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

var (
	testChainID  = big.NewInt(31337)
	testContract = common.HexToAddress("0x0000000000000000000000000000000000000c07")
	testClaimant = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

func testClaim() Claim {
	return Claim{
		PolicyID:  7,
		Claimant:  testClaimant,
		AmountOut: big.NewInt(1_000_000),
		Deadline:  1_700_000_000,
	}
}

func TestDigestIsDeterministic(t *testing.T) {
	domain := DomainSeparator("coverline-core", testChainID, testContract)
	first := Digest(domain, testClaim().StructHash())
	second := Digest(domain, testClaim().StructHash())
	require.Equal(t, first, second)
}

func TestStructHashBindsEveryField(t *testing.T) {
	base := testClaim().StructHash()

	tampered := testClaim()
	tampered.PolicyID = 8
	require.NotEqual(t, base, tampered.StructHash())

	tampered = testClaim()
	tampered.Claimant = common.HexToAddress("0xbb")
	require.NotEqual(t, base, tampered.StructHash())

	tampered = testClaim()
	tampered.AmountOut = big.NewInt(1_000_001)
	require.NotEqual(t, base, tampered.StructHash())

	tampered = testClaim()
	tampered.Deadline++
	require.NotEqual(t, base, tampered.StructHash())
}

func TestExchangeClaimBindsTokenLegs(t *testing.T) {
	base := ExchangeClaim{
		Claim:    testClaim(),
		TokenIn:  common.HexToAddress("0x01"),
		AmountIn: big.NewInt(500),
		TokenOut: common.HexToAddress("0x02"),
	}

	tampered := base
	tampered.TokenIn = common.HexToAddress("0x03")
	require.NotEqual(t, base.StructHash(), tampered.StructHash())

	tampered = base
	tampered.AmountIn = big.NewInt(501)
	require.NotEqual(t, base.StructHash(), tampered.StructHash())

	tampered = base
	tampered.TokenOut = common.HexToAddress("0x04")
	require.NotEqual(t, base.StructHash(), tampered.StructHash())

	// Same payloads under different typehashes never collide.
	require.NotEqual(t, base.Claim.StructHash(), base.StructHash())
}

func TestDomainSeparatorBindsDeployment(t *testing.T) {
	base := DomainSeparator("coverline-core", testChainID, testContract)
	require.NotEqual(t, base, DomainSeparator("other-name", testChainID, testContract))
	require.NotEqual(t, base, DomainSeparator("coverline-core", big.NewInt(1), testContract))
	require.NotEqual(t, base, DomainSeparator("coverline-core", testChainID, common.HexToAddress("0x01")))
}

func TestSignAndRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	want := crypto.PubkeyToAddress(key.PublicKey)

	domain := DomainSeparator("coverline-core", testChainID, testContract)
	digest := Digest(domain, testClaim().StructHash())

	sig, err := Sign(digest, key)
	require.NoError(t, err)
	require.Len(t, sig, SignatureLength)

	got, err := RecoverSigner(digest, sig)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestRecoverAcceptsLegacyVEncoding(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	want := crypto.PubkeyToAddress(key.PublicKey)

	digest := Digest(DomainSeparator("coverline-core", testChainID, testContract), testClaim().StructHash())
	sig, err := Sign(digest, key)
	require.NoError(t, err)

	// Ethereum tooling commonly emits v as 27/28 instead of 0/1.
	legacy := make([]byte, len(sig))
	copy(legacy, sig)
	legacy[64] += 27

	got, err := RecoverSigner(digest, legacy)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestRecoverRejectsMalformedSignatures(t *testing.T) {
	digest := Digest(DomainSeparator("coverline-core", testChainID, testContract), testClaim().StructHash())

	_, err := RecoverSigner(digest, nil)
	require.ErrorIs(t, err, ErrInvalidSignature)
	_, err = RecoverSigner(digest, make([]byte, 64))
	require.ErrorIs(t, err, ErrInvalidSignature)
	_, err = RecoverSigner(digest, make([]byte, 66))
	require.ErrorIs(t, err, ErrInvalidSignature)

	bad := make([]byte, SignatureLength)
	bad[64] = 5
	_, err = RecoverSigner(digest, bad)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestTamperedDigestRecoversDifferentSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.PubkeyToAddress(key.PublicKey)

	domain := DomainSeparator("coverline-core", testChainID, testContract)
	sig, err := Sign(Digest(domain, testClaim().StructHash()), key)
	require.NoError(t, err)

	inflated := testClaim()
	inflated.AmountOut = big.NewInt(2_000_000)
	got, err := RecoverSigner(Digest(domain, inflated.StructHash()), sig)
	if err == nil {
		require.NotEqual(t, signer, got)
	}
}
