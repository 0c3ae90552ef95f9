package product

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"coverline/internal/attest"
	"coverline/internal/claims"
	"coverline/internal/gov"
	"coverline/internal/ledger"
	"coverline/internal/policy"
	"coverline/internal/risk"
	"coverline/internal/vault"
)

var (
	governor    = common.HexToAddress("0x60")
	holder      = common.HexToAddress("0x10")
	outsider    = common.HexToAddress("0x20")
	productAddr = common.HexToAddress("0x0000000000000000000000000000000000000c07")
)

const (
	testPrice    = uint64(11044)
	testCooldown = int64(3600)
)

type fixture struct {
	clock     *ledger.ManualClock
	gov       *gov.Governance
	policies  *policy.Manager
	provider  *risk.DataProvider
	risk      *risk.Manager
	bank      *vault.MemoryBank
	vault     *vault.Vault
	escrow    *claims.Escrow
	product   *Product
	signerKey *ecdsa.PrivateKey
}

type fixtureParams struct {
	maxCover     *big.Int
	coverDivisor uint32
	price        uint64
}

func newFixture(t *testing.T, params fixtureParams) *fixture {
	t.Helper()
	if params.maxCover == nil {
		params.maxCover, _ = new(big.Int).SetString("10000000000000000000", 10) // 10e18
	}
	if params.coverDivisor == 0 {
		params.coverDivisor = 1
	}
	if params.price == 0 {
		params.price = testPrice
	}

	f := &fixture{
		clock:    ledger.NewManualClock(1000, 10_000),
		gov:      gov.New(governor),
		policies: policy.NewManager(),
		provider: risk.NewDataProvider(),
		bank:     vault.NewMemoryBank(),
	}
	f.risk = risk.NewManager(f.provider, params.coverDivisor)
	f.vault = vault.New(f.bank, zerolog.Nop())
	f.escrow = claims.NewEscrow(testCooldown, f.vault, f.clock, zerolog.Nop())

	require.NoError(t, f.provider.Set("pool", params.maxCover))
	require.NoError(t, f.risk.AddStrategy("base", 1))
	require.NoError(t, f.risk.SetProductWeight("base", productAddr, 1))

	f.product = New(Options{
		Name:            "coverline-core",
		Address:         productAddr,
		ChainID:         big.NewInt(31337),
		Price:           params.price,
		MinPeriodBlocks: 100,
		MaxPeriodBlocks: 1_000_000,
	}, f.policies, f.risk, f.vault, f.escrow, f.clock, DeclaredAppraiser{}, f.gov, zerolog.Nop())

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	f.signerKey = key
	require.NoError(t, f.product.AddSigner(governor, crypto.PubkeyToAddress(key.PublicKey)))
	return f
}

func (f *fixture) buy(t *testing.T, owner common.Address, cover *big.Int, blocks uint64) uint64 {
	t.Helper()
	quote := f.product.GetQuote(cover, blocks)
	id, err := f.product.BuyPolicy(context.Background(), owner, cover, blocks, cover.Bytes(), "base", quote)
	require.NoError(t, err)
	return id
}

func (f *fixture) signClaim(t *testing.T, key *ecdsa.PrivateKey, c attest.Claim) []byte {
	t.Helper()
	domain := attest.DomainSeparator("coverline-core", big.NewInt(31337), productAddr)
	sig, err := attest.Sign(attest.Digest(domain, c.StructHash()), key)
	require.NoError(t, err)
	return sig
}

func wei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad wei literal: " + s)
	}
	return v
}

func TestGetQuoteIsDeterministic(t *testing.T) {
	f := newFixture(t, fixtureParams{})
	cover := wei("1000000000000000000")

	first := f.product.GetQuote(cover, 19350)
	require.Zero(t, first.Cmp(ledger.Premium(cover, 19350, testPrice)))
	for i := 0; i < 3; i++ {
		require.Zero(t, f.product.GetQuote(cover, 19350).Cmp(first))
	}
}

func TestBuyPolicyValidation(t *testing.T) {
	f := newFixture(t, fixtureParams{})
	ctx := context.Background()
	cover := wei("1000000000000000000")
	payment := f.product.GetQuote(cover, 19350)

	_, err := f.product.BuyPolicy(ctx, common.Address{}, cover, 19350, cover.Bytes(), "base", payment)
	require.ErrorIs(t, err, ErrZeroAddress)

	_, err = f.product.BuyPolicy(ctx, holder, nil, 19350, nil, "base", payment)
	require.ErrorIs(t, err, ErrZeroCover)
	_, err = f.product.BuyPolicy(ctx, holder, big.NewInt(0), 19350, nil, "base", payment)
	require.ErrorIs(t, err, ErrZeroCover)

	_, err = f.product.BuyPolicy(ctx, holder, cover, 99, cover.Bytes(), "base", payment)
	require.ErrorIs(t, err, ErrInvalidPeriod)
	_, err = f.product.BuyPolicy(ctx, holder, cover, 1_000_001, cover.Bytes(), "base", payment)
	require.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = f.product.BuyPolicy(ctx, holder, cover, 19350, cover.Bytes(), "ghost", payment)
	require.ErrorIs(t, err, risk.ErrInvalidStrategy)

	// Declared notional of zero appraises to zero.
	_, err = f.product.BuyPolicy(ctx, holder, cover, 19350, nil, "base", payment)
	require.ErrorIs(t, err, ErrZeroPositionValue)

	short := new(big.Int).Sub(payment, big.NewInt(1))
	_, err = f.product.BuyPolicy(ctx, holder, cover, 19350, cover.Bytes(), "base", short)
	require.ErrorIs(t, err, ErrInsufficientPayment)
	_, err = f.product.BuyPolicy(ctx, holder, cover, 19350, cover.Bytes(), "base", nil)
	require.ErrorIs(t, err, ErrInsufficientPayment)
}

func TestBuyPolicyRejectedWhilePaused(t *testing.T) {
	f := newFixture(t, fixtureParams{})
	require.NoError(t, f.product.SetPaused(governor, true))

	cover := wei("1000000000000000000")
	_, err := f.product.BuyPolicy(context.Background(), holder, cover, 19350, cover.Bytes(), "base", f.product.GetQuote(cover, 19350))
	require.ErrorIs(t, err, ErrPaused)
}

func TestBuyPolicyRecordsTerms(t *testing.T) {
	f := newFixture(t, fixtureParams{})
	cover := wei("1000000000000000000")
	id := f.buy(t, holder, cover, 19350)

	pol, err := f.policies.PolicyInfo(id)
	require.NoError(t, err)
	require.Equal(t, holder, pol.Owner)
	require.Equal(t, productAddr, pol.Product)
	require.Equal(t, "base", pol.Strategy)
	require.Equal(t, testPrice, pol.Price)
	require.EqualValues(t, 1000+19350, pol.ExpirationBlock)
	require.Zero(t, pol.CoverAmount.Cmp(cover))

	require.Zero(t, f.product.ActiveCoverAmount("base").Cmp(cover))
	require.Zero(t, f.vault.Balance().Cmp(ledger.Premium(cover, 19350, testPrice)))
}

func TestBuyPolicyRefundsExcessPayment(t *testing.T) {
	f := newFixture(t, fixtureParams{})
	cover := wei("1000000000000000000")
	premium := f.product.GetQuote(cover, 19350)
	payment := new(big.Int).Add(premium, big.NewInt(12345))

	_, err := f.product.BuyPolicy(context.Background(), holder, cover, 19350, cover.Bytes(), "base", payment)
	require.NoError(t, err)
	require.EqualValues(t, 12345, f.bank.BalanceOf(holder).Int64())
	require.Zero(t, f.vault.Balance().Cmp(premium))
}

func TestAdmissionBoundaryPerProduct(t *testing.T) {
	f := newFixture(t, fixtureParams{maxCover: big.NewInt(1_000_000)})
	ctx := context.Background()
	payment := big.NewInt(1_000_000_000)

	first := big.NewInt(400_000)
	_, err := f.product.BuyPolicy(ctx, holder, first, 200, first.Bytes(), "base", payment)
	require.NoError(t, err)

	// Exactly filling the ceiling is admitted; one wei more is not.
	exact := big.NewInt(600_000)
	_, err = f.product.BuyPolicy(ctx, holder, exact, 200, exact.Bytes(), "base", payment)
	require.NoError(t, err)

	over := big.NewInt(1)
	_, err = f.product.BuyPolicy(ctx, holder, over, 200, over.Bytes(), "base", payment)
	require.ErrorIs(t, err, ErrCannotAcceptRisk)
}

func TestAdmissionBoundaryPerPolicy(t *testing.T) {
	f := newFixture(t, fixtureParams{maxCover: big.NewInt(1_000_000), coverDivisor: 10})
	ctx := context.Background()
	payment := big.NewInt(1_000_000_000)

	within := big.NewInt(100_000)
	_, err := f.product.BuyPolicy(ctx, holder, within, 200, within.Bytes(), "base", payment)
	require.NoError(t, err)

	over := big.NewInt(100_001)
	_, err = f.product.BuyPolicy(ctx, holder, over, 200, over.Bytes(), "base", payment)
	require.ErrorIs(t, err, ErrCannotAcceptRisk)
}

func TestAdmissionAgainstInactiveStrategy(t *testing.T) {
	f := newFixture(t, fixtureParams{})
	require.NoError(t, f.risk.SetStrategyActive("base", false))

	cover := wei("1000000000000000000")
	_, err := f.product.BuyPolicy(context.Background(), holder, cover, 19350, cover.Bytes(), "base", f.product.GetQuote(cover, 19350))
	require.ErrorIs(t, err, risk.ErrStrategyInactive)
}

func TestExtendPolicyChargesRecordedRate(t *testing.T) {
	f := newFixture(t, fixtureParams{})
	cover := wei("1000000000000000000")
	id := f.buy(t, holder, cover, 19350)
	vaultBefore := f.vault.Balance()

	// A later repricing must not affect an already-issued policy.
	require.NoError(t, f.product.SetPrice(governor, testPrice*3))

	extra := uint64(5000)
	premium := ledger.Premium(cover, extra, testPrice)
	require.NoError(t, f.product.ExtendPolicy(context.Background(), holder, id, extra, premium))

	exp, err := f.policies.ExpirationBlock(id)
	require.NoError(t, err)
	require.EqualValues(t, 1000+19350+5000, exp)
	require.Zero(t, f.vault.Balance().Cmp(new(big.Int).Add(vaultBefore, premium)))
}

func TestExtendPolicyValidation(t *testing.T) {
	f := newFixture(t, fixtureParams{})
	cover := wei("1000000000000000000")
	id := f.buy(t, holder, cover, 19350)
	ctx := context.Background()

	require.ErrorIs(t, f.product.ExtendPolicy(ctx, outsider, id, 100, big.NewInt(0)), ErrNotPolicyholder)
	require.ErrorIs(t, f.product.ExtendPolicy(ctx, holder, 99, 100, big.NewInt(0)), policy.ErrNonexistentPolicy)
	require.ErrorIs(t, f.product.ExtendPolicy(ctx, holder, id, 0, big.NewInt(0)), ErrInvalidPeriod)

	// Remaining term plus the extension may not exceed the maximum period.
	tooLong := uint64(1_000_000)
	require.ErrorIs(t, f.product.ExtendPolicy(ctx, holder, id, tooLong, big.NewInt(0)), ErrInvalidPeriod)

	premium := ledger.Premium(cover, 100, testPrice)
	short := new(big.Int).Sub(premium, big.NewInt(1))
	require.ErrorIs(t, f.product.ExtendPolicy(ctx, holder, id, 100, short), ErrInsufficientPayment)

	require.NoError(t, f.product.SetPaused(governor, true))
	require.ErrorIs(t, f.product.ExtendPolicy(ctx, holder, id, 100, premium), ErrPaused)
	require.NoError(t, f.product.SetPaused(governor, false))

	f.clock.AdvanceBlocks(19350)
	require.ErrorIs(t, f.product.ExtendPolicy(ctx, holder, id, 100, premium), ErrPolicyExpired)
}

func TestUpdateCoverAmountIncrease(t *testing.T) {
	f := newFixture(t, fixtureParams{})
	cover := wei("1000000000000000000")
	id := f.buy(t, holder, cover, 19350)
	f.clock.AdvanceBlocks(4350)

	newCover := wei("2000000000000000000")
	remaining := uint64(19350 - 4350)
	paid := ledger.Premium(cover, remaining, testPrice)
	due := new(big.Int).Sub(ledger.Premium(newCover, remaining, testPrice), paid)

	short := new(big.Int).Sub(due, big.NewInt(1))
	err := f.product.UpdateCoverAmount(context.Background(), holder, id, newCover, short)
	require.ErrorIs(t, err, ErrInsufficientPayment)

	require.NoError(t, f.product.UpdateCoverAmount(context.Background(), holder, id, newCover, due))

	pol, err := f.policies.PolicyInfo(id)
	require.NoError(t, err)
	require.Zero(t, pol.CoverAmount.Cmp(newCover))
	require.EqualValues(t, 1000+19350, pol.ExpirationBlock)
	require.Zero(t, f.product.ActiveCoverAmount("base").Cmp(newCover))
}

func TestUpdateCoverAmountDecreaseRefunds(t *testing.T) {
	f := newFixture(t, fixtureParams{})
	cover := wei("2000000000000000000")
	id := f.buy(t, holder, cover, 19350)
	f.clock.AdvanceBlocks(4350)

	newCover := wei("1000000000000000000")
	remaining := uint64(19350 - 4350)
	refund := new(big.Int).Sub(
		ledger.Premium(cover, remaining, testPrice),
		ledger.Premium(newCover, remaining, testPrice),
	)

	require.NoError(t, f.product.UpdateCoverAmount(context.Background(), holder, id, newCover, nil))
	require.Zero(t, f.bank.BalanceOf(holder).Cmp(refund))
	require.Zero(t, f.product.ActiveCoverAmount("base").Cmp(newCover))
}

func TestUpdatePolicyRestartsWindow(t *testing.T) {
	f := newFixture(t, fixtureParams{})
	cover := wei("1000000000000000000")
	id := f.buy(t, holder, cover, 19350)
	f.clock.AdvanceBlocks(4350)

	newCover := wei("1500000000000000000")
	addedBlocks := uint64(10_000)
	remaining := uint64(19350-4350) + addedBlocks
	paid := ledger.Premium(cover, 19350-4350, testPrice)
	due := new(big.Int).Sub(ledger.Premium(newCover, remaining, testPrice), paid)

	require.NoError(t, f.product.UpdatePolicy(context.Background(), holder, id, newCover, addedBlocks, due))

	pol, err := f.policies.PolicyInfo(id)
	require.NoError(t, err)
	require.Zero(t, pol.CoverAmount.Cmp(newCover))
	require.EqualValues(t, 1000+4350+remaining, pol.ExpirationBlock)
}

func TestCancelRefundExactness(t *testing.T) {
	f := newFixture(t, fixtureParams{})
	cover := wei("1000000000000000000")
	id := f.buy(t, holder, cover, 19350)

	f.clock.AdvanceBlocks(1234)
	require.NoError(t, f.product.CancelPolicy(context.Background(), holder, id))

	// Bought at block 1000 for 19350 blocks, canceled at block 2234. The
	// canceling transaction consumes a block, so the refund window is
	// 20350 - 2235 = 18115 blocks.
	refund := ledger.Premium(cover, 18115, testPrice)
	require.Zero(t, f.bank.BalanceOf(holder).Cmp(refund))
	require.Zero(t, refund.Cmp(wei("200062060000000")))

	require.False(t, f.policies.Exists(id))
	require.Zero(t, f.product.ActiveCoverAmount("base").Sign())
}

func TestCancelAtLastBlockRefundsNothing(t *testing.T) {
	f := newFixture(t, fixtureParams{})
	cover := wei("1000000000000000000")
	id := f.buy(t, holder, cover, 19350)

	f.clock.AdvanceBlocks(19349)
	require.NoError(t, f.product.CancelPolicy(context.Background(), holder, id))
	require.Zero(t, f.bank.BalanceOf(holder).Sign())
	require.False(t, f.policies.Exists(id))
}

func TestCancelWorksWhilePaused(t *testing.T) {
	f := newFixture(t, fixtureParams{})
	cover := wei("1000000000000000000")
	id := f.buy(t, holder, cover, 19350)

	require.NoError(t, f.product.SetPaused(governor, true))
	require.NoError(t, f.product.CancelPolicy(context.Background(), holder, id))
	require.False(t, f.policies.Exists(id))
}

func TestCancelValidation(t *testing.T) {
	f := newFixture(t, fixtureParams{})
	cover := wei("1000000000000000000")
	id := f.buy(t, holder, cover, 19350)
	ctx := context.Background()

	require.ErrorIs(t, f.product.CancelPolicy(ctx, outsider, id), ErrNotPolicyholder)
	require.ErrorIs(t, f.product.CancelPolicy(ctx, holder, 99), policy.ErrNonexistentPolicy)

	f.clock.AdvanceBlocks(19350)
	require.ErrorIs(t, f.product.CancelPolicy(ctx, holder, id), ErrPolicyExpired)
}

func TestSubmitClaimHappyPath(t *testing.T) {
	f := newFixture(t, fixtureParams{})
	cover := wei("1000000000000000000")
	id := f.buy(t, holder, cover, 19350)
	ctx := context.Background()

	deadline := f.clock.Timestamp() + 1000
	sig := f.signClaim(t, f.signerKey, attest.Claim{
		PolicyID: id, Claimant: holder, AmountOut: cover, Deadline: deadline,
	})

	require.NoError(t, f.product.SubmitClaim(ctx, holder, id, cover, deadline, sig))
	require.False(t, f.policies.Exists(id))
	require.Zero(t, f.product.ActiveCoverAmount("base").Sign())
	require.Zero(t, f.escrow.TotalLiability().Cmp(cover))

	// Cooldown elapses; escrow pays what the vault holds.
	f.clock.AdvanceTime(testCooldown)
	paid, err := f.escrow.WithdrawClaimsPayout(ctx, holder, id)
	require.NoError(t, err)
	require.Zero(t, paid.Cmp(f.bank.BalanceOf(holder)))
}

func TestSubmitClaimValidation(t *testing.T) {
	f := newFixture(t, fixtureParams{})
	cover := wei("1000000000000000000")
	id := f.buy(t, holder, cover, 19350)
	ctx := context.Background()
	deadline := f.clock.Timestamp() + 1000

	goodSig := f.signClaim(t, f.signerKey, attest.Claim{
		PolicyID: id, Claimant: holder, AmountOut: cover, Deadline: deadline,
	})

	err := f.product.SubmitClaim(ctx, holder, id, cover, f.clock.Timestamp()-1, goodSig)
	require.ErrorIs(t, err, attest.ErrExpiredDeadline)

	err = f.product.SubmitClaim(ctx, holder, 99, cover, deadline, goodSig)
	require.ErrorIs(t, err, policy.ErrNonexistentPolicy)

	err = f.product.SubmitClaim(ctx, outsider, id, cover, deadline, goodSig)
	require.ErrorIs(t, err, ErrNotPolicyholder)

	// Correctly formed signature from a key outside the authorized set.
	rogueKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	rogueSig := f.signClaim(t, rogueKey, attest.Claim{
		PolicyID: id, Claimant: holder, AmountOut: cover, Deadline: deadline,
	})
	err = f.product.SubmitClaim(ctx, holder, id, cover, deadline, rogueSig)
	require.ErrorIs(t, err, attest.ErrInvalidSignature)

	// Authorized signature over a different amount does not transfer.
	inflated := new(big.Int).Add(cover, big.NewInt(1))
	err = f.product.SubmitClaim(ctx, holder, id, inflated, deadline, goodSig)
	require.ErrorIs(t, err, attest.ErrInvalidSignature)

	// Signed amount above the cover bound is rejected after verification.
	overSig := f.signClaim(t, f.signerKey, attest.Claim{
		PolicyID: id, Claimant: holder, AmountOut: inflated, Deadline: deadline,
	})
	err = f.product.SubmitClaim(ctx, holder, id, inflated, deadline, overSig)
	require.ErrorIs(t, err, ErrExcessiveAmountOut)

	require.ErrorIs(t, f.product.SubmitClaim(ctx, holder, id, cover, deadline, []byte("junk")), attest.ErrInvalidSignature)
}

func TestNoDoubleClaim(t *testing.T) {
	f := newFixture(t, fixtureParams{})
	cover := wei("1000000000000000000")
	id := f.buy(t, holder, cover, 19350)
	ctx := context.Background()
	deadline := f.clock.Timestamp() + 1000

	sig := f.signClaim(t, f.signerKey, attest.Claim{
		PolicyID: id, Claimant: holder, AmountOut: cover, Deadline: deadline,
	})
	require.NoError(t, f.product.SubmitClaim(ctx, holder, id, cover, deadline, sig))

	// The policy burned with the first claim; a resubmission finds nothing.
	err := f.product.SubmitClaim(ctx, holder, id, cover, deadline, sig)
	require.ErrorIs(t, err, policy.ErrNonexistentPolicy)
}

func TestSubmitExchangeClaim(t *testing.T) {
	f := newFixture(t, fixtureParams{})
	cover := wei("1000000000000000000")
	id := f.buy(t, holder, cover, 19350)
	ctx := context.Background()
	deadline := f.clock.Timestamp() + 1000

	tokenIn := common.HexToAddress("0x01")
	tokenOut := common.HexToAddress("0x02")
	amountIn := big.NewInt(777)

	exchange := attest.ExchangeClaim{
		Claim:    attest.Claim{PolicyID: id, Claimant: holder, AmountOut: cover, Deadline: deadline},
		TokenIn:  tokenIn,
		AmountIn: amountIn,
		TokenOut: tokenOut,
	}
	domain := attest.DomainSeparator("coverline-core", big.NewInt(31337), productAddr)
	sig, err := attest.Sign(attest.Digest(domain, exchange.StructHash()), f.signerKey)
	require.NoError(t, err)

	// A plain-claim signature never validates the exchange variant.
	plainSig := f.signClaim(t, f.signerKey, exchange.Claim)
	err = f.product.SubmitExchangeClaim(ctx, holder, id, cover, tokenIn, amountIn, tokenOut, deadline, plainSig)
	require.ErrorIs(t, err, attest.ErrInvalidSignature)

	require.NoError(t, f.product.SubmitExchangeClaim(ctx, holder, id, cover, tokenIn, amountIn, tokenOut, deadline, sig))
	require.False(t, f.policies.Exists(id))
	require.Zero(t, f.escrow.TotalLiability().Cmp(cover))
}

func TestSweepExpired(t *testing.T) {
	f := newFixture(t, fixtureParams{})
	shortCover := wei("1000000000000000000")
	longCover := wei("2000000000000000000")
	shortID := f.buy(t, holder, shortCover, 200)
	longID := f.buy(t, holder, longCover, 19350)

	f.clock.AdvanceBlocks(200)
	swept := f.product.SweepExpired(context.Background())
	require.Equal(t, []uint64{shortID}, swept)
	require.False(t, f.policies.Exists(shortID))
	require.True(t, f.policies.Exists(longID))
	require.Zero(t, f.product.ActiveCoverAmount("base").Cmp(longCover))

	// Nothing newly lapsed: the sweep is a no-op.
	require.Empty(t, f.product.SweepExpired(context.Background()))
}

func TestGovernanceControls(t *testing.T) {
	f := newFixture(t, fixtureParams{})

	require.ErrorIs(t, f.product.SetPrice(outsider, 1), gov.ErrNotGovernance)
	require.ErrorIs(t, f.product.SetPaused(outsider, true), gov.ErrNotGovernance)
	require.ErrorIs(t, f.product.AddSigner(outsider, holder), gov.ErrNotGovernance)
	require.ErrorIs(t, f.product.RemoveSigner(outsider, holder), gov.ErrNotGovernance)
	require.ErrorIs(t, f.product.AddSigner(governor, common.Address{}), ErrZeroAddress)

	require.NoError(t, f.product.SetPrice(governor, 22_000))
	require.EqualValues(t, 22_000, f.product.Price())

	signerAddr := crypto.PubkeyToAddress(f.signerKey.PublicKey)
	require.True(t, f.product.IsAuthorizedSigner(signerAddr))
	require.NoError(t, f.product.RemoveSigner(governor, signerAddr))
	require.False(t, f.product.IsAuthorizedSigner(signerAddr))
}

func TestRevokedSignerCannotAttest(t *testing.T) {
	f := newFixture(t, fixtureParams{})
	cover := wei("1000000000000000000")
	id := f.buy(t, holder, cover, 19350)
	deadline := f.clock.Timestamp() + 1000

	sig := f.signClaim(t, f.signerKey, attest.Claim{
		PolicyID: id, Claimant: holder, AmountOut: cover, Deadline: deadline,
	})
	require.NoError(t, f.product.RemoveSigner(governor, crypto.PubkeyToAddress(f.signerKey.PublicKey)))

	err := f.product.SubmitClaim(context.Background(), holder, id, cover, deadline, sig)
	require.ErrorIs(t, err, attest.ErrInvalidSignature)
}
