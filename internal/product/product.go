package product

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"coverline/internal/attest"
	"coverline/internal/claims"
	"coverline/internal/gov"
	"coverline/internal/ledger"
	"coverline/internal/policy"
	"coverline/internal/risk"
	"coverline/internal/vault"
)

// Event is a lifecycle notification forwarded to an optional sink (the
// Postgres journal in service mode).
type Event struct {
	Type     string
	PolicyID uint64
	Holder   common.Address
	Strategy string
	Cover    *big.Int
	Amount   *big.Int
	Block    uint64
}

// Lifecycle event types.
const (
	EventPolicyCreated  = "policy_created"
	EventPolicyExtended = "policy_extended"
	EventPolicyUpdated  = "policy_updated"
	EventPolicyCanceled = "policy_canceled"
	EventPolicyExpired  = "policy_expired"
	EventClaimSubmitted = "claim_submitted"
)

// EventSink receives lifecycle events. Sinks must not fail the operation;
// errors are the sink's to log.
type EventSink interface {
	PolicyEvent(ctx context.Context, event Event)
}

// Options configure a product deployment.
type Options struct {
	// Name feeds the typed-data domain separator along with ChainID and
	// Address, binding claim signatures to this deployment.
	Name    string
	Address common.Address
	ChainID *big.Int

	// Price is the premium rate scaled by ledger.PriceScale per wei of
	// cover per block.
	Price uint64
	// MinPeriodBlocks and MaxPeriodBlocks bound policy durations.
	MinPeriodBlocks uint64
	MaxPeriodBlocks uint64
}

// Product is the policy lifecycle engine: quoting, purchase, extension,
// cover updates, cancellation, and claim submission. One Product instance
// serves one deployment; platform differences live entirely in the
// appraiser. All state transitions are atomic under the product lock, with
// outbound transfers performed last.
type Product struct {
	mu sync.Mutex

	opts      Options
	domain    common.Hash
	policies  *policy.Manager
	risk      *risk.Manager
	vault     *vault.Vault
	escrow    *claims.Escrow
	clock     ledger.Clock
	appraiser PositionAppraiser
	gov       *gov.Governance
	sink      EventSink
	logger    zerolog.Logger

	paused      bool
	signers     map[common.Address]bool
	activeCover map[string]*big.Int
}

// New wires a product into the registry, risk manager, vault, and escrow.
// The product registers itself with the policy manager and escrow.
func New(opts Options, policies *policy.Manager, rm *risk.Manager, v *vault.Vault, esc *claims.Escrow, clock ledger.Clock, appraiser PositionAppraiser, governance *gov.Governance, logger zerolog.Logger) *Product {
	p := &Product{
		opts:        opts,
		domain:      attest.DomainSeparator(opts.Name, opts.ChainID, opts.Address),
		policies:    policies,
		risk:        rm,
		vault:       v,
		escrow:      esc,
		clock:       clock,
		appraiser:   appraiser,
		gov:         governance,
		logger:      logger.With().Str("component", "product").Str("product", opts.Name).Logger(),
		signers:     make(map[common.Address]bool),
		activeCover: make(map[string]*big.Int),
	}
	policies.AddProduct(opts.Address)
	esc.AddProduct(opts.Address)
	return p
}

// SetEventSink attaches a lifecycle event sink. Passing nil detaches it.
func (p *Product) SetEventSink(sink EventSink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink = sink
}

// Name returns the product's deployment name.
func (p *Product) Name() string { return p.opts.Name }

// Address returns the product's deployment address.
func (p *Product) Address() common.Address { return p.opts.Address }

// Price returns the current premium rate.
func (p *Product) Price() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opts.Price
}

// SetPrice updates the premium rate for subsequent quotes and updates.
// Already-issued policies keep the rate they were charged at.
func (p *Product) SetPrice(caller common.Address, price uint64) error {
	if err := p.gov.Require(caller); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opts.Price = price
	return nil
}

// Paused reports whether fund-moving entry points are gated.
func (p *Product) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// SetPaused flips the pause gate.
func (p *Product) SetPaused(caller common.Address, paused bool) error {
	if err := p.gov.Require(caller); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = paused
	return nil
}

// AddSigner authorizes a claim attestor.
func (p *Product) AddSigner(caller, signer common.Address) error {
	if err := p.gov.Require(caller); err != nil {
		return err
	}
	if signer == (common.Address{}) {
		return ErrZeroAddress
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signers[signer] = true
	return nil
}

// RemoveSigner revokes a claim attestor.
func (p *Product) RemoveSigner(caller, signer common.Address) error {
	if err := p.gov.Require(caller); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.signers, signer)
	return nil
}

// IsAuthorizedSigner reports whether the address may attest claims.
func (p *Product) IsAuthorizedSigner(signer common.Address) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signers[signer]
}

// ActiveCoverAmount returns the running total of live cover under the
// strategy.
func (p *Product) ActiveCoverAmount(strategy string) *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeCoverLocked(strategy)
}

func (p *Product) activeCoverLocked(strategy string) *big.Int {
	if cur, ok := p.activeCover[strategy]; ok {
		return ledger.Clone(cur)
	}
	return big.NewInt(0)
}

func (p *Product) addActiveCoverLocked(strategy string, delta *big.Int) {
	cur, ok := p.activeCover[strategy]
	if !ok {
		cur = big.NewInt(0)
		p.activeCover[strategy] = cur
	}
	cur.Add(cur, delta)
}

// GetQuote returns the premium for the given cover and duration at the
// current rate: coverAmount * blocks * price / 1e12, floored. Pure; repeated
// calls are deterministic so callers can compute exact required payment.
func (p *Product) GetQuote(coverAmount *big.Int, durationBlocks uint64) *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ledger.Premium(coverAmount, durationBlocks, p.opts.Price)
}

// BuyPolicy issues a new policy for the holder. Payment must cover the
// quote; excess is refunded through the vault's pull-safe path.
func (p *Product) BuyPolicy(ctx context.Context, holder common.Address, coverAmount *big.Int, durationBlocks uint64, positionDescription []byte, strategy string, payment *big.Int) (uint64, error) {
	if holder == (common.Address{}) {
		return 0, ErrZeroAddress
	}
	if coverAmount == nil || coverAmount.Sign() <= 0 {
		return 0, ErrZeroCover
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.paused {
		return 0, ErrPaused
	}
	if durationBlocks < p.opts.MinPeriodBlocks || durationBlocks > p.opts.MaxPeriodBlocks {
		return 0, ErrInvalidPeriod
	}

	if err := p.admitLocked(strategy, p.activeCoverLocked(strategy), coverAmount); err != nil {
		return 0, err
	}

	value, err := p.appraiser.AppraisePosition(ctx, holder, positionDescription)
	if err != nil {
		return 0, err
	}
	if value.Sign() <= 0 {
		return 0, ErrZeroPositionValue
	}

	premium := ledger.Premium(coverAmount, durationBlocks, p.opts.Price)
	if payment == nil || payment.Cmp(premium) < 0 {
		return 0, ErrInsufficientPayment
	}

	block := p.clock.BlockNumber()
	id, err := p.policies.Mint(p.opts.Address, &policy.Policy{
		Owner:               holder,
		Strategy:            strategy,
		CoverAmount:         coverAmount,
		Price:               p.opts.Price,
		ExpirationBlock:     block + durationBlocks,
		PositionDescription: positionDescription,
	})
	if err != nil {
		return 0, err
	}
	p.addActiveCoverLocked(strategy, coverAmount)

	p.vault.Deposit(payment)
	excess := new(big.Int).Sub(payment, premium)
	if excess.Sign() > 0 {
		if _, err := p.vault.Payout(ctx, holder, excess); err != nil {
			return 0, err
		}
	}

	p.logger.Info().
		Uint64("policy_id", id).
		Str("holder", holder.Hex()).
		Str("cover_wei", coverAmount.String()).
		Str("premium_wei", premium.String()).
		Uint64("expiration_block", block+durationBlocks).
		Msg("policy created")
	p.emitLocked(ctx, Event{
		Type: EventPolicyCreated, PolicyID: id, Holder: holder, Strategy: strategy,
		Cover: ledger.Clone(coverAmount), Amount: premium, Block: block,
	})
	return id, nil
}

// admitLocked enforces the strategy's product and policy ceilings using the
// live risk-manager figures.
func (p *Product) admitLocked(strategy string, newActiveCover, policyCover *big.Int) error {
	perProduct, err := p.risk.MaxCoverPerProduct(strategy, p.opts.Address)
	if err != nil {
		return err
	}
	total := new(big.Int).Add(newActiveCover, policyCover)
	if total.Cmp(perProduct) > 0 {
		return ErrCannotAcceptRisk
	}
	perPolicy, err := p.risk.MaxCoverPerPolicy(strategy, p.opts.Address)
	if err != nil {
		return err
	}
	if policyCover.Cmp(perPolicy) > 0 {
		return ErrCannotAcceptRisk
	}
	return nil
}

// loadOwnedLocked fetches a live policy of this product owned by the caller.
func (p *Product) loadOwnedLocked(caller common.Address, policyID uint64) (*policy.Policy, error) {
	pol, err := p.policies.PolicyInfo(policyID)
	if err != nil {
		return nil, err
	}
	if pol.Product != p.opts.Address {
		return nil, ErrWrongProduct
	}
	if pol.Owner != caller {
		return nil, ErrNotPolicyholder
	}
	return pol, nil
}

// ExtendPolicy pushes the expiration out by extraBlocks at the policy's
// recorded rate. Cover amount and active-cover counters are untouched.
func (p *Product) ExtendPolicy(ctx context.Context, caller common.Address, policyID uint64, extraBlocks uint64, payment *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return ErrPaused
	}

	pol, err := p.loadOwnedLocked(caller, policyID)
	if err != nil {
		return err
	}
	block := p.clock.BlockNumber()
	if pol.Expired(block) {
		return ErrPolicyExpired
	}
	if extraBlocks == 0 || pol.ExpirationBlock-block+extraBlocks > p.opts.MaxPeriodBlocks {
		return ErrInvalidPeriod
	}

	premium := ledger.Premium(pol.CoverAmount, extraBlocks, pol.Price)
	if payment == nil || payment.Cmp(premium) < 0 {
		return ErrInsufficientPayment
	}

	newExpiration := pol.ExpirationBlock + extraBlocks
	if err := p.policies.Update(p.opts.Address, policyID, pol.CoverAmount, pol.Price, newExpiration); err != nil {
		return err
	}

	p.vault.Deposit(payment)
	excess := new(big.Int).Sub(payment, premium)
	if excess.Sign() > 0 {
		if _, err := p.vault.Payout(ctx, caller, excess); err != nil {
			return err
		}
	}

	p.logger.Info().
		Uint64("policy_id", policyID).
		Uint64("expiration_block", newExpiration).
		Str("premium_wei", premium.String()).
		Msg("policy extended")
	p.emitLocked(ctx, Event{
		Type: EventPolicyExtended, PolicyID: policyID, Holder: caller, Strategy: pol.Strategy,
		Cover: ledger.Clone(pol.CoverAmount), Amount: premium, Block: block,
	})
	return nil
}

// UpdateCoverAmount changes the policy's cover for its remaining term,
// reconciling premium already collected at the old rate against premium due
// at the current rate. Underpayment rejects; the caller is refunded any
// surplus either way.
func (p *Product) UpdateCoverAmount(ctx context.Context, caller common.Address, policyID uint64, newCoverAmount, payment *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return ErrPaused
	}
	if newCoverAmount == nil || newCoverAmount.Sign() <= 0 {
		return ErrZeroCover
	}

	pol, err := p.loadOwnedLocked(caller, policyID)
	if err != nil {
		return err
	}
	block := p.clock.BlockNumber()
	if pol.Expired(block) {
		return ErrPolicyExpired
	}

	newActive := new(big.Int).Sub(p.activeCoverLocked(pol.Strategy), pol.CoverAmount)
	if err := p.admitLocked(pol.Strategy, newActive, newCoverAmount); err != nil {
		return err
	}

	remaining := pol.ExpirationBlock - block
	return p.reconcileLocked(ctx, pol, newCoverAmount, remaining, pol.ExpirationBlock, payment, EventPolicyUpdated)
}

// UpdatePolicy changes cover amount and duration together: the new duration
// is added atop the unexpired remainder, and the premium is reconciled once
// over the whole new window.
func (p *Product) UpdatePolicy(ctx context.Context, caller common.Address, policyID uint64, newCoverAmount *big.Int, newDurationBlocks uint64, payment *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return ErrPaused
	}
	if newCoverAmount == nil || newCoverAmount.Sign() <= 0 {
		return ErrZeroCover
	}

	pol, err := p.loadOwnedLocked(caller, policyID)
	if err != nil {
		return err
	}
	block := p.clock.BlockNumber()
	if pol.Expired(block) {
		return ErrPolicyExpired
	}

	newRemaining := pol.ExpirationBlock - block + newDurationBlocks
	if newRemaining == 0 || newRemaining > p.opts.MaxPeriodBlocks {
		return ErrInvalidPeriod
	}

	newActive := new(big.Int).Sub(p.activeCoverLocked(pol.Strategy), pol.CoverAmount)
	if err := p.admitLocked(pol.Strategy, newActive, newCoverAmount); err != nil {
		return err
	}

	return p.reconcileLocked(ctx, pol, newCoverAmount, newRemaining, block+newRemaining, payment, EventPolicyUpdated)
}

// reconcileLocked settles the premium difference between the old terms and
// the new, then rewrites the policy at the current rate. The already-paid
// figure uses the rate recorded on the policy; the new figure uses the
// product's current rate.
func (p *Product) reconcileLocked(ctx context.Context, pol *policy.Policy, newCover *big.Int, newRemaining uint64, newExpiration uint64, payment *big.Int, eventType string) error {
	block := p.clock.BlockNumber()
	oldRemaining := pol.ExpirationBlock - block

	paidPremium := ledger.Premium(pol.CoverAmount, oldRemaining, pol.Price)
	newPremium := ledger.Premium(newCover, newRemaining, p.opts.Price)

	if payment == nil {
		payment = big.NewInt(0)
	}

	var surplus *big.Int
	if newPremium.Cmp(paidPremium) > 0 {
		due := new(big.Int).Sub(newPremium, paidPremium)
		if payment.Cmp(due) < 0 {
			return ErrInsufficientPayment
		}
		surplus = new(big.Int).Sub(payment, due)
	} else {
		// Premium decreased: refund the difference from the vault, plus the
		// whole payment if the caller sent one anyway.
		surplus = new(big.Int).Sub(paidPremium, newPremium)
		surplus.Add(surplus, payment)
	}

	coverDelta := new(big.Int).Sub(newCover, pol.CoverAmount)
	if err := p.policies.Update(p.opts.Address, pol.ID, newCover, p.opts.Price, newExpiration); err != nil {
		return err
	}
	p.addActiveCoverLocked(pol.Strategy, coverDelta)

	p.vault.Deposit(payment)
	if surplus.Sign() > 0 {
		if _, err := p.vault.Payout(ctx, pol.Owner, surplus); err != nil {
			return err
		}
	}

	p.logger.Info().
		Uint64("policy_id", pol.ID).
		Str("cover_wei", newCover.String()).
		Uint64("expiration_block", newExpiration).
		Str("paid_premium_wei", paidPremium.String()).
		Str("new_premium_wei", newPremium.String()).
		Msg("policy updated")
	p.emitLocked(ctx, Event{
		Type: eventType, PolicyID: pol.ID, Holder: pol.Owner, Strategy: pol.Strategy,
		Cover: ledger.Clone(newCover), Amount: newPremium, Block: block,
	})
	return nil
}

// CancelPolicy burns the policy and refunds the unused premium pro rata.
// The cancelling transaction itself consumes a block, so the refund window
// is expirationBlock - (block + 1).
func (p *Product) CancelPolicy(ctx context.Context, caller common.Address, policyID uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pol, err := p.loadOwnedLocked(caller, policyID)
	if err != nil {
		return err
	}
	block := p.clock.BlockNumber()
	if pol.Expired(block) {
		return ErrPolicyExpired
	}

	var refundBlocks uint64
	if pol.ExpirationBlock > block+1 {
		refundBlocks = pol.ExpirationBlock - (block + 1)
	}
	refund := ledger.Premium(pol.CoverAmount, refundBlocks, pol.Price)

	if err := p.policies.Burn(p.opts.Address, policyID); err != nil {
		return err
	}
	p.addActiveCoverLocked(pol.Strategy, new(big.Int).Neg(pol.CoverAmount))

	if refund.Sign() > 0 {
		if _, err := p.vault.Payout(ctx, caller, refund); err != nil {
			return err
		}
	}

	p.logger.Info().
		Uint64("policy_id", policyID).
		Str("refund_wei", refund.String()).
		Msg("policy canceled")
	p.emitLocked(ctx, Event{
		Type: EventPolicyCanceled, PolicyID: policyID, Holder: caller, Strategy: pol.Strategy,
		Cover: ledger.Clone(pol.CoverAmount), Amount: refund, Block: block,
	})
	return nil
}

// SubmitClaim verifies a signed payout attestation and, on success, burns
// the policy and forwards the claim to the escrow. Verification order:
// deadline, ownership, product binding, signature, amount bound. No state
// changes before the final step.
func (p *Product) SubmitClaim(ctx context.Context, caller common.Address, policyID uint64, amountOut *big.Int, deadline int64, signature []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	structHash := attest.Claim{
		PolicyID:  policyID,
		Claimant:  caller,
		AmountOut: amountOut,
		Deadline:  deadline,
	}.StructHash()
	return p.submitClaimLocked(ctx, caller, policyID, amountOut, deadline, structHash, signature)
}

// SubmitExchangeClaim verifies the exchange-based attestation variant, which
// additionally binds the token legs into the signed payload.
func (p *Product) SubmitExchangeClaim(ctx context.Context, caller common.Address, policyID uint64, amountOut *big.Int, tokenIn common.Address, amountIn *big.Int, tokenOut common.Address, deadline int64, signature []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	structHash := attest.ExchangeClaim{
		Claim: attest.Claim{
			PolicyID:  policyID,
			Claimant:  caller,
			AmountOut: amountOut,
			Deadline:  deadline,
		},
		TokenIn:  tokenIn,
		AmountIn: amountIn,
		TokenOut: tokenOut,
	}.StructHash()
	return p.submitClaimLocked(ctx, caller, policyID, amountOut, deadline, structHash, signature)
}

func (p *Product) submitClaimLocked(ctx context.Context, caller common.Address, policyID uint64, amountOut *big.Int, deadline int64, structHash common.Hash, signature []byte) error {
	if p.clock.Timestamp() > deadline {
		return attest.ErrExpiredDeadline
	}

	pol, err := p.policies.PolicyInfo(policyID)
	if err != nil {
		return err
	}
	if pol.Owner != caller {
		return ErrNotPolicyholder
	}
	if pol.Product != p.opts.Address {
		return ErrWrongProduct
	}

	digest := attest.Digest(p.domain, structHash)
	signer, err := attest.RecoverSigner(digest, signature)
	if err != nil {
		return err
	}
	if !p.signers[signer] {
		return attest.ErrInvalidSignature
	}

	if amountOut == nil || amountOut.Cmp(pol.CoverAmount) > 0 {
		return ErrExcessiveAmountOut
	}

	if err := p.policies.Burn(p.opts.Address, policyID); err != nil {
		return err
	}
	p.addActiveCoverLocked(pol.Strategy, new(big.Int).Neg(pol.CoverAmount))
	if err := p.escrow.ReceiveClaim(p.opts.Address, policyID, caller, amountOut); err != nil {
		return err
	}

	block := p.clock.BlockNumber()
	p.logger.Info().
		Uint64("policy_id", policyID).
		Str("claimant", caller.Hex()).
		Str("amount_out_wei", amountOut.String()).
		Str("signer", signer.Hex()).
		Msg("claim submitted")
	p.emitLocked(ctx, Event{
		Type: EventClaimSubmitted, PolicyID: policyID, Holder: caller, Strategy: pol.Strategy,
		Cover: ledger.Clone(pol.CoverAmount), Amount: ledger.Clone(amountOut), Block: block,
	})
	return nil
}

// SweepExpired burns lapsed policies of this product and releases their
// cover. Expired records are inert either way; the sweep is bookkeeping.
// Returns the IDs swept.
func (p *Product) SweepExpired(ctx context.Context) []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	block := p.clock.BlockNumber()
	var swept []uint64
	for _, id := range p.policies.ListExpired(block) {
		pol, err := p.policies.PolicyInfo(id)
		if err != nil || pol.Product != p.opts.Address {
			continue
		}
		if err := p.policies.Burn(p.opts.Address, id); err != nil {
			continue
		}
		p.addActiveCoverLocked(pol.Strategy, new(big.Int).Neg(pol.CoverAmount))
		swept = append(swept, id)
		p.emitLocked(ctx, Event{
			Type: EventPolicyExpired, PolicyID: id, Holder: pol.Owner, Strategy: pol.Strategy,
			Cover: ledger.Clone(pol.CoverAmount), Block: block,
		})
	}
	if len(swept) > 0 {
		p.logger.Info().Ints64("policy_ids", toInt64s(swept)).Msg("expired policies swept")
	}
	return swept
}

func toInt64s(ids []uint64) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

func (p *Product) emitLocked(ctx context.Context, e Event) {
	if p.sink == nil {
		return
	}
	p.sink.PolicyEvent(ctx, e)
}
