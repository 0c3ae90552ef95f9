package claims

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"coverline/internal/ledger"
	"coverline/internal/vault"
)

var (
	// ErrNotProduct rejects claim receipt from unregistered products.
	ErrNotProduct = errors.New("!product")
	// ErrNotClaimant rejects withdrawal by anyone but the claimant on record.
	ErrNotClaimant = errors.New("!claimant")
	// ErrNonexistentClaim is returned for unknown or already-withdrawn claims.
	ErrNonexistentClaim = errors.New("query for nonexistent claim")
	// ErrCooldownNotElapsed gates withdrawal until the cooldown passes.
	ErrCooldownNotElapsed = errors.New("cooldown period has not elapsed")
)

// Claim is an approved payout awaiting its cooldown. Amount is wei.
type Claim struct {
	PolicyID   uint64
	Claimant   common.Address
	Amount     *big.Int
	ReceivedAt int64
}

// Escrow holds approved claim payouts behind a fixed cooldown. One claim per
// policy ID; the record is terminal once withdrawn. Payout liquidity risk is
// absorbed by the vault's owed ledger, so an underfunded withdrawal still
// zeroes the claim without losing track of the unpaid remainder.
type Escrow struct {
	mu       sync.Mutex
	cooldown int64
	claims   map[uint64]*Claim
	products map[common.Address]bool
	vault    *vault.Vault
	clock    ledger.Clock
	logger   zerolog.Logger
}

// NewEscrow constructs an escrow with the given cooldown in seconds.
func NewEscrow(cooldownSeconds int64, v *vault.Vault, clock ledger.Clock, logger zerolog.Logger) *Escrow {
	return &Escrow{
		cooldown: cooldownSeconds,
		claims:   make(map[uint64]*Claim),
		products: make(map[common.Address]bool),
		vault:    v,
		clock:    clock,
		logger:   logger.With().Str("component", "claims_escrow").Logger(),
	}
}

// AddProduct authorizes a product to forward claims.
func (e *Escrow) AddProduct(product common.Address) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.products[product] = true
}

// RemoveProduct revokes a product's authorization.
func (e *Escrow) RemoveProduct(product common.Address) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.products, product)
}

// Cooldown returns the configured cooldown in seconds.
func (e *Escrow) Cooldown() int64 {
	return e.cooldown
}

// ReceiveClaim records an approved claim. Callable only by a registered
// product; no funds move until the claimant withdraws after the cooldown.
func (e *Escrow) ReceiveClaim(product common.Address, policyID uint64, claimant common.Address, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.products[product] {
		return ErrNotProduct
	}
	now := e.clock.Timestamp()
	e.claims[policyID] = &Claim{
		PolicyID:   policyID,
		Claimant:   claimant,
		Amount:     ledger.Clone(amount),
		ReceivedAt: now,
	}
	e.logger.Info().
		Uint64("policy_id", policyID).
		Str("claimant", claimant.Hex()).
		Str("amount_wei", amount.String()).
		Int64("received_at", now).
		Msg("claim received")
	return nil
}

// ClaimInfo returns the pending claim for a policy ID.
func (e *Escrow) ClaimInfo(policyID uint64) (*Claim, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.claims[policyID]
	if !ok {
		return nil, ErrNonexistentClaim
	}
	clone := *c
	clone.Amount = ledger.Clone(c.Amount)
	return &clone, nil
}

// Exists reports whether a claim is pending for the policy ID.
func (e *Escrow) Exists(policyID uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.claims[policyID]
	return ok
}

// TotalLiability sums all pending claim amounts plus amounts already owed by
// the vault, the figure the service compares against vault liquidity.
func (e *Escrow) TotalLiability() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	total := big.NewInt(0)
	for _, c := range e.claims {
		total.Add(total, c.Amount)
	}
	return total
}

// PendingPolicyIDs lists policy IDs with pending claims, ascending.
func (e *Escrow) PendingPolicyIDs() []uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]uint64, 0, len(e.claims))
	for id := range e.claims {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// WithdrawClaimsPayout pays the claim to the claimant once the cooldown has
// elapsed. The claim record is removed before the transfer so a replay finds
// nothing to withdraw; any undelivered portion survives on the vault's owed
// ledger and is retrievable via the vault's settle path.
func (e *Escrow) WithdrawClaimsPayout(ctx context.Context, caller common.Address, policyID uint64) (*big.Int, error) {
	e.mu.Lock()
	c, ok := e.claims[policyID]
	if !ok {
		e.mu.Unlock()
		return nil, ErrNonexistentClaim
	}
	if c.Claimant != caller {
		e.mu.Unlock()
		return nil, ErrNotClaimant
	}
	if e.clock.Timestamp() < c.ReceivedAt+e.cooldown {
		e.mu.Unlock()
		return nil, ErrCooldownNotElapsed
	}
	amount := ledger.Clone(c.Amount)
	delete(e.claims, policyID)
	e.mu.Unlock()

	paid, err := e.vault.Payout(ctx, caller, amount)
	if err != nil {
		return nil, err
	}
	e.logger.Info().
		Uint64("policy_id", policyID).
		Str("claimant", caller.Hex()).
		Str("requested_wei", amount.String()).
		Str("paid_wei", paid.String()).
		Msg("claim payout withdrawn")
	return paid, nil
}
