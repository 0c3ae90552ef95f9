package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/crypto"

	"coverline/internal/attest"
	"coverline/internal/ledger"
)

// SimulateClaim rehearses the full policy lifecycle in memory: buy a
// policy, sign a claim with a throwaway authorized signer, submit it, wait
// out the cooldown on the manual clock, and withdraw the payout.
func (a *App) SimulateClaim(ctx context.Context, opts SimulateClaimOptions) error {
	if opts.CoverAmount == nil || opts.CoverAmount.Sign() <= 0 {
		return errors.New("--cover must be greater than zero")
	}
	if opts.DurationBlocks == 0 {
		return errors.New("--blocks must be greater than zero")
	}
	if opts.PoolBalance == nil || opts.PoolBalance.Sign() <= 0 {
		return errors.New("--pool-balance must be greater than zero")
	}
	strategy := opts.Strategy
	if strategy == "" {
		strategy = "rehearsal"
	}

	engine, err := a.BuildEngine()
	if err != nil {
		return err
	}

	engine.Clock.Set(1_000_000, engine.Clock.Timestamp())
	if err := engine.Provider.Set("simulated", opts.PoolBalance); err != nil {
		return err
	}
	if !engine.Risk.StrategyIsActive(strategy) {
		if err := engine.Risk.AddStrategy(strategy, 1); err != nil {
			return err
		}
		if err := engine.Risk.SetProductWeight(strategy, engine.Product.Address(), 1); err != nil {
			return err
		}
	}

	signerKey, err := crypto.GenerateKey()
	if err != nil {
		return fmt.Errorf("generate signer key: %w", err)
	}
	signerAddr := crypto.PubkeyToAddress(signerKey.PublicKey)
	if err := engine.Product.AddSigner(engine.Gov.Current(), signerAddr); err != nil {
		return err
	}

	holderKey, err := crypto.GenerateKey()
	if err != nil {
		return fmt.Errorf("generate holder key: %w", err)
	}
	holder := crypto.PubkeyToAddress(holderKey.PublicKey)

	quote := engine.Product.GetQuote(opts.CoverAmount, opts.DurationBlocks)
	fmt.Fprintf(os.Stdout, "quote: %s wei for %s wei cover over %d blocks\n", quote, opts.CoverAmount, opts.DurationBlocks)

	policyID, err := engine.Product.BuyPolicy(ctx, holder, opts.CoverAmount, opts.DurationBlocks, opts.CoverAmount.Bytes(), strategy, quote)
	if err != nil {
		return fmt.Errorf("buy policy: %w", err)
	}
	fmt.Fprintf(os.Stdout, "policy %d bought by %s\n", policyID, holder.Hex())

	deadline := engine.Clock.Timestamp() + engine.Escrow.Cooldown() + 3600
	claim := attest.Claim{
		PolicyID:  policyID,
		Claimant:  holder,
		AmountOut: ledger.Clone(opts.CoverAmount),
		Deadline:  deadline,
	}
	domain := attest.DomainSeparator(engine.Product.Name(), big.NewInt(a.Config.Chain.ChainID), engine.Product.Address())
	signature, err := attest.Sign(attest.Digest(domain, claim.StructHash()), signerKey)
	if err != nil {
		return fmt.Errorf("sign claim: %w", err)
	}

	if err := engine.Product.SubmitClaim(ctx, holder, policyID, claim.AmountOut, deadline, signature); err != nil {
		return fmt.Errorf("submit claim: %w", err)
	}
	fmt.Fprintf(os.Stdout, "claim accepted; escrow liability %s wei\n", engine.Escrow.TotalLiability())

	engine.Clock.AdvanceTime(engine.Escrow.Cooldown())
	paid, err := engine.Escrow.WithdrawClaimsPayout(ctx, holder, policyID)
	if err != nil {
		return fmt.Errorf("withdraw payout: %w", err)
	}

	fmt.Fprintf(os.Stdout, "payout delivered: %s wei (holder balance %s wei)\n", paid, engine.Bank.BalanceOf(holder))
	if owed := engine.Vault.Owed(holder); owed.Sign() > 0 {
		fmt.Fprintf(os.Stdout, "unfunded remainder owed to holder: %s wei\n", owed)
	}
	return nil
}
