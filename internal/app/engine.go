package app

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"coverline/internal/appraisal"
	"coverline/internal/chainhead"
	"coverline/internal/claims"
	"coverline/internal/farming"
	"coverline/internal/gov"
	"coverline/internal/ledger"
	"coverline/internal/policy"
	"coverline/internal/poolfeed"
	"coverline/internal/product"
	"coverline/internal/risk"
	"coverline/internal/storage"
	"coverline/internal/twap"
	"coverline/internal/vault"
)

// Engine bundles the assembled coverage components for one deployment.
type Engine struct {
	Clock    *ledger.ManualClock
	Gov      *gov.Governance
	Policies *policy.Manager
	Provider *risk.DataProvider
	Risk     *risk.Manager
	Bank     *vault.MemoryBank
	Vault    *vault.Vault
	Escrow   *claims.Escrow
	Product  *product.Product
	Farming  *farming.Controller

	Head  *chainhead.Follower
	Feeds []*poolfeed.Feed
}

// BuildEngine assembles the coverage engine from configuration.
func (a *App) BuildEngine() (*Engine, error) {
	cfg := a.Config

	if !common.IsHexAddress(cfg.Product.Address) {
		return nil, fmt.Errorf("product.address %q is not a valid address", cfg.Product.Address)
	}
	if !common.IsHexAddress(cfg.Product.Governor) {
		return nil, fmt.Errorf("product.governor %q is not a valid address", cfg.Product.Governor)
	}

	clock := ledger.NewManualClock(0, time.Now().UTC().Unix())
	governance := gov.New(common.HexToAddress(cfg.Product.Governor))
	policies := policy.NewManager()
	provider := risk.NewDataProvider()
	riskMgr := risk.NewManager(provider, cfg.Risk.CoverDivisor)
	bank := vault.NewMemoryBank()
	v := vault.New(bank, a.Logger)
	escrow := claims.NewEscrow(int64(cfg.Claims.Cooldown.Seconds()), v, clock, a.Logger)

	productAddr := common.HexToAddress(cfg.Product.Address)
	for _, s := range cfg.Risk.Strategies {
		if err := riskMgr.AddStrategy(s.Name, s.Weight); err != nil {
			return nil, fmt.Errorf("register strategy %q: %w", s.Name, err)
		}
		if s.ProductWeight > 0 {
			if err := riskMgr.SetProductWeight(s.Name, productAddr, s.ProductWeight); err != nil {
				return nil, fmt.Errorf("set product weight for strategy %q: %w", s.Name, err)
			}
		}
	}

	var appraiser product.PositionAppraiser = product.DeclaredAppraiser{}
	if cfg.Product.Appraiser == "erc20" {
		appraiser = appraisal.NewERC20(appraisal.ERC20Options{
			RPCURL:  cfg.Chain.RPCURL,
			Timeout: cfg.Chain.RequestTimeout,
		}, a.Logger)
	}

	prod := product.New(product.Options{
		Name:            cfg.Product.Name,
		Address:         productAddr,
		ChainID:         big.NewInt(cfg.Chain.ChainID),
		Price:           cfg.Product.Price,
		MinPeriodBlocks: cfg.Product.MinPeriodBlocks,
		MaxPeriodBlocks: cfg.Product.MaxPeriodBlocks,
	}, policies, riskMgr, v, escrow, clock, appraiser, governance, a.Logger)

	for _, signer := range cfg.Product.Signers {
		if !common.IsHexAddress(signer) {
			return nil, fmt.Errorf("product signer %q is not a valid address", signer)
		}
		if err := prod.AddSigner(governance.Current(), common.HexToAddress(signer)); err != nil {
			return nil, fmt.Errorf("register signer %q: %w", signer, err)
		}
	}

	eng := &Engine{
		Clock:    clock,
		Gov:      governance,
		Policies: policies,
		Provider: provider,
		Risk:     riskMgr,
		Bank:     bank,
		Vault:    v,
		Escrow:   escrow,
		Product:  prod,
	}

	if cfg.Chain.RPCURL != "" {
		eng.Head = chainhead.NewFollower(chainhead.Options{
			RPCURL:  cfg.Chain.RPCURL,
			Timeout: cfg.Chain.RequestTimeout,
		}, clock, a.Logger)
	}

	for _, feed := range cfg.Pools.Feeds {
		eng.Feeds = append(eng.Feeds, poolfeed.NewFeed(poolfeed.Options{
			Name:    feed.Name,
			URL:     feed.URL,
			Timeout: cfg.Pools.RequestTimeout,
		}, a.Logger))
	}

	if cfg.Farming.Enabled {
		controller, err := a.buildFarming(clock)
		if err != nil {
			return nil, err
		}
		eng.Farming = controller
	}

	return eng, nil
}

func (a *App) buildFarming(clock ledger.Clock) (*farming.Controller, error) {
	cfg := a.Config.Farming
	if cfg.PoolAddress == "" {
		return nil, fmt.Errorf("farming.pool_address must be configured when farming is enabled")
	}

	oracle := twap.NewUniV3(twap.UniV3Options{
		RPCURL:      a.Config.Chain.RPCURL,
		PoolAddress: cfg.PoolAddress,
		Timeout:     a.Config.Chain.RequestTimeout,
	}, a.Logger)

	controllerAddr := common.HexToAddress(a.Config.Product.Address)
	options := farming.NewOptionsFarming(farming.OptionsOptions{
		SwapRateBps:     cfg.SwapRateBps,
		TWAPInterval:    cfg.TWAPInterval,
		MinObservations: cfg.MinObservations,
		ExpiryDuration:  cfg.ExpiryDuration,
	}, oracle, clock, controllerAddr, a.Logger)

	return farming.NewController(controllerAddr, options, a.Logger), nil
}

// journalSink forwards lifecycle events into the Postgres journal.
type journalSink struct {
	store  storage.PolicyEventStore
	logger zerolog.Logger
}

func newJournalSink(store storage.PolicyEventStore, logger zerolog.Logger) *journalSink {
	return &journalSink{store: store, logger: logger.With().Str("component", "journal").Logger()}
}

// PolicyEvent journals one lifecycle event. Errors are logged and swallowed
// so persistence failures never abort a lifecycle operation.
func (j *journalSink) PolicyEvent(ctx context.Context, e product.Event) {
	rec := storage.PolicyEventRecord{
		OccurredAt: time.Now().UTC(),
		Event:      e.Type,
		PolicyID:   int64(e.PolicyID),
		Holder:     e.Holder.Hex(),
		Strategy:   e.Strategy,
		Block:      int64(e.Block),
	}
	if e.Cover != nil {
		rec.CoverWei = decimal.NewFromBigInt(e.Cover, 0)
	}
	if e.Amount != nil {
		rec.AmountWei = decimal.NewFromBigInt(e.Amount, 0)
	}

	if _, err := j.store.InsertPolicyEvent(ctx, rec); err != nil {
		j.logger.Error().Err(err).Str("event", e.Type).Uint64("policy_id", e.PolicyID).Msg("failed to journal policy event")
	}
}

var _ product.EventSink = (*journalSink)(nil)
