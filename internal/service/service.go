package service

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"coverline/internal/alerting"
	"coverline/internal/chainhead"
	"coverline/internal/claims"
	"coverline/internal/config"
	"coverline/internal/poolfeed"
	"coverline/internal/product"
	"coverline/internal/risk"
	"coverline/internal/scheduler"
	"coverline/internal/storage"
	"coverline/internal/vault"
)

// Service orchestrates the periodic sweep: clock refresh, pool refresh,
// policy expiry, owed settlement, utilization sampling, and alerting.
type Service struct {
	scheduler *scheduler.Scheduler
	head      *chainhead.Follower
	feeds     []*poolfeed.Feed
	provider  *risk.DataProvider
	product   *product.Product
	riskMgr   *risk.Manager
	vault     *vault.Vault
	escrow    *claims.Escrow
	samples   storage.UtilizationStore
	notifier  alerting.Notifier
	logger    zerolog.Logger

	threshold     decimal.Decimal
	channels      []string
	alertsOn      bool
	alertCooldown time.Duration
	lastAlert     map[string]time.Time
	locker        storage.AdvisoryLocker
	lockKey       int64
}

// Deps bundles the sweep collaborators.
type Deps struct {
	Scheduler *scheduler.Scheduler
	Head      *chainhead.Follower
	Feeds     []*poolfeed.Feed
	Provider  *risk.DataProvider
	Product   *product.Product
	RiskMgr   *risk.Manager
	Vault     *vault.Vault
	Escrow    *claims.Escrow
	Samples   storage.UtilizationStore
	Notifier  alerting.Notifier
}

// New constructs the sweep service.
func New(cfg *config.Config, deps Deps, logger zerolog.Logger) *Service {
	threshold := decimal.Zero
	if cfg.Alerting.Enabled && cfg.Alerting.UtilizationThresholdPct > 0 {
		threshold = decimal.NewFromFloat(cfg.Alerting.UtilizationThresholdPct)
	}

	var locker storage.AdvisoryLocker
	if l, ok := deps.Samples.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler:     deps.Scheduler,
		head:          deps.Head,
		feeds:         deps.Feeds,
		provider:      deps.Provider,
		product:       deps.Product,
		riskMgr:       deps.RiskMgr,
		vault:         deps.Vault,
		escrow:        deps.Escrow,
		samples:       deps.Samples,
		notifier:      deps.Notifier,
		logger:        logger.With().Str("component", "service").Logger(),
		threshold:     threshold,
		channels:      cfg.Alerting.Channels,
		alertsOn:      cfg.Alerting.Enabled,
		alertCooldown: cfg.Alerting.Cooldown,
		lastAlert:     make(map[string]time.Time),
		locker:        locker,
		lockKey:       cfg.Scheduler.AdvisoryLockKey,
	}
}

// Run begins the aligned sweep loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessBucket)
}

// ProcessBucket runs one sweep pass under the advisory lock.
func (s *Service) ProcessBucket(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip bucket because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return s.executeBucket(ctx, bucket)
}

func (s *Service) executeBucket(ctx context.Context, bucket time.Time) error {
	if s.head != nil {
		if err := s.head.Refresh(ctx); err != nil {
			return fmt.Errorf("refresh chain head: %w", err)
		}
	}

	for _, feed := range s.feeds {
		if err := feed.Refresh(ctx, s.provider); err != nil {
			s.logger.Error().Err(err).Str("pool", feed.Name()).Msg("failed to refresh pool feed")
		}
	}

	expired := s.product.SweepExpired(ctx)
	if len(expired) > 0 {
		s.logger.Info().Int("count", len(expired)).Msg("expired lapsed policies")
	}

	if settled, err := s.vault.SettleAll(ctx); err != nil {
		s.logger.Error().Err(err).Msg("owed settlement pass failed")
	} else if settled.Sign() > 0 {
		s.logger.Info().Str("settled_wei", settled.String()).Msg("settled owed balances")
	}

	s.recordSamples(ctx, bucket)
	return nil
}

func (s *Service) recordSamples(ctx context.Context, bucket time.Time) {
	vaultWei := decimal.NewFromBigInt(s.vault.Balance(), 0)
	liabilityWei := decimal.NewFromBigInt(s.escrow.TotalLiability(), 0)

	for _, strategy := range s.riskMgr.StrategyNames() {
		active := s.product.ActiveCoverAmount(strategy)
		maxCover, err := s.riskMgr.MaxCoverPerProduct(strategy, s.product.Address())
		if err != nil {
			s.logger.Error().Err(err).Str("strategy", strategy).Msg("failed to resolve max cover")
			continue
		}

		sample := storage.UtilizationSample{
			Bucket:         bucket,
			Product:        s.product.Name(),
			Strategy:       strategy,
			ActiveCoverWei: decimal.NewFromBigInt(active, 0),
			MaxCoverWei:    decimal.NewFromBigInt(maxCover, 0),
			UtilizationPct: utilizationPct(active, maxCover),
			VaultWei:       vaultWei,
			LiabilityWei:   liabilityWei,
			CreatedAt:      time.Now().UTC(),
		}

		if s.samples != nil {
			if err := s.samples.UpsertUtilizationSample(ctx, sample); err != nil {
				s.logger.Error().Err(err).Time("bucket", bucket).Str("strategy", strategy).Msg("failed to upsert sample")
			}
		}

		s.logger.Info().Time("bucket", bucket).
			Str("strategy", strategy).
			Str("utilization_pct", sample.UtilizationPct.StringFixed(2)).
			Msg("utilization sample recorded")

		s.maybeAlertUtilization(ctx, bucket, strategy, sample)
	}

	s.maybeAlertSolvency(ctx, bucket, vaultWei, liabilityWei)
}

func utilizationPct(active, maxCover *big.Int) decimal.Decimal {
	if maxCover.Sign() == 0 {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(active, 0).
		Div(decimal.NewFromBigInt(maxCover, 0)).
		Mul(decimal.NewFromInt(100))
}

func (s *Service) maybeAlertUtilization(ctx context.Context, bucket time.Time, strategy string, sample storage.UtilizationSample) {
	if !s.alertsOn || s.notifier == nil || s.threshold.IsZero() {
		return
	}
	if !sample.UtilizationPct.GreaterThan(s.threshold) {
		return
	}
	if !s.alertDue(alerting.KindUtilization + ":" + strategy) {
		return
	}

	note := alerting.Notification{
		Bucket:         bucket,
		Kind:           alerting.KindUtilization,
		Product:        s.product.Name(),
		Strategy:       strategy,
		UtilizationPct: sample.UtilizationPct,
		ThresholdPct:   s.threshold,
		ActiveCover:    sample.ActiveCoverWei,
		MaxCover:       sample.MaxCoverWei,
		Channels:       s.channels,
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to dispatch utilization alert")
	}
}

func (s *Service) maybeAlertSolvency(ctx context.Context, bucket time.Time, vaultWei, liabilityWei decimal.Decimal) {
	if !s.alertsOn || s.notifier == nil {
		return
	}
	if liabilityWei.LessThanOrEqual(vaultWei) {
		return
	}
	if !s.alertDue(alerting.KindSolvency) {
		return
	}

	note := alerting.Notification{
		Bucket:       bucket,
		Kind:         alerting.KindSolvency,
		Product:      s.product.Name(),
		VaultBalance: vaultWei,
		Liability:    liabilityWei,
		Channels:     s.channels,
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to dispatch solvency alert")
	}
}

// alertDue enforces the per-key alert cooldown so a sustained breach does
// not page on every bucket.
func (s *Service) alertDue(key string) bool {
	now := time.Now().UTC()
	if last, ok := s.lastAlert[key]; ok && s.alertCooldown > 0 && now.Sub(last) < s.alertCooldown {
		return false
	}
	s.lastAlert[key] = now
	return true
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
