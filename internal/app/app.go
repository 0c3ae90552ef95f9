package app

import (
	"context"
	"errors"
	"math/big"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"coverline/internal/alerting"
	"coverline/internal/config"
	"coverline/internal/scheduler"
	"coverline/internal/service"
	"coverline/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running coverage service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	engine, err := a.BuildEngine()
	if err != nil {
		return err
	}

	var sampleStore storage.UtilizationStore
	if store != nil {
		sampleStore = store
		engine.Product.SetEventSink(newJournalSink(store, a.Logger))
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc := service.New(a.Config, service.Deps{
		Scheduler: sched,
		Head:      engine.Head,
		Feeds:     engine.Feeds,
		Provider:  engine.Provider,
		Product:   engine.Product,
		RiskMgr:   engine.Risk,
		Vault:     engine.Vault,
		Escrow:    engine.Escrow,
		Samples:   sampleStore,
		Notifier:  a.newNotifier(),
	}, a.Logger)

	a.Logger.Info().Str("product", a.Config.Product.Name).Msg("starting coverage service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("coverage service stopped")
	return nil
}

// ExportOptions hold parameters for exporting utilization history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit    int
	PolicyID int64
}

// SweepOptions configure the one-shot sweep.
type SweepOptions struct {
	DryRun bool
}

// SimulateClaimOptions drive the end-to-end claim rehearsal.
type SimulateClaimOptions struct {
	CoverAmount    *big.Int
	DurationBlocks uint64
	Strategy       string
	PoolBalance    *big.Int
}
