package app

import (
	"context"
	"time"

	"coverline/internal/service"
	"coverline/internal/storage"
)

// Sweep runs a single sweep pass: refresh the ledger clock and pool feeds,
// expire lapsed policies, settle owed balances, and record one utilization
// sample. With DryRun the sample is not persisted.
func (a *App) Sweep(ctx context.Context, opts SweepOptions) error {
	engine, err := a.BuildEngine()
	if err != nil {
		return err
	}

	var sampleStore storage.UtilizationStore
	if opts.DryRun {
		a.Logger.Warn().Msg("sweep dry-run: samples will not be persisted")
	} else {
		store, closeStore, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		if store != nil {
			sampleStore = store
			engine.Product.SetEventSink(newJournalSink(store, a.Logger))
		}
		if closeStore != nil {
			defer closeStore()
		}
	}

	svc := service.New(a.Config, service.Deps{
		Head:     engine.Head,
		Feeds:    engine.Feeds,
		Provider: engine.Provider,
		Product:  engine.Product,
		RiskMgr:  engine.Risk,
		Vault:    engine.Vault,
		Escrow:   engine.Escrow,
		Samples:  sampleStore,
		Notifier: a.newNotifier(),
	}, a.Logger)

	bucket := time.Now().UTC().Truncate(a.Config.Scheduler.Interval)
	return svc.ProcessBucket(ctx, bucket)
}
