package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"coverline/internal/storage"
)

var weiPerEther = decimal.New(1, 18)

// Export renders utilization history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Scheduler.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	samples, err := store.ListSamplesBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		a.Logger.Info().Msg("no samples found for export window")
		return nil
	}

	downsampled := downsampleSamples(samples, opts.MaxPoints)
	a.Logger.Info().Int("total", len(samples)).Int("exported", len(downsampled)).Msg("exporting samples")

	if opts.CSVPath != "" {
		if err := writeSamplesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeSamplesPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleSamples(samples []storage.UtilizationSample, max int) []storage.UtilizationSample {
	if max <= 0 || len(samples) <= max {
		return samples
	}

	result := make([]storage.UtilizationSample, 0, max)
	step := float64(len(samples)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		result = append(result, samples[idx])
	}
	return result
}

func writeSamplesCSV(path string, samples []storage.UtilizationSample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"bucket_ts", "product", "strategy", "active_cover_wei", "max_cover_wei", "utilization_pct", "vault_wei", "liability_wei"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, sample := range samples {
		record := []string{
			sample.Bucket.Format(time.RFC3339),
			sample.Product,
			sample.Strategy,
			sample.ActiveCoverWei.String(),
			sample.MaxCoverWei.String(),
			sample.UtilizationPct.String(),
			sample.VaultWei.String(),
			sample.LiabilityWei.String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeSamplesPNG(path string, samples []storage.UtilizationSample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(samples))
	utilization := make([]float64, len(samples))
	vaultEth := make([]float64, len(samples))
	liabilityEth := make([]float64, len(samples))

	for i, sample := range samples {
		x[i] = sample.Bucket
		utilization[i] = sample.UtilizationPct.InexactFloat64()
		vaultEth[i] = sample.VaultWei.Div(weiPerEther).InexactFloat64()
		liabilityEth[i] = sample.LiabilityWei.Div(weiPerEther).InexactFloat64()
	}

	pctFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Utilization (%)",
			ValueFormatter: pctFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Balance (ETH)",
			ValueFormatter: pctFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Utilization %",
				XValues: x,
				YValues: utilization,
			},
			chart.TimeSeries{
				Name:    "Vault",
				XValues: x,
				YValues: vaultEth,
				YAxis:   chart.YAxisSecondary,
			},
			chart.TimeSeries{
				Name:    "Claim liability",
				XValues: x,
				YValues: liabilityEth,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
