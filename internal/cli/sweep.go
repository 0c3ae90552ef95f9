package cli

import (
	"github.com/spf13/cobra"

	"coverline/internal/app"
)

var sweepDryRun bool

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a single sweep pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.SweepOptions{
			DryRun: sweepDryRun,
		}
		return getApp().Sweep(cmd.Context(), opts)
	},
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepDryRun, "dry-run", false, "Run without writing to storage")
}
