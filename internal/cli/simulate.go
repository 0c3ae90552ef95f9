package cli

import (
	"errors"
	"math/big"

	"github.com/spf13/cobra"

	"coverline/internal/app"
)

var (
	simulateCover       string
	simulateBlocks      uint64
	simulateStrategy    string
	simulatePoolBalance string
)

var simulateClaimCmd = &cobra.Command{
	Use:   "simulate-claim",
	Short: "Rehearse a full policy and claim lifecycle in memory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cover, ok := new(big.Int).SetString(simulateCover, 10)
		if !ok {
			return errors.New("--cover must be a decimal wei amount")
		}
		poolBalance, ok := new(big.Int).SetString(simulatePoolBalance, 10)
		if !ok {
			return errors.New("--pool-balance must be a decimal wei amount")
		}

		opts := app.SimulateClaimOptions{
			CoverAmount:    cover,
			DurationBlocks: simulateBlocks,
			Strategy:       simulateStrategy,
			PoolBalance:    poolBalance,
		}
		return getApp().SimulateClaim(cmd.Context(), opts)
	},
}

func init() {
	simulateClaimCmd.Flags().StringVar(&simulateCover, "cover", "1000000000000000000", "Cover amount in wei")
	simulateClaimCmd.Flags().Uint64Var(&simulateBlocks, "blocks", 19350, "Policy duration in blocks")
	simulateClaimCmd.Flags().StringVar(&simulateStrategy, "strategy", "", "Risk strategy name (defaults to a throwaway strategy)")
	simulateClaimCmd.Flags().StringVar(&simulatePoolBalance, "pool-balance", "100000000000000000000", "Simulated underwriting pool balance in wei")
}
