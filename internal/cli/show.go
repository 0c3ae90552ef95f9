package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"coverline/internal/app"
)

var (
	showLimit    int
	showPolicyID int64
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent policy lifecycle events",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit:    showLimit,
			PolicyID: showPolicyID,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of events to display")
	showCmd.Flags().Int64Var(&showPolicyID, "policy", 0, "Show the full history of one policy")
}
