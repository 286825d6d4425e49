package cli

import (
	"github.com/spf13/cobra"

	"hyperliquid-watch/internal/app"
)

var (
	checkFailOnError bool
	checkDryRun      bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Fetch the wallet page once and alert on trades inside the window",
	Long: `check performs a single watch run: it loads the wallet's trade table,
keeps the trades younger than watch.window and sends one digest alert.
Designed to be triggered by an external scheduler such as cron.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := getApp().Check(cmd.Context(), app.CheckOptions{
			FailOnError: checkFailOnError,
			DryRun:      checkDryRun,
		})
		return err
	},
}

func init() {
	checkCmd.Flags().BoolVar(&checkFailOnError, "fail-on-error", false, "Exit non-zero when the run errors")
	checkCmd.Flags().BoolVar(&checkDryRun, "dry-run", false, "Log the digest instead of sending it")
}
