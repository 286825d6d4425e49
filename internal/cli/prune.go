package cli

import (
	"time"

	"github.com/spf13/cobra"

	"hyperliquid-watch/internal/app"
)

var pruneOlderThan time.Duration

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "删除过期的运行记录",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Prune(cmd.Context(), app.PruneOptions{OlderThan: pruneOlderThan})
	},
}

func init() {
	pruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 0, "Delete runs older than this (defaults to database.retention)")
}
