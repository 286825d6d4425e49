package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"hyperliquid-watch/internal/app"
)

var (
	simulateHTML string
	simulateSend bool
	simulateNow  string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "用本地保存的钱包页面模拟一次检查",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateHTML == "" {
			return errors.New("--html 必须提供")
		}

		now, err := parseOptionalTime("--now", simulateNow)
		if err != nil {
			return err
		}

		_, err = getApp().Simulate(cmd.Context(), app.SimulateOptions{
			HTMLPath: simulateHTML,
			Send:     simulateSend,
			Now:      now,
		})
		return err
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateHTML, "html", "", "保存的钱包页面 HTML 文件")
	simulateCmd.Flags().BoolVar(&simulateSend, "send", false, "真正发送告警（默认只打印）")
	simulateCmd.Flags().StringVar(&simulateNow, "now", "", "Reference time for relative ages (RFC3339)")
}
