package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"hyperliquid-watch/internal/app"
)

var (
	exportFrom      string
	exportTo        string
	exportSince     time.Duration
	exportPNGPath   string
	exportCSVPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export watch run history as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportFrom != "" && exportSince > 0 {
			return errors.New("--from and --since are mutually exclusive")
		}

		opts := app.ExportOptions{
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			MaxPoints: exportMaxPoints,
		}

		to, err := parseOptionalTime("--to", exportTo)
		if err != nil {
			return err
		}
		opts.To = to

		from, err := parseOptionalTime("--from", exportFrom)
		if err != nil {
			return err
		}
		opts.From = from

		if exportSince > 0 {
			end := time.Now().UTC()
			if opts.To != nil {
				end = *opts.To
			}
			start := end.Add(-exportSince)
			opts.From = &start
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func parseOptionalTime(flag, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value: %w", flag, err)
	}
	return &ts, nil
}

func init() {
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Start timestamp (RFC3339, inclusive)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "End timestamp (RFC3339, exclusive)")
	exportCmd.Flags().DurationVar(&exportSince, "since", 0, "Export runs started within this duration before --to, e.g. 24h")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum runs to export (defaults to config)")
}
