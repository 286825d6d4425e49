package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"hyperliquid-watch/internal/storage"
)

// Export renders run history as CSV and/or PNG.
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
		return errors.New("database.dsn 未配置 (database not configured)，无法导出")
	}
	defer closeStore()

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

	runs, err := store.ListRunsBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		a.Logger.Info().Msg("导出窗口内没有运行记录")
		return nil
	}

	downsampled := downsampleRuns(runs, opts.MaxPoints)
	a.Logger.Info().Int("total", len(runs)).Int("exported", len(downsampled)).Msg("exporting runs")

	if opts.CSVPath != "" {
		if err := writeRunsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeRunsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleRuns(runs []storage.RunRecord, max int) []storage.RunRecord {
	if max <= 0 || len(runs) <= max {
		return runs
	}
	if max == 1 {
		return runs[len(runs)-1:]
	}

	result := make([]storage.RunRecord, 0, max)
	step := float64(len(runs)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(runs) {
			idx = len(runs) - 1
		}
		result = append(result, runs[idx])
	}
	return result
}

func writeRunsCSV(path string, runs []storage.RunRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{"run_id", "started_at", "duration_ms", "wallet", "window_s", "rows", "skipped", "in_window", "qualifying", "status", "alert", "error"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, run := range runs {
		record := []string{
			run.ID.String(),
			run.StartedAt.UTC().Format(time.RFC3339),
			strconv.FormatInt(run.Duration().Milliseconds(), 10),
			run.Wallet,
			strconv.FormatFloat(run.Window.Seconds(), 'f', 0, 64),
			strconv.Itoa(run.Rows),
			strconv.Itoa(run.Skipped),
			strconv.Itoa(run.Candidates),
			strconv.Itoa(run.Qualifying),
			run.Status,
			run.AlertOutcome,
			run.ErrorText(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeRunsPNG(path string, runs []storage.RunRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	if len(runs) < 2 {
		return errors.New("at least two runs are needed to draw a chart")
	}

	x := make([]time.Time, len(runs))
	rows := make([]float64, len(runs))
	qualifying := make([]float64, len(runs))
	duration := make([]float64, len(runs))

	for i, run := range runs {
		x[i] = run.StartedAt
		rows[i] = float64(run.Rows)
		qualifying[i] = float64(run.Qualifying)
		duration[i] = run.Duration().Seconds()
	}

	countFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Rows / trades",
			ValueFormatter: countFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name: "Run duration (s)",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.1f")
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Rows",
				XValues: x,
				YValues: rows,
			},
			chart.TimeSeries{
				Name:    "Qualifying",
				XValues: x,
				YValues: qualifying,
			},
			chart.TimeSeries{
				Name:    "Duration",
				XValues: x,
				YValues: duration,
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
