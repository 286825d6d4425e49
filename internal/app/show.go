package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"hyperliquid-watch/internal/storage"
)

// Show prints the most recent journalled runs.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn 未配置 (database not configured)，无法查看运行记录")
	}
	defer closeStore()

	return showRuns(ctx, a.Out, store, opts.Limit)
}

func showRuns(ctx context.Context, out io.Writer, history storage.RunHistory, limit int) error {
	runs, err := history.ListRecentRuns(ctx, limit)
	if err != nil {
		return err
	}
	total, err := history.CountRuns(ctx)
	if err != nil {
		return err
	}
	if err := writeRunTable(out, runs); err != nil {
		return err
	}
	if len(runs) > 0 {
		_, err = fmt.Fprintf(out, "\n显示 %d / %d 条运行记录\n", len(runs), total)
	}
	return err
}

func writeRunTable(out io.Writer, runs []storage.RunRecord) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(out, "no runs found")
		return err
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Started (UTC)\tDuration\tRows\tSkipped\tIn window\tQualifying\tStatus\tAlert\tError")

	for _, run := range runs {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\t%s\n",
			run.StartedAt.UTC().Format(time.RFC3339),
			run.Duration().Round(time.Millisecond),
			run.Rows,
			run.Skipped,
			run.Candidates,
			run.Qualifying,
			run.Status,
			run.AlertOutcome,
			sanitizeInline(run.ErrorText()),
		)
	}

	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
