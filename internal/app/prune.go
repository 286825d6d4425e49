package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"hyperliquid-watch/internal/storage"
)

// Prune 删除早于 now-OlderThan 开始的运行记录。
func (a *App) Prune(ctx context.Context, opts PruneOptions) error {
	olderThan := opts.OlderThan
	if olderThan <= 0 {
		olderThan = a.Config.Database.Retention
	}
	if olderThan <= 0 {
		return errors.New("nothing to prune: --older-than not set and database.retention is 0")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn 未配置 (database not configured)，无法清理运行记录")
	}
	defer closeStore()

	now := time.Now().UTC()
	if opts.Now != nil {
		now = opts.Now.UTC()
	}
	removed, err := pruneRuns(ctx, a.Out, store, now.Add(-olderThan))
	if err != nil {
		return err
	}
	a.Logger.Info().Int64("removed", removed).Dur("older_than", olderThan).Msg("run journal pruned")
	return nil
}

func pruneRuns(ctx context.Context, out io.Writer, retention storage.RunRetention, cutoff time.Time) (int64, error) {
	removed, err := retention.DeleteRunsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	_, err = fmt.Fprintf(out, "removed %d runs started before %s\n", removed, cutoff.UTC().Format(time.RFC3339))
	return removed, err
}
