package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

type contentState int

const (
	statePopulated contentState = iota + 1
	stateNoData
)

// Acquirer drives a Browser through load, synchronization and extraction.
type Acquirer struct {
	browser Browser
	policy  SyncPolicy
	logger  zerolog.Logger
}

// NewAcquirer wires a browser and sync policy together.
func NewAcquirer(browser Browser, policy SyncPolicy, logger zerolog.Logger) *Acquirer {
	return &Acquirer{
		browser: browser,
		policy:  policy.withDefaults(),
		logger:  logger.With().Str("component", "table_acquirer").Logger(),
	}
}

// Fetch loads url and returns the table once it is populated, or an empty
// table when the page shows its no-data marker.
func (a *Acquirer) Fetch(ctx context.Context, url string) (Table, error) {
	if err := a.load(ctx, url); err != nil {
		return Table{}, err
	}

	state, err := a.waitForContent(ctx)
	if err != nil {
		return Table{}, err
	}
	if state == stateNoData {
		a.logger.Info().Str("url", url).Msg("页面显示暂无交易记录")
		return Table{NoData: true}, nil
	}

	// rows can still be repainting after the first match
	if err := sleepContext(ctx, a.policy.SettleDelay); err != nil {
		return Table{}, err
	}

	html, err := a.browser.HTML(ctx)
	if err != nil {
		return Table{}, fmt.Errorf("%w: snapshot after settle: %w", ErrLoadFailed, err)
	}
	snap, err := parseSnapshot(html, a.policy)
	if err != nil {
		return Table{}, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	a.logger.Debug().Int("rows", len(snap.rows)).Int("header_cells", len(snap.header)).Msg("table extracted")
	return Table{Header: snap.header, Rows: snap.rows}, nil
}

func (a *Acquirer) load(ctx context.Context, url string) error {
	var lastErr error
	for attempt := 1; attempt <= a.policy.LoadAttempts; attempt++ {
		err := a.browser.Load(ctx, url)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}

		a.logger.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", a.policy.LoadAttempts).Msg("page load failed")
		if attempt < a.policy.LoadAttempts {
			if err := sleepContext(ctx, a.policy.RetryDelay*time.Duration(attempt)); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrLoadFailed, a.policy.LoadAttempts, lastErr)
}

// waitForContent polls until rows are populated or the no-data marker shows.
// Both conditions race, each against its own deadline.
func (a *Acquirer) waitForContent(ctx context.Context) (contentState, error) {
	start := time.Now()
	rowsDeadline := start.Add(a.policy.RowsTimeout)
	noDataDeadline := start.Add(a.policy.NoDataTimeout)

	ticker := time.NewTicker(a.policy.PollInterval)
	defer ticker.Stop()

	for {
		now := time.Now()
		html, err := a.browser.HTML(ctx)
		if err != nil {
			a.logger.Debug().Err(err).Msg("snapshot failed while waiting")
		} else if snap, err := parseSnapshot(html, a.policy); err != nil {
			a.logger.Debug().Err(err).Msg("snapshot unparsable while waiting")
		} else {
			if !now.After(rowsDeadline) && snap.populated(a.policy.MinCells) {
				return statePopulated, nil
			}
			if !now.After(noDataDeadline) && snap.noData {
				return stateNoData, nil
			}
		}

		if now.After(rowsDeadline) && now.After(noDataDeadline) {
			return 0, fmt.Errorf("%w after %s", ErrTimeout, time.Since(start).Round(time.Millisecond))
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ TableFetcher = (*Acquirer)(nil)
