package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"hyperliquid-watch/internal/alerting"
	"hyperliquid-watch/internal/fetcher"
	"hyperliquid-watch/internal/logging"
	"hyperliquid-watch/internal/metrics"
	"hyperliquid-watch/internal/scheduler"
	"hyperliquid-watch/internal/storage"
	"hyperliquid-watch/internal/trade"
)

const recordTimeout = 5 * time.Second

// Options describe what a run watches.
type Options struct {
	Wallet       string
	URL          string
	Window       trade.Window
	IncludeOther bool
	// DryRun evaluates the page but never dispatches anything.
	DryRun bool
	// Clock overrides the wall clock; used by simulate and tests.
	Clock func() time.Time
	// Retention prunes journalled runs older than this after each run. Zero keeps everything.
	Retention time.Duration
}

// Deps are the collaborators of a Service. Journal, Pruner, Metrics and Scheduler are optional.
type Deps struct {
	Fetcher    fetcher.TableFetcher
	Normalizer *trade.Normalizer
	Dispatcher *alerting.Dispatcher
	Journal    storage.RunJournal
	Pruner     storage.RunRetention
	Metrics    *metrics.Recorder
	Scheduler  *scheduler.Scheduler
}

// Service 串联页面抓取、行解析、窗口筛选与告警。
type Service struct {
	opts   Options
	deps   Deps
	logger zerolog.Logger
	newID  func() uuid.UUID
}

// Report summarises one run. Err carries a run-level failure; RunOnce itself
// never returns an error.
type Report struct {
	RunID      uuid.UUID
	Wallet     string
	StartedAt  time.Time
	CapturedAt time.Time
	FinishedAt time.Time
	NoData     bool
	Stats      trade.Stats
	Events     []trade.Event
	Candidates []trade.Event
	Qualifying []trade.Event
	Outcome    alerting.Outcome
	Err        error
}

// Status classifies the run for the journal and metrics.
func (r Report) Status() string {
	switch {
	case r.Err != nil:
		return storage.StatusErrored
	case r.NoData:
		return storage.StatusNoData
	default:
		return storage.StatusOK
	}
}

// New constructs the watch service.
func New(opts Options, deps Deps, logger zerolog.Logger) (*Service, error) {
	if deps.Fetcher == nil {
		return nil, errors.New("service: fetcher is required")
	}
	if deps.Normalizer == nil {
		return nil, errors.New("service: normalizer is required")
	}
	if deps.Dispatcher == nil {
		return nil, errors.New("service: dispatcher is required")
	}
	if opts.Window <= 0 {
		return nil, errors.New("service: window must be positive")
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		opts:   opts,
		deps:   deps,
		logger: logger.With().Str("component", "service").Logger(),
		newID:  uuid.New,
	}, nil
}

// Run repeats RunOnce on the scheduler until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.deps.Scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.deps.Scheduler.Run(ctx, func(ctx context.Context, _ time.Time) error {
		return s.RunOnce(ctx).Err
	})
}

// RunOnce 执行一次完整的检查：抓取、解析、筛选、告警。
func (s *Service) RunOnce(ctx context.Context) Report {
	report := Report{
		RunID:     s.newID(),
		Wallet:    s.opts.Wallet,
		StartedAt: s.opts.Clock(),
	}
	logger := logging.ForRun(s.logger, report.RunID.String(), s.opts.Wallet)
	logger.Info().Str("url", s.opts.URL).Dur("window", time.Duration(s.opts.Window)).Msg("run started")

	table, err := s.deps.Fetcher.Fetch(ctx, s.opts.URL)
	if err != nil {
		report.Err = fmt.Errorf("acquire table: %w", err)
	} else {
		report.CapturedAt = s.opts.Clock()
		report.Err = s.evaluate(&report, table, logger)
	}

	report.Outcome = s.dispatch(ctx, &report, logger)
	report.FinishedAt = s.opts.Clock()
	s.record(ctx, report, logger)
	return report
}

func (s *Service) evaluate(report *Report, table fetcher.Table, logger zerolog.Logger) error {
	now := report.CapturedAt
	report.NoData = table.NoData
	if table.NoData {
		logger.Info().Msg("wallet has no activity rows")
		return nil
	}

	if err := s.deps.Normalizer.Layout().VerifyHeader(table.Header); err != nil {
		return err
	}

	events, stats := s.deps.Normalizer.NormalizeAll(table.Rows, now)
	report.Events = events
	report.Stats = stats
	if stats.SkippedTotal() > 0 {
		logger.Debug().
			Int("short_row", stats.Skipped[trade.SkipShortRow]).
			Int("bad_time", stats.Skipped[trade.SkipBadTime]).
			Int("panic", stats.Skipped[trade.SkipPanic]).
			Msg("rows skipped during normalisation")
	}

	report.Candidates = trade.Select(events, s.opts.Window, now, false)
	report.Qualifying = trade.Select(events, s.opts.Window, now, !s.opts.IncludeOther)
	return nil
}

func (s *Service) dispatch(ctx context.Context, report *Report, logger zerolog.Logger) alerting.Outcome {
	if s.opts.DryRun {
		return alerting.OutcomeSkipped
	}
	if report.Err != nil {
		if errors.Is(report.Err, context.Canceled) {
			logger.Warn().Err(report.Err).Msg("本次运行被取消，不发送告警")
			return alerting.OutcomeSkipped
		}
		logger.Error().Err(report.Err).Msg("run failed")
		return s.deps.Dispatcher.DispatchError(ctx, report.Err)
	}
	return s.deps.Dispatcher.Dispatch(ctx, report.Qualifying)
}

func (s *Service) record(ctx context.Context, report Report, logger zerolog.Logger) {
	logger.Info().
		Str("status", report.Status()).
		Int("rows", report.Stats.Rows).
		Int("skipped", report.Stats.SkippedTotal()).
		Int("candidates", len(report.Candidates)).
		Int("qualifying", len(report.Qualifying)).
		Str("alert", report.Outcome.String()).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msg("run finished")

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if s.deps.Journal != nil {
		run := storage.RunRecord{
			ID:           report.RunID,
			StartedAt:    report.StartedAt,
			FinishedAt:   report.FinishedAt,
			Wallet:       report.Wallet,
			Window:       time.Duration(s.opts.Window),
			Rows:         report.Stats.Rows,
			Skipped:      report.Stats.SkippedTotal(),
			Candidates:   len(report.Candidates),
			Qualifying:   len(report.Qualifying),
			Status:       report.Status(),
			AlertOutcome: report.Outcome.String(),
		}
		if report.Err != nil {
			msg := report.Err.Error()
			run.Error = &msg
		}
		if err := s.deps.Journal.InsertRun(recordCtx, run); err != nil {
			logger.Error().Err(err).Msg("运行记录写入失败")
		}
	}

	if s.deps.Pruner != nil && s.opts.Retention > 0 {
		cutoff := report.StartedAt.Add(-s.opts.Retention)
		removed, err := s.deps.Pruner.DeleteRunsBefore(recordCtx, cutoff)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to prune run journal")
		} else if removed > 0 {
			logger.Debug().Int64("removed", removed).Time("cutoff", cutoff).Msg("run journal pruned")
		}
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.Observe(metrics.RunSample{
			StartedAt:    report.StartedAt,
			Duration:     report.FinishedAt.Sub(report.StartedAt),
			Rows:         report.Stats.Rows,
			Skipped:      report.Stats.SkippedTotal(),
			Candidates:   len(report.Candidates),
			Qualifying:   len(report.Qualifying),
			Status:       report.Status(),
			AlertOutcome: report.Outcome.String(),
		})
		if err := s.deps.Metrics.Push(recordCtx); err != nil {
			logger.Warn().Err(err).Msg("failed to push metrics")
		}
	}
}
