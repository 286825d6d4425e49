package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"hyperliquid-watch/internal/alerting"
	"hyperliquid-watch/internal/config"
	"hyperliquid-watch/internal/fetcher"
	"hyperliquid-watch/internal/metrics"
	"hyperliquid-watch/internal/reltime"
	"hyperliquid-watch/internal/scheduler"
	"hyperliquid-watch/internal/service"
	"hyperliquid-watch/internal/storage"
	"hyperliquid-watch/internal/trade"
)

// ErrRunFailed is returned by Check when --fail-on-error is set and the run errored.
var ErrRunFailed = errors.New("watch run failed")

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config: cfg,
		Logger: logger.With().Str("component", "app").Logger(),
		Out:    os.Stdout,
	}
}

// CheckOptions configure a one-shot run.
type CheckOptions struct {
	FailOnError bool
	DryRun      bool
}

// SimulateOptions configure a run over a saved page.
type SimulateOptions struct {
	HTMLPath string
	Send     bool
	Now      *time.Time
}

// ExportOptions hold parameters for exporting run history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// PruneOptions configure the prune command. Zero OlderThan falls back to database.retention.
type PruneOptions struct {
	OlderThan time.Duration
	Now       *time.Time
}

func (a *App) newBrowser() fetcher.Browser {
	b := a.Config.Browser
	if strings.EqualFold(b.Kind, "static") {
		return fetcher.NewStaticBrowser(b.LoadTimeout, b.UserAgent)
	}
	return fetcher.NewChromeBrowser(fetcher.ChromeOptions{
		ExecPath:     b.ExecPath,
		Headless:     b.Headless,
		UserAgent:    b.UserAgent,
		LoadTimeout:  b.LoadTimeout,
		WindowWidth:  b.WindowWidth,
		WindowHeight: b.WindowHeight,
	}, a.Logger)
}

func (a *App) syncPolicy() fetcher.SyncPolicy {
	b := a.Config.Browser
	return fetcher.SyncPolicy{
		TableSelector:  b.TableSelector,
		RowSelector:    b.RowSelector,
		CellSelector:   b.CellSelector,
		HeaderSelector: b.HeaderSelector,
		NoDataSelector: b.NoDataSelector,
		NoDataText:     b.NoDataText,
		MinCells:       b.MinCells,
		RowsTimeout:    b.RowsTimeout,
		NoDataTimeout:  b.NoDataTimeout,
		PollInterval:   b.PollInterval,
		SettleDelay:    b.SettleDelay,
		LoadAttempts:   b.LoadAttempts,
		RetryDelay:     b.RetryDelay,
	}
}

func (a *App) newNormalizer() (*trade.Normalizer, error) {
	layout, err := a.Config.ActiveLayout()
	if err != nil {
		return nil, err
	}
	loc, err := a.Config.Time.LoadLocation()
	if err != nil {
		return nil, err
	}

	resolver := reltime.NewResolver()
	resolver.Location = loc
	if len(a.Config.Time.AbsoluteLayouts) > 0 {
		resolver.AbsoluteLayouts = a.Config.Time.AbsoluteLayouts
	}
	for unit, d := range a.Config.Time.Units {
		resolver.Units[strings.ToLower(unit)] = d
	}
	return trade.NewNormalizer(layout, resolver), nil
}

func (a *App) newNotifier() (alerting.Notifier, error) {
	var channels []alerting.Notifier
	if a.Config.ChannelEnabled("telegram") {
		cfg := a.Config.Alerting.Telegram
		channels = append(channels, alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, a.Config.Alerting.RequestTimeout, a.Logger))
	}
	if a.Config.ChannelEnabled("discord") {
		cfg := a.Config.Alerting.Discord
		discord, err := alerting.NewDiscordNotifier(cfg.BotToken, cfg.ChannelID, a.Logger)
		if err != nil {
			return nil, err
		}
		channels = append(channels, discord)
	}

	switch len(channels) {
	case 0:
		a.Logger.Warn().Msg("未配置任何告警通道，告警将被丢弃")
		return nil, nil
	case 1:
		return channels[0], nil
	default:
		return alerting.NewMultiNotifier(channels...), nil
	}
}

func (a *App) newDispatcher(notifier alerting.Notifier) *alerting.Dispatcher {
	return alerting.NewDispatcher(notifier, alerting.DispatcherOptions{
		Banner: a.Config.Watch.Banner,
		Cap:    a.Config.Watch.AlertCap,
		Wallet: a.Config.Wallet.Address,
	}, a.Logger)
}

func (a *App) newRecorder() *metrics.Recorder {
	if a.Config.Metrics.PushgatewayURL == "" {
		return nil
	}
	return metrics.NewRecorder(metrics.Options{
		PushgatewayURL: a.Config.Metrics.PushgatewayURL,
		Job:            a.Config.Metrics.Job,
		Wallet:         a.Config.Wallet.Address,
	}, a.Logger)
}

func (a *App) serviceOptions() (service.Options, error) {
	if a.Config.Wallet.Address == "" {
		return service.Options{}, errors.New("wallet.address is required")
	}
	return service.Options{
		Wallet:       a.Config.Wallet.Address,
		URL:          a.Config.Wallet.URL(),
		Window:       trade.Window(a.Config.Watch.Window),
		IncludeOther: a.Config.Watch.IncludeOther,
		Retention:    a.Config.Database.Retention,
	}, nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, store.Close, nil
}

// buildService wires a live service. The returned closer releases the browser and the journal.
func (a *App) buildService(ctx context.Context, opts service.Options, sched *scheduler.Scheduler) (*service.Service, func(), error) {
	normalizer, err := a.newNormalizer()
	if err != nil {
		return nil, nil, err
	}
	notifier, err := a.newNotifier()
	if err != nil {
		return nil, nil, err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		// the journal is optional; a broken database must not stop alerts
		a.Logger.Error().Err(err).Msg("run journal unavailable; continuing without it")
		store, closeStore = nil, nil
	}
	if store == nil && err == nil {
		a.Logger.Debug().Msg("database.dsn not configured; run journal disabled")
	}

	browser := a.newBrowser()
	deps := service.Deps{
		Fetcher:    fetcher.NewAcquirer(browser, a.syncPolicy(), a.Logger),
		Normalizer: normalizer,
		Dispatcher: a.newDispatcher(notifier),
		Metrics:    a.newRecorder(),
		Scheduler:  sched,
	}
	if store != nil {
		deps.Journal = store
		deps.Pruner = store
	}

	svc, err := service.New(opts, deps, a.Logger)
	if err != nil {
		_ = browser.Close()
		if closeStore != nil {
			closeStore()
		}
		return nil, nil, err
	}

	closer := func() {
		if err := browser.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("failed to close browser")
		}
		if closeStore != nil {
			closeStore()
		}
	}
	return svc, closer, nil
}

// Check 执行一次检查，适合由 cron 等外部调度触发。
func (a *App) Check(ctx context.Context, opts CheckOptions) (service.Report, error) {
	svcOpts, err := a.serviceOptions()
	if err != nil {
		return service.Report{}, err
	}
	svcOpts.DryRun = opts.DryRun

	svc, closer, err := a.buildService(ctx, svcOpts, nil)
	if err != nil {
		return service.Report{}, err
	}
	defer closer()

	report := svc.RunOnce(ctx)
	if report.Err != nil && opts.FailOnError {
		return report, fmt.Errorf("%w: %w", ErrRunFailed, report.Err)
	}
	return report, nil
}

// Watch runs the check on the built-in scheduler until interrupted.
func (a *App) Watch(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svcOpts, err := a.serviceOptions()
	if err != nil {
		return err
	}

	interval := a.Config.Scheduler.Interval
	if interval > a.Config.Watch.ExpectedInterval && a.Config.Watch.Window < interval+a.Config.Watch.SafetyMargin {
		return fmt.Errorf("scheduler.interval %s is not covered by watch.window %s", interval, a.Config.Watch.Window)
	}

	sched, err := scheduler.New(scheduler.Options{
		Interval:     interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		RunOnStart:   a.Config.Scheduler.RunOnStart,
	}, a.Logger)
	if err != nil {
		return err
	}

	svc, closer, err := a.buildService(ctx, svcOpts, sched)
	if err != nil {
		return err
	}
	defer closer()

	a.Logger.Info().Dur("interval", interval).Str("wallet", svcOpts.Wallet).Msg("starting watch loop")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watch loop terminated with error")
		return err
	}

	a.Logger.Info().Msg("监控循环已停止")
	return nil
}
