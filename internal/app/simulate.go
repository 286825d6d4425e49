package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"hyperliquid-watch/internal/alerting"
	"hyperliquid-watch/internal/fetcher"
	"hyperliquid-watch/internal/service"
	"hyperliquid-watch/internal/trade"
)

// a saved document is already complete; waiting only needs one or two polls
const simulateWait = 2 * time.Second

// Simulate 使用本地保存的页面跑一遍完整流程，默认只打印不发送。
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) (service.Report, error) {
	if opts.HTMLPath == "" {
		return service.Report{}, fmt.Errorf("--html is required")
	}
	doc, err := os.ReadFile(opts.HTMLPath)
	if err != nil {
		return service.Report{}, fmt.Errorf("read saved page: %w", err)
	}

	normalizer, err := a.newNormalizer()
	if err != nil {
		return service.Report{}, err
	}

	var notifier alerting.Notifier
	if opts.Send {
		notifier, err = a.newNotifier()
		if err != nil {
			return service.Report{}, err
		}
	}
	dispatcher := a.newDispatcher(notifier)

	policy := a.syncPolicy()
	policy.RowsTimeout = simulateWait
	policy.NoDataTimeout = simulateWait
	policy.SettleDelay = 0
	policy.RetryDelay = 0

	svcOpts := service.Options{
		Wallet:       a.Config.Wallet.Address,
		URL:          opts.HTMLPath,
		Window:       trade.Window(a.Config.Watch.Window),
		IncludeOther: a.Config.Watch.IncludeOther,
		DryRun:       !opts.Send,
	}
	if opts.Now != nil {
		now := opts.Now.UTC()
		svcOpts.Clock = func() time.Time { return now }
	}

	svc, err := service.New(svcOpts, service.Deps{
		Fetcher:    fetcher.NewAcquirer(fetcher.DocumentBrowser{Document: string(doc)}, policy, a.Logger),
		Normalizer: normalizer,
		Dispatcher: dispatcher,
	}, a.Logger)
	if err != nil {
		return service.Report{}, err
	}

	report := svc.RunOnce(ctx)
	a.printReport(report, dispatcher)
	return report, nil
}

func (a *App) printReport(report service.Report, dispatcher *alerting.Dispatcher) {
	fmt.Fprintf(a.Out, "run %s  status=%s  rows=%d  skipped=%d  events=%d  in_window=%d  qualifying=%d  alert=%s\n",
		report.RunID, report.Status(), report.Stats.Rows, report.Stats.SkippedTotal(),
		len(report.Events), len(report.Candidates), len(report.Qualifying), report.Outcome)
	if report.Err != nil {
		fmt.Fprintf(a.Out, "error: %s\n", alerting.FormatError(report.Wallet, report.Err))
		return
	}
	if len(report.Qualifying) == 0 {
		fmt.Fprintln(a.Out, "no qualifying trades in window")
		return
	}
	fmt.Fprintln(a.Out, "---")
	fmt.Fprintln(a.Out, dispatcher.Preview(report.Qualifying))
}
