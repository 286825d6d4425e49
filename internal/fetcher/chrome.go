package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

// ChromeOptions parameterise the headless Chrome renderer.
type ChromeOptions struct {
	ExecPath     string
	Headless     bool
	UserAgent    string
	LoadTimeout  time.Duration
	WindowWidth  int
	WindowHeight int
}

// ChromeBrowser renders pages in a headless Chrome tab via the DevTools protocol.
type ChromeBrowser struct {
	opts   ChromeOptions
	logger zerolog.Logger

	mu          sync.Mutex
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
}

// NewChromeBrowser constructs a renderer. Chrome is launched lazily on first Load.
func NewChromeBrowser(opts ChromeOptions, logger zerolog.Logger) *ChromeBrowser {
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 30 * time.Second
	}
	if opts.WindowWidth <= 0 || opts.WindowHeight <= 0 {
		opts.WindowWidth, opts.WindowHeight = 1920, 1080
	}
	return &ChromeBrowser{opts: opts, logger: logger.With().Str("component", "chrome").Logger()}
}

// Load navigates the tab to url and waits for the load event.
func (b *ChromeBrowser) Load(ctx context.Context, url string) error {
	tab, err := b.tab()
	if err != nil {
		return err
	}
	if err := b.run(ctx, tab, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// HTML returns the outer HTML of the current document.
func (b *ChromeBrowser) HTML(ctx context.Context) (string, error) {
	tab, err := b.tab()
	if err != nil {
		return "", err
	}
	var html string
	if err := b.run(ctx, tab, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return html, nil
}

// Close shuts the tab and the browser process down.
func (b *ChromeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tabCancel != nil {
		b.tabCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	b.tabCtx, b.tabCancel, b.allocCancel = nil, nil, nil
	return nil
}

func (b *ChromeBrowser) tab() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tabCtx != nil {
		return b.tabCtx, nil
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.opts.Headless),
		chromedp.WindowSize(b.opts.WindowWidth, b.opts.WindowHeight),
	)
	if b.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(b.opts.ExecPath))
	}
	if b.opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(b.opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		b.logger.Debug().Msgf(format, args...)
	}))

	// the first Run starts the browser; it must use the tab context itself,
	// otherwise a derived deadline would tear the browser down with it
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	b.tabCtx, b.tabCancel, b.allocCancel = tabCtx, tabCancel, allocCancel
	b.logger.Debug().Bool("headless", b.opts.Headless).Msg("chrome started")
	return tabCtx, nil
}

func (b *ChromeBrowser) run(ctx context.Context, tab context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(tab, b.opts.LoadTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return errors.Join(ctx.Err(), err)
	}
	return err
}

var _ Browser = (*ChromeBrowser)(nil)
