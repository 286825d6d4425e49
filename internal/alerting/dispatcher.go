package alerting

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"hyperliquid-watch/internal/trade"
)

const (
	// DefaultBanner heads every trade digest.
	DefaultBanner = "New Hyperliquid trade detected!"
	// DefaultCap is the maximum number of trades listed in one digest.
	DefaultCap = 5

	errorBanner   = "Hyperliquid watcher error"
	maxErrorChars = 500
)

// Outcome describes what happened to a dispatch.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeSent
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// DispatcherOptions parameterise digest rendering.
type DispatcherOptions struct {
	Banner string
	Cap    int
	Wallet string
}

// Dispatcher formats run results and hands them to a Notifier exactly once.
// Delivery failures are logged and reported through the Outcome, never returned.
type Dispatcher struct {
	notifier Notifier
	opts     DispatcherOptions
	logger   zerolog.Logger
}

// NewDispatcher constructs a dispatcher. A nil notifier disables delivery.
func NewDispatcher(notifier Notifier, opts DispatcherOptions, logger zerolog.Logger) *Dispatcher {
	if opts.Banner == "" {
		opts.Banner = DefaultBanner
	}
	if opts.Cap <= 0 {
		opts.Cap = DefaultCap
	}
	return &Dispatcher{
		notifier: notifier,
		opts:     opts,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch sends a digest of events. An empty slice makes no transport call.
func (d *Dispatcher) Dispatch(ctx context.Context, events []trade.Event) Outcome {
	if len(events) == 0 {
		d.logger.Debug().Msg("no qualifying trades; nothing to send")
		return OutcomeSkipped
	}
	text := FormatDigest(d.opts.Banner, d.opts.Wallet, events, d.opts.Cap)
	return d.deliver(ctx, "trade", text)
}

// DispatchError reports a run-level failure through the same channel.
func (d *Dispatcher) DispatchError(ctx context.Context, runErr error) Outcome {
	if runErr == nil {
		return OutcomeSkipped
	}
	return d.deliver(ctx, "error", FormatError(d.opts.Wallet, runErr))
}

// Preview renders the digest without sending it.
func (d *Dispatcher) Preview(events []trade.Event) string {
	return FormatDigest(d.opts.Banner, d.opts.Wallet, events, d.opts.Cap)
}

func (d *Dispatcher) deliver(ctx context.Context, kind, text string) Outcome {
	if d.notifier == nil {
		d.logger.Warn().Str("kind", kind).Msg("no notification channel configured; alert dropped")
		return OutcomeSkipped
	}
	if err := d.notifier.Send(ctx, text); err != nil {
		d.logger.Error().Err(err).Str("kind", kind).Msg("failed to dispatch alert")
		return OutcomeFailed
	}
	d.logger.Info().Str("kind", kind).Msg("alert dispatched")
	return OutcomeSent
}

// FormatDigest renders up to limit events, taken from the front of the
// selection, in chronological order beneath the banner.
func FormatDigest(banner, wallet string, events []trade.Event, limit int) string {
	if limit <= 0 {
		limit = DefaultCap
	}
	shown := events
	if len(shown) > limit {
		shown = shown[:limit]
	}
	ordered := make([]trade.Event, len(shown))
	copy(ordered, shown)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OccurredAt.Before(ordered[j].OccurredAt)
	})

	var b strings.Builder
	b.WriteString(banner)
	b.WriteString("\n")
	if wallet != "" {
		b.WriteString(fmt.Sprintf("Wallet: %s\n", wallet))
	}
	for _, ev := range ordered {
		b.WriteString(FormatEvent(ev))
		b.WriteString("\n")
	}
	if extra := len(events) - len(shown); extra > 0 {
		b.WriteString(fmt.Sprintf("... and %d more\n", extra))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatEvent renders one digest line.
func FormatEvent(ev trade.Event) string {
	return fmt.Sprintf("%s UTC - %s %s %s @ %s",
		ev.OccurredAt.UTC().Format("15:04:05"), ev.Action, ev.Size, ev.Asset, ev.Price)
}

// FormatError renders the watcher health message.
func FormatError(wallet string, err error) string {
	msg := truncateRunes(strings.TrimSpace(err.Error()), maxErrorChars)
	if wallet != "" {
		return fmt.Sprintf("%s (%s): %s", errorBanner, wallet, msg)
	}
	return fmt.Sprintf("%s: %s", errorBanner, msg)
}

// truncateRunes cuts s to at most limit characters without splitting a rune.
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}
