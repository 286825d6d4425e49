package alerting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"hyperliquid-watch/internal/trade"
)

func event(at time.Time, action trade.Action, size, asset, price string) trade.Event {
	return trade.Event{OccurredAt: at, Action: action, Size: size, Asset: asset, Price: price}
}

func TestDispatchEmptyMakesNoTransportCall(t *testing.T) {
	rec := &recordingNotifier{}
	d := NewDispatcher(rec, DispatcherOptions{}, testLogger())

	if got := d.Dispatch(context.Background(), nil); got != OutcomeSkipped {
		t.Fatalf("expected skipped, got %s", got)
	}
	if len(rec.messages) != 0 {
		t.Fatalf("no message expected, got %d", len(rec.messages))
	}
}

func TestDispatchSendsOneDigest(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := &recordingNotifier{}
	d := NewDispatcher(rec, DispatcherOptions{}, testLogger())

	events := []trade.Event{
		event(now.Add(-2*time.Minute), trade.OpenLong, "10", "BTC", "50,000"),
		event(now.Add(-4*time.Minute), trade.CloseShort, "1.5", "ETH", "2,400"),
	}
	if got := d.Dispatch(context.Background(), events); got != OutcomeSent {
		t.Fatalf("expected sent, got %s", got)
	}
	if len(rec.messages) != 1 {
		t.Fatalf("expected exactly one message, got %d", len(rec.messages))
	}
	want := strings.Join([]string{
		DefaultBanner,
		"11:56:00 UTC - Close Short 1.5 ETH @ 2,400",
		"11:58:00 UTC - Open Long 10 BTC @ 50,000",
	}, "\n")
	if rec.messages[0] != want {
		t.Fatalf("unexpected digest:\n%s\nwant:\n%s", rec.messages[0], want)
	}
}

func TestDispatchFailureIsReportedNotRetried(t *testing.T) {
	rec := &recordingNotifier{err: errors.New("telegram status 500")}
	d := NewDispatcher(rec, DispatcherOptions{}, testLogger())

	events := []trade.Event{event(time.Now(), trade.OpenShort, "1", "SOL", "150")}
	if got := d.Dispatch(context.Background(), events); got != OutcomeFailed {
		t.Fatalf("expected failed, got %s", got)
	}
	if len(rec.messages) != 1 {
		t.Fatalf("failed delivery must not be retried, got %d attempts", len(rec.messages))
	}
}

func TestDispatchWithoutChannel(t *testing.T) {
	d := NewDispatcher(nil, DispatcherOptions{}, testLogger())
	events := []trade.Event{event(time.Now(), trade.OpenShort, "1", "SOL", "150")}
	if got := d.Dispatch(context.Background(), events); got != OutcomeSkipped {
		t.Fatalf("expected skipped without a channel, got %s", got)
	}
}

func TestDispatchError(t *testing.T) {
	rec := &recordingNotifier{}
	d := NewDispatcher(rec, DispatcherOptions{Wallet: "0xabc"}, testLogger())

	if got := d.DispatchError(context.Background(), nil); got != OutcomeSkipped {
		t.Fatalf("nil error should be skipped, got %s", got)
	}
	if got := d.DispatchError(context.Background(), errors.New("table did not render")); got != OutcomeSent {
		t.Fatalf("expected sent, got %s", got)
	}
	if len(rec.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(rec.messages))
	}
	want := "Hyperliquid watcher error (0xabc): table did not render"
	if rec.messages[0] != want {
		t.Fatalf("got %q want %q", rec.messages[0], want)
	}
}

func TestFormatErrorTruncates(t *testing.T) {
	msg := FormatError("", errors.New(strings.Repeat("x", 2000)))
	if len(msg) > maxErrorChars+len(errorBanner)+10 {
		t.Fatalf("message not truncated: %d chars", len(msg))
	}
	if !strings.HasSuffix(msg, "...") {
		t.Fatal("truncated message should end with ellipsis")
	}
}

func TestFormatErrorKeepsValidUTF8(t *testing.T) {
	msg := FormatError("0xabc", errors.New("页面加载失败"+strings.Repeat("超时", 400)))
	if !utf8.ValidString(msg) {
		t.Fatal("truncated message must stay valid UTF-8")
	}
	body := strings.TrimPrefix(msg, "Hyperliquid watcher error (0xabc): ")
	if got := utf8.RuneCountInString(strings.TrimSuffix(body, "...")); got != maxErrorChars {
		t.Fatalf("expected %d characters kept, got %d", maxErrorChars, got)
	}

	short := FormatError("", errors.New("超时"))
	if short != "Hyperliquid watcher error: 超时" {
		t.Fatalf("short message should be untouched, got %q", short)
	}
}

func TestFormatDigestCap(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	events := make([]trade.Event, 0, 8)
	for i := 0; i < 8; i++ {
		events = append(events, event(now.Add(-time.Duration(i)*time.Minute), trade.OpenLong, fmt.Sprint(i), "BTC", "1"))
	}

	digest := FormatDigest("banner", "0xwallet", events, 3)
	lines := strings.Split(digest, "\n")
	want := []string{
		"banner",
		"Wallet: 0xwallet",
		"11:58:00 UTC - Open Long 2 BTC @ 1",
		"11:59:00 UTC - Open Long 1 BTC @ 1",
		"12:00:00 UTC - Open Long 0 BTC @ 1",
		"... and 5 more",
	}
	if len(lines) != len(want) {
		t.Fatalf("unexpected digest:\n%s", digest)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: got %q want %q", i, lines[i], want[i])
		}
	}
}

func TestFormatEventUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	ev := event(time.Date(2024, 5, 1, 20, 1, 2, 0, loc), trade.CloseLong, "3", "ARB", "1.1")
	if got := FormatEvent(ev); got != "12:01:02 UTC - Close Long 3 ARB @ 1.1" {
		t.Fatalf("unexpected line %q", got)
	}
}

func TestOutcomeString(t *testing.T) {
	cases := map[Outcome]string{OutcomeSkipped: "skipped", OutcomeSent: "sent", OutcomeFailed: "failed"}
	for o, want := range cases {
		if o.String() != want {
			t.Fatalf("%d: got %s want %s", o, o.String(), want)
		}
	}
}
