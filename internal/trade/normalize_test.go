package trade

import (
	"reflect"
	"testing"
	"time"

	"hyperliquid-watch/internal/reltime"
)

var fetchedAt = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func compactNormalizer() *Normalizer {
	return NewNormalizer(CompactLayout, reltime.NewResolver())
}

func TestNormalizeOpenLong(t *testing.T) {
	n := compactNormalizer()
	row := RawRow{Cells: []string{"Open Long", "5 minutes ago", "10", "BTC", "50000"}}

	ev, ok := n.Normalize(row, fetchedAt)
	if !ok {
		t.Fatal("expected row to normalize")
	}
	want := Event{
		OccurredAt: fetchedAt.Add(-5 * time.Minute),
		Action:     OpenLong,
		RawType:    "Open Long",
		Size:       "10",
		Asset:      "BTC",
		Price:      "50000",
	}
	if !reflect.DeepEqual(ev, want) {
		t.Fatalf("Normalize() = %+v, want %+v", ev, want)
	}
}

func TestNormalizeTrimsCells(t *testing.T) {
	n := compactNormalizer()
	row := RawRow{Cells: []string{"  Close Short\n", " 45 seconds ago ", " 1,250.5 ", "\tETH ", " 2,401.10 "}}

	ev, ok := n.Normalize(row, fetchedAt)
	if !ok {
		t.Fatal("expected row to normalize")
	}
	if ev.Action != CloseShort || ev.Size != "1,250.5" || ev.Asset != "ETH" || ev.Price != "2,401.10" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if !ev.OccurredAt.Equal(fetchedAt.Add(-45 * time.Second)) {
		t.Fatalf("unexpected timestamp %v", ev.OccurredAt)
	}
}

func TestNormalizeHashLikeTimeCell(t *testing.T) {
	n := compactNormalizer()
	row := RawRow{Cells: []string{"...", "0xabc123...", "10", "BTC", "50000"}}

	if ev, ok := n.Normalize(row, fetchedAt); ok {
		t.Fatalf("hash-like time cell should not normalize, got %+v", ev)
	}
}

func TestNormalizeShortRows(t *testing.T) {
	n := compactNormalizer()
	rows := []RawRow{
		{},
		{Cells: []string{"Open Long"}},
		{Cells: []string{"Open Long", "5 minutes ago", "10", "BTC"}},
	}
	for _, row := range rows {
		if ev, ok := n.Normalize(row, fetchedAt); ok {
			t.Fatalf("row with %d cells should not normalize, got %+v", len(row.Cells), ev)
		}
	}
}

func TestNormalizeKeepsOtherActions(t *testing.T) {
	n := compactNormalizer()
	row := RawRow{Cells: []string{"Deposit", "1 minute ago", "100", "USDC", "-"}}

	ev, ok := n.Normalize(row, fetchedAt)
	if !ok {
		t.Fatal("time-parsable row should normalize even without Open/Close")
	}
	if ev.Action != Other {
		t.Fatalf("expected Other, got %v", ev.Action)
	}
}

func TestNormalizeMinimumWidthOverride(t *testing.T) {
	layout := CompactLayout
	layout.MinimumWidth = 7
	n := NewNormalizer(layout, reltime.NewResolver())

	row := RawRow{Cells: []string{"Open Long", "5 minutes ago", "10", "BTC", "50000", "x"}}
	if _, ok := n.Normalize(row, fetchedAt); ok {
		t.Fatal("row narrower than minimum_width should not normalize")
	}
}

type panickyResolver struct{}

func (panickyResolver) Resolve(string, time.Time) (time.Time, bool) {
	panic("boom")
}

func TestNormalizeAllContainsPanics(t *testing.T) {
	n := NewNormalizer(CompactLayout, panickyResolver{})
	rows := []RawRow{
		{Cells: []string{"Open Long", "5 minutes ago", "10", "BTC", "50000"}},
		{Cells: []string{"Open Long", "6 minutes ago", "10", "BTC", "50000"}},
	}

	events, stats := n.NormalizeAll(rows, fetchedAt)
	if len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
	if stats.Skipped[SkipPanic] != 2 {
		t.Fatalf("expected 2 panic skips, got %+v", stats.Skipped)
	}
}

func TestNormalizeAllSkipsAndKeepsOrder(t *testing.T) {
	n := compactNormalizer()
	rows := []RawRow{
		{Cells: []string{"Type", "Age", "Size", "Asset", "Price"}},
		{Cells: []string{"Open Short", "1 minute ago", "2", "SOL", "150"}},
		{Cells: []string{"Page 1 of 3"}},
		{Cells: []string{"Close Long", "3 minutes ago", "1", "BTC", "51000"}},
		{Cells: []string{"...", "0xdeadbeef...", "1", "BTC", "51000"}},
	}

	events, stats := n.NormalizeAll(rows, fetchedAt)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Asset != "SOL" || events[1].Asset != "BTC" {
		t.Fatalf("table order not preserved: %+v", events)
	}
	if stats.Rows != 5 || stats.Events != 2 || stats.SkippedTotal() != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.Skipped[SkipShortRow] != 1 || stats.Skipped[SkipBadTime] != 2 {
		t.Fatalf("unexpected skip reasons %+v", stats.Skipped)
	}
}

func TestNormalizeThenSelectIsIdempotent(t *testing.T) {
	n := compactNormalizer()
	rows := []RawRow{
		{Cells: []string{"Open Long", "1 minute ago", "1", "BTC", "50000"}},
		{Cells: []string{"Deposit", "2 minutes ago", "5", "USDC", "-"}},
		{Cells: []string{"Close Short", "20 minutes ago", "3", "ETH", "2400"}},
	}
	window := Window(10 * time.Minute)

	first, _ := n.NormalizeAll(rows, fetchedAt)
	second, _ := n.NormalizeAll(rows, fetchedAt)
	if !reflect.DeepEqual(Select(first, window, fetchedAt, true), Select(second, window, fetchedAt, true)) {
		t.Fatal("normalize+select should be deterministic")
	}
}

func TestScenarioWindowInclusion(t *testing.T) {
	n := compactNormalizer()
	row := RawRow{Cells: []string{"Open Long", "5 minutes ago", "10", "BTC", "50000"}}

	ev, ok := n.Normalize(row, fetchedAt)
	if !ok {
		t.Fatal("expected row to normalize")
	}

	if got := Select([]Event{ev}, Window(10*time.Minute), fetchedAt, true); len(got) != 1 {
		t.Fatalf("10 minute window should include the trade, got %d", len(got))
	}
	if got := Select([]Event{ev}, Window(3*time.Minute), fetchedAt, true); len(got) != 0 {
		t.Fatalf("3 minute window should exclude the trade, got %d", len(got))
	}
}
