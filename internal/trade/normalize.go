package trade

import (
	"strings"
	"time"
)

// TimeResolver resolves a dashboard time cell against the fetch time.
type TimeResolver interface {
	Resolve(text string, now time.Time) (time.Time, bool)
}

// SkipReason explains why a row did not become an Event.
type SkipReason string

const (
	SkipShortRow SkipReason = "short_row"
	SkipBadTime  SkipReason = "bad_time"
	SkipPanic    SkipReason = "panic"
)

// Stats summarises one NormalizeAll pass.
type Stats struct {
	Rows    int
	Events  int
	Skipped map[SkipReason]int
}

// SkippedTotal returns the number of rows that produced no event.
func (s Stats) SkippedTotal() int {
	total := 0
	for _, n := range s.Skipped {
		total += n
	}
	return total
}

// Normalizer maps raw rows onto Events using a fixed layout.
type Normalizer struct {
	layout   ColumnLayout
	resolver TimeResolver
}

// NewNormalizer binds a layout and time resolver.
func NewNormalizer(layout ColumnLayout, resolver TimeResolver) *Normalizer {
	return &Normalizer{layout: layout, resolver: resolver}
}

// Layout returns the bound column layout.
func (n *Normalizer) Layout() ColumnLayout {
	return n.layout
}

// Normalize converts a single row. It returns false when the row is too short,
// the time cell does not resolve, or extraction fails for any other reason.
func (n *Normalizer) Normalize(row RawRow, now time.Time) (Event, bool) {
	ev, reason := n.normalize(row, now)
	return ev, reason == ""
}

// NormalizeAll converts every row, preserving table order and skipping rows
// that do not normalize.
func (n *Normalizer) NormalizeAll(rows []RawRow, now time.Time) ([]Event, Stats) {
	stats := Stats{Rows: len(rows), Skipped: make(map[SkipReason]int)}
	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		ev, reason := n.normalize(row, now)
		if reason != "" {
			stats.Skipped[reason]++
			continue
		}
		events = append(events, ev)
	}
	stats.Events = len(events)
	return events, stats
}

func (n *Normalizer) normalize(row RawRow, now time.Time) (ev Event, reason SkipReason) {
	defer func() {
		if r := recover(); r != nil {
			ev, reason = Event{}, SkipPanic
		}
	}()

	if len(row.Cells) < n.layout.Width() {
		return Event{}, SkipShortRow
	}

	occurredAt, ok := n.resolver.Resolve(row.Cells[n.layout.TimeIndex], now)
	if !ok {
		return Event{}, SkipBadTime
	}

	rawType := strings.TrimSpace(row.Cells[n.layout.TypeIndex])
	return Event{
		OccurredAt: occurredAt.UTC(),
		Action:     Classify(rawType),
		RawType:    rawType,
		Size:       strings.TrimSpace(row.Cells[n.layout.SizeIndex]),
		Asset:      strings.TrimSpace(row.Cells[n.layout.AssetIndex]),
		Price:      strings.TrimSpace(row.Cells[n.layout.PriceIndex]),
	}, ""
}
