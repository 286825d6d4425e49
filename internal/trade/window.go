package trade

import "time"

// Window is the trailing duration that defines "new" for a run.
//
// No state survives between runs, so the window has to cover the scheduler
// interval plus some slack. Narrower windows silently miss trades; wider ones
// report the same trade on consecutive runs.
type Window time.Duration

// Since returns the earliest timestamp inside the window.
func (w Window) Since(now time.Time) time.Time {
	return now.Add(-time.Duration(w))
}

// Select returns the events at or after now-window in their original order.
// With qualifyingOnly set, Other events are dropped.
func Select(events []Event, window Window, now time.Time, qualifyingOnly bool) []Event {
	cutoff := window.Since(now)
	selected := make([]Event, 0, len(events))
	for _, ev := range events {
		if ev.OccurredAt.Before(cutoff) {
			continue
		}
		if qualifyingOnly && !ev.Action.Qualifying() {
			continue
		}
		selected = append(selected, ev)
	}
	return selected
}
