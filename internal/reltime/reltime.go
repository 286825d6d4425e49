// Package reltime resolves dashboard timestamps ("5 minutes ago" or
// "10/18/2026, 01:02:03 PM") into absolute UTC instants.
package reltime

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultAbsoluteLayout matches the MM/DD/YYYY, HH:MM:SS AM/PM rendering used
// by explorer feeds. Non-padded layout elements also accept zero-padded input.
const DefaultAbsoluteLayout = "1/2/2006, 3:04:05 PM"

var relativePattern = regexp.MustCompile(`^(\d+)\s*([a-z]+)\s+ago$`)

// DefaultUnits lists the recognised relative units. Plural forms are handled
// by stripping a single trailing "s".
func DefaultUnits() map[string]time.Duration {
	return map[string]time.Duration{
		"second": time.Second,
		"sec":    time.Second,
		"minute": time.Minute,
		"min":    time.Minute,
		"hour":   time.Hour,
		"hr":     time.Hour,
		"day":    24 * time.Hour,
	}
}

// Resolver turns dashboard time strings into timestamps.
type Resolver struct {
	Units           map[string]time.Duration
	AbsoluteLayouts []string
	Location        *time.Location
}

// NewResolver returns a resolver with the default grammar, interpreting
// absolute timestamps in UTC.
func NewResolver() *Resolver {
	return &Resolver{
		Units:           DefaultUnits(),
		AbsoluteLayouts: []string{DefaultAbsoluteLayout},
		Location:        time.UTC,
	}
}

// Resolve converts text into an absolute UTC timestamp. Relative strings are
// anchored to now; absolute strings ignore it. The second return value is
// false for anything the grammar does not recognise.
func (r *Resolver) Resolve(text string, now time.Time) (time.Time, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return time.Time{}, false
	}

	if ts, ok := r.resolveAbsolute(trimmed); ok {
		return ts, true
	}

	lower := strings.ToLower(strings.Join(strings.Fields(trimmed), " "))
	if lower == "just now" {
		return now.UTC(), true
	}

	m := relativePattern.FindStringSubmatch(lower)
	if m == nil {
		return time.Time{}, false
	}

	unit, ok := r.unit(m[2])
	if !ok {
		return time.Time{}, false
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || n < 0 {
		return time.Time{}, false
	}
	// reject values whose product would overflow time.Duration
	if n > int64(maxDuration/unit) {
		return time.Time{}, false
	}

	return now.Add(-time.Duration(n) * unit).UTC(), true
}

const maxDuration = time.Duration(1<<63 - 1)

func (r *Resolver) unit(word string) (time.Duration, bool) {
	units := r.Units
	if units == nil {
		units = DefaultUnits()
	}
	if d, ok := units[word]; ok && d > 0 {
		return d, true
	}
	if singular, found := strings.CutSuffix(word, "s"); found {
		if d, ok := units[singular]; ok && d > 0 {
			return d, true
		}
	}
	return 0, false
}

func (r *Resolver) resolveAbsolute(text string) (time.Time, bool) {
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	layouts := r.AbsoluteLayouts
	if len(layouts) == 0 {
		layouts = []string{DefaultAbsoluteLayout}
	}
	for _, layout := range layouts {
		if ts, err := time.ParseInLocation(layout, text, loc); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
