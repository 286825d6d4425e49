package trade

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrHeaderMismatch indicates the page header no longer matches the configured layout.
var ErrHeaderMismatch = errors.New("table header does not match column layout")

// ColumnLayout describes which cell holds which field for one page revision.
type ColumnLayout struct {
	Name         string         `mapstructure:"name"`
	TimeIndex    int            `mapstructure:"time_index"`
	TypeIndex    int            `mapstructure:"type_index"`
	SizeIndex    int            `mapstructure:"size_index"`
	AssetIndex   int            `mapstructure:"asset_index"`
	PriceIndex   int            `mapstructure:"price_index"`
	MinimumWidth int            `mapstructure:"minimum_width"`
	Header       map[int]string `mapstructure:"header"`
}

// HypurrscanLayout matches the address activity table on hypurrscan.io:
// hash, method, age, type, size, asset, price.
var HypurrscanLayout = ColumnLayout{
	Name:       "hypurrscan",
	TimeIndex:  2,
	TypeIndex:  3,
	SizeIndex:  4,
	AssetIndex: 5,
	PriceIndex: 6,
	Header: map[int]string{
		2: "Age",
		3: "Type",
	},
}

// Width returns the minimum cell count a row needs. An unset MinimumWidth
// falls back to one past the largest configured index.
func (l ColumnLayout) Width() int {
	width := l.MinimumWidth
	for _, idx := range []int{l.TimeIndex, l.TypeIndex, l.SizeIndex, l.AssetIndex, l.PriceIndex} {
		if idx+1 > width {
			width = idx + 1
		}
	}
	return width
}

// Validate rejects negative indices.
func (l ColumnLayout) Validate() error {
	fields := map[string]int{
		"time_index":  l.TimeIndex,
		"type_index":  l.TypeIndex,
		"size_index":  l.SizeIndex,
		"asset_index": l.AssetIndex,
		"price_index": l.PriceIndex,
	}
	for name, idx := range fields {
		if idx < 0 {
			return fmt.Errorf("layout %q: %s must not be negative", l.Name, name)
		}
	}
	if l.MinimumWidth < 0 {
		return fmt.Errorf("layout %q: minimum_width must not be negative", l.Name)
	}
	for idx := range l.Header {
		if idx < 0 {
			return fmt.Errorf("layout %q: header index %d must not be negative", l.Name, idx)
		}
	}
	return nil
}

// VerifyHeader checks the configured sentinel labels against the scraped
// header cells. Each sentinel must appear (case-insensitive substring) in the
// cell at its index. Only a layout without sentinels skips the check; a
// missing header fails it.
func (l ColumnLayout) VerifyHeader(header []string) error {
	if len(l.Header) == 0 {
		return nil
	}
	if len(header) == 0 {
		return fmt.Errorf("%w: layout %q: no header cells found", ErrHeaderMismatch, l.Name)
	}

	indices := make([]int, 0, len(l.Header))
	for idx := range l.Header {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	for _, idx := range indices {
		want := l.Header[idx]
		if idx >= len(header) {
			return fmt.Errorf("%w: layout %q expects %q at column %d but header has %d columns",
				ErrHeaderMismatch, l.Name, want, idx, len(header))
		}
		got := strings.TrimSpace(header[idx])
		if !strings.Contains(strings.ToLower(got), strings.ToLower(want)) {
			return fmt.Errorf("%w: layout %q expects %q at column %d, found %q",
				ErrHeaderMismatch, l.Name, want, idx, got)
		}
	}
	return nil
}

// CompactLayout is the five-column rendering: type, age, size, asset, price.
var CompactLayout = ColumnLayout{
	Name:       "compact",
	TypeIndex:  0,
	TimeIndex:  1,
	SizeIndex:  2,
	AssetIndex: 3,
	PriceIndex: 4,
}

// BuiltinLayouts returns the layouts shipped with the binary, keyed by name.
func BuiltinLayouts() map[string]ColumnLayout {
	return map[string]ColumnLayout{
		HypurrscanLayout.Name: HypurrscanLayout,
		CompactLayout.Name:    CompactLayout,
	}
}
