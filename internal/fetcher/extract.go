package fetcher

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"hyperliquid-watch/internal/trade"
)

type snapshot struct {
	header []string
	rows   []trade.RawRow
	noData bool
}

// populated reports whether at least one row carries MinCells non-empty cells.
func (s snapshot) populated(minCells int) bool {
	for _, row := range s.rows {
		filled := 0
		for _, cell := range row.Cells {
			if cell != "" {
				filled++
			}
		}
		if filled >= minCells {
			return true
		}
	}
	return false
}

func parseSnapshot(html string, policy SyncPolicy) (snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return snapshot{}, fmt.Errorf("parse html: %w", err)
	}

	scope := doc.Selection
	if policy.TableSelector != "" {
		scope = doc.Find(policy.TableSelector).First()
	}

	var snap snapshot
	if policy.HeaderSelector != "" {
		snap.header = scope.Find(policy.HeaderSelector).Map(func(_ int, s *goquery.Selection) string {
			return cellText(s)
		})
	}

	rows := scope.Find(policy.RowSelector)
	rows.Each(func(_ int, row *goquery.Selection) {
		cells := row.Find(policy.CellSelector).Map(func(_ int, s *goquery.Selection) string {
			return cellText(s)
		})
		snap.rows = append(snap.rows, trade.RawRow{Cells: cells})
	})

	snap.noData = hasNoDataMarker(doc, rows, policy)
	return snap, nil
}

// hasNoDataMarker looks for the empty-table placeholder. Without an explicit
// selector only the table's own rows are searched, so an empty widget
// elsewhere on the page cannot end the wait early.
func hasNoDataMarker(doc *goquery.Document, rows *goquery.Selection, policy SyncPolicy) bool {
	if policy.NoDataSelector == "" && policy.NoDataText == "" {
		return false
	}

	scope := rows
	if policy.NoDataSelector != "" {
		scope = doc.Find(policy.NoDataSelector)
	}
	if scope.Length() == 0 {
		return false
	}
	if policy.NoDataText == "" {
		return true
	}
	return strings.Contains(strings.ToLower(scope.Text()), strings.ToLower(policy.NoDataText))
}

// cellText collapses the whitespace of nested inline nodes.
func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
