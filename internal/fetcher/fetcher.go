package fetcher

import (
	"context"
	"errors"
	"time"

	"hyperliquid-watch/internal/trade"
)

var (
	// ErrTimeout means neither populated rows nor a no-data marker appeared in time.
	ErrTimeout = errors.New("timed out waiting for table content")
	// ErrLoadFailed means page navigation failed on every attempt.
	ErrLoadFailed = errors.New("page load failed")
)

// Browser is the rendering collaborator: it loads a URL and hands back the
// current DOM as HTML.
type Browser interface {
	Load(ctx context.Context, url string) error
	HTML(ctx context.Context) (string, error)
	Close() error
}

// TableFetcher retrieves the wallet activity table from a page.
type TableFetcher interface {
	Fetch(ctx context.Context, url string) (Table, error)
}

// Table is one synchronized snapshot of the activity table.
type Table struct {
	Header []string
	Rows   []trade.RawRow
	NoData bool
}

// SyncPolicy tunes how long and how the acquirer waits for the table.
type SyncPolicy struct {
	// TableSelector picks the activity table; the first match scopes rows,
	// header and the no-data marker. Empty means the whole document.
	TableSelector  string
	RowSelector    string
	CellSelector   string
	HeaderSelector string
	NoDataSelector string
	NoDataText     string
	// MinCells is the cell count a row needs to count as populated content.
	MinCells int

	RowsTimeout   time.Duration
	NoDataTimeout time.Duration
	PollInterval  time.Duration
	SettleDelay   time.Duration
	LoadAttempts  int
	RetryDelay    time.Duration
}

// DefaultSyncPolicy matches the hypurrscan address page.
func DefaultSyncPolicy() SyncPolicy {
	return SyncPolicy{
		TableSelector:  ".v-table",
		RowSelector:    "tbody tr",
		CellSelector:   "td",
		HeaderSelector: "thead th",
		NoDataText:     "No data available",
		MinCells:       2,
		RowsTimeout:    30 * time.Second,
		NoDataTimeout:  20 * time.Second,
		PollInterval:   500 * time.Millisecond,
		SettleDelay:    2 * time.Second,
		LoadAttempts:   3,
		RetryDelay:     2 * time.Second,
	}
}

func (p SyncPolicy) withDefaults() SyncPolicy {
	def := DefaultSyncPolicy()
	if p.RowSelector == "" {
		p.RowSelector = def.RowSelector
	}
	if p.CellSelector == "" {
		p.CellSelector = def.CellSelector
	}
	if p.MinCells <= 0 {
		p.MinCells = 1
	}
	if p.RowsTimeout <= 0 {
		p.RowsTimeout = def.RowsTimeout
	}
	if p.NoDataTimeout <= 0 {
		p.NoDataTimeout = def.NoDataTimeout
	}
	if p.PollInterval <= 0 {
		p.PollInterval = def.PollInterval
	}
	if p.SettleDelay < 0 {
		p.SettleDelay = 0
	}
	if p.LoadAttempts <= 0 {
		p.LoadAttempts = def.LoadAttempts
	}
	if p.RetryDelay < 0 {
		p.RetryDelay = 0
	}
	return p
}
