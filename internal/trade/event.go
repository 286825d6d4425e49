// Package trade turns scraped wallet activity rows into trade events and
// selects the ones that fall inside the alert window.
package trade

import (
	"strings"
	"time"
)

// Action classifies a trade row.
type Action int

const (
	Other Action = iota
	OpenLong
	OpenShort
	CloseLong
	CloseShort
)

// String renders the action the way the dashboard labels it.
func (a Action) String() string {
	switch a {
	case OpenLong:
		return "Open Long"
	case OpenShort:
		return "Open Short"
	case CloseLong:
		return "Close Long"
	case CloseShort:
		return "Close Short"
	default:
		return "Other"
	}
}

// Qualifying reports whether the action opens or closes a position.
func (a Action) Qualifying() bool {
	return a != Other
}

// Classify maps the raw type cell to an Action. Matching is a case-sensitive
// substring check because the exact label text changes between page revisions.
// A cell without "Short" is treated as the long side.
func Classify(typeCell string) Action {
	short := strings.Contains(typeCell, "Short")
	switch {
	case strings.Contains(typeCell, "Open"):
		if short {
			return OpenShort
		}
		return OpenLong
	case strings.Contains(typeCell, "Close"):
		if short {
			return CloseShort
		}
		return CloseLong
	default:
		return Other
	}
}

// RawRow is the ordered cell text of one scraped table row.
type RawRow struct {
	Cells []string
}

// Event is a normalized trade row. Size, Asset and Price are display strings
// passed through verbatim.
type Event struct {
	OccurredAt time.Time
	Action     Action
	RawType    string
	Size       string
	Asset      string
	Price      string
}
