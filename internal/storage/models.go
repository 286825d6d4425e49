package storage

import (
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	StatusOK      = "ok"
	StatusNoData  = "no_data"
	StatusErrored = "errored"
)

// RunRecord is the journal entry of one watch run. It carries counts and
// health only; trade contents are never persisted.
type RunRecord struct {
	ID           uuid.UUID
	StartedAt    time.Time
	FinishedAt   time.Time
	Wallet       string
	Window       time.Duration
	Rows         int
	Skipped      int
	Candidates   int
	Qualifying   int
	Status       string
	AlertOutcome string
	Error        *string
	CreatedAt    time.Time
}

// Duration returns how long the run took.
func (r RunRecord) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ErrorText returns the recorded error or an empty string.
func (r RunRecord) ErrorText() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}
