package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	createRunsTableSQL = `CREATE TABLE IF NOT EXISTS watch_runs (
        id            UUID PRIMARY KEY,
        started_at    TIMESTAMPTZ NOT NULL,
        finished_at   TIMESTAMPTZ NOT NULL,
        wallet        TEXT NOT NULL,
        window_ms     BIGINT NOT NULL,
        rows_seen     INTEGER NOT NULL,
        rows_skipped  INTEGER NOT NULL,
        candidates    INTEGER NOT NULL,
        qualifying    INTEGER NOT NULL,
        status        TEXT NOT NULL,
        alert_outcome TEXT NOT NULL,
        error         TEXT,
        created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
    );`

	createRunsIndexSQL = `CREATE INDEX IF NOT EXISTS watch_runs_started_at_idx ON watch_runs (started_at);`

	insertRunSQL = `INSERT INTO watch_runs (
        id,
        started_at,
        finished_at,
        wallet,
        window_ms,
        rows_seen,
        rows_skipped,
        candidates,
        qualifying,
        status,
        alert_outcome,
        error
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
    )
    ON CONFLICT (id) DO NOTHING;`

	selectRunColumns = `SELECT
        id,
        started_at,
        finished_at,
        wallet,
        window_ms,
        rows_seen,
        rows_skipped,
        candidates,
        qualifying,
        status,
        alert_outcome,
        error,
        created_at
    FROM watch_runs`

	listRunsBetweenSQL = selectRunColumns + `
    WHERE started_at >= $1
      AND started_at < $2
    ORDER BY started_at;`

	listRecentRunsSQL = selectRunColumns + `
    ORDER BY started_at DESC
    LIMIT $1;`

	countRunsSQL = `SELECT COUNT(*) FROM watch_runs;`

	deleteRunsBeforeSQL = `DELETE FROM watch_runs WHERE started_at < $1;`
)

// RunJournal records run health.
type RunJournal interface {
	InsertRun(ctx context.Context, run RunRecord) error
}

// RunHistory reads back journalled runs for reporting.
type RunHistory interface {
	ListRunsBetween(ctx context.Context, from, to time.Time) ([]RunRecord, error)
	ListRecentRuns(ctx context.Context, limit int) ([]RunRecord, error)
	CountRuns(ctx context.Context) (int64, error)
}

// RunRetention prunes old journal entries.
type RunRetention interface {
	DeleteRunsBefore(ctx context.Context, olderThan time.Time) (int64, error)
}

// Store implements the run journal on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the journal table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	for _, stmt := range []string{createRunsTableSQL, createRunsIndexSQL} {
		if _, execErr := pool.Exec(ctx, stmt); execErr != nil {
			return fmt.Errorf("ensure schema: %w", execErr)
		}
	}
	return nil
}

// InsertRun persists a run record. Re-inserting the same id is a no-op.
func (s *Store) InsertRun(ctx context.Context, run RunRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var errMsg interface{}
	if run.Error != nil {
		errMsg = *run.Error
	}

	_, execErr := pool.Exec(ctx, insertRunSQL,
		run.ID,
		run.StartedAt,
		run.FinishedAt,
		run.Wallet,
		run.Window.Milliseconds(),
		run.Rows,
		run.Skipped,
		run.Candidates,
		run.Qualifying,
		run.Status,
		run.AlertOutcome,
		errMsg,
	)
	if execErr != nil {
		return fmt.Errorf("insert run: %w", execErr)
	}
	return nil
}

// ListRunsBetween lists runs started within [from, to) in chronological order.
func (s *Store) ListRunsBetween(ctx context.Context, from, to time.Time) ([]RunRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRunsBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list runs between: %w", queryErr)
	}
	return collectRuns(rows, 0)
}

// ListRecentRuns lists the most recent runs, newest first.
func (s *Store) ListRecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentRunsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent runs: %w", queryErr)
	}
	return collectRuns(rows, limit)
}

// CountRuns counts journalled runs.
func (s *Store) CountRuns(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countRunsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count runs: %w", scanErr)
	}
	return count, nil
}

// DeleteRunsBefore prunes the journal.
func (s *Store) DeleteRunsBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	tag, execErr := pool.Exec(ctx, deleteRunsBeforeSQL, olderThan)
	if execErr != nil {
		return 0, fmt.Errorf("delete runs before: %w", execErr)
	}
	return tag.RowsAffected(), nil
}

func collectRuns(rows pgx.Rows, capacity int) ([]RunRecord, error) {
	defer rows.Close()

	if capacity < 0 {
		capacity = 0
	}
	runs := make([]RunRecord, 0, capacity)
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		runs = append(runs, run)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}

func scanRun(rows pgx.Rows) (RunRecord, error) {
	var (
		run      RunRecord
		windowMS int64
		errMsg   sql.NullString
	)

	if err := rows.Scan(
		&run.ID,
		&run.StartedAt,
		&run.FinishedAt,
		&run.Wallet,
		&windowMS,
		&run.Rows,
		&run.Skipped,
		&run.Candidates,
		&run.Qualifying,
		&run.Status,
		&run.AlertOutcome,
		&errMsg,
		&run.CreatedAt,
	); err != nil {
		return RunRecord{}, fmt.Errorf("scan run: %w", err)
	}

	run.Window = time.Duration(windowMS) * time.Millisecond
	if errMsg.Valid {
		msg := errMsg.String
		run.Error = &msg
	}
	return run, nil
}

var (
	_ RunJournal   = (*Store)(nil)
	_ RunHistory   = (*Store)(nil)
	_ RunRetention = (*Store)(nil)
)
