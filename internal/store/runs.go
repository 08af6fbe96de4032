// ABOUTME: SQLite-backed run-history ledger using modernc.org/sqlite
// ABOUTME: Records one row per collection run with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("not found")

// Run modes.
const (
	RunModeFull       = "full"
	RunModeResume     = "resume"
	RunModeSingleHost = "single-host"
)

// Run is one collection batch's outcome.
type Run struct {
	ID         string
	Mode       string
	StartedAt  time.Time
	FinishedAt time.Time
	Succeeded  int
	Failed     int
	Total      int
}

// RunStore implements the run-history ledger on SQLite.
type RunStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRunStore opens (or creates) the ledger at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewRunStore(path string) (*RunStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &RunStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// createSchema creates the runs table if it doesn't exist
func (s *RunStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			run_id      TEXT PRIMARY KEY,
			mode        TEXT NOT NULL,
			started_at  TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			succeeded   INTEGER NOT NULL,
			failed      INTEGER NOT NULL,
			total       INTEGER NOT NULL,

			CHECK (mode IN ('full', 'resume', 'single-host'))
		);

		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *RunStore) Close() error {
	return s.db.Close()
}

// RecordRun inserts one finished run. A missing ID is assigned.
func (s *RunStore) RecordRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	query := `
		INSERT INTO runs (run_id, mode, started_at, finished_at, succeeded, failed, total)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.Mode,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.FinishedAt.UTC().Format(time.RFC3339),
		run.Succeeded,
		run.Failed,
		run.Total,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	s.logger.Debug("recorded run", "run_id", run.ID, "mode", run.Mode, "succeeded", run.Succeeded, "failed", run.Failed)
	return nil
}

// GetRun retrieves a run by ID.
// Returns ErrNotFound if the run doesn't exist.
func (s *RunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `
		SELECT run_id, mode, started_at, finished_at, succeeded, failed, total
		FROM runs
		WHERE run_id = ?
	`

	run, err := scanRun(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
// If limit is 0 or negative, a default limit of 20 is used.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 500 {
		limit = 500
	}

	query := `
		SELECT run_id, mode, started_at, finished_at, succeeded, failed, total
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run rows: %w", err)
	}

	return runs, nil
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var startedStr, finishedStr string

	if err := row.Scan(&run.ID, &run.Mode, &startedStr, &finishedStr, &run.Succeeded, &run.Failed, &run.Total); err != nil {
		return nil, err
	}

	var err error
	run.StartedAt, err = time.Parse(time.RFC3339, startedStr)
	if err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	run.FinishedAt, err = time.Parse(time.RFC3339, finishedStr)
	if err != nil {
		return nil, fmt.Errorf("parsing finished_at: %w", err)
	}

	return &run, nil
}
