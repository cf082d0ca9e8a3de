package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"metasync/internal/fileutil"
)

// ErrUnknownRun is returned when a run id is not in the journal.
var ErrUnknownRun = errors.New("unknown run")

// Store persists run history in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database at path and applies
// migrations.
func Open(path string) (*Store, error) {
	if err := fileutil.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginRun records the start of a run.
func (s *Store) BeginRun(ctx context.Context, id, libraryRoot string, startedAt time.Time) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("run id required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, library_root, started_at) VALUES (?, ?, ?)`,
		id, libraryRoot, formatTime(startedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordDirectory appends one directory outcome to a run.
func (s *Store) RecordDirectory(ctx context.Context, dir Directory) error {
	recordedAt := dir.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_directories (run_id, path, outcome, series_key, duration_ms, error_message, recorded_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		dir.RunID,
		dir.Path,
		dir.Outcome,
		nullableInt(dir.SeriesKey),
		dir.Duration.Milliseconds(),
		nullableString(dir.ErrorMessage),
		formatTime(recordedAt),
	)
	if err != nil {
		return fmt.Errorf("insert directory outcome: %w", err)
	}
	return nil
}

// FinishRun stores the summary counts of a run.
func (s *Store) FinishRun(ctx context.Context, id string, totals Totals, finishedAt time.Time, runErr error) error {
	var message string
	if runErr != nil {
		message = runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs
         SET finished_at = ?, written = ?, unchanged = ?, skipped = ?, failed = ?, error_message = ?
         WHERE id = ?`,
		formatTime(finishedAt),
		totals.Written,
		totals.Unchanged,
		totals.Skipped,
		totals.Failed,
		nullableString(message),
		id,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownRun, id)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun fetches one run by id.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrUnknownRun, id)
	}
	return run, err
}

// Directories returns the directory outcomes of a run in recording order.
func (s *Store) Directories(ctx context.Context, runID string) ([]Directory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, path, outcome, series_key, duration_ms, error_message, recorded_at
         FROM run_directories WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list directories: %w", err)
	}
	defer rows.Close()

	var dirs []Directory
	for rows.Next() {
		var (
			dir        Directory
			seriesKey  sql.NullInt64
			durationMS int64
			message    sql.NullString
			recorded   string
		)
		if err := rows.Scan(&dir.RunID, &dir.Path, &dir.Outcome, &seriesKey, &durationMS, &message, &recorded); err != nil {
			return nil, fmt.Errorf("scan directory: %w", err)
		}
		dir.SeriesKey = seriesKey.Int64
		dir.Duration = time.Duration(durationMS) * time.Millisecond
		dir.ErrorMessage = message.String
		dir.RecordedAt = parseTime(recorded)
		dirs = append(dirs, dir)
	}
	return dirs, rows.Err()
}

// Prune deletes runs that started before cutoff, with their directories.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}
