package history

import (
	"database/sql"
	"fmt"
	"time"
)

// timeLayout has fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const runColumns = "id, library_root, started_at, finished_at, written, unchanged, skipped, failed, error_message"

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run      Run
		started  string
		finished sql.NullString
		message  sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.LibraryRoot,
		&started,
		&finished,
		&run.Written,
		&run.Unchanged,
		&run.Skipped,
		&run.Failed,
		&message,
	); err != nil {
		if err == sql.ErrNoRows {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt = parseTime(started)
	if finished.Valid {
		run.FinishedAt = parseTime(finished.String)
	}
	run.ErrorMessage = message.String
	return run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
