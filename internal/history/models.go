package history

import "time"

// Run is one `metasync sync` invocation.
type Run struct {
	ID           string
	LibraryRoot  string
	StartedAt    time.Time
	FinishedAt   time.Time
	Written      int
	Unchanged    int
	Skipped      int
	Failed       int
	ErrorMessage string
}

// Finished reports whether FinishRun was recorded for the run.
func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// Duration returns how long the run took, or zero while unfinished.
func (r Run) Duration() time.Duration {
	if !r.Finished() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Totals are the summary counts stored when a run finishes.
type Totals struct {
	Written   int
	Unchanged int
	Skipped   int
	Failed    int
}

// Directory is the outcome of one library directory within a run.
type Directory struct {
	RunID        string
	Path         string
	Outcome      string
	SeriesKey    int64
	Duration     time.Duration
	ErrorMessage string
	RecordedAt   time.Time
}
