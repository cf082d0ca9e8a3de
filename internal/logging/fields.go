package logging

import (
	"context"
	"log/slog"

	"metasync/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the standardized structured logging key for sync run identifiers.
	FieldRunID = "run_id"
	// FieldDirectory is the standardized structured logging key for library directories.
	FieldDirectory = "directory"
	// FieldSeriesKey is the standardized structured logging key for remote series identifiers.
	FieldSeriesKey = "series_key"
	// FieldSeasonNumber is the standardized structured logging key for season numbers.
	FieldSeasonNumber = "season_number"
	// FieldEpisodeNumber is the standardized structured logging key for episode numbers.
	FieldEpisodeNumber = "episode_number"
	// FieldAssetPath is the standardized structured logging key for normalized asset paths.
	FieldAssetPath = "asset_path"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint carries the suggested next step for a warning or error.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields returns the directory and series key carried by ctx. The
// run id is attached by the logger itself.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if dir, ok := services.DirectoryFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldDirectory, dir))
	}
	if key, ok := services.SeriesKeyFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldSeriesKey, key))
	}
	return fields
}
