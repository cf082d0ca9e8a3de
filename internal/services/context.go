package services

import "context"

type contextKey string

const (
	directoryKey contextKey = "directory"
	seriesKey    contextKey = "series_key"
)

// WithDirectory annotates context with the library directory being synced.
func WithDirectory(ctx context.Context, dir string) context.Context {
	if dir == "" {
		return ctx
	}
	return context.WithValue(ctx, directoryKey, dir)
}

// DirectoryFromContext returns the library directory if present.
func DirectoryFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(directoryKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithSeriesKey annotates context with the remote series identifier.
func WithSeriesKey(ctx context.Context, key int64) context.Context {
	if key <= 0 {
		return ctx
	}
	return context.WithValue(ctx, seriesKey, key)
}

// SeriesKeyFromContext extracts the remote series identifier if present.
func SeriesKeyFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(seriesKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}
