package logging

import (
	"context"
	"log/slog"
	"slices"
	"time"
)

type Attr = slog.Attr

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

// Error renders err under the "error" key. A nil error is logged explicitly
// so a missing cause stays visible.
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewComponentLogger tags logger with a component attribute. A nil logger
// yields a no-op logger.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

const (
	defaultErrorHint = "check the run log for details"
	defaultImpact    = "sync continued with partial data"
)

// WarnEvent logs a warning classified by eventType. Directory and series
// fields carried by ctx are added unless attrs already set them, and an
// error_hint and impact are always present.
func WarnEvent(ctx context.Context, logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	out := make([]any, 0, len(attrs)+6)
	for _, a := range attrs {
		out = append(out, a)
	}
	add := func(a Attr) {
		if !slices.ContainsFunc(attrs, func(have Attr) bool { return have.Key == a.Key }) {
			out = append(out, a)
		}
	}
	for _, a := range ContextFields(ctx) {
		add(a)
	}
	add(String(FieldEventType, eventType))
	add(String(FieldErrorHint, defaultErrorHint))
	add(String(FieldImpact, defaultImpact))
	logger.WarnContext(ctx, msg, out...)
}
