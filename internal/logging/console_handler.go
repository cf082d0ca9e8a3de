package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler writes one human-readable line per record:
//
//	14:03:07.512 WARN  assets [The Expanse #63639] asset download failed asset_path=p.jpg
//
// The component, directory and series key are lifted out of the attribute
// list into the line prefix. Every other attribute follows as key=value.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Leveler
	attrs     []slog.Attr
	groups    []string
	addSource bool
}

func newConsoleHandler(w io.Writer, lvl slog.Leveler, addSource bool) slog.Handler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

type consoleLine struct {
	component string
	directory string
	seriesKey string
	fields    []string
}

func (l *consoleLine) add(key string, v slog.Value) {
	switch key {
	case FieldComponent:
		if l.component == "" {
			l.component = v.String()
		}
		return
	case FieldDirectory:
		if l.directory == "" {
			l.directory = filepath.Base(v.String())
		}
		return
	case FieldSeriesKey:
		if l.seriesKey == "" {
			l.seriesKey = v.String()
		}
		return
	case FieldRunID:
		// The run id is in the run log file name already.
		return
	}
	l.fields = append(l.fields, key+"="+consoleValue(v))
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	var line consoleLine
	for _, attr := range h.attrs {
		collect(&line, h.groups, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		collect(&line, h.groups, attr)
		return true
	})

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var b strings.Builder
	b.WriteString(ts.Local().Format("15:04:05.000"))
	fmt.Fprintf(&b, " %-5s ", levelLabel(record.Level))
	if line.component != "" {
		b.WriteString(line.component)
		b.WriteByte(' ')
	}
	switch {
	case line.directory != "" && line.seriesKey != "":
		fmt.Fprintf(&b, "[%s #%s] ", line.directory, line.seriesKey)
	case line.directory != "":
		fmt.Fprintf(&b, "[%s] ", line.directory)
	case line.seriesKey != "":
		fmt.Fprintf(&b, "[#%s] ", line.seriesKey)
	}
	b.WriteString(record.Message)
	for _, f := range line.fields {
		b.WriteByte(' ')
		b.WriteString(f)
	}
	if h.addSource {
		if src := record.Source(); src != nil {
			fmt.Fprintf(&b, " (%s:%d)", filepath.Base(src.File), src.Line)
		}
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.groups = append(append([]string(nil), h.groups...), name)
	return &next
}

// collect flattens groups into dotted keys. Grouped attributes never match
// the lifted prefix fields.
func collect(line *consoleLine, groups []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	v := attr.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		inner := groups
		if attr.Key != "" {
			inner = append(append([]string(nil), groups...), attr.Key)
		}
		for _, child := range v.Group() {
			collect(line, inner, child)
		}
		return
	}
	key := attr.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}
	line.add(key, v)
}

func consoleValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		s = v.String()
	}
	if s == "" || strings.ContainsAny(s, " \t\n=\"") {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
