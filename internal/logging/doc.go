// Package logging builds the slog loggers metasync writes with.
//
// A sync run logs human-readable lines to the console and, when a run log
// path is given, mirrors every record as JSON into a per-run file named after
// the run id. Console lines lift the component, library directory and series
// key into a short prefix; the JSON file keeps them as plain fields.
//
// WarnEvent is the entry point for recoverable failures: it classifies the
// warning with an event type, copies directory and series fields from the
// context, and guarantees error_hint and impact fields.
package logging
