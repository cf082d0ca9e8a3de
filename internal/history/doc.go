// Package history journals sync runs and their per-directory outcomes in a
// SQLite database under the state directory.
//
// Open applies embedded migrations on every start. A run is created with
// BeginRun, receives one RecordDirectory per library directory and is closed
// by FinishRun with the summary counts. ListRuns and Directories back the
// `metasync history` command.
package history
