// Package services defines shared utilities consumed by the sync engine, the
// directory walker, and the remote integrations.
//
// Key responsibilities:
//   - Context helpers that carry the library directory and remote series key
//     so warnings raised deep in a branch name the directory they belong to.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent per-directory outcomes (failed, malformed, unresolved).
//
// Use these helpers when wiring new sync logic so operational behaviour (error
// handling, observability) stays uniform across the tree walk.
package services
