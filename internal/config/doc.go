// Package config loads, normalizes, and validates metasync configuration.
//
// The file is TOML with one table per subsystem ([paths], [tmdb], [sync],
// [scheduler], [logging]). Unknown keys are rejected. Paths accept a leading
// tilde, and TMDB_API_KEY fills tmdb.api_key when the file leaves it empty.
package config
