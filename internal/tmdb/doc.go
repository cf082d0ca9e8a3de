// Package tmdb provides the TMDB API client used by the sync engine.
//
// It authenticates requests, exposes TV search and the remote image
// configuration as typed responses, and returns series, season, and image
// collection payloads as raw JSON so the descriptor overlay can keep every
// member. Detail and image calls accept conditional-request preconditions
// and report 304 responses as NotModified. Every response reports the
// remaining request quota read from X-RateLimit-Remaining.
package tmdb
