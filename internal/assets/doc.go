// Package assets downloads remote artwork into a library directory at most
// once per asset path per process.
//
// Paths are normalized by dropping one leading slash and registered before
// any I/O, so concurrent callers referencing the same path never race into
// duplicate downloads. A non-empty file already on disk is trusted unless
// verification is forced, in which case its modification time becomes an
// If-Modified-Since precondition. Every download goes through the shared
// scheduler.
package assets
