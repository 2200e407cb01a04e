// Package searcher implements the query engine.
//
// A search tries an ordered list of named strategies until one yields a
// result: an FTS5 MATCH against the full-text mirror, then a
// case-insensitive substring pass over primary stored content, then a
// substring match against file names only. Every strategy's output goes
// through the same category and root-path filters, results are capped at
// 200, and each match carries a snippet windowed around the first
// occurrence of the query.
//
// Debouncer wraps a Searcher for interactive callers: rapid repeated
// invocations collapse into one after a 300 ms quiet period, and
// superseded calls resolve to no result instead of delivering stale data.
//
// Query results are cached briefly in an LRU keyed by the full request;
// the pipeline invalidates the cache after an indexing run.
package searcher
