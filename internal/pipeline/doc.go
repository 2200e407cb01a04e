// Package pipeline orchestrates indexing runs: scan, extract, store.
//
// A run moves through Idle -> Scanning -> Indexing and ends Completed,
// Cancelled, or Failed. The candidate list from the scanner is split into
// fixed-size chunks; each chunk is processed by one worker from a pool
// bounded by the concurrency degree, and every worker opens its own
// storage handle so writers never contend on a shared connection.
//
// Failure containment follows three tiers. A single file failing to
// extract or store is logged and skipped. A busy storage engine is
// retried once. Only cancellation and top-level resource failures (an
// invalid root, unreachable storage) end the run, and work already
// committed stays searchable.
//
// Cancellation is cooperative: the context is checked before each chunk
// is claimed and before each file within a chunk, so an in-flight file
// may finish after the signal but no new work starts.
package pipeline
