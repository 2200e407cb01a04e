// Package storage provides SQLite-backed persistence for indexed file
// content, including the full-text mirror and change detection.
//
// # Schema
//
// Four tables hold the index:
//
//   - files: one record per distinct path, with size, modification time,
//     and a SHA-256 hash of the file's bytes at index time
//   - content_index: the extracted text, one-to-one with files, stored
//     plain or gzip+base64 encoded behind a "GZ:" tag (see encoding.go)
//   - content_index_fts: an FTS5 virtual table mirroring (content,
//     file_path) with a Unicode-aware tokenizer
//   - file_extensions: the seeded extension allow-list
//
// # Handles and concurrency
//
// Open returns an independent handle with its own connection, configured
// for WAL journaling and a busy timeout. Concurrent indexing workers must
// each open their own handle (see NewOpener); SQLite serializes writers,
// and IsBusy identifies the contention signal so callers can retry.
// Read-heavy query traffic is isolated from writers by WAL.
//
// # Mirror consistency
//
// The mirror is maintained write-through: UpsertContent and Remove touch
// the FTS row in the same transaction as the primary rows. Bulk
// population runs only when a store opens over existing content with an
// empty mirror; RebuildMirror forces a full resync and Optimize compacts
// the FTS structure.
//
// # Drivers
//
// Two drivers are selected by build tag, both with FTS5: mattn/go-sqlite3
// under cgo_fts5 (CGO), modernc.org/sqlite otherwise (pure Go). See
// build_cgo.go and build_purego.go.
package storage
