//go:build !cgo_fts5
// +build !cgo_fts5

package storage

// This file is compiled by default (no cgo_fts5 tag). It uses the pure-Go
// SQLite translation, which ships FTS5 support without CGO.
//
// Build command:
//   go build ./...
//
// The modernc driver provides:
//   - No C toolchain requirement, fully static binaries
//   - FTS5 full-text search enabled by default
//   - Recommended for cross-compilation and development
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
