// Package mcp exposes the indexing and search engine as an MCP server
// over stdio.
//
// Five tools are registered: index_files runs the scan-and-index
// pipeline over one or more roots, search_content queries the index
// with cascading fallback, index_status reports record counts and
// size, cleanup_index prunes records for deleted files (or clears the
// index outright), and optimize_index compacts the full-text mirror.
//
// Stdout belongs to the MCP transport; all logging goes to stderr via
// slog.
package mcp
