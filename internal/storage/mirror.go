package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// The full-text mirror is kept consistent with content_index by
// write-through: UpsertContent and Remove update the mirror row inside the
// same transaction as the primary rows. Bulk population only happens when
// a store opens over existing content and the mirror is empty (fresh
// mirror table, or recovery after RebuildMirror cleared it).

// execer covers *sql.DB and *sql.Tx for mirror row maintenance.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// replaceMirrorRow swaps the mirror row for a path. FTS5 has no upsert, so
// the old row is deleted first.
func replaceMirrorRow(ctx context.Context, q execer, path, mirrorText string) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM content_index_fts WHERE file_path = ?", path); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx,
		"INSERT INTO content_index_fts (content, file_path) VALUES (?, ?)", mirrorText, path)
	return err
}

// initMirror bulk-populates the mirror when it is empty but primary
// content exists. A non-empty mirror is treated as synchronized, which is
// safe because every write path is write-through.
func (s *SQLiteStore) initMirror(ctx context.Context) error {
	var mirrorRows, contentRows int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM content_index_fts").Scan(&mirrorRows); err != nil {
		return err
	}
	if mirrorRows > 0 {
		return nil
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM content_index").Scan(&contentRows); err != nil {
		return err
	}
	if contentRows == 0 {
		return nil
	}

	populated, err := s.populateMirror(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("populated full-text mirror", "rows", populated)
	return nil
}

// RebuildMirror clears the mirror and repopulates it from all content
// records, decoding any compressed encoding and re-truncating to the
// mirror cap. Returns the number of rows written.
func (s *SQLiteStore) RebuildMirror(ctx context.Context) (int, error) {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM content_index_fts"); err != nil {
		return 0, fmt.Errorf("failed to clear mirror: %w", err)
	}
	return s.populateMirror(ctx)
}

// populateMirror writes one mirror row per content record.
func (s *SQLiteStore) populateMirror(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.path, ci.content
		FROM content_index ci
		JOIN files f ON f.id = ci.file_id
	`)
	if err != nil {
		return 0, err
	}

	type mirrorRow struct {
		path string
		text string
	}
	var pending []mirrorRow
	for rows.Next() {
		var path, stored string
		if err := rows.Scan(&path, &stored); err != nil {
			_ = rows.Close()
			return 0, err
		}
		text, err := DecodeContent(stored)
		if err != nil {
			s.logger.Warn("skipping corrupt content during mirror populate", "path", path, "error", err)
			continue
		}
		text = truncateAtRune(text, MaxMirrorChars)
		pending = append(pending, mirrorRow{path: path, text: text})
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, err
	}
	_ = rows.Close()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	for _, row := range pending {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO content_index_fts (content, file_path) VALUES (?, ?)", row.text, row.path); err != nil {
			return 0, fmt.Errorf("failed to populate mirror for %s: %w", row.path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(pending), nil
}

// Optimize compacts the mirror's internal index structure to bound search
// latency growth.
func (s *SQLiteStore) Optimize(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "INSERT INTO content_index_fts(content_index_fts) VALUES('optimize')")
	if err != nil {
		return fmt.Errorf("failed to optimize mirror: %w", err)
	}
	return nil
}
