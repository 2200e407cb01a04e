package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode so readers are unaffected by concurrent writers
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Serialize writers on this handle; each worker opens its own
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Open creates a new SQLite store handle. Every handle is independent;
// concurrent workers must each call Open rather than share one.
func Open(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}

	// Populate the mirror once, from existing content, only when it is
	// empty. After that the mirror is maintained write-through by
	// UpsertContent.
	if err := s.initMirror(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize full-text mirror: %w", err)
	}

	return s, nil
}

// NewOpener returns an Opener bound to a database path, for handing fresh
// handles to pipeline workers.
func NewOpener(dbPath string, logger *slog.Logger) Opener {
	return func() (Store, error) {
		return Open(dbPath, logger)
	}
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertContent indexes one file: it recomputes the content hash from the
// file's current bytes, creates or updates the file record and its content
// record, and writes through to the full-text mirror, all in one
// transaction. The hash is always recomputed so stored metadata stays
// authoritative even when nothing changed.
func (s *SQLiteStore) UpsertContent(ctx context.Context, path string, extractedText string) (*File, error) {
	hash, modTime, sizeBytes, err := hashFileBytes(path)
	if err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", path, err)
	}

	text := s.truncate(path, extractedText, MaxContentChars)
	encoded := EncodeContent(text)
	mirrorText := truncateAtRune(text, MaxMirrorChars)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	file := &File{
		Path:        path,
		Name:        filepath.Base(path),
		SizeBytes:   sizeBytes,
		ModifiedAt:  modTime.UTC(),
		ContentHash: hash,
	}

	query := `
		INSERT INTO files (path, name, size_bytes, modified_at, content_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name = excluded.name,
			size_bytes = excluded.size_bytes,
			modified_at = excluded.modified_at,
			content_hash = excluded.content_hash,
			updated_at = excluded.updated_at
		RETURNING id
	`
	err = tx.QueryRowContext(ctx, query,
		file.Path, file.Name, file.SizeBytes, file.ModifiedAt, hash[:], now, now).Scan(&file.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert file: %w", err)
	}
	file.UpdatedAt = now

	contentQuery := `
		INSERT INTO content_index (file_id, content, indexed_at)
		VALUES (?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET
			content = excluded.content,
			indexed_at = excluded.indexed_at
	`
	if _, err := tx.ExecContext(ctx, contentQuery, file.ID, encoded, now); err != nil {
		return nil, fmt.Errorf("failed to upsert content: %w", err)
	}

	if err := replaceMirrorRow(ctx, tx, file.Path, mirrorText); err != nil {
		return nil, fmt.Errorf("failed to update mirror: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit upsert: %w", err)
	}
	return file, nil
}

// Remove deletes a file record and its content record together, plus the
// mirror row. The content record is deleted first because the schema does
// not cascade.
func (s *SQLiteStore) Remove(ctx context.Context, path string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var fileID int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM files WHERE path = ?", path).Scan(&fileID)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM content_index WHERE file_id = ?", fileID); err != nil {
		return fmt.Errorf("failed to delete content: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE id = ?", fileID); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM content_index_fts WHERE file_path = ?", path); err != nil {
		return fmt.Errorf("failed to delete mirror row: %w", err)
	}

	return tx.Commit()
}

// CleanupInvalid removes every file record whose path no longer exists on
// disk. Returns the number of records removed.
func (s *SQLiteStore) CleanupInvalid(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT path FROM files")
	if err != nil {
		return 0, err
	}

	var stale []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			_ = rows.Close()
			return 0, err
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			stale = append(stale, path)
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, err
	}
	_ = rows.Close()

	removed := 0
	for _, path := range stale {
		if err := s.Remove(ctx, path); err != nil {
			if err == ErrNotFound {
				continue
			}
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Clear empties all record types and reclaims storage space.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	stmts := []string{
		"DELETE FROM content_index",
		"DELETE FROM files",
		"DELETE FROM content_index_fts",
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear index: %w", err)
		}
	}

	// VACUUM cannot run inside a transaction
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum: %w", err)
	}
	return nil
}

// GetFileByPath retrieves a file record by its unique path
func (s *SQLiteStore) GetFileByPath(ctx context.Context, path string) (*File, error) {
	query := `
		SELECT id, path, name, size_bytes, modified_at, content_hash, created_at, updated_at
		FROM files
		WHERE path = ?
	`
	var file File
	var hash []byte
	err := s.db.QueryRowContext(ctx, query, path).Scan(
		&file.ID, &file.Path, &file.Name, &file.SizeBytes,
		&file.ModifiedAt, &hash, &file.CreatedAt, &file.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	copy(file.ContentHash[:], hash)
	return &file, nil
}

// GetContent retrieves and decodes the content record for a file
func (s *SQLiteStore) GetContent(ctx context.Context, fileID int64) (*Content, error) {
	query := `
		SELECT id, file_id, content, indexed_at
		FROM content_index
		WHERE file_id = ?
	`
	var content Content
	var stored string
	err := s.db.QueryRowContext(ctx, query, fileID).Scan(
		&content.ID, &content.FileID, &stored, &content.IndexedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	content.Text, err = DecodeContent(stored)
	if err != nil {
		return nil, fmt.Errorf("corrupt content for file %d: %w", fileID, err)
	}
	return &content, nil
}

// CountFiles returns the number of file records
func (s *SQLiteStore) CountFiles(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files").Scan(&count)
	return count, err
}

// SearchFullText runs an FTS5 MATCH against the mirror and joins the hits
// back to file records by path. The match is scoped to the content
// column; file_path is also an FTS column and a bare MATCH would treat
// path segments as hits.
func (s *SQLiteStore) SearchFullText(ctx context.Context, match string, limit int) ([]Hit, error) {
	if strings.TrimSpace(match) == "" {
		return []Hit{}, nil
	}
	scoped := "content : (" + match + ")"
	query := `
		SELECT f.id, f.path, f.name, f.size_bytes, f.modified_at, f.content_hash,
		       f.created_at, f.updated_at, ci.content
		FROM content_index_fts fts
		JOIN files f ON f.path = fts.file_path
		JOIN content_index ci ON ci.file_id = f.id
		WHERE content_index_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, scoped, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return s.collectHits(rows)
}

// SearchContentSubstring streams all content rows, decodes them, and
// matches the needle case-insensitively. It is the fallback when the
// mirror yields nothing, so a full pass is acceptable.
func (s *SQLiteStore) SearchContentSubstring(ctx context.Context, needle string, limit int) ([]Hit, error) {
	query := `
		SELECT f.id, f.path, f.name, f.size_bytes, f.modified_at, f.content_hash,
		       f.created_at, f.updated_at, ci.content
		FROM content_index ci
		JOIN files f ON f.id = ci.file_id
		ORDER BY f.path
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	lowered := strings.ToLower(needle)
	hits := make([]Hit, 0)
	for rows.Next() {
		hit, err := scanHit(rows)
		if err != nil {
			return nil, err
		}
		text, err := DecodeContent(hit.Content)
		if err != nil {
			s.logger.Warn("skipping corrupt content row", "path", hit.File.Path, "error", err)
			continue
		}
		if !strings.Contains(strings.ToLower(text), lowered) {
			continue
		}
		hit.Content = text
		hits = append(hits, hit)
		if len(hits) >= limit {
			break
		}
	}
	return hits, rows.Err()
}

// SearchFileNames matches the needle against file names only.
func (s *SQLiteStore) SearchFileNames(ctx context.Context, needle string, limit int) ([]Hit, error) {
	query := `
		SELECT id, path, name, size_bytes, modified_at, content_hash, created_at, updated_at
		FROM files
		WHERE lower(name) LIKE '%' || ? || '%' ESCAPE '\'
		ORDER BY path
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, escapeLike(strings.ToLower(needle)), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	hits := make([]Hit, 0)
	for rows.Next() {
		var hit Hit
		var hash []byte
		err := rows.Scan(
			&hit.File.ID, &hit.File.Path, &hit.File.Name, &hit.File.SizeBytes,
			&hit.File.ModifiedAt, &hash, &hit.File.CreatedAt, &hit.File.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		copy(hit.File.ContentHash[:], hash)
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// ListExtensions returns the seeded extension allow-list
func (s *SQLiteStore) ListExtensions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT extension FROM file_extensions ORDER BY extension")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	extensions := make([]string, 0)
	for rows.Next() {
		var ext string
		if err := rows.Scan(&ext); err != nil {
			return nil, err
		}
		extensions = append(extensions, ext)
	}
	return extensions, rows.Err()
}

// Stats returns index statistics
func (s *SQLiteStore) Stats(ctx context.Context) (*IndexStats, error) {
	stats := &IndexStats{}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files").Scan(&stats.FileCount); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM content_index").Scan(&stats.ContentCount); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM content_index_fts").Scan(&stats.MirrorCount); err != nil {
		return nil, err
	}

	// Select the column directly rather than MAX(): the aggregate loses
	// the decltype and both drivers would hand back a bare string.
	var lastIndexed time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT indexed_at FROM content_index ORDER BY indexed_at DESC LIMIT 1").Scan(&lastIndexed)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if err == nil {
		stats.LastIndexedAt = lastIndexed
	}

	var pageCount, pageSize int
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	return stats, nil
}

// collectHits scans joined file+content rows and decodes the content.
func (s *SQLiteStore) collectHits(rows *sql.Rows) ([]Hit, error) {
	hits := make([]Hit, 0)
	for rows.Next() {
		hit, err := scanHit(rows)
		if err != nil {
			return nil, err
		}
		text, err := DecodeContent(hit.Content)
		if err != nil {
			s.logger.Warn("skipping corrupt content row", "path", hit.File.Path, "error", err)
			continue
		}
		hit.Content = text
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// scanHit reads one joined file+content row.
func scanHit(rows *sql.Rows) (Hit, error) {
	var hit Hit
	var hash []byte
	err := rows.Scan(
		&hit.File.ID, &hit.File.Path, &hit.File.Name, &hit.File.SizeBytes,
		&hit.File.ModifiedAt, &hash, &hit.File.CreatedAt, &hit.File.UpdatedAt,
		&hit.Content,
	)
	if err != nil {
		return Hit{}, err
	}
	copy(hit.File.ContentHash[:], hash)
	return hit, nil
}

// truncate caps text at max bytes, logging when content is dropped.
func (s *SQLiteStore) truncate(path, text string, max int) string {
	if len(text) <= max {
		return text
	}
	s.logger.Warn("truncating oversized content", "path", path, "chars", len(text), "cap", max)
	return truncateAtRune(text, max)
}

// truncateAtRune caps text at max bytes without splitting a UTF-8 rune,
// walking back to the nearest rune start.
func truncateAtRune(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// escapeLike escapes LIKE wildcards in user input.
func escapeLike(needle string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(needle)
}

// hashFileBytes computes the SHA-256 hash of a file's current bytes along
// with its size and modification time.
func hashFileBytes(path string) ([32]byte, time.Time, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return [32]byte{}, time.Time{}, 0, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return [32]byte{}, time.Time{}, 0, err
	}

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return [32]byte{}, time.Time{}, 0, err
	}

	var result [32]byte
	copy(result[:], hash.Sum(nil))

	return result, info.ModTime(), info.Size(), nil
}
