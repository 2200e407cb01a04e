package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore opens a store against a fresh temp database.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := Open(dbPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// writeTestFile creates a real file on disk for upsert to hash.
func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestUpsertContentCreatesRecords(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	path := writeTestFile(t, "doc.txt", "file bytes on disk")

	file, err := store.UpsertContent(ctx, path, "extracted text")
	require.NoError(t, err)
	assert.NotZero(t, file.ID)
	assert.Equal(t, path, file.Path)
	assert.Equal(t, "doc.txt", file.Name)
	assert.NotEqual(t, [32]byte{}, file.ContentHash)

	got, err := store.GetFileByPath(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, file.ID, got.ID)
	assert.Equal(t, file.ContentHash, got.ContentHash)

	content, err := store.GetContent(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, "extracted text", content.Text)
	assert.False(t, content.IndexedAt.IsZero())
}

func TestUpsertContentPathUnique(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	path := writeTestFile(t, "doc.txt", "v1")

	first, err := store.UpsertContent(ctx, path, "first")
	require.NoError(t, err)

	second, err := store.UpsertContent(ctx, path, "second")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	count, err := store.CountFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	content, err := store.GetContent(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "second", content.Text)
}

func TestUpsertContentRecomputesHash(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0644))

	first, err := store.UpsertContent(ctx, path, "text")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("changed bytes"), 0644))

	second, err := store.UpsertContent(ctx, path, "text")
	require.NoError(t, err)
	assert.NotEqual(t, first.ContentHash, second.ContentHash)
}

func TestUpsertContentUnchangedFileKeepsHash(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	path := writeTestFile(t, "doc.txt", "stable bytes")

	first, err := store.UpsertContent(ctx, path, "text")
	require.NoError(t, err)

	second, err := store.UpsertContent(ctx, path, "text")
	require.NoError(t, err)
	assert.Equal(t, first.ContentHash, second.ContentHash)
}

func TestUpsertContentMissingFile(t *testing.T) {
	store := newTestStore(t)

	_, err := store.UpsertContent(context.Background(), "/nonexistent/doc.txt", "text")
	assert.Error(t, err)
}

func TestUpsertContentTruncatesOversized(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	path := writeTestFile(t, "big.txt", "small file")

	oversized := strings.Repeat("x", MaxContentChars+100)
	file, err := store.UpsertContent(ctx, path, oversized)
	require.NoError(t, err)

	content, err := store.GetContent(ctx, file.ID)
	require.NoError(t, err)
	assert.Len(t, content.Text, MaxContentChars)
}

func TestRemoveDeletesPair(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	path := writeTestFile(t, "doc.txt", "bytes")

	file, err := store.UpsertContent(ctx, path, "text")
	require.NoError(t, err)

	require.NoError(t, store.Remove(ctx, path))

	_, err = store.GetFileByPath(ctx, path)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetContent(ctx, file.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.MirrorCount)
}

func TestRemoveMissing(t *testing.T) {
	store := newTestStore(t)
	err := store.Remove(context.Background(), "/no/such/file.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCleanupInvalid(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	dir := t.TempDir()
	gone := filepath.Join(dir, "gone.txt")
	require.NoError(t, os.WriteFile(gone, []byte("x"), 0644))
	kept := writeTestFile(t, "kept.txt", "y")

	_, err := store.UpsertContent(ctx, gone, "gone text")
	require.NoError(t, err)
	_, err = store.UpsertContent(ctx, kept, "kept text")
	require.NoError(t, err)

	require.NoError(t, os.Remove(gone))

	removed, err := store.CleanupInvalid(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	count, err := store.CountFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = store.GetFileByPath(ctx, kept)
	assert.NoError(t, err)
}

func TestClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	path := writeTestFile(t, "doc.txt", "bytes")

	_, err := store.UpsertContent(ctx, path, "text")
	require.NoError(t, err)

	require.NoError(t, store.Clear(ctx))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.FileCount)
	assert.Zero(t, stats.ContentCount)
	assert.Zero(t, stats.MirrorCount)
}

func TestSearchFullText(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p1 := writeTestFile(t, "report.txt", "a")
	p2 := writeTestFile(t, "notes.txt", "b")
	_, err := store.UpsertContent(ctx, p1, "quarterly revenue projections")
	require.NoError(t, err)
	_, err = store.UpsertContent(ctx, p2, "meeting notes about lunch")
	require.NoError(t, err)

	hits, err := store.SearchFullText(ctx, `"revenue"`, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, p1, hits[0].File.Path)
	assert.Contains(t, hits[0].Content, "revenue")
}

func TestSearchFullTextIgnoresPathColumn(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// The file name carries a token that never appears in the content;
	// a full-text hit on it would mean the MATCH leaked into file_path.
	path := writeTestFile(t, "zebra_marker.txt", "a")
	_, err := store.UpsertContent(ctx, path, "plain ordinary words")
	require.NoError(t, err)

	hits, err := store.SearchFullText(ctx, `"zebra"`, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = store.SearchFullText(ctx, `"ordinary"`, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestUpsertContentTruncatesAtRuneBoundary(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	path := writeTestFile(t, "runes.txt", "small file")

	// Pad so the cap falls in the middle of a two-byte rune.
	oversized := strings.Repeat("x", MaxContentChars-1) + strings.Repeat("é", 50)
	file, err := store.UpsertContent(ctx, path, oversized)
	require.NoError(t, err)

	content, err := store.GetContent(ctx, file.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(content.Text), MaxContentChars)
	assert.True(t, utf8.ValidString(content.Text))
}

func TestTruncateAtRune(t *testing.T) {
	assert.Equal(t, "abc", truncateAtRune("abc", 10))
	assert.Equal(t, "ab", truncateAtRune("abcd", 2))
	// "é" is two bytes; a cut at byte 3 must back off to the rune start.
	assert.Equal(t, "ab", truncateAtRune("abéd", 3))
	assert.Equal(t, "abé", truncateAtRune("abéd", 4))
}

func TestSearchContentSubstringCaseInsensitive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	path := writeTestFile(t, "doc.txt", "a")
	_, err := store.UpsertContent(ctx, path, "The Quick Brown Fox")
	require.NoError(t, err)

	hits, err := store.SearchContentSubstring(ctx, "quick brown", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "The Quick Brown Fox", hits[0].Content)
}

func TestSearchContentSubstringDecodesCompressed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Large enough to be stored compressed; substring search must still
	// see the plain text.
	text := strings.Repeat("filler line\n", 500) + "needle in the haystack"
	path := writeTestFile(t, "big.txt", "a")
	_, err := store.UpsertContent(ctx, path, text)
	require.NoError(t, err)

	hits, err := store.SearchContentSubstring(ctx, "NEEDLE in", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestSearchFileNames(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p1 := writeTestFile(t, "budget_2026.txt", "a")
	p2 := writeTestFile(t, "other.txt", "b")
	_, err := store.UpsertContent(ctx, p1, "")
	require.NoError(t, err)
	_, err = store.UpsertContent(ctx, p2, "")
	require.NoError(t, err)

	hits, err := store.SearchFileNames(ctx, "BUDGET", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "budget_2026.txt", hits[0].File.Name)
	assert.Empty(t, hits[0].Content)
}

func TestSearchFileNamesEscapesWildcards(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p1 := writeTestFile(t, "pct_100%.txt", "a")
	p2 := writeTestFile(t, "pct_100x.txt", "b")
	_, err := store.UpsertContent(ctx, p1, "")
	require.NoError(t, err)
	_, err = store.UpsertContent(ctx, p2, "")
	require.NoError(t, err)

	hits, err := store.SearchFileNames(ctx, "100%", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "pct_100%.txt", hits[0].File.Name)
}

func TestListExtensionsSeeded(t *testing.T) {
	store := newTestStore(t)

	extensions, err := store.ListExtensions(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, extensions)
	assert.Contains(t, extensions, ".txt")
	assert.Contains(t, extensions, ".pdf")
}

func TestStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.FileCount)
	assert.True(t, stats.LastIndexedAt.IsZero())

	path := writeTestFile(t, "doc.txt", "bytes")
	_, err = store.UpsertContent(ctx, path, "text")
	require.NoError(t, err)

	stats, err = store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FileCount)
	assert.Equal(t, 1, stats.ContentCount)
	assert.Equal(t, 1, stats.MirrorCount)
	assert.Positive(t, stats.IndexSizeMB)
	assert.WithinDuration(t, time.Now(), stats.LastIndexedAt, time.Minute)
}

func TestIsBusy(t *testing.T) {
	assert.False(t, IsBusy(nil))
	assert.True(t, IsBusy(ErrBusy))
	assert.True(t, IsBusy(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.False(t, IsBusy(errors.New("syntax error")))
}
