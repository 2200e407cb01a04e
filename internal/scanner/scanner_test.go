package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFile creates a file with content under dir, creating parents.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func entryPaths(entries []FileEntry) []string {
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	return paths
}

func TestScanBasicFiltering(t *testing.T) {
	root := t.TempDir()
	a := writeFile(t, root, "a.txt", "alpha")
	b := writeFile(t, root, "sub/b.txt", "beta")
	writeFile(t, root, "skip.tmp", "temp")

	s := New(Config{
		AllowedExtensions: map[string]struct{}{".txt": {}},
	}, nil)

	entries, err := s.Scan(context.Background(), []string{root})
	require.NoError(t, err)

	paths := entryPaths(entries)
	assert.Len(t, paths, 2)
	assert.Contains(t, paths, a)
	assert.Contains(t, paths, b)
}

func TestScanExcludedDirsAtAnyDepth(t *testing.T) {
	root := t.TempDir()
	keep := writeFile(t, root, "docs/readme.txt", "keep")
	writeFile(t, root, "node_modules/dep.txt", "skip")
	writeFile(t, root, "docs/node_modules/nested.txt", "skip")

	s := New(Config{
		ExcludedDirs: map[string]struct{}{"node_modules": {}},
	}, nil)

	entries, err := s.Scan(context.Background(), []string{root})
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, entryPaths(entries))
}

func TestScanDeniedExtensionsOverrideAllow(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.log", "log")
	keep := writeFile(t, root, "b.txt", "text")

	s := New(Config{
		AllowedExtensions: map[string]struct{}{".txt": {}, ".log": {}},
		DeniedExtensions:  map[string]struct{}{".log": {}},
	}, nil)

	entries, err := s.Scan(context.Background(), []string{root})
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, entryPaths(entries))
}

func TestScanSizeCeiling(t *testing.T) {
	root := t.TempDir()
	small := writeFile(t, root, "small.txt", "ok")
	writeFile(t, root, "big.txt", string(make([]byte, 100)))

	s := New(Config{MaxFileSize: 10}, nil)

	entries, err := s.Scan(context.Background(), []string{root})
	require.NoError(t, err)
	assert.Equal(t, []string{small}, entryPaths(entries))
}

func TestScanModifiedAfterCutoff(t *testing.T) {
	root := t.TempDir()
	old := writeFile(t, root, "old.txt", "old")
	fresh := writeFile(t, root, "fresh.txt", "fresh")

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	s := New(Config{ModifiedAfter: time.Now().Add(-time.Hour)}, nil)

	entries, err := s.Scan(context.Background(), []string{root})
	require.NoError(t, err)
	assert.Equal(t, []string{fresh}, entryPaths(entries))
}

func TestScanExcludePatterns(t *testing.T) {
	root := t.TempDir()
	keep := writeFile(t, root, "keep.txt", "keep")
	writeFile(t, root, "build/out.txt", "skip")
	writeFile(t, root, "backup.bak.txt", "skip")

	s := New(Config{
		ExcludePatterns: []string{"**/build/**", "**/*.bak.txt"},
	}, nil)

	entries, err := s.Scan(context.Background(), []string{root})
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, entryPaths(entries))
}

func TestScanMultipleRoots(t *testing.T) {
	root1 := t.TempDir()
	root2 := t.TempDir()
	a := writeFile(t, root1, "a.txt", "a")
	b := writeFile(t, root2, "b.txt", "b")

	s := New(Config{}, nil)

	entries, err := s.Scan(context.Background(), []string{root1, root2})
	require.NoError(t, err)

	paths := entryPaths(entries)
	assert.Contains(t, paths, a)
	assert.Contains(t, paths, b)
}

func TestScanUnreadableRootYieldsNothing(t *testing.T) {
	s := New(Config{}, nil)

	entries, err := s.Scan(context.Background(), []string{"/nonexistent/path/for/scan"})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestScanCancellation(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 20; i++ {
		writeFile(t, root, filepath.Join("d", "f"+string(rune('a'+i))+".txt"), "x")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(Config{}, nil)
	_, err := s.Scan(ctx, []string{root})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanEntryMetadata(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "meta.txt", "12345")

	s := New(Config{}, nil)
	entries, err := s.Scan(context.Background(), []string{root})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, path, entry.Path)
	assert.Equal(t, "meta.txt", entry.Name)
	assert.Equal(t, int64(5), entry.SizeBytes)
	assert.WithinDuration(t, time.Now(), entry.ModifiedAt, time.Minute)
}

func TestExtensionEligibleCaseInsensitive(t *testing.T) {
	s := New(Config{
		AllowedExtensions: map[string]struct{}{".txt": {}},
	}, nil)

	assert.True(t, s.extensionEligible("UPPER.TXT"))
	assert.False(t, s.extensionEligible("noext"))
}
