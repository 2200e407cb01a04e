package storage

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrBusy is returned when the storage engine refuses a write because
	// another writer holds the database
	ErrBusy = errors.New("storage busy")
)

const (
	// MaxContentChars caps the extracted text stored in the primary
	// content table. Longer content is truncated, not rejected.
	MaxContentChars = 1_000_000

	// MaxMirrorChars caps the text projected into the full-text mirror.
	MaxMirrorChars = 500_000
)

// Store defines the interface for persisting and querying indexed file content
type Store interface {
	// Indexing operations
	UpsertContent(ctx context.Context, path string, extractedText string) (*File, error)
	Remove(ctx context.Context, path string) error
	CleanupInvalid(ctx context.Context) (int, error)
	Clear(ctx context.Context) error

	// Lookup operations
	GetFileByPath(ctx context.Context, path string) (*File, error)
	GetContent(ctx context.Context, fileID int64) (*Content, error)
	CountFiles(ctx context.Context) (int, error)

	// Search operations
	SearchFullText(ctx context.Context, match string, limit int) ([]Hit, error)
	SearchContentSubstring(ctx context.Context, needle string, limit int) ([]Hit, error)
	SearchFileNames(ctx context.Context, needle string, limit int) ([]Hit, error)

	// Mirror operations
	RebuildMirror(ctx context.Context) (int, error)
	Optimize(ctx context.Context) error

	// Extension allow-list
	ListExtensions(ctx context.Context) ([]string, error)

	// Status operations
	Stats(ctx context.Context) (*IndexStats, error)

	// Database operations
	Close() error
}

// Opener produces an independent storage handle. The pipeline hands one
// to each chunk worker so writers never share a connection.
type Opener func() (Store, error)

// File represents a tracked file on local storage
type File struct {
	ID          int64
	Path        string // Unique key
	Name        string
	SizeBytes   int64
	ModifiedAt  time.Time // UTC
	ContentHash [32]byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Content represents the extracted text for exactly one File
type Content struct {
	ID        int64
	FileID    int64
	Text      string // Decoded, plain text
	IndexedAt time.Time
}

// Hit is one row produced by a search operation: file metadata plus the
// decoded content the match was found in. Content is empty for
// filename-only hits.
type Hit struct {
	File    File
	Content string
}

// IndexStats contains statistics about the index
type IndexStats struct {
	FileCount     int
	ContentCount  int
	MirrorCount   int
	IndexSizeMB   float64
	LastIndexedAt time.Time
}

// ExtensionSet converts a list of extensions into the set form the
// scanner consumes.
func ExtensionSet(extensions []string) map[string]struct{} {
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		set[strings.ToLower(ext)] = struct{}{}
	}
	return set
}

// IsBusy reports whether an error is the storage engine's single-writer
// contention signal. Both drivers surface it as a locked/busy message
// rather than a typed error.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrBusy) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}
