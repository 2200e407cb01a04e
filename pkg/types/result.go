package types

import "time"

// MatchStrategy identifies which search strategy produced a result.
type MatchStrategy string

const (
	// MatchFullText means the query matched in the full-text mirror.
	MatchFullText MatchStrategy = "fulltext"
	// MatchContent means the query matched as a substring of stored content.
	MatchContent MatchStrategy = "content"
	// MatchFileName means the query matched the file name only.
	MatchFileName MatchStrategy = "filename"
)

// SearchMatch represents a single search result
type SearchMatch struct {
	// Identification
	FileID int64
	Path   string
	Name   string

	// File metadata
	SizeBytes  int64
	ModifiedAt time.Time

	// Match details
	Snippet  string        // Window around the first occurrence of the query
	Strategy MatchStrategy // Strategy that produced this match
}

// Validate checks if the search match is valid
func (m *SearchMatch) Validate() error {
	if m.FileID == 0 {
		return ErrInvalidFileID
	}

	if m.Path == "" {
		return ErrMissingPath
	}

	if m.Strategy == "" {
		return ErrMissingStrategy
	}

	return nil
}
