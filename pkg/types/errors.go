package types

import "errors"

// Domain errors for type validation
var (
	// Search match errors
	ErrInvalidFileID   = errors.New("invalid file ID")
	ErrMissingPath     = errors.New("path is required")
	ErrMissingStrategy = errors.New("match strategy is required")
)
