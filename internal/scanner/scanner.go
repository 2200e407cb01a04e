package scanner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"
)

// FileEntry describes a candidate file produced by a scan.
type FileEntry struct {
	Path       string
	Name       string
	SizeBytes  int64
	ModifiedAt time.Time
}

// Config controls which files a scan yields.
type Config struct {
	// MaxFileSize excludes files larger than this many bytes. Zero means
	// no ceiling.
	MaxFileSize int64

	// AllowedExtensions restricts output to these extensions (lowercase,
	// with leading dot). Empty means all extensions are eligible.
	AllowedExtensions map[string]struct{}

	// DeniedExtensions excludes these extensions regardless of the allow
	// set.
	DeniedExtensions map[string]struct{}

	// ExcludedDirs are directory names that are never descended into, at
	// any depth.
	ExcludedDirs map[string]struct{}

	// ExcludePatterns are doublestar globs matched against the
	// slash-separated path; a matching file is excluded.
	ExcludePatterns []string

	// ModifiedAfter, when non-zero, limits output to files modified after
	// the cutoff. Used for incremental runs.
	ModifiedAfter time.Time

	// Workers bounds the per-directory filtering pool. Defaults to
	// runtime.NumCPU().
	Workers int
}

// Scanner walks root directories breadth-first and applies the
// inclusion/exclusion policy from Config.
type Scanner struct {
	config Config
	logger *slog.Logger
}

// New creates a Scanner with the given policy.
func New(config Config, logger *slog.Logger) *Scanner {
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{config: config, logger: logger}
}

// Scan walks all roots and returns the concatenated eligible entries.
// Roots are scanned independently; a failure to read one directory skips
// that subtree and never aborts the scan.
func (s *Scanner) Scan(ctx context.Context, roots []string) ([]FileEntry, error) {
	var all []FileEntry
	for _, root := range roots {
		entries, err := s.scanRoot(ctx, root)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	return all, nil
}

// scanRoot performs a breadth-first traversal from a single root. Each
// directory's file listing is filtered by a pool-bounded task; excluded
// directory names are dropped before they are ever enqueued.
func (s *Scanner) scanRoot(ctx context.Context, root string) ([]FileEntry, error) {
	var (
		mu      sync.Mutex
		results []FileEntry
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)

	queue := []string{root}
	for len(queue) > 0 {
		select {
		case <-gctx.Done():
			_ = g.Wait()
			return nil, gctx.Err()
		default:
		}

		dir := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(dir)
		if err != nil {
			// Permission denied or I/O fault: skip the subtree.
			s.logger.Warn("skipping unreadable directory", "dir", dir, "error", err)
			continue
		}

		var files []os.DirEntry
		for _, entry := range entries {
			if entry.IsDir() {
				if _, excluded := s.config.ExcludedDirs[entry.Name()]; excluded {
					continue
				}
				queue = append(queue, filepath.Join(dir, entry.Name()))
				continue
			}
			files = append(files, entry)
		}

		if len(files) == 0 {
			continue
		}

		g.Go(func() error {
			accepted := s.filterFiles(dir, files)
			if len(accepted) > 0 {
				mu.Lock()
				results = append(results, accepted...)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// filterFiles applies the per-file policy to one directory's listing.
func (s *Scanner) filterFiles(dir string, files []os.DirEntry) []FileEntry {
	accepted := make([]FileEntry, 0, len(files))
	for _, entry := range files {
		path := filepath.Join(dir, entry.Name())

		if !s.extensionEligible(entry.Name()) {
			continue
		}
		if s.patternExcluded(path) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			s.logger.Warn("skipping unstatable file", "path", path, "error", err)
			continue
		}
		if s.config.MaxFileSize > 0 && info.Size() > s.config.MaxFileSize {
			continue
		}
		if !s.config.ModifiedAfter.IsZero() && !info.ModTime().After(s.config.ModifiedAfter) {
			continue
		}

		accepted = append(accepted, FileEntry{
			Path:       path,
			Name:       entry.Name(),
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime().UTC(),
		})
	}
	return accepted
}

// extensionEligible checks the allow/deny extension policy.
func (s *Scanner) extensionEligible(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if _, denied := s.config.DeniedExtensions[ext]; denied {
		return false
	}
	if len(s.config.AllowedExtensions) == 0 {
		return true
	}
	_, allowed := s.config.AllowedExtensions[ext]
	return allowed
}

// patternExcluded matches the path against the exclude globs.
func (s *Scanner) patternExcluded(path string) bool {
	if len(s.config.ExcludePatterns) == 0 {
		return false
	}
	slashPath := filepath.ToSlash(path)
	for _, pattern := range s.config.ExcludePatterns {
		if ok, err := doublestar.Match(pattern, slashPath); err == nil && ok {
			return true
		}
	}
	return false
}
