package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/filescout/filescout/internal/extract"
	"github.com/filescout/filescout/internal/scanner"
	"github.com/filescout/filescout/internal/storage"
)

// ErrRunInProgress is returned when a run is requested while another is
// still active.
var ErrRunInProgress = errors.New("an indexing run is already in progress")

// State is the pipeline's per-run state machine:
// Idle -> Scanning -> Indexing -> {Completed | Cancelled | Failed}.
type State int32

const (
	StateIdle State = iota
	StateScanning
	StateIndexing
	StateCompleted
	StateCancelled
	StateFailed
)

// String returns the human-readable state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateIndexing:
		return "indexing"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Progress is a snapshot reported after each processed file.
type Progress struct {
	Processed   int
	Total       int
	Percent     float64
	Status      string
	CurrentPath string
}

// ProgressFunc receives progress snapshots. It may be invoked from any
// worker concurrently; the callback must be safe to call from multiple
// goroutines.
type ProgressFunc func(Progress)

// Options configures a single indexing run.
type Options struct {
	// Workers is the concurrency degree for chunk processing.
	// Defaults to runtime.NumCPU().
	Workers int

	// ChunkSize is how many files each worker claims at a time.
	// Defaults to 50.
	ChunkSize int

	// Scan is the inclusion/exclusion policy handed to the scanner.
	Scan scanner.Config

	// Progress, when non-nil, is called after every processed file.
	Progress ProgressFunc
}

// Summary describes a finished run.
type Summary struct {
	RunID         string
	State         State
	FilesScanned  int
	FilesIndexed  int
	FilesFailed   int
	Duration      time.Duration
	Message       string
	ErrorMessages []string
}

// Runner orchestrates Scanner -> Extractor -> Store across a bounded
// worker pool with progress reporting and cooperative cancellation.
type Runner struct {
	opener    storage.Opener
	extractor extract.Extractor
	logger    *slog.Logger

	state atomic.Int32
	lock  RunLock
}

// New creates a Runner. Each chunk worker acquires its own storage handle
// from the opener for the lifetime of its chunk.
func New(opener storage.Opener, extractor extract.Extractor, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		opener:    opener,
		extractor: extractor,
		logger:    logger,
	}
}

// State returns the current run state.
func (r *Runner) State() State {
	return State(r.state.Load())
}

// SplitPaths splits a semicolon-delimited composite path string into
// independent roots, dropping empty segments.
func SplitPaths(pathSpec string) []string {
	parts := strings.Split(pathSpec, ";")
	roots := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			roots = append(roots, part)
		}
	}
	return roots
}

// Run executes one indexing pass over the given composite path string.
// Per-file failures are contained and logged; only cancellation and
// top-level resource failures (invalid root, unreachable storage) end the
// run early.
func (r *Runner) Run(ctx context.Context, pathSpec string, opts Options) (*Summary, error) {
	if !r.lock.TryAcquire() {
		return nil, ErrRunInProgress
	}
	defer r.lock.Release()

	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 50
	}

	summary := &Summary{
		RunID: uuid.NewString(),
	}
	startTime := time.Now()

	roots := SplitPaths(pathSpec)
	if len(roots) == 0 {
		return r.finish(summary, StateFailed, startTime, errors.New("no root paths given"))
	}
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return r.finish(summary, StateFailed, startTime, fmt.Errorf("invalid root path %s: %w", root, err))
		}
		if !info.IsDir() {
			return r.finish(summary, StateFailed, startTime, fmt.Errorf("root path %s is not a directory", root))
		}
	}

	r.state.Store(int32(StateScanning))
	r.logger.Info("scan started", "run_id", summary.RunID, "roots", len(roots))

	scan := scanner.New(opts.Scan, r.logger)
	entries, err := scan.Scan(ctx, roots)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return r.finish(summary, StateCancelled, startTime, nil)
		}
		return r.finish(summary, StateFailed, startTime, fmt.Errorf("scan failed: %w", err))
	}
	summary.FilesScanned = len(entries)

	r.state.Store(int32(StateIndexing))
	r.logger.Info("indexing started", "run_id", summary.RunID, "files", len(entries), "workers", opts.Workers, "chunk_size", opts.ChunkSize)

	var (
		processed atomic.Int32
		indexed   atomic.Int32
		failed    atomic.Int32
		errMu     sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for start := 0; start < len(entries); start += opts.ChunkSize {
		end := start + opts.ChunkSize
		if end > len(entries) {
			end = len(entries)
		}
		chunk := entries[start:end]

		g.Go(func() error {
			// Cancellation is checked before the chunk is claimed; a
			// signalled context means no new work.
			if err := gctx.Err(); err != nil {
				return err
			}
			return r.processChunk(gctx, chunk, opts, len(entries),
				&processed, &indexed, &failed, &errMu, summary)
		})
	}

	err = g.Wait()
	summary.FilesIndexed = int(indexed.Load())
	summary.FilesFailed = int(failed.Load())

	switch {
	case err == nil:
		return r.finish(summary, StateCompleted, startTime, nil)
	case errors.Is(err, context.Canceled):
		return r.finish(summary, StateCancelled, startTime, nil)
	default:
		return r.finish(summary, StateFailed, startTime, err)
	}
}

// processChunk indexes one chunk of files using an isolated storage
// handle. Failures on a single file never abort the chunk.
func (r *Runner) processChunk(ctx context.Context, chunk []scanner.FileEntry, opts Options,
	total int, processed, indexed, failed *atomic.Int32, errMu *sync.Mutex, summary *Summary) error {

	store, err := r.opener()
	if err != nil {
		// Storage unreachable is fatal for the run.
		return fmt.Errorf("failed to open storage handle: %w", err)
	}
	defer func() { _ = store.Close() }()

	for _, entry := range chunk {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := r.indexFile(ctx, store, entry.Path); err != nil {
			failed.Add(1)
			r.logger.Warn("failed to index file", "path", entry.Path, "error", err)
			errMu.Lock()
			summary.ErrorMessages = append(summary.ErrorMessages, fmt.Sprintf("%s: %v", entry.Path, err))
			errMu.Unlock()
		} else {
			indexed.Add(1)
		}

		done := int(processed.Add(1))
		if opts.Progress != nil {
			opts.Progress(Progress{
				Processed:   done,
				Total:       total,
				Percent:     percent(done, total),
				Status:      fmt.Sprintf("Indexing %d of %d files", done, total),
				CurrentPath: entry.Path,
			})
		}
	}
	return nil
}

// indexFile extracts and stores one file, retrying a busy storage engine
// once before dropping the record for this pass.
func (r *Runner) indexFile(ctx context.Context, store storage.Store, path string) error {
	// Extraction never fails by contract; unreadable content comes back
	// as empty text and the file stays searchable by name.
	text := r.extractor.ExtractText(path)

	_, err := store.UpsertContent(ctx, path, text)
	if err != nil && storage.IsBusy(err) {
		// Re-attempt from scratch: the hash recompute forces the record
		// through the changed path again.
		_, err = store.UpsertContent(ctx, path, text)
	}
	return err
}

// finish records the terminal state and builds the human-readable summary.
func (r *Runner) finish(summary *Summary, state State, startTime time.Time, err error) (*Summary, error) {
	r.state.Store(int32(state))
	summary.State = state
	summary.Duration = time.Since(startTime)

	switch state {
	case StateCompleted:
		summary.Message = fmt.Sprintf("Indexed %d of %d files (%d failed) in %s",
			summary.FilesIndexed, summary.FilesScanned, summary.FilesFailed, summary.Duration.Round(time.Millisecond))
	case StateCancelled:
		summary.Message = fmt.Sprintf("Cancelled after %d of %d files", summary.FilesIndexed, summary.FilesScanned)
	case StateFailed:
		summary.Message = fmt.Sprintf("Failed: %v", err)
	}

	r.logger.Info("run finished", "run_id", summary.RunID, "state", state.String(), "message", summary.Message)
	if err != nil {
		return summary, err
	}
	return summary, nil
}

// percent computes a completion percentage, guarding the empty run.
func percent(done, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(done) / float64(total) * 100
}
