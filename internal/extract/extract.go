package extract

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const (
	// maxReadBytes bounds how much of a file any built-in strategy reads.
	maxReadBytes = 8 << 20 // 8 MiB

	// minRunLength is the shortest printable run the byte-dump strategy keeps.
	minRunLength = 4
)

// Extractor maps a file path to its plain-text content.
//
// Implementations must never fail: on unreadable or malformed input they
// return an empty string. The registry additionally converts panics from
// injected strategies into empty output, so a misbehaving format parser
// cannot take down an indexing run.
type Extractor interface {
	ExtractText(path string) string
}

// Func adapts a plain function to the Extractor interface.
type Func func(path string) string

// ExtractText implements Extractor.
func (f Func) ExtractText(path string) string { return f(path) }

// Registry dispatches extraction to a per-extension strategy, falling back
// to a printable-byte dump for unknown types.
type Registry struct {
	byExt    map[string]Extractor
	fallback Extractor
	logger   *slog.Logger
}

// NewRegistry creates a registry pre-wired with the built-in strategies:
// plain text for textual extensions and the byte-dump fallback for
// everything else. Format-specific strategies (office, PDF, OCR) are
// registered by the caller via Register.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		byExt:    make(map[string]Extractor),
		fallback: Func(extractPrintable),
		logger:   logger,
	}

	plain := Func(extractPlainText)
	for _, ext := range textExtensions {
		r.byExt[ext] = plain
	}

	return r
}

// Register installs a strategy for the given extensions (with leading dot,
// case-insensitive). Later registrations win.
func (r *Registry) Register(strategy Extractor, extensions ...string) {
	for _, ext := range extensions {
		r.byExt[strings.ToLower(ext)] = strategy
	}
}

// ExtractText dispatches by extension and guards against strategy panics.
// It never fails; all error paths produce an empty string.
func (r *Registry) ExtractText(path string) (text string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("extraction strategy panicked", "path", path, "panic", rec)
			text = ""
		}
	}()

	ext := strings.ToLower(filepath.Ext(path))
	if strategy, ok := r.byExt[ext]; ok {
		return strategy.ExtractText(path)
	}
	return r.fallback.ExtractText(path)
}

// textExtensions are handled by the plain-text strategy out of the box.
var textExtensions = []string{
	".txt", ".md", ".markdown", ".rst", ".log",
	".csv", ".tsv", ".json", ".yaml", ".yml", ".toml", ".ini", ".cfg", ".conf",
	".xml", ".html", ".htm", ".css",
	".go", ".py", ".js", ".ts", ".java", ".c", ".h", ".cpp", ".hpp", ".cs",
	".rb", ".rs", ".sh", ".bat", ".ps1", ".sql",
}

// extractPlainText reads a file as UTF-8 text, replacing invalid sequences.
func extractPlainText(path string) string {
	data, err := readBounded(path)
	if err != nil {
		return ""
	}
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "�")
}

// extractPrintable is the default fallback for unknown file types. It keeps
// runs of printable ASCII and common whitespace, separated by newlines,
// similar to strings(1). Binary formats still yield something searchable.
func extractPrintable(path string) string {
	data, err := readBounded(path)
	if err != nil {
		return ""
	}

	var out bytes.Buffer
	var run bytes.Buffer
	flush := func() {
		if run.Len() >= minRunLength {
			out.Write(run.Bytes())
			out.WriteByte('\n')
		}
		run.Reset()
	}

	for _, b := range data {
		if b >= 0x20 && b < 0x7f || b == '\t' {
			run.WriteByte(b)
			continue
		}
		flush()
	}
	flush()

	return out.String()
}

// readBounded reads at most maxReadBytes from a file.
func readBounded(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	return io.ReadAll(io.LimitReader(f, maxReadBytes))
}
