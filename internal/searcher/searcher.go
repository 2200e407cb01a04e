package searcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/filescout/filescout/internal/storage"
	"github.com/filescout/filescout/pkg/types"
)

const (
	// MinQueryLength is the UX threshold below which a trimmed query
	// returns an empty result rather than an error.
	MinQueryLength = 2

	// MaxResults caps every search response.
	MaxResults = 200

	// DefaultSnippetLength is the context window around a match.
	DefaultSnippetLength = 200

	// fetchBudget is how many rows a strategy fetches before the
	// category and root filters are applied.
	fetchBudget = 1000

	// cacheSize bounds the query result cache.
	cacheSize = 256
)

// categoryExtensions maps a category token to its fixed extension set.
var categoryExtensions = map[string][]string{
	"doc":   {".doc", ".docx", ".pdf", ".txt", ".md"},
	"sheet": {".xls", ".xlsx", ".csv", ".ods"},
	"slide": {".ppt", ".pptx", ".odp"},
	"web":   {".html", ".htm", ".xml"},
	"image": {".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp"},
}

// cacheEntry is a cached result set with its expiry.
type cacheEntry struct {
	matches   []types.SearchMatch
	expiresAt time.Time
}

// Searcher executes full-text queries with a cascading fallback strategy
// list. It reads from the store independently of the indexing pipeline
// and never blocks on it.
type Searcher struct {
	store      storage.Store
	logger     *slog.Logger
	snippetLen int
	cacheTTL   time.Duration
	cache      *lru.Cache[[32]byte, *cacheEntry]
	cacheMu    sync.RWMutex
}

// New creates a Searcher with the default snippet length and a short
// result cache.
func New(store storage.Store, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.New[[32]byte, *cacheEntry](cacheSize)
	if err != nil {
		// Only possible with an invalid size constant.
		panic(fmt.Sprintf("failed to create query cache: %v", err))
	}
	return &Searcher{
		store:      store,
		logger:     logger,
		snippetLen: DefaultSnippetLength,
		cacheTTL:   30 * time.Second,
		cache:      cache,
	}
}

// strategy is one named step of the cascading fallback.
type strategy struct {
	name types.MatchStrategy
	run  func(ctx context.Context, query string) ([]storage.Hit, error)
}

// strategies returns the ordered fallback list: full-text mirror match,
// then content substring, then file-name substring.
func (s *Searcher) strategies() []strategy {
	return []strategy{
		{
			name: types.MatchFullText,
			run: func(ctx context.Context, query string) ([]storage.Hit, error) {
				return s.store.SearchFullText(ctx, BuildFTSQuery(query), fetchBudget)
			},
		},
		{
			name: types.MatchContent,
			run: func(ctx context.Context, query string) ([]storage.Hit, error) {
				return s.store.SearchContentSubstring(ctx, query, fetchBudget)
			},
		},
		{
			name: types.MatchFileName,
			run: func(ctx context.Context, query string) ([]storage.Hit, error) {
				return s.store.SearchFileNames(ctx, query, fetchBudget)
			},
		},
	}
}

// Search runs the cascading fallback for a query, applying the category
// and root-path filters to every strategy's output and stopping at the
// first strategy that yields any result. Results are capped at
// MaxResults and carry a snippet around the first occurrence.
func (s *Searcher) Search(ctx context.Context, query, category, rootFilter string) ([]types.SearchMatch, error) {
	query = strings.TrimSpace(query)
	if len(query) < MinQueryLength {
		return []types.SearchMatch{}, nil
	}

	key := cacheKey(query, category, rootFilter)
	if cached := s.checkCache(key); cached != nil {
		return cached, nil
	}

	allowedExts := categoryExtensionSet(category)
	rootPrefixes := splitRootFilter(rootFilter)

	for _, strat := range s.strategies() {
		hits, err := strat.run(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("%s search failed: %w", strat.name, err)
		}

		matches := s.filterAndBuild(hits, strat.name, query, allowedExts, rootPrefixes)
		if len(matches) == 0 {
			continue
		}

		s.storeInCache(key, matches)
		return matches, nil
	}

	return []types.SearchMatch{}, nil
}

// filterAndBuild applies category/root filters and builds capped matches
// with snippets.
func (s *Searcher) filterAndBuild(hits []storage.Hit, name types.MatchStrategy, query string,
	allowedExts map[string]struct{}, rootPrefixes []string) []types.SearchMatch {

	matches := make([]types.SearchMatch, 0, len(hits))
	for _, hit := range hits {
		if !extensionAllowed(hit.File.Path, allowedExts) {
			continue
		}
		if !underAnyRoot(hit.File.Path, rootPrefixes) {
			continue
		}

		matches = append(matches, types.SearchMatch{
			FileID:     hit.File.ID,
			Path:       hit.File.Path,
			Name:       hit.File.Name,
			SizeBytes:  hit.File.SizeBytes,
			ModifiedAt: hit.File.ModifiedAt,
			Snippet:    Snippet(hit.Content, query, s.snippetLen),
			Strategy:   name,
		})
		if len(matches) >= MaxResults {
			break
		}
	}
	return matches
}

// BuildFTSQuery converts free text into an FTS5 MATCH expression.
// Tokens are split on whitespace and combined with AND; each token is
// quoted so FTS5 operators and punctuation are matched literally, with
// embedded quotes escaped by doubling.
func BuildFTSQuery(query string) string {
	tokens := strings.Fields(query)
	quoted := make([]string, 0, len(tokens))
	for _, token := range tokens {
		quoted = append(quoted, `"`+strings.ReplaceAll(token, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " AND ")
}

// Snippet extracts a window of the given length centered on the first
// case-insensitive occurrence of the query. Without an occurrence the
// window is taken from the start of the content. Window edges are pulled
// back to rune starts so multi-byte text is never split.
func Snippet(content, query string, length int) string {
	if content == "" {
		return ""
	}
	if length <= 0 {
		length = DefaultSnippetLength
	}
	if len(content) <= length {
		return content
	}

	idx := strings.Index(strings.ToLower(content), strings.ToLower(query))
	if idx < 0 {
		return content[:alignRuneStart(content, length)]
	}

	start := idx - (length-len(query))/2
	if start < 0 {
		start = 0
	}
	end := start + length
	if end > len(content) {
		end = len(content)
		start = end - length
	}
	return content[alignRuneStart(content, start):alignRuneStart(content, end)]
}

// alignRuneStart walks an offset back to the nearest UTF-8 rune start.
func alignRuneStart(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// categoryExtensionSet resolves a category token; empty or unknown means
// no restriction.
func categoryExtensionSet(category string) map[string]struct{} {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return nil
	}
	exts, ok := categoryExtensions[category]
	if !ok {
		return nil
	}
	return storage.ExtensionSet(exts)
}

// splitRootFilter breaks a semicolon-delimited prefix list, lowercased
// for case-insensitive comparison.
func splitRootFilter(rootFilter string) []string {
	if strings.TrimSpace(rootFilter) == "" {
		return nil
	}
	parts := strings.Split(rootFilter, ";")
	prefixes := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			prefixes = append(prefixes, strings.ToLower(part))
		}
	}
	return prefixes
}

// extensionAllowed checks a path against a category extension set.
func extensionAllowed(path string, allowed map[string]struct{}) bool {
	if len(allowed) == 0 {
		return true
	}
	_, ok := allowed[strings.ToLower(filepath.Ext(path))]
	return ok
}

// underAnyRoot checks a path against the allowed prefixes.
func underAnyRoot(path string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	lowered := strings.ToLower(path)
	for _, prefix := range prefixes {
		if strings.HasPrefix(lowered, prefix) {
			return true
		}
	}
	return false
}

// cacheKey computes a unique hash for a search request.
func cacheKey(query, category, rootFilter string) [32]byte {
	var data strings.Builder
	data.WriteString(query)
	data.WriteString("|")
	data.WriteString(strings.ToLower(category))
	data.WriteString("|")
	data.WriteString(strings.ToLower(rootFilter))
	return sha256.Sum256([]byte(data.String()))
}

// checkCache returns a copy of a fresh cached result set, or nil.
func (s *Searcher) checkCache(key [32]byte) []types.SearchMatch {
	s.cacheMu.RLock()
	entry, found := s.cache.Get(key)
	if !found || time.Now().After(entry.expiresAt) {
		s.cacheMu.RUnlock()
		return nil
	}
	matches := make([]types.SearchMatch, len(entry.matches))
	copy(matches, entry.matches)
	s.cacheMu.RUnlock()
	return matches
}

// storeInCache saves a result set with the configured TTL.
func (s *Searcher) storeInCache(key [32]byte, matches []types.SearchMatch) {
	stored := make([]types.SearchMatch, len(matches))
	copy(stored, matches)

	s.cacheMu.Lock()
	s.cache.Add(key, &cacheEntry{
		matches:   stored,
		expiresAt: time.Now().Add(s.cacheTTL),
	})
	s.cacheMu.Unlock()
}

// InvalidateCache drops all cached results. Called after indexing runs.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}
