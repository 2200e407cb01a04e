package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/filescout/filescout/internal/pipeline"
	"github.com/filescout/filescout/internal/scanner"
	"github.com/filescout/filescout/internal/storage"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeRunInProgress = -32001 // Another indexing run is already active
	ErrorCodeEmptyQuery    = -32002 // Query parameter is empty
	ErrorCodeInvalidPath   = -32003 // A root path is missing or unreadable
)

// DefaultMaxFileSize caps indexed files at 50 MiB unless overridden.
const DefaultMaxFileSize = 50 << 20

// defaultExcludedDirs are never descended into unless the request
// overrides the exclusion set.
var defaultExcludedDirs = []string{
	".git", ".svn", ".hg", "node_modules", "vendor",
	"$RECYCLE.BIN", "System Volume Information",
}

// handleIndexFiles handles the index_files tool invocation
func (s *Server) handleIndexFiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	paths, ok := args["paths"].(string)
	if !ok || paths == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "paths parameter is required", map[string]interface{}{
			"param":  "paths",
			"reason": "missing or empty",
		})
	}
	for _, root := range pipeline.SplitPaths(paths) {
		if err := validateRoot(root); err != nil {
			return nil, newMCPError(ErrorCodeInvalidPath, "invalid root path", map[string]interface{}{
				"path":   root,
				"reason": err.Error(),
			})
		}
	}

	scanConfig, err := s.buildScanConfig(ctx, args)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
	}

	opts := pipeline.Options{
		Workers:   getIntDefault(args, "workers", 0),
		ChunkSize: getIntDefault(args, "chunk_size", 0),
		Scan:      scanConfig,
		Progress: func(p pipeline.Progress) {
			if p.Processed%500 == 0 || p.Processed == p.Total {
				s.logger.Info("indexing progress",
					"processed", p.Processed, "total", p.Total,
					"percent", fmt.Sprintf("%.1f", p.Percent), "current", p.CurrentPath)
			}
		},
	}

	summary, runErr := s.runner.Run(ctx, paths, opts)
	if errors.Is(runErr, pipeline.ErrRunInProgress) {
		return nil, newMCPError(ErrorCodeRunInProgress, "an indexing run is already in progress", nil)
	}

	// Fresh content invalidates cached queries and statistics.
	s.searcher.InvalidateCache()
	s.stats.Invalidate(s.dbFile)

	response := map[string]interface{}{
		"run_id":        summary.RunID,
		"state":         summary.State.String(),
		"files_scanned": summary.FilesScanned,
		"files_indexed": summary.FilesIndexed,
		"files_failed":  summary.FilesFailed,
		"duration_ms":   summary.Duration.Milliseconds(),
		"message":       summary.Message,
	}
	if len(summary.ErrorMessages) > 0 {
		errorCount := len(summary.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = summary.ErrorMessages[:5]
		} else {
			response["errors"] = summary.ErrorMessages
		}
		response["error_count"] = errorCount
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		response["error"] = runErr.Error()
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// buildScanConfig assembles the scanner policy from request arguments
// and the stored extension allow-list.
func (s *Server) buildScanConfig(ctx context.Context, args map[string]interface{}) (scanner.Config, error) {
	extensions, err := s.store.ListExtensions(ctx)
	if err != nil {
		return scanner.Config{}, fmt.Errorf("failed to load extension allow-list: %v", err)
	}

	excluded := defaultExcludedDirs
	if raw, ok := args["exclude_dirs"].([]interface{}); ok {
		excluded = make([]string, 0, len(raw))
		for _, v := range raw {
			if name, ok := v.(string); ok && name != "" {
				excluded = append(excluded, name)
			}
		}
	}
	excludedSet := make(map[string]struct{}, len(excluded))
	for _, name := range excluded {
		excludedSet[name] = struct{}{}
	}

	config := scanner.Config{
		MaxFileSize:       int64(getIntDefault(args, "max_file_size", DefaultMaxFileSize)),
		AllowedExtensions: storage.ExtensionSet(extensions),
		ExcludedDirs:      excludedSet,
	}

	if cutoff, ok := args["modified_after"].(string); ok && cutoff != "" {
		t, err := time.Parse(time.RFC3339, cutoff)
		if err != nil {
			return scanner.Config{}, fmt.Errorf("invalid modified_after: %v", err)
		}
		config.ModifiedAfter = t
	}

	return config, nil
}

// handleSearchContent handles the search_content tool invocation
func (s *Server) handleSearchContent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 50)
	if limit < 1 || limit > 200 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 200", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	category := getStringDefault(args, "category", "")
	roots := getStringDefault(args, "roots", "")

	matches, err := s.searcher.Search(ctx, query, category, roots)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}

	results := make([]map[string]interface{}, 0, len(matches))
	for _, m := range matches {
		results = append(results, map[string]interface{}{
			"path":        m.Path,
			"name":        m.Name,
			"size_bytes":  m.SizeBytes,
			"modified_at": m.ModifiedAt.Format(time.RFC3339),
			"snippet":     m.Snippet,
			"strategy":    string(m.Strategy),
		})
	}

	response := map[string]interface{}{
		"query":   query,
		"count":   len(results),
		"results": results,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIndexStatus handles the index_status tool invocation
func (s *Server) handleIndexStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.stats.Get(ctx, s.dbFile, s.store)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"state":         s.runner.State().String(),
		"files_count":   stats.FileCount,
		"content_count": stats.ContentCount,
		"mirror_count":  stats.MirrorCount,
		"index_size_mb": fmt.Sprintf("%.2f", stats.IndexSizeMB),
	}
	if !stats.LastIndexedAt.IsZero() {
		response["last_indexed_at"] = stats.LastIndexedAt.Format(time.RFC3339)
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleCleanupIndex handles the cleanup_index tool invocation
func (s *Server) handleCleanupIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	clear := getBoolDefault(args, "clear", false)

	response := map[string]interface{}{}
	if clear {
		if err := s.store.Clear(ctx); err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to clear index", map[string]interface{}{
				"error": err.Error(),
			})
		}
		response["cleared"] = true
	} else {
		removed, err := s.store.CleanupInvalid(ctx)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "cleanup failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		response["removed"] = removed
	}

	s.searcher.InvalidateCache()
	s.stats.Invalidate(s.dbFile)

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleOptimizeIndex handles the optimize_index tool invocation
func (s *Server) handleOptimizeIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.store.Optimize(ctx); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "optimize failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{"optimized": true})), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validateRoot checks that a root path exists and is a readable directory
func validateRoot(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
