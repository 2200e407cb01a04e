package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexFilesTool returns the tool definition for index_files
func indexFilesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_files",
		Description: "Index the textual content of files under one or more root directories",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"paths": map[string]interface{}{
					"type":        "string",
					"description": "Root directory, or several roots separated by semicolons",
				},
				"workers": map[string]interface{}{
					"type":        "integer",
					"description": "Concurrency degree for chunk processing (default: CPU count)",
					"minimum":     1,
				},
				"chunk_size": map[string]interface{}{
					"type":        "integer",
					"description": "Number of files each worker claims at a time",
					"default":     50,
					"minimum":     1,
				},
				"max_file_size": map[string]interface{}{
					"type":        "integer",
					"description": "Skip files larger than this many bytes (default: 50 MiB)",
				},
				"modified_after": map[string]interface{}{
					"type":        "string",
					"description": "RFC 3339 cutoff for incremental runs; only files modified after it are indexed",
				},
				"exclude_dirs": map[string]interface{}{
					"type":        "array",
					"description": "Directory names that are never descended into",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
			},
			Required: []string{"paths"},
		},
	}
}

// searchContentTool returns the tool definition for search_content
func searchContentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_content",
		Description: "Full-text search over indexed file content with cascading fallback",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Free-text query; multiple words must all match",
				},
				"category": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to a file category",
					"enum":        []string{"doc", "sheet", "slide", "web", "image"},
				},
				"roots": map[string]interface{}{
					"type":        "string",
					"description": "Semicolon-delimited path prefixes to restrict results to",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results (1-200)",
					"default":     50,
					"minimum":     1,
					"maximum":     200,
				},
			},
			Required: []string{"query"},
		},
	}
}

// indexStatusTool returns the tool definition for index_status
func indexStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_status",
		Description: "Report index statistics: record counts, size on disk, last indexed time",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// cleanupIndexTool returns the tool definition for cleanup_index
func cleanupIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "cleanup_index",
		Description: "Remove records for files that no longer exist, or clear the whole index",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"clear": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, empty the index and reclaim storage space",
					"default":     false,
				},
			},
		},
	}
}

// optimizeIndexTool returns the tool definition for optimize_index
func optimizeIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "optimize_index",
		Description: "Compact the full-text mirror's internal index structure",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
