package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/filescout/filescout/internal/extract"
	"github.com/filescout/filescout/internal/pipeline"
	"github.com/filescout/filescout/internal/searcher"
	"github.com/filescout/filescout/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "filescout-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// DefaultDBPath is the default location for the database
	DefaultDBPath = "~/.filescout/index"

	// statsTTL is how long index statistics may be served from cache.
	statsTTL = 30 * time.Second
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	store    storage.Store
	runner   *pipeline.Runner
	searcher *searcher.Searcher
	stats    *storage.StatsCache
	dbFile   string
	logger   *slog.Logger
}

// NewServer creates a new MCP server instance
func NewServer(dbPath string, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Expand home directory if needed
	if dbPath == "" || dbPath == DefaultDBPath {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".filescout", "index")
	}

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dbFile := filepath.Join(dbPath, "filescout.db")

	// Shared handle for queries and status; pipeline workers open their
	// own via the opener.
	store, err := storage.Open(dbFile, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	opener := storage.NewOpener(dbFile, logger)
	runner := pipeline.New(opener, extract.NewRegistry(logger), logger)
	srch := searcher.New(store, logger)

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:      mcpServer,
		store:    store,
		runner:   runner,
		searcher: srch,
		stats:    storage.NewStatsCache(statsTTL),
		dbFile:   dbFile,
		logger:   logger,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.store.Close() }()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(indexFilesTool(), s.handleIndexFiles)
	s.mcp.AddTool(searchContentTool(), s.handleSearchContent)
	s.mcp.AddTool(indexStatusTool(), s.handleIndexStatus)
	s.mcp.AddTool(cleanupIndexTool(), s.handleCleanupIndex)
	s.mcp.AddTool(optimizeIndexTool(), s.handleOptimizeIndex)
	return nil
}
