package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/atlasbio/atlas-search/internal/bigsi"
	"github.com/atlasbio/atlas-search/internal/group"
	"github.com/atlasbio/atlas-search/internal/notify"
	"github.com/atlasbio/atlas-search/internal/orchestrator"
	"github.com/atlasbio/atlas-search/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "atlas-search"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// DefaultDBPath is the default location for the database
	DefaultDBPath = "~/.atlas-search"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp          *server.MCPServer
	storage      storage.Storage
	orchestrator *orchestrator.Orchestrator
	groups       *group.Service
	client       bigsi.Client
	hub          *notify.Hub
}

// NewServer creates a new MCP server instance
func NewServer(dbPath string) (*Server, error) {
	// Expand home directory if needed
	if dbPath == "" || dbPath == DefaultDBPath {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".atlas-search")
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dbFile := filepath.Join(dbPath, "atlas.db")

	// Initialize storage
	store, err := storage.NewSQLiteStorage(dbFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Create BIGSI client
	client, err := bigsi.NewFromEnv()
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize bigsi client: %w", err)
	}

	hub := notify.NewHub(0)

	// Create orchestrator
	orch := orchestrator.New(store, client, hub, orchestrator.Config{
		DefaultTTL:    time.Hour,
		MaxPendingAge: 15 * time.Minute,
	})

	// The local provider completes jobs in-process, so its results
	// feed straight back into the orchestrator
	if local, ok := client.(*bigsi.LocalProvider); ok {
		local.SetCompleter(orch.Complete)
	}

	// Create group service
	groups := group.NewService(store)

	// Create MCP server
	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:          mcpServer,
		storage:      store,
		orchestrator: orch,
		groups:       groups,
		client:       client,
		hub:          hub,
	}

	// Register tools
	if err := s.registerTools(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Orchestrator exposes the orchestrator for callback wiring
func (s *Server) Orchestrator() *orchestrator.Orchestrator {
	return s.orchestrator
}

// Hub exposes the notification hub so an embedding process can
// subscribe to completion events
func (s *Server) Hub() *notify.Hub {
	return s.hub
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.storage.Close() }()
	defer func() { _ = s.client.Close() }()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	// Register search tool
	s.mcp.AddTool(searchTool(), s.handleSearch)

	// Register get_search tool
	s.mcp.AddTool(getSearchTool(), s.handleGetSearch)

	// Register get_status tool
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)

	// Register group tools
	s.mcp.AddTool(createGroupTool(), s.handleCreateGroup)
	s.mcp.AddTool(addGroupSearchTool(), s.handleAddGroupSearch)
	s.mcp.AddTool(getGroupTool(), s.handleGetGroup)

	return nil
}
