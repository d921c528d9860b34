// Package mcp exposes build snapshots to LLM agents over the Model Context
// Protocol. Snapshots are written to disk exactly as the CLI writes them,
// and step logs are served back from those files.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"bkfetch/src/logger"
	"bkfetch/src/provider"
	"bkfetch/src/store"
)

// DefaultLogTail is the number of lines get_step_log returns by default.
const DefaultLogTail = 200

// Config holds the Server's collaborators.
type Config struct {
	Provider provider.Provider
	// Store records snapshot runs. Defaults to an in-memory store.
	Store store.Store
	// Root is the snapshot output directory.
	Root        string
	Concurrency int
	Logger      logger.Logger
	Version     string
}

// Server is the MCP server for bkfetch.
type Server struct {
	mcpServer *server.MCPServer
	cfg       Config
}

// NewServer creates a new MCP server with its tools registered.
func NewServer(cfg Config) *Server {
	if cfg.Store == nil {
		cfg.Store = store.NewMemoryStore()
	}
	cfg.Logger = logger.Ensure(cfg.Logger)
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	s := server.NewMCPServer(
		"bkfetch",
		cfg.Version,
		server.WithToolCapabilities(true),
	)

	srv := &Server{
		mcpServer: s,
		cfg:       cfg,
	}
	srv.registerTools()

	return srv
}

// registerTools registers all available tools.
func (s *Server) registerTools() {
	snapshotTool := mcp.NewTool("snapshot_build",
		mcp.WithDescription("Snapshot a Buildkite build to disk: build metadata, annotations, and the logs of failed command steps (or every step with all=true). Returns the manifest, which lists each step's id, state, exit status and whether its log was captured. Use get_step_log with a step id to read a log."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Build URL (https://buildkite.com/org/pipeline/builds/123) or org/pipeline/number"),
		),
		mcp.WithBoolean("all",
			mcp.Description("Capture every command step instead of only failed ones (default: false)"),
		),
	)

	logTool := mcp.NewTool("get_step_log",
		mcp.WithDescription("Read a captured step log from the latest snapshot of a build. Escape codes are stripped. Call snapshot_build first."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Build URL or org/pipeline/number"),
		),
		mcp.WithString("step_id",
			mcp.Required(),
			mcp.Description("Step id from the manifest (e.g. 02-run-tests) or the job id"),
		),
		mcp.WithNumber("tail",
			mcp.Description("Number of trailing lines to return, 0 for the whole log (default: 200)"),
		),
		mcp.WithBoolean("compact",
			mcp.Description("Strip timestamps, mask hashes, shorten paths and drop repeated lines (default: false)"),
		),
	)

	listTool := mcp.NewTool("list_snapshots",
		mcp.WithDescription("List snapshot runs recorded for a build, newest first."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Build URL or org/pipeline/number"),
		),
	)

	s.mcpServer.AddTool(snapshotTool, s.handleSnapshotBuild)
	s.mcpServer.AddTool(logTool, s.handleGetStepLog)
	s.mcpServer.AddTool(listTool, s.handleListSnapshots)
}

// Run starts the MCP server on stdio.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}
