// Package main provides the MCP server entry point for bkfetch.
// The server implements the Model Context Protocol over stdio, letting an
// LLM agent snapshot builds and read step logs.
package main

import (
	"fmt"
	"os"

	"bkfetch/src/buildkite"
	"bkfetch/src/config"
	"bkfetch/src/logger"
	"bkfetch/src/mcp"
)

var version = "dev"

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the protocol, so nothing else may write to it.
	server := mcp.NewServer(mcp.Config{
		Provider:    buildkite.NewProvider(cfg.BuildkiteAPIToken, buildkite.WithBaseURL(cfg.APIBaseURL)),
		Root:        cfg.OutputDir,
		Concurrency: cfg.Concurrency,
		Logger:      logger.NewSilentLogger(),
		Version:     version,
	})

	if err := server.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}
