package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"

	"bkfetch/src/provider"
	"bkfetch/src/sanitize"
	"bkfetch/src/snapshot"
)

// handleSnapshotBuild handles the snapshot_build tool call.
func (s *Server) handleSnapshotBuild(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, errResult := parseRef(request)
	if errResult != nil {
		return errResult, nil
	}
	captureAll := request.GetBool("all", false)

	orchestrator := snapshot.New(s.cfg.Provider, snapshot.Options{
		Root:        s.cfg.Root,
		CaptureAll:  captureAll,
		Concurrency: s.cfg.Concurrency,
		Logger:      s.cfg.Logger,
	})

	result, err := orchestrator.Run(ctx, ref)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("snapshot failed: %v", provider.WrapError(err))), nil
	}

	if err := s.cfg.Store.RecordSnapshot(ctx, result.Event()); err != nil {
		s.cfg.Logger.Error("[MCP] Failed to record snapshot", "run_id", result.Manifest.RunID, "error", err)
	}

	return jsonResult(result.Manifest)
}

// handleGetStepLog handles the get_step_log tool call.
func (s *Server) handleGetStepLog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, errResult := parseRef(request)
	if errResult != nil {
		return errResult, nil
	}

	stepID := request.GetString("step_id", "")
	if stepID == "" {
		return mcp.NewToolResultError("step_id parameter is required"), nil
	}
	tail := request.GetInt("tail", DefaultLogTail)
	compact := request.GetBool("compact", false)

	dir := snapshot.BuildDir(s.cfg.Root, ref)
	manifest, err := snapshot.LoadManifest(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return mcp.NewToolResultError(fmt.Sprintf("no snapshot of %s: call snapshot_build first", ref)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	step, ok := manifest.FindStep(stepID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("step not found in snapshot: %s", stepID)), nil
	}
	if step.FetchStatus != snapshot.FetchSuccess {
		return mcp.NewToolResultError(fmt.Sprintf("log for %s was not captured (%s: %s); call snapshot_build again to retry",
			step.ID, step.Error, step.Message)), nil
	}

	data, err := os.ReadFile(snapshot.StepLogPath(dir, step.ID))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read log: %v", err)), nil
	}

	text := sanitize.Clean(string(data))
	if compact {
		text = compactLog(text)
	}
	return mcp.NewToolResultText(sanitize.Tail(text, tail)), nil
}

// handleListSnapshots handles the list_snapshots tool call.
func (s *Server) handleListSnapshots(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, errResult := parseRef(request)
	if errResult != nil {
		return errResult, nil
	}

	runs, err := s.cfg.Store.ListSnapshots(ctx, ref.String())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list snapshots: %v", err)), nil
	}
	return jsonResult(runs)
}

func parseRef(request mcp.CallToolRequest) (provider.BuildReference, *mcp.CallToolResult) {
	url := request.GetString("url", "")
	if url == "" {
		return provider.BuildReference{}, mcp.NewToolResultError("url parameter is required")
	}

	ref, _, err := provider.ParseReference(url)
	if err != nil {
		return provider.BuildReference{}, mcp.NewToolResultError(provider.WrapError(err).Error())
	}
	return ref, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
