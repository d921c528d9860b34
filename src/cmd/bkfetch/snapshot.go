package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bkfetch/src/contracts"
	"bkfetch/src/logger"
	"bkfetch/src/provider"
	"bkfetch/src/snapshot"
	"bkfetch/src/store"
)

var (
	snapshotAll         bool
	snapshotConcurrency int
	snapshotJSON        bool
)

// snapshotCmd captures a build to disk
var snapshotCmd = &cobra.Command{
	Use:   "snapshot <build-url>",
	Short: "Capture a build's steps, logs and annotations to disk",
	Long: `Fetch a build and write it to <output-dir>/<org>/<pipeline>/<number>:

  manifest.json       what was captured, and what failed and why
  build.json          the build as returned by the API
  annotations.json    build annotations
  steps/NN-<label>/   step.json and log.txt per step

By default only failed steps are captured; use --all for every command
step. The exit code is 0 when everything was captured and 1 otherwise.
Running the command again replaces the previous snapshot.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runSnapshot(args[0]))
	},
}

func runSnapshot(input string) int {
	ref, _ := parseReference(input)
	ctx := context.Background()

	concurrency := appConfig.Concurrency
	if snapshotConcurrency > 0 {
		concurrency = snapshotConcurrency
	}

	result, err := captureSnapshot(ctx, ref, appLogger, concurrency)
	if err != nil {
		printError(err)
		return 1
	}

	recordSnapshot(ctx, result.Event())
	publishEvent(ctx, contracts.TopicSnapshots, result.Manifest.RunID, result.Event())

	if snapshotJSON {
		data, err := json.MarshalIndent(result.Manifest, "", "  ")
		if err != nil {
			printError(err)
			return 1
		}
		fmt.Println(string(data))
	} else {
		printSnapshotSummary(result)
	}

	return result.ExitCode
}

func captureSnapshot(ctx context.Context, ref provider.BuildReference, log logger.Logger, concurrency int) (*snapshot.Result, error) {
	orch := snapshot.New(newProvider(), snapshot.Options{
		Root:        appConfig.OutputDir,
		CaptureAll:  snapshotAll,
		Concurrency: concurrency,
		Logger:      log,
	})
	return orch.Run(ctx, ref)
}

// recordSnapshot adds the run to the history store when Postgres is
// configured. Failures are logged only.
func recordSnapshot(ctx context.Context, event *contracts.SnapshotEvent) {
	if appConfig.PostgresDSN == "" {
		return
	}

	st, err := store.NewPostgresStore(ctx, appConfig.PostgresDSN)
	if err != nil {
		appLogger.Error("[CLI] Failed to connect to Postgres", "error", err)
		return
	}
	defer st.Close()

	if err := st.RecordSnapshot(ctx, event); err != nil {
		appLogger.Error("[CLI] Failed to record snapshot", "run_id", event.RunID, "error", err)
	}
}

func printSnapshotSummary(result *snapshot.Result) {
	m := result.Manifest
	failed := m.FailedSteps()

	fmt.Printf("📦 Snapshot of %s (%s)\n", m.BuildRef, m.Build.State)
	fmt.Printf("   Directory: %s\n", result.Dir)
	fmt.Printf("   Steps:     %d captured, %d failed (%s)\n", len(m.Steps)-len(failed), len(failed), m.CaptureMode)
	fmt.Printf("   Annotations: %d (%s)\n", m.Annotations.Count, m.Annotations.FetchStatus)

	for _, s := range failed {
		retry := "not retryable"
		if s.Retryable != nil && *s.Retryable {
			retry = "retryable"
		}
		fmt.Printf("   ✗ %s: %s, %s\n", s.ID, s.Error, retry)
	}
	if m.Annotations.FetchStatus == snapshot.FetchFailed {
		fmt.Printf("   ✗ annotations: %s\n", m.Annotations.Error)
	}

	fmt.Println()
	if m.FetchComplete {
		fmt.Println("✅ Snapshot complete")
	} else {
		fmt.Println("⚠️  Snapshot incomplete; see fetchErrors in manifest.json")
		fmt.Println("💡 Run the command again to retry the missing pieces")
	}
}

func init() {
	snapshotCmd.Flags().BoolVar(&snapshotAll, "all", false, "Capture every command step, not only failed ones")
	snapshotCmd.Flags().IntVar(&snapshotConcurrency, "concurrency", 0, "Parallel step captures (default from config)")
	snapshotCmd.Flags().BoolVar(&snapshotJSON, "json", false, "Print the manifest as JSON")
}
