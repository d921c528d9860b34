package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"bkfetch/src/contracts"
	"bkfetch/src/logger"
	"bkfetch/src/provider"
	"bkfetch/src/snapshot"
	"bkfetch/src/tui"
)

var viewRefresh bool

// viewCmd browses a snapshot in the TUI
var viewCmd = &cobra.Command{
	Use:   "view <snapshot-dir | build-url>",
	Short: "Browse a snapshot in the terminal UI",
	Long: `Open a snapshot in an interactive browser.

The argument is either a snapshot directory or a build reference. For a
reference, the snapshot under the output directory is used; it is
captured first if it does not exist yet, or if --refresh is given.
With --refresh, a snapshot directory is recaptured from the build it
records, into the output directory.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		model, err := viewModel(args[0])
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		if err := tui.Run(model); err != nil {
			fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			os.Exit(1)
		}
	},
}

// viewModel picks the browser for the argument: an existing snapshot is
// opened directly, anything else is captured behind a progress screen.
func viewModel(arg string) (tui.MainModel, error) {
	target, err := resolveViewTarget(arg, appConfig.OutputDir, viewRefresh)
	if err != nil {
		return tui.MainModel{}, err
	}
	if target.manifest != nil {
		return tui.NewMainModel(target.dir, target.manifest), nil
	}

	requireToken()
	ref := target.ref
	return tui.NewLoadingModel(func() (string, *snapshot.Manifest, error) {
		ctx := context.Background()
		// Console output would corrupt the alternate screen.
		result, err := captureSnapshot(ctx, ref, logger.NewSilentLogger(), appConfig.Concurrency)
		if err != nil {
			return "", nil, err
		}
		recordSnapshot(ctx, result.Event())
		publishEvent(ctx, contracts.TopicSnapshots, result.Manifest.RunID, result.Event())
		return result.Dir, result.Manifest, nil
	}), nil
}

// viewTarget is either a snapshot to open (manifest set) or a build to
// capture first.
type viewTarget struct {
	dir      string
	manifest *snapshot.Manifest
	ref      provider.BuildReference
}

// resolveViewTarget maps a view argument to a snapshot on disk or a build
// to capture. A snapshot directory with refresh set is recaptured from the
// build reference recorded in its manifest.
func resolveViewTarget(arg, outputDir string, refresh bool) (viewTarget, error) {
	if isSnapshotDir(arg) {
		manifest, err := snapshot.LoadManifest(arg)
		if err != nil {
			return viewTarget{}, err
		}
		if !refresh {
			return viewTarget{dir: arg, manifest: manifest}, nil
		}
		ref, _, err := provider.ParseReference(manifest.BuildRef)
		if err != nil {
			return viewTarget{}, fmt.Errorf("failed to read build reference from %s: %w", arg, err)
		}
		return viewTarget{dir: snapshot.BuildDir(outputDir, ref), ref: ref}, nil
	}

	ref, _, err := provider.ParseReference(arg)
	if err != nil {
		return viewTarget{}, err
	}
	dir := snapshot.BuildDir(outputDir, ref)
	if isSnapshotDir(dir) && !refresh {
		manifest, err := snapshot.LoadManifest(dir)
		if err != nil {
			return viewTarget{}, err
		}
		return viewTarget{dir: dir, manifest: manifest}, nil
	}
	return viewTarget{dir: dir, ref: ref}, nil
}

func isSnapshotDir(path string) bool {
	info, err := os.Stat(filepath.Join(path, snapshot.ManifestFile))
	return err == nil && !info.IsDir()
}

func init() {
	viewCmd.Flags().BoolVar(&viewRefresh, "refresh", false, "Capture a new snapshot before browsing")
	viewCmd.Flags().BoolVar(&snapshotAll, "all", false, "Capture every command step when a snapshot is taken")
}
