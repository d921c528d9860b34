// Package main provides the bkfetch CLI: follow a running job's log,
// snapshot a build to disk, browse a snapshot and list recorded snapshots.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bkfetch/src/broker"
	"bkfetch/src/buildkite"
	"bkfetch/src/config"
	"bkfetch/src/logger"
	"bkfetch/src/provider"
)

var (
	// Application configuration
	appConfig *config.Config
	// Console logger on stderr
	appLogger logger.Logger
	debugFlag bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bkfetch",
	Short: "bkfetch - Buildkite build data on your terminal",
	Long: `bkfetch fetches build data from Buildkite.

It can:
- Follow a running job's log until the job finishes
- Snapshot a build (metadata, steps, logs, annotations) to disk
- Browse a snapshot in an interactive TUI

Configuration is read from .env, an optional bkfetch.yaml and the environment.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var err error
		appConfig, err = config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
			os.Exit(1)
		}
		appLogger = logger.NewConsoleLogger(debugFlag || appConfig.Debug())
	},
}

// requireToken exits when no API token is configured.
func requireToken() {
	if appConfig.BuildkiteAPIToken == "" {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", config.ErrMissingToken)
		fmt.Fprintln(os.Stderr, "Please set the BUILDKITE_API_TOKEN environment variable")
		os.Exit(1)
	}
}

func newProvider() provider.Provider {
	requireToken()
	return buildkite.NewProvider(appConfig.BuildkiteAPIToken, buildkite.WithBaseURL(appConfig.APIBaseURL))
}

// parseReference parses a build URL or org/pipeline/number, exiting on error.
func parseReference(input string) (provider.BuildReference, string) {
	ref, jobID, err := provider.ParseReference(input)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	return ref, jobID
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "❌ %v\n", provider.WrapError(err))
}

// publishEvent publishes a run summary. Failures are logged and otherwise
// ignored: the run's outcome is already decided.
func publishEvent(ctx context.Context, topic, key string, event any) {
	b, err := broker.New(appConfig.RedpandaBrokers, appLogger)
	if err != nil {
		appLogger.Error("[CLI] Failed to connect to broker", "error", err)
		return
	}
	defer b.Close()

	if err := broker.PublishJSON(ctx, b, topic, key, event); err != nil {
		appLogger.Error("[CLI] Failed to publish event", "topic", topic, "error", err)
		return
	}
	appLogger.Debug("[CLI] Published event", "topic", topic, "key", key)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(followCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
