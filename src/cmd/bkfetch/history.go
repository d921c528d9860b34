package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bkfetch/src/store"
)

// historyCmd lists recorded snapshot runs
var historyCmd = &cobra.Command{
	Use:   "history <build-url>",
	Short: "List recorded snapshots of a build",
	Long: `Query Postgres for the snapshot runs recorded for a build, newest first.

This command requires POSTGRES_DSN.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ref, _ := parseReference(args[0])
		ctx := context.Background()

		if appConfig.PostgresDSN == "" {
			fmt.Fprintln(os.Stderr, "ERROR: POSTGRES_DSN environment variable is required for history command")
			os.Exit(1)
		}

		st, err := store.NewPostgresStore(ctx, appConfig.PostgresDSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to connect to Postgres: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		events, err := st.ListSnapshots(ctx, ref.String())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list snapshots: %v\n", err)
			os.Exit(1)
		}

		if len(events) == 0 {
			fmt.Printf("No snapshots recorded for %s\n", ref)
			fmt.Println()
			fmt.Println("💡 Tip: run 'bkfetch snapshot' with POSTGRES_DSN set to record one")
			return
		}

		fmt.Printf("📊 %d snapshots of %s\n\n", len(events), ref)
		for _, e := range events {
			status := "complete"
			if !e.FetchComplete {
				status = fmt.Sprintf("incomplete (%d failed)", len(e.FailedSteps))
			}
			fmt.Printf("%s  %s  %-7s %-10s %d steps  %s\n",
				e.FetchedAt.Local().Format("2006-01-02 15:04:05"),
				e.RunID, e.CaptureMode, e.BuildState, e.StepCount, status)
		}
	},
}
