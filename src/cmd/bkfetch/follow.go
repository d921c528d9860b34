package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"bkfetch/src/contracts"
	"bkfetch/src/follow"
	"bkfetch/src/provider"
)

var (
	followJobID    string
	followInterval time.Duration
	followTail     int
)

// followCmd tails a job's log until the job finishes
var followCmd = &cobra.Command{
	Use:   "follow <build-url>",
	Short: "Follow a job's log until it finishes",
	Long: `Poll a Buildkite job and print its log as it grows.

The job is taken from the URL fragment (#<job-id>) or --job. Without
either, the first running command step is followed.

The exit code mirrors the job: 0 when it passed, 1 otherwise. Ctrl-C
stops following and exits 0.

Examples:
  bkfetch follow https://buildkite.com/acme/web/builds/42
  bkfetch follow acme/web/42 --job 0190a3b2-...`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runFollow(args[0]))
	},
}

func runFollow(input string) int {
	ref, jobID := parseReference(input)
	if followJobID != "" {
		jobID = followJobID
	}

	interval := appConfig.PollInterval
	if followInterval > 0 {
		interval = followInterval
	}
	tailLines := appConfig.TailLines
	if followTail >= 0 {
		tailLines = followTail
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f := follow.New(newProvider(), follow.Options{
		Interval:  interval,
		TailLines: tailLines,
		Out:       os.Stdout,
		Logger:    appLogger,
	})

	result, err := f.Run(ctx, ref, jobID)
	fmt.Fprintln(os.Stderr, followMessage(result, err))

	// The run is over; publishing must not be cut short by a second Ctrl-C.
	publishEvent(context.WithoutCancel(ctx), contracts.TopicFollow, ref.String(), followEvent(ref, result, err))

	return result.ExitCode
}

// followMessage renders the single line printed when following ends.
func followMessage(result *follow.Result, err error) string {
	passed := lipgloss.NewStyle().Foreground(lipgloss.Color("#34A853")).Bold(true)
	failed := lipgloss.NewStyle().Foreground(lipgloss.Color("#EA4335")).Bold(true)
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("#9AA0A6"))

	name := result.Job.Label
	if name == "" {
		name = result.Job.ID
	}

	switch result.Outcome {
	case follow.OutcomeInterrupted:
		return muted.Render(fmt.Sprintf("⏹  Stopped following %s", name))
	case follow.OutcomeTerminal:
		if result.ExitCode == 0 {
			return passed.Render(fmt.Sprintf("✅ %s %s", name, result.Job.State))
		}
		exit := "no exit status"
		if result.Job.ExitStatus != nil {
			exit = fmt.Sprintf("exit %d", *result.Job.ExitStatus)
		}
		return failed.Render(fmt.Sprintf("❌ %s %s (%s)", name, result.Job.State, exit))
	default:
		if err == nil {
			return failed.Render("❌ Follow failed")
		}
		return failed.Render(fmt.Sprintf("❌ Follow failed: %v", provider.WrapError(err)))
	}
}

func followEvent(ref provider.BuildReference, result *follow.Result, err error) *contracts.FollowEvent {
	event := &contracts.FollowEvent{
		BuildRef:     ref.String(),
		JobID:        result.Job.ID,
		JobLabel:     result.Job.Label,
		JobState:     result.Job.State,
		Outcome:      string(result.Outcome),
		ExitCode:     result.ExitCode,
		BytesWritten: result.BytesWritten,
		Polls:        result.Polls,
		FinishedAt:   time.Now().UTC(),
	}
	if result.Failure != nil {
		event.Error = string(result.Failure.Category)
	} else if err != nil {
		event.Error = err.Error()
	}
	return event
}

func init() {
	followCmd.Flags().StringVar(&followJobID, "job", "", "Job ID to follow (overrides the URL fragment)")
	followCmd.Flags().DurationVar(&followInterval, "interval", 0, "Base poll interval (default from config)")
	followCmd.Flags().IntVar(&followTail, "tail", -1, "Lines of existing log to show on start, 0 for all (default from config)")
}
