package provider

import (
	"encoding/json"
	"fmt"
	"time"
)

// Job states reported by Buildkite.
const (
	StatePassed   = "passed"
	StateFailed   = "failed"
	StateCanceled = "canceled"
	StateTimedOut = "timed_out"
	StateSkipped  = "skipped"
	StateBroken   = "broken"
	StateRunning  = "running"
)

// JobTypeCommand is the job type of command steps.
const JobTypeCommand = "script"

// BuildReference identifies a single build of a pipeline.
type BuildReference struct {
	Org      string
	Pipeline string
	Number   int
}

// String renders the reference as org/pipeline/number.
func (r BuildReference) String() string {
	return fmt.Sprintf("%s/%s/%d", r.Org, r.Pipeline, r.Number)
}

// WebURL returns the buildkite.com URL of the build.
func (r BuildReference) WebURL() string {
	return fmt.Sprintf("https://buildkite.com/%s/%s/builds/%d", r.Org, r.Pipeline, r.Number)
}

// Build represents a CI build with jobs
type Build struct {
	ID        string
	Number    int
	URL       string
	State     string
	Message   string
	Branch    string
	Commit    string
	CreatedAt time.Time
	Jobs      []Job

	// Raw is the build document exactly as the API returned it.
	Raw json.RawMessage
}

// FindJob returns the job with the given ID.
func (b *Build) FindJob(id string) (Job, bool) {
	for _, j := range b.Jobs {
		if j.ID == id {
			return j, true
		}
	}
	return Job{}, false
}

// CommandJobs returns the command-type jobs in build order.
func (b *Build) CommandJobs() []Job {
	jobs := make([]Job, 0, len(b.Jobs))
	for _, j := range b.Jobs {
		if j.IsCommand() {
			jobs = append(jobs, j)
		}
	}
	return jobs
}

// Job is a point-in-time view of one job. A new value is produced on
// every fetch; callers compare snapshots rather than mutating them.
type Job struct {
	ID         string
	Label      string
	Type       string
	State      string
	ExitStatus *int
	Passed     *bool
	StepKey    string
	WebURL     string
	StartedAt  *time.Time
	FinishedAt *time.Time

	// Raw is the job document exactly as the API returned it.
	Raw json.RawMessage
}

// IsCommand reports whether the job runs a command step.
func (j Job) IsCommand() bool {
	return j.Type == JobTypeCommand
}

// IsTerminal reports whether no further progress is expected for the job.
func (j Job) IsTerminal() bool {
	if j.FinishedAt != nil {
		return true
	}
	switch j.State {
	case StatePassed, StateFailed, StateCanceled, StateTimedOut, StateSkipped, StateBroken:
		return true
	}
	return false
}

// IsFailed reports whether the job counts as failed for snapshot selection.
func (j Job) IsFailed() bool {
	if j.State == StateFailed || j.State == StateTimedOut {
		return true
	}
	if j.ExitStatus != nil && *j.ExitStatus != 0 {
		return true
	}
	return j.Passed != nil && !*j.Passed
}

// ExitCode mirrors the job outcome as a process exit code: 0 for success, 1 otherwise.
func (j Job) ExitCode() int {
	if j.ExitStatus != nil {
		if *j.ExitStatus == 0 {
			return 0
		}
		return 1
	}
	if j.State == StatePassed {
		return 0
	}
	return 1
}

// Annotation is a build annotation.
type Annotation struct {
	ID        string    `json:"id"`
	Context   string    `json:"context"`
	Style     string    `json:"style"`
	BodyHTML  string    `json:"body_html"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobLog is the full log of a job at the time it was fetched.
type JobLog struct {
	Content string
	Size    int
}
