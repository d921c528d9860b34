// Package contracts defines the event payloads bkfetch publishes after a
// follow or snapshot run, and the topics they are published to.
package contracts

import "time"

// Topic names.
const (
	// TopicSnapshots receives one SnapshotEvent per completed snapshot run.
	// Key: {run_id}
	TopicSnapshots = "bkfetch.snapshots"

	// TopicFollow receives one FollowEvent per finished follow run.
	// Key: {build_ref}
	TopicFollow = "bkfetch.follow"
)

// SnapshotEvent summarises a snapshot run.
// Published to: bkfetch.snapshots
type SnapshotEvent struct {
	RunID         string    `json:"run_id"`
	BuildRef      string    `json:"build_ref"`
	URL           string    `json:"url"`
	Dir           string    `json:"dir"`
	CaptureMode   string    `json:"capture_mode"`
	BuildState    string    `json:"build_state"`
	FetchComplete bool      `json:"fetch_complete"`
	StepCount     int       `json:"step_count"`
	FailedSteps   []string  `json:"failed_steps,omitempty"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// FollowEvent summarises a follow run.
// Published to: bkfetch.follow
type FollowEvent struct {
	BuildRef     string    `json:"build_ref"`
	JobID        string    `json:"job_id"`
	JobLabel     string    `json:"job_label"`
	JobState     string    `json:"job_state"`
	Outcome      string    `json:"outcome"`
	ExitCode     int       `json:"exit_code"`
	Error        string    `json:"error,omitempty"`
	BytesWritten int       `json:"bytes_written"`
	Polls        int       `json:"polls"`
	FinishedAt   time.Time `json:"finished_at"`
}
