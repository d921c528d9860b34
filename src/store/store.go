// Package store records the history of snapshot runs.
package store

import (
	"context"
	"fmt"

	"bkfetch/src/contracts"
)

// Store defines the interface for persisting snapshot run history.
type Store interface {
	// RecordSnapshot saves a completed snapshot run. Recording the same
	// run ID twice replaces the earlier record.
	RecordSnapshot(ctx context.Context, event *contracts.SnapshotEvent) error

	// ListSnapshots returns the runs for a build reference, newest first.
	ListSnapshots(ctx context.Context, buildRef string) ([]contracts.SnapshotEvent, error)

	// GetSnapshot returns a single run.
	GetSnapshot(ctx context.Context, runID string) (*contracts.SnapshotEvent, error)

	// Close closes the store connection
	Close() error
}

// ErrNotFound is returned when a snapshot run does not exist.
type ErrNotFound struct {
	RunID string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("snapshot run not found: %s", e.RunID)
}
