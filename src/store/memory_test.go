package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"bkfetch/src/contracts"
)

func snapshotEvent(runID, ref string, fetchedAt time.Time) *contracts.SnapshotEvent {
	return &contracts.SnapshotEvent{
		RunID:         runID,
		BuildRef:      ref,
		URL:           "https://buildkite.com/" + ref,
		Dir:           ".bkfetch/builds/" + ref,
		CaptureMode:   "failed",
		BuildState:    "failed",
		FetchComplete: true,
		StepCount:     2,
		FetchedAt:     fetchedAt,
	}
}

func TestMemoryStore_RecordAndList(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"run-1", "run-2", "run-3"} {
		if err := store.RecordSnapshot(ctx, snapshotEvent(id, "acme/web/1", base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("RecordSnapshot failed: %v", err)
		}
	}
	if err := store.RecordSnapshot(ctx, snapshotEvent("other", "acme/web/2", base)); err != nil {
		t.Fatalf("RecordSnapshot failed: %v", err)
	}

	runs, err := store.ListSnapshots(ctx, "acme/web/1")
	if err != nil {
		t.Fatalf("ListSnapshots failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("Expected 3 runs, got %d", len(runs))
	}
	if runs[0].RunID != "run-3" || runs[2].RunID != "run-1" {
		t.Errorf("Expected newest first, got %s..%s", runs[0].RunID, runs[2].RunID)
	}
}

func TestMemoryStore_RecordReplaces(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	event := snapshotEvent("run-1", "acme/web/1", time.Now())
	store.RecordSnapshot(ctx, event)

	event.FetchComplete = false
	event.FailedSteps = []string{"01-build"}
	store.RecordSnapshot(ctx, event)

	runs, _ := store.ListSnapshots(ctx, "acme/web/1")
	if len(runs) != 1 {
		t.Fatalf("Expected 1 run after re-record, got %d", len(runs))
	}
	if runs[0].FetchComplete || len(runs[0].FailedSteps) != 1 {
		t.Errorf("Expected updated record, got %+v", runs[0])
	}
}

func TestMemoryStore_GetSnapshot(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.RecordSnapshot(ctx, snapshotEvent("run-1", "acme/web/1", time.Now()))

	run, err := store.GetSnapshot(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if run.BuildRef != "acme/web/1" {
		t.Errorf("Expected build ref acme/web/1, got %s", run.BuildRef)
	}

	_, err = store.GetSnapshot(ctx, "missing")
	var notFound ErrNotFound
	if !errors.As(err, &notFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_ListUnknownBuild(t *testing.T) {
	store := NewMemoryStore()

	runs, err := store.ListSnapshots(context.Background(), "nobody/none/1")
	if err != nil {
		t.Fatalf("ListSnapshots failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("Expected no runs, got %d", len(runs))
	}
}
