package store

import (
	"context"
	"sort"
	"sync"

	"bkfetch/src/contracts"
)

// MemoryStore is an in-memory implementation of Store.
// Used by the MCP server and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	runs  map[string]contracts.SnapshotEvent // runID -> run
	byRef map[string][]string                // buildRef -> runIDs
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:  make(map[string]contracts.SnapshotEvent),
		byRef: make(map[string][]string),
	}
}

// RecordSnapshot saves a run.
func (s *MemoryStore) RecordSnapshot(ctx context.Context, event *contracts.SnapshotEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[event.RunID]; !exists {
		s.byRef[event.BuildRef] = append(s.byRef[event.BuildRef], event.RunID)
	}
	s.runs[event.RunID] = *event
	return nil
}

// ListSnapshots returns the runs for a build, newest first.
func (s *MemoryStore) ListSnapshots(ctx context.Context, buildRef string) ([]contracts.SnapshotEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byRef[buildRef]
	runs := make([]contracts.SnapshotEvent, 0, len(ids))
	for _, id := range ids {
		runs = append(runs, s.runs[id])
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].FetchedAt.After(runs[j].FetchedAt)
	})
	return runs, nil
}

// GetSnapshot returns a single run.
func (s *MemoryStore) GetSnapshot(ctx context.Context, runID string) (*contracts.SnapshotEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, ErrNotFound{RunID: runID}
	}
	return &run, nil
}

// Close is a no-op for in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
