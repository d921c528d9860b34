package snapshot

import "bkfetch/src/contracts"

// Event summarises the run for the history store and the event broker.
func (r *Result) Event() *contracts.SnapshotEvent {
	m := r.Manifest
	event := &contracts.SnapshotEvent{
		RunID:         m.RunID,
		BuildRef:      m.BuildRef,
		URL:           m.URL,
		Dir:           r.Dir,
		CaptureMode:   string(m.CaptureMode),
		BuildState:    m.Build.State,
		FetchComplete: m.FetchComplete,
		StepCount:     len(m.Steps),
		FetchedAt:     m.FetchedAt,
	}
	for _, s := range m.FailedSteps() {
		event.FailedSteps = append(event.FailedSteps, s.ID)
	}
	return event
}
