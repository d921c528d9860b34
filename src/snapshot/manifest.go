package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bkfetch/src/provider"
)

// ManifestVersion is the layout version written to manifest.json.
const ManifestVersion = 2

// File names inside a snapshot directory.
const (
	ManifestFile    = "manifest.json"
	BuildFile       = "build.json"
	AnnotationsFile = "annotations.json"
	StepsDir        = "steps"
	StepFile        = "step.json"
	LogFile         = "log.txt"
)

// FetchStatus records whether an artifact was captured.
type FetchStatus string

const (
	FetchSuccess FetchStatus = "success"
	FetchFailed  FetchStatus = "failed"
	FetchNone    FetchStatus = "none"
)

// CaptureMode is the step selection policy of a run.
type CaptureMode string

const (
	CaptureAll    CaptureMode = "all"
	CaptureFailed CaptureMode = "failed"
)

// Manifest is the record of one snapshot run. It is written once, after
// every fetch has resolved.
type Manifest struct {
	Version       int               `json:"version"`
	RunID         string            `json:"runId"`
	BuildRef      string            `json:"buildRef"`
	URL           string            `json:"url"`
	FetchedAt     time.Time         `json:"fetchedAt"`
	FetchComplete bool              `json:"fetchComplete"`
	CaptureMode   CaptureMode       `json:"captureMode"`
	Build         BuildSummary      `json:"build"`
	Annotations   AnnotationSummary `json:"annotations"`
	Steps         []StepEntry       `json:"steps"`
	FetchErrors   []ErrorEntry      `json:"fetchErrors,omitempty"`
}

type BuildSummary struct {
	State   string `json:"state"`
	Number  int    `json:"number"`
	Message string `json:"message"`
	Branch  string `json:"branch"`
	Commit  string `json:"commit"`
}

type AnnotationSummary struct {
	FetchStatus FetchStatus `json:"fetchStatus"`
	Count       int         `json:"count"`
	Error       string      `json:"error,omitempty"`
}

// StepEntry locates a captured step: its log is at steps/<ID>/log.txt.
type StepEntry struct {
	ID          string      `json:"id"`
	JobID       string      `json:"jobId"`
	Label       string      `json:"label"`
	State       string      `json:"state"`
	ExitStatus  *int        `json:"exit_status"`
	FetchStatus FetchStatus `json:"fetchStatus"`
	Error       string      `json:"error,omitempty"`
	Message     string      `json:"message,omitempty"`
	Retryable   *bool       `json:"retryable,omitempty"`
}

type ErrorEntry struct {
	StepID    string `json:"stepId"`
	JobID     string `json:"jobId"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// StepCaptureResult is the outcome of capturing one step.
type StepCaptureResult struct {
	ID      string
	JobID   string
	Status  FetchStatus
	Job     provider.Job
	Failure *provider.Classification
}

// annotationResult is the outcome of the annotation batch fetch.
type annotationResult struct {
	status  FetchStatus
	count   int
	failure *provider.Classification
}

// buildManifest assembles the manifest and derives completeness from the
// step and annotation results.
func buildManifest(ref provider.BuildReference, build *provider.Build, runID string, mode CaptureMode,
	fetchedAt time.Time, annotations annotationResult, steps []StepCaptureResult) *Manifest {

	url := build.URL
	if url == "" {
		url = ref.WebURL()
	}

	m := &Manifest{
		Version:     ManifestVersion,
		RunID:       runID,
		BuildRef:    ref.String(),
		URL:         url,
		FetchedAt:   fetchedAt.UTC(),
		CaptureMode: mode,
		Build: BuildSummary{
			State:   build.State,
			Number:  build.Number,
			Message: build.Message,
			Branch:  build.Branch,
			Commit:  build.Commit,
		},
		Annotations: AnnotationSummary{
			FetchStatus: annotations.status,
			Count:       annotations.count,
		},
		Steps: make([]StepEntry, 0, len(steps)),
	}
	if annotations.failure != nil {
		m.Annotations.Error = string(annotations.failure.Category)
	}

	complete := annotations.status != FetchFailed
	for _, s := range steps {
		entry := StepEntry{
			ID:          s.ID,
			JobID:       s.JobID,
			Label:       s.Job.Label,
			State:       s.Job.State,
			ExitStatus:  s.Job.ExitStatus,
			FetchStatus: s.Status,
		}

		if s.Status != FetchSuccess {
			complete = false
			if s.Failure != nil {
				retryable := s.Failure.Retryable
				entry.Error = string(s.Failure.Category)
				entry.Message = s.Failure.Message
				entry.Retryable = &retryable
				m.FetchErrors = append(m.FetchErrors, ErrorEntry{
					StepID:    s.ID,
					JobID:     s.JobID,
					Error:     string(s.Failure.Category),
					Message:   s.Failure.Message,
					Retryable: s.Failure.Retryable,
				})
			}
		}

		m.Steps = append(m.Steps, entry)
	}
	m.FetchComplete = complete

	return m
}

// FailedSteps returns the entries whose capture did not succeed.
func (m *Manifest) FailedSteps() []StepEntry {
	var failed []StepEntry
	for _, s := range m.Steps {
		if s.FetchStatus != FetchSuccess {
			failed = append(failed, s)
		}
	}
	return failed
}

// FindStep returns the entry with the given directory ID or job ID.
func (m *Manifest) FindStep(id string) (StepEntry, bool) {
	for _, s := range m.Steps {
		if s.ID == id || s.JobID == id {
			return s, true
		}
	}
	return StepEntry{}, false
}

// BuildDir returns the snapshot directory of a build under root.
func BuildDir(root string, ref provider.BuildReference) string {
	return filepath.Join(root, ref.Org, ref.Pipeline, fmt.Sprint(ref.Number))
}

// StepLogPath returns the log path of a step inside a snapshot directory.
func StepLogPath(dir, stepID string) string {
	return filepath.Join(dir, StepsDir, stepID, LogFile)
}

// LoadManifest reads manifest.json from a snapshot directory.
func LoadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}
