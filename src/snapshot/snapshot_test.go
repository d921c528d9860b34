package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"bkfetch/src/provider"
)

var testRef = provider.BuildReference{Org: "acme", Pipeline: "web", Number: 7}

type fakeProvider struct {
	mu             sync.Mutex
	build          *provider.Build
	buildErr       error
	annotations    []provider.Annotation
	annotationsErr error
	logs           map[string]string
	logErrs        map[string]error
	logCalls       []string
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) FetchBuild(ctx context.Context, ref provider.BuildReference) (*provider.Build, error) {
	if p.buildErr != nil {
		return nil, p.buildErr
	}
	return p.build, nil
}

func (p *fakeProvider) FetchJobLog(ctx context.Context, ref provider.BuildReference, jobID string) (*provider.JobLog, error) {
	p.mu.Lock()
	p.logCalls = append(p.logCalls, jobID)
	p.mu.Unlock()

	if err := p.logErrs[jobID]; err != nil {
		return nil, err
	}
	content := p.logs[jobID]
	return &provider.JobLog{Content: content, Size: len(content)}, nil
}

func (p *fakeProvider) FetchAnnotations(ctx context.Context, ref provider.BuildReference) ([]provider.Annotation, error) {
	return p.annotations, p.annotationsErr
}

func exitStatus(code int) *int { return &code }

func twoJobBuild() *provider.Build {
	return &provider.Build{
		Number:  7,
		URL:     "https://buildkite.com/acme/web/builds/7",
		State:   provider.StateFailed,
		Message: "Fix flaky test",
		Branch:  "main",
		Commit:  "abc123",
		Raw:     json.RawMessage(`{"number":7,"state":"failed"}`),
		Jobs: []provider.Job{
			{ID: "job-1", Type: provider.JobTypeCommand, Label: ":hammer: Build", State: provider.StatePassed, ExitStatus: exitStatus(0),
				Raw: json.RawMessage(`{"id":"job-1"}`)},
			{ID: "wait", Type: "waiter"},
			{ID: "job-2", Type: provider.JobTypeCommand, Label: "Run Tests (unit)", State: provider.StateFailed, ExitStatus: exitStatus(1),
				Raw: json.RawMessage(`{"id":"job-2"}`)},
		},
	}
}

func newTestOrchestrator(p provider.Provider, root string, captureAll bool, concurrency int) *Orchestrator {
	return New(p, Options{
		Root:        root,
		CaptureAll:  captureAll,
		Concurrency: concurrency,
		Now:         func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
		NewRunID:    func() string { return "run-1" },
	})
}

func readManifest(t *testing.T, dir string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		t.Fatalf("failed to read manifest: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("manifest is not valid JSON: %v", err)
	}
	return m
}

func TestRun_AllStepsCaptured(t *testing.T) {
	root := t.TempDir()
	p := &fakeProvider{
		build: twoJobBuild(),
		logs:  map[string]string{"job-1": "building\n", "job-2": "testing\nFAIL\n"},
	}

	result, err := newTestOrchestrator(p, root, true, 1).Run(context.Background(), testRef)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", result.ExitCode)
	}
	wantDir := filepath.Join(root, "acme", "web", "7")
	if result.Dir != wantDir {
		t.Errorf("Dir = %q, want %q", result.Dir, wantDir)
	}

	m := readManifest(t, result.Dir)
	if m["version"].(float64) != 2 {
		t.Errorf("version = %v, want 2", m["version"])
	}
	if m["fetchComplete"] != true {
		t.Errorf("fetchComplete = %v, want true", m["fetchComplete"])
	}
	if m["buildRef"] != "acme/web/7" || m["runId"] != "run-1" || m["captureMode"] != "all" {
		t.Errorf("manifest header = %v %v %v", m["buildRef"], m["runId"], m["captureMode"])
	}
	if _, ok := m["fetchErrors"]; ok {
		t.Error("fetchErrors present on a complete run")
	}

	annotations := m["annotations"].(map[string]any)
	if annotations["fetchStatus"] != "none" || annotations["count"].(float64) != 0 {
		t.Errorf("annotations = %v, want {none, 0}", annotations)
	}

	steps := m["steps"].([]any)
	if len(steps) != 2 {
		t.Fatalf("len(steps) = %d, want 2", len(steps))
	}
	first := steps[0].(map[string]any)
	if first["id"] != "01-build" || first["jobId"] != "job-1" || first["fetchStatus"] != "success" {
		t.Errorf("steps[0] = %v", first)
	}
	if first["exit_status"].(float64) != 0 || first["state"] != "passed" {
		t.Errorf("steps[0] state = %v exit = %v", first["state"], first["exit_status"])
	}
	second := steps[1].(map[string]any)
	if second["id"] != "02-run-tests-unit" {
		t.Errorf("steps[1].id = %v", second["id"])
	}

	log, err := os.ReadFile(StepLogPath(result.Dir, "02-run-tests-unit"))
	if err != nil || string(log) != "testing\nFAIL\n" {
		t.Errorf("log.txt = %q, %v", log, err)
	}
	for _, name := range []string{BuildFile, AnnotationsFile, filepath.Join(StepsDir, "01-build", StepFile)} {
		if _, err := os.Stat(filepath.Join(result.Dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestRun_LogFailureIsRecorded(t *testing.T) {
	root := t.TempDir()
	p := &fakeProvider{
		build:   twoJobBuild(),
		logs:    map[string]string{"job-2": "ok\n"},
		logErrs: map[string]error{"job-1": errors.New("API request failed with status 404: Not Found")},
	}

	result, err := newTestOrchestrator(p, root, true, 1).Run(context.Background(), testRef)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", result.ExitCode)
	}

	m := readManifest(t, result.Dir)
	if m["fetchComplete"] != false {
		t.Errorf("fetchComplete = %v, want false", m["fetchComplete"])
	}

	fetchErrors := m["fetchErrors"].([]any)
	if len(fetchErrors) != 1 {
		t.Fatalf("len(fetchErrors) = %d, want 1", len(fetchErrors))
	}
	fe := fetchErrors[0].(map[string]any)
	if fe["error"] != "not_found" || fe["retryable"] != false || fe["stepId"] != "01-build" || fe["jobId"] != "job-1" {
		t.Errorf("fetchErrors[0] = %v", fe)
	}

	steps := m["steps"].([]any)
	if s := steps[0].(map[string]any); s["fetchStatus"] != "failed" || s["error"] != "not_found" {
		t.Errorf("steps[0] = %v", s)
	}
	if s := steps[1].(map[string]any); s["fetchStatus"] != "success" {
		t.Errorf("steps[1] = %v, want success", s)
	}

	// Metadata is written before the log is fetched.
	if _, err := os.Stat(filepath.Join(result.Dir, StepsDir, "01-build", StepFile)); err != nil {
		t.Errorf("step.json missing for failed step: %v", err)
	}
	if _, err := os.Stat(StepLogPath(result.Dir, "01-build")); !os.IsNotExist(err) {
		t.Errorf("log.txt exists for failed step")
	}
	if len(p.logCalls) != 2 {
		t.Errorf("log fetches = %v, want both steps attempted", p.logCalls)
	}
}

func TestRun_AnnotationFailureIsRecorded(t *testing.T) {
	p := &fakeProvider{
		build:          twoJobBuild(),
		annotationsErr: errors.New("connect ECONNREFUSED"),
	}

	result, err := newTestOrchestrator(p, t.TempDir(), true, 1).Run(context.Background(), testRef)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	m := result.Manifest
	if m.FetchComplete {
		t.Error("FetchComplete = true with failed annotations")
	}
	if m.Annotations.FetchStatus != FetchFailed || m.Annotations.Error != "network_error" {
		t.Errorf("Annotations = %+v", m.Annotations)
	}
	if len(m.FetchErrors) != 0 {
		t.Errorf("FetchErrors = %v, want none when only annotations failed", m.FetchErrors)
	}
	for _, s := range m.Steps {
		if s.FetchStatus != FetchSuccess {
			t.Errorf("step %s = %s, want success", s.ID, s.FetchStatus)
		}
	}
	if result.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", result.ExitCode)
	}
}

func TestRun_AnnotationsWritten(t *testing.T) {
	p := &fakeProvider{
		build:       twoJobBuild(),
		annotations: []provider.Annotation{{ID: "a1", Context: "coverage", Style: "info", BodyHTML: "<p>ok</p>"}},
	}

	result, err := newTestOrchestrator(p, t.TempDir(), true, 1).Run(context.Background(), testRef)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Manifest.Annotations.FetchStatus != FetchSuccess || result.Manifest.Annotations.Count != 1 {
		t.Errorf("Annotations = %+v", result.Manifest.Annotations)
	}

	data, err := os.ReadFile(filepath.Join(result.Dir, AnnotationsFile))
	if err != nil {
		t.Fatalf("failed to read annotations: %v", err)
	}
	var doc struct {
		Count       int                   `json:"count"`
		Annotations []provider.Annotation `json:"annotations"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("annotations.json is invalid: %v", err)
	}
	if doc.Count != 1 || doc.Annotations[0].Context != "coverage" {
		t.Errorf("annotations.json = %+v", doc)
	}
}

func TestRun_DefaultCapturesFailedOnly(t *testing.T) {
	build := twoJobBuild()
	passedFalse := false
	build.Jobs = append(build.Jobs, provider.Job{
		ID: "job-3", Type: provider.JobTypeCommand, Label: "Lint", State: provider.StateRunning, Passed: &passedFalse,
	})
	p := &fakeProvider{build: build}

	result, err := newTestOrchestrator(p, t.TempDir(), false, 1).Run(context.Background(), testRef)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	m := result.Manifest
	if m.CaptureMode != CaptureFailed {
		t.Errorf("CaptureMode = %q", m.CaptureMode)
	}
	if len(m.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2", len(m.Steps))
	}
	if m.Steps[0].JobID != "job-2" || m.Steps[0].ID != "01-run-tests-unit" {
		t.Errorf("Steps[0] = %+v", m.Steps[0])
	}
	if m.Steps[1].JobID != "job-3" || m.Steps[1].ID != "02-lint" {
		t.Errorf("Steps[1] = %+v", m.Steps[1])
	}
}

func TestRun_BuildFetchFailureWritesNothing(t *testing.T) {
	root := t.TempDir()
	p := &fakeProvider{buildErr: errors.New("API request failed with status 401: Unauthorized")}

	_, err := newTestOrchestrator(p, root, true, 1).Run(context.Background(), testRef)
	if err == nil {
		t.Fatal("Run() error = nil")
	}
	if provider.Classify(err).Category != provider.CategoryPermissionDenied {
		t.Errorf("error %q does not classify as permission_denied", err)
	}

	entries, _ := os.ReadDir(root)
	if len(entries) != 0 {
		t.Errorf("root contains %d entries, want none", len(entries))
	}
}

func TestRun_RerunReplacesSteps(t *testing.T) {
	root := t.TempDir()
	p := &fakeProvider{build: twoJobBuild()}

	if _, err := newTestOrchestrator(p, root, true, 1).Run(context.Background(), testRef); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	result, err := newTestOrchestrator(p, root, false, 1).Run(context.Background(), testRef)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(result.Dir, StepsDir))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "01-run-tests-unit" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("steps/ = %v, want only 01-run-tests-unit", names)
	}
}

func TestRun_RerunAnnotationFailureClearsStale(t *testing.T) {
	root := t.TempDir()
	p := &fakeProvider{
		build: twoJobBuild(),
		annotations: []provider.Annotation{
			{ID: "a1", Context: "coverage", Style: "info", BodyHTML: "<p>ok</p>"},
			{ID: "a2", Context: "lint", Style: "warning", BodyHTML: "<p>warn</p>"},
		},
	}

	first, err := newTestOrchestrator(p, root, true, 1).Run(context.Background(), testRef)
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(first.Dir, AnnotationsFile)); err != nil {
		t.Fatalf("annotations.json missing after first run: %v", err)
	}

	p.annotations = nil
	p.annotationsErr = errors.New("API request failed with status 403: forbidden")

	second, err := newTestOrchestrator(p, root, true, 1).Run(context.Background(), testRef)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(second.Dir, AnnotationsFile)); !os.IsNotExist(err) {
		t.Errorf("annotations.json from the first run survived a failed re-fetch (stat err = %v)", err)
	}

	m := readManifest(t, second.Dir)
	annotations := m["annotations"].(map[string]any)
	if annotations["fetchStatus"] != "failed" || annotations["error"] != "permission_denied" {
		t.Errorf("annotations = %v, want failed/permission_denied", annotations)
	}
}

func TestRun_ConcurrentMatchesSequential(t *testing.T) {
	build := twoJobBuild()
	for i := 0; i < 8; i++ {
		build.Jobs = append(build.Jobs, provider.Job{
			ID: "extra-" + string(rune('a'+i)), Type: provider.JobTypeCommand, Label: "Shard", State: provider.StatePassed,
		})
	}
	logErrs := map[string]error{"extra-c": errors.New("403 Forbidden")}

	seq, err := newTestOrchestrator(&fakeProvider{build: build, logErrs: logErrs}, t.TempDir(), true, 1).Run(context.Background(), testRef)
	if err != nil {
		t.Fatalf("sequential Run() error = %v", err)
	}
	par, err := newTestOrchestrator(&fakeProvider{build: build, logErrs: logErrs}, t.TempDir(), true, 4).Run(context.Background(), testRef)
	if err != nil {
		t.Fatalf("concurrent Run() error = %v", err)
	}

	if len(seq.Manifest.Steps) != len(par.Manifest.Steps) {
		t.Fatalf("step counts differ: %d vs %d", len(seq.Manifest.Steps), len(par.Manifest.Steps))
	}
	seen := make(map[string]bool)
	for i := range seq.Manifest.Steps {
		s, c := seq.Manifest.Steps[i], par.Manifest.Steps[i]
		if s.ID != c.ID || s.JobID != c.JobID || s.FetchStatus != c.FetchStatus {
			t.Errorf("step %d differs: %+v vs %+v", i, s, c)
		}
		if seen[c.ID] {
			t.Errorf("duplicate step id %q", c.ID)
		}
		seen[c.ID] = true
	}
	if par.Manifest.FetchComplete || len(par.Manifest.FetchErrors) != 1 {
		t.Errorf("concurrent manifest complete=%v errors=%v", par.Manifest.FetchComplete, par.Manifest.FetchErrors)
	}
	if par.Manifest.FetchErrors[0].Error != "permission_denied" {
		t.Errorf("FetchErrors[0] = %+v", par.Manifest.FetchErrors[0])
	}
}

type failingWriter struct {
	FSWriter
	failOn string
}

func (w failingWriter) WriteFile(path string, data []byte) error {
	if strings.HasSuffix(path, w.failOn) {
		return errors.New("disk full")
	}
	return w.FSWriter.WriteFile(path, data)
}

func TestRun_WriteFailureIsFatal(t *testing.T) {
	p := &fakeProvider{build: twoJobBuild(), logs: map[string]string{"job-1": "x"}}
	o := New(p, Options{Root: t.TempDir(), CaptureAll: true, Writer: failingWriter{failOn: LogFile}})

	_, err := o.Run(context.Background(), testRef)
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("Run() error = %v, want write failure", err)
	}
	if len(p.logCalls) != 1 {
		t.Errorf("log fetches = %v, want the run to stop at the first write failure", p.logCalls)
	}
}

func TestLoadManifest(t *testing.T) {
	p := &fakeProvider{build: twoJobBuild()}
	result, err := newTestOrchestrator(p, t.TempDir(), true, 1).Run(context.Background(), testRef)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	m, err := LoadManifest(result.Dir)
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	if m.RunID != "run-1" || len(m.Steps) != 2 || !m.FetchedAt.Equal(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("LoadManifest() = %+v", m)
	}
	if step, ok := m.FindStep("job-2"); !ok || step.ID != "02-run-tests-unit" {
		t.Errorf("FindStep(job-2) = %+v, %v", step, ok)
	}

	if _, err := LoadManifest(t.TempDir()); err == nil {
		t.Error("LoadManifest() on empty dir should fail")
	}
}
