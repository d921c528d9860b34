// Package snapshot captures a build's metadata, annotations and step logs
// into a directory tree described by a manifest.
//
// Only the build fetch is on the critical path. Annotation and step log
// failures are classified and recorded in the manifest, and the run carries
// on. Local write failures abort the run.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"bkfetch/src/logger"
	"bkfetch/src/provider"
)

// Options configures an Orchestrator.
type Options struct {
	// Root is the directory snapshots are written under.
	Root string
	// CaptureAll selects every command step instead of only failed ones.
	CaptureAll bool
	// Concurrency bounds parallel step captures. Values below 2 capture
	// steps sequentially.
	Concurrency int

	Classifier provider.Classifier
	Logger     logger.Logger
	Writer     Writer

	Now      func() time.Time
	NewRunID func() string
}

// Result is a completed snapshot run.
type Result struct {
	Dir      string
	Manifest *Manifest
	// ExitCode is 0 when the manifest is complete and 1 otherwise.
	ExitCode int
}

// Orchestrator runs the snapshot pipeline against a provider.
type Orchestrator struct {
	provider provider.Provider
	opts     Options
}

// New creates an Orchestrator that fetches through p.
func New(p provider.Provider, opts Options) *Orchestrator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Classifier == nil {
		opts.Classifier = provider.DefaultClassifier
	}
	opts.Logger = logger.Ensure(opts.Logger)
	if opts.Writer == nil {
		opts.Writer = FSWriter{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewRunID == nil {
		opts.NewRunID = func() string { return uuid.New().String() }
	}
	return &Orchestrator{provider: p, opts: opts}
}

// Run snapshots the build. An error means nothing usable was written: the
// build could not be fetched or a local write failed. Partial remote
// failures are reported through the manifest and the exit code.
func (o *Orchestrator) Run(ctx context.Context, ref provider.BuildReference) (*Result, error) {
	// Once started a snapshot runs to completion.
	ctx = context.WithoutCancel(ctx)
	runID := o.opts.NewRunID()
	fetchedAt := o.opts.Now()

	o.opts.Logger.Info("[Snapshot] Fetching build", "build", ref.String(), "run_id", runID)

	build, err := o.provider.FetchBuild(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch build %s: %w", ref, err)
	}

	dir := BuildDir(o.opts.Root, ref)
	if err := o.prepareDir(dir); err != nil {
		return nil, err
	}

	if err := o.writeBuild(dir, build); err != nil {
		return nil, err
	}

	annotations, err := o.captureAnnotations(ctx, ref, dir, fetchedAt)
	if err != nil {
		return nil, err
	}

	mode := CaptureFailed
	if o.opts.CaptureAll {
		mode = CaptureAll
	}
	jobs := selectJobs(build, o.opts.CaptureAll)
	o.opts.Logger.Info("[Snapshot] Capturing steps", "build", ref.String(), "mode", mode, "steps", len(jobs))

	steps, err := o.captureSteps(ctx, ref, dir, jobs)
	if err != nil {
		return nil, err
	}

	manifest := buildManifest(ref, build, runID, mode, fetchedAt, annotations, steps)
	if err := writeJSON(o.opts.Writer, filepath.Join(dir, ManifestFile), manifest); err != nil {
		return nil, err
	}

	result := &Result{Dir: dir, Manifest: manifest, ExitCode: 1}
	if manifest.FetchComplete {
		result.ExitCode = 0
	}

	o.opts.Logger.Info("[Snapshot] Wrote manifest",
		"dir", dir,
		"steps", len(manifest.Steps),
		"failed", len(manifest.FetchErrors),
		"complete", manifest.FetchComplete)

	return result, nil
}

// prepareDir creates the build directory and clears steps and annotations
// left by an earlier run, so the tree on disk always matches the new manifest.
func (o *Orchestrator) prepareDir(dir string) error {
	if err := o.opts.Writer.MkdirAll(dir); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if err := o.opts.Writer.RemoveAll(filepath.Join(dir, AnnotationsFile)); err != nil {
		return fmt.Errorf("failed to clear previous annotations: %w", err)
	}
	stepsDir := filepath.Join(dir, StepsDir)
	if err := o.opts.Writer.RemoveAll(stepsDir); err != nil {
		return fmt.Errorf("failed to clear previous steps: %w", err)
	}
	if err := o.opts.Writer.MkdirAll(stepsDir); err != nil {
		return fmt.Errorf("failed to create steps directory: %w", err)
	}
	return nil
}

func (o *Orchestrator) writeBuild(dir string, build *provider.Build) error {
	path := filepath.Join(dir, BuildFile)
	if len(build.Raw) > 0 {
		return writeRawJSON(o.opts.Writer, path, build.Raw)
	}
	return writeJSON(o.opts.Writer, path, build)
}

type annotationsDocument struct {
	FetchedAt   time.Time             `json:"fetchedAt"`
	Count       int                   `json:"count"`
	Annotations []provider.Annotation `json:"annotations"`
}

// captureAnnotations fetches the annotation batch. Only a write failure is
// returned as an error.
func (o *Orchestrator) captureAnnotations(ctx context.Context, ref provider.BuildReference, dir string, fetchedAt time.Time) (annotationResult, error) {
	annotations, err := o.provider.FetchAnnotations(ctx, ref)
	if err != nil {
		c := o.opts.Classifier.Classify(err)
		o.opts.Logger.Error("[Snapshot] Annotation fetch failed",
			"build", ref.String(),
			"category", c.Category,
			"retryable", c.Retryable,
			"error", err)
		return annotationResult{status: FetchFailed, failure: &c}, nil
	}

	if annotations == nil {
		annotations = []provider.Annotation{}
	}
	doc := annotationsDocument{
		FetchedAt:   fetchedAt.UTC(),
		Count:       len(annotations),
		Annotations: annotations,
	}
	if err := writeJSON(o.opts.Writer, filepath.Join(dir, AnnotationsFile), doc); err != nil {
		return annotationResult{}, err
	}

	status := FetchSuccess
	if len(annotations) == 0 {
		status = FetchNone
	}
	return annotationResult{status: status, count: len(annotations)}, nil
}

// selectJobs returns the command steps to capture, in build order.
func selectJobs(build *provider.Build, captureAll bool) []provider.Job {
	commands := build.CommandJobs()
	if captureAll {
		return commands
	}

	failed := make([]provider.Job, 0, len(commands))
	for _, j := range commands {
		if j.IsFailed() {
			failed = append(failed, j)
		}
	}
	return failed
}

// captureSteps captures every job. Results are stored by position so the
// manifest order and directory names do not depend on completion order.
func (o *Orchestrator) captureSteps(ctx context.Context, ref provider.BuildReference, dir string, jobs []provider.Job) ([]StepCaptureResult, error) {
	results := make([]StepCaptureResult, len(jobs))

	if o.opts.Concurrency < 2 {
		for i, job := range jobs {
			r, err := o.captureStep(ctx, ref, dir, i, job)
			if err != nil {
				return nil, err
			}
			results[i] = r
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			r, err := o.captureStep(gctx, ref, dir, i, job)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// captureStep writes a step's metadata and then its log. A log fetch
// failure is recorded in the result; only write failures return an error.
func (o *Orchestrator) captureStep(ctx context.Context, ref provider.BuildReference, dir string, index int, job provider.Job) (StepCaptureResult, error) {
	id := StepDirName(index, job.Label)
	stepDir := filepath.Join(dir, StepsDir, id)
	result := StepCaptureResult{ID: id, JobID: job.ID, Job: job}

	if err := o.opts.Writer.MkdirAll(stepDir); err != nil {
		return result, fmt.Errorf("failed to create step directory %s: %w", id, err)
	}

	meta := []byte(job.Raw)
	if len(meta) == 0 {
		var err error
		if meta, err = json.Marshal(job); err != nil {
			return result, fmt.Errorf("failed to encode step %s: %w", id, err)
		}
	}
	if err := writeRawJSON(o.opts.Writer, filepath.Join(stepDir, StepFile), meta); err != nil {
		return result, err
	}

	log, err := o.provider.FetchJobLog(ctx, ref, job.ID)
	if err != nil {
		c := o.opts.Classifier.Classify(err)
		o.opts.Logger.Error("[Snapshot] Log fetch failed",
			"step", id,
			"job_id", job.ID,
			"category", c.Category,
			"retryable", c.Retryable,
			"error", err)
		result.Status = FetchFailed
		result.Failure = &c
		return result, nil
	}

	if err := writeFile(o.opts.Writer, filepath.Join(stepDir, LogFile), []byte(log.Content)); err != nil {
		return result, err
	}

	o.opts.Logger.Debug("[Snapshot] Captured step", "step", id, "job_id", job.ID, "bytes", len(log.Content))
	result.Status = FetchSuccess
	return result, nil
}
