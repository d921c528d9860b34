// Package follow tails the log of a running Buildkite job until it finishes.
//
// The follower polls the build and the job log on a jittered interval and
// writes only bytes it has not written before. Retryable failures back off
// exponentially; a non-retryable failure, or too many consecutive failures,
// ends the run. Cancellation is cooperative: the context is checked once per
// poll cycle and an in-flight fetch is allowed to finish.
package follow

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"time"

	"bkfetch/src/logger"
	"bkfetch/src/provider"
)

const (
	// DefaultInterval is the base poll interval.
	DefaultInterval = 2 * time.Second
	// MaxInterval caps the backoff interval.
	MaxInterval = 30 * time.Second
	// MaxConsecutiveErrors ends the run after this many failed polls in a row.
	MaxConsecutiveErrors = 3
	// DefaultTailLines is how much of an existing log is shown on start.
	DefaultTailLines = 40

	jitterFraction = 0.10
)

// Outcome describes why a follow run ended.
type Outcome string

const (
	OutcomeTerminal    Outcome = "terminal"
	OutcomeInterrupted Outcome = "interrupted"
	OutcomeFailed      Outcome = "failed"
)

// Options configures a Follower.
type Options struct {
	// Interval is the base poll interval. Zero means DefaultInterval.
	Interval time.Duration
	// TailLines is the number of lines shown from the log on start.
	// Zero or less shows the whole log.
	TailLines int
	// InitialLog, when set, is treated as already displayed: it is not
	// printed again and its length seeds the byte offset.
	InitialLog *provider.JobLog
	// Out receives log bytes. Defaults to io.Discard.
	Out io.Writer

	Classifier provider.Classifier
	Logger     logger.Logger

	// Sleep and Jitter are replaceable for tests.
	Sleep  func(ctx context.Context, d time.Duration) error
	Jitter func(d time.Duration) time.Duration
}

// Result is the final state of a follow run.
type Result struct {
	ExitCode     int
	Outcome      Outcome
	Job          provider.Job
	Failure      *provider.Classification
	BytesWritten int
	Polls        int
}

// pollState is owned by a single Run call.
type pollState struct {
	previousByteSize  int
	currentInterval   time.Duration
	consecutiveErrors int
	interrupted       bool
}

// Follower follows one job's log.
type Follower struct {
	provider provider.Provider
	opts     Options
}

// New creates a Follower that fetches through p.
func New(p provider.Provider, opts Options) *Follower {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Classifier == nil {
		opts.Classifier = provider.DefaultClassifier
	}
	opts.Logger = logger.Ensure(opts.Logger)
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.Jitter == nil {
		opts.Jitter = jitter
	}
	return &Follower{provider: p, opts: opts}
}

// Run follows the job until it is terminal, the context is cancelled, or
// polling fails. The returned Result is never nil. The error is non-nil
// exactly when Outcome is OutcomeFailed.
func (f *Follower) Run(ctx context.Context, ref provider.BuildReference, jobID string) (*Result, error) {
	// Fetches run detached from cancellation so an in-flight request can
	// complete; cancellation is observed between polls.
	fetchCtx := context.WithoutCancel(ctx)
	result := &Result{ExitCode: 1}

	build, err := f.provider.FetchBuild(fetchCtx, ref)
	result.Polls++
	if err != nil {
		return f.fail(result, fmt.Errorf("failed to fetch build %s: %w", ref, err))
	}

	job, err := selectJob(build, jobID)
	if err != nil {
		return f.fail(result, err)
	}
	result.Job = job

	state := &pollState{currentInterval: f.opts.Interval}
	log := f.opts.InitialLog
	if log == nil {
		log, err = f.provider.FetchJobLog(fetchCtx, ref, job.ID)
		if err != nil {
			return f.fail(result, fmt.Errorf("failed to fetch log for job %s: %w", job.ID, err))
		}
		n, err := io.WriteString(f.opts.Out, tail(log.Content, f.opts.TailLines))
		result.BytesWritten += n
		if err != nil {
			return result, fmt.Errorf("failed to write log: %w", err)
		}
	}
	state.previousByteSize = len(log.Content)

	f.opts.Logger.Debug("[Follower] Following job", "build", ref.String(), "job_id", job.ID, "state", job.State)

	if job.IsTerminal() {
		return f.finish(result, job), nil
	}

	for {
		if ctx.Err() != nil {
			state.interrupted = true
		}
		if state.interrupted {
			result.Outcome = OutcomeInterrupted
			result.ExitCode = 0
			f.opts.Logger.Debug("[Follower] Interrupted", "job_id", job.ID, "polls", result.Polls)
			return result, nil
		}

		// A cancelled sleep is picked up at the top of the loop.
		_ = f.opts.Sleep(ctx, f.opts.Jitter(state.currentInterval))
		if ctx.Err() != nil {
			continue
		}

		current, log, err := f.poll(fetchCtx, ref, job.ID)
		result.Polls++
		if err != nil {
			c := f.opts.Classifier.Classify(err)
			state.consecutiveErrors++
			f.opts.Logger.Error("[Follower] Poll failed",
				"job_id", job.ID,
				"category", c.Category,
				"retryable", c.Retryable,
				"consecutive_errors", state.consecutiveErrors,
				"error", err)

			if !c.Retryable || state.consecutiveErrors >= MaxConsecutiveErrors {
				result.Failure = &c
				result.Outcome = OutcomeFailed
				result.ExitCode = 1
				return result, &c
			}

			state.currentInterval = min(state.currentInterval*2, MaxInterval)
			continue
		}

		state.consecutiveErrors = 0
		state.currentInterval = f.opts.Interval
		result.Job = current

		if len(log.Content) > state.previousByteSize {
			n, err := io.WriteString(f.opts.Out, log.Content[state.previousByteSize:])
			result.BytesWritten += n
			state.previousByteSize += n
			if err != nil {
				return result, fmt.Errorf("failed to write log: %w", err)
			}
		}

		if current.IsTerminal() {
			return f.finish(result, current), nil
		}
	}
}

// poll fetches the job's latest state and its log.
func (f *Follower) poll(ctx context.Context, ref provider.BuildReference, jobID string) (provider.Job, *provider.JobLog, error) {
	build, err := f.provider.FetchBuild(ctx, ref)
	if err != nil {
		return provider.Job{}, nil, err
	}

	job, ok := build.FindJob(jobID)
	if !ok {
		return provider.Job{}, nil, fmt.Errorf("%w: %s", provider.ErrJobNotFound, jobID)
	}

	log, err := f.provider.FetchJobLog(ctx, ref, jobID)
	if err != nil {
		return provider.Job{}, nil, err
	}

	return job, log, nil
}

func (f *Follower) finish(result *Result, job provider.Job) *Result {
	result.Job = job
	result.Outcome = OutcomeTerminal
	result.ExitCode = job.ExitCode()
	f.opts.Logger.Debug("[Follower] Job finished", "job_id", job.ID, "state", job.State, "exit_code", result.ExitCode)
	return result
}

func (f *Follower) fail(result *Result, err error) (*Result, error) {
	c := f.opts.Classifier.Classify(err)
	result.Failure = &c
	result.Outcome = OutcomeFailed
	result.ExitCode = 1
	f.opts.Logger.Error("[Follower] Fetch failed", "category", c.Category, "retryable", c.Retryable, "error", err)
	return result, &c
}

// selectJob resolves the job to follow. Without an ID it prefers the first
// command job that is still running, then the last command job.
func selectJob(build *provider.Build, jobID string) (provider.Job, error) {
	if jobID != "" {
		job, ok := build.FindJob(jobID)
		if !ok {
			return provider.Job{}, fmt.Errorf("%w: %s", provider.ErrJobNotFound, jobID)
		}
		return job, nil
	}

	commands := build.CommandJobs()
	if len(commands) == 0 {
		return provider.Job{}, fmt.Errorf("%w: build has no command steps", provider.ErrJobNotFound)
	}
	for _, j := range commands {
		if !j.IsTerminal() {
			return j, nil
		}
	}
	return commands[len(commands)-1], nil
}

// tail returns the last n lines of content.
func tail(content string, n int) string {
	if n <= 0 {
		return content
	}

	end := len(content)
	if strings.HasSuffix(content, "\n") {
		end--
	}

	idx := end
	for i := 0; i < n; i++ {
		j := strings.LastIndexByte(content[:idx], '\n')
		if j < 0 {
			return content
		}
		idx = j
	}
	return content[idx+1:]
}

// jitter perturbs d uniformly by up to ±10%.
func jitter(d time.Duration) time.Duration {
	delta := (rand.Float64()*2 - 1) * jitterFraction * float64(d)
	return d + time.Duration(delta)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
