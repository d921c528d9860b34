package buildkite

import (
	"context"

	"bkfetch/src/provider"
)

// Provider implements provider.Provider for Buildkite
type Provider struct {
	client *Client
}

// NewProvider creates a Buildkite provider with API token
func NewProvider(token string, opts ...Option) *Provider {
	return &Provider{
		client: NewClient(token, opts...),
	}
}

// Name returns "buildkite"
func (p *Provider) Name() string {
	return "buildkite"
}

// FetchBuild retrieves build metadata using Buildkite API
func (p *Provider) FetchBuild(ctx context.Context, ref provider.BuildReference) (*provider.Build, error) {
	bkBuild, err := p.client.GetBuild(ctx, ref.Org, ref.Pipeline, ref.Number)
	if err != nil {
		return nil, err
	}

	build := &provider.Build{
		ID:        bkBuild.ID,
		Number:    bkBuild.Number,
		URL:       bkBuild.WebURL,
		State:     bkBuild.State,
		Message:   bkBuild.Message,
		Branch:    bkBuild.Branch,
		Commit:    bkBuild.Commit,
		CreatedAt: bkBuild.CreatedAt,
		Jobs:      make([]provider.Job, 0, len(bkBuild.Jobs)),
		Raw:       bkBuild.Raw,
	}

	for _, bkJob := range bkBuild.Jobs {
		build.Jobs = append(build.Jobs, convertJob(bkJob))
	}

	return build, nil
}

func convertJob(bkJob Job) provider.Job {
	label := bkJob.Label
	if label == "" {
		label = bkJob.Name
	}

	return provider.Job{
		ID:         bkJob.ID,
		Label:      label,
		Type:       bkJob.Type,
		State:      bkJob.State,
		ExitStatus: bkJob.ExitStatus,
		Passed:     bkJob.Passed,
		StepKey:    bkJob.StepKey,
		WebURL:     bkJob.WebURL,
		StartedAt:  bkJob.StartedAt,
		FinishedAt: bkJob.FinishedAt,
		Raw:        bkJob.Raw,
	}
}

// FetchJobLog retrieves the job's log content
func (p *Provider) FetchJobLog(ctx context.Context, ref provider.BuildReference, jobID string) (*provider.JobLog, error) {
	log, err := p.client.GetJobLog(ctx, ref.Org, ref.Pipeline, ref.Number, jobID)
	if err != nil {
		return nil, err
	}
	return &provider.JobLog{Content: log.Content, Size: log.Size}, nil
}

// FetchAnnotations retrieves the build's annotations
func (p *Provider) FetchAnnotations(ctx context.Context, ref provider.BuildReference) ([]provider.Annotation, error) {
	bkAnnotations, err := p.client.GetBuildAnnotations(ctx, ref.Org, ref.Pipeline, ref.Number)
	if err != nil {
		return nil, err
	}

	annotations := make([]provider.Annotation, 0, len(bkAnnotations))
	for _, a := range bkAnnotations {
		annotations = append(annotations, provider.Annotation{
			ID:        a.ID,
			Context:   a.Context,
			Style:     a.Style,
			BodyHTML:  a.BodyHTML,
			CreatedAt: a.CreatedAt,
			UpdatedAt: a.UpdatedAt,
		})
	}

	return annotations, nil
}
