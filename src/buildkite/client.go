// Package buildkite provides a client for interacting with the Buildkite API.
package buildkite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

const (
	// APIBaseURL is the base URL for the Buildkite API.
	APIBaseURL = "https://api.buildkite.com/v2"
)

// Client is a Buildkite API client.
type Client struct {
	apiToken   string
	baseURL    string
	httpClient *http.Client
}

// Build represents a Buildkite build.
type Build struct {
	ID        string    `json:"id"`
	Number    int       `json:"number"`
	State     string    `json:"state"`
	Message   string    `json:"message"`
	Branch    string    `json:"branch"`
	Commit    string    `json:"commit"`
	WebURL    string    `json:"web_url"`
	CreatedAt time.Time `json:"created_at"`
	Jobs      []Job     `json:"jobs"`

	// Raw holds the undecoded response body.
	Raw json.RawMessage `json:"-"`
}

// Job represents a Buildkite job within a build.
type Job struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Label      string     `json:"label"`
	StepKey    string     `json:"step_key"`
	Type       string     `json:"type"`
	State      string     `json:"state"`
	ExitStatus *int       `json:"exit_status"`
	Passed     *bool      `json:"passed"`
	WebURL     string     `json:"web_url"`
	RawLogURL  string     `json:"raw_log_url"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`

	// Raw holds the undecoded job object from the build response.
	Raw json.RawMessage `json:"-"`
}

// JobLog is the JSON representation of a job log.
type JobLog struct {
	URL     string `json:"url"`
	Content string `json:"content"`
	Size    int    `json:"size"`
}

// Annotation represents a build annotation.
type Annotation struct {
	ID        string    `json:"id"`
	Context   string    `json:"context"`
	Style     string    `json:"style"`
	BodyHTML  string    `json:"body_html"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// APIError is returned for any non-200 response. The message always
// carries the numeric status so message-based classification works.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Body)
}

// TransportError is a request that never got an HTTP response. The message
// leaves out the URL and remote address so build numbers, job IDs and ports
// never reach message-based classification.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "network error: " + transportReason(e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func transportReason(err error) string {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "lookup failed: " + dnsErr.Err
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Err != nil {
		return opErr.Op + ": " + opErr.Err.Error()
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err.Error()
	}
	return err.Error()
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root (tests, proxies).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new Buildkite API client.
func NewClient(apiToken string, opts ...Option) *Client {
	c := &Client{
		apiToken: apiToken,
		baseURL:  APIBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) buildPath(org, pipeline string, buildNumber int) string {
	return fmt.Sprintf("%s/organizations/%s/pipelines/%s/builds/%d", c.baseURL, org, pipeline, buildNumber)
}

// get performs an authenticated GET and returns the body of a 200 response.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiToken))
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}

// GetBuild fetches a build's metadata, including its jobs, from the Buildkite API.
func (c *Client) GetBuild(ctx context.Context, org, pipeline string, buildNumber int) (*Build, error) {
	body, err := c.get(ctx, c.buildPath(org, pipeline, buildNumber))
	if err != nil {
		return nil, err
	}

	var build Build
	if err := json.Unmarshal(body, &build); err != nil {
		return nil, fmt.Errorf("failed to decode build: %w", err)
	}

	// Keep each job's original document for step.json.
	var rawJobs struct {
		Jobs []json.RawMessage `json:"jobs"`
	}
	if err := json.Unmarshal(body, &rawJobs); err == nil && len(rawJobs.Jobs) == len(build.Jobs) {
		for i := range build.Jobs {
			build.Jobs[i].Raw = rawJobs.Jobs[i]
		}
	}
	build.Raw = body

	return &build, nil
}

// GetJobLog fetches the current log of a job.
func (c *Client) GetJobLog(ctx context.Context, org, pipeline string, buildNumber int, jobID string) (*JobLog, error) {
	endpoint := fmt.Sprintf("%s/jobs/%s/log", c.buildPath(org, pipeline, buildNumber), jobID)

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var log JobLog
	if err := json.Unmarshal(body, &log); err != nil {
		return nil, fmt.Errorf("failed to decode job log: %w", err)
	}
	if log.Size == 0 {
		log.Size = len(log.Content)
	}

	return &log, nil
}

// GetBuildAnnotations fetches all annotations of a build.
func (c *Client) GetBuildAnnotations(ctx context.Context, org, pipeline string, buildNumber int) ([]Annotation, error) {
	body, err := c.get(ctx, c.buildPath(org, pipeline, buildNumber)+"/annotations")
	if err != nil {
		return nil, err
	}

	var annotations []Annotation
	if err := json.Unmarshal(body, &annotations); err != nil {
		return nil, fmt.Errorf("failed to decode annotations: %w", err)
	}

	return annotations, nil
}
