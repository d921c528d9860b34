package provider

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrInvalidURL  = errors.New("invalid build URL")
	ErrJobNotFound = errors.New("job not found in build")
)

// Provider is the read-only fetch capability the follower and the
// snapshot orchestrator are built on. Implementations must not retry.
type Provider interface {
	// Name returns the provider name (e.g., "buildkite")
	Name() string

	// FetchBuild retrieves build metadata and jobs
	FetchBuild(ctx context.Context, ref BuildReference) (*Build, error)

	// FetchJobLog retrieves the current log content for a job
	FetchJobLog(ctx context.Context, ref BuildReference, jobID string) (*JobLog, error)

	// FetchAnnotations retrieves all annotations of a build
	FetchAnnotations(ctx context.Context, ref BuildReference) ([]Annotation, error)
}

var (
	buildURLPattern  = regexp.MustCompile(`^https://buildkite\.com/([^/]+)/([^/]+)/builds/(\d+)(?:[/?][^#]*)?(?:#([0-9a-fA-F-]+))?$`)
	shorthandPattern = regexp.MustCompile(`^([^/\s]+)/([^/\s]+)/(\d+)$`)
)

// ParseReference parses a build URL or an org/pipeline/number shorthand.
// A job ID in the URL fragment is returned as jobID.
func ParseReference(input string) (ref BuildReference, jobID string, err error) {
	input = strings.TrimSpace(input)

	matches := buildURLPattern.FindStringSubmatch(input)
	if matches == nil {
		matches = shorthandPattern.FindStringSubmatch(input)
	}
	if matches == nil {
		return BuildReference{}, "", fmt.Errorf("%w: %s", ErrInvalidURL, input)
	}

	number, err := strconv.Atoi(matches[3])
	if err != nil || number <= 0 {
		return BuildReference{}, "", fmt.Errorf("%w: bad build number in %s", ErrInvalidURL, input)
	}

	if len(matches) > 4 {
		jobID = matches[4]
	}

	return BuildReference{
		Org:      matches[1],
		Pipeline: matches[2],
		Number:   number,
	}, jobID, nil
}
