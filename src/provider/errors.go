package provider

import (
	"errors"
	"fmt"
)

var (
	ErrAuthFailed     = errors.New("authentication failed")
	ErrBuildNotFound  = errors.New("build not found")
	ErrRateLimited    = errors.New("rate limited")
	ErrNetworkTimeout = errors.New("network timeout")
)

// UserError wraps errors with user-friendly messages
type UserError struct {
	Message string
	Hint    string
	Err     error
}

func (e *UserError) Error() string {
	msg := e.Message
	if e.Hint != "" {
		msg += "\n\nHint: " + e.Hint
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n\nDetails: %v", e.Err)
	}
	return msg
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// WrapError converts API errors to user-friendly messages
func WrapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrInvalidURL) {
		return &UserError{
			Message: "Invalid build reference",
			Hint:    "Supported formats:\n  - https://buildkite.com/org/pipeline/builds/123\n  - https://buildkite.com/org/pipeline/builds/123#<job-id>\n  - org/pipeline/123",
			Err:     err,
		}
	}

	if errors.Is(err, ErrJobNotFound) {
		return &UserError{
			Message: "Job not found",
			Hint:    "Check the job ID; omit it to follow the first running command step.",
			Err:     err,
		}
	}

	switch Classify(err).Category {
	case CategoryPermissionDenied:
		return &UserError{
			Message: "Authentication failed",
			Hint:    "Check that BUILDKITE_API_TOKEN is valid and has the read_builds and read_build_logs scopes.",
			Err:     err,
		}
	case CategoryNotFound:
		return &UserError{
			Message: "Build not found",
			Hint:    "Check that the build reference is correct and you have access to the pipeline.",
			Err:     err,
		}
	case CategoryRateLimited:
		return &UserError{
			Message: "Rate limited by the Buildkite API",
			Hint:    "Wait a minute and try again.",
			Err:     err,
		}
	}

	return err
}
