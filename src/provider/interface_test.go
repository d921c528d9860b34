package provider

import (
	"errors"
	"testing"
)

func TestParseReference(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantRef   BuildReference
		wantJobID string
		wantErr   bool
	}{
		{
			name:    "build URL",
			input:   "https://buildkite.com/my-org/my-pipeline/builds/4091",
			wantRef: BuildReference{Org: "my-org", Pipeline: "my-pipeline", Number: 4091},
		},
		{
			name:      "build URL with job fragment",
			input:     "https://buildkite.com/my-org/my-pipeline/builds/12#0190a5e2-3c4b-4c5d-8e9f-0123456789ab",
			wantRef:   BuildReference{Org: "my-org", Pipeline: "my-pipeline", Number: 12},
			wantJobID: "0190a5e2-3c4b-4c5d-8e9f-0123456789ab",
		},
		{
			name:    "build URL with trailing path",
			input:   "https://buildkite.com/org/pipe/builds/7/steps",
			wantRef: BuildReference{Org: "org", Pipeline: "pipe", Number: 7},
		},
		{
			name:    "shorthand",
			input:   "org/pipe/99",
			wantRef: BuildReference{Org: "org", Pipeline: "pipe", Number: 99},
		},
		{
			name:    "github URL",
			input:   "https://github.com/owner/repo/actions/runs/456",
			wantErr: true,
		},
		{
			name:    "missing number",
			input:   "https://buildkite.com/org/pipe/builds/",
			wantErr: true,
		},
		{
			name:    "zero build number",
			input:   "org/pipe/0",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, jobID, err := ParseReference(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseReference() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidURL) {
					t.Errorf("errors.Is(err, ErrInvalidURL) = false for %v", err)
				}
				return
			}
			if ref != tt.wantRef {
				t.Errorf("ref = %+v, want %+v", ref, tt.wantRef)
			}
			if jobID != tt.wantJobID {
				t.Errorf("jobID = %q, want %q", jobID, tt.wantJobID)
			}
		})
	}
}

func TestBuildReference_Strings(t *testing.T) {
	ref := BuildReference{Org: "acme", Pipeline: "web", Number: 42}

	if got := ref.String(); got != "acme/web/42" {
		t.Errorf("String() = %q", got)
	}
	if got := ref.WebURL(); got != "https://buildkite.com/acme/web/builds/42" {
		t.Errorf("WebURL() = %q", got)
	}
}
