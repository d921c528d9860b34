package snapshot

import (
	"strings"
	"testing"
)

func TestStepDirName(t *testing.T) {
	tests := []struct {
		name  string
		index int
		label string
		want  string
	}{
		{"simple", 0, "Build", "01-build"},
		{"single digit index", 8, "step", "09-step"},
		{"three digit index", 99, "step", "100-step"},
		{"emoji shortcode", 0, ":hammer: Build", "01-build"},
		{"punctuation", 0, "Run Tests (unit)", "01-run-tests-unit"},
		{"dash runs", 0, "Build --- Deploy", "01-build-deploy"},
		{"empty", 0, "", "01-step"},
		{"whitespace", 0, "   ", "01-step"},
		{"only shortcode", 0, ":emoji:", "01-step"},
		{"several shortcodes", 2, ":docker: :rocket: Push image", "03-push-image"},
		{"unicode", 0, "Tëst ✓", "01-t-st"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StepDirName(tt.index, tt.label); got != tt.want {
				t.Errorf("StepDirName(%d, %q) = %q, want %q", tt.index, tt.label, got, tt.want)
			}
		})
	}
}

func TestStepDirName_Truncates(t *testing.T) {
	got := StepDirName(0, strings.Repeat("a", 100))
	if len(got) != 53 {
		t.Errorf("len(StepDirName) = %d, want 53", len(got))
	}
	if !strings.HasPrefix(got, "01-aaaa") {
		t.Errorf("StepDirName = %q", got)
	}
}

func TestStepDirName_IndexKeepsNamesDistinct(t *testing.T) {
	a := StepDirName(0, "Test")
	b := StepDirName(1, "test")
	if a == b {
		t.Errorf("names collide: %q", a)
	}
}
