package snapshot

import (
	"fmt"
	"regexp"
	"strings"
)

const maxNameLength = 50

var (
	shortcodePattern = regexp.MustCompile(`:[\w+-]+:`)
	unsafeChars      = regexp.MustCompile(`[^A-Za-z0-9-]`)
	dashRuns         = regexp.MustCompile(`-+`)
)

// StepDirName returns the directory name for the step at the zero-based
// index. Labels that sanitize to the same text stay distinct through the
// index prefix, so callers must derive index from the step's position in
// the build and never from completion order.
func StepDirName(index int, label string) string {
	name := shortcodePattern.ReplaceAllString(label, "")
	name = unsafeChars.ReplaceAllString(name, "-")
	name = dashRuns.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-")
	name = strings.ToLower(name)
	if len(name) > maxNameLength {
		name = name[:maxNameLength]
	}
	if name == "" {
		name = "step"
	}
	return fmt.Sprintf("%02d-%s", index+1, name)
}
