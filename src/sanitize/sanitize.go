// Package sanitize cleans captured job logs for plain-text consumers such
// as MCP tool responses. It removes terminal escape sequences and
// Buildkite's inline timestamp markers.
//
// The TUI renders logs through charmbracelet/x/ansi instead.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	// CSI sequences: colours (\x1b[31m), erase line (\x1b[K), cursor moves.
	csiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)

	// OSC sequences such as hyperlinks, terminated by BEL or ST.
	oscPattern = regexp.MustCompile(`\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)`)

	// Buildkite timestamp markers: \x1b_bk;t=...\x07
	buildkiteTimestamp = regexp.MustCompile(`\x1b_bk;t=[0-9]+\x07`)
)

// StripANSI removes escape sequences and Buildkite timestamp markers.
func StripANSI(s string) string {
	s = buildkiteTimestamp.ReplaceAllString(s, "")
	s = oscPattern.ReplaceAllString(s, "")
	s = csiPattern.ReplaceAllString(s, "")
	return s
}

// Clean strips escape sequences and resolves carriage returns the way a
// terminal would: only the text after the last \r on a line survives.
// Trailing blank lines are dropped.
func Clean(s string) string {
	s = StripANSI(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		if idx := strings.LastIndexByte(line, '\r'); idx >= 0 {
			line = line[idx+1:]
		}
		lines[i] = line
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

// Tail returns the last n lines of s. n <= 0 returns s unchanged.
func Tail(s string, n int) string {
	if n <= 0 {
		return s
	}
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
