package mcp

import (
	"regexp"
	"strings"
)

// Log compaction shrinks a step log for an LLM context window while
// keeping the lines recognisable. It is applied only when a tool caller
// asks for it.

var (
	// Leading timestamps: 2024-05-21T10:00:05.123Z, 2024-05-21 10:00:05,123, ...+00:00
	timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}[.,]?\d*Z?([+-]\d{2}:?\d{2})?\s*`)

	// Hex strings of 12+ characters: container IDs, git SHAs, digests.
	hashPattern = regexp.MustCompile(`\b[a-f0-9]{12,}\b`)

	// Absolute paths with 3+ directories; keeps the file name and line number.
	longPathPattern = regexp.MustCompile(`/(?:[^/\s]+/){3,}([^/\s:]+(?::\d+)?)`)

	whitespacePattern = regexp.MustCompile(`\s+`)
)

// minPrefixLength is the shortest common prefix worth replacing.
const minPrefixLength = 20

// compactLog rewrites every line, drops blank lines and consecutive
// duplicates, then folds a prefix shared by all remaining lines.
func compactLog(content string) string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = compactLine(line)
		if line == "" {
			continue
		}
		if n := len(lines); n > 0 && lines[n-1] == line {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(removeCommonPrefix(lines), "\n")
}

func compactLine(line string) string {
	line = timestampPattern.ReplaceAllString(line, "")
	line = hashPattern.ReplaceAllString(line, "<HASH>")
	line = longPathPattern.ReplaceAllString(line, ".../$1")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(line, " "))
}

// findCommonPrefix returns the longest prefix shared by all lines, or ""
// when it is shorter than minPrefixLength.
func findCommonPrefix(lines []string) string {
	if len(lines) < 2 {
		return ""
	}

	prefix := lines[0]
	for _, line := range lines[1:] {
		for len(prefix) > 0 && !strings.HasPrefix(line, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
		if prefix == "" {
			return ""
		}
	}

	if len(prefix) < minPrefixLength {
		return ""
	}
	return prefix
}

func removeCommonPrefix(lines []string) []string {
	prefix := findCommonPrefix(lines)
	if prefix == "" {
		return lines
	}

	result := make([]string, len(lines))
	for i, line := range lines {
		result[i] = "... " + line[len(prefix):]
	}
	return result
}
