package tui

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
)

// Buildkite prefixes log lines with timestamp markers: \x1b_bk;t=...\x07
var timestampMarker = regexp.MustCompile(`\x1b_bk;t=[0-9]*\x07`)

// CleanLogText prepares raw job log text for display. Escape sequences are
// dropped, tabs are expanded and each line keeps only the text after its
// last carriage return.
func CleanLogText(s string) string {
	s = timestampMarker.ReplaceAllString(s, "")
	s = ansi.Strip(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\t", "    ")

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

// ClampWidth truncates every line of a rendered block to width cells.
func ClampWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if ansi.StringWidth(line) > width {
			lines[i] = ansi.Truncate(line, width, "")
		}
	}
	return strings.Join(lines, "\n")
}

// VisualWidth is the number of terminal cells s occupies.
func VisualWidth(s string) int {
	return runewidth.StringWidth(s)
}

// Truncate trims surrounding space and cuts s to at most maxLen cells.
// With ellipsis set and more than three cells available, a cut string
// ends in "...".
func Truncate(s string, maxLen int, ellipsis bool) string {
	s = strings.TrimSpace(s)
	if maxLen <= 0 {
		return ""
	}
	if VisualWidth(s) <= maxLen {
		return s
	}
	tail := ""
	if ellipsis && maxLen > 3 {
		tail = "..."
	}
	return runewidth.Truncate(s, maxLen, tail)
}

// TruncateAndPad is Truncate followed by right padding to exactly width
// cells, for fixed-width table columns.
func TruncateAndPad(s string, width int, ellipsis bool) string {
	return runewidth.FillRight(Truncate(s, width, ellipsis), width)
}

// Wrap folds text into lines of at most width cells. Words are rejoined
// with single spaces; a word wider than a line is cut across several.
// Text is returned unchanged when width is not positive.
func Wrap(text string, width int) string {
	if width <= 0 {
		return text
	}

	var lines []string
	var line strings.Builder
	used := 0
	newline := func() {
		lines = append(lines, line.String())
		line.Reset()
		used = 0
	}

	for _, word := range strings.Fields(text) {
		for i, piece := range breakWord(word, width) {
			w := VisualWidth(piece)
			if used > 0 && (i > 0 || used+1+w > width) {
				newline()
			}
			if used > 0 {
				line.WriteByte(' ')
				used++
			}
			line.WriteString(piece)
			used += w
		}
	}
	if used > 0 {
		newline()
	}
	return strings.Join(lines, "\n")
}

// breakWord cuts word into pieces of at most width cells. A rune wider
// than width still gets a piece of its own.
func breakWord(word string, width int) []string {
	if VisualWidth(word) <= width {
		return []string{word}
	}

	var pieces []string
	var piece strings.Builder
	used := 0
	for _, r := range word {
		rw := runewidth.RuneWidth(r)
		if used > 0 && used+rw > width {
			pieces = append(pieces, piece.String())
			piece.Reset()
			used = 0
		}
		piece.WriteRune(r)
		used += rw
	}
	if piece.Len() > 0 {
		pieces = append(pieces, piece.String())
	}
	return pieces
}

// SplitLines splits on newlines. Empty text has no lines.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
