package tui

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
)

const ellipsis = "…"

// cleanLine makes untrusted text safe for a single terminal row: escape
// sequences are stripped, invalid UTF-8 is replaced, and control characters
// become spaces.
func cleanLine(s string) string {
	s = strings.ToValidUTF8(s, "�")
	s = ansi.Strip(s)
	if first, _, found := strings.Cut(s, "\n"); found {
		s = first + " " + ellipsis
	}
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return ' '
		}
		return r
	}, s)
}

// fit truncates s to width display columns, ending in an ellipsis when cut.
// Wide runes (CJK, emoji) count as two columns.
func fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width == 1 {
		return ellipsis
	}
	return runewidth.Truncate(s, width, ellipsis)
}

func displayWidth(s string) int { return runewidth.StringWidth(s) }

// pipeLines splits piped content into selectable, non-blank lines.
func pipeLines(content string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}
