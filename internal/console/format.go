package console

import (
	"strings"
	"unicode"
)

// Format strips trailing whitespace from every line, drops leading blank
// lines, and collapses trailing newlines to one.
func Format(src string) string {
	lines := strings.Split(src, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRightFunc(line, unicode.IsSpace)
	}
	out := strings.TrimLeft(strings.Join(lines, "\n"), "\n")
	if trimmed := strings.TrimRight(out, "\n"); trimmed != out {
		out = trimmed + "\n"
	}
	return out
}
