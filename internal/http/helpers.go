package http

import (
	"strings"
)

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// sanitizeSelection cleans every selected name; blanks are kept so the
// engine's own normalization decides what to drop.
func sanitizeSelection(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = sanitizeInput(v)
	}
	return out
}
