package http

import (
	"strings"

	"tracker/internal/core"
)

// formatMoney formats signed cents for display (e.g. "-12.05").
func formatMoney(cents int64) string {
	return core.FormatCents(cents)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
