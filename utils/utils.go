package utils

import (
	// Go Internal Packages
	"fmt"
	"strconv"
	"strings"
)

// SplitCSV splits a comma separated list, dropping blanks and surrounding spaces.
func SplitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseLimit parses a page size query value. Empty means def; values above max are capped.
func ParseLimit(raw string, def, max int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer, got %q", raw)
	}
	if n > max {
		n = max
	}
	return n, nil
}
