// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// Dedupe removes repeated values from a slice, keeping the first occurrence.
// Order is preserved.
func Dedupe[T comparable](values []T) []T {
	if len(values) == 0 {
		return values
	}

	seen := make(map[T]struct{}, len(values))
	result := make([]T, 0, len(values))

	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}

	return result
}

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
//
// Example:
//
//	DedupeAndTrim([]string{"  Burgers ", "Piadine", "Burgers", "", "  "})
//	// Returns: []string{"Burgers", "Piadine"}
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	trimmed := make([]string, 0, len(values))
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			trimmed = append(trimmed, t)
		}
	}

	return Dedupe(trimmed)
}
