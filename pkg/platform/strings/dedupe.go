// Package strings holds small slice helpers shared by request decoding.
package strings

import (
	"strings"
)

// Dedupe drops repeated values, keeping the first occurrence of each in order.
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

// DedupeAndTrim trims whitespace from each element, drops blanks, and removes
// duplicates. Order is preserved.
//
//	DedupeAndTrim([]string{"  expired permit ", "no sink", "expired permit", ""})
//	// Returns: []string{"expired permit", "no sink"}
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}
	trimmed := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			trimmed = append(trimmed, v)
		}
	}
	return Dedupe(trimmed)
}
