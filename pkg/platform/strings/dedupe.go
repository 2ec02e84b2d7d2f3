// Package strings holds small string-slice helpers used when parsing
// configuration.
package strings

import "strings"

// DedupeAndTrim trims whitespace, drops empties, and removes duplicates
// while preserving order. Comma-split environment values such as broker
// lists pass through here so "a, b,,a" reads as ["a","b"].
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
