// SPDX-License-Identifier: MIT
package strutil

import "strings"

// SplitCSV splits a comma-separated flag value, trimming blanks and dropping
// empty items.
func SplitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// MostCommon returns the value occurring most often in values. Ties go to
// the value that reached the top count first.
func MostCommon(values []string) string {
	counts := make(map[string]int, len(values))
	best, bestCount := "", 0
	for _, v := range values {
		counts[v]++
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best
}
