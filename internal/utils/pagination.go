// Package utils provides small helpers with no domain knowledge, shared
// across layers.
package utils

import "strconv"

// AtoiDefault parses s as an int and returns def when s is empty, not a
// number, or out of range. Query-string pagination parameters go through
// this so a malformed value degrades to the default page instead of a 400.
func AtoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
