package domain

import "strings"

// NormalizeKey canonicalizes a raw tag or serial number for comparison.
// An empty result means no match is possible and callers must not treat it
// as a lookup key.
func NormalizeKey(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
