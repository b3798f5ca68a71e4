// time.go — Timestamp parsing for operator-supplied filters.
package util

import "time"

// ParseTimestamp parses s as RFC3339 (nanosecond precision accepted),
// returning the zero time when it doesn't parse. Callers use IsZero to
// distinguish "no filter" from a real instant.
func ParseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
