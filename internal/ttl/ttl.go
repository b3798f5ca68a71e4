// Package ttl parses human-written TTL durations used by runtime policy
// overrides. An empty string
// means unlimited; anything below the one-minute floor is rejected so a
// typo'd "30s" override can't silently vanish before an operator notices it.
package ttl

import (
	"fmt"
	"time"
)

// MinTTL is the smallest non-zero TTL accepted by ParseTTL.
const MinTTL = time.Minute

// ParseTTL parses a Go duration string into a TTL. An empty string returns
// zero (unlimited). Any parsed duration below MinTTL is rejected.
func ParseTTL(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid ttl %q: %w", s, err)
	}
	if d < MinTTL {
		return 0, fmt.Errorf("ttl %q is below the minimum of %s", s, MinTTL)
	}
	return d, nil
}
