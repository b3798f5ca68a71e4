// conn.go — Connection health helpers for the wire bridge.
package bridge

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// IsConnectionError reports whether err indicates the wire bridge is
// unreachable, as opposed to an application-level failure.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	// Prefer typed error checks over string matching
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	// Fallback: string check for wrapped errors that lose type info
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host")
}

// AwaitReady polls probe at a steady 10Hz until it reports true or ctx is
// done. The rate.Limiter keeps the cadence fixed regardless of how long a
// probe takes, so startup never hammers a bridge that is still coming up.
func AwaitReady(ctx context.Context, probe func(context.Context) bool) bool {
	limiter := rate.NewLimiter(rate.Every(100*time.Millisecond), 1)
	for {
		if probe(ctx) {
			return true
		}
		if err := limiter.Wait(ctx); err != nil {
			return false
		}
	}
}
