package executor

import "time"

// MaxBackoff caps exponential retry backoff at 60s, shared verbatim by the
// Scheduler's dispatcher-level retry.
const MaxBackoff = 60_000 * time.Millisecond

// Backoff computes backoff_ms × 2^(attempt−1), capped at MaxBackoff.
// attempt is 1-based.
func Backoff(backoffMs int, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	ms := int64(backoffMs)
	for i := 1; i < attempt; i++ {
		ms *= 2
		if time.Duration(ms)*time.Millisecond >= MaxBackoff {
			return MaxBackoff
		}
	}
	d := time.Duration(ms) * time.Millisecond
	if d > MaxBackoff {
		return MaxBackoff
	}
	return d
}
