package flow

import "fmt"

// FailureKind discriminates FailureStrategy's four variants.
type FailureKind string

const (
	FailureAbort    FailureKind = "abort"
	FailureContinue FailureKind = "continue"
	FailureRetry    FailureKind = "retry"
	FailureFallback FailureKind = "fallback"
)

// FailureStrategy governs how the executor's Failure Handler reacts to an
// Action node's error.
type FailureStrategy struct {
	Kind FailureKind

	// Retry
	MaxAttempts int
	BackoffMs   int
}

// Validate checks structural invariants per Kind.
func (f FailureStrategy) Validate() error {
	switch f.Kind {
	case FailureAbort, FailureContinue, FailureFallback:
		return nil
	case FailureRetry:
		if f.MaxAttempts < 1 {
			return fmt.Errorf("retry strategy requires max_attempts >= 1")
		}
		if f.BackoffMs < 0 {
			return fmt.Errorf("retry strategy requires backoff_ms >= 0")
		}
		return nil
	default:
		return fmt.Errorf("unknown failure strategy kind %q", f.Kind)
	}
}

// DefaultFailureStrategy is Abort, applied whenever neither an Action node
// nor its Flow specifies one.
var DefaultFailureStrategy = FailureStrategy{Kind: FailureAbort}
