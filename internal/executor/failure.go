package executor

import (
	"fmt"

	"github.com/brennhill/soulbrowser-agent/internal/flow"
)

// DecisionKind discriminates the Failure Handler's four outcomes.
type DecisionKind string

const (
	DecisionAbort       DecisionKind = "abort"
	DecisionContinue    DecisionKind = "continue"
	DecisionRetry       DecisionKind = "retry"
	DecisionUseFallback DecisionKind = "use_fallback"
)

// Decision is the Failure Handler's verdict for one failed Action attempt.
type Decision struct {
	Kind      DecisionKind
	Message   string
	BackoffMs int
	Attempt   int
}

// HandleFailure implements the Failure Handler contract: given the
// strategy that governs stepID, the error that occurred, and the 1-based
// attempt number just made, decide what happens next.
func HandleFailure(stepID string, strategy flow.FailureStrategy, err error, attempt int) Decision {
	switch strategy.Kind {
	case flow.FailureAbort:
		return Decision{Kind: DecisionAbort, Message: err.Error()}
	case flow.FailureContinue:
		return Decision{Kind: DecisionContinue, Message: err.Error()}
	case flow.FailureFallback:
		return Decision{Kind: DecisionUseFallback, Message: err.Error()}
	case flow.FailureRetry:
		if attempt >= strategy.MaxAttempts {
			return Decision{
				Kind:    DecisionAbort,
				Message: fmt.Sprintf("Max retry attempts (%d) exceeded: %s", strategy.MaxAttempts, err.Error()),
			}
		}
		backoff := Backoff(strategy.BackoffMs, attempt)
		return Decision{
			Kind:      DecisionRetry,
			Attempt:   attempt + 1,
			BackoffMs: int(backoff.Milliseconds()),
		}
	default:
		return Decision{Kind: DecisionAbort, Message: fmt.Sprintf("unknown failure strategy for step %s", stepID)}
	}
}
