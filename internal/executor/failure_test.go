package executor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brennhill/soulbrowser-agent/internal/flow"
)

func TestBackoff_DoublesPerAttempt(t *testing.T) {
	t.Parallel()
	require.Equal(t, 1000*time.Millisecond, Backoff(1000, 1))
	require.Equal(t, 2000*time.Millisecond, Backoff(1000, 2))
	require.Equal(t, 4000*time.Millisecond, Backoff(1000, 3))
}

func TestBackoff_CapsAtSixtySeconds(t *testing.T) {
	t.Parallel()
	// After 10 attempts with a 1s base the doubling crosses the cap.
	require.Equal(t, MaxBackoff, Backoff(1000, 10))
	require.Equal(t, MaxBackoff, Backoff(1000, 50))
}

func TestBackoff_ClampsAttemptFloor(t *testing.T) {
	t.Parallel()
	require.Equal(t, 500*time.Millisecond, Backoff(500, 0))
}

func TestHandleFailure_AbortCarriesErrorText(t *testing.T) {
	t.Parallel()
	d := HandleFailure("s1", flow.FailureStrategy{Kind: flow.FailureAbort}, errors.New("boom"), 1)
	require.Equal(t, DecisionAbort, d.Kind)
	require.Equal(t, "boom", d.Message)
}

func TestHandleFailure_ContinueCarriesErrorText(t *testing.T) {
	t.Parallel()
	d := HandleFailure("s1", flow.FailureStrategy{Kind: flow.FailureContinue}, errors.New("boom"), 1)
	require.Equal(t, DecisionContinue, d.Kind)
	require.Equal(t, "boom", d.Message)
}

func TestHandleFailure_RetryIncrementsAttempt(t *testing.T) {
	t.Parallel()
	strategy := flow.FailureStrategy{Kind: flow.FailureRetry, MaxAttempts: 3, BackoffMs: 100}

	d := HandleFailure("s1", strategy, errors.New("boom"), 1)
	require.Equal(t, DecisionRetry, d.Kind)
	require.Equal(t, 2, d.Attempt)
	require.Equal(t, 100, d.BackoffMs)

	d = HandleFailure("s1", strategy, errors.New("boom"), 2)
	require.Equal(t, DecisionRetry, d.Kind)
	require.Equal(t, 3, d.Attempt)
	require.Equal(t, 200, d.BackoffMs)
}

func TestHandleFailure_RetryExhaustionAborts(t *testing.T) {
	t.Parallel()
	strategy := flow.FailureStrategy{Kind: flow.FailureRetry, MaxAttempts: 2, BackoffMs: 5}

	d := HandleFailure("s1", strategy, errors.New("boom"), 2)
	require.Equal(t, DecisionAbort, d.Kind)
	require.Contains(t, d.Message, "Max retry attempts (2) exceeded")
	require.Contains(t, d.Message, "boom")
}

func TestHandleFailure_FallbackDecision(t *testing.T) {
	t.Parallel()
	d := HandleFailure("s1", flow.FailureStrategy{Kind: flow.FailureFallback}, errors.New("boom"), 1)
	require.Equal(t, DecisionUseFallback, d.Kind)
}
