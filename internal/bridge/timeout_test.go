// timeout_test.go — Tests for DispatchTimeout and DispatchTimeoutFromPolicy.
package bridge

import (
	"testing"
	"time"
)

func TestDispatchTimeout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		priority Priority
		expected time.Duration
	}{
		{"lightning", PriorityLightning, 2 * time.Second},
		{"quick", PriorityQuick, 5 * time.Second},
		{"standard", PriorityStandard, 15 * time.Second},
		{"deep", PriorityDeep, 60 * time.Second},
		{"unknown falls back to standard", Priority("bogus"), 15 * time.Second},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := DispatchTimeout(tc.priority)
			if got != tc.expected {
				t.Errorf("DispatchTimeout(%s) = %v, want %v", tc.priority, got, tc.expected)
			}
		})
	}
}

func TestDispatchTimeoutFromPolicy(t *testing.T) {
	t.Parallel()

	t.Run("uses policy override when present", func(t *testing.T) {
		got := DispatchTimeoutFromPolicy(PriorityQuick, map[string]int{"quick": 9000})
		if got != 9*time.Second {
			t.Errorf("got %v, want 9s", got)
		}
	})

	t.Run("falls back to default when absent", func(t *testing.T) {
		got := DispatchTimeoutFromPolicy(PriorityDeep, map[string]int{"quick": 9000})
		if got != 60*time.Second {
			t.Errorf("got %v, want 60s", got)
		}
	})

	t.Run("ignores non-positive override", func(t *testing.T) {
		got := DispatchTimeoutFromPolicy(PriorityLightning, map[string]int{"lightning": 0})
		if got != 2*time.Second {
			t.Errorf("got %v, want 2s", got)
		}
	})
}
