// timeout.go — Deadline budgets for dispatched tool calls, keyed by the
// Scheduler's priority tier rather than a fixed per-tool table.
package bridge

import "time"

// Priority mirrors the Scheduler's four dispatch tiers.
type Priority string

const (
	PriorityLightning Priority = "lightning"
	PriorityQuick     Priority = "quick"
	PriorityStandard  Priority = "standard"
	PriorityDeep      Priority = "deep"
)

// defaultTimeouts mirrors policy.defaultSnapshot's scheduler.timeouts_ms so
// a caller with no live PolicySnapshot still gets a sane budget.
var defaultTimeouts = map[Priority]time.Duration{
	PriorityLightning: 2 * time.Second,
	PriorityQuick:     5 * time.Second,
	PriorityStandard:  15 * time.Second,
	PriorityDeep:      60 * time.Second,
}

// DispatchTimeout returns the deadline budget for priority, falling back to
// the Standard tier for an unrecognized value.
func DispatchTimeout(priority Priority) time.Duration {
	if d, ok := defaultTimeouts[priority]; ok {
		return d
	}
	return defaultTimeouts[PriorityStandard]
}

// DispatchTimeoutFromPolicy looks up priority's budget in a live
// scheduler.timeouts_ms map (as sourced from a policy.Snapshot), falling
// back to DispatchTimeout's built-in defaults when the map omits an entry.
func DispatchTimeoutFromPolicy(priority Priority, timeoutsMs map[string]int) time.Duration {
	if ms, ok := timeoutsMs[string(priority)]; ok && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return DispatchTimeout(priority)
}
