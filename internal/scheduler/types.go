// Package scheduler implements the Tool Dispatcher & Scheduler (C5): it
// accepts DispatchRequests, queues them by priority, enforces per-route
// mutual exclusion and slot limits drawn from the policy snapshot, invokes
// the tool, and emits timeline events for every transition.
package scheduler

import (
	"time"

	"github.com/brennhill/soulbrowser-agent/internal/flow"
)

// Priority is one of the Scheduler's four strictly-ordered dispatch tiers
//.
type Priority string

const (
	PriorityLightning Priority = "lightning"
	PriorityQuick     Priority = "quick"
	PriorityStandard  Priority = "standard"
	PriorityDeep      Priority = "deep"
)

// priorityOrder lists tiers from highest to lowest for strict queue drain
// ordering.
var priorityOrder = []Priority{PriorityLightning, PriorityQuick, PriorityStandard, PriorityDeep}

// RetryOptions mirrors DispatchRequest's retry knob.
type RetryOptions struct {
	MaxAttempts int
	BackoffMs   int
}

// DispatchOptions is DispatchRequest's options bag.
type DispatchOptions struct {
	Timeout       time.Duration
	Priority      Priority
	Interruptible bool
	Retry         RetryOptions
}

// ToolInvoker runs one dispatched tool call. Callers supply a closure or an
// internal/tool.Invoker-backed adapter; the Scheduler itself has no opinion
// on what a "tool" is beyond this signature.
type ToolInvoker func() (output interface{}, err error)

// DispatchRequest is one unit of work submitted to the Scheduler.
type DispatchRequest struct {
	ActionID string
	CallID   string
	TaskID   string
	MutexKey string
	Route    flow.ExecRoute
	Tool     ToolInvoker
	Options  DispatchOptions
}

// State is a request's position in the state machine.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateDelivered State = "delivered"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Timeline records the enqueue/start/finish timestamps of one request.
type Timeline struct {
	EnqueuedAt int64
	StartedAt  int64
	FinishedAt int64
}

// DispatchOutput is the Scheduler's public result.
type DispatchOutput struct {
	Route    flow.ExecRoute
	Timeline Timeline
	Output   interface{}
	Err      string
	State    State
}
