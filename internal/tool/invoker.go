package tool

import (
	"context"
	"encoding/json"

	"github.com/brennhill/soulbrowser-agent/internal/audit"
	"github.com/brennhill/soulbrowser-agent/internal/flow"
	"github.com/brennhill/soulbrowser-agent/internal/scheduler"
	"github.com/brennhill/soulbrowser-agent/internal/soulerr"
	"github.com/brennhill/soulbrowser-agent/internal/tool/observationcache"
)

// SandboxRunner is the external collaborator that actually executes a tool's
// side effects (a plugin sandbox, a browser driver call). Core ships only
// this contract; the runtime behind it is out of scope here.
type SandboxRunner interface {
	Run(ctx context.Context, toolName string, route flow.ExecRoute, params interface{}) (interface{}, error)
}

// CallRequest is one ad hoc tool invocation, independent of any Flow.
type CallRequest struct {
	ActionID string
	CallID   string
	TaskID   string
	ToolName string
	Kind     flow.ActionKind
	Route    flow.ExecRoute
	Params   interface{}
	Options  scheduler.DispatchOptions
}

// Invoker is the Invoker half of C4: it validates a tool call against the
// Registry, runs the pre-flight Authorizer, and submits the call to the
// Scheduler so it gets the same mutex/slot/retry enforcement a Flow's leaf
// actions get, then caches the resulting observation.
type Invoker struct {
	Registry   *Registry
	Authorizer Authorizer
	Scheduler  *scheduler.Scheduler
	Sandbox    SandboxRunner
	Cache      *observationcache.Cache
	Audit      *audit.Trail
}

// NewInvoker wires the six collaborators into an Invoker. az, cache, and
// trail may be nil: a nil Authorizer defaults to AllowAll, a nil cache
// disables observation caching, and a nil trail disables audit recording.
func NewInvoker(reg *Registry, az Authorizer, sched *scheduler.Scheduler, sandbox SandboxRunner, cache *observationcache.Cache, trail *audit.Trail) *Invoker {
	if az == nil {
		az = AllowAll{}
	}
	return &Invoker{Registry: reg, Authorizer: az, Scheduler: sched, Sandbox: sandbox, Cache: cache, Audit: trail}
}

// Invoke validates, authorizes, and dispatches a single tool call.
func (inv *Invoker) Invoke(ctx context.Context, req CallRequest) (scheduler.DispatchOutput, error) {
	if err := inv.Registry.Validate(req.ToolName, req.Kind); err != nil {
		return scheduler.DispatchOutput{}, soulerr.Wrap(soulerr.InvalidRequest, "tool validation failed", err)
	}

	if err := Authorize(ctx, inv.Authorizer, AuthzRequest{ToolName: req.ToolName, Route: req.Route, TaskID: req.TaskID}); err != nil {
		return scheduler.DispatchOutput{}, err
	}

	dispatchReq := scheduler.DispatchRequest{
		ActionID: req.ActionID,
		CallID:   req.CallID,
		TaskID:   req.TaskID,
		MutexKey: req.Route.SessionID + "|" + req.Route.PageID + "|" + req.Route.FrameID,
		Route:    req.Route,
		Options:  req.Options,
		Tool: func() (interface{}, error) {
			return inv.Sandbox.Run(ctx, req.ToolName, req.Route, req.Params)
		},
	}

	out, err := inv.Scheduler.Submit(ctx, dispatchReq)

	if inv.Audit != nil {
		entry := audit.Entry{
			ActionID:   req.ActionID,
			TaskID:     req.TaskID,
			ToolName:   req.ToolName,
			MutexKey:   dispatchReq.MutexKey,
			Parameters: marshalParams(req.Params),
			DurationMs: out.Timeline.FinishedAt - out.Timeline.StartedAt,
			Success:    err == nil && out.State == scheduler.StateDelivered,
		}
		if err != nil {
			entry.ErrorMessage = err.Error()
		} else if out.Err != "" {
			entry.ErrorMessage = out.Err
		}
		inv.Audit.Record(entry)
	}

	if err != nil {
		return out, err
	}

	if inv.Cache != nil && out.State == scheduler.StateDelivered {
		key := req.ActionID
		if key == "" {
			key = req.CallID
		}
		if key != "" {
			inv.Cache.Set(key, observationcache.Observation{Kind: req.ToolName, Payload: out.Output})
		}
	}

	return out, nil
}

// marshalParams is a convenience for callers building audit entries from a
// CallRequest's params; it never fails loudly since audit logging is
// best-effort.
func marshalParams(params interface{}) string {
	if params == nil {
		return ""
	}
	b, err := json.Marshal(params)
	if err != nil {
		return ""
	}
	return string(b)
}
