// Package executor implements the Flow Executor (C7): it drives a validated
// flow.Flow to completion or to a terminal error, bounded by the flow's
// timeout, invoking Action Primitives (C3) for each leaf node.
package executor

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brennhill/soulbrowser-agent/internal/action"
	"github.com/brennhill/soulbrowser-agent/internal/flow"
	"github.com/brennhill/soulbrowser-agent/internal/soulerr"
	"github.com/brennhill/soulbrowser-agent/internal/wire"
)

// GateValidator checks an Action node's ExpectSpec after a successful
// primitive call. A nil GateValidator on the Executor means no gating ever
// occurs.
type GateValidator interface {
	Validate(ctx context.Context, client wire.Client, route wire.Route, expect flow.ExpectSpec) error
}

// Clock reports monotonic milliseconds, mirroring action.Clock so callers
// can inject the same internal/clock.Clock used elsewhere.
type Clock interface {
	NowMs() int64
}

// Executor drives one Flow at a time. It holds no per-run state; Execute is
// safe to call concurrently from multiple goroutines with distinct flows.
type Executor struct {
	Client     wire.Client
	Clock      Clock
	PolicyView action.PolicyView
	Gate       GateValidator
}

// Execute runs flow's root node to completion against route, returning a
// FlowResult whose Success is true iff every StepResult succeeded.
func (e *Executor) Execute(ctx context.Context, f flow.Flow, route flow.ExecRoute) (*flow.FlowResult, error) {
	if err := f.Validate(); err != nil {
		return nil, soulerr.Wrap(soulerr.ValidationFailed, "invalid flow", err)
	}

	deadline := time.Duration(f.TimeoutMs) * time.Millisecond
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	fctx := flow.NewContext()
	result := &flow.FlowResult{}

	err := e.executeNode(runCtx, f.Root, route, fctx, &result.Steps, f.DefaultFailureStrategy, 0)
	result.Finalize(fctx)

	if runCtx.Err() == context.DeadlineExceeded {
		return result, soulerr.New(soulerr.Timeout, fmt.Sprintf("flow %s exceeded timeout_ms=%d", f.FlowID, f.TimeoutMs))
	}
	if err != nil {
		result.Err = err.Error()
		result.Success = false
		return result, err
	}
	return result, nil
}

// execRoute converts a flow.ExecRoute to the wire-level Route.
func execRoute(r flow.ExecRoute) wire.Route {
	return wire.Route{SessionID: r.SessionID, PageID: r.PageID, FrameID: r.FrameID}
}

func (e *Executor) execAnchorClient(route flow.ExecRoute, actionID string) action.ExecCtx {
	return action.ExecCtx{
		Route:      execRoute(route),
		PolicyView: e.PolicyView,
		ActionID:   actionID,
		Client:     e.Client,
		Clock:      e.Clock,
	}
}

// executeNode recursively drives node, appending every produced StepResult
// to steps in submission order. A non-nil error means the branch must
// terminate (Abort or UseFallback decision, or context cancellation); a
// Continue decision is recorded on the StepResult but does not propagate an
// error so sibling nodes still run.
func (e *Executor) executeNode(ctx context.Context, node flow.FlowNode, route flow.ExecRoute, fctx *flow.Context, steps *[]flow.StepResult, defaultStrategy flow.FailureStrategy, depth int) error {
	if depth > flow.MaxFlowDepth {
		return soulerr.New(soulerr.InvalidStructure, "flow tree exceeds max depth during execution")
	}
	if err := ctx.Err(); err != nil {
		return soulerr.Wrap(soulerr.Timeout, "flow execution cancelled", err)
	}

	switch node.Kind {
	case flow.NodeSequence:
		for _, child := range node.Steps {
			if err := e.executeNode(ctx, child, route, fctx, steps, defaultStrategy, depth+1); err != nil {
				return err
			}
		}
		return nil

	case flow.NodeParallel:
		return e.executeParallel(ctx, node, route, fctx, steps, defaultStrategy, depth)

	case flow.NodeConditional:
		if node.Condition.Eval(fctx) {
			return e.executeNode(ctx, *node.Then, route, fctx, steps, defaultStrategy, depth+1)
		}
		if node.Else != nil {
			return e.executeNode(ctx, *node.Else, route, fctx, steps, defaultStrategy, depth+1)
		}
		return nil

	case flow.NodeLoop:
		return e.executeLoop(ctx, node, route, fctx, steps, defaultStrategy, depth)

	case flow.NodeAction:
		return e.executeAction(ctx, node, route, fctx, steps, defaultStrategy)

	default:
		return soulerr.New(soulerr.InvalidStructure, fmt.Sprintf("unknown node kind %q", node.Kind))
	}
}

// executeParallel runs every branch with its own cloned Context (branches
// do not see each other's variables), preserving stable ordering
// by branch index in the aggregated steps regardless of completion order.
func (e *Executor) executeParallel(ctx context.Context, node flow.FlowNode, route flow.ExecRoute, fctx *flow.Context, steps *[]flow.StepResult, defaultStrategy flow.FailureStrategy, depth int) error {
	branchSteps := make([][]flow.StepResult, len(node.Steps))
	branchCtxs := make([]*flow.Context, len(node.Steps))
	succeeded := make([]bool, len(node.Steps))

	g, gctx := errgroup.WithContext(ctx)
	for i, child := range node.Steps {
		i, child := i, child
		branchCtxs[i] = fctx.Clone()
		g.Go(func() error {
			var localSteps []flow.StepResult
			err := e.executeNode(gctx, child, route, branchCtxs[i], &localSteps, defaultStrategy, depth+1)
			branchSteps[i] = localSteps
			succeeded[i] = err == nil && allSucceeded(localSteps)
			if node.WaitAll && err != nil {
				return err
			}
			return nil
		})
	}

	waitErr := g.Wait()

	for _, bs := range branchSteps {
		*steps = append(*steps, bs...)
	}

	if node.WaitAll {
		if waitErr != nil {
			return waitErr
		}
		return nil
	}

	for _, ok := range succeeded {
		if ok {
			return nil
		}
	}
	if waitErr != nil {
		return waitErr
	}
	return soulerr.New(soulerr.ParallelFailed, "no parallel branch produced a successful step")
}

func allSucceeded(steps []flow.StepResult) bool {
	if len(steps) == 0 {
		return false
	}
	for _, s := range steps {
		if !s.Success {
			return false
		}
	}
	return true
}

// executeLoop runs node.Body repeatedly, bounded by MaxIterations, checking
// LoopCond before each pass. IterationCount is zero-based: it's set
// to the count of iterations already completed before the body that will
// become iteration IterationCount runs.
func (e *Executor) executeLoop(ctx context.Context, node flow.FlowNode, route flow.ExecRoute, fctx *flow.Context, steps *[]flow.StepResult, defaultStrategy flow.FailureStrategy, depth int) error {
	completed := 0
	for {
		if !node.LoopCond.ShouldContinue(fctx, completed) {
			return nil
		}
		if completed >= node.MaxIterations {
			return soulerr.New(soulerr.LoopExceeded, fmt.Sprintf("loop exceeded max_iterations=%d", node.MaxIterations))
		}
		fctx.IterationCount = uint32(completed)
		if err := e.executeNode(ctx, *node.Body, route, fctx, steps, defaultStrategy, depth+1); err != nil {
			return err
		}
		completed++
	}
}

// executeAction runs the Action execution loop: invoke C3, optionally
// gate-validate, and on failure consult the Failure Handler, retrying with
// backoff until a terminal decision is reached.
func (e *Executor) executeAction(ctx context.Context, node flow.FlowNode, route flow.ExecRoute, fctx *flow.Context, steps *[]flow.StepResult, defaultStrategy flow.FailureStrategy) error {
	strategy := defaultStrategy
	if node.FailureStrategy != nil {
		strategy = *node.FailureStrategy
	}

	attempt := 1
	retries := 0
	for {
		ec := e.execAnchorClient(route, node.ID)
		ec.Ctx = ctx
		report := invoke(ec, node.Action)

		var gateErr error
		if report.OK && node.Expect != nil && e.Gate != nil {
			gateErr = e.Gate.Validate(ctx, e.Client, execRoute(route), *node.Expect)
		}

		if report.OK && gateErr == nil {
			sr := flow.StepResult{StepID: node.ID, Action: node.Action, Success: true, RetryAttempts: retries, Report: report}
			*steps = append(*steps, sr)
			fctx.PreviousStepSuccess = true
			return nil
		}

		var failErr error
		if gateErr != nil {
			failErr = gateErr
		} else {
			failErr = fmt.Errorf("%s", report.Err)
		}

		decision := HandleFailure(node.ID, strategy, failErr, attempt)
		switch decision.Kind {
		case DecisionRetry:
			select {
			case <-ctx.Done():
				return soulerr.Wrap(soulerr.Timeout, "action retry cancelled", ctx.Err())
			case <-time.After(time.Duration(decision.BackoffMs) * time.Millisecond):
			}
			attempt = decision.Attempt
			retries++
			continue
		case DecisionAbort:
			sr := flow.StepResult{StepID: node.ID, Action: node.Action, Success: false, RetryAttempts: retries, Err: decision.Message, Report: report}
			*steps = append(*steps, sr)
			fctx.PreviousStepSuccess = false
			return soulerr.New(soulerr.ActionError, decision.Message)
		case DecisionContinue:
			sr := flow.StepResult{StepID: node.ID, Action: node.Action, Success: false, RetryAttempts: retries, Err: decision.Message, Report: report}
			*steps = append(*steps, sr)
			fctx.PreviousStepSuccess = false
			return nil
		case DecisionUseFallback:
			sr := flow.StepResult{StepID: node.ID, Action: node.Action, Success: false, RetryAttempts: retries, Err: "fallback: " + decision.Message, Report: report}
			*steps = append(*steps, sr)
			fctx.PreviousStepSuccess = false
			return soulerr.New(soulerr.ActionError, "fallback execution is not implemented by the core executor: "+decision.Message)
		default:
			return soulerr.New(soulerr.Internal, "unknown failure handler decision")
		}
	}
}

// invoke dispatches node.Action's kind to the matching Action Primitive.
func invoke(ec action.ExecCtx, a flow.ActionType) action.ActionReport {
	switch a.Kind {
	case flow.ActionNavigate:
		return action.Navigate(ec, a.URL, a.WaitTier)
	case flow.ActionClick:
		return action.Click(ec, a.Anchor, a.WaitTier)
	case flow.ActionTypeText:
		return action.TypeText(ec, a.Anchor, a.Text, a.Submit, a.WaitTier)
	case flow.ActionSelect:
		return action.Select(ec, a.Anchor, a.Option, a.Method, a.WaitTier)
	case flow.ActionScroll:
		return action.Scroll(ec, a.Target, a.Behavior, a.WaitTier)
	case flow.ActionWait:
		return action.Wait(ec, WaitSpecCondition(a.WaitCondition), a.TimeoutMs)
	case flow.ActionCustom:
		return action.ActionReport{OK: false, Err: fmt.Sprintf("custom action kind %q has no core executor", a.CustomKind)}
	default:
		return action.ActionReport{OK: false, Err: fmt.Sprintf("unknown action kind %q", a.Kind)}
	}
}

