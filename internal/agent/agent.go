// Package agent implements the Agent Runner (C9): a thin orchestrator that
// turns a textual prompt into a compiled Flow by gluing an external planner
// to the Plan-to-Flow Compiler (C6), then optionally drives it through the
// Flow Executor (C7) and summarizes the result for a user interface.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/brennhill/soulbrowser-agent/internal/executor"
	"github.com/brennhill/soulbrowser-agent/internal/flow"
	"github.com/brennhill/soulbrowser-agent/internal/soulerr"
)

// AgentRequest is the Agent Runner's input: a prompt plus any constraints
// the planner should honor.
type AgentRequest struct {
	TaskID      string
	Prompt      string
	Constraints map[string]interface{}
}

// AgentStep is one planner-produced step: a flow.PlanStep (the shape C6
// consumes) plus the presentational fields the compiler doesn't need.
type AgentStep struct {
	flow.PlanStep
	Title    string
	Detail   string
	Metadata map[string]interface{}
}

// PlanMeta carries a plan's observability context.
type PlanMeta struct {
	Rationale      string
	RiskAssessment string
	VendorContext  map[string]interface{}
	Overlays       map[string]interface{}
}

// AgentPlan is the planner's output.
type AgentPlan struct {
	TaskID      string
	Title       string
	Description string
	Steps       []AgentStep
	Meta        PlanMeta
}

// Explanations is the planner's rationale for a user interface, kept
// separate from AgentPlan so a Planner can return prose without polluting
// the structured plan.
type Explanations struct {
	Summary string
	Steps   []string
}

// Planner is the external collaborator that turns a prompt into a plan
//: no concrete LLM or rule-based planner ships in core.
type Planner interface {
	Plan(ctx context.Context, req AgentRequest) (AgentPlan, Explanations, error)
}

// Bundle is the Agent Runner's plan-only result.
type Bundle struct {
	Plan         AgentPlan
	Explanations Explanations
	Flow         flow.Flow
}

// Result extends Bundle with an executed FlowResult and a human-readable
// summary, produced when a Runner is given an Executor.
type Result struct {
	Bundle     Bundle
	FlowResult *flow.FlowResult
	Summary    string
}

// Runner orchestrates Planner → Compile → (optionally) Executor.
type Runner struct {
	Planner  Planner
	Executor *executor.Executor
}

// New constructs a Runner. Executor may be nil; Plan still works, only Run
// requires one.
func New(planner Planner, exec *executor.Executor) *Runner {
	return &Runner{Planner: planner, Executor: exec}
}

// Plan invokes the planner and compiles its output into a Flow, without
// executing it.
func (r *Runner) Plan(ctx context.Context, req AgentRequest) (Bundle, error) {
	plan, explanations, err := r.Planner.Plan(ctx, req)
	if err != nil {
		return Bundle{}, soulerr.Wrap(soulerr.Internal, "planner failed", err)
	}

	f, err := flow.Compile(toFlowPlan(plan))
	if err != nil {
		return Bundle{}, err
	}

	return Bundle{Plan: plan, Explanations: explanations, Flow: f}, nil
}

// Run plans, compiles, and executes the resulting Flow against route,
// returning the full end-to-end result (the CLI's "run" pipeline).
func (r *Runner) Run(ctx context.Context, req AgentRequest, route flow.ExecRoute) (Result, error) {
	if r.Executor == nil {
		return Result{}, soulerr.New(soulerr.Internal, "agent runner has no executor configured")
	}

	bundle, err := r.Plan(ctx, req)
	if err != nil {
		return Result{}, err
	}

	fr, err := r.Executor.Execute(ctx, bundle.Flow, route)
	if err != nil {
		return Result{Bundle: bundle, FlowResult: fr, Summary: Summarize(bundle.Plan, fr)}, err
	}

	return Result{Bundle: bundle, FlowResult: fr, Summary: Summarize(bundle.Plan, fr)}, nil
}

func toFlowPlan(plan AgentPlan) flow.Plan {
	steps := make([]flow.PlanStep, 0, len(plan.Steps))
	for _, s := range plan.Steps {
		steps = append(steps, s.PlanStep)
	}
	return flow.Plan{
		Steps:          steps,
		Rationale:      plan.Meta.Rationale,
		RiskAssessment: plan.Meta.RiskAssessment,
		VendorContext:  plan.Meta.VendorContext,
	}
}

// Summarize renders a per-step human-readable summary of a completed flow
// run, used by user interfaces.
func Summarize(plan AgentPlan, fr *flow.FlowResult) string {
	if fr == nil {
		return fmt.Sprintf("%s: no result", plan.Title)
	}

	titles := make(map[string]string, len(plan.Steps))
	for _, s := range plan.Steps {
		titles[s.ID] = s.Title
	}

	var b strings.Builder
	status := "succeeded"
	if !fr.Success {
		status = "failed"
	}
	fmt.Fprintf(&b, "%s %s\n", plan.Title, status)

	for _, step := range fr.Steps {
		label := titles[step.StepID]
		if label == "" {
			label = step.StepID
		}
		if step.Success {
			fmt.Fprintf(&b, "  ok   %s\n", label)
			continue
		}
		fmt.Fprintf(&b, "  fail %s: %s\n", label, step.Err)
	}

	return b.String()
}
