package flow

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/brennhill/soulbrowser-agent/internal/action"
	"github.com/brennhill/soulbrowser-agent/internal/soulerr"
)

// DefaultStepTimeoutMs is used for a PlanStep whose own TimeoutMs is unset.
const DefaultStepTimeoutMs = 15_000

// DefaultFlowTimeoutMs is the floor for a compiled Flow's timeout_ms, so a
// single-step plan never gets a deadline shorter than C7's own suspension
// points need to settle.
const DefaultFlowTimeoutMs = 60_000

// Compile deterministically translates a Plan into an executable Flow
//. It is purely functional: no I/O, no randomness beyond a fresh
// flow_id.
func Compile(plan Plan) (Flow, error) {
	if len(plan.Steps) == 0 {
		return Flow{}, soulerr.New(soulerr.InvalidRequest, "plan has zero steps")
	}

	nodes := make([]FlowNode, 0, len(plan.Steps))
	totalTimeout := 0
	for _, step := range plan.Steps {
		node, err := compileStep(step)
		if err != nil {
			return Flow{}, err
		}
		nodes = append(nodes, node)

		stepTimeout := step.TimeoutMs
		if stepTimeout <= 0 {
			stepTimeout = DefaultStepTimeoutMs
		}
		totalTimeout += stepTimeout
	}
	if totalTimeout < DefaultFlowTimeoutMs {
		totalTimeout = DefaultFlowTimeoutMs
	}

	root := nodes[0]
	if len(nodes) > 1 {
		root = FlowNode{Kind: NodeSequence, Steps: nodes}
	}

	f := Flow{
		FlowID:                 uuid.NewString(),
		Root:                   root,
		DefaultFailureStrategy: DefaultFailureStrategy,
		TimeoutMs:              totalTimeout,
		Metadata: map[string]interface{}{
			"rationale":       plan.Rationale,
			"risk_assessment": plan.RiskAssessment,
			"vendor_context":  plan.VendorContext,
		},
	}
	if err := f.Validate(); err != nil {
		return Flow{}, soulerr.Wrap(soulerr.InvalidStructure, "compiled flow failed validation", err)
	}
	return f, nil
}

// compileStep translates one PlanStep into an Action FlowNode.
func compileStep(step PlanStep) (FlowNode, error) {
	if step.ID == "" {
		return FlowNode{}, soulerr.New(soulerr.InvalidRequest, "plan step requires a non-empty id")
	}

	act, err := compileAction(step)
	if err != nil {
		return FlowNode{}, err
	}

	node := FlowNode{
		Kind:   NodeAction,
		ID:     step.ID,
		Action: act,
	}
	if expect := compileExpect(step); expect != nil {
		node.Expect = expect
	}
	return node, nil
}

func compileAction(step PlanStep) (ActionType, error) {
	tier := waitModeToTier(step.WaitMode)

	switch step.Tool {
	case ActionNavigate:
		return ActionType{Kind: ActionNavigate, URL: step.URL, WaitTier: tier}, nil

	case ActionClick:
		anchor, err := locatorToAnchor(step.Locator)
		if err != nil {
			return ActionType{}, soulerr.Wrap(soulerr.Unsupported, fmt.Sprintf("step %s: click locator", step.ID), err)
		}
		return ActionType{Kind: ActionClick, Anchor: anchor, WaitTier: tier}, nil

	case ActionTypeText:
		anchor, err := locatorToAnchor(step.Locator)
		if err != nil {
			return ActionType{}, soulerr.Wrap(soulerr.Unsupported, fmt.Sprintf("step %s: type_text locator", step.ID), err)
		}
		return ActionType{Kind: ActionTypeText, Anchor: anchor, Text: step.Text, Submit: step.Submit, WaitTier: tier}, nil

	case ActionSelect:
		anchor, err := locatorToAnchor(step.Locator)
		if err != nil {
			return ActionType{}, soulerr.Wrap(soulerr.Unsupported, fmt.Sprintf("step %s: select locator", step.ID), err)
		}
		return ActionType{Kind: ActionSelect, Anchor: anchor, Option: step.Option, Method: step.Method, WaitTier: tier}, nil

	case ActionScroll:
		if step.Target == "" {
			return ActionType{}, soulerr.New(soulerr.Unsupported, fmt.Sprintf("step %s: scroll requires a non-empty target", step.ID))
		}
		return ActionType{Kind: ActionScroll, Target: step.Target, Behavior: step.Behavior, WaitTier: tier}, nil

	case ActionWait:
		timeout := step.TimeoutMs
		if timeout <= 0 {
			timeout = DefaultStepTimeoutMs
		}
		return ActionType{Kind: ActionWait, WaitCondition: step.WaitSpec, TimeoutMs: timeout}, nil

	case ActionCustom:
		if step.CustomKind == "" {
			return ActionType{}, soulerr.New(soulerr.Unsupported, fmt.Sprintf("step %s: custom requires a non-empty kind", step.ID))
		}
		return ActionType{Kind: ActionCustom, CustomKind: step.CustomKind, CustomParams: step.CustomParams}, nil

	default:
		return ActionType{}, soulerr.New(soulerr.Unsupported, fmt.Sprintf("step %s: unknown tool kind %q", step.ID, step.Tool))
	}
}

func waitModeToTier(mode PlanWaitMode) action.WaitTier {
	switch mode {
	case PlanWaitNone:
		return action.WaitNone
	case PlanWaitIdle:
		return action.WaitIdle
	default:
		return action.WaitDomReady
	}
}

// compileExpect folds a step's validations into one ExpectSpec. A Duration
// validation has no native gate primitive, so it's mapped onto
// NetworkIdleMs as a documented placeholder.
func compileExpect(step PlanStep) *ExpectSpec {
	if len(step.Validations) == 0 {
		return nil
	}
	expect := &ExpectSpec{TimeoutMs: step.TimeoutMs}
	if expect.TimeoutMs <= 0 {
		expect.TimeoutMs = DefaultStepTimeoutMs
	}
	for _, v := range step.Validations {
		switch v.Kind {
		case ValidationDOM:
			expect.DOMSelectorPresent = v.Selector
		case ValidationURL:
			expect.URLMatches = v.Pattern
		case ValidationTitle:
			expect.TitleMatches = v.Pattern
		case ValidationNetwork:
			expect.NetworkIdleMs = v.NetworkIdleMs
		case ValidationDuration:
			expect.NetworkIdleMs = v.DurationMs
		}
	}
	return expect
}
