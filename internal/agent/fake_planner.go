package agent

import (
	"context"

	"github.com/brennhill/soulbrowser-agent/internal/flow"
)

// FakePlanner is a deterministic Planner for tests: it ignores the prompt's
// content and returns a fixed single-step navigate plan, so downstream
// compiler/executor wiring can be exercised without a real planner vendor.
type FakePlanner struct {
	Steps []AgentStep
	Meta  PlanMeta
	Err   error
}

// NewFakePlanner returns a FakePlanner that plans a single navigate step to
// url.
func NewFakePlanner(url string) *FakePlanner {
	return &FakePlanner{
		Steps: []AgentStep{
			{
				PlanStep: flow.PlanStep{ID: "step-1", Tool: flow.ActionNavigate, URL: url, WaitMode: flow.PlanWaitDomReady},
				Title:    "Open " + url,
			},
		},
		Meta: PlanMeta{Rationale: "deterministic single-step plan for testing"},
	}
}

func (p *FakePlanner) Plan(ctx context.Context, req AgentRequest) (AgentPlan, Explanations, error) {
	if p.Err != nil {
		return AgentPlan{}, Explanations{}, p.Err
	}

	plan := AgentPlan{
		TaskID:      req.TaskID,
		Title:       "fake plan for: " + req.Prompt,
		Description: req.Prompt,
		Steps:       p.Steps,
		Meta:        p.Meta,
	}
	explanations := Explanations{
		Summary: "deterministic plan, no real planning performed",
	}
	for _, s := range p.Steps {
		explanations.Steps = append(explanations.Steps, s.Title)
	}
	return plan, explanations, nil
}
