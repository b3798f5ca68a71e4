package flow

import "github.com/brennhill/soulbrowser-agent/internal/action"

// StepResult records one Action node's outcome.
type StepResult struct {
	StepID        string
	Action        ActionType
	Success       bool
	RetryAttempts int
	Err           string
	Report        action.ActionReport
}

// FlowResult aggregates every StepResult produced by one execute() call
//. Success is true iff every StepResult has Success=true.
type FlowResult struct {
	Steps     []StepResult
	Variables map[string]interface{}
	Err       string
	Success   bool
}

// Finalize derives Success from Steps and copies ctx's final Variables,
// called once by the executor when a flow run completes.
func (r *FlowResult) Finalize(ctx *Context) {
	r.Variables = ctx.Variables
	success := true
	for _, s := range r.Steps {
		if !s.Success {
			success = false
			break
		}
	}
	r.Success = success && r.Err == ""
}
