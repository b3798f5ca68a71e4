package flow

import "fmt"

// Flow is the immutable tree C7 executes. Construction happens once at
// plan compilation; a Flow is discarded after its execute() call returns.
type Flow struct {
	FlowID                 string
	Name                   string
	Description            string
	Root                   FlowNode
	DefaultFailureStrategy FailureStrategy
	TimeoutMs              int
	Metadata               map[string]interface{}
}

// Validate checks the Flow-level invariants plus the root node's recursive
// structure.
func (f Flow) Validate() error {
	if f.FlowID == "" {
		return fmt.Errorf("flow requires a non-empty flow_id")
	}
	if f.TimeoutMs <= 0 {
		return fmt.Errorf("flow requires timeout_ms > 0")
	}
	if err := f.DefaultFailureStrategy.Validate(); err != nil {
		return fmt.Errorf("default_failure_strategy: %w", err)
	}
	if err := f.Root.Validate(); err != nil {
		return fmt.Errorf("root: %w", err)
	}
	return nil
}
