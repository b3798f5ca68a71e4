// Package timeline implements the Timeline Reader (C8): given a selector
// (action/flow/task/time range), it fetches and merges events from the
// Event Store Port, optionally tails a State Center, clamps to the store's
// hot window, and can export the merged result as bounded JSONL.
package timeline

import (
	"github.com/brennhill/soulbrowser-agent/internal/eventstore"
	"github.com/brennhill/soulbrowser-agent/internal/soulerr"
)

// SourceKind discriminates a FetchPlan's selector.
type SourceKind string

const (
	SourceAction SourceKind = "action"
	SourceFlow   SourceKind = "flow"
	SourceTask   SourceKind = "task"
	SourceRange  SourceKind = "range"
)

// StateTailLength is the fixed N used when a FetchPlan allows a state-center
// tail.
const StateTailLength = 256

// FetchPlan is the Timeline Reader's input.
type FetchPlan struct {
	Source         SourceKind
	ActionID       string
	FlowID         string
	TaskID         string
	SinceSeq       uint64
	UntilSeq       uint64
	AllowStateTail bool
}

// StateCenter is the optional external collaborator a FetchPlan can tail
//.
type StateCenter interface {
	Tail(n int) []eventstore.Envelope
}

// Reader executes FetchPlans against an eventstore.Store, with an optional
// bound StateCenter.
type Reader struct {
	Store *eventstore.Store
	State StateCenter
}

// New constructs a Reader with no State Center bound.
func New(store *eventstore.Store) *Reader {
	return &Reader{Store: store}
}

// Fetch executes plan, merging the primary fetch with an optional state
// tail in relative order.
func (r *Reader) Fetch(plan FetchPlan) ([]eventstore.Envelope, error) {
	primary, err := r.fetchPrimary(plan)
	if err != nil {
		return nil, err
	}

	if !plan.AllowStateTail || r.State == nil {
		return primary, nil
	}

	tail := r.State.Tail(StateTailLength)
	merged := make([]eventstore.Envelope, 0, len(primary)+len(tail))
	merged = append(merged, primary...)
	merged = append(merged, tail...)
	return merged, nil
}

func (r *Reader) fetchPrimary(plan FetchPlan) ([]eventstore.Envelope, error) {
	switch plan.Source {
	case SourceAction:
		return r.Store.ByAction(plan.ActionID), nil
	case SourceFlow:
		return r.Store.ByFlowWindow(plan.FlowID), nil
	case SourceTask:
		return r.Store.ByTaskWindow(plan.TaskID), nil
	case SourceRange:
		return r.fetchRange(plan)
	default:
		return nil, soulerr.New(soulerr.InvalidRequest, "unknown fetch plan source")
	}
}

// fetchRange clamps (since, until) to the store's hot-window hint for
// plan.ActionID before exporting, so the store never scans cold data
//.
func (r *Reader) fetchRange(plan FetchPlan) ([]eventstore.Envelope, error) {
	since, until := plan.SinceSeq, plan.UntilSeq
	if hotSince, hotUntil, ok := r.Store.HotWindowHint(plan.ActionID); ok {
		if since < hotSince {
			since = hotSince
		}
		if until > hotUntil || until == 0 {
			until = hotUntil
		}
	}
	return r.Store.ExportRange(plan.ActionID, since, until), nil
}
