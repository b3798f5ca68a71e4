// Package eventstore implements the Event Store Port (C2): an append-only,
// per-subject log of EventEnvelopes consulted by the Timeline Reader (C8).
// Events within one subject are monotonically
// ordered by Seq; the store never reorders or rewrites a published event.
package eventstore

import (
	"sort"
	"sync"

	"github.com/brennhill/soulbrowser-agent/internal/buffers"
	"github.com/brennhill/soulbrowser-agent/internal/clock"
)

// Envelope is the wire-level event record.
type Envelope struct {
	ActionID string      `json:"action_id"`
	Kind     string      `json:"kind"`
	Seq      uint64      `json:"seq"`
	TsMono   int64       `json:"ts_mono"`
	Payload  interface{} `json:"payload,omitempty"`
}

// Subject identifies which timeline an event belongs to.
type Subject struct {
	ActionID string
	FlowID   string
	TaskID   string
}

// DefaultCapacity bounds each subject's ring buffer.
const DefaultCapacity = 2048

// Store is the in-process Event Store Port implementation, backed by one
// buffers.RingBuffer[Envelope] per action. It additionally indexes events by
// flow and task so by_flow_window/by_task_window can scan without touching
// unrelated actions' buffers.
type Store struct {
	capacity int
	clock    clock.Clock

	mu          sync.RWMutex
	byAction    map[string]*buffers.RingBuffer[Envelope]
	seqByAction map[string]*uint64
	flowIndex   map[string]map[string]struct{} // flow_id -> set of action_id
	taskIndex   map[string]map[string]struct{} // task_id -> set of action_id
}

// New constructs a Store with the default per-action capacity.
func New(c clock.Clock) *Store {
	return NewWithCapacity(c, DefaultCapacity)
}

// NewWithCapacity constructs a Store with an explicit per-action capacity,
// primarily for tests exercising eviction.
func NewWithCapacity(c clock.Clock, capacity int) *Store {
	return &Store{
		capacity:    capacity,
		clock:       c,
		byAction:    make(map[string]*buffers.RingBuffer[Envelope]),
		seqByAction: make(map[string]*uint64),
		flowIndex:   make(map[string]map[string]struct{}),
		taskIndex:   make(map[string]map[string]struct{}),
	}
}

// Append publishes one event under subject, assigning it the next Seq for
// its action_id and stamping TsMono from the store's clock. It returns the
// published envelope.
func (s *Store) Append(subject Subject, kind string, payload interface{}) Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf, ok := s.byAction[subject.ActionID]
	if !ok {
		buf = buffers.NewRingBuffer[Envelope](s.capacity)
		s.byAction[subject.ActionID] = buf
		seq := uint64(0)
		s.seqByAction[subject.ActionID] = &seq
	}
	seqPtr := s.seqByAction[subject.ActionID]
	*seqPtr++

	if subject.FlowID != "" {
		set, ok := s.flowIndex[subject.FlowID]
		if !ok {
			set = make(map[string]struct{})
			s.flowIndex[subject.FlowID] = set
		}
		set[subject.ActionID] = struct{}{}
	}
	if subject.TaskID != "" {
		set, ok := s.taskIndex[subject.TaskID]
		if !ok {
			set = make(map[string]struct{})
			s.taskIndex[subject.TaskID] = set
		}
		set[subject.ActionID] = struct{}{}
	}

	// Seq assignment and the buffer write stay under one lock so envelopes
	// land in strict Seq order even under concurrent appenders.
	env := Envelope{
		ActionID: subject.ActionID,
		Kind:     kind,
		Seq:      *seqPtr,
		TsMono:   s.clock.NowMs(),
		Payload:  payload,
	}
	buf.WriteOne(env)
	return env
}

// ByAction returns every retained event for one action_id, in Seq order.
func (s *Store) ByAction(actionID string) []Envelope {
	s.mu.RLock()
	buf, ok := s.byAction[actionID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return buf.ReadAll()
}

// ByFlowWindow returns every retained event across all actions belonging to
// flowID, merged and ordered by (ActionID, Seq) — callers needing strict
// chronological order across actions should sort further by TsMono.
func (s *Store) ByFlowWindow(flowID string) []Envelope {
	s.mu.RLock()
	actionIDs := make([]string, 0, len(s.flowIndex[flowID]))
	for id := range s.flowIndex[flowID] {
		actionIDs = append(actionIDs, id)
	}
	s.mu.RUnlock()
	sort.Strings(actionIDs)

	var out []Envelope
	for _, id := range actionIDs {
		out = append(out, s.ByAction(id)...)
	}
	return out
}

// ByTaskWindow returns every retained event across all actions belonging to
// taskID.
func (s *Store) ByTaskWindow(taskID string) []Envelope {
	s.mu.RLock()
	actionIDs := make([]string, 0, len(s.taskIndex[taskID]))
	for id := range s.taskIndex[taskID] {
		actionIDs = append(actionIDs, id)
	}
	s.mu.RUnlock()

	var out []Envelope
	for _, id := range actionIDs {
		out = append(out, s.ByAction(id)...)
	}
	return out
}

// ExportRange returns events for actionID with Seq in [fromSeq, toSeq]
// inclusive, for Timeline Reader's export_range operation.
func (s *Store) ExportRange(actionID string, fromSeq, toSeq uint64) []Envelope {
	all := s.ByAction(actionID)
	out := make([]Envelope, 0, len(all))
	for _, e := range all {
		if e.Seq >= fromSeq && e.Seq <= toSeq {
			out = append(out, e)
		}
	}
	return out
}

// ReplayMinimal returns the smallest event set needed to reconstruct the
// final state of actionID: the most recent event of each distinct Kind,
// preserving first-seen Kind order.
func (s *Store) ReplayMinimal(actionID string) []Envelope {
	all := s.ByAction(actionID)
	order := make([]string, 0)
	latest := make(map[string]Envelope)
	for _, e := range all {
		if _, ok := latest[e.Kind]; !ok {
			order = append(order, e.Kind)
		}
		latest[e.Kind] = e
	}
	out := make([]Envelope, 0, len(order))
	for _, k := range order {
		out = append(out, latest[k])
	}
	return out
}

// HotWindowHint reports the Seq range still resident in the ring buffer for
// actionID, so Timeline Reader can clamp a requested range before scanning.
func (s *Store) HotWindowHint(actionID string) (minSeq, maxSeq uint64, ok bool) {
	all := s.ByAction(actionID)
	if len(all) == 0 {
		return 0, 0, false
	}
	return all[0].Seq, all[len(all)-1].Seq, true
}
