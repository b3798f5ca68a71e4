package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/brennhill/soulbrowser-agent/internal/bridge"
	"github.com/brennhill/soulbrowser-agent/internal/eventstore"
	"github.com/brennhill/soulbrowser-agent/internal/executor"
	"github.com/brennhill/soulbrowser-agent/internal/soulerr"
	"github.com/brennhill/soulbrowser-agent/internal/util"
)

// Clock reports monotonic milliseconds, mirroring internal/clock.Clock.
type Clock interface {
	NowMs() int64
}

// PolicyProvider exposes the slice of a policy.Snapshot the Scheduler needs,
// kept narrow so this package doesn't import internal/policy directly.
type PolicyProvider interface {
	SchedulerLimits() (globalSlots, perTaskLimit, queueCapacity int)
	RetryPolicy() (maxAttempts, backoffMs int)
}

// entry is one request's bookkeeping as it moves through the state machine.
type entry struct {
	req        DispatchRequest
	state      State
	enqueuedAt int64
	done       chan struct{}
	result     DispatchOutput
	cancel     context.CancelFunc
	mu         sync.Mutex
}

func (e *entry) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *entry) getState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Scheduler is the Tool Dispatcher (C5). Construct with New, then Start it
// before calling Submit.
type Scheduler struct {
	clock  Clock
	events *eventstore.Store
	policy PolicyProvider

	mu       sync.Mutex
	cond     *sync.Cond
	queues   map[Priority][]*entry
	stopped  bool
	pending  int

	byAction sync.Map // action_id -> *entry
	byCall   sync.Map // call_id -> *entry
	byTask   sync.Map // task_id -> *[]*entry guarded by tasksMu
	tasksMu  sync.Mutex

	globalSlots chan struct{}
	taskSlots   sync.Map // task_id -> chan struct{}
	perTaskCap  int

	routeLocks sync.Map // mutex_key -> chan struct{}

	wg sync.WaitGroup
}

// New constructs a Scheduler. Call Start to begin draining queued requests.
func New(clk Clock, events *eventstore.Store, pp PolicyProvider) *Scheduler {
	global, perTask, _ := pp.SchedulerLimits()
	if global <= 0 {
		global = 1
	}
	if perTask <= 0 {
		perTask = 1
	}
	s := &Scheduler{
		clock:       clk,
		events:      events,
		policy:      pp,
		queues:      make(map[Priority][]*entry),
		globalSlots: make(chan struct{}, global),
		perTaskCap:  perTask,
	}
	s.cond = sync.NewCond(&s.mu)
	for i := 0; i < global; i++ {
		s.globalSlots <- struct{}{}
	}
	return s
}

// Start launches the dispatch loop. Stop (via context cancellation) drains
// in-flight work but admits no new requests.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	util.SafeGo(func() { s.dispatchLoop(ctx) })
}

// Stop halts the dispatch loop, waits out in-flight work, and fails any
// still-queued entries so no Submit caller is left waiting on a request
// that will never run.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cond.Broadcast()
	s.wg.Wait()

	s.mu.Lock()
	var orphaned []*entry
	for p, q := range s.queues {
		orphaned = append(orphaned, q...)
		s.queues[p] = nil
	}
	s.pending -= len(orphaned)
	s.mu.Unlock()

	for _, e := range orphaned {
		e.setState(StateCancelled)
		e.result = DispatchOutput{State: StateCancelled, Err: "scheduler stopped before dispatch"}
		close(e.done)
	}
}

// Submit enqueues req and blocks until it reaches a terminal state or ctx is
// done. QueueFull is returned immediately if the queue is at capacity.
func (s *Scheduler) Submit(ctx context.Context, req DispatchRequest) (DispatchOutput, error) {
	_, _, queueCapacity := s.policy.SchedulerLimits()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return DispatchOutput{}, soulerr.New(soulerr.Unavailable, "scheduler is stopped")
	}
	if queueCapacity > 0 && s.pending >= queueCapacity {
		s.mu.Unlock()
		return DispatchOutput{}, soulerr.New(soulerr.QueueFull, "dispatch queue is at capacity")
	}

	e := &entry{
		req:        req,
		state:      StatePending,
		enqueuedAt: s.clock.NowMs(),
		done:       make(chan struct{}),
	}
	priority := req.Options.Priority
	if priority == "" {
		priority = PriorityStandard
	}
	s.queues[priority] = append(s.queues[priority], e)
	s.pending++
	s.mu.Unlock()

	if req.ActionID != "" {
		s.byAction.Store(req.ActionID, e)
	}
	if req.CallID != "" {
		s.byCall.Store(req.CallID, e)
	}
	if req.TaskID != "" {
		s.addTaskEntry(req.TaskID, e)
	}

	s.emit(req.ActionID, "SC_DISPATCH_ENQUEUED", map[string]interface{}{
		"mutex_key": req.MutexKey,
		"pending":   s.pending,
	})

	s.cond.Signal()

	select {
	case <-e.done:
		return e.result, nil
	case <-ctx.Done():
		s.Cancel(req.ActionID)
		return e.result, ctx.Err()
	}
}

func (s *Scheduler) addTaskEntry(taskID string, e *entry) {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()
	v, _ := s.byTask.LoadOrStore(taskID, &[]*entry{})
	list := v.(*[]*entry)
	*list = append(*list, e)
}

// dispatchLoop pops the highest-priority pending entry and hands it to a
// worker goroutine, never blocking the loop itself on slot acquisition.
func (s *Scheduler) dispatchLoop(ctx context.Context) {
	defer s.wg.Done()
	util.SafeGo(func() {
		<-ctx.Done()
		s.Stop()
	})

	for {
		s.mu.Lock()
		for !s.stopped && s.nextLocked() == nil {
			s.cond.Wait()
		}
		if s.stopped {
			s.mu.Unlock()
			return
		}
		e := s.popLocked()
		s.mu.Unlock()

		s.wg.Add(1)
		go s.run(ctx, e)
	}
}

// nextLocked returns (without removing) the next entry by strict priority
// order. Caller must hold s.mu.
func (s *Scheduler) nextLocked() *entry {
	for _, p := range priorityOrder {
		q := s.queues[p]
		if len(q) > 0 {
			return q[0]
		}
	}
	return nil
}

// popLocked removes and returns the next entry to run. It does not touch
// s.pending: that count tracks every admitted-but-not-yet-terminal request
// (queued or running), not just the FIFO buffer, so QueueFull reflects real
// backpressure instead of draining to zero as soon as the dispatch loop
// pops entries ahead of their slot becoming available.
func (s *Scheduler) popLocked() *entry {
	for _, p := range priorityOrder {
		q := s.queues[p]
		if len(q) > 0 {
			e := q[0]
			s.queues[p] = q[1:]
			return e
		}
	}
	return nil
}

func (s *Scheduler) taskSlotChan(taskID string) chan struct{} {
	v, loaded := s.taskSlots.LoadOrStore(taskID, make(chan struct{}, s.perTaskCap))
	ch := v.(chan struct{})
	if !loaded {
		for i := 0; i < s.perTaskCap; i++ {
			ch <- struct{}{}
		}
	}
	return ch
}

func (s *Scheduler) routeLockChan(key string) chan struct{} {
	v, loaded := s.routeLocks.LoadOrStore(key, make(chan struct{}, 1))
	ch := v.(chan struct{})
	if !loaded {
		ch <- struct{}{}
	}
	return ch
}

// run executes one entry: acquires slots and the route mutex, invokes the
// tool with retry/backoff, emits timeline events, and wakes Submit's waiter.
func (s *Scheduler) run(ctx context.Context, e *entry) {
	defer s.wg.Done()
	defer close(e.done)

	runCtx, cancel := context.WithCancel(ctx)
	if e.req.Options.Timeout > 0 {
		var timeoutCancel context.CancelFunc
		runCtx, timeoutCancel = context.WithTimeout(runCtx, e.req.Options.Timeout)
		defer timeoutCancel()
	}
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()
	defer cancel()

	e.setState(StateRunning)

	var taskSlot chan struct{}
	if e.req.TaskID != "" {
		taskSlot = s.taskSlotChan(e.req.TaskID)
	}

	select {
	case <-s.globalSlots:
		defer func() { s.globalSlots <- struct{}{} }()
	case <-runCtx.Done():
		s.finish(e, DispatchOutput{State: StateCancelled, Err: runCtx.Err().Error()})
		return
	}

	if taskSlot != nil {
		select {
		case <-taskSlot:
			defer func() { taskSlot <- struct{}{} }()
		case <-runCtx.Done():
			s.finish(e, DispatchOutput{State: StateCancelled, Err: runCtx.Err().Error()})
			return
		}
	}

	mutexKey := e.req.MutexKey
	if mutexKey == "" {
		mutexKey = e.req.Route.SessionID + "|" + e.req.Route.PageID + "|" + e.req.Route.FrameID
	}
	lock := s.routeLockChan(mutexKey)
	select {
	case <-lock:
		defer func() { lock <- struct{}{} }()
	case <-runCtx.Done():
		s.finish(e, DispatchOutput{State: StateCancelled, Err: runCtx.Err().Error()})
		return
	}

	startedAt := s.clock.NowMs()
	output, attempts, err := s.invokeWithRetry(runCtx, e)
	finishedAt := s.clock.NowMs()
	if err == nil && errors.Is(runCtx.Err(), context.Canceled) {
		err = runCtx.Err()
	}

	tl := Timeline{EnqueuedAt: e.enqueuedAt, StartedAt: startedAt, FinishedAt: finishedAt}

	kind := "SC_DISPATCH_SUCCESS"
	if err != nil {
		kind = "SC_DISPATCH_FAILURE"
	}
	s.mu.Lock()
	pending := s.pending
	s.mu.Unlock()
	s.emit(e.req.ActionID, kind, map[string]interface{}{
		"tool":            e.req.CallID,
		"mutex_key":       mutexKey,
		"route":           e.req.Route,
		"attempts":        attempts,
		"wait_ms":         startedAt - e.enqueuedAt,
		"run_ms":          finishedAt - startedAt,
		"pending":         pending,
		"slots_available": len(s.globalSlots),
	})

	if err != nil {
		state := StateFailed
		if errors.Is(err, context.Canceled) {
			state = StateCancelled
		}
		s.finish(e, DispatchOutput{Route: e.req.Route, Timeline: tl, Err: err.Error(), State: state})
		return
	}
	s.finish(e, DispatchOutput{Route: e.req.Route, Timeline: tl, Output: output, State: StateDelivered})
}

func (s *Scheduler) finish(e *entry, out DispatchOutput) {
	e.setState(out.State)
	e.result = out
	s.mu.Lock()
	s.pending--
	s.mu.Unlock()
}

// invokeWithRetry runs req.Tool, retrying transient failures per
// scheduler.retry (or the request's own retry override) with the same
// capped-exponential backoff as the Flow Executor.
func (s *Scheduler) invokeWithRetry(ctx context.Context, e *entry) (interface{}, int, error) {
	maxAttempts, backoffMs := s.policy.RetryPolicy()
	if e.req.Options.Retry.MaxAttempts > 0 {
		maxAttempts = e.req.Options.Retry.MaxAttempts
	}
	if e.req.Options.Retry.BackoffMs > 0 {
		backoffMs = e.req.Options.Retry.BackoffMs
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, attempt - 1, ctx.Err()
		}
		out, err := e.req.Tool()
		if err == nil {
			return out, attempt, nil
		}
		lastErr = err
		if attempt == maxAttempts || !isTransient(err) {
			return nil, attempt, lastErr
		}
		backoff := executor.Backoff(backoffMs, attempt)
		select {
		case <-ctx.Done():
			return nil, attempt, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, maxAttempts, lastErr
}

// isTransient reports whether a dispatcher-level error is worth retrying.
// Validation and policy verdicts are terminal; connection-level faults and
// everything else get the retry policy.
func isTransient(err error) bool {
	if bridge.IsConnectionError(err) {
		return true
	}
	if soulerr.Is(err, soulerr.ValidationFailed) ||
		soulerr.Is(err, soulerr.InvalidRequest) ||
		soulerr.Is(err, soulerr.PolicyDenied) {
		return false
	}
	return true
}

func (s *Scheduler) emit(actionID, kind string, payload interface{}) {
	if s.events == nil || actionID == "" {
		return
	}
	s.events.Append(eventstore.Subject{ActionID: actionID}, kind, payload)
}

// Cancel aborts a pending or running request by action_id, reporting
// whether one was found.
func (s *Scheduler) Cancel(actionID string) bool {
	v, ok := s.byAction.Load(actionID)
	if !ok {
		return false
	}
	return s.cancelEntry(v.(*entry))
}

// CancelCall aborts by call_id.
func (s *Scheduler) CancelCall(callID string) bool {
	v, ok := s.byCall.Load(callID)
	if !ok {
		return false
	}
	return s.cancelEntry(v.(*entry))
}

// CancelTask aborts every request belonging to taskID, returning the count
// affected.
func (s *Scheduler) CancelTask(taskID string) int {
	v, ok := s.byTask.Load(taskID)
	if !ok {
		return 0
	}
	list := v.(*[]*entry)
	count := 0
	for _, e := range *list {
		if s.cancelEntry(e) {
			count++
		}
	}
	return count
}

// cancelEntry cancels e regardless of its current position in the state
// machine. If e is still sitting in a priority queue it's spliced out
// directly (it never reaches run, so nothing else will ever close e.done).
// Otherwise it's either running already or about to be — in the latter case
// e.cancel hasn't been set yet, so this polls briefly until run installs it.
func (s *Scheduler) cancelEntry(e *entry) bool {
	state := e.getState()
	if state == StateDelivered || state == StateFailed || state == StateCancelled {
		return false
	}

	s.mu.Lock()
	foundInQueue := false
	for p, q := range s.queues {
		for i, qe := range q {
			if qe == e {
				s.queues[p] = append(q[:i], q[i+1:]...)
				foundInQueue = true
				break
			}
		}
		if foundInQueue {
			break
		}
	}
	s.mu.Unlock()

	if foundInQueue {
		e.setState(StateCancelled)
		e.result = DispatchOutput{State: StateCancelled, Err: "cancelled while pending"}
		close(e.done)
		s.mu.Lock()
		s.pending--
		s.mu.Unlock()
		return true
	}

	for i := 0; i < 1000; i++ {
		e.mu.Lock()
		cancel := e.cancel
		e.mu.Unlock()
		if cancel != nil {
			cancel()
			return true
		}
		if st := e.getState(); st == StateDelivered || st == StateFailed || st == StateCancelled {
			return false
		}
		time.Sleep(time.Millisecond)
	}
	return false
}
