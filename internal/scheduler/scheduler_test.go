package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brennhill/soulbrowser-agent/internal/clock"
	"github.com/brennhill/soulbrowser-agent/internal/eventstore"
	"github.com/brennhill/soulbrowser-agent/internal/soulerr"
)

type fakePolicy struct {
	global, perTask, queueCap int
	maxAttempts, backoffMs    int
}

func (p fakePolicy) SchedulerLimits() (int, int, int) { return p.global, p.perTask, p.queueCap }
func (p fakePolicy) RetryPolicy() (int, int)          { return p.maxAttempts, p.backoffMs }

func newTestScheduler(t *testing.T, pp fakePolicy) (*Scheduler, context.CancelFunc) {
	t.Helper()
	clk := clock.NewFake(0)
	store := eventstore.New(clk)
	s := New(clk, store, pp)
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	t.Cleanup(cancel)
	return s, cancel
}

func okTool(out interface{}) ToolInvoker {
	return func() (interface{}, error) { return out, nil }
}

func TestSubmit_SingleRequestDelivers(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(t, fakePolicy{global: 2, perTask: 2, queueCap: 10, maxAttempts: 1})

	out, err := s.Submit(context.Background(), DispatchRequest{
		ActionID: "a1",
		Tool:     okTool("done"),
		Options:  DispatchOptions{Priority: PriorityStandard},
	})
	require.NoError(t, err)
	require.Equal(t, StateDelivered, out.State)
	require.Equal(t, "done", out.Output)
}

func TestSubmit_RespectsRouteMutualExclusion(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(t, fakePolicy{global: 4, perTask: 4, queueCap: 10, maxAttempts: 1})

	var mu sync.Mutex
	var active int
	var maxActive int
	block := func() (interface{}, error) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return nil, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Submit(context.Background(), DispatchRequest{
				ActionID: "shared",
				CallID:   "call",
				MutexKey: "route-1",
				Tool:     block,
				Options:  DispatchOptions{Priority: PriorityStandard},
			})
			_ = err
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, maxActive, "route mutex must serialize requests sharing a mutex key")
}

func TestSubmit_GlobalSlotLimitIsEnforced(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(t, fakePolicy{global: 1, perTask: 4, queueCap: 10, maxAttempts: 1})

	var mu sync.Mutex
	var concurrent, maxConcurrent int
	slow := func() (interface{}, error) {
		mu.Lock()
		concurrent++
		if concurrent > maxConcurrent {
			maxConcurrent = concurrent
		}
		mu.Unlock()
		time.Sleep(15 * time.Millisecond)
		mu.Lock()
		concurrent--
		mu.Unlock()
		return nil, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.Submit(context.Background(), DispatchRequest{
				ActionID: "gs",
				CallID:   "c",
				MutexKey: "distinct-key",
				Tool:     slow,
				Options:  DispatchOptions{Priority: PriorityStandard},
			})
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, maxConcurrent, "global slot count must cap concurrent runs")
}

func TestSubmit_QueueFullRejectsImmediately(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(t, fakePolicy{global: 1, perTask: 1, queueCap: 1, maxAttempts: 1})

	release := make(chan struct{})
	blocking := func() (interface{}, error) {
		<-release
		return nil, nil
	}

	go func() {
		_, _ = s.Submit(context.Background(), DispatchRequest{ActionID: "first", Tool: blocking, Options: DispatchOptions{Priority: PriorityStandard}})
	}()
	time.Sleep(5 * time.Millisecond)

	go func() {
		_, _ = s.Submit(context.Background(), DispatchRequest{ActionID: "second", Tool: okTool(nil), Options: DispatchOptions{Priority: PriorityStandard}})
	}()
	time.Sleep(5 * time.Millisecond)

	_, err := s.Submit(context.Background(), DispatchRequest{ActionID: "third", Tool: okTool(nil), Options: DispatchOptions{Priority: PriorityStandard}})
	require.True(t, soulerr.Is(err, soulerr.QueueFull))
	close(release)
}

func TestSubmit_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(t, fakePolicy{global: 2, perTask: 2, queueCap: 10, maxAttempts: 3, backoffMs: 1})

	var attempts int
	var mu sync.Mutex
	flaky := func() (interface{}, error) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n < 3 {
			return nil, errors.New("transient")
		}
		return "ok", nil
	}

	out, err := s.Submit(context.Background(), DispatchRequest{ActionID: "a1", Tool: flaky, Options: DispatchOptions{Priority: PriorityStandard}})
	require.NoError(t, err)
	require.Equal(t, StateDelivered, out.State)
	require.Equal(t, "ok", out.Output)
}

func TestSubmit_ExhaustsRetriesAndFails(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(t, fakePolicy{global: 2, perTask: 2, queueCap: 10, maxAttempts: 2, backoffMs: 1})

	alwaysFail := func() (interface{}, error) { return nil, errors.New("nope") }

	out, err := s.Submit(context.Background(), DispatchRequest{ActionID: "a1", Tool: alwaysFail, Options: DispatchOptions{Priority: PriorityStandard}})
	require.NoError(t, err)
	require.Equal(t, StateFailed, out.State)
	require.NotEmpty(t, out.Err)
}

func TestCancel_PendingRequestNeverRuns(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(t, fakePolicy{global: 1, perTask: 1, queueCap: 10, maxAttempts: 1})

	release := make(chan struct{})
	occupying := func() (interface{}, error) { <-release; return nil, nil }
	go func() {
		_, _ = s.Submit(context.Background(), DispatchRequest{ActionID: "occupy", Tool: occupying, Options: DispatchOptions{Priority: PriorityStandard}})
	}()
	time.Sleep(5 * time.Millisecond)

	var ran bool
	queued := func() (interface{}, error) { ran = true; return nil, nil }

	done := make(chan struct{})
	go func() {
		_, _ = s.Submit(context.Background(), DispatchRequest{ActionID: "queued", Tool: queued, Options: DispatchOptions{Priority: PriorityStandard}})
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)

	require.True(t, s.Cancel("queued"))
	close(release)
	<-done

	require.False(t, ran, "a cancelled pending request must never invoke its tool")
}

func TestCancelCall_CancelsRunningRequest(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(t, fakePolicy{global: 2, perTask: 2, queueCap: 10, maxAttempts: 1})

	started := make(chan struct{})
	longRunning := func() (interface{}, error) {
		close(started)
		time.Sleep(time.Second)
		return nil, nil
	}

	resultCh := make(chan DispatchOutput, 1)
	go func() {
		out, _ := s.Submit(context.Background(), DispatchRequest{ActionID: "a1", CallID: "call-1", Tool: longRunning, Options: DispatchOptions{Priority: PriorityStandard, Timeout: time.Minute}})
		resultCh <- out
	}()

	<-started
	require.True(t, s.CancelCall("call-1"))

	select {
	case out := <-resultCh:
		require.Equal(t, StateCancelled, out.State)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled request never reached a terminal state")
	}
}

func TestCancelTask_CancelsAllRequestsForTask(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(t, fakePolicy{global: 1, perTask: 1, queueCap: 10, maxAttempts: 1})

	release := make(chan struct{})
	occupying := func() (interface{}, error) { <-release; return nil, nil }
	go func() {
		_, _ = s.Submit(context.Background(), DispatchRequest{ActionID: "occupy", TaskID: "t1", Tool: occupying, Options: DispatchOptions{Priority: PriorityStandard}})
	}()
	time.Sleep(5 * time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.Submit(context.Background(), DispatchRequest{ActionID: "queued", TaskID: "t1", Tool: okTool(nil), Options: DispatchOptions{Priority: PriorityStandard}})
		}(i)
	}
	time.Sleep(5 * time.Millisecond)

	n := s.CancelTask("t1")
	require.GreaterOrEqual(t, n, 3)
	close(release)
	wg.Wait()
}

func TestPriorityOrder_LightningDrainsBeforeDeep(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(t, fakePolicy{global: 1, perTask: 1, queueCap: 10, maxAttempts: 1})

	release := make(chan struct{})
	occupying := func() (interface{}, error) { <-release; return nil, nil }
	go func() {
		_, _ = s.Submit(context.Background(), DispatchRequest{ActionID: "occupy", Tool: occupying, Options: DispatchOptions{Priority: PriorityStandard}})
	}()
	time.Sleep(5 * time.Millisecond)

	var mu sync.Mutex
	var order []string
	record := func(name string) ToolInvoker {
		return func() (interface{}, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil, nil
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = s.Submit(context.Background(), DispatchRequest{ActionID: "deep", Tool: record("deep"), Options: DispatchOptions{Priority: PriorityDeep}})
	}()
	time.Sleep(2 * time.Millisecond)
	go func() {
		defer wg.Done()
		_, _ = s.Submit(context.Background(), DispatchRequest{ActionID: "lightning", Tool: record("lightning"), Options: DispatchOptions{Priority: PriorityLightning}})
	}()
	time.Sleep(5 * time.Millisecond)

	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"lightning", "deep"}, order)
}

func TestTimeline_RecordsMonotonicMilestones(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(t, fakePolicy{global: 2, perTask: 2, queueCap: 10, maxAttempts: 1})

	out, err := s.Submit(context.Background(), DispatchRequest{ActionID: "a1", Tool: okTool("x"), Options: DispatchOptions{Priority: PriorityStandard}})
	require.NoError(t, err)
	require.GreaterOrEqual(t, out.Timeline.StartedAt, out.Timeline.EnqueuedAt)
	require.GreaterOrEqual(t, out.Timeline.FinishedAt, out.Timeline.StartedAt)
}

func TestDispatchEvents_CarryQueueDiagnostics(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake(0)
	store := eventstore.New(clk)
	s := New(clk, store, fakePolicy{global: 2, perTask: 2, queueCap: 10, maxAttempts: 1})
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	t.Cleanup(cancel)

	_, err := s.Submit(context.Background(), DispatchRequest{ActionID: "a1", CallID: "navigate-to-url", MutexKey: "k1", Tool: okTool("x"), Options: DispatchOptions{Priority: PriorityStandard}})
	require.NoError(t, err)

	events := store.ByAction("a1")
	var success map[string]interface{}
	for _, e := range events {
		if e.Kind == "SC_DISPATCH_SUCCESS" {
			success = e.Payload.(map[string]interface{})
		}
	}
	require.NotNil(t, success, "dispatch must emit SC_DISPATCH_SUCCESS")
	require.Equal(t, "navigate-to-url", success["tool"])
	require.Equal(t, "k1", success["mutex_key"])
	require.Equal(t, 1, success["attempts"])
	require.Contains(t, success, "wait_ms")
	require.Contains(t, success, "run_ms")
	require.Contains(t, success, "pending")
	require.Contains(t, success, "slots_available")
}

func TestInvokeWithRetry_TerminalErrorSkipsRetry(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(t, fakePolicy{global: 2, perTask: 2, queueCap: 10, maxAttempts: 5, backoffMs: 1})

	var attempts int
	var mu sync.Mutex
	denied := func() (interface{}, error) {
		mu.Lock()
		attempts++
		mu.Unlock()
		return nil, soulerr.New(soulerr.PolicyDenied, "not allowed")
	}

	out, err := s.Submit(context.Background(), DispatchRequest{ActionID: "a1", Tool: denied, Options: DispatchOptions{Priority: PriorityStandard}})
	require.NoError(t, err)
	require.Equal(t, StateFailed, out.State)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, attempts, "a policy denial must not be retried")
}
