package timeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brennhill/soulbrowser-agent/internal/clock"
	"github.com/brennhill/soulbrowser-agent/internal/eventstore"
	"github.com/brennhill/soulbrowser-agent/internal/soulerr"
)

type fakeStateCenter struct {
	events []eventstore.Envelope
}

func (f fakeStateCenter) Tail(n int) []eventstore.Envelope {
	if n >= len(f.events) {
		return f.events
	}
	return f.events[len(f.events)-n:]
}

func TestFetch_ByAction(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake(0)
	store := eventstore.New(clk)
	store.Append(eventstore.Subject{ActionID: "a1"}, "nav", nil)
	store.Append(eventstore.Subject{ActionID: "a1"}, "click", nil)

	r := New(store)
	events, err := r.Fetch(FetchPlan{Source: SourceAction, ActionID: "a1"})
	require.NoError(t, err)
	require.Len(t, events, 2)
}

func TestFetch_MergesStateTailWhenAllowed(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake(0)
	store := eventstore.New(clk)
	store.Append(eventstore.Subject{ActionID: "a1"}, "nav", nil)

	r := New(store)
	r.State = fakeStateCenter{events: []eventstore.Envelope{{Kind: "state_tail"}}}

	events, err := r.Fetch(FetchPlan{Source: SourceAction, ActionID: "a1", AllowStateTail: true})
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "state_tail", events[1].Kind)
}

func TestFetch_IgnoresStateTailWhenNotAllowed(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake(0)
	store := eventstore.New(clk)
	store.Append(eventstore.Subject{ActionID: "a1"}, "nav", nil)

	r := New(store)
	r.State = fakeStateCenter{events: []eventstore.Envelope{{Kind: "state_tail"}}}

	events, err := r.Fetch(FetchPlan{Source: SourceAction, ActionID: "a1", AllowStateTail: false})
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestFetch_RangeClampsToHotWindow(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake(0)
	store := eventstore.NewWithCapacity(clk, 3)
	for i := 0; i < 5; i++ {
		store.Append(eventstore.Subject{ActionID: "a1"}, "e", i)
	}

	r := New(store)
	events, err := r.Fetch(FetchPlan{Source: SourceRange, ActionID: "a1", SinceSeq: 1, UntilSeq: 5})
	require.NoError(t, err)
	for _, e := range events {
		require.GreaterOrEqual(t, e.Seq, uint64(3))
	}
}

func TestFetch_UnknownSourceFails(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake(0)
	store := eventstore.New(clk)
	r := New(store)

	_, err := r.Fetch(FetchPlan{Source: "bogus"})
	require.True(t, soulerr.Is(err, soulerr.InvalidRequest))
}

func TestExportJSONL_WritesOneLinePerEvent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "replay.jsonl")

	envelopes := []eventstore.Envelope{
		{ActionID: "a1", Kind: "nav", Seq: 1},
		{ActionID: "a1", Kind: "click", Seq: 2},
	}
	err := ExportJSONL(envelopes, path, 0)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, countLines(string(data)))
}

func TestExportJSONL_RoundTripsEnvelopeSequence(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "replay.jsonl")

	envelopes := []eventstore.Envelope{
		{ActionID: "a1", Kind: "nav", Seq: 1, TsMono: 10},
		{ActionID: "a1", Kind: "click", Seq: 2, TsMono: 25},
		{ActionID: "a1", Kind: "done", Seq: 3, TsMono: 40},
	}
	require.NoError(t, ExportJSONL(envelopes, path, 1<<20))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded []eventstore.Envelope
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var env eventstore.Envelope
		require.NoError(t, json.Unmarshal([]byte(line), &env))
		decoded = append(decoded, env)
	}
	require.Equal(t, envelopes, decoded)
}

func TestExportJSONL_RejectsOversizedLine(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "replay.jsonl")

	envelopes := []eventstore.Envelope{
		{ActionID: "a1", Kind: "huge", Seq: 1, Payload: make([]byte, 1024)},
	}
	err := ExportJSONL(envelopes, path, 16)
	require.True(t, soulerr.Is(err, soulerr.Oversize))
}

func countLines(s string) int {
	n := 0
	for _, r := range s {
		if r == '\n' {
			n++
		}
	}
	return n
}
