package timeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brennhill/soulbrowser-agent/internal/clock"
	"github.com/brennhill/soulbrowser-agent/internal/eventstore"
	"github.com/brennhill/soulbrowser-agent/internal/soulerr"
)

func TestReplay_DeltasAreRelativeToActionStart(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake(100)
	store := eventstore.New(clk)
	r := New(store)

	store.Append(eventstore.Subject{ActionID: "a1"}, "dispatch", nil)
	clk.Advance(40)
	store.Append(eventstore.Subject{ActionID: "a1"}, "nav", nil)
	clk.Advance(10)
	store.Append(eventstore.Subject{ActionID: "a1"}, "done", nil)

	bundle, err := r.Replay("a1")
	require.NoError(t, err)
	require.Equal(t, "a1", bundle.ActionID)
	require.Len(t, bundle.Timeline, 3)
	require.Equal(t, int64(0), bundle.Timeline[0].DeltaMs)
	require.Equal(t, int64(40), bundle.Timeline[1].DeltaMs)
	require.Equal(t, int64(50), bundle.Timeline[2].DeltaMs)
	require.NotEmpty(t, bundle.Timeline[0].Digest)
}

func TestReplay_ClassifiesEvidenceByKindPrefix(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake(0)
	store := eventstore.New(clk)
	r := New(store)

	store.Append(eventstore.Subject{ActionID: "a1"}, "pix_capture", map[string]interface{}{"artifact_id": "shot-7"})
	store.Append(eventstore.Subject{ActionID: "a1"}, "struct_extract", nil)
	store.Append(eventstore.Subject{ActionID: "a1"}, "nav", nil)

	bundle, err := r.Replay("a1")
	require.NoError(t, err)
	require.Equal(t, []string{"shot-7"}, bundle.Evidence.Pix)
	require.Equal(t, []string{"struct_extract/2"}, bundle.Evidence.Structs)
}

func TestReplay_UnknownActionIsUnavailable(t *testing.T) {
	t.Parallel()
	r := New(eventstore.New(clock.NewFake(0)))

	_, err := r.Replay("missing")
	require.Error(t, err)
	require.True(t, soulerr.Is(err, soulerr.Unavailable))
}

func TestReplay_IdenticalPayloadsShareDigests(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake(0)
	store := eventstore.New(clk)
	r := New(store)

	store.Append(eventstore.Subject{ActionID: "a1"}, "nav", map[string]interface{}{"url": "https://x"})
	store.Append(eventstore.Subject{ActionID: "a1"}, "nav", map[string]interface{}{"url": "https://x"})
	store.Append(eventstore.Subject{ActionID: "a1"}, "nav", map[string]interface{}{"url": "https://y"})

	bundle, err := r.Replay("a1")
	require.NoError(t, err)
	require.Equal(t, bundle.Timeline[0].Digest, bundle.Timeline[1].Digest)
	require.NotEqual(t, bundle.Timeline[0].Digest, bundle.Timeline[2].Digest)
}
