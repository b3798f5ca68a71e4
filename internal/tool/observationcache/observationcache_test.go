package observationcache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCache_SetThenGetRoundTrips(t *testing.T) {
	t.Parallel()
	c := New()
	c.Set("a1", Observation{Kind: "navigate", Payload: "snapshot"})

	obs, ok := c.Get("a1")
	require.True(t, ok)
	require.Equal(t, "snapshot", obs.Payload)
}

func TestCache_GetMissingKeyFails(t *testing.T) {
	t.Parallel()
	c := New()
	_, ok := c.Get("missing")
	require.False(t, ok)
}

func TestCache_RemoveDeletesEntry(t *testing.T) {
	t.Parallel()
	c := New()
	c.Set("a1", Observation{Kind: "click"})
	c.Remove("a1")

	_, ok := c.Get("a1")
	require.False(t, ok)
}

func TestCache_SetOverwritesExistingEntry(t *testing.T) {
	t.Parallel()
	c := New()
	c.Set("a1", Observation{Kind: "navigate", Payload: "first"})
	c.Set("a1", Observation{Kind: "navigate", Payload: "second"})

	obs, ok := c.Get("a1")
	require.True(t, ok)
	require.Equal(t, "second", obs.Payload)
}

func TestCache_LenReflectsDistinctKeys(t *testing.T) {
	t.Parallel()
	c := New()
	c.Set("a1", Observation{})
	c.Set("a2", Observation{})
	require.Equal(t, 2, c.Len())
}

func TestCache_ConcurrentAccessIsSafe(t *testing.T) {
	t.Parallel()
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := "k"
			c.Set(key, Observation{Payload: n})
			c.Get(key)
		}(i)
	}
	wg.Wait()
}
