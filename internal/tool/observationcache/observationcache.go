// Package observationcache holds the process-wide observation cache: an
// exclusive-writer, shared-reader map keyed by subject id. It is owned
// state of the Invoker rather than a static global, with explicit
// construction (New) and per-key removal (Remove).
package observationcache

import "sync"

// Observation is one cached perception result (e.g. a page's last known DOM
// snapshot or extracted value) keyed by an arbitrary subject id — action,
// flow, or task.
type Observation struct {
	Kind    string
	Payload interface{}
}

// Cache is a bounded-by-convention (callers should Remove what they no
// longer need), concurrency-safe map of subject id to its last observation.
type Cache struct {
	mu    sync.RWMutex
	inner map[string]Observation
}

// New constructs an empty Cache.
func New() *Cache {
	return &Cache{inner: make(map[string]Observation)}
}

// Get returns the cached observation for key, if any.
func (c *Cache) Get(key string) (Observation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obs, ok := c.inner[key]
	return obs, ok
}

// Set overwrites the cached observation for key.
func (c *Cache) Set(key string, obs Observation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner[key] = obs
}

// Remove deletes the cached observation for key, if present.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inner, key)
}

// Len reports how many subjects currently have a cached observation.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.inner)
}
