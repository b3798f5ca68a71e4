// Package tool implements the Tool Registry & Invoker (C4): a manifest of
// what each tool can do, a pre-flight authorization gate, and an Invoker
// that wraps a single tool call in a scheduler.DispatchRequest so it gets
// mutex/slot/retry enforcement even outside a full Flow.
package tool

import (
	"fmt"
	"sync"

	"github.com/brennhill/soulbrowser-agent/internal/flow"
)

// Manifest describes one registered tool's capabilities.
type Manifest struct {
	Name           string
	SupportedKinds []flow.ActionKind
	RequiresRoute  bool
}

func (m Manifest) supports(kind flow.ActionKind) bool {
	for _, k := range m.SupportedKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Registry holds every tool's manifest, keyed by name.
type Registry struct {
	mu       sync.RWMutex
	manifest map[string]Manifest
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{manifest: make(map[string]Manifest)}
}

// Register adds or replaces a tool's manifest.
func (r *Registry) Register(m Manifest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.manifest[m.Name] = m
}

// Lookup returns the manifest registered under name.
func (r *Registry) Lookup(name string) (Manifest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.manifest[name]
	return m, ok
}

// Validate checks that name is registered and supports kind.
func (r *Registry) Validate(name string, kind flow.ActionKind) error {
	m, ok := r.Lookup(name)
	if !ok {
		return fmt.Errorf("tool %q is not registered", name)
	}
	if !m.supports(kind) {
		return fmt.Errorf("tool %q does not support action kind %q", name, kind)
	}
	return nil
}
