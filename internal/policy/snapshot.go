// Package policy implements the Policy Center: an immutable,
// revision-numbered configuration snapshot assembled from layered sources
// (Builtin < File < Env < RuntimeOverride < Cli), with per-field provenance
// and subscribable revisions so every other subsystem observes reloads.
package policy

import "time"

// Source identifies which layer last set a field, in ascending precedence.
type Source string

const (
	SourceBuiltin         Source = "builtin"
	SourceFile            Source = "file"
	SourceEnv             Source = "env"
	SourceRuntimeOverride Source = "runtime_override"
	SourceCLI             Source = "cli"
)

// precedence ranks a Source for conflict resolution; higher wins ties.
func (s Source) precedence() int {
	switch s {
	case SourceBuiltin:
		return 0
	case SourceFile:
		return 1
	case SourceEnv:
		return 2
	case SourceRuntimeOverride:
		return 3
	case SourceCLI:
		return 4
	default:
		return -1
	}
}

// SchedulerLimits bounds C5's concurrency.
type SchedulerLimits struct {
	GlobalSlots   int `yaml:"global_slots"`
	PerTaskLimit  int `yaml:"per_task_limit"`
	QueueCapacity int `yaml:"queue_capacity"`
}

// RetryPolicy is shared by C5 and C7's failure handler.
type RetryPolicy struct {
	MaxAttempts int `yaml:"max_attempts"`
	BackoffMs   int `yaml:"backoff_ms"`
}

// SchedulerSection holds C5's tunables.
type SchedulerSection struct {
	Limits     SchedulerLimits `yaml:"limits"`
	Retry      RetryPolicy     `yaml:"retry"`
	TimeoutsMs map[string]int  `yaml:"timeouts_ms"`
}

// RegistrySection holds C4's tunables.
type RegistrySection struct {
	AllowMultiplePages    bool `yaml:"allow_multiple_pages"`
	HealthProbeIntervalMs int  `yaml:"health_probe_interval_ms"`
}

// FeaturesSection is a flat bag of boolean feature toggles.
type FeaturesSection map[string]bool

// Snapshot is the immutable, revision-numbered configuration tree. Callers
// must never mutate a Snapshot in place — Center
// always hands out a fresh value.
type Snapshot struct {
	Revision   int64
	Scheduler  SchedulerSection
	Registry   RegistrySection
	Features   FeaturesSection
	Provenance map[string]Source
	updatedAt  time.Time
}

// UpdatedAt reports when this snapshot was published.
func (s *Snapshot) UpdatedAt() time.Time { return s.updatedAt }

// clone deep-copies a Snapshot so mutation during overlay application never
// touches a published snapshot concurrently read by subscribers.
func (s *Snapshot) clone() *Snapshot {
	out := &Snapshot{
		Revision:   s.Revision,
		Scheduler:  s.Scheduler,
		Registry:   s.Registry,
		Features:   make(FeaturesSection, len(s.Features)),
		Provenance: make(map[string]Source, len(s.Provenance)),
		updatedAt:  s.updatedAt,
	}
	out.Scheduler.TimeoutsMs = make(map[string]int, len(s.Scheduler.TimeoutsMs))
	for k, v := range s.Scheduler.TimeoutsMs {
		out.Scheduler.TimeoutsMs[k] = v
	}
	for k, v := range s.Features {
		out.Features[k] = v
	}
	for k, v := range s.Provenance {
		out.Provenance[k] = v
	}
	return out
}

// defaultSnapshot returns the Builtin-layer snapshot.
func defaultSnapshot() *Snapshot {
	return &Snapshot{
		Revision: 0,
		Scheduler: SchedulerSection{
			Limits: SchedulerLimits{
				GlobalSlots:   16,
				PerTaskLimit:  4,
				QueueCapacity: 256,
			},
			Retry: RetryPolicy{MaxAttempts: 3, BackoffMs: 250},
			TimeoutsMs: map[string]int{
				"lightning": 2_000,
				"quick":     5_000,
				"standard":  15_000,
				"deep":      60_000,
			},
		},
		Registry: RegistrySection{
			AllowMultiplePages:    true,
			HealthProbeIntervalMs: 5_000,
		},
		Features:   FeaturesSection{},
		Provenance: map[string]Source{},
		updatedAt:  time.Now(),
	}
}

// capacityFieldPaths are the dotted paths treated as "capacity-like" for
// overlay monotonicity: non-override overlays take the minimum
// of candidate and existing value instead of replacing outright. Every
// scheduler.timeouts_ms.* entry is also capacity-like; backoff_ms is not
// (raising a delay never grants more capacity).
var capacityFieldPaths = map[string]bool{
	"scheduler.limits.global_slots":   true,
	"scheduler.limits.per_task_limit": true,
	"scheduler.limits.queue_capacity": true,
	"scheduler.retry.max_attempts":    true,
}
