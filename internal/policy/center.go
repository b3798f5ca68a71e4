package policy

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/brennhill/soulbrowser-agent/internal/soulerr"
	"github.com/brennhill/soulbrowser-agent/internal/ttl"
	"github.com/brennhill/soulbrowser-agent/internal/util"
)

// fileLayer mirrors Snapshot's yaml-tagged fields for unmarshalling a policy
// file. Pointer fields distinguish "unset" from "set to zero value", the
// same trick the cascade's original loader used for its JSON config file.
type fileLayer struct {
	Scheduler *struct {
		Limits *struct {
			GlobalSlots   *int `yaml:"global_slots"`
			PerTaskLimit  *int `yaml:"per_task_limit"`
			QueueCapacity *int `yaml:"queue_capacity"`
		} `yaml:"limits"`
		Retry *struct {
			MaxAttempts *int `yaml:"max_attempts"`
			BackoffMs   *int `yaml:"backoff_ms"`
		} `yaml:"retry"`
		TimeoutsMs map[string]int `yaml:"timeouts_ms"`
	} `yaml:"scheduler"`
	Registry *struct {
		AllowMultiplePages    *bool `yaml:"allow_multiple_pages"`
		HealthProbeIntervalMs *int  `yaml:"health_probe_interval_ms"`
	} `yaml:"registry"`
	Features map[string]bool `yaml:"features"`
}

// override is a single runtime_override entry,
// tracked so it can be reverted automatically when its TTL expires.
type override struct {
	path  string
	value interface{}
	timer *time.Timer
}

// Center is the Policy Center (C1): it owns the layered cascade, publishes
// immutable Snapshots, and notifies subscribers on every revision bump.
type Center struct {
	mu          sync.RWMutex
	current     *Snapshot
	builtin     *Snapshot
	fileLayer   *Snapshot
	envLayer    *Snapshot
	cliLayer    *Snapshot
	overrides   map[string]*override
	watcher     *fsnotify.Watcher
	policyPath  string
	subscribers map[int]chan *Snapshot
	nextSubID   int
}

// New constructs a Center seeded with the Builtin layer and, if policyPath
// is non-empty, a File layer loaded from it (hot-reloaded via fsnotify).
func New(policyPath string) (*Center, error) {
	c := &Center{
		builtin:     defaultSnapshot(),
		overrides:   make(map[string]*override),
		subscribers: make(map[int]chan *Snapshot),
		policyPath:  policyPath,
	}
	c.current = c.builtin.clone()
	// New's own recompute below publishes the first snapshot as revision 0.
	c.current.Revision = -1

	if policyPath != "" {
		if err := c.loadFile(policyPath); err != nil {
			return nil, soulerr.Wrap(soulerr.ValidationFailed, "failed to load policy file", err)
		}
	}
	c.loadEnv()
	c.recompute()
	return c, nil
}

// Snapshot returns the currently published configuration. Safe for
// concurrent use; the returned value must not be mutated.
func (c *Center) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Subscribe registers for notification on every new Snapshot revision. The
// returned cancel func must be called to release the channel.
func (c *Center) Subscribe() (<-chan *Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSubID
	c.nextSubID++
	ch := make(chan *Snapshot, 1)
	c.subscribers[id] = ch
	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subscribers[id]; ok {
			close(sub)
			delete(c.subscribers, id)
		}
	}
	return ch, cancel
}

// publishLocked must be called with c.mu held for writing. It bumps the
// revision, stores the snapshot, and fans it out to subscribers
// non-blockingly (a slow subscriber drops stale notifications, never the
// Center).
func (c *Center) publishLocked(snap *Snapshot) {
	snap.Revision = c.current.Revision + 1
	snap.updatedAt = time.Now()
	c.current = snap
	for _, ch := range c.subscribers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

// ApplyCLI applies the highest-precedence layer, CLI flag overrides. Only
// non-nil fields are applied.
func (c *Center) ApplyCLI(cli *CLIOverrides) {
	if cli == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cliLayer = cli.toSnapshot(SourceCLI)
	c.recomputeLocked()
}

// CLIOverrides mirrors the fields a CLI flag set may override.
type CLIOverrides struct {
	GlobalSlots  *int
	PerTaskLimit *int
	BackoffMs    *int
}

func (o *CLIOverrides) toSnapshot(src Source) *Snapshot {
	s := &Snapshot{Provenance: map[string]Source{}}
	if o.GlobalSlots != nil {
		s.Scheduler.Limits.GlobalSlots = *o.GlobalSlots
		s.Provenance["scheduler.limits.global_slots"] = src
	}
	if o.PerTaskLimit != nil {
		s.Scheduler.Limits.PerTaskLimit = *o.PerTaskLimit
		s.Provenance["scheduler.limits.per_task_limit"] = src
	}
	if o.BackoffMs != nil {
		s.Scheduler.Retry.BackoffMs = *o.BackoffMs
		s.Provenance["scheduler.retry.backoff_ms"] = src
	}
	return s
}

// ApplyOverride sets a single dotted-path runtime override. An empty ttl
// means it never expires until explicitly cleared.
func (c *Center) ApplyOverride(path string, value interface{}, ttlStr string) error {
	if !isKnownPath(path) {
		return soulerr.New(soulerr.Unsupported, "unsupported policy path: "+path)
	}
	dur, err := ttl.ParseTTL(ttlStr)
	if err != nil {
		return soulerr.Wrap(soulerr.ValidationFailed, "invalid override ttl", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.overrides[path]; ok && existing.timer != nil {
		existing.timer.Stop()
	}
	ov := &override{path: path, value: value}
	if dur > 0 {
		ov.timer = time.AfterFunc(dur, func() { c.ClearOverride(path) })
	}
	c.overrides[path] = ov
	c.recomputeLocked()
	return nil
}

// ClearOverride removes a runtime override, reverting to the next layer
// down the cascade.
func (c *Center) ClearOverride(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ov, ok := c.overrides[path]; ok {
		if ov.timer != nil {
			ov.timer.Stop()
		}
		delete(c.overrides, path)
		c.recomputeLocked()
	}
}

// Close stops the file watcher, if any, and all pending override timers.
func (c *Center) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ov := range c.overrides {
		if ov.timer != nil {
			ov.timer.Stop()
		}
	}
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}

func (c *Center) loadFile(path string) error {
	if err := c.readFileLocked(path); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return soulerr.Wrap(soulerr.Internal, "failed to create policy watcher", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return soulerr.Wrap(soulerr.Internal, "failed to watch policy file", err)
	}
	c.watcher = watcher
	util.SafeGo(c.watchLoop)
	return nil
}

func (c *Center) watchLoop() {
	for {
		select {
		case ev, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			c.mu.Lock()
			if err := c.readFileLocked(c.policyPath); err == nil {
				c.recomputeLocked()
			}
			c.mu.Unlock()
		case _, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (c *Center) readFileLocked(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return soulerr.Wrap(soulerr.Internal, "failed to read policy file", err)
	}
	var fl fileLayer
	if err := yaml.Unmarshal(data, &fl); err != nil {
		return soulerr.Wrap(soulerr.ValidationFailed, "failed to parse policy file", err)
	}
	c.fileLayer = fileLayerToSnapshot(&fl)
	return nil
}

func fileLayerToSnapshot(fl *fileLayer) *Snapshot {
	s := &Snapshot{Provenance: map[string]Source{}, Scheduler: SchedulerSection{TimeoutsMs: map[string]int{}}}
	if fl.Scheduler != nil {
		if fl.Scheduler.Limits != nil {
			if v := fl.Scheduler.Limits.GlobalSlots; v != nil {
				s.Scheduler.Limits.GlobalSlots = *v
				s.Provenance["scheduler.limits.global_slots"] = SourceFile
			}
			if v := fl.Scheduler.Limits.PerTaskLimit; v != nil {
				s.Scheduler.Limits.PerTaskLimit = *v
				s.Provenance["scheduler.limits.per_task_limit"] = SourceFile
			}
			if v := fl.Scheduler.Limits.QueueCapacity; v != nil {
				s.Scheduler.Limits.QueueCapacity = *v
				s.Provenance["scheduler.limits.queue_capacity"] = SourceFile
			}
		}
		if fl.Scheduler.Retry != nil {
			if v := fl.Scheduler.Retry.MaxAttempts; v != nil {
				s.Scheduler.Retry.MaxAttempts = *v
				s.Provenance["scheduler.retry.max_attempts"] = SourceFile
			}
			if v := fl.Scheduler.Retry.BackoffMs; v != nil {
				s.Scheduler.Retry.BackoffMs = *v
				s.Provenance["scheduler.retry.backoff_ms"] = SourceFile
			}
		}
		for k, v := range fl.Scheduler.TimeoutsMs {
			s.Scheduler.TimeoutsMs[k] = v
			s.Provenance["scheduler.timeouts_ms."+k] = SourceFile
		}
	}
	if fl.Registry != nil {
		if v := fl.Registry.AllowMultiplePages; v != nil {
			s.Registry.AllowMultiplePages = *v
			s.Provenance["registry.allow_multiple_pages"] = SourceFile
		}
		if v := fl.Registry.HealthProbeIntervalMs; v != nil {
			s.Registry.HealthProbeIntervalMs = *v
			s.Provenance["registry.health_probe_interval_ms"] = SourceFile
		}
	}
	if fl.Features != nil {
		s.Features = FeaturesSection{}
		for k, v := range fl.Features {
			s.Features[k] = v
			s.Provenance["features."+k] = SourceFile
		}
	}
	return s
}

// Environment surface: single-key overlays use SOUL_POLICY__<path>
// with double underscores standing in for dots; a whole overlay tree can
// arrive as SOUL_POLICY_OVERRIDE_JSON, and CLI-level overlays as
// SOUL_POLICY_CLI_OVERRIDES=path=value,path=value.
const (
	envKeyPrefix    = "SOUL_POLICY__"
	envOverrideJSON = "SOUL_POLICY_OVERRIDE_JSON"
	envCLIOverrides = "SOUL_POLICY_CLI_OVERRIDES"
)

func (c *Center) loadEnv() {
	s := &Snapshot{Provenance: map[string]Source{}}

	for _, kv := range os.Environ() {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, envKeyPrefix) {
			continue
		}
		path := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, envKeyPrefix)), "__", ".")
		if !isKnownPath(path) {
			continue
		}
		applyOverrideValue(s, path, coerceValue(raw), SourceEnv)
	}

	if raw := os.Getenv(envOverrideJSON); raw != "" {
		var tree map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &tree); err == nil {
			for path, val := range flattenOverlay("", tree) {
				if isKnownPath(path) {
					applyOverrideValue(s, path, normalizeJSONValue(val), SourceEnv)
				}
			}
		}
	}

	c.envLayer = s

	if raw := os.Getenv(envCLIOverrides); raw != "" {
		cli := &Snapshot{Provenance: map[string]Source{}}
		for _, pair := range strings.Split(raw, ",") {
			path, val, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok || !isKnownPath(path) {
				continue
			}
			applyOverrideValue(cli, path, coerceValue(val), SourceCLI)
		}
		c.cliLayer = cli
	}
}

// flattenOverlay walks a decoded overlay tree and yields flat dotted paths,
// the form every layer below the file loader speaks.
func flattenOverlay(prefix string, tree map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for k, v := range tree {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if sub, ok := v.(map[string]interface{}); ok {
			for p, sv := range flattenOverlay(path, sub) {
				out[p] = sv
			}
			continue
		}
		out[path] = v
	}
	return out
}

// coerceValue converts a raw string overlay value to int/bool/string, the
// same loose typing the runtime-override CLI applies.
func coerceValue(raw string) interface{} {
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

// normalizeJSONValue maps encoding/json's float64 numbers back onto the int
// fields the snapshot carries.
func normalizeJSONValue(v interface{}) interface{} {
	if f, ok := v.(float64); ok {
		return int(f)
	}
	return v
}

// recompute rebuilds current from builtin < file < env < overrides < cli,
// applying capacity min-merge semantics where applicable.
func (c *Center) recompute() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recomputeLocked()
}

func (c *Center) recomputeLocked() {
	out := c.builtin.clone()
	layers := []*Snapshot{c.fileLayer, c.envLayer}
	for _, layer := range layers {
		if layer == nil {
			continue
		}
		mergeLayer(out, layer)
	}
	for _, ov := range c.overrides {
		applyOverrideValue(out, ov.path, ov.value, SourceRuntimeOverride)
	}
	if c.cliLayer != nil {
		mergeLayer(out, c.cliLayer)
	}
	c.publishLocked(out)
}

// mergeLayer folds layer's explicitly-set fields (tracked via Provenance)
// into base, honoring capacity-field min-merge semantics.
func mergeLayer(base *Snapshot, layer *Snapshot) {
	for path, src := range layer.Provenance {
		val := fieldValue(layer, path)
		applyOverrideValue(base, path, val, src)
	}
}

func fieldValue(s *Snapshot, path string) interface{} {
	switch path {
	case "scheduler.limits.global_slots":
		return s.Scheduler.Limits.GlobalSlots
	case "scheduler.limits.per_task_limit":
		return s.Scheduler.Limits.PerTaskLimit
	case "scheduler.limits.queue_capacity":
		return s.Scheduler.Limits.QueueCapacity
	case "scheduler.retry.max_attempts":
		return s.Scheduler.Retry.MaxAttempts
	case "scheduler.retry.backoff_ms":
		return s.Scheduler.Retry.BackoffMs
	case "registry.allow_multiple_pages":
		return s.Registry.AllowMultiplePages
	case "registry.health_probe_interval_ms":
		return s.Registry.HealthProbeIntervalMs
	default:
		if strings.HasPrefix(path, "scheduler.timeouts_ms.") {
			return s.Scheduler.TimeoutsMs[strings.TrimPrefix(path, "scheduler.timeouts_ms.")]
		}
		if strings.HasPrefix(path, "features.") {
			return s.Features[strings.TrimPrefix(path, "features.")]
		}
	}
	return nil
}

// applyOverrideValue sets path on snap to value, taking the minimum against
// the existing value when path is a capacity field and src is not an
// override/cli layer (those always replace outright). A value whose type
// doesn't fit the field is dropped rather than applied.
func applyOverrideValue(snap *Snapshot, path string, value interface{}, src Source) {
	capacityLike := capacityFieldPaths[path] || strings.HasPrefix(path, "scheduler.timeouts_ms.")
	minMerge := capacityLike && src != SourceRuntimeOverride && src != SourceCLI

	setInt := func(field *int) {
		if v, ok := value.(int); ok {
			*field = mergeInt(*field, v, minMerge)
			snap.Provenance[path] = src
		}
	}

	switch path {
	case "scheduler.limits.global_slots":
		setInt(&snap.Scheduler.Limits.GlobalSlots)
	case "scheduler.limits.per_task_limit":
		setInt(&snap.Scheduler.Limits.PerTaskLimit)
	case "scheduler.limits.queue_capacity":
		setInt(&snap.Scheduler.Limits.QueueCapacity)
	case "scheduler.retry.max_attempts":
		setInt(&snap.Scheduler.Retry.MaxAttempts)
	case "scheduler.retry.backoff_ms":
		setInt(&snap.Scheduler.Retry.BackoffMs)
	case "registry.allow_multiple_pages":
		if v, ok := value.(bool); ok {
			snap.Registry.AllowMultiplePages = v
			snap.Provenance[path] = src
		}
	case "registry.health_probe_interval_ms":
		setInt(&snap.Registry.HealthProbeIntervalMs)
	default:
		if strings.HasPrefix(path, "scheduler.timeouts_ms.") {
			if v, ok := value.(int); ok {
				key := strings.TrimPrefix(path, "scheduler.timeouts_ms.")
				if snap.Scheduler.TimeoutsMs == nil {
					snap.Scheduler.TimeoutsMs = map[string]int{}
				}
				snap.Scheduler.TimeoutsMs[key] = mergeInt(snap.Scheduler.TimeoutsMs[key], v, minMerge)
				snap.Provenance[path] = src
			}
		} else if strings.HasPrefix(path, "features.") {
			if v, ok := value.(bool); ok {
				key := strings.TrimPrefix(path, "features.")
				if snap.Features == nil {
					snap.Features = FeaturesSection{}
				}
				snap.Features[key] = v
				snap.Provenance[path] = src
			}
		}
	}
}

// isKnownPath reports whether path addresses a concrete Snapshot field
//.
func isKnownPath(path string) bool {
	switch path {
	case "scheduler.limits.global_slots",
		"scheduler.limits.per_task_limit",
		"scheduler.limits.queue_capacity",
		"scheduler.retry.max_attempts",
		"scheduler.retry.backoff_ms",
		"registry.allow_multiple_pages",
		"registry.health_probe_interval_ms":
		return true
	default:
		return strings.HasPrefix(path, "scheduler.timeouts_ms.") || strings.HasPrefix(path, "features.")
	}
}

func mergeInt(existing, candidate int, minMerge bool) int {
	if minMerge && existing > 0 && candidate > existing {
		return existing
	}
	return candidate
}
