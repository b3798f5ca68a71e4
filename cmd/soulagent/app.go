// Package main implements the soulagent CLI: the cobra-based entrypoint
// that wires the Policy Center, Event Store, Action Primitives, Tool
// Registry & Invoker, Scheduler, Plan-to-Flow Compiler, Flow Executor,
// Timeline Reader, and Agent Runner into one runnable binary.
package main

import (
	"context"

	"github.com/brennhill/soulbrowser-agent/internal/agent"
	"github.com/brennhill/soulbrowser-agent/internal/audit"
	"github.com/brennhill/soulbrowser-agent/internal/clock"
	"github.com/brennhill/soulbrowser-agent/internal/eventstore"
	"github.com/brennhill/soulbrowser-agent/internal/executor"
	"github.com/brennhill/soulbrowser-agent/internal/flow"
	"github.com/brennhill/soulbrowser-agent/internal/policy"
	"github.com/brennhill/soulbrowser-agent/internal/scheduler"
	"github.com/brennhill/soulbrowser-agent/internal/timeline"
	"github.com/brennhill/soulbrowser-agent/internal/tool"
	"github.com/brennhill/soulbrowser-agent/internal/tool/observationcache"
	"github.com/brennhill/soulbrowser-agent/internal/wire"
)

// policyAdapter narrows *policy.Center to the scheduler.PolicyProvider
// surface so internal/scheduler never needs to import internal/policy
//.
type policyAdapter struct {
	center *policy.Center
}

func (a policyAdapter) SchedulerLimits() (globalSlots, perTaskLimit, queueCapacity int) {
	s := a.center.Snapshot()
	return s.Scheduler.Limits.GlobalSlots, s.Scheduler.Limits.PerTaskLimit, s.Scheduler.Limits.QueueCapacity
}

func (a policyAdapter) RetryPolicy() (maxAttempts, backoffMs int) {
	s := a.center.Snapshot()
	return s.Scheduler.Retry.MaxAttempts, s.Scheduler.Retry.BackoffMs
}

// App holds every wired subsystem for the lifetime of one CLI invocation.
type App struct {
	Policy    *policy.Center
	Clock     clock.Clock
	Store     *eventstore.Store
	Scheduler *scheduler.Scheduler
	Registry  *tool.Registry
	Invoker   *tool.Invoker
	Executor  *executor.Executor
	Timeline  *timeline.Reader
	Runner    *agent.Runner
	Audit     *audit.Trail

	wireClient wire.Client
	cancel     context.CancelFunc
}

// NewApp constructs and starts every subsystem. policyPath may be empty
// (builtin defaults only). Call Close when done.
func NewApp(ctx context.Context, policyPath string, planner agent.Planner) (*App, error) {
	center, err := policy.New(policyPath)
	if err != nil {
		return nil, err
	}

	clk := clock.Default
	store := eventstore.New(clk)

	sched := scheduler.New(clk, store, policyAdapter{center: center})
	runCtx, cancel := context.WithCancel(ctx)
	sched.Start(runCtx)

	registry := tool.NewRegistry()
	registerCanonicalTools(registry)

	trail := audit.New(audit.Config{})
	cache := observationcache.New()

	client := wire.NewFake()
	sandbox := &BrowserSandbox{Client: client, Clock: clk}

	invoker := tool.NewInvoker(registry, nil, sched, sandbox, cache, trail)

	exec := &executor.Executor{
		Client: client,
		Clock:  clk,
		Gate:   executor.DefaultGateValidator{},
	}

	reader := timeline.New(store)

	if planner == nil {
		planner = agent.NewFakePlanner("https://example.test")
	}
	runner := agent.New(planner, exec)

	return &App{
		Policy:     center,
		Clock:      clk,
		Store:      store,
		Scheduler:  sched,
		Registry:   registry,
		Invoker:    invoker,
		Executor:   exec,
		Timeline:   reader,
		Runner:     runner,
		Audit:      trail,
		wireClient: client,
		cancel:     cancel,
	}, nil
}

// WireReady probes the wire client with a trivial evaluation, reporting
// whether the bridge answers.
func (a *App) WireReady(ctx context.Context) bool {
	_, err := a.wireClient.Evaluate(ctx, wire.Route{}, "1")
	return err == nil
}

// Close stops the Scheduler's dispatch loop and the Policy Center's file
// watcher/override timers.
func (a *App) Close() {
	a.cancel()
	a.Scheduler.Stop()
	_ = a.Policy.Close()
}

// registerCanonicalTools registers the seven tools the core requires at
// minimum, plus their "browser.*" legacy aliases.
func registerCanonicalTools(reg *tool.Registry) {
	reg.Register(tool.Manifest{Name: "navigate-to-url", SupportedKinds: []flow.ActionKind{flow.ActionNavigate}, RequiresRoute: true})
	reg.Register(tool.Manifest{Name: "click", SupportedKinds: []flow.ActionKind{flow.ActionClick}, RequiresRoute: true})
	reg.Register(tool.Manifest{Name: "type-text", SupportedKinds: []flow.ActionKind{flow.ActionTypeText}, RequiresRoute: true})
	reg.Register(tool.Manifest{Name: "select-option", SupportedKinds: []flow.ActionKind{flow.ActionSelect}, RequiresRoute: true})
	reg.Register(tool.Manifest{Name: "scroll-page", SupportedKinds: []flow.ActionKind{flow.ActionScroll}, RequiresRoute: true})
	reg.Register(tool.Manifest{Name: "wait-for-element", SupportedKinds: []flow.ActionKind{flow.ActionWait}, RequiresRoute: true})
	reg.Register(tool.Manifest{Name: "wait-for-condition", SupportedKinds: []flow.ActionKind{flow.ActionWait}, RequiresRoute: true})

	for alias, canonical := range map[string]flow.ActionKind{
		"browser.navigate":           flow.ActionNavigate,
		"browser.click":              flow.ActionClick,
		"browser.type":               flow.ActionTypeText,
		"browser.select":             flow.ActionSelect,
		"browser.scroll":             flow.ActionScroll,
		"browser.wait_for_element":   flow.ActionWait,
		"browser.wait_for_condition": flow.ActionWait,
	} {
		reg.Register(tool.Manifest{Name: alias, SupportedKinds: []flow.ActionKind{canonical}, RequiresRoute: true})
	}
}
