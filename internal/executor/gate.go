package executor

import (
	"context"
	"strings"
	"time"

	"github.com/brennhill/soulbrowser-agent/internal/flow"
	"github.com/brennhill/soulbrowser-agent/internal/soulerr"
	"github.com/brennhill/soulbrowser-agent/internal/wire"
)

// DefaultGateValidator is the executor's built-in GateValidator. It polls
// every condition set on an
// ExpectSpec, the same bounded-interval shape Action Primitives use for
// wait_for, and fails with GateError naming the first condition still
// unsatisfied when its timeout elapses.
type DefaultGateValidator struct{}

// gatePollIntervals mirrors action.pollIntervals; kept as its own copy so
// this package doesn't need to import action's unexported slice.
var gatePollIntervals = []time.Duration{
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

// Validate polls expect's conditions until they all hold or the spec's
// timeout elapses. An ExpectSpec with no conditions set always passes.
func (DefaultGateValidator) Validate(ctx context.Context, client wire.Client, route wire.Route, expect flow.ExpectSpec) error {
	timeoutMs := expect.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = 5_000
	}
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)

	attempt := 0
	for {
		ok, failing, err := evalExpectOnce(ctx, client, route, expect)
		if err != nil {
			return soulerr.Wrap(soulerr.GateError, "gate condition check failed", err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return soulerr.New(soulerr.GateError, "gate condition not satisfied: "+failing)
		}
		idx := attempt
		if idx >= len(gatePollIntervals) {
			idx = len(gatePollIntervals) - 1
		}
		select {
		case <-ctx.Done():
			return soulerr.Wrap(soulerr.GateError, "gate validation cancelled", ctx.Err())
		case <-time.After(gatePollIntervals[idx]):
		}
		attempt++
	}
}

// evalExpectOnce checks every non-empty condition on expect a single time,
// returning the name of the first unsatisfied one for diagnostics.
func evalExpectOnce(ctx context.Context, client wire.Client, route wire.Route, expect flow.ExpectSpec) (bool, string, error) {
	if expect.DOMSelectorPresent != "" {
		found, err := client.QuerySelector(ctx, route, wire.Selector{CSS: expect.DOMSelectorPresent})
		if err != nil {
			return false, "", err
		}
		if !found {
			return false, "dom_selector_present:" + expect.DOMSelectorPresent, nil
		}
	}
	if expect.URLMatches != "" {
		result, err := client.Evaluate(ctx, route, "location.href")
		if err != nil {
			return false, "", err
		}
		url, _ := result.(string)
		if !urlMatches(url, expect.URLMatches) {
			return false, "url_matches:" + expect.URLMatches, nil
		}
	}
	if expect.TitleMatches != "" {
		result, err := client.Evaluate(ctx, route, "document.title")
		if err != nil {
			return false, "", err
		}
		title, _ := result.(string)
		if !strings.Contains(title, expect.TitleMatches) {
			return false, "title_matches:" + expect.TitleMatches, nil
		}
	}
	if expect.NetworkIdleMs > 0 {
		if err := client.WaitForIdle(ctx, route, expect.NetworkIdleMs); err != nil {
			return false, "network_idle", err
		}
	}
	return true, "", nil
}
