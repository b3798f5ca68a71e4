package action

import (
	"context"
	"fmt"
	"time"

	"github.com/brennhill/soulbrowser-agent/internal/soulerr"
	"github.com/brennhill/soulbrowser-agent/internal/util"
	"github.com/brennhill/soulbrowser-agent/internal/wire"
)

// checkCancelled returns a cancellation error if ctx is done. Primitives
// call it before each wait and before issuing any wire command.
func checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return soulerr.Wrap(soulerr.Timeout, "action cancelled before dispatch", ctx.Err())
	default:
		return nil
	}
}

// awaitTier blocks for whatever WaitTier calls for, after the primitive's
// own wire command has returned.
func awaitTier(ctx context.Context, ec ExecCtx, tier WaitTier) error {
	switch tier {
	case WaitNone:
		return nil
	case WaitDomReady:
		return nil // wire commands only return once the DOM mutation settles
	case WaitIdle:
		quiet := ec.PolicyView.IdleQuietMs
		if quiet <= 0 {
			quiet = IdleQuietMs
		}
		if err := checkCancelled(ctx); err != nil {
			return err
		}
		return ec.Client.WaitForIdle(ctx, ec.Route, quiet)
	default:
		return nil
	}
}

// Navigate loads url in the route's frame. The url must carry a resolvable
// origin; data:/blob:-only and scheme-less strings never reach the wire.
func Navigate(ec ExecCtx, url string, tier WaitTier) ActionReport {
	rb := newReport(ec.Clock.NowMs(), ec.Clock)
	if util.ExtractOrigin(url) == "" {
		return rb.fail(soulerr.New(soulerr.ValidationFailed, "navigate url has no resolvable origin: "+url))
	}
	if err := checkCancelled(ec.Ctx); err != nil {
		return rb.fail(err)
	}
	signals, err := ec.Client.Navigate(ec.Ctx, ec.Route, url)
	if err != nil {
		return rb.fail(soulerr.Wrap(soulerr.ActionError, "navigate failed", err))
	}
	if err := awaitTier(ec.Ctx, ec, tier); err != nil {
		return rb.fail(soulerr.Wrap(soulerr.ActionError, "navigate wait failed", err))
	}
	return rb.ok(signals)
}

// Click resolves anchor and clicks it.
func Click(ec ExecCtx, anchor AnchorDescriptor, tier WaitTier) ActionReport {
	rb := newReport(ec.Clock.NowMs(), ec.Clock)
	if err := anchor.Validate(); err != nil {
		return rb.fail(soulerr.Wrap(soulerr.ValidationFailed, "invalid anchor", err))
	}
	if err := checkCancelled(ec.Ctx); err != nil {
		return rb.fail(err)
	}
	sel := anchor.toWireSelector()
	signals, err := ec.Client.Click(ec.Ctx, ec.Route, sel)
	if err != nil {
		return rb.fail(classifyWireErr("click", err))
	}
	if err := awaitTier(ec.Ctx, ec, tier); err != nil {
		return rb.fail(soulerr.Wrap(soulerr.ActionError, "click wait failed", err))
	}
	return rb.ok(signals)
}

// TypeText resolves anchor and types text into it, optionally submitting.
func TypeText(ec ExecCtx, anchor AnchorDescriptor, text string, submit bool, tier WaitTier) ActionReport {
	rb := newReport(ec.Clock.NowMs(), ec.Clock)
	if err := anchor.Validate(); err != nil {
		return rb.fail(soulerr.Wrap(soulerr.ValidationFailed, "invalid anchor", err))
	}
	if err := checkCancelled(ec.Ctx); err != nil {
		return rb.fail(err)
	}
	sel := anchor.toWireSelector()
	signals, err := ec.Client.TypeText(ec.Ctx, ec.Route, sel, text, submit)
	if err != nil {
		return rb.fail(classifyWireErr("type", err))
	}
	if err := awaitTier(ec.Ctx, ec, tier); err != nil {
		return rb.fail(soulerr.Wrap(soulerr.ActionError, "type wait failed", err))
	}
	return rb.ok(signals)
}

// Select resolves anchor and chooses option using method ("value"|"label"|"index").
func Select(ec ExecCtx, anchor AnchorDescriptor, option string, method string, tier WaitTier) ActionReport {
	rb := newReport(ec.Clock.NowMs(), ec.Clock)
	if err := anchor.Validate(); err != nil {
		return rb.fail(soulerr.Wrap(soulerr.ValidationFailed, "invalid anchor", err))
	}
	if err := checkCancelled(ec.Ctx); err != nil {
		return rb.fail(err)
	}
	sel := anchor.toWireSelector()
	signals, err := ec.Client.Select(ec.Ctx, ec.Route, sel, option, method)
	if err != nil {
		return rb.fail(classifyWireErr("select", err))
	}
	if err := awaitTier(ec.Ctx, ec, tier); err != nil {
		return rb.fail(soulerr.Wrap(soulerr.ActionError, "select wait failed", err))
	}
	return rb.ok(signals)
}

// Scroll moves target into view using the given behavior ("smooth"|"auto").
func Scroll(ec ExecCtx, target string, behavior string, tier WaitTier) ActionReport {
	rb := newReport(ec.Clock.NowMs(), ec.Clock)
	if err := checkCancelled(ec.Ctx); err != nil {
		return rb.fail(err)
	}
	signals, err := ec.Client.Scroll(ec.Ctx, ec.Route, target, behavior)
	if err != nil {
		return rb.fail(soulerr.Wrap(soulerr.ActionError, "scroll failed", err))
	}
	if err := awaitTier(ec.Ctx, ec, tier); err != nil {
		return rb.fail(soulerr.Wrap(soulerr.ActionError, "scroll wait failed", err))
	}
	return rb.ok(signals)
}

// WaitCondition is a predicate polled by Wait; it should be side-effect
// free other than the wire.Client read it performs.
type WaitCondition func(ctx context.Context, client wire.Client, route wire.Route) (bool, error)

// pollIntervals are the fixed probe spacings used by Wait, matching the
// capped-exponential shape used for retry backoff elsewhere in this module
// but bounded much lower since a wait condition is usually cheap to check.
var pollIntervals = []time.Duration{
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

// Wait polls condition until it's true or timeoutMs elapses.
func Wait(ec ExecCtx, condition WaitCondition, timeoutMs int) ActionReport {
	rb := newReport(ec.Clock.NowMs(), ec.Clock)
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)

	attempt := 0
	for {
		if err := checkCancelled(ec.Ctx); err != nil {
			return rb.fail(err)
		}
		done, err := condition(ec.Ctx, ec.Client, ec.Route)
		if err != nil {
			return rb.fail(soulerr.Wrap(soulerr.ActionError, "wait condition failed", err))
		}
		if done {
			return rb.ok(wire.PostSignals{})
		}
		if time.Now().After(deadline) {
			return rb.fail(soulerr.New(soulerr.Timeout, fmt.Sprintf("wait condition not satisfied within %dms", timeoutMs)))
		}
		idx := attempt
		if idx >= len(pollIntervals) {
			idx = len(pollIntervals) - 1
		}
		select {
		case <-ec.Ctx.Done():
			return rb.fail(soulerr.Wrap(soulerr.Timeout, "wait cancelled", ec.Ctx.Err()))
		case <-time.After(pollIntervals[idx]):
		}
		attempt++
	}
}

// classifyWireErr maps a raw wire error onto the primitive-level error
// taxonomy: anchor resolution failures surface as validation errors,
// everything else stays an action error.
func classifyWireErr(verb string, err error) *soulerr.Error {
	switch err {
	case wire.ErrNotFound:
		return soulerr.Wrap(soulerr.ValidationFailed, fmt.Sprintf("%s: anchor not found", verb), err)
	default:
		return soulerr.Wrap(soulerr.ActionError, fmt.Sprintf("%s failed", verb), err)
	}
}
