// Package action implements Action Primitives & Wait Tiers (C3): the
// minimal, stateless verb set executed against a page through internal/wire,
// each call producing a uniform ActionReport.
package action

import (
	"context"
	"fmt"

	"github.com/brennhill/soulbrowser-agent/internal/wire"
)

// WaitTier controls how long a primitive waits for the page to settle
// before returning.
type WaitTier string

const (
	WaitNone     WaitTier = "none"
	WaitDomReady WaitTier = "dom_ready"
	WaitIdle     WaitTier = "idle"
)

// DefaultWaitTier is used when a primitive's request omits one.
const DefaultWaitTier = WaitDomReady

// IdleQuietMs is the configurable network-quiet interval Idle waits for
// after DomReady.
const IdleQuietMs = 500

// AnchorKind discriminates AnchorDescriptor's three locating strategies.
type AnchorKind string

const (
	AnchorCSS       AnchorKind = "css"
	AnchorAria      AnchorKind = "aria"
	AnchorTextMatch AnchorKind = "text_match"
)

// AnchorDescriptor locates an element by exactly one strategy.
type AnchorDescriptor struct {
	Kind      AnchorKind
	CSS       string
	AriaRole  string
	AriaName  string
	Content   string
	Exact     bool
}

// Validate enforces the non-empty invariants for whichever strategy Kind
// selects.
func (a AnchorDescriptor) Validate() error {
	switch a.Kind {
	case AnchorCSS:
		if a.CSS == "" {
			return fmt.Errorf("css anchor requires a non-empty selector")
		}
	case AnchorAria:
		if a.AriaRole == "" || a.AriaName == "" {
			return fmt.Errorf("aria anchor requires both role and name")
		}
	case AnchorTextMatch:
		if a.Content == "" {
			return fmt.Errorf("text_match anchor requires non-empty content")
		}
	default:
		return fmt.Errorf("unknown anchor kind %q", a.Kind)
	}
	return nil
}

// toWireSelector converts a validated AnchorDescriptor into the wire-level
// Selector its strategy maps onto.
func (a AnchorDescriptor) toWireSelector() wire.Selector {
	switch a.Kind {
	case AnchorCSS:
		return wire.Selector{CSS: a.CSS}
	case AnchorAria:
		return wire.Selector{AriaRole: a.AriaRole, AriaName: a.AriaName}
	case AnchorTextMatch:
		return wire.Selector{TextMatch: a.Content, ExactText: a.Exact}
	default:
		return wire.Selector{}
	}
}

// ExecCtx is passed to every primitive call. Cancellation must be
// checked before each wait and before issuing any wire command.
type ExecCtx struct {
	Ctx        context.Context
	Route      wire.Route
	PolicyView PolicyView
	ActionID   string
	Client     wire.Client
	Clock      Clock
}

// PolicyView exposes the slice of a PolicySnapshot primitives need, kept
// narrow so internal/action doesn't import internal/policy directly.
type PolicyView struct {
	IdleQuietMs int
}

// Clock reports monotonic milliseconds, mirroring internal/clock.Clock so
// this package doesn't need to import it directly either.
type Clock interface {
	NowMs() int64
}

// SelfHeal records that an anchor needed a fallback resolution strategy.
type SelfHeal struct {
	OriginalAnchor AnchorDescriptor
	Strategy       string
	Detail         string
}

// ActionReport is the uniform result of every primitive call.
type ActionReport struct {
	OK          bool
	StartedAt   int64
	FinishedAt  int64
	LatencyMs   int64
	PreCheck    string
	PostSignals wire.PostSignals
	SelfHeal    *SelfHeal
	Err         string
}

func newReport(startedAt int64, clk Clock) *reportBuilder {
	return &reportBuilder{startedAt: startedAt, clock: clk}
}

type reportBuilder struct {
	startedAt int64
	clock     Clock
}

func (b *reportBuilder) ok(signals wire.PostSignals) ActionReport {
	finished := b.clock.NowMs()
	return ActionReport{
		OK:          true,
		StartedAt:   b.startedAt,
		FinishedAt:  finished,
		LatencyMs:   finished - b.startedAt,
		PostSignals: signals,
	}
}

func (b *reportBuilder) fail(err error) ActionReport {
	finished := b.clock.NowMs()
	return ActionReport{
		OK:         false,
		StartedAt:  b.startedAt,
		FinishedAt: finished,
		LatencyMs:  finished - b.startedAt,
		Err:        err.Error(),
	}
}
