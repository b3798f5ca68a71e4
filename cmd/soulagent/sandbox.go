package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/brennhill/soulbrowser-agent/internal/action"
	"github.com/brennhill/soulbrowser-agent/internal/executor"
	"github.com/brennhill/soulbrowser-agent/internal/flow"
	"github.com/brennhill/soulbrowser-agent/internal/soulerr"
	"github.com/brennhill/soulbrowser-agent/internal/wire"
)

// toolAnchor is the wire-level shape of an action.AnchorDescriptor as it
// arrives over the MCP tool-call surface.
type toolAnchor struct {
	Kind     string `json:"kind"`
	CSS      string `json:"css,omitempty"`
	AriaRole string `json:"aria_role,omitempty"`
	AriaName string `json:"aria_name,omitempty"`
	Content  string `json:"content,omitempty"`
	Exact    bool   `json:"exact,omitempty"`
}

func (a toolAnchor) toAnchor() action.AnchorDescriptor {
	switch a.Kind {
	case "aria":
		return action.AnchorDescriptor{Kind: action.AnchorAria, AriaRole: a.AriaRole, AriaName: a.AriaName}
	case "text_match":
		return action.AnchorDescriptor{Kind: action.AnchorTextMatch, Content: a.Content, Exact: a.Exact}
	default:
		return action.AnchorDescriptor{Kind: action.AnchorCSS, CSS: a.CSS}
	}
}

// toolParams is the union of every field any one of the seven required
// tool-call surface tools accepts. Unused fields for a given tool are
// simply left at their zero value.
type toolParams struct {
	URL       string     `json:"url,omitempty"`
	Anchor    toolAnchor `json:"anchor,omitempty"`
	Text      string     `json:"text,omitempty"`
	Submit    bool       `json:"submit,omitempty"`
	Option    string     `json:"option,omitempty"`
	Method    string     `json:"method,omitempty"`
	Target    string     `json:"target,omitempty"`
	Behavior  string     `json:"behavior,omitempty"`
	WaitTier  string     `json:"wait_tier,omitempty"`
	Condition string     `json:"condition,omitempty"`
	TimeoutMs int        `json:"timeout_ms,omitempty"`
}

func decodeParams(params interface{}) (toolParams, error) {
	var p toolParams
	switch v := params.(type) {
	case nil:
		return p, nil
	case json.RawMessage:
		if len(v) == 0 {
			return p, nil
		}
		if err := json.Unmarshal(v, &p); err != nil {
			return p, err
		}
	case []byte:
		if len(v) == 0 {
			return p, nil
		}
		if err := json.Unmarshal(v, &p); err != nil {
			return p, err
		}
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return p, err
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return p, err
		}
	}
	return p, nil
}

func waitTierOf(s string) action.WaitTier {
	switch s {
	case "none":
		return action.WaitNone
	case "idle":
		return action.WaitIdle
	default:
		return action.WaitDomReady
	}
}

// canonicalToolName maps a legacy "browser.*" alias onto its canonical name
//.
func canonicalToolName(name string) string {
	if rest, ok := strings.CutPrefix(name, "browser."); ok {
		switch rest {
		case "navigate":
			return "navigate-to-url"
		case "click":
			return "click"
		case "type":
			return "type-text"
		case "select":
			return "select-option"
		case "scroll":
			return "scroll-page"
		case "wait_for_element":
			return "wait-for-element"
		case "wait_for_condition":
			return "wait-for-condition"
		default:
			return name
		}
	}
	return name
}

// BrowserSandbox implements tool.SandboxRunner by running the matching
// Action Primitive against a wire.Client. It is the CLI's binding between
// the open-ended tool-call surface and C3 — the CDP-level framing
// underneath client remains an external collaborator.
type BrowserSandbox struct {
	Client     wire.Client
	Clock      action.Clock
	PolicyView action.PolicyView
}

// Run executes toolName (canonicalized) against route with params decoded
// from the MCP tool-call's raw JSON arguments.
func (s *BrowserSandbox) Run(ctx context.Context, toolName string, route flow.ExecRoute, params interface{}) (interface{}, error) {
	p, err := decodeParams(params)
	if err != nil {
		return nil, soulerr.Wrap(soulerr.InvalidRequest, "failed to decode tool params", err)
	}

	ec := action.ExecCtx{
		Ctx:        ctx,
		Route:      wire.Route{SessionID: route.SessionID, PageID: route.PageID, FrameID: route.FrameID},
		PolicyView: s.PolicyView,
		ActionID:   toolName,
		Client:     s.Client,
		Clock:      s.Clock,
	}
	tier := waitTierOf(p.WaitTier)

	var report action.ActionReport
	switch canonicalToolName(toolName) {
	case "navigate-to-url":
		report = action.Navigate(ec, p.URL, tier)
	case "click":
		report = action.Click(ec, p.Anchor.toAnchor(), tier)
	case "type-text":
		report = action.TypeText(ec, p.Anchor.toAnchor(), p.Text, p.Submit, tier)
	case "select-option":
		report = action.Select(ec, p.Anchor.toAnchor(), p.Option, p.Method, tier)
	case "scroll-page":
		report = action.Scroll(ec, p.Target, p.Behavior, tier)
	case "wait-for-element":
		cond := waitForElementCondition(p.Anchor)
		report = action.Wait(ec, cond, timeoutOrDefault(p.TimeoutMs))
	case "wait-for-condition":
		report = action.Wait(ec, executor.WaitSpecCondition(p.Condition), timeoutOrDefault(p.TimeoutMs))
	default:
		return nil, soulerr.New(soulerr.InvalidRequest, fmt.Sprintf("unknown tool %q", toolName))
	}

	if !report.OK {
		return nil, soulerr.New(soulerr.ActionError, report.Err)
	}
	return report, nil
}

func timeoutOrDefault(ms int) int {
	if ms <= 0 {
		return 5_000
	}
	return ms
}

func waitForElementCondition(a toolAnchor) action.WaitCondition {
	selector := a.CSS
	if selector == "" {
		selector = a.Content
	}
	return func(ctx context.Context, client wire.Client, route wire.Route) (bool, error) {
		return client.QuerySelector(ctx, route, wire.Selector{CSS: selector, AriaRole: a.AriaRole, AriaName: a.AriaName, TextMatch: a.Content, ExactText: a.Exact})
	}
}

