// Package flow defines the Flow/FlowNode data model compiled by the
// Plan-to-Flow Compiler (C6) and driven by the Flow Executor (C7). Every
// tagged variant here follows the same shape: a Kind string discriminant
// plus kind-specific fields, validated by a Validate() method.
package flow

import (
	"fmt"

	"github.com/brennhill/soulbrowser-agent/internal/action"
)

// ExecRoute is the global addressing tuple used to route every primitive
// call and dispatch request.
type ExecRoute struct {
	SessionID string
	PageID    string
	FrameID   string
}

// ActionKind discriminates ActionType's seven verbs.
type ActionKind string

const (
	ActionNavigate ActionKind = "navigate"
	ActionClick    ActionKind = "click"
	ActionTypeText ActionKind = "type_text"
	ActionSelect   ActionKind = "select"
	ActionScroll   ActionKind = "scroll"
	ActionWait     ActionKind = "wait"
	ActionCustom   ActionKind = "custom"
)

// ActionType is the tagged variant driving one Action FlowNode.
type ActionType struct {
	Kind ActionKind

	// Navigate
	URL string

	// Click / TypeText / Select
	Anchor action.AnchorDescriptor

	// TypeText
	Text   string
	Submit bool

	// Select
	Option string
	Method string

	// Scroll
	Target   string
	Behavior string

	// Wait
	WaitCondition string
	TimeoutMs     int

	// Custom
	CustomKind   string
	CustomParams map[string]interface{}

	// shared by Navigate/Click/TypeText/Select/Scroll
	WaitTier action.WaitTier
}

// Validate checks the invariants specific to Kind.
func (a ActionType) Validate() error {
	switch a.Kind {
	case ActionNavigate:
		if a.URL == "" {
			return fmt.Errorf("navigate requires a non-empty url")
		}
	case ActionClick, ActionTypeText, ActionSelect:
		if err := a.Anchor.Validate(); err != nil {
			return fmt.Errorf("%s: %w", a.Kind, err)
		}
		if a.Kind == ActionSelect && a.Option == "" {
			return fmt.Errorf("select requires a non-empty option")
		}
	case ActionScroll:
		if a.Target == "" {
			return fmt.Errorf("scroll requires a non-empty target")
		}
	case ActionWait:
		if a.WaitCondition == "" {
			return fmt.Errorf("wait requires a non-empty condition")
		}
		if a.TimeoutMs <= 0 {
			return fmt.Errorf("wait requires timeout_ms > 0")
		}
	case ActionCustom:
		if a.CustomKind == "" {
			return fmt.Errorf("custom requires a non-empty kind")
		}
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
	return nil
}

// ExpectSpec glues together DOM/URL/Title/Network post-action verification
// gates.
type ExpectSpec struct {
	DOMSelectorPresent string
	URLMatches         string
	TitleMatches       string
	NetworkIdleMs      int
	TimeoutMs          int
}
