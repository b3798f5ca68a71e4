package flow

import (
	"fmt"

	"github.com/brennhill/soulbrowser-agent/internal/action"
)

// PlanLocatorKind mirrors action.AnchorKind at the planner boundary, before
// a PlanStep has been compiled into a concrete AnchorDescriptor.
type PlanLocatorKind string

const (
	PlanLocatorCSS  PlanLocatorKind = "css"
	PlanLocatorAria PlanLocatorKind = "aria"
	PlanLocatorText PlanLocatorKind = "text"
)

// PlanLocator is a plan step's locator before compilation validates it
// against its Kind's required fields.
type PlanLocator struct {
	Kind     PlanLocatorKind
	CSS      string
	AriaRole string
	AriaName string
	Text     string
	Exact    bool
}

// PlanWaitMode is the planner-facing wait mode, mapped 1:1 onto
// action.WaitTier by the compiler.
type PlanWaitMode string

const (
	PlanWaitNone     PlanWaitMode = "none"
	PlanWaitDomReady PlanWaitMode = "dom_ready"
	PlanWaitIdle     PlanWaitMode = "idle"
)

// ValidationKind discriminates a plan step's post-action validations.
type ValidationKind string

const (
	ValidationDOM      ValidationKind = "dom"
	ValidationURL      ValidationKind = "url"
	ValidationTitle    ValidationKind = "title"
	ValidationNetwork  ValidationKind = "network"
	ValidationDuration ValidationKind = "duration"
)

// PlanValidation is one post-action check a plan step asks for; the
// compiler folds every validation attached to a step into a single
// ExpectSpec.
type PlanValidation struct {
	Kind          ValidationKind
	Selector      string
	Pattern       string
	NetworkIdleMs int
	DurationMs    int
}

// PlanStep is one unit of planner output.
type PlanStep struct {
	ID   string
	Tool ActionKind

	URL          string
	Locator      PlanLocator
	Text         string
	Submit       bool
	Option       string
	Method       string
	Target       string
	Behavior     string
	WaitSpec     string
	CustomKind   string
	CustomParams map[string]interface{}

	WaitMode    PlanWaitMode
	Validations []PlanValidation

	// TimeoutMs is the step's own options timeout; zero means "use the
	// compiler's default".
	TimeoutMs int
}

// Plan is the planner's output, the Plan-to-Flow Compiler's sole input
//.
type Plan struct {
	Steps          []PlanStep
	Rationale      string
	RiskAssessment string
	VendorContext  map[string]interface{}
}

func locatorToAnchor(loc PlanLocator) (action.AnchorDescriptor, error) {
	var anchor action.AnchorDescriptor
	switch loc.Kind {
	case PlanLocatorCSS:
		anchor = action.AnchorDescriptor{Kind: action.AnchorCSS, CSS: loc.CSS}
	case PlanLocatorAria:
		anchor = action.AnchorDescriptor{Kind: action.AnchorAria, AriaRole: loc.AriaRole, AriaName: loc.AriaName}
	case PlanLocatorText:
		anchor = action.AnchorDescriptor{Kind: action.AnchorTextMatch, Content: loc.Text, Exact: loc.Exact}
	default:
		return action.AnchorDescriptor{}, fmt.Errorf("unsupported locator kind %q", loc.Kind)
	}
	if err := anchor.Validate(); err != nil {
		return action.AnchorDescriptor{}, err
	}
	return anchor, nil
}
