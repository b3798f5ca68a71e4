package tool

import (
	"context"

	"github.com/brennhill/soulbrowser-agent/internal/flow"
	"github.com/brennhill/soulbrowser-agent/internal/soulerr"
)

// AuthzRequest is the pre-flight authorization question asked before a tool
// call reaches the Scheduler: can this tool run against this route.
type AuthzRequest struct {
	ToolName string
	Route    flow.ExecRoute
	TaskID   string
}

// Decision is an Authorizer's verdict.
type Decision struct {
	Allow  bool
	Reason string
}

// Authorizer is the pre-flight policy decision point: a single allow/deny
// check by tool name and route, consulted before a call reaches the
// Scheduler. Full identity/consent/quota enforcement lives outside this
// module.
type Authorizer interface {
	Decide(ctx context.Context, req AuthzRequest) (Decision, error)
}

// AllowAll authorizes every request; it's the default when no policy has
// been configured.
type AllowAll struct{}

func (AllowAll) Decide(ctx context.Context, req AuthzRequest) (Decision, error) {
	return Decision{Allow: true}, nil
}

// DenyList refuses requests whose tool name appears in Denied, allowing
// everything else.
type DenyList struct {
	Denied map[string]struct{}
}

func (d DenyList) Decide(ctx context.Context, req AuthzRequest) (Decision, error) {
	if _, denied := d.Denied[req.ToolName]; denied {
		return Decision{Allow: false, Reason: "tool is on the deny list"}, nil
	}
	return Decision{Allow: true}, nil
}

// Authorize runs authz and turns a deny verdict into a PolicyDenied error,
// matching the error taxonomy every other component uses.
func Authorize(ctx context.Context, az Authorizer, req AuthzRequest) error {
	decision, err := az.Decide(ctx, req)
	if err != nil {
		return soulerr.Wrap(soulerr.Internal, "authorization check failed", err)
	}
	if !decision.Allow {
		reason := decision.Reason
		if reason == "" {
			reason = "denied by policy"
		}
		return soulerr.New(soulerr.PolicyDenied, reason)
	}
	return nil
}
