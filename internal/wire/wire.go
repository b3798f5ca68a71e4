// Package wire declares the page-automation wire protocol Action Primitives
// (C3) speak against — the CDP-style framing itself is an external
// collaborator and is not implemented here. Client is the contract;
// Fake is an in-memory stand-in used by every package's tests.
package wire

import "context"

// Route addresses a single frame within a browser session.
type Route struct {
	SessionID string
	PageID    string
	FrameID   string
}

// PostSignals summarizes page activity observed during a command, used to
// populate ActionReport.PostSignals.
type PostSignals struct {
	DomMutationCount int
	NetworkRequests  int
	ConsoleMessages  []string
	URLAfter         string
	TitleAfter       string
}

// Selector is the wire-level form of an AnchorDescriptor, already resolved
// to one of its three locating strategies.
type Selector struct {
	CSS       string
	AriaRole  string
	AriaName  string
	TextMatch string
	ExactText bool
}

// Client is the minimal command surface Action Primitives need from a page.
// A concrete CDP implementation lives outside this module's scope; callers
// inject whichever Client they have (a real wire bridge in production, Fake
// in tests).
type Client interface {
	Navigate(ctx context.Context, route Route, url string) (PostSignals, error)
	Click(ctx context.Context, route Route, sel Selector) (PostSignals, error)
	TypeText(ctx context.Context, route Route, sel Selector, text string, submit bool) (PostSignals, error)
	Select(ctx context.Context, route Route, sel Selector, option string, method string) (PostSignals, error)
	Scroll(ctx context.Context, route Route, target string, behavior string) (PostSignals, error)
	Evaluate(ctx context.Context, route Route, expr string) (interface{}, error)
	QuerySelector(ctx context.Context, route Route, sel Selector) (found bool, err error)
	WaitForIdle(ctx context.Context, route Route, quietMs int) error
}
