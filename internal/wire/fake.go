package wire

import (
	"context"
	"fmt"
	"sync"
)

// Fake is a deterministic in-memory Client for tests. Callers script
// responses by setting its exported fields (NavigateErr, ClickErr, ...,
// QueryFound, EvaluateResult, Signals), or rely on the zero-value defaults
// (every call succeeds with an empty PostSignals).
type Fake struct {
	mu sync.Mutex

	Calls []FakeCall

	NavigateErr error
	ClickErr    error
	TypeTextErr error
	SelectErr   error
	ScrollErr   error
	EvaluateErr error
	QueryFound  bool
	QueryErr    error
	WaitErr     error

	EvaluateResult interface{}
	Signals        PostSignals
}

// FakeCall records one invocation for assertions.
type FakeCall struct {
	Method string
	Route  Route
	Args   map[string]interface{}
}

func NewFake() *Fake {
	return &Fake{QueryFound: true}
}

func (f *Fake) record(method string, route Route, args map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, FakeCall{Method: method, Route: route, Args: args})
}

func (f *Fake) Navigate(ctx context.Context, route Route, url string) (PostSignals, error) {
	f.record("Navigate", route, map[string]interface{}{"url": url})
	if f.NavigateErr != nil {
		return PostSignals{}, f.NavigateErr
	}
	return f.Signals, nil
}

func (f *Fake) Click(ctx context.Context, route Route, sel Selector) (PostSignals, error) {
	f.record("Click", route, map[string]interface{}{"sel": sel})
	if f.ClickErr != nil {
		return PostSignals{}, f.ClickErr
	}
	return f.Signals, nil
}

func (f *Fake) TypeText(ctx context.Context, route Route, sel Selector, text string, submit bool) (PostSignals, error) {
	f.record("TypeText", route, map[string]interface{}{"sel": sel, "text": text, "submit": submit})
	if f.TypeTextErr != nil {
		return PostSignals{}, f.TypeTextErr
	}
	return f.Signals, nil
}

func (f *Fake) Select(ctx context.Context, route Route, sel Selector, option string, method string) (PostSignals, error) {
	f.record("Select", route, map[string]interface{}{"sel": sel, "option": option, "method": method})
	if f.SelectErr != nil {
		return PostSignals{}, f.SelectErr
	}
	return f.Signals, nil
}

func (f *Fake) Scroll(ctx context.Context, route Route, target string, behavior string) (PostSignals, error) {
	f.record("Scroll", route, map[string]interface{}{"target": target, "behavior": behavior})
	if f.ScrollErr != nil {
		return PostSignals{}, f.ScrollErr
	}
	return f.Signals, nil
}

func (f *Fake) Evaluate(ctx context.Context, route Route, expr string) (interface{}, error) {
	f.record("Evaluate", route, map[string]interface{}{"expr": expr})
	if f.EvaluateErr != nil {
		return nil, f.EvaluateErr
	}
	return f.EvaluateResult, nil
}

func (f *Fake) QuerySelector(ctx context.Context, route Route, sel Selector) (bool, error) {
	f.record("QuerySelector", route, map[string]interface{}{"sel": sel})
	if f.QueryErr != nil {
		return false, f.QueryErr
	}
	return f.QueryFound, nil
}

func (f *Fake) WaitForIdle(ctx context.Context, route Route, quietMs int) error {
	f.record("WaitForIdle", route, map[string]interface{}{"quiet_ms": quietMs})
	return f.WaitErr
}

// ErrNotFound is a stand-in wire-level error for an unresolved selector.
var ErrNotFound = fmt.Errorf("wire: element not found")
