package action

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brennhill/soulbrowser-agent/internal/clock"
	"github.com/brennhill/soulbrowser-agent/internal/wire"
)

func newTestCtx(t *testing.T, client *wire.Fake) ExecCtx {
	t.Helper()
	return ExecCtx{
		Ctx:      context.Background(),
		Route:    wire.Route{SessionID: "s1", PageID: "p1"},
		ActionID: "a1",
		Client:   client,
		Clock:    clock.NewFake(0),
	}
}

func TestNavigate_Success(t *testing.T) {
	t.Parallel()
	client := wire.NewFake()
	ec := newTestCtx(t, client)

	report := Navigate(ec, "https://example.com", WaitDomReady)
	require.True(t, report.OK)
	require.GreaterOrEqual(t, report.FinishedAt, report.StartedAt)
	require.Equal(t, report.FinishedAt-report.StartedAt, report.LatencyMs)
	require.Len(t, client.Calls, 1)
	require.Equal(t, "Navigate", client.Calls[0].Method)
}

func TestNavigate_RejectsURLWithoutOrigin(t *testing.T) {
	t.Parallel()
	client := wire.NewFake()
	ec := newTestCtx(t, client)

	for _, url := range []string{"", "not a url", "data:text/html,hi", "/relative/path"} {
		report := Navigate(ec, url, WaitNone)
		require.False(t, report.OK, "url %q should be rejected", url)
		require.Contains(t, report.Err, "origin")
	}
	require.Empty(t, client.Calls)
}

func TestNavigate_WireError(t *testing.T) {
	t.Parallel()
	client := wire.NewFake()
	client.NavigateErr = wire.ErrNotFound
	ec := newTestCtx(t, client)

	report := Navigate(ec, "https://example.com", WaitNone)
	require.False(t, report.OK)
	require.NotEmpty(t, report.Err)
}

func TestClick_InvalidAnchorFailsValidation(t *testing.T) {
	t.Parallel()
	client := wire.NewFake()
	ec := newTestCtx(t, client)

	report := Click(ec, AnchorDescriptor{Kind: AnchorCSS, CSS: ""}, WaitNone)
	require.False(t, report.OK)
	require.Empty(t, client.Calls)
}

func TestClick_AnchorNotFoundClassifiedAsValidation(t *testing.T) {
	t.Parallel()
	client := wire.NewFake()
	client.ClickErr = wire.ErrNotFound
	ec := newTestCtx(t, client)

	report := Click(ec, AnchorDescriptor{Kind: AnchorCSS, CSS: "#submit"}, WaitNone)
	require.False(t, report.OK)
	require.Contains(t, report.Err, "anchor not found")
}

func TestWait_SucceedsBeforeTimeout(t *testing.T) {
	t.Parallel()
	client := wire.NewFake()
	ec := newTestCtx(t, client)

	calls := 0
	cond := func(ctx context.Context, c wire.Client, r wire.Route) (bool, error) {
		calls++
		return calls >= 2, nil
	}

	report := Wait(ec, cond, 2000)
	require.True(t, report.OK)
	require.Equal(t, 2, calls)
}

func TestWait_TimesOut(t *testing.T) {
	t.Parallel()
	client := wire.NewFake()
	ec := newTestCtx(t, client)

	cond := func(ctx context.Context, c wire.Client, r wire.Route) (bool, error) {
		return false, nil
	}

	report := Wait(ec, cond, 60)
	require.False(t, report.OK)
	require.Contains(t, report.Err, "timeout")
}

func TestWait_CancelledContextFailsFast(t *testing.T) {
	t.Parallel()
	client := wire.NewFake()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ec := ExecCtx{Ctx: ctx, Client: client, Clock: clock.NewFake(0)}

	cond := func(ctx context.Context, c wire.Client, r wire.Route) (bool, error) {
		return false, nil
	}

	report := Wait(ec, cond, 5000)
	require.False(t, report.OK)
}

func TestParseAnchor(t *testing.T) {
	t.Parallel()
	require.Equal(t, AnchorDescriptor{Kind: AnchorCSS, CSS: "#id"}, ParseAnchor("#id"))
	require.Equal(t, AnchorDescriptor{Kind: AnchorTextMatch, Content: "Submit"}, ParseAnchor("text=Submit"))
	require.Equal(t, AnchorDescriptor{Kind: AnchorAria, AriaRole: "button", AriaName: "Submit"}, ParseAnchor("role=button:Submit"))
}

func TestAwaitTier_IdleUsesPolicyQuietMs(t *testing.T) {
	t.Parallel()
	client := wire.NewFake()
	ec := newTestCtx(t, client)
	ec.PolicyView = PolicyView{IdleQuietMs: 750}

	err := awaitTier(ec.Ctx, ec, WaitIdle)
	require.NoError(t, err)
	require.Len(t, client.Calls, 1)
	require.Equal(t, "WaitForIdle", client.Calls[0].Method)
	require.Equal(t, 750, client.Calls[0].Args["quiet_ms"])
}
