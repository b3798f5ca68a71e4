package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brennhill/soulbrowser-agent/internal/flow"
	"github.com/brennhill/soulbrowser-agent/internal/wire"
)

func TestDefaultGateValidator_PassesWhenConditionsHold(t *testing.T) {
	t.Parallel()
	client := wire.NewFake()
	client.QueryFound = true
	client.EvaluateResult = "https://example.test/done"

	gate := DefaultGateValidator{}
	err := gate.Validate(context.Background(), client, wire.Route{}, flow.ExpectSpec{
		DOMSelectorPresent: "#done",
		URLMatches:         "done",
		TimeoutMs:          200,
	})
	require.NoError(t, err)
}

func TestDefaultGateValidator_FailsWhenSelectorNeverAppears(t *testing.T) {
	t.Parallel()
	client := wire.NewFake()
	client.QueryFound = false

	gate := DefaultGateValidator{}
	err := gate.Validate(context.Background(), client, wire.Route{}, flow.ExpectSpec{
		DOMSelectorPresent: "#missing",
		TimeoutMs:          60,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "gate_error")
}

func TestDefaultGateValidator_NoConditionsAlwaysPasses(t *testing.T) {
	t.Parallel()
	client := wire.NewFake()
	gate := DefaultGateValidator{}
	err := gate.Validate(context.Background(), client, wire.Route{}, flow.ExpectSpec{})
	require.NoError(t, err)
}
