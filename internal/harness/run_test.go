package harness

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Pass(t *testing.T) {
	s, err := ParseScenario("valid.yaml", []byte(validScenario))
	require.NoError(t, err)

	result, err := Run(context.Background(), s, testRegistry(), RunOptions{})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 3)
	assert.Equal(t, "fetch-1", result.Trace[0].Flow)
	assert.Equal(t, "fetch-2", result.Trace[1].Flow)
	assert.Equal(t, "fetch-2", result.Trace[2].Flow)
	assert.Equal(t, 2, result.Trace[2].Step)
	assert.Equal(t, map[string]any{"value": "v:a"}, result.Trace[2].Args)
	assert.JSONEq(t, `{"ticks":1,"fetched":["v:a"],"failed":0}`, string(result.State))
}

func TestRun_UnfulfilledStepRecorded(t *testing.T) {
	s, err := ParseScenario("gap.yaml", []byte(`
name: meter_gap
description: "expects a follow-up that never comes"
target: meter
steps:
  - dispatch: Tick
    timeout: 50ms
    expect:
      - action: Tick
      - action: Fetched
  - dispatch: Tick
assertions:
  - type: trace_count
    action: Tick
    count: 2
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), s, testRegistry(), RunOptions{})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[0] Tick")
	assert.Contains(t, result.Errors[0], "[Fetched]")
}

func TestRun_AssertionFailure(t *testing.T) {
	s, err := ParseScenario("fail.yaml", []byte(`
name: meter_fail
description: "wrong final state"
target: meter
steps:
  - dispatch: Add
    args: { n: 2 }
assertions:
  - type: final_state
    expect: { ticks: 3 }
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), s, testRegistry(), RunOptions{})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "final_state")
}

func TestRun_FailedFetchBecomesAction(t *testing.T) {
	s, err := ParseScenario("failed.yaml", []byte(`
name: meter_fetch_failed
description: "middleware turns failures into actions"
target: meter
steps:
  - dispatch: Fetch
    expect:
      - action: FetchFailed
        args: { reason: "empty key" }
assertions:
  - type: final_state
    expect: { failed: 1 }
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), s, testRegistry(), RunOptions{Timeout: time.Second})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_UnknownTarget(t *testing.T) {
	s, err := ParseScenario("x.yaml", []byte(`
name: x
description: d
target: nope
steps: [{dispatch: Tick}]
`))
	require.NoError(t, err)

	_, err = Run(context.Background(), s, testRegistry(), RunOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownTarget))
	assert.Contains(t, err.Error(), "meter")
}

func TestRun_UndecodableAction(t *testing.T) {
	s, err := ParseScenario("x.yaml", []byte(`
name: x
description: d
target: meter
steps: [{dispatch: Explode}]
`))
	require.NoError(t, err)

	_, err = Run(context.Background(), s, testRegistry(), RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown action "Explode"`)
}

func TestRegistry(t *testing.T) {
	r := testRegistry()
	r.Register("other", meterFactory)

	assert.Equal(t, []string{"meter", "other"}, r.Names())
	_, ok := r.Lookup("meter")
	assert.True(t, ok)
	assert.Panics(t, func() { r.Register("meter", meterFactory) })
}

func TestDecodeArgs(t *testing.T) {
	a, err := DecodeArgs[Add](map[string]any{"n": 4})
	require.NoError(t, err)
	assert.Equal(t, Add{N: 4}, a)

	empty, err := DecodeArgs[Fetch](nil)
	require.NoError(t, err)
	assert.Equal(t, Fetch{}, empty)

	_, err = DecodeArgs[Add](map[string]any{"n": "four"})
	assert.Error(t, err)
}
