package dispatch

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"promptcanvas/internal/imagery"
	"promptcanvas/internal/scene"
	"promptcanvas/internal/telemetry"
	"promptcanvas/internal/tools"
)

// countingRegistry holds one "tick" tool that records every invocation and
// one "fail" tool answering with code.
func countingRegistry(t *testing.T, code scene.ErrorCode) (*tools.Registry, *[]int) {
	t.Helper()
	var seen []int
	reg := tools.NewRegistry()
	reg.MustRegister(&tools.Tool{
		Name: "tick",
		Execute: func(ctx context.Context, args map[string]any) (scene.Envelope, error) {
			n, _ := args["n"].(int)
			seen = append(seen, n)
			return scene.Success("tick", map[string]int{"n": n}), nil
		},
	})
	reg.MustRegister(&tools.Tool{
		Name: "fail",
		Execute: func(ctx context.Context, args map[string]any) (scene.Envelope, error) {
			return scene.Failure(code), nil
		},
	})
	return reg, &seen
}

func ticks(n int) []scene.ToolCall {
	calls := make([]scene.ToolCall, n)
	for i := range calls {
		calls[i] = scene.ToolCall{Name: "tick", Arguments: map[string]any{"n": i + 1}}
	}
	return calls
}

func canvasDispatcher(cfg Config) *Dispatcher {
	img := imagery.Static{
		Results: map[string]string{"mountains": "https://img.example.com/404.jpg"},
		Valid:   map[string]bool{"https://img.example.com/ok.jpg": true},
	}
	v := tools.NewValidator(img, img, tools.WithLogger(zap.NewNop()))
	return New(tools.NewCanvasRegistry(v), cfg, WithLogger(zap.NewNop()))
}

func TestNoCallsIsNoToolMatch(t *testing.T) {
	d := canvasDispatcher(DefaultConfig())

	for _, calls := range [][]scene.ToolCall{nil, {}} {
		res := d.Dispatch(context.Background(), calls)
		assert.False(t, res.OK())
		assert.Equal(t, scene.ErrNoToolMatch, res.Error)
	}
}

func TestCeilingStopsInvocation(t *testing.T) {
	reg, seen := countingRegistry(t, scene.ErrBadCall)
	d := New(reg, DefaultConfig(), WithLogger(zap.NewNop()))

	res := d.Dispatch(context.Background(), ticks(12))
	require.True(t, res.OK())
	assert.Len(t, res.Actions, 10)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, *seen, "calls 11 and 12 must never run")
}

func TestCustomCeiling(t *testing.T) {
	reg, seen := countingRegistry(t, scene.ErrBadCall)
	d := New(reg, Config{MaxCallsPerTurn: 2}, WithLogger(zap.NewNop()))

	res := d.Dispatch(context.Background(), ticks(5))
	require.True(t, res.OK())
	assert.Len(t, res.Actions, 2)
	assert.Len(t, *seen, 2)
	assert.Equal(t, 2, d.Config().MaxCallsPerTurn)
	assert.Equal(t, DefaultMaxCallsPerTurn, New(reg, Config{}).Config().MaxCallsPerTurn)
}

func TestShortCircuitDiscardsSuccesses(t *testing.T) {
	reg, seen := countingRegistry(t, scene.ErrImageNotFound)
	d := New(reg, DefaultConfig(), WithLogger(zap.NewNop()))

	calls := append(ticks(3), scene.ToolCall{Name: "fail"}, scene.ToolCall{Name: "tick", Arguments: map[string]any{"n": 99}})
	res := d.Dispatch(context.Background(), calls)

	assert.False(t, res.OK())
	assert.Equal(t, scene.ErrImageNotFound, res.Error)
	assert.Empty(t, res.Actions)
	assert.Equal(t, []int{1, 2, 3}, *seen, "calls after the failure must never run")
}

func TestBackgroundThenBadImage(t *testing.T) {
	d := canvasDispatcher(DefaultConfig())

	res := d.Dispatch(context.Background(), []scene.ToolCall{
		{Name: "change_background", Arguments: map[string]any{"red": 10.0, "green": 20.0, "blue": 30.0}},
		{Name: "spawn_image", Arguments: map[string]any{"query": "mountains"}},
	})
	assert.False(t, res.OK())
	assert.Equal(t, scene.ErrImageNotFound, res.Error)
	assert.Nil(t, res.Actions)
}

func TestAggregatedActionsInOrder(t *testing.T) {
	d := canvasDispatcher(DefaultConfig())

	res := d.Dispatch(context.Background(), []scene.ToolCall{
		{Name: "change_background", Arguments: map[string]any{"red": 300.0, "green": -10.0, "blue": 128.0}},
		{Name: "spawn_text", Arguments: map[string]any{"content": "Hello"}},
		{Name: "spawn_image", Arguments: map[string]any{"url": "https://img.example.com/ok.jpg", "width": 5000.0}},
		{Name: "delete_elements", Arguments: map[string]any{"element_ids": []any{"abc12345"}}},
	})
	require.True(t, res.OK())
	require.Len(t, res.Actions, 4)

	assert.Equal(t, "change_background", res.Actions[0].Action)
	assert.Equal(t, scene.BackgroundPayload{R: 255, G: 0, B: 128}, res.Actions[0].Payload)
	assert.Equal(t, "spawn_text", res.Actions[1].Action)
	assert.Equal(t, "spawn_image", res.Actions[2].Action)
	assert.Equal(t, "1200px", res.Actions[2].Payload.(scene.ImagePayload).Width)
	assert.Equal(t, "delete_elements", res.Actions[3].Action)
}

func TestUnknownToolSkipped(t *testing.T) {
	d := canvasDispatcher(DefaultConfig())

	res := d.Dispatch(context.Background(), []scene.ToolCall{
		{Name: "make_coffee"},
		{Name: "change_background", Arguments: map[string]any{"blue": 255.0}},
	})
	require.True(t, res.OK())
	require.Len(t, res.Actions, 1)
	assert.Equal(t, "change_background", res.Actions[0].Action)

	res = d.Dispatch(context.Background(), []scene.ToolCall{{Name: "make_coffee"}})
	require.True(t, res.OK())
	assert.Empty(t, res.Actions)
}

func TestUnknownToolStrict(t *testing.T) {
	d := canvasDispatcher(Config{StrictUnknownTools: true})

	res := d.Dispatch(context.Background(), []scene.ToolCall{
		{Name: "change_background", Arguments: map[string]any{"blue": 255.0}},
		{Name: "make_coffee"},
	})
	assert.False(t, res.OK())
	assert.Equal(t, scene.ErrUnsupportedCommand, res.Error)
}

func TestUnsupportedRequestEndsTurn(t *testing.T) {
	d := canvasDispatcher(DefaultConfig())

	res := d.Dispatch(context.Background(), []scene.ToolCall{
		{Name: "spawn_text", Arguments: map[string]any{"content": "hi"}},
		{Name: "unsupported_request"},
	})
	assert.Equal(t, scene.ErrUnsupportedCommand, res.Error)
}

func TestMissingArgsIsBadCall(t *testing.T) {
	d := canvasDispatcher(DefaultConfig())

	res := d.Dispatch(context.Background(), []scene.ToolCall{{Name: "spawn_image"}})
	assert.Equal(t, scene.ErrBadCall, res.Error)

	res = d.Dispatch(context.Background(), []scene.ToolCall{{Name: "edit_text", Arguments: map[string]any{"color": "red"}}})
	assert.Equal(t, scene.ErrBadCall, res.Error)
}

func TestDispatchMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.New(reg)

	img := imagery.Static{AllowAll: true}
	v := tools.NewValidator(img, img, tools.WithLogger(zap.NewNop()))
	d := New(tools.NewCanvasRegistry(v), DefaultConfig(), WithMetrics(m), WithLogger(zap.NewNop()))

	d.Dispatch(context.Background(), []scene.ToolCall{
		{Name: "change_background"},
		{Name: "make_coffee"},
		{Name: "spawn_text", Arguments: map[string]any{"content": "x"}},
	})

	count, err := testutil.GatherAndCount(reg, "canvas_tool_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "SHORT_CIRCUITED_ERROR", StateShortCircuited.String())
	assert.Equal(t, "NO_TOOL_MATCH", StateNoToolMatch.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", Outcome(scene.TurnSuccess(nil)))
	assert.Equal(t, "BAD_CALL", Outcome(scene.TurnFailure(scene.ErrBadCall)))
}
