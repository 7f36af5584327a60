package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"promptcanvas/internal/perception"
	"promptcanvas/internal/scene"
	"promptcanvas/internal/telemetry"
)

// scriptedModel replies to every message with the same calls and records
// what it was sent, per session.
type scriptedModel struct {
	mu    sync.Mutex
	sent  map[string][]string
	calls []scene.ToolCall
	err   error
}

func (m *scriptedModel) factory(ctx context.Context, id string) (perception.Session, error) {
	return perception.SessionFunc(func(ctx context.Context, message string) ([]scene.ToolCall, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.sent == nil {
			m.sent = make(map[string][]string)
		}
		m.sent[id] = append(m.sent[id], message)
		return m.calls, m.err
	}), nil
}

func newTestService(t *testing.T, model *scriptedModel, opts ...ServiceOption) *Service {
	t.Helper()
	sessions, err := perception.NewSessionManager(model.factory, perception.ManagerConfig{Logger: zap.NewNop()})
	require.NoError(t, err)
	t.Cleanup(sessions.Close)

	opts = append([]ServiceOption{WithServiceLogger(zap.NewNop())}, opts...)
	return NewService(sessions, canvasDispatcher(DefaultConfig()), opts...)
}

func TestComposeMessage(t *testing.T) {
	tests := []struct {
		name  string
		state json.RawMessage
		want  string
	}{
		{"compacted", json.RawMessage(`{ "elements": [ ] }`), "CURRENT_UI_STATE: {\"elements\":[]}\nUSER_MESSAGE: make it red"},
		{"missing", nil, "CURRENT_UI_STATE: {}\nUSER_MESSAGE: make it red"},
		{"blank", json.RawMessage("  "), "CURRENT_UI_STATE: {}\nUSER_MESSAGE: make it red"},
		{"invalid kept verbatim", json.RawMessage(`{oops`), "CURRENT_UI_STATE: {oops\nUSER_MESSAGE: make it red"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComposeMessage(tt.state, "make it red"))
		})
	}
}

func TestHandlePromptSuccess(t *testing.T) {
	model := &scriptedModel{calls: []scene.ToolCall{
		{Name: "change_background", Arguments: map[string]any{"red": 255.0}},
	}}
	s := newTestService(t, model)

	res, err := s.HandlePrompt(context.Background(), PromptRequest{
		Text:  "make it red",
		State: json.RawMessage(`{"elements":[]}`),
	})
	require.NoError(t, err)
	require.True(t, res.OK())
	require.Len(t, res.Actions, 1)
	assert.Equal(t, scene.BackgroundPayload{R: 255}, res.Actions[0].Payload)

	sent := model.sent[perception.DefaultSessionID]
	require.Len(t, sent, 1)
	assert.Equal(t, "CURRENT_UI_STATE: {\"elements\":[]}\nUSER_MESSAGE: make it red", sent[0])
}

func TestHandlePromptRoutesSessions(t *testing.T) {
	model := &scriptedModel{calls: []scene.ToolCall{{Name: "change_background"}}}
	s := newTestService(t, model)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "a"} {
		_, err := s.HandlePrompt(ctx, PromptRequest{SessionID: id, Text: "hi"})
		require.NoError(t, err)
	}
	assert.Len(t, model.sent["a"], 2)
	assert.Len(t, model.sent["b"], 1)
}

func TestHandlePromptNoCalls(t *testing.T) {
	s := newTestService(t, &scriptedModel{})

	res, err := s.HandlePrompt(context.Background(), PromptRequest{Text: "tell me a joke"})
	require.NoError(t, err)
	assert.Equal(t, scene.ErrNoToolMatch, res.Error)
}

func TestHandlePromptEmptyText(t *testing.T) {
	model := &scriptedModel{}
	s := newTestService(t, model)

	for _, text := range []string{"", "   ", "\n\t "} {
		res, err := s.HandlePrompt(context.Background(), PromptRequest{Text: text})
		assert.ErrorIs(t, err, ErrEmptyPrompt, "text %q", text)
		assert.Equal(t, scene.ErrBadCall, res.Error, "text %q", text)
	}
	assert.Empty(t, model.sent, "model must not be called")
}

func TestHandlePromptModelFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.New(reg)
	s := newTestService(t, &scriptedModel{err: errors.New("connection refused")}, WithServiceMetrics(m))

	_, err := s.HandlePrompt(context.Background(), PromptRequest{Text: "hi"})
	require.Error(t, err)

	var coded *scene.CodedError
	require.True(t, errors.As(err, &coded))
	assert.Equal(t, scene.ErrModelUnavailable, coded.Code)

	count, err := testutil.GatherAndCount(reg, "canvas_turns_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHandlePromptRecordsTurnMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.New(reg)
	model := &scriptedModel{calls: []scene.ToolCall{{Name: "change_background"}}}
	s := newTestService(t, model, WithServiceMetrics(m))

	for i := 0; i < 3; i++ {
		_, err := s.HandlePrompt(context.Background(), PromptRequest{Text: "go"})
		require.NoError(t, err)
	}

	count, err := testutil.GatherAndCount(reg, "canvas_turn_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
