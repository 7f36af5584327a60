package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"promptcanvas/internal/dispatch"
	"promptcanvas/internal/scene"
	"promptcanvas/internal/telemetry"
	"promptcanvas/internal/tools"
)

func TestMain(m *testing.M) {
	// genai pulls in opencensus, which starts a stats worker at init.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

var testOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}

type recordingTurns struct {
	mu     sync.Mutex
	got    []dispatch.PromptRequest
	result scene.TurnResult
	err    error
}

func (r *recordingTurns) HandlePrompt(ctx context.Context, req dispatch.PromptRequest) (scene.TurnResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, req)
	return r.result, r.err
}

func newTestServer(t *testing.T, turns TurnHandler, opts ...Option) *Server {
	t.Helper()
	reg := tools.NewCanvasRegistry(tools.NewValidator(nil, nil, tools.WithLogger(zap.NewNop())))
	cfg := Config{Addr: "127.0.0.1:0", AllowedOrigins: testOrigins, MetricsPath: "/metrics"}
	opts = append([]Option{WithLogger(zap.NewNop())}, opts...)
	return New(cfg, turns, reg, opts...)
}

func do(t *testing.T, s *Server, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	resp := rec.Result()
	t.Cleanup(func() { resp.Body.Close() })

	var body map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(data, &body))
	}
	return resp, body
}

func postPrompt(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/prompt", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestPromptSuccess(t *testing.T) {
	turns := &recordingTurns{result: scene.TurnSuccess([]scene.Action{
		{Action: "change_background", Payload: scene.BackgroundPayload{R: 1, G: 2, B: 3}},
	})}
	s := newTestServer(t, turns)

	resp, body := do(t, s, postPrompt(`{"text":"blue please","state":{"elements":[]}}`))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", body["status"])

	actions, ok := body["actions"].([]any)
	require.True(t, ok)
	require.Len(t, actions, 1)
	assert.Equal(t, "change_background", actions[0].(map[string]any)["action"])

	require.Len(t, turns.got, 1)
	assert.Equal(t, "blue please", turns.got[0].Text)
	assert.JSONEq(t, `{"elements":[]}`, string(turns.got[0].State))
	assert.Empty(t, turns.got[0].SessionID)
}

func TestPromptTurnErrorIs200(t *testing.T) {
	s := newTestServer(t, &recordingTurns{result: scene.TurnFailure(scene.ErrNoToolMatch)})

	resp, body := do(t, s, postPrompt(`{"text":"hello","state":{}}`))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"status": "error", "action": "none", "error": "NO_TOOL_MATCH"}, body)
}

func TestPromptBadRequests(t *testing.T) {
	turns := &recordingTurns{}
	s := newTestServer(t, turns)

	for name, payload := range map[string]string{
		"not json":     `{text:`,
		"empty text":   `{"text":"","state":{}}`,
		"blank text":   `{"text":"   ","state":{}}`,
		"missing text": `{"state":{}}`,
		"wrong type":   `{"text":42}`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, body := do(t, s, postPrompt(payload))
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "BAD_CALL", body["error"])
			assert.Equal(t, "none", body["action"])
		})
	}
	assert.Empty(t, turns.got)
}

func TestPromptModelUnavailable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"coded", scene.NewCodedError(scene.ErrModelUnavailable, errors.New("503 from upstream"))},
		{"plain", errors.New("failed to acquire session")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &recordingTurns{err: tt.err})
			resp, body := do(t, s, postPrompt(`{"text":"hi","state":{}}`))
			assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
			assert.Equal(t, map[string]any{"status": "error", "action": "none", "error": "MODEL_UNAVAILABLE"}, body)
		})
	}
}

func TestPromptSessionID(t *testing.T) {
	turns := &recordingTurns{result: scene.TurnSuccess(nil)}
	s := newTestServer(t, turns)

	do(t, s, postPrompt(`{"text":"a","state":{},"session_id":"from-body"}`))

	req := postPrompt(`{"text":"b","state":{}}`)
	req.Header.Set(SessionHeader, "from-header")
	do(t, s, req)

	req = postPrompt(`{"text":"c","state":{},"session_id":"body-wins"}`)
	req.Header.Set(SessionHeader, "ignored")
	do(t, s, req)

	require.Len(t, turns.got, 3)
	assert.Equal(t, "from-body", turns.got[0].SessionID)
	assert.Equal(t, "from-header", turns.got[1].SessionID)
	assert.Equal(t, "body-wins", turns.got[2].SessionID)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, &recordingTurns{result: scene.TurnSuccess(nil)})

	t.Run("preflight allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/prompt", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", "POST")
		req.Header.Set("Access-Control-Request-Headers", "content-type")

		resp, _ := do(t, s, req)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
		assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
		assert.Equal(t, "content-type", resp.Header.Get("Access-Control-Allow-Headers"))
	})

	t.Run("preflight rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/prompt", nil)
		req.Header.Set("Origin", "http://evil.example")
		req.Header.Set("Access-Control-Request-Method", "POST")

		resp, _ := do(t, s, req)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("simple request", func(t *testing.T) {
		req := postPrompt(`{"text":"x","state":{}}`)
		req.Header.Set("Origin", "http://127.0.0.1:5173")

		resp, _ := do(t, s, req)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "http://127.0.0.1:5173", resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("foreign origin gets no headers", func(t *testing.T) {
		req := postPrompt(`{"text":"x","state":{}}`)
		req.Header.Set("Origin", "http://evil.example")

		resp, _ := do(t, s, req)
		assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	})
}

func TestCORSWildcardOmitsCredentials(t *testing.T) {
	reg := tools.NewCanvasRegistry(tools.NewValidator(nil, nil, tools.WithLogger(zap.NewNop())))
	cfg := Config{AllowedOrigins: []string{"http://localhost:5173", "*"}}
	s := New(cfg, &recordingTurns{result: scene.TurnSuccess(nil)}, reg, WithLogger(zap.NewNop()))

	req := httptest.NewRequest(http.MethodOptions, "/prompt", nil)
	req.Header.Set("Origin", "http://elsewhere.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, _ := do(t, s, req)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Credentials"))

	req = postPrompt(`{"text":"x","state":{}}`)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, _ = do(t, s, req)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestHealthzAndTools(t *testing.T) {
	s := newTestServer(t, &recordingTurns{})

	resp, body := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, float64(len(tools.Kinds)), body["tools"])

	resp, body = do(t, s, httptest.NewRequest(http.MethodGet, "/tools", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	list, ok := body["tools"].([]any)
	require.True(t, ok)
	require.Len(t, list, len(tools.Kinds))
	first := list[0].(map[string]any)
	assert.Equal(t, "change_background", first["name"])
	assert.Contains(t, first["parameters"].(map[string]any)["properties"], "red")
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.New(reg)
	m.ObserveTurn("success", 10*time.Millisecond)

	s := newTestServer(t, &recordingTurns{}, WithGatherer(reg))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "canvas_turns_total")

	plain := newTestServer(t, &recordingTurns{})
	rec = httptest.NewRecorder()
	plain.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeAndShutdown(t *testing.T) {
	turns := &recordingTurns{result: scene.TurnSuccess(nil)}
	reg := tools.NewCanvasRegistry(tools.NewValidator(nil, nil, tools.WithLogger(zap.NewNop())))
	s := New(Config{MaxConnections: 2, AllowedOrigins: testOrigins}, turns, reg, WithLogger(zap.NewNop()))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Post("http://"+ln.Addr().String()+"/prompt", "application/json",
		strings.NewReader(`{"text":"hi","state":{}}`))
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestListenAndServeBadAddr(t *testing.T) {
	reg := tools.NewRegistry()
	s := New(Config{Addr: "256.0.0.1:bad"}, &recordingTurns{}, reg, WithLogger(zap.NewNop()))
	assert.Error(t, s.ListenAndServe(context.Background()))
}
