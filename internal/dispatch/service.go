package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"promptcanvas/internal/logging"
	"promptcanvas/internal/perception"
	"promptcanvas/internal/scene"
	"promptcanvas/internal/telemetry"
)

// ErrEmptyPrompt is returned for a turn without user text.
var ErrEmptyPrompt = errors.New("prompt text is empty")

// SessionSource hands out exclusive access to model sessions.
type SessionSource interface {
	Acquire(ctx context.Context, id string) (*perception.Lease, error)
}

// PromptRequest is one user turn.
type PromptRequest struct {
	// SessionID selects the conversation. Empty means the default session.
	SessionID string

	Text string

	// State is the renderer's current scene, passed to the model verbatim.
	State json.RawMessage
}

// ComposeMessage builds the single model input for a turn. State is
// compacted JSON; a missing state is rendered as {}.
func ComposeMessage(state json.RawMessage, text string) string {
	rendered := "{}"
	if len(bytes.TrimSpace(state)) > 0 {
		var buf bytes.Buffer
		if err := json.Compact(&buf, state); err == nil {
			rendered = buf.String()
		} else {
			rendered = string(state)
		}
	}
	return "CURRENT_UI_STATE: " + rendered + "\nUSER_MESSAGE: " + text
}

// Service runs whole turns: session lookup, the model round trip, and
// dispatch of the returned calls.
type Service struct {
	sessions   SessionSource
	dispatcher *Dispatcher
	metrics    *telemetry.Metrics
	logger     *zap.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceMetrics records turn counters and durations.
func WithServiceMetrics(m *telemetry.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithServiceLogger sets the logger. The default is the dispatch category logger.
func WithServiceLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service.
func NewService(sessions SessionSource, d *Dispatcher, opts ...ServiceOption) *Service {
	s := &Service{sessions: sessions, dispatcher: d}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Get(logging.CategoryDispatch).Zap()
	}
	return s
}

// Dispatcher returns the dispatcher turns run through.
func (s *Service) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// HandlePrompt runs one turn. Validation failures are carried by the
// result; the error is non-nil only when the turn could not reach the
// model, and then wraps a *scene.CodedError where the cause is known.
func (s *Service) HandlePrompt(ctx context.Context, req PromptRequest) (scene.TurnResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return scene.TurnFailure(scene.ErrBadCall), scene.NewCodedError(scene.ErrBadCall, ErrEmptyPrompt)
	}
	start := time.Now()

	lease, err := s.sessions.Acquire(ctx, req.SessionID)
	if err != nil {
		return scene.TurnResult{}, fmt.Errorf("failed to acquire session: %w", err)
	}
	defer lease.Release()

	log := s.logger.With(zap.String("session", lease.ID))
	log.Debug("Turn started", zap.Stringer("state", StateAwaitingModel), zap.Int("text_len", len(req.Text)))

	calls, err := lease.Send(ctx, ComposeMessage(req.State, req.Text))
	if err != nil {
		var coded *scene.CodedError
		if !errors.As(err, &coded) {
			err = scene.NewCodedError(scene.ErrModelUnavailable, err)
		}
		s.metrics.ObserveTurn(string(scene.ErrModelUnavailable), time.Since(start))
		log.Warn("Model unavailable", zap.Error(err))
		return scene.TurnResult{}, err
	}

	log.Debug("Model returned calls", zap.Stringer("state", StateProcessingCalls), zap.Int("calls", len(calls)))
	result := s.dispatcher.Dispatch(ctx, calls)

	elapsed := time.Since(start)
	s.metrics.ObserveTurn(Outcome(result), elapsed)
	log.Info("Turn complete",
		zap.String("outcome", Outcome(result)),
		zap.Int("actions", len(result.Actions)),
		zap.Duration("elapsed", elapsed))
	return result, nil
}
