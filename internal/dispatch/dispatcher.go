// Package dispatch turns the model's function calls for one user turn into
// a single aggregate answer.
//
// A turn moves through these states:
//
//	AWAITING_MODEL → PROCESSING_CALLS → AGGREGATED_SUCCESS
//	                                  → SHORT_CIRCUITED_ERROR
//	               → NO_TOOL_MATCH
//
// Calls run strictly in model order. The first error envelope ends the turn
// and discards every action collected so far.
package dispatch

import (
	"context"

	"go.uber.org/zap"

	"promptcanvas/internal/logging"
	"promptcanvas/internal/scene"
	"promptcanvas/internal/telemetry"
	"promptcanvas/internal/tools"
)

// DefaultMaxCallsPerTurn is the action ceiling of one turn.
const DefaultMaxCallsPerTurn = 10

// State is a turn's position in the dispatch state machine.
type State int

const (
	StateAwaitingModel State = iota
	StateProcessingCalls
	StateAggregatedSuccess
	StateShortCircuited
	StateNoToolMatch
)

func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "AWAITING_MODEL"
	case StateProcessingCalls:
		return "PROCESSING_CALLS"
	case StateAggregatedSuccess:
		return "AGGREGATED_SUCCESS"
	case StateShortCircuited:
		return "SHORT_CIRCUITED_ERROR"
	case StateNoToolMatch:
		return "NO_TOOL_MATCH"
	}
	return "UNKNOWN"
}

// Config holds dispatcher settings.
type Config struct {
	// MaxCallsPerTurn caps the number of collected actions. Calls after the
	// cap are never invoked.
	MaxCallsPerTurn int

	// StrictUnknownTools aborts the turn with UNSUPPORTED_COMMAND when the
	// model names a tool that does not exist. Off means such calls are
	// skipped.
	StrictUnknownTools bool
}

// DefaultConfig returns the default dispatcher settings.
func DefaultConfig() Config {
	return Config{MaxCallsPerTurn: DefaultMaxCallsPerTurn}
}

// Dispatcher executes the calls of one turn against a tool registry.
// It holds no per-turn state and is safe for concurrent use.
type Dispatcher struct {
	registry *tools.Registry
	config   Config
	metrics  *telemetry.Metrics
	logger   *zap.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics records per-call counters.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithLogger sets the logger. The default is the dispatch category logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// New creates a Dispatcher. A non-positive MaxCallsPerTurn means the default.
func New(registry *tools.Registry, cfg Config, opts ...Option) *Dispatcher {
	if cfg.MaxCallsPerTurn <= 0 {
		cfg.MaxCallsPerTurn = DefaultMaxCallsPerTurn
	}
	d := &Dispatcher{registry: registry, config: cfg}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logging.Get(logging.CategoryDispatch).Zap()
	}
	return d
}

// Config returns the effective settings.
func (d *Dispatcher) Config() Config {
	return d.config
}

// Registry returns the tool registry calls are resolved against.
func (d *Dispatcher) Registry() *tools.Registry {
	return d.registry
}

// Dispatch runs calls and aggregates their envelopes.
//
// The loop:
//  1. No calls at all: NO_TOOL_MATCH.
//  2. Unknown tool: skipped, or UNSUPPORTED_COMMAND in strict mode.
//  3. Error envelope: the turn ends with that code alone.
//  4. Success: the action is collected; at the cap the rest are dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []scene.ToolCall) scene.TurnResult {
	result, state := d.run(ctx, calls)
	d.logger.Debug("Turn dispatched",
		zap.Stringer("state", state),
		zap.Int("calls", len(calls)),
		zap.Int("actions", len(result.Actions)),
		zap.String("error_code", string(result.Error)))
	return result
}

func (d *Dispatcher) run(ctx context.Context, calls []scene.ToolCall) (scene.TurnResult, State) {
	if len(calls) == 0 {
		return scene.TurnFailure(scene.ErrNoToolMatch), StateNoToolMatch
	}

	actions := make([]scene.Action, 0, min(len(calls), d.config.MaxCallsPerTurn))
	for i, call := range calls {
		tool := d.registry.Get(call.Name)
		if tool == nil {
			if d.config.StrictUnknownTools {
				d.logger.Warn("Unknown tool, aborting turn",
					zap.String("tool", call.Name), zap.Int("index", i))
				d.metrics.IncrementToolCall("unknown", string(scene.StatusError))
				return scene.TurnFailure(scene.ErrUnsupportedCommand), StateShortCircuited
			}
			d.logger.Info("Skipping unknown tool", zap.String("tool", call.Name), zap.Int("index", i))
			d.metrics.IncrementToolCall("unknown", "skipped")
			continue
		}

		res := d.registry.ExecuteTool(ctx, tool, call.Arguments)
		d.metrics.IncrementToolCall(tool.Name, string(res.Envelope.Status))

		if !res.IsSuccess() {
			d.logger.Info("Tool failed, discarding turn",
				zap.String("tool", tool.Name),
				zap.Int("index", i),
				zap.String("error_code", string(res.Envelope.Error)),
				zap.Int("discarded", len(actions)),
				zap.NamedError("cause", res.Err))
			return scene.TurnFailure(res.Envelope.Error), StateShortCircuited
		}

		actions = append(actions, scene.Action{
			Action:  res.Envelope.Action,
			Payload: res.Envelope.Payload,
		})

		if len(actions) >= d.config.MaxCallsPerTurn {
			if dropped := len(calls) - i - 1; dropped > 0 {
				d.logger.Warn("Max calls per turn reached",
					zap.Int("max", d.config.MaxCallsPerTurn), zap.Int("dropped", dropped))
			}
			break
		}
	}

	return scene.TurnSuccess(actions), StateAggregatedSuccess
}

// Outcome is the metrics label of a turn result: "success" or its code.
func Outcome(r scene.TurnResult) string {
	if r.OK() {
		return string(scene.StatusSuccess)
	}
	return string(r.Error)
}
