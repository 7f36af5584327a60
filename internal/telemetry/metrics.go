// Package telemetry exposes Prometheus counters for turns, tool calls and
// image lookups. A nil *Metrics is valid and records nothing.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Image lookup stages.
const (
	StageResolve  = "resolve"
	StageValidate = "validate"
)

// Image lookup results.
const (
	ResultHit  = "hit" // served from cache
	ResultOK   = "ok"
	ResultFail = "fail"
)

// Metrics holds the canvas collectors.
type Metrics struct {
	turns        *prometheus.CounterVec
	toolCalls    *prometheus.CounterVec
	imageLookups *prometheus.CounterVec
	turnDuration prometheus.Histogram
}

// New creates the collectors and registers them with registry.
// A nil registry yields nil Metrics.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canvas_turns_total",
				Help: "Total number of user turns by outcome (success or error code)",
			},
			[]string{"outcome"},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canvas_tool_calls_total",
				Help: "Total number of tool calls by tool name and envelope status",
			},
			[]string{"tool", "status"},
		),
		imageLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canvas_image_lookups_total",
				Help: "Total number of image searches and HEAD checks by stage and result",
			},
			[]string{"stage", "result"},
		),
		turnDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "canvas_turn_duration_seconds",
				Help:    "Wall time of one user turn, model round trip included",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	registry.MustRegister(
		m.turns,
		m.toolCalls,
		m.imageLookups,
		m.turnDuration,
	)

	return m
}

// ObserveTurn records one finished turn.
func (m *Metrics) ObserveTurn(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
	m.turnDuration.Observe(elapsed.Seconds())
}

// IncrementToolCall records one executed tool call.
func (m *Metrics) IncrementToolCall(tool, status string) {
	if m != nil && m.toolCalls != nil {
		m.toolCalls.WithLabelValues(tool, status).Inc()
	}
}

// IncrementImageLookup records one image search or validation.
func (m *Metrics) IncrementImageLookup(stage, result string) {
	if m != nil && m.imageLookups != nil {
		m.imageLookups.WithLabelValues(stage, result).Inc()
	}
}
