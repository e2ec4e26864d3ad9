package mcp

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fyrsmithlabs/reviewd/internal/apiclient"
	"github.com/fyrsmithlabs/reviewd/internal/control"
	"github.com/fyrsmithlabs/reviewd/internal/workflows"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/reviewd/internal/mcp"

// Metrics counts tool calls by tool and outcome.
type Metrics struct {
	meter    metric.Meter
	logger   *zap.Logger
	calls    metric.Int64Counter
	latency  metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
}

// NewMetrics registers the tool instruments on the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{meter: otel.Meter(instrumentationName), logger: logger}
	m.init()
	return m
}

func (m *Metrics) init() {
	var errs [3]error
	m.calls, errs[0] = m.meter.Int64Counter(
		"reviewd.mcp.tool.calls_total",
		metric.WithDescription("MCP tool calls by tool and outcome (ok or an error reason)."),
		metric.WithUnit("{call}"),
	)
	m.latency, errs[1] = m.meter.Float64Histogram(
		"reviewd.mcp.tool.duration_seconds",
		metric.WithDescription("MCP tool latency including the round trip to the daemon."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	m.inFlight, errs[2] = m.meter.Int64UpDownCounter(
		"reviewd.mcp.tool.active_calls",
		metric.WithDescription("MCP tool calls in flight."),
		metric.WithUnit("{call}"),
	)
	if err := errors.Join(errs[:]...); err != nil {
		m.logger.Warn("creating mcp instruments", zap.Error(err))
	}
}

// Begin marks a call to tool as in flight. The returned func records its
// outcome and must be called exactly once.
func (m *Metrics) Begin(ctx context.Context, tool string) func(error) {
	start := time.Now()
	toolAttr := attribute.String("tool", tool)
	if m.inFlight != nil {
		m.inFlight.Add(ctx, 1, metric.WithAttributes(toolAttr))
	}
	return func(err error) {
		if m.inFlight != nil {
			m.inFlight.Add(ctx, -1, metric.WithAttributes(toolAttr))
		}
		if m.latency != nil {
			m.latency.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(toolAttr))
		}
		if m.calls != nil {
			m.calls.Add(ctx, 1, metric.WithAttributes(toolAttr, attribute.String("outcome", outcome(err))))
		}
	}
}

// outcome maps a tool error onto a small fixed label set.
func outcome(err error) string {
	var status *apiclient.StatusError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, control.ErrSessionRunning):
		return "session_running"
	case errors.Is(err, control.ErrNoActiveSession), errors.Is(err, control.ErrSessionNotFound):
		return "not_found"
	case errors.Is(err, workflows.ErrInvalidInput), errors.Is(err, workflows.ErrEmptyField):
		return "invalid_input"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &status) && status.Code >= 500:
		return "daemon_error"
	case strings.Contains(err.Error(), "connection refused"):
		return "unavailable"
	default:
		return "error"
	}
}
