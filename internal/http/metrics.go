package http

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/reviewd/internal/http"

// unmatchedRoute labels requests echo could not route, so arbitrary paths
// never become label values.
const unmatchedRoute = "unmatched"

// HTTPMetrics records per-route request counts, latency and concurrency.
type HTTPMetrics struct {
	meter    metric.Meter
	logger   *zap.Logger
	requests metric.Int64Counter
	latency  metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
}

// NewHTTPMetrics registers the instruments on the global meter provider.
func NewHTTPMetrics(logger *zap.Logger) *HTTPMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &HTTPMetrics{meter: otel.Meter(httpInstrumentationName), logger: logger}
	m.init()
	return m
}

// init leaves an instrument nil when it cannot be created; the middleware
// skips nil instruments.
func (m *HTTPMetrics) init() {
	var errs [3]error
	m.requests, errs[0] = m.meter.Int64Counter(
		"reviewd.http.requests_total",
		metric.WithDescription("Control API requests by method, route template and status."),
		metric.WithUnit("{request}"),
	)
	m.latency, errs[1] = m.meter.Float64Histogram(
		"reviewd.http.request_duration_seconds",
		metric.WithDescription("Control API latency. Submit calls include the workflow update round trip."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	m.inFlight, errs[2] = m.meter.Int64UpDownCounter(
		"reviewd.http.active_requests",
		metric.WithDescription("Control API requests in flight."),
		metric.WithUnit("{request}"),
	)
	if err := errors.Join(errs[:]...); err != nil {
		m.logger.Warn("creating http instruments", zap.Error(err))
	}
}

// MetricsMiddleware records every request after the handler returns.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			start := time.Now()
			if m.inFlight != nil {
				m.inFlight.Add(ctx, 1)
				defer m.inFlight.Add(ctx, -1)
			}

			err := next(c)

			attrs := metric.WithAttributes(
				attribute.String("method", c.Request().Method),
				attribute.String("route", routeLabel(c.Path())),
				attribute.Int("status", c.Response().Status),
			)
			if m.requests != nil {
				m.requests.Add(ctx, 1, attrs)
			}
			if m.latency != nil {
				m.latency.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			return err
		}
	}
}

// routeLabel uses echo's matched template (/api/v1/reviews/:id) so session
// IDs stay out of label values.
func routeLabel(path string) string {
	if path == "" {
		return unmatchedRoute
	}
	return path
}
