package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// reviewCounters are the control plane counters served at /metrics.
//
// Metrics:
//   - reviewd_sessions_started_total{source} - sessions started via "api" or "webhook"
//   - reviewd_challenges_submitted_total - human challenges submitted
//   - reviewd_window_extensions_total - challenge window extension requests
//   - reviewd_webhook_events_total{event,outcome} - GitHub deliveries received
//   - reviewd_rate_limited_total - requests rejected by the per-IP limiter
type reviewCounters struct {
	sessionsStarted     *prometheus.CounterVec
	challengesSubmitted prometheus.Counter
	windowExtensions    prometheus.Counter
	webhookEvents       *prometheus.CounterVec
	rateLimited         prometheus.Counter
}

// newReviewCounters registers the counters, plus the Go runtime and process
// collectors, on reg. Each server owns its registry so tests can build many.
func newReviewCounters(reg *prometheus.Registry) *reviewCounters {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &reviewCounters{
		sessionsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reviewd_sessions_started_total",
				Help: "Total number of review sessions started",
			},
			[]string{"source"},
		),
		challengesSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "reviewd_challenges_submitted_total",
			Help: "Total number of human challenges submitted",
		}),
		windowExtensions: factory.NewCounter(prometheus.CounterOpts{
			Name: "reviewd_window_extensions_total",
			Help: "Total number of challenge window extension requests",
		}),
		webhookEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reviewd_webhook_events_total",
				Help: "Total number of GitHub webhook deliveries",
			},
			[]string{"event", "outcome"},
		),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "reviewd_rate_limited_total",
			Help: "Total number of requests rejected by the per-IP rate limiter",
		}),
	}
}
