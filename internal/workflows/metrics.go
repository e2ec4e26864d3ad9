package workflows

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/fyrsmithlabs/reviewd/internal/workflows"

// Metrics for review activities
var (
	activityDuration     metric.Float64Histogram
	activityErrorCounter metric.Int64Counter
	sessionCounter       metric.Int64Counter
	findingCounter       metric.Int64Counter
)

// initMetrics initializes OpenTelemetry metrics for workflows.
// This is called once during package initialization.
func initMetrics() {
	meter := otel.Meter(instrumentationName)

	var err error

	activityDuration, err = meter.Float64Histogram(
		"reviewd.workflows.activity.duration",
		metric.WithDescription("Duration of review activity executions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create activity duration: %v", err))
	}

	activityErrorCounter, err = meter.Int64Counter(
		"reviewd.workflows.activity.errors",
		metric.WithDescription("Number of review activity attempt errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create activity error counter: %v", err))
	}

	// Persisted sessions, by whether a verdict was produced
	sessionCounter, err = meter.Int64Counter(
		"reviewd.workflows.sessions.persisted",
		metric.WithDescription("Number of review sessions persisted"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create session counter: %v", err))
	}

	findingCounter, err = meter.Int64Counter(
		"reviewd.workflows.findings",
		metric.WithDescription("Number of findings reported by specialists"),
		metric.WithUnit("{finding}"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create finding counter: %v", err))
	}
}

func init() {
	initMetrics()
}

func recordActivity(ctx context.Context, name string, start time.Time, err error) {
	attrs := metric.WithAttributes(attribute.String("activity", name))
	activityDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil {
		activityErrorCounter.Add(ctx, 1, attrs)
	}
}

func recordFindings(ctx context.Context, specialist string, n int) {
	if n == 0 {
		return
	}
	findingCounter.Add(ctx, int64(n), metric.WithAttributes(attribute.String("specialist", specialist)))
}

func recordSession(ctx context.Context, withVerdict bool) {
	sessionCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("verdict", withVerdict)))
}
