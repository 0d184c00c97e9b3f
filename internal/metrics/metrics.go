// Package metrics provides OpenTelemetry instruments for generation runs.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics records poll attempts and end-to-end generation durations.
type Metrics struct {
	pollAttempts       metric.Int64Counter
	generationDuration metric.Float64Histogram
}

// NewMetrics creates a new Metrics instance
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	pollAttempts, err := meter.Int64Counter(
		"img2video_poll_attempts_total",
		metric.WithDescription("Total number of result poll requests"),
	)
	if err != nil {
		return nil, err
	}

	generationDuration, err := meter.Float64Histogram(
		"img2video_generation_duration_seconds",
		metric.WithDescription("Duration of generation runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		pollAttempts:       pollAttempts,
		generationDuration: generationDuration,
	}, nil
}

// NewNoop returns Metrics backed by a no-op meter.
func NewNoop() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter("img2video"))
	return m
}

// RecordPoll records one poll request and the status it observed
func (m *Metrics) RecordPoll(ctx context.Context, status string) {
	m.pollAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordGeneration records metrics for a finished run
func (m *Metrics) RecordGeneration(ctx context.Context, status string, duration time.Duration) {
	m.generationDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("status", status)),
	)
}
