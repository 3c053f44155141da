package podcast

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	generations metric.Int64Counter
	duration    metric.Float64Histogram
}

// newMetrics registers instruments on the global meter provider. Failures
// leave the instrument nil and are logged once.
func newMetrics(logger *slog.Logger) *metrics {
	meter := otel.Meter(instrumentationName)
	m := &metrics{}

	var err error
	m.generations, err = meter.Int64Counter("podcast.generations",
		metric.WithDescription("Generation attempts by outcome"))
	if err != nil {
		logger.Warn("failed to create generations counter", slogError(err))
	}
	m.duration, err = meter.Float64Histogram("podcast.generation.duration",
		metric.WithDescription("End-to-end generation latency"),
		metric.WithUnit("s"))
	if err != nil {
		logger.Warn("failed to create duration histogram", slogError(err))
	}
	return m
}

func (m *metrics) observe(ctx context.Context, mode Mode, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("mode", string(mode)),
		attribute.String("outcome", outcome),
	)
	if m.generations != nil {
		m.generations.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, elapsed.Seconds(), attrs)
	}
}
