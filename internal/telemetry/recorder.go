package telemetry

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/nupi-ai/plugin-tts-remote-gtranslate"

// Recorder centralises telemetry (logs, metrics) for the adapter. Metrics go
// to the global OpenTelemetry meter provider, which is a no-op until the host
// process installs one.
type Recorder struct {
	logger *slog.Logger

	fetches   metric.Int64Counter
	fetchTime metric.Float64Histogram
	cacheHits metric.Int64Counter
	merges    metric.Int64Counter
}

// NewRecorder constructs a telemetry recorder using the provided slog.Logger.
func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{logger: logger}
	meter := otel.Meter(meterName)

	var err error
	if r.fetches, err = meter.Int64Counter("tts.fetch.requests",
		metric.WithDescription("Requests sent to the synthesis endpoint")); err != nil {
		logger.Warn("telemetry: create counter", "name", "tts.fetch.requests", "error", err)
	}
	if r.fetchTime, err = meter.Float64Histogram("tts.fetch.duration",
		metric.WithDescription("Latency of synthesis endpoint requests"),
		metric.WithUnit("s")); err != nil {
		logger.Warn("telemetry: create histogram", "name", "tts.fetch.duration", "error", err)
	}
	if r.cacheHits, err = meter.Int64Counter("tts.cache.hits",
		metric.WithDescription("Requests answered from the artifact cache")); err != nil {
		logger.Warn("telemetry: create counter", "name", "tts.cache.hits", "error", err)
	}
	if r.merges, err = meter.Int64Counter("tts.merge.completed",
		metric.WithDescription("Multi-chunk artifacts assembled")); err != nil {
		logger.Warn("telemetry: create counter", "name", "tts.merge.completed", "error", err)
	}
	return r
}

// Logger returns the underlying slog.Logger for direct use.
func (r *Recorder) Logger() *slog.Logger {
	return r.logger
}

// Fetch records one endpoint request.
func (r *Recorder) Fetch(ctx context.Context, language string, elapsed time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("language", language),
		attribute.Bool("error", err != nil),
	)
	if r.fetches != nil {
		r.fetches.Add(ctx, 1, attrs)
	}
	if r.fetchTime != nil {
		r.fetchTime.Record(ctx, elapsed.Seconds(), attrs)
	}
}

// CacheHit records a request served without contacting the endpoint.
func (r *Recorder) CacheHit(ctx context.Context, merged bool) {
	if r.cacheHits != nil {
		r.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.Bool("merged", merged)))
	}
}

// Merge records an assembled multi-chunk artifact.
func (r *Recorder) Merge(ctx context.Context, chunks int) {
	if r.merges != nil {
		r.merges.Add(ctx, 1, metric.WithAttributes(attribute.Int("chunks", chunks)))
	}
}
