package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds all application metrics implementing the golden 4 signals:
// - Latency: How long builds and stages take
// - Traffic: Build/stage throughput
// - Errors: Rate of stage failures
// - Saturation: Worker utilization and event queue depth
type Metrics struct {
	meter metric.Meter

	// Build metrics (Latency, Traffic)
	BuildDuration metric.Float64Histogram
	BuildsTotal   metric.Int64Counter

	// Stage metrics (Latency, Traffic, Errors, Saturation)
	StageDuration    metric.Float64Histogram
	StagesTotal      metric.Int64Counter
	StageErrorsTotal metric.Int64Counter
	StagesActive     metric.Int64UpDownCounter

	// Cache metrics
	CacheHitsTotal   metric.Int64Counter
	CacheMissesTotal metric.Int64Counter
	CacheEntries     metric.Int64Gauge

	// Event notifier metrics
	EventsDelivered metric.Int64Counter
	EventsDropped   metric.Int64Counter
	EventQueueSize  metric.Int64Gauge
}

// NewMetrics creates and registers all metrics with a Prometheus exporter.
// The returned handler exposes the metrics in Prometheus text format; the
// caller decides whether and where to mount it.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("buildpipe")
	m := &Metrics{meter: meter}

	// Build metrics
	m.BuildDuration, err = meter.Float64Histogram(
		"build_duration_seconds",
		metric.WithDescription("End-to-end build latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800),
	)
	if err != nil {
		return nil, nil, err
	}

	m.BuildsTotal, err = meter.Int64Counter(
		"builds_total",
		metric.WithDescription("Total number of builds requested"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Stage metrics
	m.StageDuration, err = meter.Float64Histogram(
		"stage_duration_seconds",
		metric.WithDescription("Stage execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, nil, err
	}

	m.StagesTotal, err = meter.Int64Counter(
		"stages_total",
		metric.WithDescription("Total number of stages completed, by state"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.StageErrorsTotal, err = meter.Int64Counter(
		"stage_errors_total",
		metric.WithDescription("Total number of failed stages"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.StagesActive, err = meter.Int64UpDownCounter(
		"stages_active",
		metric.WithDescription("Number of currently executing stages (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Cache metrics
	m.CacheHitsTotal, err = meter.Int64Counter(
		"cache_hits_total",
		metric.WithDescription("Total number of artifact cache hits"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.CacheMissesTotal, err = meter.Int64Counter(
		"cache_misses_total",
		metric.WithDescription("Total number of artifact cache misses"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.CacheEntries, err = meter.Int64Gauge(
		"cache_entries",
		metric.WithDescription("Current number of cached artifacts"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Event notifier metrics
	m.EventsDelivered, err = meter.Int64Counter(
		"events_delivered_total",
		metric.WithDescription("Total events delivered to subscribers"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.EventsDropped, err = meter.Int64Counter(
		"events_dropped_total",
		metric.WithDescription("Total events dropped (buffer full)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.EventQueueSize, err = meter.Int64Gauge(
		"event_queue_size",
		metric.WithDescription("Current number of events in notifier queue (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.Handler(), nil
}

// RecordBuildStarted records a new build being requested.
func (m *Metrics) RecordBuildStarted(ctx context.Context, target string) {
	m.BuildsTotal.Add(ctx, 1, WithTarget(target))
}

// RecordBuildCompleted records a build finishing (success or failure).
func (m *Metrics) RecordBuildCompleted(ctx context.Context, target string, success bool, durationSeconds float64) {
	attrs := metric.WithAttributes(targetAttr(target), successAttr(success))
	m.BuildDuration.Record(ctx, durationSeconds, attrs)
}

// RecordStageStarted records a stage beginning execution.
func (m *Metrics) RecordStageStarted(ctx context.Context, stage string) {
	m.StagesActive.Add(ctx, 1, WithStage(stage))
}

// RecordStageCompleted records a stage finishing with its terminal state.
// The saturation gauge only decrements for stages that actually executed;
// a cache-served stage never incremented it.
func (m *Metrics) RecordStageCompleted(ctx context.Context, stage, state string, fromCache bool, durationSeconds float64) {
	attrs := metric.WithAttributes(stageAttr(stage), stateAttr(state), fromCacheAttr(fromCache))
	m.StageDuration.Record(ctx, durationSeconds, attrs)
	m.StagesTotal.Add(ctx, 1, attrs)
	if !fromCache {
		m.StagesActive.Add(ctx, -1, WithStage(stage))
	}
}

// RecordStageSettled records a stage that reached a terminal state without
// executing (skipped, or failed before its commands could start). Counts
// toward totals only; the saturation gauge is untouched.
func (m *Metrics) RecordStageSettled(ctx context.Context, stage, state string) {
	m.StagesTotal.Add(ctx, 1, metric.WithAttributes(stageAttr(stage), stateAttr(state)))
}

// RecordStageError records a failed stage.
func (m *Metrics) RecordStageError(ctx context.Context, stage string) {
	m.StageErrorsTotal.Add(ctx, 1, WithStage(stage))
}

// RecordCacheHit records an artifact cache hit.
func (m *Metrics) RecordCacheHit(ctx context.Context) {
	m.CacheHitsTotal.Add(ctx, 1)
}

// RecordCacheMiss records an artifact cache miss.
func (m *Metrics) RecordCacheMiss(ctx context.Context) {
	m.CacheMissesTotal.Add(ctx, 1)
}

// RecordCacheEntries records the current number of cached artifacts.
func (m *Metrics) RecordCacheEntries(ctx context.Context, entries int64) {
	m.CacheEntries.Record(ctx, entries)
}

// RecordEventDelivered records an event handed to all subscribers.
func (m *Metrics) RecordEventDelivered(ctx context.Context) {
	m.EventsDelivered.Add(ctx, 1)
}

// RecordEventDropped records a dropped event.
func (m *Metrics) RecordEventDropped(ctx context.Context) {
	m.EventsDropped.Add(ctx, 1)
}

// RecordEventQueueSize records the current notifier queue size.
func (m *Metrics) RecordEventQueueSize(ctx context.Context, size int64) {
	m.EventQueueSize.Record(ctx, size)
}
