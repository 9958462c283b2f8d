package embedcache

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/projectd/internal/embedcache"

// Metrics holds all cache-related metrics.
type Metrics struct {
	meter           metric.Meter
	logger          *zap.Logger
	hits            metric.Int64Counter
	misses          metric.Int64Counter
	evictions       metric.Int64Counter
	computeDuration metric.Float64Histogram
}

// NewMetrics creates a new Metrics instance for the embedding cache.
func NewMetrics(logger *zap.Logger) *Metrics {
	m := &Metrics{
		meter:  otel.Meter(instrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.hits, err = m.meter.Int64Counter(
		"projectd.embedcache.hits_total",
		metric.WithDescription("Cache hits by tier (memory, disk)."),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		m.logger.Warn("failed to create hits counter", zap.Error(err))
	}

	m.misses, err = m.meter.Int64Counter(
		"projectd.embedcache.misses_total",
		metric.WithDescription("Cache misses that reached the embedding backend."),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		m.logger.Warn("failed to create misses counter", zap.Error(err))
	}

	m.evictions, err = m.meter.Int64Counter(
		"projectd.embedcache.evictions_total",
		metric.WithDescription("LRU evictions from the in-memory tier."),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		m.logger.Warn("failed to create evictions counter", zap.Error(err))
	}

	m.computeDuration, err = m.meter.Float64Histogram(
		"projectd.embedcache.compute_duration_seconds",
		metric.WithDescription("Duration of embedding computations on cache miss."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		m.logger.Warn("failed to create compute duration histogram", zap.Error(err))
	}
}

// RecordHit records a cache hit at the given tier.
func (m *Metrics) RecordHit(ctx context.Context, tier string) {
	if m.hits != nil {
		m.hits.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier)))
	}
}

// RecordMiss records a full cache miss.
func (m *Metrics) RecordMiss(ctx context.Context) {
	if m.misses != nil {
		m.misses.Add(ctx, 1)
	}
}

// RecordEvictions records memory-tier evictions.
func (m *Metrics) RecordEvictions(ctx context.Context, n int) {
	if n > 0 && m.evictions != nil {
		m.evictions.Add(ctx, int64(n))
	}
}

// RecordCompute records one embedding computation.
func (m *Metrics) RecordCompute(ctx context.Context, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.Bool("error", err != nil),
	}
	if m.computeDuration != nil {
		m.computeDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
}
