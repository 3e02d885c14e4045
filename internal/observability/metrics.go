package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EngineMetrics holds custom metrics for suggestion inference, validation,
// and compilation.
type EngineMetrics struct {
	suggestionDuration metric.Float64Histogram
	suggestionCount    metric.Int64Histogram
	cacheHits          metric.Int64Counter
	cacheMisses        metric.Int64Counter
	cacheInvalidations metric.Int64Counter
	validationFailures metric.Int64Counter
	compileDuration    metric.Float64Histogram
	compileCounter     metric.Int64Counter
}

// InitEngineMetrics initializes engine-specific metrics.
func InitEngineMetrics() (*EngineMetrics, error) {
	meter := otel.Meter("joinwise")

	suggestionDuration, err := meter.Float64Histogram(
		"joinwise.suggestions.duration",
		metric.WithDescription("Duration of suggestion computations in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create suggestion duration histogram: %w", err)
	}

	suggestionCount, err := meter.Int64Histogram(
		"joinwise.suggestions.count",
		metric.WithDescription("Number of suggestions produced per computation"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create suggestion count histogram: %w", err)
	}

	cacheHits, err := meter.Int64Counter(
		"joinwise.cache.hits",
		metric.WithDescription("Total number of suggestion cache hits"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache hits counter: %w", err)
	}

	cacheMisses, err := meter.Int64Counter(
		"joinwise.cache.misses",
		metric.WithDescription("Total number of suggestion cache misses"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache misses counter: %w", err)
	}

	cacheInvalidations, err := meter.Int64Counter(
		"joinwise.cache.invalidations",
		metric.WithDescription("Total number of suggestion cache invalidations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache invalidations counter: %w", err)
	}

	validationFailures, err := meter.Int64Counter(
		"joinwise.validation.failures",
		metric.WithDescription("Total number of model validation failures by kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create validation failures counter: %w", err)
	}

	compileDuration, err := meter.Float64Histogram(
		"joinwise.compile.duration",
		metric.WithDescription("Duration of validate-and-compile calls in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create compile duration histogram: %w", err)
	}

	compileCounter, err := meter.Int64Counter(
		"joinwise.compile.total",
		metric.WithDescription("Total number of validate-and-compile calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create compile counter: %w", err)
	}

	return &EngineMetrics{
		suggestionDuration: suggestionDuration,
		suggestionCount:    suggestionCount,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		cacheInvalidations: cacheInvalidations,
		validationFailures: validationFailures,
		compileDuration:    compileDuration,
		compileCounter:     compileCounter,
	}, nil
}

// RecordSuggestionComputation records a completed suggestion computation.
func (m *EngineMetrics) RecordSuggestionComputation(ctx context.Context, duration time.Duration, count int, degraded bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("metadata_degraded", degraded))
	m.suggestionDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	m.suggestionCount.Record(ctx, int64(count), attrs)
}

// RecordCacheHit increments the cache hit counter.
func (m *EngineMetrics) RecordCacheHit(ctx context.Context) {
	if m == nil {
		return
	}
	m.cacheHits.Add(ctx, 1)
}

// RecordCacheMiss increments the cache miss counter.
func (m *EngineMetrics) RecordCacheMiss(ctx context.Context) {
	if m == nil {
		return
	}
	m.cacheMisses.Add(ctx, 1)
}

// RecordCacheInvalidation increments the invalidation counter.
func (m *EngineMetrics) RecordCacheInvalidation(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.cacheInvalidations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

// RecordValidationFailures increments the failure counter once per error
// kind present in a validation result.
func (m *EngineMetrics) RecordValidationFailures(ctx context.Context, kinds []string) {
	if m == nil {
		return
	}
	for _, kind := range kinds {
		m.validationFailures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", kind),
		))
	}
}

// RecordCompile records a validate-and-compile call with its outcome.
func (m *EngineMetrics) RecordCompile(ctx context.Context, duration time.Duration, outcome string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.compileDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	m.compileCounter.Add(ctx, 1, attrs)
}

// InitMetrics initializes all custom metrics and returns the EngineMetrics
// instance.
func InitMetrics(logger *slog.Logger) (*EngineMetrics, error) {
	metrics, err := InitEngineMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize engine metrics: %w", err)
	}

	logger.Info("custom engine metrics initialized")
	return metrics, nil
}
