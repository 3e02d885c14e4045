// Package engine is the facade over join inference, validation, and
// compilation. It owns the suggestion cache and exposes the two operations
// collaborators call: GetJoinSuggestions and ValidateAndCompile.
package engine

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"joinwise/internal/compile"
	"joinwise/internal/inference"
	"joinwise/internal/introspection"
	"joinwise/internal/logging"
	"joinwise/internal/metadata"
	"joinwise/internal/model"
	"joinwise/internal/observability"
	"joinwise/internal/suggestcache"
	"joinwise/internal/validate"
)

// Engine wires the inference pipeline to the cache and the validator to
// the compiler. It is safe for concurrent use.
type Engine struct {
	db       introspection.Queryer
	resolver *metadata.Resolver
	matcher  *inference.Matcher
	cache    *suggestcache.Cache
	logger   *logging.Logger
	metrics  *observability.EngineMetrics
}

// Options configures an Engine.
type Options struct {
	DB       introspection.Queryer
	Resolver *metadata.Resolver
	Matcher  *inference.Matcher
	CacheTTL time.Duration
	Logger   *logging.Logger
	Metrics  *observability.EngineMetrics
}

// New creates an Engine.
func New(opts Options) *Engine {
	return &Engine{
		db:       opts.DB,
		resolver: opts.Resolver,
		matcher:  opts.Matcher,
		cache:    suggestcache.New(opts.CacheTTL),
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
}

// GetJoinSuggestions returns the ordered suggestion list for a data source
// and schema, computing and caching it on first use. forceRefresh bypasses
// a fresh cache entry.
func (e *Engine) GetJoinSuggestions(ctx context.Context, dataSourceID, schemaName string, forceRefresh bool) ([]inference.JoinSuggestion, error) {
	snap, err := e.snapshot(ctx, dataSourceID, schemaName, forceRefresh)
	if err != nil {
		return nil, err
	}
	return snap.Suggestions, nil
}

// CompileOutcome is the result of ValidateAndCompile: either a compiled
// statement or a complete list of validation errors.
type CompileOutcome struct {
	Result           *compile.Result  `json:"result,omitempty"`
	ValidationErrors []validate.Error `json:"validation_errors,omitempty"`
}

// ValidateAndCompile validates a query model against the live schema and
// the known relationship set, then compiles it if sound. Validation errors
// come back in the outcome, not as a Go error; the error return is reserved
// for infrastructure failures and internal compile errors.
func (e *Engine) ValidateAndCompile(ctx context.Context, qm *model.QueryModel, dataSourceID, schemaName string) (CompileOutcome, error) {
	ctx, span := startSpan(ctx, "engine.validate_and_compile",
		attribute.String("data_source.id", dataSourceID),
		attribute.String("db.schema", schemaName),
	)
	defer span.End()
	start := time.Now()

	snap, err := e.snapshot(ctx, dataSourceID, schemaName, false)
	if err != nil {
		e.metrics.RecordCompile(ctx, time.Since(start), "infrastructure_error")
		return CompileOutcome{}, err
	}

	validator := validate.New(snap.Tables, snap.Suggestions)
	if errs := validator.Validate(qm); len(errs) > 0 {
		kinds := make([]string, len(errs))
		for i, ve := range errs {
			kinds[i] = ve.Kind
		}
		e.metrics.RecordValidationFailures(ctx, kinds)
		e.metrics.RecordCompile(ctx, time.Since(start), "validation_failed")
		e.logger.FromContext(ctx).Info("query model rejected",
			"data_source_id", dataSourceID,
			"schema", schemaName,
			"error_count", len(errs),
		)
		return CompileOutcome{ValidationErrors: errs}, nil
	}

	result, err := compile.Compile(qm)
	if err != nil {
		e.metrics.RecordCompile(ctx, time.Since(start), "internal_error")
		e.logger.FromContext(ctx).Error("compilation failed on validated model",
			"data_source_id", dataSourceID,
			"schema", schemaName,
			"error", err,
		)
		return CompileOutcome{}, err
	}

	e.metrics.RecordCompile(ctx, time.Since(start), "ok")
	return CompileOutcome{Result: &result}, nil
}

// InvalidateSchema drops the cached suggestions for one schema. Ingestion
// calls this when a schema-affecting change lands.
func (e *Engine) InvalidateSchema(ctx context.Context, dataSourceID, schemaName string) {
	e.cache.Invalidate(suggestcache.Key{DataSourceID: dataSourceID, SchemaName: schemaName})
	e.metrics.RecordCacheInvalidation(ctx, "schema_change")
	e.logger.FromContext(ctx).Info("suggestion cache invalidated",
		"data_source_id", dataSourceID,
		"schema", schemaName,
	)
}

// InvalidateDataSource drops cached suggestions for every schema of a data
// source.
func (e *Engine) InvalidateDataSource(ctx context.Context, dataSourceID string) {
	e.cache.InvalidateDataSource(dataSourceID)
	e.metrics.RecordCacheInvalidation(ctx, "data_source_change")
	e.logger.FromContext(ctx).Info("suggestion cache invalidated",
		"data_source_id", dataSourceID,
	)
}

func (e *Engine) snapshot(ctx context.Context, dataSourceID, schemaName string, forceRefresh bool) (*suggestcache.Snapshot, error) {
	key := suggestcache.Key{DataSourceID: dataSourceID, SchemaName: schemaName}
	computed := false
	snap, err := e.cache.Get(ctx, key, forceRefresh, func(ctx context.Context, key suggestcache.Key) (*suggestcache.Snapshot, error) {
		computed = true
		return e.computeSnapshot(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	if computed {
		e.metrics.RecordCacheMiss(ctx)
	} else {
		e.metrics.RecordCacheHit(ctx)
	}
	return snap, nil
}

// computeSnapshot introspects the schema, resolves display names, and runs
// inference. A metadata outage degrades to raw physical names instead of
// failing the computation.
func (e *Engine) computeSnapshot(ctx context.Context, key suggestcache.Key) (*suggestcache.Snapshot, error) {
	ctx, span := startSpan(ctx, "engine.compute_snapshot",
		attribute.String("data_source.id", key.DataSourceID),
		attribute.String("db.schema", key.SchemaName),
	)
	defer span.End()
	start := time.Now()

	tables, err := introspection.ListTables(ctx, e.db, key.SchemaName)
	if err != nil {
		return nil, err
	}

	degraded := false
	displayNames, err := e.resolver.DisplayNames(ctx, key.DataSourceID, key.SchemaName)
	if err != nil {
		if !errors.Is(err, metadata.ErrMetadataUnavailable) {
			return nil, err
		}
		degraded = true
		displayNames = nil
		e.logger.FromContext(ctx).Warn("ingestion metadata unavailable, matching on raw physical names",
			"data_source_id", key.DataSourceID,
			"schema", key.SchemaName,
			"error", err,
		)
	}

	suggestions := e.matcher.Infer(ctx, tables, displayNames)
	e.metrics.RecordSuggestionComputation(ctx, time.Since(start), len(suggestions), degraded)
	e.logger.FromContext(ctx).Info("computed join suggestions",
		"data_source_id", key.DataSourceID,
		"schema", key.SchemaName,
		"table_count", len(tables),
		"suggestion_count", len(suggestions),
		"metadata_degraded", degraded,
	)

	return &suggestcache.Snapshot{
		Tables:      tables,
		Suggestions: suggestions,
		ComputedAt:  time.Now(),
	}, nil
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("joinwise/engine")
	ctx, span := tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}
