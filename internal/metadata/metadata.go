// Package metadata resolves logical table names from the ingestion
// registry. Physical tables created by ingestion often carry opaque names;
// the registry maps them back to the display names users uploaded.
package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"joinwise/internal/introspection"
)

// ErrMetadataUnavailable is returned when the ingestion registry cannot be
// reached. Callers degrade to raw physical names rather than failing the
// whole suggestion pass.
var ErrMetadataUnavailable = errors.New("ingestion metadata unavailable")

// registryTable is the side table ingestion maintains for uploaded sources.
const registryTable = "ingest_table_registry"

// Entry maps one physical table to its registered display name.
type Entry struct {
	DataSourceID  string
	SchemaName    string
	PhysicalTable string
	DisplayName   string
}

// Resolver reads display-name entries from the ingestion registry.
type Resolver struct {
	db introspection.Queryer
}

// NewResolver creates a Resolver over the given query handle.
func NewResolver(db introspection.Queryer) *Resolver {
	return &Resolver{db: db}
}

// DisplayNames returns physical-table -> display-name mappings for one data
// source and schema. A registry read failure wraps ErrMetadataUnavailable.
func (r *Resolver) DisplayNames(ctx context.Context, dataSourceID, schemaName string) (map[string]string, error) {
	ctx, span := startSpan(ctx, "metadata.display_names",
		attribute.String("data_source.id", dataSourceID),
		attribute.String("db.schema", schemaName),
	)
	defer span.End()

	query, args, err := sq.Select("physical_table", "display_name").
		From(registryTable).
		Where(sq.Eq{"data_source_id": dataSourceID, "schema_name": schemaName}).
		OrderBy("physical_table").
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("failed to build registry query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("%w: %v", ErrMetadataUnavailable, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	names := make(map[string]string)
	for rows.Next() {
		var physical string
		var display sql.NullString
		if err := rows.Scan(&physical, &display); err != nil {
			recordSpanError(span, err)
			return nil, fmt.Errorf("%w: %v", ErrMetadataUnavailable, err)
		}
		if display.Valid && display.String != "" {
			names[physical] = display.String
		}
	}

	if err := rows.Err(); err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("%w: %v", ErrMetadataUnavailable, err)
	}
	return names, nil
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("joinwise/metadata")
	ctx, span := tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
