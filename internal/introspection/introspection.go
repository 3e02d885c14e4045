// Package introspection discovers physical schema metadata from the
// database's information_schema: tables, columns, primary keys, and index
// coverage. The result feeds relationship inference and model validation.
package introspection

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"joinwise/internal/naming"
)

// ColumnInfo describes a single column as seen by the inference layer.
type ColumnInfo struct {
	Name     string
	DataType string
	// IsPrimaryKey is true when the column is part of the table's primary key.
	IsPrimaryKey bool
	// IsIndexed is true when the column is the leading column of any index
	// (including the primary key).
	IsIndexed bool
	// LooksLikeForeignKey flags columns whose name has foreign-key shape
	// ("<ref>_id" or bare "id").
	LooksLikeForeignKey bool
}

// TableInfo describes a table and its columns.
type TableInfo struct {
	Schema  string
	Name    string
	Columns []ColumnInfo
}

// Column returns the named column, matched case-insensitively.
func (t TableInfo) Column(name string) (ColumnInfo, bool) {
	for _, col := range t.Columns {
		if strings.EqualFold(col.Name, name) {
			return col, true
		}
	}
	return ColumnInfo{}, false
}

// Queryer provides query access for schema introspection.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ListTables queries information_schema to discover all base tables in the
// given schema along with their columns, primary key membership, and index
// coverage. Tables are returned ordered by name.
func ListTables(ctx context.Context, db Queryer, schemaName string) ([]TableInfo, error) {
	ctx, span := startSpan(ctx, "introspection.list_tables",
		attribute.String("db.schema", schemaName),
	)
	defer span.End()

	names, err := getTableNames(ctx, db, schemaName)
	if err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}

	tables := make([]TableInfo, 0, len(names))
	for _, name := range names {
		columns, err := getColumns(ctx, db, schemaName, name)
		if err != nil {
			recordSpanError(span, err)
			return nil, fmt.Errorf("failed to get columns for %s: %w", name, err)
		}

		primaryKeys, err := getPrimaryKeys(ctx, db, schemaName, name)
		if err != nil {
			recordSpanError(span, err)
			return nil, fmt.Errorf("failed to get primary keys for %s: %w", name, err)
		}

		indexedColumns, err := getIndexedColumns(ctx, db, schemaName, name)
		if err != nil {
			recordSpanError(span, err)
			return nil, fmt.Errorf("failed to get indexes for %s: %w", name, err)
		}

		for i := range columns {
			for _, pk := range primaryKeys {
				if strings.EqualFold(columns[i].Name, pk) {
					columns[i].IsPrimaryKey = true
					columns[i].IsIndexed = true
					break
				}
			}
			if _, ok := indexedColumns[strings.ToLower(columns[i].Name)]; ok {
				columns[i].IsIndexed = true
			}
		}

		tables = append(tables, TableInfo{
			Schema:  schemaName,
			Name:    name,
			Columns: columns,
		})
	}

	return tables, nil
}

func getTableNames(ctx context.Context, db Queryer, schemaName string) ([]string, error) {
	ctx, span := startSpan(ctx, "introspection.get_tables",
		attribute.String("db.schema", schemaName),
	)
	defer span.End()

	query := `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ?
		AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME
	`

	rows, err := db.QueryContext(ctx, query, schemaName)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return names, nil
}

func getColumns(ctx context.Context, db Queryer, schemaName, tableName string) ([]ColumnInfo, error) {
	ctx, span := startSpan(ctx, "introspection.get_columns",
		attribute.String("db.schema", schemaName),
		attribute.String("db.table", tableName),
	)
	defer span.End()

	query := `
		SELECT COLUMN_NAME, DATA_TYPE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`

	rows, err := db.QueryContext(ctx, query, schemaName, tableName)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var columns []ColumnInfo
	for rows.Next() {
		var col ColumnInfo
		if err := rows.Scan(&col.Name, &col.DataType); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		col.DataType = strings.ToLower(strings.TrimSpace(col.DataType))
		col.LooksLikeForeignKey = naming.LooksLikeForeignKey(col.Name)
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return columns, nil
}

func getPrimaryKeys(ctx context.Context, db Queryer, schemaName, tableName string) ([]string, error) {
	ctx, span := startSpan(ctx, "introspection.get_primary_keys",
		attribute.String("db.schema", schemaName),
		attribute.String("db.table", tableName),
	)
	defer span.End()

	query := `
		SELECT COLUMN_NAME
		FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = ?
		AND TABLE_NAME = ?
		AND CONSTRAINT_NAME = 'PRIMARY'
		ORDER BY ORDINAL_POSITION
	`

	rows, err := db.QueryContext(ctx, query, schemaName, tableName)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var primaryKeys []string
	for rows.Next() {
		var columnName string
		if err := rows.Scan(&columnName); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		primaryKeys = append(primaryKeys, columnName)
	}

	if err := rows.Err(); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return primaryKeys, nil
}

// getIndexedColumns returns the set of leading index columns, lower-cased.
// Only the first column of a composite index benefits a join predicate, so
// only SEQ_IN_INDEX = 1 entries count.
func getIndexedColumns(ctx context.Context, db Queryer, schemaName, tableName string) (map[string]struct{}, error) {
	ctx, span := startSpan(ctx, "introspection.get_indexes",
		attribute.String("db.schema", schemaName),
		attribute.String("db.table", tableName),
	)
	defer span.End()

	query := `
		SELECT COLUMN_NAME
		FROM INFORMATION_SCHEMA.STATISTICS
		WHERE TABLE_SCHEMA = ?
			AND TABLE_NAME = ?
			AND SEQ_IN_INDEX = 1
		ORDER BY INDEX_NAME
	`

	rows, err := db.QueryContext(ctx, query, schemaName, tableName)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	indexed := make(map[string]struct{})
	for rows.Next() {
		var columnName string
		if err := rows.Scan(&columnName); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		indexed[strings.ToLower(columnName)] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return indexed, nil
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("joinwise/introspection")
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
