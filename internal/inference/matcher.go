package inference

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"joinwise/internal/introspection"
	"joinwise/internal/naming"
)

// Matcher derives join suggestions from introspected tables and optional
// ingestion display names.
type Matcher struct {
	namer   *naming.Namer
	weights Weights
}

// NewMatcher creates a Matcher with the given namer and scoring weights.
func NewMatcher(namer *naming.Namer, weights Weights) *Matcher {
	return &Matcher{namer: namer, weights: weights}
}

// candidate is a matched column pair before scoring.
type candidate struct {
	source       introspection.TableInfo
	sourceColumn introspection.ColumnInfo
	target       introspection.TableInfo
	targetColumn introspection.ColumnInfo
	targetName   naming.LogicalName
	exact        bool
}

// Infer proposes equality joins across the given tables. displayNames maps
// physical table names to registry display names and may be nil when the
// ingestion registry is unavailable; matching then degrades to raw physical
// names. The result is deterministically ordered.
func (m *Matcher) Infer(ctx context.Context, tables []introspection.TableInfo, displayNames map[string]string) []JoinSuggestion {
	_, span := startSpan(ctx, "inference.infer",
		attribute.Int("table.count", len(tables)),
	)
	defer span.End()

	logicals := make(map[string]naming.LogicalName, len(tables))
	for _, t := range tables {
		logicals[t.Name] = m.namer.Logical(t.Name, displayNames[t.Name])
	}

	var suggestions []JoinSuggestion
	// Count of source columns with at least one accepted match per table,
	// used by the junction pass below.
	resolvedFKColumns := make(map[string]int, len(tables))

	for _, source := range tables {
		for _, col := range source.Columns {
			if !col.LooksLikeForeignKey || col.IsPrimaryKey {
				continue
			}
			ref := m.namer.ForeignKeyReference(col.Name)
			if ref == "" {
				// A bare "id" carries no reference to match against.
				continue
			}

			candidates := m.matchReference(ref, source, col, tables, logicals)
			if len(candidates) == 0 {
				continue
			}
			resolvedFKColumns[source.Name]++
			for _, cand := range candidates {
				suggestions = append(suggestions, m.score(cand))
			}
		}
	}

	markJunctions(suggestions, resolvedFKColumns, tables)
	SortSuggestions(suggestions)

	span.SetAttributes(attribute.Int("suggestion.count", len(suggestions)))
	return suggestions
}

// matchReference looks up the extracted reference against every other
// table's logical-name variants. When any exact singular match exists,
// weaker matches for the same column are suppressed; otherwise all partial
// matches are emitted as lower-confidence alternatives.
func (m *Matcher) matchReference(ref string, source introspection.TableInfo, col introspection.ColumnInfo, tables []introspection.TableInfo, logicals map[string]naming.LogicalName) []candidate {
	var exact, partial []candidate
	for _, target := range tables {
		if target.Name == source.Name {
			continue
		}
		logical := logicals[target.Name]
		targetCol, ok := primaryKeyColumn(target)
		if !ok {
			continue
		}

		switch {
		case ref == logical.Singular:
			exact = append(exact, candidate{source, col, target, targetCol, logical, true})
		case ref == logical.Display || ref == logical.Plural || nameOverlap(ref, logical.Display):
			partial = append(partial, candidate{source, col, target, targetCol, logical, false})
		}
	}
	if len(exact) > 0 {
		return exact
	}
	return partial
}

// primaryKeyColumn returns the table's join target: its primary key column,
// or a column literally named "id" when no primary key is declared.
// Constraint-free uploads frequently have neither, in which case the table
// cannot be a join target.
func primaryKeyColumn(t introspection.TableInfo) (introspection.ColumnInfo, bool) {
	for _, col := range t.Columns {
		if col.IsPrimaryKey {
			return col, true
		}
	}
	if col, ok := t.Column("id"); ok {
		return col, true
	}
	return introspection.ColumnInfo{}, false
}

// nameOverlap reports a partial overlap between the reference and a logical
// name: one contains the other. Very short tokens are excluded to avoid
// noise matches.
func nameOverlap(ref, name string) bool {
	if len(ref) < 3 || len(name) < 3 {
		return false
	}
	return strings.Contains(name, ref) || strings.Contains(ref, name)
}

// score turns a candidate into a scored JoinSuggestion.
func (m *Matcher) score(c candidate) JoinSuggestion {
	w := m.weights
	var patterns []string
	var reasons []string

	confidence := w.BasePartial
	if c.exact {
		confidence = w.BaseExact
		patterns = append(patterns, PatternExactNameMatch)
		reasons = append(reasons, fmt.Sprintf("column %q references table %q by singular name", c.sourceColumn.Name, c.target.Name))
	} else {
		patterns = append(patterns, PatternPartialNameMatch)
		reasons = append(reasons, fmt.Sprintf("column %q partially matches table %q", c.sourceColumn.Name, c.target.Name))
	}

	if c.sourceColumn.DataType != "" && c.sourceColumn.DataType == c.targetColumn.DataType {
		confidence += w.TypeMatch
		patterns = append(patterns, PatternTypeMatch)
		reasons = append(reasons, "column types match")
	}
	if c.targetColumn.IsPrimaryKey {
		confidence += w.TargetPrimaryKey
		patterns = append(patterns, PatternPrimaryKey)
		reasons = append(reasons, fmt.Sprintf("%q is the primary key of %q", c.targetColumn.Name, c.target.Name))
	}
	if c.sourceColumn.IsIndexed && c.targetColumn.IsIndexed {
		confidence += w.BothIndexed
		patterns = append(patterns, PatternIndexed)
		reasons = append(reasons, "both columns are indexed")
	}
	if naming.HasIDSuffix(c.sourceColumn.Name) {
		confidence += w.IDSuffix
		patterns = append(patterns, PatternIDSuffix)
	}
	if c.targetName.FromMetadata {
		confidence += w.LogicalName
		patterns = append(patterns, PatternLogicalName)
		reasons = append(reasons, "matched through registered display name")
	}
	if confidence > 1.0 {
		confidence = 1.0
	}

	return JoinSuggestion{
		LeftSchema:    c.source.Schema,
		LeftTable:     c.source.Name,
		LeftColumn:    c.sourceColumn.Name,
		RightSchema:   c.target.Schema,
		RightTable:    c.target.Name,
		RightColumn:   c.targetColumn.Name,
		Kind:          KindEquality,
		Confidence:    confidence,
		Reason:        strings.Join(reasons, "; "),
		Patterns:      patterns,
		LowConfidence: confidence < w.LowConfidenceFloor,
	}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("joinwise/inference")
	ctx, span := tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}
