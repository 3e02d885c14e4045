// Package validate checks a query model for structural soundness against
// the live schema and against the inferred relationship set. Only joins the
// inference layer has surfaced, or ones the user authored explicitly, are
// accepted; this is the closed-world check that rejects hallucinated
// relationships from AI-produced models.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"joinwise/internal/inference"
	"joinwise/internal/introspection"
	"joinwise/internal/model"
)

// SchemaIndex provides case-insensitive table and column lookup over one
// introspected schema snapshot.
type SchemaIndex struct {
	tables map[string]introspection.TableInfo
}

// NewSchemaIndex builds an index over the given tables.
func NewSchemaIndex(tables []introspection.TableInfo) *SchemaIndex {
	idx := &SchemaIndex{tables: make(map[string]introspection.TableInfo, len(tables))}
	for _, t := range tables {
		idx.tables[strings.ToLower(t.Name)] = t
	}
	return idx
}

// Table returns the named table, matched case-insensitively.
func (s *SchemaIndex) Table(name string) (introspection.TableInfo, bool) {
	t, ok := s.tables[strings.ToLower(name)]
	return t, ok
}

// HasColumn reports whether table.column exists.
func (s *SchemaIndex) HasColumn(table, column string) bool {
	t, ok := s.Table(table)
	if !ok {
		return false
	}
	_, ok = t.Column(column)
	return ok
}

// Validator checks query models against a schema snapshot and its inferred
// suggestions.
type Validator struct {
	schema *SchemaIndex
	// legitimate holds unordered pair keys of every inferred relationship.
	legitimate map[string]struct{}
}

// New builds a Validator from introspected tables and their suggestion set.
func New(tables []introspection.TableInfo, suggestions []inference.JoinSuggestion) *Validator {
	legitimate := make(map[string]struct{}, len(suggestions))
	for _, s := range suggestions {
		key := pairKey(
			columnKey(s.LeftTable, s.LeftColumn),
			columnKey(s.RightTable, s.RightColumn),
		)
		legitimate[key] = struct{}{}
	}
	return &Validator{
		schema:     NewSchemaIndex(tables),
		legitimate: legitimate,
	}
}

// Validate runs all validation passes over a copy of the model and returns
// every violation found. The existence pass is fail-fast since later passes
// presume referenced identifiers exist; all other passes accumulate. A nil
// or empty result means the model is sound and may be compiled.
func (v *Validator) Validate(qm *model.QueryModel) []Error {
	m := qm.Clone()
	aliases := aliasMap(m)

	if errs := v.checkExistence(m, aliases); len(errs) > 0 {
		return errs
	}

	var errs []Error
	errs = append(errs, v.checkJoins(m, aliases)...)
	errs = append(errs, v.checkConnectivity(m)...)
	errs = append(errs, v.checkGroupBy(m)...)
	return errs
}

// aliasMap maps every qualifier usable in column references (alias or
// physical name) to its physical table name.
func aliasMap(m *model.QueryModel) map[string]string {
	aliases := make(map[string]string)
	bind := func(alias, table string) {
		if table == "" {
			return
		}
		aliases[strings.ToLower(table)] = table
		if alias != "" {
			aliases[strings.ToLower(alias)] = table
		}
	}
	for _, c := range m.Columns {
		bind("", c.Table)
	}
	for _, j := range m.Joins {
		bind(j.LeftAlias, j.LeftTable)
		bind(j.RightAlias, j.RightTable)
	}
	return aliases
}

// resolve maps a reference qualifier to its physical table. Unknown
// qualifiers resolve to themselves so the existence pass reports them
// against the name the caller wrote.
func resolve(aliases map[string]string, qualifier string) string {
	if physical, ok := aliases[strings.ToLower(qualifier)]; ok {
		return physical
	}
	return qualifier
}

// checkExistence verifies that every referenced column exists in the live
// schema. It short-circuits on the first violation.
func (v *Validator) checkExistence(m *model.QueryModel, aliases map[string]string) []Error {
	check := func(ref model.ColumnRef) *Error {
		physical := resolve(aliases, ref.Table)
		if !v.schema.HasColumn(physical, ref.Column) {
			err := unknownColumn(ref.Table, ref.Column)
			return &err
		}
		return nil
	}

	for _, c := range m.Columns {
		if err := check(c.Ref()); err != nil {
			return []Error{*err}
		}
	}
	for _, j := range m.Joins {
		if err := check(j.LeftRef()); err != nil {
			return []Error{*err}
		}
		if err := check(j.RightRef()); err != nil {
			return []Error{*err}
		}
		for _, p := range j.ExtraPreds {
			left := j.LeftRef()
			left.Column = p.LeftColumn
			if err := check(left); err != nil {
				return []Error{*err}
			}
			right := j.RightRef()
			right.Column = p.RightColumn
			if err := check(right); err != nil {
				return []Error{*err}
			}
		}
	}
	for _, ref := range m.GroupBy.GroupByColumns {
		if err := check(ref); err != nil {
			return []Error{*err}
		}
	}
	for _, agg := range m.GroupBy.AggregateFunctions {
		if err := check(model.ColumnRef{Schema: agg.Schema, Table: agg.Table, Column: agg.Column}); err != nil {
			return []Error{*err}
		}
	}
	for _, f := range m.Filters {
		if err := check(f.Ref); err != nil {
			return []Error{*err}
		}
	}
	for _, o := range m.OrderBy {
		if err := check(o.Ref); err != nil {
			return []Error{*err}
		}
	}
	return nil
}

// checkJoins verifies every join against the inferred relationship set.
// Pair keys are unordered, so a suggestion stored as A -> B legitimizes a
// join written as B -> A. User-authored joins are exempt.
func (v *Validator) checkJoins(m *model.QueryModel, aliases map[string]string) []Error {
	var errs []Error
	for _, j := range m.Joins {
		if j.UserAuthored {
			continue
		}
		leftTable := resolve(aliases, j.LeftRef().Table)
		rightTable := resolve(aliases, j.RightRef().Table)
		left := columnKey(leftTable, j.LeftColumn)
		right := columnKey(rightTable, j.RightColumn)
		if _, ok := v.legitimate[pairKey(left, right)]; !ok {
			errs = append(errs, unrecognizedJoin(
				fmt.Sprintf("%s.%s", leftTable, j.LeftColumn),
				fmt.Sprintf("%s.%s", rightTable, j.RightColumn),
			))
		}
	}
	return errs
}

// checkConnectivity builds a graph over the qualifiers referenced by
// selected columns with joins as edges. Every table must land in the same
// connected component as the first selected column's table.
func (v *Validator) checkConnectivity(m *model.QueryModel) []Error {
	nodes := make(map[string]string) // lower-cased qualifier -> display form
	var order []string
	addNode := func(qualifier string) string {
		key := strings.ToLower(qualifier)
		if _, ok := nodes[key]; !ok {
			nodes[key] = qualifier
			order = append(order, key)
		}
		return key
	}

	for _, c := range m.Columns {
		addNode(c.Table)
	}
	if len(order) <= 1 {
		return nil
	}

	edges := make(map[string][]string)
	for _, j := range m.Joins {
		l := addNode(j.LeftRef().Table)
		r := addNode(j.RightRef().Table)
		edges[l] = append(edges[l], r)
		edges[r] = append(edges[r], l)
	}

	reached := map[string]bool{order[0]: true}
	queue := []string{order[0]}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, next := range edges[node] {
			if !reached[next] {
				reached[next] = true
				queue = append(queue, next)
			}
		}
	}

	var orphans []string
	for _, key := range order {
		if !reached[key] {
			orphans = append(orphans, nodes[key])
		}
	}
	if len(orphans) == 0 {
		return nil
	}
	sort.Strings(orphans)
	return []Error{orphanedTables(orphans)}
}

// checkGroupBy enforces aggregation projection rules: with any aggregate
// present, every plain selected column must appear in the group-by list,
// and aggregate-only columns must not.
func (v *Validator) checkGroupBy(m *model.QueryModel) []Error {
	if !m.GroupBy.HasAggregates() {
		return nil
	}

	grouped := make(map[string]struct{}, len(m.GroupBy.GroupByColumns))
	for _, ref := range m.GroupBy.GroupByColumns {
		grouped[refKey(ref)] = struct{}{}
	}

	var errs []Error
	for _, c := range m.Columns {
		key := refKey(c.Ref())
		_, inGroupBy := grouped[key]
		switch {
		case c.IsSelected && !c.IsAggregateOnly && !inGroupBy:
			errs = append(errs, invalidGroupBy(c.Table, c.Column, ReasonMissingFromGroupBy))
		case c.IsAggregateOnly && inGroupBy:
			errs = append(errs, invalidGroupBy(c.Table, c.Column, ReasonWronglyIncluded))
		}
	}
	return errs
}

func refKey(ref model.ColumnRef) string {
	return strings.ToLower(ref.Table) + "." + strings.ToLower(ref.Column)
}

// columnKey identifies a column within a snapshot. A snapshot covers a
// single schema, so the key deliberately omits it; joins and suggestions
// then compare equal whether or not the model spelled the schema out.
func columnKey(table, column string) string {
	return strings.ToLower(table + "." + column)
}

// pairKey builds an order-independent key for a column pair.
func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}
