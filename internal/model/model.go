// Package model defines the declarative representation of a multi-table
// query under construction. A QueryModel is a plain serializable value:
// producers (manual UI or AI planner) build and mutate it, the validator
// checks it, and the compiler renders it to SQL. It carries no behavior of
// its own beyond copying.
package model

import "encoding/json"

// Join kinds accepted in QueryModel.Joins.
const (
	JoinInner = "INNER"
	JoinLeft  = "LEFT"
	JoinRight = "RIGHT"
	JoinFull  = "FULL"
)

// Predicate logic connectors.
const (
	LogicAnd = "AND"
	LogicOr  = "OR"
)

// Unset is the sentinel for limit and offset meaning "not set". It is
// distinct from an explicit zero.
const Unset = -1

// ColumnRef names a column. Table may be a physical table name or a join
// alias; the validator resolves aliases before checking existence.
type ColumnRef struct {
	Schema string `json:"schema,omitempty"`
	Table  string `json:"table"`
	Column string `json:"column"`
}

// SelectedColumn is one entry in the model's column list. IsAggregateOnly
// marks columns that exist solely as aggregate inputs; they must not render
// in the plain SELECT list.
type SelectedColumn struct {
	Schema          string `json:"schema,omitempty"`
	Table           string `json:"table"`
	Column          string `json:"column"`
	Alias           string `json:"alias,omitempty"`
	IsSelected      bool   `json:"is_selected"`
	IsAggregateOnly bool   `json:"is_aggregate_only,omitempty"`
}

// Ref returns the column reference for a selected column.
func (c SelectedColumn) Ref() ColumnRef {
	return ColumnRef{Schema: c.Schema, Table: c.Table, Column: c.Column}
}

// JoinPredicate is an extra equality condition on a join beyond the primary
// ON clause, connected with AND or OR.
type JoinPredicate struct {
	Logic       string `json:"logic"`
	LeftColumn  string `json:"left_column"`
	RightColumn string `json:"right_column"`
}

// Join is one entry in the model's join list. Aliases are optional; when
// present they are rendered verbatim, which is what makes self-joins
// expressible (the same physical table under two distinct aliases).
// UserAuthored marks joins the user added explicitly; they bypass the
// inferred-relationship check but still pass every structural check.
type Join struct {
	LeftSchema   string          `json:"left_schema,omitempty"`
	LeftTable    string          `json:"left_table"`
	LeftAlias    string          `json:"left_alias,omitempty"`
	LeftColumn   string          `json:"left_column"`
	RightSchema  string          `json:"right_schema,omitempty"`
	RightTable   string          `json:"right_table"`
	RightAlias   string          `json:"right_alias,omitempty"`
	RightColumn  string          `json:"right_column"`
	JoinKind     string          `json:"join_kind"`
	ExtraPreds   []JoinPredicate `json:"extra_predicates,omitempty"`
	UserAuthored bool            `json:"user_authored,omitempty"`
}

// AggregateFunc applies a named SQL aggregate to a single column.
type AggregateFunc struct {
	Schema   string `json:"schema,omitempty"`
	Table    string `json:"table"`
	Column   string `json:"column"`
	Function string `json:"function"`
	Alias    string `json:"alias"`
	Distinct bool   `json:"distinct,omitempty"`
}

// AggregateExpr is a raw aggregate expression for cases a single-column
// function cannot express (e.g. SUM(price * quantity)).
type AggregateExpr struct {
	RawExpression string `json:"raw_expression"`
	Alias         string `json:"alias"`
}

// HavingCondition filters grouped rows by an aggregate alias or expression.
type HavingCondition struct {
	Logic      string `json:"logic,omitempty"`
	Expression string `json:"expression"`
	Operator   string `json:"operator"`
	Value      any    `json:"value"`
}

// GroupBy holds grouping and aggregation for the model.
type GroupBy struct {
	GroupByColumns       []ColumnRef       `json:"group_by_columns,omitempty"`
	AggregateFunctions   []AggregateFunc   `json:"aggregate_functions,omitempty"`
	AggregateExpressions []AggregateExpr   `json:"aggregate_expressions,omitempty"`
	HavingConditions     []HavingCondition `json:"having_conditions,omitempty"`
}

// HasAggregates reports whether any aggregate function or expression is
// present.
func (g GroupBy) HasAggregates() bool {
	return len(g.AggregateFunctions) > 0 || len(g.AggregateExpressions) > 0
}

// Filter is one WHERE predicate. Logic connects it to the previous filter
// and is ignored on the first one.
type Filter struct {
	Logic    string    `json:"logic,omitempty"`
	Ref      ColumnRef `json:"ref"`
	Operator string    `json:"operator"`
	Value    any       `json:"value,omitempty"`
}

// OrderBy is one ORDER BY entry.
type OrderBy struct {
	Ref        ColumnRef `json:"ref"`
	Descending bool      `json:"descending,omitempty"`
}

// QueryModel is the single source of truth for a query under construction.
// Limit and Offset use Unset to distinguish "not set" from an explicit zero.
type QueryModel struct {
	Columns []SelectedColumn `json:"columns"`
	Joins   []Join           `json:"joins,omitempty"`
	GroupBy GroupBy          `json:"group_by,omitempty"`
	Filters []Filter         `json:"filters,omitempty"`
	OrderBy []OrderBy        `json:"order_by,omitempty"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

// New returns an empty QueryModel with limit and offset unset.
func New() *QueryModel {
	return &QueryModel{Limit: Unset, Offset: Unset}
}

// UnmarshalJSON defaults absent limit and offset fields to Unset, so a wire
// model that omits them is not mistaken for an explicit LIMIT 0.
func (m *QueryModel) UnmarshalJSON(data []byte) error {
	type plain QueryModel
	tmp := plain{Limit: Unset, Offset: Unset}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*m = QueryModel(tmp)
	return nil
}

// Clone returns a deep copy. The validator operates on a clone so it never
// mutates the caller's model.
func (m *QueryModel) Clone() *QueryModel {
	if m == nil {
		return nil
	}
	out := *m
	out.Columns = append([]SelectedColumn(nil), m.Columns...)
	out.Joins = make([]Join, len(m.Joins))
	for i, j := range m.Joins {
		j.ExtraPreds = append([]JoinPredicate(nil), j.ExtraPreds...)
		out.Joins[i] = j
	}
	out.GroupBy = GroupBy{
		GroupByColumns:       append([]ColumnRef(nil), m.GroupBy.GroupByColumns...),
		AggregateFunctions:   append([]AggregateFunc(nil), m.GroupBy.AggregateFunctions...),
		AggregateExpressions: append([]AggregateExpr(nil), m.GroupBy.AggregateExpressions...),
		HavingConditions:     append([]HavingCondition(nil), m.GroupBy.HavingConditions...),
	}
	out.Filters = append([]Filter(nil), m.Filters...)
	out.OrderBy = append([]OrderBy(nil), m.OrderBy...)
	return &out
}

// LeftRef returns the left side of the join as a column reference, using
// the alias as the table qualifier when present.
func (j Join) LeftRef() ColumnRef {
	table := j.LeftTable
	if j.LeftAlias != "" {
		table = j.LeftAlias
	}
	return ColumnRef{Schema: j.LeftSchema, Table: table, Column: j.LeftColumn}
}

// RightRef returns the right side of the join as a column reference, using
// the alias as the table qualifier when present.
func (j Join) RightRef() ColumnRef {
	table := j.RightTable
	if j.RightAlias != "" {
		table = j.RightAlias
	}
	return ColumnRef{Schema: j.RightSchema, Table: table, Column: j.RightColumn}
}
