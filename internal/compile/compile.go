// Package compile renders a validated query model into parameterized SQL.
// Rendering is deterministic: clause order follows the model verbatim and
// no join reordering or optimization is performed. Compile must only be
// called on a model that passed validation with zero errors; any failure
// here indicates an engine bug, not a bad input, and is reported as an
// internal error distinct from validation errors.
package compile

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"joinwise/internal/model"
	"joinwise/internal/sqlutil"
)

// Result is the compiled statement with its positional parameters.
type Result struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

// InternalError reports a compilation failure on an already-validated
// model.
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string {
	return "internal compile error: " + e.Message
}

func internalErrorf(format string, args ...any) *InternalError {
	return &InternalError{Message: fmt.Sprintf(format, args...)}
}

// aggregateFunctions whitelists functions renderable from AggregateFunc.
var aggregateFunctions = map[string]struct{}{
	"COUNT":        {},
	"SUM":          {},
	"AVG":          {},
	"MIN":          {},
	"MAX":          {},
	"GROUP_CONCAT": {},
}

// comparisonOperators whitelists operators renderable in filters and
// having conditions. The value indicates whether the operator consumes a
// bound parameter.
var comparisonOperators = map[string]bool{
	"=":           true,
	"!=":          true,
	"<>":          true,
	"<":           true,
	"<=":          true,
	">":           true,
	">=":          true,
	"LIKE":        true,
	"NOT LIKE":    true,
	"IN":          true,
	"NOT IN":      true,
	"IS NULL":     false,
	"IS NOT NULL": false,
}

// Compile renders the model to SQL with question-mark placeholders.
func Compile(m *model.QueryModel) (Result, error) {
	selectItems, err := buildSelectItems(m)
	if err != nil {
		return Result{}, err
	}

	builder := sq.Select(selectItems...).
		From(fromClause(m)).
		PlaceholderFormat(sq.Question)

	for _, j := range m.Joins {
		clause, err := joinClause(j)
		if err != nil {
			return Result{}, err
		}
		builder = builder.JoinClause(clause)
	}

	if len(m.Filters) > 0 {
		whereSQL, whereArgs, err := buildConditions(m.Filters)
		if err != nil {
			return Result{}, err
		}
		builder = builder.Where(sq.Expr(whereSQL, whereArgs...))
	}

	if len(m.GroupBy.GroupByColumns) > 0 {
		groupCols := make([]string, len(m.GroupBy.GroupByColumns))
		for i, ref := range m.GroupBy.GroupByColumns {
			groupCols[i] = sqlutil.QuoteQualified(ref.Table, ref.Column)
		}
		builder = builder.GroupBy(groupCols...)
	}

	if len(m.GroupBy.HavingConditions) > 0 {
		havingSQL, havingArgs, err := buildHaving(m.GroupBy.HavingConditions)
		if err != nil {
			return Result{}, err
		}
		builder = builder.Having(sq.Expr(havingSQL, havingArgs...))
	}

	for _, o := range m.OrderBy {
		direction := "ASC"
		if o.Descending {
			direction = "DESC"
		}
		builder = builder.OrderBy(sqlutil.QuoteQualified(o.Ref.Table, o.Ref.Column) + " " + direction)
	}

	if m.Limit != model.Unset {
		if m.Limit < 0 {
			return Result{}, internalErrorf("negative limit %d", m.Limit)
		}
		builder = builder.Limit(uint64(m.Limit))
	}
	if m.Offset != model.Unset {
		if m.Offset < 0 {
			return Result{}, internalErrorf("negative offset %d", m.Offset)
		}
		builder = builder.Offset(uint64(m.Offset))
	}

	sqlText, args, err := builder.ToSql()
	if err != nil {
		return Result{}, internalErrorf("failed to render statement: %v", err)
	}
	if args == nil {
		args = []any{}
	}
	return Result{SQL: sqlText, Params: args}, nil
}

// buildSelectItems renders the projection in deterministic order: plain
// selected columns first, then aggregate functions, then raw aggregate
// expressions.
func buildSelectItems(m *model.QueryModel) ([]string, error) {
	var items []string
	for _, c := range m.Columns {
		if !c.IsSelected || c.IsAggregateOnly {
			continue
		}
		item := sqlutil.QuoteQualified(c.Table, c.Column)
		if c.Alias != "" {
			item += " AS " + sqlutil.QuoteIdentifier(c.Alias)
		}
		items = append(items, item)
	}
	for _, agg := range m.GroupBy.AggregateFunctions {
		fn := strings.ToUpper(strings.TrimSpace(agg.Function))
		if _, ok := aggregateFunctions[fn]; !ok {
			return nil, internalErrorf("unsupported aggregate function %q", agg.Function)
		}
		inner := sqlutil.QuoteQualified(agg.Table, agg.Column)
		if agg.Distinct {
			inner = "DISTINCT " + inner
		}
		item := fmt.Sprintf("%s(%s)", fn, inner)
		if agg.Alias != "" {
			item += " AS " + sqlutil.QuoteIdentifier(agg.Alias)
		}
		items = append(items, item)
	}
	for _, expr := range m.GroupBy.AggregateExpressions {
		if strings.TrimSpace(expr.RawExpression) == "" {
			return nil, internalErrorf("empty aggregate expression")
		}
		item := expr.RawExpression
		if expr.Alias != "" {
			item += " AS " + sqlutil.QuoteIdentifier(expr.Alias)
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, internalErrorf("nothing to select")
	}
	return items, nil
}

// fromClause renders the FROM table: the left side of the first join, or
// the sole table touched by the columns when there are no joins.
func fromClause(m *model.QueryModel) string {
	if len(m.Joins) > 0 {
		j := m.Joins[0]
		return tableExpr(j.LeftTable, j.LeftAlias)
	}
	if len(m.Columns) > 0 {
		return sqlutil.QuoteIdentifier(m.Columns[0].Table)
	}
	return ""
}

func tableExpr(table, alias string) string {
	expr := sqlutil.QuoteIdentifier(table)
	if alias != "" {
		expr += " AS " + sqlutil.QuoteIdentifier(alias)
	}
	return expr
}

// joinClause renders one join entry. The joined table is the right side;
// aliases render whenever present, which is what allows the same physical
// table to appear twice in a self-join.
func joinClause(j model.Join) (string, error) {
	kind := strings.ToUpper(strings.TrimSpace(j.JoinKind))
	switch kind {
	case model.JoinInner, model.JoinLeft, model.JoinRight, model.JoinFull:
	case "":
		kind = model.JoinInner
	default:
		return "", internalErrorf("unsupported join kind %q", j.JoinKind)
	}

	left := j.LeftRef()
	right := j.RightRef()
	on := fmt.Sprintf("%s = %s",
		sqlutil.QuoteQualified(left.Table, left.Column),
		sqlutil.QuoteQualified(right.Table, right.Column),
	)
	for _, p := range j.ExtraPreds {
		logic := strings.ToUpper(strings.TrimSpace(p.Logic))
		if logic != model.LogicAnd && logic != model.LogicOr {
			return "", internalErrorf("unsupported join predicate logic %q", p.Logic)
		}
		on += fmt.Sprintf(" %s %s = %s",
			logic,
			sqlutil.QuoteQualified(left.Table, p.LeftColumn),
			sqlutil.QuoteQualified(right.Table, p.RightColumn),
		)
	}

	return fmt.Sprintf("%s JOIN %s ON %s", kind, tableExpr(j.RightTable, j.RightAlias), on), nil
}

// buildConditions folds filters left to right with each filter's own
// AND/OR connector. The first filter's connector is ignored.
func buildConditions(filters []model.Filter) (string, []any, error) {
	var b strings.Builder
	var args []any
	for i, f := range filters {
		fragment, fragmentArgs, err := condition(sqlutil.QuoteQualified(f.Ref.Table, f.Ref.Column), f.Operator, f.Value)
		if err != nil {
			return "", nil, err
		}
		if i > 0 {
			logic := strings.ToUpper(strings.TrimSpace(f.Logic))
			if logic == "" {
				logic = model.LogicAnd
			}
			if logic != model.LogicAnd && logic != model.LogicOr {
				return "", nil, internalErrorf("unsupported filter logic %q", f.Logic)
			}
			b.WriteString(" " + logic + " ")
		}
		b.WriteString(fragment)
		args = append(args, fragmentArgs...)
	}
	return b.String(), args, nil
}

func buildHaving(conditions []model.HavingCondition) (string, []any, error) {
	var b strings.Builder
	var args []any
	for i, h := range conditions {
		if strings.TrimSpace(h.Expression) == "" {
			return "", nil, internalErrorf("empty having expression")
		}
		fragment, fragmentArgs, err := condition(h.Expression, h.Operator, h.Value)
		if err != nil {
			return "", nil, err
		}
		if i > 0 {
			logic := strings.ToUpper(strings.TrimSpace(h.Logic))
			if logic == "" {
				logic = model.LogicAnd
			}
			if logic != model.LogicAnd && logic != model.LogicOr {
				return "", nil, internalErrorf("unsupported having logic %q", h.Logic)
			}
			b.WriteString(" " + logic + " ")
		}
		b.WriteString(fragment)
		args = append(args, fragmentArgs...)
	}
	return b.String(), args, nil
}

// condition renders "subject operator ?" with placeholder expansion for IN
// lists and no placeholder for null checks.
func condition(subject, operator string, value any) (string, []any, error) {
	op := strings.ToUpper(strings.TrimSpace(operator))
	takesValue, ok := comparisonOperators[op]
	if !ok {
		return "", nil, internalErrorf("unsupported operator %q", operator)
	}
	if !takesValue {
		return subject + " " + op, nil, nil
	}

	if op == "IN" || op == "NOT IN" {
		values, ok := value.([]any)
		if !ok || len(values) == 0 {
			return "", nil, internalErrorf("operator %q requires a non-empty list value", operator)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")
		return fmt.Sprintf("%s %s (%s)", subject, op, placeholders), values, nil
	}

	return subject + " " + op + " ?", []any{value}, nil
}
