package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneIsDeep(t *testing.T) {
	original := New()
	original.Columns = []SelectedColumn{
		{Table: "orders", Column: "status", IsSelected: true},
	}
	original.Joins = []Join{
		{
			LeftTable: "order_items", LeftColumn: "order_id",
			RightTable: "orders", RightColumn: "id",
			JoinKind:   JoinInner,
			ExtraPreds: []JoinPredicate{{Logic: LogicAnd, LeftColumn: "a", RightColumn: "b"}},
		},
	}
	original.GroupBy.GroupByColumns = []ColumnRef{{Table: "orders", Column: "status"}}
	original.Filters = []Filter{{Ref: ColumnRef{Table: "orders", Column: "status"}, Operator: "=", Value: "open"}}

	clone := original.Clone()
	clone.Columns[0].Column = "changed"
	clone.Joins[0].ExtraPreds[0].LeftColumn = "changed"
	clone.GroupBy.GroupByColumns[0].Column = "changed"
	clone.Filters[0].Operator = "!="

	assert.Equal(t, "status", original.Columns[0].Column)
	assert.Equal(t, "a", original.Joins[0].ExtraPreds[0].LeftColumn)
	assert.Equal(t, "status", original.GroupBy.GroupByColumns[0].Column)
	assert.Equal(t, "=", original.Filters[0].Operator)
}

func TestNewLeavesPagingUnset(t *testing.T) {
	m := New()
	assert.Equal(t, Unset, m.Limit)
	assert.Equal(t, Unset, m.Offset)
}

func TestJoinRefsPreferAlias(t *testing.T) {
	j := Join{
		LeftTable: "users", LeftAlias: "employees", LeftColumn: "manager_id",
		RightTable: "users", RightAlias: "managers", RightColumn: "id",
	}
	assert.Equal(t, ColumnRef{Table: "employees", Column: "manager_id"}, j.LeftRef())
	assert.Equal(t, ColumnRef{Table: "managers", Column: "id"}, j.RightRef())

	plain := Join{LeftTable: "orders", LeftColumn: "id", RightTable: "order_items", RightColumn: "order_id"}
	assert.Equal(t, ColumnRef{Table: "orders", Column: "id"}, plain.LeftRef())
}

func TestQueryModelRoundTripsJSON(t *testing.T) {
	m := New()
	m.Columns = []SelectedColumn{{Table: "orders", Column: "status", IsSelected: true}}
	m.GroupBy.AggregateFunctions = []AggregateFunc{
		{Table: "order_items", Column: "quantity", Function: "SUM", Alias: "total_quantity"},
	}
	m.Limit = 100

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var decoded QueryModel
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, *m, decoded)
}

func TestUnmarshalDefaultsPagingToUnset(t *testing.T) {
	var m QueryModel
	require.NoError(t, json.Unmarshal([]byte(`{"columns":[{"table":"orders","column":"status","is_selected":true}]}`), &m))
	assert.Equal(t, Unset, m.Limit)
	assert.Equal(t, Unset, m.Offset)

	var explicit QueryModel
	require.NoError(t, json.Unmarshal([]byte(`{"columns":[],"limit":0}`), &explicit))
	assert.Equal(t, 0, explicit.Limit)
	assert.Equal(t, Unset, explicit.Offset)
}
