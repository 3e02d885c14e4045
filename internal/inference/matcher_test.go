package inference

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"joinwise/internal/introspection"
	"joinwise/internal/naming"
)

func table(name string, cols ...introspection.ColumnInfo) introspection.TableInfo {
	return introspection.TableInfo{Schema: "analytics", Name: name, Columns: cols}
}

func pkCol(name, dataType string) introspection.ColumnInfo {
	return introspection.ColumnInfo{
		Name:                name,
		DataType:            dataType,
		IsPrimaryKey:        true,
		IsIndexed:           true,
		LooksLikeForeignKey: naming.LooksLikeForeignKey(name),
	}
}

func col(name, dataType string) introspection.ColumnInfo {
	return introspection.ColumnInfo{
		Name:                name,
		DataType:            dataType,
		LooksLikeForeignKey: naming.LooksLikeForeignKey(name),
	}
}

func indexedCol(name, dataType string) introspection.ColumnInfo {
	c := col(name, dataType)
	c.IsIndexed = true
	return c
}

func newMatcher() *Matcher {
	return NewMatcher(naming.Default(), DefaultWeights())
}

func TestInferJunctionTable(t *testing.T) {
	tables := []introspection.TableInfo{
		table("order_items",
			pkCol("id", "bigint"),
			indexedCol("order_id", "bigint"),
			indexedCol("product_id", "bigint"),
			col("quantity", "int"),
		),
		table("orders", pkCol("id", "bigint"), col("status", "varchar")),
		table("products", pkCol("id", "bigint"), col("name", "varchar")),
	}

	suggestions := newMatcher().Infer(context.Background(), tables, nil)
	require.Len(t, suggestions, 2)

	for _, s := range suggestions {
		assert.Equal(t, "order_items", s.LeftTable)
		assert.Equal(t, "id", s.RightColumn)
		assert.Equal(t, KindEquality, s.Kind)
		assert.True(t, s.IsJunction, "both suggestions come from a junction table")
		assert.GreaterOrEqual(t, s.Confidence, 0.80)
		assert.Contains(t, s.Patterns, PatternExactNameMatch)
		assert.Contains(t, s.Patterns, PatternJunction)
		assert.False(t, s.LowConfidence)
	}
	assert.Equal(t, "order_id", suggestions[0].LeftColumn)
	assert.Equal(t, "orders", suggestions[0].RightTable)
	assert.Equal(t, "product_id", suggestions[1].LeftColumn)
	assert.Equal(t, "products", suggestions[1].RightTable)
}

func TestJunctionJustificationNamesBridgedTables(t *testing.T) {
	tables := []introspection.TableInfo{
		// quantity is an attribute column beyond the keys.
		table("order_items",
			pkCol("id", "bigint"),
			indexedCol("order_id", "bigint"),
			indexedCol("product_id", "bigint"),
			col("quantity", "int"),
		),
		table("orders", pkCol("id", "bigint"), col("status", "varchar")),
		table("products", pkCol("id", "bigint"), col("name", "varchar")),
	}

	suggestions := newMatcher().Infer(context.Background(), tables, nil)
	require.Len(t, suggestions, 2)
	for _, s := range suggestions {
		assert.Contains(t, s.Reason, `"order_items" is a junction carrying attribute columns bridging "orders" and "products"`)
	}
}

func TestJunctionJustificationPureLinkTable(t *testing.T) {
	// Nothing but the two foreign keys: a pure many-to-many link table.
	tables := []introspection.TableInfo{
		table("user_roles",
			indexedCol("user_id", "bigint"),
			indexedCol("role_id", "bigint"),
		),
		table("users", pkCol("id", "bigint"), col("email", "varchar")),
		table("roles", pkCol("id", "bigint"), col("name", "varchar")),
	}

	suggestions := newMatcher().Infer(context.Background(), tables, nil)
	require.Len(t, suggestions, 2)
	for _, s := range suggestions {
		assert.True(t, s.IsJunction)
		assert.Contains(t, s.Reason, `"user_roles" is a pure junction of foreign keys bridging "roles" and "users"`)
	}
}

func TestInferSingleChildTableIsNotJunction(t *testing.T) {
	tables := []introspection.TableInfo{
		table("comments", pkCol("id", "bigint"), indexedCol("post_id", "bigint"), col("body", "text")),
		table("posts", pkCol("id", "bigint"), col("title", "varchar")),
	}

	suggestions := newMatcher().Infer(context.Background(), tables, nil)
	require.Len(t, suggestions, 1)
	assert.False(t, suggestions[0].IsJunction)
	assert.Equal(t, "comments", suggestions[0].LeftTable)
	assert.Equal(t, "posts", suggestions[0].RightTable)
}

func TestInferConfidenceBounds(t *testing.T) {
	tables := []introspection.TableInfo{
		table("order_items",
			pkCol("id", "bigint"),
			indexedCol("order_id", "bigint"),
			indexedCol("product_id", "bigint"),
		),
		table("orders", pkCol("id", "bigint")),
		table("products", pkCol("id", "bigint")),
		table("events", pkCol("id", "bigint"), col("user_id", "varchar")),
		table("users", pkCol("id", "bigint")),
	}
	displayNames := map[string]string{
		"orders":   "Orders.csv",
		"products": "Products.xlsx",
	}

	suggestions := newMatcher().Infer(context.Background(), tables, displayNames)
	require.NotEmpty(t, suggestions)
	for _, s := range suggestions {
		assert.GreaterOrEqual(t, s.Confidence, 0.0)
		assert.LessOrEqual(t, s.Confidence, 1.0)
	}
}

func TestInferDisplayNameMatch(t *testing.T) {
	// The physical table name is opaque; only the registry display name can
	// connect it to the referencing column.
	tables := []introspection.TableInfo{
		table("tbl_8f3a", pkCol("id", "bigint"), col("total", "decimal")),
		table("line_items", pkCol("id", "bigint"), col("order_id", "bigint")),
	}
	displayNames := map[string]string{"tbl_8f3a": "Orders.csv"}

	suggestions := newMatcher().Infer(context.Background(), tables, displayNames)
	require.Len(t, suggestions, 1)
	s := suggestions[0]
	assert.Equal(t, "line_items", s.LeftTable)
	assert.Equal(t, "tbl_8f3a", s.RightTable)
	assert.Contains(t, s.Patterns, PatternLogicalName)

	// Without the registry the same schema yields nothing.
	none := newMatcher().Infer(context.Background(), tables, nil)
	assert.Empty(t, none)
}

func TestInferExactMatchSuppressesPartial(t *testing.T) {
	// "order_id" resolves exactly to "orders"; the partial overlap with
	// "order_archives" must not surface.
	tables := []introspection.TableInfo{
		table("line_items", pkCol("id", "bigint"), col("order_id", "bigint")),
		table("orders", pkCol("id", "bigint")),
		table("orderarchives", pkCol("id", "bigint")),
	}

	suggestions := newMatcher().Infer(context.Background(), tables, nil)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "orders", suggestions[0].RightTable)
}

func TestInferUnresolvedTieEmitsMultiple(t *testing.T) {
	// No exact singular match anywhere: both overlapping tables surface as
	// lower-confidence alternatives.
	tables := []introspection.TableInfo{
		table("line_items", pkCol("id", "bigint"), col("shipment_id", "varchar")),
		table("shipmentlegs", pkCol("id", "bigint")),
		table("shipmentevents", pkCol("id", "bigint")),
	}

	suggestions := newMatcher().Infer(context.Background(), tables, nil)
	require.Len(t, suggestions, 2)
	for _, s := range suggestions {
		assert.Contains(t, s.Patterns, PatternPartialNameMatch)
		assert.Less(t, s.Confidence, 0.80)
	}
}

func TestInferLowConfidenceFlagged(t *testing.T) {
	weights := DefaultWeights()
	weights.LowConfidenceFloor = 0.7

	tables := []introspection.TableInfo{
		table("line_items", pkCol("id", "bigint"), col("shipment_id", "varchar")),
		table("shipmentlegs", pkCol("id", "bigint")),
	}

	suggestions := NewMatcher(naming.Default(), weights).Infer(context.Background(), tables, nil)
	require.Len(t, suggestions, 1)
	assert.True(t, suggestions[0].LowConfidence, "flagged, not dropped")
}

func TestInferSkipsOwnPrimaryKeyAndBareID(t *testing.T) {
	tables := []introspection.TableInfo{
		// "user_id" is this table's own primary key, not a reference out.
		table("profiles", pkCol("user_id", "bigint"), col("bio", "text")),
		table("users", pkCol("id", "bigint")),
		// "id" without a reference token never produces a candidate.
		table("notes", col("id", "bigint"), col("body", "text")),
	}

	suggestions := newMatcher().Infer(context.Background(), tables, nil)
	assert.Empty(t, suggestions)
}

func TestInferDeterministicOrder(t *testing.T) {
	tables := []introspection.TableInfo{
		table("order_items",
			pkCol("id", "bigint"),
			indexedCol("product_id", "bigint"),
			indexedCol("order_id", "bigint"),
		),
		table("products", pkCol("id", "bigint")),
		table("orders", pkCol("id", "bigint")),
	}

	first := newMatcher().Infer(context.Background(), tables, nil)
	second := newMatcher().Infer(context.Background(), tables, nil)
	assert.Equal(t, first, second)
}
