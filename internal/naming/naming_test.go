package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	namer := Default()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "orders", "orders"},
		{"uppercase", "Orders", "orders"},
		{"spaces and extension", "Order Items.xlsx", "orderitems"},
		{"csv extension", "customers.csv", "customers"},
		{"json extension", "events.json", "events"},
		{"punctuation", "my-table (final)", "mytablefinal"},
		{"digits kept", "q3_2025_sales", "q32025sales"},
		{"only final extension stripped", "data.csv.json", "datacsv"},
		{"extension mid-name untouched", "csvdata", "csvdata"},
		{"whitespace trimmed", "  users  ", "users"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, namer.Clean(tt.input))
		})
	}
}

func TestLogical(t *testing.T) {
	namer := Default()

	t.Run("from registry display name", func(t *testing.T) {
		ln := namer.Logical("tbl_8f3a", "Order Items.xlsx")
		assert.Equal(t, "tbl_8f3a", ln.Physical)
		assert.Equal(t, "orderitems", ln.Display)
		assert.Equal(t, "orderitem", ln.Singular)
		assert.Equal(t, "orderitems", ln.Plural)
		assert.True(t, ln.FromMetadata)
	})

	t.Run("falls back to physical name", func(t *testing.T) {
		ln := namer.Logical("orders", "")
		assert.Equal(t, "orders", ln.Display)
		assert.Equal(t, "order", ln.Singular)
		assert.Equal(t, "orders", ln.Plural)
		assert.False(t, ln.FromMetadata)
	})

	t.Run("irregular plural", func(t *testing.T) {
		ln := namer.Logical("people", "")
		assert.Equal(t, "person", ln.Singular)
	})
}

func TestInflectionOverrides(t *testing.T) {
	namer := New(Config{
		PluralOverrides:   map[string]string{"equipment": "equipment"},
		SingularOverrides: map[string]string{"metadata": "metadata"},
	})

	assert.Equal(t, "equipment", namer.Pluralize("equipment"))
	assert.Equal(t, "metadata", namer.Singularize("metadata"))
	assert.Equal(t, "orders", namer.Pluralize("order"))
}

func TestForeignKeyReference(t *testing.T) {
	namer := Default()

	tests := []struct {
		name     string
		column   string
		expected string
	}{
		{"underscore id suffix", "order_id", "order"},
		{"fk suffix", "customer_fk", "customer"},
		{"camel style id", "orderid", "order"},
		{"bare id has no reference", "id", ""},
		{"uppercase", "ORDER_ID", "order"},
		{"non key column", "status", ""},
		{"multi word reference", "parent_category_id", "parentcategory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, namer.ForeignKeyReference(tt.column))
		})
	}
}

func TestLooksLikeForeignKey(t *testing.T) {
	assert.True(t, LooksLikeForeignKey("order_id"))
	assert.True(t, LooksLikeForeignKey("customer_fk"))
	assert.True(t, LooksLikeForeignKey("id"))
	assert.False(t, LooksLikeForeignKey("status"))
	assert.False(t, LooksLikeForeignKey("_id"))
}

func TestHasIDSuffix(t *testing.T) {
	assert.True(t, HasIDSuffix("order_id"))
	assert.False(t, HasIDSuffix("id"))
	assert.False(t, HasIDSuffix("orderid"))
	assert.False(t, HasIDSuffix("_id"))
}
