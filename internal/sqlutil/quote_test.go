package sqlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple", "orders", "`orders`"},
		{"with underscore", "order_items", "`order_items`"},
		{"embedded backtick", "or`ders", "`or``ders`"},
		{"empty", "", "``"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, QuoteIdentifier(tt.input))
		})
	}
}

func TestQuoteQualified(t *testing.T) {
	assert.Equal(t, "`o`.`status`", QuoteQualified("o", "status"))
	assert.Equal(t, "`status`", QuoteQualified("", "status"))
	assert.Equal(t, "`order``s`.`id`", QuoteQualified("order`s", "id"))
}
