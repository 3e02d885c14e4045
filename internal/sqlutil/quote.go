// Package sqlutil provides SQL utility functions.
package sqlutil

import "strings"

// QuoteIdentifier quotes a SQL identifier (table name, column name, etc.)
// with backticks and escapes any backticks within the identifier.
func QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, "`", "``")
	return "`" + escaped + "`"
}

// QuoteQualified renders a qualifier.column pair with both parts quoted.
// An empty qualifier yields just the quoted column.
func QuoteQualified(qualifier, column string) string {
	if qualifier == "" {
		return QuoteIdentifier(column)
	}
	return QuoteIdentifier(qualifier) + "." + QuoteIdentifier(column)
}
