package validate

import (
	"fmt"
	"strings"
)

// Error kinds. All are fatal for compilation; MetadataUnavailable is
// surfaced by the engine when the live schema cannot be loaded at all.
const (
	KindMetadataUnavailable = "metadata_unavailable"
	KindUnknownColumn       = "unknown_column"
	KindUnrecognizedJoin    = "unrecognized_join"
	KindOrphanedTables      = "orphaned_tables"
	KindInvalidGroupBy      = "invalid_group_by"
)

// InvalidGroupBy reasons.
const (
	ReasonMissingFromGroupBy = "missing-from-group-by"
	ReasonWronglyIncluded    = "wrongly-included"
)

// Error is one validation violation. Validation accumulates every violation
// it finds so a producer can fix all issues before resubmitting.
type Error struct {
	Kind   string `json:"kind"`
	Table  string `json:"table,omitempty"`
	Column string `json:"column,omitempty"`
	// Tables names every disconnected table for OrphanedTables.
	Tables []string `json:"tables,omitempty"`
	// Reason distinguishes InvalidGroupBy variants.
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}

func (e Error) Error() string {
	return e.Message
}

func unknownColumn(table, column string) Error {
	return Error{
		Kind:    KindUnknownColumn,
		Table:   table,
		Column:  column,
		Message: fmt.Sprintf("unknown column %s.%s", table, column),
	}
}

func unrecognizedJoin(left, right string) Error {
	return Error{
		Kind:    KindUnrecognizedJoin,
		Message: fmt.Sprintf("join %s = %s does not correspond to any known relationship", left, right),
	}
}

func orphanedTables(tables []string) Error {
	return Error{
		Kind:    KindOrphanedTables,
		Tables:  tables,
		Message: fmt.Sprintf("tables not connected to the join graph: %s", strings.Join(tables, ", ")),
	}
}

func invalidGroupBy(table, column, reason string) Error {
	return Error{
		Kind:    KindInvalidGroupBy,
		Table:   table,
		Column:  column,
		Reason:  reason,
		Message: fmt.Sprintf("invalid group by for %s.%s: %s", table, column, reason),
	}
}
