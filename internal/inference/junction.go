package inference

import (
	"fmt"
	"sort"
	"strings"

	"joinwise/internal/introspection"
)

// markJunctions flags suggestions originating from junction tables. A table
// whose foreign-key-shaped columns resolved to two or more distinct targets
// exists primarily to link those targets; every suggestion it sources is
// tagged so callers can expose the linked tables as joinable through it,
// and its justification names the bridged tables. A table with exactly one
// resolved foreign key is a simple child table.
func markJunctions(suggestions []JoinSuggestion, resolvedFKColumns map[string]int, tables []introspection.TableInfo) {
	byName := make(map[string]introspection.TableInfo, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}

	// Distinct join targets per junction table, for the justification text.
	bridged := make(map[string]map[string]struct{})
	for _, s := range suggestions {
		if resolvedFKColumns[s.LeftTable] < 2 {
			continue
		}
		set := bridged[s.LeftTable]
		if set == nil {
			set = make(map[string]struct{})
			bridged[s.LeftTable] = set
		}
		set[s.RightTable] = struct{}{}
	}

	for i := range suggestions {
		s := &suggestions[i]
		if resolvedFKColumns[s.LeftTable] < 2 {
			continue
		}
		s.IsJunction = true
		s.Patterns = append(s.Patterns, PatternJunction)
		s.Reason += "; " + junctionReason(s.LeftTable, bridged[s.LeftTable], byName[s.LeftTable])
	}
}

// junctionReason describes the junction: which tables it bridges and whether
// it is a pure link table or carries attribute columns of its own.
func junctionReason(table string, targets map[string]struct{}, info introspection.TableInfo) string {
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, fmt.Sprintf("%q", name))
	}
	sort.Strings(names)

	kind := "a pure junction of foreign keys"
	if hasAttributeColumns(info) {
		kind = "a junction carrying attribute columns"
	}
	return fmt.Sprintf("%q is %s bridging %s", table, kind, listNames(names))
}

// hasAttributeColumns reports whether the table holds columns beyond its
// primary key and foreign-key-shaped columns.
func hasAttributeColumns(t introspection.TableInfo) bool {
	for _, col := range t.Columns {
		if col.IsPrimaryKey || col.LooksLikeForeignKey {
			continue
		}
		return true
	}
	return false
}

func listNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
	}
}
