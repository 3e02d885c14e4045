// Package inference proposes equality joins between tables that carry no
// foreign-key constraints. Candidates come from naming-convention matching
// against logical table names, are post-processed for junction tables, and
// are scored with a confidence heuristic.
package inference

import "sort"

// Reasoning pattern tags attached to suggestions. Callers use them to
// explain or filter suggestions without re-parsing the justification text.
const (
	PatternExactNameMatch   = "exact-name-match"
	PatternPartialNameMatch = "partial-name-match"
	PatternTypeMatch        = "type-match"
	PatternPrimaryKey       = "primary-key"
	PatternIndexed          = "indexed"
	PatternIDSuffix         = "id-suffix"
	PatternLogicalName      = "logical-name"
	PatternJunction         = "junction"
)

// KindEquality is the only join kind inference produces.
const KindEquality = "equality"

// JoinSuggestion is one proposed equality join. Left and right are nominal;
// validation treats the pair as unordered. Suggestions are derived artifacts,
// always recomputable from introspected schema.
type JoinSuggestion struct {
	LeftSchema  string  `json:"left_schema"`
	LeftTable   string  `json:"left_table"`
	LeftColumn  string  `json:"left_column"`
	RightSchema string  `json:"right_schema"`
	RightTable  string  `json:"right_table"`
	RightColumn string  `json:"right_column"`
	Kind        string  `json:"kind"`
	Confidence  float64 `json:"confidence"`
	Reason      string  `json:"reason"`
	IsJunction  bool    `json:"is_junction"`
	// Patterns lists the reasoning tags that contributed to the score.
	Patterns []string `json:"patterns,omitempty"`
	// LowConfidence marks suggestions below the configured floor. They are
	// retained so a caller can still choose them explicitly.
	LowConfidence bool `json:"low_confidence,omitempty"`
}

// SortSuggestions orders suggestions deterministically: by left table, then
// left column, then descending confidence, then right table.
func SortSuggestions(suggestions []JoinSuggestion) {
	sort.SliceStable(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		if a.LeftTable != b.LeftTable {
			return a.LeftTable < b.LeftTable
		}
		if a.LeftColumn != b.LeftColumn {
			return a.LeftColumn < b.LeftColumn
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.RightTable < b.RightTable
	})
}
