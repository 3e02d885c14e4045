// Package naming normalizes ingestion-supplied table names into logical
// names usable for relationship matching. Uploaded sources arrive with
// file extensions, spaces, and arbitrary punctuation ("Order Items.xlsx");
// matching operates on the cleaned form plus singular/plural variants.
package naming

import (
	"strings"
)

// knownExtensions lists file extensions ingestion commonly leaves on
// display names. Only the final extension is stripped.
var knownExtensions = []string{
	".csv", ".tsv", ".xlsx", ".xls", ".json", ".pdf", ".parquet", ".txt",
}

// LogicalName holds the cleaned name for a physical table along with the
// variants the relationship matcher compares foreign-key references against.
type LogicalName struct {
	// Physical is the table identifier as it exists in the backing store.
	Physical string
	// Display is the cleaned logical name: extension stripped,
	// non-alphanumerics removed, lower-cased.
	Display string
	// Singular and Plural are inflected variants of Display.
	Singular string
	Plural   string
	// FromMetadata is true when Display came from the ingestion registry
	// rather than from the raw physical name. Matches through registry
	// names score higher than raw-name matches.
	FromMetadata bool
}

// Namer performs name cleaning and inflection with optional overrides for
// words the inflection library gets wrong in a given domain.
type Namer struct {
	config Config
}

// New creates a Namer with the given configuration.
func New(cfg Config) *Namer {
	return &Namer{config: cfg}
}

// Default returns a Namer with default configuration.
func Default() *Namer {
	return New(DefaultConfig())
}

// Clean normalizes a raw table or display name: the final known file
// extension is stripped, everything that is not a letter or digit is
// removed, and the result is lower-cased.
// Example: "Order Items.xlsx" -> "orderitems".
func (n *Namer) Clean(raw string) string {
	name := strings.TrimSpace(raw)
	lower := strings.ToLower(name)
	for _, ext := range knownExtensions {
		if strings.HasSuffix(lower, ext) {
			name = name[:len(name)-len(ext)]
			break
		}
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Logical builds the full LogicalName for a physical table. display may be
// empty, in which case the physical name itself is cleaned and the result
// is marked as not metadata-backed.
func (n *Namer) Logical(physical, display string) LogicalName {
	fromMetadata := display != ""
	source := display
	if source == "" {
		source = physical
	}
	cleaned := n.Clean(source)
	return LogicalName{
		Physical:     physical,
		Display:      cleaned,
		Singular:     n.Singularize(cleaned),
		Plural:       n.Pluralize(cleaned),
		FromMetadata: fromMetadata,
	}
}

// ForeignKeyReference extracts the referenced-entity token from a
// foreign-key-shaped column name. "order_id" yields "order"; a bare "id"
// carries no reference and yields "".
func (n *Namer) ForeignKeyReference(columnName string) string {
	lower := strings.ToLower(strings.TrimSpace(columnName))
	if lower == "id" {
		return ""
	}
	for _, suffix := range []string{"_id", "_fk", "id"} {
		if strings.HasSuffix(lower, suffix) && len(lower) > len(suffix) {
			return n.Clean(lower[:len(lower)-len(suffix)])
		}
	}
	return ""
}

// LooksLikeForeignKey reports whether a column name has foreign-key shape:
// a "<ref>_id" style suffix, or the bare name "id".
func LooksLikeForeignKey(columnName string) bool {
	lower := strings.ToLower(strings.TrimSpace(columnName))
	if lower == "id" {
		return true
	}
	for _, suffix := range []string{"_id", "_fk"} {
		if strings.HasSuffix(lower, suffix) && len(lower) > len(suffix) {
			return true
		}
	}
	return false
}

// HasIDSuffix reports whether the column uses the explicit "<ref>_id"
// naming pattern (as opposed to a bare "id").
func HasIDSuffix(columnName string) bool {
	lower := strings.ToLower(strings.TrimSpace(columnName))
	return strings.HasSuffix(lower, "_id") && len(lower) > len("_id")
}
