package naming

// Config holds custom inflection overrides for words the inflection
// library mishandles (e.g. domain jargon or non-English table names).
type Config struct {
	// PluralOverrides maps singular -> plural (e.g. "person" -> "people")
	PluralOverrides map[string]string `mapstructure:"plural_overrides"`
	// SingularOverrides maps plural -> singular (e.g. "people" -> "person")
	SingularOverrides map[string]string `mapstructure:"singular_overrides"`
}

// DefaultConfig returns a Config with no overrides.
func DefaultConfig() Config {
	return Config{
		PluralOverrides:   map[string]string{},
		SingularOverrides: map[string]string{},
	}
}
