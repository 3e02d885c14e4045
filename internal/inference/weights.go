package inference

// Weights holds the scoring increments used by the confidence scorer. The
// values are heuristic and tunable per deployment; the defaults come from
// empirical tuning against representative uploaded schemas.
type Weights struct {
	// BasePartial is the starting score for any partial name overlap.
	BasePartial float64 `mapstructure:"base_partial"`
	// BaseExact is the starting score when the stripped column reference
	// exactly equals the singularized target logical name.
	BaseExact float64 `mapstructure:"base_exact"`
	// TypeMatch is added when both columns share a declared type.
	TypeMatch float64 `mapstructure:"type_match"`
	// TargetPrimaryKey is added when the target column is its table's
	// primary key.
	TargetPrimaryKey float64 `mapstructure:"target_primary_key"`
	// BothIndexed is added when both columns are indexed.
	BothIndexed float64 `mapstructure:"both_indexed"`
	// IDSuffix is added when the source column uses the explicit "<ref>_id"
	// pattern rather than a bare "id".
	IDSuffix float64 `mapstructure:"id_suffix"`
	// LogicalName is added when the match went through the ingestion
	// registry's display name rather than the raw physical name.
	LogicalName float64 `mapstructure:"logical_name"`
	// LowConfidenceFloor flags (never drops) suggestions scoring below it.
	LowConfidenceFloor float64 `mapstructure:"low_confidence_floor"`
}

// DefaultWeights returns the tuned default scoring weights.
func DefaultWeights() Weights {
	return Weights{
		BasePartial:        0.5,
		BaseExact:          0.80,
		TypeMatch:          0.10,
		TargetPrimaryKey:   0.05,
		BothIndexed:        0.05,
		IDSuffix:           0.05,
		LogicalName:        0.10,
		LowConfidenceFloor: 0.4,
	}
}
