package models

// SemanticType is the role a column plays for grounding and for prose.
type SemanticType string

const (
	SemanticIdentifier  SemanticType = "identifier"
	SemanticPercentage  SemanticType = "metric_percentage"
	SemanticCount       SemanticType = "metric_count"
	SemanticRatio       SemanticType = "metric_ratio" // unbounded ratios such as kd_ratio
	SemanticCategorical SemanticType = "categorical"
	SemanticTimestamp   SemanticType = "timestamp"
)

// Valid reports whether s is one of the known semantic types.
func (s SemanticType) Valid() bool {
	switch s {
	case SemanticIdentifier, SemanticPercentage, SemanticCount, SemanticRatio, SemanticCategorical, SemanticTimestamp:
		return true
	}
	return false
}

// IsMetric reports whether the column carries a numeric measurement.
func (s SemanticType) IsMetric() bool {
	return s == SemanticPercentage || s == SemanticCount || s == SemanticRatio
}

// SchemaCatalogEntry describes one column of one relation in the analytics database.
type SchemaCatalogEntry struct {
	Relation     string       `json:"relation"`
	Column       string       `json:"column"`
	SemanticType SemanticType `json:"semantic_type"`
	Nullable     bool         `json:"nullable"`
	Description  string       `json:"description"`
}
