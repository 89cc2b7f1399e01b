// Package insights implements the staged analyzers that turn a parsed
// dataset into ranked findings. The stage functions are pure: they read
// the table and return insights, with no I/O and no shared state.
package insights

// Category classifies an insight
type Category string

const (
	CategoryOverview    Category = "overview"
	CategoryStatistical Category = "statistical"
	CategoryPattern     Category = "pattern"
	CategoryAnomaly     Category = "anomaly"
	CategoryDataQuality Category = "data_quality"
)

// Insight is one structured finding produced by a stage. Immutable once
// constructed.
type Insight struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Confidence      float64  `json:"confidence"`
	Category        Category `json:"category"`
	AffectedColumns []string `json:"affected_columns"`
	AffectedRows    []int    `json:"affected_rows"`
}

// maxAffectedRows caps how many row indices an insight carries
const maxAffectedRows = 10
