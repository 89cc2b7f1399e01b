package insights

import (
	"fmt"
	"sort"
	"strings"

	"datapulse/internal/dataset"
)

// StageFunc analyzes a table and returns zero or more insights
type StageFunc func(*dataset.Table) []Insight

// Stage pairs an analyzer with its identity and the progress label
// subscribers see while it runs.
type Stage struct {
	ID    string
	Label string
	Fn    StageFunc
}

// Pipeline returns the analytical stages in their fixed execution order.
// The stage set is closed; ordering is part of the progress contract.
func Pipeline() []Stage {
	return []Stage{
		{ID: "overview", Label: "Analyzing dataset overview", Fn: OverviewStage},
		{ID: "statistical", Label: "Performing statistical analysis", Fn: StatisticalStage},
		{ID: "pattern", Label: "Detecting patterns and correlations", Fn: PatternStage},
		{ID: "quality", Label: "Evaluating data quality", Fn: QualityStage},
	}
}

// OverviewStage produces a single summary of the table's shape and the
// distribution of column types.
func OverviewStage(t *dataset.Table) []Insight {
	return []Insight{
		{
			Title: "Dataset Overview",
			Description: fmt.Sprintf("Dataset contains %d rows and %d columns. Column types: %s",
				t.RowCount(), t.ColumnCount(), formatTypeCounts(t.TypeCounts())),
			Confidence:      0.95,
			Category:        CategoryOverview,
			AffectedColumns: t.ColumnNames(),
		},
	}
}

// StatisticalStage flags high-variability numeric columns and IQR
// outliers.
func StatisticalStage(t *dataset.Table) []Insight {
	var found []Insight
	for _, col := range t.NumericColumns() {
		values, rowIndices := col.NumericValues()
		if len(values) == 0 {
			continue
		}

		m := mean(values)
		std := sampleStdDev(values)
		if std > m*0.5 {
			cv := 0.0
			if m != 0 {
				cv = std / m * 100
			}
			found = append(found, Insight{
				Title: fmt.Sprintf("High Variability in %s", col.Name),
				Description: fmt.Sprintf("Column '%s' has a coefficient of variation of %.1f%% (mean %.2f, std dev %.2f)",
					col.Name, cv, m, std),
				Confidence:      0.8,
				Category:        CategoryStatistical,
				AffectedColumns: []string{col.Name},
			})
		}

		q1 := percentile(values, 0.25)
		q3 := percentile(values, 0.75)
		iqr := q3 - q1
		lo := q1 - 1.5*iqr
		hi := q3 + 1.5*iqr

		var outliers []float64
		var outlierRows []int
		for i, v := range values {
			if v < lo || v > hi {
				outliers = append(outliers, v)
				outlierRows = append(outlierRows, rowIndices[i])
			}
		}
		if len(outliers) > 0 {
			min, max := outliers[0], outliers[0]
			for _, v := range outliers[1:] {
				if v < min {
					min = v
				}
				if v > max {
					max = v
				}
			}
			if len(outlierRows) > maxAffectedRows {
				outlierRows = outlierRows[:maxAffectedRows]
			}
			found = append(found, Insight{
				Title: fmt.Sprintf("Outliers Detected in %s", col.Name),
				Description: fmt.Sprintf("Found %d potential outliers in '%s' ranging from %.2f to %.2f",
					len(outliers), col.Name, min, max),
				Confidence:      0.75,
				Category:        CategoryAnomaly,
				AffectedColumns: []string{col.Name},
				AffectedRows:    outlierRows,
			})
		}
	}
	return found
}

// PatternStage computes pairwise Pearson correlation over all numeric
// column pairs and reports the strong ones.
func PatternStage(t *dataset.Table) []Insight {
	numeric := t.NumericColumns()
	if len(numeric) < 2 {
		return nil
	}

	var found []Insight
	for i := 0; i < len(numeric); i++ {
		for j := i + 1; j < len(numeric); j++ {
			x, y := pairedValues(numeric[i], numeric[j])
			r := pearson(x, y)
			abs := r
			if abs < 0 {
				abs = -abs
			}
			if abs <= 0.7 {
				continue
			}

			direction := "Positive"
			if r < 0 {
				direction = "Negative"
			}
			confidence := abs
			if confidence > 0.9 {
				confidence = 0.9
			}
			found = append(found, Insight{
				Title: fmt.Sprintf("Strong %s Correlation", direction),
				Description: fmt.Sprintf("%s correlation (%.2f) between '%s' and '%s'",
					direction, r, numeric[i].Name, numeric[j].Name),
				Confidence:      confidence,
				Category:        CategoryPattern,
				AffectedColumns: []string{numeric[i].Name, numeric[j].Name},
			})
		}
	}
	return found
}

// QualityStage reports columns with significant missing data and fully
// duplicated rows.
func QualityStage(t *dataset.Table) []Insight {
	var found []Insight
	total := t.RowCount()
	if total == 0 {
		return nil
	}

	for _, col := range t.Columns() {
		missing := col.MissingCount()
		pct := float64(missing) / float64(total) * 100
		if missing > 0 && pct > 10 {
			found = append(found, Insight{
				Title: fmt.Sprintf("Missing Data in %s", col.Name),
				Description: fmt.Sprintf("Column '%s' has %d missing values (%.1f%% of total)",
					col.Name, missing, pct),
				Confidence:      0.9,
				Category:        CategoryDataQuality,
				AffectedColumns: []string{col.Name},
			})
		}
	}

	if dupes := t.DuplicateRowCount(); dupes > 0 {
		pct := float64(dupes) / float64(total) * 100
		found = append(found, Insight{
			Title: "Duplicate Rows Detected",
			Description: fmt.Sprintf("Found %d duplicate rows (%.1f%% of total)",
				dupes, pct),
			Confidence:      0.95,
			Category:        CategoryDataQuality,
			AffectedColumns: t.ColumnNames(),
		})
	}
	return found
}

// pairedValues returns the values of two columns restricted to rows where
// both are present, so correlation ignores partially missing rows.
func pairedValues(a, b dataset.Column) (x, y []float64) {
	n := len(a.Values)
	if len(b.Values) < n {
		n = len(b.Values)
	}
	for i := 0; i < n; i++ {
		if a.Values[i].Missing || b.Values[i].Missing {
			continue
		}
		x = append(x, a.Values[i].Number)
		y = append(y, b.Values[i].Number)
	}
	return x, y
}

func formatTypeCounts(counts map[dataset.ColumnType]int) string {
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, string(t))
	}
	sort.Strings(types)

	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, fmt.Sprintf("%s=%d", t, counts[dataset.ColumnType(t)]))
	}
	return strings.Join(parts, ", ")
}
