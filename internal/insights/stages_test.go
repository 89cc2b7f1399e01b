package insights

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datapulse/internal/dataset"
)

func numericColumn(name string, values ...float64) dataset.Column {
	cells := make([]dataset.Value, len(values))
	for i, v := range values {
		cells[i] = dataset.Value{Raw: strconv.FormatFloat(v, 'f', -1, 64), Number: v}
	}
	return dataset.Column{Name: name, Type: dataset.ColumnNumeric, Values: cells}
}

func textColumn(name string, values ...string) dataset.Column {
	cells := make([]dataset.Value, len(values))
	for i, v := range values {
		if v == "" {
			cells[i] = dataset.Value{Missing: true}
		} else {
			cells[i] = dataset.Value{Raw: v}
		}
	}
	return dataset.Column{Name: name, Type: dataset.ColumnText, Values: cells}
}

func TestPipelineOrder(t *testing.T) {
	stages := Pipeline()
	require.Len(t, stages, 4)
	assert.Equal(t, "overview", stages[0].ID)
	assert.Equal(t, "statistical", stages[1].ID)
	assert.Equal(t, "pattern", stages[2].ID)
	assert.Equal(t, "quality", stages[3].ID)
	for _, stage := range stages {
		assert.NotNil(t, stage.Fn)
		assert.NotEmpty(t, stage.Label)
	}
}

func TestOverviewStage(t *testing.T) {
	table := dataset.NewTable([]dataset.Column{
		numericColumn("age", 25, 30, 35),
		numericColumn("score", 1, 2, 3),
	})

	found := OverviewStage(table)
	require.Len(t, found, 1)

	ins := found[0]
	assert.Equal(t, "Dataset Overview", ins.Title)
	assert.Contains(t, ins.Description, "3 rows")
	assert.Contains(t, ins.Description, "2 columns")
	assert.Contains(t, ins.Description, "numeric=2")
	assert.Equal(t, 0.95, ins.Confidence)
	assert.Equal(t, CategoryOverview, ins.Category)
	assert.Equal(t, []string{"age", "score"}, ins.AffectedColumns)
}

func TestStatisticalStageLowVariability(t *testing.T) {
	// CV of [25,30,35] is 16.7%, well under the 50% threshold; values
	// are tight so no IQR outliers either.
	table := dataset.NewTable([]dataset.Column{
		numericColumn("age", 25, 30, 35),
		numericColumn("score", 10, 11, 12),
	})

	assert.Empty(t, StatisticalStage(table))
}

func TestStatisticalStageOutliers(t *testing.T) {
	table := dataset.NewTable([]dataset.Column{
		numericColumn("value", 1, 1, 1, 1, 1, 100),
	})

	found := StatisticalStage(table)

	var anomaly *Insight
	for i := range found {
		if found[i].Category == CategoryAnomaly {
			anomaly = &found[i]
		}
	}
	require.NotNil(t, anomaly, "expected an anomaly insight for the outlier")
	assert.Equal(t, 0.75, anomaly.Confidence)
	assert.Contains(t, anomaly.Description, "1 potential outliers")
	assert.Contains(t, anomaly.Description, "100.00")
	assert.Equal(t, []int{5}, anomaly.AffectedRows)
	assert.Equal(t, []string{"value"}, anomaly.AffectedColumns)
}

func TestStatisticalStageHighVariability(t *testing.T) {
	// Mean 25.75, sample std dev ~49.5: CV well above 50%.
	table := dataset.NewTable([]dataset.Column{
		numericColumn("spend", 1, 1, 1, 100),
	})

	found := StatisticalStage(table)

	var variability *Insight
	for i := range found {
		if found[i].Category == CategoryStatistical {
			variability = &found[i]
		}
	}
	require.NotNil(t, variability)
	assert.Equal(t, 0.8, variability.Confidence)
	assert.Contains(t, variability.Title, "High Variability")
	assert.Equal(t, []string{"spend"}, variability.AffectedColumns)
}

func TestStatisticalStageCapsAffectedRows(t *testing.T) {
	// 12 extreme values against a tight base: more outliers than the
	// affected-rows cap.
	values := make([]float64, 0, 52)
	for i := 0; i < 40; i++ {
		values = append(values, 10+float64(i%3))
	}
	for i := 0; i < 12; i++ {
		values = append(values, 10000)
	}
	table := dataset.NewTable([]dataset.Column{numericColumn("v", values...)})

	found := StatisticalStage(table)
	var anomaly *Insight
	for i := range found {
		if found[i].Category == CategoryAnomaly {
			anomaly = &found[i]
		}
	}
	require.NotNil(t, anomaly)
	assert.Len(t, anomaly.AffectedRows, 10)
	assert.Contains(t, anomaly.Description, "12 potential outliers")
}

func TestStatisticalStageSkipsEmptyColumn(t *testing.T) {
	table := dataset.NewTable([]dataset.Column{
		{Name: "empty", Type: dataset.ColumnNumeric, Values: []dataset.Value{
			{Missing: true}, {Missing: true},
		}},
	})

	assert.Empty(t, StatisticalStage(table))
}

func TestPatternStagePerfectCorrelation(t *testing.T) {
	table := dataset.NewTable([]dataset.Column{
		numericColumn("x", 1, 2, 3, 4, 5),
		numericColumn("y", 2, 4, 6, 8, 10),
	})

	found := PatternStage(table)
	require.Len(t, found, 1)

	ins := found[0]
	assert.Equal(t, "Strong Positive Correlation", ins.Title)
	assert.Contains(t, ins.Description, "(1.00)")
	// Confidence is |r| clamped to 0.9.
	assert.Equal(t, 0.9, ins.Confidence)
	assert.Equal(t, CategoryPattern, ins.Category)
	assert.Equal(t, []string{"x", "y"}, ins.AffectedColumns)
}

func TestPatternStageNegativeCorrelation(t *testing.T) {
	table := dataset.NewTable([]dataset.Column{
		numericColumn("x", 1, 2, 3, 4),
		numericColumn("y", 9, 7, 5, 3),
	})

	found := PatternStage(table)
	require.Len(t, found, 1)
	assert.Equal(t, "Strong Negative Correlation", found[0].Title)
}

func TestPatternStageNeedsTwoNumericColumns(t *testing.T) {
	table := dataset.NewTable([]dataset.Column{
		numericColumn("x", 1, 2, 3),
		textColumn("label", "a", "b", "c"),
	})

	assert.Empty(t, PatternStage(table))
}

func TestPatternStageWeakCorrelationIgnored(t *testing.T) {
	table := dataset.NewTable([]dataset.Column{
		numericColumn("x", 1, 2, 3, 4, 5, 6),
		numericColumn("y", 4, 1, 5, 2, 6, 3),
	})

	assert.Empty(t, PatternStage(table))
}

func TestPatternStageSkipsMissingPairs(t *testing.T) {
	x := numericColumn("x", 1, 2, 3, 4)
	y := numericColumn("y", 2, 4, 6, 8)
	// Knock out one side of a row; the remaining pairs stay perfectly
	// correlated.
	y.Values[1] = dataset.Value{Missing: true}
	table := dataset.NewTable([]dataset.Column{x, y})

	found := PatternStage(table)
	require.Len(t, found, 1)
	assert.Equal(t, 0.9, found[0].Confidence)
}

func TestQualityStageMissingData(t *testing.T) {
	// 15 of 100 values missing: 15.0%.
	cells := make([]dataset.Value, 100)
	for i := range cells {
		if i < 15 {
			cells[i] = dataset.Value{Missing: true}
		} else {
			cells[i] = dataset.Value{Raw: fmt.Sprintf("v%d", i)}
		}
	}
	table := dataset.NewTable([]dataset.Column{
		{Name: "notes", Type: dataset.ColumnText, Values: cells},
	})

	found := QualityStage(table)
	require.Len(t, found, 1)

	ins := found[0]
	assert.Equal(t, CategoryDataQuality, ins.Category)
	assert.Equal(t, 0.9, ins.Confidence)
	assert.Contains(t, ins.Description, "15 missing values")
	assert.Contains(t, ins.Description, "15.0%")
}

func TestQualityStageMissingBelowThreshold(t *testing.T) {
	// 1 of 20 missing is 5%: over zero but under the 10% bar.
	cells := make([]dataset.Value, 20)
	for i := range cells {
		if i == 0 {
			cells[i] = dataset.Value{Missing: true}
		} else {
			cells[i] = dataset.Value{Raw: "x"}
		}
	}
	table := dataset.NewTable([]dataset.Column{
		{Name: "c", Type: dataset.ColumnText, Values: cells},
	})

	assert.Empty(t, QualityStage(table))
}

func TestQualityStageDuplicates(t *testing.T) {
	table := dataset.NewTable([]dataset.Column{
		textColumn("a", "x", "x", "y", "x"),
		textColumn("b", "1", "1", "2", "1"),
	})

	found := QualityStage(table)
	require.Len(t, found, 1)

	ins := found[0]
	assert.Equal(t, "Duplicate Rows Detected", ins.Title)
	assert.Equal(t, 0.95, ins.Confidence)
	assert.Contains(t, ins.Description, "2 duplicate rows")
	assert.Equal(t, []string{"a", "b"}, ins.AffectedColumns)
}

func TestQualityStageCleanTable(t *testing.T) {
	table := dataset.NewTable([]dataset.Column{
		numericColumn("age", 25, 30, 35),
		numericColumn("score", 1, 2, 3),
	})

	assert.Empty(t, QualityStage(table))
}

func TestQualityStageEmptyTable(t *testing.T) {
	assert.Empty(t, QualityStage(dataset.NewTable(nil)))
}
