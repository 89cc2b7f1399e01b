package insights

import (
	"sort"
)

// Select applies the ranking policy to raw stage output: insights below
// minConfidence are dropped, survivors are ordered by confidence
// descending (ties keep their emission order), and at most maxInsights
// remain.
func Select(raw []Insight, minConfidence float64, maxInsights int) []Insight {
	filtered := make([]Insight, 0, len(raw))
	for _, ins := range raw {
		if ins.Confidence < minConfidence {
			continue
		}
		filtered = append(filtered, ins)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Confidence > filtered[j].Confidence
	})

	if maxInsights >= 0 && len(filtered) > maxInsights {
		filtered = filtered[:maxInsights]
	}
	return filtered
}
