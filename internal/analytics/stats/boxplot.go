package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// BoxPlot summarizes one group with Tukey fences
type BoxPlot struct {
	Group      string    `json:"group"`
	Count      int       `json:"count"`
	Min        float64   `json:"min"`
	Q1         float64   `json:"q1"`
	Median     float64   `json:"median"`
	Q3         float64   `json:"q3"`
	Max        float64   `json:"max"`
	IQR        float64   `json:"iqr"`
	LowerFence float64   `json:"lowerFence"`
	UpperFence float64   `json:"upperFence"`
	Mean       float64   `json:"mean"`
	StdDev     float64   `json:"stdDev"`
	Outliers   []float64 `json:"outliers"`
}

// GroupedValue is a value tagged with the group it is plotted in
type GroupedValue struct {
	Group string
	Value float64
}

// BoxPlots builds one box plot per group, in order of first appearance
func BoxPlots(items []GroupedValue) []BoxPlot {
	var order []string
	groups := make(map[string][]float64)
	for _, it := range items {
		if _, seen := groups[it.Group]; !seen {
			order = append(order, it.Group)
		}
		groups[it.Group] = append(groups[it.Group], it.Value)
	}

	plots := make([]BoxPlot, 0, len(order))
	for _, g := range order {
		plots = append(plots, BoxPlotOf(g, groups[g]))
	}
	return plots
}

// BoxPlotOf computes the box plot of a single group. Whisker ends are the
// raw extremes clipped to the fences.
func BoxPlotOf(group string, values []float64) BoxPlot {
	bp := BoxPlot{Group: group, Count: len(values), Outliers: []float64{}}
	if len(values) == 0 {
		return bp
	}

	sorted := sortedCopy(values)
	bp.Q1 = NearestRank(sorted, 0.25)
	bp.Median = NearestRank(sorted, 0.5)
	bp.Q3 = NearestRank(sorted, 0.75)
	bp.IQR = bp.Q3 - bp.Q1
	bp.LowerFence = bp.Q1 - 1.5*bp.IQR
	bp.UpperFence = bp.Q3 + 1.5*bp.IQR
	bp.Min = math.Max(sorted[0], bp.LowerFence)
	bp.Max = math.Min(sorted[len(sorted)-1], bp.UpperFence)
	bp.Mean = stat.Mean(values, nil)
	bp.StdDev = math.Sqrt(SampleVariance(values))

	for _, v := range sorted {
		if v < bp.LowerFence || v > bp.UpperFence {
			bp.Outliers = append(bp.Outliers, v)
		}
	}
	return bp
}

// DecadeGroup buckets a generation into a ten-generation label such as "10-19"
func DecadeGroup(generation int) string {
	start := (generation / 10) * 10
	return fmt.Sprintf("%d-%d", start, start+9)
}
