// Package stats computes descriptive statistics over numeric series:
// summaries, histograms, box plots and pairwise comparisons.
//
// Every reported variance and standard deviation is the sample estimate
// (n-1 denominator); a single value has zero spread. Quartiles use the
// nearest-rank index floor(n*p) on the ascending-sorted values.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary describes the distribution of a numeric series
type Summary struct {
	Count    int     `json:"count"`
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	Mode     float64 `json:"mode"`
	Variance float64 `json:"variance"`
	StdDev   float64 `json:"stdDev"`
	Skewness float64 `json:"skewness"`
	Kurtosis float64 `json:"kurtosis"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Range    float64 `json:"range"`
	Q1       float64 `json:"q1"`
	Q3       float64 `json:"q3"`
	IQR      float64 `json:"iqr"`
}

// Summarize computes a Summary. An empty series yields the zero Summary
// (Count == 0), which callers must not read as valid zero data.
func Summarize(values []float64) Summary {
	n := len(values)
	if n == 0 {
		return Summary{}
	}

	sorted := sortedCopy(values)
	mean := stat.Mean(values, nil)
	variance := SampleVariance(values)

	s := Summary{
		Count:    n,
		Mean:     mean,
		Median:   median(sorted),
		Mode:     mode(values),
		Variance: variance,
		StdDev:   math.Sqrt(variance),
		Min:      sorted[0],
		Max:      sorted[n-1],
		Q1:       NearestRank(sorted, 0.25),
		Q3:       NearestRank(sorted, 0.75),
	}
	s.Range = s.Max - s.Min
	s.IQR = s.Q3 - s.Q1

	// Standardized moments use the population second moment
	m2 := stat.Moment(2, values, nil)
	if m2 > 0 {
		s.Skewness = stat.Moment(3, values, nil) / math.Pow(m2, 1.5)
		s.Kurtosis = stat.Moment(4, values, nil)/(m2*m2) - 3
	}

	return s
}

// SampleVariance returns the n-1 variance, or 0 for fewer than two values
func SampleVariance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.Variance(values, nil)
}

// NearestRank returns sorted[floor(n*p)] clamped to the last index.
// sorted must be ascending and non-empty.
func NearestRank(sorted []float64, p float64) float64 {
	idx := int(math.Floor(float64(len(sorted)) * p))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// mode returns the most frequent value; ties go to the value seen first
func mode(values []float64) float64 {
	counts := make(map[float64]int, len(values))
	maxCount := 0
	for _, v := range values {
		counts[v]++
		if counts[v] > maxCount {
			maxCount = counts[v]
		}
	}
	for _, v := range values {
		if counts[v] == maxCount {
			return v
		}
	}
	return values[0]
}

func sortedCopy(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted
}
