package anomaly

import (
	"sort"

	"github.com/bactolab/resistscope/internal/analytics/stats"
)

// IQRDetector flags points outside [Q1 - k*IQR, Q3 + k*IQR]. It tolerates
// the heavy tails of resistance sweeps better than Z-Score. Quartiles are
// nearest-rank, matching the box plots.
type IQRDetector struct{}

func init() {
	RegisterDetector("iqr", &IQRDetector{})
}

// Name returns the algorithm name
func (d *IQRDetector) Name() string {
	return "iqr"
}

// Detect finds anomalies using IQR method
func (d *IQRDetector) Detect(data []DataPoint, config DetectorConfig) []AnomalyResult {
	if len(data) < config.MinDataPoints || len(data) == 0 {
		return nil
	}

	values := make([]float64, len(data))
	for i, dp := range data {
		values[i] = dp.Value
	}
	q1, q3, iqr := CalculateIQR(values)

	// Threshold doubles as the fence multiplier; z-score sized values fall back to Tukey's 1.5
	k := config.Threshold
	if k <= 0 || k >= 3 {
		k = 1.5
	}
	expected := &Range{Min: q1 - k*iqr, Max: q3 + k*iqr}

	var results []AnomalyResult
	for i, v := range values {
		var dist float64
		var kind AnomalyType
		switch {
		case v > expected.Max:
			dist, kind = v-expected.Max, AnomalyTypeSpike
		case v < expected.Min:
			dist, kind = expected.Min-v, AnomalyTypeDrop
		default:
			continue
		}

		score := 1.0
		if iqr > 0 {
			score = dist / iqr
		}
		results = append(results, AnomalyResult{
			Index:    i,
			Score:    score,
			Type:     kind,
			Expected: expected,
		})
	}

	return results
}

// CalculateIQR returns nearest-rank Q1, Q3 and their difference
func CalculateIQR(values []float64) (q1, q3, iqr float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	q1 = stats.NearestRank(sorted, 0.25)
	q3 = stats.NearestRank(sorted, 0.75)
	return q1, q3, q3 - q1
}
