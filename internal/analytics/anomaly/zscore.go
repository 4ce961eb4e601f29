package anomaly

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// ZScoreDetector flags points more than Threshold population standard
// deviations away from the series mean
type ZScoreDetector struct{}

func init() {
	RegisterDetector("zscore", &ZScoreDetector{})
}

// Name returns the algorithm name
func (z *ZScoreDetector) Name() string {
	return "zscore"
}

// Detect finds anomalies using Z-Score method
func (z *ZScoreDetector) Detect(data []DataPoint, config DetectorConfig) []AnomalyResult {
	if len(data) < config.MinDataPoints || len(data) == 0 {
		return nil
	}

	values := make([]float64, len(data))
	for i, dp := range data {
		values[i] = dp.Value
	}
	if isConstant(values) {
		return z.detectFlatline(data)
	}
	mean, stdDev := CalculateMeanStdDev(values)

	expectedRange := &Range{
		Min: mean - config.Threshold*stdDev,
		Max: mean + config.Threshold*stdDev,
	}

	var results []AnomalyResult
	for i, v := range values {
		zScore := (v - mean) / stdDev
		if math.Abs(zScore) <= config.Threshold {
			continue
		}

		anomalyType := AnomalyTypeDrop
		if zScore > 0 {
			anomalyType = AnomalyTypeSpike
		}
		results = append(results, AnomalyResult{
			Index:    i,
			Score:    math.Abs(zScore),
			Type:     anomalyType,
			Expected: expectedRange,
		})
	}

	return results
}

// detectFlatline reports every point of a constant series. A population that
// never changes usually means the run stalled.
func (z *ZScoreDetector) detectFlatline(data []DataPoint) []AnomalyResult {
	results := make([]AnomalyResult, len(data))
	for i := range data {
		results[i] = AnomalyResult{
			Index: i,
			Score: 1.0,
			Type:  AnomalyTypeFlatline,
		}
	}
	return results
}

func isConstant(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

// CalculateZScore calculates Z-Score for a single value given mean and stdDev
func CalculateZScore(value, mean, stdDev float64) float64 {
	if stdDev == 0 {
		return 0
	}
	return (value - mean) / stdDev
}

// CalculateMeanStdDev returns the mean and population standard deviation
func CalculateMeanStdDev(values []float64) (mean, stdDev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	return stat.PopMeanStdDev(values, nil)
}
