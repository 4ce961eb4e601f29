package anomaly

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// AutoDetector picks an algorithm from the shape of the series
type AutoDetector struct{}

func init() {
	RegisterDetector("auto", &AutoDetector{})
}

// Name returns the algorithm name
func (a *AutoDetector) Name() string {
	return "auto"
}

// Detect analyzes the series and delegates to the selected detector
func (a *AutoDetector) Detect(data []DataPoint, config DetectorConfig) []AnomalyResult {
	if len(data) < config.MinDataPoints {
		return nil
	}

	detector, err := GetDetector(AnalyzeData(data).SelectedAlgorithm)
	if err != nil {
		detector = &ZScoreDetector{}
	}
	return detector.Detect(data, config)
}

// DataCharacteristics describes properties of a series
type DataCharacteristics struct {
	DataSize int

	// HasTrend is set when a linear fit over generations explains more than 10% of variance
	HasTrend bool

	// TrendStrength from -1 (strong downward) to 1 (strong upward)
	TrendStrength float64

	// IsNormalDistribution is a rough skewness/kurtosis check
	IsNormalDistribution bool

	// OutlierPercentage is the share of points outside the 1.5*IQR fences
	OutlierPercentage float64

	SelectedAlgorithm string
}

// AnalyzeData returns characteristics of the series and the algorithm they suggest
func AnalyzeData(data []DataPoint) DataCharacteristics {
	chars := DataCharacteristics{DataSize: len(data)}
	if len(data) >= 3 {
		values := make([]float64, len(data))
		xs := make([]float64, len(data))
		for i, dp := range data {
			values[i] = dp.Value
			xs[i] = float64(dp.Generation)
		}

		chars.HasTrend, chars.TrendStrength = detectTrend(xs, values)
		chars.IsNormalDistribution = checkNormality(values)

		q1, q3, iqr := CalculateIQR(values)
		outliers := 0
		for _, v := range values {
			if v < q1-1.5*iqr || v > q3+1.5*iqr {
				outliers++
			}
		}
		chars.OutlierPercentage = float64(outliers) / float64(len(values)) * 100
	}
	chars.SelectedAlgorithm = selectAlgorithm(chars)
	return chars
}

// selectAlgorithm: many outliers -> iqr, trend -> moving_average,
// normal -> zscore, otherwise iqr
func selectAlgorithm(chars DataCharacteristics) string {
	switch {
	case chars.OutlierPercentage > 5:
		return "iqr"
	case chars.HasTrend && math.Abs(chars.TrendStrength) > 0.3:
		return "moving_average"
	case chars.IsNormalDistribution:
		return "zscore"
	}
	return "iqr"
}

// detectTrend fits values against generation and reports the signed R²
func detectTrend(xs, values []float64) (bool, float64) {
	if stat.Variance(xs, nil) == 0 || stat.Variance(values, nil) == 0 {
		return false, 0
	}
	alpha, beta := stat.LinearRegression(xs, values, nil, false)
	rSquared := stat.RSquared(xs, values, nil, alpha, beta)

	strength := rSquared
	if beta < 0 {
		strength = -rSquared
	}
	return rSquared > 0.1, strength
}

func checkNormality(values []float64) bool {
	if len(values) < 10 {
		return false
	}
	m2 := stat.Moment(2, values, nil)
	if m2 == 0 {
		return false
	}
	skewness := stat.Moment(3, values, nil) / math.Pow(m2, 1.5)
	kurtosis := stat.Moment(4, values, nil)/(m2*m2) - 3
	return math.Abs(skewness) < 1 && math.Abs(kurtosis) < 2
}
