package anomaly

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// MovingAverageDetector compares each generation with the window of
// generations before it, so a steadily growing population is not flagged
// while a sudden jump is. The first window of points is never flagged.
type MovingAverageDetector struct{}

func init() {
	RegisterDetector("moving_average", &MovingAverageDetector{})
}

// Name returns the algorithm name
func (ma *MovingAverageDetector) Name() string {
	return "moving_average"
}

// Detect finds anomalies using a trailing window
func (ma *MovingAverageDetector) Detect(data []DataPoint, config DetectorConfig) []AnomalyResult {
	if len(data) < config.MinDataPoints || len(data) < 2 {
		return nil
	}

	window := config.WindowSize
	if window <= 0 {
		window = 10
	}
	if window >= len(data) {
		window = len(data) / 2
	}
	if window < 2 {
		window = 2
	}

	values := make([]float64, len(data))
	for i, dp := range data {
		values[i] = dp.Value
	}

	var results []AnomalyResult
	for i := window; i < len(values); i++ {
		localMean, localStd := stat.PopMeanStdDev(values[i-window:i], nil)
		v := values[i]

		var deviation float64
		switch {
		case localStd > 0:
			deviation = math.Abs(v-localMean) / localStd
		case v != localMean:
			// Any departure from a flat window counts
			deviation = config.Threshold + 1
		}
		if deviation <= config.Threshold {
			continue
		}

		kind := AnomalyTypeDrop
		if v > localMean {
			kind = AnomalyTypeSpike
		}
		results = append(results, AnomalyResult{
			Index: i,
			Score: deviation,
			Type:  kind,
			Expected: &Range{
				Min: localMean - config.Threshold*localStd,
				Max: localMean + config.Threshold*localStd,
			},
		})
	}

	return results
}

// TrailingMean returns, for each index, the mean of up to window preceding
// values including itself
func TrailingMean(values []float64, window int) []float64 {
	if len(values) == 0 || window <= 0 {
		return nil
	}

	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		n := window
		if i+1 < window {
			n = i + 1
		}
		out[i] = sum / float64(n)
	}
	return out
}
