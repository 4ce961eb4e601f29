// Package forecast projects a generation series forward, e.g. to estimate
// when resistance will take over a population.
package forecast

import (
	"fmt"
	"math"
	"sort"

	"github.com/bactolab/resistscope/internal/analytics"
	"gonum.org/v1/gonum/stat/distuv"
)

// DataPoint is an alias to the shared analytics.GenerationPoint type
type DataPoint = analytics.GenerationPoint

// ForecastPoint represents a single projected generation
type ForecastPoint struct {
	Generation int     `json:"generation"`
	Value      float64 `json:"value"`
	LowerBound float64 `json:"lowerBound"`
	UpperBound float64 `json:"upperBound"`
}

// ModelInfo contains metadata about the fitted model
type ModelInfo struct {
	Algorithm  string             `json:"algorithm"`
	Parameters map[string]float64 `json:"parameters,omitempty"`
	MAE        float64            `json:"mae"`
	RMSE       float64            `json:"rmse"`
	DataPoints int                `json:"dataPoints"`
}

// ForecastResult contains the projections and model information
type ForecastResult struct {
	Predictions []ForecastPoint `json:"predictions"`
	Fitted      []float64       `json:"fitted,omitempty"`
	ModelInfo   ModelInfo       `json:"modelInfo"`
}

// ForecastConfig holds configuration for forecasting
type ForecastConfig struct {
	Horizon       int     // Number of generations to project
	Alpha         float64 // Level smoothing for holt (0-1)
	Beta          float64 // Trend smoothing for holt (0-1)
	Confidence    float64 // Prediction interval level (0-1)
	MinDataPoints int
	// Lower and Upper clamp projections, e.g. [0, 1] for a frequency. Ignored when equal.
	Lower, Upper float64
}

// DefaultForecastConfig returns default forecast configuration
func DefaultForecastConfig() ForecastConfig {
	return ForecastConfig{
		Horizon:       20,
		Alpha:         0.5,
		Beta:          0.3,
		Confidence:    0.95,
		MinDataPoints: 5,
	}
}

// Forecaster interface for all forecasting algorithms
type Forecaster interface {
	Name() string
	Forecast(data []DataPoint, config ForecastConfig) (*ForecastResult, error)
}

var forecasterRegistry = make(map[string]Forecaster)

// RegisterForecaster adds a forecaster to the registry
func RegisterForecaster(name string, forecaster Forecaster) {
	forecasterRegistry[name] = forecaster
}

// GetForecaster returns a forecaster by name
func GetForecaster(name string) (Forecaster, error) {
	if forecaster, ok := forecasterRegistry[name]; ok {
		return forecaster, nil
	}
	return nil, fmt.Errorf("unknown forecaster: %s", name)
}

// ListForecasters returns the sorted names of available forecasters
func ListForecasters() []string {
	names := make([]string, 0, len(forecasterRegistry))
	for name := range forecasterRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CalculateMAE calculates Mean Absolute Error
func CalculateMAE(actual, predicted []float64) float64 {
	if len(actual) != len(predicted) || len(actual) == 0 {
		return 0
	}
	sum := 0.0
	for i := range actual {
		sum += math.Abs(actual[i] - predicted[i])
	}
	return sum / float64(len(actual))
}

// CalculateRMSE calculates Root Mean Squared Error
func CalculateRMSE(actual, predicted []float64) float64 {
	if len(actual) != len(predicted) || len(actual) == 0 {
		return 0
	}
	sum := 0.0
	for i := range actual {
		diff := actual[i] - predicted[i]
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(actual)))
}

// predictionInterval returns value ± z*stdError for a two-sided confidence level
func predictionInterval(value, stdError, confidence float64) (lower, upper float64) {
	if confidence <= 0 || confidence >= 1 {
		confidence = 0.95
	}
	z := distuv.UnitNormal.Quantile(0.5 + confidence/2)
	margin := z * stdError
	return value - margin, value + margin
}

// generationStep is the typical spacing between consecutive points
func generationStep(data []DataPoint) int {
	if len(data) < 2 {
		return 1
	}
	step := (data[len(data)-1].Generation - data[0].Generation) / (len(data) - 1)
	if step < 1 {
		return 1
	}
	return step
}

func (c ForecastConfig) clamp(v float64) float64 {
	if c.Lower == c.Upper {
		return v
	}
	return math.Max(c.Lower, math.Min(c.Upper, v))
}

func checkInput(data []DataPoint, config ForecastConfig) error {
	minPoints := config.MinDataPoints
	if minPoints < 2 {
		minPoints = 2
	}
	if len(data) < minPoints {
		return fmt.Errorf("insufficient data points: need %d, have %d", minPoints, len(data))
	}
	if config.Horizon <= 0 {
		return fmt.Errorf("horizon must be positive")
	}
	return nil
}
