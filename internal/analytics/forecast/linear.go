package forecast

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// LinearRegressionForecaster fits value against generation by least squares
type LinearRegressionForecaster struct{}

// NewLinearRegressionForecaster creates a new Linear Regression forecaster
func NewLinearRegressionForecaster() *LinearRegressionForecaster {
	return &LinearRegressionForecaster{}
}

func init() {
	RegisterForecaster("linear", NewLinearRegressionForecaster())
}

// Name returns the algorithm name
func (f *LinearRegressionForecaster) Name() string {
	return "linear"
}

// Forecast generates predictions using Linear Regression
func (f *LinearRegressionForecaster) Forecast(data []DataPoint, config ForecastConfig) (*ForecastResult, error) {
	if err := checkInput(data, config); err != nil {
		return nil, err
	}

	xs := make([]float64, len(data))
	actual := make([]float64, len(data))
	for i, p := range data {
		xs[i] = float64(p.Generation)
		actual[i] = p.Value
	}

	intercept, slope := stat.LinearRegression(xs, actual, nil, false)

	fitted := make([]float64, len(data))
	sse := 0.0
	for i, x := range xs {
		fitted[i] = intercept + slope*x
		r := actual[i] - fitted[i]
		sse += r * r
	}
	stdError := 0.0
	if len(data) > 2 {
		stdError = math.Sqrt(sse / float64(len(data)-2))
	}

	step := generationStep(data)
	last := data[len(data)-1].Generation
	predictions := make([]ForecastPoint, config.Horizon)
	for i := range predictions {
		gen := last + step*(i+1)
		value := intercept + slope*float64(gen)
		lower, upper := predictionInterval(value, stdError, config.Confidence)
		predictions[i] = ForecastPoint{
			Generation: gen,
			Value:      config.clamp(value),
			LowerBound: config.clamp(lower),
			UpperBound: config.clamp(upper),
		}
	}

	return &ForecastResult{
		Predictions: predictions,
		Fitted:      fitted,
		ModelInfo: ModelInfo{
			Algorithm:  "linear",
			Parameters: map[string]float64{"slope": slope, "intercept": intercept},
			MAE:        CalculateMAE(actual, fitted),
			RMSE:       CalculateRMSE(actual, fitted),
			DataPoints: len(data),
		},
	}, nil
}
