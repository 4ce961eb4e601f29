package forecast

import (
	"math"
)

// HoltForecaster is double exponential smoothing (level + trend). It follows
// the recent slope of a resistance sweep more closely than a global fit.
type HoltForecaster struct{}

func init() {
	RegisterForecaster("holt", &HoltForecaster{})
}

// Name returns the algorithm name
func (f *HoltForecaster) Name() string {
	return "holt"
}

// Forecast generates predictions using Holt's linear trend method
func (f *HoltForecaster) Forecast(data []DataPoint, config ForecastConfig) (*ForecastResult, error) {
	if err := checkInput(data, config); err != nil {
		return nil, err
	}

	alpha, beta := config.Alpha, config.Beta
	if alpha <= 0 || alpha > 1 {
		alpha = 0.5
	}
	if beta <= 0 || beta > 1 {
		beta = 0.3
	}

	actual := make([]float64, len(data))
	for i, p := range data {
		actual[i] = p.Value
	}

	level := actual[0]
	trend := actual[1] - actual[0]
	fitted := make([]float64, len(data))
	fitted[0] = actual[0]
	sse := 0.0
	for i := 1; i < len(actual); i++ {
		fitted[i] = level + trend
		r := actual[i] - fitted[i]
		sse += r * r

		prevLevel := level
		level = alpha*actual[i] + (1-alpha)*(level+trend)
		trend = beta*(level-prevLevel) + (1-beta)*trend
	}
	stdError := math.Sqrt(sse / float64(len(actual)-1))

	step := generationStep(data)
	last := data[len(data)-1].Generation
	predictions := make([]ForecastPoint, config.Horizon)
	for i := range predictions {
		h := float64(i + 1)
		value := level + h*trend
		// Uncertainty widens with the horizon
		lower, upper := predictionInterval(value, stdError*math.Sqrt(h), config.Confidence)
		predictions[i] = ForecastPoint{
			Generation: last + step*(i+1),
			Value:      config.clamp(value),
			LowerBound: config.clamp(lower),
			UpperBound: config.clamp(upper),
		}
	}

	return &ForecastResult{
		Predictions: predictions,
		Fitted:      fitted,
		ModelInfo: ModelInfo{
			Algorithm:  "holt",
			Parameters: map[string]float64{"alpha": alpha, "beta": beta},
			MAE:        CalculateMAE(actual, fitted),
			RMSE:       CalculateRMSE(actual, fitted),
			DataPoints: len(data),
		},
	}, nil
}
