package forecast

import "fmt"

// AutoForecaster fits every candidate and keeps the one with the lowest
// in-sample RMSE. A steady drift usually goes to linear; a sweep that
// bends partway through goes to holt. Ties go to the earlier candidate.
type AutoForecaster struct {
	candidates []Forecaster
}

// NewAutoForecaster creates an auto forecaster over linear and holt
func NewAutoForecaster() *AutoForecaster {
	return &AutoForecaster{
		candidates: []Forecaster{NewLinearRegressionForecaster(), &HoltForecaster{}},
	}
}

func init() {
	RegisterForecaster("auto", NewAutoForecaster())
}

// Name returns the algorithm name
func (f *AutoForecaster) Name() string {
	return "auto"
}

// Forecast runs each candidate and returns the best fit. The RMSE of every
// candidate is reported in the model parameters as rmse_<name>.
func (f *AutoForecaster) Forecast(data []DataPoint, config ForecastConfig) (*ForecastResult, error) {
	if err := checkInput(data, config); err != nil {
		return nil, err
	}

	var best *ForecastResult
	scores := make(map[string]float64, len(f.candidates))
	var lastErr error
	for _, c := range f.candidates {
		result, err := c.Forecast(data, config)
		if err != nil {
			lastErr = err
			continue
		}
		scores["rmse_"+c.Name()] = result.ModelInfo.RMSE
		if best == nil || result.ModelInfo.RMSE < best.ModelInfo.RMSE {
			best = result
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no forecaster could fit the series: %w", lastErr)
	}

	if best.ModelInfo.Parameters == nil {
		best.ModelInfo.Parameters = make(map[string]float64, len(scores))
	}
	for k, v := range scores {
		best.ModelInfo.Parameters[k] = v
	}
	best.ModelInfo.Algorithm += " (auto-selected)"
	return best, nil
}
