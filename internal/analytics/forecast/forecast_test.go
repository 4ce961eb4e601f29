package forecast

import (
	"math"
	"testing"
)

func generateTrendingData(n, step int, slope float64) []DataPoint {
	data := make([]DataPoint, n)
	for i := 0; i < n; i++ {
		data[i] = DataPoint{
			Generation: i * step,
			Value:      0.1 + slope*float64(i*step),
		}
	}
	return data
}

func TestLinearForecaster_ExactTrend(t *testing.T) {
	f := NewLinearRegressionForecaster()
	data := generateTrendingData(10, 2, 0.01)

	config := DefaultForecastConfig()
	config.Horizon = 3
	result, err := f.Forecast(data, config)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}

	if len(result.Predictions) != 3 {
		t.Fatalf("Expected 3 predictions, got %d", len(result.Predictions))
	}
	first := result.Predictions[0]
	if first.Generation != 20 {
		t.Errorf("Expected next generation 20, got %d", first.Generation)
	}
	if math.Abs(first.Value-0.3) > 1e-9 {
		t.Errorf("Expected 0.3, got %f", first.Value)
	}
	if result.ModelInfo.RMSE > 1e-9 {
		t.Errorf("Perfect line should have no error, got %f", result.ModelInfo.RMSE)
	}
	if math.Abs(result.ModelInfo.Parameters["slope"]-0.01) > 1e-12 {
		t.Errorf("Unexpected slope %v", result.ModelInfo.Parameters["slope"])
	}
}

func TestForecast_Clamp(t *testing.T) {
	data := generateTrendingData(10, 1, 0.1)

	config := DefaultForecastConfig()
	config.Horizon = 5
	config.Lower, config.Upper = 0, 1

	for _, name := range []string{"linear", "holt"} {
		f, err := GetForecaster(name)
		if err != nil {
			t.Fatalf("GetForecaster(%s) error = %v", name, err)
		}
		result, err := f.Forecast(data, config)
		if err != nil {
			t.Fatalf("%s: Forecast() error = %v", name, err)
		}
		for _, p := range result.Predictions {
			if p.Value > 1 || p.UpperBound > 1 || p.LowerBound < 0 {
				t.Errorf("%s: projection %+v escapes [0,1]", name, p)
			}
		}
	}
}

func TestHoltForecaster_FollowsTrend(t *testing.T) {
	f := &HoltForecaster{}
	data := generateTrendingData(30, 1, 0.02)

	config := DefaultForecastConfig()
	config.Horizon = 2
	result, err := f.Forecast(data, config)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	// last value 0.68, slope 0.02
	if math.Abs(result.Predictions[0].Value-0.70) > 1e-6 {
		t.Errorf("Expected ~0.70, got %f", result.Predictions[0].Value)
	}
	if result.Predictions[1].Value <= result.Predictions[0].Value {
		t.Error("Expected increasing projections")
	}
}

func TestForecast_InsufficientData(t *testing.T) {
	config := DefaultForecastConfig()
	for _, name := range ListForecasters() {
		f, _ := GetForecaster(name)
		if _, err := f.Forecast(generateTrendingData(2, 1, 1), config); err == nil {
			t.Errorf("%s: expected error for insufficient data", name)
		}
	}

	config.Horizon = 0
	if _, err := NewLinearRegressionForecaster().Forecast(generateTrendingData(10, 1, 1), config); err == nil {
		t.Error("expected error for zero horizon")
	}
}

func TestRegistry(t *testing.T) {
	names := ListForecasters()
	if len(names) != 3 || names[0] != "auto" || names[1] != "holt" || names[2] != "linear" {
		t.Errorf("unexpected forecasters %v", names)
	}
	if _, err := GetForecaster("arima"); err == nil {
		t.Error("expected error for unknown forecaster")
	}
}

func TestErrorMetrics(t *testing.T) {
	actual := []float64{1, 2, 3}
	predicted := []float64{1, 3, 5}
	if got := CalculateMAE(actual, predicted); got != 1 {
		t.Errorf("MAE = %v, want 1", got)
	}
	if got := CalculateRMSE(actual, predicted); math.Abs(got-math.Sqrt(5.0/3)) > 1e-12 {
		t.Errorf("RMSE = %v", got)
	}
	if CalculateMAE(actual, predicted[:1]) != 0 {
		t.Error("length mismatch should give 0")
	}
}

func TestAutoForecaster_PicksBestFit(t *testing.T) {
	config := DefaultForecastConfig()
	config.Horizon = 2

	// noisy steady drift
	noisy := make([]DataPoint, 20)
	for i := range noisy {
		v := 0.1 + 0.01*float64(i) - 0.02
		if i%2 == 1 {
			v += 0.04
		}
		noisy[i] = DataPoint{Generation: i, Value: v}
	}

	// flat, then a resistant lineage takes off
	sweep := make([]DataPoint, 20)
	for i := range sweep {
		v := 0.1
		if i >= 10 {
			v += 0.05 * float64(i-9)
		}
		sweep[i] = DataPoint{Generation: i, Value: v}
	}

	tests := []struct {
		name string
		data []DataPoint
		want string
	}{
		{"drift", noisy, "linear (auto-selected)"},
		{"sweep", sweep, "holt (auto-selected)"},
	}

	f, err := GetForecaster("auto")
	if err != nil {
		t.Fatalf("auto forecaster not registered: %v", err)
	}
	for _, tt := range tests {
		result, err := f.Forecast(tt.data, config)
		if err != nil {
			t.Fatalf("%s: Forecast() error = %v", tt.name, err)
		}
		if result.ModelInfo.Algorithm != tt.want {
			t.Errorf("%s: selected %q, want %q", tt.name, result.ModelInfo.Algorithm, tt.want)
		}
		if _, ok := result.ModelInfo.Parameters["rmse_holt"]; !ok {
			t.Errorf("%s: candidate scores missing: %v", tt.name, result.ModelInfo.Parameters)
		}
		if len(result.Predictions) != 2 {
			t.Errorf("%s: expected 2 predictions, got %d", tt.name, len(result.Predictions))
		}
	}

	if _, err := f.Forecast(sweep[:2], config); err == nil {
		t.Error("expected error for insufficient data")
	}
}
