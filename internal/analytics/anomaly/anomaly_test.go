package anomaly

import (
	"math"
	"testing"

	"github.com/bactolab/resistscope/internal/analytics"
)

func generations(series []float64) []DataPoint {
	points := make([]DataPoint, len(series))
	for i, v := range series {
		points[i] = DataPoint{Generation: i, Value: v}
	}
	return points
}

// indexOf returns the anomaly flagged at index i, if any
func indexOf(found []AnomalyResult, i int) (AnomalyResult, bool) {
	for _, r := range found {
		if r.Index == i {
			return r, true
		}
	}
	return AnomalyResult{}, false
}

func TestZScoreDetector_SpikeAndDrop(t *testing.T) {
	tests := []struct {
		name   string
		series []float64
		want   AnomalyType
	}{
		// resistance frequency jumps when a resistant lineage sweeps
		{"sweep", []float64{0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.9, 0.1, 0.1, 0.1}, AnomalyTypeSpike},
		// population crash under a dose increase
		{"crash", []float64{500, 500, 500, 500, 500, 500, 0, 500, 500, 500}, AnomalyTypeDrop},
	}

	d := &ZScoreDetector{}
	cfg := DefaultConfig()
	cfg.MinDataPoints = 5
	cfg.Threshold = 2.0

	for _, tt := range tests {
		r, ok := indexOf(d.Detect(generations(tt.series), cfg), 6)
		if !ok {
			t.Errorf("%s: generation 6 not flagged", tt.name)
			continue
		}
		if r.Type != tt.want {
			t.Errorf("%s: type = %s, want %s", tt.name, r.Type, tt.want)
		}
	}
}

func TestZScoreDetector_NoAnomalies(t *testing.T) {
	d := &ZScoreDetector{}
	cfg := DefaultConfig()
	cfg.MinDataPoints = 5

	series := []float64{10, 11, 10, 12, 11, 10, 11, 11, 10, 12}
	data := generations(series)

	found := d.Detect(data, cfg)

	if len(found) != 0 {
		t.Errorf("Expected no anomalies in normal data, got %d", len(found))
	}
}

func TestZScoreDetector_Flatline(t *testing.T) {
	d := &ZScoreDetector{}
	cfg := DefaultConfig()
	cfg.MinDataPoints = 5

	series := []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 10}
	data := generations(series)

	found := d.Detect(data, cfg)

	if len(found) != len(series) {
		t.Errorf("Expected all points flagged as flatline, got %d", len(found))
	}

	for _, r := range found {
		if r.Type != AnomalyTypeFlatline {
			t.Errorf("Expected anomaly type Flatline, got %s", r.Type)
		}
	}
}

func TestZScoreDetector_InsufficientData(t *testing.T) {
	d := &ZScoreDetector{}
	cfg := DefaultConfig()
	cfg.MinDataPoints = 10

	series := []float64{10, 50, 10}
	data := generations(series)

	found := d.Detect(data, cfg)

	if len(found) != 0 {
		t.Errorf("Expected no found with insufficient data, got %d", len(found))
	}
}

func TestCalculateMeanStdDev(t *testing.T) {
	series := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	mean, stdDev := CalculateMeanStdDev(series)

	if math.Abs(mean-5) > 1e-12 {
		t.Errorf("Expected mean 5, got %f", mean)
	}

	// population standard deviation of this classic sample is exactly 2
	if math.Abs(stdDev-2) > 1e-12 {
		t.Errorf("Expected stdDev 2, got %f", stdDev)
	}
}

func TestIQRDetector_DetectOutliers(t *testing.T) {
	d := &IQRDetector{}
	cfg := DefaultConfig()
	cfg.MinDataPoints = 5
	cfg.Threshold = 1.5

	series := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 100}
	data := generations(series)

	found := d.Detect(data, cfg)

	if len(found) == 0 {
		t.Fatal("Expected to detect outlier at index 9 (value 100)")
	}

	foundOutlier := false
	for _, r := range found {
		if r.Index == 9 {
			foundOutlier = true
			if r.Type != AnomalyTypeSpike {
				t.Errorf("Expected anomaly type Spike, got %s", r.Type)
			}
			break
		}
	}

	if !foundOutlier {
		t.Error("Expected to detect outlier at index 9")
	}
}

func TestIQRDetector_NoAnomalies(t *testing.T) {
	d := &IQRDetector{}
	cfg := DefaultConfig()
	cfg.MinDataPoints = 5
	cfg.Threshold = 1.5

	series := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	data := generations(series)

	found := d.Detect(data, cfg)

	if len(found) != 0 {
		t.Errorf("Expected no anomalies, got %d", len(found))
	}
}

func TestCalculateIQR(t *testing.T) {
	series := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}

	q1, q3, iqr := CalculateIQR(series)

	// nearest-rank: indices floor(9*0.25)=2 and floor(9*0.75)=6
	if q1 != 3 {
		t.Errorf("Expected Q1 3, got %f", q1)
	}
	if q3 != 7 {
		t.Errorf("Expected Q3 7, got %f", q3)
	}
	if iqr != 4 {
		t.Errorf("Expected IQR 4, got %f", iqr)
	}
}

func TestMovingAverageDetector_DetectSuddenChange(t *testing.T) {
	d := &MovingAverageDetector{}
	cfg := DefaultConfig()
	cfg.MinDataPoints = 5
	cfg.WindowSize = 5

	series := []float64{10, 10, 10, 10, 10, 10, 50, 10, 10, 10, 10, 10}
	data := generations(series)

	found := d.Detect(data, cfg)

	if len(found) == 0 {
		t.Fatal("Expected to detect sudden change at index 6")
	}

	if len(found) != 1 || found[0].Index != 6 {
		t.Errorf("Expected only the jump at index 6, got %+v", found)
	}
	if found[0].Type != AnomalyTypeSpike {
		t.Errorf("Expected spike, got %s", found[0].Type)
	}
}

func TestMovingAverageDetector_SteadyGrowthNotFlagged(t *testing.T) {
	d := &MovingAverageDetector{}
	cfg := DefaultConfig()
	cfg.WindowSize = 5

	series := make([]float64, 40)
	for i := range series {
		series[i] = 100 + float64(i)*2
	}

	if found := d.Detect(generations(series), cfg); len(found) != 0 {
		t.Errorf("Expected no anomalies in linear growth, got %d", len(found))
	}
}

func TestTrailingMean(t *testing.T) {
	result := TrailingMean([]float64{1, 2, 3, 4, 5}, 3)
	expected := []float64{1, 1.5, 2, 3, 4}

	if len(result) != len(expected) {
		t.Fatalf("Expected result length %d, got %d", len(expected), len(result))
	}
	for i := range expected {
		if math.Abs(result[i]-expected[i]) > 1e-12 {
			t.Errorf("index %d: expected %f, got %f", i, expected[i], result[i])
		}
	}
}

func TestAutoDetector_SelectsAlgorithm(t *testing.T) {
	d := &AutoDetector{}
	cfg := DefaultConfig()
	cfg.MinDataPoints = 5

	series := []float64{10, 11, 10, 12, 11, 10, 100, 11, 10, 12}
	data := generations(series)

	found := d.Detect(data, cfg)

	if len(found) == 0 {
		t.Fatal("Expected auto d to find anomalies")
	}
}

func TestAnalyzeData_TrendingData(t *testing.T) {
	series := make([]float64, 50)
	for i := range series {
		series[i] = float64(i) * 10
	}
	data := generations(series)

	chars := AnalyzeData(data)

	if !chars.HasTrend {
		t.Error("Expected to detect trend in trending data")
	}

	if chars.TrendStrength <= 0 {
		t.Errorf("Expected positive trend strength, got %f", chars.TrendStrength)
	}
}

func TestAnalyzeData_DataWithOutliers(t *testing.T) {
	series := make([]float64, 100)
	for i := range series {
		series[i] = 50
		if i%10 == 0 {
			series[i] = 500
		}
	}
	data := generations(series)

	chars := AnalyzeData(data)

	if chars.OutlierPercentage < 5 {
		t.Errorf("Expected >5%% outliers, got %f%%", chars.OutlierPercentage)
	}

	if chars.SelectedAlgorithm != "iqr" {
		t.Errorf("Expected IQR for data with outliers, got %s", chars.SelectedAlgorithm)
	}
}

func TestDetectorRegistry(t *testing.T) {
	detectors := ListDetectors()

	if len(detectors) < 4 {
		t.Errorf("Expected at least 4 detectors, got %d", len(detectors))
	}

	expectedDetectors := []string{"zscore", "iqr", "moving_average", "auto"}
	for _, name := range expectedDetectors {
		d, err := GetDetector(name)
		if err != nil {
			t.Errorf("Expected d %s to exist, got error: %v", name, err)
		}
		if d == nil {
			t.Errorf("Expected d %s to not be nil", name)
		}
	}
}

func TestGetDetector_Unknown(t *testing.T) {
	_, err := GetDetector("unknown_detector")

	if err == nil {
		t.Error("Expected error for unknown d")
	}
}

func TestEmptyData(t *testing.T) {
	detectors := []AnomalyDetector{
		&ZScoreDetector{},
		&IQRDetector{},
		&MovingAverageDetector{},
		&AutoDetector{},
	}

	cfg := DefaultConfig()
	data := []DataPoint{}

	for _, d := range detectors {
		found := d.Detect(data, cfg)
		if len(found) != 0 {
			t.Errorf("%s: Expected no found for empty data", d.Name())
		}
	}
}

func TestNegativeValues(t *testing.T) {
	d := &ZScoreDetector{}
	cfg := DefaultConfig()
	cfg.MinDataPoints = 5
	cfg.Threshold = 2.0 // Lower threshold

	// Negative series with a clear anomaly
	series := []float64{-10, -10, -10, -10, -10, -10, -100, -10, -10, -10}
	data := generations(series)

	found := d.Detect(data, cfg)

	if len(found) == 0 {
		t.Error("Expected to detect anomaly in negative series")
	}
}

func TestVeryHighThreshold(t *testing.T) {
	d := &ZScoreDetector{}
	cfg := DefaultConfig()
	cfg.MinDataPoints = 5
	cfg.Threshold = 100

	series := []float64{10, 11, 10, 12, 11, 10, 50, 11, 10, 12}
	data := generations(series)

	found := d.Detect(data, cfg)

	if len(found) != 0 {
		t.Errorf("Expected no anomalies with high threshold, got %d", len(found))
	}
}

func TestDetectSeries_MapsGenerations(t *testing.T) {
	series := analytics.GenerationSeries{}
	for g := 0; g < 20; g++ {
		v := 0.1
		if g == 13 {
			v = 0.9
		}
		series = append(series, analytics.GenerationPoint{Generation: 100 + g, Value: v})
	}

	cfg := DefaultConfig()
	cfg.Threshold = 2
	anomalies, err := DetectSeries("zscore", "resistanceFrequency", series, cfg)
	if err != nil {
		t.Fatalf("DetectSeries() error = %v", err)
	}
	if len(anomalies) != 1 {
		t.Fatalf("Expected one anomaly, got %d", len(anomalies))
	}
	a := anomalies[0]
	if a.Generation != 113 || a.Value != 0.9 || a.Field != "resistanceFrequency" || a.Algorithm != "zscore" {
		t.Errorf("unexpected anomaly %+v", a)
	}

	if _, err := DetectSeries("nope", "x", series, cfg); err == nil {
		t.Error("Expected error for unknown algorithm")
	}
}
