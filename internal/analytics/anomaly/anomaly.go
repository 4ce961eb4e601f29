// Package anomaly flags unusual generations in a simulation series, such as
// sudden resistance sweeps or population crashes.
package anomaly

import (
	"fmt"
	"sort"

	"github.com/bactolab/resistscope/internal/analytics"
)

// AnomalyType represents the type of anomaly detected
type AnomalyType string

const (
	AnomalyTypeSpike    AnomalyType = "spike"    // Sudden increase
	AnomalyTypeDrop     AnomalyType = "drop"     // Sudden decrease
	AnomalyTypeOutlier  AnomalyType = "outlier"  // Value outside normal range
	AnomalyTypeFlatline AnomalyType = "flatline" // No variation across the series
)

// Anomaly is a flagged generation of one field
type Anomaly struct {
	Generation int         `json:"generation"`
	Field      string      `json:"field"`
	Value      float64     `json:"value"`
	Expected   *Range      `json:"expected,omitempty"`
	Score      float64     `json:"score"`
	Type       AnomalyType `json:"type"`
	Algorithm  string      `json:"algorithm"`
}

// Range represents expected value range
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// DataPoint is an alias to the shared analytics.GenerationPoint type
type DataPoint = analytics.GenerationPoint

// DetectorConfig holds configuration for anomaly detection
type DetectorConfig struct {
	// Threshold for detection sensitivity (e.g., number of std deviations for Z-Score)
	Threshold float64

	// WindowSize for moving average/window-based algorithms
	WindowSize int

	// MinDataPoints minimum number of points required for detection
	MinDataPoints int
}

// DefaultConfig returns default detector configuration
func DefaultConfig() DetectorConfig {
	return DetectorConfig{
		Threshold:     3.0,
		WindowSize:    10,
		MinDataPoints: 10,
	}
}

// AnomalyDetector interface for all anomaly detection algorithms
type AnomalyDetector interface {
	Name() string

	// Detect returns the indices of anomalous points with their scores
	Detect(data []DataPoint, config DetectorConfig) []AnomalyResult
}

// AnomalyResult contains detection result for a single point
type AnomalyResult struct {
	Index    int
	Score    float64
	Type     AnomalyType
	Expected *Range
}

var detectorRegistry = make(map[string]AnomalyDetector)

// RegisterDetector adds a detector to the registry
func RegisterDetector(name string, detector AnomalyDetector) {
	detectorRegistry[name] = detector
}

// GetDetector returns a detector by name
func GetDetector(name string) (AnomalyDetector, error) {
	if detector, ok := detectorRegistry[name]; ok {
		return detector, nil
	}
	return nil, fmt.Errorf("unknown anomaly detector: %s", name)
}

// ListDetectors returns the sorted names of available detectors
func ListDetectors() []string {
	names := make([]string, 0, len(detectorRegistry))
	for name := range detectorRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DetectAnomalies runs the named algorithm over raw points
func DetectAnomalies(algorithm string, data []DataPoint, config DetectorConfig) ([]AnomalyResult, error) {
	detector, err := GetDetector(algorithm)
	if err != nil {
		return nil, err
	}
	return detector.Detect(data, config), nil
}

// DetectSeries runs the named algorithm over a series and maps the results
// back onto generations
func DetectSeries(algorithm, field string, series analytics.GenerationSeries, config DetectorConfig) ([]Anomaly, error) {
	results, err := DetectAnomalies(algorithm, series, config)
	if err != nil {
		return nil, err
	}

	anomalies := make([]Anomaly, 0, len(results))
	for _, r := range results {
		p := series[r.Index]
		anomalies = append(anomalies, Anomaly{
			Generation: p.Generation,
			Field:      field,
			Value:      p.Value,
			Expected:   r.Expected,
			Score:      r.Score,
			Type:       r.Type,
			Algorithm:  algorithm,
		})
	}
	return anomalies, nil
}
