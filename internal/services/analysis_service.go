package services

import (
	"fmt"
	"math"

	"github.com/bactolab/resistscope/internal/analytics"
	"github.com/bactolab/resistscope/internal/analytics/anomaly"
	"github.com/bactolab/resistscope/internal/analytics/forecast"
	"github.com/bactolab/resistscope/internal/analytics/stats"
	"github.com/bactolab/resistscope/internal/config"
	"github.com/bactolab/resistscope/internal/downsampling"
	"github.com/bactolab/resistscope/internal/logging"
	"github.com/bactolab/resistscope/internal/models"
	"github.com/bactolab/resistscope/internal/stream"
	"github.com/bactolab/resistscope/internal/transform"
)

// Limits on caller-supplied analysis parameters
const (
	MaxHistogramBins = 200
	MaxForecastSteps = 500
)

// chartKeyField is the series each chart is downsampled on
var chartKeyField = map[models.ChartKind]analytics.Field{
	models.ChartPopulation: analytics.FieldTotalPopulation,
	models.ChartMutation:   analytics.FieldMutationCount,
	models.ChartResistance: analytics.FieldResistanceFrequency,
	models.ChartGrowth:     analytics.FieldTotalPopulation,
}

// ChartRequest selects a chart view of one simulation buffer
type ChartRequest struct {
	SimulationID string
	Chart        string
	Downsampling string
	MaxPoints    int
}

// SeriesRequest selects one field of one simulation buffer
type SeriesRequest struct {
	SimulationID string
	Field        string
}

// SummaryResponse wraps a summary with its source
type SummaryResponse struct {
	SimulationID string        `json:"simulationId"`
	Field        string        `json:"field"`
	Summary      stats.Summary `json:"summary"`
}

// HistogramResponse wraps histogram bins with their source
type HistogramResponse struct {
	SimulationID string               `json:"simulationId"`
	Field        string               `json:"field"`
	Bins         []stats.HistogramBin `json:"bins"`
}

// BoxPlotResponse wraps box plots with their source
type BoxPlotResponse struct {
	SimulationID string          `json:"simulationId"`
	Field        string          `json:"field"`
	GroupBy      string          `json:"groupBy"`
	Groups       []stats.BoxPlot `json:"groups"`
}

// AnomalyResponse lists flagged generations
type AnomalyResponse struct {
	SimulationID string            `json:"simulationId"`
	Field        string            `json:"field"`
	Algorithm    string            `json:"algorithm"`
	Anomalies    []anomaly.Anomaly `json:"anomalies"`
}

// ForecastResponse carries projected generations
type ForecastResponse struct {
	SimulationID string                   `json:"simulationId"`
	Field        string                   `json:"field"`
	Algorithm    string                   `json:"algorithm"`
	Result       *forecast.ForecastResult `json:"result"`
}

// AnalysisService serves chart views and statistics over buffered data
type AnalysisService struct {
	logger   *logging.Logger
	registry *stream.Registry
	cfg      config.AnalysisConfig
}

// NewAnalysisService creates a new AnalysisService
func NewAnalysisService(logger *logging.Logger, registry *stream.Registry, cfg config.AnalysisConfig) *AnalysisService {
	return &AnalysisService{
		logger:   logger,
		registry: registry,
		cfg:      cfg,
	}
}

func (s *AnalysisService) points(simulationID string) ([]models.DataPoint, error) {
	acc, ok := s.registry.Get(simulationID)
	if !ok {
		return nil, NewServiceError(CodeNotFound, "simulation not found: "+simulationID)
	}
	return acc.Data(), nil
}

func (s *AnalysisService) series(req SeriesRequest) (analytics.Field, analytics.GenerationSeries, error) {
	field, err := analytics.ParseField(req.Field)
	if err != nil {
		return "", nil, NewServiceError(CodeInvalidRequest, err.Error())
	}
	points, err := s.points(req.SimulationID)
	if err != nil {
		return "", nil, err
	}
	series, err := analytics.ExtractSeries(points, field)
	if err != nil {
		return "", nil, NewServiceError(CodeInvalidRequest, err.Error())
	}
	return field, series, nil
}

// Chart returns one chart family for a simulation. Downsampling selects
// whole data points on the chart's key series so every view field of a
// kept generation stays consistent.
func (s *AnalysisService) Chart(req ChartRequest) (*models.ChartResponse, error) {
	kind, err := models.ParseChartKind(req.Chart)
	if err != nil {
		return nil, NewServiceError(CodeInvalidRequest, err.Error())
	}
	mode, err := downsampling.ParseMode(req.Downsampling)
	if err != nil {
		return nil, NewServiceError(CodeInvalidRequest, err.Error())
	}
	points, err := s.points(req.SimulationID)
	if err != nil {
		return nil, err
	}

	threshold := req.MaxPoints
	if threshold <= 0 {
		threshold = s.cfg.MaxChartPoints
	}

	// Views derive growth from neighbours, so they are built on the full
	// buffer and the selection is applied afterwards.
	view, _, err := transform.ChartView(kind, points)
	if err != nil {
		return nil, NewServiceError(CodeInvalidRequest, err.Error())
	}

	series, _ := analytics.ExtractSeries(points, chartKeyField[kind])
	indices, err := downsampling.SelectIndices(series, mode, threshold)
	if err != nil {
		return nil, NewServiceError(CodeAnalysisFailed, err.Error())
	}
	if indices != nil {
		view = selectView(view, indices)
	}

	count := viewLen(view)
	s.logger.Debug("Chart served",
		"simulation_id", req.SimulationID,
		"chart", kind,
		"mode", mode,
		"buffered", len(points),
		"returned", count)

	return &models.ChartResponse{
		SimulationID: req.SimulationID,
		Chart:        kind,
		Count:        count,
		Points:       view,
	}, nil
}

func selectView(view interface{}, indices []int) interface{} {
	switch v := view.(type) {
	case []models.PopulationPoint:
		return pick(v, indices)
	case []models.MutationPoint:
		return pick(v, indices)
	case []models.ResistancePoint:
		return pick(v, indices)
	case []models.GrowthPoint:
		return pick(v, indices)
	}
	return view
}

func viewLen(view interface{}) int {
	switch v := view.(type) {
	case []models.PopulationPoint:
		return len(v)
	case []models.MutationPoint:
		return len(v)
	case []models.ResistancePoint:
		return len(v)
	case []models.GrowthPoint:
		return len(v)
	}
	return 0
}

func pick[T any](items []T, indices []int) []T {
	out := make([]T, 0, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(items) {
			out = append(out, items[i])
		}
	}
	return out
}

// Summary describes one field of a simulation buffer
func (s *AnalysisService) Summary(req SeriesRequest) (*SummaryResponse, error) {
	field, series, err := s.series(req)
	if err != nil {
		return nil, err
	}
	return &SummaryResponse{
		SimulationID: req.SimulationID,
		Field:        string(field),
		Summary:      stats.Summarize(series.Values()),
	}, nil
}

// Histogram bins one field. bins <= 0 falls back to the configured default.
func (s *AnalysisService) Histogram(req SeriesRequest, bins int) (*HistogramResponse, error) {
	if bins <= 0 {
		bins = s.cfg.HistogramBins
	}
	if bins > MaxHistogramBins {
		return nil, NewServiceError(CodeInvalidRequest, fmt.Sprintf("bins must be at most %d", MaxHistogramBins))
	}
	field, series, err := s.series(req)
	if err != nil {
		return nil, err
	}
	if series.Len() == 0 {
		return nil, NewServiceError(CodeNoData, "no data buffered for "+req.SimulationID)
	}

	hist, err := stats.Histogram(series.Values(), bins)
	if err != nil {
		return nil, NewServiceError(CodeAnalysisFailed, err.Error())
	}
	return &HistogramResponse{
		SimulationID: req.SimulationID,
		Field:        string(field),
		Bins:         hist,
	}, nil
}

// BoxPlot groups one field by generation decade, or plots it as a single
// group when groupBy is "none"
func (s *AnalysisService) BoxPlot(req SeriesRequest, groupBy string) (*BoxPlotResponse, error) {
	if groupBy == "" {
		groupBy = "decade"
	}
	if groupBy != "decade" && groupBy != "none" {
		return nil, NewServiceError(CodeInvalidRequest, "group_by must be decade or none")
	}
	field, series, err := s.series(req)
	if err != nil {
		return nil, err
	}

	var groups []stats.BoxPlot
	if groupBy == "none" {
		groups = []stats.BoxPlot{stats.BoxPlotOf(string(field), series.Values())}
	} else {
		items := make([]stats.GroupedValue, len(series))
		for i, p := range series {
			items[i] = stats.GroupedValue{Group: stats.DecadeGroup(p.Generation), Value: p.Value}
		}
		groups = stats.BoxPlots(items)
	}

	return &BoxPlotResponse{
		SimulationID: req.SimulationID,
		Field:        string(field),
		GroupBy:      groupBy,
		Groups:       groups,
	}, nil
}

// Compare relates two caller-supplied series
func (s *AnalysisService) Compare(req *models.CompareRequest) (*stats.Comparison, error) {
	if err := req.Validate(); err != nil {
		return nil, NewServiceError(CodeInvalidRequest, err.Error())
	}
	c := stats.Compare(req.Series1, req.Series2)
	return &c, nil
}

// Anomalies runs a registered detector over one field. An empty algorithm
// selects "auto"; threshold <= 0 uses the configured default.
func (s *AnalysisService) Anomalies(req SeriesRequest, algorithm string, threshold float64) (*AnomalyResponse, error) {
	if algorithm == "" {
		algorithm = "auto"
	}
	field, series, err := s.series(req)
	if err != nil {
		return nil, err
	}

	cfg := anomaly.DefaultConfig()
	if threshold > 0 {
		cfg.Threshold = threshold
	} else if s.cfg.AnomalyThreshold > 0 {
		cfg.Threshold = s.cfg.AnomalyThreshold
	}

	found, err := anomaly.DetectSeries(algorithm, string(field), series, cfg)
	if err != nil {
		return nil, NewServiceErrorWithDetails(CodeInvalidRequest, err.Error(), map[string]interface{}{
			"algorithms": anomaly.ListDetectors(),
		})
	}

	s.logger.Debug("Anomaly detection completed",
		"simulation_id", req.SimulationID,
		"field", field,
		"algorithm", algorithm,
		"anomalies", len(found))

	return &AnomalyResponse{
		SimulationID: req.SimulationID,
		Field:        string(field),
		Algorithm:    algorithm,
		Anomalies:    found,
	}, nil
}

// Forecast projects one field forward. Frequencies are clamped to [0, 1]
// and counts to be non-negative.
func (s *AnalysisService) Forecast(req SeriesRequest, algorithm string, horizon int) (*ForecastResponse, error) {
	if algorithm == "" {
		algorithm = "linear"
	}
	if horizon > MaxForecastSteps {
		return nil, NewServiceError(CodeInvalidRequest, fmt.Sprintf("horizon must be at most %d", MaxForecastSteps))
	}
	forecaster, err := forecast.GetForecaster(algorithm)
	if err != nil {
		return nil, NewServiceErrorWithDetails(CodeInvalidRequest, err.Error(), map[string]interface{}{
			"algorithms": forecast.ListForecasters(),
		})
	}
	field, series, err := s.series(req)
	if err != nil {
		return nil, err
	}

	cfg := forecast.DefaultForecastConfig()
	if horizon > 0 {
		cfg.Horizon = horizon
	}
	switch field {
	case analytics.FieldResistanceFrequency, analytics.FieldMutationRate:
		cfg.Lower, cfg.Upper = 0, 1
	case analytics.FieldAntibioticConcentration, analytics.FieldAverageFitness:
		// unbounded
	default:
		cfg.Lower, cfg.Upper = 0, math.Inf(1)
	}

	if len(series) < cfg.MinDataPoints {
		return nil, NewServiceErrorWithDetails(CodeNoData, "not enough points to forecast", map[string]interface{}{
			"points":   len(series),
			"required": cfg.MinDataPoints,
		})
	}

	result, err := forecaster.Forecast(series, cfg)
	if err != nil {
		return nil, NewServiceError(CodeAnalysisFailed, err.Error())
	}
	return &ForecastResponse{
		SimulationID: req.SimulationID,
		Field:        string(field),
		Algorithm:    algorithm,
		Result:       result,
	}, nil
}
