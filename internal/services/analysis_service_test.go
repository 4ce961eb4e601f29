package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bactolab/resistscope/internal/config"
	"github.com/bactolab/resistscope/internal/models"
)

func newAnalysisEnv(t *testing.T, generations int) (*testEnv, *AnalysisService) {
	t.Helper()
	env := newTestEnv(t)
	env.runSimulation(t, "sim-1", generations)
	svc := NewAnalysisService(env.logger, env.registry, config.AnalysisConfig{HistogramBins: 4, AnomalyThreshold: 3})
	return env, svc
}

func TestAnalysisService_Chart(t *testing.T) {
	_, svc := newAnalysisEnv(t, 25)

	resp, err := svc.Chart(ChartRequest{SimulationID: "sim-1", Chart: "population"})
	require.NoError(t, err)
	assert.Equal(t, models.ChartPopulation, resp.Chart)
	assert.Equal(t, 25, resp.Count)

	points, ok := resp.Points.([]models.PopulationPoint)
	require.True(t, ok)
	assert.InDelta(t, 0.01, points[1].GrowthRate, 1e-12)

	resp, err = svc.Chart(ChartRequest{SimulationID: "sim-1", Chart: "resistance", Downsampling: "lttb", MaxPoints: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, resp.Count)
	view := resp.Points.([]models.ResistancePoint)
	assert.Equal(t, 0, view[0].Generation, "lttb keeps the first point")
	assert.Equal(t, 24, view[len(view)-1].Generation, "lttb keeps the last point")
	for i := 1; i < len(view); i++ {
		assert.Greater(t, view[i].Generation, view[i-1].Generation)
	}

	resp, err = svc.Chart(ChartRequest{SimulationID: "sim-1", Chart: "growth", Downsampling: "none", MaxPoints: 5})
	require.NoError(t, err)
	assert.Equal(t, 25, resp.Count)
}

func TestAnalysisService_ChartErrors(t *testing.T) {
	_, svc := newAnalysisEnv(t, 5)

	_, err := svc.Chart(ChartRequest{SimulationID: "sim-1", Chart: "pie"})
	assert.Equal(t, CodeInvalidRequest, serviceCode(err))

	_, err = svc.Chart(ChartRequest{SimulationID: "sim-1", Chart: "population", Downsampling: "magic"})
	assert.Equal(t, CodeInvalidRequest, serviceCode(err))

	_, err = svc.Chart(ChartRequest{SimulationID: "nope", Chart: "population"})
	assert.Equal(t, CodeNotFound, serviceCode(err))
}

func TestAnalysisService_Summary(t *testing.T) {
	_, svc := newAnalysisEnv(t, 25)

	resp, err := svc.Summary(SeriesRequest{SimulationID: "sim-1", Field: "totalPopulation"})
	require.NoError(t, err)
	assert.Equal(t, 25, resp.Summary.Count)
	assert.InDelta(t, 112.0, resp.Summary.Mean, 1e-9)
	assert.Equal(t, 100.0, resp.Summary.Min)
	assert.Equal(t, 124.0, resp.Summary.Max)

	_, err = svc.Summary(SeriesRequest{SimulationID: "sim-1", Field: "colour"})
	assert.Equal(t, CodeInvalidRequest, serviceCode(err))
}

func TestAnalysisService_Histogram(t *testing.T) {
	env, svc := newAnalysisEnv(t, 20)

	resp, err := svc.Histogram(SeriesRequest{SimulationID: "sim-1", Field: "resistantCount"}, 0)
	require.NoError(t, err)
	require.Len(t, resp.Bins, 4, "configured default")
	total := 0
	for _, b := range resp.Bins {
		total += b.Count
	}
	assert.Equal(t, 20, total)
	assert.InDelta(t, 1.0, resp.Bins[3].CumulativeFrequency, 1e-9)

	_, err = svc.Histogram(SeriesRequest{SimulationID: "sim-1", Field: "resistantCount"}, MaxHistogramBins+1)
	assert.Equal(t, CodeInvalidRequest, serviceCode(err))

	env.registry.GetOrCreate("empty")
	_, err = svc.Histogram(SeriesRequest{SimulationID: "empty", Field: "resistantCount"}, 5)
	assert.Equal(t, CodeNoData, serviceCode(err))
}

func TestAnalysisService_BoxPlot(t *testing.T) {
	_, svc := newAnalysisEnv(t, 25)

	resp, err := svc.BoxPlot(SeriesRequest{SimulationID: "sim-1", Field: "resistantCount"}, "")
	require.NoError(t, err)
	assert.Equal(t, "decade", resp.GroupBy)
	require.Len(t, resp.Groups, 3)
	assert.Equal(t, "0-9", resp.Groups[0].Group)
	assert.Equal(t, "20-29", resp.Groups[2].Group)
	assert.Equal(t, 5, resp.Groups[2].Count)

	resp, err = svc.BoxPlot(SeriesRequest{SimulationID: "sim-1", Field: "resistantCount"}, "none")
	require.NoError(t, err)
	require.Len(t, resp.Groups, 1)
	assert.Equal(t, 25, resp.Groups[0].Count)

	_, err = svc.BoxPlot(SeriesRequest{SimulationID: "sim-1", Field: "resistantCount"}, "century")
	assert.Equal(t, CodeInvalidRequest, serviceCode(err))
}

func TestAnalysisService_Compare(t *testing.T) {
	_, svc := newAnalysisEnv(t, 1)

	c, err := svc.Compare(&models.CompareRequest{Series1: []float64{1, 2, 3, 4}, Series2: []float64{2, 4, 6, 8}})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, c.Correlation, 1e-9)
	assert.InDelta(t, 2.5, -c.MeanDifference, 1e-9)
	require.NotNil(t, c.TTest)

	_, err = svc.Compare(&models.CompareRequest{Series1: []float64{1}})
	assert.Equal(t, CodeInvalidRequest, serviceCode(err))
}

func TestAnalysisService_Anomalies(t *testing.T) {
	env := newTestEnv(t)
	records := []string{update(0, 100, 10, "running")}
	for gen := 1; gen < 30; gen++ {
		resistant := 10
		if gen == 20 {
			resistant = 95
		}
		records = append(records, update(gen, 100, resistant, ""))
	}
	_, err := env.ingest.Ingest(context.Background(), SourceHTTP, "sim-1", updates(records...))
	require.NoError(t, err)
	svc := NewAnalysisService(env.logger, env.registry, config.AnalysisConfig{})

	resp, err := svc.Anomalies(SeriesRequest{SimulationID: "sim-1", Field: "resistanceFrequency"}, "zscore", 0)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Anomalies)
	assert.Equal(t, 20, resp.Anomalies[0].Generation)
	assert.Equal(t, "resistanceFrequency", resp.Anomalies[0].Field)

	_, err = svc.Anomalies(SeriesRequest{SimulationID: "sim-1", Field: "resistanceFrequency"}, "astrology", 0)
	assert.Equal(t, CodeInvalidRequest, serviceCode(err))
}

func TestAnalysisService_Forecast(t *testing.T) {
	_, svc := newAnalysisEnv(t, 20)

	resp, err := svc.Forecast(SeriesRequest{SimulationID: "sim-1", Field: "totalPopulation"}, "linear", 3)
	require.NoError(t, err)
	preds := resp.Result.Predictions
	require.Len(t, preds, 3)
	assert.Equal(t, 20, preds[0].Generation)
	assert.InDelta(t, 120.0, preds[0].Value, 1e-6)

	resp, err = svc.Forecast(SeriesRequest{SimulationID: "sim-1", Field: "resistanceFrequency"}, "", 500)
	require.NoError(t, err)
	for _, p := range resp.Result.Predictions {
		assert.LessOrEqual(t, p.UpperBound, 1.0)
		assert.GreaterOrEqual(t, p.LowerBound, 0.0)
	}

	_, err = svc.Forecast(SeriesRequest{SimulationID: "sim-1", Field: "totalPopulation"}, "linear", MaxForecastSteps+1)
	assert.Equal(t, CodeInvalidRequest, serviceCode(err))

	_, err = svc.Forecast(SeriesRequest{SimulationID: "sim-1", Field: "totalPopulation"}, "tea-leaves", 3)
	assert.Equal(t, CodeInvalidRequest, serviceCode(err))

	resp, err = svc.Forecast(SeriesRequest{SimulationID: "sim-1", Field: "totalPopulation"}, "auto", 3)
	require.NoError(t, err)
	assert.Contains(t, resp.Result.ModelInfo.Algorithm, "auto-selected")
	assert.Len(t, resp.Result.Predictions, 3)
}

func TestAnalysisService_ForecastNeedsPoints(t *testing.T) {
	_, svc := newAnalysisEnv(t, 3)

	_, err := svc.Forecast(SeriesRequest{SimulationID: "sim-1", Field: "totalPopulation"}, "auto", 3)
	assert.Equal(t, CodeNoData, serviceCode(err))
}
