package handlers

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bactolab/resistscope/internal/models"
	"github.com/bactolab/resistscope/internal/services"
)

func TestHandler_Summary(t *testing.T) {
	s := newTestServer(t)
	s.runSimulation(t, "sim-1", 20)

	resp := s.do(t, http.MethodGet, "/v1/simulations/sim-1/stats/summary?field=totalPopulation", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out services.SummaryResponse
	decode(t, resp, &out)
	assert.Equal(t, "totalPopulation", out.Field)
	assert.Equal(t, 20, out.Summary.Count)
	assert.Equal(t, 1000.0, out.Summary.Min)
	assert.Equal(t, 1190.0, out.Summary.Max)

	resp = s.do(t, http.MethodGet, "/v1/simulations/sim-1/stats/summary?field=colour", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandler_SummaryWithoutData(t *testing.T) {
	s := newTestServer(t)

	// idle buffer, nothing collected
	resp := s.do(t, http.MethodPost, "/v1/simulations/sim-1/updates", record(0, 10, 1, ""))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/v1/simulations/sim-1/stats/histogram", nil)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	var errResp models.ErrorResponse
	decode(t, resp, &errResp)
	assert.Equal(t, services.CodeNoData, errResp.Error.Code)
}

func TestHandler_Histogram(t *testing.T) {
	s := newTestServer(t)
	s.runSimulation(t, "sim-1", 20)

	resp := s.do(t, http.MethodGet, "/v1/simulations/sim-1/stats/histogram?field=totalPopulation&bins=4", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out services.HistogramResponse
	decode(t, resp, &out)
	require.Len(t, out.Bins, 4)
	total := 0
	for _, b := range out.Bins {
		total += b.Count
	}
	assert.Equal(t, 20, total)
}

func TestHandler_BoxPlot(t *testing.T) {
	s := newTestServer(t)
	s.runSimulation(t, "sim-1", 25)

	resp := s.do(t, http.MethodGet, "/v1/simulations/sim-1/stats/boxplot?field=totalPopulation", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out services.BoxPlotResponse
	decode(t, resp, &out)
	assert.Equal(t, "decade", out.GroupBy)
	assert.Len(t, out.Groups, 3)

	resp = s.do(t, http.MethodGet, "/v1/simulations/sim-1/stats/boxplot?group_by=none", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decode(t, resp, &out)
	assert.Len(t, out.Groups, 1)
}

func TestHandler_Anomalies(t *testing.T) {
	s := newTestServer(t)
	s.runSimulation(t, "sim-1", 20)

	resp := s.do(t, http.MethodGet, "/v1/simulations/sim-1/stats/anomalies?algorithm=zscore&threshold=2.5", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var out services.AnomalyResponse
	decode(t, resp, &out)
	assert.Equal(t, "zscore", out.Algorithm)

	resp = s.do(t, http.MethodGet, "/v1/simulations/sim-1/stats/anomalies?algorithm=tarot", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandler_Forecast(t *testing.T) {
	s := newTestServer(t)
	s.runSimulation(t, "sim-1", 20)

	resp := s.do(t, http.MethodGet, "/v1/simulations/sim-1/stats/forecast?field=totalPopulation&horizon=5", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out services.ForecastResponse
	decode(t, resp, &out)
	require.NotNil(t, out.Result)
	require.Len(t, out.Result.Predictions, 5)
	assert.Equal(t, 20, out.Result.Predictions[0].Generation)
	assert.InDelta(t, 1200, out.Result.Predictions[0].Value, 1e-6)
}

func TestHandler_Compare(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, "/v1/stats/compare", models.CompareRequest{
		Series1: []float64{1, 2, 3, 4, 5},
		Series2: []float64{2, 4, 6, 8, 10},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out map[string]interface{}
	decode(t, resp, &out)
	assert.NotEmpty(t, out)

	resp = s.do(t, http.MethodPost, "/v1/stats/compare", `{"series1":[]}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
