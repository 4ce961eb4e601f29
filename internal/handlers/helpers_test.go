package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/bactolab/resistscope/internal/blob"
	"github.com/bactolab/resistscope/internal/config"
	"github.com/bactolab/resistscope/internal/kv"
	"github.com/bactolab/resistscope/internal/logging"
	"github.com/bactolab/resistscope/internal/memwatch"
	"github.com/bactolab/resistscope/internal/metrics"
	"github.com/bactolab/resistscope/internal/services"
	"github.com/bactolab/resistscope/internal/session"
	"github.com/bactolab/resistscope/internal/stream"
)

type testServer struct {
	app     *fiber.App
	handler *Handler
	svc     Services
	sink    *blob.MemoryStore
}

// newTestServer wires real services over in-memory backends and mounts the
// handlers on the same paths the router uses
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := logging.NewNop()
	m := metrics.New()

	registry := stream.NewRegistry(stream.Config{MaxDataPoints: 200, FlushSize: 1, AutoReset: true})
	t.Cleanup(registry.Close)
	store := session.NewStore(kv.NewMemoryStore(), session.Config{StorageKey: "handlers", MaxSessions: 5})
	sink := blob.NewMemoryStore()

	ingest := services.NewIngestService(logger, registry, m)
	streams := services.NewStreamService(logger, registry, time.Minute)
	t.Cleanup(streams.Close)
	conns := services.NewConnectionManager(logger, config.SimulationConfig{
		WSHost:         "127.0.0.1",
		WSPort:         1,
		ReconnectDelay: 10 * time.Millisecond,
		MaxReconnects:  1,
	}, ingest, m)
	t.Cleanup(conns.Close)

	svc := Services{
		Ingest: ingest,
		Analysis: services.NewAnalysisService(logger, registry, config.AnalysisConfig{
			HistogramBins:    10,
			MaxChartPoints:   50,
			AnomalyThreshold: 3,
		}),
		Sessions:    services.NewSessionService(logger, store, registry, sink, m),
		Streams:     streams,
		Parameters:  services.NewParameterService(logger, store),
		Connections: conns,
		AutoSaver:   services.NewAutoSaver(logger, store, registry, time.Minute),
		Memory:      memwatch.New(config.MemoryConfig{PollInterval: time.Minute}, m),
	}
	h := New(logger, svc)

	app := fiber.New()
	app.Get("/health", h.Health)

	v1 := app.Group("/v1")
	v1.Get("/simulations", h.ListSimulations)
	v1.Get("/simulations/:id", h.GetSimulation)
	v1.Delete("/simulations/:id", h.ResetSimulation)
	v1.Post("/simulations/:id/updates", h.PushUpdates)
	v1.Post("/simulations/:id/status", h.SetStatus)
	v1.Get("/simulations/:id/data", h.GetChartData)
	v1.Get("/simulations/:id/stream", h.StreamSimulation)
	v1.Post("/simulations/:id/connect", h.Connect)
	v1.Delete("/simulations/:id/connect", h.Disconnect)
	v1.Get("/simulations/:id/stats/summary", h.Summary)
	v1.Get("/simulations/:id/stats/histogram", h.Histogram)
	v1.Get("/simulations/:id/stats/boxplot", h.BoxPlot)
	v1.Get("/simulations/:id/stats/anomalies", h.Anomalies)
	v1.Get("/simulations/:id/stats/forecast", h.Forecast)
	v1.Post("/stats/compare", h.Compare)

	v1.Post("/sessions", h.SaveSession)
	v1.Get("/sessions", h.ListSessions)
	v1.Delete("/sessions", h.ClearSessions)
	v1.Post("/sessions/import", h.ImportSession)
	v1.Get("/sessions/latest", h.LatestSession)
	v1.Get("/sessions/:sid", h.GetSession)
	v1.Delete("/sessions/:sid", h.DeleteSession)
	v1.Get("/sessions/:sid/export", h.ExportSession)
	v1.Post("/sessions/:sid/export", h.ExportSessionToSink)
	v1.Post("/sessions/:sid/restore", h.RestoreSession)

	v1.Get("/parameters/defaults", h.GetDefaultParameters)
	v1.Post("/parameters/validate", h.ValidateParameters)
	v1.Get("/parameters/draft", h.GetDraft)
	v1.Put("/parameters/draft", h.SaveDraft)
	v1.Delete("/parameters/draft", h.DeleteDraft)

	admin := app.Group("/admin")
	admin.Post("/autosave", h.TriggerAutoSave)
	admin.Get("/memory", h.MemoryStats)

	app.Use(h.NotFound)

	return &testServer{app: app, handler: h, svc: svc, sink: sink}
}

// do performs a request; a non-nil body is sent as JSON
func (s *testServer) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	case []byte:
		r = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, r)
	if r != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.app.Test(req, 5000)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func record(gen, population, resistant int, status string) string {
	s := fmt.Sprintf(`{"generation":%d,"population_size":%d,"resistant_count":%d,"antibiotic_concentration":2`, gen, population, resistant)
	if status != "" {
		s += fmt.Sprintf(`,"status":%q`, status)
	}
	return s + "}"
}

// runSimulation pushes n running generations for id through the HTTP API
func (s *testServer) runSimulation(t *testing.T, id string, n int) {
	t.Helper()
	records := make([]string, n)
	for i := range records {
		status := ""
		if i == 0 {
			status = "running"
		}
		records[i] = record(i, 1000+10*i, 10*i, status)
	}
	resp := s.do(t, http.MethodPost, "/v1/simulations/"+id+"/updates", "["+strings.Join(records, ",")+"]")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func nopLogger() *logging.Logger { return logging.NewNop() }

func newRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}
