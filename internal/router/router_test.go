package router

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bactolab/resistscope/internal/config"
	"github.com/bactolab/resistscope/internal/handlers"
	"github.com/bactolab/resistscope/internal/kv"
	"github.com/bactolab/resistscope/internal/logging"
	"github.com/bactolab/resistscope/internal/metrics"
	"github.com/bactolab/resistscope/internal/services"
	"github.com/bactolab/resistscope/internal/session"
	"github.com/bactolab/resistscope/internal/stream"
)

const testKey = "abcdefghijklmnopqrstuvwxyz0123456789"

func newTestApp(t *testing.T, auth bool) *fiber.App {
	t.Helper()
	logger := logging.NewNop()
	m := metrics.New()
	cfg := *config.DefaultConfig()
	cfg.Auth = config.AuthConfig{Enabled: auth, APIKeys: []string{testKey}}

	registry := stream.NewRegistry(stream.Config{MaxDataPoints: 100, FlushSize: 1})
	t.Cleanup(registry.Close)
	store := session.NewStore(kv.NewMemoryStore(), session.Config{StorageKey: "router", MaxSessions: 3})
	ingest := services.NewIngestService(logger, registry, m)
	streams := services.NewStreamService(logger, registry, time.Minute)
	t.Cleanup(streams.Close)
	conns := services.NewConnectionManager(logger, cfg.Simulation, ingest, m)
	t.Cleanup(conns.Close)

	return New(logger, handlers.Services{
		Ingest:      ingest,
		Analysis:    services.NewAnalysisService(logger, registry, cfg.Analysis),
		Sessions:    services.NewSessionService(logger, store, registry, nil, m),
		Streams:     streams,
		Parameters:  services.NewParameterService(logger, store),
		Connections: conns,
	}, m, cfg)
}

func TestRouter_PublicRoutes(t *testing.T) {
	app := newTestApp(t, true)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "resistscope_http_requests_total")
}

func TestRouter_AuthProtectsV1(t *testing.T) {
	app := newTestApp(t, true)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/simulations", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest("GET", "/v1/simulations", nil)
	req.Header.Set("X-API-Key", testKey)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("POST", "/admin/autosave", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_IngestAndChart(t *testing.T) {
	app := newTestApp(t, false)

	req := httptest.NewRequest("POST", "/v1/simulations/sim-1/updates", strings.NewReader(
		`[{"generation":0,"population_size":100,"resistant_count":5,"antibiotic_concentration":1,"status":"running"},
		  {"generation":1,"population_size":120,"resistant_count":9,"antibiotic_concentration":1}]`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/v1/simulations/sim-1/data?chart=growth", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `"netGrowth":20`)
}

func TestRouter_NotFoundAndExportSink(t *testing.T) {
	app := newTestApp(t, false)

	resp, err := app.Test(httptest.NewRequest("GET", "/v2/anything", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	// no blob sink configured
	resp, err = app.Test(httptest.NewRequest("POST", "/v1/sessions/abc/export", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
