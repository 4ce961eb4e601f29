package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.UpdatesAccepted("http", 3)
	m.UpdatesAccepted("http", 0)
	m.UpdatesDropped("bus", 2)
	m.ValidationError("ws")
	m.SessionOp("save", nil)
	m.SessionOp("save", errors.New("disk full"))
	m.WSReconnect("sim-1")
	m.WSConnected(1)
	m.MemoryTrim(40)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.updatesAccepted.WithLabelValues("http")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.updatesDropped.WithLabelValues("bus")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validationErrors.WithLabelValues("ws")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionOps.WithLabelValues("save", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.wsConnections))
	assert.Equal(t, 40.0, testutil.ToFloat64(m.trimmedPoints))
}

func TestMetrics_ForgetSimulation(t *testing.T) {
	m := New()
	m.SetBufferPoints("sim-1", 10)
	m.SetBufferPoints("sim-2", 5)
	assert.Equal(t, 2, testutil.CollectAndCount(m.bufferPoints))

	m.ForgetSimulation("sim-1")
	assert.Equal(t, 1, testutil.CollectAndCount(m.bufferPoints))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.UpdatesAccepted("http", 1)
	m.SessionOp("load", nil)
	m.MemoryTrim(1)
	m.SetHeapInUse(1)
	m.ForgetSimulation("x")
}

func TestMetrics_HandlerAndMiddleware(t *testing.T) {
	m := New()
	app := fiber.New()
	app.Use(m.Middleware())
	app.Get("/metrics", m.Handler())
	app.Get("/v1/simulations/:id", func(c *fiber.Ctx) error {
		return c.SendString(c.Params("id"))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/simulations/sim-1", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/v1/simulations/:id", "200")))

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(body), "resistscope_http_requests_total"), "exposition should include request counter")
	assert.True(t, strings.Contains(string(body), "go_goroutines"), "exposition should include Go collector")
}
