// Package metrics holds the Prometheus collectors for ingestion, sessions,
// the WebSocket client, memory pressure and HTTP traffic.
//
// Every recording method is safe on a nil *Metrics so components can run
// without instrumentation in tests.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "resistscope"

// Metrics owns a private registry and the dashboard collectors
type Metrics struct {
	registry *prometheus.Registry

	updatesAccepted  *prometheus.CounterVec
	updatesDropped   *prometheus.CounterVec
	validationErrors *prometheus.CounterVec
	bufferPoints     *prometheus.GaugeVec
	sessionOps       *prometheus.CounterVec
	wsReconnects     *prometheus.CounterVec
	wsConnections    prometheus.Gauge
	memoryTrims      prometheus.Counter
	trimmedPoints    prometheus.Counter
	heapInUse        prometheus.Gauge
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates the collectors and registers them, with the Go and process
// collectors, on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		updatesAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_accepted_total",
			Help:      "Simulation updates accepted into a buffer, by ingestion source.",
		}, []string{"source"}),
		updatesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_dropped_total",
			Help:      "Simulation updates rejected by the accumulator, by ingestion source.",
		}, []string{"source"}),
		validationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_errors_total",
			Help:      "Payloads that failed schema validation, by ingestion source.",
		}, []string{"source"}),
		bufferPoints: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffer_points",
			Help:      "Visible data points per simulation buffer.",
		}, []string{"simulation_id"}),
		sessionOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_operations_total",
			Help:      "Session store operations by kind and result.",
		}, []string{"op", "result"}),
		wsReconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_reconnects_total",
			Help:      "WebSocket reconnect attempts per simulation.",
		}, []string{"simulation_id"}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Active simulation WebSocket connections.",
		}),
		memoryTrims: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_trims_total",
			Help:      "Times the heap watcher ran cleanup callbacks.",
		}),
		trimmedPoints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_trimmed_points_total",
			Help:      "Data points dropped by memory cleanup.",
		}),
		heapInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "heap_inuse_bytes",
			Help:      "Heap in use at the last memory poll.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.updatesAccepted,
		m.updatesDropped,
		m.validationErrors,
		m.bufferPoints,
		m.sessionOps,
		m.wsReconnects,
		m.wsConnections,
		m.memoryTrims,
		m.trimmedPoints,
		m.heapInUse,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry exposes the underlying registry, e.g. for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Middleware records request counts and latency by matched route
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m == nil {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()

		route := c.Route().Path
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		m.httpRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

// UpdatesAccepted adds n accepted updates for source
func (m *Metrics) UpdatesAccepted(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.updatesAccepted.WithLabelValues(source).Add(float64(n))
}

// UpdatesDropped adds n rejected updates for source
func (m *Metrics) UpdatesDropped(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.updatesDropped.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) ValidationError(source string) {
	if m == nil {
		return
	}
	m.validationErrors.WithLabelValues(source).Inc()
}

// SetBufferPoints records the visible buffer size of a simulation
func (m *Metrics) SetBufferPoints(simulationID string, n int) {
	if m == nil {
		return
	}
	m.bufferPoints.WithLabelValues(simulationID).Set(float64(n))
}

// ForgetSimulation drops per-simulation series
func (m *Metrics) ForgetSimulation(simulationID string) {
	if m == nil {
		return
	}
	m.bufferPoints.DeleteLabelValues(simulationID)
	m.wsReconnects.DeleteLabelValues(simulationID)
}

// SessionOp counts a session store operation
func (m *Metrics) SessionOp(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.sessionOps.WithLabelValues(op, result).Inc()
}

func (m *Metrics) WSReconnect(simulationID string) {
	if m == nil {
		return
	}
	m.wsReconnects.WithLabelValues(simulationID).Inc()
}

// WSConnected moves the active connection gauge by delta
func (m *Metrics) WSConnected(delta int) {
	if m == nil {
		return
	}
	m.wsConnections.Add(float64(delta))
}

// MemoryTrim records a cleanup run and the points it dropped
func (m *Metrics) MemoryTrim(dropped int) {
	if m == nil {
		return
	}
	m.memoryTrims.Inc()
	m.trimmedPoints.Add(float64(dropped))
}

func (m *Metrics) SetHeapInUse(bytes uint64) {
	if m == nil {
		return
	}
	m.heapInUse.Set(float64(bytes))
}
