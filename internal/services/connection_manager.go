package services

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/bactolab/resistscope/internal/config"
	"github.com/bactolab/resistscope/internal/logging"
	"github.com/bactolab/resistscope/internal/metrics"
	"github.com/bactolab/resistscope/internal/models"
	"github.com/bactolab/resistscope/internal/simclient"
)

// ConnectOptions tunes one Connect call
type ConnectOptions struct {
	// Backfill pulls the engine's updates over REST before streaming
	Backfill bool
}

type connection struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// ConnectionManager owns the WebSocket feeds pulled from the simulation
// engine, one per simulation id
type ConnectionManager struct {
	logger  *logging.Logger
	ws      *simclient.WSClient
	rest    *simclient.RESTClient
	ingest  *IngestService
	metrics *metrics.Metrics

	mu     sync.Mutex
	conns  map[string]*connection
	closed bool
}

// NewConnectionManager builds the WebSocket client and, when a base URL is
// configured, the REST client used for backfill
func NewConnectionManager(logger *logging.Logger, cfg config.SimulationConfig, ingest *IngestService, m *metrics.Metrics) *ConnectionManager {
	ws := simclient.NewWSClient(cfg.WebSocketURL, simclient.WSConfig{
		ReconnectDelay: cfg.ReconnectDelay,
		MaxReconnects:  cfg.MaxReconnects,
		OnReconnect: func(simulationID string, _ int) {
			m.WSReconnect(simulationID)
		},
	})
	var rest *simclient.RESTClient
	if cfg.BaseURL != "" {
		rest = simclient.NewRESTClient(cfg.BaseURL, cfg.RequestTimeout)
	}
	return newConnectionManager(logger, ws, rest, ingest, m)
}

func newConnectionManager(logger *logging.Logger, ws *simclient.WSClient, rest *simclient.RESTClient, ingest *IngestService, m *metrics.Metrics) *ConnectionManager {
	return &ConnectionManager{
		logger:  logger,
		ws:      ws,
		rest:    rest,
		ingest:  ingest,
		metrics: m,
		conns:   make(map[string]*connection),
	}
}

// Connect starts streaming a simulation in the background. The feed stops
// on Disconnect, Close, a normal server close or exhausted reconnects.
func (m *ConnectionManager) Connect(simulationID string, opts ConnectOptions) error {
	if err := ValidateSimulationID(simulationID); err != nil {
		return err
	}
	if opts.Backfill && m.rest == nil {
		return NewServiceError(CodeUnavailable, "backfill requires simulation.base_url")
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return NewServiceError(CodeUnavailable, "connection manager is closed")
	}
	if _, ok := m.conns[simulationID]; ok {
		m.mu.Unlock()
		return NewServiceError(CodeConflict, "already connected to "+simulationID)
	}
	ctx, cancel := context.WithCancel(context.Background())
	conn := &connection{cancel: cancel, done: make(chan struct{})}
	m.conns[simulationID] = conn
	m.mu.Unlock()

	m.metrics.WSConnected(1)
	go m.run(ctx, simulationID, conn, opts)
	return nil
}

func (m *ConnectionManager) run(ctx context.Context, simulationID string, conn *connection, opts ConnectOptions) {
	defer func() {
		m.mu.Lock()
		if m.conns[simulationID] == conn {
			delete(m.conns, simulationID)
		}
		m.mu.Unlock()
		m.metrics.WSConnected(-1)
		close(conn.done)
	}()

	if opts.Backfill {
		if err := m.Backfill(simulationID); err != nil {
			m.logger.Warn("Backfill failed, streaming live updates only", "simulation_id", simulationID, "error", err)
		}
	}

	err := m.ws.Run(ctx, simulationID, m.ingest.HandleWSMessage)
	switch {
	case errors.Is(err, simclient.ErrReconnectsExhausted):
		m.logger.Error("Simulation feed lost", "simulation_id", simulationID, "error", err)
	case err != nil:
		m.logger.Error("Simulation feed failed", "simulation_id", simulationID, "error", err)
	default:
		m.logger.Info("Simulation feed ended", "simulation_id", simulationID)
	}
}

// Backfill fetches the engine's status and updates over REST and applies
// them. Updates of a run that has not started are ignored; those of a
// finished run are collected and then the final status is applied.
func (m *ConnectionManager) Backfill(simulationID string) error {
	if m.rest == nil {
		return NewServiceError(CodeUnavailable, "backfill requires simulation.base_url")
	}

	status, err := m.rest.FetchStatus(simulationID)
	if err != nil {
		return NewServiceError(CodeUpstreamFailure, err.Error())
	}
	if status == models.StatusIdle {
		return nil
	}
	updates, err := m.rest.FetchUpdates(simulationID)
	if err != nil {
		return NewServiceError(CodeUpstreamFailure, err.Error())
	}

	if _, err := m.ingest.SetStatus(simulationID, models.StatusRunning); err != nil {
		return err
	}
	resp := m.ingest.Apply(SourceREST, simulationID, updates)
	if status != models.StatusRunning {
		if _, err := m.ingest.SetStatus(simulationID, status); err != nil {
			return err
		}
	}

	m.logger.Info("Backfilled simulation",
		"simulation_id", simulationID,
		"status", status,
		"accepted", resp.Accepted,
		"dropped", resp.Dropped)
	return nil
}

// Disconnect stops the feed of a simulation and waits for it to finish
func (m *ConnectionManager) Disconnect(simulationID string) error {
	m.mu.Lock()
	conn, ok := m.conns[simulationID]
	m.mu.Unlock()
	if !ok {
		return NewServiceError(CodeNotFound, "not connected to "+simulationID)
	}

	conn.cancel()
	<-conn.done
	m.logger.Info("Disconnected simulation feed", "simulation_id", simulationID)
	return nil
}

// IsConnected reports whether a feed is running for the simulation
func (m *ConnectionManager) IsConnected(simulationID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.conns[simulationID]
	return ok
}

// Connected lists the simulations with a running feed, sorted
func (m *ConnectionManager) Connected() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.conns))
	for id := range m.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close stops every feed and rejects further connects
func (m *ConnectionManager) Close() {
	m.mu.Lock()
	m.closed = true
	conns := make([]*connection, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	for _, c := range conns {
		c.cancel()
	}
	for _, c := range conns {
		<-c.done
	}
}
