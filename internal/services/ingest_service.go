package services

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/bactolab/resistscope/internal/logging"
	"github.com/bactolab/resistscope/internal/metrics"
	"github.com/bactolab/resistscope/internal/models"
	"github.com/bactolab/resistscope/internal/stream"
	"github.com/bactolab/resistscope/internal/subscriber"
	"github.com/bactolab/resistscope/internal/transform"
)

// Ingestion sources, used as metric labels
const (
	SourceHTTP = "http"
	SourceBus  = "bus"
	SourceWS   = "ws"
	SourceREST = "rest"
)

// Simulation ids double as bus subject tokens, so dots and wildcards are out
var simulationIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidateSimulationID rejects ids that cannot be used as keys and subjects
func ValidateSimulationID(id string) error {
	if !simulationIDPattern.MatchString(id) {
		return NewServiceError(CodeInvalidRequest, "simulation id must be 1-128 characters of letters, digits, '-' or '_'")
	}
	return nil
}

// RunObserver is told when a buffer starts or stops collecting.
// cleared is true when the buffer starts empty, i.e. a new run.
type RunObserver interface {
	RunStarted(simulationID string, cleared bool)
	RunEnded(simulationID string, status models.SimulationStatus)
}

// IngestService validates updates and feeds them into per-simulation buffers
type IngestService struct {
	logger   *logging.Logger
	registry *stream.Registry
	metrics  *metrics.Metrics
	observer RunObserver
}

// NewIngestService creates a new IngestService
func NewIngestService(logger *logging.Logger, registry *stream.Registry, m *metrics.Metrics) *IngestService {
	return &IngestService{
		logger:   logger,
		registry: registry,
		metrics:  m,
	}
}

// SetRunObserver registers o for run transitions. Call before ingesting.
func (s *IngestService) SetRunObserver(o RunObserver) {
	s.observer = o
}

// applyStatus drives the state machine and notifies the observer when the
// collecting state changes
func (s *IngestService) applyStatus(acc *stream.Accumulator, status models.SimulationStatus) bool {
	if !acc.SetStatus(status) {
		return false
	}
	if s.observer == nil {
		return true
	}
	if status == models.StatusRunning {
		snap := acc.Snapshot()
		s.observer.RunStarted(acc.ID(), snap.Points == 0 && !snap.HasGeneration)
	} else {
		s.observer.RunEnded(acc.ID(), status)
	}
	return true
}

// Ingest parses a payload (one record or an array) and applies it. Nothing
// is applied when any record fails validation.
func (s *IngestService) Ingest(ctx context.Context, source, simulationID string, payload []byte) (*models.IngestResponse, error) {
	if err := ValidateSimulationID(simulationID); err != nil {
		return nil, err
	}

	updates, err := models.ParseUpdates(payload)
	if err != nil {
		s.metrics.ValidationError(source)
		logging.WarnCtx(ctx, "Rejected update payload",
			"source", source,
			"simulation_id", simulationID,
			"error", err)
		return nil, validationError(err)
	}

	return s.Apply(source, simulationID, updates), nil
}

// Apply offers already-validated updates in order. A running status is
// applied before its point is offered; any other status after, so the
// point is flushed with the transition.
func (s *IngestService) Apply(source, simulationID string, updates []*models.SimulationUpdate) *models.IngestResponse {
	acc := s.registry.GetOrCreate(simulationID)

	resp := &models.IngestResponse{SimulationID: simulationID, Received: len(updates)}
	for _, u := range updates {
		if u.Status == models.StatusRunning {
			s.applyStatus(acc, u.Status)
		}
		if acc.Add(transform.ToDataPoint(u)) {
			resp.Accepted++
		} else {
			resp.Dropped++
		}
		if u.Status != "" && u.Status != models.StatusRunning {
			s.applyStatus(acc, u.Status)
		}
	}

	resp.State = string(acc.State())
	resp.BufferSize = acc.Len()

	s.metrics.UpdatesAccepted(source, resp.Accepted)
	s.metrics.UpdatesDropped(source, resp.Dropped)
	s.metrics.SetBufferPoints(simulationID, resp.BufferSize)

	s.logger.Debug("Applied updates",
		"source", source,
		"simulation_id", simulationID,
		"received", resp.Received,
		"accepted", resp.Accepted,
		"dropped", resp.Dropped,
		"state", resp.State)
	return resp
}

// SetStatus drives the state machine of a simulation buffer
func (s *IngestService) SetStatus(simulationID string, status models.SimulationStatus) (*models.SimulationInfo, error) {
	if err := ValidateSimulationID(simulationID); err != nil {
		return nil, err
	}
	if !status.IsValid() {
		return nil, NewServiceError(CodeInvalidRequest, "unknown status: "+string(status))
	}

	acc := s.registry.GetOrCreate(simulationID)
	if s.applyStatus(acc, status) {
		s.logger.Info("Simulation status changed", "simulation_id", simulationID, "status", status, "state", acc.State())
	}
	s.metrics.SetBufferPoints(simulationID, acc.Len())

	info := simulationInfo(acc.Snapshot())
	return &info, nil
}

// Reset drops the buffer of a simulation
func (s *IngestService) Reset(simulationID string) error {
	if !s.registry.Remove(simulationID) {
		return NewServiceError(CodeNotFound, "simulation not found: "+simulationID)
	}
	s.metrics.ForgetSimulation(simulationID)
	s.logger.Info("Simulation buffer removed", "simulation_id", simulationID)
	return nil
}

// List describes every buffered simulation, sorted by id
func (s *IngestService) List() []models.SimulationInfo {
	snaps := s.registry.Snapshots()
	out := make([]models.SimulationInfo, len(snaps))
	for i, snap := range snaps {
		out[i] = simulationInfo(snap)
	}
	return out
}

func simulationInfo(snap stream.Snapshot) models.SimulationInfo {
	return models.SimulationInfo{
		SimulationID:   snap.SimulationID,
		State:          string(snap.State),
		Status:         snap.Status,
		Points:         snap.Points,
		LastGeneration: snap.LastGeneration,
	}
}

// HandleBusMessage is the subscriber callback. Invalid payloads are logged
// and acknowledged; redelivering them would fail the same way.
func (s *IngestService) HandleBusMessage(ctx context.Context, msg subscriber.Message) error {
	if msg.SimulationID == "" {
		s.logger.Warn("Bus message without simulation id", "subject", msg.Subject)
		return nil
	}
	if _, err := s.Ingest(ctx, SourceBus, msg.SimulationID, msg.Data); err != nil {
		s.logger.Warn("Dropping invalid bus message", "subject", msg.Subject, "error", err)
	}
	return nil
}

// HandleWSMessage is the simulation WebSocket callback
func (s *IngestService) HandleWSMessage(ctx context.Context, msg *models.WSMessage) error {
	switch msg.Type {
	case models.WSSimulationUpdate:
		_, err := s.Ingest(ctx, SourceWS, msg.SimulationID, msg.Data)
		return err
	case models.WSSpatialUpdate:
		// Spatial frames carry grid snapshots; only those shaped like an
		// update contribute a point.
		updates, err := models.ParseUpdates(msg.Data)
		if err != nil {
			s.logger.Debug("Spatial frame without update fields", "simulation_id", msg.SimulationID)
			return nil
		}
		s.Apply(SourceWS, msg.SimulationID, updates)
		return nil
	case models.WSError:
		var data models.WSErrorData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			data.Message = string(msg.Data)
		}
		s.logger.Warn("Simulation engine reported an error",
			"simulation_id", msg.SimulationID,
			"message", data.Message,
			"code", data.Code)
		return nil
	default:
		s.logger.Debug("Ignoring WebSocket frame", "type", msg.Type, "simulation_id", msg.SimulationID)
		return nil
	}
}
