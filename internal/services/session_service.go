package services

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/bactolab/resistscope/internal/blob"
	"github.com/bactolab/resistscope/internal/logging"
	"github.com/bactolab/resistscope/internal/metrics"
	"github.com/bactolab/resistscope/internal/models"
	"github.com/bactolab/resistscope/internal/session"
	"github.com/bactolab/resistscope/internal/stream"
)

// Prefix for exported objects in the blob sink
const exportPrefix = "sessions"

// SessionService saves simulation buffers as sessions and moves sessions
// between the store, export files and buffers
type SessionService struct {
	logger   *logging.Logger
	store    *session.Store
	registry *stream.Registry
	sink     blob.Store
	metrics  *metrics.Metrics
}

// NewSessionService creates a new SessionService. sink may be nil, which
// disables server-side export.
func NewSessionService(logger *logging.Logger, store *session.Store, registry *stream.Registry, sink blob.Store, m *metrics.Metrics) *SessionService {
	return &SessionService{
		logger:   logger,
		store:    store,
		registry: registry,
		sink:     sink,
		metrics:  m,
	}
}

func (s *SessionService) sessionError(op, id string, err error) error {
	if errors.Is(err, session.ErrNotFound) {
		return NewServiceError(CodeNotFound, "session not found: "+id)
	}
	if errors.Is(err, session.ErrInvalidID) {
		return NewServiceError(CodeInvalidRequest, err.Error())
	}
	s.logger.Error("Session operation failed", "op", op, "session_id", id, "error", err)
	return storageError(op+" session", err)
}

// Save captures the current buffer of a simulation
func (s *SessionService) Save(ctx context.Context, req *models.SaveSessionRequest) (*models.Session, error) {
	if err := req.Validate(); err != nil {
		return nil, NewServiceError(CodeInvalidRequest, err.Error())
	}
	if req.Parameters != nil {
		if err := req.Parameters.Validate(); err != nil {
			return nil, validationError(err)
		}
	}

	acc, ok := s.registry.Get(req.SimulationID)
	if !ok {
		return nil, NewServiceError(CodeNotFound, "simulation not found: "+req.SimulationID)
	}
	acc.Flush()
	data := acc.Data()
	if len(data) == 0 {
		return nil, NewServiceError(CodeNoData, "no data buffered for "+req.SimulationID)
	}

	meta := Metadata(data, acc.Snapshot().Status, req.Parameters, time.Now())
	sess, err := s.store.SaveE(ctx, req.SimulationID, meta, data)
	s.metrics.SessionOp("save", err)
	if err != nil {
		return nil, s.sessionError("save", "", err)
	}

	s.logger.Info("Session saved",
		"session_id", sess.ID,
		"simulation_id", req.SimulationID,
		"points", len(data))
	return sess, nil
}

// Metadata describes a buffer: totalGenerations is the highest generation
// plus one, startTime the first point's timestamp (or now), and endTime is
// set only for finished runs.
func Metadata(data []models.DataPoint, status models.SimulationStatus, params *models.SimulationParameters, now time.Time) models.SessionMetadata {
	meta := models.SessionMetadata{
		StartTime:  now.UTC().Format(time.RFC3339Nano),
		Parameters: params,
	}
	if len(data) == 0 {
		return meta
	}

	first, last := data[0], data[len(data)-1]
	meta.TotalGenerations = last.Generation + 1
	if first.Timestamp != "" {
		meta.StartTime = first.Timestamp
	}
	if status.IsTerminal() {
		meta.EndTime = last.Timestamp
		if meta.EndTime == "" {
			meta.EndTime = now.UTC().Format(time.RFC3339Nano)
		}
	}
	return meta
}

// List returns the session index, newest first
func (s *SessionService) List(ctx context.Context) ([]models.SessionSummary, error) {
	index, err := s.store.ListE(ctx)
	s.metrics.SessionOp("list", err)
	if err != nil {
		return nil, s.sessionError("list", "", err)
	}
	return index, nil
}

// Get loads one session
func (s *SessionService) Get(ctx context.Context, id string) (*models.Session, error) {
	sess, err := s.store.LoadE(ctx, id)
	s.metrics.SessionOp("load", ignoreNotFound(err))
	if err != nil {
		return nil, s.sessionError("load", id, err)
	}
	return sess, nil
}

// Latest loads the most recently saved session
func (s *SessionService) Latest(ctx context.Context) (*models.Session, error) {
	sess, err := s.store.LoadLatestE(ctx)
	s.metrics.SessionOp("load", ignoreNotFound(err))
	if errors.Is(err, session.ErrNotFound) {
		return nil, NewServiceError(CodeNotFound, "no sessions saved")
	}
	if err != nil {
		return nil, s.sessionError("load", "latest", err)
	}
	return sess, nil
}

// Delete removes one session
func (s *SessionService) Delete(ctx context.Context, id string) error {
	err := s.store.DeleteE(ctx, id)
	s.metrics.SessionOp("delete", ignoreNotFound(err))
	if err != nil {
		return s.sessionError("delete", id, err)
	}
	return nil
}

// Clear removes every session, the index and the parameter draft
func (s *SessionService) Clear(ctx context.Context) (int, error) {
	n, err := s.store.ClearE(ctx)
	s.metrics.SessionOp("clear", err)
	if err != nil {
		return 0, s.sessionError("clear", "", err)
	}
	return n, nil
}

// Export loads a session and returns its download file name. The envelope
// is written to w.
func (s *SessionService) Export(ctx context.Context, id string, w io.Writer) (string, error) {
	sess, err := s.store.LoadE(ctx, id)
	if err != nil {
		return "", s.sessionError("export", id, err)
	}
	if err := session.WriteEnvelope(w, session.Envelope(sess, time.Now())); err != nil {
		return "", storageError("export session", err)
	}
	s.metrics.SessionOp("export", nil)
	return session.ExportFileName(sess), nil
}

// ExportToSink writes a session into the configured blob store. An empty key
// uses the generated file name under the sessions prefix.
func (s *SessionService) ExportToSink(ctx context.Context, id string, req *models.ExportRequest) (*models.ExportResponse, error) {
	if s.sink == nil {
		return nil, NewServiceError(CodeUnavailable, "export sink is not configured")
	}

	prefix := exportPrefix
	if req != nil && req.Key != "" {
		prefix = req.Key
	}
	info, err := s.store.ExportToBlob(ctx, id, s.sink, prefix)
	s.metrics.SessionOp("export", ignoreNotFound(err))
	if err != nil {
		return nil, s.sessionError("export", id, err)
	}
	return &models.ExportResponse{
		Key:    info.Key,
		Driver: string(s.sink.Driver()),
		URL:    info.URL,
	}, nil
}

// Import validates an uploaded session file and stores it as a new session
func (s *SessionService) Import(ctx context.Context, r io.Reader) (*models.Session, error) {
	env, err := session.ReadEnvelope(r)
	if err != nil {
		s.metrics.SessionOp("import", err)
		return nil, NewServiceError(CodeInvalidImport, err.Error())
	}

	sess, err := s.store.SaveE(ctx, env.SimulationID, env.Metadata, env.Data)
	s.metrics.SessionOp("import", err)
	if err != nil {
		return nil, s.sessionError("import", "", err)
	}

	s.logger.Info("Session imported",
		"session_id", sess.ID,
		"version", env.Version,
		"points", len(env.Data))
	return sess, nil
}

// Restore loads a session into a simulation buffer. The target defaults to
// the session's own simulation id. The buffer is left idle.
func (s *SessionService) Restore(ctx context.Context, id string, req *models.RestoreRequest) (*models.SimulationInfo, error) {
	sess, err := s.store.LoadE(ctx, id)
	if err != nil {
		return nil, s.sessionError("restore", id, err)
	}
	if len(sess.Data) == 0 {
		return nil, NewServiceError(CodeNoData, "session has no data points: "+id)
	}

	target := sess.SimulationID
	if req != nil && req.SimulationID != "" {
		target = req.SimulationID
	}
	if target == "" {
		return nil, NewServiceError(CodeInvalidRequest, "session has no simulation id; simulationId is required")
	}
	if err := ValidateSimulationID(target); err != nil {
		return nil, err
	}

	acc := s.registry.GetOrCreate(target)
	acc.Restore(sess.Data)
	s.metrics.SetBufferPoints(target, acc.Len())

	s.logger.Info("Session restored",
		"session_id", id,
		"simulation_id", target,
		"points", acc.Len())

	info := simulationInfo(acc.Snapshot())
	return &info, nil
}

func ignoreNotFound(err error) error {
	if errors.Is(err, session.ErrNotFound) {
		return nil
	}
	return err
}
