// Package session persists named snapshots of buffered simulation data.
//
// Layout under the configured namespace:
//
//	<storageKey>-<sessionId>  one JSON session
//	<storageKey>-index        JSON array of summaries, newest first
//	<storageKey>-draft        the unsaved parameter form
//
// The plain methods (Save, Load, Delete, ...) log failures and return nil or
// false. The E-suffixed variants return the error for callers that report it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bactolab/resistscope/internal/kv"
	"github.com/bactolab/resistscope/internal/logging"
	"github.com/bactolab/resistscope/internal/models"
	"github.com/bactolab/resistscope/internal/utils"
)

var sessionLog = logging.Global().With("component", "session")

// ErrNotFound is returned when a session id is not in the index
var ErrNotFound = errors.New("session not found")

// ErrInvalidID is returned for ids that cannot name a session key
var ErrInvalidID = errors.New("invalid session id")

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidateID rejects ids outside the key charset and the names of the
// index and draft keys, which share the session namespace
func ValidateID(id string) error {
	if !idPattern.MatchString(id) || id == "index" || id == "draft" {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// Config controls the keyspace and retention
type Config struct {
	StorageKey  string
	MaxSessions int
	// OpTimeout bounds each store call when the caller's context has no deadline
	OpTimeout time.Duration
}

// Store saves, lists and loads sessions on top of a kv.Store
type Store struct {
	kv  kv.Store
	cfg Config

	// mu serialises index read-modify-write cycles
	mu sync.Mutex

	now   func() time.Time
	newID func() string
}

// NewStore wraps backend
func NewStore(backend kv.Store, cfg Config) *Store {
	if cfg.StorageKey == "" {
		cfg.StorageKey = "resistscope-sessions"
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = utils.DefaultMaxSessions
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = utils.StorageOpTimeout
	}
	return &Store{
		kv:    backend,
		cfg:   cfg,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// MaxSessions returns the retention cap
func (s *Store) MaxSessions() int {
	return s.cfg.MaxSessions
}

func (s *Store) sessionKey(id string) string { return s.cfg.StorageKey + "-" + id }
func (s *Store) indexKey() string            { return s.cfg.StorageKey + "-index" }
func (s *Store) draftKey() string            { return s.cfg.StorageKey + "-draft" }
func (s *Store) namespace() string           { return s.cfg.StorageKey + "-" }

func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.cfg.OpTimeout)
}

// SaveE stores data under a new session id and records it at the head of the
// index. When the index exceeds MaxSessions the oldest sessions are evicted.
func (s *Store) SaveE(ctx context.Context, simulationID string, meta models.SessionMetadata, data []models.DataPoint) (*models.Session, error) {
	if data == nil {
		data = []models.DataPoint{}
	}
	sess := &models.Session{
		ID:           s.newID(),
		Timestamp:    s.now().UTC().Format(time.RFC3339Nano),
		SimulationID: simulationID,
		Metadata:     meta,
		Data:         data,
	}
	if err := s.put(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Save is SaveE that logs and returns nil on failure
func (s *Store) Save(ctx context.Context, simulationID string, meta models.SessionMetadata, data []models.DataPoint) *models.Session {
	sess, err := s.SaveE(ctx, simulationID, meta, data)
	if err != nil {
		sessionLog.Error("Failed to save session", "simulation_id", simulationID, "error", err)
		return nil
	}
	return sess
}

func (s *Store) put(ctx context.Context, sess *models.Session) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.readIndex(ctx)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, s.sessionKey(sess.ID), payload); err != nil {
		return fmt.Errorf("failed to store session %s: %w", sess.ID, err)
	}

	index = append([]models.SessionSummary{sess.Summary()}, index...)
	var evicted []models.SessionSummary
	if len(index) > s.cfg.MaxSessions {
		evicted = index[s.cfg.MaxSessions:]
		index = index[:s.cfg.MaxSessions]
	}
	if err := s.writeIndex(ctx, index); err != nil {
		_ = s.kv.Delete(ctx, s.sessionKey(sess.ID))
		return err
	}

	for _, old := range evicted {
		if err := s.kv.Delete(ctx, s.sessionKey(old.ID)); err != nil {
			sessionLog.Warn("Failed to delete evicted session", "session_id", old.ID, "error", err)
			continue
		}
		sessionLog.Debug("Evicted session", "session_id", old.ID)
	}

	sessionLog.Info("Saved session",
		"session_id", sess.ID,
		"simulation_id", sess.SimulationID,
		"points", len(sess.Data),
		"sessions", len(index))
	return nil
}

func (s *Store) readIndex(ctx context.Context) ([]models.SessionSummary, error) {
	raw, err := s.kv.Get(ctx, s.indexKey())
	if errors.Is(err, kv.ErrNotFound) {
		return []models.SessionSummary{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session index: %w", err)
	}

	var index []models.SessionSummary
	if err := json.Unmarshal(raw, &index); err != nil {
		return nil, fmt.Errorf("corrupt session index: %w", err)
	}
	return index, nil
}

func (s *Store) writeIndex(ctx context.Context, index []models.SessionSummary) error {
	raw, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to marshal session index: %w", err)
	}
	if err := s.kv.Set(ctx, s.indexKey(), raw); err != nil {
		return fmt.Errorf("failed to write session index: %w", err)
	}
	return nil
}

// LoadE returns the session with id
func (s *Store) LoadE(ctx context.Context, id string) (*models.Session, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	raw, err := s.kv.Get(ctx, s.sessionKey(id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}

	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("corrupt session %s: %w", id, err)
	}
	return &sess, nil
}

// Load is LoadE that logs and returns nil on failure
func (s *Store) Load(ctx context.Context, id string) *models.Session {
	sess, err := s.LoadE(ctx, id)
	if err != nil {
		sessionLog.Error("Failed to load session", "session_id", id, "error", err)
		return nil
	}
	return sess
}

// LoadLatestE returns the most recently saved session
func (s *Store) LoadLatestE(ctx context.Context) (*models.Session, error) {
	index, err := s.ListE(ctx)
	if err != nil {
		return nil, err
	}
	if len(index) == 0 {
		return nil, ErrNotFound
	}
	return s.LoadE(ctx, index[0].ID)
}

// LoadLatest is LoadLatestE that logs and returns nil on failure
func (s *Store) LoadLatest(ctx context.Context) *models.Session {
	sess, err := s.LoadLatestE(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			sessionLog.Error("Failed to load latest session", "error", err)
		}
		return nil
	}
	return sess
}

// ListE returns the index, newest first
func (s *Store) ListE(ctx context.Context) ([]models.SessionSummary, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readIndex(ctx)
}

// List is ListE that logs and returns an empty list on failure
func (s *Store) List(ctx context.Context) []models.SessionSummary {
	index, err := s.ListE(ctx)
	if err != nil {
		sessionLog.Error("Failed to list sessions", "error", err)
		return []models.SessionSummary{}
	}
	return index
}

// DeleteE removes a session and its index entry
func (s *Store) DeleteE(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.readIndex(ctx)
	if err != nil {
		return err
	}

	pos := -1
	for i, entry := range index {
		if entry.ID == id {
			pos = i
			break
		}
	}
	if pos < 0 {
		return ErrNotFound
	}

	if err := s.kv.Delete(ctx, s.sessionKey(id)); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	index = append(index[:pos], index[pos+1:]...)
	if err := s.writeIndex(ctx, index); err != nil {
		return err
	}

	sessionLog.Info("Deleted session", "session_id", id)
	return nil
}

// Delete is DeleteE that logs and returns false on failure
func (s *Store) Delete(ctx context.Context, id string) bool {
	if err := s.DeleteE(ctx, id); err != nil {
		sessionLog.Error("Failed to delete session", "session_id", id, "error", err)
		return false
	}
	return true
}

// ClearE removes every key under the namespace, including the index and
// draft. Returns the number of removed keys.
func (s *Store) ClearE(ctx context.Context) (int, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.kv.DeletePrefix(ctx, s.namespace())
	if err != nil {
		return n, fmt.Errorf("failed to clear sessions: %w", err)
	}
	sessionLog.Info("Cleared session storage", "keys", n)
	return n, nil
}

// Clear is ClearE that logs and returns false on failure
func (s *Store) Clear(ctx context.Context) bool {
	if _, err := s.ClearE(ctx); err != nil {
		sessionLog.Error("Failed to clear sessions", "error", err)
		return false
	}
	return true
}

// SaveDraftE stores the parameter form so it can be recovered later
func (s *Store) SaveDraftE(ctx context.Context, params models.SimulationParameters) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}
	if err := s.kv.Set(ctx, s.draftKey(), raw); err != nil {
		return fmt.Errorf("failed to store draft: %w", err)
	}
	return nil
}

// LoadDraftE returns the stored draft or ErrNotFound
func (s *Store) LoadDraftE(ctx context.Context) (*models.SimulationParameters, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	raw, err := s.kv.Get(ctx, s.draftKey())
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read draft: %w", err)
	}

	var params models.SimulationParameters
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("corrupt draft: %w", err)
	}
	return &params, nil
}

// DeleteDraftE removes the stored draft
func (s *Store) DeleteDraftE(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.kv.Delete(ctx, s.draftKey()); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}
