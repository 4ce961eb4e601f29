package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/bactolab/resistscope/internal/blob"
	"github.com/bactolab/resistscope/internal/models"
	"github.com/bactolab/resistscope/internal/utils"
)

// ExportContentType is attached to exported blobs
const ExportContentType = "application/json"

// Envelope builds the export file for sess
func Envelope(sess *models.Session, now time.Time) *models.SessionEnvelope {
	data := sess.Data
	if data == nil {
		data = []models.DataPoint{}
	}
	return &models.SessionEnvelope{
		Version:      utils.SessionFormatVersion,
		Timestamp:    now.UTC().Format(time.RFC3339Nano),
		SimulationID: sess.SimulationID,
		Metadata:     sess.Metadata,
		Data:         data,
	}
}

// WriteEnvelope writes env as indented JSON
func WriteEnvelope(w io.Writer, env *models.SessionEnvelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// ExportFileName is the download name for a session export
func ExportFileName(sess *models.Session) string {
	ts := sess.Timestamp
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		ts = t.UTC().Format("20060102-150405")
	}
	return fmt.Sprintf("simulation-session-%s-%s.json", ts, shortID(sess.ID))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Export writes the session with id to w
func (s *Store) Export(ctx context.Context, id string, w io.Writer) error {
	sess, err := s.LoadE(ctx, id)
	if err != nil {
		return err
	}
	return WriteEnvelope(w, Envelope(sess, s.now()))
}

// ExportToBlob writes the session with id into sink under prefix and returns
// the stored object's info.
func (s *Store) ExportToBlob(ctx context.Context, id string, sink blob.Store, prefix string) (blob.Info, error) {
	sess, err := s.LoadE(ctx, id)
	if err != nil {
		return blob.Info{}, err
	}

	var buf bytes.Buffer
	if err := WriteEnvelope(&buf, Envelope(sess, s.now())); err != nil {
		return blob.Info{}, err
	}

	key := ExportFileName(sess)
	if prefix != "" {
		key = prefix + "/" + key
	}
	info, err := sink.Put(ctx, key, &buf, blob.PutOptions{
		ContentType: ExportContentType,
		Metadata: map[string]string{
			"session-id":    sess.ID,
			"simulation-id": sess.SimulationID,
			"version":       utils.SessionFormatVersion,
		},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("failed to export session %s: %w", id, err)
	}

	sessionLog.Info("Exported session", "session_id", id, "driver", sink.Driver(), "key", info.Key, "bytes", info.Size)
	return info, nil
}

// ReadEnvelope parses an uploaded session file. Reads beyond
// utils.MaxImportBytes are rejected.
func ReadEnvelope(r io.Reader) (*models.SessionEnvelope, error) {
	raw, err := io.ReadAll(io.LimitReader(r, utils.MaxImportBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	if len(raw) > utils.MaxImportBytes {
		return nil, fmt.Errorf("invalid format: file exceeds %d bytes", utils.MaxImportBytes)
	}
	return models.ParseEnvelope(raw)
}

// Import validates an uploaded file and stores it as a new session. A
// malformed file leaves the store unchanged.
func (s *Store) Import(ctx context.Context, r io.Reader) (*models.Session, error) {
	env, err := ReadEnvelope(r)
	if err != nil {
		return nil, err
	}
	sess, err := s.SaveE(ctx, env.SimulationID, env.Metadata, env.Data)
	if err != nil {
		return nil, err
	}
	sessionLog.Info("Imported session", "session_id", sess.ID, "version", env.Version, "points", len(env.Data))
	return sess, nil
}
