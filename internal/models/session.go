package models

import (
	"encoding/json"
	"fmt"
)

// SessionMetadata describes the run a session was captured from
type SessionMetadata struct {
	TotalGenerations int                   `json:"totalGenerations"`
	StartTime        string                `json:"startTime"`
	EndTime          string                `json:"endTime,omitempty"`
	Parameters       *SimulationParameters `json:"parameters,omitempty"`
}

// Session is a named, persisted snapshot of buffered data points
type Session struct {
	ID           string          `json:"id"`
	Timestamp    string          `json:"timestamp"`
	SimulationID string          `json:"simulationId,omitempty"`
	Metadata     SessionMetadata `json:"metadata"`
	Data         []DataPoint     `json:"data"`
}

// Summary strips the data for index listings
func (s *Session) Summary() SessionSummary {
	return SessionSummary{
		ID:           s.ID,
		Timestamp:    s.Timestamp,
		SimulationID: s.SimulationID,
		Metadata:     s.Metadata,
		PointCount:   len(s.Data),
	}
}

// SessionSummary is one entry of the session index
type SessionSummary struct {
	ID           string          `json:"id"`
	Timestamp    string          `json:"timestamp"`
	SimulationID string          `json:"simulationId,omitempty"`
	Metadata     SessionMetadata `json:"metadata"`
	PointCount   int             `json:"pointCount"`
}

// SessionEnvelope is the exported session file format
type SessionEnvelope struct {
	Version      string          `json:"version"`
	Timestamp    string          `json:"timestamp"`
	SimulationID string          `json:"simulationId,omitempty"`
	Metadata     SessionMetadata `json:"metadata"`
	Data         []DataPoint     `json:"data"`
}

// envelopeShape is used to check field presence on import
type envelopeShape struct {
	Version      *string           `json:"version"`
	Timestamp    string            `json:"timestamp"`
	SimulationID string            `json:"simulationId"`
	Metadata     *SessionMetadata  `json:"metadata"`
	Data         []json.RawMessage `json:"data"`
}

// requiredPointFields must be present and numeric in every imported point
var requiredPointFields = []string{"generation", "totalPopulation", "resistantCount"}

// ParseEnvelope decodes an exported session file. It rejects the whole file when
// the envelope or any point is malformed; nothing is partially applied.
func ParseEnvelope(data []byte) (*SessionEnvelope, error) {
	var shape envelopeShape
	if err := json.Unmarshal(data, &shape); err != nil {
		return nil, fmt.Errorf("invalid format: %w", err)
	}
	if shape.Version == nil || *shape.Version == "" {
		return nil, fmt.Errorf("invalid format: missing version")
	}
	if shape.Data == nil {
		return nil, fmt.Errorf("invalid format: missing data array")
	}

	points := make([]DataPoint, 0, len(shape.Data))
	for i, raw := range shape.Data {
		var fields map[string]interface{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("invalid format: point %d is not an object", i)
		}
		for _, name := range requiredPointFields {
			if _, ok := fields[name].(float64); !ok {
				return nil, fmt.Errorf("invalid format: point %d has no numeric %s", i, name)
			}
		}
		var p DataPoint
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("invalid format: point %d: %w", i, err)
		}
		points = append(points, p)
	}

	env := &SessionEnvelope{
		Version:      *shape.Version,
		Timestamp:    shape.Timestamp,
		SimulationID: shape.SimulationID,
		Data:         points,
	}
	if shape.Metadata != nil {
		env.Metadata = *shape.Metadata
	}
	return env, nil
}
