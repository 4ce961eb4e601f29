package models

import (
	"encoding/json"
	"time"
)

// WebSocket message types exchanged with the simulation engine
const (
	WSGetSpatialData   = "get_spatial_data"
	WSSpatialUpdate    = "spatial_update"
	WSSimulationUpdate = "simulation_update"
	WSGridStats        = "grid_stats"
	WSAntibioticZones  = "antibiotic_zones"
	WSError            = "error"
)

// WSMessage is the envelope for every WebSocket frame
type WSMessage struct {
	Type         string          `json:"type"`
	SimulationID string          `json:"simulation_id,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	Timestamp    string          `json:"timestamp,omitempty"`
}

// NewSpatialDataRequest builds the handshake sent right after the socket opens
func NewSpatialDataRequest(simulationID string, now time.Time) WSMessage {
	return WSMessage{
		Type:         WSGetSpatialData,
		SimulationID: simulationID,
		Data:         json.RawMessage(`{"type":"get_spatial_data"}`),
		Timestamp:    now.UTC().Format(time.RFC3339Nano),
	}
}

// WSErrorData is the payload of an error frame
type WSErrorData struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
