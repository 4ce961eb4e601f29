package models

// HealthResponse represents health check response
type HealthResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	Version     string `json:"version"`
	Simulations int    `json:"simulations"`
	Collecting  int    `json:"collecting"`
	Connected   int    `json:"connected"`
}

// IngestResponse reports how many updates a push accepted
type IngestResponse struct {
	SimulationID string `json:"simulationId"`
	Received     int    `json:"received"`
	Accepted     int    `json:"accepted"`
	Dropped      int    `json:"dropped"`
	State        string `json:"state"`
	BufferSize   int    `json:"bufferSize"`
}

// SimulationInfo describes one buffered simulation
type SimulationInfo struct {
	SimulationID   string           `json:"simulationId"`
	State          string           `json:"state"`
	Status         SimulationStatus `json:"status"`
	Points         int              `json:"points"`
	LastGeneration int              `json:"lastGeneration"`
	Connected      bool             `json:"connected"`
}

// SimulationListResponse represents list simulations response
type SimulationListResponse struct {
	Simulations []SimulationInfo `json:"simulations"`
}

// ChartResponse carries one chart family's view records
type ChartResponse struct {
	SimulationID string      `json:"simulationId"`
	Chart        ChartKind   `json:"chart"`
	Count        int         `json:"count"`
	Points       interface{} `json:"points"`
}

// SessionListResponse represents list sessions response
type SessionListResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

// SessionSavedResponse is returned when a session is stored
type SessionSavedResponse struct {
	ID string `json:"id"`
}

// ExportResponse reports where an export was written
type ExportResponse struct {
	Key    string `json:"key"`
	Driver string `json:"driver"`
	URL    string `json:"url,omitempty"`
}

// ValidationResponse is returned by parameter validation
type ValidationResponse struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors,omitempty"`
}

// ErrorResponse represents error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Path    string                 `json:"path,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}
