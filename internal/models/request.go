package models

import (
	"github.com/gofiber/fiber/v2"
)

// StatusRequest changes the lifecycle status of a simulation buffer
type StatusRequest struct {
	Status SimulationStatus `json:"status"`
}

// Validate validates the status request
func (r *StatusRequest) Validate() error {
	if r.Status == "" {
		return &fiber.Error{
			Code:    fiber.StatusBadRequest,
			Message: "status is required",
		}
	}
	if !r.Status.IsValid() {
		return &fiber.Error{
			Code:    fiber.StatusBadRequest,
			Message: "status must be one of: idle, running, paused, completed, error, cancelled",
		}
	}
	return nil
}

// SaveSessionRequest saves the buffer of a simulation as a session
type SaveSessionRequest struct {
	SimulationID string                `json:"simulationId"`
	Parameters   *SimulationParameters `json:"parameters,omitempty"`
}

// Validate validates the save request
func (r *SaveSessionRequest) Validate() error {
	if r.SimulationID == "" {
		return &fiber.Error{
			Code:    fiber.StatusBadRequest,
			Message: "simulationId is required",
		}
	}
	return nil
}

// CompareRequest carries two numeric series for pairwise comparison
type CompareRequest struct {
	Series1 []float64 `json:"series1"`
	Series2 []float64 `json:"series2"`
}

// Validate validates the compare request
func (r *CompareRequest) Validate() error {
	if len(r.Series1) == 0 || len(r.Series2) == 0 {
		return &fiber.Error{
			Code:    fiber.StatusBadRequest,
			Message: "series1 and series2 must both be non-empty",
		}
	}
	return nil
}

// ExportRequest writes a session to the configured blob sink
type ExportRequest struct {
	Key string `json:"key,omitempty"`
}

// RestoreRequest loads a session back into a simulation buffer
type RestoreRequest struct {
	SimulationID string `json:"simulationId"`
}
