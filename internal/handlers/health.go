package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/bactolab/resistscope/internal/models"
	"github.com/bactolab/resistscope/internal/services"
)

// Health reports liveness plus buffer and connection counts
func (h *Handler) Health(c *fiber.Ctx) error {
	resp := models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   Version,
	}
	if h.ingest != nil {
		sims := h.ingest.List()
		resp.Simulations = len(sims)
		for _, sim := range sims {
			if sim.Status == models.StatusRunning {
				resp.Collecting++
			}
		}
	}
	if h.connections != nil {
		resp.Connected = len(h.connections.Connected())
	}
	return c.JSON(resp)
}

// NotFound is the catch-all for unknown routes
func (h *Handler) NotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    services.CodeNotFound,
			Message: "No route for " + c.Method() + " " + c.Path(),
			Path:    c.Path(),
		},
	})
}
