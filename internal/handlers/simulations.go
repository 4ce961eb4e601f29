package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bactolab/resistscope/internal/models"
	"github.com/bactolab/resistscope/internal/services"
)

// PushUpdates handles POST /v1/simulations/:id/updates. The body is one
// update record or an array of them.
func (h *Handler) PushUpdates(c *fiber.Ctx) error {
	if len(c.Body()) == 0 {
		return h.badRequest(c, "request body is required")
	}
	resp, err := h.ingest.Ingest(c.UserContext(), services.SourceHTTP, c.Params("id"), c.Body())
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(resp)
}

// SetStatus handles POST /v1/simulations/:id/status
func (h *Handler) SetStatus(c *fiber.Ctx) error {
	var req models.StatusRequest
	if err := parseBody(c, &req); err != nil {
		return h.respondError(c, err)
	}
	if err := req.Validate(); err != nil {
		return h.respondError(c, err)
	}

	id := c.Params("id")
	info, err := h.ingest.SetStatus(id, req.Status)
	if err != nil {
		return h.respondError(c, err)
	}
	info.Connected = h.connections.IsConnected(id)
	return c.JSON(info)
}

// ListSimulations handles GET /v1/simulations
func (h *Handler) ListSimulations(c *fiber.Ctx) error {
	sims := h.ingest.List()
	for i := range sims {
		sims[i].Connected = h.connections.IsConnected(sims[i].SimulationID)
	}
	return c.JSON(models.SimulationListResponse{Simulations: sims})
}

// GetSimulation handles GET /v1/simulations/:id
func (h *Handler) GetSimulation(c *fiber.Ctx) error {
	id := c.Params("id")
	for _, sim := range h.ingest.List() {
		if sim.SimulationID == id {
			sim.Connected = h.connections.IsConnected(id)
			return c.JSON(sim)
		}
	}
	return h.respondError(c, services.NewServiceError(services.CodeNotFound, "simulation not found: "+id))
}

// GetChartData handles GET /v1/simulations/:id/data
//
// Query parameters:
//   - chart: population (default), mutation, resistance or growth
//   - downsampling: none, auto (default), lttb, minmax, avg, m4
//   - max_points: downsampling threshold
func (h *Handler) GetChartData(c *fiber.Ctx) error {
	resp, err := h.analysis.Chart(services.ChartRequest{
		SimulationID: c.Params("id"),
		Chart:        c.Query("chart", string(models.ChartPopulation)),
		Downsampling: c.Query("downsampling"),
		MaxPoints:    c.QueryInt("max_points", 0),
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(resp)
}

// ResetSimulation handles DELETE /v1/simulations/:id. A running feed is
// disconnected first.
func (h *Handler) ResetSimulation(c *fiber.Ctx) error {
	id := c.Params("id")
	if h.connections.IsConnected(id) {
		_ = h.connections.Disconnect(id)
	}
	if err := h.ingest.Reset(id); err != nil {
		return h.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Connect handles POST /v1/simulations/:id/connect. ?backfill=true pulls
// the engine's history over REST first.
func (h *Handler) Connect(c *fiber.Ctx) error {
	id := c.Params("id")
	opts := services.ConnectOptions{Backfill: c.QueryBool("backfill", false)}
	if err := h.connections.Connect(id, opts); err != nil {
		return h.respondError(c, err)
	}
	h.logger.Info("Simulation feed requested", "simulation_id", id, "backfill", opts.Backfill)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"simulationId": id,
		"connected":    true,
	})
}

// Disconnect handles DELETE /v1/simulations/:id/connect
func (h *Handler) Disconnect(c *fiber.Ctx) error {
	if err := h.connections.Disconnect(c.Params("id")); err != nil {
		return h.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
