package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bactolab/resistscope/internal/analytics"
	"github.com/bactolab/resistscope/internal/models"
	"github.com/bactolab/resistscope/internal/services"
)

func seriesRequest(c *fiber.Ctx) services.SeriesRequest {
	return services.SeriesRequest{
		SimulationID: c.Params("id"),
		Field:        c.Query("field", string(analytics.FieldResistanceFrequency)),
	}
}

// Summary handles GET /v1/simulations/:id/stats/summary?field=
func (h *Handler) Summary(c *fiber.Ctx) error {
	resp, err := h.analysis.Summary(seriesRequest(c))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(resp)
}

// Histogram handles GET /v1/simulations/:id/stats/histogram?field=&bins=
func (h *Handler) Histogram(c *fiber.Ctx) error {
	resp, err := h.analysis.Histogram(seriesRequest(c), c.QueryInt("bins", 0))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(resp)
}

// BoxPlot handles GET /v1/simulations/:id/stats/boxplot?field=&group_by=
func (h *Handler) BoxPlot(c *fiber.Ctx) error {
	resp, err := h.analysis.BoxPlot(seriesRequest(c), c.Query("group_by"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(resp)
}

// Anomalies handles GET /v1/simulations/:id/stats/anomalies?field=&algorithm=&threshold=
func (h *Handler) Anomalies(c *fiber.Ctx) error {
	resp, err := h.analysis.Anomalies(seriesRequest(c), c.Query("algorithm"), c.QueryFloat("threshold", 0))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(resp)
}

// Forecast handles GET /v1/simulations/:id/stats/forecast?field=&algorithm=&horizon=
func (h *Handler) Forecast(c *fiber.Ctx) error {
	resp, err := h.analysis.Forecast(seriesRequest(c), c.Query("algorithm"), c.QueryInt("horizon", 0))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(resp)
}

// Compare handles POST /v1/stats/compare
func (h *Handler) Compare(c *fiber.Ctx) error {
	var req models.CompareRequest
	if err := parseBody(c, &req); err != nil {
		return h.respondError(c, err)
	}
	resp, err := h.analysis.Compare(&req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(resp)
}
