package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bactolab/resistscope/internal/models"
)

// ValidateParameters handles POST /v1/parameters/validate. Invalid forms are
// reported in the body with status 200.
func (h *Handler) ValidateParameters(c *fiber.Ctx) error {
	var params models.SimulationParameters
	if err := parseBody(c, &params); err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(h.parameters.Validate(&params))
}

// GetDefaultParameters handles GET /v1/parameters/defaults
func (h *Handler) GetDefaultParameters(c *fiber.Ctx) error {
	return c.JSON(models.DefaultParameters())
}

// SaveDraft handles PUT /v1/parameters/draft
func (h *Handler) SaveDraft(c *fiber.Ctx) error {
	var params models.SimulationParameters
	if err := parseBody(c, &params); err != nil {
		return h.respondError(c, err)
	}
	if err := h.parameters.SaveDraft(c.UserContext(), &params); err != nil {
		return h.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetDraft handles GET /v1/parameters/draft. Without a stored draft the
// defaults are returned and X-Draft-Found is false.
func (h *Handler) GetDraft(c *fiber.Ctx) error {
	params, found, err := h.parameters.LoadDraft(c.UserContext())
	if err != nil {
		return h.respondError(c, err)
	}
	if found {
		c.Set("X-Draft-Found", "true")
	} else {
		c.Set("X-Draft-Found", "false")
	}
	return c.JSON(params)
}

// DeleteDraft handles DELETE /v1/parameters/draft
func (h *Handler) DeleteDraft(c *fiber.Ctx) error {
	if err := h.parameters.DeleteDraft(c.UserContext()); err != nil {
		return h.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
