package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bactolab/resistscope/internal/services"
)

// TriggerAutoSave handles POST /admin/autosave: saves every collecting
// simulation now instead of waiting for the next tick
func (h *Handler) TriggerAutoSave(c *fiber.Ctx) error {
	if h.autosaver == nil {
		return h.respondError(c, services.NewServiceError(services.CodeUnavailable, "autosave is disabled"))
	}
	saved := h.autosaver.SaveAll(c.UserContext())
	h.logger.Info("Manual autosave triggered", "saved", saved)
	return c.JSON(fiber.Map{"saved": saved})
}

// MemoryStats handles GET /admin/memory. With ?check=true a fresh sample is
// taken, which runs the cleanups if the heap is over the limit.
func (h *Handler) MemoryStats(c *fiber.Ctx) error {
	if h.memory == nil {
		return h.respondError(c, services.NewServiceError(services.CodeUnavailable, "memory watcher is disabled"))
	}
	if c.QueryBool("check", false) {
		return c.JSON(h.memory.Check())
	}
	return c.JSON(h.memory.Last())
}
