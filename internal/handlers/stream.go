package handlers

import (
	"bufio"
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/bactolab/resistscope/internal/services"
)

// StreamSimulation handles GET /v1/simulations/:id/stream with SSE.
// The first event is a snapshot of the buffer, followed by batch, reset and
// status events as the simulation progresses.
func (h *Handler) StreamSimulation(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := services.ValidateSimulationID(id); err != nil {
		return h.respondError(c, err)
	}
	if !h.streams.Exists(id) {
		return h.respondError(c, services.NewServiceError(services.CodeNotFound, "simulation not found: "+id))
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")
	c.Set("X-Accel-Buffering", "no") // Disable nginx buffering

	logger := h.logger
	streams := h.streams

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		writer := services.NewSSEWriter(w)

		// fasthttp gives no per-request context here; a failed write ends the stream
		err := streams.Stream(context.Background(), id, writer)
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}

		var svcErr *services.ServiceError
		if !errors.As(err, &svcErr) {
			logger.Debug("Stream ended", "simulation_id", id, "error", err)
			return
		}

		logger.Warn("Stream failed", "simulation_id", id, "code", svcErr.Code, "error", svcErr.Message)
		if werr := writer.WriteEvent(services.EventError, map[string]interface{}{
			"code":    svcErr.Code,
			"message": svcErr.Message,
			"details": svcErr.Details,
		}); werr != nil {
			logger.Error("Failed to write error event", "error", werr)
			return
		}
		if ferr := writer.Flush(); ferr != nil {
			logger.Error("Failed to flush error event", "error", ferr)
		}
	})

	return nil
}
