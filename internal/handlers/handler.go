package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/bactolab/resistscope/internal/logging"
	"github.com/bactolab/resistscope/internal/memwatch"
	"github.com/bactolab/resistscope/internal/models"
	"github.com/bactolab/resistscope/internal/services"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Services groups the service layer the handlers delegate to
type Services struct {
	Ingest      *services.IngestService
	Analysis    *services.AnalysisService
	Sessions    *services.SessionService
	Streams     *services.StreamService
	Parameters  *services.ParameterService
	Connections *services.ConnectionManager

	// Optional; admin routes answer UNAVAILABLE without them
	AutoSaver *services.AutoSaver
	Memory    *memwatch.Watcher
}

// Handler contains all HTTP handlers
type Handler struct {
	logger      *logging.Logger
	ingest      *services.IngestService
	analysis    *services.AnalysisService
	sessions    *services.SessionService
	streams     *services.StreamService
	parameters  *services.ParameterService
	connections *services.ConnectionManager
	autosaver   *services.AutoSaver
	memory      *memwatch.Watcher
}

// New creates a new handler instance
func New(logger *logging.Logger, svc Services) *Handler {
	return &Handler{
		logger:      logger,
		ingest:      svc.Ingest,
		analysis:    svc.Analysis,
		sessions:    svc.Sessions,
		streams:     svc.Streams,
		parameters:  svc.Parameters,
		connections: svc.Connections,
		autosaver:   svc.AutoSaver,
		memory:      svc.Memory,
	}
}

// statusFor maps service error codes onto HTTP statuses
func statusFor(code string) int {
	switch code {
	case services.CodeInvalidRequest, services.CodeValidation, services.CodeInvalidImport:
		return fiber.StatusBadRequest
	case services.CodeNotFound:
		return fiber.StatusNotFound
	case services.CodeConflict:
		return fiber.StatusConflict
	case services.CodeNoData:
		return fiber.StatusUnprocessableEntity
	case services.CodeUnavailable:
		return fiber.StatusServiceUnavailable
	case services.CodeUpstreamFailure:
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// respondError writes err as an ErrorResponse
func (h *Handler) respondError(c *fiber.Ctx, err error) error {
	var svcErr *services.ServiceError
	if errors.As(err, &svcErr) {
		status := statusFor(svcErr.Code)
		if status >= fiber.StatusInternalServerError {
			h.logger.Error("Request failed",
				"path", c.Path(),
				"method", c.Method(),
				"code", svcErr.Code,
				"error", svcErr.Message)
		}
		return c.Status(status).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    svcErr.Code,
				Message: svcErr.Message,
				Path:    c.Path(),
				Details: svcErr.Details,
			},
		})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code := services.CodeInvalidRequest
		if fiberErr.Code >= fiber.StatusInternalServerError {
			code = "INTERNAL_ERROR"
		}
		return c.Status(fiberErr.Code).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    code,
				Message: fiberErr.Message,
				Path:    c.Path(),
			},
		})
	}

	h.logger.Error("Request failed", "path", c.Path(), "method", c.Method(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    "INTERNAL_ERROR",
			Message: err.Error(),
			Path:    c.Path(),
		},
	})
}

func (h *Handler) badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    services.CodeInvalidRequest,
			Message: message,
			Path:    c.Path(),
		},
	})
}

// parseBody decodes a JSON body into out. The returned *fiber.Error is
// rendered by respondError.
func parseBody(c *fiber.Ctx, out interface{}) error {
	if len(c.Body()) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "request body is required")
	}
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	return nil
}
