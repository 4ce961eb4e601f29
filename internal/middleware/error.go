package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/bactolab/resistscope/internal/logging"
	"github.com/bactolab/resistscope/internal/models"
)

// errorCodes maps statuses raised by fiber itself onto API error codes
var errorCodes = map[int]string{
	fiber.StatusBadRequest:            "INVALID_REQUEST",
	fiber.StatusUnauthorized:          "UNAUTHORIZED",
	fiber.StatusNotFound:              "NOT_FOUND",
	fiber.StatusMethodNotAllowed:      "METHOD_NOT_ALLOWED",
	fiber.StatusRequestEntityTooLarge: "PAYLOAD_TOO_LARGE",
	fiber.StatusUnprocessableEntity:   "INVALID_REQUEST",
	fiber.StatusTooManyRequests:       "RATE_LIMITED",
	fiber.StatusServiceUnavailable:    "UNAVAILABLE",
}

// ErrorHandler renders errors that escape the handlers, including panics
// caught by the recover middleware, as an ErrorResponse
func ErrorHandler(logger *logging.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		message := "Internal Server Error"

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
			message = fiberErr.Message
		}

		code, ok := errorCodes[status]
		if !ok {
			code = "INTERNAL_ERROR"
			if status < fiber.StatusInternalServerError {
				code = "ERROR"
			}
		}

		fields := []interface{}{
			"path", c.Path(),
			"method", c.Method(),
			"status", status,
			"error", err,
		}
		if status >= fiber.StatusInternalServerError {
			logger.Error("Request error", fields...)
		} else {
			logger.Warn("Request error", fields...)
		}

		return c.Status(status).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    code,
				Message: message,
				Path:    c.Path(),
			},
		})
	}
}
