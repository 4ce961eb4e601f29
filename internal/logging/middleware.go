package logging

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

// MiddlewareConfig controls request logging
type MiddlewareConfig struct {
	// SkipPaths are not logged at all (probes, scrapes)
	SkipPaths []string
}

// DefaultMiddlewareConfig skips the health probe and the metrics scrape
func DefaultMiddlewareConfig() MiddlewareConfig {
	return MiddlewareConfig{
		SkipPaths: []string{"/health", "/metrics"},
	}
}

// FiberMiddleware logs every request
func FiberMiddleware(logger *Logger) fiber.Handler {
	return FiberMiddlewareWithConfig(logger, MiddlewareConfig{})
}

// FiberMiddlewareWithConfig tags the request context with a request id and,
// for /simulations/<id>/... and /sessions/<id>/... paths, the resource id,
// then logs the outcome. SSE responses are logged when the stream is opened.
func FiberMiddlewareWithConfig(logger *Logger, cfg MiddlewareConfig) fiber.Handler {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		if _, ok := skip[c.Path()]; ok {
			return c.Next()
		}

		start := time.Now()
		requestID := c.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDHeader, requestID)

		ctx := WithRequestID(c.UserContext(), requestID)
		reqLogger := logger.With("request_id", requestID)
		if id := pathResource(c.Path(), "simulations"); id != "" {
			ctx = WithSimulationID(ctx, id)
			reqLogger = reqLogger.With("simulation_id", id)
		}
		if id := pathResource(c.Path(), "sessions"); id != "" {
			ctx = WithSessionID(ctx, id)
			reqLogger = reqLogger.With("session_id", id)
		}
		c.SetUserContext(WithLogger(ctx, reqLogger))

		err := c.Next()

		status := c.Response().StatusCode()
		fields := []interface{}{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.IP(),
		}

		switch {
		case err != nil:
			reqLogger.Error("Request failed", append(fields, "error", err)...)
			return err
		case strings.HasPrefix(string(c.Response().Header.ContentType()), "text/event-stream"):
			reqLogger.Info("Event stream opened", fields...)
		case status >= 500:
			reqLogger.Error("Server error", fields...)
		case status >= 400:
			reqLogger.Warn("Client error", fields...)
		default:
			reqLogger.Debug("Request completed", fields...)
		}
		return nil
	}
}

// pathResource returns the segment following collection in path, skipping
// fixed sub-resources like /sessions/latest and /sessions/import
func pathResource(path, collection string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] != collection {
			continue
		}
		switch id := parts[i+1]; id {
		case "latest", "import":
			return ""
		default:
			return id
		}
	}
	return ""
}
