package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/bactolab/resistscope/internal/config"
	"github.com/bactolab/resistscope/internal/handlers"
	"github.com/bactolab/resistscope/internal/logging"
	"github.com/bactolab/resistscope/internal/metrics"
	"github.com/bactolab/resistscope/internal/middleware"
)

// Setup configures all routes and middlewares
func Setup(app *fiber.App, logger *logging.Logger, svc handlers.Services, m *metrics.Metrics, cfg config.Config) *handlers.Handler {
	h := handlers.New(logger, svc)

	// Global middlewares
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowMethods:  "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,Authorization,X-API-Key,X-Request-ID",
		ExposeHeaders: "Content-Disposition,X-Draft-Found,X-Request-ID",
	}))
	app.Use(logging.FiberMiddleware(logger))
	app.Use(m.Middleware())

	// No auth required
	app.Get("/health", h.Health)
	app.Get("/metrics", m.Handler())

	authMiddleware := middleware.APIKeyAuth(logger, cfg.Auth)

	v1 := app.Group("/v1", authMiddleware)

	// Simulation buffers
	v1.Get("/simulations", h.ListSimulations)
	v1.Get("/simulations/:id", h.GetSimulation)
	v1.Delete("/simulations/:id", h.ResetSimulation)
	v1.Post("/simulations/:id/updates", h.PushUpdates)
	v1.Post("/simulations/:id/status", h.SetStatus)
	v1.Get("/simulations/:id/data", h.GetChartData)
	v1.Get("/simulations/:id/stream", h.StreamSimulation)

	// Engine connection
	v1.Post("/simulations/:id/connect", h.Connect)
	v1.Delete("/simulations/:id/connect", h.Disconnect)

	// Statistics
	v1.Get("/simulations/:id/stats/summary", h.Summary)
	v1.Get("/simulations/:id/stats/histogram", h.Histogram)
	v1.Get("/simulations/:id/stats/boxplot", h.BoxPlot)
	v1.Get("/simulations/:id/stats/anomalies", h.Anomalies)
	v1.Get("/simulations/:id/stats/forecast", h.Forecast)
	v1.Post("/stats/compare", h.Compare)

	// Sessions; static paths before :sid
	v1.Post("/sessions", h.SaveSession)
	v1.Get("/sessions", h.ListSessions)
	v1.Delete("/sessions", h.ClearSessions)
	v1.Post("/sessions/import", h.ImportSession)
	v1.Get("/sessions/latest", h.LatestSession)
	v1.Get("/sessions/:sid", h.GetSession)
	v1.Delete("/sessions/:sid", h.DeleteSession)
	v1.Get("/sessions/:sid/export", h.ExportSession)
	v1.Post("/sessions/:sid/export", h.ExportSessionToSink)
	v1.Post("/sessions/:sid/restore", h.RestoreSession)

	// Parameter form
	v1.Get("/parameters/defaults", h.GetDefaultParameters)
	v1.Post("/parameters/validate", h.ValidateParameters)
	v1.Get("/parameters/draft", h.GetDraft)
	v1.Put("/parameters/draft", h.SaveDraft)
	v1.Delete("/parameters/draft", h.DeleteDraft)

	// Admin Routes (protected by API key)
	admin := app.Group("/admin", authMiddleware)
	admin.Post("/autosave", h.TriggerAutoSave)
	admin.Get("/memory", h.MemoryStats)

	// 404 handler
	app.Use(h.NotFound)

	return h
}

// New creates a new Fiber app with configuration
func New(logger *logging.Logger, svc handlers.Services, m *metrics.Metrics, cfg config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "ResistScope Dashboard",
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler(logger),
		BodyLimit:             cfg.Server.BodyLimitBytes(),
	})

	Setup(app, logger, svc, m, cfg)

	return app
}
