package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bactolab/resistscope/internal/blob"
	"github.com/bactolab/resistscope/internal/config"
	"github.com/bactolab/resistscope/internal/handlers"
	"github.com/bactolab/resistscope/internal/kv"
	"github.com/bactolab/resistscope/internal/logging"
	"github.com/bactolab/resistscope/internal/memwatch"
	"github.com/bactolab/resistscope/internal/metrics"
	"github.com/bactolab/resistscope/internal/router"
	"github.com/bactolab/resistscope/internal/services"
	"github.com/bactolab/resistscope/internal/session"
	"github.com/bactolab/resistscope/internal/stream"
	"github.com/bactolab/resistscope/internal/subscriber"
)

var (
	Version   = "dev"     // Injected via ldflags during build
	GitCommit = "unknown" // Injected via ldflags during build
	BuildTime = "unknown" // Injected via ldflags during build
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)
	logger.Info("Dashboard service starting...",
		"version", Version, "commit", GitCommit, "build time", BuildTime)

	if err := cfg.EnsureDirectories(); err != nil {
		logger.Fatal("Failed to create data directories", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	// Session persistence
	logger.Info("Opening session store", "backend", cfg.Sessions.Backend, "compress", cfg.Sessions.Compress)
	backend, err := kv.New(cfg.Sessions)
	if err != nil {
		logger.Fatal("Failed to open session backend", "error", err)
	}
	defer func() { _ = backend.Close() }()
	store := session.NewStore(backend, session.Config{
		StorageKey:  cfg.Sessions.StorageKey,
		MaxSessions: cfg.Sessions.MaxSessions,
	})

	sink, err := blob.New(ctx, cfg.Export)
	if err != nil {
		logger.Fatal("Failed to open export sink", "driver", cfg.Export.Driver, "error", err)
	}
	logger.Info("Export sink ready", "driver", sink.Driver())

	// Buffers and services
	bufCfg := stream.DefaultConfig()
	bufCfg.MaxDataPoints = cfg.Buffer.MaxDataPoints
	bufCfg.FlushSize = cfg.Buffer.FlushSize
	bufCfg.AutoReset = cfg.Buffer.AutoReset
	registry := stream.NewRegistry(bufCfg)
	defer registry.Close()

	ingest := services.NewIngestService(logger.Component("ingest"), registry, m)
	streams := services.NewStreamService(logger.Component("stream"), registry, services.DefaultHeartbeatInterval)
	connections := services.NewConnectionManager(logger.Component("connections"), cfg.Simulation, ingest, m)
	autosaver := services.NewAutoSaver(logger.Component("autosave"), store, registry, cfg.Sessions.AutoSaveInterval)
	ingest.SetRunObserver(autosaver)

	watcher := memwatch.New(cfg.Memory, m)
	watcher.Register("buffers", registry.TrimAll)

	svc := handlers.Services{
		Ingest:      ingest,
		Analysis:    services.NewAnalysisService(logger.Component("analysis"), registry, cfg.Analysis),
		Sessions:    services.NewSessionService(logger.Component("sessions"), store, registry, sink, m),
		Streams:     streams,
		Parameters:  services.NewParameterService(logger.Component("parameters"), store),
		Connections: connections,
		AutoSaver:   autosaver,
		Memory:      watcher,
	}

	// Bus ingestion
	var sub subscriber.Subscriber
	if cfg.Queue.Enabled {
		logger.Info("Connecting to Queue", "type", cfg.Queue.Type, "url", cfg.Queue.URL, "subject", cfg.Queue.Subject)
		sub, err = subscriber.NewSubscriber(cfg.Queue)
		if err != nil {
			logger.Fatal("Failed to connect to Queue", "error", err)
		}
		if err := sub.Subscribe(ctx, cfg.Queue.Subject, ingest.HandleBusMessage); err != nil {
			logger.Fatal("Failed to subscribe", "subject", cfg.Queue.Subject, "error", err)
		}
		logger.Info("Queue subscription established")
	} else {
		logger.Info("Queue ingestion disabled; updates arrive over HTTP or WebSocket only")
	}

	if err := autosaver.Start(ctx); err != nil {
		logger.Fatal("Failed to start autosave", "error", err)
	}
	if cfg.Memory.Enabled {
		if err := watcher.Start(ctx); err != nil {
			logger.Fatal("Failed to start memory watcher", "error", err)
		}
	}

	if cfg.Auth.Enabled {
		logger.Info("API key authentication enabled", "num_keys", len(cfg.Auth.APIKeys))
	} else {
		logger.Warn("API key authentication DISABLED - all requests will be allowed")
	}

	app := router.New(logger, svc, m, *cfg)

	go func() {
		addr := cfg.GetServerAddress()
		logger.Info("Server listening", "address", addr)
		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Inputs first so nothing lands in the buffers after the final save
	if sub != nil {
		if err := sub.Close(); err != nil {
			logger.Warn("Failed to close subscriber", "error", err)
		}
	}
	connections.Close()
	streams.Close()

	autosaver.Stop()
	if saved := autosaver.SaveAll(context.Background()); saved > 0 {
		logger.Info("Saved running simulations before exit", "sessions", saved)
	}
	watcher.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
