package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default config locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")                // Current directory
		v.AddConfigPath("./configs")        // Project configs directory
		v.AddConfigPath("./config")         // Alternative config directory
		v.AddConfigPath("/etc/resistscope") // System-wide config
	}

	// Set defaults
	setDefaults(v)

	// Enable environment variable overrides
	v.SetEnvPrefix("RESISTSCOPE")
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; use defaults
			return parseConfig(v)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return parseConfig(v)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 5580)
	v.SetDefault("server.body_limit_mb", 32)

	// Simulation engine defaults
	v.SetDefault("simulation.base_url", "http://localhost:8000")
	v.SetDefault("simulation.ws_host", "localhost")
	v.SetDefault("simulation.ws_port", 8000)
	v.SetDefault("simulation.reconnect_delay", "3s")
	v.SetDefault("simulation.max_reconnects", 10)
	v.SetDefault("simulation.request_timeout", "10s")

	// Buffer defaults
	v.SetDefault("buffer.max_data_points", 1000)
	v.SetDefault("buffer.flush_size", 10)
	v.SetDefault("buffer.auto_reset", true)

	// Session defaults
	v.SetDefault("sessions.storage_key", "simulation-data")
	v.SetDefault("sessions.max_sessions", 10)
	v.SetDefault("sessions.backend", "file")
	v.SetDefault("sessions.dir", "./data/sessions")
	v.SetDefault("sessions.auto_save_interval", "30s")
	v.SetDefault("sessions.redis.url", "redis://localhost:6379")
	v.SetDefault("sessions.etcd.endpoints", []string{"http://localhost:2379"})
	v.SetDefault("sessions.etcd.dial_timeout", "5s")

	// Export defaults
	v.SetDefault("export.driver", "fs")
	v.SetDefault("export.dir", "./data/exports")
	v.SetDefault("export.s3.region", "us-east-1")

	// Queue defaults
	v.SetDefault("queue.type", "nats")
	v.SetDefault("queue.url", "nats://localhost:4222")
	v.SetDefault("queue.subject", "simulation.updates")
	v.SetDefault("queue.consumer_group", "resistscope")
	v.SetDefault("queue.node_id", "dashboard-1")

	// Analysis defaults
	v.SetDefault("analysis.histogram_bins", 20)
	v.SetDefault("analysis.max_chart_points", 500)
	v.SetDefault("analysis.anomaly_threshold", 3.0)

	// Memory watcher defaults
	v.SetDefault("memory.poll_interval", "5s")
	v.SetDefault("memory.heap_limit_mb", 512)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "stdout")
}

// parseConfig parses viper config into Config struct
func parseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads configuration from file or returns default config
func LoadOrDefault(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		return DefaultConfig()
	}
	return cfg
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			HTTPPort:    5580,
			BodyLimitMB: 32,
		},
		Simulation: SimulationConfig{
			BaseURL:        "http://localhost:8000",
			WSHost:         "localhost",
			WSPort:         8000,
			ReconnectDelay: 3 * time.Second,
			MaxReconnects:  10,
			RequestTimeout: 10 * time.Second,
		},
		Buffer: BufferConfig{
			MaxDataPoints: 1000,
			FlushSize:     10,
			AutoReset:     true,
		},
		Sessions: SessionsConfig{
			StorageKey:       "simulation-data",
			MaxSessions:      10,
			Backend:          "file",
			Dir:              "./data/sessions",
			AutoSaveInterval: 30 * time.Second,
			Redis: RedisConfig{
				URL: "redis://localhost:6379",
			},
			Etcd: EtcdConfig{
				Endpoints:   []string{"http://localhost:2379"},
				DialTimeout: 5 * time.Second,
			},
		},
		Export: ExportConfig{
			Driver: "fs",
			Dir:    "./data/exports",
			S3: S3Config{
				Region: "us-east-1",
			},
		},
		Queue: QueueConfig{
			Type:          "nats",
			URL:           "nats://localhost:4222",
			Subject:       "simulation.updates",
			ConsumerGroup: "resistscope",
			NodeID:        "dashboard-1",
		},
		Analysis: AnalysisConfig{
			HistogramBins:    20,
			MaxChartPoints:   500,
			AnomalyThreshold: 3.0,
		},
		Memory: MemoryConfig{
			PollInterval: 5 * time.Second,
			HeapLimitMB:  512,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stdout",
		},
	}
}
