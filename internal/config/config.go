package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Buffer     BufferConfig     `mapstructure:"buffer"`
	Sessions   SessionsConfig   `mapstructure:"sessions"`
	Export     ExportConfig     `mapstructure:"export"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	Memory     MemoryConfig     `mapstructure:"memory"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host     string `mapstructure:"host"`      // Bind address (e.g., 0.0.0.0 for all interfaces)
	HTTPPort int    `mapstructure:"http_port"` // HTTP server port
	// BodyLimitMB caps request bodies; session imports are the largest
	BodyLimitMB int `mapstructure:"body_limit_mb"`
}

// SimulationConfig describes how to reach the external simulation engine
type SimulationConfig struct {
	BaseURL        string        `mapstructure:"base_url"`        // REST base, e.g. http://localhost:8000
	WSHost         string        `mapstructure:"ws_host"`         // WebSocket host
	WSPort         int           `mapstructure:"ws_port"`         // WebSocket port
	Secure         bool          `mapstructure:"secure"`          // wss instead of ws
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"` // fixed delay after an unclean close (default: 3s)
	MaxReconnects  int           `mapstructure:"max_reconnects"`  // reconnect attempts before giving up (default: 10)
	RequestTimeout time.Duration `mapstructure:"request_timeout"` // REST request timeout
}

// BufferConfig configures the per-simulation accumulators
type BufferConfig struct {
	MaxDataPoints int  `mapstructure:"max_data_points"` // visible buffer cap, oldest evicted first
	FlushSize     int  `mapstructure:"flush_size"`      // pending points before a flush
	AutoReset     bool `mapstructure:"auto_reset"`      // clear on idle -> running
}

// SessionsConfig configures session persistence
type SessionsConfig struct {
	StorageKey       string        `mapstructure:"storage_key"`        // key namespace prefix
	MaxSessions      int           `mapstructure:"max_sessions"`       // oldest session evicted on overflow
	Backend          string        `mapstructure:"backend"`            // memory, file, redis, etcd
	Dir              string        `mapstructure:"dir"`                // file backend directory
	Compress         bool          `mapstructure:"compress"`           // snappy-compress stored values
	AutoSaveInterval time.Duration `mapstructure:"auto_save_interval"` // 0 disables autosave
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`          // read cache for remote backends, 0 disables
	Redis            RedisConfig   `mapstructure:"redis"`
	Etcd             EtcdConfig    `mapstructure:"etcd"`
}

// RedisConfig represents a Redis connection
type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// EtcdConfig represents etcd configuration
type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
}

// ExportConfig configures where exported session files are written
type ExportConfig struct {
	Driver string   `mapstructure:"driver"` // fs (default), s3, memory
	Dir    string   `mapstructure:"dir"`    // fs driver root
	S3     S3Config `mapstructure:"s3"`
}

// S3Config holds S3 / MinIO settings for the export sink
type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
}

// QueueConfig represents message bus ingestion configuration
type QueueConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Type          string `mapstructure:"type"`           // nats (default), redis, kafka, memory
	URL           string `mapstructure:"url"`            // e.g. nats://localhost:4222, localhost:6379
	Subject       string `mapstructure:"subject"`        // subject/topic carrying simulation updates
	ConsumerGroup string `mapstructure:"consumer_group"` // consumer group name
	NodeID        string `mapstructure:"node_id"`        // consumer name

	// Redis-specific options
	Password    string `mapstructure:"password"`
	RedisDB     int    `mapstructure:"redis_db"`
	RedisStream string `mapstructure:"redis_stream"` // stream prefix (default: "resistscope")

	// Kafka-specific options
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
}

// AnalysisConfig holds defaults for statistics endpoints
type AnalysisConfig struct {
	HistogramBins    int     `mapstructure:"histogram_bins"`
	MaxChartPoints   int     `mapstructure:"max_chart_points"` // downsampling threshold for chart views
	AnomalyThreshold float64 `mapstructure:"anomaly_threshold"`
}

// MemoryConfig configures the heap watcher
type MemoryConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	HeapLimitMB  int           `mapstructure:"heap_limit_mb"`
}

// AuthConfig represents authentication configuration
type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`  // Enable/disable API key authentication
	APIKeys []string `mapstructure:"api_keys"` // List of valid API keys
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, file path
	TimeFormat string `mapstructure:"time_format"` // RFC3339, Unix, Kitchen
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Simulation.Validate(); err != nil {
		return fmt.Errorf("simulation config: %w", err)
	}

	if err := c.Buffer.Validate(); err != nil {
		return fmt.Errorf("buffer config: %w", err)
	}

	if err := c.Sessions.Validate(); err != nil {
		return fmt.Errorf("sessions config: %w", err)
	}

	if err := c.Export.Validate(); err != nil {
		return fmt.Errorf("export config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (c *ServerConfig) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.HTTPPort)
	}
	return nil
}

// Validate validates simulation engine configuration
func (c *SimulationConfig) Validate() error {
	if c.WSPort < 0 || c.WSPort > 65535 {
		return fmt.Errorf("invalid ws_port: %d", c.WSPort)
	}
	if c.ReconnectDelay < 0 {
		return fmt.Errorf("reconnect_delay cannot be negative")
	}
	if c.MaxReconnects < 0 {
		return fmt.Errorf("max_reconnects cannot be negative")
	}
	return nil
}

// Validate validates buffer configuration
func (c *BufferConfig) Validate() error {
	if c.MaxDataPoints <= 0 {
		return fmt.Errorf("max_data_points must be positive")
	}
	if c.FlushSize <= 0 {
		return fmt.Errorf("flush_size must be positive")
	}
	return nil
}

// Validate validates session persistence configuration
func (c *SessionsConfig) Validate() error {
	if c.StorageKey == "" {
		return fmt.Errorf("storage_key is required")
	}
	if c.MaxSessions <= 0 {
		return fmt.Errorf("max_sessions must be positive")
	}

	switch c.Backend {
	case "memory":
	case "file":
		if c.Dir == "" {
			return fmt.Errorf("dir is required for the file backend")
		}
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("redis.url is required for the redis backend")
		}
	case "etcd":
		if len(c.Etcd.Endpoints) == 0 {
			return fmt.Errorf("etcd.endpoints is required for the etcd backend")
		}
		if c.Etcd.DialTimeout <= 0 {
			return fmt.Errorf("etcd.dial_timeout must be positive")
		}
	default:
		return fmt.Errorf("backend must be one of: memory, file, redis, etcd")
	}

	if c.AutoSaveInterval < 0 {
		return fmt.Errorf("auto_save_interval cannot be negative")
	}
	return nil
}

// Validate validates export configuration
func (c *ExportConfig) Validate() error {
	switch c.Driver {
	case "", "fs":
		if c.Dir == "" {
			return fmt.Errorf("dir is required for the fs driver")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required for the s3 driver")
		}
	case "memory":
	default:
		return fmt.Errorf("driver must be one of: fs, s3, memory")
	}
	return nil
}

// Validate validates logging configuration
func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[c.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}

	return nil
}
