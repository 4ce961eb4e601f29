package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDirectories ensures all required directories exist
func (c *Config) EnsureDirectories() error {
	var dirs []string
	if c.Sessions.Backend == "file" {
		dirs = append(dirs, c.Sessions.Dir)
	}
	if c.Export.Driver == "" || c.Export.Driver == "fs" {
		dirs = append(dirs, c.Export.Dir)
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

// GetExportPath returns the full path for an exported file under the fs driver
func (c *Config) GetExportPath(filename string) string {
	return filepath.Join(c.Export.Dir, filename)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Logging.Level == "debug" && c.Logging.Format == "console"
}

// GetServerAddress returns the HTTP listen address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.HTTPPort)
}

// BodyLimitBytes returns the request body cap, 0 for fiber's default
func (c *ServerConfig) BodyLimitBytes() int {
	if c.BodyLimitMB <= 0 {
		return 0
	}
	return c.BodyLimitMB * 1024 * 1024
}

// WebSocketURL returns the spatial WebSocket endpoint for a simulation
func (c *SimulationConfig) WebSocketURL(simulationID string) string {
	scheme := "ws"
	if c.Secure {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d/ws/spatial/%s", scheme, c.WSHost, c.WSPort, simulationID)
}

// HeapLimitBytes returns the heap limit in bytes
func (c *MemoryConfig) HeapLimitBytes() uint64 {
	if c.HeapLimitMB <= 0 {
		return 0
	}
	return uint64(c.HeapLimitMB) * 1024 * 1024
}
