package utils

import "time"

// =============================================================================
// Timeout Constants
// =============================================================================

const (
	// DefaultRequestTimeout is the default timeout for HTTP requests
	DefaultRequestTimeout = 30 * time.Second

	// StorageOpTimeout bounds a single session store operation
	StorageOpTimeout = 5 * time.Second

	// ShutdownTimeout is the graceful shutdown budget for the HTTP server
	ShutdownTimeout = 10 * time.Second
)

// =============================================================================
// Simulation Engine Constants
// =============================================================================

const (
	// DefaultReconnectDelay is the fixed wait after an unclean WebSocket close
	DefaultReconnectDelay = 3 * time.Second

	// DefaultMaxReconnects caps reconnect attempts before the client gives up
	DefaultMaxReconnects = 10

	// WSWriteTimeout bounds a single WebSocket write
	WSWriteTimeout = 5 * time.Second
)

// =============================================================================
// Buffer and Batch Size Constants
// =============================================================================

const (
	// DefaultMaxDataPoints is the default visible buffer size
	DefaultMaxDataPoints = 1000

	// DefaultFlushSize is the default number of pending points before a flush
	DefaultFlushSize = 10

	// DefaultListenerBuffer is the channel capacity for buffer listeners
	DefaultListenerBuffer = 64

	// MaxImportBytes caps the size of an imported session file
	MaxImportBytes = 32 << 20
)

// =============================================================================
// Session Constants
// =============================================================================

const (
	// SessionFormatVersion is the version written into exported session files
	SessionFormatVersion = "1.0"

	// DefaultMaxSessions is the default session cap
	DefaultMaxSessions = 10
)

// =============================================================================
// Queue Type Constants
// =============================================================================

// QueueType represents the type of message bus carrying simulation updates
type QueueType string

const (
	// QueueTypeNATS represents NATS JetStream (default)
	QueueTypeNATS QueueType = "nats"

	// QueueTypeRedis represents Redis Streams
	QueueTypeRedis QueueType = "redis"

	// QueueTypeKafka represents Apache Kafka
	QueueTypeKafka QueueType = "kafka"

	// QueueTypeMemory represents the in-process broker (for testing)
	QueueTypeMemory QueueType = "memory"
)
