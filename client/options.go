package client

import (
	"time"

	"github.com/dan-strohschein/cqltrace/summary"
)

// SessionOptions configures a Session.
type SessionOptions struct {
	// Keyspace is attached to log lines and spans.
	Keyspace string

	// DefaultTimeout bounds each Execute and ExecuteBatch call when the
	// caller's context has no deadline. Zero disables it.
	// Default: 10s
	DefaultTimeout time.Duration

	// DebugMode makes returned errors carry stack traces when formatted and
	// logs raw frames at DEBUG level.
	// Default: false
	DebugMode bool

	// Logger is the logger implementation to use.
	// If nil, a JSON logger at LogLevel is used.
	Logger Logger

	// LogLevel sets the minimum log level (DEBUG, INFO, WARN, ERROR).
	// Default: "INFO"
	LogLevel string

	// PreparedCacheSize is the maximum number of prepared statements kept.
	// Default: 100
	PreparedCacheSize int

	// MessagePrefix labels batch summaries.
	// Default: "cql execution: "
	MessagePrefix string
}

// DefaultOptions returns SessionOptions with default values.
func DefaultOptions() SessionOptions {
	return SessionOptions{
		DefaultTimeout:    10 * time.Second,
		DebugMode:         false,
		LogLevel:          "INFO",
		PreparedCacheSize: 100,
		MessagePrefix:     summary.Prefix,
	}
}
