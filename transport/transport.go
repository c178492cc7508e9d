// Package transport defines how encoded frames reach a CQL coordinator.
package transport

import (
	"context"
	"time"
)

// Transport sends encoded frames and reads the replies.
type Transport interface {
	// Send transmits one frame
	Send(ctx context.Context, data []byte) error

	// Receive reads the reply to the last frame
	Receive(ctx context.Context) ([]byte, error)

	// Close closes the transport
	Close() error

	// IsHealthy returns whether the transport can accept frames
	IsHealthy() bool

	// GetMetrics returns transport counters
	GetMetrics() Metrics
}

// Metrics contains transport counters.
type Metrics struct {
	// TotalRequests is the number of frames sent
	TotalRequests int64

	// TotalErrors is the number of failed sends and receives
	TotalErrors int64

	// AverageLatency is the mean delay applied per request
	AverageLatency time.Duration

	// BytesSent is the total bytes sent
	BytesSent int64

	// BytesReceived is the total bytes received
	BytesReceived int64
}
