// Package mock provides an in-memory Transport that records every frame it
// is given and answers with a configured reply.
package mock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dan-strohschein/cqltrace/protocol"
	"github.com/dan-strohschein/cqltrace/transport"
)

// DefaultReply is returned by Receive when no reply has been configured.
var DefaultReply = []byte(`{"success":true,"message":"applied"}` + string(protocol.EOT))

// MockTransport implements transport.Transport for tests and dry runs
type MockTransport struct {
	sendErr    error
	receiveErr error
	reply      []byte
	healthy    bool
	sendDelay  time.Duration

	sendCalls    atomic.Int32
	receiveCalls atomic.Int32
	closeCalls   atomic.Int32

	totalRequests atomic.Int64
	totalErrors   atomic.Int64
	bytesSent     atomic.Int64
	bytesReceived atomic.Int64
	latencySum    atomic.Int64

	mu          sync.RWMutex
	closed      bool
	sendHistory [][]byte
}

// NewMockTransport creates a healthy mock transport that acknowledges every frame
func NewMockTransport() *MockTransport {
	return &MockTransport{
		healthy: true,
		reply:   DefaultReply,
	}
}

// WithSendError configures the transport to fail on Send
func (m *MockTransport) WithSendError(err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
	return m
}

// WithReceiveError configures the transport to fail on Receive
func (m *MockTransport) WithReceiveError(err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receiveErr = err
	return m
}

// WithReply configures the frame returned by Receive. A nil reply makes
// Receive time out.
func (m *MockTransport) WithReply(data []byte) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reply = data
	return m
}

// WithHealthy configures the health status
func (m *MockTransport) WithHealthy(healthy bool) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = healthy
	return m
}

// WithSendDelay adds a delay to Send
func (m *MockTransport) WithSendDelay(delay time.Duration) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendDelay = delay
	return m
}

// Send implements transport.Transport
func (m *MockTransport) Send(ctx context.Context, data []byte) error {
	m.sendCalls.Add(1)
	m.totalRequests.Add(1)

	m.mu.RLock()
	closed := m.closed
	delay := m.sendDelay
	sendErr := m.sendErr
	m.mu.RUnlock()

	if closed {
		m.totalErrors.Add(1)
		return protocol.ClosedError()
	}

	if delay > 0 {
		select {
		case <-ctx.Done():
			m.totalErrors.Add(1)
			return ctx.Err()
		case <-time.After(delay):
		}
		m.latencySum.Add(int64(delay))
	}

	if sendErr != nil {
		m.totalErrors.Add(1)
		return sendErr
	}

	frame := make([]byte, len(data))
	copy(frame, data)

	m.mu.Lock()
	m.sendHistory = append(m.sendHistory, frame)
	m.mu.Unlock()

	m.bytesSent.Add(int64(len(data)))
	return nil
}

// Receive implements transport.Transport
func (m *MockTransport) Receive(ctx context.Context) ([]byte, error) {
	m.receiveCalls.Add(1)

	m.mu.RLock()
	closed := m.closed
	receiveErr := m.receiveErr
	reply := m.reply
	m.mu.RUnlock()

	if closed {
		m.totalErrors.Add(1)
		return nil, protocol.ClosedError()
	}
	if err := ctx.Err(); err != nil {
		m.totalErrors.Add(1)
		return nil, err
	}
	if receiveErr != nil {
		m.totalErrors.Add(1)
		return nil, receiveErr
	}
	if reply == nil {
		m.totalErrors.Add(1)
		return nil, protocol.TimeoutError("no data available", nil)
	}

	m.bytesReceived.Add(int64(len(reply)))
	return reply, nil
}

// Close implements transport.Transport
func (m *MockTransport) Close() error {
	m.closeCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// IsHealthy implements transport.Transport
func (m *MockTransport) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy && !m.closed
}

// GetMetrics implements transport.Transport
func (m *MockTransport) GetMetrics() transport.Metrics {
	totalReqs := m.totalRequests.Load()
	avgLatency := time.Duration(0)
	if totalReqs > 0 {
		avgLatency = time.Duration(m.latencySum.Load() / totalReqs)
	}

	return transport.Metrics{
		TotalRequests:  totalReqs,
		TotalErrors:    m.totalErrors.Load(),
		AverageLatency: avgLatency,
		BytesSent:      m.bytesSent.Load(),
		BytesReceived:  m.bytesReceived.Load(),
	}
}

// GetSendCallCount returns the number of times Send was called
func (m *MockTransport) GetSendCallCount() int {
	return int(m.sendCalls.Load())
}

// GetReceiveCallCount returns the number of times Receive was called
func (m *MockTransport) GetReceiveCallCount() int {
	return int(m.receiveCalls.Load())
}

// GetCloseCallCount returns the number of times Close was called
func (m *MockTransport) GetCloseCallCount() int {
	return int(m.closeCalls.Load())
}

// GetSendHistory returns a copy of every frame sent
func (m *MockTransport) GetSendHistory() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := make([][]byte, len(m.sendHistory))
	copy(history, m.sendHistory)
	return history
}

// LastSent returns the most recent frame, or nil
func (m *MockTransport) LastSent() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.sendHistory) == 0 {
		return nil
	}
	return m.sendHistory[len(m.sendHistory)-1]
}

// IsClosed returns whether the transport has been closed
func (m *MockTransport) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
