// Package tcp sends frames to a coordinator over a single TCP connection.
package tcp

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dan-strohschein/cqltrace/protocol"
	"github.com/dan-strohschein/cqltrace/transport"
)

// Options configures the TCP transport
type Options struct {
	// Address is the server address (host:port)
	Address string

	// Timeout bounds dialing and the TLS handshake
	Timeout time.Duration

	// TLS configuration
	UseTLS     bool
	CertPath   string
	KeyPath    string
	SkipVerify bool
}

// Transport implements transport.Transport over one lazily dialed
// connection. A failed read or write drops the connection and the next
// Send dials again.
type Transport struct {
	opts Options

	mu     sync.Mutex
	conn   *tcpConnection
	closed bool

	totalRequests atomic.Int64
	totalErrors   atomic.Int64
	bytesSent     atomic.Int64
	bytesReceived atomic.Int64
	latencySum    atomic.Int64 // nanoseconds
}

var _ transport.Transport = (*Transport)(nil)

// New validates opts and returns a transport. No connection is made until
// the first Send.
func New(opts Options) (*Transport, error) {
	if opts.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Transport{opts: opts}, nil
}

// Send implements transport.Transport
func (t *Transport) Send(ctx context.Context, data []byte) error {
	start := time.Now()
	t.totalRequests.Add(1)

	conn, err := t.connection(ctx)
	if err != nil {
		t.totalErrors.Add(1)
		return err
	}

	if err := conn.write(ctx, data); err != nil {
		t.drop(conn)
		t.totalErrors.Add(1)
		return err
	}

	t.bytesSent.Add(int64(len(data)))
	t.latencySum.Add(int64(time.Since(start)))
	return nil
}

// Receive implements transport.Transport
func (t *Transport) Receive(ctx context.Context) ([]byte, error) {
	t.mu.Lock()
	conn, closed := t.conn, t.closed
	t.mu.Unlock()
	if closed {
		return nil, protocol.ClosedError()
	}
	if conn == nil {
		t.totalErrors.Add(1)
		return nil, protocol.NewTransportError(protocol.ErrorCodeProtocolError, "receive without a pending frame", nil)
	}

	data, err := conn.read(ctx)
	if err != nil {
		t.drop(conn)
		t.totalErrors.Add(1)
		return nil, err
	}

	t.bytesReceived.Add(int64(len(data)))
	// the codec expects the terminator
	return append(data, protocol.EOT), nil
}

// Close implements transport.Transport
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.conn != nil {
		err := t.conn.close()
		t.conn = nil
		return err
	}
	return nil
}

// IsHealthy implements transport.Transport
func (t *Transport) IsHealthy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}

// GetMetrics implements transport.Transport
func (t *Transport) GetMetrics() transport.Metrics {
	totalReqs := t.totalRequests.Load()
	avgLatency := time.Duration(0)
	if totalReqs > 0 {
		avgLatency = time.Duration(t.latencySum.Load() / totalReqs)
	}

	return transport.Metrics{
		TotalRequests:  totalReqs,
		TotalErrors:    t.totalErrors.Load(),
		AverageLatency: avgLatency,
		BytesSent:      t.bytesSent.Load(),
		BytesReceived:  t.bytesReceived.Load(),
	}
}

func (t *Transport) connection(ctx context.Context) (*tcpConnection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, protocol.ClosedError()
	}
	if t.conn != nil && t.conn.isAlive() {
		return t.conn, nil
	}

	conn, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}
	t.conn = conn
	return conn, nil
}

func (t *Transport) drop(conn *tcpConnection) {
	conn.close()
	t.mu.Lock()
	if t.conn == conn {
		t.conn = nil
	}
	t.mu.Unlock()
}

// dial opens a TCP connection with optional TLS
func (t *Transport) dial(ctx context.Context) (*tcpConnection, error) {
	dialer := net.Dialer{Timeout: t.opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.opts.Address)
	if err != nil {
		return nil, protocol.ConnectionError(fmt.Sprintf("failed to connect to %s", t.opts.Address), map[string]interface{}{
			"address": t.opts.Address,
			"timeout": t.opts.Timeout.String(),
			"error":   err.Error(),
		})
	}

	if t.opts.UseTLS {
		tlsConfig, err := t.buildTLSConfig()
		if err != nil {
			conn.Close()
			return nil, err
		}

		tlsConn := tls.Client(conn, tlsConfig)
		hsCtx, cancel := context.WithTimeout(ctx, t.opts.Timeout)
		defer cancel()
		if err := tlsConn.HandshakeContext(hsCtx); err != nil {
			tlsConn.Close()
			return nil, protocol.ConnectionError("TLS handshake failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		conn = tlsConn
	}

	scanner := bufio.NewScanner(conn)
	scanner.Split(splitAtEOT)

	return &tcpConnection{conn: conn, scanner: scanner, alive: true}, nil
}

func (t *Transport) buildTLSConfig() (*tls.Config, error) {
	host, _, err := net.SplitHostPort(t.opts.Address)
	if err != nil {
		host = t.opts.Address
	}
	tlsConfig := &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: t.opts.SkipVerify,
	}

	if t.opts.CertPath != "" && t.opts.KeyPath != "" {
		cert, err := tls.LoadX509KeyPair(t.opts.CertPath, t.opts.KeyPath)
		if err != nil {
			return nil, protocol.ConnectionError("failed to load TLS certificate", map[string]interface{}{
				"certPath": t.opts.CertPath,
				"keyPath":  t.opts.KeyPath,
				"error":    err.Error(),
			})
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// splitAtEOT splits replies on EOT and drops the terminator. Bytes left
// without a terminator when the stream ends are a truncated reply.
func splitAtEOT(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, protocol.EOT); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return 0, nil, io.ErrUnexpectedEOF
	}
	return 0, nil, nil
}

type tcpConnection struct {
	conn    net.Conn
	scanner *bufio.Scanner
	mu      sync.Mutex
	alive   bool
}

func (c *tcpConnection) write(ctx context.Context, data []byte) error {
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if _, err := c.conn.Write(data); err != nil {
		return err
	}
	return nil
}

func (c *tcpConnection) read(ctx context.Context) ([]byte, error) {
	// zero deadline clears one left by an earlier call
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("connection closed before reply")
	}

	// scanner reuses its buffer
	data := c.scanner.Bytes()
	result := make([]byte, len(data), len(data)+1)
	copy(result, data)
	return result, nil
}

func (c *tcpConnection) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.alive {
		return nil
	}
	c.alive = false
	return c.conn.Close()
}

func (c *tcpConnection) isAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}
