package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// ============================================================================
// LoggingHook - Logs command execution details
// ============================================================================

// LoggingHook logs each command with its batch summary.
type LoggingHook struct {
	logger       Logger
	logCommands  bool // Log before execution
	logDurations bool // Log execution times
}

// NewLoggingHook creates a new logging hook with the given logger.
func NewLoggingHook(logger Logger, logCommands, logDurations bool) *LoggingHook {
	return &LoggingHook{
		logger:       logger,
		logCommands:  logCommands,
		logDurations: logDurations,
	}
}

func (h *LoggingHook) Name() string {
	return "logging"
}

func (h *LoggingHook) Before(ctx context.Context, hookCtx *HookContext) error {
	if h.logCommands {
		h.logger.Debug("executing command",
			String("command", hookCtx.Command),
			String("type", hookCtx.CommandType),
			Int("statements", len(hookCtx.Statements)),
			String("trace_id", hookCtx.TraceID))
	}
	return nil
}

func (h *LoggingHook) After(ctx context.Context, hookCtx *HookContext) error {
	fields := []Field{
		String("command", hookCtx.Command),
		String("command_type", hookCtx.CommandType),
		String("trace_id", hookCtx.TraceID),
	}
	if hookCtx.Keyspace != "" {
		fields = append(fields, String("keyspace", hookCtx.Keyspace))
	}
	if h.logDurations {
		fields = append(fields, Duration("duration", hookCtx.Duration))
	}

	if hookCtx.Error != nil {
		fields = append(fields, Error("error", hookCtx.Error))
		h.logger.Error("command failed", fields...)
		return nil
	}

	h.logger.Debug("command completed", fields...)
	return nil
}

// ============================================================================
// MetricsHook - Collects execution counters
// ============================================================================

// MetricsHook collects command execution metrics using atomic counters.
type MetricsHook struct {
	TotalCommands   atomic.Uint64
	TotalBatches    atomic.Uint64
	TotalStatements atomic.Uint64
	TotalQueries    atomic.Uint64
	TotalMutations  atomic.Uint64
	TotalErrors     atomic.Uint64
	TotalDurationNs atomic.Uint64
}

// NewMetricsHook creates a new metrics collection hook.
func NewMetricsHook() *MetricsHook {
	return &MetricsHook{}
}

func (h *MetricsHook) Name() string {
	return "metrics"
}

func (h *MetricsHook) Before(ctx context.Context, hookCtx *HookContext) error {
	return nil
}

func (h *MetricsHook) After(ctx context.Context, hookCtx *HookContext) error {
	h.TotalCommands.Add(1)
	h.TotalStatements.Add(uint64(len(hookCtx.Statements)))
	h.TotalDurationNs.Add(uint64(hookCtx.Duration.Nanoseconds()))

	switch hookCtx.CommandType {
	case CommandBatch:
		h.TotalBatches.Add(1)
	case CommandQuery:
		h.TotalQueries.Add(1)
	case CommandMutation:
		h.TotalMutations.Add(1)
	}

	if hookCtx.Error != nil {
		h.TotalErrors.Add(1)
	}
	return nil
}

// GetStats returns current metrics as a map.
func (h *MetricsHook) GetStats() map[string]interface{} {
	totalCmds := h.TotalCommands.Load()
	totalDur := h.TotalDurationNs.Load()

	avgDuration := uint64(0)
	if totalCmds > 0 {
		avgDuration = totalDur / totalCmds
	}

	return map[string]interface{}{
		"total_commands":    totalCmds,
		"total_batches":     h.TotalBatches.Load(),
		"total_statements":  h.TotalStatements.Load(),
		"total_queries":     h.TotalQueries.Load(),
		"total_mutations":   h.TotalMutations.Load(),
		"total_errors":      h.TotalErrors.Load(),
		"total_duration_ns": totalDur,
		"avg_duration_ns":   avgDuration,
	}
}

// Reset clears all metrics.
func (h *MetricsHook) Reset() {
	h.TotalCommands.Store(0)
	h.TotalBatches.Store(0)
	h.TotalStatements.Store(0)
	h.TotalQueries.Store(0)
	h.TotalMutations.Store(0)
	h.TotalErrors.Store(0)
	h.TotalDurationNs.Store(0)
}

// ============================================================================
// TracingHook - Records one span per command
// ============================================================================

// Span is a finished trace entry. For batches Description is the rendered
// run-length summary of the batch.
type Span struct {
	Name        string
	Description string
	TraceID     string
	Service     string
	Keyspace    string
	Statements  int
	Start       time.Time
	Duration    time.Duration
	Err         error
}

// SpanRecorder receives finished spans.
type SpanRecorder interface {
	Record(span Span)
}

// MemoryRecorder keeps spans in memory.
type MemoryRecorder struct {
	mu    sync.Mutex
	spans []Span
}

// NewMemoryRecorder creates an empty recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// Record implements SpanRecorder.
func (r *MemoryRecorder) Record(span Span) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = append(r.spans, span)
}

// Spans returns a copy of the recorded spans.
func (r *MemoryRecorder) Spans() []Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	spans := make([]Span, len(r.spans))
	copy(spans, r.spans)
	return spans
}

// TracingHook turns each command into a Span.
type TracingHook struct {
	serviceName string
	recorder    SpanRecorder
}

// NewTracingHook creates a new tracing hook.
func NewTracingHook(serviceName string, recorder SpanRecorder) *TracingHook {
	return &TracingHook{
		serviceName: serviceName,
		recorder:    recorder,
	}
}

func (h *TracingHook) Name() string {
	return "tracing"
}

func (h *TracingHook) Before(ctx context.Context, hookCtx *HookContext) error {
	hookCtx.Metadata["trace_start"] = time.Now()
	hookCtx.Metadata["trace_service"] = h.serviceName
	return nil
}

func (h *TracingHook) After(ctx context.Context, hookCtx *HookContext) error {
	start, ok := hookCtx.Metadata["trace_start"].(time.Time)
	if !ok {
		start = hookCtx.StartTime
	}

	description := hookCtx.Command
	if hookCtx.Summary != nil {
		description = hookCtx.Summary.String()
	}

	span := Span{
		Name:        "cql " + hookCtx.CommandType,
		Description: description,
		TraceID:     hookCtx.TraceID,
		Service:     h.serviceName,
		Keyspace:    hookCtx.Keyspace,
		Statements:  len(hookCtx.Statements),
		Start:       start,
		Duration:    time.Since(start),
		Err:         hookCtx.Error,
	}
	hookCtx.Metadata["trace_duration"] = span.Duration

	if h.recorder != nil {
		h.recorder.Record(span)
	}
	return nil
}
