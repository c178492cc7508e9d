package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dan-strohschein/cqltrace/statement"
	"github.com/dan-strohschein/cqltrace/transport/mock"
)

func TestLoggingHook(t *testing.T) {
	var buf bytes.Buffer
	hook := NewLoggingHook(NewLogger("DEBUG", &buf), true, true)
	assert.Equal(t, "logging", hook.Name())

	hookCtx := &HookContext{
		Command:     "cql execution: 2 x a",
		CommandType: CommandBatch,
		Keyspace:    "shop",
		TraceID:     "trace-1",
		Duration:    5 * time.Millisecond,
		Metadata:    map[string]interface{}{},
	}
	require.NoError(t, hook.Before(context.Background(), hookCtx))
	require.NoError(t, hook.After(context.Background(), hookCtx))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "command completed", entry["message"])
	assert.Equal(t, "cql execution: 2 x a", entry["command"])
	assert.Equal(t, "shop", entry["keyspace"])
	assert.Equal(t, "5ms", entry["duration"])
}

func TestLoggingHookLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	hook := NewLoggingHook(NewLogger("ERROR", &buf), false, false)

	hookCtx := &HookContext{Command: "x", Error: errors.New("boom"), Metadata: map[string]interface{}{}}
	require.NoError(t, hook.Before(context.Background(), hookCtx))
	require.NoError(t, hook.After(context.Background(), hookCtx))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "boom", entry["error"])
}

func TestMetricsHook(t *testing.T) {
	s, tr := newTestSession(t)
	metrics := NewMetricsHook()
	s.RegisterHook(metrics)

	ctx := context.Background()
	_, err := s.ExecuteBatch(ctx, NewBatch(statement.Logged).Add("a").Add("a").Add("b").Build())
	require.NoError(t, err)
	_, err = s.Execute(ctx, statement.Regular{Query: statement.Some("SELECT * FROM t")})
	require.NoError(t, err)
	_, err = s.Execute(ctx, statement.Regular{Query: statement.Some("INSERT INTO t (a) VALUES (1)")})
	require.NoError(t, err)

	tr.WithSendError(errors.New("down"))
	_, err = s.Execute(ctx, statement.Regular{Query: statement.Some("SELECT 1")})
	require.Error(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, uint64(4), stats["total_commands"])
	assert.Equal(t, uint64(1), stats["total_batches"])
	assert.Equal(t, uint64(6), stats["total_statements"])
	assert.Equal(t, uint64(2), stats["total_queries"])
	assert.Equal(t, uint64(1), stats["total_mutations"])
	assert.Equal(t, uint64(1), stats["total_errors"])

	metrics.Reset()
	assert.Equal(t, uint64(0), metrics.GetStats()["total_commands"])
}

func TestTracingHookRecordsBatchSummary(t *testing.T) {
	rec := NewMemoryRecorder()
	opts := DefaultOptions()
	opts.Logger = NewNoopLogger()
	opts.Keyspace = "shop"
	s := NewSession(mock.NewMockTransport(), &opts)
	s.RegisterHook(NewTracingHook("orders", rec))

	update := statement.NewPrepared("UPDATE stock SET n = ? WHERE id = ?")
	batch := NewBatch(statement.Logged).
		Add("INSERT INTO orders (id) VALUES (1)").
		AddBound(update, 1, "a").
		AddBound(update, 2, "b").
		AddBound(update, 3, "c").
		AddBatch(&statement.Batch{}).
		AddStatement(statement.Unknown{TypeName: "GraphStatement"}).
		Build()

	_, err := s.ExecuteBatch(context.Background(), batch)
	require.NoError(t, err)

	spans := rec.Spans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "cql batch", span.Name)
	assert.Equal(t, "cql execution: INSERT INTO orders (id) VALUES (1), "+
		"3 x UPDATE stock SET n = ? WHERE id = ?, [nested batch statement], "+
		"[unexpected statement type: GraphStatement]", span.Description)
	assert.Equal(t, "orders", span.Service)
	assert.Equal(t, "shop", span.Keyspace)
	assert.Equal(t, 6, span.Statements)
	assert.NotEmpty(t, span.TraceID)
	assert.NoError(t, span.Err)
}

func TestTracingHookSingleStatement(t *testing.T) {
	rec := NewMemoryRecorder()
	s, tr := newTestSession(t)
	s.RegisterHook(NewTracingHook("svc", rec))

	tr.WithReceiveError(errors.New("timeout"))
	_, err := s.Execute(context.Background(), statement.Regular{Query: statement.Some("SELECT * FROM t")})
	require.Error(t, err)

	spans := rec.Spans()
	require.Len(t, spans, 1)
	assert.Equal(t, "cql query", spans[0].Name)
	assert.Equal(t, "SELECT * FROM t", spans[0].Description)
	assert.Error(t, spans[0].Err)
}

func TestTracingHookWithoutRecorder(t *testing.T) {
	hook := NewTracingHook("svc", nil)
	hookCtx := &HookContext{Metadata: map[string]interface{}{}}
	require.NoError(t, hook.Before(context.Background(), hookCtx))
	require.NoError(t, hook.After(context.Background(), hookCtx))
	assert.Contains(t, hookCtx.Metadata, "trace_duration")
}
