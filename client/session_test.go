package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dan-strohschein/cqltrace/protocol"
	"github.com/dan-strohschein/cqltrace/statement"
	"github.com/dan-strohschein/cqltrace/transport/mock"
)

func TestSessionExecuteBatchSendsFrame(t *testing.T) {
	s, tr := newTestSession(t)

	batch := NewBatch(statement.Unlogged).Add("INSERT INTO t (a) VALUES (1)").Add("INSERT INTO t (a) VALUES (1)").Build()
	resp, err := s.ExecuteBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "applied", resp.Message)

	assert.Equal(t, "BATCH UNLOGGED\x05QUERY INSERT INTO t (a) VALUES (1)\x05QUERY INSERT INTO t (a) VALUES (1)\x04",
		string(tr.LastSent()))
}

func TestSessionExecuteBatchRejectsEmpty(t *testing.T) {
	s, tr := newTestSession(t)

	_, err := s.ExecuteBatch(context.Background(), NewBatch(statement.Logged).Build())
	assert.True(t, IsCode(err, CodeEmptyBatch))

	_, err = s.ExecuteBatch(context.Background(), nil)
	assert.True(t, IsCode(err, CodeEmptyBatch))
	assert.Equal(t, 0, tr.GetSendCallCount())
}

func TestSessionExecuteBatchToleratesMissingText(t *testing.T) {
	s, _ := newTestSession(t)
	h := &TestHook{name: "inspect"}
	s.RegisterHook(h)

	batch := &statement.Batch{Statements: []statement.Statement{
		statement.Regular{},
		statement.Bound{},
		statement.Bound{Prepared: &statement.Prepared{ID: "x"}},
	}}
	_, err := s.ExecuteBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, "cql execution: 3 x ", h.seen.Command)
}

func TestSessionMessagePrefix(t *testing.T) {
	opts := DefaultOptions()
	opts.Logger = NewNoopLogger()
	opts.MessagePrefix = "cassandra batch: "
	s := NewSession(mock.NewMockTransport(), &opts)
	h := &TestHook{name: "inspect"}
	s.RegisterHook(h)

	_, err := s.ExecuteBatch(context.Background(), NewBatch(statement.Logged).Add("a").Add("b").Build())
	require.NoError(t, err)
	assert.Equal(t, "cassandra batch: a, b", h.seen.Command)
}

func TestSessionPrepareAndBind(t *testing.T) {
	s, tr := newTestSession(t)
	ctx := context.Background()
	query := "SELECT v FROM kv WHERE k = ?"

	p, err := s.Prepare(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, statement.PreparedID(query), p.ID)
	assert.Equal(t, "PREPARE\x05"+query+"\x04", string(tr.LastSent()))

	again, err := s.Prepare(ctx, query)
	require.NoError(t, err)
	assert.Same(t, p, again)
	assert.Equal(t, 1, tr.GetSendCallCount())

	bound, err := s.Bind(p.ID, "k1")
	require.NoError(t, err)
	assert.Same(t, p, bound.Prepared)
	assert.Equal(t, []any{"k1"}, bound.Values)

	_, err = s.Bind("missing")
	assert.True(t, IsCode(err, CodeUnknownPrepared))

	unresolved := s.Resolve("missing", 1)
	assert.Nil(t, unresolved.Prepared)
	assert.Equal(t, "", statement.Canonical(unresolved))

	resp, err := s.Execute(ctx, bound)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "STATEMENT\x05EXECUTE "+p.ID+" (k1)\x04", string(tr.LastSent()))

	stats := s.PreparedStats()
	assert.Equal(t, 1, stats.Size)
	assert.GreaterOrEqual(t, stats.Hits, int64(2))
}

func TestSessionPrepareRejectsEmpty(t *testing.T) {
	s, _ := newTestSession(t)
	_, err := s.Prepare(context.Background(), "")
	assert.True(t, IsCode(err, CodeEmptyQuery))
}

func TestSessionPrepareFailureIsNotCached(t *testing.T) {
	s, tr := newTestSession(t)
	tr.WithReceiveError(errors.New("unavailable"))

	_, err := s.Prepare(context.Background(), "SELECT 1")
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeReceiveFailed))
	assert.Equal(t, 0, s.PreparedStats().Size)
}

func TestSessionExecuteValidation(t *testing.T) {
	s, tr := newTestSession(t)
	ctx := context.Background()

	_, err := s.Execute(ctx, statement.Regular{})
	assert.True(t, IsCode(err, CodeEmptyQuery))

	_, err = s.Execute(ctx, statement.Bound{})
	assert.True(t, IsCode(err, CodeUnknownPrepared))

	_, err = s.Execute(ctx, &statement.Bound{})
	assert.True(t, IsCode(err, CodeUnknownPrepared))
	assert.Equal(t, 0, tr.GetSendCallCount())
}

func TestSessionExecuteDelegatesBatch(t *testing.T) {
	s, tr := newTestSession(t)
	batch := NewBatch(statement.Counter).Add("UPDATE c SET n = n + 1 WHERE id = 1").Build()

	_, err := s.Execute(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, "BATCH COUNTER\x05QUERY UPDATE c SET n = n + 1 WHERE id = 1\x04", string(tr.LastSent()))
}

func TestSessionServerRejection(t *testing.T) {
	s, tr := newTestSession(t)
	tr.WithReply([]byte(`{"success":false,"error":"unconfigured table t","code":"2200"}` + "\x04"))
	h := &TestHook{name: "inspect"}
	s.RegisterHook(h)

	_, err := s.ExecuteBatch(context.Background(), NewBatch(statement.Logged).Add("INSERT INTO t (a) VALUES (1)").Build())
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeServerError))

	var terr *protocol.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "unconfigured table t", terr.Message)

	require.NotNil(t, h.seen.Result)
	assert.False(t, h.seen.Result.Success)
	assert.Equal(t, err, h.seen.Error)
}

func TestSessionSendFailure(t *testing.T) {
	s, tr := newTestSession(t)
	sendErr := errors.New("broken pipe")
	tr.WithSendError(sendErr)

	_, err := s.Execute(context.Background(), statement.Regular{Query: statement.Some("SELECT 1")})
	assert.True(t, IsCode(err, CodeSendFailed))
	assert.ErrorIs(t, err, sendErr)
}

func TestSessionDefaultTimeout(t *testing.T) {
	s, tr := newTestSession(t)
	s.opts.DefaultTimeout = 10 * time.Millisecond
	tr.WithSendDelay(time.Second)

	_, err := s.Execute(context.Background(), statement.Regular{Query: statement.Some("SELECT 1")})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSessionTraceIDOnContext(t *testing.T) {
	s, _ := newTestSession(t)
	var seen string
	s.RegisterHook(hookFunc{name: "ctx", before: func(ctx context.Context, hookCtx *HookContext) error {
		seen, _ = TraceIDFromContext(ctx)
		assert.Equal(t, hookCtx.TraceID, seen)
		return nil
	}})

	_, err := s.Execute(context.Background(), statement.Regular{Query: statement.Some("SELECT 1")})
	require.NoError(t, err)
	assert.NotEmpty(t, seen)
}

func TestSessionClose(t *testing.T) {
	s, tr := newTestSession(t)
	_, err := s.Prepare(context.Background(), "SELECT 1")
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, tr.GetCloseCallCount())
	assert.Equal(t, 0, s.PreparedStats().Size)

	_, err = s.ExecuteBatch(context.Background(), NewBatch(statement.Logged).Add("a").Build())
	assert.True(t, IsCode(err, CodeSessionClosed))
}

func TestSessionDebugMode(t *testing.T) {
	s, _ := newTestSession(t)
	assert.False(t, s.IsDebugMode())
	s.SetDebugMode(true)
	assert.True(t, s.IsDebugMode())

	_, err := s.Execute(context.Background(), statement.Regular{Query: statement.Some("SELECT 1")})
	require.NoError(t, err)
}

type hookFunc struct {
	name   string
	before func(ctx context.Context, hookCtx *HookContext) error
}

func (h hookFunc) Name() string { return h.name }
func (h hookFunc) Before(ctx context.Context, hookCtx *HookContext) error {
	return h.before(ctx, hookCtx)
}
func (h hookFunc) After(ctx context.Context, hookCtx *HookContext) error { return nil }
