package client

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dan-strohschein/cqltrace/protocol"
	"github.com/dan-strohschein/cqltrace/statement"
	"github.com/dan-strohschein/cqltrace/summary"
	"github.com/dan-strohschein/cqltrace/transport"
)

// Session executes statements and batches over a transport, running the
// registered hooks around every command.
type Session struct {
	transport transport.Transport
	codec     protocol.Codec
	opts      SessionOptions
	logger    Logger
	hooks     hookChain
	prepared  *PreparedCache
	debugMode atomic.Bool
	closed    atomic.Bool
}

// NewSession creates a session on tr. If opts is nil, default options are used.
func NewSession(tr transport.Transport, opts *SessionOptions) *Session {
	if opts == nil {
		defaultOpts := DefaultOptions()
		opts = &defaultOpts
	}

	logger := opts.Logger
	if logger == nil {
		logger = NewLogger(opts.LogLevel, nil)
	}
	if opts.Keyspace != "" {
		logger = logger.WithFields(String("keyspace", opts.Keyspace))
	}

	s := &Session{
		transport: tr,
		codec:     protocol.NewCodec(),
		opts:      *opts,
		logger:    logger,
		prepared:  NewPreparedCache(opts.PreparedCacheSize),
	}
	if s.opts.MessagePrefix == "" {
		s.opts.MessagePrefix = summary.Prefix
	}
	s.hooks.logger = logger
	s.debugMode.Store(opts.DebugMode)

	return s
}

// RegisterHook adds a hook to the session's hook chain.
// Hooks are executed in FIFO order. A hook with the same name is replaced.
func (s *Session) RegisterHook(hook Hook) {
	s.hooks.register(hook)
}

// UnregisterHook removes a hook by name and reports whether it was found.
func (s *Session) UnregisterHook(name string) bool {
	return s.hooks.unregister(name)
}

// GetHooks returns the names of all registered hooks in execution order.
func (s *Session) GetHooks() []string {
	return s.hooks.names()
}

// SetDebugMode toggles frame logging and verbose error formatting.
func (s *Session) SetDebugMode(enabled bool) {
	s.debugMode.Store(enabled)
}

// IsDebugMode reports whether debug mode is enabled.
func (s *Session) IsDebugMode() bool {
	return s.debugMode.Load()
}

// PreparedStats returns the prepared statement cache counters.
func (s *Session) PreparedStats() CacheStats {
	return s.prepared.Stats()
}

// Prepare registers query with the server and caches the resulting
// prepared statement. Preparing the same text twice returns the cached entry.
func (s *Session) Prepare(ctx context.Context, query string) (*statement.Prepared, error) {
	if query == "" {
		return nil, ErrEmptyQuery("Prepare")
	}
	id := statement.PreparedID(query)
	if p, ok := s.prepared.Get(id); ok {
		return p, nil
	}

	hookCtx := s.newHookContext(query, CommandPrepare, nil, nil)
	if _, err := s.roundTrip(ctx, hookCtx, s.codec.EncodePrepare(query)); err != nil {
		return nil, err
	}

	p := &statement.Prepared{ID: id, Query: statement.Some(query)}
	if evicted := s.prepared.Add(p); evicted != nil {
		s.logger.Debug("evicted prepared statement",
			String("prepared_id", evicted.ID),
			String("query", evicted.Query.OrEmpty()))
	}
	s.logger.Debug("prepared statement", String("prepared_id", id), String("query", query))
	return p, nil
}

// Bind returns a Bound statement for the prepared statement registered
// under id.
func (s *Session) Bind(id string, values ...any) (statement.Bound, error) {
	p, ok := s.prepared.Get(id)
	if !ok {
		return statement.Bound{}, ErrUnknownPrepared(id)
	}
	return statement.Bound{Prepared: p, Values: values}, nil
}

// Resolve is like Bind but never fails: an unknown id yields a Bound with
// no template.
func (s *Session) Resolve(id string, values ...any) statement.Bound {
	p, _ := s.prepared.Get(id)
	return statement.Bound{Prepared: p, Values: values}
}

// Execute runs a single statement. Batches are delegated to ExecuteBatch.
func (s *Session) Execute(ctx context.Context, stmt statement.Statement) (*protocol.Response, error) {
	if b, ok := stmt.(*statement.Batch); ok {
		return s.ExecuteBatch(ctx, b)
	}

	query := statement.Canonical(stmt)
	switch st := stmt.(type) {
	case statement.Regular, *statement.Regular:
		if query == "" {
			return nil, ErrEmptyQuery("Execute")
		}
	case statement.Bound:
		if st.Prepared == nil {
			return nil, ErrUnknownPrepared("")
		}
	case *statement.Bound:
		if st == nil || st.Prepared == nil {
			return nil, ErrUnknownPrepared("")
		}
	}

	hookCtx := s.newHookContext(query, inferCommandType(query), []statement.Statement{stmt}, nil)
	return s.roundTrip(ctx, hookCtx, s.codec.EncodeStatement(stmt))
}

// ExecuteBatch sends b as one unit. The command label seen by hooks and
// logs is the run-length summary of the batch's statements.
// An empty or nil batch is not sent; hooks still see it, labelled with the
// bare prefix, and it fails with E_EMPTY_BATCH.
func (s *Session) ExecuteBatch(ctx context.Context, b *statement.Batch) (*protocol.Response, error) {
	var stmts []statement.Statement
	batchType := statement.Logged
	if b != nil {
		stmts = b.Statements
		batchType = b.Type
	}

	msg := summary.NewMessageWithPrefix(s.opts.MessagePrefix, stmts)
	hookCtx := s.newHookContext(msg.String(), CommandBatch, stmts, msg)
	hookCtx.Metadata["batch_type"] = batchType.String()
	if len(stmts) == 0 {
		return nil, s.reject(ctx, hookCtx, ErrEmptyBatch())
	}
	return s.roundTrip(ctx, hookCtx, s.codec.EncodeBatch(b))
}

// Close closes the session and its transport. Closing twice is a no-op.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.prepared.Clear()
	s.logger.Info("session closed")
	return s.transport.Close()
}

func (s *Session) newHookContext(command, commandType string, stmts []statement.Statement, msg *summary.Message) *HookContext {
	return &HookContext{
		Command:     command,
		CommandType: commandType,
		Statements:  stmts,
		Summary:     msg,
		Keyspace:    s.opts.Keyspace,
		Metadata:    make(map[string]interface{}),
		TraceID:     uuid.New().String(),
	}
}

// roundTrip sends frame and decodes the reply, running hooks around it.
func (s *Session) roundTrip(ctx context.Context, hookCtx *HookContext, frame []byte) (*protocol.Response, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed(hookCtx.CommandType)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.opts.DefaultTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.DefaultTimeout)
		defer cancel()
	}
	ctx = ContextWithTraceID(ctx, hookCtx.TraceID)

	hookCtx.StartTime = time.Now()
	if err := s.hooks.before(ctx, hookCtx); err != nil {
		return nil, err
	}

	debugMode := s.IsDebugMode()
	if debugMode {
		s.logger.Debug("sending frame",
			TraceIDField(ctx),
			String("command", hookCtx.Command),
			Int("bytes", len(frame)))
	}

	resp, err := s.exchange(ctx, hookCtx.Command, frame)
	hookCtx.Result = resp
	hookCtx.Error = err
	hookCtx.Duration = time.Since(hookCtx.StartTime)

	if debugMode {
		s.logger.Debug("received reply",
			TraceIDField(ctx),
			Duration("elapsed", hookCtx.Duration),
			Bool("success", err == nil))
	}

	if hookErr := s.hooks.after(ctx, hookCtx); hookErr != nil {
		err = hookErr
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// reject runs the hooks for a command that fails validation, without
// touching the transport. Hook errors win over err, as in roundTrip.
func (s *Session) reject(ctx context.Context, hookCtx *HookContext, err error) error {
	if s.closed.Load() {
		return ErrSessionClosed(hookCtx.CommandType)
	}
	ctx = ContextWithTraceID(ctx, hookCtx.TraceID)

	hookCtx.StartTime = time.Now()
	if hookErr := s.hooks.before(ctx, hookCtx); hookErr != nil {
		return hookErr
	}

	hookCtx.Error = err
	hookCtx.Duration = time.Since(hookCtx.StartTime)
	if hookErr := s.hooks.after(ctx, hookCtx); hookErr != nil {
		return hookErr
	}
	return err
}

func (s *Session) exchange(ctx context.Context, command string, frame []byte) (*protocol.Response, error) {
	if err := s.transport.Send(ctx, frame); err != nil {
		s.logger.Error("failed to send frame", String("command", command), Error("error", err))
		return nil, wrapTransportError(CodeSendFailed, "failed to send command", command, err)
	}

	raw, err := s.transport.Receive(ctx)
	if err != nil {
		s.logger.Error("failed to receive reply", String("command", command), Error("error", err))
		return nil, wrapTransportError(CodeReceiveFailed, "failed to receive reply", command, err)
	}

	resp, err := s.codec.Decode(raw)
	if err != nil {
		return nil, wrapTransportError(CodeReceiveFailed, "failed to decode reply", command, err)
	}
	if !resp.Success {
		cause := protocol.QueryError(resp.Error, resp.Details)
		return resp, wrapTransportError(CodeServerError, fmt.Sprintf("server rejected command (%s)", resp.Code), command, cause)
	}
	return resp, nil
}
