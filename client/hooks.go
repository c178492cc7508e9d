package client

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dan-strohschein/cqltrace/protocol"
	"github.com/dan-strohschein/cqltrace/statement"
	"github.com/dan-strohschein/cqltrace/summary"
)

// Command types reported in HookContext.CommandType.
const (
	CommandBatch    = "batch"
	CommandQuery    = "query"
	CommandMutation = "mutation"
	CommandSchema   = "schema"
	CommandPrepare  = "prepare"
	CommandUnknown  = "unknown"
)

// HookContext describes the command being executed.
// It is passed to hooks to allow inspection and modification.
type HookContext struct {
	// Command is the human readable form of the command: the query text for
	// single statements, the batch summary for batches
	Command string

	// CommandType categorizes the command (batch, query, mutation, ...)
	CommandType string

	// Statements are the statements sent, one for single executions
	Statements []statement.Statement

	// Summary is the run-length summary of Statements, set for batches
	Summary *summary.Message

	// Keyspace is the session keyspace, if configured
	Keyspace string

	// StartTime is when the command execution began
	StartTime time.Time

	// Metadata allows hooks to pass data between Before and After
	Metadata map[string]interface{}

	// TraceID is the unique identifier for this command execution
	TraceID string

	// Result is the decoded reply (available in After)
	Result *protocol.Response

	// Error is any error that occurred (available in After)
	Error error

	// Duration is the execution time (available in After)
	Duration time.Duration
}

// Hook is the interface that all hooks must implement.
type Hook interface {
	// Name returns the unique name of this hook
	Name() string

	// Before is called before command execution.
	// Returning an error aborts the command and returns the error.
	Before(ctx context.Context, hookCtx *HookContext) error

	// After is called after command execution, even if it failed.
	// Returning an error replaces any existing error.
	After(ctx context.Context, hookCtx *HookContext) error
}

// hookChain runs hooks in registration order.
type hookChain struct {
	mu     sync.RWMutex
	hooks  []Hook
	logger Logger
}

// register adds hook, replacing a hook with the same name in place.
func (c *hookChain) register(hook Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, h := range c.hooks {
		if h.Name() == hook.Name() {
			c.hooks[i] = hook
			c.logger.Info("hook replaced", String("hook", hook.Name()))
			return
		}
	}

	c.hooks = append(c.hooks, hook)
	c.logger.Info("hook registered", String("hook", hook.Name()), Int("order", len(c.hooks)-1))
}

func (c *hookChain) unregister(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, h := range c.hooks {
		if h.Name() == name {
			c.hooks = append(c.hooks[:i], c.hooks[i+1:]...)
			c.logger.Info("hook unregistered", String("hook", name))
			return true
		}
	}
	return false
}

func (c *hookChain) names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, len(c.hooks))
	for i, h := range c.hooks {
		names[i] = h.Name()
	}
	return names
}

func (c *hookChain) snapshot() []Hook {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hooks := make([]Hook, len(c.hooks))
	copy(hooks, c.hooks)
	return hooks
}

// before runs Before hooks in order, stopping at the first error.
func (c *hookChain) before(ctx context.Context, hookCtx *HookContext) error {
	for _, hook := range c.snapshot() {
		if err := hook.Before(ctx, hookCtx); err != nil {
			c.logger.Debug("hook aborted command",
				String("hook", hook.Name()),
				String("command", hookCtx.Command),
				Error("error", err))
			return err
		}
	}
	return nil
}

// after runs every After hook and returns the last error.
func (c *hookChain) after(ctx context.Context, hookCtx *HookContext) error {
	var lastErr error
	for _, hook := range c.snapshot() {
		if err := hook.After(ctx, hookCtx); err != nil {
			c.logger.Debug("hook returned error in After",
				String("hook", hook.Name()),
				String("command", hookCtx.Command),
				Error("error", err))
			lastErr = err
		}
	}
	return lastErr
}

// inferCommandType classifies a CQL statement by its leading keyword.
func inferCommandType(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return CommandUnknown
	}

	switch strings.ToUpper(fields[0]) {
	case "SELECT":
		return CommandQuery
	case "INSERT", "UPDATE", "DELETE":
		return CommandMutation
	case "BEGIN", "APPLY":
		return CommandBatch
	case "CREATE", "ALTER", "DROP", "TRUNCATE":
		return CommandSchema
	default:
		return CommandUnknown
	}
}
