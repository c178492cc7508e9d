package client

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel converts a string to a LogLevel. Unknown values map to INFO.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Field represents a structured log field.
type Field struct {
	Key   string
	Value interface{}
}

func String(key, val string) Field          { return Field{Key: key, Value: val} }
func Strings(key string, val []string) Field { return Field{Key: key, Value: val} }
func Int(key string, val int) Field          { return Field{Key: key, Value: val} }
func Int64(key string, val int64) Field      { return Field{Key: key, Value: val} }
func Bool(key string, val bool) Field        { return Field{Key: key, Value: val} }
func Duration(key string, val time.Duration) Field {
	return Field{Key: key, Value: val.String()}
}
func Error(key string, err error) Field {
	if err == nil {
		return Field{Key: key, Value: nil}
	}
	return Field{Key: key, Value: err.Error()}
}

// Logger is the interface for structured logging.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	WithFields(fields ...Field) Logger
}

// jsonLogger writes one JSON object per line.
type jsonLogger struct {
	out        *log.Logger
	mu         *sync.Mutex
	minLevel   LogLevel
	baseFields []Field
}

// NewLogger creates a JSON logger with the specified level and output.
// A nil output writes to stderr so that log lines never mix with CLI output.
func NewLogger(level string, output io.Writer) Logger {
	if output == nil {
		output = os.Stderr
	}

	return &jsonLogger{
		out:      log.New(output, "", 0),
		mu:       &sync.Mutex{},
		minLevel: ParseLogLevel(level),
	}
}

func (l *jsonLogger) Debug(msg string, fields ...Field) { l.log(DEBUG, msg, fields) }
func (l *jsonLogger) Info(msg string, fields ...Field)  { l.log(INFO, msg, fields) }
func (l *jsonLogger) Warn(msg string, fields ...Field)  { l.log(WARN, msg, fields) }
func (l *jsonLogger) Error(msg string, fields ...Field) { l.log(ERROR, msg, fields) }

func (l *jsonLogger) WithFields(fields ...Field) Logger {
	merged := make([]Field, 0, len(l.baseFields)+len(fields))
	merged = append(merged, l.baseFields...)
	merged = append(merged, fields...)

	return &jsonLogger{
		out:        l.out,
		mu:         l.mu,
		minLevel:   l.minLevel,
		baseFields: merged,
	}
}

func (l *jsonLogger) log(level LogLevel, msg string, fields []Field) {
	if level < l.minLevel {
		return
	}

	entry := make(map[string]interface{}, len(l.baseFields)+len(fields)+3)
	entry["timestamp"] = time.Now().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["message"] = msg
	for _, f := range l.baseFields {
		entry[f.Key] = redact(f)
	}
	for _, f := range fields {
		entry[f.Key] = redact(f)
	}

	line, err := json.Marshal(entry)
	if err != nil {
		l.out.Printf(`{"level":"ERROR","message":"failed to marshal log","error":%q}`, err.Error())
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Println(string(line))
}

var sensitiveKeys = map[string]bool{
	"password":      true,
	"token":         true,
	"secret":        true,
	"authorization": true,
	"api_key":       true,
	"apikey":        true,
	"auth":          true,
}

// redact masks values of sensitive keys.
func redact(f Field) interface{} {
	if sensitiveKeys[strings.ToLower(f.Key)] {
		return "[REDACTED]"
	}
	return f.Value
}

// noopLogger implements Logger but does nothing.
type noopLogger struct{}

func (noopLogger) Debug(msg string, fields ...Field)   {}
func (noopLogger) Info(msg string, fields ...Field)    {}
func (noopLogger) Warn(msg string, fields ...Field)    {}
func (noopLogger) Error(msg string, fields ...Field)   {}
func (n noopLogger) WithFields(fields ...Field) Logger { return n }

// NewNoopLogger creates a logger that discards all output.
func NewNoopLogger() Logger {
	return noopLogger{}
}

type contextKey string

const traceIDKey contextKey = "trace_id"

// ContextWithTraceID returns ctx carrying traceID.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext returns the trace ID placed on ctx by a Session.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(traceIDKey).(string)
	return id, ok
}

// TraceIDField returns the trace ID on ctx as a Field, or "unknown".
func TraceIDField(ctx context.Context) Field {
	if id, ok := TraceIDFromContext(ctx); ok {
		return String("trace_id", id)
	}
	return String("trace_id", "unknown")
}
