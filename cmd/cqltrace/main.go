package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dan-strohschein/cqltrace/client"
	"github.com/dan-strohschein/cqltrace/protocol"
	"github.com/dan-strohschein/cqltrace/statement"
	"github.com/dan-strohschein/cqltrace/summary"
	"github.com/dan-strohschein/cqltrace/transport"
	"github.com/dan-strohschein/cqltrace/transport/mock"
	"github.com/dan-strohschein/cqltrace/transport/tcp"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	switch args[0] {
	case "summarize":
		return handleSummarize(args[1:], stdout, stderr)
	case "encode":
		return handleEncode(args[1:], stdout, stderr)
	case "version", "-v", "--version":
		fmt.Fprintf(stdout, "cqltrace %s\n", client.Version)
		return 0
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		printError(stderr, fmt.Sprintf("Unknown command: %s", args[0]))
		printUsage(stderr)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, colorBold(colorCyan("cqltrace"))+" - Summarize CQL batches the way traces label them")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  cqltrace "+colorYellow("<command>")+" [options] <file.yaml>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  "+colorGreen("summarize")+"   Print the run-length summary of each batch")
	fmt.Fprintln(w, "  "+colorGreen("encode")+"      Print the wire frame of each batch")
	fmt.Fprintln(w, "  "+colorGreen("version")+"     Show version information")
	fmt.Fprintln(w, "  "+colorGreen("help")+"        Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Summarize options:")
	fmt.Fprintln(w, "  --runs            Print one run per line")
	fmt.Fprintln(w, "  --prefix <text>   Label for summaries (default: \""+summary.Prefix+"\")")
	fmt.Fprintln(w, "  --trace           Execute batches through a session and print spans")
	fmt.Fprintln(w, "  --addr <host:port> Coordinator for --trace (default: in-memory)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment Variables:")
	fmt.Fprintln(w, "  CQLTRACE_ADDR        Default for --addr")
	fmt.Fprintln(w, "  CQLTRACE_LOG_LEVEL   Log level for --trace (default: WARN)")
	fmt.Fprintln(w, "  NO_COLOR             Disable colored output")
}

func loadBatches(path string) ([]*statement.Batch, error) {
	f, err := LoadBatchFile(path)
	if err != nil {
		return nil, err
	}
	return f.Build()
}

func handleSummarize(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("summarize", flag.ContinueOnError)
	fs.SetOutput(stderr)
	runs := fs.Bool("runs", false, "Print one run per line")
	prefix := fs.String("prefix", summary.Prefix, "Label for summaries")
	trace := fs.Bool("trace", false, "Execute batches through a session and print spans")
	addr := fs.String("addr", os.Getenv("CQLTRACE_ADDR"), "Coordinator address for --trace (default: in-memory)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		printError(stderr, "summarize requires exactly one batch file")
		return 1
	}

	batches, err := loadBatches(fs.Arg(0))
	if err != nil {
		printError(stderr, err.Error())
		return 1
	}

	if *trace {
		tr, err := newTransport(*addr)
		if err != nil {
			printError(stderr, err.Error())
			return 1
		}
		return traceBatches(tr, batches, *prefix, stdout, stderr)
	}

	for i, b := range batches {
		msg := summary.NewMessageWithPrefix(*prefix, b.Statements)
		if !*runs {
			fmt.Fprintln(stdout, msg.String())
			continue
		}
		printRuns(stdout, i, b, msg)
	}
	return 0
}

func printRuns(w io.Writer, index int, b *statement.Batch, msg *summary.Message) {
	printHeader(w, fmt.Sprintf("batch %d (%s, %d statements)", index+1, b.Type, b.Len()))
	rows := make([][]string, 0, len(msg.Runs()))
	for _, r := range msg.Runs() {
		text := r.Text
		if text == "" {
			text = colorDim("<no text>")
		}
		rows = append(rows, []string{strconv.Itoa(r.Count), text})
	}
	printTable(w, []string{"COUNT", "STATEMENT"}, rows)
	fmt.Fprintln(w)
}

// newTransport dials addr, or acknowledges every frame in memory when addr is empty.
func newTransport(addr string) (transport.Transport, error) {
	if addr == "" {
		return mock.NewMockTransport(), nil
	}
	return tcp.New(tcp.Options{Address: addr, Timeout: 5 * time.Second})
}

// traceBatches runs every batch through a Session with logging, metrics and
// tracing hooks registered.
func traceBatches(tr transport.Transport, batches []*statement.Batch, prefix string, stdout, stderr io.Writer) int {
	level := os.Getenv("CQLTRACE_LOG_LEVEL")
	if level == "" {
		level = "WARN"
	}
	logger := client.NewLogger(level, stderr)

	opts := client.DefaultOptions()
	opts.Logger = logger
	opts.MessagePrefix = prefix
	session := client.NewSession(tr, &opts)
	defer session.Close()

	recorder := client.NewMemoryRecorder()
	metrics := client.NewMetricsHook()
	session.RegisterHook(client.NewLoggingHook(logger, true, true))
	session.RegisterHook(metrics)
	session.RegisterHook(client.NewTracingHook("cqltrace", recorder))

	ctx := context.Background()
	failed := 0
	for i, b := range batches {
		if _, err := session.ExecuteBatch(ctx, b); err != nil {
			printError(stderr, fmt.Sprintf("batch %d: %s", i+1, client.FormatError(err, false)))
			failed++
		}
	}

	rows := make([][]string, 0, len(batches))
	for _, span := range recorder.Spans() {
		rows = append(rows, []string{
			span.Name,
			strconv.Itoa(span.Statements),
			span.Duration.String(),
			span.Description,
		})
	}
	printHeader(stdout, "spans")
	printTable(stdout, []string{"NAME", "STATEMENTS", "DURATION", "DESCRIPTION"}, rows)

	stats := metrics.GetStats()
	fmt.Fprintln(stdout)
	printInfo(stdout, fmt.Sprintf("%v batches, %v statements, %v errors",
		stats["total_batches"], stats["total_statements"], stats["total_errors"]))

	if failed > 0 {
		return 1
	}
	printSuccess(stdout, "all batches traced")
	return 0
}

func handleEncode(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		printError(stderr, "encode requires exactly one batch file")
		return 1
	}

	batches, err := loadBatches(fs.Arg(0))
	if err != nil {
		printError(stderr, err.Error())
		return 1
	}

	codec := protocol.NewCodec()
	for _, b := range batches {
		fmt.Fprintln(stdout, quoteFrame(codec.EncodeBatch(b)))
	}
	return 0
}

// quoteFrame renders control bytes so frames stay on one line.
func quoteFrame(frame []byte) string {
	q := strconv.Quote(string(frame))
	return strings.TrimSuffix(strings.TrimPrefix(q, `"`), `"`)
}
