package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls how the default logger is built.
type Options struct {
	// Level is one of DEBUG, INFO, WARN, ERROR. Empty picks the environment default.
	Level string
	// JSON forces the JSON handler regardless of ENV.
	JSON bool
	// File, when set, sends logs to a rotating file instead of stderr.
	File string
	// Writer overrides the destination entirely; used by tests.
	Writer io.Writer
}

type callerHandler struct {
	slog.Handler
}

// trimPathDepth keeps only the last n segments of the given path.
// Example: trimPathDepth("a/b/c/d.go", 3) => "b/c/d.go"
func trimPathDepth(path string, depth int) string {
	parts := strings.Split(path, string(os.PathSeparator))
	if len(parts) <= depth {
		return path
	}
	return strings.Join(parts[len(parts)-depth:], string(os.PathSeparator))
}

func (h *callerHandler) Handle(ctx context.Context, r slog.Record) error {
	// Skip 3 stack frames to get the actual caller of the log function
	_, file, line, ok := runtime.Caller(3)
	caller := "unknown"
	if ok {
		caller = fmt.Sprintf("%s:%d", trimPathDepth(file, 3), line)
	}
	r.AddAttrs(slog.String("caller", caller))
	return h.Handler.Handle(ctx, r)
}

func (h *callerHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &callerHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *callerHandler) WithGroup(name string) slog.Handler {
	return &callerHandler{Handler: h.Handler.WithGroup(name)}
}

// ParseLevel maps a level name to a slog.Level. ok is false for unknown names.
func ParseLevel(level string) (slog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN", "WARNING":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func isProduction() bool {
	return os.Getenv("ENV") == "production"
}

// NewWithOptions builds the default logger from opts and installs it with slog.SetDefault.
// With zero Options it uses text format and DEBUG level for development, JSON and INFO
// for production. Output goes to stderr: stdout is reserved for rendering and the MCP
// stdio transport.
func NewWithOptions(opts Options) *slog.Logger {
	level := slog.LevelDebug
	if isProduction() {
		level = slog.LevelInfo
	}
	if l, ok := ParseLevel(opts.Level); ok {
		level = l
	}

	var w io.Writer = os.Stderr
	switch {
	case opts.Writer != nil:
		w = opts.Writer
	case opts.File != "":
		w = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if opts.JSON || isProduction() {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	// Wrap with callerHandler to inject caller info
	handler = &callerHandler{
		Handler: handler,
	}
	slog.SetDefault(slog.New(handler))
	return slog.Default()
}
