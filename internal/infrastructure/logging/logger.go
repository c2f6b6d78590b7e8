package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/kichnu/iotdash/internal/infrastructure/config"
)

// ServiceName is the service field of backend log entries.
const ServiceName = "iotdash"

// Logger is a slog.Logger carrying the service and version fields.
type Logger struct {
	*slog.Logger
}

// New builds the backend logger from cfg, writing to stdout or stderr.
func New(cfg config.LoggingConfig, version string) *Logger {
	return NewWriter(cfg, ServiceName, version, destination(cfg.Output))
}

// NewWriter builds a logger on an explicit writer; cfg.Output is ignored.
// The terminal dashboard logs to a file this way while the UI owns the
// terminal.
func NewWriter(cfg config.LoggingConfig, service, version string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	}

	return &Logger{slog.New(h).With("service", service, "version", version)}
}

// Default is the logger used before the configuration is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json"}, "dev")
}

func destination(output string) io.Writer {
	if strings.EqualFold(output, "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

// ParseLevel maps debug, info, warn (or warning) and error to a slog level,
// ignoring case. Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// With returns a child logger with extra attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{l.Logger.With(args...)}
}

// Component returns a child logger tagged component=name.
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}
