// Package logger sets up the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Init creates the logger for the given service and installs it as the
// slog default. format "json" writes JSON lines, anything else writes
// colourised text.
func Init(service string, level slog.Level, format string) *slog.Logger {
	logger := New(os.Stdout, service, level, format)
	slog.SetDefault(logger)
	return logger
}

// New builds a logger writing to w without touching the default.
func New(w io.Writer, service string, level slog.Level, format string) *slog.Logger {
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
			NoColor:    w != os.Stdout,
		})
	}

	return slog.New(handler).With(
		slog.String("service", service),
	)
}

// ForSource returns a child logger tagged with the monitored source.
func ForSource(l *slog.Logger, source string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With(slog.String("source", source))
}
