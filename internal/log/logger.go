// Package log configures the structured logger shared by the pipenode
// packages.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu     sync.Mutex
	logger *slog.Logger
)

// ParseLevel maps a level name to a slog level. Unknown names are INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup installs a JSON logger writing to stderr at the given level and makes
// it the slog default.
func Setup(level string) { SetupWriter(os.Stderr, level) }

// SetupWriter is like Setup but writes to w.
func SetupWriter(w io.Writer, level string) {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})

	mu.Lock()
	defer mu.Unlock()
	logger = slog.New(h)
	slog.SetDefault(logger)
}

// Get returns the configured logger. If Setup has not been called, it
// returns a logger that discards everything below WARN.
func Get() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	return logger
}

// WithComponent returns a logger with the component field set.
func WithComponent(name string) *slog.Logger {
	return Get().With(slog.String("component", name))
}

// WithChannel returns a component logger with the channel field set.
func WithChannel(component, channel string) *slog.Logger {
	return WithComponent(component).With(slog.String("channel", channel))
}
