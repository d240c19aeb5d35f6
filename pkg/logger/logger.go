package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// New returns a JSON slog.Logger configured for the given service name.
func New(service string, level slog.Level) *slog.Logger {
	return newJSON(os.Stdout, service, level)
}

// NewDevelopment returns a human readable logger writing to stderr.
// Colour is disabled when stderr is not a terminal.
func NewDevelopment(service string, level slog.Level) *slog.Logger {
	noColor := !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd())
	return newTint(os.Stderr, service, level, noColor)
}

// ForEnvironment picks the handler for the runtime mode: tint in development,
// JSON everywhere else.
func ForEnvironment(service, env, level string) *slog.Logger {
	lvl := ParseLevel(level)
	if strings.EqualFold(strings.TrimSpace(env), "development") {
		return NewDevelopment(service, lvl)
	}
	return New(service, lvl)
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newJSON(w io.Writer, service string, level slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("service", service)
}

func newTint(w io.Writer, service string, level slog.Level, noColor bool) *slog.Logger {
	h := tint.NewHandler(w, &tint.Options{
		Level:      level,
		NoColor:    noColor,
		TimeFormat: time.TimeOnly,
	})
	return slog.New(h).With("service", service)
}
