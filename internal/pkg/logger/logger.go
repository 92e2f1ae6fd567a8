package logger

import (
	"io"
	"log/slog"
	"os"
)

// New builds the service logger. Development gets debug-level text output,
// every other environment gets info-level JSON.
func New(env string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}

	var handler slog.Handler
	switch env {
	case "production", "prod", "staging", "stage":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	default:
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	}

	return slog.New(handler).With(
		slog.String("service", "voiceclone-backend"),
		slog.String("env", env),
	)
}

// Discard is a logger that drops everything; handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
