package app

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
)

// newLogger builds the invocation's logger. Text output goes through
// charmbracelet/log, json through slog's own handler. The global logger is
// left untouched so that tests can run several apps side by side.
func newLogger(levelStr, formatStr string, w io.Writer) *slog.Logger {
	level, err := log.ParseLevel(levelStr)
	if err != nil {
		level = log.InfoLevel
	}
	if formatStr == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.Level(level)}))
	}
	return slog.New(log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
	}))
}
