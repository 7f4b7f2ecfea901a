package logging

import (
	"io"
	"log/slog"
	"os"
)

// New returns a logger writing to stderr. Verbose enables debug records; json selects the JSON handler.
func New(verbose, json bool) *slog.Logger {
	return NewWithWriter(os.Stderr, verbose, json)
}

// NewWithWriter is New with an explicit destination
func NewWithWriter(w io.Writer, verbose, json bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Discard returns a logger that drops every record
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
