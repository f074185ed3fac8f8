// Package logging builds the structured logger shared by the CLI and the
// HTTP server. Records below ERROR go to the standard writer, ERROR and
// above go to the error writer.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options controls the logger's level and output format.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text or json

	// Stdout and Stderr default to os.Stdout and os.Stderr.
	Stdout io.Writer
	Stderr io.Writer
}

// ParseLevel maps a level name to a slog.Level. The empty string is INFO.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("logging: unknown level %q", s)
}

// New constructs a logger that writes INFO/WARN/DEBUG to Stdout and ERROR+ to Stderr.
func New(opts Options) (*slog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	var newHandler func(w io.Writer, o *slog.HandlerOptions) slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "text":
		newHandler = func(w io.Writer, o *slog.HandlerOptions) slog.Handler { return slog.NewTextHandler(w, o) }
	case "json":
		newHandler = func(w io.Writer, o *slog.HandlerOptions) slog.Handler { return slog.NewJSONHandler(w, o) }
	default:
		return nil, fmt.Errorf("logging: unknown format %q", opts.Format)
	}

	errLevel := slog.LevelError
	if level > errLevel {
		errLevel = level
	}

	return slog.New(&splitLevelHandler{
		stdout: newHandler(stdout, &slog.HandlerOptions{Level: level}),
		stderr: newHandler(stderr, &slog.HandlerOptions{Level: errLevel}),
	}), nil
}

type splitLevelHandler struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (h *splitLevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level >= slog.LevelError {
		return h.stderr.Enabled(ctx, level)
	}
	return h.stdout.Enabled(ctx, level)
}

func (h *splitLevelHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return h.stderr.Handle(ctx, r)
	}
	return h.stdout.Handle(ctx, r)
}

func (h *splitLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &splitLevelHandler{
		stdout: h.stdout.WithAttrs(attrs),
		stderr: h.stderr.WithAttrs(attrs),
	}
}

func (h *splitLevelHandler) WithGroup(name string) slog.Handler {
	return &splitLevelHandler{
		stdout: h.stdout.WithGroup(name),
		stderr: h.stderr.WithGroup(name),
	}
}

var _ slog.Handler = (*splitLevelHandler)(nil)
