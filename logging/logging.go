// Package logging builds the process slog.Logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options selects the handler. Format is "text" or "json"; File, when set,
// receives a copy of everything written to Out.
type Options struct {
	Level  string
	Format string
	File   string
	Out    io.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a logger and a closer for the log file, if any.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, nil, fmt.Errorf("logging: %w", err)
		}
	}
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: open %s: %w", opts.File, err)
		}
		out = io.MultiWriter(out, f)
		closer = f
	}

	ho := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", "text":
		h = slog.NewTextHandler(out, ho)
	case "json":
		h = slog.NewJSONHandler(out, ho)
	default:
		_ = closer.Close()
		return nil, nil, fmt.Errorf("logging: unknown format %q", opts.Format)
	}
	return slog.New(h), closer, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
