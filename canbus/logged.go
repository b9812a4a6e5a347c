package canbus

import (
	"context"
	"log/slog"
)

// LogOption is a bitmask for selecting which operations to log.
type LogOption uint8

const (
	LogNone LogOption = 0
	LogRead LogOption = 1 << iota
	LogWrite
	LogAll LogOption = LogRead | LogWrite
)

// NewLoggedBus wraps the given Bus and logs selected operations at the given
// level.
func NewLoggedBus(inner Bus, logger *slog.Logger, level slog.Level, opts LogOption) Bus {
	return NewLoggedBusWithFilter(inner, logger, level, opts, nil)
}

// NewLoggedBusWithFilter wraps the given Bus and logs selected operations but
// only for frames that satisfy the provided filter. If filter is nil, all
// frames are considered for logging (same as NewLoggedBus behavior).
func NewLoggedBusWithFilter(inner Bus, logger *slog.Logger, level slog.Level, opts LogOption, filter FrameFilter) Bus {
	return &loggedBus{
		inner:  inner,
		logger: logger,
		level:  level,
		opts:   opts,
		filter: filter,
	}
}

// loggedBus is a Bus decorator that logs Send/Receive operations using a
// slog.Logger.
type loggedBus struct {
	inner  Bus
	logger *slog.Logger
	level  slog.Level
	opts   LogOption
	filter FrameFilter
}

// Send logs the frame and the result when write logging is enabled.
func (l *loggedBus) Send(ctx context.Context, frame Frame) error {
	if l.opts&LogWrite != 0 && (l.filter == nil || l.filter(frame)) {
		l.logger.Log(ctx, l.level, "canbus send",
			"id", frame.ID,
			"extended", frame.Extended,
			"rtr", frame.RTR,
			"len", int(frame.Len),
			"string", frame.String(),
		)
	}
	err := l.inner.Send(ctx, frame)
	if l.opts&LogWrite != 0 && err != nil {
		l.logger.Log(ctx, slog.LevelError, "canbus send error",
			"id", frame.ID,
			"error", err,
		)
	}
	return err
}

// Receive logs the received frame or error when read logging is enabled.
// Context cancellation is not reported as an error.
func (l *loggedBus) Receive(ctx context.Context) (Frame, error) {
	f, err := l.inner.Receive(ctx)
	if l.opts&LogRead == 0 {
		return f, err
	}
	switch {
	case err != nil && ctx.Err() != nil:
	case err != nil:
		l.logger.Log(ctx, slog.LevelError, "canbus receive error",
			"error", err,
		)
	case l.filter == nil || l.filter(f):
		l.logger.Log(ctx, l.level, "canbus receive",
			"id", f.ID,
			"extended", f.Extended,
			"rtr", f.RTR,
			"len", int(f.Len),
			"string", f.String(),
		)
	}
	return f, err
}

// Close forwards to the inner Bus without logging.
func (l *loggedBus) Close() error {
	return l.inner.Close()
}
