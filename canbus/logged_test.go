package canbus

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type recordSink struct {
	mu      sync.Mutex
	records []slog.Record
}

func (s *recordSink) Enabled(context.Context, slog.Level) bool { return true }
func (s *recordSink) Handle(_ context.Context, r slog.Record) error {
	s.mu.Lock()
	s.records = append(s.records, r.Clone())
	s.mu.Unlock()
	return nil
}
func (s *recordSink) WithAttrs([]slog.Attr) slog.Handler { return s }
func (s *recordSink) WithGroup(string) slog.Handler      { return s }

func (s *recordSink) has(level slog.Level, msg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.Level == level && r.Message == msg {
			return true
		}
	}
	return false
}

func (s *recordSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func TestLoggedBus_WriteAndReadLogging(t *testing.T) {
	ctx := context.Background()
	lb := NewLoopbackBus()
	defer lb.Close()

	sink := &recordSink{}
	logger := slog.New(sink)

	sender := NewLoggedBus(lb.Open(), logger, slog.LevelInfo, LogWrite)
	receiver := NewLoggedBus(lb.Open(), logger, slog.LevelInfo, LogRead)
	defer sender.Close()
	defer receiver.Close()

	frame := MustFrame(0x123, []byte{1, 2, 3})
	if err := sender.Send(ctx, frame); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := receiver.Receive(ctx); err != nil {
		t.Fatalf("receive: %v", err)
	}

	if !sink.has(slog.LevelInfo, "canbus send") {
		t.Fatalf("expected write log entry")
	}
	if !sink.has(slog.LevelInfo, "canbus receive") {
		t.Fatalf("expected read log entry")
	}
}

func TestLoggedBus_ErrorLogging(t *testing.T) {
	lb := NewLoopbackBus()
	rx := lb.Open()
	_ = rx.Close()

	sink := &recordSink{}
	wrapped := NewLoggedBus(rx, slog.New(sink), slog.LevelInfo, LogRead)
	_, _ = wrapped.Receive(context.Background())

	if !sink.has(slog.LevelError, "canbus receive error") {
		t.Fatalf("expected receive error log entry")
	}
}

func TestLoggedBus_ContextCancelNotLogged(t *testing.T) {
	lb := NewLoopbackBus()
	defer lb.Close()

	sink := &recordSink{}
	wrapped := NewLoggedBus(lb.Open(), slog.New(sink), slog.LevelInfo, LogAll)
	defer wrapped.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := wrapped.Receive(ctx); err == nil {
		t.Fatalf("expected timeout")
	}
	if n := sink.len(); n != 0 {
		t.Fatalf("expected no log records, got %d", n)
	}
}

func TestLoggedBus_Filter(t *testing.T) {
	ctx := context.Background()
	lb := NewLoopbackBus()
	defer lb.Close()

	sink := &recordSink{}
	sender := NewLoggedBusWithFilter(lb.Open(), slog.New(sink), slog.LevelDebug, LogWrite, ExtendedOnly())
	defer sender.Close()

	_ = sender.Send(ctx, MustFrame(0x100, []byte{1}))
	if sink.len() != 0 {
		t.Fatalf("standard frame should not be logged")
	}
	_ = sender.Send(ctx, MustFrame(0x1839F380, make([]byte, 8)))
	if !sink.has(slog.LevelDebug, "canbus send") {
		t.Fatalf("extended frame should be logged")
	}
}
