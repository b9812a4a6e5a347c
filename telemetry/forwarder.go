package telemetry

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/notnil/thermnode/node"
)

// Forwarder is a node.Observer that publishes at most one message per
// period. Observe never blocks: when the queue is full the message is
// dropped.
type Forwarder struct {
	pub     Publisher
	nodeID  string
	limiter *node.RateLimiter
	queue   chan Message
	logger  *slog.Logger
	timeout time.Duration

	dropped   atomic.Uint64
	published atomic.Uint64
}

func NewForwarder(pub Publisher, nodeID string, period time.Duration, buffer int, logger *slog.Logger) *Forwarder {
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{
		pub:     pub,
		nodeID:  nodeID,
		limiter: node.NewRateLimiter(period),
		queue:   make(chan Message, buffer),
		logger:  logger.With("component", "telemetry"),
		timeout: 5 * time.Second,
	}
}

// Observe queues the report if the period has elapsed. Failed cycles are
// skipped.
func (f *Forwarder) Observe(r node.Report) {
	if r.SampleErr != nil || !f.limiter.Allow(r.Time) {
		return
	}
	select {
	case f.queue <- NewMessage(f.nodeID, r):
	default:
		f.dropped.Add(1)
	}
}

// Run publishes queued messages until ctx is done.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-f.queue:
			pctx, cancel := context.WithTimeout(ctx, f.timeout)
			err := f.pub.Publish(pctx, m)
			cancel()
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				f.logger.Warn("publish failed", "err", err)
				continue
			}
			f.published.Add(1)
		}
	}
}

// Dropped returns how many messages were dropped on a full queue.
func (f *Forwarder) Dropped() uint64 { return f.dropped.Load() }

// Published returns how many messages were delivered.
func (f *Forwarder) Published() uint64 { return f.published.Load() }
