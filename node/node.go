package node

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/notnil/thermnode/canbus"
	"github.com/notnil/thermnode/orion"
	"github.com/notnil/thermnode/thermistor"
)

// DigitalOutput drives one output line.
type DigitalOutput interface {
	Set(high bool) error
}

// PWM drives a duty cycle in percent.
type PWM interface {
	SetDuty(percent uint8) error
}

// Observer receives a Report after every cycle. Observe is called on the
// loop goroutine and must not block.
type Observer interface {
	Observe(r Report)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Report)

func (f ObserverFunc) Observe(r Report) { f(r) }

// Report describes one cycle.
type Report struct {
	Time     time.Time
	Snapshot thermistor.Snapshot
	// SampleErr is set when the cycle was skipped.
	SampleErr error

	Alert   bool
	FanDuty uint8

	Sent        bool
	TransmitErr error

	// StatusUpdated is set when a status frame arrived during this cycle.
	StatusUpdated bool
	HasStatus     bool
	Status        orion.Status
	StatusAt      time.Time
}

// Options wires a Node. Aggregator and Bus are required.
type Options struct {
	Aggregator *thermistor.Aggregator
	Bus        canbus.Bus
	// Broadcast is the template for the outbound frame; its temperatures
	// are overwritten every cycle.
	Broadcast orion.ModuleBroadcast

	// Inbound carries frames for StatusCodec, typically from a
	// canbus.Mux subscription. It is polled without blocking.
	Inbound     <-chan canbus.Frame
	StatusCodec orion.StatusCodec

	Alert          DigitalOutput
	AlertThreshold float64
	Fan            PWM
	FanCurve       *FanCurve

	PrintPeriod    time.Duration
	TransmitPeriod time.Duration
	SendTimeout    time.Duration
	Idle           time.Duration

	Observers []Observer
	Logger    *slog.Logger
}

// ErrMissingDependency is returned by New without an Aggregator or Bus.
var ErrMissingDependency = errors.New("node: missing dependency")

// Node owns all pipeline state.
type Node struct {
	opts   Options
	logger *slog.Logger

	frame    canbus.Frame
	print    *RateLimiter
	transmit *RateLimiter

	status    orion.Status
	statusAt  time.Time
	hasStatus bool

	alertErr   bool
	fanErr     bool
	fanSet     bool
	fanApplied uint8

	mu   sync.RWMutex
	last Report
}

// New validates opts and encodes the initial outbound frame from
// opts.Broadcast. SendTimeout defaults to 10ms.
func New(opts Options) (*Node, error) {
	if opts.Aggregator == nil || opts.Bus == nil {
		return nil, ErrMissingDependency
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Millisecond
	}
	n := &Node{
		opts:     opts,
		logger:   opts.Logger,
		print:    NewRateLimiter(opts.PrintPeriod),
		transmit: NewRateLimiter(opts.TransmitPeriod),
	}
	if err := opts.Broadcast.EncodeInto(&n.frame); err != nil {
		return nil, err
	}
	return n, nil
}

// Frame returns the outbound frame as last encoded.
func (n *Node) Frame() canbus.Frame { return n.frame }

// Status returns the report of the most recent cycle.
func (n *Node) Status() Report {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.last
}

// Run cycles until ctx is done, sleeping Idle between cycles.
func (n *Node) Run(ctx context.Context) error {
	var idle *time.Timer
	if n.opts.Idle > 0 {
		idle = time.NewTimer(n.opts.Idle)
		defer idle.Stop()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_ = n.Cycle(ctx, time.Now())
		if idle == nil {
			continue
		}
		idle.Reset(n.opts.Idle)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle.C:
		}
	}
}

// Cycle runs one iteration at now. It returns the sampling error, if any;
// transmit and output errors are logged and reported but not returned.
func (n *Node) Cycle(ctx context.Context, now time.Time) error {
	r := Report{Time: now}
	r.StatusUpdated = n.pollStatus(now)

	snap, err := n.opts.Aggregator.Cycle()
	if err != nil {
		n.logger.Warn("sample failed", "err", err)
		r.SampleErr = err
		n.finish(r)
		return err
	}
	r.Snapshot = snap

	b := n.opts.Broadcast
	b.Lowest = orion.Temp(snap.Min())
	b.Highest = orion.Temp(snap.Max())
	b.Average = orion.Temp(float64(snap.AvgTemp))
	if err := b.EncodeInto(&n.frame); err != nil {
		// The identifier was validated in New.
		n.logger.Error("encode broadcast", "err", err)
	}

	r.Alert = float64(snap.AvgTemp) >= n.opts.AlertThreshold
	n.driveAlert(r.Alert)
	r.FanDuty = n.driveFan(snap.Max())

	if n.print.Allow(now) {
		n.logSnapshot(ctx, snap)
	}

	if n.transmit.Allow(now) {
		sctx, cancel := context.WithTimeout(ctx, n.opts.SendTimeout)
		err := n.opts.Bus.Send(sctx, n.frame)
		cancel()
		if err != nil {
			n.logger.Warn("transmit failed", "id", n.frame.ID, "err", err)
			r.TransmitErr = err
		} else {
			r.Sent = true
		}
	}

	n.finish(r)
	return nil
}

func (n *Node) finish(r Report) {
	r.HasStatus, r.Status, r.StatusAt = n.hasStatus, n.status, n.statusAt
	n.mu.Lock()
	n.last = r
	n.mu.Unlock()
	for _, o := range n.opts.Observers {
		o.Observe(r)
	}
}

// pollStatus consumes at most one inbound frame.
func (n *Node) pollStatus(now time.Time) bool {
	if n.opts.Inbound == nil {
		return false
	}
	var f canbus.Frame
	select {
	case fr, ok := <-n.opts.Inbound:
		if !ok {
			n.opts.Inbound = nil
			return false
		}
		f = fr
	default:
		return false
	}
	s, ok := n.opts.StatusCodec.Decode(f)
	if !ok {
		return false
	}
	if !n.hasStatus || s.Value != n.status.Value {
		n.logger.Info("status changed", "id", s.ID.String(), "value", s.Value, "ready", s.Ready())
	}
	n.status, n.statusAt, n.hasStatus = s, now, true
	return true
}

func (n *Node) driveAlert(high bool) {
	if n.opts.Alert == nil {
		return
	}
	if err := n.opts.Alert.Set(high); err != nil {
		if !n.alertErr {
			n.logger.Warn("alert output failed", "err", err)
		}
		n.alertErr = true
		return
	}
	n.alertErr = false
}

func (n *Node) driveFan(temp float64) uint8 {
	if n.opts.FanCurve == nil {
		return 0
	}
	duty, _ := n.opts.FanCurve.Update(temp)
	if n.opts.Fan == nil || (n.fanSet && duty == n.fanApplied) {
		return duty
	}
	if err := n.opts.Fan.SetDuty(duty); err != nil {
		if !n.fanErr {
			n.logger.Warn("fan output failed", "duty", duty, "err", err)
		}
		n.fanErr = true
		return duty
	}
	n.fanErr = false
	n.fanApplied, n.fanSet = duty, true
	n.logger.Debug("fan duty", "temp", temp, "duty", duty)
	return duty
}

func (n *Node) logSnapshot(ctx context.Context, s thermistor.Snapshot) {
	if n.logger.Enabled(ctx, slog.LevelDebug) {
		for i := range s.Temps {
			n.logger.Debug("channel", "index", i+1, "temp", s.Temps[i], "volts", s.Volts[i])
		}
	}
	n.logger.Info("summary",
		"max", s.Max(), "max_index", s.MaxIndex,
		"min", s.Min(), "min_index", s.MinIndex,
		"avg", s.AvgTemp,
	)
}
