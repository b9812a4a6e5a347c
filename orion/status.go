package orion

import (
	"fmt"

	"github.com/notnil/thermnode/canbus"
)

// Status is the single status byte (ready-to-drive) read from an inbound
// frame.
type Status struct {
	ID    Identifier
	Value byte
}

// Ready reports whether the status byte is non-zero.
func (s Status) Ready() bool { return s.Value != 0 }

// StatusCodec reads the status byte at Offset of frames carrying ID.
type StatusCodec struct {
	ID     Identifier
	Offset int
}

// Filter matches frames long enough to carry the status byte.
func (c StatusCodec) Filter() canbus.FrameFilter {
	return canbus.And(c.ID.Filter(), canbus.LenAtLeast(uint8(c.Offset+1)))
}

// Decode returns ok=false for frames this codec does not accept.
func (c StatusCodec) Decode(f canbus.Frame) (Status, bool) {
	if !c.ID.Matches(f) || f.RTR || c.Offset < 0 || c.Offset >= int(f.Len) {
		return Status{}, false
	}
	return Status{ID: c.ID, Value: f.Data[c.Offset]}, true
}

// Encode builds a status frame of Offset+1 bytes.
func (c StatusCodec) Encode(value byte) (canbus.Frame, error) {
	if err := c.ID.Validate(); err != nil {
		return canbus.Frame{}, err
	}
	if c.Offset < 0 || c.Offset > 7 {
		return canbus.Frame{}, fmt.Errorf("orion: status offset %d out of range", c.Offset)
	}
	f := canbus.Frame{ID: c.ID.ID, Extended: c.ID.Extended, Len: uint8(c.Offset + 1)}
	f.Data[c.Offset] = value
	return f, nil
}

// SubscribeStatus subscribes to status frames via mux and delivers decoded
// values. The returned cancel must be called when done. The channel is
// closed on cancel or when the mux is closed.
func SubscribeStatus(mux *canbus.Mux, codec StatusCodec, buffer int) (<-chan Status, func()) {
	frames, cancel := mux.Subscribe(codec.Filter(), buffer)

	out := make(chan Status, buffer)
	go func() {
		defer close(out)
		for f := range frames {
			s, ok := codec.Decode(f)
			if !ok {
				continue
			}
			select {
			case out <- s:
			default:
			}
		}
	}()
	return out, cancel
}

// SubscribeBroadcasts delivers every module broadcast with a valid checksum.
// Frames matching filter that fail to decode are dropped.
func SubscribeBroadcasts(mux *canbus.Mux, filter canbus.FrameFilter, buffer int) (<-chan ModuleBroadcast, func()) {
	frames, cancel := mux.Subscribe(canbus.And(filter, canbus.DataOnly(), canbus.LenAtLeast(BroadcastLen)), buffer)

	out := make(chan ModuleBroadcast, buffer)
	go func() {
		defer close(out)
		for f := range frames {
			var b ModuleBroadcast
			if err := b.UnmarshalCANFrame(f); err != nil {
				continue
			}
			select {
			case out <- b:
			default:
			}
		}
	}()
	return out, cancel
}
