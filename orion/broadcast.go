package orion

import (
	"errors"
	"fmt"

	"github.com/notnil/thermnode/canbus"
)

// ChecksumBase is added to the byte sum of a module broadcast. It is fixed
// by the BMS protocol (frame length plus the base identifier nibble).
const ChecksumBase = 0x41

// BroadcastLen is the DLC of a module broadcast.
const BroadcastLen = 8

var (
	// ErrChecksum indicates a broadcast whose byte 7 does not match Checksum.
	ErrChecksum = errors.New("orion: checksum mismatch")
	// ErrNotBroadcast indicates a remote frame or one without 8 data bytes.
	ErrNotBroadcast = errors.New("orion: not a module broadcast")
)

// ModuleBroadcast is the periodic summary of one thermistor module.
// Temperatures are whole °C in 8-bit two's complement on the wire.
type ModuleBroadcast struct {
	ID        Identifier
	Module    uint8
	Lowest    int8
	Highest   int8
	Average   int8
	Enabled   uint8 // number of enabled thermistors
	HighestID uint8 // highest thermistor id in the module
	LowestID  uint8 // lowest thermistor id in the module
}

// Checksum returns (sum(payload[0..6]) + ChecksumBase) & 0xFF.
func Checksum(payload []byte) byte {
	sum := ChecksumBase
	for i := 0; i < len(payload) && i < BroadcastLen-1; i++ {
		sum += int(payload[i])
	}
	return byte(sum & 0xFF)
}

// Temp truncates a temperature to whole degrees, wrapping to 8 bits.
func Temp(t float64) int8 {
	return int8(int(t))
}

// MarshalCANFrame encodes the broadcast.
func (b ModuleBroadcast) MarshalCANFrame() (canbus.Frame, error) {
	var f canbus.Frame
	if err := b.EncodeInto(&f); err != nil {
		return canbus.Frame{}, err
	}
	return f, nil
}

// EncodeInto rewrites f in place, so a long-lived outbound frame can be
// reused every cycle.
func (b ModuleBroadcast) EncodeInto(f *canbus.Frame) error {
	if err := b.ID.Validate(); err != nil {
		return err
	}
	f.ID = b.ID.ID
	f.Extended = b.ID.Extended
	f.RTR = false
	f.Len = BroadcastLen
	f.Data[0] = b.Module
	f.Data[1] = byte(b.Lowest)
	f.Data[2] = byte(b.Highest)
	f.Data[3] = byte(b.Average)
	f.Data[4] = b.Enabled
	f.Data[5] = b.HighestID
	f.Data[6] = b.LowestID
	f.Data[7] = Checksum(f.Data[:7])
	return nil
}

// UnmarshalCANFrame decodes a broadcast and verifies its checksum. The
// identifier is taken from the frame.
func (b *ModuleBroadcast) UnmarshalCANFrame(f canbus.Frame) error {
	if f.RTR || f.Len != BroadcastLen {
		return fmt.Errorf("%w: id=0x%X len=%d rtr=%t", ErrNotBroadcast, f.ID, f.Len, f.RTR)
	}
	if want := Checksum(f.Data[:7]); f.Data[7] != want {
		return fmt.Errorf("%w: got 0x%02X want 0x%02X", ErrChecksum, f.Data[7], want)
	}
	*b = ModuleBroadcast{
		ID:        Identifier{ID: f.ID, Extended: f.Extended},
		Module:    f.Data[0],
		Lowest:    int8(f.Data[1]),
		Highest:   int8(f.Data[2]),
		Average:   int8(f.Data[3]),
		Enabled:   f.Data[4],
		HighestID: f.Data[5],
		LowestID:  f.Data[6],
	}
	return nil
}
