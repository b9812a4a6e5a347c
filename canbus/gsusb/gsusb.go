// Package gsusb drives gs_usb (candleLight/CANable) USB CAN adapters.
//
// The USB side is built on gousb and needs cgo with libusb-1.0. Without cgo
// Dial returns ErrUnsupported so the rest of the module still builds.
//
// list devices with lsusb:
//
//	Bus 001 Device 004: ID 1d50:606f OpenMoko, Inc. Geschwister Schneider CAN adapter
package gsusb

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/notnil/thermnode/canbus"
)

const (
	// VendorID and ProductID identify candleLight firmware.
	VendorID  = 0x1d50
	ProductID = 0x606f

	reqHostFormat = 0
	reqBitTiming  = 1
	reqMode       = 2
	reqBTConst    = 4

	modeReset = 0
	modeStart = 1

	hostFormat = 0x0000beef

	// RX frames carry this echo id; everything else is a TX echo.
	echoRX = 0xFFFFFFFF

	frameSize  = 20
	maxEchoIDs = 10
)

// ErrUnsupported is returned by Dial when built without cgo.
var ErrUnsupported = errors.New("gsusb: built without cgo, USB adapters unavailable")

// Options selects and configures an adapter.
type Options struct {
	VendorID  uint16 // defaults to VendorID
	ProductID uint16 // defaults to ProductID
	Channel   uint8
	Bitrate   uint32 // bits per second, e.g. 500000
}

// btConst is struct gs_device_bt_const.
type btConst struct {
	Feature  uint32
	FclkCAN  uint32
	Tseg1Min uint32
	Tseg1Max uint32
	Tseg2Min uint32
	Tseg2Max uint32
	SJWMax   uint32
	BRPMin   uint32
	BRPMax   uint32
	BRPInc   uint32
}

func parseBTConst(b []byte) (btConst, error) {
	var c btConst
	fields := []*uint32{&c.Feature, &c.FclkCAN, &c.Tseg1Min, &c.Tseg1Max, &c.Tseg2Min, &c.Tseg2Max, &c.SJWMax, &c.BRPMin, &c.BRPMax, &c.BRPInc}
	if len(b) < 4*len(fields) {
		return btConst{}, fmt.Errorf("gsusb: short bt const reply: %d bytes", len(b))
	}
	for i, p := range fields {
		*p = binary.LittleEndian.Uint32(b[i*4:])
	}
	return c, nil
}

// bitTiming is struct gs_device_bittiming.
type bitTiming struct {
	PropSeg   uint32
	PhaseSeg1 uint32
	PhaseSeg2 uint32
	SJW       uint32
	BRP       uint32
}

func (t bitTiming) bytes() []byte {
	b := make([]byte, 20)
	binary.LittleEndian.PutUint32(b[0:], t.PropSeg)
	binary.LittleEndian.PutUint32(b[4:], t.PhaseSeg1)
	binary.LittleEndian.PutUint32(b[8:], t.PhaseSeg2)
	binary.LittleEndian.PutUint32(b[12:], t.SJW)
	binary.LittleEndian.PutUint32(b[16:], t.BRP)
	return b
}

// timing picks a bit timing with an 87.5% sample point, preferring the
// largest number of time quanta the controller limits allow.
func timing(c btConst, bitrate uint32) (bitTiming, error) {
	if bitrate == 0 || c.FclkCAN == 0 {
		return bitTiming{}, fmt.Errorf("gsusb: cannot derive timing for %d bit/s at %d Hz", bitrate, c.FclkCAN)
	}
	for tq := uint32(25); tq >= 8; tq-- {
		if c.FclkCAN%(bitrate*tq) != 0 {
			continue
		}
		brp := c.FclkCAN / (bitrate * tq)
		if brp < c.BRPMin || brp > c.BRPMax {
			continue
		}
		if c.BRPInc > 1 && brp%c.BRPInc != 0 {
			continue
		}
		tseg2 := (tq + 4) / 8
		if tseg2 < c.Tseg2Min {
			tseg2 = c.Tseg2Min
		}
		tseg1 := tq - 1 - tseg2
		if tseg2 > c.Tseg2Max || tseg1 < c.Tseg1Min || tseg1 > c.Tseg1Max {
			continue
		}
		sjw := uint32(1)
		if c.SJWMax > 0 && sjw > c.SJWMax {
			sjw = c.SJWMax
		}
		return bitTiming{PropSeg: 1, PhaseSeg1: tseg1 - 1, PhaseSeg2: tseg2, SJW: sjw, BRP: brp}, nil
	}
	return bitTiming{}, fmt.Errorf("gsusb: no exact bit timing for %d bit/s at %d Hz", bitrate, c.FclkCAN)
}

// encodeFrame packs struct gs_host_frame (without timestamp). can_id, dlc
// and data share the SocketCAN can_frame encoding.
func encodeFrame(echoID uint32, channel uint8, f canbus.Frame) ([]byte, error) {
	cf, err := f.MarshalBinary()
	if err != nil {
		return nil, err
	}
	b := make([]byte, frameSize)
	binary.LittleEndian.PutUint32(b[0:4], echoID)
	copy(b[4:8], cf[0:4])
	b[8] = cf[4]
	b[9] = channel
	copy(b[12:20], cf[8:16])
	return b, nil
}

func decodeFrame(b []byte) (echoID uint32, f canbus.Frame, err error) {
	if len(b) < frameSize {
		return 0, canbus.Frame{}, fmt.Errorf("gsusb: need %d bytes, got %d", frameSize, len(b))
	}
	cf := make([]byte, 16)
	copy(cf[0:4], b[4:8])
	cf[4] = b[8]
	copy(cf[8:16], b[12:20])
	if err := f.UnmarshalBinary(cf); err != nil {
		return 0, canbus.Frame{}, err
	}
	return binary.LittleEndian.Uint32(b[0:4]), f, nil
}
