//go:build cgo

package gsusb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/google/gousb"

	"github.com/notnil/thermnode/canbus"
)

type adapter struct {
	ctx      *gousb.Context
	dev      *gousb.Device
	intf     *gousb.Interface
	intfDone func()

	in  *gousb.InEndpoint
	out *gousb.OutEndpoint

	channel uint8

	mu     sync.Mutex
	echo   uint32
	closed chan struct{}
	once   sync.Once
}

// Dial opens the first adapter matching opts, configures the bitrate and
// starts the channel.
func Dial(opts Options) (canbus.Bus, error) {
	if opts.VendorID == 0 {
		opts.VendorID = VendorID
	}
	if opts.ProductID == 0 {
		opts.ProductID = ProductID
	}
	a := &adapter{channel: opts.Channel, closed: make(chan struct{})}
	if err := a.open(opts); err != nil {
		_ = a.release()
		return nil, err
	}
	return a, nil
}

func (a *adapter) open(opts Options) (err error) {
	a.ctx = gousb.NewContext()

	vid, pid := gousb.ID(opts.VendorID), gousb.ID(opts.ProductID)
	a.dev, err = a.ctx.OpenDeviceWithVIDPID(vid, pid)
	if err != nil {
		return fmt.Errorf("gsusb: open %s:%s: %w", vid, pid, err)
	}
	if a.dev == nil {
		return fmt.Errorf("gsusb: no device %s:%s: %w", vid, pid, canbus.ErrBusNotReady)
	}
	if err = a.dev.SetAutoDetach(true); err != nil {
		return fmt.Errorf("gsusb: set auto detach: %w", err)
	}

	// The default interface is always #0 alt #0 in the currently active config.
	a.intf, a.intfDone, err = a.dev.DefaultInterface()
	if err != nil {
		return fmt.Errorf("gsusb: %s.DefaultInterface(): %w", a.dev, err)
	}
	if a.in, err = a.intf.InEndpoint(1); err != nil {
		return fmt.Errorf("gsusb: %s.InEndpoint(1): %w", a.intf, err)
	}
	if a.out, err = a.intf.OutEndpoint(2); err != nil {
		return fmt.Errorf("gsusb: %s.OutEndpoint(2): %w", a.intf, err)
	}

	hf := make([]byte, 4)
	binary.LittleEndian.PutUint32(hf, hostFormat)
	if err = a.controlOut(reqHostFormat, 1, uint16(a.intf.Setting.Number), hf); err != nil {
		return fmt.Errorf("gsusb: host format: %w", err)
	}

	btc, err := a.btConst()
	if err != nil {
		return fmt.Errorf("gsusb: bt const: %w", err)
	}
	t, err := timing(btc, opts.Bitrate)
	if err != nil {
		return err
	}
	if err = a.controlOut(reqBitTiming, uint16(a.channel), 0, t.bytes()); err != nil {
		return fmt.Errorf("gsusb: bit timing: %w", err)
	}
	if err = a.setMode(modeStart); err != nil {
		return fmt.Errorf("gsusb: start: %w", err)
	}
	return nil
}

func (a *adapter) controlOut(req uint8, val, idx uint16, data []byte) error {
	_, err := a.dev.Control(gousb.ControlOut|gousb.ControlVendor|gousb.ControlInterface, req, val, idx, data)
	return err
}

func (a *adapter) btConst() (btConst, error) {
	buf := make([]byte, 40)
	n, err := a.dev.Control(gousb.ControlIn|gousb.ControlVendor|gousb.ControlInterface, reqBTConst, uint16(a.channel), 0, buf)
	if err != nil {
		return btConst{}, err
	}
	return parseBTConst(buf[:n])
}

func (a *adapter) setMode(mode uint32) error {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:4], mode)
	return a.controlOut(reqMode, uint16(a.channel), 0, b)
}

// Send queues one frame on the adapter. USB write failures map to
// canbus.ErrTransmitFailed.
func (a *adapter) Send(ctx context.Context, frame canbus.Frame) error {
	select {
	case <-a.closed:
		return canbus.ErrClosed
	default:
	}
	a.mu.Lock()
	echo := a.echo
	a.echo = (a.echo + 1) % maxEchoIDs
	a.mu.Unlock()

	buf, err := encodeFrame(echo, a.channel, frame)
	if err != nil {
		return err
	}
	n, err := a.out.WriteContext(ctx, buf)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", canbus.ErrTransmitFailed, err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: short write (%d of %d bytes)", canbus.ErrTransmitFailed, n, len(buf))
	}
	return nil
}

// Receive returns the next frame received from the bus. TX echoes are skipped.
func (a *adapter) Receive(ctx context.Context) (canbus.Frame, error) {
	buf := make([]byte, a.in.Desc.MaxPacketSize)
	for {
		select {
		case <-a.closed:
			return canbus.Frame{}, canbus.ErrClosed
		default:
		}
		n, err := a.in.ReadContext(ctx, buf)
		if err != nil {
			if ctx.Err() != nil {
				return canbus.Frame{}, ctx.Err()
			}
			return canbus.Frame{}, fmt.Errorf("gsusb: read: %w", err)
		}
		echo, f, err := decodeFrame(buf[:n])
		if err != nil {
			return canbus.Frame{}, err
		}
		if echo != echoRX {
			continue
		}
		return f, nil
	}
}

// Close stops the channel and releases the USB device.
func (a *adapter) Close() error {
	var err error
	a.once.Do(func() {
		close(a.closed)
		var modeErr error
		if a.dev != nil {
			modeErr = a.setMode(modeReset)
		}
		err = errors.Join(modeErr, a.release())
	})
	return err
}

func (a *adapter) release() error {
	if a.intfDone != nil {
		a.intfDone()
		a.intfDone = nil
	}
	var errs []error
	if a.dev != nil {
		errs = append(errs, a.dev.Close())
		a.dev = nil
	}
	if a.ctx != nil {
		errs = append(errs, a.ctx.Close())
		a.ctx = nil
	}
	return errors.Join(errs...)
}
