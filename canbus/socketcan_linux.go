//go:build linux

package canbus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
	"unsafe"
)

// socketCAN implements Bus over Linux SocketCAN using raw syscalls only.
type socketCAN struct {
	fd     int
	file   *os.File
	closed chan struct{}
}

// DialSocketCAN opens a raw CAN socket bound to the given interface name (e.g., "can0").
func DialSocketCAN(iface string) (Bus, error) {
	// Create socket: AF_CAN, SOCK_RAW, CAN_RAW (protocol 1)
	const AF_CAN = 29
	const CAN_RAW = 1
	fd, err := syscall.Socket(AF_CAN, syscall.SOCK_RAW, CAN_RAW)
	if err != nil {
		return nil, err
	}

	netIf, err := net.InterfaceByName(iface)
	if err != nil {
		syscall.Close(fd)
		return nil, err
	}

	// struct sockaddr_can { sa_family_t can_family; int can_ifindex; union { ... } addr; };
	type sockaddrCAN struct {
		Family  uint16
		_pad    uint16
		Ifindex int32
		Addr    [8]byte
	}
	sa := sockaddrCAN{Family: AF_CAN, Ifindex: int32(netIf.Index)}
	_, _, e := syscall.Syscall(syscall.SYS_BIND, uintptr(fd), uintptr(unsafe.Pointer(&sa)), unsafe.Sizeof(sa))
	if e != 0 {
		syscall.Close(fd)
		return nil, e
	}

	// Non-blocking mode for context-aware operations.
	if err := syscall.SetNonblock(fd, true); err != nil {
		syscall.Close(fd)
		return nil, err
	}

	f := os.NewFile(uintptr(fd), "socketcan")
	return &socketCAN{fd: fd, file: f, closed: make(chan struct{})}, nil
}

func (s *socketCAN) Close() error {
	select {
	case <-s.closed:
		return nil
	default:
	}
	close(s.closed)
	// Closing file also closes the fd
	return s.file.Close()
}

// Send writes one frame using the Linux can_frame binary layout.
// A full transmit queue is waited out until ctx expires; a downed interface
// maps to ErrBusNotReady and any other write error to ErrTransmitFailed.
func (s *socketCAN) Send(ctx context.Context, frame Frame) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}
	buf, err := frame.MarshalBinary()
	if err != nil {
		return err
	}
	for {
		n, werr := syscall.Write(s.fd, buf)
		if werr == nil {
			if n != len(buf) {
				return fmt.Errorf("%w: short write", ErrTransmitFailed)
			}
			return nil
		}
		switch {
		case werr == syscall.EAGAIN || werr == syscall.EWOULDBLOCK || werr == syscall.ENOBUFS:
			if err := s.waitWritable(ctx); err != nil {
				return err
			}
			continue
		case werr == syscall.ENETDOWN || werr == syscall.ENXIO:
			return fmt.Errorf("%w: %v", ErrBusNotReady, werr)
		default:
			return fmt.Errorf("%w: %v", ErrTransmitFailed, werr)
		}
	}
}

// Receive reads one frame (blocking respecting context).
func (s *socketCAN) Receive(ctx context.Context) (Frame, error) {
	var f Frame
	buf := make([]byte, 16)
	for {
		select {
		case <-s.closed:
			return Frame{}, ErrClosed
		default:
		}
		n, rerr := syscall.Read(s.fd, buf)
		if rerr == nil {
			if n != len(buf) {
				return Frame{}, errors.New("canbus: short read")
			}
			if err := f.UnmarshalBinary(buf); err != nil {
				return Frame{}, err
			}
			return f, nil
		}
		if rerr == syscall.EAGAIN || rerr == syscall.EWOULDBLOCK {
			if err := s.waitReadable(ctx); err != nil {
				return Frame{}, err
			}
			continue
		}
		return Frame{}, rerr
	}
}

func (s *socketCAN) waitReadable(ctx context.Context) error {
	return s.wait(ctx, true, false)
}

func (s *socketCAN) waitWritable(ctx context.Context) error {
	return s.wait(ctx, false, true)
}

func (s *socketCAN) wait(ctx context.Context, r, w bool) error {
	for {
		// Bound each select(2) so cancellation is observed even without a deadline.
		d := 50 * time.Millisecond
		if deadline, ok := ctx.Deadline(); ok {
			left := time.Until(deadline)
			if left <= 0 {
				return ctx.Err()
			}
			if left < d {
				d = left
			}
		}
		timeout := syscall.NsecToTimeval(d.Nanoseconds())

		var readfds, writefds syscall.FdSet
		if r {
			fdSetAdd(&readfds, s.fd)
		}
		if w {
			fdSetAdd(&writefds, s.fd)
		}
		_, err := syscall.Select(s.fd+1, &readfds, &writefds, nil, &timeout)
		if err == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return nil
			}
		}
		if err == syscall.EINTR {
			continue
		}
		return err
	}
}

// fdSetAdd sets fd in set. FdSet words are 32-bit on arm and 64-bit on amd64.
func fdSetAdd(set *syscall.FdSet, fd int) {
	n := int(unsafe.Sizeof(set.Bits[0])) * 8
	set.Bits[fd/n] |= 1 << (uint(fd) % uint(n))
}
