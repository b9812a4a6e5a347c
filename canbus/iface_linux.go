//go:build linux

package canbus

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"unsafe"
)

// Linux network interface helpers (no external deps).
// These functions toggle the IFF_UP flag via ioctl on a SOCK_DGRAM socket.
//
// Bringing interfaces up/down requires CAP_NET_ADMIN. Without it they return
// EPERM.

const (
	ifNameSize   = 16     // IFNAMSIZ
	siocGIFFlags = 0x8913 // SIOCGIFFLAGS
	siocSIFFlags = 0x8914 // SIOCSIFFLAGS
	iffUp        = 0x1    // IFF_UP
)

// ifreqFlags mirrors the layout of struct ifreq for flag operations on Linux.
// The union begins with a 2-byte short followed by pad.
type ifreqFlags struct {
	Name  [ifNameSize]byte
	Flags uint16
	pad   [22]byte
}

func checkIfName(name string) error {
	if len(name) == 0 || len(name) >= ifNameSize {
		return fmt.Errorf("canbus: invalid interface name %q", name)
	}
	return nil
}

func ifreqIoctl(name string, req uintptr, ifr *ifreqFlags) error {
	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_DGRAM, 0)
	if err != nil {
		return err
	}
	defer syscall.Close(fd)
	copy(ifr.Name[:], name)
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), req, uintptr(unsafe.Pointer(ifr)))
	if errno != 0 {
		return errno
	}
	return nil
}

func getInterfaceFlags(name string) (uint16, error) {
	if err := checkIfName(name); err != nil {
		return 0, err
	}
	var ifr ifreqFlags
	if err := ifreqIoctl(name, siocGIFFlags, &ifr); err != nil {
		return 0, err
	}
	return ifr.Flags, nil
}

func setInterfaceFlags(name string, flags uint16) error {
	if err := checkIfName(name); err != nil {
		return err
	}
	ifr := ifreqFlags{Flags: flags}
	return ifreqIoctl(name, siocSIFFlags, &ifr)
}

// IsInterfaceUp returns true if the Linux network interface has IFF_UP set.
func IsInterfaceUp(name string) (bool, error) {
	flags, err := getInterfaceFlags(name)
	if err != nil {
		return false, err
	}
	return (flags & iffUp) != 0, nil
}

// SetInterfaceUp sets IFF_UP on the given interface. Requires CAP_NET_ADMIN.
func SetInterfaceUp(name string) error {
	flags, err := getInterfaceFlags(name)
	if err != nil {
		return err
	}
	if (flags & iffUp) != 0 {
		return nil
	}
	return RequireRootOrCapNetAdmin(setInterfaceFlags(name, flags|iffUp))
}

// SetInterfaceDown clears IFF_UP on the given interface. Requires CAP_NET_ADMIN.
func SetInterfaceDown(name string) error {
	flags, err := getInterfaceFlags(name)
	if err != nil {
		return err
	}
	if (flags & iffUp) == 0 {
		return nil
	}
	return RequireRootOrCapNetAdmin(setInterfaceFlags(name, flags&^iffUp))
}

// RequireRootOrCapNetAdmin maps EPERM to a clearer error advising to grant
// CAP_NET_ADMIN to the binary. Other errors, including nil, pass through.
func RequireRootOrCapNetAdmin(err error) error {
	if errors.Is(err, syscall.EPERM) {
		return fmt.Errorf("operation requires CAP_NET_ADMIN (or root): %w", err)
	}
	return err
}

// LinuxCANInterfaceOptions controls common CAN interface parameters through
// the system `ip` tool. Nil fields are left unchanged.
//
// Changing bitrate/restart-ms requires the interface to be DOWN.
type LinuxCANInterfaceOptions struct {
	// Bitrate in bits per second (e.g., 125000, 500000, 1000000).
	Bitrate *uint32

	// RestartMs sets automatic bus-off recovery delay in milliseconds.
	// Set to 0 to disable auto-restart.
	RestartMs *uint32

	// TxQueueLen sets the transmit queue length (number of packets).
	TxQueueLen *int
}

// ConfigureLinuxCANInterface applies the provided options to a Linux CAN network interface
// by invoking the system `ip` command (iproute2). Only the non-nil fields are applied.
func ConfigureLinuxCANInterface(name string, opts LinuxCANInterfaceOptions) error {
	if err := checkIfName(name); err != nil {
		return err
	}

	if opts.TxQueueLen != nil {
		cmd := exec.Command("ip", "link", "set", "dev", name, "txqueuelen", fmt.Sprintf("%d", *opts.TxQueueLen))
		if out, err := cmd.CombinedOutput(); err != nil {
			return RequireRootOrCapNetAdmin(fmt.Errorf("ip link set txqueuelen failed: %w; output: %s", err, string(out)))
		}
	}

	if opts.Bitrate != nil || opts.RestartMs != nil {
		args := []string{"link", "set", "dev", name, "type", "can"}
		if opts.Bitrate != nil {
			args = append(args, "bitrate", fmt.Sprintf("%d", *opts.Bitrate))
		}
		if opts.RestartMs != nil {
			args = append(args, "restart-ms", fmt.Sprintf("%d", *opts.RestartMs))
		}
		cmd := exec.Command("ip", args...)
		if out, err := cmd.CombinedOutput(); err != nil {
			return RequireRootOrCapNetAdmin(fmt.Errorf("ip link set type can failed: %w; output: %s", err, string(out)))
		}
	}
	return nil
}

// BringUpCAN takes the interface down, applies opts and brings it back up.
func BringUpCAN(name string, opts LinuxCANInterfaceOptions) error {
	if err := SetInterfaceDown(name); err != nil {
		return fmt.Errorf("canbus: %s down: %w", name, err)
	}
	if err := ConfigureLinuxCANInterface(name, opts); err != nil {
		return fmt.Errorf("canbus: %s configure: %w", name, err)
	}
	if err := SetInterfaceUp(name); err != nil {
		return fmt.Errorf("canbus: %s up: %w", name, err)
	}
	return nil
}
