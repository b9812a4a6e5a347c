//go:build !linux

package canbus

import "errors"

var errNoSocketCAN = errors.New("canbus: SocketCAN is only available on linux")

// DialSocketCAN is unavailable outside Linux.
func DialSocketCAN(iface string) (Bus, error) {
	return nil, errNoSocketCAN
}

// LinuxCANInterfaceOptions mirrors the Linux type so callers compile everywhere.
type LinuxCANInterfaceOptions struct {
	Bitrate    *uint32
	RestartMs  *uint32
	TxQueueLen *int
}

// BringUpCAN is unavailable outside Linux.
func BringUpCAN(name string, opts LinuxCANInterfaceOptions) error {
	return errNoSocketCAN
}
