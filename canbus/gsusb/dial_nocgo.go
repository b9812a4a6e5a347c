//go:build !cgo

package gsusb

import "github.com/notnil/thermnode/canbus"

// Dial is unavailable without cgo.
func Dial(opts Options) (canbus.Bus, error) {
	return nil, ErrUnsupported
}
