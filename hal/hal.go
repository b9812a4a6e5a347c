// Package hal provides the node's analog inputs and outputs: an MCP3008
// ADC, the alert line and the fan PWM on a Raspberry Pi through embd, or a
// simulation of them.
package hal

import (
	"errors"
	"fmt"
	"time"
)

// Hardware bundles the I/O a node needs.
type Hardware struct {
	ADC   ADC
	Alert DigitalOutput
	// Fan is nil when no fan pin is configured.
	Fan PWM

	close func() error
}

// ADC reads raw counts.
type ADC interface {
	Read(input int) (int, error)
}

type DigitalOutput interface {
	Set(high bool) error
}

type PWM interface {
	SetDuty(percent uint8) error
}

// Config selects and configures the hardware.
type Config struct {
	Driver     string // "embd" or "sim"
	SPIChannel byte
	SPISpeed   int
	AlertPin   string
	FanPin     string
	FanPeriod  time.Duration
	SimRaw     []int
}

var (
	ErrUnsupported = errors.New("hal: driver not supported on this platform")
	ErrNoInput     = errors.New("hal: no such input")
)

// Open initialises the configured driver.
func Open(cfg Config) (*Hardware, error) {
	switch cfg.Driver {
	case "sim":
		return OpenSim(cfg.SimRaw, cfg.FanPin != ""), nil
	case "embd", "":
		return openEmbd(cfg)
	default:
		return nil, fmt.Errorf("hal: unknown driver %q", cfg.Driver)
	}
}

// Close releases the hardware.
func (h *Hardware) Close() error {
	if h.close == nil {
		return nil
	}
	return h.close()
}
