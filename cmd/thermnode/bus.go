package main

import (
	"fmt"
	"log/slog"

	"github.com/notnil/thermnode/canbus"
	"github.com/notnil/thermnode/canbus/gsusb"
	"github.com/notnil/thermnode/config"
)

// openBus dials the configured CAN driver. For the loopback driver the
// returned bus is shared with peer, which other in-process endpoints can
// Open.
func openBus(cfg config.CAN, logger *slog.Logger) (bus canbus.Bus, peer *canbus.LoopbackBus, err error) {
	switch cfg.Driver {
	case config.DriverSocketCAN:
		if cfg.ConfigureInterface {
			bitrate := cfg.Bitrate
			if err := canbus.BringUpCAN(cfg.Interface, canbus.LinuxCANInterfaceOptions{Bitrate: &bitrate}); err != nil {
				return nil, nil, fmt.Errorf("configure %s: %w", cfg.Interface, err)
			}
			logger.Info("can interface up", "iface", cfg.Interface, "bitrate", cfg.Bitrate)
		}
		bus, err = canbus.DialSocketCAN(cfg.Interface)
		if err != nil {
			return nil, nil, fmt.Errorf("dial %s: %w", cfg.Interface, err)
		}
	case config.DriverGSUSB:
		bus, err = gsusb.Dial(gsusb.Options{Channel: cfg.GSUSBChannel, Bitrate: cfg.Bitrate})
		if err != nil {
			return nil, nil, err
		}
	case config.DriverLoopback:
		peer = canbus.NewLoopbackBus()
		bus = peer.Open()
	default:
		return nil, nil, fmt.Errorf("unknown can driver %q", cfg.Driver)
	}
	logger.Info("can bus open", "driver", cfg.Driver, "iface", cfg.Interface)
	if cfg.LogFrames {
		bus = canbus.NewLoggedBus(bus, logger, slog.LevelDebug, canbus.LogAll)
	}
	return bus, peer, nil
}
