package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/notnil/thermnode/canbus"
	"github.com/notnil/thermnode/logging"
	"github.com/notnil/thermnode/monitor"
	"github.com/notnil/thermnode/orion"
)

type watchCommand struct {
	Any      bool `long:"any" description:"decode any 8-byte frame with a valid checksum, not only the configured broadcast id"`
	WarnTemp int8 `long:"warn" default:"45" description:"highlight temperatures at or above this (°C)"`
	CritTemp int8 `long:"crit" default:"55" description:"alarm temperatures at or above this (°C)"`
}

func (c *watchCommand) Execute([]string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// The TUI owns the terminal; logs only go to the configured file.
	logger, closer, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File, Out: io.Discard})
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus, _, err := openBus(cfg.CAN, logger)
	if err != nil {
		return err
	}
	defer bus.Close()

	mux := canbus.NewMux(bus)
	defer mux.Close()

	filter := cfg.CAN.Broadcast.Filter()
	if c.Any {
		filter = nil
	}
	broadcasts, cancel := orion.SubscribeBroadcasts(mux, filter, 64)
	defer cancel()

	var statuses <-chan orion.Status
	if cfg.CAN.Status.Enabled {
		ch, cancel := orion.SubscribeStatus(mux, orion.StatusCodec{ID: cfg.CAN.Status.ID, Offset: cfg.CAN.Status.Offset}, 8)
		defer cancel()
		statuses = ch
	}

	return monitor.Run(ctx, broadcasts, statuses, monitor.Options{
		Title:    "thermnode watch " + cfg.CAN.Interface,
		WarnTemp: c.WarnTemp,
		CritTemp: c.CritTemp,
	})
}
