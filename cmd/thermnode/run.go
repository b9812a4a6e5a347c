package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/notnil/thermnode/canbus"
	"github.com/notnil/thermnode/config"
	"github.com/notnil/thermnode/hal"
	"github.com/notnil/thermnode/logging"
	"github.com/notnil/thermnode/metrics"
	"github.com/notnil/thermnode/node"
	"github.com/notnil/thermnode/orion"
	"github.com/notnil/thermnode/statusapi"
	"github.com/notnil/thermnode/telemetry"
	"github.com/notnil/thermnode/thermistor"
)

type runCommand struct {
	HAL string `long:"hal" description:"override hal.driver" choice:"embd" choice:"sim"`
	Sim bool   `long:"sim" description:"run without hardware: loopback CAN and simulated I/O"`
}

func (c *runCommand) Execute([]string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if c.HAL != "" {
		cfg.HAL.Driver = c.HAL
	}
	if c.Sim {
		cfg.HAL.Driver = config.HALSim
		cfg.CAN.Driver = config.DriverLoopback
	}

	logger, closer, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = run(ctx, cfg, logger)
	if errors.Is(err, context.Canceled) {
		logger.Info("stopped")
		return nil
	}
	if err != nil {
		logger.Error("node failed", "err", err)
	}
	return err
}

// buildConverter returns the temperature conversion policy of cfg.
func buildConverter(cfg config.Config) (thermistor.Converter, error) {
	switch cfg.Conversion.Policy {
	case config.PolicyTable:
		t, err := cfg.CalibrationTable()
		if err != nil {
			return nil, err
		}
		return thermistor.TableLookup{Table: t}, nil
	case config.PolicyLinear:
		c := cfg.Conversion
		f := thermistor.NewLinearFilter(len(cfg.Sensors.Inputs), c.Slope, c.Intercept, c.Alpha, c.Corrections)
		f.Prime = c.Prime
		return f, nil
	default:
		return nil, fmt.Errorf("unknown conversion policy %q", cfg.Conversion.Policy)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger = logger.With("node", cfg.Node.ID)

	bus, _, err := openBus(cfg.CAN, logger)
	if err != nil {
		return err
	}
	defer bus.Close()

	hw, err := hal.Open(hal.Config{
		Driver:     cfg.HAL.Driver,
		SPIChannel: cfg.HAL.SPIChannel,
		SPISpeed:   cfg.HAL.SPISpeed,
		AlertPin:   cfg.Alert.Pin,
		FanPin:     cfg.Fan.Pin,
		FanPeriod:  cfg.Fan.Period,
		SimRaw:     cfg.HAL.SimRaw,
	})
	if err != nil {
		return err
	}
	defer hw.Close()

	conv, err := buildConverter(cfg)
	if err != nil {
		return err
	}

	m := metrics.New()
	nopts := node.Options{
		Aggregator: &thermistor.Aggregator{
			Sampler: &thermistor.Sampler{
				ADC:       hw.ADC,
				Reference: cfg.Sensors.Reference,
				FullScale: cfg.Sensors.FullScale,
				Offset:    cfg.Sensors.Offset,
			},
			Converter: conv,
			Channels:  thermistor.Channels(cfg.Sensors.Inputs...),
		},
		Bus: bus,
		Broadcast: orion.ModuleBroadcast{
			ID:        cfg.CAN.Broadcast,
			Module:    cfg.CAN.Module,
			Enabled:   cfg.CAN.Enabled,
			HighestID: cfg.CAN.HighestID,
			LowestID:  cfg.CAN.LowestID,
		},
		Alert:          hw.Alert,
		AlertThreshold: cfg.Alert.Threshold,
		PrintPeriod:    cfg.Node.PrintPeriod,
		TransmitPeriod: cfg.Node.TransmitPeriod,
		SendTimeout:    cfg.CAN.SendTimeout,
		Idle:           cfg.Node.Idle,
		Observers:      []node.Observer{m},
		Logger:         logger,
	}
	if hw.Fan != nil {
		nopts.Fan = hw.Fan
	}
	if len(cfg.Fan.Curve) > 0 {
		nopts.FanCurve = node.NewFanCurve(cfg.Fan.Curve, cfg.Fan.MinTempChange)
	}

	if cfg.CAN.Status.Enabled {
		mux := canbus.NewMux(bus)
		defer mux.Close()
		codec := orion.StatusCodec{ID: cfg.CAN.Status.ID, Offset: cfg.CAN.Status.Offset}
		frames, cancel := mux.Subscribe(codec.Filter(), 8)
		defer cancel()
		nopts.Inbound = frames
		nopts.StatusCodec = codec
	}

	pub, err := openPublisher(cfg.Telemetry, cfg.Node.ID)
	if err != nil {
		return err
	}
	var fwd *telemetry.Forwarder
	if pub != nil {
		defer pub.Close()
		fwd = telemetry.NewForwarder(pub, cfg.Node.ID, cfg.Telemetry.Period, cfg.Telemetry.Buffer, logger)
		nopts.Observers = append(nopts.Observers, fwd)
	}

	// Everything that can fail is built before the group starts.
	n, err := node.New(nopts)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	if fwd != nil {
		g.Go(func() error { return fwd.Run(ctx) })
	}
	if cfg.HTTP.Addr != "" {
		api := statusapi.New(n, cfg.Node.ID)
		g.Go(func() error {
			return statusapi.ListenAndServe(ctx, cfg.HTTP.Addr, api.Router(m.Handler()), accessLog(cfg.Log), logger)
		})
	}

	logger.Info("node started",
		"channels", len(cfg.Sensors.Inputs),
		"policy", cfg.Conversion.Policy,
		"broadcast", cfg.CAN.Broadcast.String(),
		"status", cfg.CAN.Status.Enabled,
	)
	g.Go(func() error { return n.Run(ctx) })
	return g.Wait()
}

// openPublisher returns nil when telemetry is disabled.
func openPublisher(cfg config.Telemetry, nodeID string) (telemetry.Publisher, error) {
	switch cfg.Sink {
	case config.SinkMQTT:
		clientID := cfg.MQTT.ClientID
		if clientID == "" {
			clientID = "thermnode-" + nodeID
		}
		return telemetry.DialMQTT(telemetry.MQTTOptions{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: clientID,
			QoS:      cfg.MQTT.QoS,
		})
	case config.SinkKafka:
		return telemetry.NewKafka(telemetry.KafkaOptions{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic}), nil
	default:
		return nil, nil
	}
}

func accessLog(cfg config.Log) io.Writer {
	if cfg.Level == "debug" {
		return os.Stderr
	}
	return io.Discard
}
