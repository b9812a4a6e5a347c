package config

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrInvalid wraps every validation failure reported by Config.Validate.
var ErrInvalid = errors.New("config: invalid")

func invalid(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalid, field, fmt.Sprintf(format, args...))
}

// Validate checks every section and returns all problems joined.
func (c Config) Validate() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if c.Node.PrintPeriod <= 0 {
		add(invalid("node.print_period", "must be positive"))
	}
	if c.Node.TransmitPeriod <= 0 {
		add(invalid("node.transmit_period", "must be positive"))
	}
	if c.Node.Idle < 0 {
		add(invalid("node.idle", "must not be negative"))
	}

	if len(c.Sensors.Inputs) == 0 {
		add(invalid("sensors.inputs", "at least one channel is required"))
	}
	for i, in := range c.Sensors.Inputs {
		if in < 0 {
			add(invalid("sensors.inputs", "channel %d has negative input %d", i, in))
		}
	}
	if c.Sensors.Reference <= 0 {
		add(invalid("sensors.reference", "must be positive"))
	}
	if c.Sensors.FullScale <= 0 {
		add(invalid("sensors.full_scale", "must be positive"))
	}

	switch c.Conversion.Policy {
	case PolicyTable:
		t, err := c.CalibrationTable()
		add(err)
		if err == nil {
			if err := t.Validate(); err != nil {
				add(invalid("conversion.points", "%v", err))
			}
		}
	case PolicyLinear:
		if c.Conversion.Alpha <= 0 || c.Conversion.Alpha > 1 {
			add(invalid("conversion.alpha", "must be in (0, 1], got %v", c.Conversion.Alpha))
		}
	default:
		add(invalid("conversion.policy", "unknown policy %q", c.Conversion.Policy))
	}

	switch c.CAN.Driver {
	case DriverSocketCAN:
		if c.CAN.Interface == "" {
			add(invalid("can.interface", "required for socketcan"))
		}
	case DriverGSUSB, DriverLoopback:
	default:
		add(invalid("can.driver", "unknown driver %q", c.CAN.Driver))
	}
	if c.CAN.Bitrate == 0 {
		add(invalid("can.bitrate", "must be positive"))
	}
	if c.CAN.SendTimeout <= 0 {
		add(invalid("can.send_timeout", "must be positive"))
	}
	if err := c.CAN.Broadcast.Validate(); err != nil {
		add(invalid("can.broadcast", "%v", err))
	}
	if c.CAN.Status.Enabled {
		if err := c.CAN.Status.ID.Validate(); err != nil {
			add(invalid("can.status.id", "%v", err))
		}
		if c.CAN.Status.Offset < 0 || c.CAN.Status.Offset > 7 {
			add(invalid("can.status.offset", "must be 0..7, got %d", c.CAN.Status.Offset))
		}
	}

	for temp, duty := range c.Fan.Curve {
		if duty > 100 {
			add(invalid("fan.curve", "duty %d%% at %v°C exceeds 100", duty, temp))
		}
	}
	if len(c.Fan.Curve) > 0 && c.Fan.Period <= 0 {
		add(invalid("fan.period", "must be positive"))
	}
	if c.Fan.MinTempChange < 0 {
		add(invalid("fan.min_temp_change", "must not be negative"))
	}

	switch c.HAL.Driver {
	case HALEmbd, HALSim:
	default:
		add(invalid("hal.driver", "unknown driver %q", c.HAL.Driver))
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		add(invalid("log.level", "%v", err))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		add(invalid("log.format", "unknown format %q", c.Log.Format))
	}

	switch c.Telemetry.Sink {
	case SinkNone, "":
	case SinkMQTT:
		if c.Telemetry.MQTT.Broker == "" {
			add(invalid("telemetry.mqtt.broker", "required"))
		}
		if c.Telemetry.MQTT.QoS > 2 {
			add(invalid("telemetry.mqtt.qos", "must be 0..2"))
		}
	case SinkKafka:
		if len(c.Telemetry.Kafka.Brokers) == 0 {
			add(invalid("telemetry.kafka.brokers", "required"))
		}
		if c.Telemetry.Kafka.Topic == "" {
			add(invalid("telemetry.kafka.topic", "required"))
		}
	default:
		add(invalid("telemetry.sink", "unknown sink %q", c.Telemetry.Sink))
	}
	if c.Telemetry.Sink != SinkNone && c.Telemetry.Sink != "" && c.Telemetry.Period <= 0 {
		add(invalid("telemetry.period", "must be positive"))
	}

	return errors.Join(errs...)
}
