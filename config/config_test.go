package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notnil/thermnode/orion"
	"github.com/notnil/thermnode/thermistor"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	_, err = uuid.Parse(cfg.Node.ID)
	assert.NoError(t, err, "node id should default to a uuid")
	assert.Equal(t, orion.BroadcastID, cfg.CAN.Broadcast)
	assert.Equal(t, 100*time.Millisecond, cfg.Node.TransmitPeriod)
}

func TestParse_Full(t *testing.T) {
	src := `
node:
  id: pack-front
  print_period: 250ms
  transmit_period: 100ms
sensors:
  inputs: [0, 1, 2]
  offset: 0.10
conversion:
  policy: linear
  alpha: 0.001
  prime: true
  corrections:
    - {at_or_above: 45, subtract: 5}
can:
  driver: gsusb
  bitrate: 250000
  broadcast: {id: 0x6B0, extended: false}
  module: 2
  status:
    enabled: true
    id: {id: 0x879, extended: true}
fan:
  pin: "18"
  min_temp_change: 1.5
  curve:
    0: 20
    30: 50
    45: 100
telemetry:
  sink: mqtt
  mqtt:
    broker: tcp://localhost:1883
`
	cfg, err := Parse([]byte(src))
	require.NoError(t, err)

	assert.Equal(t, "pack-front", cfg.Node.ID)
	assert.Equal(t, 250*time.Millisecond, cfg.Node.PrintPeriod)
	assert.Equal(t, []int{0, 1, 2}, cfg.Sensors.Inputs)
	assert.Equal(t, 0.10, cfg.Sensors.Offset)
	assert.Equal(t, thermistor.DefaultReference, cfg.Sensors.Reference)
	assert.Equal(t, PolicyLinear, cfg.Conversion.Policy)
	assert.True(t, cfg.Conversion.Prime)
	assert.Equal(t, thermistor.Corrections{{AtOrAbove: 45, Subtract: 5}}, cfg.Conversion.Corrections)
	assert.Equal(t, orion.Identifier{ID: 0x6B0}, cfg.CAN.Broadcast)
	assert.Equal(t, uint8(2), cfg.CAN.Module)
	assert.True(t, cfg.CAN.Status.Enabled)
	assert.Equal(t, orion.StatusID, cfg.CAN.Status.ID)
	assert.Equal(t, map[float64]uint8{0: 20, 30: 50, 45: 100}, cfg.Fan.Curve)
	assert.Equal(t, SinkMQTT, cfg.Telemetry.Sink)
	assert.Equal(t, "thermnode/snapshot", cfg.Telemetry.MQTT.Topic)
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("node:\n  speed: 3\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no channels", func(c *Config) { c.Sensors.Inputs = nil }},
		{"zero transmit period", func(c *Config) { c.Node.TransmitPeriod = 0 }},
		{"unknown policy", func(c *Config) { c.Conversion.Policy = "spline" }},
		{"unknown table", func(c *Config) { c.Conversion.Table = "ntc10k" }},
		{"non monotonic points", func(c *Config) { c.Conversion.Points = thermistor.Table{{Volts: 1, TempC: 0}, {Volts: 2, TempC: 5}} }},
		{"alpha out of range", func(c *Config) { c.Conversion.Policy = PolicyLinear; c.Conversion.Alpha = 1.5 }},
		{"standard id too large", func(c *Config) { c.CAN.Broadcast = orion.Identifier{ID: 0x1839F380} }},
		{"status offset", func(c *Config) { c.CAN.Status.Enabled = true; c.CAN.Status.Offset = 8 }},
		{"fan duty", func(c *Config) { c.Fan.Curve = map[float64]uint8{40: 120} }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"kafka without brokers", func(c *Config) { c.Telemetry.Sink = SinkKafka }},
		{"unknown driver", func(c *Config) { c.CAN.Driver = "slcan" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestValidate_JoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Sensors.Inputs = nil
	cfg.Log.Format = "xml"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sensors.inputs")
	assert.Contains(t, err.Error(), "log.format")
}

func TestLoad_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Node.ID = "node-a"
	cfg.Fan.Curve = map[float64]uint8{0: 0, 40: 80}
	b, err := cfg.Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "thermnode.yaml")
	require.NoError(t, os.WriteFile(path, b, 0o644))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "examples", "thermnode.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DriverSocketCAN, cfg.CAN.Driver)
}
