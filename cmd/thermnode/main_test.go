package main

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notnil/thermnode/canbus"
	"github.com/notnil/thermnode/config"
	"github.com/notnil/thermnode/logging"
	"github.com/notnil/thermnode/orion"
	"github.com/notnil/thermnode/thermistor"
)

func withOptions(t *testing.T, o globalOptions) {
	t.Helper()
	saved := opts
	opts = o
	t.Cleanup(func() { opts = saved })
}

func TestLoadConfig_Overrides(t *testing.T) {
	withOptions(t, globalOptions{LogLevel: "debug", Driver: "loopback", Interface: "vcan0"})
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, config.DriverLoopback, cfg.CAN.Driver)
	assert.Equal(t, "vcan0", cfg.CAN.Interface)
	assert.NotEmpty(t, cfg.Node.ID)
}

func TestLoadConfig_File(t *testing.T) {
	withOptions(t, globalOptions{Config: "../../examples/thermnode.yaml"})
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.DriverSocketCAN, cfg.CAN.Driver)
}

func TestLoadConfig_Missing(t *testing.T) {
	withOptions(t, globalOptions{Config: "does-not-exist.yaml"})
	_, err := loadConfig()
	assert.Error(t, err)
}

func TestParserCommands(t *testing.T) {
	p := newParser()
	for _, name := range []string{"run", "watch", "table"} {
		assert.NotNil(t, p.Find(name), name)
	}
}

func TestBuildConverter(t *testing.T) {
	cfg := config.Default()
	c, err := buildConverter(cfg)
	require.NoError(t, err)
	assert.IsType(t, thermistor.TableLookup{}, c)

	cfg.Conversion.Policy = config.PolicyLinear
	cfg.Conversion.Prime = true
	c, err = buildConverter(cfg)
	require.NoError(t, err)
	f, ok := c.(*thermistor.LinearFilter)
	require.True(t, ok)
	assert.True(t, f.Prime)
	assert.Equal(t, thermistor.DefaultSlope, f.Slope)

	cfg.Conversion.Policy = "cubic"
	_, err = buildConverter(cfg)
	assert.Error(t, err)
}

func TestExpectedRaw(t *testing.T) {
	s := config.Default().Sensors
	assert.Equal(t, 430, expectedRaw(s, 2.0))
	assert.Equal(t, 0, expectedRaw(s, -1))
	assert.Equal(t, s.FullScale, expectedRaw(s, 10))
}

func TestRenderTable(t *testing.T) {
	out, err := renderTable(config.Default())
	require.NoError(t, err)
	assert.Contains(t, out, "VOLTS")
	assert.Contains(t, out, "1.36")
	assert.Contains(t, out, "120")

	cfg := config.Default()
	cfg.Conversion.Policy = config.PolicyLinear
	out, err = renderTable(cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "-140.35")
}

func TestOpenBus_Loopback(t *testing.T) {
	cfg := config.Default().CAN
	cfg.Driver = config.DriverLoopback
	cfg.LogFrames = true
	bus, peer, err := openBus(cfg, logging.Discard())
	require.NoError(t, err)
	require.NotNil(t, peer)
	defer bus.Close()

	other := peer.Open()
	defer other.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	f := canbus.Frame{ID: 0x123, Len: 1, Data: [8]byte{7}}
	require.NoError(t, bus.Send(ctx, f))
	got, err := other.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, f, got)
}

func TestOpenBus_Unknown(t *testing.T) {
	cfg := config.Default().CAN
	cfg.Driver = "serial"
	_, _, err := openBus(cfg, logging.Discard())
	assert.Error(t, err)
}

func TestRun_Simulated(t *testing.T) {
	cfg := config.Default()
	cfg.Node.ID = "test"
	cfg.CAN.Driver = config.DriverLoopback
	cfg.CAN.Status.Enabled = true
	cfg.HAL.Driver = config.HALSim

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := run(ctx, cfg, logging.Discard())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRun_NodeErrorStartsNoGoroutines(t *testing.T) {
	cfg := config.Default()
	cfg.Node.ID = "test"
	cfg.CAN.Driver = config.DriverLoopback
	cfg.HAL.Driver = config.HALSim
	cfg.Telemetry.Sink = config.SinkKafka
	cfg.Telemetry.Kafka.Brokers = []string{"127.0.0.1:1"}
	// A standard frame cannot carry 0x800, so node.New rejects it.
	cfg.CAN.Broadcast = orion.Identifier{ID: 0x800}

	before := runtime.NumGoroutine()
	err := run(context.Background(), cfg, logging.Discard())
	require.Error(t, err)
	assert.Eventually(t, func() bool { return runtime.NumGoroutine() <= before },
		time.Second, 10*time.Millisecond)
}
