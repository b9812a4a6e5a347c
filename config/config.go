// Package config loads the thermnode YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/notnil/thermnode/orion"
	"github.com/notnil/thermnode/thermistor"
)

// Config is the full node configuration.
type Config struct {
	Node       Node       `yaml:"node"`
	Sensors    Sensors    `yaml:"sensors"`
	Conversion Conversion `yaml:"conversion"`
	CAN        CAN        `yaml:"can"`
	Alert      Alert      `yaml:"alert"`
	Fan        Fan        `yaml:"fan"`
	HAL        HAL        `yaml:"hal"`
	Log        Log        `yaml:"log"`
	Telemetry  Telemetry  `yaml:"telemetry"`
	HTTP       HTTP       `yaml:"http"`
}

// Node holds loop timing and identity.
type Node struct {
	// ID names this node in telemetry. A random UUID is used when empty.
	ID             string        `yaml:"id"`
	PrintPeriod    time.Duration `yaml:"print_period"`
	TransmitPeriod time.Duration `yaml:"transmit_period"`
	// Idle is slept between cycles; zero spins.
	Idle time.Duration `yaml:"idle"`
}

type Sensors struct {
	// Inputs are the ADC inputs of channels 0..N-1.
	Inputs    []int   `yaml:"inputs"`
	Reference float64 `yaml:"reference"`
	FullScale int     `yaml:"full_scale"`
	// Offset is the per-board calibration offset in volts.
	Offset float64 `yaml:"offset"`
}

// Conversion policies.
const (
	PolicyTable  = "table"
	PolicyLinear = "linear"
)

type Conversion struct {
	Policy string `yaml:"policy"`

	// Table names a built-in calibration table; Points overrides it.
	Table  string           `yaml:"table"`
	Points thermistor.Table `yaml:"points,omitempty"`

	Slope       float64                `yaml:"slope"`
	Intercept   float64                `yaml:"intercept"`
	Alpha       float64                `yaml:"alpha"`
	Corrections thermistor.Corrections `yaml:"corrections"`
	Prime       bool                   `yaml:"prime"`
}

// CAN drivers.
const (
	DriverSocketCAN = "socketcan"
	DriverGSUSB     = "gsusb"
	DriverLoopback  = "loopback"
)

type CAN struct {
	Driver    string `yaml:"driver"`
	Interface string `yaml:"interface"`
	Bitrate   uint32 `yaml:"bitrate"`
	// ConfigureInterface brings the SocketCAN interface down, sets the
	// bitrate and brings it up again before dialing.
	ConfigureInterface bool  `yaml:"configure_interface"`
	GSUSBChannel       uint8 `yaml:"gsusb_channel"`

	SendTimeout time.Duration `yaml:"send_timeout"`
	LogFrames   bool          `yaml:"log_frames"`

	Broadcast orion.Identifier `yaml:"broadcast"`
	Module    uint8            `yaml:"module"`
	Enabled   uint8            `yaml:"enabled"`
	HighestID uint8            `yaml:"highest_id"`
	LowestID  uint8            `yaml:"lowest_id"`

	Status Status `yaml:"status"`
}

// Status configures the optional ready-to-drive receive path.
type Status struct {
	Enabled bool             `yaml:"enabled"`
	ID      orion.Identifier `yaml:"id"`
	Offset  int              `yaml:"offset"`
}

type Alert struct {
	Threshold float64 `yaml:"threshold"`
	Pin       string  `yaml:"pin"`
}

type Fan struct {
	Pin string `yaml:"pin"`
	// Period is the PWM period.
	Period        time.Duration     `yaml:"period"`
	MinTempChange float64           `yaml:"min_temp_change"`
	Curve         map[float64]uint8 `yaml:"curve,omitempty"`
}

// HAL drivers.
const (
	HALEmbd = "embd"
	HALSim  = "sim"
)

type HAL struct {
	Driver     string `yaml:"driver"`
	SPIChannel byte   `yaml:"spi_channel"`
	SPISpeed   int    `yaml:"spi_speed"`
	// SimRaw are the raw counts returned by the simulated ADC, by input.
	SimRaw []int `yaml:"sim_raw"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Telemetry sinks.
const (
	SinkNone  = "none"
	SinkMQTT  = "mqtt"
	SinkKafka = "kafka"
)

type Telemetry struct {
	Sink   string        `yaml:"sink"`
	Period time.Duration `yaml:"period"`
	Buffer int           `yaml:"buffer"`
	MQTT   MQTT          `yaml:"mqtt"`
	Kafka  Kafka         `yaml:"kafka"`
}

type MQTT struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	QoS      byte   `yaml:"qos"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers,omitempty"`
	Topic   string   `yaml:"topic"`
}

type HTTP struct {
	// Addr enables the status API when set, e.g. ":9100".
	Addr string `yaml:"addr"`
}

// Default returns the configuration of the stock thermistor module: five
// channels on a Li4P25RT table, broadcasting as module 0 every 100 ms.
func Default() Config {
	return Config{
		Node: Node{
			PrintPeriod:    500 * time.Millisecond,
			TransmitPeriod: 100 * time.Millisecond,
			Idle:           time.Millisecond,
		},
		Sensors: Sensors{
			Inputs:    []int{0, 1, 2, 3, 4},
			Reference: thermistor.DefaultReference,
			FullScale: thermistor.DefaultFullScale,
			Offset:    -0.10,
		},
		Conversion: Conversion{
			Policy:      PolicyTable,
			Table:       "li4p25rt",
			Slope:       thermistor.DefaultSlope,
			Intercept:   thermistor.DefaultIntercept,
			Alpha:       thermistor.DefaultAlpha,
			Corrections: thermistor.DefaultCorrections,
		},
		CAN: CAN{
			Driver:      DriverSocketCAN,
			Interface:   "can0",
			Bitrate:     500000,
			SendTimeout: 10 * time.Millisecond,
			Broadcast:   orion.BroadcastID,
			Enabled:     1,
			HighestID:   1,
			Status:      Status{ID: orion.StatusID},
		},
		Alert: Alert{Threshold: 50, Pin: "17"},
		Fan: Fan{
			Period:        40 * time.Microsecond,
			MinTempChange: 2,
		},
		HAL: HAL{
			Driver:   HALEmbd,
			SPISpeed: 1000000,
			SimRaw:   []int{389, 400, 380, 395, 410},
		},
		Log: Log{Level: "info", Format: "text"},
		Telemetry: Telemetry{
			Sink:   SinkNone,
			Period: time.Second,
			Buffer: 16,
			MQTT:   MQTT{Topic: "thermnode/snapshot"},
			Kafka:  Kafka{Topic: "thermnode.snapshot"},
		},
	}
}

// Load reads path over the defaults, fills the node ID and validates.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(b []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if cfg.Node.ID == "" {
		cfg.Node.ID = uuid.NewString()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// CalibrationTable returns the table selected by the conversion section.
func (c Config) CalibrationTable() (thermistor.Table, error) {
	if len(c.Conversion.Points) > 0 {
		return c.Conversion.Points, nil
	}
	t, ok := thermistor.Tables[c.Conversion.Table]
	if !ok {
		return nil, fmt.Errorf("%w: conversion.table: unknown table %q", ErrInvalid, c.Conversion.Table)
	}
	return t, nil
}

// Marshal renders c as YAML.
func (c Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
