// Command thermnode runs a battery pack thermistor node and its tools.
//
//	thermnode -c /etc/thermnode.yaml run
//	thermnode -c /etc/thermnode.yaml watch
//	thermnode table
package main

import (
	"errors"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/notnil/thermnode/config"
)

type globalOptions struct {
	Config    string `short:"c" long:"config" env:"THERMNODE_CONFIG" description:"YAML configuration file; built-in defaults when empty"`
	LogLevel  string `short:"l" long:"log-level" description:"override log.level" choice:"debug" choice:"info" choice:"warn" choice:"error"`
	Driver    string `long:"can-driver" description:"override can.driver" choice:"socketcan" choice:"gsusb" choice:"loopback"`
	Interface string `short:"i" long:"interface" description:"override can.interface"`
}

var opts globalOptions

// loadConfig reads the configuration and applies command line overrides.
func loadConfig() (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if opts.Config == "" {
		cfg, err = config.Parse(nil)
	} else {
		cfg, err = config.Load(opts.Config)
	}
	if err != nil {
		return config.Config{}, err
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.Driver != "" {
		cfg.CAN.Driver = opts.Driver
	}
	if opts.Interface != "" {
		cfg.CAN.Interface = opts.Interface
	}
	return cfg, cfg.Validate()
}

func newParser() *flags.Parser {
	p := flags.NewParser(&opts, flags.Default)
	p.ShortDescription = "battery pack thermistor node"
	_, _ = p.AddCommand("run", "Run the node",
		"Sample the thermistors, broadcast the module frame and drive the outputs until interrupted.",
		&runCommand{})
	_, _ = p.AddCommand("watch", "Watch module broadcasts",
		"Decode thermistor module broadcasts and the ready-to-drive status from the bus.",
		&watchCommand{})
	_, _ = p.AddCommand("table", "Print the calibration table",
		"Print the active calibration table with the raw ADC count expected for each entry.",
		&tableCommand{})
	return p
}

func main() {
	if _, err := newParser().Parse(); err != nil {
		var fe *flags.Error
		if errors.As(err, &fe) && fe.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
