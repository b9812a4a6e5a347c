package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/notnil/thermnode/config"
	"github.com/notnil/thermnode/thermistor"
)

type tableCommand struct{}

func (c *tableCommand) Execute([]string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out, err := renderTable(cfg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, out)
	return err
}

// expectedRaw is the ADC count at which the sampler reports volts.
func expectedRaw(s config.Sensors, volts float64) int {
	raw := (volts - s.Offset) * float64(s.FullScale) / s.Reference
	switch {
	case raw < 0:
		return 0
	case raw > float64(s.FullScale):
		return s.FullScale
	}
	return int(raw + 0.5)
}

func renderTable(cfg config.Config) (string, error) {
	var t thermistor.Table
	switch cfg.Conversion.Policy {
	case config.PolicyTable:
		var err error
		if t, err = cfg.CalibrationTable(); err != nil {
			return "", err
		}
	default:
		return fmt.Sprintf("conversion policy %q: T = %.2f*V + %.2f, alpha %g",
			cfg.Conversion.Policy, cfg.Conversion.Slope, cfg.Conversion.Intercept, cfg.Conversion.Alpha), nil
	}

	rows := make([][]string, 0, len(t))
	for i, p := range t {
		rows = append(rows, []string{
			strconv.Itoa(i),
			strconv.FormatFloat(p.Volts, 'f', 2, 64),
			strconv.FormatFloat(p.TempC, 'f', 0, 64),
			strconv.Itoa(expectedRaw(cfg.Sensors, p.Volts)),
		})
	}
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "VOLTS", "TEMP °C", "RAW").
		Rows(rows...)
	return tbl.String(), nil
}
