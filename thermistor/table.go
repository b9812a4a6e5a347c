package thermistor

import (
	"errors"
	"fmt"
)

// Point is one calibration entry.
type Point struct {
	Volts float64 `yaml:"volts" json:"volts"`
	TempC float64 `yaml:"temp_c" json:"temp_c"`
}

// Table is an ordered calibration table with strictly decreasing voltages.
type Table []Point

// ErrInvalidTable indicates an empty table or voltages that are not strictly
// decreasing.
var ErrInvalidTable = errors.New("thermistor: invalid calibration table")

// Validate reports whether t is non-empty and strictly decreasing in voltage.
func (t Table) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidTable)
	}
	for i := 1; i < len(t); i++ {
		if t[i].Volts >= t[i-1].Volts {
			return fmt.Errorf("%w: entry %d (%.2f V) not below entry %d (%.2f V)",
				ErrInvalidTable, i, t[i].Volts, i-1, t[i-1].Volts)
		}
	}
	return nil
}

// Li4P25RT is the divider response of the Li-ion building block Li4P25RT
// thermistor, -40 °C to 120 °C in 5 °C steps.
var Li4P25RT = Table{
	{2.44, -40}, {2.42, -35}, {2.40, -30}, {2.38, -25}, {2.35, -20},
	{2.32, -15}, {2.27, -10}, {2.23, -5}, {2.17, 0}, {2.11, 5},
	{2.05, 10}, {1.99, 15}, {1.86, 20}, {1.80, 25}, {1.74, 30},
	{1.68, 35}, {1.63, 40}, {1.59, 45}, {1.55, 50}, {1.51, 55},
	{1.48, 60}, {1.45, 65}, {1.43, 70}, {1.40, 75}, {1.38, 80},
	{1.37, 85}, {1.36, 90}, {1.35, 95}, {1.34, 100}, {1.33, 105},
	{1.32, 110}, {1.31, 115}, {1.30, 120},
}

// Tables lists the built-in calibration tables by name.
var Tables = map[string]Table{
	"li4p25rt": Li4P25RT,
}
