package node

import (
	"math"
	"sort"
)

// FanCurve maps a temperature to a fan duty cycle in percent. The highest
// threshold at or below the temperature wins; below every threshold the
// lowest one applies. The duty is only recomputed once the temperature has
// moved at least MinTempChange from the one it was last computed for.
type FanCurve struct {
	MinTempChange float64

	temps []float64
	duty  map[float64]uint8

	current  uint8
	lastTemp float64
	set      bool
}

// NewFanCurve maps temperature thresholds to duty cycles in percent. The
// duty is recomputed only after the temperature moved by minTempChange.
func NewFanCurve(curve map[float64]uint8, minTempChange float64) *FanCurve {
	c := &FanCurve{MinTempChange: minTempChange, duty: make(map[float64]uint8, len(curve))}
	for t, d := range curve {
		c.temps = append(c.temps, t)
		c.duty[t] = d
	}
	sort.Float64s(c.temps)
	return c
}

// Update feeds a new temperature and returns the duty and whether it
// changed since the previous call.
func (c *FanCurve) Update(temp float64) (duty uint8, changed bool) {
	if len(c.temps) == 0 {
		return 0, false
	}
	if c.set && math.Abs(temp-c.lastTemp) < c.MinTempChange {
		return c.current, false
	}
	need := c.duty[c.temps[0]]
	for _, t := range c.temps {
		if temp >= t {
			need = c.duty[t]
		}
	}
	changed = !c.set || need != c.current
	c.current, c.lastTemp, c.set = need, temp, true
	return need, changed
}

// Duty returns the last computed duty.
func (c *FanCurve) Duty() uint8 { return c.current }
