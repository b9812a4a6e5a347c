package thermistor

import "math"

// Converter maps a channel's voltage to a temperature in °C. Implementations
// always return a value.
type Converter interface {
	Convert(channel int, volts float64) float64
}

// TableLookup returns the temperature of the nearest table entry.
type TableLookup struct {
	Table Table
}

// Convert scans the whole table. The held best is replaced whenever an entry
// is at least as close, so on an exact tie the later entry wins.
func (l TableLookup) Convert(_ int, volts float64) float64 {
	if len(l.Table) == 0 {
		return 0
	}
	best := 0
	bestDiff := math.Abs(l.Table[0].Volts - volts)
	for i := 1; i < len(l.Table); i++ {
		d := math.Abs(l.Table[i].Volts - volts)
		if d <= bestDiff {
			best, bestDiff = i, d
		}
	}
	return l.Table[best].TempC
}

// Correction subtracts Subtract from temperatures at or above AtOrAbove.
type Correction struct {
	AtOrAbove float64 `yaml:"at_or_above"`
	Subtract  float64 `yaml:"subtract"`
}

// Corrections is a piecewise offset table. The rule with the highest
// threshold not above the temperature applies; no rule means no change.
type Corrections []Correction

// DefaultCorrections compensate the linear model's error at the warm end.
var DefaultCorrections = Corrections{
	{AtOrAbove: 40, Subtract: 20},
	{AtOrAbove: 30, Subtract: 10},
}

// Apply returns t with the matching correction applied.
func (c Corrections) Apply(t float64) float64 {
	match := -1
	for i, r := range c {
		if t >= r.AtOrAbove && (match < 0 || r.AtOrAbove > c[match].AtOrAbove) {
			match = i
		}
	}
	if match < 0 {
		return t
	}
	return t - c[match].Subtract
}

// Linear model defaults. Slope and intercept are the line through the
// Li4P25RT endpoints, -40 °C at 2.44 V and 120 °C at 1.30 V.
const (
	DefaultSlope     = -140.35
	DefaultIntercept = 302.46
	DefaultAlpha     = 0.0003
)

// LinearFilter converts with raw = Slope*volts + Intercept, smooths raw
// per channel with an exponential filter and corrects the filtered value.
// Corrections affect the output only, never the filter state.
type LinearFilter struct {
	Slope       float64
	Intercept   float64
	Alpha       float64
	Corrections Corrections
	// Prime seeds a channel's state with its first raw reading instead of 0.
	Prime bool

	state  []float64
	primed []bool
}

// NewLinearFilter returns a filter with state for n channels.
func NewLinearFilter(n int, slope, intercept, alpha float64, corr Corrections) *LinearFilter {
	return &LinearFilter{
		Slope:       slope,
		Intercept:   intercept,
		Alpha:       alpha,
		Corrections: corr,
		state:       make([]float64, n),
		primed:      make([]bool, n),
	}
}

// Convert updates the filter state of channel and returns the corrected
// estimate.
func (f *LinearFilter) Convert(channel int, volts float64) float64 {
	f.grow(channel)
	raw := f.Slope*volts + f.Intercept
	if f.Prime && !f.primed[channel] {
		f.state[channel] = raw
	} else {
		f.state[channel] = f.Alpha*raw + (1-f.Alpha)*f.state[channel]
	}
	f.primed[channel] = true
	return f.Corrections.Apply(f.state[channel])
}

// State returns the uncorrected filter value of channel.
func (f *LinearFilter) State(channel int) float64 {
	if channel < 0 || channel >= len(f.state) {
		return 0
	}
	return f.state[channel]
}

func (f *LinearFilter) grow(channel int) {
	for len(f.state) <= channel {
		f.state = append(f.state, 0)
		f.primed = append(f.primed, false)
	}
}
