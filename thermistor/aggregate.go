package thermistor

import "errors"

// ErrNoChannels is returned by Aggregator.Cycle when no channels are configured.
var ErrNoChannels = errors.New("thermistor: no channels")

// Snapshot is the result of one aggregation cycle.
type Snapshot struct {
	Volts    []float64 `json:"volts"`
	Temps    []float64 `json:"temps"`
	MinIndex int       `json:"min_index"`
	MaxIndex int       `json:"max_index"`
	AvgTemp  int       `json:"avg"`
}

// Min returns the temperature of the coldest channel.
func (s Snapshot) Min() float64 { return s.at(s.MinIndex) }

// Max returns the temperature of the hottest channel.
func (s Snapshot) Max() float64 { return s.at(s.MaxIndex) }

func (s Snapshot) at(i int) float64 {
	if i < 0 || i >= len(s.Temps) {
		return 0
	}
	return s.Temps[i]
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s Snapshot) Clone() Snapshot {
	c := s
	c.Volts = append([]float64(nil), s.Volts...)
	c.Temps = append([]float64(nil), s.Temps...)
	return c
}

// Summarize computes min/max leaders and the integer average of temps.
// The first entry leads both; later entries take the lead only on strict
// inequality. The average is the sum of truncated readings divided by the
// count with integer division.
func Summarize(temps []float64) (minIdx, maxIdx, avg int) {
	if len(temps) == 0 {
		return 0, 0, 0
	}
	sum := 0
	for i, t := range temps {
		sum += int(t)
		if t > temps[maxIdx] {
			maxIdx = i
		}
		if t < temps[minIdx] {
			minIdx = i
		}
	}
	return minIdx, maxIdx, sum / len(temps)
}

// Aggregator samples and converts every channel in order.
type Aggregator struct {
	Sampler   *Sampler
	Converter Converter
	Channels  []Channel
}

// Cycle runs one pass over all channels. A sampling error aborts the pass.
func (a *Aggregator) Cycle() (Snapshot, error) {
	n := len(a.Channels)
	if n == 0 {
		return Snapshot{}, ErrNoChannels
	}
	s := Snapshot{Volts: make([]float64, n), Temps: make([]float64, n)}
	for i, ch := range a.Channels {
		v, err := a.Sampler.Sample(ch)
		if err != nil {
			return Snapshot{}, err
		}
		s.Volts[i] = v
		s.Temps[i] = a.Converter.Convert(ch.Index, v)
	}
	s.MinIndex, s.MaxIndex, s.AvgTemp = Summarize(s.Temps)
	return s, nil
}
