package thermistor

import "fmt"

// ADC reads one raw conversion from an analog input.
type ADC interface {
	Read(input int) (int, error)
}

// Channel is one physical thermistor input. Index is the stable position
// used for display and filter state; Input is the ADC input it reads.
type Channel struct {
	Index int
	Input int
}

// Channels returns channels 0..len(inputs)-1 bound to the given ADC inputs.
func Channels(inputs ...int) []Channel {
	chs := make([]Channel, len(inputs))
	for i, in := range inputs {
		chs[i] = Channel{Index: i, Input: in}
	}
	return chs
}

// ADC constants of a 10-bit converter referenced to 5 V.
const (
	DefaultReference = 5.0
	DefaultFullScale = 1023
)

// Sampler converts raw counts into calibrated volts:
//
//	volts = raw * Reference / FullScale + Offset
//
// Raw counts are not clamped.
type Sampler struct {
	ADC       ADC
	Reference float64
	FullScale int
	Offset    float64
}

// NewSampler returns a Sampler with the default reference and full scale.
func NewSampler(adc ADC, offset float64) *Sampler {
	return &Sampler{ADC: adc, Reference: DefaultReference, FullScale: DefaultFullScale, Offset: offset}
}

// Volts converts a raw count without touching the ADC.
func (s *Sampler) Volts(raw int) float64 {
	return float64(raw)*s.Reference/float64(s.FullScale) + s.Offset
}

// Sample reads ch and returns its calibrated voltage.
func (s *Sampler) Sample(ch Channel) (float64, error) {
	raw, err := s.ADC.Read(ch.Input)
	if err != nil {
		return 0, fmt.Errorf("thermistor: read channel %d (input %d): %w", ch.Index, ch.Input, err)
	}
	return s.Volts(raw), nil
}
