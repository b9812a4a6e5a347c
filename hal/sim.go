package hal

import (
	"fmt"
	"sync"
)

// SimADC returns fixed raw counts per input.
type SimADC struct {
	mu  sync.Mutex
	raw []int
}

func NewSimADC(raw []int) *SimADC {
	return &SimADC{raw: append([]int(nil), raw...)}
}

func (s *SimADC) Read(input int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if input < 0 || input >= len(s.raw) {
		return 0, fmt.Errorf("%w: %d", ErrNoInput, input)
	}
	return s.raw[input], nil
}

// SetRaw changes the count returned for input, growing the table as needed.
func (s *SimADC) SetRaw(input, raw int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.raw) <= input {
		s.raw = append(s.raw, 0)
	}
	s.raw[input] = raw
}

// SimOutput remembers the last level written.
type SimOutput struct {
	mu     sync.Mutex
	high   bool
	writes int
}

func (o *SimOutput) Set(high bool) error {
	o.mu.Lock()
	o.high = high
	o.writes++
	o.mu.Unlock()
	return nil
}

// High returns the last level and how many writes were made.
func (o *SimOutput) High() (bool, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.high, o.writes
}

// SimPWM remembers the last duty cycle written.
type SimPWM struct {
	mu   sync.Mutex
	duty uint8
}

func (p *SimPWM) SetDuty(percent uint8) error {
	if percent > 100 {
		return fmt.Errorf("hal: duty %d%% out of range", percent)
	}
	p.mu.Lock()
	p.duty = percent
	p.mu.Unlock()
	return nil
}

func (p *SimPWM) Duty() uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duty
}

// OpenSim returns simulated hardware.
func OpenSim(raw []int, fan bool) *Hardware {
	h := &Hardware{ADC: NewSimADC(raw), Alert: &SimOutput{}}
	if fan {
		h.Fan = &SimPWM{}
	}
	return h
}
