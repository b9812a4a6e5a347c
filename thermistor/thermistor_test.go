package thermistor

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeADC struct {
	raw map[int]int
	err error
}

func (f *fakeADC) Read(input int) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.raw[input], nil
}

func TestLi4P25RT(t *testing.T) {
	require.NoError(t, Li4P25RT.Validate())
	require.Len(t, Li4P25RT, 33)
	for i, p := range Li4P25RT {
		assert.Equal(t, float64(-40+5*i), p.TempC, "entry %d", i)
	}
}

func TestTableValidate(t *testing.T) {
	assert.ErrorIs(t, Table{}.Validate(), ErrInvalidTable)
	assert.ErrorIs(t, Table{{2.0, 0}, {2.0, 5}}.Validate(), ErrInvalidTable)
	assert.ErrorIs(t, Table{{1.0, 0}, {2.0, 5}}.Validate(), ErrInvalidTable)
	assert.NoError(t, Table{{2.0, 0}, {1.0, 5}}.Validate())
}

func TestTableLookup_Nearest(t *testing.T) {
	l := TableLookup{Table: Li4P25RT}
	for v := 1.20; v <= 2.60; v += 0.001 {
		got := l.Convert(0, v)
		var chosen Point
		for _, p := range Li4P25RT {
			if p.TempC == got {
				chosen = p
			}
		}
		for _, p := range Li4P25RT {
			require.LessOrEqual(t, math.Abs(chosen.Volts-v), math.Abs(p.Volts-v)+1e-12,
				"v=%.3f chose %.2f V over %.2f V", v, chosen.Volts, p.Volts)
		}
	}
}

func TestTableLookup_TieFavorsLaterEntry(t *testing.T) {
	l := TableLookup{Table: Table{{2.0, 0}, {1.5, 10}, {1.0, 20}}}
	assert.Equal(t, 20.0, l.Convert(0, 1.25))
	assert.Equal(t, 10.0, l.Convert(0, 1.75))
	assert.Equal(t, 0.0, l.Convert(0, 5))
	assert.Equal(t, 20.0, l.Convert(0, -1))
	assert.Equal(t, 0.0, TableLookup{}.Convert(0, 1))
}

func TestSampler(t *testing.T) {
	s := NewSampler(&fakeADC{raw: map[int]int{3: 511}}, -0.10)
	v, err := s.Sample(Channel{Index: 0, Input: 3})
	require.NoError(t, err)
	assert.InDelta(t, 511*5.0/1023-0.10, v, 1e-9)

	assert.InDelta(t, 5.1, NewSampler(nil, 0.10).Volts(1023), 1e-9)
	// out of range counts pass through
	assert.InDelta(t, 2*5.0, NewSampler(nil, 0).Volts(2046), 1e-9)

	boom := errors.New("spi timeout")
	_, err = NewSampler(&fakeADC{err: boom}, 0).Sample(Channel{Index: 2, Input: 7})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "channel 2")
}

func TestCorrections(t *testing.T) {
	c := DefaultCorrections
	assert.Equal(t, 29.5, c.Apply(29.5))
	assert.Equal(t, 20.0, c.Apply(30))
	assert.Equal(t, 29.0, c.Apply(39))
	assert.Equal(t, 20.0, c.Apply(40))
	assert.Equal(t, 60.0, c.Apply(80))

	// order in the table does not matter
	rev := Corrections{{AtOrAbove: 30, Subtract: 10}, {AtOrAbove: 40, Subtract: 20}}
	assert.Equal(t, 20.0, rev.Apply(40))
	assert.Equal(t, 12.0, Corrections(nil).Apply(12))
}

func TestLinearFilter_CorrectionDoesNotFeedBack(t *testing.T) {
	f := NewLinearFilter(2, 1, 0, 1, DefaultCorrections)
	assert.Equal(t, 25.0, f.Convert(0, 45))
	assert.Equal(t, 45.0, f.State(0))
	assert.Equal(t, 25.0, f.Convert(1, 35))
	assert.Equal(t, 20.0, f.Convert(1, 20))
	assert.Equal(t, 0.0, f.State(9))
}

func TestLinearFilter_Smoothing(t *testing.T) {
	f := NewLinearFilter(1, 1, 0, 0.25, nil)
	assert.InDelta(t, 25.0, f.Convert(0, 100), 1e-12)
	assert.InDelta(t, 43.75, f.Convert(0, 100), 1e-12)

	p := NewLinearFilter(1, 1, 0, 0.25, nil)
	p.Prime = true
	assert.InDelta(t, 100.0, p.Convert(0, 100), 1e-12)
	assert.InDelta(t, 75.0, p.Convert(0, 0), 1e-12)
}

func TestLinearFilter_Converges(t *testing.T) {
	for _, alpha := range []float64{0.9, 0.5, 0.1, DefaultAlpha} {
		f := NewLinearFilter(1, 1, 0, alpha, nil)
		var got float64
		for i := 0; i < 200000; i++ {
			got = f.Convert(0, 17.5)
		}
		assert.InDelta(t, 17.5, got, 1e-6, "alpha %v", alpha)
	}
}

func TestLinearFilter_GrowsState(t *testing.T) {
	f := &LinearFilter{Slope: 1, Alpha: 1}
	assert.Equal(t, 3.0, f.Convert(4, 3))
	assert.Equal(t, 3.0, f.State(4))
}

func TestSummarize(t *testing.T) {
	minIdx, maxIdx, avg := Summarize([]float64{10, 22, 5, 40, 18})
	assert.Equal(t, 2, minIdx)
	assert.Equal(t, 3, maxIdx)
	assert.Equal(t, 19, avg)

	// equal readings keep the first leader
	minIdx, maxIdx, _ = Summarize([]float64{7, 7, 7})
	assert.Equal(t, 0, minIdx)
	assert.Equal(t, 0, maxIdx)

	// each reading is truncated before summing
	_, _, avg = Summarize([]float64{1.9, 1.9, -1.9})
	assert.Equal(t, 0, avg)
	_, _, avg = Summarize([]float64{-40, -35, -1})
	assert.Equal(t, -25, avg)
}

func TestAggregator_EndToEnd(t *testing.T) {
	adc := &fakeADC{raw: map[int]int{0: 244, 1: 180, 2: 130, 3: 205, 4: 155}}
	a := &Aggregator{
		Sampler:   &Sampler{ADC: adc, Reference: 1, FullScale: 100},
		Converter: TableLookup{Table: Li4P25RT},
		Channels:  Channels(0, 1, 2, 3, 4),
	}
	s, err := a.Cycle()
	require.NoError(t, err)
	assert.Equal(t, []float64{-40, 25, 120, 10, 50}, s.Temps)
	assert.Equal(t, 0, s.MinIndex)
	assert.Equal(t, 2, s.MaxIndex)
	assert.Equal(t, 33, s.AvgTemp)
	assert.Equal(t, -40.0, s.Min())
	assert.Equal(t, 120.0, s.Max())

	c := s.Clone()
	c.Temps[0] = 99
	assert.Equal(t, -40.0, s.Temps[0])
}

func TestDefaultLinearModelMatchesTableEndpoints(t *testing.T) {
	first, last := Li4P25RT[0], Li4P25RT[len(Li4P25RT)-1]
	assert.InDelta(t, first.TempC, DefaultSlope*first.Volts+DefaultIntercept, 0.01)
	assert.InDelta(t, last.TempC, DefaultSlope*last.Volts+DefaultIntercept, 0.01)
}

func TestAggregator_EndToEndLinear(t *testing.T) {
	adc := &fakeADC{raw: map[int]int{0: 244, 1: 180, 2: 130, 3: 205, 4: 155}}
	f := NewLinearFilter(5, DefaultSlope, DefaultIntercept, DefaultAlpha, DefaultCorrections)
	f.Prime = true
	a := &Aggregator{
		Sampler:   &Sampler{ADC: adc, Reference: 1, FullScale: 100},
		Converter: f,
		Channels:  Channels(0, 1, 2, 3, 4),
	}
	s, err := a.Cycle()
	require.NoError(t, err)
	// -39.99, 49.83-20, 120.00-20, 14.74, 84.92-20
	want := []float64{-39.99, 29.83, 100.00, 14.74, 64.92}
	for i := range want {
		assert.InDelta(t, want[i], s.Temps[i], 0.01, "channel %d", i)
	}
	assert.Equal(t, 0, s.MinIndex)
	assert.Equal(t, 2, s.MaxIndex)
	assert.Equal(t, 33, s.AvgTemp)
}

func TestAggregator_Errors(t *testing.T) {
	_, err := (&Aggregator{}).Cycle()
	assert.ErrorIs(t, err, ErrNoChannels)

	boom := errors.New("adc gone")
	a := &Aggregator{
		Sampler:   NewSampler(&fakeADC{err: boom}, 0),
		Converter: TableLookup{Table: Li4P25RT},
		Channels:  Channels(0),
	}
	_, err = a.Cycle()
	assert.ErrorIs(t, err, boom)
}
