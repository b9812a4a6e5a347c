package node

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_TwoFirings(t *testing.T) {
	t0 := time.Unix(1000, 0)
	r := NewRateLimiter(100 * time.Millisecond)
	fired := 0
	for _, at := range []time.Duration{0, 150 * time.Millisecond} {
		if r.Allow(t0.Add(at)) {
			fired++
		}
	}
	assert.Equal(t, 2, fired)

	r = NewRateLimiter(100 * time.Millisecond)
	fired = 0
	for _, at := range []time.Duration{0, 50, 100, 150} {
		if r.Allow(t0.Add(at * time.Millisecond)) {
			fired++
		}
	}
	assert.Equal(t, 2, fired)
	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, t0.Add(150*time.Millisecond), last)
}

func TestRateLimiter_AtMostOncePerPeriod(t *testing.T) {
	t0 := time.Unix(1000, 0)
	r := NewRateLimiter(100 * time.Millisecond)
	var firings []time.Time
	for ms := 0; ms <= 1000; ms++ {
		now := t0.Add(time.Duration(ms) * time.Millisecond)
		if r.Allow(now) {
			firings = append(firings, now)
		}
	}
	require.Len(t, firings, 10)
	for i := 1; i < len(firings); i++ {
		assert.Greater(t, firings[i].Sub(firings[i-1]), 100*time.Millisecond)
	}
}

func TestRateLimiter_FirstCallFires(t *testing.T) {
	r := NewRateLimiter(time.Hour)
	_, ok := r.Last()
	assert.False(t, ok)
	assert.True(t, r.Allow(time.Time{}))
	assert.False(t, r.Allow(time.Time{}.Add(time.Minute)))
}
