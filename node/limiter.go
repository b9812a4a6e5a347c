package node

import "time"

// RateLimiter lets an action through at most once per Period. The stamp is
// the time of the firing, not a schedule boundary, so the cadence drifts
// with loop jitter instead of bursting to catch up.
type RateLimiter struct {
	Period time.Duration

	last  time.Time
	fired bool
}

// NewRateLimiter returns a limiter that has never fired.
func NewRateLimiter(period time.Duration) *RateLimiter {
	return &RateLimiter{Period: period}
}

// Allow reports whether the action may fire at now and stamps it if so.
// A limiter that never fired allows the first call.
func (r *RateLimiter) Allow(now time.Time) bool {
	if r.fired && now.Sub(r.last) <= r.Period {
		return false
	}
	r.last = now
	r.fired = true
	return true
}

// Last returns the time of the last firing.
func (r *RateLimiter) Last() (time.Time, bool) { return r.last, r.fired }
