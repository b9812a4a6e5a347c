// Package node runs the thermistor module cycle: sample every channel,
// aggregate, encode the module broadcast, drive the alert and fan outputs,
// log a status line and transmit, each gated by its own RateLimiter.
//
// A Node is driven from a single goroutine. Other goroutines read its
// state only through Status and through Observers, which receive a Report
// value after every cycle.
package node
