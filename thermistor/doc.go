// Package thermistor turns raw ADC counts from battery-pack thermistors into
// calibrated temperatures and aggregates them per cycle.
//
// The pipeline has three stages, each small and independently testable:
//   - Sampler: raw count to volts, with a signed per-board offset
//   - Converter: volts to °C, either by nearest-entry table lookup or by a
//     linear model with a per-channel low-pass filter and piecewise correction
//   - Aggregator: drives every Channel once and produces a Snapshot with
//     min/max leaders and an integer average
package thermistor
