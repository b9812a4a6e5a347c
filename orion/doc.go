// Package orion encodes and decodes the CAN frames exchanged by a battery
// pack thermistor node: the Orion BMS thermistor expansion module broadcast
// it transmits and the single-byte status frame (ready-to-drive) it listens
// for.
//
// Typed messages implement MarshalCANFrame/UnmarshalCANFrame on top of
// canbus.Frame. SubscribeStatus delivers decoded status frames from a
// canbus.Mux.
package orion
