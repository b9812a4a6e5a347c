// Package canbus provides the CAN transport used by the thermistor node.
//
// It includes:
//   - A core Frame type with validation and binary marshaling helpers
//   - An in-memory loopback bus for tests and simulations
//   - A receive multiplexer with composable frame filters
//   - A slog-based logging decorator
//   - A Linux SocketCAN driver (linux-only) via raw syscalls
//
// The gs_usb (candleLight) USB adapter driver lives in package gsusb.
package canbus
