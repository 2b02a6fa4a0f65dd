// Package control drives a live battery system with a series of power
// setpoints and records what the device reports back.
package control

import (
	"context"
	"math"
)

// Readback is what a device reports after a setpoint was written. Powers
// use the sign convention of the device.
type Readback struct {
	SOC           float64 // state of charge as fraction
	ACPowerW      float64
	BatteryPowerW float64
}

// Device is a battery system reachable over a register based protocol.
// Setpoints are signed watts: positive discharges, negative charges.
type Device interface {
	WriteSetpoint(ctx context.Context, watts int16) error
	Read(ctx context.Context) (Readback, error)
	Close() error
}

// Saturate converts watts to the signed 16-bit register range, rounding to
// the nearest watt. NaN maps to zero.
func Saturate(watts float64) int16 {
	switch {
	case math.IsNaN(watts):
		return 0
	case watts >= math.MaxInt16:
		return math.MaxInt16
	case watts <= math.MinInt16:
		return math.MinInt16
	}
	return int16(math.Round(watts))
}
