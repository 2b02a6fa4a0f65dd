package config

import (
	"fmt"
	"time"
)

// ControlConfig configures live control and drain sessions.
type ControlConfig struct {
	// Device selects the driver: "modbus" or "virtual", which emulates the
	// simulation system in process.
	Device   string        `json:"device"`
	Interval time.Duration `json:"interval"`
	// Steps limits the number of setpoints sent; zero sends the whole run.
	Steps         int           `json:"steps"`
	DrainPowerW   int16         `json:"drain_power_w"`
	DrainInterval time.Duration `json:"drain_interval"`
	DrainTimeout  time.Duration `json:"drain_timeout"`
}

// SetDefaults applies a one second cycle and a 5 kW drain on a modbus
// device.
func (c *ControlConfig) SetDefaults() {
	if c.Device == "" {
		c.Device = "modbus"
	}
	if c.Interval == 0 {
		c.Interval = time.Second
	}
	if c.DrainPowerW == 0 {
		c.DrainPowerW = 5000
	}
	if c.DrainInterval == 0 {
		c.DrainInterval = time.Second
	}
}

// Validate checks mandatory fields.
func (c ControlConfig) Validate() error {
	if c.Interval < 0 || c.DrainInterval < 0 || c.DrainTimeout < 0 {
		return fmt.Errorf("control: durations must not be negative")
	}
	if c.Steps < 0 {
		return fmt.Errorf("control: steps must not be negative")
	}
	if c.DrainPowerW <= 0 {
		return fmt.Errorf("control: drain_power_w must discharge, got %d", c.DrainPowerW)
	}
	return nil
}
