package plugins

import (
	"fmt"

	"github.com/kilianp07/openbat/config"
	"github.com/kilianp07/openbat/core/control"
	"github.com/kilianp07/openbat/core/params"
	"github.com/kilianp07/openbat/infra/modbus"
)

func init() {
	RegisterDevice("modbus", func(cfg *config.Config) (control.Device, error) {
		if cfg.Modbus.Address == "" {
			return nil, fmt.Errorf("modbus: address is required")
		}
		s, err := modbus.Open(cfg.Modbus)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
	RegisterDevice("virtual", func(cfg *config.Config) (control.Device, error) {
		sim := cfg.Simulation
		dt := cfg.Control.Interval.Seconds()
		sys, _, err := params.Load(sim.Parameters, sim.System, sim.Reference, dt)
		if err != nil {
			return nil, err
		}
		d, err := control.NewVirtualDevice(sys, dt, sim.InitialSOC)
		if err != nil {
			return nil, err
		}
		return d, nil
	})
}
