package control

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kilianp07/openbat/core/batmod"
	"github.com/kilianp07/openbat/core/model"
)

// ErrDeviceClosed is returned by a closed virtual device.
var ErrDeviceClosed = errors.New("control: device closed")

// VirtualDevice emulates an AC-coupled battery with the step engine. Every
// written setpoint advances the emulation by one step; the dead time of the
// system is not applied.
type VirtualDevice struct {
	mu     sync.Mutex
	engine *batmod.ACEngine
	state  batmod.State
	last   batmod.ACSample
	closed bool
}

// NewVirtualDevice returns a device for sys stepping dt seconds per
// setpoint, starting at soc0.
func NewVirtualDevice(sys model.System, dt, soc0 float64) (*VirtualDevice, error) {
	if soc0 < 0 || soc0 > 1 {
		return nil, fmt.Errorf("control: initial soc %v outside [0,1]", soc0)
	}
	eng, err := batmod.New(sys, dt)
	if err != nil {
		return nil, fmt.Errorf("control: virtual device: %w", err)
	}
	ac, ok := eng.(*batmod.ACEngine)
	if !ok {
		return nil, fmt.Errorf("control: virtual device needs an AC-coupled system, got %s", sys.Topology())
	}
	return &VirtualDevice{engine: ac, state: batmod.NewState(soc0), last: batmod.ACSample{SOC: soc0}}, nil
}

func (d *VirtualDevice) WriteSetpoint(_ context.Context, watts int16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDeviceClosed
	}
	d.state, d.last = d.engine.Step(d.state, -float64(watts))
	return nil
}

func (d *VirtualDevice) Read(_ context.Context) (Readback, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return Readback{}, ErrDeviceClosed
	}
	return Readback{SOC: d.state.SOC, ACPowerW: -d.last.Pbs, BatteryPowerW: -d.last.Pbat}, nil
}

func (d *VirtualDevice) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}
