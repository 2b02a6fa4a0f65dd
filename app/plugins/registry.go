// Package plugins maps configuration names to control device drivers.
package plugins

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kilianp07/openbat/config"
	"github.com/kilianp07/openbat/core/control"
)

// DeviceFactory opens a control device from the application configuration.
type DeviceFactory func(cfg *config.Config) (control.Device, error)

var Devices = map[string]DeviceFactory{}

func RegisterDevice(name string, f DeviceFactory) { Devices[name] = f }

// OpenDevice opens the device selected by cfg.Control.Device.
func OpenDevice(cfg *config.Config) (control.Device, error) {
	f, ok := Devices[cfg.Control.Device]
	if !ok {
		names := make([]string, 0, len(Devices))
		for n := range Devices {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown device %q (available: %s)", cfg.Control.Device, strings.Join(names, ", "))
	}
	return f(cfg)
}
