package model

import (
	"fmt"
	"strings"
)

// Topology identifies how the battery is coupled to the PV system.
type Topology int

const (
	// TopologyAC couples the battery through its own inverter on the AC bus.
	TopologyAC Topology = iota + 1
	// TopologyDC couples the battery on the DC bus shared with the PV inverter.
	TopologyDC
	// TopologyPV couples the battery directly to the PV generator side.
	TopologyPV
)

// String returns the short name used in parameter files ("AC", "DC", "PV").
func (t Topology) String() string {
	switch t {
	case TopologyAC:
		return "AC"
	case TopologyDC:
		return "DC"
	case TopologyPV:
		return "PV"
	default:
		return "Unknown"
	}
}

// ParseTopology converts a parameter file value into a Topology.
func ParseTopology(s string) (Topology, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "AC":
		return TopologyAC, nil
	case "DC":
		return TopologyDC, nil
	case "PV":
		return TopologyPV, nil
	}
	return 0, &ConfigError{Field: "topology", Reason: fmt.Sprintf("unknown topology %q", s)}
}

// MarshalText implements encoding.TextMarshaler.
func (t Topology) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Topology) UnmarshalText(b []byte) error {
	v, err := ParseTopology(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
