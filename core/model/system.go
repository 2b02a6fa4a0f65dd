package model

import (
	"fmt"
	"math"
)

// LossCurve holds quadratic conversion loss coefficients. The argument of
// Loss is the pathway power normalised by its rated value.
type LossCurve struct {
	A float64 `json:"a" yaml:"a"`
	B float64 `json:"b" yaml:"b"`
	C float64 `json:"c" yaml:"c"`
}

// Loss returns a·p² + b·p + c in W.
func (l LossCurve) Loss(p float64) float64 { return l.A*p*p + l.B*p + l.C }

// LossNoIdle returns the load dependent part a·p² + b·p.
func (l LossCurve) LossNoIdle(p float64) float64 { return l.A*p*p + l.B*p }

// Pathway describes a power conversion stage. RatedIn and RatedOut are the
// nominal input and output powers in W; a stage only uses the side it is
// clamped on. In and Out are the loss curves over normalised input or
// output power.
type Pathway struct {
	RatedIn  float64   `json:"rated_in"`
	RatedOut float64   `json:"rated_out"`
	In       LossCurve `json:"in"`
	Out      LossCurve `json:"out"`
}

// Battery is the aggregated storage unit.
type Battery struct {
	CapacityWh float64 `json:"capacity_wh"`
	Efficiency float64 `json:"efficiency"` // round trip efficiency as fraction
}

// Control holds the timing of the battery controller.
type Control struct {
	DeadSteps    int     `json:"dead_steps"`    // delay before a setpoint is applied, in steps
	TimeConstant float64 `json:"time_constant"` // first order settling constant in s
}

// StandbyDraw is the idle consumption on the DC and AC side in W.
type StandbyDraw struct {
	DC float64 `json:"dc"`
	AC float64 `json:"ac"`
}

// Standby separates the draw of a fully discharged battery from that of a
// charged one.
type Standby struct {
	Empty StandbyDraw `json:"empty"`
	Full  StandbyDraw `json:"full"`
}

// Deviation is the stationary control offset added to charge and discharge
// setpoints in W.
type Deviation struct {
	Charge    float64 `json:"charge"`
	Discharge float64 `json:"discharge"`
}

// Common carries the parameters shared by every topology.
type Common struct {
	Name               string    `json:"name"`
	Battery            Battery   `json:"battery"`
	Control            Control   `json:"control"`
	Standby            Standby   `json:"standby"`
	Deviation          Deviation `json:"deviation"`
	SOCThreshold       float64   `json:"soc_threshold"`
	FeedInLimit        float64   `json:"feed_in_limit"` // share of PV peak power
	PVPeakW            float64   `json:"pv_peak_w"`
	PeripheralW        float64   `json:"peripheral_w"`
	PVInverterStandbyW float64   `json:"pv_inverter_standby_w"`
	PV2AC              Pathway   `json:"pv2ac"`
}

// FeedInCapW returns the maximum grid feed-in in W.
func (c Common) FeedInCapW() float64 { return c.FeedInLimit * c.PVPeakW }

// System is implemented by ACSystem, DCSystem and PVSystem only.
type System interface {
	Topology() Topology
	Base() Common
	Validate() error
	isSystem()
}

// ACSystem is a battery with its own AC/DC converter.
type ACSystem struct {
	Common
	AC2BAT Pathway `json:"ac2bat"`
	BAT2AC Pathway `json:"bat2ac"`
}

// DCSystem shares the PV inverter DC bus with the battery.
type DCSystem struct {
	Common
	PV2BAT Pathway `json:"pv2bat"`
	BAT2AC Pathway `json:"bat2ac"`
}

// PVSystem sits between the PV generator and the PV inverter.
type PVSystem struct {
	Common
	PV2BAT Pathway `json:"pv2bat"`
	BAT2PV Pathway `json:"bat2pv"`
}

func (ACSystem) Topology() Topology { return TopologyAC }
func (DCSystem) Topology() Topology { return TopologyDC }
func (PVSystem) Topology() Topology { return TopologyPV }

func (s ACSystem) Base() Common { return s.Common }
func (s DCSystem) Base() Common { return s.Common }
func (s PVSystem) Base() Common { return s.Common }

func (ACSystem) isSystem() {}
func (DCSystem) isSystem() {}
func (PVSystem) isSystem() {}

// Validate checks the AC-coupled parameter set.
func (s ACSystem) Validate() error {
	v := validator{system: s.Name}
	v.common(s.Common)
	v.pathway("ac2bat", s.AC2BAT, true, false)
	v.pathway("bat2ac", s.BAT2AC, false, true)
	return v.err
}

// Validate checks the DC-coupled parameter set.
func (s DCSystem) Validate() error {
	v := validator{system: s.Name}
	v.common(s.Common)
	v.pathway("pv2bat", s.PV2BAT, true, false)
	v.pathway("bat2ac", s.BAT2AC, false, true)
	return v.err
}

// Validate checks the PV-coupled parameter set.
func (s PVSystem) Validate() error {
	v := validator{system: s.Name}
	v.common(s.Common)
	v.pathway("pv2bat", s.PV2BAT, true, false)
	v.pathway("bat2pv", s.BAT2PV, false, true)
	return v.err
}

// validator keeps the first failure only.
type validator struct {
	system string
	err    error
}

func (v *validator) fail(field, format string, args ...any) {
	if v.err == nil {
		v.err = &ConfigError{System: v.system, Field: field, Reason: fmt.Sprintf(format, args...)}
	}
}

func (v *validator) finite(field string, x float64) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		v.fail(field, "must be finite, got %v", x)
	}
}

func (v *validator) positive(field string, x float64) {
	v.finite(field, x)
	if !(x > 0) {
		v.fail(field, "must be positive, got %v", x)
	}
}

func (v *validator) nonNegative(field string, x float64) {
	v.finite(field, x)
	if x < 0 {
		v.fail(field, "must not be negative, got %v", x)
	}
}

func (v *validator) curve(field string, c LossCurve) {
	v.finite(field+".a", c.A)
	v.finite(field+".b", c.B)
	v.finite(field+".c", c.C)
}

func (v *validator) common(c Common) {
	v.positive("battery.capacity_wh", c.Battery.CapacityWh)
	v.positive("battery.efficiency", c.Battery.Efficiency)
	if c.Battery.Efficiency > 1 {
		v.fail("battery.efficiency", "must not exceed 1, got %v", c.Battery.Efficiency)
	}
	if c.Control.DeadSteps < 0 {
		v.fail("control.dead_steps", "must not be negative, got %d", c.Control.DeadSteps)
	}
	v.nonNegative("control.time_constant", c.Control.TimeConstant)
	v.positive("soc_threshold", c.SOCThreshold)
	if c.SOCThreshold > 1 {
		v.fail("soc_threshold", "must not exceed 1, got %v", c.SOCThreshold)
	}
	v.nonNegative("feed_in_limit", c.FeedInLimit)
	v.nonNegative("pv_peak_w", c.PVPeakW)
	v.nonNegative("peripheral_w", c.PeripheralW)
	v.nonNegative("pv_inverter_standby_w", c.PVInverterStandbyW)
	v.finite("standby.empty.dc", c.Standby.Empty.DC)
	v.finite("standby.empty.ac", c.Standby.Empty.AC)
	v.finite("standby.full.dc", c.Standby.Full.DC)
	v.finite("standby.full.ac", c.Standby.Full.AC)
	v.finite("deviation.charge", c.Deviation.Charge)
	v.finite("deviation.discharge", c.Deviation.Discharge)
	v.pathway("pv2ac", c.PV2AC, true, true)
}

func (v *validator) pathway(name string, p Pathway, in, out bool) {
	if in {
		v.positive(name+".rated_in", p.RatedIn)
	}
	if out {
		v.positive(name+".rated_out", p.RatedOut)
	}
	v.curve(name+".in", p.In)
	v.curve(name+".out", p.Out)
}
