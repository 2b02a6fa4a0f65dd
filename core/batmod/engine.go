package batmod

import (
	"errors"
	"fmt"
	"math"

	"github.com/kilianp07/openbat/core/model"
)

var (
	// ErrMissingSeries is returned when a series required by the engine is nil.
	ErrMissingSeries = errors.New("required series missing")
	// ErrSeriesLength is returned when input series differ in length.
	ErrSeriesLength = errors.New("series length mismatch")
	// ErrTimeStep is returned for a non positive step width.
	ErrTimeStep = errors.New("time step must be positive")
)

// Previous holds the realised output of each controlled pathway in the last
// step. It seeds the lag filter of the next step.
type Previous struct {
	Bus       float64 `json:"bus"`       // AC: battery system AC power
	Charge    float64 `json:"charge"`    // DC, PV: PV2BAT input power
	Discharge float64 `json:"discharge"` // DC: BAT2AC output, PV: BAT2PV output
}

// State is carried from one step to the next and from one run to the next.
type State struct {
	SOC        float64      `json:"soc"`
	Hysteresis bool         `json:"hysteresis"`
	Prev       Previous     `json:"prev"`
	Delay      [2][]float64 `json:"delay,omitempty"` // last driving samples, in input order
}

// NewState returns the initial state for a battery at soc0.
func NewState(soc0 float64) State { return State{SOC: soc0} }

// Input holds the driving series. Each engine documents which it needs.
type Input struct {
	Pr        []float64 // AC, DC: residual power on the AC side
	Prpv      []float64 // DC: residual power on the DC bus
	Ppv       []float64 // DC, PV: PV generator DC power
	Ppv2acOut []float64 // DC: PV inverter output without battery
	Pac       []float64 // PV: AC demand
}

// Result holds the realised series of a run.
type Result struct {
	Pbat      []float64 // battery DC power, positive when charging
	Pbus      []float64 // AC: battery system AC power; DC, PV: PV-battery system AC power
	SOC       []float64
	Ppv       []float64 // DC, PV: PV generator power actually used
	Ppv2acOut []float64 // DC, PV
	Ppv2batIn []float64 // DC, PV
	Pbat2out  []float64 // DC: BAT2AC output, PV: BAT2PV output
	Final     State
}

func newResult(n int, bus bool) *Result {
	r := &Result{Pbat: make([]float64, n), Pbus: make([]float64, n), SOC: make([]float64, n)}
	if bus {
		r.Ppv = make([]float64, n)
		r.Ppv2acOut = make([]float64, n)
		r.Ppv2batIn = make([]float64, n)
		r.Pbat2out = make([]float64, n)
	}
	return r
}

// Engine runs the step recurrence of one topology.
type Engine interface {
	Topology() model.Topology
	Run(in Input, st State) (*Result, error)
}

// New validates the parameter set and returns the engine of its topology.
func New(sys model.System, dt float64) (Engine, error) {
	if err := sys.Validate(); err != nil {
		return nil, err
	}
	if !(dt > 0) || math.IsInf(dt, 0) {
		return nil, fmt.Errorf("%w: %v", ErrTimeStep, dt)
	}
	switch s := sys.(type) {
	case model.ACSystem:
		return NewAC(s, dt), nil
	case model.DCSystem:
		return NewDC(s, dt), nil
	case model.PVSystem:
		return NewPV(s, dt), nil
	case *model.ACSystem:
		return NewAC(*s, dt), nil
	case *model.DCSystem:
		return NewDC(*s, dt), nil
	case *model.PVSystem:
		return NewPV(*s, dt), nil
	}
	return nil, fmt.Errorf("unsupported system type %T", sys)
}

// battery is the storage state machine shared by all engines.
type battery struct {
	capacity  float64
	eta       float64
	threshold float64
	standby   model.Standby
	dt        float64
}

func newBattery(c model.Common, dt float64) battery {
	return battery{
		capacity:  c.Battery.CapacityWh,
		eta:       c.Battery.Efficiency,
		threshold: c.SOCThreshold,
		standby:   c.Standby,
		dt:        dt,
	}
}

func (b battery) stored(soc float64) float64 { return soc * b.capacity }

func (b battery) clamp(p, soc float64) float64 {
	return ClampToCapacity(p, b.stored(soc), b.capacity, b.dt)
}

// chargeLimit is the SOC below which charging is allowed.
func (b battery) chargeLimit(hysteresis bool) float64 {
	if hysteresis {
		return b.threshold
	}
	return 1
}

// settle integrates pbat, keeps the stored energy within [0, capacity] by
// trimming pbat and returns the realised pbat with the new state.
func (b battery) settle(st State, pbat float64, charged bool) (State, float64) {
	e0 := b.stored(st.SOC)
	e := Integrate(e0, pbat, b.eta, b.dt)
	se := math.Sqrt(b.eta)
	switch {
	case e > b.capacity:
		e = b.capacity
		pbat = (b.capacity - e0) / se * 3600 / b.dt
	case e < 0:
		e = 0
		pbat = -e0 * se * 3600 / b.dt
	}
	soc := e / b.capacity
	// Charging may continue above the threshold; once the battery is full or
	// stops charging up there it is latched until SOC falls below it.
	st.Hysteresis = soc >= 1 || (soc > b.threshold && (st.Hysteresis || !charged))
	st.SOC = soc
	return st, pbat
}

func requireSeries(n int, series map[string][]float64) error {
	for name, s := range series {
		if s == nil {
			return fmt.Errorf("%w: %s", ErrMissingSeries, name)
		}
		if len(s) != n {
			return fmt.Errorf("%w: %s has %d samples, want %d", ErrSeriesLength, name, len(s), n)
		}
	}
	return nil
}

// ErrInitialSOC is returned when a run is seeded outside [0,1].
var ErrInitialSOC = errors.New("initial state of charge outside [0,1]")

// socTolerance absorbs rounding in a seed carried over from a previous run.
const socTolerance = 1e-9

// checkState rejects a seed SOC outside [0,1] and clamps one that misses
// the range by no more than socTolerance.
func checkState(st *State) error {
	if !(st.SOC >= -socTolerance && st.SOC <= 1+socTolerance) {
		return fmt.Errorf("%w: %v", ErrInitialSOC, st.SOC)
	}
	st.SOC = math.Min(1, math.Max(0, st.SOC))
	return nil
}
