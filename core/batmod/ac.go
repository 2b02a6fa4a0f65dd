package batmod

import (
	"math"

	"github.com/kilianp07/openbat/core/model"
)

// ACSample is the outcome of one AC-coupled step.
type ACSample struct {
	Pbat float64 // battery DC power
	Pbs  float64 // battery system AC power, positive when drawing from the AC bus
	SOC  float64
}

// ACEngine simulates a battery behind its own AC/DC converter. It needs
// Input.Pr, the AC residual power (positive for surplus).
type ACEngine struct {
	sys    model.ACSystem
	bat    battery
	timing timing
	dev    model.Deviation
	// dead zone limits, equal to the idle losses of the converters
	chargeMin    float64
	dischargeMin float64
}

// NewAC returns an engine for sys sampled every dt seconds. The parameter
// set is assumed valid; use New to validate it.
func NewAC(sys model.ACSystem, dt float64) *ACEngine {
	return &ACEngine{
		sys:          sys,
		bat:          newBattery(sys.Common, dt),
		timing:       newTiming(sys.Control.DeadSteps, sys.Control.TimeConstant, dt),
		dev:          sys.Deviation,
		chargeMin:    sys.AC2BAT.In.C,
		dischargeMin: sys.BAT2AC.Out.C,
	}
}

func (e *ACEngine) Topology() model.Topology { return model.TopologyAC }

// Run simulates len(in.Pr) steps starting from st.
func (e *ACEngine) Run(in Input, st State) (*Result, error) {
	n := len(in.Pr)
	if err := requireSeries(n, map[string][]float64{"pr": in.Pr}); err != nil {
		return nil, err
	}
	if err := checkState(&st); err != nil {
		return nil, err
	}
	hist := st.Delay[0]
	res := newResult(n, false)
	for t := 0; t < n; t++ {
		pr, ok := delayed(in.Pr, hist, t, e.timing.dead)
		if !ok {
			res.SOC[t] = st.SOC
			continue
		}
		var s ACSample
		st, s = e.Step(st, pr)
		res.Pbat[t], res.Pbus[t], res.SOC[t] = s.Pbat, s.Pbs, s.SOC
	}
	st.Delay[0] = carryHistory(hist, in.Pr, e.timing.dead)
	res.Final = st
	return res, nil
}

// Step applies one residual sample, already delayed, to st.
func (e *ACEngine) Step(st State, pr float64) (State, ACSample) {
	p := e.bat.clamp(pr, st.SOC)
	switch {
	case p > e.chargeMin:
		p = math.Max(e.chargeMin, p+e.dev.Charge)
	case p < -e.dischargeMin:
		p = math.Min(-e.dischargeMin, p-e.dev.Discharge)
	default:
		p = 0
	}
	p = clamp(p, -e.sys.BAT2AC.RatedOut, e.sys.AC2BAT.RatedIn)
	p = e.timing.lag(st.Prev.Bus, p)

	var pbat float64
	switch {
	case p > 0 && st.SOC < e.bat.chargeLimit(st.Hysteresis):
		x := p / e.sys.AC2BAT.RatedIn
		pbat = math.Max(0, p-e.sys.AC2BAT.In.Loss(x))
	case p < 0 && st.SOC > 0:
		x := -p / e.sys.BAT2AC.RatedOut
		pbat = p - e.sys.BAT2AC.Out.Loss(x)
	default:
		p = 0
	}

	if pbat == 0 {
		draw := e.bat.standby.Full
		if st.SOC <= 0 {
			draw = e.bat.standby.Empty
		}
		pbat = -math.Max(0, draw.DC)
		p = draw.AC
	}

	st, pbat = e.bat.settle(st, pbat, pbat > 0)
	st.Prev.Bus = p
	return st, ACSample{Pbat: pbat, Pbs: p, SOC: st.SOC}
}
