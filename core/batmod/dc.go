package batmod

import (
	"math"

	"github.com/kilianp07/openbat/core/model"
)

// DCSample is the outcome of one DC-coupled step.
type DCSample struct {
	Pbat       float64
	Ppvbs      float64 // AC power of the PV-battery system
	Ppv2acOut  float64
	Ppv2batIn  float64
	Pbat2acOut float64
	SOC        float64
}

// DCEngine simulates a battery sharing the DC bus of the PV inverter. It
// needs Input.Prpv, Input.Pr, Input.Ppv and Input.Ppv2acOut as produced by
// Residual.
type DCEngine struct {
	sys    model.DCSystem
	bat    battery
	timing timing
	dev    model.Deviation
}

// NewDC returns an engine for sys sampled every dt seconds.
func NewDC(sys model.DCSystem, dt float64) *DCEngine {
	return &DCEngine{
		sys:    sys,
		bat:    newBattery(sys.Common, dt),
		timing: newTiming(sys.Control.DeadSteps, sys.Control.TimeConstant, dt),
		dev:    sys.Deviation,
	}
}

func (e *DCEngine) Topology() model.Topology { return model.TopologyDC }

// Run simulates len(in.Ppv) steps starting from st.
func (e *DCEngine) Run(in Input, st State) (*Result, error) {
	n := len(in.Ppv)
	if err := requireSeries(n, map[string][]float64{
		"prpv": in.Prpv, "pr": in.Pr, "ppv": in.Ppv, "ppv2ac_out": in.Ppv2acOut,
	}); err != nil {
		return nil, err
	}
	if err := checkState(&st); err != nil {
		return nil, err
	}
	hist := st.Delay
	res := newResult(n, true)
	for t := 0; t < n; t++ {
		prpv, ok1 := delayed(in.Prpv, hist[0], t, e.timing.dead)
		pr, ok2 := delayed(in.Pr, hist[1], t, e.timing.dead)
		if !ok1 || !ok2 {
			// no battery command yet, the PV inverter runs alone
			res.SOC[t] = st.SOC
			res.Ppv[t], res.Ppv2acOut[t], res.Pbus[t] = in.Ppv[t], in.Ppv2acOut[t], in.Ppv2acOut[t]
			continue
		}
		var s DCSample
		st, s = e.Step(st, prpv, pr, in.Ppv[t], in.Ppv2acOut[t])
		res.Pbat[t], res.Pbus[t], res.SOC[t] = s.Pbat, s.Ppvbs, s.SOC
		res.Ppv[t] = in.Ppv[t]
		res.Ppv2acOut[t], res.Ppv2batIn[t], res.Pbat2out[t] = s.Ppv2acOut, s.Ppv2batIn, s.Pbat2acOut
	}
	st.Delay[0] = carryHistory(hist[0], in.Prpv, e.timing.dead)
	st.Delay[1] = carryHistory(hist[1], in.Pr, e.timing.dead)
	res.Final = st
	return res, nil
}

// Step applies one sample. prpv and pr are the delayed residuals; ppv and
// ppv2acOut are the current PV power and PV inverter output.
func (e *DCEngine) Step(st State, prpv, pr, ppv, ppv2acOut float64) (State, DCSample) {
	pv2ac, pv2bat, bat2ac := e.sys.PV2AC, e.sys.PV2BAT, e.sys.BAT2AC
	prpv = e.bat.clamp(prpv, st.SOC)
	pr = e.bat.clamp(pr, st.SOC)

	s := DCSample{Ppv2acOut: ppv2acOut}
	switch {
	case prpv > 0 && st.SOC < e.bat.chargeLimit(st.Hysteresis):
		in := math.Max(0, prpv+e.dev.Charge)
		in = math.Min(in, pv2bat.RatedIn)
		in = e.timing.lag(st.Prev.Charge, in)
		in = math.Min(in, ppv)
		s.Pbat = math.Max(0, in-pv2bat.In.LossNoIdle(in/pv2bat.RatedIn))
		// what remains of the PV power goes through the PV inverter
		pvIn := ppv - in
		s.Ppv2acOut = math.Max(0, pvIn-pv2ac.In.Loss(pvIn/pv2ac.RatedIn))
		s.Ppvbs = s.Ppv2acOut
		s.Ppv2batIn = in
	case prpv < 0 && st.SOC > 0:
		out := math.Max(0, -pr+e.dev.Discharge)
		out = math.Min(out, bat2ac.RatedOut)
		out = e.timing.lag(st.Prev.Discharge, out)
		out = math.Min(out, math.Max(0, pv2ac.RatedOut-ppv2acOut))
		x := out / bat2ac.RatedOut
		if ppv > pv2ac.In.C {
			s.Pbat = -(out + bat2ac.Out.LossNoIdle(x))
		} else {
			// the PV generator covers part of the idle loss
			s.Pbat = -(out + bat2ac.Out.Loss(x)) + ppv
		}
		s.Ppvbs = ppv2acOut + out
		s.Pbat2acOut = out
	default:
		s.Ppvbs = ppv2acOut
	}

	if s.Pbat == 0 {
		switch {
		case s.Ppvbs == 0 && st.SOC <= 0:
			s.Pbat = -math.Max(0, e.bat.standby.Empty.DC)
			s.Ppvbs = -e.bat.standby.Empty.AC
		case s.Ppvbs > 0 && st.SOC > 0:
			s.Pbat = -math.Max(0, e.bat.standby.Full.DC)
		}
	}

	st, s.Pbat = e.bat.settle(st, s.Pbat, s.Pbat > 0)
	st.Prev.Charge, st.Prev.Discharge = s.Ppv2batIn, s.Pbat2acOut
	s.SOC = st.SOC
	return st, s
}
