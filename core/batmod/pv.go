package batmod

import (
	"math"

	"github.com/kilianp07/openbat/core/model"
)

// PVSample is the outcome of one PV-coupled step.
type PVSample struct {
	Pbat       float64
	Ppvbs      float64 // AC power of the PV-battery system
	Ppv        float64 // PV power fed into the system
	Ppv2acOut  float64
	Ppv2batIn  float64
	Pbat2pvOut float64
	SOC        float64
}

// PVEngine simulates a battery coupled on the PV generator side of the PV
// inverter. It needs Input.Pac and Input.Ppv.
type PVEngine struct {
	sys    model.PVSystem
	bat    battery
	timing timing
	dev    model.Deviation
}

// NewPV returns an engine for sys sampled every dt seconds.
func NewPV(sys model.PVSystem, dt float64) *PVEngine {
	return &PVEngine{
		sys:    sys,
		bat:    newBattery(sys.Common, dt),
		timing: newTiming(sys.Control.DeadSteps, sys.Control.TimeConstant, dt),
		dev:    sys.Deviation,
	}
}

func (e *PVEngine) Topology() model.Topology { return model.TopologyPV }

// Run simulates len(in.Ppv) steps starting from st.
func (e *PVEngine) Run(in Input, st State) (*Result, error) {
	n := len(in.Ppv)
	if err := requireSeries(n, map[string][]float64{"pac": in.Pac, "ppv": in.Ppv}); err != nil {
		return nil, err
	}
	if err := checkState(&st); err != nil {
		return nil, err
	}
	hist := st.Delay
	res := newResult(n, true)
	for t := 0; t < n; t++ {
		pac, ok1 := delayed(in.Pac, hist[0], t, e.timing.dead)
		ppvd, ok2 := delayed(in.Ppv, hist[1], t, e.timing.dead)
		if !ok1 || !ok2 {
			// no battery command yet, the PV inverter runs alone
			res.SOC[t] = st.SOC
			res.Ppv[t] = math.Min(in.Ppv[t], e.sys.PV2AC.RatedIn)
			res.Pbus[t] = e.inverter(res.Ppv[t])
			res.Ppv2acOut[t] = res.Pbus[t]
			continue
		}
		var s PVSample
		st, s = e.Step(st, pac, ppvd, in.Ppv[t])
		res.Pbat[t], res.Pbus[t], res.SOC[t] = s.Pbat, s.Ppvbs, s.SOC
		res.Ppv[t], res.Ppv2acOut[t] = s.Ppv, s.Ppv2acOut
		res.Ppv2batIn[t], res.Pbat2out[t] = s.Ppv2batIn, s.Pbat2pvOut
	}
	st.Delay[0] = carryHistory(hist[0], in.Pac, e.timing.dead)
	st.Delay[1] = carryHistory(hist[1], in.Ppv, e.timing.dead)
	res.Final = st
	return res, nil
}

// Step applies one sample. pac and ppvDelayed are the delayed demand and PV
// power the controller sees, ppv is the current PV power.
func (e *PVEngine) Step(st State, pac, ppvDelayed, ppv float64) (State, PVSample) {
	pv2ac, pv2bat, bat2pv := e.sys.PV2AC, e.sys.PV2BAT, e.sys.BAT2PV

	// PV inverter input needed to cover the AC demand
	target := math.Min(pac, pv2ac.RatedOut)
	need := target + pv2ac.Out.Loss(target/pv2ac.RatedOut)
	prpv := e.bat.clamp(ppvDelayed-need, st.SOC)

	var s PVSample
	switch {
	case prpv > pv2bat.In.C && st.SOC < e.bat.chargeLimit(st.Hysteresis):
		in := math.Max(0, prpv+e.dev.Charge)
		in = math.Min(in, pv2bat.RatedIn)
		in = e.timing.lag(st.Prev.Charge, in)
		in = math.Min(in, ppv)
		s.Pbat = math.Max(0, in-pv2bat.In.Loss(in/pv2bat.RatedIn))
		pvIn := math.Min(ppv-in, pv2ac.RatedIn)
		s.Ppv = pvIn + in
		s.Ppvbs = e.inverter(pvIn)
		s.Ppv2batIn = in
	case prpv < -bat2pv.Out.C && st.SOC > 0:
		out := math.Max(0, -prpv+e.dev.Discharge)
		out = math.Min(out, bat2pv.RatedOut)
		out = e.timing.lag(st.Prev.Discharge, out)
		pvIn := math.Min(ppv, pv2ac.RatedIn)
		out = math.Min(out, math.Max(0, pv2ac.RatedIn-pvIn))
		s.Pbat = -(out + bat2pv.Out.Loss(out/bat2pv.RatedOut))
		s.Ppv = pvIn
		s.Ppvbs = e.inverter(pvIn + out)
		s.Pbat2pvOut = out
	default:
		s.Ppv = math.Min(ppv, pv2ac.RatedIn)
		s.Ppvbs = e.inverter(s.Ppv)
	}
	s.Ppv2acOut = s.Ppvbs

	if s.Pbat == 0 {
		switch {
		case st.SOC <= 0:
			s.Pbat = -math.Max(0, e.bat.standby.Empty.DC)
			if s.Ppvbs == 0 {
				s.Ppvbs = -e.bat.standby.Empty.AC
			}
		case s.Ppvbs > 0:
			s.Pbat = -math.Max(0, e.bat.standby.Full.DC)
		}
	}

	st, s.Pbat = e.bat.settle(st, s.Pbat, s.Pbat > 0)
	st.Prev.Charge, st.Prev.Discharge = s.Ppv2batIn, s.Pbat2pvOut
	s.SOC = st.SOC
	return st, s
}

// inverter returns the AC output of the PV inverter for a DC input.
func (e *PVEngine) inverter(dcIn float64) float64 {
	pv2ac := e.sys.PV2AC
	return math.Max(0, dcIn-pv2ac.In.Loss(dcIn/pv2ac.RatedIn))
}
