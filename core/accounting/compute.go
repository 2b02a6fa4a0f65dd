package accounting

import (
	"errors"
	"fmt"
	"math"

	"github.com/kilianp07/openbat/core/model"
)

// ErrMissingSeries is returned when a series needed for the decomposition is
// nil. It is never replaced by zeros.
var ErrMissingSeries = errors.New("accounting: required series missing")

// ACFlows are the simulated series of an AC-coupled system.
type ACFlows struct {
	Pl    []float64 // household load
	Ppv   []float64 // PV generator DC power
	Ppvs  []float64 // PV inverter AC output
	Pperi []float64 // peripheral consumption
	Pbs   []float64 // battery system AC power
	Pbat  []float64 // battery DC power
}

// BusFlows are the simulated series of a DC- or PV-coupled system.
type BusFlows struct {
	Pl        []float64
	Ppv       []float64
	Pperi     []float64
	Pbat      []float64
	Ppv2ac    []float64 // PV2AC output
	Ppv2batIn []float64 // PV2BAT input
	Ppvbs     []float64 // PV-battery system AC power
}

// Balance is the outcome of the accounting: the report and the series after
// curtailment.
type Balance struct {
	Topology model.Topology `json:"topology"`
	Report   Report         `json:"report"`
	Ppv      []float64      `json:"-"` // PV generator power including curtailment
	Pct      []float64      `json:"-"` // curtailed AC power
	Pg       []float64      `json:"-"` // grid power, positive for feed-in
}

func checkSeries(n int, series map[string][]float64) error {
	for name, s := range series {
		if s == nil {
			return fmt.Errorf("%w: %s", ErrMissingSeries, name)
		}
		if len(s) != n {
			return fmt.Errorf("accounting: %s has %d samples, want %d", name, len(s), n)
		}
	}
	return nil
}

func batteryEnergy(r Report, pbat []float64, dt float64) {
	in := make([]float64, len(pbat))
	out := make([]float64, len(pbat))
	for i, p := range pbat {
		in[i] = math.Max(0, p)
		out[i] = math.Min(0, p)
	}
	r[BatteryIn] = energy(in, dt)
	r[BatteryOut] = energy(out, dt)
}

// AC decomposes the flows of an AC-coupled system. Feed-in above the cap of
// sys is curtailed and the PV generator power is recomputed from the reduced
// inverter output.
func AC(sys model.System, f ACFlows, dt float64) (*Balance, error) {
	n := len(f.Pl)
	if err := checkSeries(n, map[string][]float64{
		"pl": f.Pl, "ppv": f.Ppv, "ppvs": f.Ppvs, "pperi": f.Pperi, "pbs": f.Pbs, "pbat": f.Pbat,
	}); err != nil {
		return nil, err
	}
	c := sys.Base()
	capW := c.FeedInCapW()
	pv2ac := c.PV2AC

	var (
		plt    = make([]float64, n)
		ppv    = append([]float64(nil), f.Ppv...)
		ppvs   = make([]float64, n)
		pac2bs = make([]float64, n)
		pbs2ac = make([]float64, n)
		pvs2l  = make([]float64, n)
		pvs2bs = make([]float64, n)
		pg2bs  = make([]float64, n)
		pg2l   = make([]float64, n)
		pbs2l  = make([]float64, n)
		pbs2g  = make([]float64, n)
		pvs2g  = make([]float64, n)
		pg2ac  = make([]float64, n)
		pac2g  = make([]float64, n)
		pg     = make([]float64, n)
		pct    = make([]float64, n)
	)
	for i := 0; i < n; i++ {
		plt[i] = f.Pl[i] + f.Pperi[i]
		pr := f.Ppvs[i] - plt[i]
		prn, prp := math.Min(0, pr), math.Max(0, pr)
		pac2bs[i] = math.Max(0, f.Pbs[i])
		pbs2ac[i] = math.Min(0, f.Pbs[i])
		pvs2l[i] = math.Min(f.Ppvs[i], plt[i])
		pvs2bs[i] = math.Min(prp, pac2bs[i])
		pg2bs[i] = math.Max(pac2bs[i]-prp, 0)
		pg2l[i] = math.Min(prn-pbs2ac[i], 0)
		pbs2l[i] = math.Max(prn, pbs2ac[i])
		pbs2g[i] = math.Min(pbs2ac[i]-prn, 0)
		surplus := math.Max(prp-pac2bs[i], 0)
		pvs2g[i] = math.Min(surplus, capW)
		pg2ac[i] = pg2l[i] - pg2bs[i]
		pac2g[i] = pvs2g[i] - pbs2g[i]
		pg[i] = pac2g[i] + pg2ac[i]
		pct[i] = surplus - pvs2g[i]
		ppvs[i] = f.Ppvs[i] - pct[i]
		if pct[i] > 0 {
			x := ppvs[i] / pv2ac.RatedOut
			ppv[i] = ppvs[i] + pv2ac.Out.Loss(x)
		}
	}

	r := Report{
		Load:           energy(plt, dt),
		PV:             energy(ppv, dt),
		FeedIn:         energy(pac2g, dt),
		GridDemand:     energy(pg2ac, dt),
		GridToLoad:     energy(pg2l, dt),
		Peripheral:     energy(f.Pperi, dt),
		Curtailment:    energy(pct, dt),
		PVSystemOut:    energy(ppvs, dt),
		ACToBattery:    energy(pac2bs, dt),
		BatteryToAC:    energy(pbs2ac, dt),
		PVSystemToLoad: energy(pvs2l, dt),
		PVSystemToBat:  energy(pvs2bs, dt),
		GridToBattery:  energy(pg2bs, dt),
		PVSystemToGrid: energy(pvs2g, dt),
		BatteryToLoad:  energy(pbs2l, dt),
		BatteryToGrid:  energy(pbs2g, dt),
	}
	batteryEnergy(r, f.Pbat, dt)
	return &Balance{Topology: model.TopologyAC, Report: r, Ppv: ppv, Pct: pct, Pg: pg}, nil
}

// Bus decomposes the flows of a DC- or PV-coupled system. Curtailment
// reduces the PV2AC output and the PV generator power is recomputed as the
// PV2AC input needed for the reduced output plus the PV2BAT input.
func Bus(sys model.System, f BusFlows, dt float64) (*Balance, error) {
	n := len(f.Pl)
	if err := checkSeries(n, map[string][]float64{
		"pl": f.Pl, "ppv": f.Ppv, "pperi": f.Pperi, "pbat": f.Pbat,
		"ppv2ac": f.Ppv2ac, "ppv2bat_in": f.Ppv2batIn, "ppvbs": f.Ppvbs,
	}); err != nil {
		return nil, err
	}
	c := sys.Base()
	capW := c.FeedInCapW()
	pv2ac := c.PV2AC

	var (
		plt      = make([]float64, n)
		ppv      = append([]float64(nil), f.Ppv...)
		pg2pvbs  = make([]float64, n)
		ppvbs2ac = make([]float64, n)
		ppvbs2l  = make([]float64, n)
		pg2l     = make([]float64, n)
		ppv2l    = make([]float64, n)
		ppv2g    = make([]float64, n)
		pct      = make([]float64, n)
		pg       = make([]float64, n)
		pac2g    = make([]float64, n)
		pg2ac    = make([]float64, n)
	)
	for i := 0; i < n; i++ {
		plt[i] = f.Pl[i] + f.Pperi[i]
		pg2pvbs[i] = math.Min(0, f.Ppvbs[i])
		ppvbs2ac[i] = math.Max(0, f.Ppvbs[i])
		ppvbs2l[i] = math.Min(plt[i], ppvbs2ac[i])
		pg2l[i] = plt[i] - ppvbs2l[i]
		ppv2l[i] = math.Min(plt[i], f.Ppv2ac[i])
		ppv2g[i] = math.Min(f.Ppv2ac[i]-ppv2l[i], capW)
		pct[i] = f.Ppv2ac[i] - ppv2l[i] - ppv2g[i]

		ppvbs := f.Ppvbs[i]
		if pct[i] > 0 {
			ppvbs -= pct[i]
			ppvbs2ac[i] = math.Max(0, ppvbs)
			out := f.Ppv2ac[i] - pct[i]
			in := out + pv2ac.Out.Loss(out/pv2ac.RatedOut)
			ppv[i] = in + f.Ppv2batIn[i]
		}
		pg[i] = ppvbs - plt[i]
		pac2g[i] = math.Max(0, pg[i])
		pg2ac[i] = math.Min(0, pg[i])
	}

	r := Report{
		Load:         energy(plt, dt),
		PV:           energy(ppv, dt),
		FeedIn:       energy(pac2g, dt),
		GridDemand:   energy(pg2ac, dt),
		GridToLoad:   energy(pg2l, dt),
		Peripheral:   energy(f.Pperi, dt),
		Curtailment:  energy(pct, dt),
		GridToSystem: energy(pg2pvbs, dt),
		ACToSystem:   energy(pg2pvbs, dt),
		SystemToAC:   energy(ppvbs2ac, dt),
		SystemToLoad: energy(ppvbs2l, dt),
		PVToLoad:     energy(ppv2l, dt),
		PVToGrid:     energy(ppv2g, dt),
	}
	batteryEnergy(r, f.Pbat, dt)
	return &Balance{Topology: sys.Topology(), Report: r, Ppv: ppv, Pct: pct, Pg: pg}, nil
}
