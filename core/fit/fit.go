// Package fit derives simulation parameters from datasheet style
// measurements: quadratic loss curves from efficiency tables and controller
// and battery figures from test results.
package fit

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/openbat/core/model"
)

// ErrTooFewPoints is returned when fewer than three sampling points are given.
var ErrTooFewPoints = errors.New("fit: at least three sampling points required")

// EfficiencyPoint is one entry of an efficiency table. Load is the output power
// normalised by the rated output, Efficiency a fraction in (0,1].
type EfficiencyPoint struct {
	Load       float64 `json:"load" yaml:"load"`
	Efficiency float64 `json:"efficiency" yaml:"efficiency"`
}

// Polyfit2 returns the least squares coefficients of y ≈ a·x² + b·x + c.
func Polyfit2(x, y []float64) (model.LossCurve, error) {
	if len(x) != len(y) {
		return model.LossCurve{}, fmt.Errorf("fit: %d x values for %d y values", len(x), len(y))
	}
	if len(x) < 3 {
		return model.LossCurve{}, ErrTooFewPoints
	}
	a := mat.NewDense(len(x), 3, nil)
	for i, v := range x {
		a.Set(i, 0, v*v)
		a.Set(i, 1, v)
		a.Set(i, 2, 1)
	}
	var beta mat.VecDense
	if err := beta.SolveVec(a, mat.NewVecDense(len(y), append([]float64(nil), y...))); err != nil {
		return model.LossCurve{}, fmt.Errorf("fit: %w", err)
	}
	return model.LossCurve{A: beta.AtVec(0), B: beta.AtVec(1), C: beta.AtVec(2)}, nil
}

// FitPathway fits the input and output loss curves of a conversion stage from
// its efficiency table. A zero ratedIn is derived from the full load
// efficiency.
func FitPathway(ratedOut, ratedIn float64, pts []EfficiencyPoint) (model.Pathway, error) {
	if !(ratedOut > 0) {
		return model.Pathway{}, fmt.Errorf("fit: rated output must be positive, got %v", ratedOut)
	}
	pts = append([]EfficiencyPoint(nil), pts...)
	sort.Slice(pts, func(i, j int) bool { return pts[i].Load < pts[j].Load })
	for _, p := range pts {
		if !(p.Efficiency > 0 && p.Efficiency <= 1) {
			return model.Pathway{}, fmt.Errorf("fit: efficiency %v at load %v outside (0,1]", p.Efficiency, p.Load)
		}
	}
	if ratedIn <= 0 {
		full, ok := fullLoad(pts)
		if !ok {
			return model.Pathway{}, fmt.Errorf("fit: rated input unknown and no full load point")
		}
		ratedIn = ratedOut / full.Efficiency
	}

	xin := make([]float64, len(pts))
	lin := make([]float64, len(pts))
	xout := make([]float64, len(pts))
	lout := make([]float64, len(pts))
	for i, p := range pts {
		out := ratedOut * p.Load
		in := out / p.Efficiency
		xin[i] = in / ratedIn
		lin[i] = (1 - p.Efficiency) * in
		xout[i] = p.Load
		lout[i] = (1/p.Efficiency - 1) * out
	}
	cin, err := Polyfit2(xin, lin)
	if err != nil {
		return model.Pathway{}, err
	}
	cout, err := Polyfit2(xout, lout)
	if err != nil {
		return model.Pathway{}, err
	}
	return model.Pathway{RatedIn: ratedIn, RatedOut: ratedOut, In: cin, Out: cout}, nil
}

func fullLoad(pts []EfficiencyPoint) (EfficiencyPoint, bool) {
	for _, p := range pts {
		if math.Abs(p.Load-1) < 1e-9 {
			return p, true
		}
	}
	return EfficiencyPoint{}, false
}

// MeanCapacity returns the capacity used for simulation: the mean of the
// usable capacity and the capacity needed to deliver it at the given round
// trip efficiency.
func MeanCapacity(usableWh, efficiency float64) float64 {
	return (usableWh/efficiency + usableWh) / 2
}

// TimeConstant converts a measured settling time and dead time in seconds
// into the first order time constant.
func TimeConstant(deadS, settlingS float64) float64 {
	return (settlingS - math.Round(deadS)) / 3
}

// StationaryDeviation derives the control offsets from the grid import and
// export measured while charging and while discharging.
func StationaryDeviation(chargeImport, chargeExport, dischargeImport, dischargeExport float64) model.Deviation {
	return model.Deviation{
		Charge:    chargeImport - chargeExport,
		Discharge: dischargeExport - dischargeImport,
	}
}

// Defaults applied by Derive when a datasheet leaves them unset. An explicit
// zero is kept: a feed-in limit of 0 forbids any export.
const (
	DefaultSOCThreshold = 0.98
	DefaultFeedInLimit  = 0.7
)

// Datasheet gathers the measured battery and controller figures that are
// turned into model parameters. Powers are in W, capacity in Wh, times in s.
type Datasheet struct {
	UsableCapacityWh  float64
	BatteryEfficiency float64 // fraction
	ChargeImportW     float64
	ChargeExportW     float64
	DischargeImportW  float64
	DischargeExportW  float64
	DeadTimeS         float64
	SettlingTimeS     float64
	SOCThreshold      *float64
	FeedInLimit       *float64
}

// Derived holds the parameters computed from a Datasheet.
type Derived struct {
	CapacityWh   float64
	Deviation    model.Deviation
	TimeConstant float64
	SOCThreshold float64
	FeedInLimit  float64
}

// Derive computes the simulation parameters of a datasheet.
func Derive(d Datasheet) Derived {
	dev := StationaryDeviation(d.ChargeImportW, d.ChargeExportW, d.DischargeImportW, d.DischargeExportW)
	out := Derived{
		CapacityWh:   MeanCapacity(d.UsableCapacityWh, d.BatteryEfficiency),
		Deviation:    dev,
		TimeConstant: TimeConstant(d.DeadTimeS, d.SettlingTimeS),
		SOCThreshold: DefaultSOCThreshold,
		FeedInLimit:  DefaultFeedInLimit,
	}
	if d.SOCThreshold != nil {
		out.SOCThreshold = *d.SOCThreshold
	}
	if d.FeedInLimit != nil {
		out.FeedInLimit = *d.FeedInLimit
	}
	return out
}
