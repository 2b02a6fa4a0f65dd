// Package simulation chains residual power, the step engine and the energy
// accounting into a single run.
package simulation

import (
	"fmt"

	"github.com/kilianp07/openbat/core/accounting"
	"github.com/kilianp07/openbat/core/batmod"
	"github.com/kilianp07/openbat/core/model"
)

// Request describes one run.
type Request struct {
	System     model.System
	PV         []float64 // PV profile, see Normalized
	Load       []float64 // household load in W
	Normalized bool      // PV given in kW/kWp
	Step       float64   // time step in s
	State      batmod.State
}

// Outcome is everything a run produced.
type Outcome struct {
	System   string
	Topology model.Topology
	Step     float64
	Drive    *batmod.Drive
	Result   *batmod.Result
	Balance  *accounting.Balance
	Ideal    accounting.Report
	IdealSOC []float64
}

// Run executes req.
func Run(req Request) (*Outcome, error) {
	if req.System == nil {
		return nil, fmt.Errorf("simulation: system is required")
	}
	eng, err := batmod.New(req.System, req.Step)
	if err != nil {
		return nil, fmt.Errorf("simulation: %w", err)
	}
	drive, err := batmod.Residual(req.System, req.PV, req.Load, req.Normalized)
	if err != nil {
		return nil, fmt.Errorf("simulation: residual: %w", err)
	}
	res, err := eng.Run(drive.Input, req.State)
	if err != nil {
		return nil, fmt.Errorf("simulation: run: %w", err)
	}
	bal, err := accounting.Compute(req.System, drive, res, req.Step)
	if err != nil {
		return nil, fmt.Errorf("simulation: accounting: %w", err)
	}

	base := req.System.Base()
	ideal, err := batmod.NewIdeal(base.Battery.CapacityWh, req.Step)
	if err != nil {
		return nil, fmt.Errorf("simulation: %w", err)
	}
	pr := make([]float64, len(drive.Ppv))
	for i := range pr {
		pr[i] = drive.Ppv[i] - req.Load[i]
	}
	pbat, soc, err := ideal.Run(pr, req.State.SOC)
	if err != nil {
		return nil, fmt.Errorf("simulation: ideal: %w", err)
	}
	report, err := accounting.Ideal(drive.Ppv, req.Load, pbat, req.Step)
	if err != nil {
		return nil, fmt.Errorf("simulation: ideal: %w", err)
	}

	return &Outcome{
		System:   base.Name,
		Topology: req.System.Topology(),
		Step:     req.Step,
		Drive:    drive,
		Result:   res,
		Balance:  bal,
		Ideal:    report,
		IdealSOC: soc,
	}, nil
}

// FinalSOC returns the SOC after the last step.
func (o *Outcome) FinalSOC() float64 { return o.Result.Final.SOC }

// SelfSufficiency returns the share of the load not covered by the grid.
func (o *Outcome) SelfSufficiency() float64 {
	r := o.Balance.Report
	if r[accounting.Load] == 0 {
		return 0
	}
	return 1 - r[accounting.GridToLoad]/r[accounting.Load]
}
