package batmod

import (
	"fmt"
	"math"

	"github.com/kilianp07/openbat/core/model"
)

// Drive is the engine input derived from PV and load profiles for maximum
// self-consumption, together with the series the accounting needs.
type Drive struct {
	Input
	Pl    []float64 // household load in W
	Ppvs  []float64 // AC: PV inverter AC output
	Pperi []float64 // peripheral consumption in W
}

// Residual derives the driving series for sys from the PV profile ppv and the
// load pl in W. With normalized set, ppv is given in kW/kWp and scaled by the
// PV peak power; otherwise it is the PV DC power in W.
func Residual(sys model.System, ppv, pl []float64, normalized bool) (*Drive, error) {
	if ppv == nil || pl == nil {
		return nil, fmt.Errorf("%w: ppv and pl are required", ErrMissingSeries)
	}
	if len(ppv) != len(pl) {
		return nil, fmt.Errorf("%w: ppv has %d samples, pl has %d", ErrSeriesLength, len(ppv), len(pl))
	}
	c := sys.Base()
	pv := make([]float64, len(ppv))
	for i, v := range ppv {
		if normalized {
			v *= c.PVPeakW
		}
		pv[i] = v
	}
	d := &Drive{Pl: pl}
	d.Pperi = make([]float64, len(pl))
	for i := range d.Pperi {
		d.Pperi[i] = c.PeripheralW
	}
	pv2ac := c.PV2AC
	switch sys.Topology() {
	case model.TopologyAC:
		d.Ppv = pv
		d.Ppvs = make([]float64, len(pv))
		d.Pr = make([]float64, len(pv))
		for i := range pv {
			pv[i] = math.Min(pv[i], pv2ac.RatedIn)
			out := math.Max(0, pv[i]-pv2ac.In.Loss(pv[i]/pv2ac.RatedIn))
			d.Ppvs[i] = math.Min(out, pv2ac.RatedOut)
			if d.Ppvs[i] == 0 {
				d.Pperi[i] += c.PVInverterStandbyW
			}
			d.Pr[i] = d.Ppvs[i] - pl[i] - d.Pperi[i]
		}
	case model.TopologyDC:
		d.Ppv = pv
		d.Prpv = make([]float64, len(pv))
		d.Pr = make([]float64, len(pv))
		d.Ppv2acOut = make([]float64, len(pv))
		for i := range pv {
			pv[i] = math.Min(pv[i], pv2ac.RatedIn)
			pac := pl[i] + d.Pperi[i]
			target := math.Min(pac, pv2ac.RatedOut)
			need := target + pv2ac.Out.Loss(target/pv2ac.RatedOut)
			d.Ppv2acOut[i] = math.Max(0, pv[i]-pv2ac.In.Loss(pv[i]/pv2ac.RatedIn))
			d.Prpv[i] = pv[i] - need
			d.Pr[i] = d.Ppv2acOut[i] - pac
		}
	case model.TopologyPV:
		d.Ppv = pv
		d.Pac = make([]float64, len(pv))
		for i := range pv {
			d.Pac[i] = pl[i] + d.Pperi[i]
		}
	default:
		return nil, fmt.Errorf("unsupported topology %v", sys.Topology())
	}
	return d, nil
}
