package accounting

import (
	"fmt"

	"github.com/kilianp07/openbat/core/batmod"
	"github.com/kilianp07/openbat/core/model"
)

// Compute builds the balance of a simulation run from the drive it was fed
// with and the engine result.
func Compute(sys model.System, d *batmod.Drive, res *batmod.Result, dt float64) (*Balance, error) {
	if d == nil || res == nil {
		return nil, fmt.Errorf("%w: drive and result are required", ErrMissingSeries)
	}
	switch sys.Topology() {
	case model.TopologyAC:
		return AC(sys, ACFlows{Pl: d.Pl, Ppv: d.Ppv, Ppvs: d.Ppvs, Pperi: d.Pperi, Pbs: res.Pbus, Pbat: res.Pbat}, dt)
	case model.TopologyDC, model.TopologyPV:
		return Bus(sys, BusFlows{
			Pl: d.Pl, Ppv: res.Ppv, Pperi: d.Pperi, Pbat: res.Pbat,
			Ppv2ac: res.Ppv2acOut, Ppv2batIn: res.Ppv2batIn, Ppvbs: res.Pbus,
		}, dt)
	}
	return nil, fmt.Errorf("unsupported topology %v", sys.Topology())
}
