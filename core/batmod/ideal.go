package batmod

import (
	"fmt"
	"math"
)

// IdealBattery is a lossless battery without power limits. It absorbs the
// whole surplus and covers the whole deficit as long as capacity allows and
// serves as reference for the real system.
type IdealBattery struct {
	CapacityWh float64
	dt         float64
}

// NewIdeal returns an ideal battery of the given capacity sampled every dt
// seconds.
func NewIdeal(capacityWh, dt float64) (*IdealBattery, error) {
	if !(capacityWh > 0) {
		return nil, fmt.Errorf("ideal battery capacity must be positive, got %v", capacityWh)
	}
	if !(dt > 0) {
		return nil, fmt.Errorf("%w: %v", ErrTimeStep, dt)
	}
	return &IdealBattery{CapacityWh: capacityWh, dt: dt}, nil
}

// Run applies the residual power pr and returns the battery power and SOC
// series. Charging fills the battery exactly to capacity and discharging
// empties it exactly.
func (b *IdealBattery) Run(pr []float64, soc0 float64) (pbat, soc []float64, err error) {
	if pr == nil {
		return nil, nil, fmt.Errorf("%w: pr", ErrMissingSeries)
	}
	if soc0 < 0 || soc0 > 1 {
		return nil, nil, fmt.Errorf("%w: %v", ErrInitialSOC, soc0)
	}
	pbat = make([]float64, len(pr))
	soc = make([]float64, len(pr))
	h := b.dt / 3600
	e := soc0 * b.CapacityWh
	for t, p := range pr {
		if p > 0 {
			p = math.Min(p, (b.CapacityWh-e)/h)
		} else if p < 0 {
			p = math.Max(p, -e/h)
		}
		e += p * h
		pbat[t] = p
		soc[t] = e / b.CapacityWh
	}
	return pbat, soc, nil
}
