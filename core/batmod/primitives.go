package batmod

import "math"

// dischargeReserve is the share of the stored energy kept back when a
// discharge request would empty the battery within one step.
const dischargeReserve = 0.1

// LagFactor returns 1 - e^(-dt/tau), the weight of the new target in a
// first order lag sampled every dt seconds.
func LagFactor(dt, tau float64) float64 {
	return 1 - math.Exp(-dt/tau)
}

// Lag moves prev towards target by the given factor.
func Lag(prev, target, factor float64) float64 {
	return prev + (target-prev)*factor
}

// ClampToCapacity limits a power request so that one step of length dt
// neither overfills nor empties the battery. Energies are in Wh, power in W.
func ClampToCapacity(p, storedWh, capacityWh, dt float64) float64 {
	e := p * dt / 3600
	switch {
	case e > 0 && e > capacityWh-storedWh:
		return (capacityWh - storedWh) * 3600 / dt
	case e < 0 && -e > storedWh:
		return -storedWh * 3600 / dt * (1 - dischargeReserve)
	}
	return p
}

// Integrate returns the stored energy after applying the battery DC power
// pbat for dt seconds. Charging is weighted with sqrt(eta) and discharging
// with 1/sqrt(eta).
func Integrate(storedWh, pbat, efficiency, dt float64) float64 {
	se := math.Sqrt(efficiency)
	switch {
	case pbat > 0:
		return storedWh + pbat*se*dt/3600
	case pbat < 0:
		return storedWh + pbat/se*dt/3600
	}
	return storedWh
}

// timing holds the controller behaviour derived once per run.
type timing struct {
	dead      int     // steps between request and application, 0 if unused
	lagFactor float64 // 1 when no lag applies
	lagged    bool
}

// newTiming derives the timing for a step width dt. The lag is skipped when
// there is no time constant or dt already spans three of them; dead time is
// skipped in that second case as well.
func newTiming(deadSteps int, tau, dt float64) timing {
	coarse := tau > 0 && dt >= 3*tau
	t := timing{lagFactor: 1}
	if deadSteps > 0 && !coarse {
		t.dead = deadSteps
	}
	if tau > 0 && !coarse {
		t.lagFactor = LagFactor(dt, tau)
		t.lagged = true
	}
	return t
}

func (t timing) lag(prev, target float64) float64 {
	if !t.lagged {
		return target
	}
	return Lag(prev, target, t.lagFactor)
}

// delayed reads series[i-dead], falling back to the samples carried over
// from a previous run. ok is false when neither holds the sample.
func delayed(series, history []float64, i, dead int) (float64, bool) {
	j := i - dead
	if j >= 0 {
		return series[j], true
	}
	k := len(history) + j
	if k >= 0 {
		return history[k], true
	}
	return 0, false
}

// carryHistory keeps the last dead samples of history followed by series.
func carryHistory(history, series []float64, dead int) []float64 {
	if dead == 0 {
		return nil
	}
	if len(series) == 0 {
		return history
	}
	all := make([]float64, 0, len(history)+len(series))
	all = append(all, history...)
	all = append(all, series...)
	if len(all) > dead {
		all = all[len(all)-dead:]
	}
	return all
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(x, hi))
}
