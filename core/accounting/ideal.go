package accounting

import "math"

// Ideal returns the report of a lossless reference system: the PV power ppv
// and the load pl exchange energy with an ideal battery pbat and the grid
// without conversion losses or feed-in limit.
func Ideal(ppv, pl, pbat []float64, dt float64) (Report, error) {
	n := len(pl)
	if err := checkSeries(n, map[string][]float64{"ppv": ppv, "pl": pl, "pbat": pbat}); err != nil {
		return nil, err
	}
	feed := make([]float64, n)
	demand := make([]float64, n)
	direct := make([]float64, n)
	for i := range pl {
		pg := ppv[i] - pl[i] - pbat[i]
		feed[i] = math.Max(0, pg)
		demand[i] = math.Min(0, pg)
		direct[i] = math.Min(ppv[i], pl[i])
	}
	r := Report{
		Load:       energy(pl, dt),
		PV:         energy(ppv, dt),
		FeedIn:     energy(feed, dt),
		GridDemand: energy(demand, dt),
		GridToLoad: energy(demand, dt),
		PVToLoad:   energy(direct, dt),
	}
	batteryEnergy(r, pbat, dt)
	return r, nil
}
