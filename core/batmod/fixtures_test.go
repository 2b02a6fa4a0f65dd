package batmod

import "github.com/kilianp07/openbat/core/model"

var wide = model.Pathway{RatedIn: 10000, RatedOut: 10000}

func losslessCommon(capacityWh float64) model.Common {
	return model.Common{
		Name:         "test",
		Battery:      model.Battery{CapacityWh: capacityWh, Efficiency: 1},
		SOCThreshold: 0.98,
		FeedInLimit:  1,
		PVPeakW:      10000,
		PV2AC:        wide,
	}
}

func losslessAC(capacityWh float64) model.ACSystem {
	return model.ACSystem{Common: losslessCommon(capacityWh), AC2BAT: wide, BAT2AC: wide}
}

func losslessDC(capacityWh float64) model.DCSystem {
	return model.DCSystem{Common: losslessCommon(capacityWh), PV2BAT: wide, BAT2AC: wide}
}

func losslessPV(capacityWh float64) model.PVSystem {
	return model.PVSystem{Common: losslessCommon(capacityWh), PV2BAT: wide, BAT2PV: wide}
}

// lossyAC resembles a small residential AC-coupled system.
func lossyAC() model.ACSystem {
	s := model.ACSystem{
		Common: model.Common{
			Name:         "lossy",
			Battery:      model.Battery{CapacityWh: 5000, Efficiency: 0.92},
			Control:      model.Control{DeadSteps: 1, TimeConstant: 2},
			Standby:      model.Standby{Empty: model.StandbyDraw{DC: 2, AC: 5}, Full: model.StandbyDraw{DC: 4, AC: 8}},
			Deviation:    model.Deviation{Charge: -10, Discharge: 15},
			SOCThreshold: 0.98,
			FeedInLimit:  0.7,
			PVPeakW:      5000,
			PV2AC: model.Pathway{RatedIn: 5200, RatedOut: 5000,
				In: model.LossCurve{A: 60, B: 80, C: 15}, Out: model.LossCurve{A: 55, B: 90, C: 14}},
		},
		AC2BAT: model.Pathway{RatedIn: 2500, In: model.LossCurve{A: 40, B: 50, C: 25}},
		BAT2AC: model.Pathway{RatedOut: 2500, Out: model.LossCurve{A: 45, B: 55, C: 20}},
	}
	return s
}

// wave returns a deterministic profile swinging between deficit and surplus.
func wave(n int, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		x := float64((i*37)%101)/50 - 1
		out[i] = amp * x
	}
	return out
}
