package model

import (
	"errors"
	"math"
	"testing"
)

func validAC() ACSystem {
	return ACSystem{
		Common: Common{
			Name:         "H",
			Battery:      Battery{CapacityWh: 10000, Efficiency: 0.95},
			Control:      Control{DeadSteps: 1, TimeConstant: 1.5},
			SOCThreshold: 0.98,
			FeedInLimit:  0.7,
			PVPeakW:      5000,
			PV2AC:        Pathway{RatedIn: 5200, RatedOut: 5000, In: LossCurve{0.01, 0.02, 10}, Out: LossCurve{0.01, 0.02, 10}},
		},
		AC2BAT: Pathway{RatedIn: 3000, In: LossCurve{C: 20}},
		BAT2AC: Pathway{RatedOut: 3000, Out: LossCurve{C: 20}},
	}
}

func TestLossCurve(t *testing.T) {
	c := LossCurve{A: 2, B: 3, C: 4}
	if got := c.Loss(0.5); got != 6 {
		t.Fatalf("expected 6 got %v", got)
	}
	if got := c.LossNoIdle(0.5); got != 2 {
		t.Fatalf("expected 2 got %v", got)
	}
}

func TestParseTopology(t *testing.T) {
	for in, want := range map[string]Topology{"AC": TopologyAC, "dc": TopologyDC, " PV ": TopologyPV} {
		got, err := ParseTopology(in)
		if err != nil || got != want {
			t.Fatalf("%q: got %v err %v", in, got, err)
		}
	}
	if _, err := ParseTopology("hybrid"); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected invalid config error, got %v", err)
	}
}

func TestValidateAccepts(t *testing.T) {
	if err := validAC().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*ACSystem){
		"capacity":   func(s *ACSystem) { s.Battery.CapacityWh = 0 },
		"efficiency": func(s *ACSystem) { s.Battery.Efficiency = 1.2 },
		"threshold":  func(s *ACSystem) { s.SOCThreshold = 0 },
		"rating":     func(s *ACSystem) { s.BAT2AC.RatedOut = 0 },
		"nan":        func(s *ACSystem) { s.AC2BAT.In.A = math.NaN() },
		"dead":       func(s *ACSystem) { s.Control.DeadSteps = -1 },
	}
	for name, mutate := range cases {
		s := validAC()
		mutate(&s)
		err := s.Validate()
		if !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected invalid config, got %v", name, err)
		}
		var ce *ConfigError
		if !errors.As(err, &ce) || ce.System != "H" {
			t.Fatalf("%s: expected ConfigError for system H, got %v", name, err)
		}
	}
}

func TestFeedInCap(t *testing.T) {
	if got := validAC().FeedInCapW(); got != 3500 {
		t.Fatalf("expected 3500 got %v", got)
	}
}
