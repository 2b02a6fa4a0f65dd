package fit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolyfit2RecoversCoefficients(t *testing.T) {
	x := []float64{0, 0.1, 0.25, 0.5, 0.75, 1}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = 30*v*v + 12*v + 7
	}
	c, err := Polyfit2(x, y)
	require.NoError(t, err)
	assert.InDelta(t, 30, c.A, 1e-8)
	assert.InDelta(t, 12, c.B, 1e-8)
	assert.InDelta(t, 7, c.C, 1e-8)
}

func TestPolyfit2Errors(t *testing.T) {
	if _, err := Polyfit2([]float64{1, 2}, []float64{1, 2}); !errors.Is(err, ErrTooFewPoints) {
		t.Fatalf("expected too few points, got %v", err)
	}
	if _, err := Polyfit2([]float64{1, 2, 3}, []float64{1, 2}); err == nil {
		t.Fatal("expected length error")
	}
}

func TestFitPathway(t *testing.T) {
	pts := []EfficiencyPoint{{1, 0.95}, {0.05, 0.88}, {0.1, 0.92}, {0.25, 0.95}, {0.5, 0.96}, {0.75, 0.96}}
	p, err := FitPathway(2500, 0, pts)
	require.NoError(t, err)
	assert.InDelta(t, 2500/0.95, p.RatedIn, 1e-9)
	// the fitted curve reproduces the measured losses closely
	for _, pt := range pts {
		out := 2500 * pt.Load
		assert.InDelta(t, (1/pt.Efficiency-1)*out, p.Out.Loss(pt.Load), 8)
		in := out / pt.Efficiency
		assert.InDelta(t, (1-pt.Efficiency)*in, p.In.Loss(in/p.RatedIn), 8)
	}
	assert.Greater(t, p.Out.C, 0.0, "idle losses are positive for a realistic table")
}

func TestFitPathwayErrors(t *testing.T) {
	if _, err := FitPathway(0, 0, nil); err == nil {
		t.Fatal("expected rating error")
	}
	if _, err := FitPathway(1000, 0, []EfficiencyPoint{{0.5, 0.9}, {0.2, 0.8}, {0.1, 0.7}}); err == nil {
		t.Fatal("expected missing full load error")
	}
	if _, err := FitPathway(1000, 1000, []EfficiencyPoint{{0.5, 1.2}, {0.2, 0.8}, {1, 0.7}}); err == nil {
		t.Fatal("expected efficiency error")
	}
}

func TestDerived(t *testing.T) {
	assert.InDelta(t, (10000/0.9+10000)/2, MeanCapacity(10000, 0.9), 1e-9)
	assert.Equal(t, 3.0, TimeConstant(1.4, 10))
	d := StationaryDeviation(20, 5, 3, 11)
	assert.Equal(t, 15.0, d.Charge)
	assert.Equal(t, 8.0, d.Discharge)
}

func TestDeriveDefaults(t *testing.T) {
	d := Derive(Datasheet{
		UsableCapacityWh:  5000,
		BatteryEfficiency: 0.95,
		ChargeImportW:     10,
		DischargeExportW:  4,
		DeadTimeS:         2,
		SettlingTimeS:     8,
	})
	assert.InDelta(t, (5000/0.95+5000)/2, d.CapacityWh, 1e-9)
	assert.Equal(t, 10.0, d.Deviation.Charge)
	assert.Equal(t, 4.0, d.Deviation.Discharge)
	assert.Equal(t, 2.0, d.TimeConstant)
	assert.Equal(t, DefaultSOCThreshold, d.SOCThreshold)
	assert.Equal(t, DefaultFeedInLimit, d.FeedInLimit)

	threshold, limit := 0.9, 0.5
	d = Derive(Datasheet{UsableCapacityWh: 1, BatteryEfficiency: 1, SOCThreshold: &threshold, FeedInLimit: &limit})
	assert.Equal(t, 0.9, d.SOCThreshold)
	assert.Equal(t, 0.5, d.FeedInLimit)

	zero := 0.0
	d = Derive(Datasheet{UsableCapacityWh: 1, BatteryEfficiency: 1, FeedInLimit: &zero})
	assert.Equal(t, 0.0, d.FeedInLimit, "an explicit zero forbids export")
	assert.Equal(t, DefaultSOCThreshold, d.SOCThreshold)
}
