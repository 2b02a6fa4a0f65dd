package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/kilianp07/openbat/core/metrics"
)

func TestPromSink_RecordRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(coremetrics.Config{Namespace: "test"}, reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	ev := coremetrics.RunEvent{
		System: "A", Topology: "AC", Steps: 96, FinalSOC: 0.42, SelfSufficiency: 0.61,
		EnergyMWh: map[string]float64{"El": 1.5, "Eg2l": 0.6},
		Duration:  20 * time.Millisecond,
	}
	for i := 0; i < 2; i++ {
		if err := sink.RecordRun(ev); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	expected := `
# HELP test_runs_total Completed simulation runs
# TYPE test_runs_total counter
test_runs_total{system="A",topology="AC"} 2
`
	if err := testutil.CollectAndCompare(sink.runs, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
	if v := testutil.ToFloat64(sink.finalSOC.WithLabelValues("A")); v != 0.42 {
		t.Errorf("final soc %v", v)
	}
	if v := testutil.ToFloat64(sink.energy.WithLabelValues("A", "Eg2l")); v != 0.6 {
		t.Errorf("energy %v", v)
	}
	if c := testutil.CollectAndCount(sink.runDuration); c != 1 {
		t.Errorf("duration series %d", c)
	}
}

func TestPromSink_RecordControl(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	_ = sink.RecordControl(coremetrics.ControlEvent{Session: "s", SetpointW: -1200, SOC: 0.3})
	_ = sink.RecordControl(coremetrics.ControlEvent{Session: "s", SetpointW: -900, SOC: 0.9, ReadFailed: true, WriteFailed: true})

	if v := testutil.ToFloat64(sink.setpoint.WithLabelValues("s")); v != -900 {
		t.Errorf("setpoint %v", v)
	}
	if v := testutil.ToFloat64(sink.soc.WithLabelValues("s")); v != 0.3 {
		t.Errorf("soc should keep the last good read, got %v", v)
	}
	if v := testutil.ToFloat64(sink.cycleErrs.WithLabelValues("s", "read")); v != 1 {
		t.Errorf("read errors %v", v)
	}
	if err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP openbat_control_errors_total Failed device operations during control
# TYPE openbat_control_errors_total counter
openbat_control_errors_total{op="read",session="s"} 1
openbat_control_errors_total{op="write",session="s"} 1
`), "openbat_control_errors_total"); err != nil {
		t.Errorf("gather: %v", err)
	}
}

func TestPromSink_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	if err != nil {
		t.Fatalf("first sink: %v", err)
	}
	b, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	if err != nil {
		t.Fatalf("second sink: %v", err)
	}
	_ = a.RecordFailure(coremetrics.FailureEvent{System: "D"})
	_ = b.RecordFailure(coremetrics.FailureEvent{System: "D"})
	if v := testutil.ToFloat64(a.failures.WithLabelValues("D")); v != 2 {
		t.Fatalf("expected shared counter, got %v", v)
	}
}
