package scenarios

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/kilianp07/openbat/core/events"
	coremetrics "github.com/kilianp07/openbat/core/metrics"
	"github.com/kilianp07/openbat/core/results"
	"github.com/kilianp07/openbat/core/scenario"
	"github.com/kilianp07/openbat/core/simulation"
	"github.com/kilianp07/openbat/infra/logger"
	"github.com/kilianp07/openbat/infra/metrics"
	"github.com/kilianp07/openbat/infra/mqtt"
	"github.com/kilianp07/openbat/internal/eventbus"
)

const namespace = "qa"

// RunScenario simulates sc, publishes the completion on a bus wired to a
// Prometheus sink, an MQTT mock and a result store, and checks both the
// expected bounds and what each consumer received.
func RunScenario(t *testing.T, sc *scenario.Scenario) {
	t.Helper()
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(coremetrics.Config{Namespace: namespace}, reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}
	pub := mqtt.NewMockPublisher()
	store := results.NewMemoryStore()
	bus := eventbus.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	collected := metrics.StartEventCollector(ctx, bus, sink, false)
	bridged := mqtt.StartBridge(ctx, bus, pub)
	recorded := results.StartRecorder(ctx, bus, store, logger.NopLogger{})

	req, err := sc.Request()
	if err != nil {
		t.Fatalf("scenario %s request: %v", sc.Name, err)
	}
	start := time.Now()
	out, err := simulation.Run(req)
	if err != nil {
		t.Fatalf("scenario %s run: %v", sc.Name, err)
	}
	runID := uuid.NewString()
	bus.Publish(events.RunCompleted{
		RunID:           runID,
		System:          out.System,
		Topology:        out.Topology,
		Steps:           len(out.Result.SOC),
		StepSeconds:     out.Step,
		FinalSOC:        out.FinalSOC(),
		SelfSufficiency: out.SelfSufficiency(),
		Report:          out.Balance.Report,
		Ideal:           out.Ideal,
		Duration:        time.Since(start),
		Time:            start,
	})
	bus.Close()
	<-collected
	<-bridged
	<-recorded

	if err := sc.Expected.Check(out); err != nil {
		t.Errorf("scenario %s: %v", sc.Name, err)
	}
	for i, soc := range out.Result.SOC {
		if soc < 0 || soc > 1 {
			t.Fatalf("scenario %s: soc %v out of range at step %d", sc.Name, soc, i)
		}
	}

	if runs, _ := pub.Counts(); runs != 1 {
		t.Errorf("scenario %s expected 1 published run, got %d", sc.Name, runs)
	}
	rec, err := store.Get(ctx, runID)
	if err != nil {
		t.Fatalf("scenario %s not recorded: %v", sc.Name, err)
	}
	if rec.FinalSOC != out.FinalSOC() {
		t.Errorf("scenario %s recorded soc %v, want %v", sc.Name, rec.FinalSOC, out.FinalSOC())
	}
	if v, ok := gauge(t, reg, namespace+"_run_final_soc"); !ok || v != out.FinalSOC() {
		t.Errorf("scenario %s exported soc %v (found %v), want %v", sc.Name, v, ok, out.FinalSOC())
	}
}

// gauge returns the first sample of the named gauge family.
func gauge(t *testing.T, g prometheus.Gatherer, name string) (float64, bool) {
	t.Helper()
	families, err := g.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var fam *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == name {
			fam = f
			break
		}
	}
	if fam == nil || len(fam.GetMetric()) == 0 {
		return 0, false
	}
	return fam.GetMetric()[0].GetGauge().GetValue(), true
}
