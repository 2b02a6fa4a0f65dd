package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/openbat/core/events"
	coremetrics "github.com/kilianp07/openbat/core/metrics"
	"github.com/kilianp07/openbat/infra/logger"
	"github.com/kilianp07/openbat/internal/eventbus"
)

// RunEventFrom flattens a completed run into a metrics event.
func RunEventFrom(e events.RunCompleted) coremetrics.RunEvent {
	energy := make(map[string]float64, len(e.Report))
	for cat, v := range e.Report {
		energy[string(cat)] = v
	}
	return coremetrics.RunEvent{
		RunID:           e.RunID,
		System:          e.System,
		Topology:        e.Topology.String(),
		Steps:           e.Steps,
		FinalSOC:        e.FinalSOC,
		SelfSufficiency: e.SelfSufficiency,
		EnergyMWh:       energy,
		Duration:        e.Duration,
		Time:            e.Time,
	}
}

// StartEventCollector subscribes to the bus and forwards run events to
// sink. Control samples are forwarded only when the loop does not record
// them itself, which is signalled by withControl. It returns a channel
// closed once the collector stopped, either because ctx was cancelled or
// the bus was closed.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink, withControl bool) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	log := logger.New("metrics-collector")
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := forward(ev, sink, withControl); err != nil {
					log.Warnf("record %T: %v", ev, err)
				}
			}
		}
	}()
	return done
}

func forward(ev eventbus.Event, sink coremetrics.MetricsSink, withControl bool) error {
	switch e := ev.(type) {
	case events.RunCompleted:
		return sink.RecordRun(RunEventFrom(e))
	case events.RunFailed:
		if r, ok := sink.(coremetrics.FailureRecorder); ok {
			reason := ""
			if e.Err != nil {
				reason = e.Err.Error()
			}
			return r.RecordFailure(coremetrics.FailureEvent{RunID: e.RunID, System: e.System, Reason: reason, Time: time.Now()})
		}
	case events.ControlSample:
		if r, ok := sink.(coremetrics.ControlRecorder); ok && withControl {
			return r.RecordControl(coremetrics.ControlEvent{
				Session: e.Session, Step: e.Step, TargetW: e.TargetW, SetpointW: float64(e.SetpointW),
				SOC: e.SOC, ACPowerW: e.ACPowerW, BatteryPowerW: e.BatteryPowerW,
				WriteFailed: e.WriteErr != nil, ReadFailed: e.ReadErr != nil,
				Latency: e.Latency, Time: e.Time,
			})
		}
	}
	return nil
}
