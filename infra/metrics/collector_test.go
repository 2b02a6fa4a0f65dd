package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/openbat/core/accounting"
	"github.com/kilianp07/openbat/core/events"
	coremetrics "github.com/kilianp07/openbat/core/metrics"
	"github.com/kilianp07/openbat/core/model"
	"github.com/kilianp07/openbat/internal/eventbus"
)

type recordingSink struct {
	mu       sync.Mutex
	runs     []coremetrics.RunEvent
	failures []coremetrics.FailureEvent
	controls []coremetrics.ControlEvent
}

func (s *recordingSink) RecordRun(ev coremetrics.RunEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, ev)
	return nil
}

func (s *recordingSink) RecordFailure(ev coremetrics.FailureEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, ev)
	return nil
}

func (s *recordingSink) RecordControl(ev coremetrics.ControlEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controls = append(s.controls, ev)
	return nil
}

func (s *recordingSink) counts() (int, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs), len(s.failures), len(s.controls)
}

func TestEventCollectorForwardsEvents(t *testing.T) {
	bus := eventbus.New()
	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	done := StartEventCollector(ctx, bus, sink, true)

	bus.Publish(events.RunCompleted{
		RunID: "r", System: "A", Topology: model.TopologyAC, Steps: 2,
		Report: accounting.Report{accounting.Load: 0.2},
	})
	bus.Publish(events.RunFailed{RunID: "f", System: "D", Err: errors.New("bad series")})
	bus.Publish(events.ControlSample{Session: "s", SetpointW: 10, ReadErr: errors.New("x")})
	bus.Publish("ignored")

	require.Eventually(t, func() bool {
		r, f, c := sink.counts()
		return r == 1 && f == 1 && c == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, "AC", sink.runs[0].Topology)
	assert.Equal(t, 0.2, sink.runs[0].EnergyMWh["El"])
	assert.Equal(t, "bad series", sink.failures[0].Reason)
	assert.True(t, sink.controls[0].ReadFailed)
}

func TestEventCollectorSkipsControlWhenRecordedByLoop(t *testing.T) {
	bus := eventbus.New()
	sink := &recordingSink{}
	done := StartEventCollector(context.Background(), bus, sink, false)
	bus.Publish(events.ControlSample{Session: "s"})
	bus.Publish(events.RunCompleted{System: "A", Topology: model.TopologyDC})
	require.Eventually(t, func() bool {
		r, _, _ := sink.counts()
		return r == 1
	}, time.Second, 5*time.Millisecond)
	bus.Close()
	<-done
	_, _, c := sink.counts()
	assert.Zero(t, c)
}

func TestEventCollectorNilBus(t *testing.T) {
	select {
	case <-StartEventCollector(context.Background(), nil, &recordingSink{}, true):
	default:
		t.Fatal("expected closed channel")
	}
}
