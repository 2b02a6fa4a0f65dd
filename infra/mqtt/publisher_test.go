package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/openbat/core/accounting"
	"github.com/kilianp07/openbat/core/events"
	"github.com/kilianp07/openbat/core/model"
	"github.com/kilianp07/openbat/internal/eventbus"
)

func TestRunMessage(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	msg := RunMessage(events.RunCompleted{
		RunID: "r1", System: "D", Topology: model.TopologyDC, Steps: 8, StepSeconds: 60,
		Report:   accounting.Report{accounting.Load: 1.5},
		Duration: 1500 * time.Millisecond, Time: now,
	})
	assert.Equal(t, "DC", msg.Topology)
	assert.Equal(t, 1.5, msg.EnergyMWh["El"])
	assert.Nil(t, msg.IdealMWh)
	assert.Equal(t, int64(1500), msg.DurationMS)
	assert.Equal(t, int64(1700000000123), msg.Timestamp)
}

func TestControlMessageErrors(t *testing.T) {
	w, r := errors.New("busy"), errors.New("timeout")
	assert.Equal(t, "write: busy; read: timeout", ControlMessage(events.ControlSample{WriteErr: w, ReadErr: r}).Error)
	assert.Equal(t, "read: timeout", ControlMessage(events.ControlSample{ReadErr: r}).Error)
	assert.Empty(t, ControlMessage(events.ControlSample{SetpointW: 5}).Error)
}

func TestBridgePublishesEvents(t *testing.T) {
	bus := eventbus.New()
	pub := NewMockPublisher()
	done := StartBridge(context.Background(), bus, pub)

	bus.Publish(events.RunCompleted{System: "A", Topology: model.TopologyAC})
	bus.Publish(events.ControlSample{Session: "s", Step: 1})
	bus.Publish(events.RunStarted{System: "A"})

	require.Eventually(t, func() bool {
		runs, controls := pub.Counts()
		return runs == 1 && controls == 1
	}, time.Second, 5*time.Millisecond)
	bus.Close()
	<-done
	assert.Equal(t, "A", pub.Runs[0].System)
}
