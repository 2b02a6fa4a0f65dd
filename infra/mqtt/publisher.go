package mqtt

import (
	"context"
	"fmt"
	"sync"

	"github.com/kilianp07/openbat/core/events"
	coremqtt "github.com/kilianp07/openbat/core/mqtt"
	"github.com/kilianp07/openbat/infra/logger"
	"github.com/kilianp07/openbat/internal/eventbus"
)

// Publisher mirrors the core mqtt.Publisher interface.
type Publisher = coremqtt.Publisher

// RunMessage converts a completed run into its wire form.
func RunMessage(e events.RunCompleted) coremqtt.RunMessage {
	return coremqtt.RunMessage{
		RunID:           e.RunID,
		System:          e.System,
		Topology:        e.Topology.String(),
		Steps:           e.Steps,
		StepSeconds:     e.StepSeconds,
		FinalSOC:        e.FinalSOC,
		SelfSufficiency: e.SelfSufficiency,
		EnergyMWh:       flatten(e.Report),
		IdealMWh:        flatten(e.Ideal),
		DurationMS:      e.Duration.Milliseconds(),
		Timestamp:       e.Time.UnixMilli(),
	}
}

// ControlMessage converts a control sample into its wire form. Write and
// read errors are joined into one string.
func ControlMessage(e events.ControlSample) coremqtt.ControlMessage {
	msg := coremqtt.ControlMessage{
		Session:       e.Session,
		Step:          e.Step,
		TargetW:       e.TargetW,
		SetpointW:     e.SetpointW,
		SOC:           e.SOC,
		ACPowerW:      e.ACPowerW,
		BatteryPowerW: e.BatteryPowerW,
		Timestamp:     e.Time.UnixMilli(),
	}
	switch {
	case e.WriteErr != nil && e.ReadErr != nil:
		msg.Error = fmt.Sprintf("write: %v; read: %v", e.WriteErr, e.ReadErr)
	case e.WriteErr != nil:
		msg.Error = "write: " + e.WriteErr.Error()
	case e.ReadErr != nil:
		msg.Error = "read: " + e.ReadErr.Error()
	}
	return msg
}

func flatten[K ~string](m map[K]float64) map[string]float64 {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}

// StartBridge publishes run and control events from bus until ctx is
// cancelled or the bus closes. The returned channel is closed on exit.
func StartBridge(ctx context.Context, bus eventbus.EventBus, pub Publisher) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || pub == nil {
		close(done)
		return done
	}
	log := logger.New("mqtt_bridge")
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
				var err error
				switch e := ev.(type) {
				case events.RunCompleted:
					err = pub.PublishRun(RunMessage(e))
				case events.ControlSample:
					err = pub.PublishControl(ControlMessage(e))
				}
				if err != nil {
					log.Warnf("bridge %T: %v", ev, err)
				}
			}
		}
	}()
	return done
}

// MockPublisher records messages in memory.
type MockPublisher struct {
	mu       sync.Mutex
	Runs     []coremqtt.RunMessage
	Controls []coremqtt.ControlMessage
	Fail     bool
}

// NewMockPublisher creates an empty MockPublisher.
func NewMockPublisher() *MockPublisher { return &MockPublisher{} }

// PublishRun records msg or fails when configured to.
func (m *MockPublisher) PublishRun(msg coremqtt.RunMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return coremqtt.ErrPublish
	}
	m.Runs = append(m.Runs, msg)
	return nil
}

// PublishControl records msg or fails when configured to.
func (m *MockPublisher) PublishControl(msg coremqtt.ControlMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return coremqtt.ErrPublish
	}
	m.Controls = append(m.Controls, msg)
	return nil
}

// Counts returns the number of recorded run and control messages.
func (m *MockPublisher) Counts() (runs, controls int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Runs), len(m.Controls)
}
