package metrics

import "time"

// RunEvent summarises a finished simulation run.
type RunEvent struct {
	RunID           string
	System          string
	Topology        string
	Steps           int
	FinalSOC        float64
	SelfSufficiency float64
	EnergyMWh       map[string]float64
	Duration        time.Duration
	Time            time.Time
}

// MetricsSink records simulation runs.
type MetricsSink interface {
	RecordRun(ev RunEvent) error
}

// ControlEvent is one cycle of a live control session.
type ControlEvent struct {
	Session       string
	Step          int
	TargetW       float64
	SetpointW     float64
	SOC           float64
	ACPowerW      float64
	BatteryPowerW float64
	WriteFailed   bool
	ReadFailed    bool
	Latency       time.Duration
	Time          time.Time
}

// ControlRecorder is implemented by sinks able to record control cycles.
type ControlRecorder interface {
	RecordControl(ev ControlEvent) error
}

// FailureEvent records a run that stopped with an error.
type FailureEvent struct {
	RunID  string
	System string
	Reason string
	Time   time.Time
}

// FailureRecorder is implemented by sinks counting failed runs.
type FailureRecorder interface {
	RecordFailure(ev FailureEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordRun(RunEvent) error         { return nil }
func (NopSink) RecordControl(ControlEvent) error { return nil }
func (NopSink) RecordFailure(FailureEvent) error { return nil }
