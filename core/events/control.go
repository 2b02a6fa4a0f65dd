package events

import "time"

// ControlSample is published once per control interval.
type ControlSample struct {
	Session       string
	Step          int
	TargetW       float64
	SetpointW     int16
	SOC           float64
	ACPowerW      float64
	BatteryPowerW float64
	WriteErr      error
	ReadErr       error
	Latency       time.Duration
	Time          time.Time
}
