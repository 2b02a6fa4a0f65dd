// Package mqtt defines the messages published about runs and control
// sessions and the publisher contract implemented in infra/mqtt.
package mqtt

// RunMessage is the JSON payload published after a simulation run.
type RunMessage struct {
	RunID           string             `json:"run_id"`
	System          string             `json:"system"`
	Topology        string             `json:"topology"`
	Steps           int                `json:"steps"`
	StepSeconds     float64            `json:"step_s"`
	FinalSOC        float64            `json:"final_soc"`
	SelfSufficiency float64            `json:"self_sufficiency"`
	EnergyMWh       map[string]float64 `json:"energy_mwh"`
	IdealMWh        map[string]float64 `json:"ideal_mwh,omitempty"`
	DurationMS      int64              `json:"duration_ms"`
	Timestamp       int64              `json:"timestamp"`
}

// ControlMessage is the JSON payload published for each control cycle.
type ControlMessage struct {
	Session       string  `json:"session"`
	Step          int     `json:"step"`
	TargetW       float64 `json:"target_w"`
	SetpointW     int16   `json:"setpoint_w"`
	SOC           float64 `json:"soc"`
	ACPowerW      float64 `json:"ac_power_w"`
	BatteryPowerW float64 `json:"battery_power_w"`
	Error         string  `json:"error,omitempty"`
	Timestamp     int64   `json:"timestamp"`
}

// Publisher sends run and control messages to a broker.
type Publisher interface {
	PublishRun(msg RunMessage) error
	PublishControl(msg ControlMessage) error
}
