package events

import (
	"time"

	"github.com/kilianp07/openbat/core/accounting"
	"github.com/kilianp07/openbat/core/model"
)

// RunStarted is published before the engine is invoked.
type RunStarted struct {
	RunID    string
	System   string
	Topology model.Topology
	Steps    int
}

// RunCompleted carries the summary of a finished run.
type RunCompleted struct {
	RunID           string
	System          string
	Topology        model.Topology
	Steps           int
	StepSeconds     float64
	FinalSOC        float64
	SelfSufficiency float64
	Report          accounting.Report
	Ideal           accounting.Report
	Duration        time.Duration
	Time            time.Time
}

// RunFailed is published when a run could not complete.
type RunFailed struct {
	RunID  string
	System string
	Err    error
}
