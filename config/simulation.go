package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/kilianp07/openbat/core/scenario"
)

// OutputConfig selects the files written after each run.
type OutputConfig struct {
	Dir string `json:"dir"`
	// Formats lists any of "csv", "json" and "html".
	Formats []string `json:"formats"`
}

// SimulationConfig describes the default run and the batch settings.
type SimulationConfig struct {
	Parameters  string           `json:"parameters"`
	System      string           `json:"system"`
	Reference   string           `json:"reference"`
	Series      string           `json:"series"`
	StepSeconds float64          `json:"step_s"`
	Steps       int              `json:"steps"`
	InitialSOC  float64          `json:"initial_soc"`
	Normalized  bool             `json:"normalized"`
	PV          scenario.Profile `json:"pv"`
	Load        scenario.Profile `json:"load"`
	// Scenarios are scenario files run by the batch command.
	Scenarios []string     `json:"scenarios"`
	Workers   int          `json:"workers"`
	Output    OutputConfig `json:"output"`
}

// SetDefaults applies a one minute step and one worker per CPU.
func (c *SimulationConfig) SetDefaults() {
	if c.StepSeconds == 0 {
		c.StepSeconds = 60
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "."
	}
}

// Validate checks the numeric fields and the output formats. Whether the
// run itself is complete is checked by Scenario.
func (c SimulationConfig) Validate() error {
	var errs []error
	if !(c.StepSeconds > 0) {
		errs = append(errs, fmt.Errorf("simulation.step_s must be positive, got %v", c.StepSeconds))
	}
	if c.InitialSOC < 0 || c.InitialSOC > 1 {
		errs = append(errs, fmt.Errorf("simulation.initial_soc must be within [0,1], got %v", c.InitialSOC))
	}
	for _, f := range c.Output.Formats {
		switch f {
		case "csv", "json", "html":
		default:
			errs = append(errs, fmt.Errorf("simulation.output: unknown format %q", f))
		}
	}
	return errors.Join(errs...)
}

// Scenario turns the section into a run definition.
func (c SimulationConfig) Scenario() (*scenario.Scenario, error) {
	sc := &scenario.Scenario{
		Name:       c.System,
		Parameters: c.Parameters,
		System:     c.System,
		Reference:  c.Reference,
		Series:     c.Series,
		StepS:      c.StepSeconds,
		Steps:      c.Steps,
		InitialSOC: c.InitialSOC,
		Normalized: c.Normalized,
		PV:         c.PV,
		Load:       c.Load,
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("simulation: %w", err)
	}
	return sc, nil
}

// resolve makes relative file paths relative to dir.
func (c *SimulationConfig) resolve(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.Parameters = abs(c.Parameters)
	c.Series = abs(c.Series)
	for i, s := range c.Scenarios {
		c.Scenarios[i] = abs(s)
	}
}
