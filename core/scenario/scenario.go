// Package scenario describes simulation runs in YAML: which system to load,
// with which reference case, and where the PV and load profiles come from.
package scenario

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/openbat/core/batmod"
	"github.com/kilianp07/openbat/core/params"
	"github.com/kilianp07/openbat/core/series"
	"github.com/kilianp07/openbat/core/simulation"
)

// Profile is either a column of a series file or a synthetic shape.
type Profile struct {
	Column   string  `json:"column,omitempty" yaml:"column,omitempty"`
	Spread   int     `json:"spread,omitempty" yaml:"spread,omitempty"` // split each sample over n steps
	Shape    string  `json:"shape,omitempty" yaml:"shape,omitempty"`   // constant, solar or block
	Level    float64 `json:"level,omitempty" yaml:"level,omitempty"`
	Peak     float64 `json:"peak,omitempty" yaml:"peak,omitempty"`
	FromHour float64 `json:"from_hour,omitempty" yaml:"from_hour,omitempty"`
	ToHour   float64 `json:"to_hour,omitempty" yaml:"to_hour,omitempty"`
}

// Expected bounds checked by regression runs.
type Expected struct {
	FinalSOCMin        *float64 `json:"final_soc_min,omitempty" yaml:"final_soc_min,omitempty"`
	FinalSOCMax        *float64 `json:"final_soc_max,omitempty" yaml:"final_soc_max,omitempty"`
	SelfSufficiencyMin *float64 `json:"self_sufficiency_min,omitempty" yaml:"self_sufficiency_min,omitempty"`
	SelfSufficiencyMax *float64 `json:"self_sufficiency_max,omitempty" yaml:"self_sufficiency_max,omitempty"`
}

// Check reports every bound the outcome violates.
func (e Expected) Check(o *simulation.Outcome) error {
	var errs []error
	bound := func(name string, v float64, lo, hi *float64) {
		if lo != nil && v < *lo {
			errs = append(errs, fmt.Errorf("%s %.4f below %.4f", name, v, *lo))
		}
		if hi != nil && v > *hi {
			errs = append(errs, fmt.Errorf("%s %.4f above %.4f", name, v, *hi))
		}
	}
	bound("final soc", o.FinalSOC(), e.FinalSOCMin, e.FinalSOCMax)
	bound("self sufficiency", o.SelfSufficiency(), e.SelfSufficiencyMin, e.SelfSufficiencyMax)
	return errors.Join(errs...)
}

// Scenario is one simulation run definition.
type Scenario struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Parameters  string   `yaml:"parameters"`
	System      string   `yaml:"system"`
	Reference   string   `yaml:"reference,omitempty"`
	Series      string   `yaml:"series,omitempty"`
	StepS       float64  `yaml:"step_s"`
	Steps       int      `yaml:"steps,omitempty"`
	InitialSOC  float64  `yaml:"initial_soc"`
	Normalized  bool     `yaml:"normalized"`
	PV          Profile  `yaml:"pv"`
	Load        Profile  `yaml:"load"`
	Expected    Expected `yaml:"expected,omitempty"`

	dir string
}

// Load reads a scenario file. Relative paths inside it are resolved against
// the directory of the file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	sc.dir = filepath.Dir(path)
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &sc, nil
}

// Validate checks the fields needed to build a request.
func (s *Scenario) Validate() error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if s.Parameters == "" {
		errs = append(errs, errors.New("parameters is required"))
	}
	if s.System == "" {
		errs = append(errs, errors.New("system is required"))
	}
	if !(s.StepS > 0) {
		errs = append(errs, fmt.Errorf("step_s must be positive, got %v", s.StepS))
	}
	if s.InitialSOC < 0 || s.InitialSOC > 1 {
		errs = append(errs, fmt.Errorf("initial_soc must be within [0,1], got %v", s.InitialSOC))
	}
	return errors.Join(errs...)
}

func (s *Scenario) path(p string) string {
	if p == "" || filepath.IsAbs(p) || s.dir == "" {
		return p
	}
	return filepath.Join(s.dir, p)
}

// Request resolves the parameters and profiles of the scenario.
func (s *Scenario) Request() (simulation.Request, error) {
	sys, ref, err := params.Load(s.path(s.Parameters), s.System, s.Reference, s.StepS)
	if err != nil {
		return simulation.Request{}, err
	}
	var set series.Set
	if s.Series != "" {
		if set, err = series.Open(s.path(s.Series)); err != nil {
			return simulation.Request{}, err
		}
	}
	load := s.Load
	if load.Column == "" && load.Shape == "" && ref.LoadSeries != "" {
		load.Column = ref.LoadSeries
	}
	pl, err := load.Values(set, s.Steps, s.StepS)
	if err != nil {
		return simulation.Request{}, fmt.Errorf("load profile: %w", err)
	}
	steps := s.Steps
	if steps == 0 {
		steps = len(pl)
	}
	ppv, err := s.PV.Values(set, steps, s.StepS)
	if err != nil {
		return simulation.Request{}, fmt.Errorf("pv profile: %w", err)
	}
	if len(ppv) != len(pl) {
		return simulation.Request{}, fmt.Errorf("%w: pv has %d samples, load %d", batmod.ErrSeriesLength, len(ppv), len(pl))
	}
	return simulation.Request{
		System:     sys,
		PV:         ppv,
		Load:       pl,
		Normalized: s.Normalized,
		Step:       s.StepS,
		State:      batmod.NewState(s.InitialSOC),
	}, nil
}

// Values returns steps samples of the profile. Series columns are truncated
// to steps when it is non zero.
func (p Profile) Values(set series.Set, steps int, dt float64) ([]float64, error) {
	if p.Column != "" {
		v, err := set.Column(p.Column)
		if err != nil {
			return nil, err
		}
		v = series.Spread(v, p.Spread)
		if steps > 0 {
			if len(v) < steps {
				return nil, fmt.Errorf("column %q has %d samples, need %d", p.Column, len(v), steps)
			}
			v = v[:steps]
		}
		return v, nil
	}
	if steps <= 0 {
		return nil, errors.New("steps is required for synthetic profiles")
	}
	out := make([]float64, steps)
	for i := range out {
		h := math.Mod(float64(i)*dt/3600, 24)
		switch p.Shape {
		case "constant":
			out[i] = p.Level
		case "solar":
			out[i] = Solar(h, p.FromHour, p.ToHour, p.Peak)
		case "block":
			out[i] = p.Level
			if h >= p.FromHour && h < p.ToHour {
				out[i] = p.Peak
			}
		default:
			return nil, fmt.Errorf("unknown shape %q", p.Shape)
		}
	}
	return out, nil
}

// Solar returns a half sine between sunrise and sunset hours with the given
// peak, zero outside.
func Solar(hour, sunrise, sunset, peak float64) float64 {
	if sunset <= sunrise || hour <= sunrise || hour >= sunset {
		return 0
	}
	return peak * math.Sin(math.Pi*(hour-sunrise)/(sunset-sunrise))
}
