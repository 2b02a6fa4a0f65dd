// Package params loads system parameter tables and turns them into validated
// model.System values.
//
// Tables are given in the units of published test reports: power in kW,
// energy in kWh and efficiencies in percent. Controller offsets and standby
// draws stay in W.
package params

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/openbat/core/fit"
	"github.com/kilianp07/openbat/core/model"
)

// Sample is one point of an efficiency table.
type Sample struct {
	Load          float64 `yaml:"load" json:"load"`
	EfficiencyPct float64 `yaml:"eta" json:"eta"`
}

// Table describes a conversion pathway by its ratings and measured
// efficiencies.
type Table struct {
	RatedInKW  float64  `yaml:"rated_in_kw" json:"rated_in_kw"`
	RatedOutKW float64  `yaml:"rated_out_kw" json:"rated_out_kw"`
	Samples    []Sample `yaml:"samples" json:"samples"`
}

// Standby is the idle draw in W.
type Standby struct {
	EmptyDC float64 `yaml:"empty_dc" json:"empty_dc"`
	EmptyAC float64 `yaml:"empty_ac" json:"empty_ac"`
	FullDC  float64 `yaml:"full_dc" json:"full_dc"`
	FullAC  float64 `yaml:"full_ac" json:"full_ac"`
}

// Deviation holds the grid exchange measured at stationary charge and
// discharge setpoints in W.
type Deviation struct {
	ChargeImport    float64 `yaml:"charge_import" json:"charge_import"`
	ChargeExport    float64 `yaml:"charge_export" json:"charge_export"`
	DischargeImport float64 `yaml:"discharge_import" json:"discharge_import"`
	DischargeExport float64 `yaml:"discharge_export" json:"discharge_export"`
}

// Raw is one system record as found in a parameter file.
type Raw struct {
	ID                 string    `yaml:"-" json:"-"`
	Topology           string    `yaml:"topology" json:"topology"`
	References         []string  `yaml:"references" json:"references"`
	UsableKWh          float64   `yaml:"usable_kwh" json:"usable_kwh"`
	BatteryEtaPct      float64   `yaml:"battery_eta" json:"battery_eta"`
	DeadTimeS          float64   `yaml:"dead_time_s" json:"dead_time_s"`
	SettlingTimeS      float64   `yaml:"settling_time_s" json:"settling_time_s"`
	Standby            Standby   `yaml:"standby" json:"standby"`
	Deviation          Deviation `yaml:"deviation" json:"deviation"`
	PeripheralW        float64   `yaml:"peripheral_w" json:"peripheral_w"`
	PVInverterStandbyW float64   `yaml:"pv_inverter_standby_w" json:"pv_inverter_standby_w"`
	PVPeakKW           float64   `yaml:"pv_peak_kw" json:"pv_peak_kw"`
	SOCThreshold       *float64  `yaml:"soc_threshold" json:"soc_threshold"` // nil selects the default
	FeedInLimit        *float64  `yaml:"feed_in_limit" json:"feed_in_limit"` // nil selects the default, 0 forbids export
	PV2AC              *Table    `yaml:"pv2ac" json:"pv2ac"`
	PV2BAT             *Table    `yaml:"pv2bat" json:"pv2bat"`
	AC2BAT             *Table    `yaml:"ac2bat" json:"ac2bat"`
	BAT2AC             *Table    `yaml:"bat2ac" json:"bat2ac"`
	BAT2PV             *Table    `yaml:"bat2pv" json:"bat2pv"`
}

// File is the parameter file layout.
type File struct {
	Systems map[string]*Raw `yaml:"systems" json:"systems"`
}

// Decode reads a parameter file. The format is chosen by extension; YAML is
// assumed for anything but .json.
func Decode(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read parameters: %w", err)
	}
	var f File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &f)
	default:
		err = yaml.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("decode parameters %s: %w", path, err)
	}
	for id, r := range f.Systems {
		if r == nil {
			return nil, fmt.Errorf("decode parameters %s: system %s is empty", path, id)
		}
		r.ID = id
	}
	return &f, nil
}

// System returns the record with the given id.
func (f *File) System(id string) (*Raw, error) {
	r, ok := f.Systems[id]
	if !ok {
		return nil, fmt.Errorf("system %q not found", id)
	}
	return r, nil
}

// Load reads path and builds the system id for the given reference case and
// time step. The reference inverter is taken from the same file.
func Load(path, id, refCase string, dt float64) (model.System, ReferenceCase, error) {
	f, err := Decode(path)
	if err != nil {
		return nil, ReferenceCase{}, err
	}
	return f.Build(id, refCase, dt)
}

// Build resolves the reference case and builds system id.
func (f *File) Build(id, refCase string, dt float64) (model.System, ReferenceCase, error) {
	raw, err := f.System(id)
	if err != nil {
		return nil, ReferenceCase{}, err
	}
	ref, err := LookupReference(refCase)
	if err != nil {
		return nil, ReferenceCase{}, err
	}
	if err := raw.supports(ref); err != nil {
		return nil, ReferenceCase{}, err
	}
	var inverter *Raw
	if ref.Inverter != "" && raw.needsInverter() {
		if inverter, err = f.System(ref.Inverter); err != nil {
			return nil, ReferenceCase{}, fmt.Errorf("reference case %s: %w", ref.ID, err)
		}
	}
	sys, err := raw.Build(ref, inverter, dt)
	return sys, ref, err
}

func (r *Raw) supports(ref ReferenceCase) error {
	if ref.ID != "" && !slices.Contains(r.References, ref.ID) {
		return fmt.Errorf("system %s: %w: case %s", r.ID, model.ErrIncompatibleReference, ref.ID)
	}
	return nil
}

func (r *Raw) needsInverter() bool {
	t, err := model.ParseTopology(r.Topology)
	return err == nil && t != model.TopologyDC
}

// Build converts the record into a validated system. ref may be the zero
// ReferenceCase; inverter supplies the PV2AC pathway of AC and PV-coupled
// systems when a reference case is active. dt is the simulation step in s.
func (r *Raw) Build(ref ReferenceCase, inverter *Raw, dt float64) (model.System, error) {
	topo, err := model.ParseTopology(r.Topology)
	if err != nil {
		var ce *model.ConfigError
		if errors.As(err, &ce) {
			ce.System = r.ID
		}
		return nil, err
	}
	if !(dt > 0) {
		return nil, fmt.Errorf("build %s: time step must be positive, got %v", r.ID, dt)
	}
	if err := r.supports(ref); err != nil {
		return nil, err
	}

	b := builder{id: r.ID}
	c := r.common(ref)
	pv2ac := r.PV2AC
	if inverter != nil && topo != model.TopologyDC {
		pv2ac = inverter.PV2AC
		c.PVInverterStandbyW = inverter.PVInverterStandbyW
		if topo == model.TopologyPV {
			c.Standby.Empty.AC = inverter.PVInverterStandbyW
		}
	}
	c.PV2AC = b.pathway("pv2ac", pv2ac)
	c.Control.DeadSteps = int(math.Round(r.DeadTimeS / dt))

	var sys model.System
	switch topo {
	case model.TopologyAC:
		sys = model.ACSystem{Common: c, AC2BAT: b.pathway("ac2bat", r.AC2BAT), BAT2AC: b.pathway("bat2ac", r.BAT2AC)}
	case model.TopologyDC:
		sys = model.DCSystem{Common: c, PV2BAT: b.pathway("pv2bat", r.PV2BAT), BAT2AC: b.pathway("bat2ac", r.BAT2AC)}
	default:
		sys = model.PVSystem{Common: c, PV2BAT: b.pathway("pv2bat", r.PV2BAT), BAT2PV: b.pathway("bat2pv", r.BAT2PV)}
	}
	if b.err != nil {
		return nil, b.err
	}
	if err := sys.Validate(); err != nil {
		return nil, err
	}
	return sys, nil
}

func (r *Raw) common(ref ReferenceCase) model.Common {
	d := fit.Derive(fit.Datasheet{
		UsableCapacityWh:  r.UsableKWh * 1000,
		BatteryEfficiency: r.BatteryEtaPct / 100,
		ChargeImportW:     r.Deviation.ChargeImport,
		ChargeExportW:     r.Deviation.ChargeExport,
		DischargeImportW:  r.Deviation.DischargeImport,
		DischargeExportW:  r.Deviation.DischargeExport,
		DeadTimeS:         r.DeadTimeS,
		SettlingTimeS:     r.SettlingTimeS,
		SOCThreshold:      r.SOCThreshold,
		FeedInLimit:       r.FeedInLimit,
	})
	peak := r.PVPeakKW
	if ref.PVPeakKW > 0 {
		peak = ref.PVPeakKW
	}
	tau := d.TimeConstant
	if tau < 0 {
		tau = 0
	}
	return model.Common{
		Name:         r.ID,
		Battery:      model.Battery{CapacityWh: d.CapacityWh, Efficiency: r.BatteryEtaPct / 100},
		Control:      model.Control{TimeConstant: tau},
		Deviation:    d.Deviation,
		SOCThreshold: d.SOCThreshold,
		FeedInLimit:  d.FeedInLimit,
		PVPeakW:      peak * 1000,
		PeripheralW:  r.PeripheralW,
		Standby: model.Standby{
			Empty: model.StandbyDraw{DC: r.Standby.EmptyDC, AC: r.Standby.EmptyAC},
			Full:  model.StandbyDraw{DC: r.Standby.FullDC, AC: r.Standby.FullAC},
		},
		PVInverterStandbyW: r.PVInverterStandbyW,
	}
}

// builder fits pathways and keeps the first failure.
type builder struct {
	id  string
	err error
}

func (b *builder) pathway(name string, t *Table) model.Pathway {
	if b.err != nil {
		return model.Pathway{}
	}
	if t == nil {
		b.err = &model.ConfigError{System: b.id, Field: name, Reason: "missing efficiency table"}
		return model.Pathway{}
	}
	pts := make([]fit.EfficiencyPoint, len(t.Samples))
	for i, s := range t.Samples {
		pts[i] = fit.EfficiencyPoint{Load: s.Load, Efficiency: s.EfficiencyPct / 100}
	}
	p, err := fit.FitPathway(t.RatedOutKW*1000, t.RatedInKW*1000, pts)
	if err != nil {
		b.err = &model.ConfigError{System: b.id, Field: name, Reason: err.Error()}
		return model.Pathway{}
	}
	return p
}
